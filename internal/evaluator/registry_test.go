package evaluator

import (
	"context"
	"strings"
	"testing"

	"github.com/ShayCichocki/irsight/pkg/models"
)

func TestRegistryResolveDeterministicKeys(t *testing.T) {
	r := NewRegistry(nil)
	keys := []string{
		"contrast_ratio",
		"hero_viewport_ratio",
		"carousel_slide_count",
		"image_alt_coverage",
		"nav_label_coverage",
		"link_decoration_coverage",
		"external_link_marking",
	}
	for _, key := range keys {
		c := models.Criterion{ID: 1, Name: "check", CheckKind: models.CheckStructural, EvaluatorKey: key}
		if _, err := r.Resolve(c); err != nil {
			t.Errorf("Resolve(%q) error = %v", key, err)
		}
	}
}

func TestRegistryResolveUnknownKey(t *testing.T) {
	r := NewRegistry(nil)
	c := models.Criterion{ID: 5, Name: "check", CheckKind: models.CheckVisual, EvaluatorKey: "font_size_minimum"}
	_, err := r.Resolve(c)
	if err == nil {
		t.Fatal("expected error for unknown evaluator key")
	}
	if !strings.Contains(err.Error(), "font_size_minimum") {
		t.Errorf("error %v should name the unknown key", err)
	}
}

func TestRegistryResolveSemanticUnconfigured(t *testing.T) {
	r := NewRegistry(nil)
	c := models.Criterion{ID: 2, Name: "judgment", CheckKind: models.CheckSemantic, Instruction: "look for it"}
	if _, err := r.Resolve(c); err == nil {
		t.Error("expected error when semantic evaluation is not configured")
	}
}

func TestRegistryResolveUnsupported(t *testing.T) {
	r := NewRegistry(nil)
	c := models.Criterion{ID: 9, Name: "manual review item", CheckKind: models.CheckUnsupported}

	fn, err := r.Resolve(c)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	res, err := fn(context.Background(), Input{Site: models.Site{ID: 1}, Criterion: c})
	if err != nil {
		t.Fatalf("unsupported func error = %v", err)
	}
	if res.Verdict != models.VerdictNotSupported {
		t.Errorf("verdict = %s, want NOT_SUPPORTED", res.Verdict)
	}
	if res.Confidence != 0.0 {
		t.Errorf("confidence = %v, want 0.0", res.Confidence)
	}
	if res.Details == "" {
		t.Error("NOT_SUPPORTED result must carry a reason")
	}
}

func TestRegistryKeywordUnsupportedWinsOverKind(t *testing.T) {
	// A criterion about field performance metrics is unsupported even if the
	// catalog mislabels it as semantic.
	r := NewRegistry(nil)
	c := models.Criterion{
		ID:          11,
		Name:        "Largest Contentful Paint under 2.5s",
		CheckKind:   models.CheckSemantic,
		Instruction: "check page speed",
	}

	fn, err := r.Resolve(c)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	res, err := fn(context.Background(), Input{Site: models.Site{ID: 1}, Criterion: c})
	if err != nil {
		t.Fatalf("unsupported func error = %v", err)
	}
	if res.Verdict != models.VerdictNotSupported {
		t.Errorf("verdict = %s, want NOT_SUPPORTED", res.Verdict)
	}
	if !strings.Contains(res.Details, "field performance data") {
		t.Errorf("details = %q, want the LCP-specific reason", res.Details)
	}
}

func TestUnsupportedReasonKeywords(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{"uptime", "site uptime above 99.9%", true},
		{"speed index", "Speed Index within budget", true},
		{"ttfb", "TTFB under 600ms", true},
		{"plain content check", "privacy policy link present", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := models.Criterion{ID: 1, Name: tt.text, CheckKind: models.CheckStructural, EvaluatorKey: "contrast_ratio"}
			_, got := unsupportedReason(c)
			if got != tt.want {
				t.Errorf("unsupportedReason(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestRegistryValidateCatalog(t *testing.T) {
	r := NewRegistry(nil)

	good := []models.Criterion{
		{ID: 1, Name: "contrast", CheckKind: models.CheckVisual, EvaluatorKey: "contrast_ratio"},
		{ID: 2, Name: "alt text", CheckKind: models.CheckStructural, EvaluatorKey: "image_alt_coverage"},
	}
	if err := r.ValidateCatalog(good); err != nil {
		t.Errorf("ValidateCatalog() error = %v for a valid catalog", err)
	}

	bad := append(good, models.Criterion{ID: 3, Name: "bogus", CheckKind: models.CheckVisual, EvaluatorKey: "nope"})
	if err := r.ValidateCatalog(bad); err == nil {
		t.Error("expected error for a catalog with an unknown evaluator key")
	}
}
