package evaluator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/irsight/internal/page"
	"github.com/ShayCichocki/irsight/pkg/models"
)

// Minimum coverage ratios per deterministic coverage check.
const (
	minImageAltCoverage     = 0.95
	minNavLabelCoverage     = 0.80
	minLinkDecorationRatio  = 0.60
	minExternalMarkingRatio = 0.50
)

// Registry resolves criteria to evaluator funcs. The deterministic set is
// closed: a catalog naming an unknown evaluator key is rejected before any
// site is processed.
type Registry struct {
	deterministic map[string]Func
	semantic      *Semantic
}

// NewRegistry builds the registry around a semantic evaluator.
func NewRegistry(semantic *Semantic) *Registry {
	return &Registry{
		semantic: semantic,
		deterministic: map[string]Func{
			"contrast_ratio":           evalContrast,
			"hero_viewport_ratio":      evalHeroViewport,
			"carousel_slide_count":     evalCarouselSlides,
			"image_alt_coverage":       coverageFunc(page.CoverageImageAlt, minImageAltCoverage),
			"nav_label_coverage":       coverageFunc(page.CoverageNavLabel, minNavLabelCoverage),
			"link_decoration_coverage": coverageFunc(page.CoverageLinkStyle, minLinkDecorationRatio),
			"external_link_marking":    coverageFunc(page.CoverageExternalMark, minExternalMarkingRatio),
		},
	}
}

// Resolve returns the evaluator for a criterion. Unsupported criteria
// resolve to a func producing a NOT_SUPPORTED result with zero confidence.
func (r *Registry) Resolve(c models.Criterion) (Func, error) {
	if reason, ok := unsupportedReason(c); ok {
		return func(ctx context.Context, in Input) (models.Result, error) {
			return newResult(in, models.VerdictNotSupported, 0.0, reason), nil
		}, nil
	}

	switch c.CheckKind {
	case models.CheckSemantic:
		if r.semantic == nil {
			return nil, fmt.Errorf("criterion %d: semantic evaluation not configured", c.ID)
		}
		return r.semantic.Evaluate, nil
	case models.CheckStructural, models.CheckVisual:
		fn, ok := r.deterministic[c.EvaluatorKey]
		if !ok {
			return nil, fmt.Errorf("criterion %d: unknown evaluator key %q", c.ID, c.EvaluatorKey)
		}
		return fn, nil
	default:
		return nil, fmt.Errorf("criterion %d: unknown check kind %q", c.ID, c.CheckKind)
	}
}

// ValidateCatalog resolves every criterion up front so misconfigured
// catalogs fail before the first site is touched.
func (r *Registry) ValidateCatalog(criteria []models.Criterion) error {
	for _, c := range criteria {
		if _, err := r.Resolve(c); err != nil {
			return fmt.Errorf("catalog validation: %w", err)
		}
	}
	return nil
}
