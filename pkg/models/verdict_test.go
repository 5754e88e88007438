package models

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestParseSemanticVerdict(t *testing.T) {
	tests := []struct {
		name           string
		raw            string
		wantFound      bool
		wantConfidence float64
		wantDetails    string
	}{
		{
			"plain json pass",
			`{"found": true, "confidence": 0.9, "details": "news list present"}`,
			true, 0.9, "news list present",
		},
		{
			"plain json fail",
			`{"found": false, "confidence": 0.7, "details": "no dedicated list"}`,
			false, 0.7, "no dedicated list",
		},
		{
			"fenced json",
			"```json\n{\"found\": true, \"confidence\": 0.8, \"details\": \"ok\"}\n```",
			true, 0.8, "ok",
		},
		{
			"json embedded in prose",
			`Here is my judgment: {"found": true, "confidence": 0.6, "details": "present"} as requested.`,
			true, 0.6, "present",
		},
		{
			"confidence above one is clamped",
			`{"found": true, "confidence": 1.4, "details": "sure"}`,
			true, 1.0, "sure",
		},
		{
			"negative confidence is clamped",
			`{"found": false, "confidence": -0.2, "details": "no"}`,
			false, 0.0, "no",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ParseSemanticVerdict(tt.raw)
			if v.Found != tt.wantFound {
				t.Errorf("Found = %v, want %v", v.Found, tt.wantFound)
			}
			if v.Confidence != tt.wantConfidence {
				t.Errorf("Confidence = %v, want %v", v.Confidence, tt.wantConfidence)
			}
			if v.Details != tt.wantDetails {
				t.Errorf("Details = %q, want %q", v.Details, tt.wantDetails)
			}
		})
	}
}

func TestParseSemanticVerdict_Unparseable(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"free text", "I could not find any IR news section on this page."},
		{"empty string", ""},
		{"broken json", `{"found": true, "confidence":`},
		{"html", "<html><body>502 Bad Gateway</body></html>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ParseSemanticVerdict(tt.raw)
			if v.Found {
				t.Error("Found = true, want false for unparseable response")
			}
			if v.Confidence != 0.0 {
				t.Errorf("Confidence = %v, want 0.0", v.Confidence)
			}
			if !strings.Contains(v.Details, "unparseable response") {
				t.Errorf("Details = %q, want parse-failure flag", v.Details)
			}
		})
	}
}

func TestParseSemanticVerdict_TruncatesOnRuneBoundary(t *testing.T) {
	// The details cap falls inside a multi-byte rune here; the truncation
	// must back off to the rune boundary instead of emitting a split rune.
	raw := "x" + strings.Repeat("é", 150)
	v := ParseSemanticVerdict(raw)

	if !utf8.ValidString(v.Details) {
		t.Errorf("Details is not valid UTF-8: %q", v.Details)
	}
	if !strings.HasSuffix(v.Details, "...") {
		t.Errorf("Details = %q, want truncation marker", v.Details)
	}
}
