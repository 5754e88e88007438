package models

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

// SemanticVerdict is the structured output parsed from the reasoning service.
// It is ephemeral: consumed immediately to build a Result.
type SemanticVerdict struct {
	// Found reports whether the service located evidence for the criterion.
	Found bool `json:"found"`
	// Confidence is the service's self-reported certainty in [0.0, 1.0].
	Confidence float64 `json:"confidence"`
	// Details explains the judgment.
	Details string `json:"details"`
	// Reasoning is an optional longer explanation.
	Reasoning string `json:"reasoning,omitempty"`
}

// ParseSemanticVerdict decodes the raw service response into a SemanticVerdict.
// A response that cannot be decoded never produces an error: it falls back to
// found=false, confidence 0.0, with a details string flagging the failure.
func ParseSemanticVerdict(raw string) SemanticVerdict {
	text := strings.TrimSpace(raw)
	text = stripCodeFence(text)

	var v SemanticVerdict
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		v.Confidence = ClampConfidence(v.Confidence)
		return v
	}

	// The service sometimes wraps the JSON object in prose. Retry on the
	// outermost brace pair before giving up.
	if start, end := strings.Index(text, "{"), strings.LastIndex(text, "}"); start >= 0 && end > start {
		if err := json.Unmarshal([]byte(text[start:end+1]), &v); err == nil {
			v.Confidence = ClampConfidence(v.Confidence)
			return v
		}
	}

	return SemanticVerdict{
		Found:      false,
		Confidence: 0.0,
		Details:    "unparseable response: " + truncate(text, 200),
	}
}

// stripCodeFence removes a surrounding markdown code fence, if present.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// truncate caps s at n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
