package models

import "time"

// Verdict is the machine-checkable outcome of one (site, criterion) check.
type Verdict string

const (
	// VerdictPass indicates the criterion is satisfied.
	VerdictPass Verdict = "PASS"
	// VerdictFail indicates the criterion is confidently not satisfied.
	VerdictFail Verdict = "FAIL"
	// VerdictError indicates the check could not be completed.
	VerdictError Verdict = "ERROR"
	// VerdictNotSupported indicates the criterion cannot be measured by design.
	// Consumers must treat it as a third outcome, never folded into FAIL.
	VerdictNotSupported Verdict = "NOT_SUPPORTED"
)

// Valid returns true if the verdict is a known value.
func (v Verdict) Valid() bool {
	switch v {
	case VerdictPass, VerdictFail, VerdictError, VerdictNotSupported:
		return true
	default:
		return false
	}
}

// Result is the outcome of evaluating one criterion against one site.
// Results are immutable once constructed; a retry produces a replacement.
type Result struct {
	SiteID      int       `json:"site_id"`
	CriterionID int       `json:"criterion_id"`
	Verdict     Verdict   `json:"verdict"`
	// Confidence is in [0.0, 1.0]. Deterministic checks always report 1.0;
	// NOT_SUPPORTED always reports 0.0.
	Confidence float64 `json:"confidence"`
	// Details is a human-readable explanation embedding the measured value.
	Details   string    `json:"details"`
	CheckedAt time.Time `json:"checked_at"`
	// CheckedURL is the page actually examined, which may be a subpage.
	CheckedURL   string `json:"checked_url,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	EvidencePath string `json:"evidence_path,omitempty"`
}

// ClampConfidence forces a confidence value into [0.0, 1.0].
func ClampConfidence(c float64) float64 {
	if c < 0.0 {
		return 0.0
	}
	if c > 1.0 {
		return 1.0
	}
	return c
}
