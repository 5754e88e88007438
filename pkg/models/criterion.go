package models

import "fmt"

// CheckKind declares which evaluation strategy a criterion requires.
type CheckKind string

const (
	// CheckStructural is a deterministic check on page structure (counts, presence).
	CheckStructural CheckKind = "structural"
	// CheckVisual is a deterministic check on computed styles and geometry.
	CheckVisual CheckKind = "visual"
	// CheckSemantic is a natural-language judgment delegated to the reasoning service.
	CheckSemantic CheckKind = "semantic"
	// CheckUnsupported marks a criterion that cannot be measured by this tool.
	CheckUnsupported CheckKind = "unsupported"
)

// Valid returns true if the kind is a known value.
func (k CheckKind) Valid() bool {
	switch k {
	case CheckStructural, CheckVisual, CheckSemantic, CheckUnsupported:
		return true
	default:
		return false
	}
}

// Deterministic returns true for kinds evaluated without the reasoning service.
func (k CheckKind) Deterministic() bool {
	return k == CheckStructural || k == CheckVisual
}

// Criterion is one evaluation rule from the fixed catalog.
// Criteria are loaded once per run and never mutated.
type Criterion struct {
	// ID is the unique identifier for this criterion.
	ID int `json:"criterion_id" yaml:"id"`
	// Category is the top-level catalog grouping.
	Category string `json:"category" yaml:"category"`
	// Subcategory is the second-level catalog grouping.
	Subcategory string `json:"subcategory" yaml:"subcategory"`
	// Name is the short display name of the rule.
	Name string `json:"name" yaml:"name"`
	// CheckKind selects the evaluation strategy.
	CheckKind CheckKind `json:"check_kind" yaml:"check_kind"`
	// EvaluatorKey names the deterministic evaluator for structural/visual kinds.
	EvaluatorKey string `json:"evaluator_key,omitempty" yaml:"evaluator_key,omitempty"`
	// Instruction is the judgment text given to the reasoning service.
	Instruction string `json:"instruction,omitempty" yaml:"instruction,omitempty"`
	// Priority is high, medium, or low.
	Priority string `json:"priority,omitempty" yaml:"priority,omitempty"`
	// TargetPage names which mapped page the check should run against.
	TargetPage string `json:"target_page,omitempty" yaml:"target_page,omitempty"`
}

// Validate checks internal consistency of a single criterion.
func (c Criterion) Validate() error {
	if c.ID < 1 {
		return fmt.Errorf("criterion %q: invalid id %d", c.Name, c.ID)
	}
	if !c.CheckKind.Valid() {
		return fmt.Errorf("criterion %d: unknown check_kind %q", c.ID, c.CheckKind)
	}
	if c.CheckKind.Deterministic() && c.EvaluatorKey == "" {
		return fmt.Errorf("criterion %d: %s check requires an evaluator_key", c.ID, c.CheckKind)
	}
	if c.CheckKind == CheckSemantic && c.Instruction == "" {
		return fmt.Errorf("criterion %d: semantic check requires an instruction", c.ID)
	}
	return nil
}

// ValidateCriteria checks a loaded catalog for duplicate IDs and invalid entries.
func ValidateCriteria(criteria []Criterion) error {
	seen := make(map[int]bool, len(criteria))
	for _, c := range criteria {
		if err := c.Validate(); err != nil {
			return err
		}
		if seen[c.ID] {
			return fmt.Errorf("duplicate criterion id %d", c.ID)
		}
		seen[c.ID] = true
	}
	return nil
}
