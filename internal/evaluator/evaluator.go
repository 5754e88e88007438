// Package evaluator dispatches criteria to their evaluation strategy:
// deterministic structural/visual checks, reasoning-service judgments, or
// first-class NOT_SUPPORTED outcomes.
package evaluator

import (
	"context"
	"time"

	"github.com/ShayCichocki/irsight/internal/page"
	"github.com/ShayCichocki/irsight/pkg/models"
)

// Input carries everything one evaluation needs. Page assets are extracted
// once per site and shared read-only across the site's criteria.
type Input struct {
	// Site is the site under audit.
	Site models.Site
	// Criterion is the rule being evaluated.
	Criterion models.Criterion
	// PageURL is the page actually examined.
	PageURL string
	// Content is the page's raw HTML.
	Content string
	// Metrics is the extracted structural/visual snapshot.
	Metrics *page.Metrics
	// Page is the live handle, used only for evidence capture. May be nil.
	Page page.Page
}

// Func evaluates one criterion against one site's page assets. A returned
// error means the evaluation could not be completed; the orchestrator
// converts it into an ERROR result. Funcs never panic across this boundary.
type Func func(ctx context.Context, in Input) (models.Result, error)

// newResult builds a Result stamped with the input's identifiers.
func newResult(in Input, verdict models.Verdict, confidence float64, details string) models.Result {
	return models.Result{
		SiteID:      in.Site.ID,
		CriterionID: in.Criterion.ID,
		Verdict:     verdict,
		Confidence:  models.ClampConfidence(confidence),
		Details:     details,
		CheckedAt:   time.Now(),
		CheckedURL:  in.PageURL,
	}
}
