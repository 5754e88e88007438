package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/irsight/internal/checkpoint"
	"github.com/ShayCichocki/irsight/internal/evaluator"
	"github.com/ShayCichocki/irsight/internal/page"
	"github.com/ShayCichocki/irsight/internal/retry"
	"github.com/ShayCichocki/irsight/pkg/models"
)

// ErrStopRequested is returned through the run when the stop file appears.
// The run halts between criteria; everything already recorded stays recorded.
var ErrStopRequested = errors.New("stop requested")

// ResultStore is the persistence surface the orchestrator needs. The
// checkpoint store satisfies it.
type ResultStore interface {
	Record(r models.Result) error
	CompletedPairs() (map[checkpoint.Pair]bool, error)
	SetMeta(key, value string) error
	TouchSavedAt(t time.Time) error
}

// Summary describes a finished (or halted) run.
type Summary struct {
	// RunID identifies this invocation in logs and run metadata.
	RunID string
	// Sites and Criteria are the input dimensions.
	Sites    int
	Criteria int
	// Total is Sites x Criteria, the number of results a complete run holds.
	Total int
	// Skipped counts pairs already recorded by a previous run.
	Skipped int
	// Evaluated counts pairs recorded by this run.
	Evaluated int
	// Counts holds per-verdict totals for this run's evaluations.
	Counts map[models.Verdict]int
	// Categories holds per-category pass tallies for this run's evaluations,
	// keyed by the criterion's catalog category.
	Categories map[string]CategoryStats
	// Stopped is true when the run halted early via the stop file.
	Stopped  bool
	Duration time.Duration
}

// CategoryStats tallies outcomes for one catalog category.
type CategoryStats struct {
	Pass  int
	Total int
}

// PassRate is Pass/Total, or 0 for an empty category.
func (s CategoryStats) PassRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Pass) / float64(s.Total)
}

// observe folds one recorded result into the summary tallies.
func (s *Summary) observe(r models.Result, category string) {
	s.Counts[r.Verdict]++
	s.Evaluated++
	if category == "" {
		return
	}
	cs := s.Categories[category]
	cs.Total++
	if r.Verdict == models.VerdictPass {
		cs.Pass++
	}
	s.Categories[category] = cs
}

// categoryIndex maps criterion IDs to their catalog category.
func categoryIndex(criteria []models.Criterion) map[int]string {
	idx := make(map[int]string, len(criteria))
	for _, c := range criteria {
		idx[c.ID] = c.Category
	}
	return idx
}

// Orchestrator drives one audit run across all (site, criterion) pairs.
type Orchestrator struct {
	browser  page.Browser
	registry *evaluator.Registry
	store    ResultStore
	opts     *options
}

// New builds an orchestrator. The browser, registry, and store are required;
// everything else is optional.
func New(browser page.Browser, registry *evaluator.Registry, store ResultStore, opts ...Option) *Orchestrator {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return &Orchestrator{
		browser:  browser,
		registry: registry,
		store:    store,
		opts:     o,
	}
}

// Run evaluates every criterion against every site, skipping pairs already
// recorded in the store. The catalog is validated before any site is
// touched. A stop-file halt returns a Summary with Stopped set and a nil
// error; context cancellation returns the context's error. In both cases
// everything recorded so far survives for the next resume.
func (o *Orchestrator) Run(ctx context.Context, sites []models.Site, criteria []models.Criterion) (*Summary, error) {
	start := time.Now()

	if err := o.registry.ValidateCatalog(criteria); err != nil {
		return nil, err
	}

	completed, err := o.store.CompletedPairs()
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}

	runID := uuid.New().String()
	if err := o.store.SetMeta("run_id", runID); err != nil {
		return nil, fmt.Errorf("record run id: %w", err)
	}

	sum := &Summary{
		RunID:      runID,
		Sites:      len(sites),
		Criteria:   len(criteria),
		Total:      len(sites) * len(criteria),
		Counts:     make(map[models.Verdict]int),
		Categories: make(map[string]CategoryStats),
	}
	o.opts.logger.Log("run %s: %d sites x %d criteria, %d pairs already done",
		runID, len(sites), len(criteria), len(completed))

	if o.opts.parallel > 1 {
		err = o.runParallel(ctx, sites, criteria, completed, sum)
	} else {
		err = o.runSequential(ctx, sites, criteria, completed, sum)
	}

	if terr := o.store.TouchSavedAt(time.Now()); terr != nil && err == nil {
		err = terr
	}
	sum.Duration = time.Since(start)

	if errors.Is(err, ErrStopRequested) {
		sum.Stopped = true
		o.opts.logger.Log("run %s: stopped by request after %d evaluations", runID, sum.Evaluated)
		return sum, nil
	}
	if err != nil {
		return sum, err
	}
	o.opts.logger.Log("run %s: complete, %d evaluated, %d skipped", runID, sum.Evaluated, sum.Skipped)
	return sum, nil
}

// runSequential processes sites one at a time with a single gate.
func (o *Orchestrator) runSequential(ctx context.Context, sites []models.Site, criteria []models.Criterion, completed map[checkpoint.Pair]bool, sum *Summary) error {
	categories := categoryIndex(criteria)
	emit := func(r models.Result) error {
		if err := o.store.Record(r); err != nil {
			return err
		}
		sum.observe(r, categories[r.CriterionID])
		return nil
	}

	gate := retry.NewGate(o.opts.policy)
	sitesDone := 0
	for i, site := range sites {
		if err := o.checkHalt(ctx); err != nil {
			return err
		}
		o.opts.logger.Log("site %d/%d: %s (%s)", i+1, len(sites), site.Name, site.URL)

		skipped, err := o.processSite(ctx, gate, site, criteria, completed, emit)
		sum.Skipped += skipped
		if err != nil {
			return err
		}

		sitesDone++
		if sitesDone%o.opts.checkpointInterval == 0 {
			if err := o.store.TouchSavedAt(time.Now()); err != nil {
				return fmt.Errorf("checkpoint: %w", err)
			}
			o.opts.logger.Log("checkpoint after %d site(s)", sitesDone)
		}
	}
	return nil
}

// runParallel fans sites out to worker goroutines. All store writes flow
// through a single aggregator goroutine, so the store sees one writer no
// matter how many workers run.
func (o *Orchestrator) runParallel(ctx context.Context, sites []models.Site, criteria []models.Criterion, completed map[checkpoint.Pair]bool, sum *Summary) error {
	results := make(chan models.Result, o.opts.parallel*2)
	aggDone := make(chan error, 1)

	flushEvery := o.opts.checkpointInterval * len(criteria)
	if flushEvery < 1 {
		flushEvery = 1
	}

	categories := categoryIndex(criteria)
	go func() {
		flushed := 0
		for r := range results {
			if err := o.store.Record(r); err != nil {
				// Drain so workers never block on a dead aggregator.
				for range results {
				}
				aggDone <- err
				return
			}
			sum.observe(r, categories[r.CriterionID])

			flushed++
			if flushed%flushEvery == 0 {
				if err := o.store.TouchSavedAt(time.Now()); err != nil {
					for range results {
					}
					aggDone <- err
					return
				}
			}
		}
		aggDone <- nil
	}()

	emit := func(r models.Result) error {
		select {
		case results <- r:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	var (
		mu       sync.Mutex
		firstErr error
		skipped  int
	)
	// halt unblocks the dispatcher when a worker errors out and stops
	// receiving; closed exactly once, by whichever error arrives first.
	halt := make(chan struct{})
	setErr := func(err error) {
		mu.Lock()
		if firstErr == nil {
			firstErr = err
			close(halt)
		}
		mu.Unlock()
	}

	siteCh := make(chan models.Site)
	var wg sync.WaitGroup
	for w := 0; w < o.opts.parallel; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			// Each worker owns its gate; retry state is never shared.
			gate := retry.NewGate(o.opts.policy)
			for site := range siteCh {
				o.opts.logger.Log("worker %d: site %d (%s)", worker, site.ID, site.URL)
				n, err := o.processSite(ctx, gate, site, criteria, completed, emit)
				mu.Lock()
				skipped += n
				mu.Unlock()
				if err != nil {
					setErr(err)
					return
				}
			}
		}(w)
	}

dispatch:
	for _, site := range sites {
		if err := o.checkHalt(ctx); err != nil {
			setErr(err)
			break
		}
		// The send must never park unconditionally: workers stop receiving
		// once any of them errors, and a halted run still has to terminate.
		select {
		case siteCh <- site:
		case <-ctx.Done():
			setErr(ctx.Err())
			break dispatch
		case <-halt:
			break dispatch
		}
	}
	close(siteCh)
	wg.Wait()
	close(results)

	aggErr := <-aggDone
	sum.Skipped += skipped
	if aggErr != nil {
		return aggErr
	}
	return firstErr
}

// processSite evaluates all not-yet-completed criteria for one site. Site
// and criterion failures become ERROR results; only halts and store failures
// propagate as errors. Returns the number of pairs skipped as already done.
func (o *Orchestrator) processSite(ctx context.Context, gate *retry.Gate, site models.Site, criteria []models.Criterion, completed map[checkpoint.Pair]bool, emit func(models.Result) error) (int, error) {
	skipped := 0
	pending := make([]models.Criterion, 0, len(criteria))
	for _, c := range criteria {
		if completed[checkpoint.Pair{SiteID: site.ID, CriterionID: c.ID}] {
			skipped++
			continue
		}
		pending = append(pending, c)
	}
	if len(pending) == 0 {
		return skipped, nil
	}

	// Unsupported criteria never need the page; settle them first so a dead
	// site still gets its NOT_SUPPORTED rows.
	needPage := make([]models.Criterion, 0, len(pending))
	for _, c := range pending {
		if !evaluator.Unsupported(c) {
			needPage = append(needPage, c)
			continue
		}
		fn, err := o.registry.Resolve(c)
		if err != nil {
			return skipped, err
		}
		res, err := fn(ctx, evaluator.Input{Site: site, Criterion: c, PageURL: site.URL})
		if err != nil {
			res = errorResult(site, c, site.URL, err)
		}
		if err := emit(res); err != nil {
			return skipped, err
		}
	}
	if len(needPage) == 0 {
		return skipped, nil
	}

	pg, err := retry.Do(ctx, gate, page.Classify, func(ctx context.Context) (page.Page, error) {
		return o.browser.Open(ctx, site.URL)
	})
	if err != nil {
		if ctx.Err() != nil {
			return skipped, ctx.Err()
		}
		// The whole site is unreachable: every remaining criterion gets an
		// ERROR row so the run total still adds up.
		o.opts.logger.Log("site %d (%s): unavailable: %v", site.ID, site.URL, err)
		for _, c := range needPage {
			e := emit(errorResult(site, c, site.URL, fmt.Errorf("page unavailable: %w", err)))
			if e != nil {
				return skipped, e
			}
		}
		return skipped, nil
	}
	defer pg.Close(ctx)

	// Extract page assets once; criteria share them read-only.
	content, contentErr := pg.Content(ctx)
	metrics, metricsErr := pg.ExtractMetrics(ctx)
	if contentErr != nil {
		o.opts.logger.Log("site %d: content extraction failed: %v", site.ID, contentErr)
	}
	if metricsErr != nil {
		o.opts.logger.Log("site %d: metrics extraction failed: %v", site.ID, metricsErr)
	}

	for _, c := range needPage {
		// Halt only lands between criteria; an in-flight evaluation always
		// reaches its Record.
		if err := o.checkHalt(ctx); err != nil {
			return skipped, err
		}

		res := o.evaluate(ctx, site, c, pg, content, contentErr, metrics, metricsErr)
		if ctx.Err() != nil {
			return skipped, ctx.Err()
		}
		if err := emit(res); err != nil {
			return skipped, err
		}
	}
	return skipped, nil
}

// evaluate dispatches one criterion and converts any failure into an ERROR
// result. This is the panic/error boundary: a bad criterion never takes down
// the run.
func (o *Orchestrator) evaluate(ctx context.Context, site models.Site, c models.Criterion, pg page.Page, content string, contentErr error, metrics *page.Metrics, metricsErr error) (res models.Result) {
	defer func() {
		if r := recover(); r != nil {
			o.opts.logger.Log("site %d criterion %d: panic: %v", site.ID, c.ID, r)
			res = errorResult(site, c, pg.URL(), fmt.Errorf("evaluator panic: %v", r))
		}
	}()

	if c.CheckKind == models.CheckSemantic && contentErr != nil {
		return errorResult(site, c, pg.URL(), fmt.Errorf("content extraction: %w", contentErr))
	}
	if c.CheckKind.Deterministic() && metricsErr != nil {
		return errorResult(site, c, pg.URL(), fmt.Errorf("metrics extraction: %w", metricsErr))
	}

	fn, err := o.registry.Resolve(c)
	if err != nil {
		return errorResult(site, c, pg.URL(), err)
	}

	in := evaluator.Input{
		Site:      site,
		Criterion: c,
		PageURL:   pg.URL(),
		Content:   content,
		Metrics:   metrics,
		Page:      pg,
	}
	out, err := fn(ctx, in)
	if err != nil {
		return errorResult(site, c, pg.URL(), err)
	}
	return out
}

// checkHalt reports cancellation or a stop-file request.
func (o *Orchestrator) checkHalt(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if o.opts.stop.ShouldStop() {
		return ErrStopRequested
	}
	return nil
}

// errorResult builds the ERROR row recorded when an evaluation could not be
// completed.
func errorResult(site models.Site, c models.Criterion, url string, err error) models.Result {
	return models.Result{
		SiteID:       site.ID,
		CriterionID:  c.ID,
		Verdict:      models.VerdictError,
		Confidence:   0.0,
		CheckedAt:    time.Now(),
		CheckedURL:   url,
		ErrorMessage: err.Error(),
	}
}
