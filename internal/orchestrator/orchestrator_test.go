package orchestrator

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ShayCichocki/irsight/internal/checkpoint"
	"github.com/ShayCichocki/irsight/internal/evaluator"
	"github.com/ShayCichocki/irsight/internal/page"
	"github.com/ShayCichocki/irsight/internal/retry"
	"github.com/ShayCichocki/irsight/pkg/models"
)

// fakeStore is an in-memory ResultStore mirroring the checkpoint semantics:
// first write per pair wins.
type fakeStore struct {
	mu       sync.Mutex
	results  map[checkpoint.Pair]models.Result
	meta     map[string]string
	saves    int
	onRecord func(n int)
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		results: make(map[checkpoint.Pair]models.Result),
		meta:    make(map[string]string),
	}
}

func (s *fakeStore) Record(r models.Result) error {
	s.mu.Lock()
	p := checkpoint.Pair{SiteID: r.SiteID, CriterionID: r.CriterionID}
	if _, ok := s.results[p]; !ok {
		s.results[p] = r
	}
	n := len(s.results)
	cb := s.onRecord
	s.mu.Unlock()
	if cb != nil {
		cb(n)
	}
	return nil
}

func (s *fakeStore) CompletedPairs() (map[checkpoint.Pair]bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	done := make(map[checkpoint.Pair]bool, len(s.results))
	for p := range s.results {
		done[p] = true
	}
	return done, nil
}

func (s *fakeStore) SetMeta(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.meta[key] = value
	return nil
}

func (s *fakeStore) TouchSavedAt(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	return nil
}

func (s *fakeStore) result(siteID, criterionID int) (models.Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.results[checkpoint.Pair{SiteID: siteID, CriterionID: criterionID}]
	return r, ok
}

func (s *fakeStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// fakePage serves fixed assets.
type fakePage struct {
	url     string
	html    string
	metrics *page.Metrics
}

func (p *fakePage) URL() string { return p.url }

func (p *fakePage) Content(ctx context.Context) (string, error) { return p.html, nil }

func (p *fakePage) ExtractMetrics(ctx context.Context) (*page.Metrics, error) {
	return p.metrics, nil
}

func (p *fakePage) CaptureEvidence(ctx context.Context, selector string) (string, error) {
	return "evidence/fake.png", nil
}

func (p *fakePage) Close(ctx context.Context) error { return nil }

// fakeBrowser opens fakePages, failing for URLs in failures.
type fakeBrowser struct {
	mu       sync.Mutex
	opens    int
	failures map[string]error
}

func (b *fakeBrowser) Open(ctx context.Context, url string) (page.Page, error) {
	b.mu.Lock()
	b.opens++
	b.mu.Unlock()
	if err, ok := b.failures[url]; ok {
		return nil, err
	}
	white := &page.RGB{R: 255, G: 255, B: 255}
	black := &page.RGB{R: 0, G: 0, B: 0}
	return &fakePage{
		url:  url,
		html: "<html><body><p>A message from our CEO about strategy.</p></body></html>",
		metrics: &page.Metrics{
			URL:            url,
			ViewportHeight: 1000,
			Styles:         []page.ElementStyle{{Selector: "p", Color: black, Background: white}},
			Coverage: map[string]page.CoverageCount{
				page.CoverageImageAlt: {Matching: 10, Total: 10},
			},
		},
	}, nil
}

func (b *fakeBrowser) Close(ctx context.Context) error { return nil }

func (b *fakeBrowser) openCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.opens
}

// countingClient always answers found=true.
type countingClient struct {
	mu    sync.Mutex
	calls int
}

func (c *countingClient) Send(ctx context.Context, prompt, content string) (string, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return `{"found": true, "confidence": 0.85, "details": "present"}`, nil
}

func (c *countingClient) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// blockingClient signals entry on entered, then parks until the call's
// context is canceled.
type blockingClient struct {
	entered chan struct{}
}

func (c *blockingClient) Send(ctx context.Context, prompt, content string) (string, error) {
	c.entered <- struct{}{}
	<-ctx.Done()
	return "", ctx.Err()
}

func fastPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:       3,
		TransientAttempts: 2,
		BaseDelay:         time.Millisecond,
		RateLimitCooldown: time.Millisecond,
	}
}

func testCriteria() []models.Criterion {
	return []models.Criterion{
		{ID: 1, Name: "contrast", Category: "accessibility", CheckKind: models.CheckVisual, EvaluatorKey: "contrast_ratio"},
		{ID: 2, Name: "management message", Category: "content", CheckKind: models.CheckSemantic, Instruction: "look for it"},
		{ID: 3, Name: "uptime above 99.9%", Category: "performance", CheckKind: models.CheckUnsupported},
	}
}

func testSites(n int) []models.Site {
	sites := make([]models.Site, 0, n)
	for i := 1; i <= n; i++ {
		sites = append(sites, models.Site{
			ID:   i,
			Name: "Site",
			URL:  "https://example.com/" + string(rune('a'+i-1)),
		})
	}
	return sites
}

func newTestOrchestrator(browser page.Browser, store ResultStore, client evaluator.SemanticClient, opts ...Option) *Orchestrator {
	sem := evaluator.NewSemantic(client, retry.NewGate(fastPolicy()))
	registry := evaluator.NewRegistry(sem)
	opts = append([]Option{WithRetryPolicy(fastPolicy())}, opts...)
	return New(browser, registry, store, opts...)
}

func TestRun_RecordsEveryPair(t *testing.T) {
	store := newFakeStore()
	browser := &fakeBrowser{}
	client := &countingClient{}
	o := newTestOrchestrator(browser, store, client)

	sites := testSites(2)
	sum, err := o.Run(context.Background(), sites, testCriteria())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if store.count() != 6 {
		t.Errorf("recorded %d results, want 6", store.count())
	}
	if sum.Total != 6 || sum.Evaluated != 6 || sum.Skipped != 0 {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Counts[models.VerdictPass] != 4 {
		t.Errorf("PASS count = %d, want 4", sum.Counts[models.VerdictPass])
	}
	if sum.Counts[models.VerdictNotSupported] != 2 {
		t.Errorf("NOT_SUPPORTED count = %d, want 2", sum.Counts[models.VerdictNotSupported])
	}
	if sum.RunID == "" {
		t.Error("summary missing run id")
	}
	if cs := sum.Categories["accessibility"]; cs.Pass != 2 || cs.Total != 2 {
		t.Errorf("accessibility tally = %+v, want 2/2", cs)
	}
	if cs := sum.Categories["performance"]; cs.Pass != 0 || cs.Total != 2 {
		t.Errorf("performance tally = %+v, want 0/2", cs)
	}

	// Deterministic confidence must be exactly 1.0.
	r, ok := store.result(1, 1)
	if !ok || r.Confidence != 1.0 {
		t.Errorf("deterministic result = %+v", r)
	}
	// NOT_SUPPORTED confidence must be exactly 0.0.
	r, ok = store.result(1, 3)
	if !ok || r.Confidence != 0.0 || r.Verdict != models.VerdictNotSupported {
		t.Errorf("unsupported result = %+v", r)
	}
}

func TestRun_ResumeSkipsCompleted(t *testing.T) {
	store := newFakeStore()
	browser := &fakeBrowser{}
	client := &countingClient{}

	// Pretend a previous run finished site 1 entirely.
	for _, c := range testCriteria() {
		store.Record(models.Result{SiteID: 1, CriterionID: c.ID, Verdict: models.VerdictPass})
	}

	o := newTestOrchestrator(browser, store, client)
	sum, err := o.Run(context.Background(), testSites(2), testCriteria())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if sum.Skipped != 3 {
		t.Errorf("skipped = %d, want 3", sum.Skipped)
	}
	if sum.Evaluated != 3 {
		t.Errorf("evaluated = %d, want 3", sum.Evaluated)
	}
	// Site 1 needs no page and no reasoning call.
	if browser.openCount() != 1 {
		t.Errorf("opens = %d, want 1", browser.openCount())
	}
	if client.callCount() != 1 {
		t.Errorf("semantic calls = %d, want 1", client.callCount())
	}
}

func TestRun_UnavailableSiteFansOutErrors(t *testing.T) {
	store := newFakeStore()
	browser := &fakeBrowser{failures: map[string]error{
		"https://example.com/a": &page.UnavailableError{URL: "https://example.com/a", StatusCode: 404},
	}}
	client := &countingClient{}
	o := newTestOrchestrator(browser, store, client)

	sum, err := o.Run(context.Background(), testSites(1), testCriteria())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// Every pair still gets a row: 2 ERRORs plus the NOT_SUPPORTED.
	if store.count() != 3 {
		t.Errorf("recorded %d results, want 3", store.count())
	}
	if sum.Counts[models.VerdictError] != 2 {
		t.Errorf("ERROR count = %d, want 2", sum.Counts[models.VerdictError])
	}
	if sum.Counts[models.VerdictNotSupported] != 1 {
		t.Errorf("NOT_SUPPORTED count = %d, want 1", sum.Counts[models.VerdictNotSupported])
	}

	r, _ := store.result(1, 2)
	if r.Verdict != models.VerdictError || !strings.Contains(r.ErrorMessage, "page unavailable") {
		t.Errorf("semantic result for dead site = %+v", r)
	}
	if client.callCount() != 0 {
		t.Errorf("semantic calls = %d, want 0 for a dead site", client.callCount())
	}
}

func TestRun_BadCatalogFailsBeforeAnySite(t *testing.T) {
	store := newFakeStore()
	browser := &fakeBrowser{}
	o := newTestOrchestrator(browser, store, &countingClient{})

	criteria := []models.Criterion{
		{ID: 1, Name: "bogus", CheckKind: models.CheckVisual, EvaluatorKey: "unknown_key"},
	}
	if _, err := o.Run(context.Background(), testSites(2), criteria); err == nil {
		t.Fatal("expected catalog validation error")
	}
	if browser.openCount() != 0 {
		t.Errorf("opens = %d, want 0 (validation must precede any site)", browser.openCount())
	}
	if store.count() != 0 {
		t.Errorf("recorded %d results, want 0", store.count())
	}
}

func TestRun_Parallel(t *testing.T) {
	store := newFakeStore()
	browser := &fakeBrowser{}
	client := &countingClient{}
	o := newTestOrchestrator(browser, store, client, WithParallel(3))

	sites := testSites(5)
	sum, err := o.Run(context.Background(), sites, testCriteria())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if store.count() != 15 {
		t.Errorf("recorded %d results, want 15", store.count())
	}
	if sum.Evaluated != 15 {
		t.Errorf("evaluated = %d, want 15", sum.Evaluated)
	}
	if sum.Counts[models.VerdictPass] != 10 {
		t.Errorf("PASS count = %d, want 10", sum.Counts[models.VerdictPass])
	}
}

func TestRun_CancellationKeepsRecordedResults(t *testing.T) {
	store := newFakeStore()
	browser := &fakeBrowser{}
	client := &countingClient{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// Cancel once the first site's results are in.
	store.onRecord = func(n int) {
		if n >= 3 {
			cancel()
		}
	}

	o := newTestOrchestrator(browser, store, client)
	_, err := o.Run(ctx, testSites(3), testCriteria())
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v, want context.Canceled", err)
	}

	if store.count() < 3 {
		t.Errorf("recorded %d results, want at least the completed site", store.count())
	}
	if store.count() > 6 {
		t.Errorf("recorded %d results after cancel, want no new sites started", store.count())
	}
}

func TestRun_ParallelCancellationTerminates(t *testing.T) {
	store := newFakeStore()
	browser := &fakeBrowser{}
	client := &blockingClient{entered: make(chan struct{}, 4)}
	o := newTestOrchestrator(browser, store, client, WithParallel(2))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := o.Run(ctx, testSites(5), testCriteria())
		done <- err
	}()

	// Wait until both workers are parked inside a reasoning call; the
	// dispatcher is then blocked handing out the third site. Cancellation
	// must still unwind the whole run.
	<-client.entered
	<-client.entered
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run error = %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestRun_ParallelStopFileHalts(t *testing.T) {
	store := newFakeStore()
	browser := &fakeBrowser{}
	path := filepath.Join(t.TempDir(), "STOP")
	sw := NewStopWatcher(path)
	t.Cleanup(sw.Close)

	// Drop the stop file once the first results land. Workers notice it
	// between criteria while the dispatcher may be parked handing out the
	// next site; the run must still wind down with everything saved.
	store.onRecord = func(n int) {
		if n == 2 {
			if err := os.WriteFile(path, []byte("stop"), 0644); err != nil {
				t.Errorf("write stop file: %v", err)
			}
		}
	}

	o := newTestOrchestrator(browser, store, &countingClient{},
		WithParallel(2), WithStopWatcher(sw))

	type outcome struct {
		sum *Summary
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		sum, err := o.Run(context.Background(), testSites(6), testCriteria())
		done <- outcome{sum, err}
	}()

	select {
	case out := <-done:
		if out.err != nil {
			t.Fatalf("Run failed: %v", out.err)
		}
		if !out.sum.Stopped {
			t.Error("summary should report the stop request")
		}
		if store.count() < 2 {
			t.Errorf("recorded %d results, want the pre-stop results kept", store.count())
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the stop request")
	}
}

func TestRun_StopFileHaltsGracefully(t *testing.T) {
	store := newFakeStore()
	browser := &fakeBrowser{}
	o := newTestOrchestrator(browser, store, &countingClient{},
		WithStopWatcher(newStoppedWatcher(t)))

	sum, err := o.Run(context.Background(), testSites(3), testCriteria())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !sum.Stopped {
		t.Error("summary should report the stop request")
	}
	if sum.Evaluated != 0 {
		t.Errorf("evaluated = %d, want 0 when stopped before the first site", sum.Evaluated)
	}
}

// newStoppedWatcher returns a watcher whose stop file already exists.
func newStoppedWatcher(t *testing.T) *StopWatcher {
	t.Helper()
	path := filepath.Join(t.TempDir(), "STOP")
	if err := os.WriteFile(path, []byte("stop"), 0644); err != nil {
		t.Fatalf("write stop file: %v", err)
	}
	sw := NewStopWatcher(path)
	t.Cleanup(sw.Close)
	return sw
}

func TestStopWatcher(t *testing.T) {
	path := filepath.Join(t.TempDir(), "STOP")
	sw := NewStopWatcher(path)
	defer sw.Close()

	if sw.ShouldStop() {
		t.Error("watcher should not report stop before the file exists")
	}

	if err := os.WriteFile(path, []byte("stop"), 0644); err != nil {
		t.Fatalf("write stop file: %v", err)
	}
	// ShouldStop stats the file directly, so no watcher latency to wait out.
	if !sw.ShouldStop() {
		t.Error("watcher should report stop once the file exists")
	}

	sw.Clear()
	if sw.ShouldStop() {
		t.Error("watcher should reset after Clear")
	}
}
