package page

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// ChromeConfig configures the chromedp-backed browser.
type ChromeConfig struct {
	// Headless runs the browser without a window (default for audits).
	Headless bool
	// UserAgent overrides the browser user agent when non-empty.
	UserAgent string
	// NavigationTimeout bounds a single page load (default 30s).
	NavigationTimeout time.Duration
	// DelayAfterLoad is an extra settle wait after navigation completes.
	DelayAfterLoad time.Duration
	// EvidenceDir is where element screenshots are stored.
	EvidenceDir string
}

// ChromeBrowser is a Browser backed by a headless Chrome instance.
type ChromeBrowser struct {
	cfg         ChromeConfig
	allocCtx    context.Context
	allocCancel context.CancelFunc
	rootCtx     context.Context
	rootCancel  context.CancelFunc
}

// NewChromeBrowser launches a browser process and returns a Browser.
func NewChromeBrowser(cfg ChromeConfig) (*ChromeBrowser, error) {
	if cfg.NavigationTimeout == 0 {
		cfg.NavigationTimeout = 30 * time.Second
	}
	if cfg.EvidenceDir == "" {
		cfg.EvidenceDir = filepath.Join("output", "evidence")
	}
	if err := os.MkdirAll(cfg.EvidenceDir, 0755); err != nil {
		return nil, fmt.Errorf("create evidence directory: %w", err)
	}

	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts, chromedp.Flag("headless", cfg.Headless))
	opts = append(opts, chromedp.Flag("disable-blink-features", "AutomationControlled"))
	opts = append(opts, chromedp.WindowSize(1920, 1080))
	if cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(cfg.UserAgent))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	rootCtx, rootCancel := chromedp.NewContext(allocCtx)

	// Start the browser eagerly so launch failures surface here, not on the
	// first Open.
	if err := chromedp.Run(rootCtx); err != nil {
		rootCancel()
		allocCancel()
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	return &ChromeBrowser{
		cfg:         cfg,
		allocCtx:    allocCtx,
		allocCancel: allocCancel,
		rootCtx:     rootCtx,
		rootCancel:  rootCancel,
	}, nil
}

// Open navigates a new tab to url.
func (b *ChromeBrowser) Open(ctx context.Context, url string) (Page, error) {
	tabCtx, tabCancel := chromedp.NewContext(b.rootCtx)

	navCtx, navCancel := context.WithTimeout(tabCtx, b.cfg.NavigationTimeout)
	defer navCancel()

	resp, err := chromedp.RunResponse(navCtx, chromedp.Navigate(url))
	if err != nil {
		tabCancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &UnavailableError{URL: url, Err: err}
	}
	if resp != nil && resp.Status >= 400 {
		tabCancel()
		return nil, &UnavailableError{URL: url, StatusCode: int(resp.Status)}
	}

	if b.cfg.DelayAfterLoad > 0 {
		_ = chromedp.Run(tabCtx, chromedp.Sleep(b.cfg.DelayAfterLoad))
	}

	return &chromePage{
		url:         url,
		tabCtx:      tabCtx,
		tabCancel:   tabCancel,
		evidenceDir: b.cfg.EvidenceDir,
	}, nil
}

// Close shuts the browser down.
func (b *ChromeBrowser) Close(ctx context.Context) error {
	b.rootCancel()
	b.allocCancel()
	return nil
}

// chromePage is a Page bound to one browser tab.
type chromePage struct {
	url         string
	tabCtx      context.Context
	tabCancel   context.CancelFunc
	evidenceDir string
}

// URL returns the navigated URL.
func (p *chromePage) URL() string {
	return p.url
}

// Content returns the page's full HTML.
func (p *chromePage) Content(ctx context.Context) (string, error) {
	var html string
	if err := chromedp.Run(p.tabCtx, chromedp.OuterHTML("html", &html)); err != nil {
		return "", fmt.Errorf("extract html for %s: %w", p.url, err)
	}
	return html, nil
}

// ExtractMetrics runs the bundled extraction script in the page.
func (p *chromePage) ExtractMetrics(ctx context.Context) (*Metrics, error) {
	var m Metrics
	if err := chromedp.Run(p.tabCtx, chromedp.Evaluate(metricsScript, &m)); err != nil {
		return nil, fmt.Errorf("extract metrics for %s: %w", p.url, err)
	}
	m.URL = p.url
	return &m, nil
}

// CaptureEvidence screenshots the first element matching selector.
func (p *chromePage) CaptureEvidence(ctx context.Context, selector string) (string, error) {
	var buf []byte
	if err := chromedp.Run(p.tabCtx, chromedp.Screenshot(selector, &buf, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("screenshot %q on %s: %w", selector, p.url, err)
	}

	name := fmt.Sprintf("%d_%s.png", time.Now().UnixMilli(), sanitizeSelector(selector))
	path := filepath.Join(p.evidenceDir, name)
	if err := os.WriteFile(path, buf, 0644); err != nil {
		return "", fmt.Errorf("save evidence: %w", err)
	}
	return path, nil
}

// Close releases the tab.
func (p *chromePage) Close(ctx context.Context) error {
	p.tabCancel()
	return nil
}

// sanitizeSelector turns a CSS selector into a filename-safe token.
func sanitizeSelector(selector string) string {
	replacer := strings.NewReplacer(
		"#", "id-", ".", "cls-", " ", "_", ">", "_", "[", "", "]", "",
		"=", "-", "\"", "", "'", "", "/", "_", ":", "-", "*", "",
	)
	s := replacer.Replace(selector)
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
