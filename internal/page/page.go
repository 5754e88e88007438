// Package page defines the page-access capability the audit core consumes:
// opening URLs, extracting structural and visual metrics, and capturing
// evidence screenshots. The core depends only on the interfaces here; a
// chromedp-backed implementation is provided for production wiring.
package page

import (
	"context"
	"errors"
	"fmt"

	"github.com/ShayCichocki/irsight/internal/retry"
)

// Browser opens pages. Implementations need not be safe for sharing a single
// Page across concurrent operations; each site worker owns its own pages.
type Browser interface {
	// Open navigates to url and returns a page handle. It fails with an
	// *UnavailableError on timeout, network failure, or a 4xx/5xx status.
	Open(ctx context.Context, url string) (Page, error)
	// Close releases the browser.
	Close(ctx context.Context) error
}

// Page is a navigated page handle.
type Page interface {
	// URL returns the page's final URL.
	URL() string
	// Content returns the page's HTML markup.
	Content(ctx context.Context) (string, error)
	// ExtractMetrics evaluates the bundled extraction script against the page
	// and returns structural/visual metrics.
	ExtractMetrics(ctx context.Context) (*Metrics, error)
	// CaptureEvidence screenshots the element matching selector and returns
	// the stored file path.
	CaptureEvidence(ctx context.Context, selector string) (string, error)
	// Close releases the page handle.
	Close(ctx context.Context) error
}

// UnavailableError indicates a page could not be obtained.
type UnavailableError struct {
	// URL is the page that failed to load.
	URL string
	// StatusCode is the HTTP status, or 0 for network-level failures.
	StatusCode int
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *UnavailableError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("page unavailable (%d): %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("page unavailable: %s: %v", e.URL, e.Err)
}

// Unwrap returns the underlying error.
func (e *UnavailableError) Unwrap() error {
	return e.Err
}

// Classify maps a page-access error to a retry class: 4xx statuses are
// terminal, timeouts and network failures are retryable.
func Classify(err error) retry.Class {
	var unavail *UnavailableError
	if errors.As(err, &unavail) {
		switch {
		case unavail.StatusCode >= 400 && unavail.StatusCode < 500:
			return retry.ClassNotFound
		case unavail.StatusCode >= 500:
			return retry.ClassTransient
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return retry.ClassTimeout
	}
	if errors.Is(err, context.Canceled) {
		return retry.ClassFatal
	}
	return retry.ClassNetwork
}
