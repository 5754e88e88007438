package llm

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/ShayCichocki/irsight/internal/retry"
)

// Kind categorizes a semantic-service failure.
type Kind int

const (
	// KindRateLimited is an upstream 429.
	KindRateLimited Kind = iota
	// KindTimeout is a request deadline or network timeout.
	KindTimeout
	// KindTransient is a retriable server-side failure (5xx, connection drop).
	KindTransient
	// KindFatal is an unrecoverable failure (auth, bad request).
	KindFatal
)

// String returns a human-readable name for the kind.
func (k Kind) String() string {
	switch k {
	case KindRateLimited:
		return "rate_limited"
	case KindTimeout:
		return "timeout"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is a classified semantic-service failure. The service never raises
// an untyped error toward the core.
type Error struct {
	Kind Kind
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("semantic service %s: %v", e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// wrapAPIError converts an SDK error into a classified *Error.
func wrapAPIError(err error) error {
	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch {
		case apierr.StatusCode == 429:
			return &Error{Kind: KindRateLimited, Err: err}
		case apierr.StatusCode == 408 || apierr.StatusCode == 504:
			return &Error{Kind: KindTimeout, Err: err}
		case apierr.StatusCode >= 500:
			return &Error{Kind: KindTransient, Err: err}
		default:
			return &Error{Kind: KindFatal, Err: err}
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &Error{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return &Error{Kind: KindTimeout, Err: err}
		}
		return &Error{Kind: KindTransient, Err: err}
	}

	return &Error{Kind: KindTransient, Err: err}
}

// Classify maps a semantic-service error to a retry class. It is the
// Classifier handed to the retry gate for all semantic calls.
func Classify(err error) retry.Class {
	var serr *Error
	if errors.As(err, &serr) {
		switch serr.Kind {
		case KindRateLimited:
			return retry.ClassRateLimit
		case KindTimeout:
			return retry.ClassTimeout
		case KindTransient:
			return retry.ClassTransient
		case KindFatal:
			return retry.ClassFatal
		}
	}
	if errors.Is(err, context.Canceled) {
		return retry.ClassFatal
	}
	return retry.ClassTransient
}
