package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/ShayCichocki/irsight/internal/retry"
)

func TestKindString(t *testing.T) {
	tests := []struct {
		kind Kind
		want string
	}{
		{KindRateLimited, "rate_limited"},
		{KindTimeout, "timeout"},
		{KindTransient, "transient"},
		{KindFatal, "fatal"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Kind(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	err := &Error{Kind: KindTransient, Err: cause}

	if !errors.Is(err, cause) {
		t.Error("wrapped error should unwrap to its cause")
	}
	// Wrapping once more must still expose the classified error.
	wrapped := fmt.Errorf("call failed: %w", err)
	var serr *Error
	if !errors.As(wrapped, &serr) || serr.Kind != KindTransient {
		t.Errorf("errors.As through a wrap failed: %v", wrapped)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Class
	}{
		{"rate limited", &Error{Kind: KindRateLimited, Err: errors.New("429")}, retry.ClassRateLimit},
		{"timeout", &Error{Kind: KindTimeout, Err: errors.New("deadline")}, retry.ClassTimeout},
		{"transient", &Error{Kind: KindTransient, Err: errors.New("502")}, retry.ClassTransient},
		{"fatal", &Error{Kind: KindFatal, Err: errors.New("bad key")}, retry.ClassFatal},
		{"wrapped classified", fmt.Errorf("send: %w", &Error{Kind: KindRateLimited, Err: errors.New("429")}), retry.ClassRateLimit},
		{"context canceled", context.Canceled, retry.ClassFatal},
		{"unknown error", errors.New("mystery"), retry.ClassTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestWrapAPIErrorNonSDK(t *testing.T) {
	var serr *Error

	err := wrapAPIError(context.DeadlineExceeded)
	if !errors.As(err, &serr) || serr.Kind != KindTimeout {
		t.Errorf("deadline exceeded wrapped as %v, want timeout", err)
	}

	err = wrapAPIError(errors.New("connection reset"))
	if !errors.As(err, &serr) || serr.Kind != KindTransient {
		t.Errorf("generic error wrapped as %v, want transient", err)
	}
}
