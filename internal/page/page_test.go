package page

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ShayCichocki/irsight/internal/retry"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want retry.Class
	}{
		{"not found", &UnavailableError{URL: "https://a.example", StatusCode: 404}, retry.ClassNotFound},
		{"forbidden", &UnavailableError{URL: "https://a.example", StatusCode: 403}, retry.ClassNotFound},
		{"server error", &UnavailableError{URL: "https://a.example", StatusCode: 503}, retry.ClassTransient},
		{"network failure", &UnavailableError{URL: "https://a.example", Err: errors.New("refused")}, retry.ClassNetwork},
		{"wrapped unavailable", fmt.Errorf("open: %w", &UnavailableError{StatusCode: 404}), retry.ClassNotFound},
		{"timeout", context.DeadlineExceeded, retry.ClassTimeout},
		{"canceled", context.Canceled, retry.ClassFatal},
		{"unknown", errors.New("dns failure"), retry.ClassNetwork},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestUnavailableErrorMessage(t *testing.T) {
	withStatus := &UnavailableError{URL: "https://a.example", StatusCode: 404}
	if !strings.Contains(withStatus.Error(), "404") {
		t.Errorf("error %q should include the status code", withStatus.Error())
	}

	cause := errors.New("connection refused")
	withCause := &UnavailableError{URL: "https://a.example", Err: cause}
	if !errors.Is(withCause, cause) {
		t.Error("UnavailableError should unwrap to its cause")
	}
}

func TestSanitizeSelector(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"#main", "id-main"},
		{".hero", "cls-hero"},
		{"nav a", "nav_a"},
		{`[class*="hero"]`, "class-hero"},
	}
	for _, tt := range tests {
		if got := sanitizeSelector(tt.in); got != tt.want {
			t.Errorf("sanitizeSelector(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := sanitizeSelector(strings.Repeat("a", 100))
	if len(long) != 60 {
		t.Errorf("long selector truncated to %d chars, want 60", len(long))
	}
}
