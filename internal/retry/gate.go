// Package retry wraps network- and service-bound calls with exponential
// backoff and failure-class-specific policy.
package retry

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Class categorizes a failure for retry-policy purposes.
type Class int

const (
	// ClassNone means no failure occurred.
	ClassNone Class = iota
	// ClassNetwork is a connection-level failure.
	ClassNetwork
	// ClassTimeout is a page-load or request timeout.
	ClassTimeout
	// ClassRateLimit is an upstream rate-limit signal.
	ClassRateLimit
	// ClassTransient is any other failure worth a single retry.
	ClassTransient
	// ClassNotFound is a 4xx resource-not-found condition. Never retried.
	ClassNotFound
	// ClassElementMissing means a required page element is absent. Never
	// retried; the caller maps it to FAIL when the absence is the
	// criterion's subject.
	ClassElementMissing
	// ClassFatal is an unrecoverable failure. Never retried.
	ClassFatal
)

// String returns a human-readable name for the class.
func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassNetwork:
		return "network"
	case ClassTimeout:
		return "timeout"
	case ClassRateLimit:
		return "rate_limit"
	case ClassTransient:
		return "transient"
	case ClassNotFound:
		return "not_found"
	case ClassElementMissing:
		return "element_missing"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Retryable returns true for classes the gate will retry.
func (c Class) Retryable() bool {
	switch c {
	case ClassNetwork, ClassTimeout, ClassRateLimit, ClassTransient:
		return true
	default:
		return false
	}
}

// Classifier maps an operation error to a failure class.
type Classifier func(error) Class

// Policy configures attempt counts and delays per failure class.
type Policy struct {
	// MaxAttempts bounds attempts for network, timeout, and rate-limit
	// failures (default 3).
	MaxAttempts int
	// TransientAttempts bounds attempts for transient failures (default 2,
	// i.e. one retry).
	TransientAttempts int
	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay time.Duration
	// RateLimitCooldown is an extra fixed wait imposed after a rate-limit
	// signal, independent of the backoff schedule.
	RateLimitCooldown time.Duration
}

// DefaultPolicy returns the standard policy: 3 attempts, 2s base delay,
// 60s rate-limit cooldown.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:       3,
		TransientAttempts: 2,
		BaseDelay:         2 * time.Second,
		RateLimitCooldown: 60 * time.Second,
	}
}

// attemptsFor returns the attempt bound for a failure class.
func (p Policy) attemptsFor(c Class) int {
	if c == ClassTransient {
		return p.TransientAttempts
	}
	return p.MaxAttempts
}

// TerminalError is returned when retries are exhausted or the failure is not
// retryable. It carries the last failure's classification and message.
type TerminalError struct {
	// Class is the classification of the last failure.
	Class Class
	// Attempts is how many attempts were made.
	Attempts int
	// Err is the last underlying error.
	Err error
}

// Error implements the error interface.
func (e *TerminalError) Error() string {
	return fmt.Sprintf("%s failure after %d attempt(s): %v", e.Class, e.Attempts, e.Err)
}

// Unwrap returns the underlying error.
func (e *TerminalError) Unwrap() error {
	return e.Err
}

// Gate executes operations under the retry policy. Each worker owns its own
// Gate; a Gate holds no shared mutable state beyond its policy.
type Gate struct {
	policy Policy
	// sleep is replaceable in tests.
	sleep func(context.Context, time.Duration) error
	logf  func(format string, args ...interface{})
}

// NewGate creates a gate with the given policy.
func NewGate(policy Policy) *Gate {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.TransientAttempts < 1 {
		policy.TransientAttempts = 1
	}
	return &Gate{
		policy: policy,
		sleep:  sleepCtx,
		logf:   log.Printf,
	}
}

// Execute runs op under the gate's policy. Retryable failures are reattempted
// with doubling backoff up to the class's attempt bound; rate-limit failures
// additionally wait the fixed cooldown before the next attempt. Non-retryable
// failures return immediately. The returned error is always a *TerminalError
// when op never succeeded.
func (g *Gate) Execute(ctx context.Context, op func(context.Context) error, classify Classifier) error {
	var lastErr error
	var lastClass Class

	attempt := 0
	for {
		attempt++

		err := op(ctx)
		if err == nil {
			return nil
		}

		lastErr = err
		lastClass = classify(err)

		if !lastClass.Retryable() {
			return &TerminalError{Class: lastClass, Attempts: attempt, Err: lastErr}
		}
		if attempt >= g.policy.attemptsFor(lastClass) {
			return &TerminalError{Class: lastClass, Attempts: attempt, Err: lastErr}
		}

		delay := g.policy.BaseDelay << (attempt - 1)
		if lastClass == ClassRateLimit {
			delay += g.policy.RateLimitCooldown
		}
		g.logf("[retry] %s failure (attempt %d), waiting %s: %v", lastClass, attempt, delay, err)

		if err := g.sleep(ctx, delay); err != nil {
			return &TerminalError{Class: lastClass, Attempts: attempt, Err: lastErr}
		}
	}
}

// Do runs a value-returning operation under the gate. On terminal failure the
// zero value is returned alongside the *TerminalError.
func Do[T any](ctx context.Context, g *Gate, classify Classifier, op func(context.Context) (T, error)) (T, error) {
	var out T
	err := g.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	}, classify)
	if err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

// sleepCtx waits for d or until the context is canceled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
