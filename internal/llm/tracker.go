package llm

import (
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
)

// TokenTracker tracks token usage across API calls.
type TokenTracker struct {
	mu        sync.Mutex
	inputTok  int64
	outputTok int64
	calls     int
}

// NewTokenTracker creates a new token tracker.
func NewTokenTracker() *TokenTracker {
	return &TokenTracker{}
}

// Add records token usage from an API call.
func (t *TokenTracker) Add(input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inputTok += input
	t.outputTok += output
	t.calls++
}

// Total returns the total input and output tokens tracked.
func (t *TokenTracker) Total() (input, output int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inputTok, t.outputTok
}

// Calls returns the number of API calls made.
func (t *TokenTracker) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Cost estimates the cost in USD based on current Claude pricing.
func (t *TokenTracker) Cost(model anthropic.Model) float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Per 1M tokens, October 2024 pricing.
	inputPerM, outputPerM := 3.00, 15.00
	name := strings.ToLower(string(model))
	if strings.Contains(name, "haiku") {
		inputPerM, outputPerM = 0.25, 1.25
	}

	return float64(t.inputTok)/1_000_000*inputPerM +
		float64(t.outputTok)/1_000_000*outputPerM
}
