package orchestrator

import (
	"github.com/ShayCichocki/irsight/internal/retry"
)

// Option configures an Orchestrator. Use With* functions to create Options.
type Option func(*options)

// options holds all optional configuration.
type options struct {
	checkpointInterval int
	parallel           int
	policy             retry.Policy
	logger             *DebugLogger
	stop               *StopWatcher
}

// defaultOptions returns the baseline configuration: sequential processing,
// checkpoint after every site, default retry policy.
func defaultOptions() *options {
	return &options{
		checkpointInterval: 1,
		parallel:           1,
		policy:             retry.DefaultPolicy(),
		logger:             NopLogger(),
	}
}

// WithCheckpointInterval sets how many sites to process between checkpoint
// timestamp updates.
func WithCheckpointInterval(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.checkpointInterval = n
		}
	}
}

// WithParallel sets the number of concurrent site workers. 1 means
// sequential processing.
func WithParallel(n int) Option {
	return func(o *options) {
		if n >= 1 {
			o.parallel = n
		}
	}
}

// WithRetryPolicy sets the retry policy used for page access and the
// reasoning service.
func WithRetryPolicy(p retry.Policy) Option {
	return func(o *options) { o.policy = p }
}

// WithLogger sets the debug logger.
func WithLogger(l *DebugLogger) Option {
	return func(o *options) { o.logger = l }
}

// WithStopWatcher sets the stop-file watcher checked between criteria.
func WithStopWatcher(sw *StopWatcher) Option {
	return func(o *options) { o.stop = sw }
}
