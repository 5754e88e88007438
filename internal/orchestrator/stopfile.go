package orchestrator

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// StopWatcher watches for a stop file whose appearance requests a graceful
// halt of the run. The current site finishes; no new site is started and no
// new criterion is dispatched.
type StopWatcher struct {
	path string

	mu      sync.RWMutex
	stopped bool

	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewStopWatcher starts watching for the stop file at path. A watcher that
// cannot be created falls back to stat-based polling inside ShouldStop.
func NewStopWatcher(path string) *StopWatcher {
	sw := &StopWatcher{
		path: path,
		done: make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return sw
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return sw
	}
	sw.watcher = watcher

	go sw.watch()
	return sw
}

// watch monitors the stop file's directory for its creation.
func (sw *StopWatcher) watch() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) == filepath.Clean(sw.path) &&
				(event.Op&fsnotify.Create != 0 || event.Op&fsnotify.Write != 0) {
				sw.mu.Lock()
				sw.stopped = true
				sw.mu.Unlock()
			}
		case <-sw.watcher.Errors:
			// Keep watching.
		}
	}
}

// ShouldStop returns true once the stop file has appeared.
func (sw *StopWatcher) ShouldStop() bool {
	if sw == nil {
		return false
	}

	// Check the file directly in case the watcher missed it.
	if _, err := os.Stat(sw.path); err == nil {
		sw.mu.Lock()
		sw.stopped = true
		sw.mu.Unlock()
	}

	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.stopped
}

// Clear removes the stop file and resets the watcher state.
func (sw *StopWatcher) Clear() {
	if sw == nil {
		return
	}
	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.stopped = false
	os.Remove(sw.path)
}

// Close shuts the watcher down.
func (sw *StopWatcher) Close() {
	if sw == nil {
		return
	}
	close(sw.done)
	if sw.watcher != nil {
		sw.watcher.Close()
	}
}
