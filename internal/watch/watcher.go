// Package watch reruns a handler whenever a watched source file changes.
// Rapid saves are debounced per file and handlers run one at a time on the
// watcher goroutine, so a slow run never overlaps the next.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"apiscribe/internal/logging"
)

// Handler is called with the absolute path of a changed file.
type Handler func(ctx context.Context, path string)

// Stats counts watcher activity.
type Stats struct {
	Events        int
	Triggered     int
	Errors        int
	LastEventTime time.Time
	LastEventPath string
}

// Watcher watches individual files through their parent directories, which
// keeps editors that save by rename from dropping the watch.
type Watcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	handler     Handler
	files       map[string]bool
	dirs        map[string]bool
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
	closed      bool

	stats Stats
}

// New creates a watcher. A non-positive debounce uses 500ms.
func New(debounce time.Duration, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, fmt.Errorf("watch handler is required")
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		watcher:     fw,
		handler:     handler,
		files:       make(map[string]bool),
		dirs:        make(map[string]bool),
		debounceMap: make(map[string]time.Time),
		debounceDur: debounce,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Add starts watching path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	dir := filepath.Dir(abs)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher is closed")
	}
	if !w.dirs[dir] {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[abs] = true
	logging.Watch("watching %s", abs)
	return nil
}

// Start runs the event loop until ctx is done or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher is closed")
	}
	if w.running {
		return nil
	}
	w.running = true
	go w.run(ctx)
	return nil
}

// Stop ends the event loop, waits for an in-flight handler and releases the
// OS watch. It is safe to call more than once.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	running := w.running
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	if running {
		<-w.doneCh
	}
	if err := w.watcher.Close(); err != nil {
		logging.WatchError("error closing watcher: %v", err)
	}
	logging.Watch("stopped")
}

// Done is closed when the event loop exits.
func (w *Watcher) Done() <-chan struct{} {
	return w.doneCh
}

// Stats returns a snapshot of the counters.
func (w *Watcher) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

func (w *Watcher) tick() time.Duration {
	d := w.debounceDur / 4
	if d < 10*time.Millisecond {
		d = 10 * time.Millisecond
	}
	if d > 100*time.Millisecond {
		d = 100 * time.Millisecond
	}
	return d
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.WatchDebug("context done")
			return

		case <-w.stopCh:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WatchError("watch error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.processDebounced(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}
	name := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[name] {
		return
	}
	logging.WatchDebug("%s %s", event.Op, name)
	w.stats.Events++
	w.stats.LastEventTime = time.Now()
	w.stats.LastEventPath = name
	w.debounceMap[name] = time.Now()
}

func (w *Watcher) processDebounced(ctx context.Context) {
	w.mu.Lock()
	now := time.Now()
	var ready []string
	for path, at := range w.debounceMap {
		if now.Sub(at) >= w.debounceDur {
			ready = append(ready, path)
			delete(w.debounceMap, path)
		}
	}
	w.stats.Triggered += len(ready)
	w.mu.Unlock()

	for _, path := range ready {
		if ctx.Err() != nil {
			return
		}
		logging.Watch("change settled: %s", path)
		w.handler(ctx, path)
	}
}
