package sessionfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/Dicklesworthstone/authdeck/internal/identity"
)

// WatcherConfig configures a session file watcher.
type WatcherConfig struct {
	// DebounceInterval coalesces bursts of writes. Default: 200ms
	DebounceInterval time.Duration

	// OnChange receives the user found in the file after an external change.
	// nil means the other process signed out.
	OnChange func(user *identity.Identity)

	// OnError is called for read or watch failures.
	OnError func(err error)

	Logger *slog.Logger
}

// Watcher turns external edits of the session file into callbacks. Writes
// made through the watched Store are ignored.
type Watcher struct {
	store   *Store
	config  WatcherConfig
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	mu       sync.Mutex
	pending  bool
	last     time.Time
	watching bool
	closed   bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// NewWatcher creates a watcher for store.
func NewWatcher(store *Store, config WatcherConfig) (*Watcher, error) {
	if config.DebounceInterval == 0 {
		config.DebounceInterval = 200 * time.Millisecond
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}

	return &Watcher{
		store:   store,
		config:  config,
		watcher: fsWatcher,
		logger:  config.Logger,
		stopCh:  make(chan struct{}),
	}, nil
}

// Start begins watching the directory holding the session file. A watcher
// that failed to start must still be stopped to release it.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return fmt.Errorf("watcher stopped")
	}
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.watching = true
	w.mu.Unlock()

	dir := filepath.Dir(w.store.Path())
	if err := os.MkdirAll(dir, 0700); err != nil {
		w.setWatching(false)
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := w.watcher.Add(dir); err != nil {
		w.setWatching(false)
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	w.logger.Debug("watching session file", "path", w.store.Path())

	w.wg.Add(2)
	go w.eventLoop(ctx)
	go w.debounceLoop(ctx)
	return nil
}

// Stop halts the watcher, closes the underlying fsnotify watcher and waits
// for its goroutines. It is safe to call whether or not Start succeeded.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	running := w.watching
	w.watching = false
	w.mu.Unlock()

	if running {
		close(w.stopCh)
	}
	err := w.watcher.Close()
	w.wg.Wait()
	return err
}

// Watching reports whether the watcher is running.
func (w *Watcher) Watching() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.watching
}

func (w *Watcher) setWatching(v bool) {
	w.mu.Lock()
	w.watching = v
	w.mu.Unlock()
}

func (w *Watcher) eventLoop(ctx context.Context) {
	defer w.wg.Done()
	target := filepath.Clean(w.store.Path())

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.mu.Lock()
			w.pending = true
			w.last = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("session watcher error", "error", err)
			if w.config.OnError != nil {
				w.config.OnError(err)
			}
		}
	}
}

func (w *Watcher) debounceLoop(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.config.DebounceInterval / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.mu.Lock()
			ready := w.pending && time.Since(w.last) >= w.config.DebounceInterval
			if ready {
				w.pending = false
			}
			w.mu.Unlock()
			if ready {
				w.process()
			}
		}
	}
}

func (w *Watcher) process() {
	user, changed, err := w.store.refresh()
	if err != nil {
		w.logger.Warn("failed to read session file", "path", w.store.Path(), "error", err)
		if w.config.OnError != nil {
			w.config.OnError(err)
		}
		return
	}
	if !changed {
		return
	}
	w.logger.Info("session file changed externally", "signed_in", user != nil)
	if w.config.OnChange != nil {
		w.config.OnChange(user)
	}
}
