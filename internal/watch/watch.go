// Package watch re-runs the batch pipeline whenever the customer profile file
// changes. Each trigger is a full recomputation.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"custetl/internal/logger"
)

// ErrEmptyPath is returned when no file to watch is configured.
var ErrEmptyPath = errors.New("watch path is empty")

// TriggerFunc runs one batch.
type TriggerFunc func(ctx context.Context) error

// Watcher monitors one file and calls its trigger after the file settles.
type Watcher struct {
	path     string
	debounce time.Duration
	trigger  TriggerFunc
	log      *logger.Logger
	done     chan struct{}
}

// New creates a watcher for path. Events closer together than debounce
// collapse into one trigger.
func New(path string, debounce time.Duration, trigger TriggerFunc, log *logger.Logger) *Watcher {
	if log == nil {
		log = logger.Discard()
	}

	return &Watcher{
		path:     filepath.Clean(path),
		debounce: debounce,
		trigger:  trigger,
		log:      log,
		done:     make(chan struct{}),
	}
}

// Start registers the watch on the file's directory and returns once events
// are being delivered. The watcher stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	if w.path == "." || w.path == "" {
		return ErrEmptyPath
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w.log.Info("watching for changes", "path", w.path, "debounce", w.debounce)

	go w.loop(ctx, watcher)

	return nil
}

// Wait blocks until the watcher has stopped.
func (w *Watcher) Wait() {
	<-w.done
}

func (w *Watcher) loop(ctx context.Context, watcher *fsnotify.Watcher) {
	defer close(w.done)
	defer watcher.Close()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}

			return

		case evt, ok := <-watcher.Events:
			if !ok {
				return
			}

			if !w.relevant(evt) {
				continue
			}

			w.log.Debug("change detected", "path", evt.Name, "op", evt.Op.String())

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}

			fire = timer.C

		case <-fire:
			fire = nil
			w.run(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}

			w.log.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(evt fsnotify.Event) bool {
	if filepath.Clean(evt.Name) != w.path {
		return false
	}

	return evt.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) != 0
}

func (w *Watcher) run(ctx context.Context) {
	started := time.Now()

	if err := w.trigger(ctx); err != nil {
		w.log.Error("triggered run failed", "error", err, "duration", time.Since(started))
		return
	}

	w.log.Info("triggered run finished", "duration", time.Since(started))
}
