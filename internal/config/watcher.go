package config

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces the burst of filesystem events editors
// emit when saving.
const DefaultDebounce = 1500 * time.Millisecond

// Watcher reloads the snapshot file when it changes on disk. The file
// is parsed fresh on every change so handlers never see stale data; a
// parse failure keeps the previous snapshot in force.
type Watcher struct {
	path     string
	debounce time.Duration
	log      *slog.Logger

	mu       sync.Mutex
	handlers map[int]func(Snapshot)
	nextID   int

	fsw    *fsnotify.Watcher
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWatcher creates a watcher for the snapshot file at path. A
// debounce of zero means DefaultDebounce.
func NewWatcher(path string, debounce time.Duration, log *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Watcher{
		path:     path,
		debounce: debounce,
		log:      log,
		handlers: make(map[int]func(Snapshot)),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// OnReload registers a handler called with each successfully loaded
// snapshot. The returned function unsubscribes it.
func (w *Watcher) OnReload(fn func(Snapshot)) func() {
	w.mu.Lock()
	id := w.nextID
	w.nextID++
	w.handlers[id] = fn
	w.mu.Unlock()
	return func() {
		w.mu.Lock()
		delete(w.handlers, id)
		w.mu.Unlock()
	}
}

// Start begins watching. The file must exist.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := fsw.Add(w.path); err != nil {
		fsw.Close()
		return err
	}
	w.fsw = fsw
	w.log.Info("watching snapshot file", "path", w.path, "debounce", w.debounce)
	go w.run()
	return nil
}

// Stop ends watching and releases the filesystem watch.
func (w *Watcher) Stop() error {
	w.cancel()
	if w.fsw != nil {
		return w.fsw.Close()
	}
	return nil
}

func (w *Watcher) run() {
	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-w.ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			// Writes are the usual case; creates happen when an
			// editor replaces the file.
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.log.Debug("snapshot file event", "op", ev.Op.String())
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(w.debounce)
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("snapshot watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	snap, err := LoadSnapshot(w.path)
	if err != nil {
		w.log.Warn("snapshot reload failed, keeping previous", "error", err)
		return
	}
	w.mu.Lock()
	handlers := make([]func(Snapshot), 0, len(w.handlers))
	for _, h := range w.handlers {
		handlers = append(handlers, h)
	}
	w.mu.Unlock()

	w.log.Info("snapshot file changed", "handlers", len(handlers))
	for _, h := range handlers {
		h(snap)
	}
}
