package asset

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/binzume/retarget/internal/logging"
	"github.com/fsnotify/fsnotify"
)

// Watcher reloads database resources when their files change.
type Watcher struct {
	db       *Database
	fsnotify *fsnotify.Watcher
	// Delay coalesces the bursts of events a single save produces.
	Delay time.Duration

	mu    sync.Mutex
	files map[string]bool
	dirs  map[string]bool
}

func NewWatcher(db *Database) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		db:       db,
		fsnotify: w,
		Delay:    100 * time.Millisecond,
		files:    map[string]bool{},
		dirs:     map[string]bool{},
	}, nil
}

// Add watches a file. Its directory is watched so that editors replacing the
// file are noticed too.
func (w *Watcher) Add(path string) error {
	path = normalize(path)
	dir := filepath.Dir(path)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.files[path] = true
	if w.dirs[dir] {
		return nil
	}
	if err := w.fsnotify.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

// AddAll watches every file-backed resource of the database.
func (w *Watcher) AddAll() error {
	for _, p := range w.db.Paths() {
		if err := w.Add(p); err != nil {
			return err
		}
	}
	return nil
}

func (w *Watcher) watched(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.files[normalize(path)]
}

// Run dispatches reloads until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsnotify.Close()

	pending := map[string]bool{}
	timer := time.NewTimer(w.Delay)
	if !timer.Stop() {
		<-timer.C
	}
	for {
		select {
		case e, ok := <-w.fsnotify.Events:
			if !ok {
				return nil
			}
			if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
				continue
			}
			if !w.watched(e.Name) {
				continue
			}
			logging.Debug("file changed", "path", e.Name, "op", e.Op.String())
			pending[normalize(e.Name)] = true
			timer.Reset(w.Delay)

		case <-timer.C:
			for p := range pending {
				if err := w.db.Reload(p); err != nil {
					logging.Error("reload failed", "path", p, "err", err)
				}
			}
			clear(pending)

		case err, ok := <-w.fsnotify.Errors:
			if !ok {
				return nil
			}
			logging.Error("watch error", "err", err)

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
