package cards

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher keeps a Catalog loaded from a bulk data file and reloads it when
// the file changes. Readers always see a complete snapshot.
type Watcher struct {
	path     string
	logger   *slog.Logger
	debounce time.Duration
	current  atomic.Pointer[Catalog]
	reloads  atomic.Int64
}

// NewWatcher loads the catalog at path once. Call Run to follow changes.
func NewWatcher(path string, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	w := &Watcher{
		path:     path,
		logger:   logger,
		debounce: 500 * time.Millisecond,
	}
	if err := w.reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Catalog returns the current snapshot.
func (w *Watcher) Catalog() *Catalog {
	return w.current.Load()
}

// Reloads returns how many times the catalog has been (re)loaded.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

func (w *Watcher) reload() error {
	catalog, err := LoadBulkFile(w.path)
	if err != nil {
		return err
	}
	w.current.Store(catalog)
	w.reloads.Add(1)
	w.logger.Info("Card catalog loaded", "path", w.path, "cards", catalog.Len())
	return nil
}

// Run watches the bulk file until ctx is cancelled. Bulk downloads are
// usually written via rename, so the parent directory is watched.
func (w *Watcher) Run(ctx context.Context) (err error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() {
		if closeErr := watcher.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if err := watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch catalog directory: %w", err)
	}

	target := filepath.Clean(w.path)
	var pending <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				pending = time.After(w.debounce)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Catalog watcher error", "error", err)
		case <-pending:
			pending = nil
			if err := w.reload(); err != nil {
				// Keep serving the previous snapshot.
				w.logger.Error("Catalog reload failed", "path", w.path, "error", err)
			}
		}
	}
}

// Lookup resolves a card against the current snapshot.
func (w *Watcher) Lookup(name, setCode string) (*Card, bool) {
	return w.Catalog().Lookup(name, setCode)
}

// Suggest returns names similar to name from the current snapshot.
func (w *Watcher) Suggest(name string, limit int) []string {
	return w.Catalog().Suggest(name, limit)
}

// Len returns the number of names in the current snapshot.
func (w *Watcher) Len() int {
	return w.Catalog().Len()
}
