package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/Faultbox/simview/internal/logger"
)

// Watcher reloads the store when the bundle directory changes and replays
// the new bundle through the hub. Bursts of events are coalesced.
type Watcher struct {
	store    *Store
	hub      *Hub
	debounce time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	timer   *time.Timer
	reloads int
}

// NewWatcher creates a watcher for st. hub may be nil.
func NewWatcher(st *Store, hub *Hub, debounce time.Duration) *Watcher {
	return &Watcher{
		store:    st,
		hub:      hub,
		debounce: debounce,
		log:      logger.Named("watch"),
	}
}

// Reloads returns the number of reloads that changed the scene identity.
func (w *Watcher) Reloads() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watch, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer watch.Close()

	dir := w.store.Dir()
	if err := watch.Add(dir); err != nil {
		return fmt.Errorf("watching %s: %w", dir, err)
	}
	data := filepath.Join(dir, DataDir)
	if err := watch.Add(data); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("watching %s: %w", data, err)
	}

	defer func() {
		w.mu.Lock()
		if w.timer != nil {
			w.timer.Stop()
		}
		w.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watch.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if event.Op&fsnotify.Create != 0 && event.Name == data {
				if err := watch.Add(data); err != nil {
					w.log.Warn("watching data dir", zap.Error(err))
				}
			}
			w.log.Debug("bundle changed", zap.String("file", event.Name), zap.Stringer("op", event.Op))
			w.schedule()
		case err, ok := <-watch.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.reload)
}

func (w *Watcher) reload() {
	changed, err := w.store.Reload()
	if err != nil {
		w.log.Warn("reload failed, keeping previous bundle", zap.Error(err))
		return
	}
	if !changed {
		return
	}
	w.mu.Lock()
	w.reloads++
	w.mu.Unlock()
	if w.hub != nil {
		w.hub.Reload()
	}
}
