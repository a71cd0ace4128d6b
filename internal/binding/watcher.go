package binding

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"
)

const watcherDebounce = 250 * time.Millisecond

// Refresher is anything that can re-read its backing store.
type Refresher interface {
	Refresh()
}

// Group refreshes a set of properties together.
type Group struct {
	mu      sync.Mutex
	members []Refresher
}

// Add registers r with the group.
func (g *Group) Add(r Refresher) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, r)
}

// Refresh refreshes every member.
func (g *Group) Refresh() {
	g.mu.Lock()
	members := append([]Refresher(nil), g.members...)
	g.mu.Unlock()

	for _, r := range members {
		r.Refresh()
	}
}

// Watch refreshes g whenever the file at path changes. The parent
// directory is watched so atomic replace-by-rename is seen. It blocks until
// the context is cancelled.
func Watch(ctx context.Context, path string, g *Group) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	logger := slog.With("component", "binding", "file", path)
	logger.Debug("watching for changes")

	name := filepath.Clean(path)
	errLog := rate.Sometimes{Interval: 10 * time.Second}
	var debounceTimer *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			// Debounce: reset timer on each event
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.AfterFunc(watcherDebounce, func() {
				logger.Debug("refreshing bound properties")
				g.Refresh()
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			errLog.Do(func() {
				logger.Error("file watcher error", "error", err)
			})
		}
	}
}
