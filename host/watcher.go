package host

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/odvcencio/myedit/editor"
	"github.com/odvcencio/myedit/ext"
)

// LoadDir loads every module artifact in dir. It runs before the loop
// starts, so any failure is fatal to startup.
func (h *Host) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			h.log.WithField("path", dir).Warn("extension directory missing")
			return nil
		}
		return err
	}
	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && ext.IsArtifact(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		if err := h.modules.Load(h.gd, path); err != nil {
			return err
		}
	}
	return nil
}

// WatchLibraries watches dir for new or rewritten module artifacts and
// queues a LibraryEvent for each. Build tools write artifacts in several
// chunks, so events for one path are coalesced until it has been quiet for
// debounce.
func (h *Host) WatchLibraries(ctx context.Context, dir string, debounce time.Duration) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	log := h.log.WithField("path", dir)
	log.Info("watching extensions")

	go func() {
		defer w.Close()

		var mu sync.Mutex
		pending := map[string]*time.Timer{}
		defer func() {
			mu.Lock()
			for _, t := range pending {
				t.Stop()
			}
			mu.Unlock()
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
					continue
				}
				if !ext.IsArtifact(ev.Name) {
					continue
				}
				path, op := ev.Name, ev.Op
				mu.Lock()
				if t, ok := pending[path]; ok {
					t.Stop()
				}
				pending[path] = time.AfterFunc(debounce, func() {
					mu.Lock()
					delete(pending, path)
					mu.Unlock()
					log.WithField("module", ext.ModuleName(path)).Debug("artifact changed")
					h.queue.Push(editor.LibraryEvent{Path: path, Op: op})
				})
				mu.Unlock()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("watcher error")
			}
		}
	}()
	return nil
}
