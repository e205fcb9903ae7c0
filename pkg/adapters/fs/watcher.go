package fs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"

	"github.com/aretw0/lifecycle/pkg/core/worker"
	"github.com/fsnotify/fsnotify"
)

// watcher drives one live query: it watches the vault, coalesces change
// bursts, and asks the owning subscription to recompute its snapshot. All
// emits run on the watcher goroutine, so snapshots for one subscription
// are always pushed in order.
type watcher struct {
	*worker.BaseWorker
	store   *Store
	emit    func()
	onError func(error)
	fsw     *fsnotify.Watcher
	deb     *debouncer
	kick    chan struct{}
	cancel  context.CancelFunc
}

func newWatcher(store *Store, emit func(), onError func(error)) *watcher {
	return &watcher{
		BaseWorker: worker.NewBaseWorker("vault-watcher"),
		store:      store,
		emit:       emit,
		onError:    onError,
	}
}

func (w *watcher) Start(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	status := w.State().Status
	if status != worker.StatusCreated && status != worker.StatusPending {
		return fmt.Errorf("watcher already started (status: %s)", status)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.addVaultDirs(fsw); err != nil {
		_ = fsw.Close()
		return err
	}

	w.fsw = fsw
	w.deb = newDebouncer(w.store.config.DebounceWindow)
	w.kick = make(chan struct{}, 1)
	w.store.watcherStarted()

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.SetStatus(worker.StatusRunning)
	return w.StartFunc(runCtx, w.run)
}

func (w *watcher) stopWatcher() {
	if w.cancel != nil {
		w.StopRequested = true
		w.cancel()
	}
	_ = w.BaseWorker.Stop(context.Background())
}

func (w *watcher) State() worker.State {
	return w.ExportState(func(s *worker.State) {
		s.Metadata = map[string]string{
			worker.MetadataType: string(worker.TypeGoroutine),
		}
	})
}

// addVaultDirs registers the vault tree, skipping the system directory.
// Comment thread directories created later are added from the event loop.
func (w *watcher) addVaultDirs(fsw *fsnotify.Watcher) error {
	return filepath.WalkDir(w.store.Path, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if d.Name() == w.store.config.SystemDir {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

// shouldIgnore filters events that must never trigger a rescan: the index
// under the system dir and half-written atomic temp files.
func (w *watcher) shouldIgnore(event fsnotify.Event) bool {
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, TempFilePrefix) {
		return true
	}
	rel, err := filepath.Rel(w.store.Path, event.Name)
	if err != nil {
		return false
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	return len(parts) > 0 && parts[0] == w.store.config.SystemDir
}

func (w *watcher) handleEvent(event fsnotify.Event) {
	if w.shouldIgnore(event) {
		return
	}

	// A freshly created comment thread directory must be watched too.
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			_ = w.fsw.Add(event.Name)
		}
	}

	w.deb.trigger(func() {
		select {
		case w.kick <- struct{}{}:
		default: // a rescan is already queued
		}
	})
}

func (w *watcher) handleWatcherError(err error) {
	w.store.logger.Error("fsnotify error", "error", err)
	if w.store.config.ErrorHandler != nil {
		w.store.config.ErrorHandler(err)
	}
}

func (w *watcher) run(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			panicErr := fmt.Errorf("watcher panic: %v", recovered)
			if w.store.logger.Enabled(ctx, slog.LevelDebug) {
				w.store.logger.Error("watcher panic", "error", panicErr, "stack", string(debug.Stack()))
			} else {
				w.store.logger.Error("watcher panic", "error", panicErr)
			}
			if w.onError != nil {
				w.onError(panicErr)
			}
		}
	}()
	defer w.store.watcherStopped()
	defer w.fsw.Close()
	defer w.deb.stop()

	// The live-query contract: one snapshot up front, then pushes on
	// change.
	w.emit()

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-w.kick:
			w.emit()

		case event, ok := <-w.fsw.Events:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher events channel closed")
			}
			w.handleEvent(event)

		case wErr, ok := <-w.fsw.Errors:
			if !ok {
				if w.StopRequested || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("watcher errors channel closed")
			}
			w.handleWatcherError(wErr)
		}
	}
}
