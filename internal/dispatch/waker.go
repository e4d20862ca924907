package dispatch

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"courier/internal/logging"
	"courier/internal/scanner"
)

// FolderWaker watches the report folder and signals once report files have
// stopped changing for the debounce period.
type FolderWaker struct {
	debounce time.Duration
	logger   *slog.Logger
	watcher  *fsnotify.Watcher
	wake     chan struct{}
	done     chan struct{}
	closed   sync.Once

	mu     sync.Mutex
	folder string
	// failed is the last folder that could not be watched. It is warned about
	// once until the folder changes or becomes watchable.
	failed string
}

// NewFolderWaker starts an inotify watcher. Callers must Close it.
func NewFolderWaker(debounce time.Duration, logger *slog.Logger) (*FolderWaker, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if debounce < 0 {
		debounce = 0
	}
	w := &FolderWaker{
		debounce: debounce,
		logger:   logging.NewComponentLogger(logger, "folder-watch"),
		watcher:  watcher,
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Watch moves the watch to folder. Failures are logged and leave the waker
// idle, so the loop falls back to its timer. Repeated failures for the same
// folder are logged at debug level only.
func (w *FolderWaker) Watch(folder string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if folder == w.folder {
		return
	}
	if w.folder != "" {
		_ = w.watcher.Remove(w.folder)
		w.folder = ""
	}
	if err := w.watcher.Add(folder); err != nil {
		if folder == w.failed {
			w.logger.Debug("folder still not watchable", logging.String("folder", folder), logging.Error(err))
			return
		}
		w.failed = folder
		logging.WarnWithContext(w.logger, "folder watch unavailable; using poll interval only", "folder_watch_failed",
			logging.String("folder", folder),
			logging.Error(err),
			logging.String(logging.FieldImpact, "new files are noticed on the next scheduled cycle"),
		)
		return
	}
	w.folder = folder
	w.failed = ""
	w.logger.Debug("watching report folder", logging.String("folder", folder))
}

// Folder returns the folder currently watched, or "" when idle.
func (w *FolderWaker) Folder() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.folder
}

// C implements Waker.
func (w *FolderWaker) C() <-chan struct{} {
	return w.wake
}

// Close stops the watcher.
func (w *FolderWaker) Close() error {
	var err error
	w.closed.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *FolderWaker) run() {
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	var fire <-chan time.Time

	for {
		select {
		case <-w.done:
			timer.Stop()
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			timer.Reset(w.debounce)
			fire = timer.C
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Debug("folder watch error", logging.Error(err))
		case <-fire:
			fire = nil
			select {
			case w.wake <- struct{}{}:
			default:
			}
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return false
	}
	return strings.EqualFold(filepath.Ext(event.Name), scanner.ReportExtension)
}
