package summaryindex

import (
	"github.com/fsnotify/fsnotify"

	"github.com/tauritavern/companion-core/internal/domainerr"
	"github.com/tauritavern/companion-core/internal/logging"
)

// Watcher proactively invalidates an Index's cache entry when the chat
// file backing it changes underneath the process — e.g. an external editor
// writing the file directly. This is a defensive addition beyond the
// signature check Summary already performs on every lookup: without it, a
// long-lived process that never re-reads a file wouldn't notice the change
// until something else happened to call Summary again.
type Watcher struct {
	idx     *Index
	watcher *fsnotify.Watcher
	logger  logging.Logger
	done    chan struct{}
}

// NewWatcher starts watching dir (non-recursively) for changes, pushing
// invalidations into idx. Call Close to stop it.
func NewWatcher(idx *Index, dir string, logger logging.Logger) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, domainerr.Wrap(domainerr.InternalError, "create chat file watcher", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, domainerr.Wrap(domainerr.InternalError, "watch chat directory "+dir, err)
	}

	w := &Watcher{idx: idx, watcher: fsw, logger: logger, done: make(chan struct{})}
	go w.run()
	return w, nil
}

func (w *Watcher) run() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename) != 0 {
				w.idx.RemoveForPath(event.Name)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			if w.logger != nil {
				w.logger.Warn("chat file watcher error", "error", err)
			}
		case <-w.done:
			return
		}
	}
}

// Close stops the watcher and releases its underlying file descriptors.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
