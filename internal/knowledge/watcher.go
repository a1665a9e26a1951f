package knowledge

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debounceWindow absorbs the create/write event bursts editors produce when
// saving a file, so one save triggers one rebuild.
const debounceWindow = 500 * time.Millisecond

// Watcher monitors a catalog override file and invokes a callback when it
// changes. The callback runs on the watcher goroutine.
type Watcher struct {
	fw     *fsnotify.Watcher
	done   chan struct{}
	logger *slog.Logger
}

// Watch starts watching path. The file does not have to exist yet; its parent
// directory is watched so a later create is also picked up.
func Watch(path string, logger *slog.Logger, onChange func()) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{fw: fw, done: make(chan struct{}), logger: logger}
	go w.loop(filepath.Clean(path), onChange)
	return w, nil
}

func (w *Watcher) loop(path string, onChange func()) {
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	var fire <-chan time.Time
	for {
		select {
		case <-w.done:
			return
		case <-fire:
			fire = nil
			w.logger.Info("catalog file changed, rebuilding", "path", path)
			onChange()
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
			} else {
				timer.Stop()
				timer.Reset(debounceWindow)
			}
			fire = timer.C
		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", "error", err)
		}
	}
}

// Close stops the watcher. Safe to call once.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fw.Close()
}
