// Package watcher triggers a callback when any of a fixed set of files
// changes on disk. It watches the parent directories so that editors and
// deploy tools that replace files by rename are still observed.
package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"namaste-icd-mapper/internal/logger"
)

const DefaultDebounce = 500 * time.Millisecond

// DatasetWatcher fires onChange once per burst of events on the watched
// files, after no further event has arrived for the debounce interval.
type DatasetWatcher struct {
	fw       *fsnotify.Watcher
	files    map[string]struct{}
	debounce time.Duration
	onChange func()

	done    chan struct{}
	wg      sync.WaitGroup
	stopped bool
	mu      sync.Mutex
}

func NewDatasetWatcher(paths []string, debounce time.Duration, onChange func()) (*DatasetWatcher, error) {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	files := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, err
		}
		files[abs] = struct{}{}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &DatasetWatcher{
		fw:       fw,
		files:    files,
		debounce: debounce,
		onChange: onChange,
		done:     make(chan struct{}),
	}, nil
}

// Start adds the parent directories and begins delivering events.
func (w *DatasetWatcher) Start() error {
	dirs := make(map[string]struct{})
	for f := range w.files {
		dirs[filepath.Dir(f)] = struct{}{}
	}
	for dir := range dirs {
		if err := w.fw.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}

	w.wg.Add(1)
	go w.loop()
	logger.Info("Dataset watcher started", "files", len(w.files))
	return nil
}

func (w *DatasetWatcher) loop() {
	defer w.wg.Done()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			if !w.relevant(event) {
				continue
			}
			logger.Debug("Dataset file event", "path", event.Name, "op", event.Op.String())
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.onChange()

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			logger.Warn("Dataset watcher error", "error", err)

		case <-w.done:
			return
		}
	}
}

func (w *DatasetWatcher) relevant(event fsnotify.Event) bool {
	if !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)) {
		return false
	}
	abs, err := filepath.Abs(event.Name)
	if err != nil {
		return false
	}
	_, ok := w.files[abs]
	return ok
}

// Stop ends monitoring and waits for the event loop to exit.
// Safe to call multiple times.
func (w *DatasetWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stopped {
		return nil
	}
	w.stopped = true
	close(w.done)
	err := w.fw.Close()
	w.wg.Wait()
	return err
}
