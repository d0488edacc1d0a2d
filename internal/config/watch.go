package config

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/bep/debounce"
	"github.com/fsnotify/fsnotify"

	"github.com/banshee-data/guidecane/internal/monitoring"
)

// Watcher reloads a tuning file when it changes on disk. Editors tend to
// emit several events per save, so reloads are debounced.
type Watcher struct {
	path     string
	delay    time.Duration
	onChange func(*TuningConfig)
}

// NewWatcher creates a Watcher for path. onChange is called with every
// successfully validated reload; invalid files are logged and ignored.
func NewWatcher(path string, delay time.Duration, onChange func(*TuningConfig)) *Watcher {
	if delay <= 0 {
		delay = 200 * time.Millisecond
	}
	return &Watcher{path: filepath.Clean(path), delay: delay, onChange: onChange}
}

// Run watches the file's directory until ctx is cancelled. The directory is
// watched rather than the file so atomic rename-on-save is picked up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(w.path), err)
	}

	debounced := debounce.New(w.delay)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			debounced(w.reload)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			monitoring.Logf("[TuningWatcher] watch error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadTuningConfig(w.path)
	if err != nil {
		monitoring.Logf("[TuningWatcher] ignoring %s: %v", w.path, err)
		return
	}
	monitoring.Logf("[TuningWatcher] reloaded %s", w.path)
	if w.onChange != nil {
		w.onChange(cfg)
	}
}
