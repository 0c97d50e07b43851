package rule

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	Path     string        // rule file, pattern list, or directory
	Debounce time.Duration // quiet period before a reload; default 200ms
	Logger   *zap.Logger
}

// Watcher watches a rules path and invokes a reload callback once changes
// settle. Directories are watched recursively, files by their parent
// directory so that editors replacing the file are still observed.
type Watcher struct {
	watcher  *fsnotify.Watcher
	config   WatcherConfig
	logger   *zap.Logger
	debounce *Debouncer
	single   string // absolute file path when watching one file

	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher for config.Path.
func NewWatcher(config WatcherConfig) (*Watcher, error) {
	if config.Debounce <= 0 {
		config.Debounce = 200 * time.Millisecond
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	info, err := os.Stat(config.Path)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	w := &Watcher{
		watcher:  fw,
		config:   config,
		logger:   logger,
		debounce: NewDebouncer(config.Debounce),
	}

	if info.IsDir() {
		err = w.addDirectory(config.Path)
	} else {
		w.single, err = filepath.Abs(config.Path)
		if err == nil {
			err = fw.Add(filepath.Dir(w.single))
		}
	}
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", config.Path, err)
	}
	return w, nil
}

// Watch blocks until ctx is done, calling onReload after each settled burst
// of relevant changes. Reload errors are logged and watching continues.
func (w *Watcher) Watch(ctx context.Context, onReload func() error) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher already running")
	}
	w.running = true
	w.mu.Unlock()

	defer func() {
		w.debounce.Stop()
		w.watcher.Close()
	}()

	w.logger.Info("watching rules",
		zap.String("path", w.config.Path),
		zap.Duration("debounce", w.config.Debounce))

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := w.addDirectory(event.Name); err != nil {
						w.logger.Warn("failed to watch new directory", zap.String("path", event.Name), zap.Error(err))
					}
				}
			}

			w.logger.Debug("rule change", zap.String("path", event.Name), zap.Stringer("op", event.Op))
			w.debounce.Trigger(func() {
				if err := onReload(); err != nil {
					w.logger.Error("rule reload failed", zap.Error(err))
					return
				}
				w.logger.Info("rules reloaded", zap.String("path", w.config.Path))
			})

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) addDirectory(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.watcher.Add(path)
	})
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op == fsnotify.Chmod {
		return false
	}
	if w.single != "" {
		abs, err := filepath.Abs(event.Name)
		return err == nil && abs == w.single
	}
	if strings.HasPrefix(filepath.Base(event.Name), ".") {
		return false
	}
	if event.Has(fsnotify.Create) {
		return true
	}
	return isRuleFile(event.Name)
}

// Debouncer runs the most recently triggered callback once no trigger has
// arrived for the configured interval.
type Debouncer struct {
	interval time.Duration

	mu       sync.Mutex
	timer    *time.Timer
	callback func()
	stopped  bool
}

// NewDebouncer creates a debouncer with the given quiet period.
func NewDebouncer(interval time.Duration) *Debouncer {
	return &Debouncer{interval: interval}
}

// Trigger schedules callback, replacing any pending one.
func (d *Debouncer) Trigger(callback func()) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.callback = callback
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, func() {
		d.mu.Lock()
		cb := d.callback
		d.callback = nil
		stopped := d.stopped
		d.mu.Unlock()

		if cb != nil && !stopped {
			cb()
		}
	})
}

// Stop cancels any pending callback. Later triggers are ignored.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	d.callback = nil
}
