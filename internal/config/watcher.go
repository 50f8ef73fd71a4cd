package config

import (
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher reloads only the TuningKnobs subset of a config file on
// every write, publishing each new snapshot through an atomic pointer
// the Autoscaler and rate limiter read on their own schedule. Bucket,
// endpoint, and credentials are parsed once at Load and never revisited
// here.
type Watcher struct {
	path    string
	logger  *zap.Logger
	current atomic.Pointer[TuningKnobs]
	watcher *fsnotify.Watcher
}

// NewWatcher starts watching path for writes and returns a Watcher
// already holding initial's knobs. Call Close when done.
func NewWatcher(path string, initial TuningKnobs, logger *zap.Logger) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fw.Add(path); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{path: path, logger: logger, watcher: fw}
	w.current.Store(&initial)
	go w.loop()
	return w, nil
}

// Current returns the most recently loaded TuningKnobs snapshot.
func (w *Watcher) Current() TuningKnobs {
	return *w.current.Load()
}

// Close stops the underlying filesystem watch.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

func (w *Watcher) loop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("config watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("config reload failed, keeping previous tuning knobs",
			zap.String("path", w.path), zap.Error(err))
		return
	}
	knobs := cfg.TuningKnobs
	w.current.Store(&knobs)
	w.logger.Info("reloaded tuning knobs",
		zap.Float64("scale_up_factor", knobs.ScaleUpFactor),
		zap.Float64("scale_down_factor", knobs.ScaleDownFactor),
		zap.Int("rate_limit", knobs.RateLimit))
}
