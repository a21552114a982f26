package config

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const watchDebounce = 200 * time.Millisecond

// Watch reloads the file at path whenever it changes and passes the new
// configuration to onChange. A file that fails to load or validate is logged
// and skipped; the previous configuration stays in effect. Watch blocks until
// ctx is cancelled.
//
// The parent directory is watched rather than the file so that editors that
// replace the file by rename are still seen.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func(*Config)) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	path = filepath.Clean(path)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return err
	}

	var (
		mu      sync.Mutex
		timer   *time.Timer
		pending bool
		stopped bool
	)

	reload := func() {
		mu.Lock()
		pending = false
		if stopped {
			mu.Unlock()
			return
		}
		mu.Unlock()

		cfg, err := Load(path)
		if err != nil {
			logger.Warn("config reload rejected", zap.String("path", path), zap.Error(err))
			return
		}
		logger.Info("config reloaded", zap.String("path", path))
		onChange(cfg)
	}

	defer func() {
		mu.Lock()
		stopped = true
		if timer != nil {
			timer.Stop()
		}
		mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}

			mu.Lock()
			if !pending {
				pending = true
				timer = time.AfterFunc(watchDebounce, reload)
			} else {
				timer.Reset(watchDebounce)
			}
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Debug("config watcher error", zap.Error(err))
		}
	}
}
