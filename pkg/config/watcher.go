package config

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher reloads the configuration file on change and notifies a callback
// with the freshly parsed Config. Editors write config files in bursts, so
// reloads are debounced by 100ms.
type Watcher struct {
	configPath    string
	watcher       *fsnotify.Watcher
	onChange      func(*Config)
	stopChan      chan struct{}
	stopOnce      sync.Once
	debounceTimer *time.Timer
	debounceMu    sync.Mutex
}

// NewWatcher creates a watcher for configPath; onChange runs after each
// successful reload
func NewWatcher(configPath string, onChange func(*Config)) *Watcher {
	return &Watcher{
		configPath: configPath,
		onChange:   onChange,
		stopChan:   make(chan struct{}),
	}
}

// Start begins watching the configuration file for changes
func (w *Watcher) Start() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.watcher = watcher

	go w.watchLoop()

	if err := watcher.Add(w.configPath); err != nil {
		watcher.Close()
		return err
	}

	log.Info().Str("path", w.configPath).Msg("Started watching configuration file")
	return nil
}

// Stop terminates the watcher; safe to call more than once
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopChan)
		if w.watcher != nil {
			w.watcher.Close()
		}
	})
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.debounceReload()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("File watcher error")

		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) debounceReload() {
	w.debounceMu.Lock()
	defer w.debounceMu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(100*time.Millisecond, func() {
		cfg, err := Load(w.configPath)
		if err != nil {
			// 保留旧配置继续运行，坏文件不应该打断服务
			log.Error().Err(err).Str("path", w.configPath).Msg("Failed to reload configuration")
			return
		}
		log.Info().Str("path", w.configPath).Msg("Configuration reloaded")
		if w.onChange != nil {
			w.onChange(cfg)
		}
	})
}
