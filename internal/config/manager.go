package config

import (
	"log/slog"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChangeHandler is invoked with the previous and new configuration
// whenever the on-disk config is reloaded.
type ChangeHandler func(oldConfig, newConfig *Config)

// Manager holds the live configuration and notifies subscribers when the
// backing file changes on disk, following the hot-reload pattern altmount
// uses for its NNTP provider pool.
type Manager struct {
	mu         sync.RWMutex
	current    *Config
	configFile string
	watcher    *fsnotify.Watcher
	handlers   []ChangeHandler
}

// NewManager wraps an already-loaded config with hot-reload support.
func NewManager(cfg *Config, configFile string) *Manager {
	return &Manager{
		current:    cfg,
		configFile: configFile,
	}
}

// Get returns the current configuration snapshot.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Getter adapts Get to the config.Getter signature expected by components.
func (m *Manager) Getter() Getter {
	return m.Get
}

// OnConfigChange registers a callback fired after a successful reload.
func (m *Manager) OnConfigChange(h ChangeHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers = append(m.handlers, h)
}

// Watch starts watching the config file for changes; reload errors are
// logged and the previous configuration is kept in place.
func (m *Manager) Watch() error {
	if m.configFile == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = watcher

	if err := watcher.Add(m.configFile); err != nil {
		return err
	}

	go func() {
		for event := range watcher.Events {
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			m.reload()
		}
	}()

	return nil
}

// Close stops the file watcher.
func (m *Manager) Close() error {
	if m.watcher == nil {
		return nil
	}
	return m.watcher.Close()
}

func (m *Manager) reload() {
	newCfg, err := LoadConfig(m.configFile)
	if err != nil {
		slog.Error("failed to reload config, keeping previous configuration", "err", err)
		return
	}

	m.mu.Lock()
	oldCfg := m.current
	if oldCfg.Equal(newCfg) {
		m.mu.Unlock()
		return
	}
	m.current = newCfg
	handlers := append([]ChangeHandler(nil), m.handlers...)
	m.mu.Unlock()

	slog.Info("configuration reloaded")
	for _, h := range handlers {
		h(oldCfg, newCfg)
	}
}
