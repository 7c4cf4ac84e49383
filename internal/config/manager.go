package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Loader produces a validated configuration
type Loader func() (*Config, error)

// Manager provides thread-safe, read-only access to the active configuration.
// The configuration file is never written; changes come from outside and are
// applied only if they load and validate, so an invalid edit keeps the last
// good configuration active.
type Manager interface {
	// GetConfig returns a copy of the active configuration
	GetConfig() *Config

	// ReloadConfig loads the configuration and applies it if valid
	ReloadConfig() error

	// WatchConfig reloads the configuration whenever the file changes.
	// Blocks until ctx is cancelled.
	WatchConfig(ctx context.Context) error

	// Close releases the file watcher
	Close() error
}

type manager struct {
	mu        sync.RWMutex
	config    *Config
	path      string
	loader    Loader
	watcher   *fsnotify.Watcher
	watcherMu sync.Mutex
}

// NewManager creates a Manager for the file at path using loader, and loads
// the initial configuration. An empty path disables watching.
func NewManager(path string, loader Loader) (Manager, error) {
	if path != "" {
		path = filepath.Clean(path)
	}
	m := &manager{path: path, loader: loader}
	if err := m.ReloadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load initial configuration: %w", err)
	}
	return m, nil
}

func (m *manager) GetConfig() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	// Fields are replaced wholesale on reload, never mutated in place.
	configCopy := *m.config
	return &configCopy
}

func (m *manager) ReloadConfig() error {
	cfg, err := m.loader()
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.config = cfg
	m.mu.Unlock()

	slog.Info("Configuration loaded", "path", m.path, "sources", len(cfg.Sources))
	return nil
}

func (m *manager) WatchConfig(ctx context.Context) error {
	if m.path == "" {
		<-ctx.Done()
		return ctx.Err()
	}

	m.watcherMu.Lock()
	if m.watcher != nil {
		m.watcherMu.Unlock()
		return fmt.Errorf("config watcher is already running")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		m.watcherMu.Unlock()
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	m.watcher = watcher
	m.watcherMu.Unlock()

	// Watch the directory: editors and ConfigMap updates replace the file
	// instead of writing it in place.
	dir := filepath.Dir(m.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch config directory %s: %w", dir, err)
	}

	slog.Info("Started watching configuration file", "path", m.path)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Stopping config file watcher")
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return fmt.Errorf("watcher event channel closed")
			}
			if filepath.Clean(event.Name) != m.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				slog.Info("Config update detected, reloading", "path", m.path)
				if err := m.ReloadConfig(); err != nil {
					slog.Error("Failed to reload config, keeping previous configuration", "error", err)
				}
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher error channel closed")
			}
			slog.Error("File watcher error", "error", err)
		}
	}
}

func (m *manager) Close() error {
	m.watcherMu.Lock()
	defer m.watcherMu.Unlock()

	if m.watcher != nil {
		if err := m.watcher.Close(); err != nil {
			return fmt.Errorf("failed to close file watcher: %w", err)
		}
		m.watcher = nil
	}
	return nil
}
