package config

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

const reloadDebounce = 500 * time.Millisecond

// Holder keeps the current settings and reloads them when the config file
// changes. Readers take a snapshot per launch, so a reload never affects a
// launch already in progress.
type Holder struct {
	path string
	log  zerolog.Logger

	mu       sync.RWMutex
	settings Settings
}

// NewHolder starts from cfg's settings and watches cfg.Path.
func NewHolder(cfg Config, logger zerolog.Logger) *Holder {
	return &Holder{path: cfg.Path, log: logger, settings: cfg.Settings}
}

// Settings returns the current snapshot.
func (h *Holder) Settings() Settings {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.settings
}

// Set replaces the snapshot.
func (h *Holder) Set(s Settings) {
	h.mu.Lock()
	h.settings = s
	h.mu.Unlock()
}

// Reload re-reads the file. On error the previous settings stay in place.
func (h *Holder) Reload() error {
	cfg, err := Load(h.path)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	h.Set(cfg.Settings)
	h.log.Info().Str("path", h.path).Msg("settings reloaded")
	return nil
}

// Watch reloads settings whenever the config file is written, until ctx ends.
// The parent directory is watched so editors that replace the file are seen.
func (h *Holder) Watch(ctx context.Context) error {
	if h.path == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(h.path)); err != nil {
		return fmt.Errorf("watch config dir: %w", err)
	}
	h.log.Debug().Str("path", h.path).Msg("watching config file")

	var (
		pending <-chan time.Time
		timer   *time.Timer
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(h.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(reloadDebounce)
			pending = timer.C
		case <-pending:
			pending = nil
			if err := h.Reload(); err != nil {
				h.log.Warn().Err(err).Msg("config reload failed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			h.log.Warn().Err(err).Msg("config watcher error")
		}
	}
}
