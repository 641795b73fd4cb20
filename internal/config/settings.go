package config

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// RuntimeSettings is the hot-reloadable settings file:
// {use_hall_compensation: bool}. It is reloaded between driver cycles; a
// change forces an immediate snapshot republish but never a re-fetch.
type RuntimeSettings struct {
	UseHallCompensation bool `json:"use_hall_compensation"`
}

// SettingsWatcher owns the current RuntimeSettings and knows how to reload
// it from disk. Safe for concurrent use: the driver reads it every cycle
// while an operator may rewrite the file at any time.
type SettingsWatcher struct {
	path string

	mu       sync.RWMutex
	current  RuntimeSettings
}

// NewSettingsWatcher loads the settings file once at startup. A missing
// file is not fatal — it defaults to hall compensation disabled.
func NewSettingsWatcher(path string) (*SettingsWatcher, error) {
	w := &SettingsWatcher{path: path}
	if err := w.Reload(); err != nil {
		return nil, err
	}
	return w, nil
}

// Reload re-reads the settings file and replaces the current value; a
// missing file resets it to hall compensation disabled. Use ReloadAndDiff
// to learn whether the value changed.
func (w *SettingsWatcher) Reload() error {
	data, err := os.ReadFile(w.path)
	if err != nil {
		if os.IsNotExist(err) {
			w.mu.Lock()
			w.current = RuntimeSettings{UseHallCompensation: false}
			w.mu.Unlock()
			return nil
		}
		return fmt.Errorf("read runtime settings: %w", err)
	}

	var next RuntimeSettings
	if err := json.Unmarshal(data, &next); err != nil {
		return fmt.Errorf("parse runtime settings: %w", err)
	}

	w.mu.Lock()
	w.current = next
	w.mu.Unlock()
	return nil
}

// Current returns the settings snapshot in effect right now.
func (w *SettingsWatcher) Current() RuntimeSettings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.current
}

// ReloadAndDiff reloads from disk and reports whether the effective
// settings changed, so the driver can force an immediate republish.
func (w *SettingsWatcher) ReloadAndDiff() (changed bool, err error) {
	before := w.Current()
	if err := w.Reload(); err != nil {
		return false, err
	}
	return before != w.Current(), nil
}
