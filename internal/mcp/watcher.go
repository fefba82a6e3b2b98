// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ConfigDiff lists the servers that differ between two registries.
type ConfigDiff struct {
	Added   []string `json:"added,omitempty"`
	Removed []string `json:"removed,omitempty"`
	Changed []string `json:"changed,omitempty"`
}

// Empty reports whether the registries were equivalent.
func (d ConfigDiff) Empty() bool {
	return len(d.Added) == 0 && len(d.Removed) == 0 && len(d.Changed) == 0
}

// DiffRegistries compares a loaded registry against a newer one.
func DiffRegistries(old, updated Registry) ConfigDiff {
	var d ConfigDiff
	for name, cfg := range updated {
		prev, ok := old[name]
		switch {
		case !ok:
			d.Added = append(d.Added, name)
		case !prev.Equal(cfg):
			d.Changed = append(d.Changed, name)
		}
	}
	for name := range old {
		if _, ok := updated[name]; !ok {
			d.Removed = append(d.Removed, name)
		}
	}
	sort.Strings(d.Added)
	sort.Strings(d.Removed)
	sort.Strings(d.Changed)
	return d
}

// ConfigWatcher reports drift between a loaded registry and its file on
// disk. It never mutates the registry it was given.
type ConfigWatcher struct {
	// fsWatcher is the underlying filesystem watcher
	fsWatcher *fsnotify.Watcher

	path     string
	baseline Registry
	logger   *slog.Logger
	onChange func(ConfigDiff)

	// debounceDelay is the delay before re-reading the file after a change
	debounceDelay time.Duration

	// mu protects pending and last
	mu      sync.Mutex
	pending *time.Timer
	last    ConfigDiff

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ConfigWatcherConfig configures the config watcher.
type ConfigWatcherConfig struct {
	// Path is the registry file to watch.
	Path string

	// Baseline is the registry currently in use.
	Baseline Registry

	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	// DebounceDelay defaults to 200ms.
	DebounceDelay time.Duration

	// OnChange is called with every diff computed after a change (optional).
	OnChange func(ConfigDiff)
}

// NewConfigWatcher starts watching cfg.Path. The parent directory is watched
// so that editors which replace the file are still seen.
func NewConfigWatcher(cfg ConfigWatcherConfig) (*ConfigWatcher, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("config path is required")
	}
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", cfg.Path, err)
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := fsWatcher.Add(filepath.Dir(absPath)); err != nil {
		fsWatcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(absPath), err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := cfg.DebounceDelay
	if delay == 0 {
		delay = 200 * time.Millisecond
	}
	baseline := cfg.Baseline
	if baseline == nil {
		baseline = make(Registry)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &ConfigWatcher{
		fsWatcher:     fsWatcher,
		path:          absPath,
		baseline:      baseline,
		logger:        logger.With("path", absPath),
		onChange:      cfg.OnChange,
		debounceDelay: delay,
		ctx:           ctx,
		cancel:        cancel,
	}

	w.wg.Add(1)
	go w.processEvents()

	return w, nil
}

// Drift returns the most recent diff.
func (w *ConfigWatcher) Drift() ConfigDiff {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

func (w *ConfigWatcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				w.schedule()
			}

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("config watcher error", "error", err)

		case <-w.ctx.Done():
			return
		}
	}
}

func (w *ConfigWatcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *ConfigWatcher) reload() {
	if w.ctx.Err() != nil {
		return
	}

	var current Registry
	data, err := os.ReadFile(w.path)
	switch {
	case os.IsNotExist(err):
		current = make(Registry)
	case err != nil:
		w.logger.Warn("cannot read tool server config", "error", err)
		return
	default:
		reg, problems, perr := parseRegistry(data, w.path)
		if perr != nil {
			w.logger.Warn("tool server config is malformed, ignoring change", "error", perr)
			return
		}
		for _, p := range problems {
			w.logger.Warn("tool server config problem", "error", p)
		}
		current = reg
	}

	diff := DiffRegistries(w.baseline, current)

	w.mu.Lock()
	w.last = diff
	w.mu.Unlock()

	RecordConfigDrift(diff)
	if diff.Empty() {
		w.logger.Debug("tool server config matches loaded registry")
	} else {
		w.logger.Info("tool server config changed on disk, restart to apply",
			"added", diff.Added,
			"removed", diff.Removed,
			"changed", diff.Changed,
		)
	}
	if w.onChange != nil {
		w.onChange(diff)
	}
}

// Close shuts down the watcher.
func (w *ConfigWatcher) Close() error {
	w.cancel()

	w.mu.Lock()
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()

	w.wg.Wait()
	return w.fsWatcher.Close()
}
