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
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"
)

// Manager owns the tool server registry, the clients built from it, and the
// wrappers registered over those clients.
// Clients are created lazily, at most once per server name.
type Manager struct {
	// logger is used for structured logging
	logger *slog.Logger

	// clientOptions is passed to every client the manager creates
	clientOptions ClientOptions

	// concurrency bounds StartAll, StopAll, and HealthCheck
	concurrency int

	// mu protects configs, clients, and wrappers. It is never held across
	// process I/O.
	mu       sync.RWMutex
	configs  Registry
	clients  map[string]*Client
	wrappers map[string]Wrapper
}

// ManagerConfig configures the manager.
type ManagerConfig struct {
	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	// ClientOptions applies to every client. A nil ClientOptions.Logger
	// inherits Logger.
	ClientOptions ClientOptions

	// Concurrency bounds bulk operations (0 means unbounded).
	Concurrency int
}

// NewManager creates a manager with an empty registry.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	opts := cfg.ClientOptions
	if opts.Logger == nil {
		opts.Logger = logger
	}

	return &Manager{
		logger:        logger,
		clientOptions: opts,
		concurrency:   cfg.Concurrency,
		configs:       make(Registry),
		clients:       make(map[string]*Client),
		wrappers:      make(map[string]Wrapper),
	}
}

// LoadConfig populates the registry from a file. A missing or malformed file
// leaves an empty registry; the returned error is informational.
func (m *Manager) LoadConfig(path string) error {
	reg, err := LoadConfigFile(path, m.logger)
	m.LoadRegistry(reg)
	return err
}

// LoadConfigData populates the registry from an in-memory document.
func (m *Manager) LoadConfigData(data []byte, source string) error {
	reg, err := ParseConfig(data, source, m.logger)
	m.LoadRegistry(reg)
	return err
}

// LoadRegistry replaces the registry. Clients that already exist are kept.
func (m *Manager) LoadRegistry(reg Registry) {
	configs := make(Registry, len(reg))
	for name, cfg := range reg {
		configs[name] = cfg.clone()
	}

	m.mu.Lock()
	m.configs = configs
	m.mu.Unlock()

	m.logger.Info("tool server registry loaded", "servers", len(configs))
}

// Registry returns a copy of the loaded registry.
func (m *Manager) Registry() Registry {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(Registry, len(m.configs))
	for name, cfg := range m.configs {
		out[name] = cfg.clone()
	}
	return out
}

// Config returns the configuration of a registered server.
func (m *Manager) Config(name string) (ServerConfig, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cfg, ok := m.configs[name]
	if !ok {
		return ServerConfig{}, false
	}
	return cfg.clone(), true
}

// Names returns the registered server names, sorted.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.configs.Names()
}

// Match returns the sorted server names matching a glob pattern.
func (m *Manager) Match(pattern string) ([]string, error) {
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("invalid server pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}

	var out []string
	for _, name := range m.Names() {
		ok, err := doublestar.Match(pattern, name)
		if err != nil {
			return nil, fmt.Errorf("matching %q: %w", pattern, err)
		}
		if ok {
			out = append(out, name)
		}
	}
	return out, nil
}

// Client returns the client for a server, creating it on first access.
// It returns false for unknown or disabled servers.
func (m *Manager) Client(name string) (*Client, bool) {
	m.mu.RLock()
	c, ok := m.clients[name]
	m.mu.RUnlock()
	if ok {
		return c, true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if c, ok := m.clients[name]; ok {
		return c, true
	}
	cfg, ok := m.configs[name]
	if !ok {
		m.logger.Debug("unknown tool server", "server", name)
		return nil, false
	}
	if !cfg.Enabled {
		m.logger.Debug("tool server is disabled", "server", name)
		return nil, false
	}

	c = NewClient(cfg, m.clientOptions)
	m.clients[name] = c
	return c, true
}

// Lookup resolves a server without starting it, reporting why it is
// unavailable.
func (m *Manager) Lookup(name string) (*Client, error) {
	c, ok := m.Client(name)
	if !ok {
		if cfg, known := m.Config(name); known && !cfg.Enabled {
			return nil, ErrServerDisabled(name)
		}
		return nil, ErrServerNotFound(name)
	}
	return c, nil
}

// ClientFor resolves a server and starts it.
func (m *Manager) ClientFor(ctx context.Context, name string) (*Client, error) {
	c, err := m.Lookup(name)
	if err != nil {
		return nil, err
	}
	if err := c.Start(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// InitClients creates a client for every enabled server without starting
// any of them.
func (m *Manager) InitClients() []string {
	var names []string
	for _, name := range m.Names() {
		if _, ok := m.Client(name); ok {
			names = append(names, name)
		}
	}
	return names
}

// RegisterWrapper builds a wrapper over the named server's client and caches
// it. It returns false, with no side effects, when the client is unavailable.
func (m *Manager) RegisterWrapper(name string, factory WrapperFactory) (Wrapper, bool) {
	c, ok := m.Client(name)
	if !ok {
		m.logger.Warn("cannot register wrapper, tool server unavailable", "server", name)
		return nil, false
	}

	w := factory(c)
	if w == nil {
		return nil, false
	}

	m.mu.Lock()
	m.wrappers[name] = w
	m.mu.Unlock()

	m.logger.Debug("registered wrapper", "server", name)
	return w, true
}

// Wrapper returns a registered wrapper.
func (m *Manager) Wrapper(name string) (Wrapper, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.wrappers[name]
	return w, ok
}

// ListServers summarises every registered server, sorted by name.
func (m *Manager) ListServers() []ServerStatus {
	m.mu.RLock()
	statuses := make([]ServerStatus, 0, len(m.configs))
	clients := make(map[string]*Client, len(m.clients))
	for name, cfg := range m.configs {
		_, hasWrapper := m.wrappers[name]
		statuses = append(statuses, ServerStatus{
			Name:        name,
			Description: cfg.Description,
			Command:     cfg.Command,
			Enabled:     cfg.Enabled,
			HasWrapper:  hasWrapper,
		})
		if c, ok := m.clients[name]; ok {
			clients[name] = c
		}
	}
	m.mu.RUnlock()

	for i := range statuses {
		if c, ok := clients[statuses[i].Name]; ok {
			statuses[i].Running = c.IsRunning()
		}
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// StartAll starts every cached client. One failure does not stop the rest.
func (m *Manager) StartAll(ctx context.Context) map[string]bool {
	clients := m.snapshotClients()
	results := make(map[string]bool, len(clients))
	var mu sync.Mutex

	g := m.group()
	for name, c := range clients {
		g.Go(func() error {
			err := c.Start(ctx)
			if err != nil {
				m.logger.Warn("failed to start tool server", "server", name, "error", err)
			}
			mu.Lock()
			results[name] = err == nil
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// StopAll stops every cached client, best-effort.
func (m *Manager) StopAll() {
	g := m.group()
	for name, c := range m.snapshotClients() {
		g.Go(func() error {
			if err := c.Stop(); err != nil {
				m.logger.Warn("failed to stop tool server", "server", name, "error", err)
			}
			return nil
		})
	}
	_ = g.Wait()
}

// Close stops every client.
func (m *Manager) Close() error {
	m.StopAll()
	return nil
}

// HealthCheck runs every registered wrapper's health check. A panicking
// check counts as unhealthy.
func (m *Manager) HealthCheck(ctx context.Context) map[string]bool {
	m.mu.RLock()
	wrappers := make(map[string]Wrapper, len(m.wrappers))
	for name, w := range m.wrappers {
		wrappers[name] = w
	}
	m.mu.RUnlock()

	results := make(map[string]bool, len(wrappers))
	var mu sync.Mutex

	g := m.group()
	for name, w := range wrappers {
		g.Go(func() error {
			healthy := m.checkOne(ctx, name, w)
			recordHealth(name, healthy)
			mu.Lock()
			results[name] = healthy
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (m *Manager) checkOne(ctx context.Context, name string, w Wrapper) (healthy bool) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("health check panicked", "server", name, "panic", r)
			healthy = false
		}
	}()

	healthy = w.HealthCheck(ctx)
	if !healthy {
		m.logger.Warn("tool server unhealthy", "server", name)
	}
	return healthy
}

func (m *Manager) snapshotClients() map[string]*Client {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]*Client, len(m.clients))
	for name, c := range m.clients {
		out[name] = c
	}
	return out
}

func (m *Manager) group() *errgroup.Group {
	g := new(errgroup.Group)
	if m.concurrency > 0 {
		g.SetLimit(m.concurrency)
	}
	return g
}
