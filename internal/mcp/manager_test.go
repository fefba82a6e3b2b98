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
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internallog "github.com/tombee/toolhost/internal/log"
)

// stubWrapper is a Wrapper whose health is fixed.
type stubWrapper struct {
	caller  ToolCaller
	healthy bool
	panics  bool
}

func (w *stubWrapper) ServerName() string { return w.caller.ServerName() }

func (w *stubWrapper) HealthCheck(ctx context.Context) bool {
	if w.panics {
		panic("health check exploded")
	}
	return w.healthy
}

func stubFactory(healthy, panics bool) WrapperFactory {
	return func(caller ToolCaller) Wrapper {
		return &stubWrapper{caller: caller, healthy: healthy, panics: panics}
	}
}

func newTestManager(t *testing.T, reg Registry) *Manager {
	t.Helper()
	m := NewManager(ManagerConfig{
		Logger:        internallog.Discard(),
		ClientOptions: testClientOptions(),
	})
	m.LoadRegistry(reg)
	t.Cleanup(m.StopAll)
	return m
}

func helperRegistry() Registry {
	disabled := helperConfig("disabled", "echo")
	disabled.Enabled = false
	crashing := helperConfig("crashing", "crash")
	return Registry{
		"echo":     helperConfig("echo", "echo"),
		"errors":   helperConfig("errors", "error"),
		"disabled": disabled,
		"crashing": crashing,
	}
}

func TestManager_UnknownServer(t *testing.T) {
	m := newTestManager(t, helperRegistry())

	c, ok := m.Client("does-not-exist")
	assert.False(t, ok)
	assert.Nil(t, c)
	assert.Empty(t, m.snapshotClients())

	_, err := m.ClientFor(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.Equal(t, ErrorKindNotFound, KindOf(err))
}

func TestManager_DisabledServer(t *testing.T) {
	m := newTestManager(t, helperRegistry())

	c, ok := m.Client("disabled")
	assert.False(t, ok)
	assert.Nil(t, c)
	assert.Empty(t, m.snapshotClients())

	w, ok := m.RegisterWrapper("disabled", stubFactory(true, false))
	assert.False(t, ok)
	assert.Nil(t, w)
	_, ok = m.Wrapper("disabled")
	assert.False(t, ok)

	_, err := m.ClientFor(context.Background(), "disabled")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestManager_ClientIsCreatedOnce(t *testing.T) {
	m := newTestManager(t, helperRegistry())

	var wg sync.WaitGroup
	clients := make([]*Client, 16)
	for i := range clients {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			clients[i], _ = m.Client("echo")
		}(i)
	}
	wg.Wait()

	for _, c := range clients {
		assert.Same(t, clients[0], c)
	}
	assert.Len(t, m.snapshotClients(), 1)
	assert.False(t, clients[0].IsRunning(), "lookup must not start the process")
}

func TestManager_RegisterWrapper(t *testing.T) {
	m := newTestManager(t, helperRegistry())

	w, ok := m.RegisterWrapper("echo", stubFactory(true, false))
	require.True(t, ok)
	assert.Equal(t, "echo", w.ServerName())

	got, ok := m.Wrapper("echo")
	require.True(t, ok)
	assert.Same(t, w, got)

	c, _ := m.Client("echo")
	assert.Same(t, c, w.(*stubWrapper).caller, "wrapper shares the manager's client")
}

func TestManager_StartAllCapturesFailures(t *testing.T) {
	m := newTestManager(t, helperRegistry())
	m.clientOptions.StartupGrace = time.Second

	started := m.InitClients()
	assert.ElementsMatch(t, []string{"crashing", "echo", "errors"}, started)

	results := m.StartAll(context.Background())
	assert.Equal(t, map[string]bool{"echo": true, "errors": true, "crashing": false}, results)

	c, _ := m.Client("echo")
	assert.True(t, c.IsRunning())

	m.StopAll()
	assert.False(t, c.IsRunning())
	m.StopAll()
}

func TestManager_HealthCheck(t *testing.T) {
	m := newTestManager(t, helperRegistry())

	_, ok := m.RegisterWrapper("echo", stubFactory(true, false))
	require.True(t, ok)
	_, ok = m.RegisterWrapper("errors", stubFactory(false, false))
	require.True(t, ok)
	_, ok = m.RegisterWrapper("crashing", stubFactory(true, true))
	require.True(t, ok)

	results := m.HealthCheck(context.Background())
	assert.Equal(t, map[string]bool{"echo": true, "errors": false, "crashing": false}, results)
}

func TestManager_ListServers(t *testing.T) {
	m := newTestManager(t, helperRegistry())
	_, ok := m.RegisterWrapper("echo", stubFactory(true, false))
	require.True(t, ok)

	c, _ := m.Client("echo")
	require.NoError(t, c.Start(context.Background()))

	statuses := m.ListServers()
	require.Len(t, statuses, 4)
	assert.Equal(t, "crashing", statuses[0].Name)
	assert.Equal(t, "disabled", statuses[1].Name)
	assert.False(t, statuses[1].Enabled)

	echo := statuses[2]
	assert.Equal(t, "echo", echo.Name)
	assert.True(t, echo.Running)
	assert.True(t, echo.HasWrapper)
}

func TestManager_Match(t *testing.T) {
	m := newTestManager(t, helperRegistry())

	names, err := m.Match("e*")
	require.NoError(t, err)
	assert.Equal(t, []string{"echo", "errors"}, names)

	names, err = m.Match("*")
	require.NoError(t, err)
	assert.Len(t, names, 4)

	_, err = m.Match("[")
	assert.Error(t, err)
}

func TestManager_LoadConfigMissingFile(t *testing.T) {
	m := NewManager(ManagerConfig{Logger: internallog.Discard()})

	err := m.LoadConfig(filepath.Join(t.TempDir(), "servers.yaml"))
	require.Error(t, err)
	assert.Empty(t, m.Names())

	_, ok := m.Client("anything")
	assert.False(t, ok)
}

func TestManager_LoadConfigData(t *testing.T) {
	m := NewManager(ManagerConfig{Logger: internallog.Discard()})

	require.NoError(t, m.LoadConfigData([]byte(sampleConfig), "inline"))
	assert.Equal(t, []string{"address", "maps", "ocr"}, m.Names())

	cfg, ok := m.Config("address")
	require.True(t, ok)
	cfg.Args[0] = "mutated"

	again, _ := m.Config("address")
	assert.Equal(t, "--port", again.Args[0], "configs are returned by value")
}

func TestManager_CallThroughClient(t *testing.T) {
	m := newTestManager(t, helperRegistry())

	c, err := m.ClientFor(context.Background(), "echo")
	require.NoError(t, err)

	r := c.CallTool(context.Background(), "echo", map[string]any{"k": "v"})
	require.True(t, r.Success, r.Error)
	assert.Equal(t, "echo", r.ServerName)
}

func TestManager_LookupDoesNotStart(t *testing.T) {
	m := newTestManager(t, helperRegistry())
	m.clientOptions.StartupGrace = time.Second

	c, err := m.Lookup("crashing")
	require.NoError(t, err)
	assert.False(t, c.IsRunning())

	r := c.CallTool(context.Background(), "echo", nil)
	require.False(t, r.Success)
	assert.True(t, IsConnectionError(r.Err))
	assert.Contains(t, c.Stderr(), "fatal: missing credentials")

	_, err = m.Lookup("disabled")
	assert.Contains(t, err.Error(), "disabled")
	_, err = m.Lookup("nope")
	assert.Equal(t, ErrorKindNotFound, KindOf(err))
}
