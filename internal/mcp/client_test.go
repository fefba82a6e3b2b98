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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type echoPayload struct {
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args"`
	RequestID uint64         `json:"request_id"`
}

func newHelperClient(t *testing.T, mode string, mutate ...func(*ServerConfig)) *Client {
	t.Helper()
	cfg := helperConfig("helper", mode)
	for _, m := range mutate {
		m(&cfg)
	}
	c := NewClient(cfg, testClientOptions())
	t.Cleanup(func() { _ = c.Stop() })
	return c
}

func decodeEcho(t *testing.T, r ToolResult) echoPayload {
	t.Helper()
	require.True(t, r.Success, "call failed: %s", r.Error)
	var p echoPayload
	require.NoError(t, r.Decode(&p))
	return p
}

func TestClient_StartIsIdempotent(t *testing.T) {
	c := newHelperClient(t, "echo")
	ctx := context.Background()

	require.NoError(t, c.Start(ctx))
	require.True(t, c.IsRunning())
	pid := c.Stats().PID

	require.NoError(t, c.Start(ctx))
	assert.True(t, c.IsRunning())
	assert.Equal(t, pid, c.Stats().PID)
	assert.Equal(t, 1, c.Stats().Spawns)
}

func TestClient_CallToolStartsLazily(t *testing.T) {
	c := newHelperClient(t, "echo")
	require.False(t, c.IsRunning())

	r := c.CallTool(context.Background(), "echo", map[string]any{"q": "hello"})

	p := decodeEcho(t, r)
	assert.Equal(t, "echo", p.Tool)
	assert.Equal(t, "hello", p.Args["q"])
	assert.Equal(t, "echo", r.ToolName)
	assert.Equal(t, "helper", r.ServerName)
	assert.True(t, c.IsRunning())
}

func TestClient_RequestIDsIncreaseFromOne(t *testing.T) {
	c := newHelperClient(t, "echo")
	ctx := context.Background()

	for want := uint64(1); want <= 3; want++ {
		p := decodeEcho(t, c.CallTool(ctx, "echo", nil))
		assert.Equal(t, want, p.RequestID)
	}
}

func TestClient_NilArgumentsSendEmptyObject(t *testing.T) {
	c := newHelperClient(t, "echo")

	p := decodeEcho(t, c.CallTool(context.Background(), "echo", nil))
	assert.NotNil(t, p.Args)
	assert.Empty(t, p.Args)
}

func TestClient_ConcurrentCallsAreSerialized(t *testing.T) {
	c := newHelperClient(t, "echo")
	ctx := context.Background()

	const n = 8
	results := make([]ToolResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.CallTool(ctx, "sleep", map[string]any{"ms": 10, "caller": i})
		}(i)
	}
	wg.Wait()

	seen := make(map[uint64]bool)
	for i, r := range results {
		p := decodeEcho(t, r)
		assert.Equal(t, float64(i), p.Args["caller"], "response crossed callers")
		assert.False(t, seen[p.RequestID], "request id %d reused", p.RequestID)
		seen[p.RequestID] = true
	}

	for _, entry := range c.Logs(0) {
		assert.NotEqual(t, "OVERLAP", entry.Line, "a request was written before the previous response was read")
	}
	assert.Equal(t, 1, c.Stats().Spawns)
}

func TestClient_ConcurrentFirstCallsSpawnOnce(t *testing.T) {
	c := newHelperClient(t, "echo")
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := c.CallTool(ctx, "echo", nil)
			assert.True(t, r.Success, r.Error)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, c.Stats().Spawns)
}

func TestClient_TimeoutLeavesProcessRunning(t *testing.T) {
	c := newHelperClient(t, "hang", func(cfg *ServerConfig) {
		cfg.Timeout = 50 * time.Millisecond
	})
	require.NoError(t, c.Start(context.Background()))

	start := time.Now()
	r := c.CallTool(context.Background(), "echo", nil)
	elapsed := time.Since(start)

	assert.False(t, r.Success)
	assert.Contains(t, r.Error, "timeout")
	assert.True(t, IsTimeout(r.Err))
	assert.Less(t, elapsed, time.Second)
	assert.GreaterOrEqual(t, r.ElapsedMS, int64(50))
	assert.True(t, c.IsRunning(), "a timeout must not kill the process")
}

func TestClient_TimeoutReleasesLock(t *testing.T) {
	c := newHelperClient(t, "hang", func(cfg *ServerConfig) {
		cfg.Timeout = 50 * time.Millisecond
	})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		r := c.CallTool(ctx, "echo", nil)
		assert.True(t, IsTimeout(r.Err))
	}
}

func TestClient_DiscardsStaleResponse(t *testing.T) {
	c := newHelperClient(t, "echo", func(cfg *ServerConfig) {
		cfg.Timeout = 250 * time.Millisecond
	})
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	late := c.CallTool(ctx, "sleep", map[string]any{"ms": 400})
	require.True(t, IsTimeout(late.Err))

	r := c.CallTool(ctx, "echo", map[string]any{"n": "second"})
	p := decodeEcho(t, r)
	assert.Equal(t, "second", p.Args["n"])
	assert.Equal(t, uint64(2), p.RequestID)
}

func TestClient_EnvPlaceholders(t *testing.T) {
	c := newHelperClient(t, "echo", func(cfg *ServerConfig) {
		cfg.Env["API_KEY"] = "${MY_SECRET}"
		cfg.Env["MODE"] = "prod"
		cfg.Env["MISSING"] = "${TOOLHOST_TEST_UNSET_VARIABLE}"
	})
	c.opts.LookupEnv = func(name string) (string, bool) {
		if name == "MY_SECRET" {
			return "abc123", true
		}
		return "", false
	}
	ctx := context.Background()

	tests := []struct {
		name string
		want string
	}{
		{"API_KEY", "abc123"},
		{"MODE", "prod"},
		{"MISSING", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.CallTool(ctx, "env", map[string]any{"name": tt.name})
			require.True(t, r.Success, r.Error)
			assert.Equal(t, tt.want, r.Text())
		})
	}
}

func TestClient_ErrorResponseBecomesFailedResult(t *testing.T) {
	c := newHelperClient(t, "error")

	r := c.CallTool(context.Background(), "anything", map[string]any{})

	assert.False(t, r.Success)
	assert.Equal(t, "boom", r.Error)
	require.True(t, IsToolError(r.Err))
	e, _ := AsError(r.Err)
	assert.Equal(t, int64(-32000), e.Code)
	assert.True(t, c.IsRunning())
}

func TestClient_IsErrorResultBecomesFailedResult(t *testing.T) {
	c := newHelperClient(t, "echo")

	r := c.CallTool(context.Background(), "iserror", nil)

	assert.False(t, r.Success)
	assert.Equal(t, "quota exceeded", r.Error)
	assert.True(t, IsToolError(r.Err))
	assert.NotEmpty(t, r.Result)
}

func TestClient_SkipsNotificationsAndBlankLines(t *testing.T) {
	c := newHelperClient(t, "echo")

	p := decodeEcho(t, c.CallTool(context.Background(), "notify", map[string]any{"x": "y"}))
	assert.Equal(t, "y", p.Args["x"])
}

func TestClient_AcceptsResponseWithoutID(t *testing.T) {
	c := newHelperClient(t, "noid")

	r := c.CallTool(context.Background(), "echo", nil)
	require.True(t, r.Success, r.Error)
	assert.Equal(t, "no id", r.Text())
}

func TestClient_GarbageIsProtocolError(t *testing.T) {
	c := newHelperClient(t, "garbage")

	r := c.CallTool(context.Background(), "echo", nil)

	assert.False(t, r.Success)
	assert.True(t, IsProtocolError(r.Err))
	assert.True(t, c.IsRunning())
}

func TestClient_StartupCrashCarriesStderr(t *testing.T) {
	cfg := helperConfig("crasher", "crash")
	opts := testClientOptions()
	opts.StartupGrace = 2 * time.Second
	c := NewClient(cfg, opts)

	err := c.Start(context.Background())

	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	e, ok := AsError(err)
	require.True(t, ok)
	assert.Contains(t, e.Detail, "fatal: missing credentials")
	assert.Contains(t, e.Message, "exit status 3")
	assert.False(t, c.IsRunning())

	r := c.CallTool(context.Background(), "echo", nil)
	assert.False(t, r.Success)
	assert.True(t, IsConnectionError(r.Err))
}

func TestClient_RespawnsAfterMidCallExit(t *testing.T) {
	c := newHelperClient(t, "echo")
	ctx := context.Background()

	r := c.CallTool(ctx, "exit", nil)
	require.False(t, r.Success)
	assert.True(t, IsConnectionError(r.Err))
	assert.False(t, c.IsRunning())

	decodeEcho(t, c.CallTool(ctx, "echo", nil))
	assert.Equal(t, 2, c.Stats().Spawns)

	var lines []string
	for _, e := range c.Logs(0) {
		lines = append(lines, e.Line)
	}
	assert.Contains(t, strings.Join(lines, "\n"), "helper exiting mid-call")
}

func TestClient_StopIsSafe(t *testing.T) {
	c := newHelperClient(t, "echo")

	require.NoError(t, c.Stop(), "stop on a never-started client")

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, c.Stop())
	assert.False(t, c.IsRunning())
	require.NoError(t, c.Stop())

	decodeEcho(t, c.CallTool(context.Background(), "echo", nil))
	assert.Equal(t, 2, c.Stats().Spawns)
}

func TestClient_ListTools(t *testing.T) {
	c := newHelperClient(t, "echo")

	tools, err := c.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "echo", tools[0].Name)
	assert.NoError(t, c.Ping(context.Background()))
}

func TestClient_ListToolsErrorResponse(t *testing.T) {
	c := newHelperClient(t, "error")

	_, err := c.ListTools(context.Background())
	require.Error(t, err)
	assert.True(t, IsToolError(err))
	assert.Equal(t, "boom", err.Error())
}

func TestClient_Handshake(t *testing.T) {
	c := newHelperClient(t, "echo", func(cfg *ServerConfig) {
		cfg.Handshake = true
	})

	p := decodeEcho(t, c.CallTool(context.Background(), "echo", nil))
	assert.Equal(t, uint64(2), p.RequestID, "initialize uses the first id")
}

func TestClient_UnsupportedTransport(t *testing.T) {
	cfg := helperConfig("remote", "echo")
	cfg.Transport = TransportSSE
	c := NewClient(cfg, testClientOptions())

	err := c.Start(context.Background())
	require.Error(t, err)
	assert.True(t, IsConnectionError(err))
	assert.Contains(t, err.Error(), "not supported")
}

func TestClient_MissingCommand(t *testing.T) {
	cfg := helperConfig("missing", "echo")
	cfg.Command = "/nonexistent/toolhost-test-binary"
	c := NewClient(cfg, testClientOptions())

	r := c.CallTool(context.Background(), "echo", nil)
	assert.False(t, r.Success)
	assert.True(t, IsConnectionError(r.Err))
	assert.Equal(t, 1, c.Stats().Spawns)
	assert.False(t, c.IsRunning())
}

func TestClient_CanceledContext(t *testing.T) {
	c := newHelperClient(t, "hang")
	require.NoError(t, c.Start(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	r := c.CallTool(ctx, "echo", nil)
	assert.False(t, r.Success)
	assert.True(t, IsConnectionError(r.Err))
	assert.Contains(t, r.Error, "canceled")
}

func TestClient_RateLimit(t *testing.T) {
	c := newHelperClient(t, "echo", func(cfg *ServerConfig) {
		cfg.RateLimit = 20
		cfg.Burst = 1
	})
	ctx := context.Background()
	require.NoError(t, c.Start(ctx))

	start := time.Now()
	for i := 0; i < 3; i++ {
		decodeEcho(t, c.CallTool(ctx, "echo", nil))
	}
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestClient_Stats(t *testing.T) {
	c := newHelperClient(t, "error")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		c.CallTool(ctx, fmt.Sprintf("tool-%d", i), nil)
	}

	stats := c.Stats()
	assert.Equal(t, "helper", stats.Server)
	assert.Equal(t, 2, stats.Calls)
	assert.Equal(t, 2, stats.Failures)
	assert.Equal(t, "boom", stats.LastError)
	assert.True(t, stats.Running)
	assert.NotZero(t, stats.PID)
}

func TestClient_CallToolSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	opts := testClientOptions()
	opts.TracerProvider = tp
	c := NewClient(helperConfig("helper", "echo"), opts)
	t.Cleanup(func() { _ = c.Stop() })

	ctx := context.Background()
	require.True(t, c.CallTool(ctx, "echo", nil).Success)
	require.False(t, c.CallTool(ctx, "iserror", nil).Success)

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	ok := spans[0]
	assert.Equal(t, "mcp.call_tool", ok.Name())
	assert.Equal(t, codes.Ok, ok.Status().Code)
	attrs := map[string]string{}
	for _, kv := range ok.Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "helper", attrs["mcp.server"])
	assert.Equal(t, "echo", attrs["mcp.tool"])
	assert.NotEmpty(t, attrs["mcp.call_id"])

	failed := spans[1]
	assert.Equal(t, codes.Error, failed.Status().Code)
	assert.Equal(t, "quota exceeded", failed.Status().Description)
}

func TestClient_NotificationBurstBeforeResponse(t *testing.T) {
	c := newHelperClient(t, "echo", func(cfg *ServerConfig) {
		cfg.Timeout = 5 * time.Second
	})
	ctx := context.Background()

	for _, count := range []int{400, 5000, 0, 300} {
		r := c.CallTool(ctx, "burst", map[string]any{"count": count})
		p := decodeEcho(t, r)
		assert.Equal(t, "burst", p.Tool, "count=%d", count)
	}
	assert.Equal(t, 1, c.Stats().Spawns)
	assert.Zero(t, c.Stats().Failures)
}

func TestClient_ExitedProcessKeepsFinalResponse(t *testing.T) {
	c := newHelperClient(t, "echo")
	require.NoError(t, c.Start(context.Background()))

	c.lifeMu.Lock()
	p := c.proc
	c.lifeMu.Unlock()
	require.NotNil(t, p)

	line, err := encodeRequest(41, MethodToolsCall, toolsCallParams{Name: "replyexit", Arguments: map[string]any{}})
	require.NoError(t, err)
	require.NoError(t, p.write(line))

	select {
	case <-p.done:
	case <-time.After(5 * time.Second):
		t.Fatal("helper did not exit")
	}

	// Observing the exit releases the process without cutting off the
	// reply that is still buffered.
	assert.False(t, c.IsRunning())

	select {
	case raw, ok := <-p.lines:
		require.True(t, ok, "stdout closed before the final response was read")
		resp, err := decodeResponse(raw)
		require.NoError(t, err)
		assert.True(t, resp.matches(41))
	case <-time.After(5 * time.Second):
		t.Fatal("final response never arrived")
	}

	select {
	case <-p.closed:
	case <-time.After(5 * time.Second):
		t.Fatal("exited process was never torn down")
	}
}

func TestClient_ReplyThenExitWhileStatusPolled(t *testing.T) {
	c := newHelperClient(t, "echo")
	ctx := context.Background()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				c.IsRunning()
			}
		}
	}()

	for i := 0; i < 3; i++ {
		r := c.CallTool(ctx, "replyexit", nil)
		require.True(t, r.Success, r.Error)
		assert.Equal(t, "bye", r.Text())
		require.Eventually(t, func() bool { return !c.IsRunning() }, 5*time.Second, 10*time.Millisecond)
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 3, c.Stats().Spawns)
}
