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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/sourcegraph/jsonrpc2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	internallog "github.com/tombee/toolhost/internal/log"
)

const (
	// DefaultStartupGrace is how long a fresh process must stay alive before
	// it is considered started.
	DefaultStartupGrace = 100 * time.Millisecond

	// DefaultStopTimeout bounds the wait between SIGTERM and SIGKILL.
	DefaultStopTimeout = 3 * time.Second

	tracerName = "github.com/tombee/toolhost/internal/mcp"

	// stderrTailLines is how much stderr goes into connection errors.
	stderrTailLines = 20
)

// ClientOptions tunes a Client. The zero value is usable.
type ClientOptions struct {
	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	StartupGrace time.Duration
	StopTimeout  time.Duration

	// StderrLines is the capacity of the stderr ring buffer.
	StderrLines int

	// LookupEnv resolves ${NAME} placeholders. Defaults to os.LookupEnv.
	LookupEnv func(string) (string, bool)

	// Environ is the base environment of spawned processes. Defaults to
	// os.Environ.
	Environ func() []string

	// ClientName and ClientVersion identify toolhost in the initialize
	// handshake.
	ClientName    string
	ClientVersion string

	// TracerProvider creates the client's tracer. Defaults to the global
	// provider.
	TracerProvider trace.TracerProvider
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.StartupGrace <= 0 {
		o.StartupGrace = DefaultStartupGrace
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.StderrLines <= 0 {
		o.StderrLines = DefaultStderrLines
	}
	if o.LookupEnv == nil {
		o.LookupEnv = os.LookupEnv
	}
	if o.Environ == nil {
		o.Environ = os.Environ
	}
	if o.ClientName == "" {
		o.ClientName = "toolhost"
	}
	if o.ClientVersion == "" {
		o.ClientVersion = "dev"
	}
	if o.TracerProvider == nil {
		o.TracerProvider = otel.GetTracerProvider()
	}
	return o
}

// Client owns the child process of one tool server and speaks lock-step
// JSON-RPC with it. It is safe for concurrent use; requests are serialized.
type Client struct {
	config  ServerConfig
	opts    ClientOptions
	logger  *slog.Logger
	tracer  trace.Tracer
	limiter *rate.Limiter

	// sem is the call lock. It is held across ensure-start, the request
	// write, and the response read, so at most one request is in flight.
	sem chan struct{}

	// lifeMu guards proc and spawns. Lock order is sem, then lifeMu.
	lifeMu sync.Mutex
	proc   *process
	spawns int

	nextID atomic.Uint64
	stderr *RingBuffer

	statsMu  sync.Mutex
	calls    int
	failures int
	lastErr  string
}

// NewClient creates a client for cfg. No process is spawned until the first
// Start or request.
func NewClient(cfg ServerConfig, opts ClientOptions) *Client {
	opts = opts.withDefaults()
	cfg = cfg.clone()
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	c := &Client{
		config: cfg,
		opts:   opts,
		logger: internallog.WithServer(opts.Logger, cfg.Name),
		tracer: opts.TracerProvider.Tracer(tracerName),
		sem:    make(chan struct{}, 1),
		stderr: NewRingBuffer(opts.StderrLines),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

// ServerName returns the tool server name.
func (c *Client) ServerName() string {
	return c.config.Name
}

// Config returns a copy of the client's configuration.
func (c *Client) Config() ServerConfig {
	return c.config.clone()
}

// IsRunning reports whether the process exists and has not exited. A process
// found to have exited is released here.
func (c *Client) IsRunning() bool {
	c.lifeMu.Lock()
	defer c.lifeMu.Unlock()
	return c.liveLocked() != nil
}

// Start spawns the process if it is not already running. Calling Start on a
// running client is a no-op.
func (c *Client) Start(ctx context.Context) error {
	if err := c.acquire(ctx); err != nil {
		return NewConnectionError(c.config.Name, "start canceled", err)
	}
	defer c.release()

	_, err := c.ensureStarted(ctx)
	return err
}

// Stop terminates the process: stdin is closed, SIGTERM is sent, and the
// process is killed if it outlives the stop timeout. Stop on a client that
// is not running is a no-op. It does not wait for an in-flight request,
// which fails with a connection error instead.
func (c *Client) Stop() error {
	c.lifeMu.Lock()
	p := c.proc
	c.proc = nil
	c.lifeMu.Unlock()

	if p == nil {
		return nil
	}
	recordRunning(c.config.Name, false)

	c.logger.Info("stopping tool server", "pid", p.pid())
	if err := p.terminate(c.opts.StopTimeout); err != nil {
		c.logger.Warn("tool server did not stop cleanly", "error", err)
		return err
	}
	c.logger.Debug("tool server stopped", "status", p.exitStatus())
	return nil
}

// CallTool invokes a tool. It never returns an error and never panics:
// every failure is reported in the returned ToolResult.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]any) (result ToolResult) {
	start := time.Now()
	callID := uuid.NewString()
	result = ToolResult{ToolName: name, ServerName: c.config.Name}

	ctx, span := c.tracer.Start(ctx, "mcp.call_tool",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("mcp.server", c.config.Name),
			attribute.String("mcp.tool", name),
			attribute.String("mcp.call_id", callID),
		),
	)
	call := &internallog.ToolCall{
		Server: c.config.Name,
		Method: MethodToolsCall,
		Tool:   name,
		CallID: callID,
	}
	internallog.LogToolCallStart(c.logger, call)

	defer func() {
		if r := recover(); r != nil {
			err := NewProtocolError(c.config.Name, fmt.Sprintf("internal failure: %v", r), nil)
			result.Success = false
			result.Error = err.Error()
			result.Err = err
		}

		elapsed := time.Since(start)
		result.ElapsedMS = elapsed.Milliseconds()

		kind := ErrorKind("")
		if !result.Success {
			if kind = KindOf(result.Err); kind == "" {
				kind = ErrorKindTool
			}
			span.RecordError(result.Err)
			span.SetStatus(codes.Error, result.Error)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.SetAttributes(attribute.Int64("mcp.request_id", int64(call.RequestID)))
		span.End()

		recordToolCall(c.config.Name, name, kind, elapsed)
		c.recordOutcome(result)
		internallog.LogToolCallEnd(c.logger, call, elapsed, result.Err)
	}()

	if args == nil {
		args = map[string]any{}
	}

	raw, err := c.request(ctx, MethodToolsCall, toolsCallParams{Name: name, Arguments: args}, call)
	if err != nil {
		result.Error = err.Error()
		result.Err = err
		return result
	}

	result.Success = true
	result.Result = raw

	// MCP servers report tool-level failures in-band.
	if env, ok := result.envelope(); ok && env.IsError {
		err := NewToolError(c.config.Name, result.Text(), 0)
		result.Success = false
		result.Error = err.Error()
		result.Err = err
	}
	return result
}

// ListTools asks the server for its tools.
func (c *Client) ListTools(ctx context.Context) ([]ToolDescriptor, error) {
	ctx, span := c.tracer.Start(ctx, "mcp.list_tools",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("mcp.server", c.config.Name)),
	)
	defer span.End()

	call := &internallog.ToolCall{
		Server: c.config.Name,
		Method: MethodToolsList,
		CallID: uuid.NewString(),
	}
	start := time.Now()
	internallog.LogToolCallStart(c.logger, call)

	raw, err := c.request(ctx, MethodToolsList, struct{}{}, call)
	if err == nil {
		var out toolsListResult
		if uerr := json.Unmarshal(raw, &out); uerr != nil {
			err = NewProtocolError(c.config.Name, "malformed tools/list result", uerr)
		} else {
			internallog.LogToolCallEnd(c.logger, call, time.Since(start), nil)
			return out.Tools, nil
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	internallog.LogToolCallEnd(c.logger, call, time.Since(start), err)
	return nil, err
}

// Ping performs a tools/list round trip.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.ListTools(ctx)
	return err
}

// Logs returns the last n stderr lines across all spawns. n <= 0 returns
// everything buffered.
func (c *Client) Logs(n int) []LogEntry {
	return c.stderr.GetLast(n)
}

// Stderr returns the buffered stderr text.
func (c *Client) Stderr() string {
	return joinLines(c.stderr.GetLast(0))
}

// Stats returns a snapshot of the client's counters.
func (c *Client) Stats() ClientStats {
	c.lifeMu.Lock()
	p := c.liveLocked()
	stats := ClientStats{Server: c.config.Name, Spawns: c.spawns, Running: p != nil}
	if p != nil {
		stats.PID = p.pid()
		stats.StartedAt = p.startedAt
	}
	c.lifeMu.Unlock()

	c.statsMu.Lock()
	stats.Calls = c.calls
	stats.Failures = c.failures
	stats.LastError = c.lastErr
	c.statsMu.Unlock()
	return stats
}

func (c *Client) recordOutcome(r ToolResult) {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	c.calls++
	if !r.Success {
		c.failures++
		c.lastErr = r.Error
	}
}

func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	<-c.sem
}

// request runs one lock-step round trip, starting the process first if
// needed. The timeout covers the write and the wait for the response.
func (c *Client) request(ctx context.Context, method string, params any, call *internallog.ToolCall) (json.RawMessage, error) {
	if err := c.acquire(ctx); err != nil {
		return nil, c.contextError(err, method)
	}
	defer c.release()

	p, err := c.ensureStarted(ctx)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, NewTimeoutError(c.config.Name, method+" waiting for rate limit", c.config.Timeout)
		}
	}

	return c.roundTrip(ctx, p, method, params, call)
}

// ensureStarted returns the live process, spawning one if needed. The caller
// must hold sem.
func (c *Client) ensureStarted(ctx context.Context) (*process, error) {
	c.lifeMu.Lock()
	p := c.liveLocked()
	if p != nil {
		c.lifeMu.Unlock()
		return p, nil
	}
	p, err := c.spawnLocked(ctx)
	c.lifeMu.Unlock()

	if err == nil && c.config.Handshake {
		if err = c.handshake(ctx, p); err != nil {
			c.discard(p)
		}
	}

	recordStart(c.config.Name, err)
	if err != nil {
		c.logger.Warn("tool server failed to start", "error", err)
		return nil, err
	}
	recordRunning(c.config.Name, true)
	c.logger.Info("tool server started", "pid", p.pid(), "spawn", p.spawn)
	return p, nil
}

// liveLocked returns proc if it is still alive. The caller must hold lifeMu.
func (c *Client) liveLocked() *process {
	p := c.proc
	if p == nil {
		return nil
	}
	if !p.exited() {
		return p
	}

	c.proc = nil
	recordRunning(c.config.Name, false)
	c.logger.Warn("tool server exited", "pid", p.pid(), "status", p.exitStatus())
	go p.retire(exitDrainGrace)
	return nil
}

// spawnLocked starts a process and waits out the startup grace period. The
// caller must hold lifeMu so that Stop cannot miss a process mid-spawn.
func (c *Client) spawnLocked(ctx context.Context) (*process, error) {
	name := c.config.Name
	if c.config.Transport != TransportStdio && c.config.Transport != "" {
		return nil, NewConnectionError(name, fmt.Sprintf("transport %q is not supported", c.config.Transport), nil)
	}

	env, missing := ResolveEnv(c.config.Env, c.opts.LookupEnv)
	if len(missing) > 0 {
		c.logger.Warn("environment placeholders reference unset variables", "variables", missing)
	}

	c.spawns++
	spawn := c.spawns
	c.logger.Info("starting tool server",
		"command", c.config.Command,
		"args", c.config.Args,
		"env", RedactEnv(env),
		"spawn", spawn,
	)

	p, err := spawnProcess(c.config, buildEnv(c.opts.Environ(), env), spawn, c.stderr, c.logger)
	if err != nil {
		return nil, NewConnectionError(name, fmt.Sprintf("failed to spawn %q", c.config.Command), err).
			WithDetail(err.Error())
	}

	timer := time.NewTimer(c.opts.StartupGrace)
	defer timer.Stop()

	select {
	case <-p.done:
		p.waitStderr(200 * time.Millisecond)
		diag := joinLines(c.stderr.SinceSpawn(spawn))
		_ = p.terminate(0)
		return nil, NewConnectionError(name,
			fmt.Sprintf("process exited during startup (%s)", p.exitStatus()), p.waitErr).
			WithDetail(diag)
	case <-ctx.Done():
		_ = p.terminate(0)
		return nil, NewConnectionError(name, "start canceled", ctx.Err())
	case <-timer.C:
	}

	c.proc = p
	return p, nil
}

// handshake performs the MCP initialize exchange on a fresh process.
func (c *Client) handshake(ctx context.Context, p *process) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	params := mcpgo.InitializeParams{
		ProtocolVersion: mcpgo.LATEST_PROTOCOL_VERSION,
		Capabilities:    mcpgo.ClientCapabilities{},
		ClientInfo: mcpgo.Implementation{
			Name:    c.opts.ClientName,
			Version: c.opts.ClientVersion,
		},
	}
	call := &internallog.ToolCall{Server: c.config.Name, Method: MethodInitialize, CallID: uuid.NewString()}

	raw, err := c.roundTrip(ctx, p, MethodInitialize, params, call)
	if err != nil {
		return err
	}

	var res mcpgo.InitializeResult
	if err := json.Unmarshal(raw, &res); err != nil {
		return NewProtocolError(c.config.Name, "malformed initialize result", err)
	}
	c.logger.Debug("tool server initialized",
		"protocol_version", res.ProtocolVersion,
		"server_name", res.ServerInfo.Name,
		"server_version", res.ServerInfo.Version,
	)

	line, err := encodeNotification(MethodInitialized, nil)
	if err != nil {
		return NewProtocolError(c.config.Name, "cannot encode notification", err)
	}
	if err := p.write(line); err != nil {
		return NewConnectionError(c.config.Name, "write to tool server failed", err)
	}
	return nil
}

// roundTrip writes one request and reads until its response. Blank lines,
// server-initiated messages, and responses to earlier requests are skipped.
// The caller must hold sem.
func (c *Client) roundTrip(ctx context.Context, p *process, method string, params any, call *internallog.ToolCall) (json.RawMessage, error) {
	name := c.config.Name
	id := c.nextID.Add(1)
	call.RequestID = id

	line, err := encodeRequest(id, method, params)
	if err != nil {
		return nil, NewProtocolError(name, "cannot encode request", err)
	}
	internallog.Trace(c.logger, "tool server request", slog.String("line", string(bytes.TrimSpace(line))))

	written := make(chan error, 1)
	go func() { written <- p.write(line) }()

	select {
	case err := <-written:
		if err != nil {
			c.discard(p)
			return nil, NewConnectionError(name, "write to tool server failed", err).WithDetail(c.stderrTail(p))
		}
	case <-ctx.Done():
		// A partial write would corrupt the stream for the next request.
		c.discard(p)
		return nil, c.contextError(ctx.Err(), method)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, c.contextError(ctx.Err(), method)

		case raw, ok := <-p.lines:
			if !ok {
				c.discard(p)
				cause := p.readErr
				if cause == nil {
					cause = io.EOF
				}
				return nil, NewConnectionError(name, "tool server closed its output", cause).WithDetail(c.stderrTail(p))
			}
			if len(bytes.TrimSpace(raw)) == 0 {
				continue
			}
			internallog.Trace(c.logger, "tool server response", slog.String("line", string(raw)))

			resp, err := decodeResponse(raw)
			if err != nil {
				return nil, NewProtocolError(name, "undecodable response", err)
			}
			if resp.Method != "" {
				c.logger.Debug("ignoring message from tool server", "method", resp.Method)
				continue
			}
			if !resp.matches(id) {
				recordStaleResponse(name)
				c.logger.Debug("discarding stale response", "expected_id", id, "got_id", idString(resp.ID))
				continue
			}
			if resp.Error != nil {
				return nil, NewToolError(name, resp.Error.Message, resp.Error.Code)
			}
			return resp.Result, nil
		}
	}
}

// discard forgets p if it is still the current process and tears it down.
func (c *Client) discard(p *process) {
	c.lifeMu.Lock()
	if c.proc == p {
		c.proc = nil
		recordRunning(c.config.Name, false)
	}
	c.lifeMu.Unlock()
	_ = p.terminate(0)
}

func (c *Client) contextError(err error, op string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(c.config.Name, op, c.config.Timeout)
	}
	return NewConnectionError(c.config.Name, op+" canceled", err)
}

// stderrTail returns the last stderr lines written by p.
func (c *Client) stderrTail(p *process) string {
	if p.exited() {
		p.waitStderr(50 * time.Millisecond)
	}
	entries := c.stderr.SinceSpawn(p.spawn)
	if len(entries) > stderrTailLines {
		entries = entries[len(entries)-stderrTailLines:]
	}
	return joinLines(entries)
}

func idString(id jsonrpc2.ID) string {
	if id.IsString {
		return id.Str
	}
	return fmt.Sprint(id.Num)
}

var _ ToolCaller = (*Client)(nil)
