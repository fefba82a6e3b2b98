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

// Package testing provides in-memory doubles for the mcp package.
package testing

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/tombee/toolhost/internal/mcp"
)

// Call records one CallTool invocation.
type Call struct {
	Tool string
	Args map[string]any
}

// CallHandler answers a tool call.
type CallHandler func(ctx context.Context, tool string, args map[string]any) mcp.ToolResult

// MockCaller implements mcp.ToolCaller for testing.
type MockCaller struct {
	serverName string
	tools      []mcp.ToolDescriptor
	listErr    error
	responses  map[string]mcp.ToolResult
	handler    CallHandler
	callDelay  time.Duration
	calls      []Call
	mu         sync.RWMutex
}

// NewMockCaller creates a new mock caller for serverName.
func NewMockCaller(serverName string, tools ...mcp.ToolDescriptor) *MockCaller {
	return &MockCaller{
		serverName: serverName,
		tools:      tools,
		responses:  make(map[string]mcp.ToolResult),
	}
}

// ServerName returns the configured server name.
func (c *MockCaller) ServerName() string {
	return c.serverName
}

// ListTools returns the configured list of tools.
func (c *MockCaller) ListTools(ctx context.Context) ([]mcp.ToolDescriptor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.listErr != nil {
		return nil, c.listErr
	}
	toolsCopy := make([]mcp.ToolDescriptor, len(c.tools))
	copy(toolsCopy, c.tools)
	return toolsCopy, nil
}

// CallTool records the call and answers it from the handler, a canned
// response, or a tool error naming the unknown tool, in that order.
func (c *MockCaller) CallTool(ctx context.Context, tool string, args map[string]any) mcp.ToolResult {
	c.mu.Lock()
	c.calls = append(c.calls, Call{Tool: tool, Args: args})
	delay := c.callDelay
	handler := c.handler
	resp, canned := c.responses[tool]
	c.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			err := mcp.NewTimeoutError(c.serverName, mcp.MethodToolsCall, delay)
			return c.failed(tool, err)
		}
	}

	if handler != nil {
		return handler(ctx, tool, args)
	}
	if canned {
		resp.ToolName = tool
		resp.ServerName = c.serverName
		return resp
	}
	return c.failed(tool, mcp.NewToolError(c.serverName, fmt.Sprintf("unknown tool %q", tool), -32601))
}

func (c *MockCaller) failed(tool string, err error) mcp.ToolResult {
	return mcp.ToolResult{
		Success:    false,
		Error:      err.Error(),
		Err:        err,
		ToolName:   tool,
		ServerName: c.serverName,
	}
}

// SetCallHandler installs a handler for every call.
func (c *MockCaller) SetCallHandler(f CallHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handler = f
}

// SetResult answers tool with result as the raw JSON-RPC result member.
func (c *MockCaller) SetResult(tool string, result any) {
	raw, err := json.Marshal(result)
	if err != nil {
		panic(fmt.Sprintf("mock result for %s: %v", tool, err))
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[tool] = mcp.ToolResult{Success: true, Result: raw}
}

// SetTextResult answers tool with an MCP content array holding text.
func (c *MockCaller) SetTextResult(tool, text string) {
	c.SetResult(tool, map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	})
}

// SetJSONResult answers tool with v rendered as JSON text content.
func (c *MockCaller) SetJSONResult(tool string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("mock result for %s: %v", tool, err))
	}
	c.SetTextResult(tool, string(data))
}

// SetError makes tool fail with err.
func (c *MockCaller) SetError(tool string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responses[tool] = mcp.ToolResult{Success: false, Error: err.Error(), Err: err}
}

// SetListError makes ListTools fail.
func (c *MockCaller) SetListError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listErr = err
}

// SetCallDelay sets a delay applied before every call.
func (c *MockCaller) SetCallDelay(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callDelay = d
}

// Calls returns the recorded calls.
func (c *MockCaller) Calls() []Call {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Call, len(c.calls))
	copy(out, c.calls)
	return out
}

// CallCount returns how many calls were made.
func (c *MockCaller) CallCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.calls)
}

var _ mcp.ToolCaller = (*MockCaller)(nil)
