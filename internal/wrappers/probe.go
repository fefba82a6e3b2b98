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
package wrappers

import (
	"context"

	"github.com/tombee/toolhost/internal/mcp"
)

// Probe is a wrapper for servers without a typed adapter. Its health check
// is a tools/list round trip.
type Probe struct {
	caller mcp.ToolCaller
}

// NewProbe creates a probe over caller.
func NewProbe(caller mcp.ToolCaller) *Probe {
	return &Probe{caller: caller}
}

// ServerName implements mcp.Wrapper.
func (p *Probe) ServerName() string {
	return p.caller.ServerName()
}

// HealthCheck implements mcp.Wrapper.
func (p *Probe) HealthCheck(ctx context.Context) bool {
	_, err := p.caller.ListTools(ctx)
	return err == nil
}

// Tools lists the server's tools.
func (p *Probe) Tools(ctx context.Context) ([]mcp.ToolDescriptor, error) {
	return p.caller.ListTools(ctx)
}

// Call invokes a tool by name.
func (p *Probe) Call(ctx context.Context, tool string, args map[string]any) mcp.ToolResult {
	return p.caller.CallTool(ctx, tool, args)
}

var _ mcp.Wrapper = (*Probe)(nil)
