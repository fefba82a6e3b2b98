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

import "context"

// ToolCaller is the generic tool invocation surface of a tool server.
// This interface enables dependency injection and testing with mock implementations.
type ToolCaller interface {
	// ServerName returns the unique identifier for this server.
	ServerName() string

	// CallTool executes a tool. Failures are reported in the result.
	CallTool(ctx context.Context, name string, args map[string]any) ToolResult

	// ListTools retrieves the list of available tools from the server.
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
}

// Wrapper is a typed adapter over one tool server. Implementations add
// their own typed methods and delegate to a ToolCaller they do not own.
type Wrapper interface {
	// ServerName names the tool server backing the wrapper.
	ServerName() string

	// HealthCheck performs one cheap call and reports whether it succeeded.
	// It must not panic.
	HealthCheck(ctx context.Context) bool
}

// WrapperFactory builds a wrapper around a caller owned by the Manager.
type WrapperFactory func(caller ToolCaller) Wrapper
