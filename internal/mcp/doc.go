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

/*
Package mcp runs tool servers as child processes and talks to them with
line-delimited JSON-RPC 2.0 over stdin and stdout.

# Overview

  - ServerConfig: one declared tool server (command, args, env, timeout).
  - Client: owns one child process. Requests are lock-step: a request line is
    written and its response line read before the next request is sent.
  - ToolResult: the value every tool call returns. Client.CallTool never
    returns an error; failures are reported in the result.
  - Wrapper: a typed adapter over one server's tools, built by a
    WrapperFactory and registered with the Manager.
  - Manager: the registry of configs, lazily created clients, and wrappers.

# Usage

	mgr := mcp.NewManager(mcp.ManagerConfig{Logger: logger})
	if err := mgr.LoadConfig(path); err != nil {
	    logger.Warn("continuing with empty registry", "error", err)
	}

	client, ok := mgr.Client("maps")
	if !ok {
	    return
	}

	result := client.CallTool(ctx, "geocode", map[string]any{"address": "Av. Paulista, 1000"})
	if !result.Success {
	    logger.Warn("geocode failed", "error", result.Error)
	}

# Wire format

	-> {"id":1,"jsonrpc":"2.0","method":"tools/call","params":{"arguments":{...},"name":"geocode"}}
	<- {"jsonrpc":"2.0","id":1,"result":{"content":[...]}}

A response carrying an "error" object is reported as a tool error. EOF on
stdout is a connection error and discards the process so the next call
spawns a fresh one. A call that times out leaves the process running.
*/
package mcp
