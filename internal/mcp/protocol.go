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
	"encoding/json"
	"fmt"

	"github.com/sourcegraph/jsonrpc2"
)

// Methods sent to tool servers.
const (
	MethodToolsCall   = "tools/call"
	MethodToolsList   = "tools/list"
	MethodInitialize  = "initialize"
	MethodInitialized = "notifications/initialized"
)

// toolsCallParams is the params object of tools/call.
type toolsCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// toolsListResult is the result object of tools/list.
type toolsListResult struct {
	Tools []ToolDescriptor `json:"tools"`
}

// encodeRequest renders one newline-terminated request line.
func encodeRequest(id uint64, method string, params any) ([]byte, error) {
	req := &jsonrpc2.Request{Method: method, ID: jsonrpc2.ID{Num: id}}
	if err := req.SetParams(params); err != nil {
		return nil, fmt.Errorf("encoding %s params: %w", method, err)
	}
	return marshalLine(req)
}

// encodeNotification renders a request line without an id.
func encodeNotification(method string, params any) ([]byte, error) {
	req := &jsonrpc2.Request{Method: method, Notif: true}
	if params != nil {
		if err := req.SetParams(params); err != nil {
			return nil, fmt.Errorf("encoding %s params: %w", method, err)
		}
	}
	return marshalLine(req)
}

func marshalLine(req *jsonrpc2.Request) ([]byte, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding %s request: %w", req.Method, err)
	}
	return append(data, '\n'), nil
}

// response is a decoded line from a tool server.
type response struct {
	// HasID is false when the line carried no id, or a null one.
	HasID bool
	ID    jsonrpc2.ID
	// Method is set when the server sent a request or notification instead
	// of a response.
	Method string
	Result json.RawMessage
	Error  *jsonrpc2.Error
}

// matches reports whether the response answers request id.
func (r *response) matches(id uint64) bool {
	if !r.HasID {
		return true
	}
	if r.ID.IsString {
		return r.ID.Str == fmt.Sprint(id)
	}
	return r.ID.Num == id
}

// linePeek reads the members that decide how a line is handled.
type linePeek struct {
	ID     json.RawMessage `json:"id"`
	Method string          `json:"method"`
	Result json.RawMessage `json:"result"`
}

// decodeResponse parses one line from the server's stdout.
func decodeResponse(line []byte) (*response, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 || line[0] != '{' {
		return nil, fmt.Errorf("expected a JSON object, got %q", truncate(line, 80))
	}

	var peek linePeek
	if err := json.Unmarshal(line, &peek); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if peek.Method != "" {
		return &response{Method: peek.Method}, nil
	}

	var msg jsonrpc2.Response
	if err := json.Unmarshal(line, &msg); err != nil {
		return nil, fmt.Errorf("invalid JSON-RPC response: %w", err)
	}

	resp := &response{
		HasID: len(peek.ID) > 0 && !isJSONNull(peek.ID),
		ID:    msg.ID,
		Error: msg.Error,
	}
	switch {
	case len(peek.Result) > 0:
		resp.Result = peek.Result
	case msg.Result != nil && len(*msg.Result) > 0:
		resp.Result = *msg.Result
	}
	if resp.Error == nil && resp.Result == nil {
		return nil, fmt.Errorf("response has neither result nor error")
	}
	return resp, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
