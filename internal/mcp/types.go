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
	"errors"
	"strings"
	"time"
)

// ToolDescriptor is one entry of a tools/list response.
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ContentItem is one element of an MCP-style result content array.
type ContentItem struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

// ToolResult is the outcome of a tool call. Exactly one of Result and Error
// is meaningful, selected by Success.
type ToolResult struct {
	Success bool `json:"success"`
	// Result is the raw "result" member of the response.
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	ToolName   string          `json:"tool_name"`
	ServerName string          `json:"server_name"`
	ElapsedMS  int64           `json:"elapsed_ms"`

	// Err is the typed failure behind Error, usually an *Error.
	Err error `json:"-"`
}

// Elapsed returns ElapsedMS as a duration.
func (r ToolResult) Elapsed() time.Duration {
	return time.Duration(r.ElapsedMS) * time.Millisecond
}

// ErrNoPayload is returned by Decode when a result carries nothing to decode.
var ErrNoPayload = errors.New("tool result has no payload")

// resultEnvelope covers the result shapes seen in practice.
type resultEnvelope struct {
	Content           json.RawMessage `json:"content"`
	StructuredContent json.RawMessage `json:"structuredContent"`
	IsError           bool            `json:"isError"`
}

func (r ToolResult) envelope() (resultEnvelope, bool) {
	var env resultEnvelope
	if len(r.Result) == 0 || r.Result[0] != '{' {
		return env, false
	}
	if err := json.Unmarshal(r.Result, &env); err != nil {
		return env, false
	}
	return env, true
}

// Content returns result.content when it is an array of content items.
func (r ToolResult) Content() ([]ContentItem, bool) {
	env, ok := r.envelope()
	if !ok || !isJSONArray(env.Content) {
		return nil, false
	}
	var items []ContentItem
	if err := json.Unmarshal(env.Content, &items); err != nil {
		return nil, false
	}
	return items, true
}

// Text joins the text content items. Results that are not content arrays
// are returned as their JSON text.
func (r ToolResult) Text() string {
	if !r.Success {
		return r.Error
	}
	if items, ok := r.Content(); ok {
		var parts []string
		for _, item := range items {
			if item.Type == "text" || item.Text != "" {
				parts = append(parts, item.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	if env, ok := r.envelope(); ok && len(env.Content) > 0 {
		var s string
		if json.Unmarshal(env.Content, &s) == nil {
			return s
		}
		return string(env.Content)
	}
	return string(r.Result)
}

// Payload returns the structured value a tool produced, looking in order at
// structuredContent, a JSON document inside the first text content item,
// a non-array content member, and the whole result.
func (r ToolResult) Payload() json.RawMessage {
	env, ok := r.envelope()
	if !ok {
		return r.Result
	}
	if len(env.StructuredContent) > 0 && !isJSONNull(env.StructuredContent) {
		return env.StructuredContent
	}
	if items, ok := r.Content(); ok {
		for _, item := range items {
			text := strings.TrimSpace(item.Text)
			if text != "" && json.Valid([]byte(text)) {
				return json.RawMessage(text)
			}
		}
		return nil
	}
	if len(env.Content) > 0 && !isJSONNull(env.Content) {
		return env.Content
	}
	return r.Result
}

// Decode unmarshals Payload into v.
func (r ToolResult) Decode(v any) error {
	payload := r.Payload()
	if len(payload) == 0 || isJSONNull(payload) {
		return ErrNoPayload
	}
	return json.Unmarshal(payload, v)
}

func isJSONArray(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '['
}

func isJSONNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// ClientStats is a snapshot of a client's counters.
type ClientStats struct {
	Server    string    `json:"server"`
	Running   bool      `json:"running"`
	PID       int       `json:"pid,omitempty"`
	StartedAt time.Time `json:"started_at,omitempty"`
	Spawns    int       `json:"spawns"`
	Calls     int       `json:"calls"`
	Failures  int       `json:"failures"`
	LastError string    `json:"last_error,omitempty"`
}

// ServerStatus summarises one registry entry for listing.
type ServerStatus struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Command     string `json:"command"`
	Enabled     bool   `json:"enabled"`
	Running     bool   `json:"running"`
	HasWrapper  bool   `json:"has_wrapper"`
}
