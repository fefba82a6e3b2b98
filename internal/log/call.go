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

package log

import (
	"context"
	"log/slog"
	"time"
)

// ToolCall identifies one request sent to a tool server.
type ToolCall struct {
	Server string
	Method string
	Tool   string
	CallID string
	// RequestID is the JSON-RPC id on the wire.
	RequestID uint64
}

func (c *ToolCall) attrs() []any {
	attrs := []any{
		ServerKey, c.Server,
		"method", c.Method,
		CallIDKey, c.CallID,
		"request_id", c.RequestID,
	}
	if c.Tool != "" {
		attrs = append(attrs, ToolKey, c.Tool)
	}
	return attrs
}

// LogToolCallStart records a request at debug level.
func LogToolCallStart(logger *slog.Logger, call *ToolCall) {
	logger.Debug("tool call started", call.attrs()...)
}

// LogToolCallEnd records the outcome of a request. Failures are logged at
// warn level since they are contained and reported to the caller.
func LogToolCallEnd(logger *slog.Logger, call *ToolCall, elapsed time.Duration, err error) {
	attrs := append(call.attrs(), DurationKey, elapsed.Milliseconds())

	if err != nil {
		attrs = append(attrs, "error", err.Error())
		logger.Log(context.Background(), slog.LevelWarn, "tool call failed", attrs...)
		return
	}
	logger.Log(context.Background(), slog.LevelDebug, "tool call completed", attrs...)
}
