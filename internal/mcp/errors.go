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
	"errors"
	"fmt"
	"strings"
	"time"

	toolerrors "github.com/tombee/toolhost/pkg/errors"
)

// ErrorKind is the category of an IPC error.
type ErrorKind string

const (
	// ErrorKindConnection covers spawn failures, a process that died during
	// startup, and a closed pipe.
	ErrorKindConnection ErrorKind = "connection"
	// ErrorKindTimeout means no response arrived within the server's timeout.
	ErrorKindTimeout ErrorKind = "timeout"
	// ErrorKindTool means the server answered with a JSON-RPC error object.
	ErrorKindTool ErrorKind = "tool"
	// ErrorKindProtocol means a line on the wire could not be decoded.
	ErrorKindProtocol ErrorKind = "protocol"
	// ErrorKindConfig means the configuration could not be used.
	ErrorKindConfig ErrorKind = "config"
	// ErrorKindNotFound means a server name is not in the registry.
	ErrorKindNotFound ErrorKind = "not_found"
)

// Error is the single error type produced by this package. Callers that
// only care that an IPC operation failed can stop at *Error; callers that
// care why can switch on Kind.
type Error struct {
	Kind ErrorKind
	// Server is the tool server name, if known.
	Server string
	// Message is the primary description. For tool errors it is the server's
	// message verbatim.
	Message string
	// Code is the JSON-RPC error code for tool errors.
	Code int64
	// Detail carries diagnostics such as captured stderr.
	Detail      string
	Suggestions []string
	Cause       error
}

// Error implements the error interface. Tool errors render as the server's
// own message so they read naturally in a ToolResult.
func (e *Error) Error() string {
	if e.Kind == ErrorKindTool {
		return e.Message
	}

	var sb strings.Builder
	switch e.Kind {
	case ErrorKindTimeout:
		sb.WriteString("timeout")
	case ErrorKindNotFound:
		sb.WriteString("not found")
	default:
		sb.WriteString(string(e.Kind))
		sb.WriteString(" error")
	}
	if e.Server != "" {
		fmt.Fprintf(&sb, " [%s]", e.Server)
	}
	sb.WriteString(": ")
	sb.WriteString(e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements pkg/errors.UserVisibleError.
func (e *Error) IsUserVisible() bool {
	return true
}

// UserMessage implements pkg/errors.UserVisibleError. Transport failures are
// reported as a temporarily unavailable capability.
func (e *Error) UserMessage() string {
	switch e.Kind {
	case ErrorKindConnection, ErrorKindTimeout, ErrorKindProtocol:
		if e.Server != "" {
			return fmt.Sprintf("tool server %q is temporarily unavailable", e.Server)
		}
		return "this capability is temporarily unavailable"
	default:
		return e.Message
	}
}

// Suggestion implements pkg/errors.UserVisibleError.
func (e *Error) Suggestion() string {
	if len(e.Suggestions) == 0 {
		return ""
	}
	return e.Suggestions[0]
}

// ErrorType implements pkg/errors.ErrorClassifier.
func (e *Error) ErrorType() string {
	return string(e.Kind)
}

// IsRetryable implements pkg/errors.ErrorClassifier.
func (e *Error) IsRetryable() bool {
	return e.Kind == ErrorKindConnection || e.Kind == ErrorKindTimeout
}

// WithDetail sets Detail.
func (e *Error) WithDetail(detail string) *Error {
	e.Detail = detail
	return e
}

// WithSuggestions sets Suggestions.
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = suggestions
	return e
}

// NewConnectionError reports that the server process could not be reached.
func NewConnectionError(server, message string, cause error) *Error {
	return &Error{
		Kind:    ErrorKindConnection,
		Server:  server,
		Message: message,
		Cause:   cause,
		Suggestions: []string{
			fmt.Sprintf("Check the server starts on its own: toolhost tools %s", server),
			"Verify the command, arguments, and environment in the registry",
		},
	}
}

// NewTimeoutError reports that operation got no response within d.
func NewTimeoutError(server, operation string, d time.Duration) *Error {
	cause := &toolerrors.TimeoutError{
		Operation: operation,
		Duration:  d,
		Cause:     context.DeadlineExceeded,
	}
	return &Error{
		Kind:    ErrorKindTimeout,
		Server:  server,
		Message: cause.Error(),
		Cause:   cause,
		Suggestions: []string{
			"Increase the server's timeout (milliseconds) in the registry",
		},
	}
}

// NewToolError wraps an error object returned by the server.
func NewToolError(server, message string, code int64) *Error {
	if message == "" {
		message = fmt.Sprintf("tool server returned error code %d", code)
	}
	return &Error{
		Kind:    ErrorKindTool,
		Server:  server,
		Message: message,
		Code:    code,
	}
}

// NewProtocolError reports a response that could not be decoded.
func NewProtocolError(server, message string, cause error) *Error {
	return &Error{
		Kind:    ErrorKindProtocol,
		Server:  server,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError reports an unusable configuration source.
func NewConfigError(source, key, reason string, cause error) *Error {
	return &Error{
		Kind:    ErrorKindConfig,
		Message: reason,
		Cause: &toolerrors.ConfigError{
			Source: source,
			Key:    key,
			Reason: reason,
			Cause:  cause,
		},
		Suggestions: []string{
			"Validate the registry: toolhost validate",
		},
	}
}

// ErrServerNotFound reports a name that is not in the registry.
func ErrServerNotFound(name string) *Error {
	return &Error{
		Kind:    ErrorKindNotFound,
		Server:  name,
		Message: fmt.Sprintf("tool server %q is not configured", name),
		Cause:   &toolerrors.NotFoundError{Resource: "server", ID: name},
		Suggestions: []string{
			"List configured servers: toolhost servers",
		},
	}
}

// ErrServerDisabled reports a configured server with enabled: false.
func ErrServerDisabled(name string) *Error {
	return &Error{
		Kind:    ErrorKindConfig,
		Server:  name,
		Message: fmt.Sprintf("tool server %q is disabled", name),
		Suggestions: []string{
			"Set enabled: true for the server in the registry",
		},
	}
}

// AsError returns the first *Error in err's chain.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) ErrorKind {
	if e, ok := AsError(err); ok {
		return e.Kind
	}
	return ""
}

// IsConnectionError reports whether err is a connection failure.
func IsConnectionError(err error) bool { return KindOf(err) == ErrorKindConnection }

// IsTimeout reports whether err is a timeout.
func IsTimeout(err error) bool { return KindOf(err) == ErrorKindTimeout }

// IsToolError reports whether err is an error returned by the server.
func IsToolError(err error) bool { return KindOf(err) == ErrorKindTool }

// IsProtocolError reports whether err is a decode failure.
func IsProtocolError(err error) bool { return KindOf(err) == ErrorKindProtocol }

var (
	_ toolerrors.UserVisibleError = (*Error)(nil)
	_ toolerrors.ErrorClassifier  = (*Error)(nil)
)
