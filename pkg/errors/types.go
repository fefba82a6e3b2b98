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

package errors

import (
	"fmt"
	"time"
)

// ValidationError reports input that was rejected before any work was done,
// such as a malformed postal code or a tool argument of the wrong shape.
type ValidationError struct {
	// Field names the offending input, if known.
	Field string

	// Message describes the problem.
	Message string

	// Suggestion is optional guidance for the user.
	Suggestion string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("invalid input: %s", e.Message)
}

// ErrorType implements ErrorClassifier.
func (e *ValidationError) ErrorType() string { return "validation" }

// IsRetryable implements ErrorClassifier.
func (e *ValidationError) IsRetryable() bool { return false }

// NotFoundError reports a lookup that matched nothing, for example an
// unknown tool server name.
type NotFoundError struct {
	// Resource is the kind of thing looked up ("server", "tool", "wrapper").
	Resource string

	// ID is the identifier that was not found.
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

// ErrorType implements ErrorClassifier.
func (e *NotFoundError) ErrorType() string { return "not_found" }

// IsRetryable implements ErrorClassifier.
func (e *NotFoundError) IsRetryable() bool { return false }

// ConfigError reports a configuration source that could not be used.
type ConfigError struct {
	// Source is the file or document the configuration came from.
	Source string

	// Key is the configuration key at fault, e.g. "servers.address.command".
	Key string

	// Reason explains what is wrong.
	Reason string

	// Cause is the underlying read or parse error.
	Cause error
}

func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Source != "" {
		msg += " in " + e.Source
	}
	if e.Key != "" {
		msg += " at " + e.Key
	}
	return msg + ": " + e.Reason
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string { return "config" }

// IsRetryable implements ErrorClassifier.
func (e *ConfigError) IsRetryable() bool { return false }

// TimeoutError reports an operation that exceeded its time budget.
type TimeoutError struct {
	// Operation describes what timed out, e.g. "tools/call geocode".
	Operation string

	// Duration is the budget that was exceeded.
	Duration time.Duration

	// Cause is the underlying error, usually context.DeadlineExceeded.
	Cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *TimeoutError) ErrorType() string { return "timeout" }

// IsRetryable implements ErrorClassifier.
func (e *TimeoutError) IsRetryable() bool { return true }
