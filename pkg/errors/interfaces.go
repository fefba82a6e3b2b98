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

// Package errors holds the error types shared across toolhost packages and
// the interfaces the CLI uses to render them.
package errors

// UserVisibleError is implemented by errors that carry a message fit for
// end users, plus an optional hint on how to fix the problem.
//
// The CLI walks the error chain looking for this interface when a command
// fails.
type UserVisibleError interface {
	error

	// IsUserVisible reports whether the message should be shown as-is.
	IsUserVisible() bool

	// UserMessage returns the message without internal details.
	UserMessage() string

	// Suggestion returns a hint, or "" if there is none.
	Suggestion() string
}

// ErrorClassifier lets callers branch on an error's category without
// depending on its concrete type.
type ErrorClassifier interface {
	error

	// ErrorType returns a short category such as "timeout" or "connection".
	ErrorType() string

	// IsRetryable reports whether repeating the operation may succeed.
	IsRetryable() bool
}

var (
	_ ErrorClassifier = (*ValidationError)(nil)
	_ ErrorClassifier = (*NotFoundError)(nil)
	_ ErrorClassifier = (*ConfigError)(nil)
	_ ErrorClassifier = (*TimeoutError)(nil)
)
