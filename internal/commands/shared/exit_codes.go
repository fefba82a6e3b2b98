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
package shared

import (
	"errors"
	"fmt"
	"io"
	"os"

	pkgerrors "github.com/tombee/toolhost/pkg/errors"
)

// Exit codes
const (
	ExitSuccess     = 0
	ExitFailure     = 1
	ExitConfigError = 2
	ExitUnhealthy   = 3
	ExitToolFailed  = 4
)

// ExitCodeInfo describes one exit code.
type ExitCodeInfo struct {
	Code    int    `json:"code"`
	Meaning string `json:"meaning"`
}

// ExitCodes lists every code the CLI exits with.
var ExitCodes = []ExitCodeInfo{
	{ExitSuccess, "success"},
	{ExitFailure, "unexpected failure"},
	{ExitConfigError, "server registry missing or invalid"},
	{ExitUnhealthy, "one or more servers failed a health check"},
	{ExitToolFailed, "the tool call returned a failure"},
}

// ExitError is an error that carries an exit code
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewConfigError reports an unreadable or invalid server registry.
func NewConfigError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitConfigError, Message: msg, Cause: cause}
}

// NewUnhealthyError reports servers that failed a health check.
func NewUnhealthyError(msg string) *ExitError {
	return &ExitError{Code: ExitUnhealthy, Message: msg}
}

// NewToolFailedError reports a tool call that returned a failure.
func NewToolFailedError(msg string, cause error) *ExitError {
	return &ExitError{Code: ExitToolFailed, Message: msg, Cause: cause}
}

// HandleExitError prints err and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	os.Exit(reportError(os.Stderr, err))
}

// reportError writes err and any suggestion to w and returns the exit code.
func reportError(w io.Writer, err error) int {
	fmt.Fprintln(w, "Error:", err.Error())
	printUserVisibleSuggestion(w, err)

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// printUserVisibleSuggestion prints the suggestion of the first
// UserVisibleError in the chain.
func printUserVisibleSuggestion(w io.Writer, err error) {
	var userErr pkgerrors.UserVisibleError
	if !errors.As(err, &userErr) || !userErr.IsUserVisible() {
		return
	}
	if suggestion := userErr.Suggestion(); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}
