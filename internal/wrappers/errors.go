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
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tombee/toolhost/internal/mcp"
	toolerrors "github.com/tombee/toolhost/pkg/errors"
)

var (
	// ErrNotFound means the tool answered but had nothing for the request,
	// or answered with something that could not be decoded.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput means a request was rejected before any call was made.
	ErrInvalidInput = errors.New("invalid input")
)

func invalidInput(field, message, suggestion string) error {
	return fmt.Errorf("%w: %w", ErrInvalidInput, &toolerrors.ValidationError{
		Field:      field,
		Message:    message,
		Suggestion: suggestion,
	})
}

// notFoundMarker covers the shapes tools use to say there was no match.
type notFoundMarker struct {
	NotFound bool  `json:"not_found"`
	Found    *bool `json:"found"`
	Erro     bool  `json:"erro"`
}

// decodeResult decodes a tool result into v. A failed call returns its
// error; an empty, undecodable, or not-found payload returns ErrNotFound.
func decodeResult(r mcp.ToolResult, v any) error {
	if !r.Success {
		if r.Err != nil {
			return r.Err
		}
		return errors.New(r.Error)
	}

	payload := r.Payload()
	if len(payload) > 0 && payload[0] == '{' {
		var marker notFoundMarker
		if json.Unmarshal(payload, &marker) == nil &&
			(marker.NotFound || marker.Erro || (marker.Found != nil && !*marker.Found)) {
			return ErrNotFound
		}
	}

	if err := r.Decode(v); err != nil {
		return fmt.Errorf("%w: undecodable %s result: %v", ErrNotFound, r.ToolName, err)
	}
	return nil
}
