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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	toolerrors "github.com/tombee/toolhost/pkg/errors"
)

func TestError_Messages(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "tool error is verbatim",
			err:  NewToolError("address", "boom", -32000),
			want: "boom",
		},
		{
			name: "tool error without message",
			err:  NewToolError("address", "", -32601),
			want: "tool server returned error code -32601",
		},
		{
			name: "timeout",
			err:  NewTimeoutError("address", "tools/call", 50*time.Millisecond),
			want: "timeout [address]: tools/call timed out after 50ms",
		},
		{
			name: "connection with detail",
			err:  NewConnectionError("ocr", "process exited during startup", nil).WithDetail("fatal: no key"),
			want: "connection error [ocr]: process exited during startup: fatal: no key",
		},
		{
			name: "not found",
			err:  ErrServerNotFound("nope"),
			want: `not found [nope]: tool server "nope" is not configured`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Classification(t *testing.T) {
	wrapped := fmt.Errorf("calling: %w", NewTimeoutError("s", "tools/call", time.Second))

	assert.True(t, IsTimeout(wrapped))
	assert.False(t, IsConnectionError(wrapped))
	assert.Equal(t, ErrorKindTimeout, KindOf(wrapped))
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
	assert.True(t, errors.Is(wrapped, context.DeadlineExceeded))

	var te *toolerrors.TimeoutError
	assert.True(t, errors.As(wrapped, &te))
	assert.Equal(t, time.Second, te.Duration)

	assert.True(t, toolerrors.IsRetryable(wrapped))
	assert.False(t, toolerrors.IsRetryable(NewToolError("s", "bad input", 0)))
	assert.Equal(t, "timeout", toolerrors.Classify(wrapped))
}

func TestError_UserMessage(t *testing.T) {
	var uv toolerrors.UserVisibleError = NewConnectionError("maps", "broken pipe", nil)
	assert.True(t, uv.IsUserVisible())
	assert.Equal(t, `tool server "maps" is temporarily unavailable`, uv.UserMessage())
	assert.NotEmpty(t, uv.Suggestion())

	assert.Equal(t, "boom", NewToolError("maps", "boom", 0).UserMessage())
}
