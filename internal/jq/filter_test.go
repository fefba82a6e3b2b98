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
package jq

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilter_Apply(t *testing.T) {
	tests := []struct {
		name  string
		expr  string
		input string
		want  any
	}{
		{
			name:  "empty expression passes input through",
			input: `{"foo":"bar"}`,
			want:  map[string]any{"foo": "bar"},
		},
		{
			name:  "field extraction",
			expr:  ".street",
			input: `{"street":"Avenida Paulista","city":"São Paulo"}`,
			want:  "Avenida Paulista",
		},
		{
			name:  "array map",
			expr:  "map(.name)",
			input: `[{"name":"MASP"},{"name":"Parque Trianon"}]`,
			want:  []any{"MASP", "Parque Trianon"},
		},
		{
			name:  "multiple outputs become a slice",
			expr:  ".[]",
			input: `[1,2]`,
			want:  []any{float64(1), float64(2)},
		},
		{
			name:  "no output",
			expr:  "empty",
			input: `{}`,
			want:  nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)

			got, err := f.Apply(context.Background(), json.RawMessage(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompile_Invalid(t *testing.T) {
	_, err := Compile(".[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid jq expression")
}

func TestFilter_RuntimeError(t *testing.T) {
	f, err := Compile(".foo")
	require.NoError(t, err)

	_, err = f.Apply(context.Background(), json.RawMessage(`[1,2]`))
	assert.Error(t, err)
}

func TestFilter_NotJSON(t *testing.T) {
	f, err := Compile(".")
	require.NoError(t, err)

	_, err = f.Apply(context.Background(), json.RawMessage("plain text"))
	assert.Error(t, err)
}

func TestFilter_Timeout(t *testing.T) {
	f, err := Compile("def loop: loop; loop")
	require.NoError(t, err)

	_, err = f.WithTimeout(50*time.Millisecond).Apply(context.Background(), json.RawMessage("0"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}
