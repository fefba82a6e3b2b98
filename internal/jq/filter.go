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
// Package jq filters JSON tool results with jq expressions.
package jq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/itchyny/gojq"
)

const (
	// DefaultTimeout bounds one filter run.
	DefaultTimeout = time.Second

	// DefaultMaxInputSize is the largest input accepted, in bytes (10MB).
	DefaultMaxInputSize = 10 * 1024 * 1024
)

// Filter is a compiled jq expression.
type Filter struct {
	expr         string
	code         *gojq.Code
	timeout      time.Duration
	maxInputSize int
}

// Compile parses and compiles expr. An empty expression yields a filter
// that passes its input through.
func Compile(expr string) (*Filter, error) {
	f := &Filter{expr: expr, timeout: DefaultTimeout, maxInputSize: DefaultMaxInputSize}
	if expr == "" {
		return f, nil
	}

	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid jq expression: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compilation failed: %w", err)
	}
	f.code = code
	return f, nil
}

// WithTimeout returns a copy of f with a different run timeout.
func (f *Filter) WithTimeout(d time.Duration) *Filter {
	c := *f
	c.timeout = d
	return &c
}

// String returns the source expression.
func (f *Filter) String() string {
	return f.expr
}

// Apply decodes raw and runs the filter on it. A single output is returned
// as-is, several outputs as a slice, none as nil.
func (f *Filter) Apply(ctx context.Context, raw json.RawMessage) (any, error) {
	if len(raw) > f.maxInputSize {
		return nil, fmt.Errorf("input size (%d bytes) exceeds maximum (%d bytes)", len(raw), f.maxInputSize)
	}

	var data any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("input is not JSON: %w", err)
		}
	}
	if f.code == nil {
		return data, nil
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	iter := f.code.RunWithContext(ctx, data)
	var results []any
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("jq execution timeout after %v", f.timeout)
			}
			return nil, err
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}
