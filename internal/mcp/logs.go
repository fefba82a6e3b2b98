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
	"strings"
	"sync"
	"time"
)

// DefaultStderrLines is how many stderr lines a client keeps per server.
const DefaultStderrLines = 200

// LogEntry is one line a tool server wrote to stderr.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Line      string    `json:"line"`
	// Spawn numbers the process that wrote the line, starting at 1.
	Spawn int `json:"spawn"`
}

// RingBuffer is a fixed-size circular buffer of log entries.
type RingBuffer struct {
	mu      sync.RWMutex
	entries []LogEntry
	head    int
	count   int
}

// NewRingBuffer creates a ring buffer holding up to capacity entries.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultStderrLines
	}
	return &RingBuffer{entries: make([]LogEntry, capacity)}
}

// Add appends an entry, overwriting the oldest when full.
func (rb *RingBuffer) Add(entry LogEntry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	size := len(rb.entries)
	rb.entries[(rb.head+rb.count)%size] = entry
	if rb.count < size {
		rb.count++
	} else {
		rb.head = (rb.head + 1) % size
	}
}

// GetLast returns the last n entries, oldest first. n <= 0 returns all.
func (rb *RingBuffer) GetLast(n int) []LogEntry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	if n <= 0 || n > rb.count {
		n = rb.count
	}
	result := make([]LogEntry, n)
	start := rb.count - n
	for i := 0; i < n; i++ {
		result[i] = rb.entries[(rb.head+start+i)%len(rb.entries)]
	}
	return result
}

// SinceSpawn returns the entries written by the given spawn.
func (rb *RingBuffer) SinceSpawn(spawn int) []LogEntry {
	var out []LogEntry
	for _, e := range rb.GetLast(0) {
		if e.Spawn == spawn {
			out = append(out, e)
		}
	}
	return out
}

// Count returns the number of buffered entries.
func (rb *RingBuffer) Count() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.count
}

// joinLines renders entries as newline-separated text.
func joinLines(entries []LogEntry) string {
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = e.Line
	}
	return strings.Join(lines, "\n")
}
