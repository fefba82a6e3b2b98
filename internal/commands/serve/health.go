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
package serve

import (
	"context"
	"sync"
	"time"

	"github.com/tombee/toolhost/internal/mcp"
)

// Report is the /healthz body.
type Report struct {
	Healthy   bool               `json:"healthy"`
	CheckedAt time.Time          `json:"checked_at"`
	Health    map[string]bool    `json:"health"`
	Servers   []mcp.ServerStatus `json:"servers"`
	Drift     *mcp.ConfigDiff    `json:"drift,omitempty"`
}

// healthState keeps the latest health check results.
type healthState struct {
	m *mcp.Manager

	mu        sync.RWMutex
	results   map[string]bool
	checkedAt time.Time
}

func newHealthState(m *mcp.Manager) *healthState {
	return &healthState{m: m, results: map[string]bool{}}
}

func (h *healthState) check(ctx context.Context) {
	results := h.m.HealthCheck(ctx)

	h.mu.Lock()
	h.results = results
	h.checkedAt = time.Now()
	h.mu.Unlock()
}

func (h *healthState) report() Report {
	h.mu.RLock()
	defer h.mu.RUnlock()

	health := make(map[string]bool, len(h.results))
	healthy := true
	for name, ok := range h.results {
		health[name] = ok
		healthy = healthy && ok
	}
	return Report{
		Healthy:   healthy,
		CheckedAt: h.checkedAt,
		Health:    health,
		Servers:   h.m.ListServers(),
	}
}
