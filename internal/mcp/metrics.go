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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// toolCalls counts tools/call requests by outcome
	toolCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolhost_tool_calls_total",
			Help: "Total tool calls by server, tool, and outcome",
		},
		[]string{"server", "tool", "outcome"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolhost_tool_call_duration_seconds",
			Help:    "Tool call latency including queueing behind the per-server lock",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"server", "tool"},
	)

	serverStarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolhost_server_starts_total",
			Help: "Tool server spawn attempts by outcome",
		},
		[]string{"server", "outcome"},
	)

	serverRunning = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toolhost_server_running",
			Help: "1 while the tool server process is alive",
		},
		[]string{"server"},
	)

	serverHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toolhost_server_healthy",
			Help: "Result of the last wrapper health check",
		},
		[]string{"server"},
	)

	staleResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolhost_stale_responses_total",
			Help: "Responses discarded because their id did not match the pending request",
		},
		[]string{"server"},
	)

	configDrift = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "toolhost_config_drift",
			Help: "Servers added, removed, or changed on disk since the registry was loaded",
		},
	)
)

func recordToolCall(server, tool string, kind ErrorKind, elapsed time.Duration) {
	outcome := "success"
	if kind != "" {
		outcome = string(kind)
	}
	toolCalls.WithLabelValues(server, tool, outcome).Inc()
	toolCallDuration.WithLabelValues(server, tool).Observe(elapsed.Seconds())
}

func recordStart(server string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	serverStarts.WithLabelValues(server, outcome).Inc()
}

func recordRunning(server string, running bool) {
	serverRunning.WithLabelValues(server).Set(boolGauge(running))
}

func recordHealth(server string, healthy bool) {
	serverHealthy.WithLabelValues(server).Set(boolGauge(healthy))
}

func recordStaleResponse(server string) {
	staleResponses.WithLabelValues(server).Inc()
}

// RecordConfigDrift publishes the size of a config diff.
func RecordConfigDrift(d ConfigDiff) {
	configDrift.Set(float64(len(d.Added) + len(d.Removed) + len(d.Changed)))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
