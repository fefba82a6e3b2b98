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
// Package serve implements the long-running 'serve' command.
package serve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/tombee/toolhost/internal/commands/shared"
	"github.com/tombee/toolhost/internal/mcp"
)

// Options configures a serve run.
type Options struct {
	MetricsAddr    string
	Watch          bool
	HealthInterval time.Duration
}

// NewCommand creates the serve command.
func NewCommand() *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Keep tool servers running and export metrics",
		Long: `Start every enabled tool server, run health checks on an interval, and
serve Prometheus metrics until interrupted.

Endpoints:
  /metrics   Prometheus metrics (toolhost_* series)
  /healthz   JSON server status and the latest health results

With --watch the registry file is watched and changes are reported as
drift. The running set of servers is not changed until restart.`,
		Example: `  # Serve metrics on the default address
  toolhost serve

  # Watch the registry and check health every 10s
  toolhost serve --watch --health-interval 10s`,
		Annotations: map[string]string{"group": "runtime"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return Run(ctx, shared.Logger(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.MetricsAddr, "metrics-addr", "127.0.0.1:9464", "Address for the metrics and health endpoints")
	cmd.Flags().BoolVar(&opts.Watch, "watch", false, "Watch the registry file for changes")
	cmd.Flags().DurationVar(&opts.HealthInterval, "health-interval", 30*time.Second, "Interval between health checks (0 disables)")

	return cmd
}

// Run serves until ctx is done.
func Run(ctx context.Context, logger *slog.Logger, opts Options) error {
	m, err := shared.LoadManager(logger)
	if err != nil {
		// An empty registry is still served so drift can be watched for.
		logger.Warn("serving without a registry", "error", err)
	}
	defer m.Close()

	m.InitClients()
	started := m.StartAll(ctx)
	logger.Info("tool servers started", "servers", len(started), "failed", countFalse(started))

	state := newHealthState(m)
	state.check(ctx)

	var watcher *mcp.ConfigWatcher
	if opts.Watch {
		path, err := shared.ServersPath()
		if err != nil {
			return shared.NewConfigError("cannot locate server registry", err)
		}
		watcher, err = mcp.NewConfigWatcher(mcp.ConfigWatcherConfig{
			Path:     path,
			Baseline: m.Registry(),
			Logger:   logger,
			OnChange: func(d mcp.ConfigDiff) {
				logger.Warn("registry changed on disk, restart to apply",
					"added", d.Added, "removed", d.Removed, "changed", d.Changed)
			},
		})
		if err != nil {
			return fmt.Errorf("failed to watch registry: %w", err)
		}
		defer watcher.Close()
	}

	ln, err := net.Listen("tcp", opts.MetricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", opts.MetricsAddr, err)
	}
	srv := &http.Server{
		Handler:           newMux(state, watcher),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		serveErr <- srv.Serve(ln)
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())

	var tick <-chan time.Time
	if opts.HealthInterval > 0 {
		ticker := time.NewTicker(opts.HealthInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		case err := <-serveErr:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("metrics server: %w", err)
		case <-tick:
			state.check(ctx)
		}
	}
}

func newMux(state *healthState, watcher *mcp.ConfigWatcher) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		report := state.report()
		if watcher != nil {
			drift := watcher.Drift()
			report.Drift = &drift
		}
		w.Header().Set("Content-Type", "application/json")
		if !report.Healthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = shared.EmitJSON(w, report)
	})
	return mux
}

func countFalse(m map[string]bool) int {
	n := 0
	for _, ok := range m {
		if !ok {
			n++
		}
	}
	return n
}
