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
	"context"
	"log/slog"

	"github.com/tombee/toolhost/internal/config"
	internallog "github.com/tombee/toolhost/internal/log"
	"github.com/tombee/toolhost/internal/mcp"
	"github.com/tombee/toolhost/internal/tracing"
	"github.com/tombee/toolhost/internal/wrappers"
)

// Logger builds the CLI logger from the environment and the global flags.
func Logger() *slog.Logger {
	cfg := internallog.FromEnv()
	switch {
	case verboseFlag:
		cfg.Level = "debug"
	case quietFlag:
		cfg.Level = "error"
	}
	return internallog.New(cfg)
}

// ServersPath resolves the registry path from --config and the environment.
func ServersPath() (string, error) {
	return config.ServersPath(configFlag)
}

// LoadManager loads the registry and registers the built-in wrappers.
// A registry that cannot be read still yields a usable, empty Manager
// alongside a config ExitError.
func LoadManager(logger *slog.Logger) (*mcp.Manager, error) {
	m := mcp.NewManager(mcp.ManagerConfig{
		Logger: logger,
		ClientOptions: mcp.ClientOptions{
			ClientVersion: version,
		},
	})

	path, err := ServersPath()
	if err != nil {
		return m, NewConfigError("cannot locate server registry", err)
	}
	if err := m.LoadConfig(path); err != nil {
		return m, NewConfigError("cannot load server registry", err)
	}
	wrappers.RegisterAll(m)
	return m, nil
}

// SetupTracing installs the exporter selected by --trace.
func SetupTracing(ctx context.Context) (*tracing.Provider, error) {
	return tracing.Setup(ctx, tracing.Config{
		ServiceName:    "toolhost",
		ServiceVersion: version,
		Exporter:       traceFlag,
	})
}
