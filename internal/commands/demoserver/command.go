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
// Package demoserver runs the demo tool server as a command.
package demoserver

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/toolhost/internal/commands/shared"
	"github.com/tombee/toolhost/internal/demo"
)

// NewCommand creates the demo-server command. The same command is the root
// of the toolhost-demo binary.
func NewCommand(use string) *cobra.Command {
	var (
		logLevel string
		toolsets []string
		rate     float64
	)

	cmd := &cobra.Command{
		Use:   use,
		Short: "Run the demo tool server on stdio",
		Long: `Run a tool server that answers tools/list and tools/call over stdio
with canned data. It is meant for trying toolhost without real servers.

Toolsets:
  address  lookup_postal_code, search_address
  maps     geocode, nearby_places
  ocr      extract_text, parse_document (reads .txt files under the working
           directory or TOOLHOST_ALLOWED_PATHS)

Registry example:
  address:
    command: toolhost-demo
    args: [--toolsets, address]
    handshake: true`,
		Annotations: map[string]string{"group": "runtime"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			v, _, _ := shared.GetVersion()
			srv, err := demo.NewServer(demo.ServerConfig{
				Version:        v,
				LogLevel:       logLevel,
				Toolsets:       toolsets,
				CallsPerSecond: rate,
			})
			if err != nil {
				return fmt.Errorf("failed to create demo server: %w", err)
			}
			return srv.Run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Logging verbosity (debug, info, warn, error)")
	cmd.Flags().StringSliceVar(&toolsets, "toolsets", demo.AllToolsets, "Toolsets to expose")
	cmd.Flags().Float64Var(&rate, "rate", 0, "Maximum tool calls per second (0 means unlimited)")

	return cmd
}
