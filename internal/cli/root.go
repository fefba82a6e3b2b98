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
package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/toolhost/internal/commands/shared"
	"github.com/tombee/toolhost/internal/tracing"
)

// SetVersion sets the version information (called from main)
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// NewRootCommand creates the root command for toolhost.
func NewRootCommand() *cobra.Command {
	var provider *tracing.Provider

	cmd := &cobra.Command{
		Use:   "toolhost",
		Short: "toolhost - run and call local tool servers",
		Long: `toolhost manages tool servers: child processes that answer JSON-RPC
tools/list and tools/call requests over stdio.

Servers are declared in a registry file (default:
~/.config/toolhost/servers.yaml). Each server is started on first use,
serves one request at a time, and is stopped when the command exits.

Run 'toolhost servers' to see the registry.
Run 'toolhost demo-server --help' for a server to try things with.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			p, err := shared.SetupTracing(cmd.Context())
			if err != nil {
				return err
			}
			provider = p
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if provider == nil {
				return nil
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return provider.Shutdown(ctx)
		},
	}

	flags := shared.RegisterFlagPointers()
	cmd.PersistentFlags().BoolVarP(flags.Verbose, "verbose", "v", false, "Enable debug logging")
	cmd.PersistentFlags().BoolVarP(flags.Quiet, "quiet", "q", false, "Only log errors")
	cmd.PersistentFlags().BoolVar(flags.JSON, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(flags.Config, "config", "", "Path to the server registry (default: ~/.config/toolhost/servers.yaml)")
	cmd.PersistentFlags().StringVar(flags.Trace, "trace", tracing.ExporterNone, "Span exporter: none, stdout, otlp, otlp-http")
	cmd.MarkFlagsMutuallyExclusive("verbose", "quiet")

	return cmd
}

// GetVersion returns version information
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// HandleExitError prints err and exits with its code.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
