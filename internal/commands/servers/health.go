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
package servers

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tombee/toolhost/internal/commands/shared"
)

// NewHealthCommand creates the 'health' command.
func NewHealthCommand() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Run wrapper health checks",
		Long: `Start the enabled tool servers and run each wrapper's health check.

Servers with a built-in wrapper (address, maps, ocr) run a cheap known call;
every other server is probed with tools/list. Exits with code 3 when any
server is unhealthy.`,
		Example: `  toolhost health
  toolhost health --filter 'ocr*' --json`,
		Annotations: map[string]string{"group": "servers"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(cmd, filter)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Glob matched against server names")

	return cmd
}

func runHealth(cmd *cobra.Command, filter string) error {
	m, err := shared.LoadManager(shared.Logger())
	if err != nil {
		return err
	}
	defer m.Close()

	results := m.HealthCheck(cmd.Context())
	if filter != "" {
		names, err := m.Match(filter)
		if err != nil {
			return fmt.Errorf("invalid filter %q: %w", filter, err)
		}
		keep := make(map[string]bool, len(names))
		for _, n := range names {
			keep[n] = true
		}
		for name := range results {
			if !keep[name] {
				delete(results, name)
			}
		}
	}

	names := make([]string, 0, len(results))
	unhealthy := 0
	for name, ok := range results {
		names = append(names, name)
		if !ok {
			unhealthy++
		}
	}
	sort.Strings(names)

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		if err := shared.EmitJSON(out, struct {
			shared.JSONResponse
			Servers map[string]bool `json:"servers"`
		}{shared.NewJSONResponse("health", unhealthy == 0), results}); err != nil {
			return err
		}
	} else {
		if len(names) == 0 {
			fmt.Fprintln(out, "No enabled tool servers.")
		}
		for _, name := range names {
			if results[name] {
				fmt.Fprintln(out, shared.RenderOK(name))
			} else {
				fmt.Fprintln(out, shared.RenderError(name))
			}
		}
	}

	if unhealthy > 0 {
		return shared.NewUnhealthyError(fmt.Sprintf("%d of %d servers unhealthy", unhealthy, len(names)))
	}
	return nil
}
