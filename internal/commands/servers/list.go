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
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/toolhost/internal/commands/shared"
	"github.com/tombee/toolhost/internal/mcp"
)

// NewServersCommand creates the 'servers' command.
func NewServersCommand() *cobra.Command {
	var filter string

	cmd := &cobra.Command{
		Use:   "servers",
		Short: "List configured tool servers",
		Long: `List the tool servers in the registry with their command and state.

Listing never starts a server, so every enabled server shows as stopped.

See also: toolhost tools, toolhost health`,
		Example: `  # List all servers
  toolhost servers

  # Only servers whose name starts with "geo"
  toolhost servers --filter 'geo*'

  # Extract names for scripting
  toolhost servers --json | jq -r '.servers[].name'`,
		Annotations: map[string]string{"group": "servers"},
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServers(cmd, filter)
		},
	}

	cmd.Flags().StringVar(&filter, "filter", "", "Glob matched against server names")

	return cmd
}

func runServers(cmd *cobra.Command, filter string) error {
	m, err := shared.LoadManager(shared.Logger())
	if err != nil {
		return err
	}
	defer m.Close()

	statuses, err := filterStatuses(m, filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Servers []mcp.ServerStatus `json:"servers"`
		}{shared.NewJSONResponse("servers", true), statuses})
	}

	if len(statuses) == 0 {
		fmt.Fprintln(out, "No tool servers configured.")
		path, _ := shared.ServersPath()
		fmt.Fprintf(out, "\nAdd servers to %s\n", path)
		return nil
	}

	fmt.Fprintln(out, shared.Header.Render(fmt.Sprintf("%-20s %-10s %-30s %s", "NAME", "STATE", "COMMAND", "DESCRIPTION")))
	fmt.Fprintln(out, strings.Repeat("-", 80))
	for _, s := range statuses {
		fmt.Fprintf(out, "%-20s %-10s %-30s %s\n",
			truncate(s.Name, 20),
			shared.RenderServerState(s.Enabled, s.Running),
			truncate(s.Command, 30),
			s.Description,
		)
	}
	return nil
}

// filterStatuses returns the statuses whose names match the glob.
func filterStatuses(m *mcp.Manager, filter string) ([]mcp.ServerStatus, error) {
	statuses := m.ListServers()
	if filter == "" {
		return statuses, nil
	}

	names, err := m.Match(filter)
	if err != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", filter, err)
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}

	out := statuses[:0]
	for _, s := range statuses {
		if keep[s.Name] {
			out = append(out, s)
		}
	}
	return out, nil
}
