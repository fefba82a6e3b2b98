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

// NewToolsCommand creates the 'tools' command.
func NewToolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools <server>",
		Short: "List the tools a server exposes",
		Long:  `Start a tool server and list the tools it reports through tools/list.`,
		Example: `  # Tools of the address server
  toolhost tools address

  # The same as JSON
  toolhost tools address --json`,
		Annotations: map[string]string{"group": "servers"},
		Args:        cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTools(cmd, args[0])
		},
	}

	return cmd
}

func runTools(cmd *cobra.Command, name string) error {
	m, err := shared.LoadManager(shared.Logger())
	if err != nil {
		return err
	}
	defer m.Close()

	c, err := m.Lookup(name)
	if err != nil {
		return err
	}
	tools, err := c.ListTools(cmd.Context())
	if err != nil {
		printStderr(cmd.ErrOrStderr(), name, serverStderr(c, err))
		return fmt.Errorf("failed to list tools: %w", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Server string               `json:"server"`
			Tools  []mcp.ToolDescriptor `json:"tools"`
		}{shared.NewJSONResponse("tools", true), name, tools})
	}

	if len(tools) == 0 {
		fmt.Fprintln(out, "No tools available from this server.")
		return nil
	}

	fmt.Fprintf(out, "Tools from %s:\n\n", name)
	for _, t := range tools {
		fmt.Fprintf(out, "  %s.%s\n", name, t.Name)
		if t.Description != "" {
			for _, line := range strings.Split(wrapText(t.Description, 60), "\n") {
				fmt.Fprintf(out, "    %s\n", line)
			}
		}
		fmt.Fprintln(out)
	}
	return nil
}
