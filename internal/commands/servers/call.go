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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/toolhost/internal/commands/shared"
	"github.com/tombee/toolhost/internal/jq"
	"github.com/tombee/toolhost/internal/mcp"
)

// NewCallCommand creates the 'call' command.
func NewCallCommand() *cobra.Command {
	var (
		argsJSON string
		jqExpr   string
		raw      bool
	)

	cmd := &cobra.Command{
		Use:   "call <server> <tool>",
		Short: "Call a tool and print its result",
		Long: `Call one tool on a tool server and print the structured payload of
its result. The server is started on demand and stopped afterwards.

A failed call exits with code 4.`,
		Example: `  # Look up a postal code
  toolhost call address lookup_postal_code --args '{"postal_code":"01310100"}'

  # Keep only the street
  toolhost call address lookup_postal_code --args '{"postal_code":"01310100"}' --jq .street

  # Print the raw JSON-RPC result
  toolhost call maps geocode --args '{"address":"Av. Paulista"}' --raw`,
		Annotations: map[string]string{"group": "servers"},
		Args:        cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCall(cmd, args[0], args[1], argsJSON, jqExpr, raw)
		},
	}

	cmd.Flags().StringVar(&argsJSON, "args", "{}", "Tool arguments as a JSON object")
	cmd.Flags().StringVar(&jqExpr, "jq", "", "jq expression applied to the result payload")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw result member instead of the payload")

	return cmd
}

func runCall(cmd *cobra.Command, server, tool, argsJSON, jqExpr string, raw bool) error {
	var args map[string]any
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return fmt.Errorf("--args must be a JSON object: %w", err)
	}

	filter, err := jq.Compile(jqExpr)
	if err != nil {
		return err
	}

	m, err := shared.LoadManager(shared.Logger())
	if err != nil {
		return err
	}
	defer m.Close()

	c, err := m.Lookup(server)
	if err != nil {
		return err
	}
	result := c.CallTool(cmd.Context(), tool, args)

	out := cmd.OutOrStdout()
	if !result.Success {
		stderr := serverStderr(c, result.Err)
		if shared.GetJSON() {
			je := callError(result)
			je.Stderr = stderr
			_ = shared.EmitJSONError(out, "call", []shared.JSONError{je})
		} else {
			printStderr(cmd.ErrOrStderr(), server, stderr)
		}
		return shared.NewToolFailedError(fmt.Sprintf("%s.%s failed", server, tool), result.Err)
	}

	if shared.GetJSON() && !raw && jqExpr == "" {
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Result mcp.ToolResult `json:"result"`
		}{shared.NewJSONResponse("call", true), result})
	}

	payload := result.Payload()
	if raw {
		payload = result.Result
	}
	if len(payload) == 0 {
		fmt.Fprintln(out, result.Text())
		return nil
	}

	value, err := filter.Apply(cmd.Context(), payload)
	if err != nil {
		return fmt.Errorf("jq: %w", err)
	}
	if s, ok := value.(string); ok {
		fmt.Fprintln(out, s)
		return nil
	}
	return shared.EmitJSON(out, value)
}

func callError(r mcp.ToolResult) shared.JSONError {
	je := shared.JSONError{
		Code:    string(mcp.KindOf(r.Err)),
		Message: r.Error,
		Server:  r.ServerName,
	}
	if e, ok := mcp.AsError(r.Err); ok {
		je.Suggestion = e.Suggestion()
	}
	return je
}
