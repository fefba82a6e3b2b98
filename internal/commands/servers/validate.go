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
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/toolhost/internal/commands/shared"
	"github.com/tombee/toolhost/internal/mcp"
)

// NewValidateCommand creates the 'validate' command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Check a server registry file",
		Long: `Parse a server registry and report every entry that would be skipped.

Without a path the registry from --config, TOOLHOST_CONFIG, or the default
location is checked. No server is started. Exits with code 2 when the file
is unreadable or any entry is invalid.`,
		Annotations: map[string]string{"group": "servers"},
		Args:        cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runValidate(cmd, path)
		},
	}

	return cmd
}

func runValidate(cmd *cobra.Command, path string) error {
	if path == "" {
		p, err := shared.ServersPath()
		if err != nil {
			return shared.NewConfigError("cannot locate server registry", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return shared.NewConfigError("cannot read server registry", err)
	}
	reg, problems := mcp.ValidateConfig(data, path)

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		errs := make([]shared.JSONError, 0, len(problems))
		for _, p := range problems {
			je := shared.JSONError{Code: string(mcp.KindOf(p)), Message: p.Error()}
			if e, ok := mcp.AsError(p); ok {
				je.Server = e.Server
			}
			errs = append(errs, je)
		}
		if err := shared.EmitJSON(out, struct {
			shared.JSONResponse
			Path    string             `json:"path"`
			Servers []string           `json:"servers"`
			Errors  []shared.JSONError `json:"errors,omitempty"`
		}{shared.NewJSONResponse("validate", len(problems) == 0), path, reg.Names(), errs}); err != nil {
			return err
		}
	} else {
		for _, name := range reg.Names() {
			fmt.Fprintln(out, shared.RenderOK(name))
		}
		for _, p := range problems {
			fmt.Fprintln(out, shared.RenderError(p.Error()))
		}
	}

	if len(problems) > 0 {
		return shared.NewConfigError(fmt.Sprintf("%d invalid entries in %s", len(problems), path), nil)
	}
	return nil
}
