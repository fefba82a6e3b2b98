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
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/toolhost/internal/commands/shared"
	"github.com/tombee/toolhost/internal/config"
	"github.com/tombee/toolhost/internal/demo"
)

// ungrouped collects commands without a "group" annotation.
const ungrouped = "other"

// groupOrder is the display order of command groups.
var groupOrder = []string{"servers", "runtime", ungrouped}

// HelpDoc is the JSON form of 'toolhost help'.
type HelpDoc struct {
	shared.JSONResponse
	Groups      []CommandGroup        `json:"groups,omitempty"`
	Topic       *CommandInfo          `json:"topic,omitempty"`
	GlobalFlags []FlagInfo            `json:"global_flags"`
	ExitCodes   []shared.ExitCodeInfo `json:"exit_codes"`
	Environment []EnvVar              `json:"environment"`
}

// CommandGroup is a set of related commands.
type CommandGroup struct {
	Name     string        `json:"name"`
	Commands []CommandInfo `json:"commands"`
}

// CommandInfo describes one command.
type CommandInfo struct {
	Name        string     `json:"name"`
	Summary     string     `json:"summary"`
	Description string     `json:"description,omitempty"`
	Usage       string     `json:"usage"`
	Group       string     `json:"group"`
	Flags       []FlagInfo `json:"flags,omitempty"`
	Examples    []Example  `json:"examples,omitempty"`
	Subcommands []string   `json:"subcommands,omitempty"`
}

// FlagInfo describes one flag.
type FlagInfo struct {
	Name      string `json:"name"`
	Shorthand string `json:"shorthand,omitempty"`
	Type      string `json:"type"`
	Usage     string `json:"usage"`
	Default   string `json:"default,omitempty"`
	Required  bool   `json:"required"`
}

// Example is one block of a command's examples.
type Example struct {
	Description string `json:"description,omitempty"`
	Command     string `json:"command"`
}

// EnvVar is an environment variable the CLI or its servers read.
type EnvVar struct {
	Name  string `json:"name"`
	Usage string `json:"usage"`
}

var environment = []EnvVar{
	{config.EnvConfigPath, "Path to the server registry, overridden by --config"},
	{"TOOLHOST_LOG_LEVEL", "Log level: trace, debug, info, warn, error"},
	{"TOOLHOST_DEBUG", "Set to 1 for debug logging"},
	{"LOG_FORMAT", "Log format: json or text"},
	{demo.AllowedPathsEnv, "Directories the demo server may read documents from"},
}

// NewHelpCommand creates the help command
func NewHelpCommand(rootCmd *cobra.Command) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "help [command]",
		Short: "Help about any command",
		Long: `Show help for toolhost or one of its commands.

With --json the output also lists exit codes and environment variables.`,
		Example: `  # Every command, grouped
  toolhost help --json

  # One command
  toolhost help call --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			useJSON := shared.GetJSON() || jsonOutput

			target := rootCmd
			if len(args) > 0 {
				found, _, err := rootCmd.Find(args)
				if err != nil || found == rootCmd {
					return fmt.Errorf("command %q not found", strings.Join(args, " "))
				}
				target = found
			}

			if !useJSON {
				return target.Help()
			}
			return shared.EmitJSON(cmd.OutOrStdout(), buildHelpDoc(rootCmd, target))
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	return cmd
}

func buildHelpDoc(root, target *cobra.Command) HelpDoc {
	doc := HelpDoc{
		JSONResponse: shared.NewJSONResponse("help", true),
		GlobalFlags:  flagInfos(root.PersistentFlags()),
		ExitCodes:    shared.ExitCodes,
		Environment:  environment,
	}
	if target != root {
		info := commandInfo(target)
		doc.Topic = &info
		return doc
	}

	byGroup := map[string][]CommandInfo{}
	for _, c := range root.Commands() {
		if !c.IsAvailableCommand() {
			continue
		}
		info := commandInfo(c)
		byGroup[info.Group] = append(byGroup[info.Group], info)
	}
	for _, name := range groupOrder {
		if cmds, ok := byGroup[name]; ok {
			doc.Groups = append(doc.Groups, CommandGroup{Name: name, Commands: cmds})
			delete(byGroup, name)
		}
	}
	rest := make([]string, 0, len(byGroup))
	for name := range byGroup {
		rest = append(rest, name)
	}
	sort.Strings(rest)
	for _, name := range rest {
		doc.Groups = append(doc.Groups, CommandGroup{Name: name, Commands: byGroup[name]})
	}
	return doc
}

func commandInfo(c *cobra.Command) CommandInfo {
	info := CommandInfo{
		Name:        c.CommandPath(),
		Summary:     c.Short,
		Description: c.Long,
		Usage:       c.UseLine(),
		Group:       c.Annotations["group"],
		Flags:       flagInfos(c.LocalNonPersistentFlags()),
		Examples:    parseExamples(c.Example),
	}
	if info.Group == "" {
		info.Group = ungrouped
	}
	for _, sub := range c.Commands() {
		if !sub.Hidden {
			info.Subcommands = append(info.Subcommands, sub.Name())
		}
	}
	return info
}

func flagInfos(fs *pflag.FlagSet) []FlagInfo {
	var flags []FlagInfo
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Hidden || f.Name == "help" {
			return
		}
		info := FlagInfo{
			Name:      f.Name,
			Shorthand: f.Shorthand,
			Type:      f.Value.Type(),
			Usage:     f.Usage,
			Default:   f.DefValue,
		}
		if ann := f.Annotations[cobra.BashCompOneRequiredFlag]; len(ann) > 0 && ann[0] == "true" {
			info.Required = true
		}
		flags = append(flags, info)
	})
	return flags
}

// parseExamples splits a cobra Example into blank-line separated blocks.
// Leading "#" lines of a block describe it; the rest is the command.
func parseExamples(text string) []Example {
	var examples []Example
	for _, block := range strings.Split(text, "\n\n") {
		var desc, body []string
		for _, line := range strings.Split(block, "\n") {
			trimmed := strings.TrimSpace(line)
			switch {
			case trimmed == "":
			case strings.HasPrefix(trimmed, "#") && len(body) == 0:
				desc = append(desc, strings.TrimSpace(strings.TrimPrefix(trimmed, "#")))
			default:
				body = append(body, strings.TrimPrefix(line, "  "))
			}
		}
		if len(body) == 0 {
			continue
		}
		examples = append(examples, Example{
			Description: strings.Join(desc, " "),
			Command:     strings.Join(body, "\n"),
		})
	}
	return examples
}
