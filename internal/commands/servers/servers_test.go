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
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/toolhost/internal/commands/shared"
)

const registry = `
address:
  command: address-server
  description: Postal address lookup
maps:
  command: maps-server
  enabled: false
ocr:
  command: ocr-server
  enabled: false
`

func writeRegistry(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "servers.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	shared.SetConfigPathForTest(path)
	t.Cleanup(func() {
		shared.SetConfigPathForTest("")
		shared.SetJSONForTest(false)
	})
	return path
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func exitCode(err error) int {
	var exitErr *shared.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return -1
}

func TestServersCommand(t *testing.T) {
	writeRegistry(t, registry)

	out, err := execute(t, NewServersCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "address")
	assert.Contains(t, out, "Postal address lookup")
	assert.Contains(t, out, "disabled")
}

func TestServersCommand_FilterJSON(t *testing.T) {
	writeRegistry(t, registry)
	shared.SetJSONForTest(true)

	out, err := execute(t, NewServersCommand(), "--filter", "[mo]*")
	require.NoError(t, err)

	var resp struct {
		Success bool `json:"success"`
		Servers []struct {
			Name string `json:"name"`
		} `json:"servers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Servers, 2)
	assert.Equal(t, "maps", resp.Servers[0].Name)
	assert.Equal(t, "ocr", resp.Servers[1].Name)
}

func TestServersCommand_MissingRegistry(t *testing.T) {
	shared.SetConfigPathForTest(filepath.Join(t.TempDir(), "absent.yaml"))
	t.Cleanup(func() { shared.SetConfigPathForTest("") })

	_, err := execute(t, NewServersCommand())
	require.Error(t, err)
	assert.Equal(t, shared.ExitConfigError, exitCode(err))
}

func TestValidateCommand(t *testing.T) {
	path := writeRegistry(t, "good:\n  command: ok\nbroken:\n  args: [x]\n")

	out, err := execute(t, NewValidateCommand(), path)
	require.Error(t, err)
	assert.Equal(t, shared.ExitConfigError, exitCode(err))
	assert.Contains(t, out, "good")
	assert.Contains(t, out, "broken")
}

func TestValidateCommand_JSON(t *testing.T) {
	writeRegistry(t, registry)
	shared.SetJSONForTest(true)

	out, err := execute(t, NewValidateCommand())
	require.NoError(t, err)

	var resp struct {
		Success bool     `json:"success"`
		Servers []string `json:"servers"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"address", "maps", "ocr"}, resp.Servers)
}

func TestCallCommand_DisabledServer(t *testing.T) {
	writeRegistry(t, registry)

	_, err := execute(t, NewCallCommand(), "maps", "geocode", "--args", `{"address":"x"}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disabled")
}

func TestCallCommand_BadArgs(t *testing.T) {
	writeRegistry(t, registry)

	_, err := execute(t, NewCallCommand(), "address", "lookup_postal_code", "--args", "[1,2]")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--args")
}

func TestCallCommand_BadJQ(t *testing.T) {
	writeRegistry(t, registry)

	_, err := execute(t, NewCallCommand(), "address", "lookup_postal_code", "--jq", ".[")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "jq")
}

func TestHealthCommand_NoEnabledServers(t *testing.T) {
	writeRegistry(t, "maps:\n  command: maps-server\n  enabled: false\n")

	out, err := execute(t, NewHealthCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "No enabled tool servers.")
}

func TestHealthCommand_UnstartableServer(t *testing.T) {
	writeRegistry(t, "ghost:\n  command: /nonexistent/toolhost-ghost-server\n  timeout: 2000\n")

	out, err := execute(t, NewHealthCommand())
	require.Error(t, err)
	assert.Equal(t, shared.ExitUnhealthy, exitCode(err))
	assert.Contains(t, out, "ghost")
}

func TestWrapText(t *testing.T) {
	assert.Equal(t, "one two\nthree", wrapText("one two three", 8))
	assert.Equal(t, "", wrapText("   ", 10))
	assert.Equal(t, "abcdefghijkl", wrapText("abcdefghijkl", 5))
}

const crashingRegistry = `
broken:
  command: sh
  args: ["-c", "echo 'fatal: missing credentials' >&2; exit 3"]
  timeout: 2000
`

func TestCallCommand_ShowsServerStderr(t *testing.T) {
	writeRegistry(t, crashingRegistry)

	out, err := execute(t, NewCallCommand(), "broken", "anything")
	require.Error(t, err)
	assert.Equal(t, shared.ExitToolFailed, exitCode(err))
	assert.Contains(t, out, "stderr from broken:")
	assert.Contains(t, out, "fatal: missing credentials")
}

func TestCallCommand_StderrInJSONError(t *testing.T) {
	writeRegistry(t, crashingRegistry)
	shared.SetJSONForTest(true)

	cmd := NewCallCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs([]string{"broken", "anything"})
	require.Error(t, cmd.Execute())
	out := stdout.String()

	var resp struct {
		Success bool `json:"success"`
		Errors  []struct {
			Code   string `json:"code"`
			Stderr string `json:"stderr"`
		} `json:"errors"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.False(t, resp.Success)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "connection", resp.Errors[0].Code)
	assert.Equal(t, "fatal: missing credentials", resp.Errors[0].Stderr)
}

func TestToolsCommand_ShowsServerStderr(t *testing.T) {
	writeRegistry(t, crashingRegistry)

	out, err := execute(t, NewToolsCommand(), "broken")
	require.Error(t, err)
	assert.Contains(t, out, "fatal: missing credentials")
}
