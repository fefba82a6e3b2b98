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

package mcp

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internallog "github.com/tombee/toolhost/internal/log"
	toolerrors "github.com/tombee/toolhost/pkg/errors"
)

const sampleConfig = `
address:
  command: address-server
  args: ["--port", "0"]
  env:
    API_KEY: ${ADDRESS_API_KEY}
    MODE: prod
  description: Postal address lookup
  timeout: 5000
maps:
  command: maps-server
  enabled: false
ocr:
  command: python3
  args: [-m, ocr_server]
  handshake: true
  rate_limit: 2.5
  burst: 3
`

func TestParseConfig_Defaults(t *testing.T) {
	reg, err := ParseConfig([]byte(sampleConfig), "test", internallog.Discard())
	require.NoError(t, err)
	require.Equal(t, []string{"address", "maps", "ocr"}, reg.Names())

	addr := reg["address"]
	assert.Equal(t, "address", addr.Name)
	assert.Equal(t, TransportStdio, addr.Transport)
	assert.Equal(t, []string{"--port", "0"}, addr.Args)
	assert.Equal(t, "${ADDRESS_API_KEY}", addr.Env["API_KEY"])
	assert.Equal(t, 5*time.Second, addr.Timeout)
	assert.True(t, addr.Enabled)

	maps := reg["maps"]
	assert.False(t, maps.Enabled)
	assert.Equal(t, DefaultTimeout, maps.Timeout)

	ocr := reg["ocr"]
	assert.True(t, ocr.Handshake)
	assert.Equal(t, 2.5, ocr.RateLimit)
	assert.Equal(t, 3, ocr.Burst)
}

func TestParseConfig_IsDeterministic(t *testing.T) {
	a, err := ParseConfig([]byte(sampleConfig), "test", internallog.Discard())
	require.NoError(t, err)
	b, err := ParseConfig([]byte(sampleConfig), "test", internallog.Discard())
	require.NoError(t, err)

	require.Equal(t, a.Names(), b.Names())
	for name := range a {
		assert.True(t, a[name].Equal(b[name]), name)
	}
	assert.Empty(t, DiffRegistries(a, b).Added)
	assert.True(t, DiffRegistries(a, b).Empty())
}

func TestParseConfig_Layouts(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "flat",
			doc:  "a:\n  command: x\n",
			want: []string{"a"},
		},
		{
			name: "nested servers",
			doc:  "servers:\n  a:\n    command: x\n  b:\n    command: y\n",
			want: []string{"a", "b"},
		},
		{
			name: "mcpServers json",
			doc:  `{"mcpServers": {"a": {"command": "x", "args": ["-v"]}}}`,
			want: []string{"a"},
		},
		{
			name: "server named servers",
			doc:  "servers:\n  command: x\n",
			want: []string{"servers"},
		},
		{
			name: "empty document",
			doc:  "",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg, err := ParseConfig([]byte(tt.doc), "test", internallog.Discard())
			require.NoError(t, err)
			assert.Equal(t, tt.want, reg.Names())
		})
	}
}

func TestParseConfig_MalformedYieldsEmptyRegistry(t *testing.T) {
	for _, doc := range []string{"a: [unclosed", "- just\n- a list\n", "42"} {
		reg, err := ParseConfig([]byte(doc), "bad.yaml", internallog.Discard())
		require.Error(t, err, doc)
		assert.Empty(t, reg)
		assert.Equal(t, ErrorKindConfig, KindOf(err))

		var cfgErr *toolerrors.ConfigError
		require.True(t, errors.As(err, &cfgErr))
		assert.Equal(t, "bad.yaml", cfgErr.Source)
	}
}

func TestParseConfig_SkipsInvalidEntries(t *testing.T) {
	doc := `
good:
  command: ok
nocommand:
  args: [x]
1bad:
  command: ok
negative:
  command: ok
  timeout: -5
badenv:
  command: ok
  env:
    "BAD-KEY": x
`
	reg, problems := ValidateConfig([]byte(doc), "test")
	assert.Equal(t, []string{"good"}, reg.Names())
	assert.Len(t, problems, 4)

	reg, err := ParseConfig([]byte(doc), "test", internallog.Discard())
	require.NoError(t, err)
	assert.Equal(t, []string{"good"}, reg.Names())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("missing file", func(t *testing.T) {
		reg, err := LoadConfigFile(filepath.Join(dir, "nope.yaml"), internallog.Discard())
		require.Error(t, err)
		assert.NotNil(t, reg)
		assert.Empty(t, reg)
		assert.Contains(t, err.Error(), "not found")
	})

	t.Run("valid file", func(t *testing.T) {
		path := filepath.Join(dir, "servers.yaml")
		require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

		reg, err := LoadConfigFile(path, internallog.Discard())
		require.NoError(t, err)
		assert.Len(t, reg, 3)
	})
}

func TestResolveEnv(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "MY_SECRET" {
			return "abc123", true
		}
		return "", false
	}

	resolved, missing := ResolveEnv(map[string]string{
		"API_KEY": "${MY_SECRET}",
		"MODE":    "prod",
		"PARTIAL": "prefix-${MY_SECRET}",
		"GONE":    "${NOT_SET}",
	}, lookup)

	assert.Equal(t, map[string]string{
		"API_KEY": "abc123",
		"MODE":    "prod",
		"PARTIAL": "prefix-${MY_SECRET}",
		"GONE":    "",
	}, resolved)
	assert.Equal(t, []string{"NOT_SET"}, missing)
}

func TestBuildEnv_OverridesWin(t *testing.T) {
	env := buildEnv([]string{"PATH=/bin", "MODE=dev"}, map[string]string{"MODE": "prod", "A": "1"})
	assert.Equal(t, []string{"PATH=/bin", "MODE=dev", "A=1", "MODE=prod"}, env)
}

func TestRedactEnv(t *testing.T) {
	out := RedactEnv(map[string]string{
		"API_KEY":      "abc",
		"GITHUB_TOKEN": "def",
		"MODE":         "prod",
	})
	assert.Equal(t, "[REDACTED]", out["API_KEY"])
	assert.Equal(t, "[REDACTED]", out["GITHUB_TOKEN"])
	assert.Equal(t, "prod", out["MODE"])
}

func TestValidateServerName(t *testing.T) {
	valid := []string{"a", "address", "my-server_2"}
	invalid := []string{"", "1abc", "has space", "a.b", strings.Repeat("a", 65)}

	for _, name := range valid {
		assert.NoError(t, ValidateServerName(name), name)
	}
	for _, name := range invalid {
		assert.Error(t, ValidateServerName(name), name)
	}
}

func TestServerConfig_CloneIsIndependent(t *testing.T) {
	cfg := ServerConfig{Name: "a", Args: []string{"x"}, Env: map[string]string{"K": "v"}}
	c := cfg.clone()
	c.Args[0] = "y"
	c.Env["K"] = "w"

	assert.Equal(t, "x", cfg.Args[0])
	assert.Equal(t, "v", cfg.Env["K"])
	assert.False(t, cfg.Equal(c))
}
