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
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"slices"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerNameRegex validates tool server names.
// Names must start with a letter and contain only letters, numbers, hyphens, and underscores.
// Maximum length is 64 characters.
var ServerNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// envPlaceholderRegex matches a value that is exactly ${NAME}.
var envPlaceholderRegex = regexp.MustCompile(`^\$\{([A-Za-z_][A-Za-z0-9_]*)\}$`)

// TransportType is how the client reaches a server. Only stdio is implemented.
type TransportType string

const (
	TransportStdio          TransportType = "stdio"
	TransportSSE            TransportType = "sse"
	TransportStreamableHTTP TransportType = "streamable-http"
)

// DefaultTimeout applies when an entry has no timeout.
const DefaultTimeout = 30000 * time.Millisecond

// ServerConfig describes one tool server. Values are copied out of the
// registry, so a ServerConfig held by a caller never changes underneath it.
type ServerConfig struct {
	Name        string
	Transport   TransportType
	Command     string
	Args        []string
	Env         map[string]string
	Description string
	Timeout     time.Duration
	Enabled     bool

	// Handshake sends initialize and notifications/initialized after spawn.
	Handshake bool

	// RateLimit caps calls per second. Zero means unlimited.
	RateLimit float64
	Burst     int
}

// Validate checks a single config.
func (c ServerConfig) Validate() error {
	if err := ValidateServerName(c.Name); err != nil {
		return err
	}
	switch c.Transport {
	case TransportStdio, "":
		if strings.TrimSpace(c.Command) == "" {
			return fmt.Errorf("command is required for stdio transport")
		}
	case TransportSSE, TransportStreamableHTTP:
	default:
		return fmt.Errorf("unknown transport %q (must be stdio, sse, or streamable-http)", c.Transport)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate_limit must be non-negative")
	}
	if c.Burst < 0 {
		return fmt.Errorf("burst must be non-negative")
	}
	for key := range c.Env {
		if !envKeyRegex.MatchString(key) {
			return fmt.Errorf("invalid environment variable key: %s", key)
		}
	}
	return nil
}

func (c ServerConfig) clone() ServerConfig {
	c.Args = slices.Clone(c.Args)
	if c.Env != nil {
		env := make(map[string]string, len(c.Env))
		for k, v := range c.Env {
			env[k] = v
		}
		c.Env = env
	}
	return c
}

// Equal reports whether two configs are field-for-field equal.
func (c ServerConfig) Equal(o ServerConfig) bool {
	if c.Name != o.Name || c.Transport != o.Transport || c.Command != o.Command ||
		c.Description != o.Description || c.Timeout != o.Timeout || c.Enabled != o.Enabled ||
		c.Handshake != o.Handshake || c.RateLimit != o.RateLimit || c.Burst != o.Burst {
		return false
	}
	if !slices.Equal(c.Args, o.Args) || len(c.Env) != len(o.Env) {
		return false
	}
	for k, v := range c.Env {
		if ov, ok := o.Env[k]; !ok || ov != v {
			return false
		}
	}
	return true
}

// Registry maps server names to their configs.
type Registry map[string]ServerConfig

// Names returns the server names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// serverEntry is the on-disk shape of one server.
type serverEntry struct {
	Transport   string            `yaml:"transport"`
	Command     string            `yaml:"command"`
	Args        []string          `yaml:"args"`
	Env         map[string]string `yaml:"env"`
	Description string            `yaml:"description"`
	Timeout     *int64            `yaml:"timeout"`
	Enabled     *bool             `yaml:"enabled"`
	Handshake   bool              `yaml:"handshake"`
	RateLimit   float64           `yaml:"rate_limit"`
	Burst       int               `yaml:"burst"`
}

func (e *serverEntry) toServerConfig(name string) ServerConfig {
	cfg := ServerConfig{
		Name:        name,
		Transport:   TransportType(strings.ToLower(e.Transport)),
		Command:     e.Command,
		Args:        e.Args,
		Env:         e.Env,
		Description: e.Description,
		Timeout:     DefaultTimeout,
		Enabled:     true,
		Handshake:   e.Handshake,
		RateLimit:   e.RateLimit,
		Burst:       e.Burst,
	}
	if cfg.Transport == "" {
		cfg.Transport = TransportStdio
	}
	if e.Timeout != nil && *e.Timeout != 0 {
		cfg.Timeout = time.Duration(*e.Timeout) * time.Millisecond
	}
	if e.Enabled != nil {
		cfg.Enabled = *e.Enabled
	}
	return cfg
}

// nestedKeys are top-level keys that may wrap the server mapping.
var nestedKeys = []string{"servers", "mcpServers"}

// parseRegistry decodes a document. It returns the valid entries, one error
// per rejected entry, and a non-nil err only when the document as a whole is
// unusable.
func parseRegistry(data []byte, source string) (Registry, []error, error) {
	registry := make(Registry)
	if len(bytes.TrimSpace(data)) == 0 {
		return registry, nil, nil
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return registry, nil, NewConfigError(source, "", "malformed configuration", err)
	}
	if len(root.Content) == 0 {
		return registry, nil, nil
	}

	doc := root.Content[0]
	if doc.Kind != yaml.MappingNode {
		return registry, nil, NewConfigError(source, "", "configuration must be a mapping of server name to server", nil)
	}
	doc = unwrapNested(doc)

	var problems []error
	for i := 0; i+1 < len(doc.Content); i += 2 {
		name := doc.Content[i].Value
		var entry serverEntry
		if err := doc.Content[i+1].Decode(&entry); err != nil {
			problems = append(problems, NewConfigError(source, name, "malformed server entry", err))
			continue
		}
		if entry.Timeout != nil && *entry.Timeout < 0 {
			problems = append(problems, NewConfigError(source, name+".timeout", "timeout must be positive", nil))
			continue
		}

		cfg := entry.toServerConfig(name)
		if err := cfg.Validate(); err != nil {
			problems = append(problems, NewConfigError(source, name, err.Error(), err))
			continue
		}
		if _, dup := registry[name]; dup {
			problems = append(problems, NewConfigError(source, name, "duplicate server name", nil))
			continue
		}
		registry[name] = cfg
	}

	return registry, problems, nil
}

// unwrapNested returns the mapping under "servers" or "mcpServers" when the
// document uses that layout.
func unwrapNested(doc *yaml.Node) *yaml.Node {
	if len(doc.Content) != 2 || !slices.Contains(nestedKeys, doc.Content[0].Value) {
		return doc
	}
	inner := doc.Content[1]
	if inner.Kind != yaml.MappingNode {
		return doc
	}
	for i := 0; i+1 < len(inner.Content); i += 2 {
		if inner.Content[i].Value == "command" {
			// A server that happens to be named "servers".
			return doc
		}
	}
	return inner
}

// ParseConfig decodes a YAML or JSON registry. Invalid entries are logged and
// skipped. A malformed document is logged and yields an empty registry along
// with a config error; it is never fatal.
func ParseConfig(data []byte, source string, logger *slog.Logger) (Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	registry, problems, err := parseRegistry(data, source)
	if err != nil {
		logger.Error("tool server config is malformed, using empty registry",
			"source", source,
			"error", err,
		)
		return registry, err
	}
	for _, p := range problems {
		logger.Warn("skipping invalid tool server entry", "source", source, "error", p)
	}
	return registry, nil
}

// ValidateConfig returns every problem in a registry document.
func ValidateConfig(data []byte, source string) (Registry, []error) {
	registry, problems, err := parseRegistry(data, source)
	if err != nil {
		return registry, []error{err}
	}
	return registry, problems
}

// LoadConfigFile reads and parses a registry file. A missing or unreadable
// file is logged and yields an empty registry with a config error.
func LoadConfigFile(path string, logger *slog.Logger) (Registry, error) {
	if logger == nil {
		logger = slog.Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		reason := "cannot read configuration"
		if errors.Is(err, os.ErrNotExist) {
			reason = "configuration file not found"
		}
		logger.Warn("tool server config unavailable, using empty registry",
			"path", path,
			"error", err,
		)
		return make(Registry), NewConfigError(path, "", reason, err)
	}

	return ParseConfig(data, path, logger)
}

// ValidateServerName validates a tool server name.
func ValidateServerName(name string) error {
	if name == "" {
		return fmt.Errorf("server name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("server name exceeds 64 character limit")
	}
	if !ServerNameRegex.MatchString(name) {
		return fmt.Errorf("invalid server name %q: must start with a letter and contain only letters, numbers, hyphens, and underscores", name)
	}
	return nil
}

var envKeyRegex = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ResolveEnv substitutes ${NAME} values from lookup. Any other value is
// passed through literally. Placeholders naming an unset variable resolve to
// "" and are returned in missing.
func ResolveEnv(env map[string]string, lookup func(string) (string, bool)) (resolved map[string]string, missing []string) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	resolved = make(map[string]string, len(env))
	for key, value := range env {
		m := envPlaceholderRegex.FindStringSubmatch(value)
		if m == nil {
			resolved[key] = value
			continue
		}
		v, ok := lookup(m[1])
		if !ok {
			missing = append(missing, m[1])
		}
		resolved[key] = v
	}
	sort.Strings(missing)
	return resolved, missing
}

// buildEnv appends overrides to base in sorted key order. os/exec keeps the
// last value for a duplicated key, so overrides win.
func buildEnv(base []string, overrides map[string]string) []string {
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	env := slices.Clip(base)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}

// sensitiveKeyPatterns are patterns that indicate a sensitive value.
var sensitiveKeyPatterns = []string{
	"SECRET", "TOKEN", "KEY", "PASSWORD", "CREDENTIAL", "AUTH",
}

// IsSensitiveEnvKey returns true if the key appears to contain sensitive data.
func IsSensitiveEnvKey(key string) bool {
	upperKey := strings.ToUpper(key)
	for _, pattern := range sensitiveKeyPatterns {
		if strings.Contains(upperKey, pattern) {
			return true
		}
	}
	return false
}

// RedactEnv returns env with sensitive values replaced, for logging.
func RedactEnv(env map[string]string) map[string]string {
	out := make(map[string]string, len(env))
	for k, v := range env {
		if IsSensitiveEnvKey(k) {
			out[k] = "[REDACTED]"
		} else {
			out[k] = v
		}
	}
	return out
}
