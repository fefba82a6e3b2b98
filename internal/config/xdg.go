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

// Package config locates toolhost's configuration files.
package config

import (
	"os"
	"path/filepath"
)

const (
	appName = "toolhost"

	// ServersFile is the default name of the tool server registry.
	ServersFile = "servers.yaml"

	// EnvConfigPath overrides the registry location.
	EnvConfigPath = "TOOLHOST_CONFIG"
)

// ConfigDir returns the XDG config directory for toolhost,
// $XDG_CONFIG_HOME/toolhost or ~/.config/toolhost. macOS follows XDG too.
// The directory is not created.
func ConfigDir() (string, error) {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appName), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", appName), nil
}

// ServersPath resolves the registry file. An explicit path wins, then
// $TOOLHOST_CONFIG, then servers.yaml in ConfigDir.
func ServersPath(explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if env := os.Getenv(EnvConfigPath); env != "" {
		return env, nil
	}

	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, ServersFile), nil
}
