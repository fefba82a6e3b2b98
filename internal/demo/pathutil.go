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
package demo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// AllowedPathsEnv lists extra directories documents may be read from.
const AllowedPathsEnv = "TOOLHOST_ALLOWED_PATHS"

// validatePath rejects traversal and paths outside the working directory
// or the directories in AllowedPathsEnv.
func validatePath(path string) error {
	if path == "" {
		return fmt.Errorf("path is empty")
	}
	if strings.Contains(path, "..") {
		return fmt.Errorf("path contains directory traversal sequence (..)")
	}

	absPath, err := filepath.Abs(filepath.Clean(path))
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to resolve symlinks: %w", err)
		}
		resolved = absPath
	}

	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get current directory: %w", err)
	}
	if real, err := filepath.EvalSymlinks(cwd); err == nil {
		cwd = real
	}
	if isPathWithinDir(resolved, cwd) {
		return nil
	}

	allowed := os.Getenv(AllowedPathsEnv)
	if allowed == "" {
		return fmt.Errorf("path is outside current directory and %s is not set", AllowedPathsEnv)
	}
	for _, dir := range filepath.SplitList(allowed) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			continue
		}
		// Allowed dirs may themselves be symlinks (macOS /var, for one).
		if real, err := filepath.EvalSymlinks(abs); err == nil {
			abs = real
		}
		if isPathWithinDir(resolved, abs) {
			return nil
		}
	}
	return fmt.Errorf("path is not within current directory or %s", AllowedPathsEnv)
}

// isPathWithinDir reports whether path is dir or below it.
func isPathWithinDir(path, dir string) bool {
	path = filepath.Clean(path)
	dir = filepath.Clean(dir)
	if !filepath.IsAbs(path) {
		abs, err := filepath.Abs(path)
		if err != nil {
			return false
		}
		path = abs
	}
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return false
		}
		dir = abs
	}
	return path == dir || strings.HasPrefix(path+string(filepath.Separator), dir+string(filepath.Separator))
}
