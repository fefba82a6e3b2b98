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
	"io"
	"strings"

	"github.com/tombee/toolhost/internal/mcp"
)

// serverStderr returns what c's process wrote to stderr when err means the
// process could not be reached. Other failures return "".
func serverStderr(c *mcp.Client, err error) string {
	if !mcp.IsConnectionError(err) {
		return ""
	}
	return strings.TrimSpace(c.Stderr())
}

func printStderr(w io.Writer, server, stderr string) {
	if stderr == "" {
		return
	}
	fmt.Fprintf(w, "stderr from %s:\n", server)
	for _, line := range strings.Split(stderr, "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

func wrapText(text string, width int) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	var lines []string
	var current strings.Builder
	for _, word := range words {
		if current.Len() > 0 && current.Len()+len(word)+1 > width {
			lines = append(lines, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		lines = append(lines, current.String())
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
