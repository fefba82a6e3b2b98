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
/*
Package cli provides the root command and global flags for the toolhost CLI.

Individual commands live in the internal/commands subpackages and are added
to the root in main:

	toolhost
	├── servers       List configured tool servers
	├── tools         List the tools a server exposes
	├── call          Call a tool and print its result
	├── health        Run wrapper health checks
	├── validate      Check a server registry file
	├── serve         Keep servers running and export metrics
	├── demo-server   Run the demo tool server on stdio
	├── version       Show version
	└── help          Show help (--json for machine-readable output)

# Global Flags

	--verbose, -v    Debug logging
	--quiet, -q      Only log errors
	--json           Output in JSON format
	--config         Path to the server registry
	--trace          Span exporter: none, stdout, otlp, otlp-http

# Exit Codes

  - 0: success
  - 1: general error
  - 2: registry missing or invalid
  - 3: a health check failed
  - 4: a tool call failed
*/
package cli
