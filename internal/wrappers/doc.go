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
// Package wrappers provides typed adapters over tool servers.
//
// Each wrapper holds a caller owned by the mcp.Manager and exposes methods
// taking a sealed request type, one variant per tool. Results that cannot be
// decoded, or that report no match, surface as ErrNotFound.
package wrappers
