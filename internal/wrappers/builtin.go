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
package wrappers

import (
	"github.com/tombee/toolhost/internal/mcp"
)

// Builtin returns the typed wrapper factories keyed by server name.
func Builtin() map[string]mcp.WrapperFactory {
	return map[string]mcp.WrapperFactory{
		AddressServer: func(c mcp.ToolCaller) mcp.Wrapper { return NewAddress(c) },
		GeoServer:     func(c mcp.ToolCaller) mcp.Wrapper { return NewGeo(c) },
		OCRServer:     func(c mcp.ToolCaller) mcp.Wrapper { return NewOCR(c) },
	}
}

// ProbeFactory builds a Probe.
func ProbeFactory(c mcp.ToolCaller) mcp.Wrapper {
	return NewProbe(c)
}

// RegisterAll registers a wrapper for every enabled server in m: the
// built-in typed wrapper when one exists for the name, a Probe otherwise.
// It returns the names that were registered.
func RegisterAll(m *mcp.Manager) []string {
	builtin := Builtin()

	var registered []string
	for _, name := range m.Names() {
		if cfg, _ := m.Config(name); !cfg.Enabled {
			continue
		}
		factory, ok := builtin[name]
		if !ok {
			factory = ProbeFactory
		}
		if _, ok := m.RegisterWrapper(name, factory); ok {
			registered = append(registered, name)
		}
	}
	return registered
}
