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
package tracing

import (
	"fmt"
	"io"
)

// Exporter names accepted by Config.Exporter and the --trace flag.
const (
	ExporterNone     = "none"
	ExporterStdout   = "stdout"
	ExporterOTLP     = "otlp"
	ExporterOTLPHTTP = "otlp-http"
)

// Config holds tracing configuration.
type Config struct {
	// ServiceName identifies this service in traces.
	ServiceName string

	// ServiceVersion is the application version.
	ServiceVersion string

	// Exporter selects where spans go (none, stdout, otlp, otlp-http).
	Exporter string

	// Endpoint overrides the OTLP collector address.
	Endpoint string

	// Insecure disables TLS for OTLP exporters.
	Insecure bool

	// Headers are sent with every OTLP export request.
	Headers map[string]string

	// Writer receives stdout exporter output (default: os.Stderr).
	Writer io.Writer

	// SampleRate is the fraction of traces to record (0 or >= 1 records all).
	SampleRate float64
}

// Validate checks the exporter name and sample rate.
func (c Config) Validate() error {
	switch c.Exporter {
	case "", ExporterNone, ExporterStdout, ExporterOTLP, ExporterOTLPHTTP:
	default:
		return fmt.Errorf("unknown trace exporter %q (must be none, stdout, otlp, or otlp-http)", c.Exporter)
	}
	if c.SampleRate < 0 {
		return fmt.Errorf("sample rate must not be negative")
	}
	return nil
}

// Enabled reports whether an exporter is configured.
func (c Config) Enabled() bool {
	return c.Exporter != "" && c.Exporter != ExporterNone
}
