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
Package tracing configures the OpenTelemetry tracer provider for toolhost.

Clients created without an explicit TracerProvider use the global provider,
so tracing is off until Setup installs a provider with an exporter:

	provider, err := tracing.Setup(ctx, tracing.Config{
	    ServiceName:    "toolhost",
	    ServiceVersion: version,
	    Exporter:       tracing.ExporterStdout,
	})
	if err != nil {
	    return err
	}
	defer provider.Shutdown(context.Background())

Exporters: stdout (pretty printed JSON), otlp (gRPC, localhost:4317 by
default), and otlp-http (localhost:4318 by default).
*/
package tracing
