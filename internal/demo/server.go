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
// Package demo implements a tool server with canned address, maps, and OCR
// tools. It speaks MCP over stdio and backs the toolhost-demo binary.
package demo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/time/rate"
)

// Toolsets selects which tools a server registers.
const (
	ToolsetAddress = "address"
	ToolsetMaps    = "maps"
	ToolsetOCR     = "ocr"
)

// AllToolsets lists every toolset.
var AllToolsets = []string{ToolsetAddress, ToolsetMaps, ToolsetOCR}

// Server wraps the MCP server and provides the demo tools.
type Server struct {
	mcpServer *server.MCPServer
	name      string
	version   string
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// ServerConfig configures the demo server.
type ServerConfig struct {
	// Name is the server name (default: "toolhost-demo")
	Name string

	// Version is reported in the initialize handshake
	Version string

	// LogLevel controls logging verbosity (debug, info, warn, error)
	LogLevel string

	// Toolsets to register (default: all)
	Toolsets []string

	// CallsPerSecond limits tool calls (0 means unlimited)
	CallsPerSecond float64
}

// createLogger creates a logger with the specified log level.
// Writes to stderr to avoid interfering with the stdio protocol.
func createLogger(levelStr string) (*slog.Logger, error) {
	var level slog.Level

	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", levelStr)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(handler), nil
}

// NewServer creates a new demo server instance
func NewServer(config ServerConfig) (*Server, error) {
	if config.Name == "" {
		config.Name = "toolhost-demo"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	if len(config.Toolsets) == 0 {
		config.Toolsets = AllToolsets
	}

	logger, err := createLogger(config.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	s := &Server{
		mcpServer: server.NewMCPServer(config.Name, config.Version),
		name:      config.Name,
		version:   config.Version,
		logger:    logger,
	}
	if config.CallsPerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(config.CallsPerSecond), 1)
	}

	for _, ts := range config.Toolsets {
		switch ts {
		case ToolsetAddress:
			s.registerAddressTools()
		case ToolsetMaps:
			s.registerMapsTools()
		case ToolsetOCR:
			s.registerOCRTools()
		default:
			return nil, fmt.Errorf("unknown toolset %q", ts)
		}
	}

	return s, nil
}

// Run serves over stdio until stdin closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting demo tool server", slog.String("name", s.name), slog.String("version", s.version))

	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("tool server error: %w", err)
	}
	return nil
}

// allow applies the rate limit.
func (s *Server) allow() bool {
	return s.limiter == nil || s.limiter.Allow()
}

// errorResponse builds an MCP error result.
func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// jsonResponse builds a text result holding v as JSON.
func jsonResponse(v any) *mcp.CallToolResult {
	data, err := json.Marshal(v)
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to encode result: %v", err))
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(string(data)),
		},
	}
}

// notFound is the payload tools return when nothing matched.
func notFound() *mcp.CallToolResult {
	return jsonResponse(map[string]any{"not_found": true})
}
