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
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/toolhost/internal/wrappers"
)

func (s *Server) registerAddressTools() {
	// Tool: lookup_postal_code
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "lookup_postal_code",
		Description: "Return the address of an 8-digit postal code.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"postal_code": map[string]interface{}{
					"type":        "string",
					"description": "Postal code, digits only",
				},
			},
			Required: []string{"postal_code"},
		},
	}, s.handleLookupPostalCode)

	// Tool: search_address
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "search_address",
		Description: "Search addresses by state, city, and partial street name.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"state":  map[string]interface{}{"type": "string", "description": "Two-letter state code"},
				"city":   map[string]interface{}{"type": "string", "description": "City name"},
				"street": map[string]interface{}{"type": "string", "description": "Street name or part of it"},
			},
			Required: []string{"state", "city", "street"},
		},
	}, s.handleSearchAddress)
}

func (s *Server) registerMapsTools() {
	// Tool: geocode
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "geocode",
		Description: "Resolve a free-form address to coordinates.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"address": map[string]interface{}{"type": "string", "description": "Address to geocode"},
			},
			Required: []string{"address"},
		},
	}, s.handleGeocode)

	// Tool: nearby_places
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "nearby_places",
		Description: "List places within a radius of a point.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"lat":    map[string]interface{}{"type": "number"},
				"lng":    map[string]interface{}{"type": "number"},
				"radius": map[string]interface{}{"type": "integer", "description": "Radius in meters", "default": 1000},
				"type":   map[string]interface{}{"type": "string", "description": "Place type filter"},
			},
			Required: []string{"lat", "lng"},
		},
	}, s.handleNearbyPlaces)
}

func (s *Server) registerOCRTools() {
	// Tool: extract_text
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "extract_text",
		Description: "Extract the text of a document. Plain-text files are read as-is.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path":     map[string]interface{}{"type": "string", "description": "Document path"},
				"language": map[string]interface{}{"type": "string", "description": "Language hint"},
			},
			Required: []string{"path"},
		},
	}, s.handleExtractText)

	// Tool: parse_document
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "parse_document",
		Description: "Extract 'key: value' fields from a document.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path":          map[string]interface{}{"type": "string", "description": "Document path"},
				"document_type": map[string]interface{}{"type": "string", "description": "invoice, receipt, ..."},
			},
			Required: []string{"path", "document_type"},
		},
	}, s.handleParseDocument)
}

func (s *Server) handleLookupPostalCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.allow() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}
	code, err := request.RequireString("postal_code")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	s.logger.Debug("lookup_postal_code", "postal_code", code)
	addr, ok := findByPostalCode(code)
	if !ok {
		return notFound(), nil
	}
	return jsonResponse(addr), nil
}

func (s *Server) handleSearchAddress(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.allow() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}
	state, err := request.RequireString("state")
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	city, err := request.RequireString("city")
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	street, err := request.RequireString("street")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	return jsonResponse(searchAddresses(state, city, street)), nil
}

func (s *Server) handleGeocode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.allow() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}
	address, err := request.RequireString("address")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	loc, ok := geocode(address)
	if !ok {
		return notFound(), nil
	}
	return jsonResponse(loc), nil
}

func (s *Server) handleNearbyPlaces(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.allow() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}
	args := request.GetArguments()
	lat, okLat := args["lat"].(float64)
	lng, okLng := args["lng"].(float64)
	if !okLat || !okLng {
		return errorResponse("lat and lng are required numbers"), nil
	}
	radius := wrappers.DefaultRadius
	if r, ok := args["radius"].(float64); ok && r > 0 {
		radius = int(r)
	}

	return jsonResponse(nearby(lat, lng, radius, request.GetString("type", ""))), nil
}

func (s *Server) handleExtractText(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.allow() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	text, err := readDocument(path)
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	return jsonResponse(wrappers.Document{
		Path:       path,
		Text:       text,
		Pages:      1,
		Confidence: 1,
	}), nil
}

func (s *Server) handleParseDocument(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.allow() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}
	path, err := request.RequireString("path")
	if err != nil {
		return errorResponse(err.Error()), nil
	}

	text, err := readDocument(path)
	if err != nil {
		return errorResponse(err.Error()), nil
	}
	fields := parseFields(text)
	if len(fields) == 0 {
		return notFound(), nil
	}
	return jsonResponse(wrappers.Document{
		Path:       path,
		Text:       text,
		Pages:      1,
		Fields:     fields,
		Confidence: 1,
	}), nil
}

// readDocument returns the contents of a text document. Images and PDFs
// get a fixed placeholder, as the demo has no OCR engine.
func readDocument(path string) (string, error) {
	if err := validatePath(path); err != nil {
		return "", err
	}
	if strings.ToLower(filepath.Ext(path)) != ".txt" {
		return "NOTA FISCAL\nnumber: 000123\ntotal: 10.00", nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("cannot read %s: %w", path, err)
	}
	return string(data), nil
}

// parseFields collects "key: value" lines.
func parseFields(text string) map[string]string {
	fields := make(map[string]string)
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields
}
