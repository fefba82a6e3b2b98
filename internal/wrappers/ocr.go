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
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/tombee/toolhost/internal/mcp"
)

// OCRServer is the registry name of the document OCR server.
const OCRServer = "ocr"

const (
	toolExtractText   = "extract_text"
	toolParseDocument = "parse_document"
)

// supportedDocumentExts are the file types OCR servers accept.
var supportedDocumentExts = []string{".pdf", ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".txt"}

// OCRRequest is one of ExtractText or ParseDocument.
type OCRRequest interface {
	ocrRequest()
}

// ExtractText returns the raw text of a document.
type ExtractText struct {
	Path string
	// Language is an ISO 639 code hint such as "por". Empty lets the server
	// detect it.
	Language string
}

// ParseDocument extracts structured fields from a known document type.
type ParseDocument struct {
	Path         string
	DocumentType string
}

func (ExtractText) ocrRequest()   {}
func (ParseDocument) ocrRequest() {}

// Document is the result of an OCR request.
type Document struct {
	Path       string            `json:"path"`
	Text       string            `json:"text"`
	Pages      int               `json:"pages"`
	Fields     map[string]string `json:"fields,omitempty"`
	Confidence float64           `json:"confidence,omitempty"`
}

// OCRWrapper adapts the OCR server.
type OCRWrapper struct {
	caller mcp.ToolCaller
}

// NewOCR creates an OCR wrapper over caller.
func NewOCR(caller mcp.ToolCaller) *OCRWrapper {
	return &OCRWrapper{caller: caller}
}

// ServerName implements mcp.Wrapper.
func (w *OCRWrapper) ServerName() string {
	return w.caller.ServerName()
}

// HealthCheck lists the server's tools. OCR calls are too expensive to
// use as a probe.
func (w *OCRWrapper) HealthCheck(ctx context.Context) bool {
	tools, err := w.caller.ListTools(ctx)
	return err == nil && len(tools) > 0
}

// Process runs any OCRRequest.
func (w *OCRWrapper) Process(ctx context.Context, req OCRRequest) (Document, error) {
	var (
		tool string
		path string
		args = map[string]any{}
	)
	switch req := req.(type) {
	case ExtractText:
		tool, path = toolExtractText, req.Path
		if req.Language != "" {
			args["language"] = req.Language
		}
	case ParseDocument:
		tool, path = toolParseDocument, req.Path
		if strings.TrimSpace(req.DocumentType) == "" {
			return Document{}, invalidInput("document_type", "is required", "For example invoice or receipt")
		}
		args["document_type"] = strings.ToLower(req.DocumentType)
	default:
		return Document{}, fmt.Errorf("%w: unsupported OCR request %T", ErrInvalidInput, req)
	}

	if err := validateDocumentPath(path); err != nil {
		return Document{}, err
	}
	args["path"] = path

	r := w.caller.CallTool(ctx, tool, args)
	var doc Document
	if err := decodeResult(r, &doc); err != nil {
		return Document{}, err
	}
	if doc.Text == "" && len(doc.Fields) == 0 {
		return Document{}, ErrNotFound
	}
	if doc.Path == "" {
		doc.Path = path
	}
	return doc, nil
}

// ExtractText is shorthand for Process with an ExtractText request.
func (w *OCRWrapper) ExtractText(ctx context.Context, path string) (Document, error) {
	return w.Process(ctx, ExtractText{Path: path})
}

func validateDocumentPath(path string) error {
	if strings.TrimSpace(path) == "" {
		return invalidInput("path", "is required", "")
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !slices.Contains(supportedDocumentExts, ext) {
		return invalidInput("path", fmt.Sprintf("unsupported file type %q", ext),
			"Supported types: "+strings.Join(supportedDocumentExts, ", "))
	}
	return nil
}

var _ mcp.Wrapper = (*OCRWrapper)(nil)
