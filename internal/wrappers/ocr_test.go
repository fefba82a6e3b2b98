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
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/toolhost/internal/mcp"
	mcptest "github.com/tombee/toolhost/internal/mcp/testing"
)

func TestOCR_ExtractText(t *testing.T) {
	caller := mcptest.NewMockCaller(OCRServer)
	caller.SetJSONResult(toolExtractText, Document{Text: "NOTA FISCAL", Pages: 1})
	w := NewOCR(caller)

	doc, err := w.Process(context.Background(), ExtractText{Path: "/tmp/invoice.PDF", Language: "por"})
	require.NoError(t, err)
	assert.Equal(t, "NOTA FISCAL", doc.Text)
	assert.Equal(t, "/tmp/invoice.PDF", doc.Path)
	assert.Equal(t, "por", caller.Calls()[0].Args["language"])
}

func TestOCR_ParseDocument(t *testing.T) {
	caller := mcptest.NewMockCaller(OCRServer)
	caller.SetJSONResult(toolParseDocument, Document{Fields: map[string]string{"total": "10.00"}})
	w := NewOCR(caller)

	doc, err := w.Process(context.Background(), ParseDocument{Path: "receipt.png", DocumentType: "Receipt"})
	require.NoError(t, err)
	assert.Equal(t, "10.00", doc.Fields["total"])
	assert.Equal(t, "receipt", caller.Calls()[0].Args["document_type"])
}

func TestOCR_Validation(t *testing.T) {
	caller := mcptest.NewMockCaller(OCRServer)
	w := NewOCR(caller)
	ctx := context.Background()

	for _, req := range []OCRRequest{
		ExtractText{},
		ExtractText{Path: "archive.zip"},
		ParseDocument{Path: "scan.png"},
	} {
		_, err := w.Process(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidInput, "%+v", req)
	}
	assert.Zero(t, caller.CallCount())
}

func TestOCR_EmptyDocumentIsNotFound(t *testing.T) {
	caller := mcptest.NewMockCaller(OCRServer)
	caller.SetJSONResult(toolExtractText, Document{})

	_, err := NewOCR(caller).ExtractText(context.Background(), "blank.png")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOCR_HealthCheckUsesListTools(t *testing.T) {
	caller := mcptest.NewMockCaller(OCRServer, mcp.ToolDescriptor{Name: toolExtractText})
	w := NewOCR(caller)
	assert.True(t, w.HealthCheck(context.Background()))
	assert.Zero(t, caller.CallCount())

	caller.SetListError(errors.New("pipe closed"))
	assert.False(t, w.HealthCheck(context.Background()))
}
