package collections

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdeck/internal/mcp"
)

// stubInvoker returns a fixed result or error for every call.
type stubInvoker struct {
	result *mcp.CallToolResult
	err    error
	calls  int
}

func (s *stubInvoker) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	s.calls++
	return s.result, s.err
}

func TestInvokeToolStructuredContent(t *testing.T) {
	inv := &stubInvoker{result: &mcp.CallToolResult{
		StructuredContent: json.RawMessage(`{"items":[{"id":"1"}]}`),
	}}

	raw, err := invokeTool(context.Background(), inv, "COLLECTION_NOTES_LIST", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[{"id":"1"}]}`, string(raw))
}

func TestInvokeToolTextFallback(t *testing.T) {
	inv := &stubInvoker{result: &mcp.CallToolResult{
		Content: []*mcp.ContentBlock{{Type: "text", Text: `{"item":{"id":"7"}}`}},
	}}

	raw, err := invokeTool(context.Background(), inv, "COLLECTION_NOTES_GET", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"item":{"id":"7"}}`, string(raw))
}

func TestInvokeToolNonJSONText(t *testing.T) {
	inv := &stubInvoker{result: &mcp.CallToolResult{
		Content: []*mcp.ContentBlock{{Type: "text", Text: "not json"}},
	}}

	_, err := invokeTool(context.Background(), inv, "COLLECTION_NOTES_GET", nil)
	assert.Error(t, err)
}

func TestInvokeToolRawFallback(t *testing.T) {
	// No structured payload and no text blocks: the result itself is the payload.
	inv := &stubInvoker{result: &mcp.CallToolResult{}}

	raw, err := invokeTool(context.Background(), inv, "COLLECTION_NOTES_GET", nil)
	require.NoError(t, err)
	assert.True(t, json.Valid(raw))
}

func TestInvokeToolProtocolError(t *testing.T) {
	inv := &stubInvoker{result: &mcp.CallToolResult{
		IsError: true,
		Content: []*mcp.ContentBlock{{Type: "text", Text: "collection unavailable"}},
	}}

	_, err := invokeTool(context.Background(), inv, "COLLECTION_NOTES_LIST", nil)
	var te *ToolError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "COLLECTION_NOTES_LIST", te.Tool)
	assert.Contains(t, te.Message, "collection unavailable")
}

func TestInvokeToolTransportError(t *testing.T) {
	inv := &stubInvoker{err: errors.New("connection refused")}

	_, err := invokeTool(context.Background(), inv, "COLLECTION_NOTES_LIST", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}
