package collections

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"mcpdeck/internal/mcp"
)

// Invoker is the transport contract this layer consumes: call a named remote
// tool with arguments and receive its structured result. *mcp.Client
// satisfies it; tests inject fakes.
type Invoker interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolError is a protocol-level failure reported by the tool itself
// (isError: true). Read paths degrade to empty results on it; mutation paths
// propagate it to the caller.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}

// invokeTool calls a tool and normalizes its result into a raw JSON payload.
// The three successful encodings are tried in order: the structured payload
// field, a text content block holding JSON, and finally the result object
// itself.
func invokeTool(ctx context.Context, inv Invoker, tool string, args map[string]any) (json.RawMessage, error) {
	result, err := inv.CallTool(ctx, tool, args)
	if err != nil {
		return nil, fmt.Errorf("calling %s: %w", tool, err)
	}

	if result.IsError {
		return nil, &ToolError{Tool: tool, Message: errorText(result)}
	}

	if len(result.StructuredContent) > 0 {
		return result.StructuredContent, nil
	}

	for _, block := range result.Content {
		if block.Type != "text" || block.Text == "" {
			continue
		}
		if json.Valid([]byte(block.Text)) {
			return json.RawMessage(block.Text), nil
		}
		return nil, fmt.Errorf("tool %s returned non-JSON text content", tool)
	}

	// Defensive fallback: treat the result object itself as the payload.
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("encoding %s result: %w", tool, err)
	}
	return raw, nil
}

// errorText flattens the textual content of a failed tool result.
func errorText(result *mcp.CallToolResult) string {
	var parts []string
	for _, block := range result.Content {
		if block.Type == "text" && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	if len(parts) == 0 {
		return "unknown tool error"
	}
	return strings.Join(parts, "; ")
}
