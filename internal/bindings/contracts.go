package bindings

import "mcpdeck/internal/mcp"

// genericListInput is the minimal input shape a COLLECTION_<X>_LIST tool must
// accept to count as a collection: a limited, offset page request.
var genericListInput = &mcp.JSONSchema{
	Type: "object",
	Properties: map[string]*mcp.JSONSchema{
		"limit":  {Type: "number"},
		"offset": {Type: "number"},
		"where":  {Type: "object"},
		"orderBy": {Type: "array", Items: &mcp.JSONSchema{
			Type: "object",
			Properties: map[string]*mcp.JSONSchema{
				"field":     {Type: "string"},
				"direction": {Type: "string"},
			},
		}},
	},
	Required: []string{"limit", "offset"},
}

// ModelProvider is the built-in contract for connections that can serve as a
// language model backend for the chat surface.
var ModelProvider = Contract{
	Name: "model-provider",
	Requires: []Requirement{
		{
			Tool: "COMPLETION_CREATE",
			Input: &mcp.JSONSchema{
				Type: "object",
				Properties: map[string]*mcp.JSONSchema{
					"messages": {Type: "array", Items: &mcp.JSONSchema{Type: "object"}},
					"model":    {Type: "string"},
				},
				Required: []string{"messages"},
			},
		},
	},
}

// BuiltinContracts are the contracts the CLI checks a gateway against by
// default.
var BuiltinContracts = []Contract{ModelProvider}
