package bindings

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpdeck/internal/mcp"
)

func objectSchema(required []string, props map[string]*mcp.JSONSchema) *mcp.JSONSchema {
	return &mcp.JSONSchema{Type: "object", Properties: props, Required: required}
}

func TestCompatibleExactMatch(t *testing.T) {
	required := objectSchema([]string{"name"}, map[string]*mcp.JSONSchema{
		"name": {Type: "string"},
	})
	candidate := objectSchema([]string{"name"}, map[string]*mcp.JSONSchema{
		"name": {Type: "string"},
	})
	assert.True(t, Compatible(required, candidate))
}

func TestCompatibleExtraCandidateFields(t *testing.T) {
	required := objectSchema([]string{"name"}, map[string]*mcp.JSONSchema{
		"name": {Type: "string"},
	})
	candidate := objectSchema([]string{"name"}, map[string]*mcp.JSONSchema{
		"name":  {Type: "string"},
		"extra": {Type: "number"},
	})
	assert.True(t, Compatible(required, candidate), "richer candidates still satisfy the requirement")
}

func TestCompatibleMissingRequiredField(t *testing.T) {
	required := objectSchema([]string{"name", "age"}, map[string]*mcp.JSONSchema{
		"name": {Type: "string"},
		"age":  {Type: "number"},
	})
	candidate := objectSchema([]string{"name"}, map[string]*mcp.JSONSchema{
		"name": {Type: "string"},
	})
	assert.False(t, Compatible(required, candidate))
}

func TestCompatibleTypeMismatch(t *testing.T) {
	required := objectSchema([]string{"count"}, map[string]*mcp.JSONSchema{
		"count": {Type: "number"},
	})
	candidate := objectSchema([]string{"count"}, map[string]*mcp.JSONSchema{
		"count": {Type: "string"},
	})
	assert.False(t, Compatible(required, candidate))
}

func TestCompatibleIntegerSatisfiesNumber(t *testing.T) {
	assert.True(t, Compatible(&mcp.JSONSchema{Type: "number"}, &mcp.JSONSchema{Type: "integer"}))
	assert.False(t, Compatible(&mcp.JSONSchema{Type: "integer"}, &mcp.JSONSchema{Type: "number"}),
		"the widening only runs one way")
}

func TestCompatibleEnumContainment(t *testing.T) {
	required := &mcp.JSONSchema{Type: "string", Enum: []string{"asc", "desc"}}

	assert.True(t, Compatible(required, &mcp.JSONSchema{Type: "string", Enum: []string{"asc", "desc", "random"}}))
	assert.False(t, Compatible(required, &mcp.JSONSchema{Type: "string", Enum: []string{"asc"}}))
	assert.True(t, Compatible(required, &mcp.JSONSchema{Type: "string"}),
		"an unconstrained candidate accepts every required value")
}

func TestCompatibleNestedObjects(t *testing.T) {
	required := objectSchema([]string{"filter"}, map[string]*mcp.JSONSchema{
		"filter": objectSchema([]string{"field"}, map[string]*mcp.JSONSchema{
			"field": {Type: "string"},
		}),
	})
	good := objectSchema([]string{"filter"}, map[string]*mcp.JSONSchema{
		"filter": objectSchema([]string{"field"}, map[string]*mcp.JSONSchema{
			"field": {Type: "string"},
			"value": {Type: "string"},
		}),
	})
	bad := objectSchema([]string{"filter"}, map[string]*mcp.JSONSchema{
		"filter": {Type: "string"},
	})
	assert.True(t, Compatible(required, good))
	assert.False(t, Compatible(required, bad))
}

func TestCompatibleArrayItems(t *testing.T) {
	required := &mcp.JSONSchema{Type: "array", Items: &mcp.JSONSchema{Type: "object"}}
	assert.True(t, Compatible(required, &mcp.JSONSchema{Type: "array", Items: &mcp.JSONSchema{Type: "object"}}))
	assert.False(t, Compatible(required, &mcp.JSONSchema{Type: "array", Items: &mcp.JSONSchema{Type: "string"}}))
	assert.False(t, Compatible(required, &mcp.JSONSchema{Type: "array"}),
		"a requirement with items needs the candidate to declare them")
}

func TestCompatibleNilSchemas(t *testing.T) {
	assert.True(t, Compatible(nil, nil))
	assert.True(t, Compatible(nil, &mcp.JSONSchema{Type: "string"}))
	assert.False(t, Compatible(&mcp.JSONSchema{Type: "string"}, nil))
}

func listTool(name string) *mcp.ToolInfo {
	return &mcp.ToolInfo{
		Name: name,
		InputSchema: objectSchema([]string{"limit", "offset"}, map[string]*mcp.JSONSchema{
			"limit":  {Type: "integer"},
			"offset": {Type: "integer"},
			"where":  {Type: "object"},
		}),
	}
}

func TestImplements(t *testing.T) {
	surface := []*mcp.ToolInfo{
		{
			Name: "COMPLETION_CREATE",
			InputSchema: objectSchema([]string{"messages"}, map[string]*mcp.JSONSchema{
				"messages":    {Type: "array", Items: &mcp.JSONSchema{Type: "object"}},
				"model":       {Type: "string"},
				"temperature": {Type: "number"},
			}),
		},
	}
	assert.True(t, Implements(surface, ModelProvider))

	assert.False(t, Implements(nil, ModelProvider), "missing tool fails the contract")

	wrongShape := []*mcp.ToolInfo{
		{
			Name: "COMPLETION_CREATE",
			InputSchema: objectSchema([]string{"prompt"}, map[string]*mcp.JSONSchema{
				"prompt": {Type: "string"},
			}),
		},
	}
	assert.False(t, Implements(wrongShape, ModelProvider))
}

func TestDiscoverCollections(t *testing.T) {
	surface := []*mcp.ToolInfo{
		listTool("COLLECTION_THREADS_LIST"),
		{Name: "COLLECTION_THREADS_GET"},
		{Name: "COLLECTION_THREADS_CREATE"},
		{Name: "COLLECTION_THREADS_UPDATE"},
		listTool("COLLECTION_NOTES_LIST"),
		{Name: "COLLECTION_NOTES_DELETE"},
		{Name: "SOMETHING_ELSE"},
	}

	found := DiscoverCollections(surface)
	require.Len(t, found, 2)

	assert.Equal(t, "notes", found[0].Name)
	assert.False(t, found[0].CanGet)
	assert.True(t, found[0].CanDelete)

	assert.Equal(t, "threads", found[1].Name)
	assert.True(t, found[1].CanGet)
	assert.True(t, found[1].CanCreate)
	assert.True(t, found[1].CanUpdate)
	assert.False(t, found[1].CanDelete)
}

func TestDiscoverSkipsMalformedCandidates(t *testing.T) {
	// USERS advertises a list tool but its input shape does not take a page
	// request, so it is not a collection. The scan must still report TASKS.
	surface := []*mcp.ToolInfo{
		{
			Name: "COLLECTION_USERS_LIST",
			InputSchema: objectSchema([]string{"query"}, map[string]*mcp.JSONSchema{
				"query": {Type: "string"},
			}),
		},
		listTool("COLLECTION_TASKS_LIST"),
		nil,
	}

	found := DiscoverCollections(surface)
	require.Len(t, found, 1)
	assert.Equal(t, "tasks", found[0].Name)
}
