package bindings

import (
	"sort"

	"mcpdeck/internal/collections"
	"mcpdeck/internal/logging"
	"mcpdeck/internal/mcp"
)

// Requirement describes one tool a contract demands: its name and the minimum
// input shape it must accept. Output shapes are recorded for documentation
// but not compared, because implementations routinely return richer shapes
// than the minimal detection contract demands.
type Requirement struct {
	Tool   string
	Input  *mcp.JSONSchema
	Output *mcp.JSONSchema
}

// Contract is the minimal tool surface a connection must expose to be treated
// as implementing a capability.
type Contract struct {
	Name     string
	Requires []Requirement
}

// Implements reports whether the tool surface satisfies every requirement of
// the contract. Absent or shape-incompatible tools yield false, never an
// error: incompatibility is a negative detection result, not a failure.
func Implements(surface []*mcp.ToolInfo, c Contract) bool {
	byName := indexTools(surface)

	for _, req := range c.Requires {
		tool, ok := byName[req.Tool]
		if !ok {
			return false
		}
		if !Compatible(req.Input, tool.InputSchema) {
			return false
		}
	}
	return true
}

// CollectionCapability reports one discovered collection and which of the
// conventional CRUD tools its surface exposes alongside the list tool.
type CollectionCapability struct {
	Name      string
	CanGet    bool
	CanCreate bool
	CanUpdate bool
	CanDelete bool
}

// DiscoverCollections scans a tool surface for names matching
// COLLECTION_<X>_LIST, verifies each candidate's list tool against the
// minimal generic collection contract, and reports per-candidate CRUD
// capability from sibling tool names. A candidate that fails verification is
// skipped without aborting the scan of the others.
func DiscoverCollections(surface []*mcp.ToolInfo) []CollectionCapability {
	byName := indexTools(surface)

	var found []CollectionCapability
	for _, tool := range surface {
		if tool == nil {
			continue
		}
		name := collections.CollectionFromListTool(tool.Name)
		if name == "" {
			continue
		}

		if !Compatible(genericListInput, tool.InputSchema) {
			logging.Debug("collection candidate failed shape check",
				"tool", tool.Name, "collection", name)
			continue
		}

		has := func(verb collections.Verb) bool {
			_, ok := byName[collections.ToolNameFor(name, verb)]
			return ok
		}

		found = append(found, CollectionCapability{
			Name:      name,
			CanGet:    has(collections.VerbGet),
			CanCreate: has(collections.VerbCreate),
			CanUpdate: has(collections.VerbUpdate),
			CanDelete: has(collections.VerbDelete),
		})
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Name < found[j].Name })
	return found
}

func indexTools(surface []*mcp.ToolInfo) map[string]*mcp.ToolInfo {
	byName := make(map[string]*mcp.ToolInfo, len(surface))
	for _, tool := range surface {
		if tool != nil {
			byName[tool.Name] = tool
		}
	}
	return byName
}
