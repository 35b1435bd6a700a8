package collections

import "strings"

// Verb identifies one of the five conventional collection operations.
type Verb string

const (
	VerbList   Verb = "LIST"
	VerbGet    Verb = "GET"
	VerbCreate Verb = "CREATE"
	VerbUpdate Verb = "UPDATE"
	VerbDelete Verb = "DELETE"
)

// ToolNamePrefix is the conventional prefix shared by all collection tools.
const ToolNamePrefix = "COLLECTION_"

// ToolNameFor maps a collection name and verb to the remote tool name, e.g.
// ("thread messages", VerbList) -> "COLLECTION_THREAD_MESSAGES_LIST".
// This is the single place the naming convention lives.
func ToolNameFor(collection string, verb Verb) string {
	name := strings.ToUpper(strings.TrimSpace(collection))
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "-", "_")
	return ToolNamePrefix + name + "_" + string(verb)
}

// CollectionFromListTool extracts the collection name from a tool named
// COLLECTION_<X>_LIST. Returns "" when the name does not match the pattern.
func CollectionFromListTool(toolName string) string {
	if !strings.HasPrefix(toolName, ToolNamePrefix) {
		return ""
	}
	rest := strings.TrimPrefix(toolName, ToolNamePrefix)
	suffix := "_" + string(VerbList)
	if !strings.HasSuffix(rest, suffix) {
		return ""
	}
	name := strings.TrimSuffix(rest, suffix)
	if name == "" {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(name, "_", " "))
}
