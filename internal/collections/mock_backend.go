package collections

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"mcpdeck/internal/mcp"
)

// MockBackend is an in-memory Invoker speaking the collection tool protocol.
// It backs tests in this package and in packages built on the access layer.
type MockBackend struct {
	mu       sync.Mutex
	records  map[string][]map[string]any // collection -> stored records
	calls    map[string]int              // tool name -> invocation count
	failures map[string]string           // tool name -> error text
}

// NewMockBackend creates an empty backend.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		records:  make(map[string][]map[string]any),
		calls:    make(map[string]int),
		failures: make(map[string]string),
	}
}

// Seed stores a record in a collection without going through CREATE.
func (b *MockBackend) Seed(collection string, record any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.records[collection] = append(b.records[collection], toRecord(record))
}

// FailWith makes every call to the named tool fail with a protocol error.
func (b *MockBackend) FailWith(tool, message string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[tool] = message
}

// ClearFailure removes a configured failure.
func (b *MockBackend) ClearFailure(tool string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.failures, tool)
}

// CallCount reports how many times the named tool was invoked.
func (b *MockBackend) CallCount(tool string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[tool]
}

// Records returns the stored records of a collection.
func (b *MockBackend) Records(collection string) []map[string]any {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]map[string]any, len(b.records[collection]))
	copy(out, b.records[collection])
	return out
}

// CallTool implements Invoker.
func (b *MockBackend) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.calls[name]++

	if msg, ok := b.failures[name]; ok {
		return errorResult(msg), nil
	}

	collection, verb, ok := parseToolName(name)
	if !ok {
		return errorResult(fmt.Sprintf("unknown tool %s", name)), nil
	}

	switch verb {
	case VerbList:
		return b.list(collection, args)
	case VerbGet:
		return b.get(collection, args)
	case VerbCreate:
		return b.create(collection, args)
	case VerbUpdate:
		return b.update(collection, args)
	case VerbDelete:
		return b.delete(collection, args)
	default:
		return errorResult(fmt.Sprintf("unknown verb %s", verb)), nil
	}
}

func (b *MockBackend) list(collection string, args map[string]any) (*mcp.CallToolResult, error) {
	where, _ := args["where"].(*Condition)

	var items []map[string]any
	for _, rec := range b.records[collection] {
		if matches(rec, where) {
			items = append(items, rec)
		}
	}

	if orderBy, ok := args["orderBy"].([]OrderTerm); ok && len(orderBy) > 0 {
		term := orderBy[0]
		sort.SliceStable(items, func(i, j int) bool {
			less := compareValues(fieldValue(items[i], term.Field), fieldValue(items[j], term.Field))
			if term.Direction == Descending {
				return !less
			}
			return less
		})
	}

	if limit, ok := args["limit"].(int); ok && limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	if items == nil {
		items = []map[string]any{}
	}
	return structuredResult(map[string]any{"items": items, "hasMore": false})
}

func (b *MockBackend) get(collection string, args map[string]any) (*mcp.CallToolResult, error) {
	id, _ := args["id"].(string)
	if rec, _ := b.find(collection, id); rec != nil {
		return structuredResult(map[string]any{"item": rec})
	}
	return structuredResult(map[string]any{"item": nil})
}

func (b *MockBackend) create(collection string, args map[string]any) (*mcp.CallToolResult, error) {
	rec := toRecord(args["data"])
	b.records[collection] = append(b.records[collection], rec)
	return structuredResult(map[string]any{"item": rec})
}

func (b *MockBackend) update(collection string, args map[string]any) (*mcp.CallToolResult, error) {
	id, _ := args["id"].(string)
	rec, _ := b.find(collection, id)
	if rec == nil {
		return errorResult(fmt.Sprintf("entity %s not found", id)), nil
	}
	for k, v := range toRecord(args["data"]) {
		rec[k] = v
	}
	return structuredResult(map[string]any{"item": rec})
}

func (b *MockBackend) delete(collection string, args map[string]any) (*mcp.CallToolResult, error) {
	id, _ := args["id"].(string)
	rec, idx := b.find(collection, id)
	if rec == nil {
		return errorResult(fmt.Sprintf("entity %s not found", id)), nil
	}
	b.records[collection] = append(b.records[collection][:idx], b.records[collection][idx+1:]...)
	return structuredResult(map[string]any{"item": map[string]any{"id": id}})
}

func (b *MockBackend) find(collection, id string) (map[string]any, int) {
	for i, rec := range b.records[collection] {
		if rec["id"] == id {
			return rec, i
		}
	}
	return nil, -1
}

// parseToolName inverts ToolNameFor.
func parseToolName(name string) (string, Verb, bool) {
	if !strings.HasPrefix(name, ToolNamePrefix) {
		return "", "", false
	}
	rest := strings.TrimPrefix(name, ToolNamePrefix)
	for _, verb := range []Verb{VerbList, VerbGet, VerbCreate, VerbUpdate, VerbDelete} {
		suffix := "_" + string(verb)
		if strings.HasSuffix(rest, suffix) {
			collection := strings.TrimSuffix(rest, suffix)
			return strings.ToLower(strings.ReplaceAll(collection, "_", " ")), verb, true
		}
	}
	return "", "", false
}

// matches evaluates a filter expression tree against a record.
func matches(rec map[string]any, cond *Condition) bool {
	if cond == nil {
		return true
	}
	switch cond.Operator {
	case OpAnd:
		for _, c := range cond.Conditions {
			if !matches(rec, c) {
				return false
			}
		}
		return true
	case OpOr:
		for _, c := range cond.Conditions {
			if matches(rec, c) {
				return true
			}
		}
		return false
	case OpEquals:
		return reflect.DeepEqual(normalize(fieldValue(rec, cond.Field)), normalize(cond.Value))
	case OpContains:
		field, _ := fieldValue(rec, cond.Field).(string)
		term, _ := cond.Value.(string)
		return strings.Contains(strings.ToLower(field), strings.ToLower(term))
	default:
		return false
	}
}

// fieldValue resolves a filter field against a record, looking through the
// metadata envelope the way the real backend does for message fields.
func fieldValue(rec map[string]any, field string) any {
	if v, ok := rec[field]; ok {
		return v
	}
	if md, ok := rec["metadata"].(map[string]any); ok {
		return md[field]
	}
	return nil
}

func compareValues(a, b any) bool {
	switch av := a.(type) {
	case string:
		bv, _ := b.(string)
		return av < bv
	case float64:
		bv, _ := b.(float64)
		return av < bv
	default:
		return fmt.Sprint(a) < fmt.Sprint(b)
	}
}

// toRecord normalizes a struct or map into plain JSON types.
func toRecord(v any) map[string]any {
	data, err := json.Marshal(v)
	if err != nil {
		return map[string]any{}
	}
	var rec map[string]any
	if err := json.Unmarshal(data, &rec); err != nil {
		return map[string]any{}
	}
	return rec
}

// normalize round-trips a value through JSON so Go values and decoded wire
// values compare equal.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func structuredResult(payload map[string]any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{StructuredContent: data}, nil
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []*mcp.ContentBlock{{Type: "text", Text: message}},
	}
}
