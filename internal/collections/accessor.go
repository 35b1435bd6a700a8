package collections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"mcpdeck/internal/logging"
)

// ErrNotFound reports a get/update/delete against an id the backend does not
// know. It is distinct from generic tool failures so callers can react.
var ErrNotFound = errors.New("entity not found")

// Defaults applied when list options leave them unset.
const (
	DefaultSortKey = "created_at"
	DefaultLimit   = 100
)

// ListOptions describe one list call: free-text search, column filters, sort
// and page size. The zero value lists everything with default ordering.
type ListOptions struct {
	SearchTerm    string
	SearchFields  []string // defaults to DefaultSearchFields
	Filters       []FieldFilter
	SortKey       string
	SortDirection string
	Limit         int
}

func (o ListOptions) searchFields() []string {
	if len(o.SearchFields) > 0 {
		return o.SearchFields
	}
	return DefaultSearchFields
}

func (o ListOptions) where() *Condition {
	return BuildWhere(o.SearchTerm, normalizeFilters(o.Filters), o.searchFields())
}

func (o ListOptions) orderBy() []OrderTerm {
	return BuildOrderBy(o.SortKey, o.SortDirection, DefaultSortKey)
}

func (o ListOptions) limit() int {
	if o.Limit > 0 {
		return o.Limit
	}
	return DefaultLimit
}

// ListResult is the decoded payload of a list call.
type ListResult[T any] struct {
	Items      []T  `json:"items"`
	HasMore    bool `json:"hasMore,omitempty"`
	TotalCount int  `json:"totalCount,omitempty"`
}

// Accessor executes collection operations against one invoker, keeping
// results in an injected cache and de-duplicating identical in-flight calls.
type Accessor struct {
	invoker Invoker
	cache   Cache

	// gen counts invalidations. Reads snapshot it before fetching and refuse
	// to cache a result once a mutation has bumped it, so a slow read can
	// never resurrect pre-mutation data after an invalidation.
	gen atomic.Int64

	mu    sync.Mutex
	calls map[string]*inflight
}

// inflight tracks one outstanding fetch so concurrent identical reads wait
// for it instead of issuing a duplicate call.
type inflight struct {
	done  chan struct{}
	value any
	err   error
}

// NewAccessor wires an accessor over the given invoker and cache.
func NewAccessor(invoker Invoker, cache Cache) *Accessor {
	return &Accessor{
		invoker: invoker,
		cache:   cache,
		calls:   make(map[string]*inflight),
	}
}

// Cache exposes the underlying cache, for prefill and tests.
func (a *Accessor) Cache() Cache {
	return a.cache
}

// do runs fetch under the key, joining an identical in-flight call when one
// exists. The result is published only under its own key, so a resolution for
// superseded options can never clobber a different entry.
func (a *Accessor) do(key string, fetch func() (any, error)) (any, error) {
	a.mu.Lock()
	if c, ok := a.calls[key]; ok {
		a.mu.Unlock()
		<-c.done
		return c.value, c.err
	}
	c := &inflight{done: make(chan struct{})}
	a.calls[key] = c
	a.mu.Unlock()

	// Cleanup must run even when fetch panics, or every later call on this
	// key would block on done forever.
	defer func() {
		a.mu.Lock()
		delete(a.calls, key)
		a.mu.Unlock()
		close(c.done)
	}()

	c.value, c.err = fetch()
	return c.value, c.err
}

// cacheResult stores a fetched value unless an invalidation ran after gen was
// snapshotted. A bump that lands between the check and the write is undone by
// deleting the just-written entry, so the entry never outlives the
// invalidation that should have covered it.
func (a *Accessor) cacheResult(key string, value any, gen int64) {
	if a.gen.Load() != gen {
		return
	}
	a.cache.Set(key, value)
	if a.gen.Load() != gen {
		a.cache.InvalidatePrefix(key)
	}
}

// List fetches a page of a collection. Results are cached under the canonical
// list key; repeated calls with equal options hit the cache without invoking
// the tool again. Tool and transport failures degrade to an empty result so a
// single misbehaving connection cannot take down unrelated views.
func List[T any](ctx context.Context, a *Accessor, scope Scope, collection string, opts ListOptions) (ListResult[T], error) {
	key := ListKey(scope, collection, opts)

	if v, ok := a.cache.Get(key); ok {
		if cached, ok := v.(ListResult[T]); ok {
			return cached, nil
		}
	}

	v, err := a.do(key, func() (any, error) {
		gen := a.gen.Load()
		args := map[string]any{
			"orderBy": opts.orderBy(),
			"limit":   opts.limit(),
			"offset":  0,
		}
		if where := opts.where(); where != nil {
			args["where"] = where
		}

		raw, err := invokeTool(ctx, a.invoker, ToolNameFor(collection, VerbList), args)
		if err != nil {
			logging.Warn("collection list failed, returning empty result",
				"collection", collection, "scope", scope.Key(), "error", err)
			return ListResult[T]{Items: []T{}}, nil
		}

		var result ListResult[T]
		if err := json.Unmarshal(raw, &result); err != nil {
			logging.Warn("collection list payload malformed, returning empty result",
				"collection", collection, "error", err)
			return ListResult[T]{Items: []T{}}, nil
		}
		if result.Items == nil {
			result.Items = []T{}
		}

		a.cacheResult(key, result, gen)
		return result, nil
	})
	if err != nil {
		return ListResult[T]{Items: []T{}}, err
	}
	return v.(ListResult[T]), nil
}

// itemPayload is the decoded payload of get/create/update/delete calls.
type itemPayload[T any] struct {
	Item *T `json:"item"`
}

// Get fetches a single entity by id. An empty id short-circuits to nil
// without a network call. A missing entity is reported as (nil, nil), the
// valid empty result for a read.
func Get[T any](ctx context.Context, a *Accessor, scope Scope, collection, id string) (*T, error) {
	if id == "" {
		return nil, nil
	}

	key := ItemKey(scope, collection, id)

	if v, ok := a.cache.Get(key); ok {
		if cached, ok := v.(*T); ok {
			return cached, nil
		}
	}

	v, err := a.do(key, func() (any, error) {
		gen := a.gen.Load()
		raw, err := invokeTool(ctx, a.invoker, ToolNameFor(collection, VerbGet), map[string]any{"id": id})
		if err != nil {
			logging.Warn("collection get failed, returning nil",
				"collection", collection, "id", id, "error", err)
			return (*T)(nil), nil
		}

		var payload itemPayload[T]
		if err := json.Unmarshal(raw, &payload); err != nil {
			return (*T)(nil), nil
		}
		if payload.Item != nil {
			a.cacheResult(key, payload.Item, gen)
		}
		return payload.Item, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*T), nil
}

// mutate runs one mutating tool call and applies the shared invalidation
// discipline: on success every cache entry under the collection's prefix is
// dropped so subsequent reads re-fetch; on failure the cache is untouched and
// the error propagates.
func mutate(ctx context.Context, a *Accessor, scope Scope, collection string, verb Verb, args map[string]any) (json.RawMessage, error) {
	raw, err := invokeTool(ctx, a.invoker, ToolNameFor(collection, verb), args)
	if err != nil {
		return nil, asNotFound(err)
	}

	// Bump before invalidating so a read in flight across this mutation sees
	// the new generation and refuses to cache its pre-mutation result.
	a.gen.Add(1)
	a.cache.InvalidatePrefix(CollectionPrefix(scope, collection))
	return raw, nil
}

// asNotFound maps backend "not found" tool failures to ErrNotFound while
// leaving other failures untouched.
func asNotFound(err error) error {
	var te *ToolError
	if errors.As(err, &te) && strings.Contains(strings.ToLower(te.Message), "not found") {
		return fmt.Errorf("%w: %s", ErrNotFound, te.Message)
	}
	return err
}

// Create persists a new entity and invalidates the collection's cache prefix.
func Create[T any](ctx context.Context, a *Accessor, scope Scope, collection string, data any) (*T, error) {
	raw, err := mutate(ctx, a, scope, collection, VerbCreate, map[string]any{"data": data})
	if err != nil {
		return nil, err
	}

	var payload itemPayload[T]
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding create result: %w", err)
	}
	if payload.Item == nil {
		return nil, fmt.Errorf("create returned no item")
	}
	return payload.Item, nil
}

// Update mutates an existing entity and invalidates the collection's cache
// prefix. A missing id surfaces as ErrNotFound.
func Update[T any](ctx context.Context, a *Accessor, scope Scope, collection, id string, data any) (*T, error) {
	raw, err := mutate(ctx, a, scope, collection, VerbUpdate, map[string]any{"id": id, "data": data})
	if err != nil {
		return nil, err
	}

	var payload itemPayload[T]
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("decoding update result: %w", err)
	}
	if payload.Item == nil {
		return nil, ErrNotFound
	}
	return payload.Item, nil
}

// Delete removes an entity and invalidates the collection's cache prefix.
// Returns the deleted id as confirmed by the backend.
func Delete(ctx context.Context, a *Accessor, scope Scope, collection, id string) (string, error) {
	raw, err := mutate(ctx, a, scope, collection, VerbDelete, map[string]any{"id": id})
	if err != nil {
		return "", err
	}

	var payload struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return "", fmt.Errorf("decoding delete result: %w", err)
	}
	if payload.Item.ID == "" {
		return id, nil
	}
	return payload.Item.ID, nil
}
