package collections

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Cache keys are ordered tuples rendered as '/'-joined strings:
//
//	<discriminator>/<org>/<connection>/collection/<name>/<operation...>
//
// CollectionPrefix is a true prefix of every list and item key for the same
// scope and collection, so one prefix invalidation clears them all. Segments
// are path-escaped so user-supplied ids cannot forge a foreign prefix.

func joinKey(segments ...string) string {
	escaped := make([]string, len(segments))
	for i, s := range segments {
		escaped[i] = url.PathEscape(s)
	}
	return strings.Join(escaped, "/")
}

func scopeSegments(scope Scope, collection string) []string {
	conn := scope.ConnectionID
	if conn == "" {
		conn = "-"
	}
	return []string{scope.discriminator(), scope.OrgID, conn, "collection", collection}
}

// CollectionPrefix returns the cache-key prefix shared by every entry for the
// given scope and collection.
func CollectionPrefix(scope Scope, collection string) string {
	return joinKey(scopeSegments(scope, collection)...) + "/"
}

// listKeyParams is the canonical serialization of list options. Filters are
// normalized before marshaling, and struct field order is fixed, so two
// logically identical option sets serialize identically regardless of
// construction order.
type listKeyParams struct {
	Where   *Condition  `json:"where,omitempty"`
	OrderBy []OrderTerm `json:"orderBy,omitempty"`
	Limit   int         `json:"limit"`
}

// ListKey returns the cache key for a list call with the given options.
func ListKey(scope Scope, collection string, opts ListOptions) string {
	params := listKeyParams{
		Where:   opts.where(),
		OrderBy: opts.orderBy(),
		Limit:   opts.limit(),
	}
	data, err := json.Marshal(params)
	if err != nil {
		// A filter value that cannot serialize would truncate the suffix and
		// collide distinct option sets. That is a caller bug, not a runtime
		// condition.
		panic(fmt.Sprintf("collections: unserializable list options for %q: %v", collection, err))
	}
	return CollectionPrefix(scope, collection) + "list/" + string(data)
}

// ItemKey returns the cache key for a single-entity get.
func ItemKey(scope Scope, collection, id string) string {
	return CollectionPrefix(scope, collection) + "item/" + url.PathEscape(id)
}
