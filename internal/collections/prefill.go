package collections

import "mcpdeck/internal/logging"

// Prefill seeds the cache entry for a not-yet-fetched list with a canonical
// empty success result, so a consumer can render a brand-new scope (e.g. a
// freshly created thread's messages) without waiting on a round-trip that
// would legitimately return nothing. It never overwrites an existing entry,
// so calling it twice, or after real data has arrived, is a no-op.
func Prefill[T any](a *Accessor, scope Scope, collection string, opts ListOptions) {
	key := ListKey(scope, collection, opts)
	if a.cache.SetIfAbsent(key, ListResult[T]{Items: []T{}}) {
		logging.Debug("prefilled empty collection result",
			"collection", collection, "scope", scope.Key())
	}
}
