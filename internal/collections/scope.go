// Package collections implements the generic collection data-access layer:
// a cached, filterable CRUD interface over the conventional
// COLLECTION_<NAME>_<VERB> tool names exposed by gateways and connections.
package collections

// Scope identifies the addressing context of a collection call: an
// organization, optionally narrowed to a single connection or gateway.
// Two calls with different scopes never share a cache entry.
type Scope struct {
	OrgID        string
	ConnectionID string // empty for org-wide scope
}

// OrgScope returns a scope addressing the organization as a whole.
func OrgScope(orgID string) Scope {
	return Scope{OrgID: orgID}
}

// ConnectionScope returns a scope addressing one connection within an org.
func ConnectionScope(orgID, connectionID string) Scope {
	return Scope{OrgID: orgID, ConnectionID: connectionID}
}

// discriminator distinguishes org-wide from connection-level scopes in cache
// keys, so the two can never collide even with coincidental IDs.
func (s Scope) discriminator() string {
	if s.ConnectionID != "" {
		return "conn"
	}
	return "org"
}

// Key returns a stable string form of the scope, used as a storage qualifier
// by the thread store and device-state maps.
func (s Scope) Key() string {
	if s.ConnectionID != "" {
		return s.OrgID + ":" + s.ConnectionID
	}
	return s.OrgID
}
