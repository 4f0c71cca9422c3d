// internal/models/entities.go
package models

// EntityKey names a structured value the extractor can pull out of free text.
// Keys form a closed set; EntitySet carries only keys that were actually
// extracted (absent, never null).
type EntityKey string

const (
	EntityMemberID    EntityKey = "member_id"
	EntityServiceType EntityKey = "service_type"
	EntityQueryType   EntityKey = "query_type"
)

// EntitySet maps entity names to extracted string values. Built fresh per
// query and never mutated after construction.
type EntitySet map[EntityKey]string

// Has reports whether the entity was extracted.
func (e EntitySet) Has(key EntityKey) bool {
	_, ok := e[key]
	return ok
}

// Get returns the extracted value, or "" when absent.
func (e EntitySet) Get(key EntityKey) string {
	return e[key]
}

// Clone returns an independent copy so callers can hand the set across
// goroutine boundaries without sharing the map.
func (e EntitySet) Clone() EntitySet {
	if e == nil {
		return nil
	}
	out := make(EntitySet, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
