// internal/dispatch/registry.go
package dispatch

import (
	"context"
	"fmt"

	"benefits-router/internal/models"
)

// Request is the input handed to an agent capability: the raw query text
// plus the extracted entities. RAG-style agents search on the query; lookup
// agents read their parameters from the entity set.
type Request struct {
	Query    string
	Entities models.EntitySet
}

// InvokeFunc is the capability an agent registers with the dispatcher. The
// returned payload is opaque to the router.
type InvokeFunc func(ctx context.Context, req Request) (interface{}, error)

// HandlerDescriptor advertises one agent: the intent it serves, its name,
// the entities it cannot run without, and its invoke capability.
type HandlerDescriptor struct {
	Intent           models.Intent
	Name             string
	RequiredEntities []models.EntityKey
	Invoke           InvokeFunc
}

// Registry is the intent-to-agent table. It is assembled once at startup
// and read-only afterward, so concurrent lookups need no synchronization.
type Registry struct {
	handlers map[models.Intent]HandlerDescriptor
	names    []string
}

// NewRegistry builds the immutable registry. Registration fails on duplicate
// intents or incomplete descriptors rather than silently overwriting.
func NewRegistry(descriptors ...HandlerDescriptor) (*Registry, error) {
	r := &Registry{
		handlers: make(map[models.Intent]HandlerDescriptor, len(descriptors)),
	}

	for _, d := range descriptors {
		if d.Name == "" || d.Invoke == nil {
			return nil, fmt.Errorf("descriptor for intent %q is incomplete", d.Intent)
		}
		if _, exists := r.handlers[d.Intent]; exists {
			return nil, fmt.Errorf("duplicate handler registration for intent %q", d.Intent)
		}
		r.handlers[d.Intent] = d
		r.names = append(r.names, d.Name)
	}

	return r, nil
}

// Lookup returns the descriptor for an intent.
func (r *Registry) Lookup(intent models.Intent) (HandlerDescriptor, bool) {
	d, ok := r.handlers[intent]
	return d, ok
}

// AgentNames returns the registered agent names in registration order.
func (r *Registry) AgentNames() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}
