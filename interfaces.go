package rebind

import "context"

// Package rebind resolves services for clients against a scoped registry and keeps
// the resolved values live when matching services come and go.

// RankingProperty is the reference property holding a service's ranking.
const RankingProperty = "service.ranking"

// Scope identifies one isolated registry namespace.
// The core only uses scopes as map keys, so implementations must be comparable.
type Scope interface {
	Name() string
}

// ServiceReference is a handle to one published service.
type ServiceReference interface {
	// TypeNames returns the fully qualified type names the service is published under.
	TypeNames() []string

	// Implementation returns the implementing type name. It breaks ranking ties.
	Implementation() string

	// Property returns a raw service property, or nil if absent.
	Property(key string) any
}

// Registry is the service registry consumed by the resolver and the index.
type Registry interface {
	// Find returns every reference published in scope under typeName.
	Find(scope Scope, typeName string) ([]ServiceReference, error)

	// Materialize fetches the live instance behind a reference.
	Materialize(ref ServiceReference) (any, error)

	// Subscribe registers handler for change events of typeName in scope.
	Subscribe(scope Scope, typeName string, handler func(Event)) (Subscription, error)
}

// Subscription releases a change-event handler.
type Subscription interface {
	Unsubscribe() error
}

// Client receives resolved values and can be asked to resolve again.
type Client interface {
	// IsValid reports whether the client's owner is still alive.
	IsValid() bool

	// ReExecute makes the client pull a fresh resolution and apply it.
	ReExecute(ctx context.Context) error
}

// ScopeLocator maps the origin of a request to the scope it resolves in.
type ScopeLocator interface {
	LocateScope(origin any) (Scope, bool)
}

// ScopeLocatorFunc adapts a function to ScopeLocator.
type ScopeLocatorFunc func(origin any) (Scope, bool)

// LocateScope calls f(origin).
func (f ScopeLocatorFunc) LocateScope(origin any) (Scope, bool) {
	return f(origin)
}

// EventKind describes what happened to a service.
type EventKind int

// Service change kinds
const (
	// EventRegistered is emitted after a service is published
	EventRegistered EventKind = iota
	// EventModified is emitted after a service's properties change
	EventModified
	// EventUnregistering is emitted when a service is withdrawn
	EventUnregistering
)

func (k EventKind) String() string {
	switch k {
	case EventRegistered:
		return "registered"
	case EventModified:
		return "modified"
	case EventUnregistering:
		return "unregistering"
	default:
		return "unknown"
	}
}

// Event is a registry change notification.
type Event struct {
	Kind      EventKind
	Scope     Scope
	Reference ServiceReference
}

// Provides reports whether the changed service is published under typeName.
func (e Event) Provides(typeName string) bool {
	if e.Reference == nil {
		return false
	}
	for _, name := range e.Reference.TypeNames() {
		if name == typeName {
			return true
		}
	}
	return false
}
