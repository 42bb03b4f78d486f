package mock

import (
	"errors"
	"sync"

	"github.com/centraunit/rebind"
)

// ErrNotMaterializable is returned by StaticRegistry for references marked broken.
var ErrNotMaterializable = errors.New("mock: reference cannot be materialized")

// Scope is a named rebind.Scope.
type Scope struct {
	ScopeName string
}

// NewScope returns a scope called name.
func NewScope(name string) *Scope { return &Scope{ScopeName: name} }

// Name implements rebind.Scope.
func (s *Scope) Name() string { return s.ScopeName }

// StaticRegistry serves fixed references and lets tests fire events by hand.
type StaticRegistry struct {
	mu        sync.Mutex
	refs      map[rebind.Scope][]rebind.ServiceReference
	broken    map[rebind.ServiceReference]bool
	findErr   error
	subErr    error
	nextID    int
	handlers  map[int]handlerEntry
	subscribe int
	release   int
}

type handlerEntry struct {
	scope    rebind.Scope
	typeName string
	handler  func(rebind.Event)
}

type staticSubscription struct {
	registry *StaticRegistry
	id       int
}

// NewStaticRegistry returns an empty StaticRegistry.
func NewStaticRegistry() *StaticRegistry {
	return &StaticRegistry{
		refs:     make(map[rebind.Scope][]rebind.ServiceReference),
		broken:   make(map[rebind.ServiceReference]bool),
		handlers: make(map[int]handlerEntry),
	}
}

// Add publishes refs in scope without firing events.
func (r *StaticRegistry) Add(scope rebind.Scope, refs ...rebind.ServiceReference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refs[scope] = append(r.refs[scope], refs...)
}

// Break makes Materialize fail for ref.
func (r *StaticRegistry) Break(ref rebind.ServiceReference) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.broken[ref] = true
}

// FailFind makes every Find return err.
func (r *StaticRegistry) FailFind(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.findErr = err
}

// FailSubscribe makes every Subscribe return err.
func (r *StaticRegistry) FailSubscribe(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subErr = err
}

// Find implements rebind.Registry. It returns every reference of the scope, unfiltered.
func (r *StaticRegistry) Find(scope rebind.Scope, _ string) ([]rebind.ServiceReference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	return append([]rebind.ServiceReference(nil), r.refs[scope]...), nil
}

// Materialize implements rebind.Registry.
func (r *StaticRegistry) Materialize(ref rebind.ServiceReference) (any, error) {
	r.mu.Lock()
	broken := r.broken[ref]
	r.mu.Unlock()
	if broken {
		return nil, ErrNotMaterializable
	}
	if mr, ok := ref.(*Reference); ok {
		return mr.Instance, nil
	}
	return ref.Implementation(), nil
}

// Subscribe implements rebind.Registry.
func (r *StaticRegistry) Subscribe(scope rebind.Scope, typeName string, handler func(rebind.Event)) (rebind.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.subErr != nil {
		return nil, r.subErr
	}
	r.nextID++
	r.subscribe++
	r.handlers[r.nextID] = handlerEntry{scope: scope, typeName: typeName, handler: handler}
	return &staticSubscription{registry: r, id: r.nextID}, nil
}

// Unsubscribe implements rebind.Subscription.
func (s *staticSubscription) Unsubscribe() error {
	s.registry.mu.Lock()
	defer s.registry.mu.Unlock()
	if _, ok := s.registry.handlers[s.id]; ok {
		delete(s.registry.handlers, s.id)
		s.registry.release++
	}
	return nil
}

// Fire delivers ev to every handler subscribed in ev.Scope, regardless of type.
func (r *StaticRegistry) Fire(ev rebind.Event) {
	r.mu.Lock()
	var targets []func(rebind.Event)
	for id := 1; id <= r.nextID; id++ {
		if h, ok := r.handlers[id]; ok && h.scope == ev.Scope {
			targets = append(targets, h.handler)
		}
	}
	r.mu.Unlock()

	for _, handler := range targets {
		handler(ev)
	}
}

// Subscriptions returns how many times Subscribe succeeded.
func (r *StaticRegistry) Subscriptions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.subscribe
}

// Releases returns how many subscriptions were released.
func (r *StaticRegistry) Releases() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.release
}

// Active returns how many subscriptions are live.
func (r *StaticRegistry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

var _ rebind.Registry = (*StaticRegistry)(nil)
