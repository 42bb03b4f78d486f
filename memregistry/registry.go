// Package memregistry is an in-process service registry with isolated scopes,
// ranked registrations and synchronous change events. It implements rebind.Registry
// and serves as the registry for tests, the rebindctl tool and embedders that have
// no host module system of their own.
package memregistry

import (
	"cmp"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/centraunit/rebind"
	"go.uber.org/zap"
)

var (
	// ErrForeignScope is returned for scopes not created by this registry.
	ErrForeignScope = errors.New("memregistry: scope does not belong to this registry")
	// ErrForeignReference is returned for references not created by this registry.
	ErrForeignReference = errors.New("memregistry: reference does not belong to this registry")
	// ErrUnregistered is returned for references that were withdrawn.
	ErrUnregistered = errors.New("memregistry: service is unregistered")
	// ErrNoTypes is returned when a service is published without type names.
	ErrNoTypes = errors.New("memregistry: service must provide at least one type")
	// ErrNoImplementation is returned when a service has no implementation name.
	ErrNoImplementation = errors.New("memregistry: service implementation name is empty")
	// ErrNoInstance is returned unless exactly one of Instance and Factory is set.
	ErrNoInstance = errors.New("memregistry: exactly one of Instance and Factory must be set")
)

// Service describes a service to publish.
type Service struct {
	// Types are the fully qualified type names the service is published under.
	Types []string
	// Implementation names the implementing type; it breaks ranking ties.
	Implementation string
	// Properties holds raw properties, including rebind.RankingProperty.
	Properties map[string]any
	// Instance is the service object.
	Instance any
	// Factory lazily creates the service object on first materialization.
	Factory func() (any, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// Registry holds scopes of published services.
type Registry struct {
	mu     sync.RWMutex
	scopes map[string]*Scope
	nextID int64
	logger *zap.Logger
}

// Scope is one isolated namespace of a Registry.
type Scope struct {
	name      string
	registry  *Registry
	services  map[int64]*Registration
	listeners map[int64]*listener
}

// Name implements rebind.Scope.
func (s *Scope) Name() string { return s.name }

type listener struct {
	id       int64
	typeName string
	handler  func(rebind.Event)
}

type subscription struct {
	scope *Scope
	id    int64
	once  sync.Once
}

// Unsubscribe removes the listener. Calling it again is a no-op.
func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		r := s.scope.registry
		r.mu.Lock()
		delete(s.scope.listeners, s.id)
		r.mu.Unlock()
	})
	return nil
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		scopes: make(map[string]*Scope),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.Named("memregistry")
	return r
}

// Scope returns the scope called name, creating it if needed.
func (r *Registry) Scope(name string) *Scope {
	r.mu.Lock()
	defer r.mu.Unlock()

	if s, ok := r.scopes[name]; ok {
		return s
	}
	s := &Scope{
		name:      name,
		registry:  r,
		services:  make(map[int64]*Registration),
		listeners: make(map[int64]*listener),
	}
	r.scopes[name] = s
	r.logger.Debug("Scope created.", zap.String("scope", name))
	return s
}

// Scopes returns the names of all scopes, sorted.
func (r *Registry) Scopes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.scopes))
}

// Publish registers svc in scope and notifies listeners.
func (r *Registry) Publish(scope *Scope, svc Service) (*Registration, error) {
	if len(svc.Types) == 0 {
		return nil, ErrNoTypes
	}
	if svc.Implementation == "" {
		return nil, ErrNoImplementation
	}
	if (svc.Instance == nil) == (svc.Factory == nil) {
		return nil, ErrNoInstance
	}

	r.mu.Lock()
	if err := r.ownsLocked(scope); err != nil {
		r.mu.Unlock()
		return nil, err
	}
	r.nextID++
	reg := &Registration{
		id:       r.nextID,
		scope:    scope,
		types:    slices.Clone(svc.Types),
		impl:     svc.Implementation,
		props:    maps.Clone(svc.Properties),
		instance: svc.Instance,
		factory:  svc.Factory,
	}
	if reg.props == nil {
		reg.props = make(map[string]any)
	}
	scope.services[reg.id] = reg
	r.mu.Unlock()

	r.logger.Debug("Service registered.",
		zap.String("scope", scope.name), zap.String("implementation", reg.impl), zap.Strings("types", reg.types))
	r.dispatch(rebind.Event{Kind: rebind.EventRegistered, Scope: scope, Reference: reg})
	return reg, nil
}

// Registrations returns the live registrations of scope in publication order.
func (r *Registry) Registrations(scope *Scope) []*Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.ownsLocked(scope) != nil {
		return nil
	}
	regs := make([]*Registration, 0, len(scope.services))
	for _, reg := range scope.services {
		regs = append(regs, reg)
	}
	slices.SortFunc(regs, func(a, b *Registration) int { return cmp.Compare(a.id, b.id) })
	return regs
}

// Lookup returns the live registration of scope with the given implementation name.
func (r *Registry) Lookup(scope *Scope, implementation string) (*Registration, bool) {
	for _, reg := range r.Registrations(scope) {
		if reg.impl == implementation {
			return reg, true
		}
	}
	return nil, false
}

// Find implements rebind.Registry with exact type-name matching.
func (r *Registry) Find(scope rebind.Scope, typeName string) ([]rebind.ServiceReference, error) {
	if typeName == "" {
		return nil, &rebind.BadQueryError{Query: typeName, Reason: "empty type name"}
	}
	s, ok := scope.(*Scope)
	if !ok {
		return nil, ErrForeignScope
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.ownsLocked(s); err != nil {
		return nil, err
	}
	var refs []rebind.ServiceReference
	for _, reg := range s.services {
		if slices.Contains(reg.types, typeName) {
			refs = append(refs, reg)
		}
	}
	return refs, nil
}

// Materialize implements rebind.Registry. Factories run at most once per registration.
func (r *Registry) Materialize(ref rebind.ServiceReference) (any, error) {
	reg, ok := ref.(*Registration)
	if !ok || reg.scope == nil || reg.scope.registry != r {
		return nil, ErrForeignReference
	}

	r.mu.RLock()
	_, live := reg.scope.services[reg.id]
	r.mu.RUnlock()
	if !live {
		return nil, ErrUnregistered
	}
	return reg.materialize()
}

// Subscribe implements rebind.Registry. An empty typeName receives every event of the scope.
func (r *Registry) Subscribe(scope rebind.Scope, typeName string, handler func(rebind.Event)) (rebind.Subscription, error) {
	if handler == nil {
		return nil, errors.New("memregistry: nil event handler")
	}
	s, ok := scope.(*Scope)
	if !ok {
		return nil, ErrForeignScope
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.ownsLocked(s); err != nil {
		return nil, err
	}
	r.nextID++
	s.listeners[r.nextID] = &listener{id: r.nextID, typeName: typeName, handler: handler}
	return &subscription{scope: s, id: r.nextID}, nil
}

// Listeners returns how many listeners are subscribed in scope.
func (r *Registry) Listeners(scope *Scope) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(scope.listeners)
}

func (r *Registry) ownsLocked(scope *Scope) error {
	if scope == nil || scope.registry != r || r.scopes[scope.name] != scope {
		return ErrForeignScope
	}
	return nil
}

// dispatch delivers ev on the calling goroutine to a snapshot of the matching listeners.
func (r *Registry) dispatch(ev rebind.Event) {
	scope := ev.Scope.(*Scope)

	r.mu.RLock()
	targets := make([]*listener, 0, len(scope.listeners))
	for _, l := range scope.listeners {
		if l.typeName == "" || ev.Provides(l.typeName) {
			targets = append(targets, l)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(targets, func(a, b *listener) int { return cmp.Compare(a.id, b.id) })
	for _, l := range targets {
		r.notify(l, ev)
	}
}

func (r *Registry) notify(l *listener, ev rebind.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Event listener panicked.",
				zap.String("scope", ev.Scope.Name()),
				zap.Stringer("event", ev.Kind),
				zap.String("panic", fmt.Sprint(rec)))
		}
	}()
	l.handler(ev)
}
