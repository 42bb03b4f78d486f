package memregistry

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/centraunit/rebind"
	"go.uber.org/zap"
)

// Registration is a published service. It implements rebind.ServiceReference.
type Registration struct {
	id       int64
	scope    *Scope
	types    []string
	impl     string
	instance any
	factory  func() (any, error)

	propsMu sync.RWMutex
	props   map[string]any

	once    sync.Once
	made    any
	makeErr error
}

// TypeNames implements rebind.ServiceReference.
func (reg *Registration) TypeNames() []string { return slices.Clone(reg.types) }

// Implementation implements rebind.ServiceReference.
func (reg *Registration) Implementation() string { return reg.impl }

// Property implements rebind.ServiceReference.
func (reg *Registration) Property(key string) any {
	reg.propsMu.RLock()
	defer reg.propsMu.RUnlock()
	return reg.props[key]
}

// Properties returns a copy of all properties.
func (reg *Registration) Properties() map[string]any {
	reg.propsMu.RLock()
	defer reg.propsMu.RUnlock()
	return maps.Clone(reg.props)
}

// Scope returns the scope the service is published in.
func (reg *Registration) Scope() *Scope { return reg.scope }

func (reg *Registration) String() string {
	return fmt.Sprintf("%s/%s", reg.scope.name, reg.impl)
}

// SetProperties replaces the properties and emits a modified event.
func (reg *Registration) SetProperties(props map[string]any) error {
	if !reg.live() {
		return ErrUnregistered
	}
	next := maps.Clone(props)
	if next == nil {
		next = make(map[string]any)
	}
	reg.propsMu.Lock()
	reg.props = next
	reg.propsMu.Unlock()

	reg.scope.registry.dispatch(rebind.Event{Kind: rebind.EventModified, Scope: reg.scope, Reference: reg})
	return nil
}

// Unregister withdraws the service. It is no longer found or materialized by the time
// listeners see the unregistering event, so they re-resolve against the remaining services.
func (reg *Registration) Unregister() error {
	r := reg.scope.registry

	r.mu.Lock()
	_, ok := reg.scope.services[reg.id]
	delete(reg.scope.services, reg.id)
	r.mu.Unlock()
	if !ok {
		return ErrUnregistered
	}

	r.logger.Debug("Service unregistered.", zap.String("scope", reg.scope.name), zap.String("implementation", reg.impl))
	r.dispatch(rebind.Event{Kind: rebind.EventUnregistering, Scope: reg.scope, Reference: reg})
	return nil
}

func (reg *Registration) live() bool {
	r := reg.scope.registry
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := reg.scope.services[reg.id]
	return ok
}

func (reg *Registration) materialize() (any, error) {
	if reg.factory == nil {
		return reg.instance, nil
	}
	reg.once.Do(func() {
		reg.made, reg.makeErr = reg.factory()
		if reg.makeErr != nil {
			reg.makeErr = fmt.Errorf("memregistry: activating %s: %w", reg.impl, reg.makeErr)
		}
	})
	return reg.made, reg.makeErr
}
