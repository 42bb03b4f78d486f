package rebind

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type notAValue struct{}

func (notAValue) String() string { return "<not a value>" }

// NotAValue is returned by Get when a single-valued request matches no service.
// It is distinct from nil so callers can tell "resolved to nothing" from "not attempted".
var NotAValue any = notAValue{}

// Request is one resolution request from an injection point.
type Request struct {
	// Client is the requestor re-executed on changes. It may be nil when Track is false.
	Client Client
	// Origin is handed to the ScopeLocator to find the request's scope.
	Origin any
	// Shape is the requested type and cardinality.
	Shape Shape
	// Track keeps the client's value live across registry changes.
	Track bool
}

// Supplier is the entry point for dependency-injection front ends. It owns a Resolver
// and a live-rebind Index; each Supplier has its own table.
type Supplier struct {
	registry     Registry
	resolver     *Resolver
	index        *Index
	locator      ScopeLocator
	defaultScope Scope
	logger       *zap.Logger
}

// NewSupplier creates a Supplier over reg.
func NewSupplier(reg Registry, opts ...Option) *Supplier {
	o := newOptions(opts)
	return &Supplier{
		registry:     reg,
		resolver:     NewResolver(reg, opts...),
		index:        NewIndex(reg, opts...),
		locator:      o.locator,
		defaultScope: o.defaultScope,
		logger:       o.logger.Named("supplier"),
	}
}

// Resolver returns the supplier's resolver.
func (s *Supplier) Resolver() *Resolver { return s.resolver }

// Index returns the supplier's live-rebind index.
func (s *Supplier) Index() *Index { return s.index }

// Close releases all live-rebind subscriptions.
func (s *Supplier) Close() error {
	return s.index.Close()
}

// Scope returns the scope a request from origin resolves in.
func (s *Supplier) Scope(origin any) (Scope, error) {
	if s.locator != nil {
		if scope, ok := s.locator.LocateScope(origin); ok && scope != nil {
			return scope, nil
		}
	}
	if s.defaultScope != nil {
		return s.defaultScope, nil
	}
	return nil, ErrNoScope
}

// Get resolves req. A single-valued request returns the instance of the highest-ranked
// service that can be materialized, or NotAValue. A collection request returns []any in
// rank order, possibly empty. A zero shape fails with ErrInvalidShape before anything is
// resolved or tracked. When req.Track is set and ctx was not marked by WithoutTracking,
// the client is registered for live rebinding.
func (s *Supplier) Get(ctx context.Context, req Request) (any, error) {
	if req.Shape.IsZero() {
		return nil, ErrInvalidShape
	}
	scope, err := s.Scope(req.Origin)
	if err != nil {
		return nil, err
	}
	logger := LoggerFromContext(ctx, s.logger)

	result := s.resolver.Resolve(scope, req.Shape)

	if req.Track && req.Client != nil && !TrackingSuppressed(ctx) {
		if err := s.index.Track(scope, req.Shape.TypeName(), req.Client); err != nil {
			return nil, err
		}
	}

	if req.Shape.Cardinality() == Collection {
		values := make([]any, 0, len(result.References()))
		for _, ref := range result.References() {
			instance, err := s.registry.Materialize(ref)
			if err != nil {
				logger.Debug("Skipping service that could not be materialized.",
					zap.String("scope", scope.Name()), zap.String("implementation", ref.Implementation()), zap.Error(err))
				continue
			}
			values = append(values, instance)
		}
		return values, nil
	}

	for _, ref := range result.References() {
		instance, err := s.registry.Materialize(ref)
		if err != nil {
			logger.Debug("Falling back past service that could not be materialized.",
				zap.String("scope", scope.Name()), zap.String("implementation", ref.Implementation()), zap.Error(err))
			continue
		}
		return instance, nil
	}
	return NotAValue, nil
}

// Lookup resolves one T. ok is false when no service matched.
func Lookup[T any](ctx context.Context, s *Supplier, client Client, origin any, track bool) (T, bool, error) {
	var zero T
	v, err := s.Get(ctx, Request{Client: client, Origin: origin, Shape: SingleOf(TypeNameOf[T]()), Track: track})
	if err != nil {
		return zero, false, err
	}
	if v == NotAValue {
		return zero, false, nil
	}
	typed, ok := v.(T)
	if !ok {
		return zero, false, &TypeMismatchError{Expected: TypeNameOf[T](), Got: fmt.Sprintf("%T", v)}
	}
	return typed, true, nil
}

// LookupAll resolves every T, highest rank first.
func LookupAll[T any](ctx context.Context, s *Supplier, client Client, origin any, track bool) ([]T, error) {
	v, err := s.Get(ctx, Request{Client: client, Origin: origin, Shape: CollectionOf(TypeNameOf[T]()), Track: track})
	if err != nil {
		return nil, err
	}
	values := v.([]any)
	out := make([]T, 0, len(values))
	for _, value := range values {
		typed, ok := value.(T)
		if !ok {
			return nil, &TypeMismatchError{Expected: TypeNameOf[T](), Got: fmt.Sprintf("%T", value)}
		}
		out = append(out, typed)
	}
	return out, nil
}
