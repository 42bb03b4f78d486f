package rebind

import (
	"errors"
	"slices"

	"go.uber.org/zap"
)

// Resolver answers requests against a registry using the ranking order.
// It holds no state besides its collaborators and is safe for concurrent use.
type Resolver struct {
	registry Registry
	logger   *zap.Logger
}

// Result is the answer to one request: a single reference or an ordered collection.
type Result struct {
	shape Shape
	refs  []ServiceReference
}

// Shape returns the shape the result answers.
func (r Result) Shape() Shape { return r.shape }

// Found reports whether at least one reference matched.
func (r Result) Found() bool { return len(r.refs) > 0 }

// Single returns the top-ranked reference, or nil if nothing matched.
func (r Result) Single() ServiceReference {
	if len(r.refs) == 0 {
		return nil
	}
	return r.refs[0]
}

// References returns all matches, highest rank first.
// For a single-shaped result it is the fallback order used during materialization.
func (r Result) References() []ServiceReference {
	return r.refs
}

// NewResolver creates a Resolver over reg.
func NewResolver(reg Registry, opts ...Option) *Resolver {
	o := newOptions(opts)
	return &Resolver{
		registry: reg,
		logger:   o.logger.Named("resolver"),
	}
}

// References returns every reference of typeName in scope, sorted ascending by
// ranking and then by implementation name. Registry failures yield an empty slice.
func (r *Resolver) References(scope Scope, typeName string) []ServiceReference {
	found, err := r.registry.Find(scope, typeName)
	if err != nil {
		var bad *BadQueryError
		if errors.As(err, &bad) {
			r.logger.Debug("Registry rejected query, treating as no matches.",
				zap.String("scope", scopeName(scope)), zap.String("type", typeName), zap.Error(err))
		} else {
			r.logger.Warn("Registry lookup failed, treating as no matches.",
				zap.String("scope", scopeName(scope)), zap.String("type", typeName), zap.Error(err))
		}
		return []ServiceReference{}
	}

	refs := make([]ServiceReference, 0, len(found))
	for _, ref := range found {
		if ref != nil && slices.Contains(ref.TypeNames(), typeName) {
			refs = append(refs, ref)
		}
	}
	slices.SortStableFunc(refs, compareReferences)
	return refs
}

// ResolveSingle returns the highest-ranked reference of typeName in scope.
func (r *Resolver) ResolveSingle(scope Scope, typeName string) (ServiceReference, bool) {
	refs := r.References(scope, typeName)
	if len(refs) == 0 {
		return nil, false
	}
	return refs[len(refs)-1], true
}

// ResolveCollection returns every reference of typeName in scope, highest rank first.
// Equal ranks come in descending implementation-name order.
func (r *Resolver) ResolveCollection(scope Scope, typeName string) []ServiceReference {
	refs := r.References(scope, typeName)
	slices.Reverse(refs)
	return refs
}

// Resolve answers a request of the given shape. Both shapes share the descending order:
// Single is its first element and References the fallback order for single requests.
func (r *Resolver) Resolve(scope Scope, shape Shape) Result {
	refs := r.ResolveCollection(scope, shape.TypeName())
	r.logger.Debug("Resolved request.",
		zap.String("scope", scopeName(scope)), zap.Stringer("shape", shape), zap.Int("candidates", len(refs)))
	return Result{shape: shape, refs: refs}
}

func scopeName(s Scope) string {
	if s == nil {
		return ""
	}
	return s.Name()
}
