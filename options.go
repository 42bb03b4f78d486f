package rebind

import (
	"context"

	"go.uber.org/zap"
)

// Option configures a Resolver, Index or Supplier.
type Option func(*options)

type options struct {
	logger       *zap.Logger
	locator      ScopeLocator
	defaultScope Scope
	baseCtx      context.Context
}

func newOptions(opts []Option) options {
	o := options{
		logger:  zap.NewNop(),
		baseCtx: context.Background(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger sets the logger. A nil logger keeps the no-op default.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithScopeLocator sets how a request origin is mapped to its scope.
func WithScopeLocator(locator ScopeLocator) Option {
	return func(o *options) {
		o.locator = locator
	}
}

// WithDefaultScope sets the scope used when the locator finds none.
func WithDefaultScope(scope Scope) Option {
	return func(o *options) {
		o.defaultScope = scope
	}
}

// WithBaseContext sets the context handed to clients re-executed by change events.
func WithBaseContext(ctx context.Context) Option {
	return func(o *options) {
		if ctx != nil {
			o.baseCtx = ctx
		}
	}
}
