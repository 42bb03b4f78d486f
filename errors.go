package rebind

import (
	"errors"
	"fmt"
)

var (
	// ErrNoScope is returned when neither the locator nor the default scope yields a scope.
	ErrNoScope = errors.New("rebind: no scope for request")
	// ErrClientPanic marks a client whose ReExecute panicked.
	ErrClientPanic = errors.New("rebind: client panicked during re-execution")
	// ErrClosed is returned by Track once the index has been closed.
	ErrClosed = errors.New("rebind: index closed")
	// ErrInvalidShape is returned for requests whose shape names no type.
	ErrInvalidShape = errors.New("rebind: request shape names no type")
	// ErrEmptyTypeName is returned by Track for an empty type name.
	ErrEmptyTypeName = errors.New("rebind: empty type name")
)

// BadQueryError is reported by a registry that cannot run a query.
// The resolver treats it as an empty result.
type BadQueryError struct {
	Query  string
	Reason string
}

func (e *BadQueryError) Error() string {
	return fmt.Sprintf("bad registry query %q: %s", e.Query, e.Reason)
}

// ClientExecutionError wraps a failure of a client's ReExecute during change delivery.
type ClientExecutionError struct {
	Scope string
	Type  string
	Err   error
}

func (e *ClientExecutionError) Error() string {
	return fmt.Sprintf("re-execution failed for type %s in scope %s: %v", e.Type, e.Scope, e.Err)
}

func (e *ClientExecutionError) Unwrap() error {
	return e.Err
}

// SubscribeError represents a registry refusing a change subscription.
type SubscribeError struct {
	Scope string
	Type  string
	Err   error
}

func (e *SubscribeError) Error() string {
	return fmt.Sprintf("subscribe failed for type %s in scope %s: %v", e.Type, e.Scope, e.Err)
}

func (e *SubscribeError) Unwrap() error {
	return e.Err
}

// InvalidClientError represents a client that cannot be tracked.
type InvalidClientError struct {
	Type string
}

func (e *InvalidClientError) Error() string {
	return fmt.Sprintf("client of type %s is not comparable and cannot be tracked", e.Type)
}

// InvalidScopeError represents a scope that cannot key the index.
type InvalidScopeError struct {
	Type  string
	Scope string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scope %s for type %s: scope must be non-nil and comparable", e.Scope, e.Type)
}

// TypeMismatchError represents a resolved instance of an unexpected type.
type TypeMismatchError struct {
	Expected string
	Got      string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: expected %s, got %s", e.Expected, e.Got)
}
