package rebind

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// Index is the live-rebind table. For every (scope, type) pair with interested
// clients it keeps one watcher subscribed to the registry; on a relevant change the
// watcher re-executes its clients. Watchers remove themselves once all their clients
// are gone.
//
// An Index starts empty and holds subscriptions until its clients drain or Close is
// called. All table and client-set mutations happen under one mutex; clients are
// re-executed outside of it, so ReExecute may resolve and track again.
//
// Client.IsValid is called with the index lock held and must not call back into the index.
// Registry.Subscribe is also called with the lock held, while Unsubscribe never is; a
// registry must not deliver events synchronously from inside Subscribe.
type Index struct {
	registry Registry
	logger   *zap.Logger
	baseCtx  context.Context

	mu       sync.Mutex
	watchers map[Scope]map[string]*watcher
	closed   bool
}

// WatchInfo describes one watcher in an Index snapshot.
type WatchInfo struct {
	Scope   Scope
	Type    string
	Clients int
}

// watcher tracks the clients interested in one type within one scope.
type watcher struct {
	index    *Index
	scope    Scope
	typeName string
	clients  map[Client]struct{}
	sub      Subscription

	// delivering is set while one goroutine runs the event loop; events arriving
	// meanwhile are queued in pending and handled by that goroutine.
	delivering bool
	pending    []Event
	removed    bool
}

// NewIndex creates an empty Index subscribing to reg.
func NewIndex(reg Registry, opts ...Option) *Index {
	o := newOptions(opts)
	return &Index{
		registry: reg,
		logger:   o.logger.Named("index"),
		baseCtx:  o.baseCtx,
		watchers: make(map[Scope]map[string]*watcher),
	}
}

// Track registers client's interest in typeName within scope. The first client for a
// pair subscribes a new watcher; tracking a client twice is a no-op.
func (x *Index) Track(scope Scope, typeName string, client Client) error {
	if typeName == "" {
		return ErrEmptyTypeName
	}
	if !comparableScope(scope) {
		return &InvalidScopeError{Type: typeName, Scope: fmt.Sprintf("%T", scope)}
	}
	if client == nil {
		return &InvalidClientError{Type: "<nil>"}
	}
	if t := reflect.TypeOf(client); !t.Comparable() {
		return &InvalidClientError{Type: t.String()}
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return ErrClosed
	}

	byType := x.watchers[scope]
	w, ok := byType[typeName]
	if !ok {
		w = &watcher{
			index:    x,
			scope:    scope,
			typeName: typeName,
			clients:  make(map[Client]struct{}),
		}
		sub, err := x.registry.Subscribe(scope, typeName, w.serviceChanged)
		if err != nil {
			return &SubscribeError{Scope: scopeName(scope), Type: typeName, Err: err}
		}
		w.sub = sub

		if byType == nil {
			byType = make(map[string]*watcher)
			x.watchers[scope] = byType
		}
		byType[typeName] = w
		x.logger.Debug("Watcher subscribed.", zap.String("scope", scopeName(scope)), zap.String("type", typeName))
	}

	w.clients[client] = struct{}{}
	return nil
}

// Len returns the number of live watchers.
func (x *Index) Len() int {
	x.mu.Lock()
	defer x.mu.Unlock()

	n := 0
	for _, byType := range x.watchers {
		n += len(byType)
	}
	return n
}

// Clients returns how many clients are tracked for typeName in scope.
func (x *Index) Clients(scope Scope, typeName string) int {
	if !comparableScope(scope) {
		return 0
	}

	x.mu.Lock()
	defer x.mu.Unlock()

	if w, ok := x.watchers[scope][typeName]; ok {
		return len(w.clients)
	}
	return 0
}

// Watchers returns a snapshot of the table (order is unspecified).
func (x *Index) Watchers() []WatchInfo {
	x.mu.Lock()
	defer x.mu.Unlock()

	infos := make([]WatchInfo, 0, len(x.watchers))
	for scope, byType := range x.watchers {
		for typeName, w := range byType {
			infos = append(infos, WatchInfo{Scope: scope, Type: typeName, Clients: len(w.clients)})
		}
	}
	return infos
}

// Close releases every subscription and empties the table. Events still in flight are
// ignored and later Track calls fail with ErrClosed. Close is idempotent.
func (x *Index) Close() error {
	x.mu.Lock()
	if x.closed {
		x.mu.Unlock()
		return nil
	}
	x.closed = true

	var subs []Subscription
	for _, byType := range x.watchers {
		for _, w := range byType {
			w.removed = true
			w.pending = nil
			w.clients = make(map[Client]struct{})
			subs = append(subs, w.sub)
		}
	}
	x.watchers = make(map[Scope]map[string]*watcher)
	x.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, err)
		}
	}
	x.logger.Debug("Index closed.", zap.Int("released", len(subs)))
	return errors.Join(errs...)
}

func comparableScope(scope Scope) bool {
	return scope != nil && reflect.TypeOf(scope).Comparable()
}

// serviceChanged is the registry handler of a watcher.
func (w *watcher) serviceChanged(ev Event) {
	x := w.index

	x.mu.Lock()
	if w.removed {
		x.mu.Unlock()
		return
	}
	if w.delivering {
		w.pending = append(w.pending, ev)
		x.mu.Unlock()
		return
	}
	w.delivering = true

	for {
		for c := range w.clients {
			if !c.IsValid() {
				delete(w.clients, c)
			}
		}

		if len(w.clients) == 0 {
			sub := x.removeLocked(w)
			x.mu.Unlock()
			x.release(w, sub)
			return
		}

		if ev.Provides(w.typeName) {
			clients := make([]Client, 0, len(w.clients))
			for c := range w.clients {
				clients = append(clients, c)
			}
			x.mu.Unlock()

			x.deliver(w, ev, clients)

			x.mu.Lock()
			if w.removed {
				w.delivering = false
				x.mu.Unlock()
				return
			}
		}

		if len(w.pending) == 0 {
			w.delivering = false
			x.mu.Unlock()
			return
		}
		ev = w.pending[0]
		w.pending[0] = Event{}
		w.pending = w.pending[1:]
	}
}

// removeLocked drops w from the table. x.mu must be held.
func (x *Index) removeLocked(w *watcher) Subscription {
	w.removed = true
	w.delivering = false
	w.pending = nil

	if byType, ok := x.watchers[w.scope]; ok {
		if byType[w.typeName] == w {
			delete(byType, w.typeName)
		}
		if len(byType) == 0 {
			delete(x.watchers, w.scope)
		}
	}
	return w.sub
}

// release unsubscribes a removed watcher. The watcher ignores events from here on,
// so the subscription is released outside the index lock.
func (x *Index) release(w *watcher, sub Subscription) {
	if sub == nil {
		return
	}
	if err := sub.Unsubscribe(); err != nil {
		x.logger.Warn("Failed to release watcher subscription.",
			zap.String("scope", scopeName(w.scope)), zap.String("type", w.typeName), zap.Error(err))
		return
	}
	x.logger.Debug("Watcher removed.", zap.String("scope", scopeName(w.scope)), zap.String("type", w.typeName))
}

// deliver re-executes clients one by one. A failing client is logged and skipped.
func (x *Index) deliver(w *watcher, ev Event, clients []Client) {
	ctx := WithoutTracking(x.baseCtx)
	for _, c := range clients {
		if !c.IsValid() {
			continue
		}
		if err := reExecute(ctx, c); err != nil {
			cerr := &ClientExecutionError{Scope: scopeName(w.scope), Type: w.typeName, Err: err}
			x.logger.Error("Client re-execution failed.",
				zap.String("scope", cerr.Scope),
				zap.String("type", cerr.Type),
				zap.Stringer("event", ev.Kind),
				zap.Error(cerr))
		}
	}
}

func reExecute(ctx context.Context, c Client) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrClientPanic, r)
		}
	}()
	return c.ReExecute(ctx)
}
