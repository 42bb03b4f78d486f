package mock

import (
	"sync"

	"github.com/centraunit/rebind"
)

// SpyRegistry wraps a registry and counts subscriptions per scope and type.
type SpyRegistry struct {
	rebind.Registry

	mu           sync.Mutex
	subscribed   map[spyKey]int
	unsubscribed map[spyKey]int
}

type spyKey struct {
	scope    string
	typeName string
}

type spySubscription struct {
	rebind.Subscription
	spy  *SpyRegistry
	key  spyKey
	once sync.Once
}

// NewSpyRegistry wraps inner.
func NewSpyRegistry(inner rebind.Registry) *SpyRegistry {
	return &SpyRegistry{
		Registry:     inner,
		subscribed:   make(map[spyKey]int),
		unsubscribed: make(map[spyKey]int),
	}
}

// Subscribe implements rebind.Registry.
func (s *SpyRegistry) Subscribe(scope rebind.Scope, typeName string, handler func(rebind.Event)) (rebind.Subscription, error) {
	sub, err := s.Registry.Subscribe(scope, typeName, handler)
	if err != nil {
		return nil, err
	}
	key := spyKey{scope: scope.Name(), typeName: typeName}
	s.mu.Lock()
	s.subscribed[key]++
	s.mu.Unlock()
	return &spySubscription{Subscription: sub, spy: s, key: key}, nil
}

// Unsubscribe implements rebind.Subscription; only the first call is counted.
func (s *spySubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.spy.mu.Lock()
		s.spy.unsubscribed[s.key]++
		s.spy.mu.Unlock()
	})
	return s.Subscription.Unsubscribe()
}

// Subscribed returns how many subscriptions were made for typeName in the named scope.
func (s *SpyRegistry) Subscribed(scope, typeName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.subscribed[spyKey{scope: scope, typeName: typeName}]
}

// Unsubscribed returns how many of those subscriptions were released.
func (s *SpyRegistry) Unsubscribed(scope, typeName string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.unsubscribed[spyKey{scope: scope, typeName: typeName}]
}
