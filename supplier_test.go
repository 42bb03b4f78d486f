package rebind_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/centraunit/rebind"
	"github.com/centraunit/rebind/memregistry"
	"github.com/centraunit/rebind/mock"
	"github.com/stretchr/testify/suite"
)

type Greeter interface {
	Greet() string
}

type greeter struct {
	name string
}

func (g *greeter) Greet() string { return "hello from " + g.name }

// greeterHolder keeps the best Greeter of its scope, the way an injected field would.
type greeterHolder struct {
	supplier *rebind.Supplier
	origin   any

	mu      sync.Mutex
	current Greeter
	found   bool

	disposed atomic.Bool
	loads    atomic.Int64
}

func (h *greeterHolder) IsValid() bool { return !h.disposed.Load() }

func (h *greeterHolder) ReExecute(ctx context.Context) error { return h.load(ctx) }

func (h *greeterHolder) load(ctx context.Context) error {
	h.loads.Add(1)
	g, ok, err := rebind.Lookup[Greeter](ctx, h.supplier, h, h.origin, true)
	if err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.current, h.found = g, ok
	return nil
}

func (h *greeterHolder) name() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.found {
		return ""
	}
	return h.current.(*greeter).name
}

type SupplierTestSuite struct {
	suite.Suite
	ctx         context.Context
	greeterType string
	reg         *memregistry.Registry
	app         *memregistry.Scope
	batch       *memregistry.Scope
	supplier    *rebind.Supplier
}

func (s *SupplierTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.greeterType = rebind.TypeNameOf[Greeter]()
	s.reg = memregistry.New()
	s.app = s.reg.Scope("app")
	s.batch = s.reg.Scope("batch")
	s.supplier = rebind.NewSupplier(s.reg,
		rebind.WithDefaultScope(s.app),
		rebind.WithScopeLocator(rebind.ScopeLocatorFunc(func(origin any) (rebind.Scope, bool) {
			if origin == "batch" {
				return s.batch, true
			}
			return nil, false
		})),
	)
}

func (s *SupplierTestSuite) TearDownTest() {
	s.NoError(s.supplier.Close())
}

func (s *SupplierTestSuite) publish(scope *memregistry.Scope, name string, ranking any) *memregistry.Registration {
	reg, err := s.reg.Publish(scope, memregistry.Service{
		Types:          []string{s.greeterType},
		Implementation: name,
		Properties:     map[string]any{rebind.RankingProperty: ranking},
		Instance:       &greeter{name: name},
	})
	s.Require().NoError(err)
	return reg
}

func (s *SupplierTestSuite) TestLiveRebinding() {
	low := s.publish(s.app, "low", 1)
	holder := &greeterHolder{supplier: s.supplier}
	s.Require().NoError(holder.load(s.ctx))
	s.Equal("low", holder.name())
	s.Equal(1, s.supplier.Index().Len())

	s.Run("HigherRankedServiceAppears", func() {
		high := s.publish(s.app, "high", 10)
		s.Equal("high", holder.name())

		s.Run("TopServiceWithdrawn", func() {
			s.Require().NoError(high.Unregister())
			s.Equal("low", holder.name())
		})
	})

	s.Run("RankingModified", func() {
		mid := s.publish(s.app, "mid", 0)
		s.Equal("low", holder.name())
		s.Require().NoError(mid.SetProperties(map[string]any{rebind.RankingProperty: "50"}))
		s.Equal("mid", holder.name())
		s.Require().NoError(mid.Unregister())
	})

	s.Run("LastServiceWithdrawn", func() {
		s.Require().NoError(low.Unregister())
		s.Equal("", holder.name())
	})

	s.Equal(1, s.supplier.Index().Clients(s.app, s.greeterType), "re-execution must not duplicate tracking")
}

func (s *SupplierTestSuite) TestDisposedClientIsCleanedUp() {
	spy := mock.NewSpyRegistry(s.reg)
	supplier := rebind.NewSupplier(spy, rebind.WithDefaultScope(s.app))
	defer supplier.Close()

	holder := &greeterHolder{supplier: supplier}
	s.Require().NoError(holder.load(s.ctx))
	s.Equal(1, spy.Subscribed("app", s.greeterType))
	s.Equal(1, s.reg.Listeners(s.app))

	holder.disposed.Store(true)
	s.publish(s.app, "late", 1)

	s.Equal(int64(1), holder.loads.Load(), "disposed client must not be re-executed")
	s.Equal(0, supplier.Index().Len())
	s.Equal(1, spy.Unsubscribed("app", s.greeterType))
	s.Equal(0, s.reg.Listeners(s.app))
}

func (s *SupplierTestSuite) TestGetSingle() {
	s.publish(s.app, "A", 5)
	s.publish(s.app, "B", 5)
	s.publish(s.app, "C", 10)

	v, err := s.supplier.Get(s.ctx, rebind.Request{Shape: rebind.SingleOf(s.greeterType)})
	s.Require().NoError(err)
	s.Equal("C", v.(*greeter).name)
	s.Equal(0, s.supplier.Index().Len(), "untracked requests leave the index alone")
}

func (s *SupplierTestSuite) TestGetCollection() {
	s.publish(s.app, "A", 5)
	s.publish(s.app, "B", 5)
	s.publish(s.app, "C", 10)

	greeters, err := rebind.LookupAll[Greeter](s.ctx, s.supplier, nil, nil, false)
	s.Require().NoError(err)
	s.Require().Len(greeters, 3)
	s.Equal("hello from C", greeters[0].Greet())
	s.Equal("hello from B", greeters[1].Greet())
	s.Equal("hello from A", greeters[2].Greet())
}

func (s *SupplierTestSuite) TestNotFound() {
	v, err := s.supplier.Get(s.ctx, rebind.Request{Shape: rebind.SingleOf(s.greeterType)})
	s.Require().NoError(err)
	s.Equal(rebind.NotAValue, v)
	s.NotNil(v)

	v, err = s.supplier.Get(s.ctx, rebind.Request{Shape: rebind.CollectionOf(s.greeterType)})
	s.Require().NoError(err)
	s.Equal([]any{}, v)

	g, ok, err := rebind.Lookup[Greeter](s.ctx, s.supplier, nil, nil, false)
	s.NoError(err)
	s.False(ok)
	s.Nil(g)
}

func (s *SupplierTestSuite) TestTrackingNotFound() {
	holder := &greeterHolder{supplier: s.supplier}
	s.Require().NoError(holder.load(s.ctx))
	s.Equal("", holder.name())
	s.Equal(1, s.supplier.Index().Len(), "a miss is tracked too")

	s.publish(s.app, "first", 0)
	s.Equal("first", holder.name())
}

func (s *SupplierTestSuite) TestMaterializationFallback() {
	_, err := s.reg.Publish(s.app, memregistry.Service{
		Types:          []string{s.greeterType},
		Implementation: "broken",
		Properties:     map[string]any{rebind.RankingProperty: 100},
		Factory:        func() (any, error) { return nil, errors.New("cannot start") },
	})
	s.Require().NoError(err)
	s.publish(s.app, "fallback", 1)

	g, ok, err := rebind.Lookup[Greeter](s.ctx, s.supplier, nil, nil, false)
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("hello from fallback", g.Greet())

	all, err := rebind.LookupAll[Greeter](s.ctx, s.supplier, nil, nil, false)
	s.Require().NoError(err)
	s.Len(all, 1)
}

func (s *SupplierTestSuite) TestZeroShapeIsRejected() {
	c := mock.NewClient("c")

	v, err := s.supplier.Get(s.ctx, rebind.Request{Client: c, Shape: rebind.Shape{}, Track: true})
	s.ErrorIs(err, rebind.ErrInvalidShape)
	s.Nil(v)
	s.Equal(0, s.supplier.Index().Len())
	s.Equal(0, s.reg.Listeners(s.app))

	s.publish(s.app, "unrelated", 1)
	s.Equal(0, c.Executions())
}

func (s *SupplierTestSuite) TestFallbackPastBrokenReferences() {
	static := mock.NewStaticRegistry()
	scope := mock.NewScope("app")
	top, middle, bottom := mock.Ref("top", typeT, 10), mock.Ref("middle", typeT, 5), mock.Ref("bottom", typeT, 1)
	static.Add(scope, bottom, top, middle)
	static.Break(top)
	supplier := rebind.NewSupplier(static, rebind.WithDefaultScope(scope))

	v, err := supplier.Get(s.ctx, rebind.Request{Shape: rebind.SingleOf(typeT)})
	s.Require().NoError(err)
	s.Equal("middle", v)

	v, err = supplier.Get(s.ctx, rebind.Request{Shape: rebind.CollectionOf(typeT)})
	s.Require().NoError(err)
	s.Equal([]any{"middle", "bottom"}, v)

	static.Break(middle)
	static.Break(bottom)
	v, err = supplier.Get(s.ctx, rebind.Request{Shape: rebind.SingleOf(typeT)})
	s.Require().NoError(err)
	s.Equal(rebind.NotAValue, v)

	_, err = static.Materialize(top)
	s.ErrorIs(err, mock.ErrNotMaterializable)
}

func (s *SupplierTestSuite) TestScopeSelection() {
	s.publish(s.app, "app-greeter", 1)
	s.publish(s.batch, "batch-greeter", 1)

	g, _, err := rebind.Lookup[Greeter](s.ctx, s.supplier, nil, "batch", false)
	s.Require().NoError(err)
	s.Equal("hello from batch-greeter", g.Greet())

	g, _, err = rebind.Lookup[Greeter](s.ctx, s.supplier, nil, "anything else", false)
	s.Require().NoError(err)
	s.Equal("hello from app-greeter", g.Greet())

	scope, err := s.supplier.Scope("batch")
	s.NoError(err)
	s.Equal(s.batch, scope)
}

func (s *SupplierTestSuite) TestNoScope() {
	supplier := rebind.NewSupplier(s.reg)
	_, err := supplier.Get(s.ctx, rebind.Request{Shape: rebind.SingleOf(s.greeterType)})
	s.ErrorIs(err, rebind.ErrNoScope)
}

func (s *SupplierTestSuite) TestTrackingSuppression() {
	s.Run("WithoutTracking", func() {
		holder := &greeterHolder{supplier: s.supplier}
		s.Require().NoError(holder.load(rebind.WithoutTracking(s.ctx)))
		s.Equal(0, s.supplier.Index().Len())
	})

	s.Run("NilClient", func() {
		_, err := s.supplier.Get(s.ctx, rebind.Request{Shape: rebind.SingleOf(s.greeterType), Track: true})
		s.NoError(err)
		s.Equal(0, s.supplier.Index().Len())
	})
}

func (s *SupplierTestSuite) TestTypeMismatch() {
	_, err := s.reg.Publish(s.app, memregistry.Service{
		Types:          []string{s.greeterType},
		Implementation: "impostor",
		Instance:       "not a greeter",
	})
	s.Require().NoError(err)

	_, _, err = rebind.Lookup[Greeter](s.ctx, s.supplier, nil, nil, false)
	var mismatch *rebind.TypeMismatchError
	s.Require().True(errors.As(err, &mismatch))
	s.Equal(s.greeterType, mismatch.Expected)
	s.Equal("string", mismatch.Got)

	_, err = rebind.LookupAll[Greeter](s.ctx, s.supplier, nil, nil, false)
	s.True(errors.As(err, &mismatch))
}

func (s *SupplierTestSuite) TestCloseReleasesSubscriptions() {
	holder := &greeterHolder{supplier: s.supplier}
	s.Require().NoError(holder.load(s.ctx))
	s.Equal(1, s.reg.Listeners(s.app))

	s.NoError(s.supplier.Close())
	s.Equal(0, s.reg.Listeners(s.app))

	err := holder.load(s.ctx)
	s.ErrorIs(err, rebind.ErrClosed)
}

func TestSupplierSuite(t *testing.T) {
	suite.Run(t, new(SupplierTestSuite))
}
