package rebind_test

import (
	"errors"
	"testing"

	"github.com/centraunit/rebind"
	"github.com/centraunit/rebind/mock"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"
)

const typeT = "example.T"

type ResolverTestSuite struct {
	suite.Suite
	reg      *mock.StaticRegistry
	scope    *mock.Scope
	resolver *rebind.Resolver
}

func (s *ResolverTestSuite) SetupTest() {
	s.reg = mock.NewStaticRegistry()
	s.scope = mock.NewScope("app")
	s.resolver = rebind.NewResolver(s.reg)
}

func (s *ResolverTestSuite) assertOrder(want []string, got []rebind.ServiceReference) {
	s.T().Helper()
	if diff := cmp.Diff(want, mock.Implementations(got)); diff != "" {
		s.Failf("unexpected resolution order", "(-want +got):\n%s", diff)
	}
}

func (s *ResolverTestSuite) TestSingleReturnsMaxRanking() {
	s.reg.Add(s.scope,
		mock.Ref("a", typeT, 1),
		mock.Ref("b", typeT, 7),
		mock.Ref("c", typeT, 3),
	)

	ref, ok := s.resolver.ResolveSingle(s.scope, typeT)
	s.True(ok)
	s.Equal("b", ref.Implementation())
}

func (s *ResolverTestSuite) TestTieBreakScenario() {
	s.reg.Add(s.scope,
		mock.Ref("A", typeT, 5),
		mock.Ref("B", typeT, 5),
		mock.Ref("C", typeT, 10),
	)

	ref, ok := s.resolver.ResolveSingle(s.scope, typeT)
	s.True(ok)
	s.Equal("C", ref.Implementation())

	s.assertOrder([]string{"C", "B", "A"}, s.resolver.ResolveCollection(s.scope, typeT))
}

func (s *ResolverTestSuite) TestEqualRankingsAreDeterministic() {
	refs := []rebind.ServiceReference{
		mock.Ref("beta", typeT, nil),
		mock.Ref("gamma", typeT, nil),
		mock.Ref("alpha", typeT, nil),
	}

	s.Run("RegistrationOrderIrrelevant", func() {
		for _, order := range [][]int{{0, 1, 2}, {2, 1, 0}, {1, 2, 0}} {
			reg := mock.NewStaticRegistry()
			for _, i := range order {
				reg.Add(s.scope, refs[i])
			}
			resolver := rebind.NewResolver(reg)

			ref, ok := resolver.ResolveSingle(s.scope, typeT)
			s.True(ok)
			s.Equal("gamma", ref.Implementation())
			s.assertOrder([]string{"gamma", "beta", "alpha"}, resolver.ResolveCollection(s.scope, typeT))
		}
	})
}

func (s *ResolverTestSuite) TestCollectionIsComplete() {
	s.reg.Add(s.scope,
		mock.Ref("low", typeT, -5),
		mock.Ref("string-ranked", typeT, "20"),
		mock.Ref("malformed", typeT, "very high"),
		mock.Ref("mid", typeT, int64(3)),
		mock.Ref("other", "example.Other", 100),
	)

	refs := s.resolver.ResolveCollection(s.scope, typeT)
	s.Len(refs, 4)
	s.assertOrder([]string{"string-ranked", "mid", "malformed", "low"}, refs)

	ascending := s.resolver.References(s.scope, typeT)
	s.assertOrder([]string{"low", "malformed", "mid", "string-ranked"}, ascending)
}

func (s *ResolverTestSuite) TestResolveByShape() {
	s.reg.Add(s.scope,
		mock.Ref("A", typeT, 5),
		mock.Ref("C", typeT, 10),
	)

	single := s.resolver.Resolve(s.scope, rebind.SingleOf(typeT))
	s.True(single.Found())
	s.Equal(rebind.SingleOf(typeT), single.Shape())
	s.Equal("C", single.Single().Implementation())
	s.assertOrder([]string{"C", "A"}, single.References())

	coll := s.resolver.Resolve(s.scope, rebind.CollectionOf(typeT))
	s.Equal(rebind.Collection, coll.Shape().Cardinality())
	s.assertOrder([]string{"C", "A"}, coll.References())
}

func (s *ResolverTestSuite) TestNoMatches() {
	s.reg.Add(s.scope, mock.Ref("other", "example.Other", 1))

	ref, ok := s.resolver.ResolveSingle(s.scope, typeT)
	s.False(ok)
	s.Nil(ref)

	result := s.resolver.Resolve(s.scope, rebind.SingleOf(typeT))
	s.False(result.Found())
	s.Nil(result.Single())

	refs := s.resolver.ResolveCollection(s.scope, typeT)
	s.NotNil(refs)
	s.Empty(refs)
}

func (s *ResolverTestSuite) TestRegistryFailuresYieldEmpty() {
	s.reg.Add(s.scope, mock.Ref("a", typeT, 1))

	s.Run("BadQuery", func() {
		s.reg.FailFind(&rebind.BadQueryError{Query: typeT, Reason: "unsupported"})
		_, ok := s.resolver.ResolveSingle(s.scope, typeT)
		s.False(ok)
		s.Empty(s.resolver.ResolveCollection(s.scope, typeT))
	})

	s.Run("OtherError", func() {
		s.reg.FailFind(errors.New("registry offline"))
		s.Empty(s.resolver.ResolveCollection(s.scope, typeT))
	})
}

func (s *ResolverTestSuite) TestScopesAreIsolated() {
	other := mock.NewScope("batch")
	s.reg.Add(s.scope, mock.Ref("a", typeT, 1))
	s.reg.Add(other, mock.Ref("b", typeT, 50))

	ref, ok := s.resolver.ResolveSingle(s.scope, typeT)
	s.True(ok)
	s.Equal("a", ref.Implementation())
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}
