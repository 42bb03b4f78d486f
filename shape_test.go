package rebind_test

import (
	"context"
	"reflect"
	"testing"

	"github.com/centraunit/rebind"
	"github.com/stretchr/testify/suite"
)

type ShapeTestSuite struct {
	suite.Suite
}

func (s *ShapeTestSuite) TestConstructors() {
	single := rebind.SingleOf("store.Database")
	s.Equal(rebind.Single, single.Cardinality())
	s.Equal("store.Database", single.TypeName())
	s.Equal("store.Database", single.String())
	s.False(single.IsZero())

	coll := rebind.CollectionOf("store.Database")
	s.Equal(rebind.Collection, coll.Cardinality())
	s.Equal("store.Database", coll.TypeName())
	s.Equal("[]store.Database", coll.String())

	s.True(rebind.Shape{}.IsZero())
	s.Equal("single", rebind.Single.String())
	s.Equal("collection", rebind.Collection.String())
}

func (s *ShapeTestSuite) TestShapeOf() {
	greeterName := rebind.TypeNameOf[Greeter]()
	s.Equal("github.com/centraunit/rebind_test.Greeter", greeterName)

	s.Equal(rebind.SingleOf(greeterName), rebind.ShapeFor[Greeter]())
	s.Equal(rebind.CollectionOf(greeterName), rebind.ShapeFor[[]Greeter]())
	s.Equal(rebind.CollectionOf("int"), rebind.ShapeOf(reflect.TypeOf([]int{})))
	s.Equal(rebind.SingleOf("*rebind_test.Greeter"), rebind.ShapeFor[*Greeter]())
	s.True(rebind.ShapeOf(nil).IsZero())
}

func (s *ShapeTestSuite) TestTypeName() {
	s.Equal("int", rebind.TypeName(reflect.TypeOf(0)))
	s.Equal("map[string]int", rebind.TypeName(reflect.TypeOf(map[string]int{})))
	s.Equal("context.Context", rebind.TypeNameOf[context.Context]())
	s.Equal("", rebind.TypeName(nil))
}

func TestShapeSuite(t *testing.T) {
	suite.Run(t, new(ShapeTestSuite))
}
