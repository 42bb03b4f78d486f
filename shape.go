package rebind

import (
	"fmt"
	"reflect"
)

// Cardinality is whether a request wants one value or every match.
type Cardinality int

const (
	// Single requests the top-ranked match
	Single Cardinality = iota
	// Collection requests all matches, highest rank first
	Collection
)

func (c Cardinality) String() string {
	if c == Collection {
		return "collection"
	}
	return "single"
}

// Shape is the form of a request: one value of a type, or a collection of an element type.
// The zero value is not a valid shape.
type Shape struct {
	card     Cardinality
	typeName string
}

// SingleOf returns the shape of a request for one service of typeName.
func SingleOf(typeName string) Shape {
	return Shape{card: Single, typeName: typeName}
}

// CollectionOf returns the shape of a request for all services of elemTypeName.
func CollectionOf(elemTypeName string) Shape {
	return Shape{card: Collection, typeName: elemTypeName}
}

// ShapeOf derives a shape from a desired Go type. Slices become collections of their element type.
func ShapeOf(t reflect.Type) Shape {
	if t == nil {
		return Shape{}
	}
	if t.Kind() == reflect.Slice {
		return CollectionOf(TypeName(t.Elem()))
	}
	return SingleOf(TypeName(t))
}

// ShapeFor is ShapeOf for a type parameter.
func ShapeFor[T any]() Shape {
	return ShapeOf(reflect.TypeOf((*T)(nil)).Elem())
}

// Cardinality returns the shape's cardinality.
func (s Shape) Cardinality() Cardinality { return s.card }

// TypeName returns the requested type, or the element type for collections.
func (s Shape) TypeName() string { return s.typeName }

// IsZero reports whether s names no type.
func (s Shape) IsZero() bool { return s.typeName == "" }

func (s Shape) String() string {
	if s.card == Collection {
		return fmt.Sprintf("[]%s", s.typeName)
	}
	return s.typeName
}

// TypeName returns the fully qualified name services of t are published under:
// "import/path.Name" for named types and t.String() otherwise.
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Name() != "" && t.PkgPath() != "" {
		return t.PkgPath() + "." + t.Name()
	}
	return t.String()
}

// TypeNameOf is TypeName for a type parameter.
func TypeNameOf[T any]() string {
	return TypeName(reflect.TypeOf((*T)(nil)).Elem())
}
