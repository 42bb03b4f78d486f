package mock

import "github.com/centraunit/rebind"

// Reference is a fixed rebind.ServiceReference.
type Reference struct {
	Impl     string
	Types    []string
	Ranking  any
	Instance any
	Props    map[string]any
}

// Ref returns a reference of impl published under typeName with the given raw ranking.
func Ref(impl, typeName string, ranking any) *Reference {
	return &Reference{Impl: impl, Types: []string{typeName}, Ranking: ranking, Instance: impl}
}

// TypeNames implements rebind.ServiceReference.
func (r *Reference) TypeNames() []string { return r.Types }

// Implementation implements rebind.ServiceReference.
func (r *Reference) Implementation() string { return r.Impl }

// Property implements rebind.ServiceReference.
func (r *Reference) Property(key string) any {
	if key == rebind.RankingProperty {
		return r.Ranking
	}
	return r.Props[key]
}

// Implementations returns the implementation names of refs in order.
func Implementations(refs []rebind.ServiceReference) []string {
	names := make([]string, 0, len(refs))
	for _, ref := range refs {
		names = append(names, ref.Implementation())
	}
	return names
}
