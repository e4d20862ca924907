package ledger

import (
	"maps"
	"slices"
)

// Set is a set of delivered filenames. The zero value is an empty, read-only
// set; use NewSet before calling Add.
type Set map[string]struct{}

// NewSet returns a set holding names.
func NewSet(names ...string) Set {
	set := make(Set, len(names))
	set.Add(names...)
	return set
}

// Add inserts names into the set.
func (s Set) Add(names ...string) {
	for _, name := range names {
		if name == "" {
			continue
		}
		s[name] = struct{}{}
	}
}

// Has reports whether name was delivered.
func (s Set) Has(name string) bool {
	_, ok := s[name]
	return ok
}

// Len returns the number of names.
func (s Set) Len() int {
	return len(s)
}

// Sorted returns the names in lexical order.
func (s Set) Sorted() []string {
	return slices.Sorted(maps.Keys(s))
}

// Clone returns an independent copy.
func (s Set) Clone() Set {
	clone := make(Set, len(s))
	maps.Copy(clone, s)
	return clone
}

// Merge returns the union of a and b without modifying either.
func Merge(a, b Set) Set {
	union := make(Set, len(a)+len(b))
	maps.Copy(union, a)
	maps.Copy(union, b)
	return union
}

// Subtract returns the names not present in set, keeping their order.
func Subtract(names []string, set Set) []string {
	fresh := make([]string, 0, len(names))
	for _, name := range names {
		if set.Has(name) || slices.Contains(fresh, name) {
			continue
		}
		fresh = append(fresh, name)
	}
	return fresh
}
