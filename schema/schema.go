// Package schema holds the constraint schema: templates, operatives, traits
// and library instances, the builder that validates them, and the fold of an
// operative's ancestor chain into its effective constraints.
//
// A built *Schema is immutable. Pointers returned by its lookups alias
// internal state and must not be modified; editors call Edit to obtain a
// builder seeded with copies and Build a new snapshot.
package schema

import (
	"fmt"
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"
)

type Schema struct {
	revision Uid

	templates  map[Uid]*Template
	operatives map[Uid]*Operative
	traits     map[Uid]*Trait
	instances  map[Uid]*Instance

	// chains maps each operative to its ancestor chain, root first and
	// ending with the operative itself.
	chains     map[Uid][]Uid
	traitImpls map[Uid]map[Uid]TraitImplEntry
	folds      map[Uid]*fold

	warnings []string
}

// Revision identifies this snapshot. Every Build yields a fresh revision.
func (s *Schema) Revision() Uid { return s.revision }

func (s *Schema) Template(id Uid) (*Template, bool) {
	t, ok := s.templates[id]
	return t, ok
}

func (s *Schema) Operative(id Uid) (*Operative, bool) {
	o, ok := s.operatives[id]
	return o, ok
}

func (s *Schema) Trait(id Uid) (*Trait, bool) {
	t, ok := s.traits[id]
	return t, ok
}

// LibraryInstance returns an instance defined by the schema itself.
func (s *Schema) LibraryInstance(id Uid) (*Instance, bool) {
	i, ok := s.instances[id]
	return i, ok
}

func (s *Schema) Templates() []*Template {
	out := make([]*Template, 0, len(s.templates))
	for _, id := range sortedKeys(s.templates) {
		out = append(out, s.templates[id])
	}
	return out
}

func (s *Schema) Operatives() []*Operative {
	out := make([]*Operative, 0, len(s.operatives))
	for _, id := range sortedKeys(s.operatives) {
		out = append(out, s.operatives[id])
	}
	return out
}

func (s *Schema) Traits() []*Trait {
	out := make([]*Trait, 0, len(s.traits))
	for _, id := range sortedKeys(s.traits) {
		out = append(out, s.traits[id])
	}
	return out
}

func (s *Schema) LibraryInstances() []*Instance {
	out := make([]*Instance, 0, len(s.instances))
	for _, id := range sortedKeys(s.instances) {
		out = append(out, s.instances[id])
	}
	return out
}

// LibraryInstanceIDs is the set of ids of instances baked into the schema.
func (s *Schema) LibraryInstanceIDs() sets.Set[Uid] {
	out := sets.New[Uid]()
	for id := range s.instances {
		out.Insert(id)
	}
	return out
}

// Warnings lists non-fatal findings such as cyclic trait usage.
func (s *Schema) Warnings() []string {
	return append([]string(nil), s.warnings...)
}

// Chain returns the ancestor chain of op, root first and ending with op.
func (s *Schema) Chain(op Uid) ([]Uid, error) {
	chain, ok := s.chains[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperative, op)
	}
	return append([]Uid(nil), chain...), nil
}

// IsDescendant reports whether op is ancestor itself or descends from it.
func (s *Schema) IsDescendant(op, ancestor Uid) bool {
	for _, id := range s.chains[op] {
		if id == ancestor {
			return true
		}
	}
	return false
}

// Implements reports whether op implements every trait in traits, directly
// or through its ancestors.
func (s *Schema) Implements(op Uid, traits sets.Set[Uid]) bool {
	impls, ok := s.traitImpls[op]
	if !ok {
		return false
	}
	for trait := range traits {
		if _, ok := impls[trait]; !ok {
			return false
		}
	}
	return true
}

// Satisfies reports whether instances of op may fill a slot constrained by d.
func (s *Schema) Satisfies(d Descriptor, op Uid) bool {
	switch desc := d.(type) {
	case LibraryOperative:
		return s.IsDescendant(op, desc.Operative)
	case TraitOperative:
		return s.Implements(op, desc.Traits)
	default:
		return false
	}
}

// Edit returns a builder seeded with copies of every entity in s.
func (s *Schema) Edit() *Builder {
	b := NewBuilder()
	for _, t := range s.Templates() {
		b.Template(*t)
	}
	for _, t := range s.Traits() {
		b.Trait(*t)
	}
	for _, o := range s.Operatives() {
		b.Operative(*o)
	}
	for _, i := range s.LibraryInstances() {
		b.LibraryInstance(*i)
	}
	return b
}

func sortedKeys[V any](m map[Uid]V) []Uid {
	keys := make([]Uid, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Compare(keys[j]) < 0 })
	return keys
}
