// Package graph indexes the edges of an instance graph in reverse: for every
// child instance, the (host, slot) positions whose edge lists name it.
//
// The engine keeps one Index for its committed state so cascade removal never
// scans every host. Import builds a throwaway Index over the decoded records to
// find edges to absent children.
package graph

import (
	"sort"

	"github.com/bayleafwalker/schemagraph/schema"
)

// Ref is one position that refers to a child.
type Ref struct {
	Host schema.Uid
	Slot schema.Uid
}

// Edge is a single host → child edge through a slot.
type Edge struct {
	Host  schema.Uid
	Slot  schema.Uid
	Child schema.Uid
}

type Index struct {
	refs map[schema.Uid]map[Ref]int
}

func NewIndex() *Index {
	return &Index{refs: map[schema.Uid]map[Ref]int{}}
}

// Build indexes every edge of the given hosts.
func Build(hosts []*schema.Instance) *Index {
	x := NewIndex()
	for _, h := range hosts {
		x.Add(h)
	}
	return x
}

// Add indexes every edge of host.
func (x *Index) Add(host *schema.Instance) {
	for slot, children := range host.SlotEdges {
		for _, child := range children {
			x.inc(child, Ref{Host: host.ID, Slot: slot})
		}
	}
}

// Remove drops every edge of host from the index.
func (x *Index) Remove(host *schema.Instance) {
	for slot, children := range host.SlotEdges {
		for _, child := range children {
			x.dec(child, Ref{Host: host.ID, Slot: slot})
		}
	}
}

// Apply replaces the edges of before with those of after. Either side may be
// nil for a created or removed host.
func (x *Index) Apply(before, after *schema.Instance) {
	if before != nil {
		x.Remove(before)
	}
	if after != nil {
		x.Add(after)
	}
}

func (x *Index) inc(child schema.Uid, r Ref) {
	m, ok := x.refs[child]
	if !ok {
		m = map[Ref]int{}
		x.refs[child] = m
	}
	m[r]++
}

func (x *Index) dec(child schema.Uid, r Ref) {
	m, ok := x.refs[child]
	if !ok {
		return
	}
	if m[r] <= 1 {
		delete(m, r)
	} else {
		m[r]--
	}
	if len(m) == 0 {
		delete(x.refs, child)
	}
}

// Referrers lists the positions referring to child, ordered by host then slot.
func (x *Index) Referrers(child schema.Uid) []Ref {
	m := x.refs[child]
	out := make([]Ref, 0, len(m))
	for r := range m {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Host.Compare(out[j].Host); c != 0 {
			return c < 0
		}
		return out[i].Slot.Compare(out[j].Slot) < 0
	})
	return out
}

// Dangling lists every indexed edge whose child does not satisfy exists,
// ordered by child, host and slot.
func (x *Index) Dangling(exists func(schema.Uid) bool) []Edge {
	var children []schema.Uid
	for child := range x.refs {
		if !exists(child) {
			children = append(children, child)
		}
	}
	schema.SortUids(children)
	var out []Edge
	for _, child := range children {
		for _, r := range x.Referrers(child) {
			out = append(out, Edge{Host: r.Host, Slot: r.Slot, Child: child})
		}
	}
	return out
}
