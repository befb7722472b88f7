package engine

import (
	"sort"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/bayleafwalker/schemagraph/internal/graph"
	"github.com/bayleafwalker/schemagraph/schema"
)

// state is the committed instance graph. Stored instances are never modified
// in place; a commit replaces them.
type state struct {
	instances  map[schema.Uid]*schema.Instance
	seqs       map[schema.Uid]uint64
	versions   map[schema.Uid]uint64
	incomplete sets.Set[schema.Uid]
	index      *graph.Index

	clock   uint64
	nextSeq uint64
}

func newState() *state {
	return &state{
		instances:  map[schema.Uid]*schema.Instance{},
		seqs:       map[schema.Uid]uint64{},
		versions:   map[schema.Uid]uint64{},
		incomplete: sets.New[schema.Uid](),
		index:      graph.NewIndex(),
	}
}

func (s *state) Instance(id schema.Uid) (*schema.Instance, bool) {
	inst, ok := s.instances[id]
	return inst, ok
}

// ordered lists live ids in creation order.
func (s *state) ordered() []schema.Uid {
	ids := make([]schema.Uid, 0, len(s.instances))
	for id := range s.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return s.seqs[ids[i]] < s.seqs[ids[j]] })
	return ids
}

// change is the before and after of one instance within a commit. A nil side
// means the instance is absent.
type change struct {
	id            schema.Uid
	seq           uint64
	before, after *schema.Instance
	wasIncomplete bool
	isIncomplete  bool
}

// apply moves every changed instance to its after side (forward) or its
// before side, and returns the versions of the instances present afterwards.
func (s *state) apply(changes []change, forward bool) map[schema.Uid]uint64 {
	versions := make(map[schema.Uid]uint64, len(changes))
	for _, c := range changes {
		target, incomplete := c.after, c.isIncomplete
		if !forward {
			target, incomplete = c.before, c.wasIncomplete
		}
		s.index.Apply(s.instances[c.id], target)
		if target == nil {
			delete(s.instances, c.id)
			delete(s.seqs, c.id)
			delete(s.versions, c.id)
			s.incomplete.Delete(c.id)
			continue
		}
		s.clock++
		s.instances[c.id] = target
		s.seqs[c.id] = c.seq
		s.versions[c.id] = s.clock
		versions[c.id] = s.clock
		if incomplete {
			s.incomplete.Insert(c.id)
		} else {
			s.incomplete.Delete(c.id)
		}
	}
	return versions
}

// matches reports whether the state still holds exactly what a previous
// apply left behind: the same versions, and nothing where the side was absent.
func (s *state) matches(changes []change, versions map[schema.Uid]uint64) bool {
	for _, c := range changes {
		want, present := versions[c.id]
		got, ok := s.versions[c.id]
		if present != ok || (present && want != got) {
			return false
		}
	}
	return true
}

// summarize describes changes for subscribers, in creation order.
func summarize(txID schema.Uid, origin Origin, changes []change, forward bool) Change {
	sorted := append([]change(nil), changes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].seq < sorted[j].seq })
	out := Change{TxID: txID, Origin: origin}
	for _, c := range sorted {
		from, to := c.before, c.after
		if !forward {
			from, to = to, from
		}
		switch {
		case from == nil && to != nil:
			out.Created = append(out.Created, c.id)
		case from != nil && to == nil:
			out.Removed = append(out.Removed, c.id)
		case from != nil:
			out.Mutated = append(out.Mutated, c.id)
		}
	}
	return out
}
