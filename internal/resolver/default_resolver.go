package resolver

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/bayleafwalker/schemagraph/schema"
)

// DefaultResolver matches every slot of the requested operatives against
// every operative of the schema.
type DefaultResolver struct{}

func NewDefault() *DefaultResolver {
	return &DefaultResolver{}
}

func (r *DefaultResolver) Resolve(ctx context.Context, in Input) (Plan, error) {
	s := in.Schema
	if s == nil {
		return Plan{}, ErrNoSchema
	}

	all := s.Operatives()
	targets := in.Operatives
	if len(targets) == 0 {
		for _, op := range all {
			targets = append(targets, op.Tag.ID)
		}
	}
	ops := make([]*schema.Operative, 0, len(targets))
	for _, id := range targets {
		op, ok := s.Operative(id)
		if !ok {
			return Plan{}, fmt.Errorf("%w: %s", schema.ErrUnknownOperative, id)
		}
		ops = append(ops, op)
	}
	sort.SliceStable(ops, func(i, j int) bool {
		if ops[i].Tag.Name != ops[j].Tag.Name {
			return ops[i].Tag.Name < ops[j].Tag.Name
		}
		return ops[i].Tag.ID.Compare(ops[j].Tag.ID) < 0
	})

	plan := Plan{}
	for _, op := range ops {
		if err := ctx.Err(); err != nil {
			return Plan{}, err
		}
		d, err := s.OperativeDigest(op.Tag.ID)
		if err != nil {
			return Plan{}, err
		}
		for _, slot := range d.Slots {
			sp := SlotPlan{
				Operative:  op.Tag.ID,
				Slot:       slot.Slot.Tag,
				Descriptor: slot.Descriptor,
				Bounds:     slot.Bounds,
				Inherited:  len(slot.Related),
			}
			for _, cand := range all {
				if !s.Satisfies(slot.Descriptor, cand.Tag.ID) {
					continue
				}
				chain, err := s.Chain(cand.Tag.ID)
				if err != nil {
					return Plan{}, err
				}
				sp.Candidates = append(sp.Candidates, Candidate{Operative: cand.Tag, Depth: len(chain)})
			}
			sortCandidatesDeterministic(sp.Candidates)
			plan.Slots = append(plan.Slots, sp)

			// Baked edges may already satisfy the slot.
			if len(sp.Candidates) == 0 && !slot.Fulfilled() {
				addUnresolved(&plan.Diagnostics, op.Tag, slot, fmt.Sprintf("no operative satisfies %s", slot.Descriptor))
			}
		}
	}
	return plan, nil
}

func addUnresolved(diag *Diagnostics, op schema.Tag, slot schema.SlotDigest, reason string) {
	unresolved := UnresolvedSlot{
		Operative: op,
		Slot:      slot.Slot.Tag,
		Reason:    reason,
	}
	if slot.Bounds.HasZeroCase() {
		diag.UnresolvedOptional = append(diag.UnresolvedOptional, unresolved)
		return
	}
	diag.UnresolvedRequired = append(diag.UnresolvedRequired, unresolved)
}

func sortCandidatesDeterministic(candidates []Candidate) {
	// Deterministic ordering:
	// 1) Shallower chain first
	// 2) Tie-break: operative name, then id
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Depth != b.Depth {
			return a.Depth < b.Depth
		}
		if a.Operative.Name != b.Operative.Name {
			return a.Operative.Name < b.Operative.Name
		}
		return a.Operative.ID.Compare(b.Operative.ID) < 0
	})
}

// Explain describes why instances of op may not fill a slot constrained by
// desc. It returns the empty string when they may.
func Explain(s *schema.Schema, desc schema.Descriptor, op schema.Uid) string {
	if s.Satisfies(desc, op) {
		return ""
	}
	if _, ok := s.Operative(op); !ok {
		return fmt.Sprintf("operative %s does not exist", op)
	}
	switch d := desc.(type) {
	case schema.LibraryOperative:
		return fmt.Sprintf("operative %s does not descend from %s", operativeName(s, op), operativeName(s, d.Operative))
	case schema.TraitOperative:
		have := map[schema.Uid]bool{}
		if digest, err := s.TraitImplDigest(op); err == nil {
			for _, e := range digest.Entries {
				have[e.Trait] = true
			}
		}
		var missing []string
		for _, trait := range d.TraitList() {
			if have[trait] {
				continue
			}
			name := trait.String()
			if t, ok := s.Trait(trait); ok && t.Tag.Name != "" {
				name = t.Tag.Name
			}
			missing = append(missing, name)
		}
		return fmt.Sprintf("operative %s does not implement %s", operativeName(s, op), strings.Join(missing, ", "))
	default:
		return fmt.Sprintf("operative %s does not satisfy %v", operativeName(s, op), desc)
	}
}

func operativeName(s *schema.Schema, id schema.Uid) string {
	if op, ok := s.Operative(id); ok && op.Tag.Name != "" {
		return op.Tag.Name
	}
	return id.String()
}
