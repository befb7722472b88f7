package resolver

import (
	"context"

	"github.com/bayleafwalker/schemagraph/schema"
)

// Resolver computes a Plan of slot candidates for a given Input.
type Resolver interface {
	Resolve(ctx context.Context, in Input) (Plan, error)
}

// Input selects the operatives whose slots are resolved.
type Input struct {
	Schema *schema.Schema
	// Operatives restricts resolution to these operatives. Empty means all.
	Operatives []schema.Uid
}

// Plan lists, per operative slot, the operatives that may fill it.
type Plan struct {
	Slots       []SlotPlan
	Diagnostics Diagnostics
}

type SlotPlan struct {
	Operative  schema.Uid
	Slot       schema.Tag
	Descriptor schema.Descriptor
	Bounds     schema.SlotBounds
	// Inherited counts edges baked in by the operative chain.
	Inherited  int
	Candidates []Candidate
}

// Candidate is an operative whose instances satisfy a slot descriptor.
type Candidate struct {
	Operative schema.Tag
	// Depth is the length of the candidate's ancestor chain.
	Depth int
}

// Diagnostics captures human-readable information about resolution.
//
// This is useful for CLI output and for logging.
type Diagnostics struct {
	UnresolvedRequired []UnresolvedSlot
	UnresolvedOptional []UnresolvedSlot
}

func (d Diagnostics) Empty() bool {
	return len(d.UnresolvedRequired) == 0 && len(d.UnresolvedOptional) == 0
}

type UnresolvedSlot struct {
	Operative schema.Tag
	Slot      schema.Tag
	Reason    string
}
