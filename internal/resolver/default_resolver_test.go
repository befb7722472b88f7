package resolver

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bayleafwalker/schemagraph/prim"
	"github.com/bayleafwalker/schemagraph/schema"
)

type fixture struct {
	s        *schema.Schema
	weighted schema.Trait
	labelled schema.Trait
	host     schema.Operative
	gearB    schema.Operative
	gearA    schema.Operative
	gearDeep schema.Operative
	plain    schema.Operative
	gear     schema.OperativeSlot
	spare    schema.OperativeSlot
}

func traitImpl(trait schema.Trait) schema.TraitImpl {
	impl := schema.TraitImpl{Methods: map[schema.Uid]schema.MethodImpl{}}
	for _, m := range trait.Methods {
		impl.Methods[m.Tag.ID] = schema.MethodImpl{ReturnType: m.ReturnType}
	}
	return impl
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{}
	f.weighted = schema.Trait{Tag: schema.NewTag("Weighted"), Methods: []schema.Method{{Tag: schema.NewTag("weight"), ReturnType: prim.Int()}}}
	f.labelled = schema.Trait{Tag: schema.NewTag("Labelled"), Methods: []schema.Method{{Tag: schema.NewTag("label"), ReturnType: prim.String()}}}

	part := schema.Template{Tag: schema.NewTag("part")}
	f.gearB = schema.Operative{
		Tag:          schema.NewTag("gear-b"),
		RootTemplate: part.Tag.ID,
		TraitImpls:   map[schema.Uid]schema.TraitImpl{f.weighted.Tag.ID: traitImpl(f.weighted)},
	}
	f.gearA = schema.Operative{
		Tag:          schema.NewTag("gear-a"),
		RootTemplate: part.Tag.ID,
		TraitImpls:   map[schema.Uid]schema.TraitImpl{f.weighted.Tag.ID: traitImpl(f.weighted)},
	}
	f.gearDeep = schema.Operative{Tag: schema.NewTag("aaa-deep"), RootTemplate: part.Tag.ID, Parent: f.gearB.Tag.ID}
	f.plain = schema.Operative{Tag: schema.NewTag("plain"), RootTemplate: part.Tag.ID}

	f.gear = schema.OperativeSlot{
		Tag:        schema.NewTag("gear"),
		Descriptor: schema.NewTraitOperative(schema.NewTag("weighted"), f.weighted.Tag.ID),
		Bounds:     schema.Single(),
	}
	f.spare = schema.OperativeSlot{
		Tag:        schema.NewTag("spare"),
		Descriptor: schema.NewTraitOperative(schema.NewTag("labelled"), f.labelled.Tag.ID),
		Bounds:     schema.UpperBound(2),
	}
	machine := schema.Template{Tag: schema.NewTag("machine"), Slots: []schema.OperativeSlot{f.gear, f.spare}}
	f.host = schema.Operative{Tag: schema.NewTag("host"), RootTemplate: machine.Tag.ID}

	s, err := schema.NewBuilder().
		Trait(f.weighted).
		Trait(f.labelled).
		Template(part).
		Template(machine).
		Operative(f.gearB).
		Operative(f.gearA).
		Operative(f.gearDeep).
		Operative(f.plain).
		Operative(f.host).
		Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}
	f.s = s
	return f
}

func TestDefaultResolver_OrdersCandidatesByDepthThenName(t *testing.T) {
	f := newFixture(t)
	r := NewDefault()

	plan, err := r.Resolve(context.Background(), Input{Schema: f.s, Operatives: []schema.Uid{f.host.Tag.ID}})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(plan.Slots) != 2 {
		t.Fatalf("expected 2 slot plans, got %d", len(plan.Slots))
	}

	gear := plan.Slots[0]
	if gear.Slot.ID != f.gear.Tag.ID {
		t.Fatalf("expected slots in declaration order, got %s first", gear.Slot)
	}
	var names []string
	for _, c := range gear.Candidates {
		names = append(names, c.Operative.Name)
	}
	if got := strings.Join(names, ","); got != "gear-a,gear-b,aaa-deep" {
		t.Fatalf("unexpected candidate order %q", got)
	}
}

func TestDefaultResolver_UnresolvedOptionalRecorded(t *testing.T) {
	f := newFixture(t)

	plan, err := NewDefault().Resolve(context.Background(), Input{Schema: f.s})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(plan.Diagnostics.UnresolvedRequired) != 0 {
		t.Fatalf("expected no unresolved required, got: %+v", plan.Diagnostics.UnresolvedRequired)
	}
	if len(plan.Diagnostics.UnresolvedOptional) != 1 {
		t.Fatalf("expected 1 unresolved optional, got %d", len(plan.Diagnostics.UnresolvedOptional))
	}
	if plan.Diagnostics.UnresolvedOptional[0].Slot.ID != f.spare.Tag.ID {
		t.Fatalf("expected unresolved spare, got %s", plan.Diagnostics.UnresolvedOptional[0].Slot)
	}
}

func TestDefaultResolver_UnresolvedRequiredRecorded(t *testing.T) {
	f := newFixture(t)
	strict := schema.Operative{
		Tag:                            schema.NewTag("strict"),
		RootTemplate:                   f.host.RootTemplate,
		Parent:                         f.host.Tag.ID,
		SlotCardinalitySpecializations: map[schema.Uid]schema.SlotBounds{f.spare.Tag.ID: schema.Range(1, 2)},
	}
	s, err := f.s.Edit().Operative(strict).Build()
	if err != nil {
		t.Fatalf("Build error: %v", err)
	}

	plan, err := NewDefault().Resolve(context.Background(), Input{Schema: s, Operatives: []schema.Uid{strict.Tag.ID}})
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if len(plan.Diagnostics.UnresolvedRequired) != 1 {
		t.Fatalf("expected 1 unresolved required, got %d", len(plan.Diagnostics.UnresolvedRequired))
	}
	if !strings.Contains(plan.Diagnostics.UnresolvedRequired[0].Reason, "labelled") {
		t.Fatalf("expected reason to name the descriptor, got %q", plan.Diagnostics.UnresolvedRequired[0].Reason)
	}
}

func TestDefaultResolver_Errors(t *testing.T) {
	r := NewDefault()
	if _, err := r.Resolve(context.Background(), Input{}); !errors.Is(err, ErrNoSchema) {
		t.Fatalf("expected ErrNoSchema, got %v", err)
	}

	f := newFixture(t)
	if _, err := r.Resolve(context.Background(), Input{Schema: f.s, Operatives: []schema.Uid{schema.NewUid()}}); !errors.Is(err, schema.ErrUnknownOperative) {
		t.Fatalf("expected ErrUnknownOperative, got %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := r.Resolve(ctx, Input{Schema: f.s}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestExplain(t *testing.T) {
	f := newFixture(t)

	if got := Explain(f.s, f.gear.Descriptor, f.gearA.Tag.ID); got != "" {
		t.Fatalf("expected no explanation for a satisfying operative, got %q", got)
	}
	if got := Explain(f.s, f.gear.Descriptor, f.plain.Tag.ID); !strings.Contains(got, "Weighted") {
		t.Fatalf("expected the missing trait to be named, got %q", got)
	}
	lib := schema.LibraryOperative{Operative: f.gearB.Tag.ID}
	if got := Explain(f.s, lib, f.gearA.Tag.ID); !strings.Contains(got, "does not descend from gear-b") {
		t.Fatalf("unexpected explanation %q", got)
	}
	if got := Explain(f.s, lib, f.gearDeep.Tag.ID); got != "" {
		t.Fatalf("expected descendant to satisfy, got %q", got)
	}
}
