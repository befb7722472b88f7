package graph

import (
	"testing"

	"github.com/bayleafwalker/schemagraph/schema"
)

func host(slot schema.Uid, children ...schema.Uid) *schema.Instance {
	h := schema.NewInstance(schema.NewUid())
	h.SlotEdges[slot] = children
	return h
}

func TestIndex_ApplyTracksReferrers(t *testing.T) {
	slot := schema.NewUid()
	child := schema.NewUid()
	a := host(slot, child)
	b := host(slot, child)

	x := Build([]*schema.Instance{a, b})
	if got := len(x.Referrers(child)); got != 2 {
		t.Fatalf("expected 2 referrers, got %d", got)
	}

	detached := a.Clone()
	detached.SlotEdges[slot] = nil
	x.Apply(a, detached)
	refs := x.Referrers(child)
	if len(refs) != 1 || refs[0].Host != b.ID || refs[0].Slot != slot {
		t.Fatalf("unexpected referrers after detach: %+v", refs)
	}

	x.Apply(b, nil)
	if got := x.Referrers(child); len(got) != 0 {
		t.Fatalf("expected no referrers after removing the last host, got %+v", got)
	}
	if got := x.Dangling(func(schema.Uid) bool { return false }); len(got) != 0 {
		t.Fatalf("expected empty index, got %+v", got)
	}
}

func TestIndex_Dangling(t *testing.T) {
	slot := schema.NewUid()
	live := schema.NewUid()
	gone := schema.NewUid()
	a := host(slot, live, gone)

	x := Build([]*schema.Instance{a})
	dangling := x.Dangling(func(id schema.Uid) bool { return id == live })
	if len(dangling) != 1 {
		t.Fatalf("expected 1 dangling edge, got %d", len(dangling))
	}
	want := Edge{Host: a.ID, Slot: slot, Child: gone}
	if dangling[0] != want {
		t.Fatalf("expected %+v, got %+v", want, dangling[0])
	}
}
