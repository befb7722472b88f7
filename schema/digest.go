package schema

import (
	"fmt"

	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/bayleafwalker/schemagraph/prim"
)

// LockedField is a field value together with the element that locked it:
// the root template, or the operative in the chain that contributed the lock.
type LockedField struct {
	Field          FieldConstraint
	Value          prim.Value
	HostingElement Uid
}

// LockedFieldsDigest is the effective lock state of an operative's fields, in
// template declaration order.
type LockedFieldsDigest struct {
	Locked   []LockedField
	Unlocked []FieldConstraint
}

func (d LockedFieldsDigest) Lookup(field Uid) (LockedField, bool) {
	for _, l := range d.Locked {
		if l.Field.Tag.ID == field {
			return l, true
		}
	}
	return LockedField{}, false
}

func (d LockedFieldsDigest) IsUnlocked(field Uid) bool {
	for _, f := range d.Unlocked {
		if f.Tag.ID == field {
			return true
		}
	}
	return false
}

// RelatedInstance is one edge of a slot digest. HostingElement is the
// operative that baked the edge in, or the instance that owns it.
type RelatedInstance struct {
	ID             Uid
	HostingElement Uid
}

// SlotDigest is the effective constraint of one template slot.
// DescriptorHost and BoundsHost name the element (template or operative)
// that contributed the effective descriptor and bounds.
type SlotDigest struct {
	Slot           OperativeSlot
	Descriptor     Descriptor
	Bounds         SlotBounds
	DescriptorHost Uid
	BoundsHost     Uid
	Related        []RelatedInstance
}

// Fulfilled reports whether the related instances satisfy the effective bounds.
func (d SlotDigest) Fulfilled() bool {
	return d.Bounds.Satisfied(len(d.Related))
}

func (d SlotDigest) clone() SlotDigest {
	out := d
	out.Descriptor = cloneDescriptor(d.Descriptor)
	out.Related = append([]RelatedInstance(nil), d.Related...)
	return out
}

// OperativeDigest covers every slot declared on the root template.
type OperativeDigest struct {
	Operative Uid
	Template  Uid
	Chain     []Uid
	Slots     []SlotDigest
}

func (d OperativeDigest) Slot(id Uid) (SlotDigest, bool) {
	for _, s := range d.Slots {
		if s.Slot.Tag.ID == id {
			return s, true
		}
	}
	return SlotDigest{}, false
}

// Clone returns a copy whose slices may be modified freely.
func (d OperativeDigest) Clone() OperativeDigest {
	out := OperativeDigest{
		Operative: d.Operative,
		Template:  d.Template,
		Chain:     append([]Uid(nil), d.Chain...),
		Slots:     make([]SlotDigest, len(d.Slots)),
	}
	for i, s := range d.Slots {
		out.Slots[i] = s.clone()
	}
	return out
}

type TraitImplEntry struct {
	Trait          Uid
	Impl           TraitImpl
	HostingElement Uid
}

// TraitImplDigest lists the trait implementations reachable through an
// operative's chain, ordered by trait id. The implementation closest to the
// operative wins.
type TraitImplDigest struct {
	Entries []TraitImplEntry
}

func (d TraitImplDigest) Lookup(trait Uid) (TraitImplEntry, bool) {
	for _, e := range d.Entries {
		if e.Trait == trait {
			return e, true
		}
	}
	return TraitImplEntry{}, false
}

func (d TraitImplDigest) Traits() sets.Set[Uid] {
	out := sets.New[Uid]()
	for _, e := range d.Entries {
		out.Insert(e.Trait)
	}
	return out
}

func (s *Schema) foldOf(op Uid) (*fold, error) {
	f, ok := s.folds[op]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperative, op)
	}
	return f, nil
}

// LockedFieldsDigest folds the locks of op's chain over its root template.
func (s *Schema) LockedFieldsDigest(op Uid) (LockedFieldsDigest, error) {
	f, err := s.foldOf(op)
	if err != nil {
		return LockedFieldsDigest{}, err
	}
	var out LockedFieldsDigest
	for _, fc := range f.template.Fields {
		if l, ok := f.locked[fc.Tag.ID]; ok {
			out.Locked = append(out.Locked, l)
			continue
		}
		out.Unlocked = append(out.Unlocked, fc)
	}
	return out, nil
}

// OperativeDigest folds the slot specializations and baked edges of op's
// chain over its root template.
func (s *Schema) OperativeDigest(op Uid) (OperativeDigest, error) {
	f, err := s.foldOf(op)
	if err != nil {
		return OperativeDigest{}, err
	}
	return OperativeDigest{
		Operative: op,
		Template:  f.template.Tag.ID,
		Chain:     f.chain,
		Slots:     f.slots,
	}.Clone(), nil
}

func (s *Schema) TraitImplDigest(op Uid) (TraitImplDigest, error) {
	f, err := s.foldOf(op)
	if err != nil {
		return TraitImplDigest{}, err
	}
	var out TraitImplDigest
	for _, trait := range sortedKeys(f.traits) {
		e := f.traits[trait]
		e.Impl = e.Impl.clone()
		out.Entries = append(out.Entries, e)
	}
	return out, nil
}
