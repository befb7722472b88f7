package schema

import (
	"fmt"
	"math"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// fold is the effective constraint state of one operative: its root template
// with every contribution of the chain applied, closest last.
type fold struct {
	template *Template
	chain    []Uid
	locked   map[Uid]LockedField
	slots    []SlotDigest
	traits   map[Uid]TraitImplEntry
}

func templateFold(t *Template) *fold {
	f := &fold{
		template: t,
		locked:   map[Uid]LockedField{},
		slots:    make([]SlotDigest, len(t.Slots)),
		traits:   map[Uid]TraitImplEntry{},
	}
	for _, fc := range t.Fields {
		if fc.Locked != nil {
			f.locked[fc.Tag.ID] = LockedField{Field: fc, Value: *fc.Locked, HostingElement: t.Tag.ID}
		}
	}
	for i, slot := range t.Slots {
		f.slots[i] = SlotDigest{
			Slot:           slot,
			Descriptor:     slot.Descriptor,
			Bounds:         slot.Bounds,
			DescriptorHost: t.Tag.ID,
			BoundsHost:     t.Tag.ID,
		}
	}
	return f
}

func (f *fold) derive(op Uid) *fold {
	out := &fold{
		template: f.template,
		chain:    append(append([]Uid(nil), f.chain...), op),
		locked:   make(map[Uid]LockedField, len(f.locked)),
		slots:    make([]SlotDigest, len(f.slots)),
		traits:   f.traits,
	}
	for k, v := range f.locked {
		out.locked[k] = v
	}
	for i, s := range f.slots {
		out.slots[i] = s.clone()
	}
	return out
}

func (f *fold) slotIndex(id Uid) int {
	for i, s := range f.slots {
		if s.Slot.Tag.ID == id {
			return i
		}
	}
	return -1
}

// maxCount is the largest count b admits, or math.MaxInt when unbounded.
func maxCount(b SlotBounds) int {
	switch b.Kind {
	case BoundsSingle:
		return 1
	case BoundsUpperBound, BoundsRange, BoundsRangeOrZero:
		return b.Hi
	default:
		return math.MaxInt
	}
}

// descriptorNarrows reports whether child is a legal type specialization of
// parent, with a reason when it is not.
func (s *Schema) descriptorNarrows(parent, child Descriptor) (bool, string) {
	switch p := parent.(type) {
	case LibraryOperative:
		c, ok := child.(LibraryOperative)
		if !ok {
			return false, fmt.Sprintf("%s cannot be widened to %s", p, child)
		}
		if !s.IsDescendant(c.Operative, p.Operative) {
			return false, fmt.Sprintf("operative %s does not descend from %s", c.Operative, p.Operative)
		}
		return true, ""
	case TraitOperative:
		switch c := child.(type) {
		case TraitOperative:
			if !c.Traits.IsSuperset(p.Traits) {
				return false, fmt.Sprintf("%s drops traits required by %s", c, p)
			}
			return true, ""
		case LibraryOperative:
			if !s.Implements(c.Operative, p.Traits) {
				return false, fmt.Sprintf("operative %s does not implement every trait of %s", c.Operative, p)
			}
			return true, ""
		}
	}
	return false, fmt.Sprintf("unsupported specialization %v of %v", child, parent)
}

// applyOperative folds the contributions of op over its parent's fold f.
func (s *Schema) applyOperative(parent *fold, op *Operative) (*fold, []error) {
	var errs []error
	id := op.Tag.ID
	path := field.NewPath("operatives").Key(id.String())
	f := parent.derive(id)
	f.traits = s.traitImpls[id]

	for _, fid := range sortedKeys(op.LockedFields) {
		val := op.LockedFields[fid]
		p := path.Child("lockedFields").Key(fid.String())
		fc, ok := f.template.Field(fid)
		if !ok {
			errs = append(errs, newError(ErrMissingReference, p, "field is not declared on template %s", f.template.Tag))
			continue
		}
		if prev, locked := f.locked[fid]; locked {
			errs = append(errs, newError(ErrFieldRelock, p, "field %q is already locked to %s by %s", fc.Tag.Name, prev.Value, prev.HostingElement))
			continue
		}
		if !val.Matches(fc.Type) {
			errs = append(errs, newError(ErrFieldTypeMismatch, p, "value %s does not match %s", val, fc.Type))
			continue
		}
		f.locked[fid] = LockedField{Field: fc, Value: val, HostingElement: id}
	}

	for _, sid := range sortedKeys(op.SlotTypeSpecializations) {
		desc := op.SlotTypeSpecializations[sid]
		p := path.Child("slotTypeSpecializations").Key(sid.String())
		idx := f.slotIndex(sid)
		if idx < 0 {
			errs = append(errs, newError(ErrMissingReference, p, "slot is not declared on template %s", f.template.Tag))
			continue
		}
		if refErrs := s.checkDescriptorRefs(desc, p); len(refErrs) > 0 {
			errs = append(errs, refErrs...)
			continue
		}
		if ok, reason := s.descriptorNarrows(f.slots[idx].Descriptor, desc); !ok {
			errs = append(errs, newError(ErrNonMonotonicSpecialization, p, "%s", reason))
			continue
		}
		for _, rel := range f.slots[idx].Related {
			inst := s.instances[rel.ID]
			if !s.Satisfies(desc, inst.Operative) {
				errs = append(errs, newError(ErrNonMonotonicSpecialization, p, "%s excludes inherited edge %s baked in by %s", desc, rel.ID, rel.HostingElement))
			}
		}
		f.slots[idx].Descriptor = cloneDescriptor(desc)
		f.slots[idx].DescriptorHost = id
	}

	for _, sid := range sortedKeys(op.SlotCardinalitySpecializations) {
		bounds := op.SlotCardinalitySpecializations[sid]
		p := path.Child("slotCardinalitySpecializations").Key(sid.String())
		idx := f.slotIndex(sid)
		if idx < 0 {
			errs = append(errs, newError(ErrMissingReference, p, "slot is not declared on template %s", f.template.Tag))
			continue
		}
		if err := bounds.Validate(); err != nil {
			errs = append(errs, newError(ErrSlotBoundsInvalid, p, "%v", err))
			continue
		}
		if current := f.slots[idx].Bounds; !current.Narrows(bounds) {
			errs = append(errs, newError(ErrNonMonotonicSpecialization, p, "%s does not narrow %s set by %s", bounds, current, f.slots[idx].BoundsHost))
			continue
		}
		if n := len(f.slots[idx].Related); n > maxCount(bounds) {
			errs = append(errs, newError(ErrNonMonotonicSpecialization, p, "%s excludes the %d inherited edges", bounds, n))
			continue
		}
		f.slots[idx].Bounds = bounds
		f.slots[idx].BoundsHost = id
	}

	for _, sid := range sortedKeys(op.BakedEdges) {
		p := path.Child("bakedEdges").Key(sid.String())
		idx := f.slotIndex(sid)
		if idx < 0 {
			errs = append(errs, newError(ErrMissingReference, p, "slot is not declared on template %s", f.template.Tag))
			continue
		}
		slot := &f.slots[idx]
		for i, child := range op.BakedEdges[sid] {
			if err := s.checkLibraryEdge(slot, child, p.Index(i)); err != nil {
				errs = append(errs, err)
				continue
			}
			slot.Related = append(slot.Related, RelatedInstance{ID: child, HostingElement: id})
		}
		if len(slot.Related) > maxCount(slot.Bounds) {
			errs = append(errs, newError(ErrSlotBoundsInvalid, p, "%d baked edges exceed %s", len(slot.Related), slot.Bounds))
		}
	}

	return f, errs
}

// checkLibraryEdge validates an edge from a schema element to a library
// instance against the slot's current digest.
func (s *Schema) checkLibraryEdge(slot *SlotDigest, child Uid, p *field.Path) error {
	inst, ok := s.instances[child]
	if !ok {
		return newError(ErrMissingReference, p, "library instance %s does not exist", child)
	}
	for _, rel := range slot.Related {
		if rel.ID == child {
			return newError(ErrDuplicateID, p, "instance %s is already related through %s", child, rel.HostingElement)
		}
	}
	if !s.Satisfies(slot.Descriptor, inst.Operative) {
		return newError(ErrDescriptorMismatch, p, "operative %s of instance %s does not satisfy %s", inst.Operative, child, slot.Descriptor)
	}
	return nil
}

func (s *Schema) checkDescriptorRefs(d Descriptor, p *field.Path) []error {
	switch desc := d.(type) {
	case LibraryOperative:
		if _, ok := s.operatives[desc.Operative]; !ok {
			return []error{newError(ErrMissingReference, p, "operative %s does not exist", desc.Operative)}
		}
	case TraitOperative:
		var errs []error
		for _, trait := range desc.TraitList() {
			if _, ok := s.traits[trait]; !ok {
				errs = append(errs, newError(ErrMissingReference, p, "trait %s does not exist", trait))
			}
		}
		return errs
	default:
		return []error{newError(ErrMissingReference, p, "slot has no descriptor")}
	}
	return nil
}
