package schema

import (
	"github.com/bayleafwalker/schemagraph/prim"
)

// FieldConstraint declares a typed field on a template. A template may lock
// the field itself through Locked.
type FieldConstraint struct {
	Tag    Tag
	Type   prim.Type
	Locked *prim.Value
}

// OperativeSlot declares a position for related instances.
type OperativeSlot struct {
	Tag        Tag
	Descriptor Descriptor
	Bounds     SlotBounds
}

// Template is a root shape. Fields and Slots keep declaration order.
type Template struct {
	Tag    Tag
	Fields []FieldConstraint
	Slots  []OperativeSlot
}

func (t *Template) Field(id Uid) (FieldConstraint, bool) {
	for _, f := range t.Fields {
		if f.Tag.ID == id {
			return f, true
		}
	}
	return FieldConstraint{}, false
}

func (t *Template) Slot(id Uid) (OperativeSlot, bool) {
	for _, s := range t.Slots {
		if s.Tag.ID == id {
			return s, true
		}
	}
	return OperativeSlot{}, false
}

func (t Template) clone() Template {
	out := Template{Tag: t.Tag}
	out.Fields = make([]FieldConstraint, len(t.Fields))
	for i, f := range t.Fields {
		out.Fields[i] = f
		if f.Locked != nil {
			v := *f.Locked
			out.Fields[i].Locked = &v
		}
	}
	out.Slots = make([]OperativeSlot, len(t.Slots))
	for i, s := range t.Slots {
		out.Slots[i] = s
		out.Slots[i].Descriptor = cloneDescriptor(s.Descriptor)
	}
	return out
}

// MethodArg is a named, typed method argument.
type MethodArg struct {
	Name string
	Type prim.Type
}

type Method struct {
	Tag        Tag
	ReturnType prim.Type
	Args       []MethodArg
}

// Trait is a named method set.
type Trait struct {
	Tag     Tag
	Methods []Method
}

func (t *Trait) Method(id Uid) (Method, bool) {
	for _, m := range t.Methods {
		if m.Tag.ID == id {
			return m, true
		}
	}
	return Method{}, false
}

func (t Trait) clone() Trait {
	out := Trait{Tag: t.Tag, Methods: make([]Method, len(t.Methods))}
	for i, m := range t.Methods {
		out.Methods[i] = m
		out.Methods[i].Args = append([]MethodArg(nil), m.Args...)
	}
	return out
}

// MethodImpl binds a trait method to an implementation. Body is opaque to the
// schema; only ReturnType is checked against the trait signature.
type MethodImpl struct {
	ReturnType prim.Type
	Body       string
}

// TraitImpl implements every method of one trait, keyed by method id.
type TraitImpl struct {
	Methods map[Uid]MethodImpl
}

func (t TraitImpl) clone() TraitImpl {
	out := TraitImpl{Methods: make(map[Uid]MethodImpl, len(t.Methods))}
	for k, v := range t.Methods {
		out.Methods[k] = v
	}
	return out
}

// Operative refines RootTemplate, optionally through a Parent operative that
// roots the same template. All maps are additive over the parent chain.
type Operative struct {
	Tag          Tag
	RootTemplate Uid
	Parent       Uid

	LockedFields                   map[Uid]prim.Value
	SlotTypeSpecializations        map[Uid]Descriptor
	SlotCardinalitySpecializations map[Uid]SlotBounds
	TraitImpls                     map[Uid]TraitImpl

	// BakedEdges relates library instances to slots. Every instance of this
	// operative or a descendant inherits them.
	BakedEdges map[Uid][]Uid
}

func (o *Operative) HasParent() bool { return !o.Parent.IsZero() }

func (o Operative) clone() Operative {
	out := o
	out.LockedFields = make(map[Uid]prim.Value, len(o.LockedFields))
	for k, v := range o.LockedFields {
		out.LockedFields[k] = v
	}
	out.SlotTypeSpecializations = make(map[Uid]Descriptor, len(o.SlotTypeSpecializations))
	for k, v := range o.SlotTypeSpecializations {
		out.SlotTypeSpecializations[k] = cloneDescriptor(v)
	}
	out.SlotCardinalitySpecializations = make(map[Uid]SlotBounds, len(o.SlotCardinalitySpecializations))
	for k, v := range o.SlotCardinalitySpecializations {
		out.SlotCardinalitySpecializations[k] = v
	}
	out.TraitImpls = make(map[Uid]TraitImpl, len(o.TraitImpls))
	for k, v := range o.TraitImpls {
		out.TraitImpls[k] = v.clone()
	}
	out.BakedEdges = cloneEdges(o.BakedEdges)
	return out
}

// Instance is a realization of an operative. LockedFields holds only the
// fields the operative chain left unlocked.
type Instance struct {
	ID           Uid
	Operative    Uid
	LockedFields map[Uid]prim.Value
	SlotEdges    map[Uid][]Uid
}

func NewInstance(operative Uid) *Instance {
	return &Instance{
		ID:           NewUid(),
		Operative:    operative,
		LockedFields: map[Uid]prim.Value{},
		SlotEdges:    map[Uid][]Uid{},
	}
}

// Clone returns a deep copy of i.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	out := &Instance{
		ID:           i.ID,
		Operative:    i.Operative,
		LockedFields: make(map[Uid]prim.Value, len(i.LockedFields)),
		SlotEdges:    cloneEdges(i.SlotEdges),
	}
	for k, v := range i.LockedFields {
		out.LockedFields[k] = v
	}
	return out
}

// Edges returns the ordered children in slot. The slice must not be modified.
func (i *Instance) Edges(slot Uid) []Uid {
	return i.SlotEdges[slot]
}

// Equal reports structural equality over ids, fields and ordered edges.
// Empty edge lists and absent slots compare equal.
func (i *Instance) Equal(o *Instance) bool {
	if i == nil || o == nil {
		return i == nil && o == nil
	}
	if i.ID != o.ID || i.Operative != o.Operative || len(i.LockedFields) != len(o.LockedFields) {
		return false
	}
	for k, v := range i.LockedFields {
		ov, ok := o.LockedFields[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return edgesEqual(i.SlotEdges, o.SlotEdges) && edgesEqual(o.SlotEdges, i.SlotEdges)
}

func edgesEqual(a, b map[Uid][]Uid) bool {
	for slot, children := range a {
		other := b[slot]
		if len(children) != len(other) {
			return false
		}
		for n := range children {
			if children[n] != other[n] {
				return false
			}
		}
	}
	return true
}

func cloneEdges(in map[Uid][]Uid) map[Uid][]Uid {
	out := make(map[Uid][]Uid, len(in))
	for k, v := range in {
		out[k] = append([]Uid(nil), v...)
	}
	return out
}
