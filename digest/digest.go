// Package digest computes the effective constraint view of operatives and
// instances and decides whether an instance fulfills its operative.
//
// Digests are pure functions of a schema snapshot and the instance being
// viewed. Cache memoizes them by schema revision and instance version.
package digest

import (
	"errors"
	"fmt"

	"github.com/bayleafwalker/schemagraph/prim"
	"github.com/bayleafwalker/schemagraph/schema"
)

// ErrUnknownInstance is returned when the focal instance is neither live in
// the source nor a library instance of the schema.
var ErrUnknownInstance = errors.New("unknown instance")

// InstanceSource resolves live instances by id. The returned instance must
// not be modified.
type InstanceSource interface {
	Instance(id schema.Uid) (*schema.Instance, bool)
}

// FieldValue is the effective value of one template field on an instance.
type FieldValue struct {
	Field schema.FieldConstraint
	Value prim.Value
	// HostingElement is the template or operative that locked the field,
	// or the instance itself when it supplied the value.
	HostingElement schema.Uid
	// Implicit marks an optional field the instance left unset; Value is None.
	Implicit bool
}

// InstanceDigest is the operative digest of an instance's operative with the
// instance's own edges and field values folded in.
type InstanceDigest struct {
	Instance schema.Uid
	schema.OperativeDigest
	Fields        []FieldValue
	MissingFields []schema.FieldConstraint
}

func (d InstanceDigest) Field(id schema.Uid) (FieldValue, bool) {
	for _, f := range d.Fields {
		if f.Field.Tag.ID == id {
			return f, true
		}
	}
	return FieldValue{}, false
}

// Clone returns a copy whose slices may be modified freely.
func (d InstanceDigest) Clone() InstanceDigest {
	return InstanceDigest{
		Instance:        d.Instance,
		OperativeDigest: d.OperativeDigest.Clone(),
		Fields:          append([]FieldValue(nil), d.Fields...),
		MissingFields:   append([]schema.FieldConstraint(nil), d.MissingFields...),
	}
}

// OfOperative returns the operative digest of op.
func OfOperative(s *schema.Schema, op schema.Uid) (schema.OperativeDigest, error) {
	return s.OperativeDigest(op)
}

// OfInstance returns the digest of instance id, looked up in src first and
// among the schema's library instances second.
func OfInstance(s *schema.Schema, src InstanceSource, id schema.Uid) (InstanceDigest, error) {
	inst, err := lookup(s, src, id)
	if err != nil {
		return InstanceDigest{}, err
	}
	return ofInstance(s, inst)
}

func lookup(s *schema.Schema, src InstanceSource, id schema.Uid) (*schema.Instance, error) {
	if src != nil {
		if inst, ok := src.Instance(id); ok {
			return inst, nil
		}
	}
	if inst, ok := s.LibraryInstance(id); ok {
		return inst, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownInstance, id)
}

func ofInstance(s *schema.Schema, inst *schema.Instance) (InstanceDigest, error) {
	od, err := s.OperativeDigest(inst.Operative)
	if err != nil {
		return InstanceDigest{}, fmt.Errorf("instance %s: %w", inst.ID, err)
	}
	locks, err := s.LockedFieldsDigest(inst.Operative)
	if err != nil {
		return InstanceDigest{}, fmt.Errorf("instance %s: %w", inst.ID, err)
	}

	out := InstanceDigest{Instance: inst.ID, OperativeDigest: od}
	for i := range out.Slots {
		slot := &out.Slots[i]
		for _, child := range inst.SlotEdges[slot.Slot.Tag.ID] {
			slot.Related = append(slot.Related, schema.RelatedInstance{ID: child, HostingElement: inst.ID})
		}
	}

	// Locks follow template declaration order; unlocked fields are appended
	// as the instance supplies them.
	for _, l := range locks.Locked {
		out.Fields = append(out.Fields, FieldValue{Field: l.Field, Value: l.Value, HostingElement: l.HostingElement})
	}
	for _, fc := range locks.Unlocked {
		if v, ok := inst.LockedFields[fc.Tag.ID]; ok {
			out.Fields = append(out.Fields, FieldValue{Field: fc, Value: v, HostingElement: inst.ID})
			continue
		}
		if fc.Type.Kind() == prim.KindOption {
			out.Fields = append(out.Fields, FieldValue{Field: fc, Value: prim.None(), HostingElement: inst.ID, Implicit: true})
			continue
		}
		out.MissingFields = append(out.MissingFields, fc)
	}
	return out, nil
}
