package digest

import (
	"fmt"
	"strings"

	"github.com/bayleafwalker/schemagraph/schema"
)

// Fulfillment explains whether an instance satisfies its operative.
type Fulfillment struct {
	Instance      schema.Uid
	Unfulfilled   []schema.SlotDigest
	MissingFields []schema.FieldConstraint
}

// OK reports whether every slot is within bounds and every field is backed
// by a value.
func (f Fulfillment) OK() bool {
	return len(f.Unfulfilled) == 0 && len(f.MissingFields) == 0
}

func (f Fulfillment) String() string {
	if f.OK() {
		return fmt.Sprintf("instance %s is fulfilled", f.Instance)
	}
	var parts []string
	for _, s := range f.Unfulfilled {
		parts = append(parts, fmt.Sprintf("slot %s holds %d, needs %s", s.Slot.Tag, len(s.Related), s.Bounds))
	}
	for _, fc := range f.MissingFields {
		parts = append(parts, fmt.Sprintf("field %s has no value", fc.Tag))
	}
	return fmt.Sprintf("instance %s is unfulfilled: %s", f.Instance, strings.Join(parts, "; "))
}

// Check computes the fulfillment report of a digest.
func Check(d InstanceDigest) Fulfillment {
	out := Fulfillment{Instance: d.Instance}
	for _, s := range d.Slots {
		if !s.Fulfilled() {
			out.Unfulfilled = append(out.Unfulfilled, s)
		}
	}
	out.MissingFields = append(out.MissingFields, d.MissingFields...)
	return out
}

// Fulfill computes the fulfillment report of instance id.
func Fulfill(s *schema.Schema, src InstanceSource, id schema.Uid) (Fulfillment, error) {
	d, err := OfInstance(s, src, id)
	if err != nil {
		return Fulfillment{}, err
	}
	return Check(d), nil
}

// IsFulfilled reports whether instance id satisfies every slot bound of its
// digest and has every field backed by a value.
func IsFulfilled(s *schema.Schema, src InstanceSource, id schema.Uid) (bool, error) {
	f, err := Fulfill(s, src, id)
	if err != nil {
		return false, err
	}
	return f.OK(), nil
}
