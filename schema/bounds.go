package schema

import "fmt"

type BoundsKind uint8

const (
	BoundsSingle BoundsKind = iota + 1
	BoundsLowerBound
	BoundsUpperBound
	BoundsRange
	BoundsLowerBoundOrZero
	BoundsRangeOrZero
)

func (k BoundsKind) String() string {
	switch k {
	case BoundsSingle:
		return "Single"
	case BoundsLowerBound:
		return "LowerBound"
	case BoundsUpperBound:
		return "UpperBound"
	case BoundsRange:
		return "Range"
	case BoundsLowerBoundOrZero:
		return "LowerBoundOrZero"
	case BoundsRangeOrZero:
		return "RangeOrZero"
	default:
		return "Invalid"
	}
}

// SlotBounds is the cardinality constraint on a slot. Lo and Hi are only
// meaningful for the kinds that carry them.
type SlotBounds struct {
	Kind BoundsKind
	Lo   int
	Hi   int
}

func Single() SlotBounds { return SlotBounds{Kind: BoundsSingle, Lo: 1, Hi: 1} }
func LowerBound(n int) SlotBounds { return SlotBounds{Kind: BoundsLowerBound, Lo: n} }
func UpperBound(n int) SlotBounds { return SlotBounds{Kind: BoundsUpperBound, Hi: n} }
func Range(lo, hi int) SlotBounds { return SlotBounds{Kind: BoundsRange, Lo: lo, Hi: hi} }
func LowerBoundOrZero(n int) SlotBounds { return SlotBounds{Kind: BoundsLowerBoundOrZero, Lo: n} }
func RangeOrZero(lo, hi int) SlotBounds { return SlotBounds{Kind: BoundsRangeOrZero, Lo: lo, Hi: hi} }

func (b SlotBounds) String() string {
	switch b.Kind {
	case BoundsSingle:
		return "Single"
	case BoundsLowerBound, BoundsLowerBoundOrZero:
		return fmt.Sprintf("%s(%d)", b.Kind, b.Lo)
	case BoundsUpperBound:
		return fmt.Sprintf("%s(%d)", b.Kind, b.Hi)
	case BoundsRange, BoundsRangeOrZero:
		return fmt.Sprintf("%s(%d,%d)", b.Kind, b.Lo, b.Hi)
	default:
		return "Invalid"
	}
}

// Validate reports a malformed bounds value: an unknown kind, a negative
// bound, or a range whose low end exceeds its high end.
func (b SlotBounds) Validate() error {
	switch b.Kind {
	case BoundsSingle:
		return nil
	case BoundsLowerBound, BoundsLowerBoundOrZero:
		if b.Lo < 0 {
			return fmt.Errorf("%s: negative lower bound", b)
		}
	case BoundsUpperBound:
		if b.Hi < 0 {
			return fmt.Errorf("%s: negative upper bound", b)
		}
	case BoundsRange, BoundsRangeOrZero:
		if b.Lo < 0 || b.Hi < 0 {
			return fmt.Errorf("%s: negative bound", b)
		}
		if b.Lo > b.Hi {
			return fmt.Errorf("%s: low end exceeds high end", b)
		}
	default:
		return fmt.Errorf("unknown bounds kind %d", b.Kind)
	}
	return nil
}

// Satisfied reports whether count related instances fulfil b.
func (b SlotBounds) Satisfied(count int) bool {
	switch b.Kind {
	case BoundsSingle:
		return count == 1
	case BoundsLowerBound:
		return count >= b.Lo
	case BoundsUpperBound:
		return count <= b.Hi
	case BoundsRange:
		return b.Lo <= count && count <= b.Hi
	case BoundsLowerBoundOrZero:
		return count == 0 || count >= b.Lo
	case BoundsRangeOrZero:
		return count == 0 || (b.Lo <= count && count <= b.Hi)
	default:
		return false
	}
}

// HasZeroCase reports whether an empty slot fulfils b.
func (b SlotBounds) HasZeroCase() bool {
	return b.Satisfied(0)
}

// Narrows reports whether child is a legal cardinality specialization of b.
func (b SlotBounds) Narrows(child SlotBounds) bool {
	switch b.Kind {
	case BoundsSingle:
		return child.Kind == BoundsSingle
	case BoundsLowerBound:
		return narrowsLowerBound(b.Lo, child)
	case BoundsUpperBound:
		switch child.Kind {
		case BoundsUpperBound, BoundsRange:
			return child.Hi <= b.Hi
		case BoundsSingle:
			return b.Hi >= 1
		}
		return false
	case BoundsRange:
		return narrowsRange(b.Lo, b.Hi, child)
	case BoundsLowerBoundOrZero:
		if narrowsLowerBound(b.Lo, child) {
			return true
		}
		switch child.Kind {
		case BoundsLowerBoundOrZero, BoundsRangeOrZero:
			return child.Lo >= b.Lo
		}
		return false
	case BoundsRangeOrZero:
		if child.Kind == BoundsRangeOrZero {
			return child.Lo >= b.Lo && child.Hi <= b.Hi
		}
		return narrowsRange(b.Lo, b.Hi, child)
	default:
		return false
	}
}

func narrowsLowerBound(lo int, child SlotBounds) bool {
	switch child.Kind {
	case BoundsLowerBound, BoundsRange:
		return child.Lo >= lo
	case BoundsSingle:
		return lo <= 1
	}
	return false
}

func narrowsRange(lo, hi int, child SlotBounds) bool {
	switch child.Kind {
	case BoundsRange:
		return child.Lo >= lo && child.Hi <= hi
	case BoundsSingle:
		return lo <= 1 && 1 <= hi
	}
	return false
}
