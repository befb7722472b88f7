package prim

import (
	"fmt"
	"strconv"
	"strings"
)

// Value mirrors the shape of Type. Values are immutable once constructed;
// list items are copied in and out.
type Value struct {
	kind  Kind
	b     bool
	c     rune
	i     int64
	f     float64
	s     string
	some  *Value
	items []Value
}

func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }
func CharValue(c rune) Value { return Value{kind: KindChar, c: c} }
func IntValue(i int64) Value { return Value{kind: KindInt, i: i} }
func FloatValue(f float64) Value { return Value{kind: KindFloat, f: f} }
func StringValue(s string) Value { return Value{kind: KindString, s: s} }
func None() Value { return Value{kind: KindOption} }

func Some(v Value) Value {
	inner := v
	return Value{kind: KindOption, some: &inner}
}

func ListValue(items ...Value) Value {
	cp := make([]Value, len(items))
	copy(cp, items)
	return Value{kind: KindList, items: cp}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsValid() bool { return v.kind != KindInvalid }

func (v Value) Bool() (bool, bool) { return v.b, v.kind == KindBool }
func (v Value) Char() (rune, bool) { return v.c, v.kind == KindChar }
func (v Value) Int() (int64, bool) { return v.i, v.kind == KindInt }
func (v Value) Float() (float64, bool) { return v.f, v.kind == KindFloat }
func (v Value) Str() (string, bool) { return v.s, v.kind == KindString }
func (v Value) IsNone() bool { return v.kind == KindOption && v.some == nil }

// Unwrap returns the payload of a Some value.
func (v Value) Unwrap() (Value, bool) {
	if v.kind != KindOption || v.some == nil {
		return Value{}, false
	}
	return *v.some, true
}

// Items returns a copy of the list items, or nil when v is not a list.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	cp := make([]Value, len(v.items))
	copy(cp, v.items)
	return cp
}

// Matches reports whether v has the shape of t. None matches every Option
// type and the empty list matches every List type.
func (v Value) Matches(t Type) bool {
	if v.kind != t.kind {
		return false
	}
	switch v.kind {
	case KindOption:
		if v.some == nil {
			return t.elem != nil
		}
		return v.some.Matches(t.Elem())
	case KindList:
		elem := t.Elem()
		for _, item := range v.items {
			if !item.Matches(elem) {
				return false
			}
		}
		return t.elem != nil
	case KindInvalid:
		return false
	default:
		return true
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == o.b
	case KindChar:
		return v.c == o.c
	case KindInt:
		return v.i == o.i
	case KindFloat:
		return v.f == o.f
	case KindString:
		return v.s == o.s
	case KindOption:
		if v.some == nil || o.some == nil {
			return v.some == nil && o.some == nil
		}
		return v.some.Equal(*o.some)
	case KindList:
		if len(v.items) != len(o.items) {
			return false
		}
		for i := range v.items {
			if !v.items[i].Equal(o.items[i]) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindChar:
		return strconv.QuoteRune(v.c)
	case KindInt:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.s)
	case KindOption:
		if v.some == nil {
			return "none"
		}
		return fmt.Sprintf("some(%s)", v.some)
	case KindList:
		parts := make([]string, len(v.items))
		for i, item := range v.items {
			parts[i] = item.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return "<invalid>"
	}
}
