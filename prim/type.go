// Package prim contains the closed primitive type and value algebra used by
// field constraints: scalars plus the Option and List constructors.
package prim

import (
	"fmt"
	"strings"
)

type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindChar
	KindInt
	KindFloat
	KindString
	KindOption
	KindList
)

var kindNames = map[Kind]string{
	KindBool:   "bool",
	KindChar:   "char",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindOption: "option",
	KindList:   "list",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "invalid"
}

// Type is a primitive type. The zero value is invalid.
//
// Option and List carry their element type; scalars carry none.
type Type struct {
	kind Kind
	elem *Type
}

func Bool() Type   { return Type{kind: KindBool} }
func Char() Type   { return Type{kind: KindChar} }
func Int() Type    { return Type{kind: KindInt} }
func Float() Type  { return Type{kind: KindFloat} }
func String() Type { return Type{kind: KindString} }

func Option(elem Type) Type {
	e := elem
	return Type{kind: KindOption, elem: &e}
}

func List(elem Type) Type {
	e := elem
	return Type{kind: KindList, elem: &e}
}

func (t Type) Kind() Kind { return t.kind }

// Elem returns the element type of an Option or List. It returns the invalid
// type for scalars.
func (t Type) Elem() Type {
	if t.elem == nil {
		return Type{}
	}
	return *t.elem
}

func (t Type) IsValid() bool {
	switch t.kind {
	case KindBool, KindChar, KindInt, KindFloat, KindString:
		return t.elem == nil
	case KindOption, KindList:
		return t.elem != nil && t.elem.IsValid()
	default:
		return false
	}
}

// Equal reports whether t and u describe the same shape.
func (t Type) Equal(u Type) bool {
	if t.kind != u.kind {
		return false
	}
	if t.elem == nil || u.elem == nil {
		return t.elem == nil && u.elem == nil
	}
	return t.elem.Equal(*u.elem)
}

// String renders the type in the textual form accepted by ParseType,
// e.g. "list<option<int>>".
func (t Type) String() string {
	switch t.kind {
	case KindOption, KindList:
		return fmt.Sprintf("%s<%s>", t.kind, t.Elem())
	default:
		return t.kind.String()
	}
}

func (t Type) MarshalText() ([]byte, error) {
	if !t.IsValid() {
		return nil, fmt.Errorf("prim: cannot marshal invalid type")
	}
	return []byte(t.String()), nil
}

func (t *Type) UnmarshalText(text []byte) error {
	parsed, err := ParseType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// ParseType parses the textual form of a type. Whitespace around names and
// brackets is ignored.
func ParseType(raw string) (Type, error) {
	p := typeParser{src: raw}
	t, err := p.parse()
	if err != nil {
		return Type{}, fmt.Errorf("prim: parse type %q: %w", raw, err)
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Type{}, fmt.Errorf("prim: parse type %q: trailing input at offset %d", raw, p.pos)
	}
	return t, nil
}

type typeParser struct {
	src string
	pos int
}

func (p *typeParser) skipSpace() {
	for p.pos < len(p.src) && (p.src[p.pos] == ' ' || p.src[p.pos] == '\t') {
		p.pos++
	}
}

func (p *typeParser) ident() string {
	p.skipSpace()
	start := p.pos
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		if (c < 'a' || c > 'z') && (c < 'A' || c > 'Z') {
			break
		}
		p.pos++
	}
	return strings.ToLower(p.src[start:p.pos])
}

func (p *typeParser) expect(c byte) error {
	p.skipSpace()
	if p.pos >= len(p.src) || p.src[p.pos] != c {
		return fmt.Errorf("expected %q at offset %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *typeParser) parse() (Type, error) {
	name := p.ident()
	switch name {
	case "bool":
		return Bool(), nil
	case "char":
		return Char(), nil
	case "int":
		return Int(), nil
	case "float":
		return Float(), nil
	case "string":
		return String(), nil
	case "option", "list":
		if err := p.expect('<'); err != nil {
			return Type{}, err
		}
		elem, err := p.parse()
		if err != nil {
			return Type{}, err
		}
		if err := p.expect('>'); err != nil {
			return Type{}, err
		}
		if name == "option" {
			return Option(elem), nil
		}
		return List(elem), nil
	case "":
		return Type{}, fmt.Errorf("expected type name at offset %d", p.pos)
	default:
		return Type{}, fmt.Errorf("unknown type %q", name)
	}
}
