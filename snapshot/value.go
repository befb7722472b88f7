package snapshot

import (
	"fmt"
	"unicode/utf8"

	"github.com/bayleafwalker/schemagraph/api/v1alpha1"
	"github.com/bayleafwalker/schemagraph/prim"
)

// ValueToWire converts v into its wire form.
func ValueToWire(v prim.Value) (v1alpha1.PrimValue, error) {
	var out v1alpha1.PrimValue
	switch v.Kind() {
	case prim.KindBool:
		b, _ := v.Bool()
		out.Bool = &b
	case prim.KindChar:
		c, _ := v.Char()
		s := string(c)
		out.Char = &s
	case prim.KindInt:
		i, _ := v.Int()
		out.Int = &i
	case prim.KindFloat:
		f, _ := v.Float()
		out.Float = &f
	case prim.KindString:
		s, _ := v.Str()
		out.String = &s
	case prim.KindOption:
		out.Option = &v1alpha1.OptionValue{}
		if inner, ok := v.Unwrap(); ok {
			w, err := ValueToWire(inner)
			if err != nil {
				return v1alpha1.PrimValue{}, err
			}
			out.Option.Some = &w
		}
	case prim.KindList:
		items := v.Items()
		out.List = &v1alpha1.ListValue{Items: make([]v1alpha1.PrimValue, 0, len(items))}
		for _, item := range items {
			w, err := ValueToWire(item)
			if err != nil {
				return v1alpha1.PrimValue{}, err
			}
			out.List.Items = append(out.List.Items, w)
		}
	default:
		return v1alpha1.PrimValue{}, fmt.Errorf("cannot encode invalid value")
	}
	return out, nil
}

// ValueFromWire converts a wire value, which must set exactly one member.
func ValueFromWire(w v1alpha1.PrimValue) (prim.Value, error) {
	set := 0
	for _, present := range []bool{w.Bool != nil, w.Char != nil, w.Int != nil, w.Float != nil, w.String != nil, w.Option != nil, w.List != nil} {
		if present {
			set++
		}
	}
	if set != 1 {
		return prim.Value{}, fmt.Errorf("value sets %d members, want exactly 1", set)
	}

	switch {
	case w.Bool != nil:
		return prim.BoolValue(*w.Bool), nil
	case w.Char != nil:
		r, size := utf8.DecodeRuneInString(*w.Char)
		if (r == utf8.RuneError && size <= 1) || size != len(*w.Char) {
			return prim.Value{}, fmt.Errorf("char %q is not a single rune", *w.Char)
		}
		return prim.CharValue(r), nil
	case w.Int != nil:
		return prim.IntValue(*w.Int), nil
	case w.Float != nil:
		return prim.FloatValue(*w.Float), nil
	case w.String != nil:
		return prim.StringValue(*w.String), nil
	case w.Option != nil:
		if w.Option.Some == nil {
			return prim.None(), nil
		}
		inner, err := ValueFromWire(*w.Option.Some)
		if err != nil {
			return prim.Value{}, fmt.Errorf("option: %w", err)
		}
		return prim.Some(inner), nil
	default:
		items := make([]prim.Value, 0, len(w.List.Items))
		for i, item := range w.List.Items {
			v, err := ValueFromWire(item)
			if err != nil {
				return prim.Value{}, fmt.Errorf("list item %d: %w", i, err)
			}
			items = append(items, v)
		}
		return prim.ListValue(items...), nil
	}
}
