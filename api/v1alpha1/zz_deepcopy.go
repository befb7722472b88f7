package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime"
)

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *Snapshot) DeepCopyInto(out *Snapshot) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	if in.Records != nil {
		out.Records = make([]InstanceRecord, len(in.Records))
		for i := range in.Records {
			in.Records[i].DeepCopyInto(&out.Records[i])
		}
	}
}

// DeepCopy copies the receiver, creating a new Snapshot.
func (in *Snapshot) DeepCopy() *Snapshot {
	if in == nil {
		return nil
	}
	out := new(Snapshot)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *Snapshot) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *InstanceRecord) DeepCopyInto(out *InstanceRecord) {
	*out = *in
	out.LockedFields = copyValueMap(in.LockedFields)
	out.SlotEdges = copyEdgeMap(in.SlotEdges)
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *PrimValue) DeepCopyInto(out *PrimValue) {
	*out = *in
	if in.Bool != nil {
		in, out := &in.Bool, &out.Bool
		*out = new(bool)
		**out = **in
	}
	if in.Char != nil {
		in, out := &in.Char, &out.Char
		*out = new(string)
		**out = **in
	}
	if in.Int != nil {
		in, out := &in.Int, &out.Int
		*out = new(int64)
		**out = **in
	}
	if in.Float != nil {
		in, out := &in.Float, &out.Float
		*out = new(float64)
		**out = **in
	}
	if in.String != nil {
		in, out := &in.String, &out.String
		*out = new(string)
		**out = **in
	}
	if in.Option != nil {
		in, out := &in.Option, &out.Option
		*out = new(OptionValue)
		(*in).DeepCopyInto(*out)
	}
	if in.List != nil {
		in, out := &in.List, &out.List
		*out = new(ListValue)
		(*in).DeepCopyInto(*out)
	}
}

// DeepCopy copies the receiver, creating a new PrimValue.
func (in *PrimValue) DeepCopy() *PrimValue {
	if in == nil {
		return nil
	}
	out := new(PrimValue)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *OptionValue) DeepCopyInto(out *OptionValue) {
	*out = *in
	out.Some = in.Some.DeepCopy()
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *ListValue) DeepCopyInto(out *ListValue) {
	*out = *in
	if in.Items != nil {
		out.Items = make([]PrimValue, len(in.Items))
		for i := range in.Items {
			in.Items[i].DeepCopyInto(&out.Items[i])
		}
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *SchemaDocument) DeepCopyInto(out *SchemaDocument) {
	*out = *in
	out.TypeMeta = in.TypeMeta
	in.ObjectMeta.DeepCopyInto(&out.ObjectMeta)
	in.Spec.DeepCopyInto(&out.Spec)
}

// DeepCopy copies the receiver, creating a new SchemaDocument.
func (in *SchemaDocument) DeepCopy() *SchemaDocument {
	if in == nil {
		return nil
	}
	out := new(SchemaDocument)
	in.DeepCopyInto(out)
	return out
}

// DeepCopyObject copies the receiver, creating a new runtime.Object.
func (in *SchemaDocument) DeepCopyObject() runtime.Object {
	if c := in.DeepCopy(); c != nil {
		return c
	}
	return nil
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *SchemaDocumentSpec) DeepCopyInto(out *SchemaDocumentSpec) {
	*out = *in
	if in.Templates != nil {
		out.Templates = make([]TemplateSpec, len(in.Templates))
		for i := range in.Templates {
			in.Templates[i].DeepCopyInto(&out.Templates[i])
		}
	}
	if in.Traits != nil {
		out.Traits = make([]TraitSpec, len(in.Traits))
		for i := range in.Traits {
			in.Traits[i].DeepCopyInto(&out.Traits[i])
		}
	}
	if in.Operatives != nil {
		out.Operatives = make([]OperativeSpec, len(in.Operatives))
		for i := range in.Operatives {
			in.Operatives[i].DeepCopyInto(&out.Operatives[i])
		}
	}
	if in.LibraryInstances != nil {
		out.LibraryInstances = make([]InstanceRecord, len(in.LibraryInstances))
		for i := range in.LibraryInstances {
			in.LibraryInstances[i].DeepCopyInto(&out.LibraryInstances[i])
		}
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *TemplateSpec) DeepCopyInto(out *TemplateSpec) {
	*out = *in
	if in.Fields != nil {
		out.Fields = make([]FieldSpec, len(in.Fields))
		for i := range in.Fields {
			out.Fields[i] = in.Fields[i]
			out.Fields[i].Locked = in.Fields[i].Locked.DeepCopy()
		}
	}
	if in.Slots != nil {
		out.Slots = make([]SlotSpec, len(in.Slots))
		for i := range in.Slots {
			out.Slots[i] = in.Slots[i]
			in.Slots[i].Descriptor.DeepCopyInto(&out.Slots[i].Descriptor)
		}
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *DescriptorSpec) DeepCopyInto(out *DescriptorSpec) {
	*out = *in
	if in.Traits != nil {
		out.Traits = append([]string(nil), in.Traits...)
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *TraitSpec) DeepCopyInto(out *TraitSpec) {
	*out = *in
	if in.Methods != nil {
		out.Methods = make([]MethodSpec, len(in.Methods))
		for i := range in.Methods {
			out.Methods[i] = in.Methods[i]
			if in.Methods[i].Args != nil {
				out.Methods[i].Args = append([]ArgSpec(nil), in.Methods[i].Args...)
			}
		}
	}
}

// DeepCopyInto copies the receiver, writing into out. in must be non-nil.
func (in *OperativeSpec) DeepCopyInto(out *OperativeSpec) {
	*out = *in
	out.LockedFields = copyValueMap(in.LockedFields)
	if in.SlotTypeSpecializations != nil {
		out.SlotTypeSpecializations = make(map[string]DescriptorSpec, len(in.SlotTypeSpecializations))
		for k, v := range in.SlotTypeSpecializations {
			var c DescriptorSpec
			v.DeepCopyInto(&c)
			out.SlotTypeSpecializations[k] = c
		}
	}
	if in.SlotCardinalitySpecializations != nil {
		out.SlotCardinalitySpecializations = make(map[string]BoundsSpec, len(in.SlotCardinalitySpecializations))
		for k, v := range in.SlotCardinalitySpecializations {
			out.SlotCardinalitySpecializations[k] = v
		}
	}
	if in.TraitImpls != nil {
		out.TraitImpls = make(map[string]TraitImplSpec, len(in.TraitImpls))
		for k, v := range in.TraitImpls {
			c := TraitImplSpec{}
			if v.Methods != nil {
				c.Methods = make(map[string]MethodImplSpec, len(v.Methods))
				for mk, mv := range v.Methods {
					c.Methods[mk] = mv
				}
			}
			out.TraitImpls[k] = c
		}
	}
	out.BakedEdges = copyEdgeMap(in.BakedEdges)
}

func copyValueMap(in map[string]PrimValue) map[string]PrimValue {
	if in == nil {
		return nil
	}
	out := make(map[string]PrimValue, len(in))
	for k, v := range in {
		var c PrimValue
		v.DeepCopyInto(&c)
		out[k] = c
	}
	return out
}

func copyEdgeMap(in map[string][]string) map[string][]string {
	if in == nil {
		return nil
	}
	out := make(map[string][]string, len(in))
	for k, v := range in {
		if v == nil {
			out[k] = nil
			continue
		}
		out[k] = append([]string(nil), v...)
	}
	return out
}
