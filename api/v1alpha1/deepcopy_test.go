package v1alpha1

import (
	"testing"

	"k8s.io/apimachinery/pkg/runtime"
)

func TestSnapshot_DeepCopyIsIndependent(t *testing.T) {
	n := int64(3)
	in := &Snapshot{
		Records: []InstanceRecord{{
			ID:           "a",
			OperativeID:  "op",
			LockedFields: map[string]PrimValue{"f": {Option: &OptionValue{Some: &PrimValue{Int: &n}}}},
			SlotEdges:    map[string][]string{"s": {"b", "c"}},
			Version:      "1.0.0",
		}},
	}

	out := in.DeepCopy()
	*out.Records[0].LockedFields["f"].Option.Some.Int = 4
	out.Records[0].SlotEdges["s"][0] = "z"

	if *in.Records[0].LockedFields["f"].Option.Some.Int != 3 {
		t.Fatalf("nested value was shared with the copy")
	}
	if in.Records[0].SlotEdges["s"][0] != "b" {
		t.Fatalf("edge list was shared with the copy")
	}
}

func TestSchemaDocument_DeepCopyIsIndependent(t *testing.T) {
	in := &SchemaDocument{Spec: SchemaDocumentSpec{
		Templates: []TemplateSpec{{Name: "T1", Slots: []SlotSpec{{Name: "s", Descriptor: DescriptorSpec{Traits: []string{"t1"}}}}}},
		Operatives: []OperativeSpec{{
			Name:       "O",
			BakedEdges: map[string][]string{"s": {"lib"}},
			TraitImpls: map[string]TraitImplSpec{"t1": {Methods: map[string]MethodImplSpec{"m": {ReturnType: "int"}}}},
		}},
	}}

	out := in.DeepCopyObject().(*SchemaDocument)
	out.Spec.Templates[0].Slots[0].Descriptor.Traits[0] = "t2"
	out.Spec.Operatives[0].BakedEdges["s"][0] = "other"
	out.Spec.Operatives[0].TraitImpls["t1"].Methods["m"] = MethodImplSpec{ReturnType: "float"}

	if in.Spec.Templates[0].Slots[0].Descriptor.Traits[0] != "t1" {
		t.Fatalf("descriptor traits were shared with the copy")
	}
	if in.Spec.Operatives[0].BakedEdges["s"][0] != "lib" {
		t.Fatalf("baked edges were shared with the copy")
	}
	if in.Spec.Operatives[0].TraitImpls["t1"].Methods["m"].ReturnType != "int" {
		t.Fatalf("trait impl methods were shared with the copy")
	}
}

func TestAddToScheme(t *testing.T) {
	s := runtime.NewScheme()
	if err := AddToScheme(s); err != nil {
		t.Fatalf("AddToScheme: %v", err)
	}
	for _, kind := range []string{SnapshotKind, SchemaDocumentKind} {
		if !s.Recognizes(GroupVersion.WithKind(kind)) {
			t.Fatalf("scheme does not recognize %s", kind)
		}
	}
}
