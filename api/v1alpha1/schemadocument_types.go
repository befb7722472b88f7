package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// SchemaDocument declares a constraint schema.
//
// Entity ids are optional. An entity without an id gets one derived from its
// kind and name, so documents stay stable across loads. References name an
// entity of the expected kind or carry its id.
//
// +kubebuilder:object:root=true
type SchemaDocument struct {
	metav1.TypeMeta   `json:",inline"`
	metav1.ObjectMeta `json:"metadata,omitempty"`

	Spec SchemaDocumentSpec `json:"spec"`
}

type SchemaDocumentSpec struct {
	Templates        []TemplateSpec   `json:"templates,omitempty"`
	Traits           []TraitSpec      `json:"traits,omitempty"`
	Operatives       []OperativeSpec  `json:"operatives,omitempty"`
	LibraryInstances []InstanceRecord `json:"libraryInstances,omitempty"`
}

type TemplateSpec struct {
	ID     string      `json:"id,omitempty"`
	Name   string      `json:"name"`
	Fields []FieldSpec `json:"fields,omitempty"`
	Slots  []SlotSpec  `json:"slots,omitempty"`
}

// FieldSpec types are written as bool, char, int, float, string,
// option<T> or list<T>.
type FieldSpec struct {
	ID     string     `json:"id,omitempty"`
	Name   string     `json:"name"`
	Type   string     `json:"type"`
	Locked *PrimValue `json:"locked,omitempty"`
}

type SlotSpec struct {
	ID         string         `json:"id,omitempty"`
	Name       string         `json:"name"`
	Descriptor DescriptorSpec `json:"descriptor"`
	Bounds     BoundsSpec     `json:"bounds"`
}

// DescriptorSpec sets exactly one of Operative or Traits.
type DescriptorSpec struct {
	Operative string `json:"operative,omitempty"`

	Traits []string `json:"traits,omitempty"`
	// Name labels a trait descriptor.
	Name string `json:"name,omitempty"`
}

type BoundsKind string

const (
	BoundsSingle           BoundsKind = "single"
	BoundsLowerBound       BoundsKind = "lowerBound"
	BoundsUpperBound       BoundsKind = "upperBound"
	BoundsRange            BoundsKind = "range"
	BoundsLowerBoundOrZero BoundsKind = "lowerBoundOrZero"
	BoundsRangeOrZero      BoundsKind = "rangeOrZero"
)

// BoundsSpec uses Min for lower bounds and Max for upper bounds.
type BoundsSpec struct {
	Kind BoundsKind `json:"kind"`
	Min  int        `json:"min,omitempty"`
	Max  int        `json:"max,omitempty"`
}

type TraitSpec struct {
	ID      string       `json:"id,omitempty"`
	Name    string       `json:"name"`
	Methods []MethodSpec `json:"methods,omitempty"`
}

type MethodSpec struct {
	ID         string    `json:"id,omitempty"`
	Name       string    `json:"name"`
	ReturnType string    `json:"returnType"`
	Args       []ArgSpec `json:"args,omitempty"`
}

type ArgSpec struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// OperativeSpec keys its maps by field, slot or trait name or id.
type OperativeSpec struct {
	ID           string `json:"id,omitempty"`
	Name         string `json:"name"`
	RootTemplate string `json:"rootTemplate"`
	Parent       string `json:"parent,omitempty"`

	LockedFields                   map[string]PrimValue      `json:"lockedFields,omitempty"`
	SlotTypeSpecializations        map[string]DescriptorSpec `json:"slotTypeSpecializations,omitempty"`
	SlotCardinalitySpecializations map[string]BoundsSpec     `json:"slotCardinalitySpecializations,omitempty"`
	TraitImpls                     map[string]TraitImplSpec  `json:"traitImpls,omitempty"`
	// BakedEdges lists library instance ids per slot.
	BakedEdges map[string][]string `json:"bakedEdges,omitempty"`
}

// TraitImplSpec keys methods by name or id.
type TraitImplSpec struct {
	Methods map[string]MethodImplSpec `json:"methods"`
}

type MethodImplSpec struct {
	ReturnType string `json:"returnType"`
	Body       string `json:"body,omitempty"`
}
