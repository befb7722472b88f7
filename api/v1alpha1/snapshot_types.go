package v1alpha1

import (
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
)

// Snapshot is the exported state of an instance graph: an ordered list of
// standalone instance records.
//
// +kubebuilder:object:root=true
type Snapshot struct {
	metav1.TypeMeta `json:",inline"`

	// SchemaRevision records the schema snapshot the graph was exported
	// against. Informational only.
	SchemaRevision string           `json:"schemaRevision,omitempty"`
	Records        []InstanceRecord `json:"records"`
}

// InstanceRecord is one instance. Ids are canonical UUID strings.
type InstanceRecord struct {
	ID           string               `json:"id"`
	OperativeID  string               `json:"operativeId"`
	LockedFields map[string]PrimValue `json:"lockedFields,omitempty"`
	// SlotEdges keeps the order of each slot's children.
	SlotEdges map[string][]string `json:"slotEdges,omitempty"`
	Version   string              `json:"version"`
}

// PrimValue is a typed value. Exactly one member is set.
type PrimValue struct {
	Bool   *bool        `json:"bool,omitempty"`
	Char   *string      `json:"char,omitempty"`
	Int    *int64       `json:"int,omitempty"`
	Float  *float64     `json:"float,omitempty"`
	String *string      `json:"string,omitempty"`
	Option *OptionValue `json:"option,omitempty"`
	List   *ListValue   `json:"list,omitempty"`
}

// OptionValue is None when Some is nil.
type OptionValue struct {
	Some *PrimValue `json:"some,omitempty"`
}

type ListValue struct {
	Items []PrimValue `json:"items"`
}
