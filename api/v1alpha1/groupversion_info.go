// Package v1alpha1 contains the versioned wire types of schemagraph: instance
// snapshots and schema documents.
//
// +groupName=schemagraph.bayleafwalker.dev
package v1alpha1

import (
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/schema"
)

var (
	// GroupVersion is the group version used to register these objects.
	GroupVersion = schema.GroupVersion{Group: "schemagraph.bayleafwalker.dev", Version: "v1alpha1"}

	// SchemeBuilder collects the functions that add these types to a scheme.
	SchemeBuilder = runtime.NewSchemeBuilder(addKnownTypes)

	// AddToScheme adds the types in this group-version to the given scheme.
	AddToScheme = SchemeBuilder.AddToScheme
)

const (
	SnapshotKind       = "Snapshot"
	SchemaDocumentKind = "SchemaDocument"
)

func addKnownTypes(s *runtime.Scheme) error {
	s.AddKnownTypes(GroupVersion, &Snapshot{}, &SchemaDocument{})
	return nil
}
