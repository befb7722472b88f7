// Package manifest turns SchemaDocument manifests into built schemas.
package manifest

import (
	"errors"
	"fmt"
	"os"

	"github.com/google/uuid"
	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/serializer/json"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/bayleafwalker/schemagraph/api/v1alpha1"
	"github.com/bayleafwalker/schemagraph/prim"
	"github.com/bayleafwalker/schemagraph/schema"
	"github.com/bayleafwalker/schemagraph/snapshot"
)

// Namespace seeds the ids derived for entities declared without one.
var Namespace = uuid.MustParse("0c5d3b9e-5f7a-4e0b-9a44-2b8f1d6c7e30")

// ErrInvalidDocument marks a document that cannot be decoded or whose
// references cannot be resolved. Schema validation failures are reported as
// schema errors instead.
var ErrInvalidDocument = errors.New("invalid schema document")

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(v1alpha1.AddToScheme(scheme))
}

// DeriveID returns the id an entity of the given kind and qualified name gets
// when the document does not carry one.
func DeriveID(kind, name string) schema.Uid {
	return schema.Uid(uuid.NewSHA1(Namespace, []byte(kind+":"+name)))
}

// Load reads, decodes and builds the document at path. Read failures are
// returned unwrapped so callers can tell them from invalid documents.
func Load(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc, err := Decode(data)
	if err != nil {
		return nil, err
	}
	return Build(doc)
}

// Decode strictly parses a JSON or YAML SchemaDocument.
func Decode(data []byte) (*v1alpha1.SchemaDocument, error) {
	s := json.NewSerializerWithOptions(json.DefaultMetaFactory, scheme, scheme, json.SerializerOptions{Yaml: true, Strict: true})
	obj, _, err := s.Decode(data, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	doc, ok := obj.(*v1alpha1.SchemaDocument)
	if !ok {
		return nil, fmt.Errorf("%w: expected kind %s, got %T", ErrInvalidDocument, v1alpha1.SchemaDocumentKind, obj)
	}
	return doc, nil
}

// Build resolves every name in doc and builds the schema. Reference errors
// are aggregated and wrapped in ErrInvalidDocument; everything else is left
// to schema validation.
func Build(doc *v1alpha1.SchemaDocument) (*schema.Schema, error) {
	b, err := Builder(doc)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

// Builder resolves doc into a schema builder without building it.
func Builder(doc *v1alpha1.SchemaDocument) (*schema.Builder, error) {
	r := newResolver()
	spec := field.NewPath("spec")
	r.index(&doc.Spec, spec)

	b := schema.NewBuilder()
	for i := range doc.Spec.Templates {
		if t, ok := r.template(&doc.Spec.Templates[i], spec.Child("templates").Index(i)); ok {
			b.Template(t)
		}
	}
	for i := range doc.Spec.Traits {
		if t, ok := r.trait(&doc.Spec.Traits[i], spec.Child("traits").Index(i)); ok {
			b.Trait(t)
		}
	}
	for i := range doc.Spec.Operatives {
		if o, ok := r.operative(&doc.Spec.Operatives[i], spec.Child("operatives").Index(i)); ok {
			b.Operative(o)
		}
	}
	for i := range doc.Spec.LibraryInstances {
		if inst, ok := r.libraryInstance(&doc.Spec.LibraryInstances[i], spec.Child("libraryInstances").Index(i)); ok {
			b.LibraryInstance(inst)
		}
	}
	if agg := r.errs.ToAggregate(); agg != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, agg)
	}
	return b, nil
}

func parseType(raw string, path *field.Path, errs *field.ErrorList) prim.Type {
	t, err := prim.ParseType(raw)
	if err != nil {
		*errs = append(*errs, field.Invalid(path, raw, err.Error()))
	}
	return t
}

func parseValue(w v1alpha1.PrimValue, path *field.Path, errs *field.ErrorList) (prim.Value, bool) {
	v, err := snapshot.ValueFromWire(w)
	if err != nil {
		*errs = append(*errs, field.Invalid(path, w, err.Error()))
		return prim.Value{}, false
	}
	return v, true
}

func bounds(spec v1alpha1.BoundsSpec, path *field.Path, errs *field.ErrorList) (schema.SlotBounds, bool) {
	switch spec.Kind {
	case v1alpha1.BoundsSingle:
		return schema.Single(), true
	case v1alpha1.BoundsLowerBound:
		return schema.LowerBound(spec.Min), true
	case v1alpha1.BoundsUpperBound:
		return schema.UpperBound(spec.Max), true
	case v1alpha1.BoundsRange:
		return schema.Range(spec.Min, spec.Max), true
	case v1alpha1.BoundsLowerBoundOrZero:
		return schema.LowerBoundOrZero(spec.Min), true
	case v1alpha1.BoundsRangeOrZero:
		return schema.RangeOrZero(spec.Min, spec.Max), true
	}
	*errs = append(*errs, field.NotSupported(path.Child("kind"), string(spec.Kind), []string{
		string(v1alpha1.BoundsSingle), string(v1alpha1.BoundsLowerBound), string(v1alpha1.BoundsUpperBound),
		string(v1alpha1.BoundsRange), string(v1alpha1.BoundsLowerBoundOrZero), string(v1alpha1.BoundsRangeOrZero),
	}))
	return schema.SlotBounds{}, false
}
