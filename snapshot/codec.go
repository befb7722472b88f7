// Package snapshot encodes instance graphs as version-1 snapshot documents
// and decodes them back.
//
// A snapshot is a v1alpha1.Snapshot object in JSON or YAML. Decoding is
// strict: unknown fields, duplicate keys and records with an unsupported
// version tag are rejected.
package snapshot

import (
	"bytes"
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/runtime"
	"k8s.io/apimachinery/pkg/runtime/serializer/json"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	utilruntime "k8s.io/apimachinery/pkg/util/runtime"

	"github.com/bayleafwalker/schemagraph/api/v1alpha1"
	"github.com/bayleafwalker/schemagraph/internal/semver"
	"github.com/bayleafwalker/schemagraph/prim"
	"github.com/bayleafwalker/schemagraph/schema"
)

// FormatVersion is the version tag written on every record.
const FormatVersion = "1.0.0"

// Records tagged with any version in this range decode.
var supportedVersions = semver.MustParseConstraint("^1.0.0")

var (
	ErrUnknownVersion  = errors.New("unknown snapshot version")
	ErrMalformedRecord = errors.New("malformed record")
)

var scheme = runtime.NewScheme()

func init() {
	utilruntime.Must(v1alpha1.AddToScheme(scheme))
}

type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func newSerializer(f Format) *json.Serializer {
	return json.NewSerializerWithOptions(json.DefaultMetaFactory, scheme, scheme, json.SerializerOptions{
		Yaml:   f == FormatYAML,
		Pretty: true,
		Strict: true,
	})
}

// RecordError locates a failure within one record. It matches both Kind and
// the underlying cause under errors.Is.
type RecordError struct {
	Index int
	ID    string
	Kind  error
	Err   error
}

func (e *RecordError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("record %d (%s): %v: %v", e.Index, e.ID, e.Kind, e.Err)
	}
	return fmt.Sprintf("record %d: %v: %v", e.Index, e.Kind, e.Err)
}

func (e *RecordError) Unwrap() []error { return []error{e.Kind, e.Err} }

// Snapshot is the decoded form of a snapshot document.
type Snapshot struct {
	// SchemaRevision is zero when the document does not carry one.
	SchemaRevision schema.Uid
	Instances      []*schema.Instance
}

// Encode writes snap in the given format. Records keep the order of
// snap.Instances.
func Encode(snap Snapshot, f Format) ([]byte, error) {
	obj := &v1alpha1.Snapshot{Records: make([]v1alpha1.InstanceRecord, 0, len(snap.Instances))}
	obj.SetGroupVersionKind(v1alpha1.GroupVersion.WithKind(v1alpha1.SnapshotKind))
	if !snap.SchemaRevision.IsZero() {
		obj.SchemaRevision = snap.SchemaRevision.String()
	}
	for _, inst := range snap.Instances {
		rec, err := ToRecord(inst)
		if err != nil {
			return nil, err
		}
		obj.Records = append(obj.Records, rec)
	}

	var buf bytes.Buffer
	if err := newSerializer(f).Encode(obj, &buf); err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// ToRecord converts an instance into a record tagged with FormatVersion.
func ToRecord(inst *schema.Instance) (v1alpha1.InstanceRecord, error) {
	rec := v1alpha1.InstanceRecord{
		ID:          inst.ID.String(),
		OperativeID: inst.Operative.String(),
		Version:     FormatVersion,
	}
	if len(inst.LockedFields) > 0 {
		rec.LockedFields = make(map[string]v1alpha1.PrimValue, len(inst.LockedFields))
		for field, v := range inst.LockedFields {
			w, err := ValueToWire(v)
			if err != nil {
				return v1alpha1.InstanceRecord{}, fmt.Errorf("instance %s field %s: %w", inst.ID, field, err)
			}
			rec.LockedFields[field.String()] = w
		}
	}
	if len(inst.SlotEdges) > 0 {
		rec.SlotEdges = make(map[string][]string, len(inst.SlotEdges))
		for slot, children := range inst.SlotEdges {
			ids := make([]string, len(children))
			for i, c := range children {
				ids[i] = c.String()
			}
			rec.SlotEdges[slot.String()] = ids
		}
	}
	return rec, nil
}

// Decode parses a JSON or YAML snapshot document. Every failure is reported;
// the returned error is an aggregate of *RecordError values and matches
// ErrUnknownVersion or ErrMalformedRecord under errors.Is.
func Decode(data []byte) (Snapshot, error) {
	// JSON is a subset of the YAML the serializer accepts.
	obj, _, err := newSerializer(FormatYAML).Decode(data, nil, nil)
	if err != nil {
		if runtime.IsNotRegisteredError(err) {
			return Snapshot{}, fmt.Errorf("%w: %v", ErrUnknownVersion, err)
		}
		return Snapshot{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	doc, ok := obj.(*v1alpha1.Snapshot)
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: expected kind %s, got %T", ErrMalformedRecord, v1alpha1.SnapshotKind, obj)
	}

	var out Snapshot
	var errs []error
	if doc.SchemaRevision != "" {
		rev, err := schema.ParseUid(doc.SchemaRevision)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: schemaRevision: %v", ErrMalformedRecord, err))
		}
		out.SchemaRevision = rev
	}

	seen := map[schema.Uid]int{}
	for i := range doc.Records {
		inst, err := FromRecord(doc.Records[i])
		if err != nil {
			errs = append(errs, recordError(i, doc.Records[i].ID, err))
			continue
		}
		if prev, dup := seen[inst.ID]; dup {
			errs = append(errs, &RecordError{Index: i, ID: doc.Records[i].ID, Kind: ErrMalformedRecord, Err: fmt.Errorf("id repeats record %d", prev)})
			continue
		}
		seen[inst.ID] = i
		out.Instances = append(out.Instances, inst)
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		return Snapshot{}, err
	}
	return out, nil
}

func recordError(index int, id string, err error) *RecordError {
	var re *RecordError
	if errors.As(err, &re) {
		re.Index, re.ID = index, id
		return re
	}
	return &RecordError{Index: index, ID: id, Kind: ErrMalformedRecord, Err: err}
}

// FromRecord validates one record and converts it into an instance.
func FromRecord(rec v1alpha1.InstanceRecord) (*schema.Instance, error) {
	if _, err := semver.Check(rec.Version, supportedVersions); err != nil {
		return nil, &RecordError{Kind: ErrUnknownVersion, Err: err}
	}
	id, err := schema.ParseUid(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("id: %w", err)
	}
	op, err := schema.ParseUid(rec.OperativeID)
	if err != nil {
		return nil, fmt.Errorf("operativeId: %w", err)
	}
	inst := &schema.Instance{
		ID:           id,
		Operative:    op,
		LockedFields: make(map[schema.Uid]prim.Value, len(rec.LockedFields)),
		SlotEdges:    make(map[schema.Uid][]schema.Uid, len(rec.SlotEdges)),
	}
	for raw, w := range rec.LockedFields {
		field, err := schema.ParseUid(raw)
		if err != nil {
			return nil, fmt.Errorf("lockedFields key: %w", err)
		}
		v, err := ValueFromWire(w)
		if err != nil {
			return nil, fmt.Errorf("lockedFields[%s]: %w", raw, err)
		}
		inst.LockedFields[field] = v
	}
	for raw, children := range rec.SlotEdges {
		slot, err := schema.ParseUid(raw)
		if err != nil {
			return nil, fmt.Errorf("slotEdges key: %w", err)
		}
		ids := make([]schema.Uid, len(children))
		for i, c := range children {
			if ids[i], err = schema.ParseUid(c); err != nil {
				return nil, fmt.Errorf("slotEdges[%s][%d]: %w", raw, i, err)
			}
		}
		inst.SlotEdges[slot] = ids
	}
	return inst, nil
}
