package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bayleafwalker/schemagraph/schema"
	"github.com/bayleafwalker/schemagraph/snapshot"
)

// Graph error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrUnknownUid             = errors.New("unknown uid")
	ErrTypeMismatch           = errors.New("type mismatch")
	ErrDescriptorMismatch     = errors.New("descriptor mismatch")
	ErrCardinalityUnfulfilled = errors.New("cardinality unfulfilled")
	ErrDanglingEdge           = errors.New("dangling edge")
	ErrCascadeWouldOrphan     = errors.New("cascade would orphan")
	ErrTxConflict             = errors.New("transaction conflict")
	ErrFieldLocked            = errors.New("field locked")
	ErrDuplicateEdge          = errors.New("duplicate edge")
	ErrDuplicateInstance      = errors.New("duplicate instance")
	ErrNothingToUndo          = errors.New("nothing to undo")
	ErrNothingToRedo          = errors.New("nothing to redo")
	ErrCorruptHistory         = errors.New("corrupt history")
	ErrTxClosed               = errors.New("transaction closed")
	ErrReentrant              = errors.New("reentrant mutation")
	ErrInvalidConfig          = errors.New("invalid config")
)

// Snapshot kinds, re-exported so import callers need not import snapshot.
var (
	ErrUnknownVersion  = snapshot.ErrUnknownVersion
	ErrMalformedRecord = snapshot.ErrMalformedRecord
)

// Error is one graph validation failure. Slot, Field and Related are zero
// when they do not apply.
type Error struct {
	Kind     error
	Instance schema.Uid
	Slot     schema.Uid
	Field    schema.Uid
	Related  schema.Uid
	Detail   string
}

func newError(kind error, instance schema.Uid, format string, args ...any) *Error {
	return &Error{Kind: kind, Instance: instance, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if !e.Instance.IsZero() {
		fmt.Fprintf(&b, ": instance %s", e.Instance)
	}
	if !e.Slot.IsZero() {
		fmt.Fprintf(&b, " slot %s", e.Slot)
	}
	if !e.Field.IsZero() {
		fmt.Fprintf(&b, " field %s", e.Field)
	}
	if !e.Related.IsZero() {
		fmt.Fprintf(&b, " related %s", e.Related)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Kind }

// ImportError wraps every failure of Import: a snapshot decoding error
// (ErrUnknownVersion, ErrMalformedRecord) or the graph errors raised while
// validating the decoded records.
type ImportError struct {
	Err error
}

func (e *ImportError) Error() string { return "import: " + e.Err.Error() }

func (e *ImportError) Unwrap() error { return e.Err }

var kindNames = map[error]string{
	ErrUnknownUid:             "unknown_uid",
	ErrTypeMismatch:           "type_mismatch",
	ErrDescriptorMismatch:     "descriptor_mismatch",
	ErrCardinalityUnfulfilled: "cardinality_unfulfilled",
	ErrDanglingEdge:           "dangling_edge",
	ErrCascadeWouldOrphan:     "cascade_would_orphan",
	ErrTxConflict:             "tx_conflict",
	ErrFieldLocked:            "field_locked",
	ErrDuplicateEdge:          "duplicate_edge",
	ErrDuplicateInstance:      "duplicate_instance",
	ErrTxClosed:               "tx_closed",
	ErrReentrant:              "reentrant",
	ErrCorruptHistory:         "corrupt_history",
}

// reason names the kind of the first failure in err for metric labels.
func reason(err error) string {
	var errs []error
	if agg, ok := err.(interface{ Errors() []error }); ok {
		errs = agg.Errors()
	} else {
		errs = []error{err}
	}
	for _, e := range errs {
		var ge *Error
		if errors.As(e, &ge) {
			if name, ok := kindNames[ge.Kind]; ok {
				return name
			}
		}
	}
	return "other"
}
