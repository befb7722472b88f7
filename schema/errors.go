package schema

import (
	"errors"
	"fmt"

	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Schema error kinds. Every *Error unwraps to exactly one of these.
var (
	ErrMissingReference             = errors.New("missing reference")
	ErrInheritanceCycle             = errors.New("inheritance cycle")
	ErrNonMonotonicSpecialization   = errors.New("non-monotonic specialization")
	ErrFieldRelock                  = errors.New("field relock")
	ErrSlotBoundsInvalid            = errors.New("slot bounds invalid")
	ErrTraitMethodSignatureMismatch = errors.New("trait method signature mismatch")
	ErrRootTemplateMismatch         = errors.New("root template mismatch")
	ErrFieldTypeMismatch            = errors.New("field type mismatch")
	ErrDuplicateID                  = errors.New("duplicate id")
	ErrDescriptorMismatch           = errors.New("descriptor mismatch")
	ErrUnknownOperative             = errors.New("unknown operative")
)

// Error locates one schema validation failure.
type Error struct {
	Kind   error
	Path   *field.Path
	Detail string
}

func newError(kind error, path *field.Path, format string, args ...any) *Error {
	return &Error{Kind: kind, Path: path, Detail: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Path == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", e.Path, e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }
