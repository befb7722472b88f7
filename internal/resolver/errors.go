package resolver

import "errors"

var (
	// ErrNoSchema indicates Resolve was called without a schema.
	ErrNoSchema = errors.New("resolver: no schema")
)
