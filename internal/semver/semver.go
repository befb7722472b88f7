// Package semver parses and checks the version tags carried by snapshot
// records.
//
// This is a thin wrapper around github.com/Masterminds/semver/v3.
package semver

import (
	"errors"
	"fmt"

	mm "github.com/Masterminds/semver/v3"
)

// ErrUnsupported is returned by Check when a version falls outside the
// accepted constraint.
var ErrUnsupported = errors.New("unsupported version")

type Version struct {
	v *mm.Version
}

// Constraint is a semantic version constraint such as "^1.0.0" or "~1.4".
type Constraint struct {
	c   *mm.Constraints
	raw string
}

func ParseVersion(raw string) (Version, error) {
	v, err := mm.NewVersion(raw)
	if err != nil {
		return Version{}, fmt.Errorf("semver: parse version %q: %w", raw, err)
	}
	return Version{v: v}, nil
}

func MustParseVersion(raw string) Version {
	v, err := ParseVersion(raw)
	if err != nil {
		panic(err)
	}
	return v
}

func (v Version) String() string {
	if v.v == nil {
		return ""
	}
	return v.v.String()
}

func ParseConstraint(raw string) (Constraint, error) {
	c, err := mm.NewConstraint(raw)
	if err != nil {
		return Constraint{}, fmt.Errorf("semver: parse constraint %q: %w", raw, err)
	}
	return Constraint{c: c, raw: raw}, nil
}

func MustParseConstraint(raw string) Constraint {
	c, err := ParseConstraint(raw)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Constraint) String() string { return c.raw }

func Satisfies(v Version, c Constraint) bool {
	if v.v == nil || c.c == nil {
		return false
	}
	return c.c.Check(v.v)
}

// Check parses raw and verifies it against c. Failures wrap ErrUnsupported,
// or the parse error for malformed input.
func Check(raw string, c Constraint) (Version, error) {
	v, err := ParseVersion(raw)
	if err != nil {
		return Version{}, err
	}
	if !Satisfies(v, c) {
		return v, fmt.Errorf("%w: %s does not satisfy %s", ErrUnsupported, v, c)
	}
	return v, nil
}
