package schema

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Uid is a 128-bit opaque identifier, stable for the lifetime of the entity
// it names. The zero Uid never names an entity.
type Uid uuid.UUID

// NilUid is the zero identifier.
var NilUid Uid

func NewUid() Uid {
	return Uid(uuid.New())
}

func ParseUid(raw string) (Uid, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return NilUid, fmt.Errorf("schema: parse uid %q: %w", raw, err)
	}
	return Uid(u), nil
}

func MustParseUid(raw string) Uid {
	u, err := ParseUid(raw)
	if err != nil {
		panic(err)
	}
	return u
}

func (u Uid) IsZero() bool { return u == NilUid }

func (u Uid) String() string { return uuid.UUID(u).String() }

// Compare orders uids bytewise.
func (u Uid) Compare(o Uid) int { return bytes.Compare(u[:], o[:]) }

func (u Uid) MarshalText() ([]byte, error) {
	return uuid.UUID(u).MarshalText()
}

func (u *Uid) UnmarshalText(text []byte) error {
	parsed, err := ParseUid(string(text))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}

// SortUids sorts ids in place and returns them.
func SortUids(ids []Uid) []Uid {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Compare(ids[j]) < 0 })
	return ids
}

// Tag pairs an identifier with a human-readable name.
type Tag struct {
	ID   Uid
	Name string
}

func NewTag(name string) Tag {
	return Tag{ID: NewUid(), Name: name}
}

func (t Tag) String() string {
	if t.Name == "" {
		return t.ID.String()
	}
	return fmt.Sprintf("%s(%s)", t.Name, t.ID)
}
