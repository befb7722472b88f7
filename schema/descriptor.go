package schema

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

// Descriptor constrains which operatives may fill a slot. It is either a
// LibraryOperative or a TraitOperative.
type Descriptor interface {
	isDescriptor()
	String() string
}

// LibraryOperative permits instances of Operative or of any of its
// descendants.
type LibraryOperative struct {
	Operative Uid
}

func (LibraryOperative) isDescriptor() {}

func (d LibraryOperative) String() string {
	return fmt.Sprintf("LibraryOperative(%s)", d.Operative)
}

// TraitOperative permits any operative implementing every trait in Traits.
type TraitOperative struct {
	Tag    Tag
	Traits sets.Set[Uid]
}

func NewTraitOperative(tag Tag, traits ...Uid) TraitOperative {
	return TraitOperative{Tag: tag, Traits: sets.New(traits...)}
}

func (TraitOperative) isDescriptor() {}

// TraitList returns the required traits in a stable order.
func (d TraitOperative) TraitList() []Uid {
	return SortUids(d.Traits.UnsortedList())
}

func (d TraitOperative) String() string {
	ids := d.TraitList()
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = id.String()
	}
	if d.Tag.Name != "" {
		return fmt.Sprintf("TraitOperative %s(%s)", d.Tag.Name, strings.Join(parts, ","))
	}
	return fmt.Sprintf("TraitOperative(%s)", strings.Join(parts, ","))
}

func cloneDescriptor(d Descriptor) Descriptor {
	if t, ok := d.(TraitOperative); ok {
		return TraitOperative{Tag: t.Tag, Traits: t.Traits.Clone()}
	}
	return d
}
