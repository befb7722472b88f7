package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bayleafwalker/schemagraph/prim"
)

type traitFixture struct {
	*fixture
	t1, t2       Trait
	m1, m2       Method
	gearTemplate Template
	gear         OperativeSlot
	host         Operative
	gearOne      Operative // implements t1
	gearBoth     Operative // implements t1 and t2
}

func newTraitFixture() *traitFixture {
	tf := &traitFixture{fixture: newFixture()}
	tf.m1 = Method{Tag: NewTag("weight"), ReturnType: prim.Int()}
	tf.m2 = Method{Tag: NewTag("label"), ReturnType: prim.String(), Args: []MethodArg{{Name: "lang", Type: prim.String()}}}
	tf.t1 = Trait{Tag: NewTag("Weighted"), Methods: []Method{tf.m1}}
	tf.t2 = Trait{Tag: NewTag("Labelled"), Methods: []Method{tf.m2}}

	tf.gear = OperativeSlot{
		Tag:        NewTag("gear"),
		Descriptor: NewTraitOperative(NewTag("gearDesc"), tf.t1.Tag.ID),
		Bounds:     RangeOrZero(1, 3),
	}
	tf.gearTemplate = Template{Tag: NewTag("T_gear_host"), Slots: []OperativeSlot{tf.gear}}
	tf.host = Operative{Tag: NewTag("O_host"), RootTemplate: tf.gearTemplate.Tag.ID}

	tf.gearOne = Operative{
		Tag:          NewTag("O_gear_one"),
		RootTemplate: tf.leafTemplate.Tag.ID,
		TraitImpls:   map[Uid]TraitImpl{tf.t1.Tag.ID: tf.weightImpl("1")},
	}
	tf.gearBoth = Operative{
		Tag:          NewTag("O_gear_both"),
		RootTemplate: tf.leafTemplate.Tag.ID,
		TraitImpls: map[Uid]TraitImpl{
			tf.t1.Tag.ID: tf.weightImpl("2"),
			tf.t2.Tag.ID: {Methods: map[Uid]MethodImpl{tf.m2.Tag.ID: {ReturnType: prim.String(), Body: `"both"`}}},
		},
	}
	return tf
}

func (tf *traitFixture) weightImpl(body string) TraitImpl {
	return TraitImpl{Methods: map[Uid]MethodImpl{tf.m1.Tag.ID: {ReturnType: prim.Int(), Body: body}}}
}

func (tf *traitFixture) builder() *Builder {
	return tf.fixture.builder().
		Trait(tf.t1).
		Trait(tf.t2).
		Template(tf.gearTemplate).
		Operative(tf.host).
		Operative(tf.gearOne).
		Operative(tf.gearBoth)
}

func (tf *traitFixture) hostChild(name string) Operative {
	return Operative{Tag: NewTag(name), RootTemplate: tf.gearTemplate.Tag.ID, Parent: tf.host.Tag.ID}
}

func TestTypeSpecialization_Library(t *testing.T) {
	f := newFixture()
	leafChild := Operative{Tag: NewTag("O_leaf_child"), RootTemplate: f.leafTemplate.Tag.ID, Parent: f.leaf.Tag.ID}

	narrow := f.child("O_narrow")
	narrow.SlotTypeSpecializations = map[Uid]Descriptor{f.parts.Tag.ID: LibraryOperative{Operative: leafChild.Tag.ID}}
	s, err := f.builder().Operative(leafChild).Operative(narrow).Build()
	require.NoError(t, err)

	d, err := s.OperativeDigest(narrow.Tag.ID)
	require.NoError(t, err)
	slot, _ := d.Slot(f.parts.Tag.ID)
	assert.Equal(t, LibraryOperative{Operative: leafChild.Tag.ID}, slot.Descriptor)
	assert.Equal(t, narrow.Tag.ID, slot.DescriptorHost)
	assert.Equal(t, f.template.Tag.ID, slot.BoundsHost)

	sideways := f.child("O_sideways")
	sideways.SlotTypeSpecializations = map[Uid]Descriptor{f.parts.Tag.ID: LibraryOperative{Operative: f.root.Tag.ID}}
	_, err = f.builder().Operative(sideways).Build()
	require.ErrorIs(t, err, ErrNonMonotonicSpecialization)

	dangling := f.child("O_dangling")
	dangling.SlotTypeSpecializations = map[Uid]Descriptor{f.parts.Tag.ID: LibraryOperative{Operative: NewUid()}}
	_, err = f.builder().Operative(dangling).Build()
	require.ErrorIs(t, err, ErrMissingReference)
}

func TestTypeSpecialization_Trait(t *testing.T) {
	tests := []struct {
		name string
		desc func(tf *traitFixture) Descriptor
		err  error
	}{
		{
			name: "superset of traits",
			desc: func(tf *traitFixture) Descriptor {
				return NewTraitOperative(NewTag("both"), tf.t1.Tag.ID, tf.t2.Tag.ID)
			},
		},
		{
			name: "drops a required trait",
			desc: func(tf *traitFixture) Descriptor {
				return NewTraitOperative(NewTag("other"), tf.t2.Tag.ID)
			},
			err: ErrNonMonotonicSpecialization,
		},
		{
			name: "library operative implementing the traits",
			desc: func(tf *traitFixture) Descriptor {
				return LibraryOperative{Operative: tf.gearOne.Tag.ID}
			},
		},
		{
			name: "library operative missing a trait",
			desc: func(tf *traitFixture) Descriptor {
				return LibraryOperative{Operative: tf.leaf.Tag.ID}
			},
			err: ErrNonMonotonicSpecialization,
		},
		{
			name: "unknown trait",
			desc: func(tf *traitFixture) Descriptor {
				return NewTraitOperative(NewTag("ghost"), tf.t1.Tag.ID, NewUid())
			},
			err: ErrMissingReference,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tf := newTraitFixture()
			child := tf.hostChild("O_spec")
			child.SlotTypeSpecializations = map[Uid]Descriptor{tf.gear.Tag.ID: tc.desc(tf)}
			_, err := tf.builder().Operative(child).Build()
			if tc.err == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestTypeSpecialization_LibraryToTraitIsIllegal(t *testing.T) {
	tf := newTraitFixture()
	child := tf.child("O_widen")
	child.SlotTypeSpecializations = map[Uid]Descriptor{tf.parts.Tag.ID: NewTraitOperative(NewTag("any"), tf.t1.Tag.ID)}

	_, err := tf.builder().Operative(child).Build()
	require.ErrorIs(t, err, ErrNonMonotonicSpecialization)
}

func TestTraitImpls_SignatureChecks(t *testing.T) {
	tf := newTraitFixture()
	wrongReturn := Operative{
		Tag:          NewTag("O_wrong_return"),
		RootTemplate: tf.leafTemplate.Tag.ID,
		TraitImpls: map[Uid]TraitImpl{
			tf.t1.Tag.ID: {Methods: map[Uid]MethodImpl{tf.m1.Tag.ID: {ReturnType: prim.Float()}}},
		},
	}
	_, err := tf.builder().Operative(wrongReturn).Build()
	require.ErrorIs(t, err, ErrTraitMethodSignatureMismatch)

	missing := Operative{
		Tag:          NewTag("O_missing_method"),
		RootTemplate: tf.leafTemplate.Tag.ID,
		TraitImpls:   map[Uid]TraitImpl{tf.t1.Tag.ID: {}},
	}
	_, err = tf.builder().Operative(missing).Build()
	require.ErrorIs(t, err, ErrTraitMethodSignatureMismatch)

	extra := Operative{
		Tag:          NewTag("O_extra_method"),
		RootTemplate: tf.leafTemplate.Tag.ID,
		TraitImpls: map[Uid]TraitImpl{tf.t1.Tag.ID: {Methods: map[Uid]MethodImpl{
			tf.m1.Tag.ID: {ReturnType: prim.Int()},
			NewUid():     {ReturnType: prim.Int()},
		}}},
	}
	_, err = tf.builder().Operative(extra).Build()
	require.ErrorIs(t, err, ErrMissingReference)

	badTrait := Trait{Tag: NewTag("Broken"), Methods: []Method{{Tag: NewTag("m")}}}
	_, err = tf.builder().Trait(badTrait).Build()
	require.ErrorIs(t, err, ErrTraitMethodSignatureMismatch)
}

func TestTraitImplDigest_ClosestWins(t *testing.T) {
	tf := newTraitFixture()
	override := Operative{
		Tag:          NewTag("O_gear_override"),
		RootTemplate: tf.leafTemplate.Tag.ID,
		Parent:       tf.gearOne.Tag.ID,
		TraitImpls:   map[Uid]TraitImpl{tf.t1.Tag.ID: tf.weightImpl("10")},
	}
	inherits := Operative{Tag: NewTag("O_gear_inherits"), RootTemplate: tf.leafTemplate.Tag.ID, Parent: override.Tag.ID}

	s, err := tf.builder().Operative(override).Operative(inherits).Build()
	require.NoError(t, err)

	d, err := s.TraitImplDigest(inherits.Tag.ID)
	require.NoError(t, err)
	entry, ok := d.Lookup(tf.t1.Tag.ID)
	require.True(t, ok)
	assert.Equal(t, override.Tag.ID, entry.HostingElement)
	assert.Equal(t, "10", entry.Impl.Methods[tf.m1.Tag.ID].Body)
	assert.True(t, d.Traits().Has(tf.t1.Tag.ID))
	assert.False(t, d.Traits().Has(tf.t2.Tag.ID))

	assert.True(t, s.Satisfies(tf.gear.Descriptor, inherits.Tag.ID))
	assert.False(t, s.Satisfies(NewTraitOperative(NewTag("both"), tf.t1.Tag.ID, tf.t2.Tag.ID), inherits.Tag.ID))
}

func TestWarnings_CyclicTraitUsage(t *testing.T) {
	tf := newTraitFixture()
	// The host implements the trait its own slot requires.
	tf.host.TraitImpls = map[Uid]TraitImpl{tf.t1.Tag.ID: tf.weightImpl("0")}

	s, err := tf.builder().Build()
	require.NoError(t, err)
	warnings := s.Warnings()
	require.Len(t, warnings, 1)
	assert.Contains(t, warnings[0], "Weighted -> Weighted")

	clean, err := newTraitFixture().builder().Build()
	require.NoError(t, err)
	assert.Empty(t, clean.Warnings())
}

func TestBakedEdges(t *testing.T) {
	f := newFixture()
	lib1 := Instance{ID: NewUid(), Operative: f.leaf.Tag.ID}
	lib2 := Instance{ID: NewUid(), Operative: f.leaf.Tag.ID}
	baker := f.child("O_baker")
	baker.BakedEdges = map[Uid][]Uid{f.parts.Tag.ID: {lib1.ID}}
	heir := Operative{
		Tag:          NewTag("O_heir"),
		RootTemplate: f.template.Tag.ID,
		Parent:       baker.Tag.ID,
		BakedEdges:   map[Uid][]Uid{f.parts.Tag.ID: {lib2.ID}},
	}

	s, err := f.builder().
		LibraryInstance(lib1).
		LibraryInstance(lib2).
		Operative(baker).
		Operative(heir).
		Build()
	require.NoError(t, err)
	assert.True(t, s.LibraryInstanceIDs().HasAll(lib1.ID, lib2.ID))

	d, err := s.OperativeDigest(heir.Tag.ID)
	require.NoError(t, err)
	slot, _ := d.Slot(f.parts.Tag.ID)
	assert.Equal(t, []RelatedInstance{
		{ID: lib1.ID, HostingElement: baker.Tag.ID},
		{ID: lib2.ID, HostingElement: heir.Tag.ID},
	}, slot.Related)
	assert.True(t, slot.Fulfilled())

	rootDigest, err := s.OperativeDigest(f.root.Tag.ID)
	require.NoError(t, err)
	rootSlot, _ := rootDigest.Slot(f.parts.Tag.ID)
	assert.Empty(t, rootSlot.Related)
	assert.False(t, rootSlot.Fulfilled())
}

func TestBakedEdges_Rejected(t *testing.T) {
	f := newFixture()
	lib := Instance{ID: NewUid(), Operative: f.leaf.Tag.ID}
	wrong := Instance{ID: NewUid(), Operative: f.root.Tag.ID}

	tests := []struct {
		name  string
		edges []Uid
		err   error
	}{
		{"missing instance", []Uid{NewUid()}, ErrMissingReference},
		{"duplicate", []Uid{lib.ID, lib.ID}, ErrDuplicateID},
		{"descriptor", []Uid{wrong.ID}, ErrDescriptorMismatch},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			baker := f.child("O_baker")
			baker.BakedEdges = map[Uid][]Uid{f.parts.Tag.ID: tc.edges}
			_, err := f.builder().LibraryInstance(lib).LibraryInstance(wrong).Operative(baker).Build()
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestBakedEdges_LimitLaterNarrowing(t *testing.T) {
	f := newFixture()
	var libs []Instance
	var ids []Uid
	for i := 0; i < 6; i++ {
		inst := Instance{ID: NewUid(), Operative: f.leaf.Tag.ID}
		libs = append(libs, inst)
		ids = append(ids, inst.ID)
	}
	b := f.builder()
	for _, l := range libs {
		b.LibraryInstance(l)
	}

	overflow := f.child("O_overflow")
	overflow.BakedEdges = map[Uid][]Uid{f.parts.Tag.ID: ids}
	_, err := b.Operative(overflow).Build()
	require.ErrorIs(t, err, ErrSlotBoundsInvalid)

	two := f.child("O_two")
	two.BakedEdges = map[Uid][]Uid{f.parts.Tag.ID: ids[:2]}
	tooNarrow := Operative{
		Tag:                            NewTag("O_too_narrow"),
		RootTemplate:                   f.template.Tag.ID,
		Parent:                         two.Tag.ID,
		SlotCardinalitySpecializations: map[Uid]SlotBounds{f.parts.Tag.ID: Single()},
	}
	_, err = b.Remove(overflow.Tag.ID).Operative(two).Operative(tooNarrow).Build()
	require.ErrorIs(t, err, ErrNonMonotonicSpecialization)
}

func TestLibraryInstance_Validation(t *testing.T) {
	f := newFixture()
	relock := Instance{
		ID:           NewUid(),
		Operative:    f.root.Tag.ID,
		LockedFields: map[Uid]prim.Value{f.color.Tag.ID: prim.StringValue("green")},
	}
	_, err := f.builder().LibraryInstance(relock).Build()
	require.ErrorIs(t, err, ErrFieldRelock)

	orphan := Instance{ID: NewUid(), Operative: NewUid()}
	_, err = f.builder().LibraryInstance(orphan).Build()
	require.ErrorIs(t, err, ErrMissingReference)

	sized := Instance{
		ID:           NewUid(),
		Operative:    f.root.Tag.ID,
		LockedFields: map[Uid]prim.Value{f.size.Tag.ID: prim.IntValue(4)},
	}
	_, err = f.builder().LibraryInstance(sized).Build()
	require.NoError(t, err)
}
