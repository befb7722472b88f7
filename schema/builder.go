package schema

import (
	"fmt"
	"sort"
	"strings"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Builder accumulates schema entities and validates them as a whole on Build.
// Adding an entity whose id is already present replaces it.
type Builder struct {
	templates  map[Uid]*Template
	operatives map[Uid]*Operative
	traits     map[Uid]*Trait
	instances  map[Uid]*Instance

	kinds map[Uid]string
	errs  []error
}

func NewBuilder() *Builder {
	return &Builder{
		templates:  map[Uid]*Template{},
		operatives: map[Uid]*Operative{},
		traits:     map[Uid]*Trait{},
		instances:  map[Uid]*Instance{},
		kinds:      map[Uid]string{},
	}
}

func (b *Builder) claim(id Uid, kind string) bool {
	if id.IsZero() {
		b.errs = append(b.errs, newError(ErrMissingReference, field.NewPath(kind), "entity has a nil id"))
		return false
	}
	if prev, ok := b.kinds[id]; ok && prev != kind {
		b.errs = append(b.errs, newError(ErrDuplicateID, field.NewPath(kind).Key(id.String()), "id is already used by a %s", prev))
		return false
	}
	b.kinds[id] = kind
	return true
}

func (b *Builder) Template(t Template) *Builder {
	if b.claim(t.Tag.ID, "templates") {
		c := t.clone()
		b.templates[t.Tag.ID] = &c
	}
	return b
}

func (b *Builder) Operative(o Operative) *Builder {
	if b.claim(o.Tag.ID, "operatives") {
		c := o.clone()
		b.operatives[o.Tag.ID] = &c
	}
	return b
}

func (b *Builder) Trait(t Trait) *Builder {
	if b.claim(t.Tag.ID, "traits") {
		c := t.clone()
		b.traits[t.Tag.ID] = &c
	}
	return b
}

// LibraryInstance adds an instance owned by the schema. Operatives may bake
// edges to it into their slots.
func (b *Builder) LibraryInstance(i Instance) *Builder {
	if b.claim(i.ID, "libraryInstances") {
		b.instances[i.ID] = i.Clone()
	}
	return b
}

// Remove drops the entity with the given id, whatever its kind.
func (b *Builder) Remove(id Uid) *Builder {
	delete(b.templates, id)
	delete(b.operatives, id)
	delete(b.traits, id)
	delete(b.instances, id)
	delete(b.kinds, id)
	return b
}

// Build validates every entity and returns the resulting snapshot. All
// failures are reported together as an aggregate of *Error values.
func (b *Builder) Build() (*Schema, error) {
	s := &Schema{
		revision:   NewUid(),
		templates:  make(map[Uid]*Template, len(b.templates)),
		operatives: make(map[Uid]*Operative, len(b.operatives)),
		traits:     make(map[Uid]*Trait, len(b.traits)),
		instances:  make(map[Uid]*Instance, len(b.instances)),
		chains:     map[Uid][]Uid{},
		traitImpls: map[Uid]map[Uid]TraitImplEntry{},
		folds:      map[Uid]*fold{},
	}
	for id, t := range b.templates {
		c := t.clone()
		s.templates[id] = &c
	}
	for id, o := range b.operatives {
		c := o.clone()
		s.operatives[id] = &c
	}
	for id, t := range b.traits {
		c := t.clone()
		s.traits[id] = &c
	}
	for id, i := range b.instances {
		s.instances[id] = i.Clone()
	}

	errs := append([]error(nil), b.errs...)
	errs = append(errs, s.validate()...)
	if err := utilerrors.NewAggregate(errs); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Schema) validate() []error {
	var errs []error
	for _, t := range s.Templates() {
		errs = append(errs, s.validateTemplate(t)...)
	}
	for _, t := range s.Traits() {
		errs = append(errs, validateTrait(t)...)
	}
	errs = append(errs, s.resolveChains()...)

	ordered := s.chainOrder()
	for _, id := range ordered {
		errs = append(errs, s.foldTraitImpls(s.operatives[id])...)
	}
	for _, id := range ordered {
		op := s.operatives[id]
		var parent *fold
		if op.HasParent() {
			p, ok := s.folds[op.Parent]
			if !ok {
				continue
			}
			parent = p
		} else {
			parent = templateFold(s.templates[op.RootTemplate])
		}
		f, foldErrs := s.applyOperative(parent, op)
		errs = append(errs, foldErrs...)
		s.folds[id] = f
	}
	for _, inst := range s.LibraryInstances() {
		errs = append(errs, s.validateLibraryInstance(inst)...)
	}
	s.warnings = s.traitCycleWarnings()
	return errs
}

func (s *Schema) validateTemplate(t *Template) []error {
	var errs []error
	path := field.NewPath("templates").Key(t.Tag.ID.String())
	seen := map[Uid]bool{}
	for _, fc := range t.Fields {
		p := path.Child("fields").Key(fc.Tag.ID.String())
		if seen[fc.Tag.ID] {
			errs = append(errs, newError(ErrDuplicateID, p, "field id declared twice"))
			continue
		}
		seen[fc.Tag.ID] = true
		if !fc.Type.IsValid() {
			errs = append(errs, newError(ErrFieldTypeMismatch, p.Child("type"), "field %q has no valid type", fc.Tag.Name))
			continue
		}
		if fc.Locked != nil && !fc.Locked.Matches(fc.Type) {
			errs = append(errs, newError(ErrFieldTypeMismatch, p.Child("locked"), "value %s does not match %s", *fc.Locked, fc.Type))
		}
	}
	for _, slot := range t.Slots {
		p := path.Child("slots").Key(slot.Tag.ID.String())
		if seen[slot.Tag.ID] {
			errs = append(errs, newError(ErrDuplicateID, p, "slot id declared twice"))
			continue
		}
		seen[slot.Tag.ID] = true
		if err := slot.Bounds.Validate(); err != nil {
			errs = append(errs, newError(ErrSlotBoundsInvalid, p.Child("bounds"), "%v", err))
		}
		errs = append(errs, s.checkDescriptorRefs(slot.Descriptor, p.Child("descriptor"))...)
	}
	return errs
}

func validateTrait(t *Trait) []error {
	var errs []error
	path := field.NewPath("traits").Key(t.Tag.ID.String())
	seen := map[Uid]bool{}
	for _, m := range t.Methods {
		p := path.Child("methods").Key(m.Tag.ID.String())
		if seen[m.Tag.ID] {
			errs = append(errs, newError(ErrDuplicateID, p, "method id declared twice"))
			continue
		}
		seen[m.Tag.ID] = true
		if !m.ReturnType.IsValid() {
			errs = append(errs, newError(ErrTraitMethodSignatureMismatch, p.Child("returnType"), "method %q has no valid return type", m.Tag.Name))
		}
		for i, arg := range m.Args {
			if !arg.Type.IsValid() {
				errs = append(errs, newError(ErrTraitMethodSignatureMismatch, p.Child("args").Index(i), "argument %q has no valid type", arg.Name))
			}
		}
	}
	return errs
}

// resolveChains records the ancestor chain of every operative whose chain is
// fully resolvable, acyclic and rooted on a single template.
func (s *Schema) resolveChains() []error {
	var errs []error
	for _, op := range s.Operatives() {
		path := field.NewPath("operatives").Key(op.Tag.ID.String())
		if _, ok := s.templates[op.RootTemplate]; !ok {
			errs = append(errs, newError(ErrMissingReference, path.Child("rootTemplate"), "template %s does not exist", op.RootTemplate))
		}
		if !op.HasParent() {
			continue
		}
		parent, ok := s.operatives[op.Parent]
		if !ok {
			errs = append(errs, newError(ErrMissingReference, path.Child("parent"), "operative %s does not exist", op.Parent))
			continue
		}
		if parent.RootTemplate != op.RootTemplate {
			errs = append(errs, newError(ErrRootTemplateMismatch, path.Child("parent"), "parent %s roots template %s, not %s", parent.Tag, parent.RootTemplate, op.RootTemplate))
		}
	}

	for _, op := range s.Operatives() {
		var chain []Uid
		seen := map[Uid]bool{}
		valid := true
		for cur := op; ; {
			if seen[cur.Tag.ID] {
				errs = append(errs, newError(ErrInheritanceCycle, field.NewPath("operatives").Key(op.Tag.ID.String()).Child("parent"), "parent chain revisits %s", cur.Tag))
				valid = false
				break
			}
			seen[cur.Tag.ID] = true
			chain = append(chain, cur.Tag.ID)
			if _, ok := s.templates[cur.RootTemplate]; !ok || cur.RootTemplate != op.RootTemplate {
				valid = false
				break
			}
			if !cur.HasParent() {
				break
			}
			next, ok := s.operatives[cur.Parent]
			if !ok {
				valid = false
				break
			}
			cur = next
		}
		if !valid {
			continue
		}
		for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
			chain[i], chain[j] = chain[j], chain[i]
		}
		s.chains[op.Tag.ID] = chain
	}
	return errs
}

// chainOrder lists operatives with resolved chains, parents before children.
func (s *Schema) chainOrder() []Uid {
	ids := make([]Uid, 0, len(s.chains))
	for id := range s.chains {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		li, lj := len(s.chains[ids[i]]), len(s.chains[ids[j]])
		if li != lj {
			return li < lj
		}
		return ids[i].Compare(ids[j]) < 0
	})
	return ids
}

// foldTraitImpls computes the trait implementations reachable from op and
// checks op's own implementations against the trait signatures. Only return
// types are compared.
func (s *Schema) foldTraitImpls(op *Operative) []error {
	var errs []error
	id := op.Tag.ID
	impls := map[Uid]TraitImplEntry{}
	if op.HasParent() {
		for k, v := range s.traitImpls[op.Parent] {
			impls[k] = v
		}
	}
	path := field.NewPath("operatives").Key(id.String()).Child("traitImpls")
	for _, traitID := range sortedKeys(op.TraitImpls) {
		impl := op.TraitImpls[traitID]
		p := path.Key(traitID.String())
		trait, ok := s.traits[traitID]
		if !ok {
			errs = append(errs, newError(ErrMissingReference, p, "trait %s does not exist", traitID))
			continue
		}
		valid := true
		for _, m := range trait.Methods {
			mi, ok := impl.Methods[m.Tag.ID]
			if !ok {
				errs = append(errs, newError(ErrTraitMethodSignatureMismatch, p.Child("methods").Key(m.Tag.ID.String()), "method %q of trait %s is not implemented", m.Tag.Name, trait.Tag))
				valid = false
				continue
			}
			if !mi.ReturnType.Equal(m.ReturnType) {
				errs = append(errs, newError(ErrTraitMethodSignatureMismatch, p.Child("methods").Key(m.Tag.ID.String()), "method %q returns %s, trait %s declares %s", m.Tag.Name, mi.ReturnType, trait.Tag, m.ReturnType))
				valid = false
			}
		}
		for _, mid := range sortedKeys(impl.Methods) {
			if _, ok := trait.Method(mid); !ok {
				errs = append(errs, newError(ErrMissingReference, p.Child("methods").Key(mid.String()), "trait %s declares no such method", trait.Tag))
				valid = false
			}
		}
		if valid {
			impls[traitID] = TraitImplEntry{Trait: traitID, Impl: impl, HostingElement: id}
		}
	}
	s.traitImpls[id] = impls
	return errs
}

func (s *Schema) validateLibraryInstance(inst *Instance) []error {
	var errs []error
	path := field.NewPath("libraryInstances").Key(inst.ID.String())
	if _, ok := s.operatives[inst.Operative]; !ok {
		return []error{newError(ErrMissingReference, path.Child("operative"), "operative %s does not exist", inst.Operative)}
	}
	f, ok := s.folds[inst.Operative]
	if !ok {
		return nil
	}
	for _, fid := range sortedKeys(inst.LockedFields) {
		val := inst.LockedFields[fid]
		p := path.Child("lockedFields").Key(fid.String())
		fc, ok := f.template.Field(fid)
		if !ok {
			errs = append(errs, newError(ErrMissingReference, p, "field is not declared on template %s", f.template.Tag))
			continue
		}
		if prev, locked := f.locked[fid]; locked {
			errs = append(errs, newError(ErrFieldRelock, p, "field %q is already locked by %s", fc.Tag.Name, prev.HostingElement))
			continue
		}
		if !val.Matches(fc.Type) {
			errs = append(errs, newError(ErrFieldTypeMismatch, p, "value %s does not match %s", val, fc.Type))
		}
	}
	for _, sid := range sortedKeys(inst.SlotEdges) {
		p := path.Child("slotEdges").Key(sid.String())
		idx := f.slotIndex(sid)
		if idx < 0 {
			errs = append(errs, newError(ErrMissingReference, p, "slot is not declared on template %s", f.template.Tag))
			continue
		}
		slot := f.slots[idx].clone()
		for i, child := range inst.SlotEdges[sid] {
			if err := s.checkLibraryEdge(&slot, child, p.Index(i)); err != nil {
				errs = append(errs, err)
				continue
			}
			slot.Related = append(slot.Related, RelatedInstance{ID: child, HostingElement: inst.ID})
		}
	}
	return errs
}

// traitCycleWarnings reports traits that transitively require themselves:
// trait T requires U when an operative implementing T has a slot whose
// effective descriptor is a TraitOperative listing U.
func (s *Schema) traitCycleWarnings() []string {
	requires := map[Uid]map[Uid]bool{}
	for _, id := range sortedKeys(s.folds) {
		f := s.folds[id]
		for trait := range f.traits {
			for _, slot := range f.slots {
				desc, ok := slot.Descriptor.(TraitOperative)
				if !ok {
					continue
				}
				if requires[trait] == nil {
					requires[trait] = map[Uid]bool{}
				}
				for next := range desc.Traits {
					requires[trait][next] = true
				}
			}
		}
	}

	var warnings []string
	for _, trait := range sortedKeys(requires) {
		path, ok := findTraitPath(requires, trait, trait, map[Uid]bool{})
		if !ok {
			continue
		}
		names := make([]string, 0, len(path)+1)
		names = append(names, s.traitName(trait))
		for _, id := range path {
			names = append(names, s.traitName(id))
		}
		warnings = append(warnings, fmt.Sprintf("trait %s transitively requires itself: %s", s.traitName(trait), strings.Join(names, " -> ")))
	}
	return warnings
}

func findTraitPath(requires map[Uid]map[Uid]bool, from, target Uid, visited map[Uid]bool) ([]Uid, bool) {
	for _, next := range sortedKeys(requires[from]) {
		if next == target {
			return []Uid{next}, true
		}
		if visited[next] {
			continue
		}
		visited[next] = true
		if rest, ok := findTraitPath(requires, next, target, visited); ok {
			return append([]Uid{next}, rest...), true
		}
	}
	return nil, false
}

func (s *Schema) traitName(id Uid) string {
	if t, ok := s.traits[id]; ok && t.Tag.Name != "" {
		return t.Tag.Name
	}
	return id.String()
}
