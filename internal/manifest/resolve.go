package manifest

import (
	"k8s.io/apimachinery/pkg/util/sets"
	"k8s.io/apimachinery/pkg/util/validation/field"

	"github.com/bayleafwalker/schemagraph/api/v1alpha1"
	"github.com/bayleafwalker/schemagraph/prim"
	"github.com/bayleafwalker/schemagraph/schema"
)

const (
	kindTemplate        = "template"
	kindTrait           = "trait"
	kindOperative       = "operative"
	kindLibraryInstance = "libraryInstance"
	kindField           = "field"
	kindSlot            = "slot"
	kindMethod          = "method"
	kindDescriptor      = "descriptor"
)

// scope resolves names of one entity kind, or of the members of one entity.
type scope struct {
	byName map[string]schema.Uid
	ids    sets.Set[schema.Uid]
}

func newScope() *scope {
	return &scope{byName: map[string]schema.Uid{}, ids: sets.New[schema.Uid]()}
}

// lookup resolves ref as a declared name first, then as a declared id.
func (s *scope) lookup(ref string) (schema.Uid, bool) {
	if id, ok := s.byName[ref]; ok {
		return id, true
	}
	id, err := schema.ParseUid(ref)
	if err != nil || !s.ids.Has(id) {
		return schema.NilUid, false
	}
	return id, true
}

type resolver struct {
	entities map[string]*scope
	// members of templates (fields and slots share one scope per kind) and
	// of traits, keyed by owner id.
	fields  map[schema.Uid]*scope
	slots   map[schema.Uid]*scope
	methods map[schema.Uid]*scope
	// operative id to the template it roots.
	roots map[schema.Uid]schema.Uid

	errs field.ErrorList
}

func newResolver() *resolver {
	r := &resolver{
		entities: map[string]*scope{},
		fields:   map[schema.Uid]*scope{},
		slots:    map[schema.Uid]*scope{},
		methods:  map[schema.Uid]*scope{},
		roots:    map[schema.Uid]schema.Uid{},
	}
	for _, k := range []string{kindTemplate, kindTrait, kindOperative, kindLibraryInstance} {
		r.entities[k] = newScope()
	}
	return r
}

// declare assigns an id to a named entity and records it in sc.
func (r *resolver) declare(sc *scope, kind, qualified, rawID, name string, path *field.Path) (schema.Uid, bool) {
	if name == "" {
		r.errs = append(r.errs, field.Required(path.Child("name"), "every entity needs a name"))
		return schema.NilUid, false
	}
	id := DeriveID(kind, qualified)
	if rawID != "" {
		parsed, err := schema.ParseUid(rawID)
		if err != nil {
			r.errs = append(r.errs, field.Invalid(path.Child("id"), rawID, err.Error()))
			return schema.NilUid, false
		}
		id = parsed
	}
	if _, dup := sc.byName[name]; dup {
		r.errs = append(r.errs, field.Duplicate(path.Child("name"), name))
		return schema.NilUid, false
	}
	sc.byName[name] = id
	sc.ids.Insert(id)
	return id, true
}

// index declares every entity and member so that forward references resolve.
func (r *resolver) index(spec *v1alpha1.SchemaDocumentSpec, path *field.Path) {
	for i := range spec.Templates {
		t := &spec.Templates[i]
		p := path.Child("templates").Index(i)
		id, ok := r.declare(r.entities[kindTemplate], kindTemplate, t.Name, t.ID, t.Name, p)
		if !ok {
			continue
		}
		fields, slots := newScope(), newScope()
		for j, f := range t.Fields {
			r.declare(fields, kindField, t.Name+"."+f.Name, f.ID, f.Name, p.Child("fields").Index(j))
		}
		for j, s := range t.Slots {
			r.declare(slots, kindSlot, t.Name+"."+s.Name, s.ID, s.Name, p.Child("slots").Index(j))
		}
		r.fields[id], r.slots[id] = fields, slots
	}
	for i := range spec.Traits {
		t := &spec.Traits[i]
		p := path.Child("traits").Index(i)
		id, ok := r.declare(r.entities[kindTrait], kindTrait, t.Name, t.ID, t.Name, p)
		if !ok {
			continue
		}
		methods := newScope()
		for j, m := range t.Methods {
			r.declare(methods, kindMethod, t.Name+"."+m.Name, m.ID, m.Name, p.Child("methods").Index(j))
		}
		r.methods[id] = methods
	}
	for i := range spec.Operatives {
		o := &spec.Operatives[i]
		p := path.Child("operatives").Index(i)
		id, ok := r.declare(r.entities[kindOperative], kindOperative, o.Name, o.ID, o.Name, p)
		if !ok {
			continue
		}
		if root, ok := r.entities[kindTemplate].lookup(o.RootTemplate); ok {
			r.roots[id] = root
		}
	}
	for i := range spec.LibraryInstances {
		rec := &spec.LibraryInstances[i]
		p := path.Child("libraryInstances").Index(i)
		// A library instance is named by its id; anything that is not a uid
		// becomes a derived one.
		sc := r.entities[kindLibraryInstance]
		if _, err := schema.ParseUid(rec.ID); err == nil {
			r.declare(sc, kindLibraryInstance, rec.ID, rec.ID, rec.ID, p)
		} else {
			r.declare(sc, kindLibraryInstance, rec.ID, "", rec.ID, p)
		}
	}
}

func (r *resolver) ref(kind, ref string, path *field.Path) (schema.Uid, bool) {
	if ref == "" {
		r.errs = append(r.errs, field.Required(path, "a "+kind+" reference is required"))
		return schema.NilUid, false
	}
	id, ok := r.entities[kind].lookup(ref)
	if !ok {
		r.errs = append(r.errs, field.NotFound(path, ref))
	}
	return id, ok
}

func (r *resolver) member(sc *scope, ref string, path *field.Path) (schema.Uid, bool) {
	if sc == nil {
		return schema.NilUid, false
	}
	id, ok := sc.lookup(ref)
	if !ok {
		r.errs = append(r.errs, field.NotFound(path, ref))
	}
	return id, ok
}

func (r *resolver) template(spec *v1alpha1.TemplateSpec, path *field.Path) (schema.Template, bool) {
	id, ok := r.entities[kindTemplate].lookup(spec.Name)
	if !ok {
		return schema.Template{}, false
	}
	t := schema.Template{Tag: schema.Tag{ID: id, Name: spec.Name}}
	for i, f := range spec.Fields {
		p := path.Child("fields").Index(i)
		fid, ok := r.fields[id].lookup(f.Name)
		if !ok {
			continue
		}
		fc := schema.FieldConstraint{Tag: schema.Tag{ID: fid, Name: f.Name}, Type: parseType(f.Type, p.Child("type"), &r.errs)}
		if f.Locked != nil {
			if v, ok := parseValue(*f.Locked, p.Child("locked"), &r.errs); ok {
				fc.Locked = &v
			}
		}
		t.Fields = append(t.Fields, fc)
	}
	for i, s := range spec.Slots {
		p := path.Child("slots").Index(i)
		sid, ok := r.slots[id].lookup(s.Name)
		if !ok {
			continue
		}
		desc, dok := r.descriptor(s.Descriptor, p.Child("descriptor"))
		b, bok := bounds(s.Bounds, p.Child("bounds"), &r.errs)
		if dok && bok {
			t.Slots = append(t.Slots, schema.OperativeSlot{Tag: schema.Tag{ID: sid, Name: s.Name}, Descriptor: desc, Bounds: b})
		}
	}
	return t, true
}

func (r *resolver) descriptor(spec v1alpha1.DescriptorSpec, path *field.Path) (schema.Descriptor, bool) {
	switch {
	case spec.Operative != "" && len(spec.Traits) > 0:
		r.errs = append(r.errs, field.Invalid(path, spec, "set either operative or traits, not both"))
		return nil, false
	case spec.Operative != "":
		id, ok := r.ref(kindOperative, spec.Operative, path.Child("operative"))
		return schema.LibraryOperative{Operative: id}, ok
	case len(spec.Traits) > 0:
		ids := make([]schema.Uid, 0, len(spec.Traits))
		ok := true
		for i, ref := range spec.Traits {
			id, found := r.ref(kindTrait, ref, path.Child("traits").Index(i))
			ok = ok && found
			ids = append(ids, id)
		}
		tag := schema.Tag{Name: spec.Name}
		if spec.Name != "" {
			tag.ID = DeriveID(kindDescriptor, spec.Name)
		}
		return schema.NewTraitOperative(tag, ids...), ok
	default:
		r.errs = append(r.errs, field.Required(path, "set operative or traits"))
		return nil, false
	}
}

func (r *resolver) trait(spec *v1alpha1.TraitSpec, path *field.Path) (schema.Trait, bool) {
	id, ok := r.entities[kindTrait].lookup(spec.Name)
	if !ok {
		return schema.Trait{}, false
	}
	t := schema.Trait{Tag: schema.Tag{ID: id, Name: spec.Name}}
	for i, m := range spec.Methods {
		p := path.Child("methods").Index(i)
		mid, ok := r.methods[id].lookup(m.Name)
		if !ok {
			continue
		}
		method := schema.Method{
			Tag:        schema.Tag{ID: mid, Name: m.Name},
			ReturnType: parseType(m.ReturnType, p.Child("returnType"), &r.errs),
		}
		for j, a := range m.Args {
			method.Args = append(method.Args, schema.MethodArg{Name: a.Name, Type: parseType(a.Type, p.Child("args").Index(j).Child("type"), &r.errs)})
		}
		t.Methods = append(t.Methods, method)
	}
	return t, true
}

func (r *resolver) operative(spec *v1alpha1.OperativeSpec, path *field.Path) (schema.Operative, bool) {
	id, ok := r.entities[kindOperative].lookup(spec.Name)
	if !ok {
		return schema.Operative{}, false
	}
	o := schema.Operative{
		Tag:                            schema.Tag{ID: id, Name: spec.Name},
		LockedFields:                   map[schema.Uid]prim.Value{},
		SlotTypeSpecializations:        map[schema.Uid]schema.Descriptor{},
		SlotCardinalitySpecializations: map[schema.Uid]schema.SlotBounds{},
		TraitImpls:                     map[schema.Uid]schema.TraitImpl{},
		BakedEdges:                     map[schema.Uid][]schema.Uid{},
	}
	root, ok := r.ref(kindTemplate, spec.RootTemplate, path.Child("rootTemplate"))
	if !ok {
		return schema.Operative{}, false
	}
	o.RootTemplate = root
	if spec.Parent != "" {
		o.Parent, _ = r.ref(kindOperative, spec.Parent, path.Child("parent"))
	}

	fields, slots := r.fields[root], r.slots[root]
	for _, key := range sortedKeys(spec.LockedFields) {
		p := path.Child("lockedFields").Key(key)
		fid, ok := r.member(fields, key, p)
		if !ok {
			continue
		}
		if v, ok := parseValue(spec.LockedFields[key], p, &r.errs); ok {
			o.LockedFields[fid] = v
		}
	}
	for _, key := range sortedKeys(spec.SlotTypeSpecializations) {
		p := path.Child("slotTypeSpecializations").Key(key)
		sid, ok := r.member(slots, key, p)
		if !ok {
			continue
		}
		if d, ok := r.descriptor(spec.SlotTypeSpecializations[key], p); ok {
			o.SlotTypeSpecializations[sid] = d
		}
	}
	for _, key := range sortedKeys(spec.SlotCardinalitySpecializations) {
		p := path.Child("slotCardinalitySpecializations").Key(key)
		sid, ok := r.member(slots, key, p)
		if !ok {
			continue
		}
		if b, ok := bounds(spec.SlotCardinalitySpecializations[key], p, &r.errs); ok {
			o.SlotCardinalitySpecializations[sid] = b
		}
	}
	for _, key := range sortedKeys(spec.TraitImpls) {
		p := path.Child("traitImpls").Key(key)
		tid, ok := r.ref(kindTrait, key, p)
		if !ok {
			continue
		}
		impl := schema.TraitImpl{Methods: map[schema.Uid]schema.MethodImpl{}}
		methods := spec.TraitImpls[key].Methods
		for _, mkey := range sortedKeys(methods) {
			mp := p.Child("methods").Key(mkey)
			mid, ok := r.member(r.methods[tid], mkey, mp)
			if !ok {
				continue
			}
			impl.Methods[mid] = schema.MethodImpl{
				ReturnType: parseType(methods[mkey].ReturnType, mp.Child("returnType"), &r.errs),
				Body:       methods[mkey].Body,
			}
		}
		o.TraitImpls[tid] = impl
	}
	for _, key := range sortedKeys(spec.BakedEdges) {
		p := path.Child("bakedEdges").Key(key)
		sid, ok := r.member(slots, key, p)
		if !ok {
			continue
		}
		o.BakedEdges[sid] = r.instanceRefs(spec.BakedEdges[key], p)
	}
	return o, true
}

func (r *resolver) instanceRefs(refs []string, path *field.Path) []schema.Uid {
	out := make([]schema.Uid, 0, len(refs))
	for i, ref := range refs {
		if id, ok := r.ref(kindLibraryInstance, ref, path.Index(i)); ok {
			out = append(out, id)
		}
	}
	return out
}

func (r *resolver) libraryInstance(rec *v1alpha1.InstanceRecord, path *field.Path) (schema.Instance, bool) {
	id, ok := r.entities[kindLibraryInstance].lookup(rec.ID)
	if !ok {
		return schema.Instance{}, false
	}
	op, ok := r.ref(kindOperative, rec.OperativeID, path.Child("operativeId"))
	if !ok {
		return schema.Instance{}, false
	}
	inst := schema.NewInstance(op)
	inst.ID = id
	root := r.roots[op]
	for _, key := range sortedKeys(rec.LockedFields) {
		p := path.Child("lockedFields").Key(key)
		fid, ok := r.member(r.fields[root], key, p)
		if !ok {
			continue
		}
		if v, ok := parseValue(rec.LockedFields[key], p, &r.errs); ok {
			inst.LockedFields[fid] = v
		}
	}
	for _, key := range sortedKeys(rec.SlotEdges) {
		p := path.Child("slotEdges").Key(key)
		if sid, ok := r.member(r.slots[root], key, p); ok {
			inst.SlotEdges[sid] = r.instanceRefs(rec.SlotEdges[key], p)
		}
	}
	return *inst, true
}

func sortedKeys[V any](m map[string]V) []string {
	return sets.List(sets.KeySet(m))
}
