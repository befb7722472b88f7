package engine

import (
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/bayleafwalker/schemagraph/prim"
	"github.com/bayleafwalker/schemagraph/schema"
)

// Tx stages edits against an engine. Nothing is visible to readers until
// Execute commits it; a Tx that is never executed is simply dropped.
// Staging errors are collected and reported by Execute together with every
// validation failure. A Tx is not safe for concurrent use.
type Tx struct {
	e  *Engine
	id schema.Uid

	staged  map[schema.Uid]*schema.Instance
	removed sets.Set[schema.Uid]
	// touched keeps first-touch order so commits are deterministic.
	touched    []schema.Uid
	created    sets.Set[schema.Uid]
	captured   map[schema.Uid]uint64
	incomplete map[schema.Uid]bool

	errs   []error
	closed bool
}

// Begin opens a transaction.
func (e *Engine) Begin() *Tx {
	return &Tx{
		e:          e,
		id:         schema.NewUid(),
		staged:     map[schema.Uid]*schema.Instance{},
		removed:    sets.New[schema.Uid](),
		created:    sets.New[schema.Uid](),
		captured:   map[schema.Uid]uint64{},
		incomplete: map[schema.Uid]bool{},
	}
}

func (tx *Tx) ID() schema.Uid { return tx.id }

func (tx *Tx) fail(err error) {
	tx.errs = append(tx.errs, err)
}

func (tx *Tx) touch(id schema.Uid) {
	if _, ok := tx.staged[id]; ok || tx.removed.Has(id) {
		return
	}
	tx.touched = append(tx.touched, id)
}

// load returns the staged copy of a live instance, copying it from the
// engine on first use.
func (tx *Tx) load(id schema.Uid) (*schema.Instance, bool) {
	if tx.removed.Has(id) {
		return nil, false
	}
	if inst, ok := tx.staged[id]; ok {
		return inst, true
	}
	tx.e.mu.RLock()
	inst, ok := tx.e.state.instances[id]
	version := tx.e.state.versions[id]
	tx.e.mu.RUnlock()
	if !ok {
		return nil, false
	}
	tx.touch(id)
	c := inst.Clone()
	tx.staged[id] = c
	tx.captured[id] = version
	return c, true
}

func (tx *Tx) usable() bool {
	if tx.closed {
		tx.fail(newError(ErrTxClosed, schema.NilUid, "transaction %s was already executed or discarded", tx.id))
		return false
	}
	return true
}

// Create stages a new, empty instance of operative op and returns its id.
func (tx *Tx) Create(op schema.Uid) schema.Uid {
	inst := schema.NewInstance(op)
	if !tx.usable() {
		return inst.ID
	}
	if _, ok := tx.e.schema.Operative(op); !ok {
		tx.fail(newError(ErrUnknownUid, inst.ID, "operative %s does not exist", op))
	}
	tx.touch(inst.ID)
	tx.staged[inst.ID] = inst
	tx.created.Insert(inst.ID)
	return inst.ID
}

// Insert stages a complete instance under its own id. The id must not be
// live unless the same transaction removed it first.
func (tx *Tx) Insert(inst *schema.Instance) {
	if !tx.usable() {
		return
	}
	if _, ok := tx.staged[inst.ID]; ok {
		tx.fail(newError(ErrDuplicateInstance, inst.ID, "instance is already staged"))
		return
	}
	if _, ok := tx.e.schema.LibraryInstance(inst.ID); ok {
		tx.fail(newError(ErrDuplicateInstance, inst.ID, "id belongs to a library instance"))
		return
	}
	if !tx.removed.Has(inst.ID) {
		tx.e.mu.RLock()
		_, live := tx.e.state.instances[inst.ID]
		tx.e.mu.RUnlock()
		if live {
			tx.fail(newError(ErrDuplicateInstance, inst.ID, "instance is already live"))
			return
		}
		tx.captured[inst.ID] = 0
		tx.touch(inst.ID)
		tx.created.Insert(inst.ID)
	}
	tx.removed.Delete(inst.ID)
	c := inst.Clone()
	if c.LockedFields == nil {
		c.LockedFields = map[schema.Uid]prim.Value{}
	}
	if c.SlotEdges == nil {
		c.SlotEdges = map[schema.Uid][]schema.Uid{}
	}
	tx.staged[inst.ID] = c
}

// Remove stages the removal of id. Edges referring to it are handled by
// Execute according to the engine config.
func (tx *Tx) Remove(id schema.Uid) {
	if !tx.usable() {
		return
	}
	if _, ok := tx.load(id); !ok {
		tx.fail(newError(ErrUnknownUid, id, "no live instance to remove"))
		return
	}
	delete(tx.staged, id)
	delete(tx.incomplete, id)
	tx.removed.Insert(id)
}

// MarkIncomplete exempts id from the fulfillment sweep until a later
// transaction marks it complete.
func (tx *Tx) MarkIncomplete(id schema.Uid) {
	tx.setIncomplete(id, true)
}

// MarkComplete subjects id to the fulfillment sweep again.
func (tx *Tx) MarkComplete(id schema.Uid) {
	tx.setIncomplete(id, false)
}

func (tx *Tx) setIncomplete(id schema.Uid, v bool) {
	if !tx.usable() {
		return
	}
	if _, ok := tx.load(id); !ok {
		tx.fail(newError(ErrUnknownUid, id, "no live instance to mark"))
		return
	}
	tx.incomplete[id] = v
}

// Reparent moves child from one slot position to another, possibly on
// another host. Both positions are validated as for Detach and Attach.
func (tx *Tx) Reparent(child, fromHost, fromSlot, toHost, toSlot schema.Uid) {
	tx.Edit(fromHost).Detach(fromSlot, child)
	tx.Edit(toHost).Attach(toSlot, child)
}

// Discard closes the transaction without executing it.
func (tx *Tx) Discard() {
	tx.closed = true
	tx.staged, tx.touched = nil, nil
}

// Editor stages edits on one instance.
type Editor struct {
	tx   *Tx
	id   schema.Uid
	inst *schema.Instance
}

// Edit returns an editor for id. Edits on an unknown id are reported by
// Execute.
func (tx *Tx) Edit(id schema.Uid) *Editor {
	ed := &Editor{tx: tx, id: id}
	if !tx.usable() {
		return ed
	}
	inst, ok := tx.load(id)
	if !ok {
		tx.fail(newError(ErrUnknownUid, id, "no live instance to edit"))
		return ed
	}
	ed.inst = inst
	return ed
}

// ok reports whether the editor may still stage edits. Once its transaction
// is closed the staged copy may be committed state and must not change.
func (ed *Editor) ok() bool {
	return ed.tx.usable() && ed.inst != nil
}

// SetField sets the value of a field the operative chain leaves unlocked.
func (ed *Editor) SetField(field schema.Uid, v prim.Value) *Editor {
	if ed.ok() {
		ed.inst.LockedFields[field] = v
	}
	return ed
}

// ClearField removes an instance-supplied field value.
func (ed *Editor) ClearField(field schema.Uid) *Editor {
	if ed.ok() {
		delete(ed.inst.LockedFields, field)
	}
	return ed
}

// Attach appends child to the edges of slot.
func (ed *Editor) Attach(slot, child schema.Uid) *Editor {
	if ed.ok() {
		ed.inst.SlotEdges[slot] = append(ed.inst.SlotEdges[slot], child)
	}
	return ed
}

// Detach removes the first edge from slot to child.
func (ed *Editor) Detach(slot, child schema.Uid) *Editor {
	if !ed.ok() {
		return ed
	}
	edges := ed.inst.SlotEdges[slot]
	for i, c := range edges {
		if c == child {
			edges = append(edges[:i:i], edges[i+1:]...)
			if len(edges) == 0 {
				delete(ed.inst.SlotEdges, slot)
			} else {
				ed.inst.SlotEdges[slot] = edges
			}
			return ed
		}
	}
	ed.tx.fail(&Error{Kind: ErrUnknownUid, Instance: ed.id, Slot: slot, Related: child, Detail: "no such edge to detach"})
	return ed
}
