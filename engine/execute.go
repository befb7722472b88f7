package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	utilerrors "k8s.io/apimachinery/pkg/util/errors"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/bayleafwalker/schemagraph/digest"
	"github.com/bayleafwalker/schemagraph/internal/resolver"
	"github.com/bayleafwalker/schemagraph/schema"
)

// Execute validates the post-state of tx and commits it atomically. On
// failure the graph is unchanged and the returned error aggregates every
// failure found. The transaction is closed either way.
func (e *Engine) Execute(ctx context.Context, tx *Tx) (Change, error) {
	if tx.e != e {
		return Change{}, newError(ErrTxClosed, schema.NilUid, "transaction %s belongs to another engine", tx.id)
	}
	if tx.closed {
		return Change{}, newError(ErrTxClosed, schema.NilUid, "transaction %s was already executed or discarded", tx.id)
	}
	tx.closed = true
	if err := e.reentrant("Execute"); err != nil {
		return Change{}, err
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	ctx, span := e.tracer.Start(ctx, "engine.Execute", trace.WithAttributes(attribute.String("tx.id", tx.id.String())))
	defer span.End()
	start := time.Now()
	defer func() { e.metrics.executeDuration.Observe(time.Since(start).Seconds()) }()

	if err := e.usable(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Change{}, err
	}

	changes, err := e.validate(tx)
	if err != nil {
		e.metrics.rollbacks.WithLabelValues(reason(err)).Inc()
		e.log.V(1).Info("rollback", "tx", tx.id.String(), "reason", err.Error())
		span.RecordError(err)
		span.SetStatus(codes.Error, "rolled back")
		return Change{}, err
	}

	c := e.commit(tx.id, changes)
	span.SetAttributes(
		attribute.Int("change.created", len(c.Created)),
		attribute.Int("change.removed", len(c.Removed)),
		attribute.Int("change.mutated", len(c.Mutated)),
	)
	e.notify(c)
	return c, nil
}

// usable reports why the engine refuses mutations. Callers hold writeMu.
func (e *Engine) usable(ctx context.Context) error {
	if e.poisoned != nil {
		return e.poisoned
	}
	return ctx.Err()
}

func (e *Engine) commit(txID schema.Uid, changes []change) Change {
	e.mu.Lock()
	for i := range changes {
		if changes[i].before == nil {
			changes[i].seq = e.state.nextSeq
			e.state.nextSeq++
		}
	}
	versions := e.state.apply(changes, true)
	e.history.record(&entry{tx: txID, changes: changes, versions: versions})
	n := len(e.state.instances)
	e.mu.Unlock()

	c := summarize(txID, OriginCommit, changes, true)
	e.metrics.commits.Inc()
	e.metrics.instances.Set(float64(n))
	e.log.V(1).Info("commit", "tx", txID.String(), "created", len(c.Created), "removed", len(c.Removed), "mutated", len(c.Mutated))
	return c
}

// view is the post-state of a transaction over the committed state.
type view struct {
	base    *state
	staged  map[schema.Uid]*schema.Instance
	removed sets.Set[schema.Uid]
}

func (v *view) Instance(id schema.Uid) (*schema.Instance, bool) {
	if v.removed.Has(id) {
		return nil, false
	}
	if inst, ok := v.staged[id]; ok {
		return inst, true
	}
	return v.base.Instance(id)
}

// cascadeHit records that a removal stripped edges from a host slot.
type cascadeHit struct {
	host, slot schema.Uid
}

// validate runs the pipeline on tx: conflicts, cascade and referential
// integrity, shape checks and the fulfillment sweep. It returns the changes
// to commit. Callers hold writeMu, so the committed state cannot move.
func (e *Engine) validate(tx *Tx) ([]change, error) {
	errs := append([]error(nil), tx.errs...)

	for _, id := range tx.touched {
		want, ok := tx.captured[id]
		if !ok {
			continue
		}
		got, live := e.state.versions[id]
		if (want == 0 && live) || (want != 0 && got != want) {
			errs = append(errs, newError(ErrTxConflict, id, "instance changed after the transaction read it"))
		}
	}
	if len(errs) > 0 && containsKind(errs, ErrTxConflict) {
		return nil, utilerrors.NewAggregate(errs)
	}

	v := &view{base: e.state, staged: tx.staged, removed: tx.removed}
	cascaded, cascadeErrs := e.cascade(tx, v)
	errs = append(errs, cascadeErrs...)

	misshapen := sets.New[schema.Uid]()
	for _, id := range tx.touched {
		if inst, ok := tx.staged[id]; ok {
			if shapeErrs := e.checkShape(inst, v, tx.removed); len(shapeErrs) > 0 {
				misshapen.Insert(id)
				errs = append(errs, shapeErrs...)
			}
		}
	}

	// Fulfillment is only meaningful for instances whose fields and edges
	// are well formed.
	for _, id := range tx.touched {
		if _, ok := tx.staged[id]; !ok || misshapen.Has(id) || e.incompleteAfter(tx, id) {
			continue
		}
		f, err := digest.Fulfill(e.schema, v, id)
		if err != nil {
			errs = append(errs, newError(ErrUnknownUid, id, "%v", err))
			continue
		}
		for _, slot := range f.Unfulfilled {
			kind := ErrCardinalityUnfulfilled
			if cascaded.Has(cascadeHit{host: id, slot: slot.Slot.Tag.ID}) && !slot.Bounds.HasZeroCase() {
				kind = ErrCascadeWouldOrphan
			}
			errs = append(errs, &Error{Kind: kind, Instance: id, Slot: slot.Slot.Tag.ID,
				Detail: fmt.Sprintf("slot %s holds %d, needs %s", slot.Slot.Tag, len(slot.Related), slot.Bounds)})
		}
		for _, fc := range f.MissingFields {
			errs = append(errs, &Error{Kind: ErrCardinalityUnfulfilled, Instance: id, Field: fc.Tag.ID,
				Detail: fmt.Sprintf("field %s has no value", fc.Tag)})
		}
	}
	if err := utilerrors.NewAggregate(errs); err != nil {
		return nil, err
	}

	var changes []change
	for _, id := range tx.touched {
		before := e.state.instances[id]
		after := tx.staged[id]
		if before == nil && after == nil {
			continue
		}
		changes = append(changes, change{
			id:            id,
			seq:           e.state.seqs[id],
			before:        before,
			after:         after,
			wasIncomplete: e.state.incomplete.Has(id),
			isIncomplete:  after != nil && e.incompleteAfter(tx, id),
		})
	}
	return changes, nil
}

func (e *Engine) incompleteAfter(tx *Tx, id schema.Uid) bool {
	if v, ok := tx.incomplete[id]; ok {
		return v
	}
	return e.state.incomplete.Has(id)
}

// cascade resolves every edge that refers to a removed instance. Depending
// on the config the edge is stripped from its host, or reported dangling.
func (e *Engine) cascade(tx *Tx, v *view) (sets.Set[cascadeHit], []error) {
	hits := sets.New[cascadeHit]()
	var errs []error
	for _, removed := range schema.SortUids(tx.removed.UnsortedList()) {
		hosts := sets.New[schema.Uid]()
		for _, r := range e.state.index.Referrers(removed) {
			hosts.Insert(r.Host)
		}
		for id := range tx.staged {
			hosts.Insert(id)
		}
		for _, host := range schema.SortUids(hosts.UnsortedList()) {
			inst, ok := v.Instance(host)
			if !ok {
				continue
			}
			for _, slot := range schema.SortUids(keys(inst.SlotEdges)) {
				if !contains(inst.SlotEdges[slot], removed) {
					continue
				}
				if !e.cfg.AutoCascadeRemove && e.cfg.RejectOnDanglingEdge {
					errs = append(errs, &Error{Kind: ErrDanglingEdge, Instance: host, Slot: slot, Related: removed,
						Detail: "edge refers to a removed instance"})
					continue
				}
				staged, _ := tx.load(host)
				staged.SlotEdges[slot] = without(staged.SlotEdges[slot], removed)
				if e.cfg.AutoCascadeRemove {
					hits.Insert(cascadeHit{host: host, slot: slot})
				}
			}
		}
	}
	return hits, errs
}

// checkShape validates the fields and edges of one staged instance.
func (e *Engine) checkShape(inst *schema.Instance, v *view, removed sets.Set[schema.Uid]) []error {
	od, err := e.schema.OperativeDigest(inst.Operative)
	if err != nil {
		return []error{newError(ErrUnknownUid, inst.ID, "operative %s does not exist", inst.Operative)}
	}
	locks, err := e.schema.LockedFieldsDigest(inst.Operative)
	if err != nil {
		return []error{newError(ErrUnknownUid, inst.ID, "operative %s does not exist", inst.Operative)}
	}

	var errs []error
	for _, id := range schema.SortUids(keys(inst.LockedFields)) {
		value := inst.LockedFields[id]
		if lock, ok := locks.Lookup(id); ok {
			errs = append(errs, &Error{Kind: ErrFieldLocked, Instance: inst.ID, Field: id,
				Detail: fmt.Sprintf("field %s is locked by %s", lock.Field.Tag, lock.HostingElement)})
			continue
		}
		fc, ok := unlockedField(locks, id)
		if !ok {
			errs = append(errs, &Error{Kind: ErrUnknownUid, Instance: inst.ID, Field: id, Detail: "the root template declares no such field"})
			continue
		}
		if !value.Matches(fc.Type) {
			errs = append(errs, &Error{Kind: ErrTypeMismatch, Instance: inst.ID, Field: id,
				Detail: fmt.Sprintf("value %s does not match %s", value, fc.Type)})
		}
	}

	for _, slotID := range schema.SortUids(keys(inst.SlotEdges)) {
		slot, ok := od.Slot(slotID)
		if !ok {
			errs = append(errs, &Error{Kind: ErrUnknownUid, Instance: inst.ID, Slot: slotID, Detail: "the root template declares no such slot"})
			continue
		}
		seen := sets.New[schema.Uid]()
		for _, r := range slot.Related {
			seen.Insert(r.ID)
		}
		for _, child := range inst.SlotEdges[slotID] {
			if seen.Has(child) {
				errs = append(errs, &Error{Kind: ErrDuplicateEdge, Instance: inst.ID, Slot: slotID, Related: child, Detail: "child appears twice in the slot"})
				continue
			}
			seen.Insert(child)
			c, ok := e.child(v, child)
			if !ok {
				if !removed.Has(child) {
					errs = append(errs, &Error{Kind: ErrDanglingEdge, Instance: inst.ID, Slot: slotID, Related: child, Detail: "no live or library instance with this id"})
				}
				continue
			}
			if why := resolver.Explain(e.schema, slot.Descriptor, c.Operative); why != "" {
				errs = append(errs, &Error{Kind: ErrDescriptorMismatch, Instance: inst.ID, Slot: slotID, Related: child, Detail: why})
			}
		}
	}
	return errs
}

// child resolves the target of an edge: a live instance in the post-state
// of the transaction, or an instance baked into the schema.
func (e *Engine) child(v *view, id schema.Uid) (*schema.Instance, bool) {
	if inst, ok := v.Instance(id); ok {
		return inst, true
	}
	return e.schema.LibraryInstance(id)
}

func unlockedField(d schema.LockedFieldsDigest, id schema.Uid) (schema.FieldConstraint, bool) {
	for _, fc := range d.Unlocked {
		if fc.Tag.ID == id {
			return fc, true
		}
	}
	return schema.FieldConstraint{}, false
}

func containsKind(errs []error, kind error) bool {
	for _, err := range errs {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

func keys[V any](m map[schema.Uid]V) []schema.Uid {
	out := make([]schema.Uid, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func contains(ids []schema.Uid, id schema.Uid) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func without(ids []schema.Uid, id schema.Uid) []schema.Uid {
	out := make([]schema.Uid, 0, len(ids))
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
