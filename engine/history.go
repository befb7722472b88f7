package engine

import (
	"context"
	"strings"

	"go.opentelemetry.io/otel/codes"

	"github.com/bayleafwalker/schemagraph/schema"
)

// entry is one committed transaction in the undo or redo log. versions holds
// what the last application of the entry left in the state.
type entry struct {
	tx       schema.Uid
	changes  []change
	versions map[schema.Uid]uint64
}

// history is a bounded undo log plus a redo log. A new commit clears redo.
type history struct {
	depth int
	undo  []*entry
	redo  []*entry
}

func newHistory(depth int) *history {
	return &history{depth: depth}
}

func (h *history) record(e *entry) {
	if len(h.undo) == h.depth {
		copy(h.undo, h.undo[1:])
		h.undo[len(h.undo)-1] = nil
		h.undo = h.undo[:len(h.undo)-1]
	}
	h.undo = append(h.undo, e)
	h.redo = nil
}

func pop(stack *[]*entry) *entry {
	s := *stack
	if len(s) == 0 {
		return nil
	}
	e := s[len(s)-1]
	s[len(s)-1] = nil
	*stack = s[:len(s)-1]
	return e
}

func (h *history) reset() {
	h.undo, h.redo = nil, nil
}

// Undo reverts the most recent commit. A log that no longer matches the graph
// poisons the engine: this and every later mutation fail with
// ErrCorruptHistory.
func (e *Engine) Undo(ctx context.Context) (Change, error) {
	return e.replay(ctx, OriginUndo)
}

// Redo reapplies the most recently undone commit.
func (e *Engine) Redo(ctx context.Context) (Change, error) {
	return e.replay(ctx, OriginRedo)
}

func (e *Engine) replay(ctx context.Context, origin Origin) (Change, error) {
	if err := e.reentrant(string(origin)); err != nil {
		return Change{}, err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	_, span := e.tracer.Start(ctx, "engine."+strings.ToUpper(string(origin[:1]))+string(origin[1:]))
	defer span.End()
	if err := e.usable(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Change{}, err
	}

	forward := origin == OriginRedo
	e.mu.Lock()
	from, to := &e.history.undo, &e.history.redo
	if forward {
		from, to = to, from
	}
	ent := pop(from)
	if ent == nil {
		e.mu.Unlock()
		if forward {
			return Change{}, ErrNothingToRedo
		}
		return Change{}, ErrNothingToUndo
	}
	if !e.state.matches(ent.changes, ent.versions) {
		e.poisoned = newError(ErrCorruptHistory, schema.NilUid, "%s of transaction %s does not match the graph", origin, ent.tx)
		e.history.reset()
		e.mu.Unlock()
		e.log.Error(e.poisoned, "history corrupt, engine refuses further mutations")
		span.SetStatus(codes.Error, e.poisoned.Error())
		return Change{}, e.poisoned
	}
	ent.versions = e.state.apply(ent.changes, forward)
	*to = append(*to, ent)
	n := len(e.state.instances)
	e.mu.Unlock()

	c := summarize(ent.tx, origin, ent.changes, forward)
	e.metrics.historyOps.WithLabelValues(string(origin)).Inc()
	e.metrics.instances.Set(float64(n))
	e.log.V(1).Info(string(origin), "tx", ent.tx.String(), "created", len(c.Created), "removed", len(c.Removed), "mutated", len(c.Mutated))
	e.notify(c)
	return c, nil
}
