package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"k8s.io/apimachinery/pkg/util/sets"

	"github.com/bayleafwalker/schemagraph/internal/graph"
	"github.com/bayleafwalker/schemagraph/schema"
	"github.com/bayleafwalker/schemagraph/snapshot"
)

// Export encodes every live instance, in creation order.
func (e *Engine) Export(f snapshot.Format) ([]byte, error) {
	return snapshot.Encode(snapshot.Snapshot{
		SchemaRevision: e.schema.Revision(),
		Instances:      e.Instances(),
	}, f)
}

// Import builds a new engine on s holding the graph encoded in data.
func Import(ctx context.Context, s *schema.Schema, data []byte, opts ...Option) (*Engine, error) {
	e, err := New(s, opts...)
	if err != nil {
		return nil, err
	}
	if _, err := e.Import(ctx, data); err != nil {
		return nil, err
	}
	return e, nil
}

// Import replaces the whole graph with the one encoded in data, validated as
// a single transaction. On success the undo log is cleared; on failure the
// graph is unchanged and the error is an *ImportError.
func (e *Engine) Import(ctx context.Context, data []byte) (Change, error) {
	if err := e.reentrant("Import"); err != nil {
		return Change{}, err
	}
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	ctx, span := e.tracer.Start(ctx, "engine.Import")
	defer span.End()
	if err := e.usable(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return Change{}, err
	}

	snap, err := snapshot.Decode(data)
	if err != nil {
		return Change{}, e.importFailed(span, err)
	}
	span.SetAttributes(attribute.Int("snapshot.records", len(snap.Instances)))

	if !e.cfg.RejectOnDanglingEdge {
		if n := e.pruneDangling(snap.Instances); n > 0 {
			e.log.Info("pruned edges to absent records", "edges", n)
		}
	}

	// Records are validated on a scratch engine so the live graph stays
	// untouched until the swap.
	e.mu.RLock()
	clock := e.state.clock
	e.mu.RUnlock()
	scratch := &Engine{schema: e.schema, cfg: e.cfg, log: e.log, state: newState()}
	scratch.state.clock = clock
	tx := scratch.Begin()
	for _, inst := range snap.Instances {
		tx.Insert(inst)
	}
	changes, err := scratch.validate(tx)
	if err != nil {
		return Change{}, e.importFailed(span, err)
	}
	for i := range changes {
		changes[i].seq = uint64(i)
	}
	scratch.state.nextSeq = uint64(len(changes))
	scratch.state.apply(changes, true)

	e.mu.Lock()
	old := e.state
	e.state = scratch.state
	e.history.reset()
	e.mu.Unlock()
	e.cache.Purge()

	c := Change{TxID: tx.id, Origin: OriginImport}
	fresh := sets.KeySet(e.state.instances)
	for _, id := range old.ordered() {
		if fresh.Has(id) {
			c.Mutated = append(c.Mutated, id)
		} else {
			c.Removed = append(c.Removed, id)
		}
	}
	for _, inst := range snap.Instances {
		if _, ok := old.instances[inst.ID]; !ok {
			c.Created = append(c.Created, inst.ID)
		}
	}
	e.metrics.commits.Inc()
	e.metrics.instances.Set(float64(len(e.state.instances)))
	e.log.V(1).Info("import", "tx", tx.id.String(), "created", len(c.Created), "removed", len(c.Removed), "mutated", len(c.Mutated))
	e.notify(c)
	return c, nil
}

func (e *Engine) importFailed(span trace.Span, err error) error {
	e.metrics.rollbacks.WithLabelValues("import").Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "import failed")
	return &ImportError{Err: err}
}

// pruneDangling drops edges to ids that neither a record nor the schema's
// library carries and returns how many were dropped.
func (e *Engine) pruneDangling(instances []*schema.Instance) int {
	byID := make(map[schema.Uid]*schema.Instance, len(instances))
	for _, inst := range instances {
		byID[inst.ID] = inst
	}
	exists := func(id schema.Uid) bool {
		if _, ok := byID[id]; ok {
			return true
		}
		_, ok := e.schema.LibraryInstance(id)
		return ok
	}
	dangling := graph.Build(instances).Dangling(exists)
	for _, edge := range dangling {
		host := byID[edge.Host]
		host.SlotEdges[edge.Slot] = without(host.SlotEdges[edge.Slot], edge.Child)
	}
	return len(dangling)
}
