// Package engine hosts live instance graphs over a schema snapshot.
//
// Every mutation goes through a transaction: edits are staged on a Tx and
// Execute validates the whole post-state before committing it atomically.
// Committed transactions can be undone and redone, and subscribers are told
// about every commit before Execute returns.
//
// An Engine serializes its mutators. Readers may call Get, Instances and the
// digest helpers from any goroutine between commits. Subscriber callbacks run
// on the mutating goroutine and must not mutate the engine themselves; a
// mutator called while subscribers are being notified fails with
// ErrReentrant.
package engine

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/bayleafwalker/schemagraph/digest"
	"github.com/bayleafwalker/schemagraph/schema"
)

const tracerName = "github.com/bayleafwalker/schemagraph/engine"

// Origin says what produced a Change.
type Origin string

const (
	OriginCommit Origin = "commit"
	OriginUndo   Origin = "undo"
	OriginRedo   Origin = "redo"
	OriginImport Origin = "import"
)

// Change describes one commit. Ids are listed in creation order.
type Change struct {
	TxID    schema.Uid
	Origin  Origin
	Created []schema.Uid
	Removed []schema.Uid
	Mutated []schema.Uid
}

func (c Change) Empty() bool {
	return len(c.Created) == 0 && len(c.Removed) == 0 && len(c.Mutated) == 0
}

type Option func(*options)

type options struct {
	cfg        Config
	log        logr.Logger
	registerer prometheus.Registerer
	tracer     trace.TracerProvider
	cacheSize  int
}

func WithConfig(cfg Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets the engine logger. The default discards everything.
func WithLogger(log logr.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithRegisterer registers the engine's collectors on reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithTracerProvider sets where spans go. The default is the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracer = tp }
}

// WithDigestCacheSize bounds the instance digest cache.
func WithDigestCacheSize(n int) Option {
	return func(o *options) { o.cacheSize = n }
}

type subscription struct {
	id uint64
	fn func(Change)
}

type Engine struct {
	schema  *schema.Schema
	cfg     Config
	log     logr.Logger
	tracer  trace.Tracer
	metrics *metrics
	cache   *digest.Cache

	// writeMu serializes mutators; mu guards state and history for readers.
	writeMu  sync.Mutex
	mu       sync.RWMutex
	state    *state
	history  *history
	poisoned error

	// dispatching is set while notify runs under writeMu.
	dispatching atomic.Bool

	subMu   sync.Mutex
	subs    []subscription
	nextSub uint64
}

// New returns an empty engine rooted on s.
func New(s *schema.Schema, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, fmt.Errorf("engine: nil schema")
	}
	o := options{cfg: DefaultConfig(), log: logr.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.cfg.Validate(); err != nil {
		return nil, err
	}
	if o.tracer == nil {
		o.tracer = otel.GetTracerProvider()
	}
	e := &Engine{
		schema:  s,
		cfg:     o.cfg,
		log:     o.log,
		tracer:  o.tracer.Tracer(tracerName),
		metrics: newMetrics(),
		cache:   digest.NewCache(o.cacheSize),
		state:   newState(),
		history: newHistory(o.cfg.UndoDepth),
	}
	if o.registerer != nil {
		if err := e.metrics.register(o.registerer); err != nil {
			return nil, fmt.Errorf("engine: register metrics: %w", err)
		}
	}
	for _, w := range s.Warnings() {
		e.log.Info("schema warning", "warning", w)
	}
	return e, nil
}

func (e *Engine) Schema() *schema.Schema { return e.schema }

func (e *Engine) Config() Config { return e.cfg }

// Get returns a copy of the live instance id.
func (e *Engine) Get(id schema.Uid) (*schema.Instance, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	inst, ok := e.state.instances[id]
	if !ok {
		return nil, false
	}
	return inst.Clone(), true
}

// Instances returns copies of every live instance in creation order.
func (e *Engine) Instances() []*schema.Instance {
	e.mu.RLock()
	defer e.mu.RUnlock()
	ids := e.state.ordered()
	out := make([]*schema.Instance, len(ids))
	for i, id := range ids {
		out[i] = e.state.instances[id].Clone()
	}
	return out
}

func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.state.instances)
}

// Instance returns the committed instance id itself; it must not be
// modified. Together with Version it lets the engine serve digest caches.
func (e *Engine) Instance(id schema.Uid) (*schema.Instance, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.Instance(id)
}

// Version changes whenever instance id is committed anew.
func (e *Engine) Version(id schema.Uid) (uint64, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	v, ok := e.state.versions[id]
	return v, ok
}

// Incomplete reports whether id was marked incomplete and is therefore exempt
// from the fulfillment sweep.
func (e *Engine) Incomplete(id schema.Uid) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state.incomplete.Has(id)
}

// Digest returns the digest of a live instance or a library instance.
func (e *Engine) Digest(id schema.Uid) (digest.InstanceDigest, error) {
	return e.cache.OfInstance(e.schema, e, id)
}

func (e *Engine) IsFulfilled(id schema.Uid) (bool, error) {
	return e.cache.IsFulfilled(e.schema, e, id)
}

// Fulfillment explains why id is or is not fulfilled.
func (e *Engine) Fulfillment(id schema.Uid) (digest.Fulfillment, error) {
	d, err := e.Digest(id)
	if err != nil {
		return digest.Fulfillment{}, err
	}
	return digest.Check(d), nil
}

// CacheStats reports digest cache activity.
func (e *Engine) CacheStats() digest.CacheStats { return e.cache.Stats() }

// History returns the number of entries that can be undone and redone.
func (e *Engine) History() (undo, redo int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.history.undo), len(e.history.redo)
}

// Subscribe registers fn to receive every Change, in registration order. The
// returned function unregisters it.
func (e *Engine) Subscribe(fn func(Change)) (unsubscribe func()) {
	e.subMu.Lock()
	defer e.subMu.Unlock()
	e.nextSub++
	id := e.nextSub
	subs := make([]subscription, len(e.subs), len(e.subs)+1)
	copy(subs, e.subs)
	e.subs = append(subs, subscription{id: id, fn: fn})
	return func() {
		e.subMu.Lock()
		defer e.subMu.Unlock()
		subs := make([]subscription, 0, len(e.subs))
		for _, s := range e.subs {
			if s.id != id {
				subs = append(subs, s)
			}
		}
		e.subs = subs
	}
}

func (e *Engine) notify(c Change) {
	e.dispatching.Store(true)
	defer e.dispatching.Store(false)
	e.subMu.Lock()
	subs := e.subs
	e.subMu.Unlock()
	for _, s := range subs {
		e.dispatch(s, c)
	}
}

// reentrant rejects a mutation issued from a subscriber callback, which
// would otherwise wait forever on writeMu.
func (e *Engine) reentrant(op string) error {
	if e.dispatching.Load() {
		return newError(ErrReentrant, schema.NilUid, "%s called while subscribers are being notified", op)
	}
	return nil
}

func (e *Engine) dispatch(s subscription, c Change) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error(fmt.Errorf("panic: %v", r), "subscriber failed", "subscription", s.id, "tx", c.TxID.String())
		}
	}()
	s.fn(c)
}
