// Command schemagraph-loadtest drives concurrent engines with random
// transactions and reports commit latency.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand/v2"
	"slices"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/bayleafwalker/schemagraph/engine"
	"github.com/bayleafwalker/schemagraph/prim"
	"github.com/bayleafwalker/schemagraph/schema"
)

type loadConfig struct {
	Engines int
	Txs     int
	Seed    uint64
}

type report struct {
	Commits   int
	Rollbacks int
	Undos     int
	Latencies []time.Duration
	Elapsed   time.Duration
}

func (r report) percentile(p float64) time.Duration {
	if len(r.Latencies) == 0 {
		return 0
	}
	sorted := slices.Clone(r.Latencies)
	slices.Sort(sorted)
	return sorted[int(p*float64(len(sorted)-1))]
}

// workload is a small schema of items that hold up to four other items.
type workload struct {
	s      *schema.Schema
	item   schema.Uid
	weight schema.Uid
	parts  schema.Uid
}

func newWorkload() (*workload, error) {
	tmpl := schema.Template{
		Tag:    schema.NewTag("item"),
		Fields: []schema.FieldConstraint{{Tag: schema.NewTag("weight"), Type: prim.Int()}},
	}
	op := schema.Operative{Tag: schema.NewTag("item"), RootTemplate: tmpl.Tag.ID}
	tmpl.Slots = []schema.OperativeSlot{{
		Tag:        schema.NewTag("parts"),
		Descriptor: schema.LibraryOperative{Operative: op.Tag.ID},
		Bounds:     schema.UpperBound(4),
	}}
	s, err := schema.NewBuilder().Template(tmpl).Operative(op).Build()
	if err != nil {
		return nil, err
	}
	return &workload{s: s, item: op.Tag.ID, weight: tmpl.Fields[0].Tag.ID, parts: tmpl.Slots[0].Tag.ID}, nil
}

// step runs one random transaction. Rejections are expected and counted.
func (w *workload) step(ctx context.Context, e *engine.Engine, rng *rand.Rand, r *report) error {
	live := e.Instances()
	pick := func() schema.Uid { return live[rng.IntN(len(live))].ID }

	if len(live) > 0 && rng.IntN(10) == 0 {
		if _, err := e.Undo(ctx); err == nil {
			r.Undos++
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	tx := e.Begin()
	switch n := rng.IntN(10); {
	case len(live) < 2 || n < 4:
		id := tx.Create(w.item)
		tx.Edit(id).SetField(w.weight, prim.IntValue(rng.Int64N(100)))
	case n < 8:
		tx.Edit(pick()).Attach(w.parts, pick())
	default:
		tx.Remove(pick())
	}

	start := time.Now()
	_, err := e.Execute(ctx, tx)
	r.Latencies = append(r.Latencies, time.Since(start))
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		r.Rollbacks++
		return nil
	}
	r.Commits++
	return nil
}

func runLoad(ctx context.Context, cfg loadConfig, reg prometheus.Registerer) (report, error) {
	w, err := newWorkload()
	if err != nil {
		return report{}, err
	}

	reports := make([]report, cfg.Engines)
	start := time.Now()
	g, ctx := errgroup.WithContext(ctx)
	for i := range cfg.Engines {
		g.Go(func() error {
			opts := []engine.Option{}
			if reg != nil {
				opts = append(opts, engine.WithRegisterer(prometheus.WrapRegistererWith(prometheus.Labels{"engine": strconv.Itoa(i)}, reg)))
			}
			e, err := engine.New(w.s, opts...)
			if err != nil {
				return err
			}
			rng := rand.New(rand.NewPCG(cfg.Seed, uint64(i)))
			for range cfg.Txs {
				if err := w.step(ctx, e, rng, &reports[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return report{}, err
	}

	var total report
	for _, r := range reports {
		total.Commits += r.Commits
		total.Rollbacks += r.Rollbacks
		total.Undos += r.Undos
		total.Latencies = append(total.Latencies, r.Latencies...)
	}
	total.Elapsed = time.Since(start)
	return total, nil
}

func main() {
	var cfg loadConfig
	var metricsFile string
	var timeout time.Duration
	flag.IntVar(&cfg.Engines, "engines", 8, "Number of engines to drive concurrently")
	flag.IntVar(&cfg.Txs, "txs", 1000, "Number of transactions per engine")
	flag.Uint64Var(&cfg.Seed, "seed", uint64(time.Now().UnixNano()), "Random seed")
	flag.StringVar(&metricsFile, "metrics-file", "", "Write engine metrics to this file in the Prometheus text format")
	flag.DurationVar(&timeout, "timeout", 5*time.Minute, "Abort the run after this long")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	reg := prometheus.NewRegistry()
	fmt.Printf("Starting load test: %d engines x %d transactions (seed %d)\n", cfg.Engines, cfg.Txs, cfg.Seed)
	r, err := runLoad(ctx, cfg, reg)
	if err != nil {
		log.Fatalf("Load test failed: %v", err)
	}
	if metricsFile != "" {
		if err := prometheus.WriteToTextfile(metricsFile, reg); err != nil {
			log.Fatalf("Error writing metrics: %v", err)
		}
	}

	fmt.Printf("Load test completed in %v: %d commits, %d rollbacks, %d undos\n", r.Elapsed, r.Commits, r.Rollbacks, r.Undos)
	fmt.Printf("Execute latency p50 %v, p99 %v, max %v\n", r.percentile(0.5), r.percentile(0.99), r.percentile(1))
}
