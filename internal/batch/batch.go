// Package batch groups a record sequence into fixed-size batches, applying
// the optional transform to each record exactly once before placement, and
// observing dispatcher backpressure before starting each batch.
package batch

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/pilot-net/bulkfetch/internal/model"
	"github.com/pilot-net/bulkfetch/internal/source"
	"github.com/pilot-net/bulkfetch/internal/transform"
)

// Gate is the backpressure signal the Dispatcher publishes: Wait blocks
// while the dispatcher is at its admission ceiling and returns once room
// exists (ADMIT), or ctx is cancelled.
type Gate interface {
	Wait(ctx context.Context) error
}

// NoGate never blocks; used when the caller wants an unbounded batcher
// (tests, or a dispatcher-less consumer of envelopes).
type NoGate struct{}

func (NoGate) Wait(ctx context.Context) error { return ctx.Err() }

// Config configures the Batcher.
type Config struct {
	Size     int // batchSize; 0 means "no grouping, one record per batch" unless NoBatch
	NoBatch  bool
	Pipeline transform.Pipeline
}

// Batcher pulls records from a source.Adapter and emits model.BatchEnvelope
// values on Envelopes(), one goroutine, synchronous with the caller's drain
// of the channel (so the channel itself is the bounded queue the dispatcher
// reads from).
type Batcher struct {
	src   source.Adapter
	gate  Gate
	cfg   Config
	out   chan Item
	count atomic.Int64 // record_count
	spawn atomic.Int64
}

// Item is one value produced on the Batcher's output channel: either a
// ready envelope, or a fatal error that ends the run.
type Item struct {
	Env *model.BatchEnvelope
	Err error
}

// New constructs a Batcher reading from src, gated by gate.
func New(src source.Adapter, gate Gate, cfg Config) *Batcher {
	if gate == nil {
		gate = NoGate{}
	}
	return &Batcher{src: src, gate: gate, cfg: cfg, out: make(chan Item)}
}

// Run drives the pull loop until the source is exhausted, the context is
// cancelled, or a fatal error occurs. It closes the envelope channel when
// done. Callers should range over Envelopes() concurrently with Run.
func (b *Batcher) Run(ctx context.Context) {
	defer close(b.out)

	if b.cfg.NoBatch || b.cfg.Size == 0 {
		if materialized, ok := b.src.Materialized(); ok && b.cfg.NoBatch {
			b.emitMaterializedAsOne(ctx, materialized)
			return
		}
	}

	size := b.cfg.Size
	if size < 0 {
		size = 0
	}

	var group model.Batch
	if size > 1 {
		group = make(model.Batch, 0, size)
	}

	for {
		if len(group) == 0 {
			if err := b.gate.Wait(ctx); err != nil {
				return
			}
		}
		rec, ok, err := b.src.Next()
		if err != nil {
			b.send(ctx, Item{Err: err})
			return
		}
		if !ok {
			if len(group) > 0 {
				b.send(ctx, Item{Env: b.newEnvelope(group)})
			}
			return
		}

		transformed, terr := b.cfg.Pipeline.Apply(rec)
		if terr != nil {
			b.send(ctx, Item{Err: terr})
			return
		}
		b.count.Add(1)

		if size <= 1 {
			b.send(ctx, Item{Env: b.newEnvelope(model.Batch{transformed})})
			continue
		}

		group = append(group, transformed)
		if len(group) >= size {
			b.send(ctx, Item{Env: b.newEnvelope(group)})
			group = make(model.Batch, 0, size)
		}
	}
}

// emitMaterializedAsOne handles batchSize=0/noBatch=true over an
// already-materialized slice: the whole source becomes one logical batch,
// still subject to the transform and the record counter.
func (b *Batcher) emitMaterializedAsOne(ctx context.Context, records []model.Record) {
	if err := b.gate.Wait(ctx); err != nil {
		return
	}
	out := make(model.Batch, 0, len(records))
	for _, rec := range records {
		transformed, terr := b.cfg.Pipeline.Apply(rec)
		if terr != nil {
			b.send(ctx, Item{Err: terr})
			return
		}
		b.count.Add(1)
		out = append(out, transformed)
	}
	if len(out) > 0 {
		b.send(ctx, Item{Env: b.newEnvelope(out)})
	}
}

func (b *Batcher) newEnvelope(batch model.Batch) *model.BatchEnvelope {
	return &model.BatchEnvelope{
		ID:           uuid.New(),
		Batch:        batch,
		SpawnOrdinal: b.spawn.Add(1),
	}
}

func (b *Batcher) send(ctx context.Context, item Item) {
	select {
	case b.out <- item:
	case <-ctx.Done():
	}
}

// Envelopes returns the channel of produced envelopes. A non-nil Err on the
// final item signals a fatal source/transform error; the channel is closed
// immediately after.
func (b *Batcher) Envelopes() <-chan Item { return b.out }

// RecordCount returns the number of records pulled so far: it equals the
// total pulled regardless of delivery success.
func (b *Batcher) RecordCount() int64 { return b.count.Load() }
