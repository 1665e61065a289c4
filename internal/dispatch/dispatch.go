// Package dispatch implements the bounded concurrent worker pool that
// consumes batch envelopes and drives each one through the HTTP client,
// publishing backpressure to the batcher that feeds it.
package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/pilot-net/bulkfetch/internal/batch"
	"github.com/pilot-net/bulkfetch/internal/collector"
	"github.com/pilot-net/bulkfetch/internal/httpx"
	"github.com/pilot-net/bulkfetch/internal/model"
)

// DefaultConcurrency is the default number of batches in flight at once.
const DefaultConcurrency = 10

// DefaultMaxTasksSlack is added to concurrency for the default max_tasks
// ceiling when the caller leaves it unset.
const DefaultMaxTasksSlack = 15

// Config configures a Dispatcher.
type Config struct {
	Concurrency       int
	MaxTasks          int
	DelayBetween      time.Duration
	RequestsPerSecond float64 // 0 disables the rate ceiling
	Policy            model.RetryPolicy
	Logger            *slog.Logger
}

// Dispatcher pulls envelopes from a batch.Batcher, bounds concurrency with
// a weighted semaphore, and implements batch.Gate so the batcher observes
// BLOCK/ADMIT transitions on a second, larger admission semaphore covering
// queued-or-in-flight envelopes.
type Dispatcher struct {
	cfg      Config
	client   *httpx.Client
	collect  *collector.Collector
	sem      *semaphore.Weighted // concurrency ceiling
	admitted *semaphore.Weighted // max_tasks (queued + in-flight) ceiling
	limiter  *rate.Limiter
	log      *slog.Logger

	mu       sync.Mutex
	inFlight int
}

// New constructs a Dispatcher. client and collect must be non-nil.
func New(cfg Config, client *httpx.Client, collect *collector.Collector) *Dispatcher {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = DefaultConcurrency
	}
	if cfg.MaxTasks <= 0 {
		cfg.MaxTasks = cfg.Concurrency + DefaultMaxTasksSlack
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), int(cfg.RequestsPerSecond)+1)
	}

	return &Dispatcher{
		cfg:      cfg,
		client:   client,
		collect:  collect,
		sem:      semaphore.NewWeighted(int64(cfg.Concurrency)),
		admitted: semaphore.NewWeighted(int64(cfg.MaxTasks)),
		limiter:  limiter,
		log:      logger,
	}
}

// Wait implements batch.Gate: it blocks while the admission ceiling
// (queued + in-flight) is reached, logging BLOCK/ADMIT transitions.
func (d *Dispatcher) Wait(ctx context.Context) error {
	if !d.admitted.TryAcquire(1) {
		d.mu.Lock()
		inFlight := d.inFlight
		d.mu.Unlock()
		d.log.Debug("dispatcher backpressure", "event", "BLOCK", "in_flight", inFlight, "max_tasks", d.cfg.MaxTasks)
		if err := d.admitted.Acquire(ctx, 1); err != nil {
			return err
		}
		d.log.Debug("dispatcher backpressure", "event", "ADMIT", "in_flight", inFlight, "max_tasks", d.cfg.MaxTasks)
	}
	d.mu.Lock()
	d.inFlight++
	d.mu.Unlock()
	return nil
}

func (d *Dispatcher) release() {
	d.mu.Lock()
	d.inFlight--
	d.mu.Unlock()
	d.admitted.Release(1)
}

// Run drains envelopes off b.Envelopes() until the channel closes or ctx
// is cancelled, dispatching each through a bounded worker pool. It returns
// the first fatal error encountered from the batcher (a source or
// transform failure), if any.
func (d *Dispatcher) Run(ctx context.Context, b *batch.Batcher) error {
	var wg sync.WaitGroup
	var firstErr error
	var mu sync.Mutex

	for item := range b.Envelopes() {
		if item.Err != nil {
			d.release()
			mu.Lock()
			if firstErr == nil {
				firstErr = item.Err
			}
			mu.Unlock()
			continue
		}

		if err := d.sem.Acquire(ctx, 1); err != nil {
			d.release()
			continue
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				d.sem.Release(1)
				d.release()
				continue
			}
		}

		env := item.Env
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer d.sem.Release(1)
			defer d.release()
			d.work(ctx, env)
			if d.cfg.DelayBetween > 0 {
				select {
				case <-time.After(d.cfg.DelayBetween):
				case <-ctx.Done():
				}
			}
		}()
	}

	wg.Wait()
	return firstErr
}

func (d *Dispatcher) work(ctx context.Context, env *model.BatchEnvelope) {
	result := d.client.Send(ctx, env, d.cfg.Policy)
	switch {
	case result.FireAndForget:
		d.collect.RecordFireAndForget()
	case result.CurlCommand != "":
		d.collect.RecordCurl(result.CurlCommand)
	case result.Response != nil:
		d.collect.RecordSuccess(*result.Response)
	case result.Failure != nil:
		d.collect.RecordFailure(*result.Failure)
	default:
		// Plain dry run: no transport engaged, nothing to retain, but the
		// attempt still completes and counts toward request_count.
		d.collect.RecordFireAndForget()
	}
}
