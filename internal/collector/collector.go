// Package collector implements the bounded response store: a
// fixed-capacity FIFO ring over retained responses, plus the monotonic
// counters and end-of-run summary assembly.
package collector

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/atomic"

	"github.com/pilot-net/bulkfetch/internal/model"
)

// DefaultMaxResponseBuffer is the default ring capacity.
const DefaultMaxResponseBuffer = 1000

// Collector accumulates responses and counters for one run. All mutating
// methods are safe for concurrent use by dispatcher workers; only the
// finalizer (Summary) is expected to read a consistent snapshot.
type Collector struct {
	mu       chan struct{} // binary semaphore guarding the ring; the counters are atomics updated outside it, not in the same critical section
	ring     []any
	cap      int
	store    bool
	requests atomic.Int64
	records  atomic.Int64
	errors   atomic.Int64
	start    time.Time
	runID    uuid.UUID
	configURL string
}

// Config configures a Collector.
type Config struct {
	MaxResponseBuffer int
	StoreResponses    bool
	ConfigURL         string
}

// New creates a Collector. cfg.MaxResponseBuffer is the already-resolved
// ring capacity (the public Config layer applies the DefaultMaxResponseBuffer
// substitution; 0 here means "no retention", not "unset"). Start must be
// called once before the run begins so DurationMS is measured correctly.
func New(cfg Config) *Collector {
	capacity := cfg.MaxResponseBuffer
	if capacity < 0 {
		capacity = 0
	}
	c := &Collector{
		mu:        make(chan struct{}, 1),
		cap:       capacity,
		store:     cfg.StoreResponses,
		runID:     uuid.New(),
		configURL: cfg.ConfigURL,
	}
	c.mu <- struct{}{}
	return c
}

// Start records the run's start time.
func (c *Collector) Start() { c.start = time.Now() }

func (c *Collector) lock()   { <-c.mu }
func (c *Collector) unlock() { c.mu <- struct{}{} }

// RecordSuccess records one terminal OK outcome: increments request_count
// and record_count is tracked separately by the batcher, retains the
// response (FIFO-evicting if at capacity) unless storage is disabled.
func (c *Collector) RecordSuccess(resp model.HttpResponse) {
	c.requests.Add(1)
	if !c.store || c.cap == 0 {
		return
	}
	c.lock()
	defer c.unlock()
	c.push(resp)
}

// RecordFailure records one terminal FAILED/GIVEN_UP outcome: increments
// request_count and error_count, and retains the error envelope unless
// storage is disabled.
func (c *Collector) RecordFailure(errEnv model.ErrorEnvelope) {
	c.requests.Add(1)
	c.errors.Add(1)
	if !c.store || c.cap == 0 {
		return
	}
	c.lock()
	defer c.unlock()
	c.push(errEnv)
}

// RecordCurl records one curl dry-run string as a retained "response".
func (c *Collector) RecordCurl(cmd string) {
	c.requests.Add(1)
	if !c.store || c.cap == 0 {
		return
	}
	c.lock()
	defer c.unlock()
	c.push(cmd)
}

// RecordFireAndForget counts a fire-and-forget dispatch as a terminal OK
// without ever retaining a response or incrementing error_count: under
// fire-and-forget, responses stays empty and error_count stays 0
// regardless of the eventual remote outcome.
func (c *Collector) RecordFireAndForget() {
	c.requests.Add(1)
}

// push appends to the ring, evicting the oldest entry on overflow. Caller
// must hold the lock.
func (c *Collector) push(item any) {
	if len(c.ring) >= c.cap {
		c.ring = append(c.ring[1:], item)
		return
	}
	c.ring = append(c.ring, item)
}

// Counts returns the current (request_count, record_count, error_count).
// recordCount is supplied by the caller (the batcher owns that counter).
func (c *Collector) Counts(recordCount int64) (requests, records, errors int64) {
	return c.requests.Load(), recordCount, c.errors.Load()
}

// Summary finalizes the run: fixes duration from Start(), computes
// requests_per_second, and samples process memory.
func (c *Collector) Summary(ctx context.Context, recordCount int64) model.RunSummary {
	finished := time.Now()
	duration := finished.Sub(c.start)

	c.lock()
	responses := append([]any(nil), c.ring...)
	c.unlock()

	reqs := c.requests.Load()
	rps := int64(0)
	if duration > 0 {
		rps = int64(float64(reqs) / duration.Seconds())
	}

	return model.RunSummary{
		RunID:             c.runID,
		Responses:         responses,
		RequestCount:      reqs,
		RecordCount:       recordCount,
		ErrorCount:        c.errors.Load(),
		DurationMS:        duration.Milliseconds(),
		RequestsPerSecond: rps,
		MemoryStats:       sampleMemory(),
		StartedAt:         c.start,
		FinishedAt:        finished,
		ConfigURL:         c.configURL,
	}
}

// sampleMemory captures a process memory snapshot: Go heap stats from
// runtime, RSS from gopsutil's process.NewProcess(pid).MemoryInfo().
func sampleMemory() model.MemoryStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := model.MemoryStats{
		HeapUsedBytes:  ms.HeapAlloc,
		HeapTotalBytes: ms.HeapSys,
	}

	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if mem, err := proc.MemoryInfo(); err == nil {
			stats.RSSBytes = mem.RSS
		}
	}
	return stats
}

// SampleRSS returns the process's current resident set size as reported by
// gopsutil, or 0 if it cannot be read.
func SampleRSS() uint64 {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return 0
	}
	mem, err := proc.MemoryInfo()
	if err != nil {
		return 0
	}
	return mem.RSS
}
