// Package model holds the data types shared across bulkfetch's internal
// packages: records, batches, envelopes, responses, and the end-of-run
// summary. It has no dependencies on sibling packages so that every other
// internal package can import it without creating cycles.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Record is an opaque payload item. bulkfetch does not inspect it except
// when a transform is invoked; it is serialized to the wire by the HTTP
// client according to the request's content type.
type Record = any

// Batch is an ordered sequence of records of length at most the configured
// batch size.
type Batch []Record

// Classification is the outcome of a single HTTP attempt.
type Classification int

const (
	ClassOK Classification = iota
	ClassNetwork
	ClassTimeout
	ClassTLS
	ClassRateLimited
	ClassTransient
	ClassPermanent
)

func (c Classification) String() string {
	switch c {
	case ClassOK:
		return "OK"
	case ClassNetwork:
		return "NETWORK"
	case ClassTimeout:
		return "TIMEOUT"
	case ClassTLS:
		return "TLS"
	case ClassRateLimited:
		return "RATE_LIMITED"
	case ClassTransient:
		return "TRANSIENT"
	case ClassPermanent:
		return "PERMANENT"
	default:
		return "UNKNOWN"
	}
}

// Retryable reports whether the classification is ever eligible for retry
// (independent of attempt count / retry predicate).
func (c Classification) Retryable() bool {
	switch c {
	case ClassNetwork, ClassTimeout, ClassTLS, ClassRateLimited, ClassTransient:
		return true
	default:
		return false
	}
}

// FireAndForget is the RetryPolicy.MaxRetries sentinel meaning "dispatch the
// request, never await its completion, never retry."
const FireAndForget = -1

// RetryPredicate overrides class-based retry decisions. It receives the
// classification of the most recent attempt and the zero-based attempt
// count already made; its return value decides whether to retry, still
// bounded by MaxRetries.
type RetryPredicate func(class Classification, attempt int) bool

// RetryPolicy governs per-envelope retry behavior.
type RetryPolicy struct {
	MaxRetries      int // non-negative, or FireAndForget
	BaseDelay       time.Duration
	Timeout         time.Duration
	RetryOn         map[int]bool // HTTP status codes eligible for TRANSIENT retry
	StaticDelay     bool
	RetryPredicate  RetryPredicate
}

// DefaultRetryOn is the default retry-eligible status set.
func DefaultRetryOn() map[int]bool {
	return map[int]bool{408: true, 429: true, 500: true, 502: true, 503: true, 504: true}
}

// BatchEnvelope is the unit of dispatcher work.
type BatchEnvelope struct {
	ID           uuid.UUID // correlation ID, additive to SpawnOrdinal; not a delivery-order guarantee
	Batch        Batch
	AttemptCount int
	SpawnOrdinal int64
}

// HttpResponse is a single retained outcome of a dispatched batch.
type HttpResponse struct {
	Data       any
	Status     int
	StatusText string
	URL        string
	Method     string
	Headers    map[string][]string `json:"headers,omitempty"`
	TraceID    uuid.UUID           `json:"trace_id"`
}

// ErrorEnvelope is a retained terminal failure (PERMANENT or GIVEN_UP).
type ErrorEnvelope struct {
	URL        string
	Method     string
	Status     int
	StatusText string
	Message    string
	TraceID    uuid.UUID
}

// MemoryStats is a process memory snapshot captured at finalization.
type MemoryStats struct {
	HeapUsedBytes  uint64 `json:"heap_used_bytes"`
	HeapTotalBytes uint64 `json:"heap_total_bytes"`
	RSSBytes       uint64 `json:"rss_bytes"`
}

// RunSummary is the end-of-run aggregate for a single configuration.
type RunSummary struct {
	RunID             uuid.UUID       `json:"run_id"`
	Responses         []any           `json:"responses"` // HttpResponse | string (curl) | ErrorEnvelope
	RequestCount      int64           `json:"request_count"`
	RecordCount       int64           `json:"record_count"`
	ErrorCount        int64           `json:"error_count"`
	DurationMS        int64           `json:"duration_ms"`
	RequestsPerSecond int64           `json:"requests_per_second"`
	MemoryStats       MemoryStats     `json:"memory_stats"`
	StartedAt         time.Time       `json:"started_at"`
	FinishedAt        time.Time       `json:"finished_at"`
	ConfigURL         string          `json:"config_url"`
}
