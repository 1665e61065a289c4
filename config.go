package bulkfetch

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/pilot-net/bulkfetch/internal/collector"
	"github.com/pilot-net/bulkfetch/internal/cookiejar"
	"github.com/pilot-net/bulkfetch/internal/dispatch"
	"github.com/pilot-net/bulkfetch/internal/ferrors"
	"github.com/pilot-net/bulkfetch/internal/headerresolver"
	"github.com/pilot-net/bulkfetch/internal/httpx"
	"github.com/pilot-net/bulkfetch/internal/model"
	"github.com/pilot-net/bulkfetch/internal/source"
	"github.com/pilot-net/bulkfetch/internal/transform"
)

// DryRun selects transport bypass behavior. DryRunCurl emits one curl
// command string per batch instead of dispatching it; DryRunTrue
// suppresses both transport and response retention while still pulling
// and batching the source.
type DryRun string

const (
	DryRunOff  DryRun = ""
	DryRunCurl DryRun = "curl"
	DryRunTrue DryRun = "true"
)

// Config is one delivery configuration: a source, a target, and the
// policies governing batching, concurrency, and retry.
type Config struct {
	// Target
	URL    string
	Method string
	Headers      map[string]string
	SearchParams map[string]string
	BodyParams   map[string]any
	DataKey      string

	// Source
	Records []model.Record
	Path    string
	Reader  io.Reader
	Objects <-chan model.Record
	Gzip    bool

	// Batching
	BatchSize int
	NoBatch   bool

	// Transform
	Transform       func(model.Record) (model.Record, error)
	TransformPreset string
	Clone           bool
	OnTransformError func(rec model.Record, cause error)

	// Concurrency
	Concurrency       int
	MaxTasks          int
	DelayBetweenMS    int
	RequestsPerSecond float64

	// Retry
	//
	// Retries is nil by default, which resolves to 3 retries. Go's *int
	// zero value (nil) can't double as an explicit fire-and-forget opt-in
	// without also swallowing the common "caller never touched this
	// field" case, so fire-and-forget has its own sentinel: set Retries
	// to bulkfetch.FireAndForget() instead of leaving it nil.
	Retries             *int
	RetryDelayMS        int
	RetryOn             map[int]bool
	UseStaticRetryDelay bool
	RetryPredicate      model.RetryPredicate
	TimeoutMS           int

	// Result retention
	StoreResponses    *bool // nil = default true
	MaxResponseBuffer int
	ResponseHeaders   bool
	HighWaterMark     int

	// Transport
	EnableConnectionPooling *bool // nil = default true

	// Dry run
	DryRun DryRun

	// Collaborators
	HeaderResolver headerresolver.Resolver
	CookieJar      cookiejar.Jar
	TransformRegistry *transform.Registry

	// Memory guard
	MaxMemoryUsage uint64

	// Observability
	Logger *slog.Logger

	// Auxiliary output
	LogFile       string
	LogFileFormat string // "json" | "ndjson" | "csv"
	ArchiveRedisURL string
	ArchiveRedisKey string
	HistoryDSN      string
}

// resolved carries a Config after defaulting and validation.
type resolved struct {
	cfg       Config
	retries   int
	storeResponses bool
	pool      bool
}

func (c Config) withDefaults() (resolved, error) {
	out := resolved{cfg: c}

	if c.URL == "" {
		return out, ferrors.New(ferrors.ConfigurationInvalid, "url is required", nil)
	}
	if c.Method == "" {
		out.cfg.Method = http.MethodPost
	}

	sourcesSet := 0
	if c.Records != nil {
		sourcesSet++
	}
	if c.Path != "" {
		sourcesSet++
	}
	if c.Reader != nil {
		sourcesSet++
	}
	if c.Objects != nil {
		sourcesSet++
	}
	if sourcesSet != 1 {
		return out, ferrors.New(ferrors.ConfigurationInvalid, fmt.Sprintf("exactly one data source must be set, got %d", sourcesSet), nil)
	}

	if c.BatchSize < 0 {
		out.cfg.BatchSize = 0
	} else if c.BatchSize == 0 && !c.NoBatch {
		out.cfg.BatchSize = 1
	}

	if c.Concurrency <= 0 {
		out.cfg.Concurrency = dispatch.DefaultConcurrency
	}
	if c.MaxTasks <= 0 {
		out.cfg.MaxTasks = out.cfg.Concurrency + dispatch.DefaultMaxTasksSlack
	}

	if c.Retries == nil {
		out.retries = 3
	} else if *c.Retries < 0 {
		out.retries = model.FireAndForget
	} else {
		out.retries = *c.Retries
	}
	if c.RetryDelayMS <= 0 {
		out.cfg.RetryDelayMS = 1000
	}
	if c.RetryOn == nil {
		out.cfg.RetryOn = model.DefaultRetryOn()
	}
	if c.TimeoutMS <= 0 {
		out.cfg.TimeoutMS = 60000
	}

	if c.StoreResponses == nil {
		out.storeResponses = true
	} else {
		out.storeResponses = *c.StoreResponses
	}
	if c.MaxResponseBuffer <= 0 {
		out.cfg.MaxResponseBuffer = collector.DefaultMaxResponseBuffer
	}
	if c.HighWaterMark <= 0 {
		out.cfg.HighWaterMark = source.DefaultHighWaterMark
	}

	if c.EnableConnectionPooling == nil {
		out.pool = true
	} else {
		out.pool = *c.EnableConnectionPooling
	}

	if c.Logger == nil {
		out.cfg.Logger = slog.Default()
	}

	return out, nil
}

// Retries is a convenience helper for the *int-typed Retries field, so
// callers can write bulkfetch.Retries(3) instead of declaring a variable.
func Retries(n int) *int { return &n }

// FireAndForget is the explicit opt-in marker for Config.Retries: dispatch
// every batch once, never await its completion, never retry, never count
// errors. Leaving Retries unset (nil) instead defaults to 3 retries;
// fire-and-forget is never the silent default for an unset field.
func FireAndForget() *int { n := model.FireAndForget; return &n }

// Bool is a convenience helper for the *bool-typed optional Config fields.
func Bool(b bool) *bool { return &b }

// httpxDryRunMode maps the public DryRun enum to httpx's internal one.
func (c Config) httpxDryRunMode() httpx.DryRunMode {
	switch c.DryRun {
	case DryRunCurl:
		return httpx.DryRunCurl
	case DryRunTrue:
		return httpx.DryRunPlain
	default:
		return httpx.DryRunNone
	}
}
