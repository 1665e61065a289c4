// Package bulkfetch delivers large record collections to an HTTP endpoint:
// it partitions a record source into batches, dispatches them concurrently
// with backpressure, retries transient failures with jittered backoff, and
// produces a bounded, summarized account of the run.
package bulkfetch

import (
	"context"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/pilot-net/bulkfetch/internal/batch"
	"github.com/pilot-net/bulkfetch/internal/collector"
	"github.com/pilot-net/bulkfetch/internal/dispatch"
	"github.com/pilot-net/bulkfetch/internal/ferrors"
	"github.com/pilot-net/bulkfetch/internal/historystore"
	"github.com/pilot-net/bulkfetch/internal/httpx"
	"github.com/pilot-net/bulkfetch/internal/model"
	"github.com/pilot-net/bulkfetch/internal/sink"
	"github.com/pilot-net/bulkfetch/internal/source"
	"github.com/pilot-net/bulkfetch/internal/transform"
)

// Run executes one configuration to completion and returns its summary.
// ConfigurationInvalid is returned synchronously, before any work starts.
func Run(ctx context.Context, cfg Config) (model.RunSummary, error) {
	return run(ctx, cfg)
}

// RunMany executes an ordered sequence of configurations, each to its own
// RunSummary, independently: one configuration's failure does not abort
// the others. If reduce is non-nil, its output replaces the returned
// slice; reduce receives the summaries in configuration order alongside
// any per-configuration errors (nil where a configuration succeeded).
func RunMany(ctx context.Context, configs []Config, reduce func([]model.RunSummary, []error) (any, error)) (any, error) {
	summaries := make([]model.RunSummary, len(configs))
	errs := make([]error, len(configs))

	for i, cfg := range configs {
		summary, err := run(ctx, cfg)
		summaries[i] = summary
		errs[i] = err
	}

	if reduce != nil {
		return reduce(summaries, errs)
	}
	return summaries, firstError(errs)
}

func firstError(errs []error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// transportPool is the process-wide connection pool, created lazily and
// reused across runs that request pooling.
var transportPool *http.Transport

func sharedTransport(enablePooling bool) http.RoundTripper {
	poolCfg := httpx.DefaultPoolConfig()
	poolCfg.EnablePooling = enablePooling
	if !enablePooling {
		return httpx.NewTransport(poolCfg)
	}
	if transportPool == nil {
		transportPool = httpx.NewTransport(poolCfg)
	}
	return transportPool
}

// CloseIdleConnections closes the idle connections held by the shared
// connection pool, if one has been created.
func CloseIdleConnections() {
	if transportPool != nil {
		httpx.Teardown(transportPool)
	}
}

func run(ctx context.Context, cfg Config) (model.RunSummary, error) {
	settled, err := cfg.withDefaults()
	if err != nil {
		return model.RunSummary{}, err
	}
	c := settled.cfg

	src, err := source.New(source.Config{
		Records:       c.Records,
		Path:          c.Path,
		Reader:        c.Reader,
		Objects:       c.Objects,
		Gzip:          c.Gzip,
		HighWaterMark: c.HighWaterMark,
	})
	if err != nil {
		return model.RunSummary{}, err
	}

	pipeline := transform.Pipeline{
		User:         c.Transform,
		Clone:        c.Clone,
		ErrorHandler: c.OnTransformError,
	}
	if c.TransformPreset != "" && c.TransformRegistry != nil {
		if preset, ok := c.TransformRegistry.Get(c.TransformPreset); ok {
			pipeline.Preset = preset
		}
	}

	collect := collector.New(collector.Config{
		MaxResponseBuffer: c.MaxResponseBuffer,
		StoreResponses:    settled.storeResponses,
		ConfigURL:         c.URL,
	})
	collect.Start()

	transport := sharedTransport(settled.pool)
	client := httpx.NewClient(transport, httpx.Config{
		Spec: httpx.RequestSpec{
			URL:          c.URL,
			Method:       c.Method,
			Headers:      c.Headers,
			SearchParams: c.SearchParams,
			BodyParams:   c.BodyParams,
			DataKey:      c.DataKey,
		},
		Timeout:         time.Duration(c.TimeoutMS) * time.Millisecond,
		ResponseHeaders: c.ResponseHeaders,
		DryRun:          c.httpxDryRunMode(),
		Resolver:        c.HeaderResolver,
		Jar:             c.CookieJar,
	})
	if err := client.ResolveHeaders(ctx); err != nil {
		return model.RunSummary{}, err
	}

	policy := model.RetryPolicy{
		MaxRetries:     settled.retries,
		BaseDelay:      time.Duration(c.RetryDelayMS) * time.Millisecond,
		Timeout:        time.Duration(c.TimeoutMS) * time.Millisecond,
		RetryOn:        c.RetryOn,
		StaticDelay:    c.UseStaticRetryDelay,
		RetryPredicate: c.RetryPredicate,
	}

	disp := dispatch.New(dispatch.Config{
		Concurrency:       c.Concurrency,
		MaxTasks:          c.MaxTasks,
		DelayBetween:      time.Duration(c.DelayBetweenMS) * time.Millisecond,
		RequestsPerSecond: c.RequestsPerSecond,
		Policy:            policy,
		Logger:            c.Logger,
	}, client, collect)

	b := batch.New(src, disp, batch.Config{
		Size:     c.BatchSize,
		NoBatch:  c.NoBatch,
		Pipeline: pipeline,
	})

	runCtx := ctx
	var memoryExceeded bool
	if c.MaxMemoryUsage > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithCancel(ctx)
		defer cancel()
		go watchMemory(runCtx, c.MaxMemoryUsage, cancel, &memoryExceeded)
	}

	go b.Run(runCtx)
	fatalErr := disp.Run(runCtx, b)

	summary := collect.Summary(ctx, b.RecordCount())

	if writeErr := writeAuxiliaryOutputs(ctx, c, summary); writeErr != nil && c.Logger != nil {
		c.Logger.Warn("auxiliary sink failed", "error", writeErr)
	}
	if c.HistoryDSN != "" {
		recordHistory(ctx, c.HistoryDSN, summary, c.Logger)
	}

	if memoryExceeded {
		return summary, ferrors.New(ferrors.MemoryExceeded, "process memory exceeded configured limit", nil)
	}
	if fatalErr != nil {
		return summary, fatalErr
	}
	return summary, nil
}

func watchMemory(ctx context.Context, limit uint64, cancel context.CancelFunc, exceeded *bool) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			if ms.HeapAlloc > limit {
				*exceeded = true
				cancel()
				return
			}
		}
	}
}

func recordHistory(ctx context.Context, dsn string, summary model.RunSummary, logger *slog.Logger) {
	store, err := historystore.Open(ctx, dsn)
	if err != nil {
		if logger != nil {
			logger.Warn("history store unavailable", "error", err)
		}
		return
	}
	defer store.Close()
	if err := store.Record(ctx, summary); err != nil && logger != nil {
		logger.Warn("recording run history failed", "error", err)
	}
}

func writeAuxiliaryOutputs(ctx context.Context, c Config, summary model.RunSummary) error {
	if c.LogFile != "" {
		format := sink.Format(c.LogFileFormat)
		if format == "" {
			format = sink.FormatJSON
		}
		if err := sink.WriteFile(c.LogFile, format, summary.Responses); err != nil {
			return err
		}
	}
	if c.ArchiveRedisURL != "" {
		archive, err := sink.NewRedisArchive(ctx, c.ArchiveRedisURL, c.ArchiveRedisKey)
		if err != nil {
			return err
		}
		defer archive.Close()
		for _, resp := range summary.Responses {
			if err := archive.Push(ctx, resp); err != nil {
				return err
			}
		}
	}
	return nil
}
