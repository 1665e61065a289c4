package dispatch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pilot-net/bulkfetch/internal/batch"
	"github.com/pilot-net/bulkfetch/internal/collector"
	"github.com/pilot-net/bulkfetch/internal/httpx"
	"github.com/pilot-net/bulkfetch/internal/model"
	"github.com/pilot-net/bulkfetch/internal/source"
	"github.com/pilot-net/bulkfetch/internal/transform"
)

func newTestClient(url string) *httpx.Client {
	return httpx.NewClient(http.DefaultTransport, httpx.Config{
		Spec:    httpx.RequestSpec{URL: url, Method: http.MethodPost},
		Timeout: 5 * time.Second,
	})
}

func TestDispatcherBatchingMath(t *testing.T) {
	var requestCount int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requestCount, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	records := make([]model.Record, 10)
	for i := range records {
		records[i] = map[string]any{"id": i}
	}
	src, err := source.New(source.Config{Records: records})
	if err != nil {
		t.Fatalf("building source: %v", err)
	}

	collect := collector.New(collector.Config{MaxResponseBuffer: 100, StoreResponses: true})
	collect.Start()

	client := newTestClient(srv.URL)
	disp := New(Config{Concurrency: 4, Policy: model.RetryPolicy{MaxRetries: 1, BaseDelay: time.Millisecond}}, client, collect)
	b := batch.New(src, disp, batch.Config{Size: 3})

	ctx := context.Background()
	go b.Run(ctx)
	if err := disp.Run(ctx, b); err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}

	if requestCount != 4 {
		t.Fatalf("expected 4 batches dispatched (ceil(10/3)), got %d", requestCount)
	}
	summary := collect.Summary(ctx, b.RecordCount())
	if summary.RequestCount != 4 {
		t.Fatalf("expected request_count 4, got %d", summary.RequestCount)
	}
	if summary.RecordCount != 10 {
		t.Fatalf("expected record_count 10, got %d", summary.RecordCount)
	}
}

func TestDispatcherConcurrencyCeilingNeverExceeded(t *testing.T) {
	var inFlight int32
	var maxObserved int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			old := atomic.LoadInt32(&maxObserved)
			if n <= old || atomic.CompareAndSwapInt32(&maxObserved, old, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	records := make([]model.Record, 20)
	for i := range records {
		records[i] = i
	}
	src, _ := source.New(source.Config{Records: records})
	collect := collector.New(collector.Config{MaxResponseBuffer: 100, StoreResponses: true})
	collect.Start()

	client := newTestClient(srv.URL)
	disp := New(Config{Concurrency: 3, Policy: model.RetryPolicy{MaxRetries: 0, BaseDelay: time.Millisecond}}, client, collect)
	b := batch.New(src, disp, batch.Config{Size: 1})

	ctx := context.Background()
	go b.Run(ctx)
	if err := disp.Run(ctx, b); err != nil {
		t.Fatalf("unexpected fatal error: %v", err)
	}

	if maxObserved > 3 {
		t.Fatalf("expected concurrency never to exceed 3, observed %d", maxObserved)
	}
}

func TestDispatcherPropagatesFatalSourceError(t *testing.T) {
	collect := collector.New(collector.Config{MaxResponseBuffer: 10, StoreResponses: true})
	collect.Start()
	client := newTestClient("https://example.invalid")

	pipeline := transform.Pipeline{User: func(rec model.Record) (model.Record, error) {
		return nil, errors.New("always fails")
	}}
	src, _ := source.New(source.Config{Records: []model.Record{1, 2}})
	disp := New(Config{Concurrency: 2, Policy: model.RetryPolicy{MaxRetries: model.FireAndForget}}, client, collect)
	b := batch.New(src, disp, batch.Config{Size: 1, Pipeline: pipeline})

	ctx := context.Background()
	go b.Run(ctx)
	err := disp.Run(ctx, b)
	if err == nil {
		t.Fatal("expected the fatal transform error to propagate from Run")
	}
}
