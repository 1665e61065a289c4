package bulkfetch

import (
	"testing"

	"github.com/pilot-net/bulkfetch/internal/model"
)

func TestWithDefaultsRequiresURL(t *testing.T) {
	cfg := Config{Records: []model.Record{1}}
	_, err := cfg.withDefaults()
	if err == nil {
		t.Fatal("expected an error when URL is empty")
	}
	kind, ok := KindOf(err)
	if !ok || kind != ConfigurationInvalid {
		t.Fatalf("expected ConfigurationInvalid, got %v", err)
	}
}

func TestWithDefaultsRequiresExactlyOneSource(t *testing.T) {
	cfg := Config{URL: "https://api.example.com/ingest"}
	_, err := cfg.withDefaults()
	if err == nil {
		t.Fatal("expected an error when no source is set")
	}

	cfg2 := Config{URL: "https://api.example.com/ingest", Records: []model.Record{1}, Path: "records.json"}
	_, err = cfg2.withDefaults()
	if err == nil {
		t.Fatal("expected an error when more than one source is set")
	}
}

func TestWithDefaultsAppliesDefaults(t *testing.T) {
	cfg := Config{URL: "https://api.example.com/ingest", Records: []model.Record{1}}
	resolved, err := cfg.withDefaults()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.cfg.Method != "POST" {
		t.Fatalf("expected default method POST, got %s", resolved.cfg.Method)
	}
	if resolved.retries != 3 {
		t.Fatalf("expected default retries=3 when Retries is unset, got %d", resolved.retries)
	}
	if !resolved.storeResponses {
		t.Fatal("expected StoreResponses to default true")
	}
	if !resolved.pool {
		t.Fatal("expected connection pooling to default true")
	}
	if resolved.cfg.Concurrency <= 0 {
		t.Fatal("expected a positive default concurrency")
	}
	if resolved.cfg.MaxTasks <= resolved.cfg.Concurrency {
		t.Fatal("expected max_tasks to exceed concurrency by default")
	}
}

func TestWithDefaultsHonorsExplicitRetries(t *testing.T) {
	n := 5
	cfg := Config{URL: "https://api.example.com/ingest", Records: []model.Record{1}, Retries: &n}
	resolved, err := cfg.withDefaults()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.retries != 5 {
		t.Fatalf("expected retries=5, got %d", resolved.retries)
	}
}

func TestWithDefaultsFireAndForgetRequiresExplicitMarker(t *testing.T) {
	cfg := Config{URL: "https://api.example.com/ingest", Records: []model.Record{1}, Retries: FireAndForget()}
	resolved, err := cfg.withDefaults()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.retries != model.FireAndForget {
		t.Fatalf("expected fire-and-forget sentinel when Retries is explicitly FireAndForget(), got %d", resolved.retries)
	}
}

func TestWithDefaultsHonorsExplicitStoreResponsesFalse(t *testing.T) {
	cfg := Config{URL: "https://api.example.com/ingest", Records: []model.Record{1}, StoreResponses: Bool(false)}
	resolved, err := cfg.withDefaults()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.storeResponses {
		t.Fatal("expected StoreResponses to honor explicit false")
	}
}

func TestHttpxDryRunModeMapping(t *testing.T) {
	cases := map[DryRun]string{
		DryRunOff:  "",
		DryRunCurl: "curl",
		DryRunTrue: "plain",
	}
	for dr, want := range cases {
		cfg := Config{DryRun: dr}
		if got := string(cfg.httpxDryRunMode()); got != want {
			t.Errorf("DryRun %q: expected httpx mode %q, got %q", dr, want, got)
		}
	}
}
