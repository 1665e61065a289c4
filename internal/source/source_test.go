package source

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pilot-net/bulkfetch/internal/ferrors"
)

func drainAll(t *testing.T, a Adapter) []any {
	t.Helper()
	var out []any
	for {
		rec, ok, err := a.Next()
		if err != nil {
			t.Fatalf("unexpected source error: %v", err)
		}
		if !ok {
			return out
		}
		out = append(out, rec)
	}
}

func TestNewRequiresExactlyOneSource(t *testing.T) {
	_, err := New(Config{})
	if err == nil {
		t.Fatal("expected SourceInvalid with no source set")
	}
	kind, ok := ferrors.Of(err)
	if !ok || kind != ferrors.SourceInvalid {
		t.Fatalf("expected SourceInvalid, got %v", err)
	}
}

func TestJSONArrayFileDetection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.json")
	if err := os.WriteFile(path, []byte(`[{"id":1},{"id":2},{"id":3}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("building source: %v", err)
	}
	recs := drainAll(t, a)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if _, ok := a.Materialized(); !ok {
		t.Fatal("JSON array source should report itself materialized")
	}
}

func TestNDJSONFileDetection(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "records.ndjson")
	content := "{\"id\":1}\n{\"id\":2}\n{\"id\":3}\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	a, err := New(Config{Path: path})
	if err != nil {
		t.Fatalf("building source: %v", err)
	}
	recs := drainAll(t, a)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
}

func TestNDJSONStreamParseFailureYieldsSourceParse(t *testing.T) {
	r := strings.NewReader("{\"id\":1}\n{\"id\":2}\n{\"id\":4")
	a, err := New(Config{Reader: r})
	if err != nil {
		t.Fatalf("building source: %v", err)
	}
	var lastErr error
	for {
		_, ok, err := a.Next()
		if err != nil {
			lastErr = err
			break
		}
		if !ok {
			break
		}
	}
	if lastErr == nil {
		t.Fatal("expected a parse failure on the truncated final line")
	}
	kind, ok := ferrors.Of(lastErr)
	if !ok || kind != ferrors.SourceParse {
		t.Fatalf("expected SourceParse, got %v", lastErr)
	}
}

func TestChannelAdapterDrainsUntilClose(t *testing.T) {
	ch := make(chan any, 3)
	ch <- 1
	ch <- 2
	ch <- 3
	close(ch)
	a, err := New(Config{Objects: ch})
	if err != nil {
		t.Fatalf("building source: %v", err)
	}
	recs := drainAll(t, a)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if _, ok := a.Materialized(); ok {
		t.Fatal("channel source must not report itself materialized")
	}
}

func TestMaterializedSliceSource(t *testing.T) {
	a, err := New(Config{Records: []any{"a", "b"}})
	if err != nil {
		t.Fatalf("building source: %v", err)
	}
	if recs, ok := a.Materialized(); !ok || len(recs) != 2 {
		t.Fatal("expected materialized slice of length 2")
	}
}
