package httpx

import (
	"io"
	"net/http"
	"strings"
	"testing"
)

func fakeResponse(status int, contentType, body string) *http.Response {
	h := http.Header{}
	if contentType != "" {
		h.Set("Content-Type", contentType)
	}
	return &http.Response{
		StatusCode: status,
		Header:     h,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseBodyJSON(t *testing.T) {
	resp := fakeResponse(200, "application/json", `{"ok":true}`)
	parsed, err := parseBody(resp, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := parsed.Data.(map[string]any)
	if !ok || m["ok"] != true {
		t.Fatalf("expected parsed JSON map, got %v", parsed.Data)
	}
}

func TestParseBodyText(t *testing.T) {
	resp := fakeResponse(200, "text/plain", "hello world")
	parsed, err := parseBody(resp, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Data != "hello world" {
		t.Fatalf("expected text body preserved, got %v", parsed.Data)
	}
}

func TestParseBodyBinaryFallback(t *testing.T) {
	resp := fakeResponse(200, "application/octet-stream", "\x00\x01\x02")
	parsed, err := parseBody(resp, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := parsed.Data.([]byte); !ok {
		t.Fatalf("expected raw bytes for an unrecognized content type, got %T", parsed.Data)
	}
}

func TestParseBodyEmptySynthesizesSummary(t *testing.T) {
	resp := fakeResponse(204, "", "")
	parsed, err := parseBody(resp, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	m, ok := parsed.Data.(map[string]any)
	if !ok {
		t.Fatalf("expected synthesized summary map, got %v", parsed.Data)
	}
	if m["status"] != 204 {
		t.Fatalf("expected status 204 in synthesized summary, got %v", m["status"])
	}
}

func TestParseBodySingleZeroByteSynthesizesSummary(t *testing.T) {
	resp := fakeResponse(200, "text/plain", "0")
	parsed, err := parseBody(resp, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := parsed.Data.(map[string]any); !ok {
		t.Fatalf("expected synthesized summary for a lone '0' body, got %v", parsed.Data)
	}
}

func TestParseBodyIncludesHeadersWhenRequested(t *testing.T) {
	resp := fakeResponse(200, "application/json", `{"a":1}`)
	resp.Header.Set("X-Trace", "abc")
	parsed, err := parseBody(resp, 0, true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Headers["X-Trace"][0] != "abc" {
		t.Fatalf("expected headers retained, got %v", parsed.Headers)
	}
}

func TestParseBodyRespectsMaxBytes(t *testing.T) {
	resp := fakeResponse(200, "text/plain", "0123456789")
	parsed, err := parseBody(resp, 5, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Data != "01234" {
		t.Fatalf("expected body truncated at 5 bytes, got %v", parsed.Data)
	}
}

func TestParseBodyInvalidJSONFallsBackToText(t *testing.T) {
	resp := fakeResponse(200, "application/json", `{not valid json`)
	parsed, err := parseBody(resp, 0, false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed.Data != `{not valid json` {
		t.Fatalf("expected raw text fallback for invalid JSON, got %v", parsed.Data)
	}
}
