package httpx

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/pilot-net/bulkfetch/internal/model"
)

// DefaultMaxBodyBytes bounds how much of a response body is read when the
// caller sets no explicit limit.
const DefaultMaxBodyBytes = 10 * 1024 * 1024

// parseBody reads resp's body (bounded by maxBytes) and decodes it per the
// response's declared Content-Type: JSON is parsed (falling back to text on
// parse failure), textual types are kept as strings, everything else is
// kept as raw bytes. An empty body, or a body that is the single byte '0',
// synthesizes a status/header summary as the data field.
func parseBody(resp *http.Response, maxBytes int64, includeHeaders bool) (model.HttpResponse, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes))
	if err != nil {
		return model.HttpResponse{}, fmt.Errorf("reading response body: %w", err)
	}

	out := model.HttpResponse{
		Status:     resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		URL:        responseURL(resp),
		Method:     responseMethod(resp),
	}
	if includeHeaders {
		out.Headers = map[string][]string(resp.Header)
	}

	if len(raw) == 0 || (len(raw) == 1 && raw[0] == '0') {
		out.Data = synthesizeData(out, resp.Header)
		return out, nil
	}

	contentType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch {
	case isJSONType(contentType):
		var parsed any
		if json.Unmarshal(raw, &parsed) == nil {
			out.Data = parsed
		} else {
			out.Data = string(raw)
		}
	case isTextType(contentType):
		out.Data = string(raw)
	default:
		out.Data = raw
	}
	return out, nil
}

func synthesizeData(resp model.HttpResponse, headers http.Header) map[string]any {
	data := map[string]any{
		"status":     resp.Status,
		"statusText": resp.StatusText,
	}
	for k := range headers {
		data[k] = headers.Get(k)
	}
	return data
}

func isJSONType(contentType string) bool {
	return strings.Contains(contentType, "json")
}

func isTextType(contentType string) bool {
	return strings.HasPrefix(contentType, "text/") ||
		contentType == "application/xml" ||
		contentType == "application/x-www-form-urlencoded"
}

func responseURL(resp *http.Response) string {
	if resp.Request != nil && resp.Request.URL != nil {
		return resp.Request.URL.String()
	}
	return ""
}

func responseMethod(resp *http.Response) string {
	if resp.Request != nil {
		return resp.Request.Method
	}
	return ""
}
