package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/pilot-net/bulkfetch/internal/formdata"
	"github.com/pilot-net/bulkfetch/internal/model"
)

const (
	contentTypeJSON      = "application/json"
	contentTypeForm      = "application/x-www-form-urlencoded"
	contentTypeMultipart = "multipart/form-data"
)

var bodyBearingMethods = map[string]bool{
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// RequestSpec is the per-configuration, per-envelope-independent request
// template: everything needed to build one request given a batch.
type RequestSpec struct {
	URL          string
	Method       string
	Headers      map[string]string
	SearchParams map[string]string
	BodyParams   map[string]any
	DataKey      string
	FormField    string // multipart field name; "batch" if unset
}

// buildRequest constructs one *http.Request for batch, applying query
// params, header defaulting, and content-type-dependent body encoding.
func buildRequest(ctx context.Context, spec RequestSpec, batch model.Batch, resolved map[string]string) (*http.Request, error) {
	u, err := url.Parse(spec.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing target URL: %w", err)
	}
	if len(spec.SearchParams) > 0 {
		q := u.Query()
		for k, v := range spec.SearchParams {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	method := spec.Method
	if method == "" {
		method = http.MethodPost
	}
	method = strings.ToUpper(method)

	headers := make(map[string]string, len(spec.Headers)+len(resolved))
	for k, v := range spec.Headers {
		headers[k] = v
	}
	for k, v := range resolved {
		headers[k] = v
	}

	carriesBody := bodyBearingMethods[method]

	var body []byte
	if carriesBody {
		contentType := headers["Content-Type"]
		if contentType == "" {
			contentType = contentTypeJSON
			headers["Content-Type"] = contentType
		}

		switch {
		case strings.HasPrefix(contentType, contentTypeMultipart):
			field := spec.FormField
			if field == "" {
				field = "batch"
			}
			override, data, err := formdata.Build(toPayload(batch, spec), field)
			if err != nil {
				return nil, fmt.Errorf("building multipart body: %w", err)
			}
			for k, v := range override {
				headers[k] = v
			}
			body = data
		case strings.HasPrefix(contentType, contentTypeForm):
			data, err := encodeForm(toPayload(batch, spec))
			if err != nil {
				return nil, fmt.Errorf("building form body: %w", err)
			}
			body = data
		default:
			data, err := json.Marshal(toPayload(batch, spec))
			if err != nil {
				return nil, fmt.Errorf("marshaling JSON body: %w", err)
			}
			body = data
		}
	}

	if headers["User-Agent"] == "" {
		headers["User-Agent"] = "bulkfetch/1.0"
	}

	var bodyReader *bytes.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	} else {
		bodyReader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

// toPayload wraps batch under BodyParams/DataKey when configured, matching
// the `{ [dataKey]: batch, ...bodyParams_minus_dataKey }` shape, else
// returns batch directly.
func toPayload(batch model.Batch, spec RequestSpec) any {
	if spec.DataKey == "" {
		return batch
	}
	merged := make(map[string]any, len(spec.BodyParams)+1)
	for k, v := range spec.BodyParams {
		if k == spec.DataKey {
			continue
		}
		merged[k] = v
	}
	merged[spec.DataKey] = batch
	return merged
}

func encodeForm(payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var flat map[string]any
	if err := json.Unmarshal(data, &flat); err != nil {
		// Not an object (e.g. a bare array batch with no dataKey): fall
		// back to a single "data" field carrying the JSON encoding.
		vals := url.Values{"data": {string(data)}}
		return []byte(vals.Encode()), nil
	}
	vals := url.Values{}
	for k, v := range flat {
		switch vv := v.(type) {
		case string:
			vals.Set(k, vv)
		default:
			encoded, err := json.Marshal(vv)
			if err != nil {
				return nil, err
			}
			vals.Set(k, string(encoded))
		}
	}
	return []byte(vals.Encode()), nil
}
