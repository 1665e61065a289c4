// Package formdata implements the multipart/form-data request-body
// collaborator: given a batch, it produces a body and the header
// overrides (including the boundary-bearing Content-Type) the HTTP
// client must substitute in.
package formdata

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
)

// Build encodes batch as a single multipart field named fieldName (default
// "batch" if empty) holding its JSON encoding, matching the way the pack's
// HTTP clients attach a single JSON-valued field when multipart is forced
// on an otherwise JSON-shaped payload.
func Build(batch any, fieldName string) (headers map[string]string, body []byte, err error) {
	if fieldName == "" {
		fieldName = "batch"
	}
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling batch for multipart: %w", err)
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormField(fieldName)
	if err != nil {
		return nil, nil, fmt.Errorf("creating multipart field: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, nil, fmt.Errorf("writing multipart field: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	return map[string]string{"Content-Type": w.FormDataContentType()}, buf.Bytes(), nil
}
