package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
)

// FormMarshaler implements runtime.Marshaler for application/x-www-form-urlencoded.
// Admin screens post plain HTML forms; responses are still JSON.
type FormMarshaler struct {
	jsonMarshaler runtime.Marshaler
}

// NewFormMarshaler creates a new form marshaler
func NewFormMarshaler() *FormMarshaler {
	return &FormMarshaler{jsonMarshaler: &runtime.JSONBuiltin{}}
}

// ContentType returns the content type of responses
func (m *FormMarshaler) ContentType(_ any) string {
	return "application/json"
}

// Marshal encodes responses as JSON
func (m *FormMarshaler) Marshal(v any) ([]byte, error) {
	return m.jsonMarshaler.Marshal(v)
}

// Unmarshal decodes form data into v by way of its JSON field names.
// Only the first value of repeated fields is used.
func (m *FormMarshaler) Unmarshal(data []byte, v any) error {
	values, err := url.ParseQuery(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse form data: %w", err)
	}

	fields := make(map[string]string, len(values))
	for key := range values {
		fields[key] = values.Get(key)
	}

	jsonData, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("failed to marshal intermediate JSON: %w", err)
	}
	return m.jsonMarshaler.Unmarshal(jsonData, v)
}

// NewDecoder creates a decoder for form-urlencoded data
func (m *FormMarshaler) NewDecoder(r io.Reader) runtime.Decoder {
	return runtime.DecoderFunc(func(v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return fmt.Errorf("failed to read form data: %w", err)
		}
		return m.Unmarshal(data, v)
	})
}

// NewEncoder returns a JSON encoder for responses
func (m *FormMarshaler) NewEncoder(w io.Writer) runtime.Encoder {
	return m.jsonMarshaler.NewEncoder(w)
}

// Delimiter is not used for form encoding
func (m *FormMarshaler) Delimiter() []byte {
	return []byte("\n")
}
