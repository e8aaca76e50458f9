package httpfixture

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Transport is an http.RoundTripper that answers from a Provider.
// Requests without a fixture go to Fallback, or fail when Fallback is nil.
type Transport struct {
	Provider Provider
	Fallback http.RoundTripper
}

// NewTransport creates a Transport with no fallback
func NewTransport(provider Provider) *Transport {
	return &Transport{Provider: provider}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	fixture := t.Provider.Lookup(req)
	if fixture == nil {
		if t.Fallback != nil {
			return t.Fallback.RoundTrip(req)
		}
		return nil, fmt.Errorf("no fixture for %s %s", req.Method, req.URL)
	}

	if fixture.Delay != nil && *fixture.Delay > 0 {
		timer := time.NewTimer(*fixture.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}

	status := fixture.StatusCode
	if status == 0 {
		status = http.StatusOK
	}

	header := make(http.Header, len(fixture.Headers))
	for k, v := range fixture.Headers {
		header.Set(k, v)
	}
	if header.Get("Content-Type") == "" {
		header.Set("Content-Type", "application/json")
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", status, http.StatusText(status)),
		StatusCode:    status,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(strings.NewReader(fixture.Body)),
		ContentLength: int64(len(fixture.Body)),
		Request:       req,
	}, nil
}
