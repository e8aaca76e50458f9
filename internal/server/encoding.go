package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
)

// ErrorResponse is the body of every JSON error
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func withMarshalers(ctx context.Context, m marshalers) context.Context {
	return context.WithValue(ctx, marshalersKey{}, m)
}

func marshalersFrom(ctx context.Context) marshalers {
	m, ok := ctx.Value(marshalersKey{}).(marshalers)
	if !ok {
		return marshalers{in: &runtime.JSONBuiltin{}, out: &runtime.JSONBuiltin{}}
	}
	return m
}

// maxBodyBytes bounds request bodies
const maxBodyBytes = 64 << 10

func decodeBody(r *http.Request, v any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	m := marshalersFrom(r.Context())
	if err := m.in.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	m := marshalersFrom(r.Context())
	body, err := m.out.Marshal(v)
	if err != nil {
		h.logger.WithError(err).Error("Failed to marshal response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", m.out.ContentType(v))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		h.logger.WithError(err).Debug("Failed to write response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, r, status, ErrorResponse{Error: code, Message: message})
}
