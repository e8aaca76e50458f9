// Package session identifies the user behind a request and decides
// whether they may manage analytics settings.
package session

import (
	"errors"
	"net/http"
	"strings"
)

// ErrUnauthenticated is returned when a request carries no usable identity
var ErrUnauthenticated = errors.New("unauthenticated")

// ErrForbidden is returned when an identified user fails authorization
var ErrForbidden = errors.New("forbidden")

// Identity is an authenticated user
type Identity struct {
	// ID keys the user's provisioning ticket
	ID string

	// Claims are extra attributes available to authorization policies
	Claims map[string]any
}

// Provider extracts the Identity of a request
type Provider interface {
	Identify(r *http.Request) (*Identity, error)
}

// DefaultUserHeader is set by the fronting proxy after it authenticates the user
const DefaultUserHeader = "X-Forwarded-User"

// HeaderProvider trusts a header set by an authenticating reverse proxy
type HeaderProvider struct {
	header string
}

// NewHeaderProvider creates a HeaderProvider reading header, or DefaultUserHeader if empty
func NewHeaderProvider(header string) *HeaderProvider {
	if header == "" {
		header = DefaultUserHeader
	}
	return &HeaderProvider{header: header}
}

func (p *HeaderProvider) Identify(r *http.Request) (*Identity, error) {
	id := strings.TrimSpace(r.Header.Get(p.header))
	if id == "" {
		return nil, ErrUnauthenticated
	}
	return &Identity{ID: id, Claims: map[string]any{}}, nil
}
