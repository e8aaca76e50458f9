// Package resolver fetches the property metadata a provisioning callback
// does not carry, chiefly the internal web property ID.
package resolver

import (
	"context"
	"errors"
	"fmt"
)

// PropertyRecord is the resolved metadata of one web property
type PropertyRecord struct {
	AccountID             string `json:"accountId"`
	WebPropertyID         string `json:"webPropertyId"`
	InternalWebPropertyID string `json:"internalWebPropertyId"`
	DefaultProfileID      string `json:"defaultProfileId"`
}

// Resolver looks up a web property. Implementations perform a single
// read and never retry.
type Resolver interface {
	Resolve(ctx context.Context, accountID, webPropertyID string) (*PropertyRecord, error)
}

// ErrNotFound matches lookup errors of kind KindNotFound via errors.Is
var ErrNotFound = errors.New("property not found")

// Kind classifies lookup failures
type Kind int

const (
	// KindTransport covers network, timeout, auth and server-side failures
	KindTransport Kind = iota
	// KindNotFound means the property does not exist or is not visible
	KindNotFound
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	default:
		return "transport"
	}
}

func parseKind(s string) Kind {
	if s == KindNotFound.String() {
		return KindNotFound
	}
	return KindTransport
}

// LookupError is returned by Resolver implementations
type LookupError struct {
	Kind          Kind
	AccountID     string
	WebPropertyID string
	Err           error
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("lookup of property %s (account %s) failed (%s): %v", e.WebPropertyID, e.AccountID, e.Kind, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// Is reports ErrNotFound for not-found lookups
func (e *LookupError) Is(target error) bool {
	return target == ErrNotFound && e.Kind == KindNotFound
}

// KindOf returns the Kind of a lookup error; unknown errors are KindTransport
func KindOf(err error) Kind {
	var lookupErr *LookupError
	if errors.As(err, &lookupErr) {
		return lookupErr.Kind
	}
	return KindTransport
}
