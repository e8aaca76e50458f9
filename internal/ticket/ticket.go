// Package ticket records in-flight provisioning requests.
//
// A provisioning ticket is the correlation token the remote service hands
// out when an account-creation request is submitted. It is kept under a
// per-user key until the matching callback arrives and is consumed exactly
// once, whatever the callback's outcome.
package ticket

import (
	"context"
	"fmt"
	"time"
)

// DefaultKeyPrefix is prepended to the user ID to build the store key
const DefaultKeyPrefix = "provision_account_ticket_id"

// DefaultTTL bounds how long a user has to complete the remote sign-up
const DefaultTTL = 15 * time.Minute

// Store is an ephemeral key-value store with store-managed expiry.
type Store interface {
	// Put stores value under key, replacing any previous value.
	// A ttl <= 0 means the store's own default, if any.
	Put(ctx context.Context, key, value string, ttl time.Duration) error

	// TakeAndDelete reads and removes the value under key as one atomic
	// operation. ok is false when nothing (or only an expired value) is stored.
	TakeAndDelete(ctx context.Context, key string) (value string, ok bool, err error)
}

// Tickets stores at most one live ticket per user
type Tickets struct {
	store  Store
	prefix string
	ttl    time.Duration
}

// Option configures Tickets
type Option func(*Tickets)

// WithKeyPrefix overrides DefaultKeyPrefix
func WithKeyPrefix(prefix string) Option {
	return func(t *Tickets) {
		if prefix != "" {
			t.prefix = prefix
		}
	}
}

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(t *Tickets) {
		if ttl > 0 {
			t.ttl = ttl
		}
	}
}

// NewTickets wraps a Store
func NewTickets(store Store, opts ...Option) *Tickets {
	t := &Tickets{
		store:  store,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Key returns the store key for a user's ticket
func (t *Tickets) Key(userID string) string {
	return t.prefix + "::" + userID
}

// Put records ticketID as the user's in-flight ticket, overwriting any earlier one
func (t *Tickets) Put(ctx context.Context, userID, ticketID string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}
	if ticketID == "" {
		return fmt.Errorf("ticket ID is required")
	}
	if err := t.store.Put(ctx, t.Key(userID), ticketID, t.ttl); err != nil {
		return fmt.Errorf("failed to store ticket for user %s: %w", userID, err)
	}
	return nil
}

// TakeAndClear returns the user's ticket and removes it.
// Calling it when no ticket is stored is not an error: ok is false.
func (t *Tickets) TakeAndClear(ctx context.Context, userID string) (ticketID string, ok bool, err error) {
	if userID == "" {
		return "", false, nil
	}
	ticketID, ok, err = t.store.TakeAndDelete(ctx, t.Key(userID))
	if err != nil {
		return "", false, fmt.Errorf("failed to take ticket for user %s: %w", userID, err)
	}
	return ticketID, ok, nil
}
