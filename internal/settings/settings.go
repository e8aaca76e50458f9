// Package settings persists the analytics module configuration.
//
// The four identifiers (account, property, profile, internal web property)
// form a unit: stores only ever replace them together, so readers never see
// a mix of old and new provisioning results.
package settings

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// TrackingScopeLoggedInUsers disables tracking for authenticated visitors
const TrackingScopeLoggedInUsers = "loggedinUsers"

// Settings is the persisted module configuration
type Settings struct {
	AccountID             string   `json:"accountID"`
	PropertyID            string   `json:"propertyID"`
	ProfileID             string   `json:"profileID"`
	InternalWebPropertyID string   `json:"internalWebPropertyID"`
	UseSnippet            bool     `json:"useSnippet"`
	AnonymizeIP           bool     `json:"anonymizeIP"`
	AdsenseLinked         bool     `json:"adsenseLinked"`
	TrackingDisabled      []string `json:"trackingDisabled"`
}

// Default returns the settings of a module that was never configured
func Default() Settings {
	return Settings{
		UseSnippet:       true,
		AnonymizeIP:      true,
		TrackingDisabled: []string{TrackingScopeLoggedInUsers},
	}
}

// Identifiers returns the identifier unit of s
func (s Settings) Identifiers() Identifiers {
	return Identifiers{
		AccountID:             s.AccountID,
		PropertyID:            s.PropertyID,
		ProfileID:             s.ProfileID,
		InternalWebPropertyID: s.InternalWebPropertyID,
	}
}

// Connected reports whether a complete identifier unit is stored
func (s Settings) Connected() bool {
	return s.Identifiers().Validate() == nil
}

// Identifiers is the unit written by a successful provisioning or link
type Identifiers struct {
	AccountID             string `json:"accountID"`
	PropertyID            string `json:"propertyID"`
	ProfileID             string `json:"profileID"`
	InternalWebPropertyID string `json:"internalWebPropertyID"`
}

// ErrIncompleteIdentifiers is returned when any identifier is empty
var ErrIncompleteIdentifiers = errors.New("identifier unit is incomplete")

// Validate checks that all four identifiers are set
func (ids Identifiers) Validate() error {
	var missing []string
	if ids.AccountID == "" {
		missing = append(missing, "accountID")
	}
	if ids.PropertyID == "" {
		missing = append(missing, "propertyID")
	}
	if ids.ProfileID == "" {
		missing = append(missing, "profileID")
	}
	if ids.InternalWebPropertyID == "" {
		missing = append(missing, "internalWebPropertyID")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %v", ErrIncompleteIdentifiers, missing)
	}
	return nil
}

// Defaults are the non-identifier values written alongside a new identifier unit
type Defaults struct {
	UseSnippet       bool
	AnonymizeIP      bool
	TrackingDisabled []string
}

// ProvisioningDefaults are applied after a successful provisioning or link
func ProvisioningDefaults() Defaults {
	return Defaults{
		UseSnippet:       true,
		AnonymizeIP:      true,
		TrackingDisabled: []string{TrackingScopeLoggedInUsers},
	}
}

// Update is a partial settings change. Nil fields are left untouched.
// TrackingDisabled is replaced when non-nil; an empty non-nil slice clears it.
type Update struct {
	Identifiers      *Identifiers
	UseSnippet       *bool
	AnonymizeIP      *bool
	AdsenseLinked    *bool
	TrackingDisabled []string
}

// Apply returns s with u applied
func (u Update) Apply(s Settings) Settings {
	if u.Identifiers != nil {
		s.AccountID = u.Identifiers.AccountID
		s.PropertyID = u.Identifiers.PropertyID
		s.ProfileID = u.Identifiers.ProfileID
		s.InternalWebPropertyID = u.Identifiers.InternalWebPropertyID
	}
	if u.UseSnippet != nil {
		s.UseSnippet = *u.UseSnippet
	}
	if u.AnonymizeIP != nil {
		s.AnonymizeIP = *u.AnonymizeIP
	}
	if u.AdsenseLinked != nil {
		s.AdsenseLinked = *u.AdsenseLinked
	}
	if u.TrackingDisabled != nil {
		s.TrackingDisabled = slices.Clone(u.TrackingDisabled)
	}
	return s
}

// Store persists Settings
type Store interface {
	// Get returns the stored settings, or Default() when none are stored
	Get(ctx context.Context) (Settings, error)

	// Merge applies u atomically: concurrent readers observe either the
	// settings before or after the whole update
	Merge(ctx context.Context, u Update) error
}
