package provisioning

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	analytics "google.golang.org/api/analytics/v3"

	"github.com/alechenninger/provisioner/internal/identifier"
	"github.com/alechenninger/provisioner/internal/management"
	"github.com/alechenninger/provisioner/internal/resolver"
	"github.com/alechenninger/provisioner/internal/settings"
)

// ErrCreateFailed marks a remote create call that did not succeed
var ErrCreateFailed = errors.New("remote create failed")

// ResourceInserter creates properties and profiles under an existing account.
// Callers need the analytics.edit scope.
type ResourceInserter interface {
	InsertProperty(ctx context.Context, accountID string, req management.PropertyRequest) (*analytics.Webproperty, error)
	InsertProfile(ctx context.Context, accountID, propertyID string, req management.ProfileRequest) (*analytics.Profile, error)
}

// PropertyRequest asks for a new property and its first profile
type PropertyRequest struct {
	AccountID    string `json:"accountID"`
	PropertyName string `json:"propertyName"`
	WebsiteURL   string `json:"websiteURL"`
	ProfileName  string `json:"profileName"`
	Timezone     string `json:"timezone"`
}

// ProfileRequest asks for a new profile under an existing property
type ProfileRequest struct {
	PropertyID  string `json:"propertyID"`
	ProfileName string `json:"profileName"`
	Timezone    string `json:"timezone"`
}

// Creator provisions properties and profiles in accounts the user already
// has, then links them the same way Linker does.
type Creator struct {
	api       ResourceInserter
	resolver  resolver.Resolver
	committer SettingsCommitter
}

// NewCreator creates a Creator
func NewCreator(api ResourceInserter, res resolver.Resolver, committer SettingsCommitter) *Creator {
	return &Creator{api: api, resolver: res, committer: committer}
}

// CreatePropertyAndLink creates a property under req.AccountID, a profile
// under it, and commits the resulting unit.
func (c *Creator) CreatePropertyAndLink(ctx context.Context, req PropertyRequest) (settings.Identifiers, error) {
	if !identifier.IsAccountID(req.AccountID) {
		return settings.Identifiers{}, fmt.Errorf("%w: malformed account ID %q", ErrInvalidRequest, req.AccountID)
	}
	if strings.TrimSpace(req.PropertyName) == "" {
		return settings.Identifiers{}, fmt.Errorf("%w: propertyName is required", ErrInvalidRequest)
	}
	u, err := url.Parse(req.WebsiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return settings.Identifiers{}, fmt.Errorf("%w: websiteURL must be an absolute http(s) URL", ErrInvalidRequest)
	}
	if err := validateTimezone(req.Timezone); err != nil {
		return settings.Identifiers{}, err
	}

	property, err := c.api.InsertProperty(ctx, req.AccountID, management.PropertyRequest{
		Name:       req.PropertyName,
		WebsiteURL: req.WebsiteURL,
	})
	if err != nil {
		return settings.Identifiers{}, fmt.Errorf("%w: property: %w", ErrCreateFailed, err)
	}
	if !identifier.IsPropertyID(property.Id) {
		return settings.Identifiers{}, fmt.Errorf("%w: property: malformed ID %q", ErrCreateFailed, property.Id)
	}

	return c.createProfileAndLink(ctx, req.AccountID, property.Id, req.ProfileName, req.Timezone)
}

// CreateProfileAndLink creates a profile under req.PropertyID and commits
// the resulting unit.
func (c *Creator) CreateProfileAndLink(ctx context.Context, req ProfileRequest) (settings.Identifiers, error) {
	accountID := identifier.ParseAccountID(req.PropertyID)
	if accountID == "" {
		return settings.Identifiers{}, fmt.Errorf("%w: malformed property ID %q", ErrInvalidRequest, req.PropertyID)
	}
	if err := validateTimezone(req.Timezone); err != nil {
		return settings.Identifiers{}, err
	}

	return c.createProfileAndLink(ctx, accountID, req.PropertyID, req.ProfileName, req.Timezone)
}

func (c *Creator) createProfileAndLink(ctx context.Context, accountID, propertyID, profileName, timezone string) (settings.Identifiers, error) {
	if strings.TrimSpace(profileName) == "" {
		profileName = DefaultProfileName
	}

	profile, err := c.api.InsertProfile(ctx, accountID, propertyID, management.ProfileRequest{
		Name:     profileName,
		Timezone: timezone,
	})
	if err != nil {
		return settings.Identifiers{}, fmt.Errorf("%w: profile: %w", ErrCreateFailed, err)
	}
	if !identifier.IsProfileID(profile.Id) {
		return settings.Identifiers{}, fmt.Errorf("%w: profile: malformed ID %q", ErrCreateFailed, profile.Id)
	}

	record, err := c.resolver.Resolve(ctx, accountID, propertyID)
	if err != nil {
		return settings.Identifiers{}, err
	}

	ids := settings.Identifiers{
		AccountID:             accountID,
		PropertyID:            propertyID,
		ProfileID:             profile.Id,
		InternalWebPropertyID: record.InternalWebPropertyID,
	}
	if err := c.committer.Commit(ctx, ids, settings.ProvisioningDefaults()); err != nil {
		return settings.Identifiers{}, err
	}
	return ids, nil
}

// validateTimezone accepts an empty zone; the remote service then uses the
// account's default.
func validateTimezone(tz string) error {
	if tz == "" {
		return nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidRequest, tz)
	}
	return nil
}
