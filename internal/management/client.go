// Package management talks to the analytics Management and Provisioning APIs.
package management

import (
	"context"
	"fmt"
	"net/http"

	analytics "google.golang.org/api/analytics/v3"
	"google.golang.org/api/option"
)

// Scopes the client's credentials need
var Scopes = []string{
	analytics.AnalyticsReadonlyScope,
	analytics.AnalyticsEditScope,
	analytics.AnalyticsProvisionScope,
}

// Config configures a Client
type Config struct {
	// HTTPClient carries authentication and transport. Required.
	HTTPClient *http.Client

	// Endpoint overrides the API base path, e.g. for a local emulator.
	// Must end with a slash.
	Endpoint string
}

// Client wraps the generated analytics/v3 service
type Client struct {
	svc *analytics.Service
}

// New creates a Client
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.HTTPClient == nil {
		return nil, fmt.Errorf("http client is required")
	}

	opts := []option.ClientOption{option.WithHTTPClient(cfg.HTTPClient)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	svc, err := analytics.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics service: %w", err)
	}
	return &Client{svc: svc}, nil
}

// GetProperty fetches a web property by account and property ID
func (c *Client) GetProperty(ctx context.Context, accountID, propertyID string) (*analytics.Webproperty, error) {
	return c.svc.Management.Webproperties.Get(accountID, propertyID).Context(ctx).Do()
}

// AccountTicketRequest describes the account, property and view the remote
// service should create once the user accepts its terms of service.
type AccountTicketRequest struct {
	AccountName  string
	PropertyName string
	ProfileName  string
	WebsiteURL   string
	Timezone     string

	// RedirectURI receives the provisioning callback
	RedirectURI string
}

// CreateAccountTicket submits an account-creation request and returns the ticket ID
func (c *Client) CreateAccountTicket(ctx context.Context, req AccountTicketRequest) (string, error) {
	ticket := &analytics.AccountTicket{
		Account: &analytics.Account{Name: req.AccountName},
		Webproperty: &analytics.Webproperty{
			Name:       req.PropertyName,
			WebsiteUrl: req.WebsiteURL,
		},
		Profile: &analytics.Profile{
			Name:     req.ProfileName,
			Timezone: req.Timezone,
		},
		RedirectUri: req.RedirectURI,
	}

	created, err := c.svc.Provisioning.CreateAccountTicket(ticket).Context(ctx).Do()
	if err != nil {
		return "", err
	}
	if created.Id == "" {
		return "", fmt.Errorf("provisioning API returned an account ticket without an ID")
	}
	return created.Id, nil
}

// PropertyRequest describes a web property to create under an existing account
type PropertyRequest struct {
	Name       string
	WebsiteURL string
}

// InsertProperty creates a web property. The response carries the new
// property ID and its internal web property ID.
func (c *Client) InsertProperty(ctx context.Context, accountID string, req PropertyRequest) (*analytics.Webproperty, error) {
	property := &analytics.Webproperty{
		Name:       req.Name,
		WebsiteUrl: req.WebsiteURL,
	}
	created, err := c.svc.Management.Webproperties.Insert(accountID, property).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if created.Id == "" {
		return nil, fmt.Errorf("management API returned a web property without an ID")
	}
	return created, nil
}

// ProfileRequest describes a profile (view) to create under an existing property
type ProfileRequest struct {
	Name     string
	Timezone string
}

// InsertProfile creates a profile under accountID/propertyID
func (c *Client) InsertProfile(ctx context.Context, accountID, propertyID string, req ProfileRequest) (*analytics.Profile, error) {
	profile := &analytics.Profile{
		Name:     req.Name,
		Timezone: req.Timezone,
	}
	created, err := c.svc.Management.Profiles.Insert(accountID, propertyID, profile).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if created.Id == "" {
		return nil, fmt.Errorf("management API returned a profile without an ID")
	}
	return created, nil
}
