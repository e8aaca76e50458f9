package provisioning

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alechenninger/provisioner/internal/management"
	"github.com/alechenninger/provisioner/internal/ticket"
)

// ErrInvalidRequest marks caller input errors
var ErrInvalidRequest = errors.New("invalid request")

// TermsOfServiceURL is where the user accepts the remote terms for a ticket
const TermsOfServiceURL = "https://analytics.google.com/analytics/web/?provisioningSignup=false#management/TermsOfService/?api.accountTicketId="

// DefaultProfileName is used when the request names no profile
const DefaultProfileName = "All Web Site Data"

// AccountTicketIssuer submits account-creation requests to the remote service
type AccountTicketIssuer interface {
	CreateAccountTicket(ctx context.Context, req management.AccountTicketRequest) (string, error)
}

// AccountRequest is what the user asks to have created
type AccountRequest struct {
	AccountName  string `json:"accountName"`
	PropertyName string `json:"propertyName"`
	ProfileName  string `json:"profileName"`
	WebsiteURL   string `json:"websiteURL"`
	Timezone     string `json:"timezone"`
}

func (r AccountRequest) validate() error {
	if strings.TrimSpace(r.AccountName) == "" {
		return fmt.Errorf("%w: accountName is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.PropertyName) == "" {
		return fmt.Errorf("%w: propertyName is required", ErrInvalidRequest)
	}
	u, err := url.Parse(r.WebsiteURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: websiteURL must be an absolute http(s) URL", ErrInvalidRequest)
	}
	if r.Timezone == "" {
		return fmt.Errorf("%w: timezone is required", ErrInvalidRequest)
	}
	if _, err := time.LoadLocation(r.Timezone); err != nil {
		return fmt.Errorf("%w: unknown timezone %q", ErrInvalidRequest, r.Timezone)
	}
	return nil
}

// AccountTicket is returned to the caller, who sends the user to ProvisioningURL
type AccountTicket struct {
	ID              string `json:"id"`
	ProvisioningURL string `json:"provisioningURL"`
}

// Initiator starts the provisioning handshake
type Initiator struct {
	issuer      AccountTicketIssuer
	tickets     *ticket.Tickets
	callbackURL string
}

// NewInitiator creates an Initiator. callbackURL is where the remote
// service redirects once the user has accepted its terms.
func NewInitiator(issuer AccountTicketIssuer, tickets *ticket.Tickets, callbackURL string) *Initiator {
	return &Initiator{
		issuer:      issuer,
		tickets:     tickets,
		callbackURL: callbackURL,
	}
}

// CreateAccountTicket requests an account ticket and records it as the
// user's in-flight ticket, replacing any earlier one.
func (i *Initiator) CreateAccountTicket(ctx context.Context, userID string, req AccountRequest) (*AccountTicket, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user is required", ErrInvalidRequest)
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	profileName := req.ProfileName
	if strings.TrimSpace(profileName) == "" {
		profileName = DefaultProfileName
	}

	id, err := i.issuer.CreateAccountTicket(ctx, management.AccountTicketRequest{
		AccountName:  req.AccountName,
		PropertyName: req.PropertyName,
		ProfileName:  profileName,
		WebsiteURL:   req.WebsiteURL,
		Timezone:     req.Timezone,
		RedirectURI:  i.callbackURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create account ticket: %w", err)
	}

	if err := i.tickets.Put(ctx, userID, id); err != nil {
		return nil, err
	}

	return &AccountTicket{
		ID:              id,
		ProvisioningURL: TermsOfServiceURL + url.QueryEscape(id),
	}, nil
}
