package resolver

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	analytics "google.golang.org/api/analytics/v3"
	"google.golang.org/api/googleapi"

	"github.com/alechenninger/provisioner/internal/identifier"
)

// PropertyGetter is the slice of the Management API the resolver needs
type PropertyGetter interface {
	GetProperty(ctx context.Context, accountID, propertyID string) (*analytics.Webproperty, error)
}

// ManagementResolver resolves properties through the Management API
type ManagementResolver struct {
	api PropertyGetter
}

// NewManagementResolver creates a ManagementResolver
func NewManagementResolver(api PropertyGetter) *ManagementResolver {
	return &ManagementResolver{api: api}
}

// Resolve implements Resolver
func (r *ManagementResolver) Resolve(ctx context.Context, accountID, webPropertyID string) (*PropertyRecord, error) {
	property, err := r.api.GetProperty(ctx, accountID, webPropertyID)
	if err != nil {
		return nil, &LookupError{
			Kind:          classify(err),
			AccountID:     accountID,
			WebPropertyID: webPropertyID,
			Err:           err,
		}
	}

	if property == nil || !identifier.IsInternalWebPropertyID(property.InternalWebPropertyId) {
		return nil, &LookupError{
			Kind:          KindNotFound,
			AccountID:     accountID,
			WebPropertyID: webPropertyID,
			Err:           errors.New("response has no valid internal web property ID"),
		}
	}

	record := &PropertyRecord{
		AccountID:             property.AccountId,
		WebPropertyID:         property.Id,
		InternalWebPropertyID: property.InternalWebPropertyId,
	}
	if property.DefaultProfileId != 0 {
		record.DefaultProfileID = strconv.FormatInt(property.DefaultProfileId, 10)
	}
	return record, nil
}

func classify(err error) Kind {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return KindNotFound
	}
	return KindTransport
}
