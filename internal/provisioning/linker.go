package provisioning

import (
	"context"
	"fmt"

	"github.com/alechenninger/provisioner/internal/identifier"
	"github.com/alechenninger/provisioner/internal/resolver"
	"github.com/alechenninger/provisioner/internal/settings"
)

// Linker connects an existing property and profile without the ticket handshake
type Linker struct {
	resolver  resolver.Resolver
	committer SettingsCommitter
}

// NewLinker creates a Linker
func NewLinker(res resolver.Resolver, committer SettingsCommitter) *Linker {
	return &Linker{resolver: res, committer: committer}
}

// Link derives the account from propertyID, resolves the internal web
// property ID and commits the unit with the provisioning defaults.
func (l *Linker) Link(ctx context.Context, propertyID, profileID string) (settings.Identifiers, error) {
	accountID := identifier.ParseAccountID(propertyID)
	if accountID == "" {
		return settings.Identifiers{}, fmt.Errorf("%w: malformed property ID %q", ErrInvalidRequest, propertyID)
	}
	if !identifier.IsProfileID(profileID) {
		return settings.Identifiers{}, fmt.Errorf("%w: malformed profile ID %q", ErrInvalidRequest, profileID)
	}

	record, err := l.resolver.Resolve(ctx, accountID, propertyID)
	if err != nil {
		return settings.Identifiers{}, err
	}

	ids := settings.Identifiers{
		AccountID:             accountID,
		PropertyID:            propertyID,
		ProfileID:             profileID,
		InternalWebPropertyID: record.InternalWebPropertyID,
	}
	if err := l.committer.Commit(ctx, ids, settings.ProvisioningDefaults()); err != nil {
		return settings.Identifiers{}, err
	}
	return ids, nil
}
