// Package provisioning implements the account provisioning handshake:
// issuing an account ticket, reconciling the redirect callback that follows
// it, and linking an existing property directly.
package provisioning

import (
	"context"
	"crypto/subtle"
	"strings"

	"github.com/alechenninger/provisioner/internal/resolver"
	"github.com/alechenninger/provisioner/internal/settings"
	"github.com/alechenninger/provisioner/internal/ticket"
)

// SettingsCommitter persists a resolved identifier unit
type SettingsCommitter interface {
	Commit(ctx context.Context, ids settings.Identifiers, d settings.Defaults) error
}

// Reconciler validates provisioning callbacks and commits their result
type Reconciler struct {
	tickets   *ticket.Tickets
	resolver  resolver.Resolver
	committer SettingsCommitter
	observer  ReconcileObserver
}

// NewReconciler creates a Reconciler. A nil observer discards events.
func NewReconciler(tickets *ticket.Tickets, res resolver.Resolver, committer SettingsCommitter, observer ReconcileObserver) *Reconciler {
	if observer == nil {
		observer = NoopReconcileObserver{}
	}
	return &Reconciler{
		tickets:   tickets,
		resolver:  res,
		committer: committer,
		observer:  observer,
	}
}

// Reconcile handles one callback for userID. The user's ticket is consumed
// before anything else is checked, so a callback can never be replayed,
// even one that fails validation.
func (r *Reconciler) Reconcile(ctx context.Context, userID string, params CallbackParams) Outcome {
	ctx, probe := r.observer.ReconcileStarted(ctx, userID)
	defer probe.End()

	stored, found, err := r.tickets.TakeAndClear(ctx, userID)
	if err != nil {
		probe.TicketStoreFailed(err)
		found = false
	}
	probe.TicketTaken(found)

	if !found || !ticketsEqual(stored, params.AccountTicketID) {
		detail := "no ticket stored for user"
		if found {
			detail = "ticket does not match callback"
		}
		probe.Rejected(StateTicketMismatch, CodeTicketMismatch, detail)
		return failure(StateTicketMismatch, CodeTicketMismatch, nil)
	}

	if params.Error != "" {
		probe.Rejected(StateRemoteError, params.Error, "remote service reported an error")
		return failure(StateRemoteError, params.Error, nil)
	}

	if missing := params.missing(); len(missing) > 0 {
		probe.Rejected(StateMissingParameter, CodeMissingParameter, "missing "+strings.Join(missing, ", "))
		return failure(StateMissingParameter, CodeMissingParameter, nil)
	}

	record, err := r.resolver.Resolve(ctx, params.AccountID, params.WebPropertyID)
	if err != nil {
		probe.ResolutionFailed(err)
		return failure(StateResolutionFailed, CodeLookupFailed, err)
	}

	ids := settings.Identifiers{
		AccountID:             params.AccountID,
		PropertyID:            params.WebPropertyID,
		ProfileID:             params.ProfileID,
		InternalWebPropertyID: record.InternalWebPropertyID,
	}
	if err := r.committer.Commit(ctx, ids, settings.ProvisioningDefaults()); err != nil {
		probe.CommitFailed(err)
		return failure(StateCommitFailed, CodeCommitFailed, err)
	}

	probe.Committed(ids)
	return Outcome{State: StateCommitted, Identifiers: ids}
}

// ticketsEqual compares in constant time; an empty callback value never matches
func ticketsEqual(stored, received string) bool {
	if received == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(stored), []byte(received)) == 1
}
