package provisioning

import (
	"context"

	"github.com/alechenninger/provisioner/internal/settings"
)

// ReconcileObserver creates request-scoped probes for reconciliations
type ReconcileObserver interface {
	ReconcileStarted(ctx context.Context, userID string) (context.Context, ReconcileProbe)
}

// ReconcileProbe receives the events of a single reconciliation
type ReconcileProbe interface {
	// TicketTaken reports whether a live ticket was found (and removed)
	TicketTaken(found bool)
	// TicketStoreFailed reports a ticket store error; the ticket is treated as absent
	TicketStoreFailed(err error)
	// Rejected reports a terminal failure before resolution
	Rejected(state State, code string, detail string)
	// ResolutionFailed reports a failed property lookup
	ResolutionFailed(err error)
	// CommitFailed reports a settings store failure
	CommitFailed(err error)
	// Committed reports the persisted identifier unit
	Committed(ids settings.Identifiers)
	// End is called once the reconciliation finishes, whatever the outcome
	End()
}

// NoopReconcileObserver discards all events
type NoopReconcileObserver struct{}

func (NoopReconcileObserver) ReconcileStarted(ctx context.Context, _ string) (context.Context, ReconcileProbe) {
	return ctx, NoopReconcileProbe{}
}

// NoopReconcileProbe ignores every event; embed it to implement a subset
type NoopReconcileProbe struct{}

func (NoopReconcileProbe) TicketTaken(bool)               {}
func (NoopReconcileProbe) TicketStoreFailed(error)        {}
func (NoopReconcileProbe) Rejected(State, string, string) {}
func (NoopReconcileProbe) ResolutionFailed(error)         {}
func (NoopReconcileProbe) CommitFailed(error)             {}
func (NoopReconcileProbe) Committed(settings.Identifiers) {}
func (NoopReconcileProbe) End()                           {}
