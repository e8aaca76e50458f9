package probe

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/alechenninger/provisioner/internal/provisioning"
	"github.com/alechenninger/provisioner/internal/resolver"
	"github.com/alechenninger/provisioner/internal/settings"
)

// loggingReconcileObserver creates request-scoped logging probes
type loggingReconcileObserver struct {
	logger logrus.FieldLogger
}

// NewLoggingReconcileObserver creates an observer that logs callback
// reconciliation events as structured logrus entries.
func NewLoggingReconcileObserver(logger logrus.FieldLogger) provisioning.ReconcileObserver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &loggingReconcileObserver{logger: logger}
}

func (o *loggingReconcileObserver) ReconcileStarted(ctx context.Context, userID string) (context.Context, provisioning.ReconcileProbe) {
	entry := o.logger.WithField("user_id", userID)
	if id := RequestID(ctx); id != "" {
		entry = entry.WithField("request_id", id)
	}
	entry.Debug("Reconciling provisioning callback")

	return ctx, &loggingReconcileProbe{entry: entry}
}

// loggingReconcileProbe logs the events of a single reconciliation
type loggingReconcileProbe struct {
	entry *logrus.Entry
}

func (p *loggingReconcileProbe) TicketTaken(found bool) {
	p.entry.WithField("ticket_found", found).Debug("Took stored account ticket")
}

func (p *loggingReconcileProbe) TicketStoreFailed(err error) {
	p.entry.WithError(err).Error("Ticket store failed; treating ticket as absent")
}

func (p *loggingReconcileProbe) Rejected(state provisioning.State, code string, detail string) {
	p.entry.WithFields(logrus.Fields{
		"state":  state.String(),
		"code":   code,
		"detail": detail,
	}).Warn("Provisioning callback rejected")
}

func (p *loggingReconcileProbe) ResolutionFailed(err error) {
	p.entry.WithError(err).
		WithField("kind", resolver.KindOf(err).String()).
		Error("Property lookup failed")
}

func (p *loggingReconcileProbe) CommitFailed(err error) {
	p.entry.WithError(err).Error("Failed to commit analytics settings")
}

func (p *loggingReconcileProbe) Committed(ids settings.Identifiers) {
	p.entry.WithFields(logrus.Fields{
		"account_id":               ids.AccountID,
		"property_id":              ids.PropertyID,
		"profile_id":               ids.ProfileID,
		"internal_web_property_id": ids.InternalWebPropertyID,
	}).Info("Analytics settings committed")
}

func (p *loggingReconcileProbe) End() {
	p.entry.Debug("Reconciliation completed")
}
