package provisioning

import (
	"github.com/alechenninger/provisioner/internal/settings"
)

// State is a terminal state of a reconciliation
type State int

const (
	// StateCommitted: identifiers resolved and persisted
	StateCommitted State = iota
	// StateTicketMismatch: no stored ticket, or it differs from the callback's
	StateTicketMismatch
	// StateRemoteError: the callback carried an error parameter
	StateRemoteError
	// StateMissingParameter: a required success parameter was absent
	StateMissingParameter
	// StateResolutionFailed: the property lookup failed
	StateResolutionFailed
	// StateCommitFailed: the settings store rejected the write
	StateCommitFailed
)

func (s State) String() string {
	switch s {
	case StateCommitted:
		return "committed"
	case StateTicketMismatch:
		return "ticket_mismatch"
	case StateRemoteError:
		return "remote_error"
	case StateMissingParameter:
		return "missing_parameter"
	case StateResolutionFailed:
		return "resolution_failed"
	case StateCommitFailed:
		return "commit_failed"
	default:
		return "unknown"
	}
}

// Machine-readable failure codes carried to the setup screen
const (
	CodeTicketMismatch   = "account_ticket_id_mismatch"
	CodeMissingParameter = "callback_missing_parameter"
	CodeLookupFailed     = "property_lookup_failed"
	CodeCommitFailed     = "settings_commit_failed"
)

// Outcome is the result of one reconciliation. Exactly one of the success
// or failure shapes is populated: Identifiers on StateCommitted, Code (and
// possibly Err) otherwise.
type Outcome struct {
	State State

	// Code is the failure code; empty on success
	Code string

	// Err is the underlying error for resolution and commit failures
	Err error

	// Identifiers is the committed unit; zero unless State is StateCommitted
	Identifiers settings.Identifiers
}

// OK reports whether the reconciliation committed new settings
func (o Outcome) OK() bool {
	return o.State == StateCommitted
}

func failure(state State, code string, err error) Outcome {
	return Outcome{State: state, Code: code, Err: err}
}
