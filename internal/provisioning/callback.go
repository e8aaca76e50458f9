package provisioning

import "net/url"

// Query parameter names of the provisioning callback
const (
	ParamAccountTicketID = "accountTicketId"
	ParamError           = "error"
	ParamAccountID       = "accountId"
	ParamWebPropertyID   = "webPropertyId"
	ParamProfileID       = "profileId"
)

// CallbackParams are the values the remote service appends to the redirect
type CallbackParams struct {
	AccountTicketID string
	Error           string
	AccountID       string
	WebPropertyID   string
	ProfileID       string
}

// ParseCallbackParams extracts CallbackParams from a query string.
// Only the first value of repeated parameters is used.
func ParseCallbackParams(q url.Values) CallbackParams {
	return CallbackParams{
		AccountTicketID: q.Get(ParamAccountTicketID),
		Error:           q.Get(ParamError),
		AccountID:       q.Get(ParamAccountID),
		WebPropertyID:   q.Get(ParamWebPropertyID),
		ProfileID:       q.Get(ParamProfileID),
	}
}

// missing returns the names of required success parameters that are empty
func (p CallbackParams) missing() []string {
	var names []string
	if p.AccountID == "" {
		names = append(names, ParamAccountID)
	}
	if p.WebPropertyID == "" {
		names = append(names, ParamWebPropertyID)
	}
	if p.ProfileID == "" {
		names = append(names, ParamProfileID)
	}
	return names
}
