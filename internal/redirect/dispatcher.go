// Package redirect sends the user back to the admin screens after a
// provisioning callback has been reconciled.
package redirect

import (
	"net/http"
	"net/url"

	"github.com/alechenninger/provisioner/internal/provisioning"
)

// Default admin screen coordinates
const (
	DefaultAdminURL      = "https://example.com/wp-admin/admin.php"
	DefaultSetupPage     = "googlesitekit-module-analytics"
	DefaultDashboardPage = "googlesitekit-dashboard"
	DefaultModuleSlug    = "analytics"

	// SuccessNotification is shown on the dashboard after a commit
	SuccessNotification = "authentication_success"
)

// Targets locates the admin screens
type Targets struct {
	AdminURL      string
	SetupPage     string
	DashboardPage string
	ModuleSlug    string
}

func (t Targets) withDefaults() Targets {
	if t.AdminURL == "" {
		t.AdminURL = DefaultAdminURL
	}
	if t.SetupPage == "" {
		t.SetupPage = DefaultSetupPage
	}
	if t.DashboardPage == "" {
		t.DashboardPage = DefaultDashboardPage
	}
	if t.ModuleSlug == "" {
		t.ModuleSlug = DefaultModuleSlug
	}
	return t
}

// Dispatcher maps reconciliation outcomes to redirects
type Dispatcher struct {
	targets Targets
}

// NewDispatcher creates a Dispatcher. Empty fields of targets take the defaults.
func NewDispatcher(targets Targets) *Dispatcher {
	return &Dispatcher{targets: targets.withDefaults()}
}

// Target returns the absolute redirect location for an outcome.
// Failures land on the setup screen with the failure code; success lands
// on the dashboard with the success notification.
func (d *Dispatcher) Target(out provisioning.Outcome) string {
	q := url.Values{}
	if out.OK() {
		q.Set("page", d.targets.DashboardPage)
		q.Set("notification", SuccessNotification)
		q.Set("slug", d.targets.ModuleSlug)
	} else {
		q.Set("page", d.targets.SetupPage)
		q.Set("error_code", out.Code)
	}
	return d.location(q)
}

func (d *Dispatcher) location(q url.Values) string {
	u, err := url.Parse(d.targets.AdminURL)
	if err != nil {
		return d.targets.AdminURL + "?" + q.Encode()
	}
	existing := u.Query()
	for k, vs := range q {
		existing[k] = vs
	}
	u.RawQuery = existing.Encode()
	return u.String()
}

// Dispatch writes a 302 to the outcome's target. Callers must not write
// to w afterwards.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request, out provisioning.Outcome) {
	http.Redirect(w, r, d.Target(out), http.StatusFound)
}
