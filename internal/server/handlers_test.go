package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alechenninger/provisioner/internal/clock"
	"github.com/alechenninger/provisioner/internal/httpfixture"
	"github.com/alechenninger/provisioner/internal/management"
	"github.com/alechenninger/provisioner/internal/provisioning"
	"github.com/alechenninger/provisioner/internal/redirect"
	"github.com/alechenninger/provisioner/internal/resolver"
	"github.com/alechenninger/provisioner/internal/session"
	"github.com/alechenninger/provisioner/internal/settings"
	"github.com/alechenninger/provisioner/internal/ticket"
)

type stubResolver struct {
	err error
}

func (s stubResolver) Resolve(_ context.Context, accountID, webPropertyID string) (*resolver.PropertyRecord, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &resolver.PropertyRecord{
		AccountID:             accountID,
		WebPropertyID:         webPropertyID,
		InternalWebPropertyID: "13579",
	}, nil
}

type stubIssuer struct{ id string }

func (s stubIssuer) CreateAccountTicket(context.Context, management.AccountTicketRequest) (string, error) {
	if s.id == "" {
		return "", errors.New("remote failure")
	}
	return s.id, nil
}

// newFixtureManagement serves property and profile inserts from fixtures.
// Account 99999999 and property UA-12345678-9 reject writes.
func newFixtureManagement(t *testing.T) *management.Client {
	t.Helper()
	rules := []httpfixture.Rule{
		{
			Request:  httpfixture.Match{Method: "POST", URL: `/webproperties/UA-12345678-9/profiles`, URLType: "pattern"},
			Response: httpfixture.Response{StatusCode: 403, Body: `{"error":{"code":403,"message":"Insufficient Permission"}}`},
		},
		{
			Request:  httpfixture.Match{Method: "POST", URL: `/profiles`, URLType: "pattern"},
			Response: httpfixture.Response{StatusCode: 200, Body: `{"id":"555","name":"All Web Site Data"}`},
		},
		{
			Request:  httpfixture.Match{Method: "POST", URL: `/accounts/99999999/webproperties`, URLType: "pattern"},
			Response: httpfixture.Response{StatusCode: 403, Body: `{"error":{"code":403,"message":"Insufficient Permission"}}`},
		},
		{
			Request:  httpfixture.Match{Method: "POST", URL: `/webproperties`, URLType: "pattern"},
			Response: httpfixture.Response{StatusCode: 200, Body: `{"id":"UA-12345678-2","accountId":"12345678","internalWebPropertyId":"24680"}`},
		},
	}
	provider, err := httpfixture.NewRuleProvider(rules)
	require.NoError(t, err)

	client, err := management.New(context.Background(), management.Config{
		HTTPClient: &http.Client{Transport: httpfixture.NewTransport(provider)},
		Endpoint:   "https://analytics.test/analytics/v3/",
	})
	require.NoError(t, err)
	return client
}

type harness struct {
	handler http.Handler
	tickets *ticket.Tickets
	store   *settings.MemoryStore
}

func newHarness(t *testing.T, res resolver.Resolver, policy string) *harness {
	t.Helper()
	logger, _ := test.NewNullLogger()

	tickets := ticket.NewTickets(ticket.NewMemoryStore(clock.NewFixtureClock(time.Unix(0, 0))))
	store := settings.NewMemoryStore()
	committer := settings.NewCommitter(store)
	authorizer, err := session.NewAuthorizer(policy)
	require.NoError(t, err)

	h := NewHandlers(HandlersConfig{
		Sessions:   session.NewHeaderProvider(""),
		Authorizer: authorizer,
		Reconciler: provisioning.NewReconciler(tickets, res, committer, nil),
		Initiator:  provisioning.NewInitiator(stubIssuer{id: "abc"}, tickets, "https://host.test/provisioning/callback"),
		Linker:     provisioning.NewLinker(res, committer),
		Creator:    provisioning.NewCreator(newFixtureManagement(t), res, committer),
		Settings:   store,
		Dispatcher: redirect.NewDispatcher(redirect.Targets{AdminURL: "https://host.test/admin.php"}),
		Logger:     logger,
	})
	srv, err := New(Config{Handlers: h, Logger: logger})
	require.NoError(t, err)

	return &harness{handler: srv.Handler(), tickets: tickets, store: store}
}

func (h *harness) do(req *http.Request, user string) *httptest.ResponseRecorder {
	if user != "" {
		req.Header.Set(session.DefaultUserHeader, user)
	}
	w := httptest.NewRecorder()
	h.handler.ServeHTTP(w, req)
	return w
}

func callbackRequest(q string) *http.Request {
	return httptest.NewRequest(http.MethodGet, CallbackPath+"?"+q, nil)
}

func TestCallback(t *testing.T) {
	const okQuery = "accountTicketId=abc&accountId=12345678&webPropertyId=UA-12345678-1&profileId=987654"

	t.Run("success redirects to dashboard", func(t *testing.T) {
		h := newHarness(t, stubResolver{}, "")
		require.NoError(t, h.tickets.Put(context.Background(), "42", "abc"))

		w := h.do(callbackRequest(okQuery), "42")

		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "googlesitekit-dashboard", loc.Query().Get("page"))
		assert.Equal(t, "authentication_success", loc.Query().Get("notification"))
		assert.Equal(t, "analytics", loc.Query().Get("slug"))

		got, err := h.store.Get(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "13579", got.InternalWebPropertyID)
	})

	t.Run("mismatch redirects to setup", func(t *testing.T) {
		h := newHarness(t, stubResolver{}, "")
		require.NoError(t, h.tickets.Put(context.Background(), "42", "abc"))

		w := h.do(callbackRequest(strings.Replace(okQuery, "abc", "xyz", 1)), "42")

		require.Equal(t, http.StatusFound, w.Code)
		loc, err := url.Parse(w.Header().Get("Location"))
		require.NoError(t, err)
		assert.Equal(t, "googlesitekit-module-analytics", loc.Query().Get("page"))
		assert.Equal(t, "account_ticket_id_mismatch", loc.Query().Get("error_code"))
	})

	t.Run("unauthenticated leaves ticket untouched", func(t *testing.T) {
		h := newHarness(t, stubResolver{}, "")
		require.NoError(t, h.tickets.Put(context.Background(), "42", "abc"))

		w := h.do(callbackRequest(okQuery), "")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Empty(t, w.Header().Get("Location"))
		_, ok, err := h.tickets.TakeAndClear(context.Background(), "42")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("unauthorized is forbidden", func(t *testing.T) {
		h := newHarness(t, stubResolver{}, `user.id == "1"`)
		require.NoError(t, h.tickets.Put(context.Background(), "42", "abc"))

		w := h.do(callbackRequest(okQuery), "42")

		assert.Equal(t, http.StatusForbidden, w.Code)
		var body ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, CodeForbidden, body.Error)
	})
}

func TestCreateAccountTicket(t *testing.T) {
	body := `{"accountName":"Example","propertyName":"example.com","websiteURL":"https://example.com","timezone":"UTC"}`

	t.Run("json", func(t *testing.T) {
		h := newHarness(t, stubResolver{}, "")
		req := httptest.NewRequest(http.MethodPost, AccountTicketPath, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		w := h.do(req, "42")

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		var got provisioning.AccountTicket
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, "abc", got.ID)
		assert.Equal(t, provisioning.TermsOfServiceURL+"abc", got.ProvisioningURL)

		stored, ok, err := h.tickets.TakeAndClear(context.Background(), "42")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "abc", stored)
	})

	t.Run("form", func(t *testing.T) {
		h := newHarness(t, stubResolver{}, "")
		form := url.Values{
			"accountName":  {"Example"},
			"propertyName": {"example.com"},
			"websiteURL":   {"https://example.com"},
			"timezone":     {"UTC"},
		}
		req := httptest.NewRequest(http.MethodPost, AccountTicketPath, strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		w := h.do(req, "42")

		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	})

	t.Run("invalid", func(t *testing.T) {
		h := newHarness(t, stubResolver{}, "")
		req := httptest.NewRequest(http.MethodPost, AccountTicketPath, strings.NewReader(`{"accountName":"x"}`))
		req.Header.Set("Content-Type", "application/json")

		w := h.do(req, "42")

		assert.Equal(t, http.StatusBadRequest, w.Code)
		var got ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
		assert.Equal(t, CodeInvalidRequest, got.Error)
	})

	t.Run("empty body", func(t *testing.T) {
		h := newHarness(t, stubResolver{}, "")
		req := httptest.NewRequest(http.MethodPost, AccountTicketPath, strings.NewReader(""))
		req.Header.Set("Content-Type", "application/json")

		assert.Equal(t, http.StatusBadRequest, h.do(req, "42").Code)
	})
}

func TestLink(t *testing.T) {
	tests := []struct {
		name       string
		resolver   resolver.Resolver
		body       string
		wantStatus int
		wantCode   string
	}{
		{
			name:       "linked",
			resolver:   stubResolver{},
			body:       `{"propertyID":"UA-12345678-1","profileID":"987654"}`,
			wantStatus: http.StatusOK,
		},
		{
			name:       "malformed property",
			resolver:   stubResolver{},
			body:       `{"propertyID":"12345678","profileID":"987654"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "not found",
			resolver:   stubResolver{err: &resolver.LookupError{Kind: resolver.KindNotFound, Err: resolver.ErrNotFound}},
			body:       `{"propertyID":"UA-12345678-1","profileID":"987654"}`,
			wantStatus: http.StatusNotFound,
			wantCode:   CodePropertyNotFound,
		},
		{
			name:       "lookup failed",
			resolver:   stubResolver{err: &resolver.LookupError{Kind: resolver.KindTransport, Err: errors.New("timeout")}},
			body:       `{"propertyID":"UA-12345678-1","profileID":"987654"}`,
			wantStatus: http.StatusBadGateway,
			wantCode:   provisioning.CodeLookupFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.resolver, "")
			req := httptest.NewRequest(http.MethodPost, LinkPath, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := h.do(req, "42")

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantCode != "" {
				var got ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, tt.wantCode, got.Error)
				return
			}
			var got settings.Settings
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, "12345678", got.AccountID)
			assert.Equal(t, "13579", got.InternalWebPropertyID)
		})
	}
}

func TestCreatePropertyAndProfile(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		resolver   resolver.Resolver
		body       string
		wantStatus int
		wantCode   string
		wantIDs    settings.Identifiers
	}{
		{
			name:       "property created",
			path:       PropertyPath,
			resolver:   stubResolver{},
			body:       `{"accountID":"12345678","propertyName":"example.com","websiteURL":"https://example.com","timezone":"UTC"}`,
			wantStatus: http.StatusCreated,
			wantIDs:    settings.Identifiers{AccountID: "12345678", PropertyID: "UA-12345678-2", ProfileID: "555", InternalWebPropertyID: "13579"},
		},
		{
			name:       "profile created",
			path:       ProfilePath,
			resolver:   stubResolver{},
			body:       `{"propertyID":"UA-12345678-1"}`,
			wantStatus: http.StatusCreated,
			wantIDs:    settings.Identifiers{AccountID: "12345678", PropertyID: "UA-12345678-1", ProfileID: "555", InternalWebPropertyID: "13579"},
		},
		{
			name:       "property: invalid account",
			path:       PropertyPath,
			resolver:   stubResolver{},
			body:       `{"accountID":"abc","propertyName":"example.com","websiteURL":"https://example.com"}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   CodeInvalidRequest,
		},
		{
			name:       "property: remote rejects",
			path:       PropertyPath,
			resolver:   stubResolver{},
			body:       `{"accountID":"99999999","propertyName":"example.com","websiteURL":"https://example.com"}`,
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeCreateFailed,
		},
		{
			name:       "profile: remote rejects",
			path:       ProfilePath,
			resolver:   stubResolver{},
			body:       `{"propertyID":"UA-12345678-9"}`,
			wantStatus: http.StatusBadGateway,
			wantCode:   CodeCreateFailed,
		},
		{
			name:       "profile: lookup fails",
			path:       ProfilePath,
			resolver:   stubResolver{err: &resolver.LookupError{Kind: resolver.KindTransport, Err: errors.New("timeout")}},
			body:       `{"propertyID":"UA-12345678-1"}`,
			wantStatus: http.StatusBadGateway,
			wantCode:   provisioning.CodeLookupFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.resolver, "")
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")

			w := h.do(req, "42")

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			stored, err := h.store.Get(context.Background())
			require.NoError(t, err)
			if tt.wantCode != "" {
				var got ErrorResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
				assert.Equal(t, tt.wantCode, got.Error)
				assert.Equal(t, settings.Default(), stored)
				return
			}
			var got settings.Settings
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.Equal(t, tt.wantIDs, got.Identifiers())
			assert.Equal(t, tt.wantIDs, stored.Identifiers())
		})
	}

	t.Run("requires a user", func(t *testing.T) {
		h := newHarness(t, stubResolver{}, "")
		req := httptest.NewRequest(http.MethodPost, ProfilePath, strings.NewReader(`{"propertyID":"UA-12345678-1"}`))
		req.Header.Set("Content-Type", "application/json")

		assert.Equal(t, http.StatusUnauthorized, h.do(req, "").Code)
	})
}

func TestGetSettings(t *testing.T) {
	h := newHarness(t, stubResolver{}, "")

	w := h.do(httptest.NewRequest(http.MethodGet, SettingsPath, nil), "42")

	require.Equal(t, http.StatusOK, w.Code)
	var got settings.Settings
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, settings.Default(), got)

	assert.Equal(t, http.StatusUnauthorized, h.do(httptest.NewRequest(http.MethodGet, SettingsPath, nil), "").Code)
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, stubResolver{}, "")

	w := h.do(httptest.NewRequest(http.MethodGet, "/healthz", nil), "")

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequestID(t *testing.T) {
	h := newHarness(t, stubResolver{}, "")

	w := h.do(httptest.NewRequest(http.MethodGet, SettingsPath, nil), "42")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, SettingsPath, nil)
	req.Header.Set(RequestIDHeader, "0b6f3c3e-5a1d-4a5e-9d43-3f7c1f0b9a11")
	w = h.do(req, "42")
	assert.Equal(t, "0b6f3c3e-5a1d-4a5e-9d43-3f7c1f0b9a11", w.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, SettingsPath, nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid")
	w = h.do(req, "42")
	assert.NotEqual(t, "not-a-uuid", w.Header().Get(RequestIDHeader))
}
