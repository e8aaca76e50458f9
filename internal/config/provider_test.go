package config

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alechenninger/provisioner/internal/provisioning"
	"github.com/alechenninger/provisioner/internal/session"
)

func loadDefaults(t *testing.T) *Config {
	t.Helper()
	loader, err := NewLoader("")
	require.NoError(t, err)
	cfg, err := loader.Get()
	require.NoError(t, err)
	cfg.Provisioning.CallbackURL = "https://host.test/provisioning/callback"
	cfg.Analytics.Endpoint = "https://analytics.test/analytics/v3/"
	return cfg
}

const propertyFixture = `{"kind":"analytics#webproperty","id":"UA-12345678-1","accountId":"12345678","internalWebPropertyId":"13579","defaultProfileId":"987654"}`

func TestProvider_CallbackFlowWithFixtures(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Analytics.Caching = &CachingConfig{Type: "groupcache", GroupName: t.Name()}
	cfg.Fixtures = []FixtureConfig{{
		Type: "http_rule",
		Request: FixtureRequest{
			Method:  "GET",
			URL:     `^https://analytics\.test/analytics/v3/management/accounts/12345678/webproperties/UA-12345678-1.*`,
			URLType: "pattern",
		},
		Response: FixtureResponse{StatusCode: 200, Body: propertyFixture},
	}}

	p := NewProvider(cfg)
	t.Cleanup(func() { _ = p.Close() })

	srv, err := p.Server(context.Background())
	require.NoError(t, err)

	tickets, err := p.Tickets()
	require.NoError(t, err)
	require.NoError(t, tickets.Put(context.Background(), "42", "abc"))

	req := httptest.NewRequest(http.MethodGet, "/provisioning/callback?accountTicketId=abc&accountId=12345678&webPropertyId=UA-12345678-1&profileId=987654", nil)
	req.Header.Set(session.DefaultUserHeader, "42")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "authentication_success", loc.Query().Get("notification"))

	store, err := p.SettingsStore()
	require.NoError(t, err)
	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "13579", got.InternalWebPropertyID)
}

func TestProvider_CreateProfileWithFixtures(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Fixtures = []FixtureConfig{
		{
			Type: "http_rule",
			Request: FixtureRequest{
				Method:  "POST",
				URL:     `^https://analytics\.test/analytics/v3/management/accounts/12345678/webproperties/UA-12345678-1/profiles.*`,
				URLType: "pattern",
			},
			Response: FixtureResponse{StatusCode: 200, Body: `{"id":"555","webPropertyId":"UA-12345678-1"}`},
		},
		{
			Type: "http_rule",
			Request: FixtureRequest{
				Method:  "GET",
				URL:     `^https://analytics\.test/analytics/v3/management/accounts/12345678/webproperties/UA-12345678-1.*`,
				URLType: "pattern",
			},
			Response: FixtureResponse{StatusCode: 200, Body: propertyFixture},
		},
	}

	p := NewProvider(cfg)
	t.Cleanup(func() { _ = p.Close() })

	srv, err := p.Server(context.Background())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/provisioning/profile", strings.NewReader(`{"propertyID":"UA-12345678-1"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(session.DefaultUserHeader, "42")
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	store, err := p.SettingsStore()
	require.NoError(t, err)
	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "555", got.ProfileID)
	assert.Equal(t, "13579", got.InternalWebPropertyID)
}

func TestProvider_DispatcherUsesRedirectConfig(t *testing.T) {
	cfg := loadDefaults(t)
	cfg.Redirect.AdminURL = "https://cms.test/admin"
	cfg.Redirect.SetupPage = "setup"

	target := NewProvider(cfg).Dispatcher().Target(provisioning.Outcome{State: provisioning.StateTicketMismatch, Code: provisioning.CodeTicketMismatch})

	assert.Equal(t, "https://cms.test/admin?error_code=account_ticket_id_mismatch&page=setup", target)
}

func TestProvider_WarnsOnUnprotectedHeaderSessions(t *testing.T) {
	tests := []struct {
		name     string
		session  SessionConfig
		wantWarn bool
	}{
		{"header without policy", SessionConfig{Type: "header"}, true},
		{"header with policy", SessionConfig{Type: "header", Authorize: `user.id == "1"`}, false},
		{"jwt without policy", SessionConfig{Type: "jwt", Secret: "s3cret"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			cfg.Session = tt.session

			logger, hook := test.NewNullLogger()
			p := NewProvider(cfg)
			p.logger = logger

			_, err := p.Handlers(context.Background())
			require.NoError(t, err)

			var warned bool
			for _, entry := range hook.AllEntries() {
				if entry.Level == logrus.WarnLevel {
					warned = true
				}
			}
			assert.Equal(t, tt.wantWarn, warned)
		})
	}
}

func TestProvider_Stores(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := loadDefaults(t)
	cfg.TicketStore = TicketStoreConfig{Type: "redis", Redis: RedisConfig{Addr: mr.Addr()}}
	cfg.SettingsStore = SettingsStoreConfig{Type: "sqlite", Path: filepath.Join(t.TempDir(), "settings.db")}
	cfg.Provisioning.TicketKeyPrefix = "custom"

	p := NewProvider(cfg)
	t.Cleanup(func() { _ = p.Close() })

	tickets, err := p.Tickets()
	require.NoError(t, err)
	require.NoError(t, tickets.Put(context.Background(), "42", "abc"))
	assert.True(t, mr.Exists("custom::42"))
	require.NoError(t, p.Ping(context.Background()))

	_, err = p.SettingsStore()
	require.NoError(t, err)

	mr.Close()
	assert.Error(t, p.Ping(context.Background()))
}

func TestProvider_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		build  func(*Provider) error
	}{
		{"ticket store type", func(c *Config) { c.TicketStore.Type = "etcd" }, func(p *Provider) error { _, err := p.Tickets(); return err }},
		{"ticket ttl", func(c *Config) { c.Provisioning.TicketTTL = "soon" }, func(p *Provider) error { _, err := p.Tickets(); return err }},
		{"redis without addr", func(c *Config) { c.TicketStore.Type = "redis" }, func(p *Provider) error { _, err := p.Tickets(); return err }},
		{"settings store type", func(c *Config) { c.SettingsStore.Type = "s3" }, func(p *Provider) error { _, err := p.SettingsStore(); return err }},
		{"session type", func(c *Config) { c.Session.Type = "saml" }, func(p *Provider) error { _, err := p.SessionProvider(); return err }},
		{"jwt without secret", func(c *Config) { c.Session.Type = "jwt" }, func(p *Provider) error { _, err := p.SessionProvider(); return err }},
		{"log level", func(c *Config) { c.Observability.LogLevel = "loud" }, func(p *Provider) error { _, err := p.Logger(); return err }},
		{"caching type", func(c *Config) { c.Analytics.Caching = &CachingConfig{Type: "memcached"} }, func(p *Provider) error { _, err := p.Resolver(context.Background()); return err }},
		{"incomplete oauth", func(c *Config) { c.Analytics.OAuth = &OAuthConfig{RefreshToken: "r"} }, func(p *Provider) error { _, err := p.HTTPClient(context.Background()); return err }},
		{"missing callback url", func(c *Config) { c.Provisioning.CallbackURL = "" }, func(p *Provider) error { _, err := p.Initiator(context.Background()); return err }},
		{"bad policy", func(c *Config) { c.Session.Authorize = "user.id ==" }, func(p *Provider) error { _, err := p.Handlers(context.Background()); return err }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loadDefaults(t)
			tt.mutate(cfg)
			p := NewProvider(cfg)
			t.Cleanup(func() { _ = p.Close() })

			assert.Error(t, tt.build(p))
		})
	}
}

func TestProvider_StaticAccessToken(t *testing.T) {
	var gotAuth string
	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(propertyFixture))
	}))
	t.Cleanup(api.Close)

	cfg := loadDefaults(t)
	cfg.Analytics.Endpoint = api.URL + "/analytics/v3/"
	cfg.Analytics.AccessToken = "token-1"

	p := NewProvider(cfg)
	res, err := p.Resolver(context.Background())
	require.NoError(t, err)

	record, err := res.Resolve(context.Background(), "12345678", "UA-12345678-1")
	require.NoError(t, err)
	assert.Equal(t, "13579", record.InternalWebPropertyID)
	assert.Equal(t, "Bearer token-1", gotAuth)
}
