package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/alechenninger/provisioner/internal/clock"
	"github.com/alechenninger/provisioner/internal/httpfixture"
	"github.com/alechenninger/provisioner/internal/management"
	"github.com/alechenninger/provisioner/internal/probe"
	"github.com/alechenninger/provisioner/internal/provisioning"
	"github.com/alechenninger/provisioner/internal/redirect"
	"github.com/alechenninger/provisioner/internal/resolver"
	"github.com/alechenninger/provisioner/internal/server"
	"github.com/alechenninger/provisioner/internal/session"
	"github.com/alechenninger/provisioner/internal/settings"
	"github.com/alechenninger/provisioner/internal/ticket"
)

// Provider constructs all application components from configuration
// This is the main entry point for building a configured provisioner instance
type Provider struct {
	config *Config
	clock  clock.Clock

	// Lazily constructed components (cached after first call)
	logger        *logrus.Logger
	httpClient    *http.Client
	management    *management.Client
	resolver      resolver.Resolver
	peers         *resolver.Peers
	tickets       *ticket.Tickets
	settingsStore settings.Store
	committer     *settings.Committer
	handlers      *server.Handlers

	pingers []pinger
	closers []io.Closer
}

// NewProvider creates a new provider from configuration
func NewProvider(config *Config) *Provider {
	return &Provider{
		config: config,
		clock:  clock.NewSystemClock(),
	}
}

// WithClock overrides the clock used for ticket expiry and session tokens
func (p *Provider) WithClock(clk clock.Clock) *Provider {
	p.clock = clk
	return p
}

// Logger returns the configured logger
func (p *Provider) Logger() (*logrus.Logger, error) {
	if p.logger != nil {
		return p.logger, nil
	}

	obs := p.config.Observability
	if obs == nil {
		obs = &ObservabilityConfig{LogLevel: DefaultLogLevel, LogFormat: DefaultLogFormat}
	}

	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	level, err := logrus.ParseLevel(obs.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	switch obs.LogFormat {
	case "json", "":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("unknown log format %q", obs.LogFormat)
	}

	p.logger = logger
	return logger, nil
}

// HTTPClient returns the client used for analytics API calls: fixtures
// when configured, otherwise the network, authenticated with OAuth when
// credentials are present
func (p *Provider) HTTPClient(ctx context.Context) (*http.Client, error) {
	if p.httpClient != nil {
		return p.httpClient, nil
	}

	cfg := p.config.Analytics
	timeout, err := parseDuration("analytics.timeout", cfg.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}

	var base http.RoundTripper = http.DefaultTransport
	fixtures, err := BuildHTTPFixtureProvider(p.config.Fixtures, cfg.FixturesFile)
	if err != nil {
		return nil, fmt.Errorf("failed to build HTTP fixtures: %w", err)
	}
	if fixtures != nil {
		base = httpfixture.NewTransport(fixtures)
	}

	source, err := p.tokenSource(ctx, base)
	if err != nil {
		return nil, err
	}
	transport := base
	if source != nil {
		transport = &oauth2.Transport{Source: source, Base: base}
	}

	p.httpClient = &http.Client{Transport: transport, Timeout: timeout}
	return p.httpClient, nil
}

func (p *Provider) tokenSource(ctx context.Context, base http.RoundTripper) (oauth2.TokenSource, error) {
	cfg := p.config.Analytics
	if cfg.AccessToken != "" {
		return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}), nil
	}
	if cfg.OAuth == nil || cfg.OAuth.RefreshToken == "" {
		return nil, nil
	}
	if cfg.OAuth.ClientID == "" || cfg.OAuth.TokenURL == "" {
		return nil, errors.New("analytics.oauth requires client_id and token_url with refresh_token")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.OAuth.TokenURL},
		Scopes:       management.Scopes,
	}
	// Token refreshes go through the same base transport, so fixtures can answer them
	tokenCtx := context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: base})
	return oauthCfg.TokenSource(tokenCtx, &oauth2.Token{RefreshToken: cfg.OAuth.RefreshToken}), nil
}

// ManagementClient returns the analytics API client
func (p *Provider) ManagementClient(ctx context.Context) (*management.Client, error) {
	if p.management != nil {
		return p.management, nil
	}

	httpClient, err := p.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	client, err := management.New(ctx, management.Config{
		HTTPClient: httpClient,
		Endpoint:   p.config.Analytics.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create analytics client: %w", err)
	}

	p.management = client
	return client, nil
}

// Resolver returns the property resolver, cached when configured
func (p *Provider) Resolver(ctx context.Context) (resolver.Resolver, error) {
	if p.resolver != nil {
		return p.resolver, nil
	}

	client, err := p.ManagementClient(ctx)
	if err != nil {
		return nil, err
	}
	var res resolver.Resolver = resolver.NewManagementResolver(client)

	if c := p.config.Analytics.Caching; c != nil {
		switch c.Type {
		case "groupcache":
			if c.SelfURL != "" {
				peers, err := resolver.NewPeers(resolver.PeerConfig{
					SelfURL:  c.SelfURL,
					PeerURLs: c.Peers,
					BasePath: c.BasePath,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create cache peers: %w", err)
				}
				p.peers = peers
			}
			res = resolver.NewCachingResolver(res, resolver.CachingConfig{
				GroupName:      c.GroupName,
				CacheSizeBytes: c.CacheSize,
			})
		case "none", "":
		default:
			return nil, fmt.Errorf("unknown caching type %q", c.Type)
		}
	}

	p.resolver = res
	return res, nil
}

// Tickets returns the ticket store adapter
func (p *Provider) Tickets() (*ticket.Tickets, error) {
	if p.tickets != nil {
		return p.tickets, nil
	}

	ttl, err := parseDuration("provisioning.ticket_ttl", p.config.Provisioning.TicketTTL, ticket.DefaultTTL)
	if err != nil {
		return nil, err
	}

	var store ticket.Store
	switch p.config.TicketStore.Type {
	case "memory", "":
		store = ticket.NewMemoryStore(p.clock)
	case "redis":
		r := p.config.TicketStore.Redis
		redisStore, err := ticket.NewRedisStore(ticket.RedisConfig{
			Addr:     r.Addr,
			Username: r.Username,
			Password: r.Password,
			DB:       r.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create redis ticket store: %w", err)
		}
		p.closers = append(p.closers, redisStore)
		p.pingers = append(p.pingers, redisStore)
		store = redisStore
	default:
		return nil, fmt.Errorf("unknown ticket store type %q", p.config.TicketStore.Type)
	}

	p.tickets = ticket.NewTickets(store,
		ticket.WithKeyPrefix(p.config.Provisioning.TicketKeyPrefix),
		ticket.WithTTL(ttl),
	)
	return p.tickets, nil
}

// SettingsStore returns the settings store
func (p *Provider) SettingsStore() (settings.Store, error) {
	if p.settingsStore != nil {
		return p.settingsStore, nil
	}

	cfg := p.config.SettingsStore
	switch cfg.Type {
	case "memory", "":
		p.settingsStore = settings.NewMemoryStore()
	case "sqlite":
		store, err := settings.NewSQLiteStore(cfg.Path, cfg.OptionName)
		if err != nil {
			return nil, fmt.Errorf("failed to create sqlite settings store: %w", err)
		}
		p.closers = append(p.closers, store)
		p.settingsStore = store
	default:
		return nil, fmt.Errorf("unknown settings store type %q", cfg.Type)
	}
	return p.settingsStore, nil
}

// Committer returns the settings committer
func (p *Provider) Committer() (*settings.Committer, error) {
	if p.committer != nil {
		return p.committer, nil
	}
	store, err := p.SettingsStore()
	if err != nil {
		return nil, err
	}
	p.committer = settings.NewCommitter(store)
	return p.committer, nil
}

// Reconciler returns the callback reconciler
func (p *Provider) Reconciler(ctx context.Context) (*provisioning.Reconciler, error) {
	tickets, err := p.Tickets()
	if err != nil {
		return nil, err
	}
	res, err := p.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	committer, err := p.Committer()
	if err != nil {
		return nil, err
	}
	logger, err := p.Logger()
	if err != nil {
		return nil, err
	}
	return provisioning.NewReconciler(tickets, res, committer, probe.NewLoggingReconcileObserver(logger)), nil
}

// Initiator returns the account ticket initiator
func (p *Provider) Initiator(ctx context.Context) (*provisioning.Initiator, error) {
	if p.config.Provisioning.CallbackURL == "" {
		return nil, errors.New("provisioning.callback_url is required")
	}
	client, err := p.ManagementClient(ctx)
	if err != nil {
		return nil, err
	}
	tickets, err := p.Tickets()
	if err != nil {
		return nil, err
	}
	return provisioning.NewInitiator(client, tickets, p.config.Provisioning.CallbackURL), nil
}

// Linker returns the direct property linker
func (p *Provider) Linker(ctx context.Context) (*provisioning.Linker, error) {
	res, err := p.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	committer, err := p.Committer()
	if err != nil {
		return nil, err
	}
	return provisioning.NewLinker(res, committer), nil
}

// Creator returns the property and profile creator
func (p *Provider) Creator(ctx context.Context) (*provisioning.Creator, error) {
	client, err := p.ManagementClient(ctx)
	if err != nil {
		return nil, err
	}
	res, err := p.Resolver(ctx)
	if err != nil {
		return nil, err
	}
	committer, err := p.Committer()
	if err != nil {
		return nil, err
	}
	return provisioning.NewCreator(client, res, committer), nil
}

// Dispatcher returns the redirect dispatcher
func (p *Provider) Dispatcher() *redirect.Dispatcher {
	r := p.config.Redirect
	return redirect.NewDispatcher(redirect.Targets{
		AdminURL:      r.AdminURL,
		SetupPage:     r.SetupPage,
		DashboardPage: r.DashboardPage,
		ModuleSlug:    r.ModuleSlug,
	})
}

// SessionProvider returns the configured identity provider
func (p *Provider) SessionProvider() (session.Provider, error) {
	cfg := p.config.Session
	switch cfg.Type {
	case "header", "":
		return session.NewHeaderProvider(cfg.Header), nil
	case "jwt":
		return session.NewJWTProvider(session.JWTProviderConfig{
			Secret:     []byte(cfg.Secret),
			CookieName: cfg.Cookie,
			Issuer:     cfg.Issuer,
			Clock:      p.clock,
		})
	default:
		return nil, fmt.Errorf("unknown session type %q", cfg.Type)
	}
}

// Handlers returns the HTTP handlers with every component wired in
func (p *Provider) Handlers(ctx context.Context) (*server.Handlers, error) {
	if p.handlers != nil {
		return p.handlers, nil
	}

	sessions, err := p.SessionProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to create session provider: %w", err)
	}
	authorizer, err := session.NewAuthorizer(p.config.Session.Authorize)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorizer: %w", err)
	}
	reconciler, err := p.Reconciler(ctx)
	if err != nil {
		return nil, err
	}
	initiator, err := p.Initiator(ctx)
	if err != nil {
		return nil, err
	}
	linker, err := p.Linker(ctx)
	if err != nil {
		return nil, err
	}
	creator, err := p.Creator(ctx)
	if err != nil {
		return nil, err
	}
	store, err := p.SettingsStore()
	if err != nil {
		return nil, err
	}
	logger, err := p.Logger()
	if err != nil {
		return nil, err
	}
	if p.config.Session.Type != "jwt" && p.config.Session.Authorize == "" {
		logger.WithField("header", p.config.Session.Header).Warn(
			"Session identity comes from a request header and no authorize policy is set; any client that can reach the HTTP port can act as any user")
	}

	p.handlers = server.NewHandlers(server.HandlersConfig{
		Sessions:   sessions,
		Authorizer: authorizer,
		Reconciler: reconciler,
		Initiator:  initiator,
		Linker:     linker,
		Creator:    creator,
		Settings:   store,
		Dispatcher: p.Dispatcher(),
		Logger:     logger,
	})
	return p.handlers, nil
}

// Server builds the gRPC and HTTP server
func (p *Provider) Server(ctx context.Context) (*server.Server, error) {
	handlers, err := p.Handlers(ctx)
	if err != nil {
		return nil, err
	}
	logger, err := p.Logger()
	if err != nil {
		return nil, err
	}
	shutdown, err := parseDuration("server.shutdown_timeout", p.config.Server.ShutdownTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	cfg := server.Config{
		GRPCPort:        p.config.Server.GRPCPort,
		HTTPPort:        p.config.Server.HTTPPort,
		ShutdownTimeout: shutdown,
		Handlers:        handlers,
		Logger:          logger,
	}
	if p.peers != nil {
		cfg.PeerPath = p.peers.BasePath()
		cfg.PeerHandler = p.peers
	}
	return server.New(cfg)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks connectivity of every remote store built so far
func (p *Provider) Ping(ctx context.Context) error {
	for _, s := range p.pingers {
		if err := s.Ping(ctx); err != nil {
			return fmt.Errorf("store not reachable: %w", err)
		}
	}
	return nil
}

// Close releases store connections opened by the provider
func (p *Provider) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

func parseDuration(key, value string, fallback time.Duration) (time.Duration, error) {
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, value)
	}
	return d, nil
}
