package config

import (
	"github.com/alechenninger/provisioner/internal/redirect"
	"github.com/alechenninger/provisioner/internal/ticket"
)

// Default values applied by Loader.Get for unset fields
const (
	DefaultGRPCPort        = 9090
	DefaultHTTPPort        = 8080
	DefaultShutdownTimeout = "10s"
	DefaultAPITimeout      = "30s"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "json"
	DefaultStoreType       = "memory"
	DefaultSessionType     = "header"
)

func applyDefaults(cfg *Config) {
	if cfg.Server.GRPCPort == 0 {
		cfg.Server.GRPCPort = DefaultGRPCPort
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = DefaultHTTPPort
	}
	if cfg.Server.ShutdownTimeout == "" {
		cfg.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if cfg.Redirect.AdminURL == "" {
		cfg.Redirect.AdminURL = redirect.DefaultAdminURL
	}
	if cfg.Redirect.SetupPage == "" {
		cfg.Redirect.SetupPage = redirect.DefaultSetupPage
	}
	if cfg.Redirect.DashboardPage == "" {
		cfg.Redirect.DashboardPage = redirect.DefaultDashboardPage
	}
	if cfg.Redirect.ModuleSlug == "" {
		cfg.Redirect.ModuleSlug = redirect.DefaultModuleSlug
	}

	if cfg.Provisioning.TicketTTL == "" {
		cfg.Provisioning.TicketTTL = ticket.DefaultTTL.String()
	}
	if cfg.Provisioning.TicketKeyPrefix == "" {
		cfg.Provisioning.TicketKeyPrefix = ticket.DefaultKeyPrefix
	}

	if cfg.TicketStore.Type == "" {
		cfg.TicketStore.Type = DefaultStoreType
	}
	if cfg.SettingsStore.Type == "" {
		cfg.SettingsStore.Type = DefaultStoreType
	}
	if cfg.Analytics.Timeout == "" {
		cfg.Analytics.Timeout = DefaultAPITimeout
	}
	if cfg.Session.Type == "" {
		cfg.Session.Type = DefaultSessionType
	}

	if cfg.Observability == nil {
		cfg.Observability = &ObservabilityConfig{}
	}
	if cfg.Observability.LogLevel == "" {
		cfg.Observability.LogLevel = DefaultLogLevel
	}
	if cfg.Observability.LogFormat == "" {
		cfg.Observability.LogFormat = DefaultLogFormat
	}
}
