package config

// Config is the root configuration structure for the provisioner
type Config struct {
	// Server configuration (gRPC and HTTP ports)
	Server ServerConfig `koanf:"server"`

	// Redirect locates the admin screens users return to after a callback
	Redirect RedirectConfig `koanf:"redirect"`

	// Provisioning configures the account ticket handshake
	Provisioning ProvisioningConfig `koanf:"provisioning"`

	// TicketStore holds in-flight account tickets
	TicketStore TicketStoreConfig `koanf:"ticket_store"`

	// SettingsStore persists the analytics settings
	SettingsStore SettingsStoreConfig `koanf:"settings_store"`

	// Analytics configures the remote Management and Provisioning API
	Analytics AnalyticsConfig `koanf:"analytics"`

	// Session configures how requests are tied to users
	Session SessionConfig `koanf:"session"`

	// Fixtures for hermetic testing (HTTP rules)
	Fixtures []FixtureConfig `koanf:"fixtures"`

	// Observability configuration (logging)
	Observability *ObservabilityConfig `koanf:"observability"`
}

// ServerConfig contains network-level server settings
type ServerConfig struct {
	// GRPCPort serves grpc.health.v1
	GRPCPort int `koanf:"grpc_port" usage:"gRPC server port (health service)"`

	// HTTPPort serves the provisioning routes
	HTTPPort int `koanf:"http_port" usage:"HTTP server port (provisioning routes)"`

	// ShutdownTimeout bounds graceful shutdown
	ShutdownTimeout string `koanf:"shutdown_timeout" usage:"graceful shutdown timeout (e.g. 10s)"`
}

// RedirectConfig locates the admin screens
type RedirectConfig struct {
	AdminURL      string `koanf:"admin_url" usage:"admin page URL users are redirected to"`
	SetupPage     string `koanf:"setup_page" usage:"admin page shown after a failed callback"`
	DashboardPage string `koanf:"dashboard_page" usage:"admin page shown after a successful callback"`
	ModuleSlug    string `koanf:"module_slug" usage:"module slug reported on success"`
}

// ProvisioningConfig configures the account ticket handshake
type ProvisioningConfig struct {
	// CallbackURL is sent to the remote service as the redirect URI
	CallbackURL string `koanf:"callback_url" usage:"absolute URL of the provisioning callback route"`

	// TicketTTL is how long a user has to finish the remote sign-up
	TicketTTL string `koanf:"ticket_ttl" usage:"lifetime of an account ticket (e.g. 15m)"`

	// TicketKeyPrefix is prepended to user IDs in the ticket store
	TicketKeyPrefix string `koanf:"ticket_key_prefix" usage:"ticket store key prefix"`
}

// TicketStoreConfig configures the ticket store
type TicketStoreConfig struct {
	// Type selects the store implementation
	// Options: "memory", "redis"
	Type string `koanf:"type" usage:"ticket store type: memory, redis"`

	// Redis fields (when Type is "redis")
	Redis RedisConfig `koanf:"redis"`
}

// RedisConfig addresses a redis server
type RedisConfig struct {
	Addr     string `koanf:"addr" usage:"redis address (host:port)"`
	Username string `koanf:"username" usage:"redis ACL username"`
	Password string `koanf:"password" usage:"redis password"`
	DB       int    `koanf:"db" usage:"redis database number"`
}

// SettingsStoreConfig configures settings persistence
type SettingsStoreConfig struct {
	// Type selects the store implementation
	// Options: "memory", "sqlite"
	Type string `koanf:"type" usage:"settings store type: memory, sqlite"`

	// SQLite fields
	Path       string `koanf:"path" usage:"sqlite database file"`
	OptionName string `koanf:"option_name" usage:"row name holding the settings record"`
}

// AnalyticsConfig configures the remote API client
type AnalyticsConfig struct {
	// Endpoint overrides the API base path (must end with a slash)
	Endpoint string `koanf:"endpoint" usage:"analytics API base path override"`

	// Timeout for each API request (default: 30s)
	Timeout string `koanf:"timeout" usage:"analytics API request timeout (e.g. 30s)"`

	// AccessToken is a static bearer token, mainly for development
	AccessToken string `koanf:"access_token" usage:"static OAuth access token for the analytics API"`

	// OAuth refreshes access tokens from a stored refresh token
	OAuth *OAuthConfig `koanf:"oauth"`

	// Caching configuration for property lookups
	Caching *CachingConfig `koanf:"caching"`

	// FixturesFile loads HTTP fixture rules from a YAML or JSON file
	FixturesFile string `koanf:"fixtures_file" usage:"file of HTTP fixtures answering analytics API calls"`
}

// OAuthConfig holds the OAuth client used to refresh API tokens
type OAuthConfig struct {
	ClientID     string `koanf:"client_id" usage:"OAuth client ID"`
	ClientSecret string `koanf:"client_secret" usage:"OAuth client secret"`
	RefreshToken string `koanf:"refresh_token" usage:"OAuth refresh token"`
	TokenURL     string `koanf:"token_url" usage:"OAuth token endpoint"`
}

// CachingConfig configures caching of property lookups
type CachingConfig struct {
	// Type selects the caching implementation
	// Options: "groupcache", "none"
	Type string `koanf:"type" usage:"property lookup cache: groupcache, none"`

	// Distributed caching fields
	GroupName string `koanf:"group_name" usage:"groupcache group name"`
	CacheSize int64  `koanf:"cache_size" usage:"cache size in bytes"`

	// Cluster fields; leave SelfURL empty for a process-local cache
	SelfURL  string   `koanf:"self_url" usage:"this replica's URL for cache peering"`
	Peers    []string `koanf:"peers" usage:"peer replica URLs, repeatable"`
	BasePath string   `koanf:"base_path" usage:"HTTP path prefix for cache peering"`
}

// SessionConfig configures user identification
type SessionConfig struct {
	// Type selects the identity provider
	// Options: "header", "jwt"
	Type string `koanf:"type" usage:"session provider: header, jwt"`

	// Header fields
	Header string `koanf:"header" usage:"trusted header carrying the user ID"`

	// JWT fields
	Cookie string `koanf:"cookie" usage:"cookie carrying the session token"`
	Secret string `koanf:"secret" usage:"HS256 secret for session tokens"`
	Issuer string `koanf:"issuer" usage:"required iss claim of session tokens"`

	// Authorize is a CEL expression over user.id and user.claims
	Authorize string `koanf:"authorize" usage:"CEL policy deciding who may manage settings"`
}

// FixtureConfig configures a fixture for hermetic testing
type FixtureConfig struct {
	// Type selects the fixture type
	// Options: "http_rule"
	Type string `koanf:"type"`

	// HTTP rule fields (when Type is "http_rule")
	Request  FixtureRequest  `koanf:"request"`
	Response FixtureResponse `koanf:"response"`
}

// FixtureRequest defines request matching criteria for HTTP fixtures
type FixtureRequest struct {
	// Method is the HTTP method to match (e.g., "GET", "POST", "*" for any)
	Method string `koanf:"method"`

	// URL is the URL to match (exact or pattern based on URLType)
	URL string `koanf:"url"`

	// URLType specifies how to match the URL
	// Options: "exact" (default), "pattern" (regex)
	URLType string `koanf:"url_type"`

	// Headers are optional headers to match
	Headers map[string]string `koanf:"headers"`
}

// FixtureResponse defines the HTTP response to return for a fixture
type FixtureResponse struct {
	StatusCode int               `koanf:"status"`
	Headers    map[string]string `koanf:"headers"`
	Body       string            `koanf:"body"`
}

// ObservabilityConfig configures application observability
type ObservabilityConfig struct {
	// LogLevel sets the log level
	// Options: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `koanf:"log_level" usage:"log level: debug, info, warn, error"`

	// LogFormat sets the log format
	// Options: "json", "text"
	// Default: "json"
	LogFormat string `koanf:"log_format" usage:"log format: json, text"`
}
