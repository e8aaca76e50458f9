package session

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"

	"github.com/alechenninger/provisioner/internal/clock"
)

// DefaultCookieName carries the session token when no bearer header is sent
const DefaultCookieName = "provisioner_session"

// JWTProviderConfig configures a JWTProvider
type JWTProviderConfig struct {
	// Secret is the HS256 signing key shared with the host application
	Secret []byte

	// CookieName is the session cookie consulted when there is no
	// Authorization header (defaults to DefaultCookieName)
	CookieName string

	// Issuer, when set, must match the iss claim
	Issuer string

	// Clock is an optional clock for testing (defaults to system clock)
	Clock clock.Clock
}

// JWTProvider identifies users from HS256-signed session tokens.
// The subject claim is the user ID.
type JWTProvider struct {
	secret     []byte
	cookieName string
	issuer     string
	clock      clock.Clock
}

// NewJWTProvider creates a JWTProvider
func NewJWTProvider(cfg JWTProviderConfig) (*JWTProvider, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("session secret is required")
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.NewSystemClock()
	}
	cookie := cfg.CookieName
	if cookie == "" {
		cookie = DefaultCookieName
	}
	return &JWTProvider{
		secret:     cfg.Secret,
		cookieName: cookie,
		issuer:     cfg.Issuer,
		clock:      clk,
	}, nil
}

func (p *JWTProvider) Identify(r *http.Request) (*Identity, error) {
	raw := p.rawToken(r)
	if raw == "" {
		return nil, ErrUnauthenticated
	}

	opts := []jwt.ParseOption{
		jwt.WithKey(jwa.HS256, p.secret),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(p.clock.Now)),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	token, err := jwt.Parse([]byte(raw), opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid session token: %v", ErrUnauthenticated, err)
	}
	if token.Subject() == "" {
		return nil, fmt.Errorf("%w: session token has no subject", ErrUnauthenticated)
	}

	claims := make(map[string]any, len(token.PrivateClaims()))
	for k, v := range token.PrivateClaims() {
		claims[k] = v
	}
	return &Identity{ID: token.Subject(), Claims: claims}, nil
}

func (p *JWTProvider) rawToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	if c, err := r.Cookie(p.cookieName); err == nil {
		return c.Value
	}
	return ""
}
