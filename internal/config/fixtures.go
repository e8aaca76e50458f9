package config

import (
	"fmt"

	"github.com/alechenninger/provisioner/internal/httpfixture"
)

// BuildHTTPFixtureProvider creates an HTTP fixture provider from inline
// fixture configurations and an optional fixtures file.
// Returns nil if no rules are configured (normal production mode).
func BuildHTTPFixtureProvider(fixtures []FixtureConfig, fixturesFile string) (httpfixture.Provider, error) {
	var rules []httpfixture.Rule
	for _, f := range fixtures {
		if f.Type != "http_rule" {
			return nil, fmt.Errorf("unknown fixture type %q", f.Type)
		}
		rules = append(rules, httpfixture.Rule{
			Request: httpfixture.Match{
				Method:  f.Request.Method,
				URL:     f.Request.URL,
				URLType: f.Request.URLType,
				Headers: f.Request.Headers,
			},
			Response: httpfixture.Response{
				StatusCode: f.Response.StatusCode,
				Headers:    f.Response.Headers,
				Body:       f.Response.Body,
			},
		})
	}

	if fixturesFile != "" {
		loaded, err := httpfixture.LoadFile(fixturesFile)
		if err != nil {
			return nil, err
		}
		rules = append(rules, loaded...)
	}

	if len(rules) == 0 {
		return nil, nil
	}
	provider, err := httpfixture.NewRuleProvider(rules)
	if err != nil {
		return nil, fmt.Errorf("invalid HTTP fixtures: %w", err)
	}
	return provider, nil
}
