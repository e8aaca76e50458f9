// Package httpfixture serves canned HTTP responses to outbound clients.
//
// It backs the Management API client in hermetic runs: configure a set of
// rules (inline or from YAML/JSON files) and install Transport in place of
// the network.
package httpfixture

import (
	"net/http"
	"time"
)

// Response is the canned HTTP response for a matched request
type Response struct {
	StatusCode int               `json:"status" yaml:"status"`
	Headers    map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
	Body       string            `json:"body" yaml:"body"`
	Delay      *time.Duration    `json:"delay,omitempty" yaml:"delay,omitempty"`
}

// Match selects requests a Rule applies to
type Match struct {
	// Method to match; "" or "*" matches any method
	Method string `json:"method" yaml:"method"`

	// URL is compared against the full request URL (including query)
	URL string `json:"url" yaml:"url"`

	// URLType is "exact" (default) or "pattern" (regular expression)
	URLType string `json:"url_type,omitempty" yaml:"url_type,omitempty"`

	// Headers that must be present with the given values
	Headers map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Rule pairs a Match with the Response to serve
type Rule struct {
	Request  Match    `json:"request" yaml:"request"`
	Response Response `json:"response" yaml:"response"`
}

// RuleSet is the on-disk document shape
type RuleSet struct {
	Rules []Rule `json:"fixtures" yaml:"fixtures"`
}

// Provider returns the response for a request, or nil when no fixture applies
type Provider interface {
	Lookup(req *http.Request) *Response
}
