package httpfixture

import (
	"fmt"
	"net/http"
	"regexp"
)

// RuleProvider matches requests against rules in order; the first match wins
type RuleProvider struct {
	rules    []Rule
	patterns []*regexp.Regexp // parallel to rules; nil for exact matches
}

// NewRuleProvider compiles the rules. Invalid patterns are reported up front
// rather than silently never matching.
func NewRuleProvider(rules []Rule) (*RuleProvider, error) {
	p := &RuleProvider{
		rules:    rules,
		patterns: make([]*regexp.Regexp, len(rules)),
	}
	for i, rule := range rules {
		switch rule.Request.URLType {
		case "", "exact":
		case "pattern":
			re, err := regexp.Compile(rule.Request.URL)
			if err != nil {
				return nil, fmt.Errorf("fixture %d: invalid url pattern %q: %w", i, rule.Request.URL, err)
			}
			p.patterns[i] = re
		default:
			return nil, fmt.Errorf("fixture %d: unknown url_type %q (supported: exact, pattern)", i, rule.Request.URLType)
		}
	}
	return p, nil
}

// Rules returns the configured rules
func (p *RuleProvider) Rules() []Rule {
	return p.rules
}

// Lookup implements Provider
func (p *RuleProvider) Lookup(req *http.Request) *Response {
	for i := range p.rules {
		if p.matches(i, req) {
			return &p.rules[i].Response
		}
	}
	return nil
}

func (p *RuleProvider) matches(i int, req *http.Request) bool {
	m := p.rules[i].Request

	if m.Method != "" && m.Method != "*" && m.Method != req.Method {
		return false
	}

	url := req.URL.String()
	if re := p.patterns[i]; re != nil {
		if !re.MatchString(url) {
			return false
		}
	} else if url != m.URL {
		return false
	}

	for key, value := range m.Headers {
		if req.Header.Get(key) != value {
			return false
		}
	}
	return true
}

// FuncProvider adapts a function to Provider
type FuncProvider func(req *http.Request) *Response

// Lookup implements Provider
func (f FuncProvider) Lookup(req *http.Request) *Response {
	return f(req)
}
