package resolver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sync"

	"github.com/golang/groupcache"
)

// DefaultPeerBasePath is where replicas serve cache fills to each other
const DefaultPeerBasePath = "/_groupcache/"

// LookupKindHeader carries the Kind of a failed lookup from the owning
// replica to the one that asked for the key
const LookupKindHeader = "X-Lookup-Kind"

// PeerConfig describes the replicas sharing the property cache
type PeerConfig struct {
	// SelfURL is this replica's base URL (e.g., "http://10.0.0.1:8080")
	SelfURL string

	// PeerURLs lists every replica, including self
	PeerURLs []string

	// BasePath is the HTTP path prefix (default: DefaultPeerBasePath)
	BasePath string

	// Transport carries fills to other replicas (default: http.DefaultTransport)
	Transport http.RoundTripper
}

// Peers spreads CachingResolver groups across replicas, so each property
// is looked up remotely by one replica only. It must be created before the
// first lookup, and at most once per process.
type Peers struct {
	pool     *groupcache.HTTPPool
	basePath string

	mu    sync.Mutex
	peers []string
}

// NewPeers registers this process as a groupcache peer
func NewPeers(cfg PeerConfig) (*Peers, error) {
	if cfg.SelfURL == "" {
		return nil, errors.New("cache peer self URL is required")
	}
	if cfg.BasePath == "" {
		cfg.BasePath = DefaultPeerBasePath
	}

	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	pool := groupcache.NewHTTPPoolOpts(cfg.SelfURL, &groupcache.HTTPPoolOptions{BasePath: cfg.BasePath})
	transport := &peerTransport{base: cfg.Transport}
	// Set copies the transport into each peer getter, so assign it first
	pool.Transport = func(context.Context) http.RoundTripper { return transport }

	p := &Peers{pool: pool, basePath: cfg.BasePath}
	p.Set(cfg.PeerURLs...)
	return p, nil
}

// ServeHTTP answers cache fill requests from other replicas. A failed
// lookup is answered with LookupKindHeader set.
func (p *Peers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fill := &fillState{}
	r = r.WithContext(withFill(r.Context(), fill))
	p.pool.ServeHTTP(&ownerResponseWriter{ResponseWriter: w, fill: fill}, r)
}

// BasePath is the prefix ServeHTTP must be mounted at
func (p *Peers) BasePath() string {
	return p.basePath
}

// Set replaces the peer list (for elastic scaling)
func (p *Peers) Set(peerURLs ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.peers = slices.Clone(peerURLs)
	p.pool.Set(peerURLs...)
}

// List returns the current peer list
func (p *Peers) List() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.peers)
}

type ownerResponseWriter struct {
	http.ResponseWriter
	fill *fillState
}

func (w *ownerResponseWriter) WriteHeader(code int) {
	if code != http.StatusOK {
		if err := w.fill.localFailure(); err != nil {
			w.Header().Set(LookupKindHeader, KindOf(err).String())
		}
	}
	w.ResponseWriter.WriteHeader(code)
}

// peerTransport notes in the request's fill state when the owning replica
// answered with a failed lookup. Other failures, such as an unreachable
// peer, leave the fill state alone and groupcache falls back to a local
// lookup.
type peerTransport struct {
	base http.RoundTripper
}

func (t *peerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	if kind := resp.Header.Get(LookupKindHeader); kind != "" && resp.StatusCode != http.StatusOK {
		fillFrom(req.Context()).failedAtOwner(parseKind(kind), fmt.Errorf("cache peer %s: %s", req.URL.Host, resp.Status))
	}
	return resp, nil
}
