package resolver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/golang/groupcache"
)

// CachingConfig configures a CachingResolver
type CachingConfig struct {
	// GroupName is the groupcache group name; it must be unique per process
	GroupName string

	// CacheSizeBytes bounds the cache. Default: 8MB
	CacheSizeBytes int64
}

// CachingResolver memoizes successful lookups in a groupcache group.
// A property's internal ID never changes once assigned, so entries need no
// expiry; groupcache evicts by LRU. Failed lookups are not cached.
//
// With Peers, a key is looked up by the replica that owns it. When the
// owner's lookup fails the requesting replica returns that failure instead
// of repeating the lookup locally.
type CachingResolver struct {
	next  Resolver
	group *groupcache.Group
}

// NewCachingResolver wraps next with a groupcache group
func NewCachingResolver(next Resolver, cfg CachingConfig) *CachingResolver {
	if cfg.GroupName == "" {
		cfg.GroupName = "resolver:properties"
	}
	if cfg.CacheSizeBytes == 0 {
		cfg.CacheSizeBytes = 8 << 20
	}

	getter := groupcache.GetterFunc(func(ctx context.Context, key string, dest groupcache.Sink) error {
		fill := fillFrom(ctx)
		accountID, webPropertyID, ok := splitKey(key)
		if !ok {
			err := fmt.Errorf("malformed cache key %q", key)
			fill.failedLocally(err)
			return err
		}

		if kind, err := fill.ownerFailure(); err != nil {
			return &LookupError{Kind: kind, AccountID: accountID, WebPropertyID: webPropertyID, Err: err}
		}

		record, err := next.Resolve(ctx, accountID, webPropertyID)
		if err != nil {
			fill.failedLocally(err)
			return err
		}

		b, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal property record: %w", err)
		}
		return dest.SetBytes(b)
	})

	return &CachingResolver{
		next:  next,
		group: groupcache.NewGroup(cfg.GroupName, cfg.CacheSizeBytes, getter),
	}
}

// Resolve implements Resolver
func (c *CachingResolver) Resolve(ctx context.Context, accountID, webPropertyID string) (*PropertyRecord, error) {
	ctx = withFill(ctx, &fillState{})

	var b []byte
	if err := c.group.Get(ctx, cacheKey(accountID, webPropertyID), groupcache.AllocatingByteSliceSink(&b)); err != nil {
		return nil, err
	}

	var record PropertyRecord
	if err := json.Unmarshal(b, &record); err != nil {
		return nil, &LookupError{
			Kind:          KindTransport,
			AccountID:     accountID,
			WebPropertyID: webPropertyID,
			Err:           fmt.Errorf("corrupt cache entry: %w", err),
		}
	}
	return &record, nil
}

func cacheKey(accountID, webPropertyID string) string {
	return url.PathEscape(accountID) + "/" + url.PathEscape(webPropertyID)
}

func splitKey(key string) (string, string, bool) {
	a, w, ok := strings.Cut(key, "/")
	if !ok {
		return "", "", false
	}
	accountID, err := url.PathUnescape(a)
	if err != nil {
		return "", "", false
	}
	webPropertyID, err := url.PathUnescape(w)
	if err != nil {
		return "", "", false
	}
	return accountID, webPropertyID, true
}

// fillState follows one cache fill. On the requesting replica it records
// a failure answered by the owning peer; on the owner it records the
// failure of the local lookup so it can be reported back.
type fillState struct {
	mu        sync.Mutex
	owner     error
	ownerKind Kind
	local     error
}

type fillKey struct{}

func withFill(ctx context.Context, f *fillState) context.Context {
	return context.WithValue(ctx, fillKey{}, f)
}

func fillFrom(ctx context.Context) *fillState {
	f, _ := ctx.Value(fillKey{}).(*fillState)
	return f
}

func (f *fillState) failedAtOwner(kind Kind, err error) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.owner, f.ownerKind = err, kind
}

func (f *fillState) ownerFailure() (Kind, error) {
	if f == nil {
		return KindTransport, nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ownerKind, f.owner
}

func (f *fillState) failedLocally(err error) {
	if f == nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.local = err
}

func (f *fillState) localFailure() error {
	if f == nil {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.local
}
