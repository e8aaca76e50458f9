package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	analytics "google.golang.org/api/analytics/v3"
	"google.golang.org/api/googleapi"
)

type fakeGetter struct {
	property *analytics.Webproperty
	err      error
	calls    []string
}

func (f *fakeGetter) GetProperty(_ context.Context, accountID, propertyID string) (*analytics.Webproperty, error) {
	f.calls = append(f.calls, accountID+"/"+propertyID)
	return f.property, f.err
}

func TestManagementResolver_Resolve(t *testing.T) {
	ctx := context.Background()

	t.Run("returns resolved record", func(t *testing.T) {
		api := &fakeGetter{property: &analytics.Webproperty{
			AccountId:             "12345678",
			Id:                    "UA-12345678-1",
			InternalWebPropertyId: "13579",
			DefaultProfileId:      987654,
		}}

		record, err := NewManagementResolver(api).Resolve(ctx, "12345678", "UA-12345678-1")
		require.NoError(t, err)
		assert.Equal(t, &PropertyRecord{
			AccountID:             "12345678",
			WebPropertyID:         "UA-12345678-1",
			InternalWebPropertyID: "13579",
			DefaultProfileID:      "987654",
		}, record)
		assert.Equal(t, []string{"12345678/UA-12345678-1"}, api.calls)
	})

	t.Run("404 is not found", func(t *testing.T) {
		api := &fakeGetter{err: &googleapi.Error{Code: 404, Message: "Not Found"}}

		_, err := NewManagementResolver(api).Resolve(ctx, "1", "UA-1-1")
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, KindNotFound, KindOf(err))
	})

	t.Run("403 is a transport failure", func(t *testing.T) {
		api := &fakeGetter{err: &googleapi.Error{Code: 403, Message: "Forbidden"}}

		_, err := NewManagementResolver(api).Resolve(ctx, "1", "UA-1-1")
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrNotFound))
		assert.Equal(t, KindTransport, KindOf(err))
	})

	t.Run("network error is a transport failure", func(t *testing.T) {
		netErr := errors.New("dial tcp: i/o timeout")
		api := &fakeGetter{err: netErr}

		_, err := NewManagementResolver(api).Resolve(ctx, "1", "UA-1-1")
		require.Error(t, err)
		assert.ErrorIs(t, err, netErr)
		assert.Equal(t, KindTransport, KindOf(err))
	})

	t.Run("missing internal ID is not found", func(t *testing.T) {
		api := &fakeGetter{property: &analytics.Webproperty{AccountId: "1", Id: "UA-1-1"}}

		_, err := NewManagementResolver(api).Resolve(ctx, "1", "UA-1-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("malformed internal ID is not found", func(t *testing.T) {
		api := &fakeGetter{property: &analytics.Webproperty{AccountId: "1", Id: "UA-1-1", InternalWebPropertyId: "n/a"}}

		_, err := NewManagementResolver(api).Resolve(ctx, "1", "UA-1-1")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestKindOf_UnknownError(t *testing.T) {
	assert.Equal(t, KindTransport, KindOf(errors.New("boom")))
	assert.Equal(t, "transport", KindTransport.String())
	assert.Equal(t, "not_found", KindNotFound.String())
}

type countingResolver struct {
	calls  int
	record *PropertyRecord
	err    error
}

func (c *countingResolver) Resolve(_ context.Context, accountID, webPropertyID string) (*PropertyRecord, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	r := *c.record
	r.AccountID = accountID
	r.WebPropertyID = webPropertyID
	return &r, nil
}

func TestCachingResolver(t *testing.T) {
	ctx := context.Background()

	t.Run("caches successful lookups", func(t *testing.T) {
		next := &countingResolver{record: &PropertyRecord{InternalWebPropertyID: "13579"}}
		cache := NewCachingResolver(next, CachingConfig{GroupName: t.Name()})

		for i := 0; i < 3; i++ {
			record, err := cache.Resolve(ctx, "12345678", "UA-12345678-1")
			require.NoError(t, err)
			assert.Equal(t, "13579", record.InternalWebPropertyID)
			assert.Equal(t, "UA-12345678-1", record.WebPropertyID)
		}
		assert.Equal(t, 1, next.calls)

		_, err := cache.Resolve(ctx, "12345678", "UA-12345678-2")
		require.NoError(t, err)
		assert.Equal(t, 2, next.calls)
	})

	t.Run("does not cache failures", func(t *testing.T) {
		lookupErr := &LookupError{Kind: KindNotFound, AccountID: "1", WebPropertyID: "UA-1-1", Err: fmt.Errorf("gone")}
		next := &countingResolver{err: lookupErr}
		cache := NewCachingResolver(next, CachingConfig{GroupName: t.Name()})

		for i := 0; i < 2; i++ {
			_, err := cache.Resolve(ctx, "1", "UA-1-1")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrNotFound)
		}
		assert.Equal(t, 2, next.calls)
	})

	t.Run("keys with separators round trip", func(t *testing.T) {
		next := &countingResolver{record: &PropertyRecord{InternalWebPropertyID: "1"}}
		cache := NewCachingResolver(next, CachingConfig{GroupName: t.Name()})

		record, err := cache.Resolve(ctx, "1/2", "UA-3/4")
		require.NoError(t, err)
		assert.Equal(t, "1/2", record.AccountID)
		assert.Equal(t, "UA-3/4", record.WebPropertyID)
	})
}
