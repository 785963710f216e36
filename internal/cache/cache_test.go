package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/kart-combos/internal/domain/offer"
)

type memoryCache struct {
	mu      sync.Mutex
	offers  []offer.Combo
	ok      bool
	getErr  error
	setErr  error
	lastTTL time.Duration

	invalidations int
}

func (m *memoryCache) Get(_ context.Context) ([]offer.Combo, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.offers, m.ok, m.getErr
}

func (m *memoryCache) Set(_ context.Context, offers []offer.Combo, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.offers, m.ok, m.lastTTL = offers, true, ttl
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offers, m.ok = nil, false
	m.invalidations++
	return nil
}

type recordingUsage struct {
	ids [][]string
	err error
}

func (r *recordingUsage) IncrementUses(_ context.Context, ids []string) error {
	r.ids = append(r.ids, ids)
	return r.err
}

type countingCatalog struct {
	offers []offer.Combo
	err    error
	calls  int
}

func (c *countingCatalog) ListActive(_ context.Context, _ time.Time) ([]offer.Combo, error) {
	c.calls++
	return c.offers, c.err
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCachedCatalog_MissThenHit(t *testing.T) {
	next := &countingCatalog{offers: []offer.Combo{{ID: "a"}, {ID: "b"}}}
	mc := &memoryCache{}
	cat := NewCachedCatalog(next, mc, time.Minute)

	first, err := cat.ListActive(context.Background(), now)
	require.NoError(t, err)
	second, err := cat.ListActive(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, next.calls)
	assert.Equal(t, time.Minute, mc.lastTTL)
}

func TestCachedCatalog_FiltersExpiredCachedOffers(t *testing.T) {
	ended := now.Add(-time.Second)
	mc := &memoryCache{ok: true, offers: []offer.Combo{{ID: "live"}, {ID: "gone", ValidUntil: &ended}}}
	cat := NewCachedCatalog(&countingCatalog{}, mc, time.Minute)

	got, err := cat.ListActive(context.Background(), now)

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "live", got[0].ID)
}

func TestCachedCatalog_CacheFailuresAreBypassed(t *testing.T) {
	next := &countingCatalog{offers: []offer.Combo{{ID: "a"}}}
	mc := &memoryCache{getErr: errors.New("redis down"), setErr: errors.New("redis down")}
	cat := NewCachedCatalog(next, mc, time.Minute)

	got, err := cat.ListActive(context.Background(), now)

	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 1, next.calls)
}

func TestCachedCatalog_StoreError(t *testing.T) {
	next := &countingCatalog{err: errors.New("db down")}
	cat := NewCachedCatalog(next, NoopOfferCache{}, time.Minute)

	_, err := cat.ListActive(context.Background(), now)

	require.Error(t, err)
}

func TestNoopOfferCache(t *testing.T) {
	var c NoopOfferCache
	require.NoError(t, c.Set(context.Background(), []offer.Combo{{ID: "a"}}, time.Minute))

	_, ok, err := c.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInvalidatingUsage(t *testing.T) {
	cached := []offer.Combo{{ID: "limited", UsageLimit: 5}, {ID: "open"}}

	tests := []struct {
		name            string
		cache           *memoryCache
		ids             []string
		wantInvalidated bool
	}{
		{"limited offer used", &memoryCache{ok: true, offers: cached}, []string{"open", "limited"}, true},
		{"only unlimited offers used", &memoryCache{ok: true, offers: cached}, []string{"open"}, false},
		{"nothing cached", &memoryCache{}, []string{"limited"}, false},
		{"cache unreadable", &memoryCache{getErr: errors.New("redis down")}, []string{"open"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &recordingUsage{}
			u := NewInvalidatingUsage(next, tt.cache)

			require.NoError(t, u.IncrementUses(context.Background(), tt.ids))

			assert.Equal(t, [][]string{tt.ids}, next.ids)
			assert.Equal(t, tt.wantInvalidated, tt.cache.invalidations == 1)
		})
	}
}

func TestInvalidatingUsage_StoreErrorKeepsCache(t *testing.T) {
	mc := &memoryCache{ok: true, offers: []offer.Combo{{ID: "limited", UsageLimit: 5}}}
	u := NewInvalidatingUsage(&recordingUsage{err: errors.New("db down")}, mc)

	require.Error(t, u.IncrementUses(context.Background(), []string{"limited"}))
	assert.Zero(t, mc.invalidations)
}
