// Package cache keeps the active combo offer list close to the pricing
// service so carts can be quoted without a database round trip.
package cache

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/kart-combos/internal/domain/offer"
)

// OfferCache stores the active offer list.
type OfferCache interface {
	Get(ctx context.Context) ([]offer.Combo, bool, error)
	Set(ctx context.Context, offers []offer.Combo, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// NoopOfferCache never stores anything.
type NoopOfferCache struct{}

func (NoopOfferCache) Get(_ context.Context) ([]offer.Combo, bool, error) {
	return nil, false, nil
}

func (NoopOfferCache) Set(_ context.Context, _ []offer.Combo, _ time.Duration) error {
	return nil
}

func (NoopOfferCache) Invalidate(_ context.Context) error { return nil }

// CachedCatalog serves offer.Catalog reads from an OfferCache and falls
// back to the wrapped catalog on a miss. Cache failures are logged and
// bypassed.
type CachedCatalog struct {
	next  offer.Catalog
	cache OfferCache
	ttl   time.Duration
}

var _ offer.Catalog = (*CachedCatalog)(nil)

// NewCachedCatalog wraps next with cache.
func NewCachedCatalog(next offer.Catalog, cache OfferCache, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{next: next, cache: cache, ttl: ttl}
}

// ListActive returns the offers active at now.
func (c *CachedCatalog) ListActive(ctx context.Context, now time.Time) ([]offer.Combo, error) {
	lg := zctx.From(ctx)

	cached, ok, err := c.cache.Get(ctx)
	switch {
	case err != nil:
		lg.Warn("Offer cache read failed", zap.Error(err))
	case ok:
		return activeAt(cached, now), nil
	}

	offers, err := c.next.ListActive(ctx, now)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, offers, c.ttl); err != nil {
		lg.Warn("Offer cache write failed", zap.Error(err))
	}
	return offers, nil
}

// activeAt drops cached offers whose window closed since they were cached.
func activeAt(offers []offer.Combo, now time.Time) []offer.Combo {
	out := make([]offer.Combo, 0, len(offers))
	for _, o := range offers {
		if o.ActiveAt(now) {
			out = append(out, o)
		}
	}
	return out
}

// OfferUsage records that offers were applied to an order.
type OfferUsage interface {
	IncrementUses(ctx context.Context, ids []string) error
}

// InvalidatingUsage records offer uses through next and drops the cached
// offer list when a used offer has a usage limit, so the next quote sees
// fresh remaining-use counts.
type InvalidatingUsage struct {
	next  OfferUsage
	cache OfferCache
}

// NewInvalidatingUsage wraps next with cache invalidation.
func NewInvalidatingUsage(next OfferUsage, cache OfferCache) *InvalidatingUsage {
	return &InvalidatingUsage{next: next, cache: cache}
}

// IncrementUses records one use of each listed offer.
func (u *InvalidatingUsage) IncrementUses(ctx context.Context, ids []string) error {
	if err := u.next.IncrementUses(ctx, ids); err != nil {
		return err
	}
	if !u.limited(ctx, ids) {
		return nil
	}
	if err := u.cache.Invalidate(ctx); err != nil {
		zctx.From(ctx).Warn("Offer cache invalidation failed", zap.Error(err))
	}
	return nil
}

// limited reports whether any of ids is a cached offer with a usage limit.
// An unreadable cache counts as limited.
func (u *InvalidatingUsage) limited(ctx context.Context, ids []string) bool {
	cached, ok, err := u.cache.Get(ctx)
	if err != nil {
		return true
	}
	if !ok {
		return false
	}
	for _, o := range cached {
		if o.UsageLimit > 0 && slices.Contains(ids, o.ID) {
			return true
		}
	}
	return false
}
