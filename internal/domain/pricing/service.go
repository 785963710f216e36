// Package pricing quotes carts: it gathers active combo offers and the
// requested coupon, then runs the combo engine over the cart.
//
// Lookups are best effort. A slow or failing offer catalog or coupon store
// costs the customer a discount, never the quote.
package pricing

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/xenking/kart-combos/internal/domain/combo"
	"github.com/xenking/kart-combos/internal/domain/coupon"
	"github.com/xenking/kart-combos/internal/domain/offer"
)

const instrumentationName = "github.com/xenking/kart-combos/internal/domain/pricing"

// DefaultLookupTimeout bounds the offer catalog and coupon lookups when
// Options leave it unset.
const DefaultLookupTimeout = 2 * time.Second

// Request is a cart to price.
type Request struct {
	Items      []combo.LineItem
	CouponCode string
	// CartVersion is echoed back so callers can drop responses for carts
	// that changed in the meantime.
	CartVersion string
}

// Quote is a priced cart.
type Quote struct {
	combo.Summary

	CartVersion string
	// OffersUnavailable is set when the offer lookup failed or timed out and
	// the quote was computed without combos.
	OffersUnavailable bool
	// Coupon is the resolved coupon rule. Nil when no code was given or the
	// code was rejected.
	Coupon *coupon.Rule
	// CouponError explains why a requested coupon was not used.
	CouponError error
}

// Options configure a Service. Zero values fall back to defaults.
type Options struct {
	LookupTimeout  time.Duration
	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
	Now            func() time.Time
}

func (o *Options) setDefaults() {
	if o.LookupTimeout <= 0 {
		o.LookupTimeout = DefaultLookupTimeout
	}
	if o.MeterProvider == nil {
		o.MeterProvider = metricnoop.NewMeterProvider()
	}
	if o.TracerProvider == nil {
		o.TracerProvider = tracenoop.NewTracerProvider()
	}
	if o.Now == nil {
		o.Now = time.Now
	}
}

// Service prices carts against the active offer catalog.
type Service struct {
	offers        offer.Catalog
	coupons       coupon.Validator
	lookupTimeout time.Duration
	now           func() time.Time

	tracer  trace.Tracer
	quotes  metric.Int64Counter
	matches metric.Int64Counter
}

// NewService creates a pricing Service.
func NewService(offers offer.Catalog, coupons coupon.Validator, opts Options) (*Service, error) {
	opts.setDefaults()

	meter := opts.MeterProvider.Meter(instrumentationName)
	quotes, err := meter.Int64Counter("pricing.quotes",
		metric.WithDescription("Number of cart quotes computed"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create quotes counter")
	}
	matches, err := meter.Int64Counter("pricing.combo_matches",
		metric.WithDescription("Number of combo offers applied to quoted carts"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create matches counter")
	}

	return &Service{
		offers:        offers,
		coupons:       coupons,
		lookupTimeout: opts.LookupTimeout,
		now:           opts.Now,
		tracer:        opts.TracerProvider.Tracer(instrumentationName),
		quotes:        quotes,
		matches:       matches,
	}, nil
}

// Quote prices the cart. It only fails when ctx itself is done.
func (s *Service) Quote(ctx context.Context, req Request) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "pricing.Quote")
	defer span.End()

	lg := zctx.From(ctx)
	now := s.now()
	q := &Quote{CartVersion: req.CartVersion}

	offers, err := s.activeOffers(ctx, now)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		lg.Warn("Offer lookup failed, quoting without combos", zap.Error(err))
		q.OffersUnavailable = true
	}

	if req.CouponCode != "" {
		rule, err := s.lookupCoupon(ctx, req.CouponCode)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			lg.Info("Coupon not applied", zap.String("code", req.CouponCode), zap.Error(err))
			q.CouponError = err
		} else {
			q.Coupon = rule
		}
	}

	q.Summary = combo.Compute(combo.Input{
		Items:  req.Items,
		Offers: offers,
		Coupon: q.Coupon,
		Now:    now,
	})
	for _, w := range q.Warnings {
		lg.Warn("Pricing input skipped",
			zap.String("kind", string(w.Kind)),
			zap.String("subject", w.Subject),
			zap.String("reason", w.Message),
		)
		if w.Kind == combo.WarningCouponRejected && q.CouponError == nil {
			q.CouponError = w.Err
		}
	}

	attrs := metric.WithAttributes(
		attribute.Bool("offers_unavailable", q.OffersUnavailable),
		attribute.Bool("coupon_applied", q.CouponApplied),
	)
	s.quotes.Add(ctx, 1, attrs)
	if n := len(q.MatchResults); n > 0 {
		s.matches.Add(ctx, int64(n))
	}
	span.SetAttributes(
		attribute.Int("pricing.offers", len(offers)),
		attribute.Int("pricing.matches", len(q.MatchResults)),
		attribute.String("pricing.combined_discount", q.CombinedDiscount.String()),
	)

	return q, nil
}

func (s *Service) activeOffers(ctx context.Context, now time.Time) ([]offer.Combo, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	offers, err := s.offers.ListActive(ctx, now)
	if err != nil {
		return nil, errors.Wrap(err, "list active offers")
	}
	return offers, nil
}

func (s *Service) lookupCoupon(ctx context.Context, code string) (*coupon.Rule, error) {
	ctx, cancel := context.WithTimeout(ctx, s.lookupTimeout)
	defer cancel()

	rule, err := s.coupons.Lookup(ctx, code)
	if err != nil {
		return nil, errors.Wrap(err, "lookup coupon")
	}
	return rule, nil
}
