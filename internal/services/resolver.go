// Package services – ResolverService
//
// This file implements the storefront side of the timer service: given a shop
// and a product id, pick the timer the widget should display and count the
// impression. Resolution is a two-step contract:
//
//  1. select the newest live candidate for (shop, product) at the clock's now
//  2. atomically increment that candidate's impressions, keyed by its id
//
// The caller only ever sees "a timer" or "nothing". Store failures, timeouts
// and races with deletion all degrade to "nothing" and are logged and counted
// instead of surfacing as errors.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-countdown-timers/internal/domain"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultResolveTimeout bounds the store work of a single resolution when
// ResolverService.Timeout is not set.
const DefaultResolveTimeout = 2 * time.Second

// ResolverRepo is the store contract needed for resolution.
type ResolverRepo interface {
	// FindActiveTimer returns the newest live timer of shop targeting
	// productID at now, or gorm.ErrRecordNotFound.
	FindActiveTimer(ctx context.Context, db *gorm.DB, shop, productID string, now time.Time) (*domain.Timer, error)

	// IncrementImpressions adds one impression to the live timer (id, shop)
	// and reports the number of rows changed.
	IncrementImpressions(ctx context.Context, db *gorm.DB, id, shop string) (int64, error)
}

// ResolverService answers storefront "which timer is active" queries.
type ResolverService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo performs the candidate lookup and the impression increment.
	Repo ResolverRepo
	// Clock supplies "now". Tests inject clockwork.NewFakeClock().
	Clock clockwork.Clock
	// Timeout bounds both store steps of one call.
	Timeout time.Duration
}

// NewResolverService constructs a ResolverService on the real clock.
func NewResolverService(db *gorm.DB, r ResolverRepo, timeout time.Duration) *ResolverService {
	return &ResolverService{
		DB:      db,
		Repo:    r,
		Clock:   clockwork.NewRealClock(),
		Timeout: timeout,
	}
}

// Resolve returns the storefront view of the timer to display for productID
// in shop, or (nil, false) when there is none.
//
// A true result guarantees the timer's impressions were incremented exactly
// once by this call. Blank inputs return immediately without touching the
// store.
func (s *ResolverService) Resolve(ctx context.Context, shop, productID string) (*domain.TimerView, bool) {
	shop = strings.TrimSpace(shop)
	productID = strings.TrimSpace(productID)
	if shop == "" || productID == "" {
		resolutions.WithLabelValues(outcomeMissing).Inc()
		return nil, false
	}

	tr := otel.Tracer("services/ResolverService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.String("shop", shop),
			attribute.String("product.id", productID),
		),
	)
	defer span.End()

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = DefaultResolveTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	lg := loggerFrom(ctx).With().Str("shop", shop).Str("product_id", productID).Logger()

	start := time.Now()
	defer func() { resolveLat.Observe(time.Since(start).Seconds()) }()

	now := s.now()
	t, err := s.Repo.FindActiveTimer(ctx, s.DB, shop, productID, now)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		resolutions.WithLabelValues(outcomeNoMatch).Inc()
		return nil, false
	}
	if err != nil {
		resolutions.WithLabelValues(outcomeStoreError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "find active timer")
		lg.Error().Err(err).Msg("timer lookup failed")
		return nil, false
	}

	n, err := s.Repo.IncrementImpressions(ctx, s.DB, t.ID, shop)
	if err != nil {
		resolutions.WithLabelValues(outcomeStoreError).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "increment impressions")
		lg.Error().Err(err).Str("timer_id", t.ID).Msg("impression increment failed")
		return nil, false
	}
	if n == 0 {
		resolutions.WithLabelValues(outcomeVanished).Inc()
		lg.Debug().Str("timer_id", t.ID).Msg("timer removed before impression was counted")
		return nil, false
	}

	resolutions.WithLabelValues(outcomeActive).Inc()
	impressions.Inc()
	span.SetAttributes(attribute.String("timer.id", t.ID), attribute.String("timer.type", string(t.Type)))

	v := t.View()
	return &v, true
}

func (s *ResolverService) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

// loggerFrom returns the logger attached to ctx, or the global logger when
// none was attached.
func loggerFrom(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &log.Logger
}
