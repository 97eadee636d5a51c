// Package services – TimerService
//
// This file implements TimerService, which manages the lifecycle of a shop's
// countdown timers on behalf of the merchant admin. It validates and
// normalizes timer payloads, enforces shop ownership, and coordinates
// repository operations for creating, listing (with pagination), updating,
// deleting and purging timers.
//
// Normalization rules:
//   - text fields are NFC-normalized, trimmed and whitespace-collapsed
//   - enums are upper-cased; position and urgency fall back to defaults
//   - FIXED timers drop durationSeconds, EVERGREEN timers drop startAt/endAt
//   - ALL-scope timers drop product ids; PRODUCT-scope ids are de-duplicated
//   - timestamps are stored in UTC, truncated to whole seconds
//
// Service-level errors (ErrTimerNotFound, ErrInvalidTimer) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-countdown-timers/internal/domain"
	"github.com/tbourn/go-countdown-timers/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Field limits, counted in runes after normalization.
const (
	MaxNameRunes      = 120
	MaxHeadlineRunes  = 120
	MaxSubtextRunes   = 200
	MaxProductIDRunes = 255
	MaxProductIDs     = 250
)

// TimerRepo defines the repository contract required by TimerService.
type TimerRepo interface {
	// CreateTimer inserts a timer and its product rows.
	CreateTimer(ctx context.Context, db *gorm.DB, t *domain.Timer) error

	// GetTimer fetches a live timer by id, scoped to shop.
	GetTimer(ctx context.Context, db *gorm.DB, id, shop string) (*domain.Timer, error)

	// CountTimers returns the number of live timers for pagination.
	CountTimers(ctx context.Context, db *gorm.DB, shop string) (int64, error)

	// ListTimersPage returns a page of timers, newest first.
	ListTimersPage(ctx context.Context, db *gorm.DB, shop string, offset, limit int) ([]domain.Timer, error)

	// UpdateTimer replaces the editable fields and product rows of a timer.
	UpdateTimer(ctx context.Context, db *gorm.DB, t *domain.Timer) error

	// DeleteTimer soft-deletes a timer.
	DeleteTimer(ctx context.Context, db *gorm.DB, id, shop string) error

	// PurgeShopTimers soft-deletes all timers of a shop.
	PurgeShopTimers(ctx context.Context, db *gorm.DB, shop string) (int64, error)

	// GetIdempotency returns a live idempotency record or gorm.ErrRecordNotFound.
	GetIdempotency(ctx context.Context, db *gorm.DB, shop, key string, now time.Time) (*domain.Idempotency, error)

	// CreateIdempotency stores the result of a keyed create. It returns
	// ErrKeyTaken when (shop, key) already exists.
	CreateIdempotency(ctx context.Context, db *gorm.DB, shop, key, timerID string, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// ErrKeyTaken is the sentinel TimerRepo.CreateIdempotency implementations
// return when the (shop, key) pair is already recorded.
var ErrKeyTaken = errors.New("idempotency key already used")

// TimerInput carries the merchant-editable fields of a timer. ProductIDs is
// only meaningful when TargetScope is PRODUCT. An empty TargetScope is read
// as PRODUCT.
type TimerInput struct {
	Name            string
	Type            domain.TimerType
	StartAt         *time.Time
	EndAt           *time.Time
	DurationSeconds *int
	TargetScope     domain.TargetScope
	ProductIDs      []string
	Headline        string
	Subtext         string
	Position        domain.Position
	UrgencyStyle    domain.UrgencyStyle
}

// TimerService provides merchant-facing timer operations. Every method is
// scoped by shop; a timer owned by another shop behaves as missing.
type TimerService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the timer repository used by this service.
	Repo TimerRepo

	// IdempotencyTTL is how long an Idempotency-Key keeps replaying.
	IdempotencyTTL time.Duration
	// DefaultPageSize applies when ListPage is called with pageSize <= 0.
	DefaultPageSize int
}

// NewTimerService constructs a TimerService with default paging and a 24h
// idempotency window.
func NewTimerService(db *gorm.DB, r TimerRepo) *TimerService {
	return &TimerService{
		DB:              db,
		Repo:            r,
		IdempotencyTTL:  24 * time.Hour,
		DefaultPageSize: 20,
	}
}

// Create validates in and stores a new timer owned by shop.
func (s *TimerService) Create(ctx context.Context, shop string, in TimerInput) (*domain.Timer, error) {
	t, err := buildTimer(shop, in)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.CreateTimer(ctx, s.DB, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateIdempotent is Create guarded by an idempotency key. The first call
// for (shop, key) creates the timer and records it in the same transaction;
// later calls within the TTL return the originally created timer with
// replayed set to true. An empty key behaves exactly like Create.
func (s *TimerService) CreateIdempotent(ctx context.Context, shop, key string, in TimerInput) (t *domain.Timer, replayed bool, err error) {
	tr := otel.Tracer("services/TimerService")
	ctx, span := tr.Start(ctx, "CreateIdempotent",
		trace.WithAttributes(
			attribute.String("shop", shop),
			attribute.Bool("idempotent", key != ""),
		),
	)
	defer span.End()

	if key == "" {
		t, err = s.Create(ctx, shop, in)
		return t, false, err
	}

	if prev, ok := s.replay(ctx, shop, key); ok {
		return prev, true, nil
	}

	t, err = buildTimer(shop, in)
	if err != nil {
		return nil, false, err
	}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.CreateTimer(ctx, tx, t); err != nil {
			return err
		}
		_, err := s.Repo.CreateIdempotency(ctx, tx, shop, key, t.ID, 201, s.ttl())
		return err
	})
	if errors.Is(err, ErrKeyTaken) {
		// A concurrent request with the same key won; answer with its timer.
		if prev, ok := s.replay(ctx, shop, key); ok {
			return prev, true, nil
		}
		return nil, false, ErrDuplicateRequest
	}
	if err != nil {
		return nil, false, err
	}
	return t, false, nil
}

func (s *TimerService) replay(ctx context.Context, shop, key string) (*domain.Timer, bool) {
	rec, err := s.Repo.GetIdempotency(ctx, s.DB, shop, key, time.Now().UTC())
	if err != nil || rec == nil {
		return nil, false
	}
	prev, err := s.Repo.GetTimer(ctx, s.DB, rec.TimerID, shop)
	if err != nil {
		return nil, false
	}
	return prev, true
}

func (s *TimerService) ttl() time.Duration {
	if s.IdempotencyTTL <= 0 {
		return 24 * time.Hour
	}
	return s.IdempotencyTTL
}

// Get returns the timer id owned by shop, or ErrTimerNotFound.
func (s *TimerService) Get(ctx context.Context, shop, id string) (*domain.Timer, error) {
	t, err := s.Repo.GetTimer(ctx, s.DB, id, shop)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTimerNotFound
	}
	return t, err
}

// ListPage returns a page of shop's timers, newest first, and the total count.
// It applies defaults for invalid page/pageSize.
func (s *TimerService) ListPage(ctx context.Context, shop string, page, pageSize int) ([]domain.Timer, int64, error) {
	if pageSize <= 0 {
		pageSize = s.DefaultPageSize
	}
	pg := utils.Page{Number: max(page, 1), Size: pageSize}
	if pg.Size <= 0 {
		pg.Size = 20
	}

	total, err := s.Repo.CountTimers(ctx, s.DB, shop)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Timer{}, 0, nil
	}

	items, err := s.Repo.ListTimersPage(ctx, s.DB, shop, pg.Offset(), pg.Size)
	return items, total, err
}

// Update replaces every editable field of timer id with in. Identity, shop,
// CreatedAt and Impressions are preserved.
func (s *TimerService) Update(ctx context.Context, shop, id string, in TimerInput) (*domain.Timer, error) {
	t, err := buildTimer(shop, in)
	if err != nil {
		return nil, err
	}
	t.ID = id
	if err := s.Repo.UpdateTimer(ctx, s.DB, t); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTimerNotFound
		}
		return nil, err
	}
	return s.Get(ctx, shop, id)
}

// Delete soft-deletes timer id. Deleted timers never resolve again.
func (s *TimerService) Delete(ctx context.Context, shop, id string) error {
	err := s.Repo.DeleteTimer(ctx, s.DB, id, shop)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrTimerNotFound
	}
	return err
}

// PurgeShop removes every timer of shop, typically after the app is
// uninstalled, and returns how many were removed.
func (s *TimerService) PurgeShop(ctx context.Context, shop string) (int64, error) {
	shop = strings.TrimSpace(shop)
	if shop == "" {
		return 0, fmt.Errorf("%w: shop is required", ErrInvalidTimer)
	}
	return s.Repo.PurgeShopTimers(ctx, s.DB, shop)
}

// buildTimer validates and normalizes in into a new domain.Timer for shop.
func buildTimer(shop string, in TimerInput) (*domain.Timer, error) {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: "+format, append([]any{ErrInvalidTimer}, args...)...)
	}

	if strings.TrimSpace(shop) == "" {
		return nil, invalid("shop is required")
	}

	t := &domain.Timer{
		Shop:         strings.TrimSpace(shop),
		Name:         normalizeText(in.Name),
		Type:         domain.TimerType(strings.ToUpper(strings.TrimSpace(string(in.Type)))),
		TargetScope:  domain.TargetScope(strings.ToUpper(strings.TrimSpace(string(in.TargetScope)))),
		Headline:     normalizeText(in.Headline),
		Subtext:      normalizeText(in.Subtext),
		Position:     domain.Position(strings.ToUpper(strings.TrimSpace(string(in.Position)))),
		UrgencyStyle: domain.UrgencyStyle(strings.ToUpper(strings.TrimSpace(string(in.UrgencyStyle)))),
	}

	switch {
	case t.Name == "":
		return nil, invalid("name is required")
	case utf8.RuneCountInString(t.Name) > MaxNameRunes:
		return nil, invalid("name must be at most %d characters", MaxNameRunes)
	case t.Headline == "":
		return nil, invalid("headline is required")
	case utf8.RuneCountInString(t.Headline) > MaxHeadlineRunes:
		return nil, invalid("headline must be at most %d characters", MaxHeadlineRunes)
	case utf8.RuneCountInString(t.Subtext) > MaxSubtextRunes:
		return nil, invalid("subtext must be at most %d characters", MaxSubtextRunes)
	}

	switch t.Type {
	case domain.TimerTypeFixed:
		if in.EndAt == nil {
			return nil, invalid("endAt is required for FIXED timers")
		}
		end := in.EndAt.UTC().Truncate(time.Second)
		t.EndAt = &end
		if in.StartAt != nil {
			start := in.StartAt.UTC().Truncate(time.Second)
			if !start.Before(end) {
				return nil, invalid("startAt must be before endAt")
			}
			t.StartAt = &start
		}
	case domain.TimerTypeEvergreen:
		if in.DurationSeconds == nil || *in.DurationSeconds <= 0 {
			return nil, invalid("durationSeconds must be a positive number for EVERGREEN timers")
		}
		d := *in.DurationSeconds
		t.DurationSeconds = &d
	default:
		return nil, invalid("type must be FIXED or EVERGREEN")
	}

	if t.TargetScope == "" {
		t.TargetScope = domain.ScopeProduct
	}
	switch t.TargetScope {
	case domain.ScopeAll:
	case domain.ScopeProduct:
		ids, err := normalizeProductIDs(in.ProductIDs)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			t.Products = append(t.Products, domain.TimerProduct{ProductID: id})
		}
	default:
		return nil, invalid("targetScope must be ALL or PRODUCT")
	}

	if t.Position == "" {
		t.Position = domain.PositionBelowPrice
	}
	if !t.Position.Valid() {
		return nil, invalid("position must be ABOVE_PRICE or BELOW_PRICE")
	}
	if t.UrgencyStyle == "" {
		t.UrgencyStyle = domain.UrgencyNone
	}
	if !t.UrgencyStyle.Valid() {
		return nil, invalid("urgencyStyle must be NONE or COLOR_PULSE")
	}

	return t, nil
}

// normalizeProductIDs trims, drops blanks and de-duplicates ids while keeping
// first-seen order.
func normalizeProductIDs(in []string) ([]string, error) {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, raw := range in {
		id := strings.TrimSpace(raw)
		if id == "" {
			continue
		}
		if utf8.RuneCountInString(id) > MaxProductIDRunes {
			return nil, fmt.Errorf("%w: product id must be at most %d characters", ErrInvalidTimer, MaxProductIDRunes)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: at least one product id is required for PRODUCT scope", ErrInvalidTimer)
	}
	if len(out) > MaxProductIDs {
		return nil, fmt.Errorf("%w: at most %d product ids are allowed", ErrInvalidTimer, MaxProductIDs)
	}
	return out, nil
}

// normalizeText applies NFC, trims, and collapses internal whitespace runs
// to one space.
func normalizeText(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(norm.NFC.String(s)), " ")
}

// whitespaceRE collapses consecutive whitespace to a single space.
var whitespaceRE = regexp.MustCompile(`\s+`)
