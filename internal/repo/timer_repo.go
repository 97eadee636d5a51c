// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Timer
// model and its product targeting rows.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. Every
// query is scoped by shop, so one store can never read or mutate another
// store's timers.
//
// Error semantics:
//   - When a timer is not found (or belongs to another shop), functions
//     return gorm.ErrRecordNotFound (also exported here as ErrNotFound).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
//
// Soft-deleted timers are invisible to every function here except
// PurgeShopTimers, which only soft-deletes.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-countdown-timers/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateTimer inserts t together with its product rows in one transaction.
// An empty ID is replaced by a random UUID and zero timestamps are set to
// the current UTC time. All timestamps are stored in UTC.
func CreateTimer(ctx context.Context, db *gorm.DB, t *domain.Timer) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}
	normalizeTimes(t)
	for i := range t.Products {
		t.Products[i].TimerID = t.ID
	}
	return db.WithContext(ctx).Create(t).Error
}

// normalizeTimes moves every timestamp of t to UTC.
func normalizeTimes(t *domain.Timer) {
	t.CreatedAt = t.CreatedAt.UTC()
	t.UpdatedAt = t.UpdatedAt.UTC()
	if t.StartAt != nil {
		v := t.StartAt.UTC()
		t.StartAt = &v
	}
	if t.EndAt != nil {
		v := t.EndAt.UTC()
		t.EndAt = &v
	}
}

// GetTimer fetches a single timer by id and shop with its products preloaded.
func GetTimer(ctx context.Context, db *gorm.DB, id, shop string) (*domain.Timer, error) {
	var t domain.Timer
	err := db.WithContext(ctx).
		Preload("Products", func(tx *gorm.DB) *gorm.DB { return tx.Order("product_id") }).
		Where("id = ? AND shop = ?", id, shop).
		First(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CountTimers returns the number of live timers owned by shop.
func CountTimers(ctx context.Context, db *gorm.DB, shop string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Timer{}).
		Where("shop = ?", shop).
		Count(&total).Error
	return total, err
}

// ListTimersPage returns a page of shop's timers, newest first, with products
// preloaded. Use CountTimers to obtain the total for pagination metadata.
func ListTimersPage(ctx context.Context, db *gorm.DB, shop string, offset, limit int) ([]domain.Timer, error) {
	var out []domain.Timer
	err := db.WithContext(ctx).
		Preload("Products", func(tx *gorm.DB) *gorm.DB { return tx.Order("product_id") }).
		Where("shop = ?", shop).
		Order("created_at desc").
		Order("id desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateTimer overwrites the editable columns of the timer identified by
// t.ID and t.Shop and replaces its product rows. Impressions, CreatedAt and
// ownership are left untouched. It returns ErrNotFound when no live timer
// matches.
func UpdateTimer(ctx context.Context, db *gorm.DB, t *domain.Timer) error {
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = time.Now().UTC()
	}
	normalizeTimes(t)
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Timer{}).
			Where("id = ? AND shop = ?", t.ID, t.Shop).
			Updates(map[string]any{
				"name":             t.Name,
				"type":             t.Type,
				"start_at":         t.StartAt,
				"end_at":           t.EndAt,
				"duration_seconds": t.DurationSeconds,
				"target_scope":     t.TargetScope,
				"headline":         t.Headline,
				"subtext":          t.Subtext,
				"position":         t.Position,
				"urgency_style":    t.UrgencyStyle,
				"updated_at":       t.UpdatedAt,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}

		if err := tx.Where("timer_id = ?", t.ID).Delete(&domain.TimerProduct{}).Error; err != nil {
			return err
		}
		if len(t.Products) == 0 {
			return nil
		}
		for i := range t.Products {
			t.Products[i].TimerID = t.ID
		}
		return tx.Create(&t.Products).Error
	})
}

// DeleteTimer soft-deletes the timer identified by id and shop. It returns
// ErrNotFound when no live timer matches.
func DeleteTimer(ctx context.Context, db *gorm.DB, id, shop string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND shop = ?", id, shop).
		Delete(&domain.Timer{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// PurgeShopTimers soft-deletes every live timer of shop and drops the shop's
// idempotency records. It returns the number of timers removed.
func PurgeShopTimers(ctx context.Context, db *gorm.DB, shop string) (int64, error) {
	var n int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("shop = ?", shop).Delete(&domain.Timer{})
		if res.Error != nil {
			return res.Error
		}
		n = res.RowsAffected
		return tx.Where("shop = ?", shop).Delete(&domain.Idempotency{}).Error
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// FindActiveTimer returns the most recently created timer of shop that
// targets productID and is live at now, or ErrNotFound.
//
// A timer targets productID when its scope is ALL or a matching
// timer_products row exists. FIXED timers are live inside [start_at, end_at]
// with NULL bounds unconstrained; EVERGREEN timers are always live. Ties on
// created_at are broken by id so the answer is deterministic.
func FindActiveTimer(ctx context.Context, db *gorm.DB, shop, productID string, now time.Time) (*domain.Timer, error) {
	// SQLite compares timestamps as text, so bounds and now share one zone.
	now = now.UTC()
	var t domain.Timer
	err := db.WithContext(ctx).
		Where("shop = ?", shop).
		Where("(target_scope = ? OR EXISTS (SELECT 1 FROM timer_products tp WHERE tp.timer_id = timers.id AND tp.product_id = ?))",
			domain.ScopeAll, productID).
		Where("((type = ? AND (start_at IS NULL OR start_at <= ?) AND (end_at IS NULL OR end_at >= ?)) OR type = ?)",
			domain.TimerTypeFixed, now, now, domain.TimerTypeEvergreen).
		Order("created_at desc").
		Order("id desc").
		Take(&t).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// IncrementImpressions atomically adds one to the impressions counter of the
// live timer identified by id and shop, without touching updated_at. It
// reports the number of rows changed (0 when the timer vanished).
func IncrementImpressions(ctx context.Context, db *gorm.DB, id, shop string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Timer{}).
		Where("id = ? AND shop = ?", id, shop).
		UpdateColumn("impressions", gorm.Expr("impressions + ?", 1))
	return res.RowsAffected, res.Error
}
