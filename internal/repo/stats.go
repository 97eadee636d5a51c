// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-countdown-timers/internal/domain"
)

// TimerStats summarizes a shop's live timers for cache validation.
//
// Impressions is included because the resolver bumps counters without
// touching updated_at.
type TimerStats struct {
	Count        int64
	MaxUpdatedAt *time.Time
	Impressions  int64
}

// TimersStats returns aggregate metadata for a shop's timers: the number of
// non-deleted rows, the greatest UpdatedAt among them, and the sum of their
// impressions. When the shop has no timers, the zero TimerStats is returned.
func TimersStats(ctx context.Context, db *gorm.DB, shop string) (TimerStats, error) {
	var st TimerStats
	base := func() *gorm.DB {
		return db.WithContext(ctx).Model(&domain.Timer{}).Where("shop = ?", shop)
	}

	if err := base().Count(&st.Count).Error; err != nil {
		return TimerStats{}, err
	}
	if st.Count == 0 {
		return TimerStats{}, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err := base().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return TimerStats{}, err
	}
	st.MaxUpdatedAt = &row.UpdatedAt

	if err := base().Select("COALESCE(SUM(impressions), 0)").Scan(&st.Impressions).Error; err != nil {
		return TimerStats{}, err
	}
	return st, nil
}
