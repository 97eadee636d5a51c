package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-countdown-timers/internal/domain"
)

// ErrDuplicate is returned when (shop, key) already has a live record.
var ErrDuplicate = errors.New("repo: duplicate idempotency key")

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, shop, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(shop) == "" || strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where("shop = ? AND key = ? AND expires_at > ?", shop, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CreateIdempotency records that key produced timerID for shop. Run it in
// the transaction that created the timer so both commit together.
func CreateIdempotency(ctx context.Context, db *gorm.DB, shop, key, timerID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	rec := domain.NewIdempotency(shop, key, timerID, status, time.Now(), ttl)
	tx := db.WithContext(ctx)
	// An expired record that the sweeper has not reached yet frees its key.
	if err := tx.Where("shop = ? AND key = ? AND expires_at <= ?", rec.Shop, rec.Key, rec.CreatedAt).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}
	err := tx.Create(rec).Error
	switch {
	case err == nil:
		return rec, nil
	case isUniqueViolation(err):
		return nil, ErrDuplicate
	default:
		return nil, err
	}
}

// DeleteExpiredIdempotency removes records whose expiry is at or before now
// and reports how many rows were deleted.
func DeleteExpiredIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Where("expires_at <= ?", now).
		Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation also matches driver text for connections opened without
// TranslateError.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range []string{"unique constraint failed", "constraint failed: unique", "duplicate key value", "sqlstate 23505"} {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
