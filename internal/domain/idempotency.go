package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Idempotency remembers which timer a merchant's keyed create produced so a
// retried POST replays it. Keys are scoped per shop.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	Shop      string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_shop_key,priority:1"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_idem_shop_key,priority:2"`
	TimerID   string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"not null"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

func (Idempotency) TableName() string { return "idempotency" }

// NewIdempotency builds the record for a create that answered status at now.
// A non-positive ttl yields a record that is already expired.
func NewIdempotency(shop, key, timerID string, status int, now time.Time, ttl time.Duration) *Idempotency {
	now = now.UTC()
	if ttl < 0 {
		ttl = 0
	}
	return &Idempotency{
		ID:        uuid.NewString(),
		Shop:      strings.TrimSpace(shop),
		Key:       strings.TrimSpace(key),
		TimerID:   timerID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// Live reports whether the record still replays at now.
func (r Idempotency) Live(now time.Time) bool { return now.Before(r.ExpiresAt) }
