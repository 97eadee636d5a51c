// Package domain defines the persistence models for merchant countdown timers
// and their product targeting. These types are mapped with GORM and form the
// core data layer of the storefront timer service.
package domain

import (
	"time"

	"gorm.io/gorm"
)

// TimerType selects which time fields of a Timer are meaningful.
type TimerType string

const (
	// TimerTypeFixed timers share one absolute window [StartAt, EndAt] for
	// every visitor.
	TimerTypeFixed TimerType = "FIXED"
	// TimerTypeEvergreen timers count down DurationSeconds per visitor; the
	// countdown itself is tracked by the storefront client.
	TimerTypeEvergreen TimerType = "EVERGREEN"
)

// Valid reports whether t is a known timer type.
func (t TimerType) Valid() bool {
	return t == TimerTypeFixed || t == TimerTypeEvergreen
}

// TargetScope selects which products of a shop a timer applies to.
type TargetScope string

const (
	// ScopeAll targets every product of the shop.
	ScopeAll TargetScope = "ALL"
	// ScopeProduct targets only the products listed in Timer.Products.
	ScopeProduct TargetScope = "PRODUCT"
)

// Valid reports whether s is a known targeting scope.
func (s TargetScope) Valid() bool {
	return s == ScopeAll || s == ScopeProduct
}

// Position is where the storefront widget renders relative to the price.
type Position string

const (
	PositionAbovePrice Position = "ABOVE_PRICE"
	PositionBelowPrice Position = "BELOW_PRICE"
)

// Valid reports whether p is a known widget position.
func (p Position) Valid() bool {
	return p == PositionAbovePrice || p == PositionBelowPrice
}

// UrgencyStyle is an optional visual effect for the storefront widget.
type UrgencyStyle string

const (
	UrgencyNone       UrgencyStyle = "NONE"
	UrgencyColorPulse UrgencyStyle = "COLOR_PULSE"
)

// Valid reports whether u is a known urgency style.
func (u UrgencyStyle) Valid() bool {
	return u == UrgencyNone || u == UrgencyColorPulse
}

// Timer is a merchant-configured countdown timer scoped to a single shop.
//
// Fields:
//   - ID: UUID primary key (char(36)), immutable.
//   - Shop: store identifier; every query is scoped by it.
//   - Name: admin-facing label.
//   - Type: FIXED or EVERGREEN (enforced by DB constraint).
//   - StartAt / EndAt: absolute window, FIXED only. A nil bound is unconstrained.
//   - DurationSeconds: per-visitor countdown length, EVERGREEN only.
//   - TargetScope / Products: which products of the shop the timer applies to.
//   - Headline / Subtext / Position / UrgencyStyle: widget display data.
//   - Impressions: number of storefront resolutions that returned this timer.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM.
//   - DeletedAt: soft deletion marker; deleted timers never resolve.
type Timer struct {
	ID              string         `json:"id"           gorm:"type:char(36);primaryKey"`
	Shop            string         `json:"shop"         gorm:"type:varchar(255);not null;index:idx_shop_timers,priority:1"`
	Name            string         `json:"name"         gorm:"type:varchar(255);not null"`
	Type            TimerType      `json:"type"         gorm:"type:varchar(16);not null;check:type IN ('FIXED','EVERGREEN')"`
	StartAt         *time.Time     `json:"startAt,omitempty"`
	EndAt           *time.Time     `json:"endAt,omitempty"`
	DurationSeconds *int           `json:"durationSeconds,omitempty"`
	TargetScope     TargetScope    `json:"targetScope"  gorm:"type:varchar(16);not null;default:'PRODUCT';check:target_scope IN ('ALL','PRODUCT')"`
	Headline        string         `json:"headline"     gorm:"type:varchar(512);not null"`
	Subtext         string         `json:"subtext"      gorm:"type:varchar(1024)"`
	Position        Position       `json:"position"     gorm:"type:varchar(16);not null;default:'BELOW_PRICE'"`
	UrgencyStyle    UrgencyStyle   `json:"urgencyStyle" gorm:"type:varchar(16);not null;default:'NONE'"`
	Impressions     int64          `json:"impressions"  gorm:"not null;default:0"`
	CreatedAt       time.Time      `json:"createdAt"    gorm:"index:idx_shop_timers,priority:2"`
	UpdatedAt       time.Time      `json:"updatedAt"`
	DeletedAt       gorm.DeletedAt `json:"-"            gorm:"index"`

	// Products lists targeted product ids when TargetScope is PRODUCT.
	// Rows are cascade-deleted with the timer.
	Products []TimerProduct `json:"-" gorm:"foreignKey:TimerID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Timer.
func (Timer) TableName() string { return "timers" }

// ProductIDs returns the targeted product ids in stored order.
func (t Timer) ProductIDs() []string {
	out := make([]string, 0, len(t.Products))
	for _, p := range t.Products {
		out = append(out, p.ProductID)
	}
	return out
}

// TimerProduct links a timer to one targeted product. The composite primary
// key makes (timer_id, product_id) unique.
type TimerProduct struct {
	TimerID   string `json:"timerId"   gorm:"type:char(36);primaryKey"`
	ProductID string `json:"productId" gorm:"type:varchar(255);primaryKey;index:idx_product_timers"`
}

// TableName returns the database table name for TimerProduct.
func (TimerProduct) TableName() string { return "timer_products" }

// TimerView is the storefront projection of an active timer. EndAt is only
// set for FIXED timers and DurationSeconds only for EVERGREEN timers.
type TimerView struct {
	ID              string       `json:"id"`
	Type            TimerType    `json:"type"`
	EndAt           *time.Time   `json:"endAt,omitempty"`
	DurationSeconds *int         `json:"durationSeconds,omitempty"`
	Headline        string       `json:"headline"`
	Subtext         string       `json:"subtext,omitempty"`
	Position        Position     `json:"position,omitempty"`
	UrgencyStyle    UrgencyStyle `json:"urgencyStyle,omitempty"`
}

// View projects t for the storefront widget.
func (t Timer) View() TimerView {
	v := TimerView{
		ID:           t.ID,
		Type:         t.Type,
		Headline:     t.Headline,
		Subtext:      t.Subtext,
		Position:     t.Position,
		UrgencyStyle: t.UrgencyStyle,
	}
	switch t.Type {
	case TimerTypeFixed:
		if t.EndAt != nil {
			end := t.EndAt.UTC()
			v.EndAt = &end
		}
	case TimerTypeEvergreen:
		if t.DurationSeconds != nil {
			d := *t.DurationSeconds
			v.DurationSeconds = &d
		}
	}
	return v
}
