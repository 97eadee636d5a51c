package handlers

import (
	"context"

	"github.com/tbourn/go-countdown-timers/internal/domain"
	"github.com/tbourn/go-countdown-timers/internal/services"
)

// TimerAdmin is the merchant timer API behind the admin routes. Every method
// is scoped by shop.
type TimerAdmin interface {
	Create(ctx context.Context, shop string, in services.TimerInput) (*domain.Timer, error)
	// CreateIdempotent creates a timer once per (shop, key); replayed reports
	// whether an earlier result was returned.
	CreateIdempotent(ctx context.Context, shop, key string, in services.TimerInput) (t *domain.Timer, replayed bool, err error)
	Get(ctx context.Context, shop, id string) (*domain.Timer, error)
	ListPage(ctx context.Context, shop string, page, pageSize int) ([]domain.Timer, int64, error)
	Update(ctx context.Context, shop, id string, in services.TimerInput) (*domain.Timer, error)
	Delete(ctx context.Context, shop, id string) error
	// PurgeShop removes every timer of shop and returns how many were removed.
	PurgeShop(ctx context.Context, shop string) (int64, error)
}

// Resolver picks the timer the storefront widget should display.
type Resolver interface {
	Resolve(ctx context.Context, shop, productID string) (*domain.TimerView, bool)
}

// Handlers serves the widget, the admin API and the webhooks.
type Handlers struct {
	timers   TimerAdmin
	resolver Resolver
}

func New(timers TimerAdmin, resolver Resolver) *Handlers {
	return &Handlers{timers: timers, resolver: resolver}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}
