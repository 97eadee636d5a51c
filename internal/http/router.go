// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// CORS, security headers, session auth, idempotency, and rate limiting.
//
// Route surfaces:
//   - {WidgetBasePath}/active  storefront widget, public, never errors
//   - {APIBasePath}/timers     merchant admin, session token, gzip
//   - /webhooks                platform deliveries, HMAC verified
//   - /health, /metrics, /swagger/*any
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	_ "github.com/tbourn/go-countdown-timers/docs"
	"github.com/tbourn/go-countdown-timers/internal/config"
	"github.com/tbourn/go-countdown-timers/internal/domain"
	"github.com/tbourn/go-countdown-timers/internal/http/handlers"
	"github.com/tbourn/go-countdown-timers/internal/http/middleware"
	"github.com/tbourn/go-countdown-timers/internal/repo"
	"github.com/tbourn/go-countdown-timers/internal/services"
)

// timerRepoShim adapts the repository free functions to the
// services.TimerRepo interface expected by the TimerService. This keeps
// services decoupled from the concrete repo package while reusing existing
// functions.
type timerRepoShim struct{}

// CreateTimer proxies repo.CreateTimer.
func (timerRepoShim) CreateTimer(ctx context.Context, db *gorm.DB, t *domain.Timer) error {
	return repo.CreateTimer(ctx, db, t)
}

// GetTimer proxies repo.GetTimer.
func (timerRepoShim) GetTimer(ctx context.Context, db *gorm.DB, id, shop string) (*domain.Timer, error) {
	return repo.GetTimer(ctx, db, id, shop)
}

// CountTimers proxies repo.CountTimers (pagination support).
func (timerRepoShim) CountTimers(ctx context.Context, db *gorm.DB, shop string) (int64, error) {
	return repo.CountTimers(ctx, db, shop)
}

// ListTimersPage proxies repo.ListTimersPage (pagination support).
func (timerRepoShim) ListTimersPage(ctx context.Context, db *gorm.DB, shop string, offset, limit int) ([]domain.Timer, error) {
	return repo.ListTimersPage(ctx, db, shop, offset, limit)
}

// UpdateTimer proxies repo.UpdateTimer.
func (timerRepoShim) UpdateTimer(ctx context.Context, db *gorm.DB, t *domain.Timer) error {
	return repo.UpdateTimer(ctx, db, t)
}

// DeleteTimer proxies repo.DeleteTimer.
func (timerRepoShim) DeleteTimer(ctx context.Context, db *gorm.DB, id, shop string) error {
	return repo.DeleteTimer(ctx, db, id, shop)
}

// PurgeShopTimers proxies repo.PurgeShopTimers.
func (timerRepoShim) PurgeShopTimers(ctx context.Context, db *gorm.DB, shop string) (int64, error) {
	return repo.PurgeShopTimers(ctx, db, shop)
}

// GetIdempotency proxies repo.GetIdempotency.
func (timerRepoShim) GetIdempotency(ctx context.Context, db *gorm.DB, shop, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, shop, key, now)
}

// CreateIdempotency proxies repo.CreateIdempotency, translating the
// repository's duplicate error into services.ErrKeyTaken.
func (timerRepoShim) CreateIdempotency(ctx context.Context, db *gorm.DB, shop, key, timerID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	rec, err := repo.CreateIdempotency(ctx, db, shop, key, timerID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, services.ErrKeyTaken
	}
	return rec, err
}

// resolverRepoShim adapts the repository to services.ResolverRepo.
type resolverRepoShim struct{}

// FindActiveTimer proxies repo.FindActiveTimer.
func (resolverRepoShim) FindActiveTimer(ctx context.Context, db *gorm.DB, shop, productID string, now time.Time) (*domain.Timer, error) {
	return repo.FindActiveTimer(ctx, db, shop, productID, now)
}

// IncrementImpressions proxies repo.IncrementImpressions.
func (resolverRepoShim) IncrementImpressions(ctx context.Context, db *gorm.DB, id, shop string) (int64, error) {
	return repo.IncrementImpressions(ctx, db, id, shop)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Global middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Access logging (pretty dev logger or PII-redacting logger)
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. CORS and Security headers
//
// Group middleware:
//   - widget: per-IP rate limit answering {"active":false} when throttled
//   - admin: gzip, session, idempotency validator, per-shop rate limit
//   - webhooks: HMAC signature check
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logs; PII scrubbing outside local development
	if cfg.LogPretty {
		r.Use(middleware.Logger())
	} else {
		r.Use(middleware.RedactingLogger(middleware.RedactOptions{
			MaskHeaders: []string{middleware.HeaderWebhookHMAC},
		}))
	}

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) CORS posture. The widget is called from storefront origins, so
	// allow all when no allowlist is configured.
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", "Idempotency-Replayed"}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,

		// Storefront pages on any domain load the widget payload.
		CrossOriginResource: "cross-origin",
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db
	timerSvc := services.NewTimerService(db, timerRepoShim{})
	if cfg.IdempotencyTTL > 0 {
		timerSvc.IdempotencyTTL = cfg.IdempotencyTTL
	}
	resolver := services.NewResolverService(db, resolverRepoShim{}, cfg.ResolveTimeout)
	h := handlers.New(timerSvc, resolver)

	// Storefront widget. Throttled callers get the inactive answer, not 429.
	widgetRL := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())
	widgetRL.Name = "widget"
	widgetRL.Reject = handlers.WidgetInactive
	widget := groupWithPrefix(r, cfg.WidgetBasePath)
	widget.Use(widgetRL.Handler())
	{
		widget.GET("/active", h.GetActive)
	}

	if !cfg.Shopify.Enabled() {
		log.Warn().Msg("SHOPIFY_API_SECRET not set; admin API and webhooks are disabled")
		return
	}

	// Merchant admin API
	adminRL := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByShopOrIP())
	adminRL.Name = "admin"
	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(gzip.Gzip(gzip.DefaultCompression))
	api.Use(middleware.ShopSession(middleware.SessionOptions{
		Secret:   cfg.Shopify.APISecret,
		Audience: cfg.Shopify.APIKey,
	}))
	api.Use(middleware.EmbeddedAdminFrame())
	// Idempotency validation runs after the session (keys are per shop) and
	// before rate limiting so replays bypass the limiter.
	api.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, shop, key string, now time.Time) (bool, error) {
			_, err := repo.GetIdempotency(ctx, db, shop, key, now)
			switch {
			case errors.Is(err, repo.ErrNotFound):
				return false, nil
			case err != nil:
				return false, err
			}
			return true, nil
		},
	))
	api.Use(adminRL.Handler())
	{
		api.POST("/timers", h.CreateTimer)
		api.GET("/timers", h.ListTimers)
		api.GET("/timers/:id", h.GetTimer)
		api.PUT("/timers/:id", h.UpdateTimer)
		api.DELETE("/timers/:id", h.DeleteTimer)
	}

	// Platform webhooks
	r.POST("/webhooks", middleware.VerifyWebhook(cfg.Shopify.APISecret), h.HandleWebhook)
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
