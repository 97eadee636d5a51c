package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-countdown-timers/internal/domain"
	"github.com/tbourn/go-countdown-timers/internal/http/middleware"
	"github.com/tbourn/go-countdown-timers/internal/repo"
	"github.com/tbourn/go-countdown-timers/internal/services"
)

const (
	testSecret = "handler-secret"
	shopA      = "shop-a.myshopify.com"
	shopB      = "shop-b.myshopify.com"
)

// ---------- test DB + repo shims ----------

func newHandlerDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:timer_handlers_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// testTimerRepo implements services.TimerRepo using the repo package (like router.go).
type testTimerRepo struct{}

func (testTimerRepo) CreateTimer(ctx context.Context, db *gorm.DB, t *domain.Timer) error {
	return repo.CreateTimer(ctx, db, t)
}
func (testTimerRepo) GetTimer(ctx context.Context, db *gorm.DB, id, shop string) (*domain.Timer, error) {
	return repo.GetTimer(ctx, db, id, shop)
}
func (testTimerRepo) CountTimers(ctx context.Context, db *gorm.DB, shop string) (int64, error) {
	return repo.CountTimers(ctx, db, shop)
}
func (testTimerRepo) ListTimersPage(ctx context.Context, db *gorm.DB, shop string, offset, limit int) ([]domain.Timer, error) {
	return repo.ListTimersPage(ctx, db, shop, offset, limit)
}
func (testTimerRepo) UpdateTimer(ctx context.Context, db *gorm.DB, t *domain.Timer) error {
	return repo.UpdateTimer(ctx, db, t)
}
func (testTimerRepo) DeleteTimer(ctx context.Context, db *gorm.DB, id, shop string) error {
	return repo.DeleteTimer(ctx, db, id, shop)
}
func (testTimerRepo) PurgeShopTimers(ctx context.Context, db *gorm.DB, shop string) (int64, error) {
	return repo.PurgeShopTimers(ctx, db, shop)
}
func (testTimerRepo) GetIdempotency(ctx context.Context, db *gorm.DB, shop, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, db, shop, key, now)
}
func (testTimerRepo) CreateIdempotency(ctx context.Context, db *gorm.DB, shop, key, timerID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	rec, err := repo.CreateIdempotency(ctx, db, shop, key, timerID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil, services.ErrKeyTaken
	}
	return rec, err
}

type testResolverRepo struct{}

func (testResolverRepo) FindActiveTimer(ctx context.Context, db *gorm.DB, shop, productID string, now time.Time) (*domain.Timer, error) {
	return repo.FindActiveTimer(ctx, db, shop, productID, now)
}
func (testResolverRepo) IncrementImpressions(ctx context.Context, db *gorm.DB, id, shop string) (int64, error) {
	return repo.IncrementImpressions(ctx, db, id, shop)
}

// ---------- app under test ----------

type testApp struct {
	db       *gorm.DB
	timers   *services.TimerService
	resolver *services.ResolverService
	clock    *clockwork.FakeClock
	router   *gin.Engine
}

// newTestApp wires real services on an in-memory DB behind a router shaped
// like the production one (session auth on /timers, signature check on
// /webhooks).
func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := newHandlerDB(t)
	clk := clockwork.NewFakeClockAt(time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC))
	timers := services.NewTimerService(db, testTimerRepo{})
	resolver := services.NewResolverService(db, testResolverRepo{}, time.Second)
	resolver.Clock = clk

	h := New(timers, resolver)

	r := gin.New()
	r.Use(middleware.RequestID())
	r.GET("/widget/active", h.GetActive)

	admin := r.Group("/api")
	admin.Use(middleware.ShopSession(middleware.SessionOptions{Secret: testSecret}))
	admin.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))
	admin.POST("/timers", h.CreateTimer)
	admin.GET("/timers", h.ListTimers)
	admin.GET("/timers/:id", h.GetTimer)
	admin.PUT("/timers/:id", h.UpdateTimer)
	admin.DELETE("/timers/:id", h.DeleteTimer)

	r.POST("/webhooks", middleware.VerifyWebhook(testSecret), h.HandleWebhook)

	return &testApp{db: db, timers: timers, resolver: resolver, clock: clk, router: r}
}

func sessionFor(t *testing.T, shop string) string {
	t.Helper()
	tok, err := middleware.SignSessionToken(testSecret, "", shop, time.Minute)
	if err != nil {
		t.Fatalf("sign session: %v", err)
	}
	return "Bearer " + tok
}

// do issues a request as shop (no session when shop is empty).
func (a *testApp) do(t *testing.T, method, path, shop string, body any, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, isStr := body.(string); isStr {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if shop != "" {
		req.Header.Set("Authorization", sessionFor(t, shop))
	}
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("json: %v (body=%s)", err, w.Body.String())
	}
	return v
}

func mustStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("status=%d want %d body=%s", w.Code, want, w.Body.String())
	}
}

func at(s string) *time.Time {
	ts, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &ts
}

func fixedRequest(products ...string) TimerRequest {
	return TimerRequest{
		Name:       "Winter sale",
		Type:       "FIXED",
		StartAt:    at("2025-01-01T00:00:00Z"),
		EndAt:      at("2025-01-10T00:00:00Z"),
		ProductIDs: products,
		Headline:   "Sale ends in",
	}
}

func evergreenRequest(products ...string) TimerRequest {
	d := 900
	return TimerRequest{
		Name:            "Always on",
		Type:            "EVERGREEN",
		DurationSeconds: &d,
		ProductIDs:      products,
		Headline:        "Hurry",
		UrgencyStyle:    "COLOR_PULSE",
	}
}

func (a *testApp) create(t *testing.T, shop string, req TimerRequest) TimerResponse {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/timers", shop, req, nil)
	mustStatus(t, w, http.StatusCreated)
	return decode[TimerResponse](t, w)
}
