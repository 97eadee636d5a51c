package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-countdown-timers/internal/config"
	"github.com/tbourn/go-countdown-timers/internal/domain"
	"github.com/tbourn/go-countdown-timers/internal/http/middleware"
	"github.com/tbourn/go-countdown-timers/internal/repo"
	"github.com/tbourn/go-countdown-timers/internal/services"
)

const (
	testSecret = "router-secret"
	testAPIKey = "router-key"
	testShop   = "shop-a.myshopify.com"
)

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func baseConfig() config.Config {
	return config.Config{
		APIBasePath:    "/api/v1",
		WidgetBasePath: "/api/widget/timer",
		RateRPS:        100,
		RateBurst:      10,
		ResolveTimeout: time.Second,
		IdempotencyTTL: time.Hour,
		CORS:           config.CORSConfig{AllowedOrigins: nil}, // triggers AllowAllOrigins branch
		Security:       config.SecurityConfig{EnableHSTS: false, HSTSMaxAge: 0},
		Shopify:        config.ShopifyConfig{APIKey: testAPIKey, APISecret: testSecret},
		OTEL:           config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	RegisterRoutes(r, db, cfg)
	return r, db
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func adminRequest(t *testing.T, method, path, body string) *http.Request {
	t.Helper()
	tok, err := middleware.SignSessionToken(testSecret, testAPIKey, testShop, time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	return req
}

const evergreenBody = `{"name":"Always","type":"EVERGREEN","durationSeconds":600,"targetScope":"ALL","headline":"Hurry"}`

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, baseConfig())

	// /health works
	w := serve(r, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	// CORS (AllowAllOrigins) → header "*"
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = serve(r, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = serve(r, httptest.NewRequest(http.MethodPost, "/health", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}

	// Swagger is off unless enabled.
	w = serve(r, httptest.NewRequest(http.MethodGet, "/swagger/index.html", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("swagger should be disabled, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := baseConfig()
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"https://shop-a.myshopify.com"}}
	r, _ := newRouter(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://shop-a.myshopify.com")
	w := serve(r, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://shop-a.myshopify.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_SwaggerEnabled(t *testing.T) {
	cfg := baseConfig()
	cfg.SwaggerEnabled = true
	r, _ := newRouter(t, cfg)

	w := serve(r, httptest.NewRequest(http.MethodGet, "/swagger/doc.json", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /swagger/doc.json = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "/timers") {
		t.Fatalf("swagger doc does not describe /timers")
	}
}

func TestRegisterRoutes_WidgetAndAdminEndToEnd(t *testing.T) {
	r, _ := newRouter(t, baseConfig())

	// Admin requires a session.
	w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/timers", nil))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("unauthenticated list = %d", w.Code)
	}

	w = serve(r, adminRequest(t, http.MethodPost, "/api/v1/timers", evergreenBody))
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d body=%s", w.Code, w.Body.String())
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.ID == "" {
		t.Fatalf("create body: %v %s", err, w.Body.String())
	}

	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/widget/timer/active?shop="+testShop+"&productId=any", nil))
	if w.Code != http.StatusOK || w.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("widget = %d cc=%q", w.Code, w.Header().Get("Cache-Control"))
	}
	if !strings.Contains(w.Body.String(), `"active":true`) || !strings.Contains(w.Body.String(), created.ID) {
		t.Fatalf("widget body=%s", w.Body.String())
	}

	// gzip is applied to the admin group.
	req := adminRequest(t, http.MethodGet, "/api/v1/timers", "")
	req.Header.Set("Accept-Encoding", "gzip")
	w = serve(r, req)
	if w.Code != http.StatusOK || w.Header().Get("Content-Encoding") != "gzip" {
		t.Fatalf("list = %d encoding=%q", w.Code, w.Header().Get("Content-Encoding"))
	}

	// Admin responses may be framed by the platform admin; the widget may not.
	if csp := w.Header().Get("Content-Security-Policy"); !strings.Contains(csp, "https://"+testShop) || w.Header().Get("X-Frame-Options") != "" {
		t.Fatalf("admin framing: csp=%q xfo=%q", csp, w.Header().Get("X-Frame-Options"))
	}
	w = serve(r, httptest.NewRequest(http.MethodGet, "/api/widget/timer/active", nil))
	if w.Header().Get("X-Frame-Options") != "DENY" || w.Header().Get("Cross-Origin-Resource-Policy") != "cross-origin" {
		t.Fatalf("widget headers: %v", w.Header())
	}
}

func TestRegisterRoutes_IdempotentCreateViaRouter(t *testing.T) {
	r, db := newRouter(t, baseConfig())

	for i, want := range []int{http.StatusCreated, http.StatusOK} {
		req := adminRequest(t, http.MethodPost, "/api/v1/timers", evergreenBody)
		req.Header.Set(middleware.HeaderIdempotencyKey, "router-key-1")
		w := serve(r, req)
		if w.Code != want {
			t.Fatalf("call %d: status=%d want %d body=%s", i, w.Code, want, w.Body.String())
		}
	}
	n, err := repo.CountTimers(context.Background(), db, testShop)
	if err != nil || n != 1 {
		t.Fatalf("timers=%d err=%v, want 1", n, err)
	}
}

func TestRegisterRoutes_WidgetRateLimitedAnswersInactive(t *testing.T) {
	cfg := baseConfig()
	cfg.RateRPS = 0.0001
	cfg.RateBurst = 1
	r, _ := newRouter(t, cfg)

	path := "/api/widget/timer/active?shop=" + testShop + "&productId=p1"
	for i := 0; i < 3; i++ {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Fatalf("call %d: widget must never 429, got %d", i, w.Code)
		}
		if strings.TrimSpace(w.Body.String()) != `{"active":false}` {
			t.Fatalf("call %d: body=%s", i, w.Body.String())
		}
	}
}

func TestRegisterRoutes_WebhookPurges(t *testing.T) {
	r, db := newRouter(t, baseConfig())
	if w := serve(r, adminRequest(t, http.MethodPost, "/api/v1/timers", evergreenBody)); w.Code != http.StatusCreated {
		t.Fatalf("create = %d", w.Code)
	}

	body := []byte(`{"domain":"` + testShop + `"}`)
	send := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks", bytes.NewReader(body))
		req.Header.Set(middleware.HeaderWebhookTopic, "app/uninstalled")
		req.Header.Set(middleware.HeaderWebhookShop, testShop)
		req.Header.Set(middleware.HeaderWebhookHMAC, sig)
		return serve(r, req)
	}

	if w := send("bm9wZQ=="); w.Code != http.StatusUnauthorized {
		t.Fatalf("bad signature = %d", w.Code)
	}
	if n, _ := repo.CountTimers(context.Background(), db, testShop); n != 1 {
		t.Fatalf("rejected webhook must not purge, timers=%d", n)
	}

	if w := send(middleware.WebhookSignature(testSecret, body)); w.Code != http.StatusOK {
		t.Fatalf("signed webhook = %d body=%s", w.Code, w.Body.String())
	}
	if n, _ := repo.CountTimers(context.Background(), db, testShop); n != 0 {
		t.Fatalf("uninstall should purge, timers=%d", n)
	}
}

func TestRegisterRoutes_WithoutSecretOnlyWidget(t *testing.T) {
	cfg := baseConfig()
	cfg.Shopify = config.ShopifyConfig{}
	r, _ := newRouter(t, cfg)

	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/v1/timers", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("admin should not be mounted, got %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodPost, "/webhooks", nil)); w.Code != http.StatusNotFound {
		t.Fatalf("webhooks should not be mounted, got %d", w.Code)
	}
	if w := serve(r, httptest.NewRequest(http.MethodGet, "/api/widget/timer/active", nil)); w.Code != http.StatusOK {
		t.Fatalf("widget should be mounted, got %d", w.Code)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := serve(r, httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB"))) // 12 bytes
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		w := serve(r, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK || w.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, w.Code, w.Body.String())
		}
	}
}

func Test_timerRepoShim_DuplicateKeyTranslated(t *testing.T) {
	db := newTestDB(t)
	shim := timerRepoShim{}
	ctx := context.Background()

	tm := &domain.Timer{
		Shop:         testShop,
		Name:         "n",
		Type:         domain.TimerTypeFixed,
		TargetScope:  domain.ScopeAll,
		Headline:     "h",
		Position:     domain.PositionBelowPrice,
		UrgencyStyle: domain.UrgencyNone,
	}
	if err := shim.CreateTimer(ctx, db, tm); err != nil {
		t.Fatalf("CreateTimer: %v", err)
	}
	if _, err := shim.CreateIdempotency(ctx, db, testShop, "k", tm.ID, http.StatusCreated, time.Hour); err != nil {
		t.Fatalf("first CreateIdempotency: %v", err)
	}
	if _, err := shim.CreateIdempotency(ctx, db, testShop, "k", tm.ID, http.StatusCreated, time.Hour); err != services.ErrKeyTaken {
		t.Fatalf("duplicate key err=%v, want ErrKeyTaken", err)
	}
}
