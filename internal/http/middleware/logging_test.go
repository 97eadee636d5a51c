package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	var seen string
	r.GET("/rid", func(c *gin.Context) {
		seen = RequestIDFrom(c)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/rid", nil))
	gen := w.Header().Get(HeaderRequestID)
	if _, err := uuid.Parse(gen); err != nil || seen != gen {
		t.Fatalf("generated id %q (handler saw %q): %v", gen, seen, err)
	}

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rid", nil)
	req.Header.Set("x-request-id", "edge-42")
	r.ServeHTTP(w, req)
	if got := w.Header().Get(HeaderRequestID); got != "edge-42" || seen != "edge-42" {
		t.Fatalf("propagated id: header=%q handler=%q", got, seen)
	}
}

func TestRequestIDFrom_Fallbacks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if got := RequestIDFrom(c); got != "" {
		t.Fatalf("empty context: %q", got)
	}
	c.Request.Header.Set(HeaderRequestID, "from-request")
	if got := RequestIDFrom(c); got != "from-request" {
		t.Fatalf("request header: %q", got)
	}
	c.Writer.Header().Set(HeaderRequestID, "from-response")
	if got := RequestIDFrom(c); got != "from-response" {
		t.Fatalf("response header wins over request: %q", got)
	}
	c.Set(requestIDKey, "from-context")
	if got := RequestIDFrom(c); got != "from-context" {
		t.Fatalf("context wins: %q", got)
	}
}

func TestRequestIDFrom_NoRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	if got := RequestIDFrom(c); got != "" {
		t.Fatalf("bare context: %q", got)
	}
	c.Writer.Header().Set(HeaderRequestID, "from-response")
	if got := RequestIDFrom(c); got != "from-response" {
		t.Fatalf("response header without request: %q", got)
	}
	abortJSON(c, http.StatusInternalServerError, "internal_error", "boom")
	if w.Code != http.StatusInternalServerError || !strings.Contains(w.Body.String(), `"request_id":"from-response"`) {
		t.Fatalf("abort without request: %d %s", w.Code, w.Body.String())
	}
}

func TestLogger_AccessLines(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID(), Logger())
	r.Use(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api/") {
			c.Set(ctxKeyShop, "shop-a.myshopify.com")
		}
		c.Next()
	})
	r.GET("/api/v1/timers/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.PUT("/api/v1/timers/:id", func(c *gin.Context) {
		_ = c.Error(errors.New("store unavailable"))
		c.Status(http.StatusOK)
	})
	r.POST("/api/v1/timers", func(c *gin.Context) { c.Status(http.StatusBadRequest) })

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/v1/timers/t-1?page=2", nil),
		httptest.NewRequest(http.MethodPost, "/api/v1/timers", strings.NewReader("{}")),
		httptest.NewRequest(http.MethodPut, "/api/v1/timers/t-2", nil),
		httptest.NewRequest(http.MethodGet, "/nowhere", nil),
	} {
		r.ServeHTTP(httptest.NewRecorder(), req)
	}

	lines := logLines(t, buf)
	if len(lines) != 4 {
		t.Fatalf("lines=%d: %s", len(lines), buf.String())
	}

	get := lines[0]
	if get["level"] != "info" || get["path"] != "/api/v1/timers/:id" || get["timer_id"] != "t-1" ||
		get["shop"] != "shop-a.myshopify.com" || get["query"] != "page=2" {
		t.Fatalf("get line: %v", get)
	}
	if post := lines[1]; post["level"] != "warn" || post["bytes_in"] != float64(2) {
		t.Fatalf("post line: %v", post)
	}
	if _, ok := lines[1]["timer_id"]; ok {
		t.Fatalf("collection route has no timer id: %v", lines[1])
	}
	if put := lines[2]; put["level"] != "error" || !strings.Contains(put["errors"].(string), "store unavailable") {
		t.Fatalf("gin errors must escalate to error: %v", put)
	}
	if miss := lines[3]; miss["level"] != "warn" || miss["path"] != "/nowhere" {
		t.Fatalf("unmatched route falls back to raw path: %v", miss)
	}
	if _, ok := lines[3]["shop"]; ok {
		t.Fatalf("no session, no shop: %v", lines[3])
	}
}

func TestLoggerFrom(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/api/widget/timer/active?shop=s", nil)
	LoggerFrom(c).Info().Msg("fallback")

	c.Set(requestIDKey, "rid-7")
	attachRequestLogger(c, "shop=s")
	LoggerFrom(c).Info().Msg("scoped")
	zerolog.Ctx(c.Request.Context()).Info().Msg("ctx")

	lines := logLines(t, buf)
	if len(lines) != 3 {
		t.Fatalf("lines=%d", len(lines))
	}
	if _, ok := lines[0]["request_id"]; ok {
		t.Fatalf("fallback logger must be unscoped: %v", lines[0])
	}
	for _, l := range lines[1:] {
		if l["request_id"] != "rid-7" || l["query"] != "shop=s" || l["method"] != "GET" {
			t.Fatalf("scoped line: %v", l)
		}
	}
}

func TestRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	buf := withCapturedLogger(t)

	r := gin.New()
	r.Use(RequestID(), Recovery())
	r.GET("/api/v1/timers", func(c *gin.Context) { panic("nil store") })
	r.GET("/partial", func(c *gin.Context) {
		c.String(http.StatusOK, "half")
		panic("after write")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/timers", nil)
	req.Header.Set(HeaderRequestID, "rid-panic")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError || w.Header().Get(HeaderRequestID) != "rid-panic" {
		t.Fatalf("recovered response: %d %v", w.Code, w.Header())
	}
	want := `{"code":"internal_error","message":"internal server error","request_id":"rid-panic"}`
	if strings.TrimSpace(w.Body.String()) != want {
		t.Fatalf("body=%s", w.Body.String())
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/partial", nil))
	if w.Body.String() != "half" {
		t.Fatalf("written body must not be replaced, got %q", w.Body.String())
	}

	lines := logLines(t, buf)
	if len(lines) != 2 || lines[0]["panic"] != "nil store" || lines[0]["path"] != "/api/v1/timers" {
		t.Fatalf("panic logs: %v", lines)
	}
}

func TestTruncate(t *testing.T) {
	if truncate("abc", 0) != "abc" || truncate("abc", 3) != "abc" {
		t.Fatal("no-op cases changed the input")
	}
	if got := truncate("abcdef", 2); got != "ab…" {
		t.Fatalf("truncate=%q", got)
	}
}
