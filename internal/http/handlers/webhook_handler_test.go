package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-countdown-timers/internal/http/middleware"
)

func (a *testApp) webhook(t *testing.T, topic, shop, body string, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	hdr := map[string]string{
		middleware.HeaderWebhookTopic: topic,
		middleware.HeaderWebhookShop:  shop,
	}
	if sign {
		hdr[middleware.HeaderWebhookHMAC] = middleware.WebhookSignature(testSecret, []byte(body))
	}
	return a.do(t, http.MethodPost, "/webhooks", "", body, hdr)
}

func TestHandleWebhook_UninstallPurgesOnlyThatShop(t *testing.T) {
	app := newTestApp(t)
	app.create(t, shopA, fixedRequest("p1"))
	app.create(t, shopA, evergreenRequest("p2"))
	kept := app.create(t, shopB, fixedRequest("p1"))

	w := app.webhook(t, TopicAppUninstalled, shopA, `{"domain":"`+shopA+`"}`, true)
	mustStatus(t, w, http.StatusOK)
	ack := decode[WebhookAck](t, w)
	if ack.Topic != TopicAppUninstalled || ack.Purged != 2 {
		t.Fatalf("ack=%+v", ack)
	}

	if decode[ActiveTimerResponse](t, app.do(t, http.MethodGet, "/widget/active?shop="+shopA+"&productId=p1", "", nil, nil)).Active {
		t.Fatalf("purged shop still resolves")
	}
	got := decode[ActiveTimerResponse](t, app.do(t, http.MethodGet, "/widget/active?shop="+shopB+"&productId=p1", "", nil, nil))
	if !got.Active || got.Timer.ID != kept.ID {
		t.Fatalf("other shop affected: %+v", got)
	}
}

func TestHandleWebhook_ShopRedact(t *testing.T) {
	app := newTestApp(t)
	app.create(t, shopA, fixedRequest("p1"))

	w := app.webhook(t, "Shop/Redact", shopA, `{}`, true)
	mustStatus(t, w, http.StatusOK)
	if ack := decode[WebhookAck](t, w); ack.Topic != TopicShopRedact || ack.Purged != 1 {
		t.Fatalf("ack=%+v", ack)
	}
}

func TestHandleWebhook_OtherTopicsAcknowledged(t *testing.T) {
	app := newTestApp(t)
	created := app.create(t, shopA, fixedRequest("p1"))

	w := app.webhook(t, "customers/data_request", shopA, `{}`, true)
	mustStatus(t, w, http.StatusOK)
	if ack := decode[WebhookAck](t, w); ack.Purged != 0 {
		t.Fatalf("ack=%+v", ack)
	}
	mustStatus(t, app.do(t, http.MethodGet, "/api/timers/"+created.ID, shopA, nil, nil), http.StatusOK)
}

func TestHandleWebhook_Rejections(t *testing.T) {
	app := newTestApp(t)
	created := app.create(t, shopA, fixedRequest("p1"))

	w := app.webhook(t, TopicAppUninstalled, shopA, `{}`, false)
	mustStatus(t, w, http.StatusUnauthorized)

	w = app.webhook(t, TopicAppUninstalled, "", `{}`, true)
	mustStatus(t, w, http.StatusBadRequest)
	if er := decode[ErrorResponse](t, w); er.Code != ErrCodeBadRequest {
		t.Fatalf("code=%q", er.Code)
	}

	mustStatus(t, app.do(t, http.MethodGet, "/api/timers/"+created.ID, shopA, nil, nil), http.StatusOK)
}

func TestHandleWebhook_PurgeError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := New(failingAdmin{err: errors.New("db down")}, nil)
	r.POST("/webhooks", h.HandleWebhook)

	req := httptest.NewRequest(http.MethodPost, "/webhooks", strings.NewReader(`{}`))
	req.Header.Set(middleware.HeaderWebhookTopic, TopicAppUninstalled)
	req.Header.Set(middleware.HeaderWebhookShop, shopA)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	mustStatus(t, w, http.StatusInternalServerError)
	if er := decode[ErrorResponse](t, w); er.Code != ErrCodePurgeFailed {
		t.Fatalf("code=%q", er.Code)
	}
}
