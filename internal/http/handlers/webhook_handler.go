// Platform webhook handler.
//
// Deliveries reach this handler only after middleware.VerifyWebhook accepted
// the body signature. Uninstall and shop redaction topics purge the shop's
// timers; every other topic is acknowledged and ignored so the platform does
// not retry it.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-countdown-timers/internal/http/middleware"
)

// Webhook topics that remove a shop's data.
const (
	TopicAppUninstalled = "app/uninstalled"
	TopicShopRedact     = "shop/redact"
)

// WebhookAck is the response body for an accepted delivery.
type WebhookAck struct {
	Topic  string `json:"topic" example:"app/uninstalled"`
	Purged int64  `json:"purged" example:"3"`
}

// HandleWebhook godoc
// @ID          handleWebhook
// @Summary     Receive a platform webhook
// @Description Verifies the HMAC signature and purges timers on app/uninstalled and shop/redact.
// @Tags        Webhooks
// @Accept      json
// @Produce     json
//
// @Param       X-Shopify-Hmac-Sha256  header  string  true  "Base64 HMAC-SHA256 of the body"
// @Param       X-Shopify-Topic        header  string  true  "Webhook topic"        example(app/uninstalled)
// @Param       X-Shopify-Shop-Domain  header  string  true  "Shop domain"          example(my-store.myshopify.com)
//
// @Success     200  {object} handlers.WebhookAck
// @Failure     400  {object} handlers.ErrorResponse "Missing shop"
// @Failure     401  {object} handlers.ErrorResponse "Bad signature"
// @Failure     500  {object} handlers.ErrorResponse "Purge failed"
// @Router      /webhooks [post]
func (h *Handlers) HandleWebhook(c *gin.Context) {
	topic := strings.ToLower(strings.TrimSpace(c.GetHeader(middleware.HeaderWebhookTopic)))
	shop := strings.ToLower(strings.TrimSpace(c.GetHeader(middleware.HeaderWebhookShop)))

	switch topic {
	case TopicAppUninstalled, TopicShopRedact:
	default:
		ok(c, http.StatusOK, WebhookAck{Topic: topic})
		return
	}

	if shop == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "missing shop domain")
		return
	}
	n, err := h.timers.PurgeShop(c.Request.Context(), shop)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodePurgeFailed, err.Error())
		return
	}
	middleware.LoggerFrom(c).Info().
		Str("topic", topic).
		Str("shop", shop).
		Int64("purged", n).
		Msg("shop timers purged")
	ok(c, http.StatusOK, WebhookAck{Topic: topic, Purged: n})
}
