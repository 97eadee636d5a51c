// Storefront widget handler.
//
// GET {widget}/active?shop=&productId= is called by the storefront script on
// every product page view. It never fails from the caller's point of view:
// missing parameters, no match, store errors and rate limiting all answer
// 200 {"active":false}.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-countdown-timers/internal/domain"
	"github.com/tbourn/go-countdown-timers/internal/services"
)

// ActiveTimerResponse is the storefront envelope. Timer is present only when
// Active is true.
type ActiveTimerResponse struct {
	Active bool              `json:"active" example:"true"`
	Timer  *domain.TimerView `json:"timer,omitempty"`
}

// GetActive godoc
// @ID          getActiveTimer
// @Summary     Resolve the active timer for a product
// @Description Returns the newest live timer targeting the product and counts one impression. Always answers 200.
// @Tags        Widget
// @Produce     json
//
// @Param       shop       query  string  true  "Shop domain"  example(my-store.myshopify.com)
// @Param       productId  query  string  true  "Product id"   example(gid://shopify/Product/123)
//
// @Success     200  {object}  handlers.ActiveTimerResponse
// @Header      200  {string}  Cache-Control  "no-store"
// @Router      /api/widget/timer/active [get]
func (h *Handlers) GetActive(c *gin.Context) {
	c.Header("Cache-Control", "no-store")

	view, found := h.resolver.Resolve(c.Request.Context(), c.Query("shop"), c.Query("productId"))
	if !found {
		ok(c, http.StatusOK, ActiveTimerResponse{Active: false})
		return
	}
	ok(c, http.StatusOK, ActiveTimerResponse{Active: true, Timer: view})
}

// WidgetInactive aborts the request with the inactive storefront answer. The
// widget route uses it as the rate limiter's reject handler so throttled
// storefronts see "no timer" instead of 429.
func WidgetInactive(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	services.ObserveThrottled()
	c.AbortWithStatusJSON(http.StatusOK, ActiveTimerResponse{Active: false})
}
