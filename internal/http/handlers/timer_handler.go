// Timer admin HTTP handlers.
//
// This file exposes the merchant REST endpoints for timers:
//   - POST   /timers        (create, Idempotency-Key aware)
//   - GET    /timers        (list, paginated, ETag support)
//   - GET    /timers/{id}   (read)
//   - PUT    /timers/{id}   (replace editable fields)
//   - DELETE /timers/{id}   (soft delete)
//
// The shop is always taken from the verified session, never from the body.
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-countdown-timers/internal/domain"
	"github.com/tbourn/go-countdown-timers/internal/http/middleware"
	"github.com/tbourn/go-countdown-timers/internal/repo"
	"github.com/tbourn/go-countdown-timers/internal/services"
	"github.com/tbourn/go-countdown-timers/internal/utils"
)

//
// DTOs
//

// TimerRequest is the JSON payload for creating or replacing a timer.
//
// ProductID is a shorthand for a single-product PRODUCT-scoped timer; it is
// merged into ProductIDs. An omitted TargetScope means PRODUCT, so a request
// naming no product is rejected with invalid_timer unless it sets
// targetScope to ALL.
type TimerRequest struct {
	Name            string     `json:"name" example:"Black Friday"`
	Type            string     `json:"type" example:"FIXED" enums:"FIXED,EVERGREEN"`
	StartAt         *time.Time `json:"startAt,omitempty" example:"2025-11-28T00:00:00Z"`
	EndAt           *time.Time `json:"endAt,omitempty" example:"2025-11-30T23:59:59Z"`
	DurationSeconds *int       `json:"durationSeconds,omitempty" example:"900"`
	TargetScope     string     `json:"targetScope,omitempty" example:"PRODUCT" enums:"ALL,PRODUCT"`
	ProductIDs      []string   `json:"productIds,omitempty"`
	ProductID       string     `json:"productId,omitempty" example:"gid://shopify/Product/123"`
	Headline        string     `json:"headline" example:"Sale ends in"`
	Subtext         string     `json:"subtext,omitempty" example:"Free shipping today only"`
	Position        string     `json:"position,omitempty" example:"BELOW_PRICE" enums:"ABOVE_PRICE,BELOW_PRICE"`
	UrgencyStyle    string     `json:"urgencyStyle,omitempty" example:"NONE" enums:"NONE,COLOR_PULSE"`
}

func (r TimerRequest) input() services.TimerInput {
	ids := r.ProductIDs
	if p := strings.TrimSpace(r.ProductID); p != "" {
		ids = append([]string{p}, ids...)
	}
	return services.TimerInput{
		Name:            r.Name,
		Type:            domain.TimerType(r.Type),
		StartAt:         r.StartAt,
		EndAt:           r.EndAt,
		DurationSeconds: r.DurationSeconds,
		TargetScope:     domain.TargetScope(r.TargetScope),
		ProductIDs:      ids,
		Headline:        r.Headline,
		Subtext:         r.Subtext,
		Position:        domain.Position(r.Position),
		UrgencyStyle:    domain.UrgencyStyle(r.UrgencyStyle),
	}
}

// TimerResponse is the admin representation of a timer: the stored fields,
// its targeted product ids and its display status at response time.
type TimerResponse struct {
	domain.Timer
	ProductIDs []string      `json:"productIds"`
	Status     domain.Status `json:"status" example:"ACTIVE"`
}

func newTimerResponse(t domain.Timer, now time.Time) TimerResponse {
	return TimerResponse{
		Timer:      t,
		ProductIDs: t.ProductIDs(),
		Status:     domain.ComputeStatus(t, now),
	}
}

// ListTimersResponse wraps a page of timers and pagination information.
type ListTimersResponse struct {
	Timers     []TimerResponse `json:"timers"`
	Pagination Pagination      `json:"pagination"`
}

//
// Helpers
//

const (
	defaultTimerPageSize = 20
	maxTimerPageSize     = 100
)

// requireShop returns the session shop, aborting with 401 when absent.
func requireShop(c *gin.Context) (string, bool) {
	shop := middleware.ShopFrom(c)
	if shop == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "missing shop session")
		return "", false
	}
	return shop, true
}

// timerID validates the :id path parameter.
func timerID(c *gin.Context) (string, bool) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "timer id must be a UUID")
		return "", false
	}
	return id, true
}

// failTimer maps service errors to HTTP responses. Unknown errors become a
// 500 with fallbackCode.
func failTimer(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrInvalidTimer):
		fail(c, http.StatusBadRequest, ErrCodeInvalidTimer, err.Error())
	case errors.Is(err, services.ErrTimerNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "timer not found")
	case errors.Is(err, services.ErrDuplicateRequest):
		fail(c, http.StatusConflict, ErrCodeConflict, "idempotency key already used")
	default:
		fail(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

//
// Handlers
//

// CreateTimer godoc
// @ID          createTimer
// @Summary     Create a timer
// @Description Creates a timer for the session shop. Supports idempotent retries via the Idempotency-Key header. An omitted targetScope means PRODUCT and requires productIds (or productId); send targetScope ALL to target every product.
// @Tags        Timers
// @Accept      json
// @Produce     json
// @Security    SessionToken
//
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       body             body    handlers.TimerRequest  true  "Timer definition"
//
// @Success     201  {object}  handlers.TimerResponse
// @Success     200  {object}  handlers.TimerResponse  "Replayed result"
// @Header      200  {string}  Idempotency-Replayed  "true when the response is a replay"
// @Failure     400  {object}  handlers.ErrorResponse  "Bad request"
// @Failure     401  {object}  handlers.ErrorResponse  "Unauthorized"
// @Failure     409  {object}  handlers.ErrorResponse  "Idempotency conflict"
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /api/v1/timers [post]
func (h *Handlers) CreateTimer(c *gin.Context) {
	shop, found := requireShop(c)
	if !found {
		return
	}
	var req TimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	ctx := c.Request.Context()
	var (
		t         *domain.Timer
		wasReplay bool
		err       error
	)
	if key, present := middleware.GetIdempotencyKey(c); present {
		t, wasReplay, err = h.timers.CreateIdempotent(ctx, shop, key, req.input())
	} else {
		t, err = h.timers.Create(ctx, shop, req.input())
	}
	if err != nil {
		failTimer(c, err, ErrCodeCreateFailed)
		return
	}

	resp := newTimerResponse(*t, time.Now().UTC())
	if wasReplay {
		replayed(c, resp)
		return
	}
	created(c, c.FullPath()+"/"+t.ID, resp)
}

// ListTimers godoc
// @ID          listTimers
// @Summary     List timers (paginated)
// @Description Returns a page of the shop's timers, newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Timers
// @Produce     json
// @Security    SessionToken
//
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"abc123\")
// @Param       page           query   int     false "Page number"                  minimum(1) default(1)
// @Param       page_size      query   int     false "Items per page"               minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListTimersResponse
// @Header      200  {string} ETag  "Weak ETag for current result"
// @Success     304  {string} string "Not Modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/timers [get]
func (h *Handlers) ListTimers(c *gin.Context) {
	shop, found := requireShop(c)
	if !found {
		return
	}
	ctx := c.Request.Context()
	page := utils.ParsePage(c.Query("page"), c.Query("page_size"), defaultTimerPageSize, maxTimerPageSize)

	// ETag pre-check (best effort). Impressions are part of the listed
	// resource but do not touch updated_at, so they are folded in.
	var db *gorm.DB
	if svc, isSvc := h.timers.(*services.TimerService); isSvc {
		db = svc.DB
	}
	if db != nil {
		if st, err := repo.TimersStats(ctx, db, shop); err == nil {
			var ts int64
			if st.MaxUpdatedAt != nil {
				ts = st.MaxUpdatedAt.UnixNano()
			}
			etag := fmt.Sprintf(`W/"timers:%s:%d:%d:%d:%d:%d"`, shop, page.Number, page.Size, st.Count, ts, st.Impressions)
			if notModified(c, etag) {
				return
			}
		}
	}

	items, total, err := h.timers.ListPage(ctx, shop, page.Number, page.Size)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}

	now := time.Now().UTC()
	out := make([]TimerResponse, 0, len(items))
	for _, t := range items {
		out = append(out, newTimerResponse(t, now))
	}
	ok(c, http.StatusOK, ListTimersResponse{
		Timers: out,
		Pagination: Pagination{
			Page:       page.Number,
			PageSize:   page.Size,
			Total:      total,
			TotalPages: page.Pages(total),
			HasNext:    page.HasNext(total),
		},
	})
}

// GetTimer godoc
// @ID          getTimer
// @Summary     Get a timer
// @Tags        Timers
// @Produce     json
// @Security    SessionToken
//
// @Param       id  path  string  true  "Timer ID (UUID)"  format(uuid)
//
// @Success     200  {object} handlers.TimerResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Timer not found"
// @Router      /api/v1/timers/{id} [get]
func (h *Handlers) GetTimer(c *gin.Context) {
	shop, found := requireShop(c)
	if !found {
		return
	}
	id, valid := timerID(c)
	if !valid {
		return
	}
	t, err := h.timers.Get(c.Request.Context(), shop, id)
	if err != nil {
		failTimer(c, err, ErrCodeInternal)
		return
	}
	ok(c, http.StatusOK, newTimerResponse(*t, time.Now().UTC()))
}

// UpdateTimer godoc
// @ID          updateTimer
// @Summary     Replace a timer
// @Description Replaces every editable field of a timer. Impressions are preserved. An omitted targetScope means PRODUCT and requires productIds (or productId).
// @Tags        Timers
// @Accept      json
// @Produce     json
// @Security    SessionToken
//
// @Param       id    path  string                 true  "Timer ID (UUID)"  format(uuid)
// @Param       body  body  handlers.TimerRequest  true  "Timer definition"
//
// @Success     200  {object} handlers.TimerResponse
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Timer not found"
// @Failure     500  {object} handlers.ErrorResponse "Internal error"
// @Router      /api/v1/timers/{id} [put]
func (h *Handlers) UpdateTimer(c *gin.Context) {
	shop, found := requireShop(c)
	if !found {
		return
	}
	id, valid := timerID(c)
	if !valid {
		return
	}
	var req TimerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	t, err := h.timers.Update(c.Request.Context(), shop, id, req.input())
	if err != nil {
		failTimer(c, err, ErrCodeUpdateFailed)
		return
	}
	ok(c, http.StatusOK, newTimerResponse(*t, time.Now().UTC()))
}

// DeleteTimer godoc
// @ID          deleteTimer
// @Summary     Delete a timer
// @Tags        Timers
// @Security    SessionToken
//
// @Param       id  path  string  true  "Timer ID (UUID)"  format(uuid)
//
// @Success     204  {string} string "No Content"
// @Failure     400  {object} handlers.ErrorResponse "Bad request"
// @Failure     404  {object} handlers.ErrorResponse "Timer not found"
// @Router      /api/v1/timers/{id} [delete]
func (h *Handlers) DeleteTimer(c *gin.Context) {
	shop, found := requireShop(c)
	if !found {
		return
	}
	id, valid := timerID(c)
	if !valid {
		return
	}
	if err := h.timers.Delete(c.Request.Context(), shop, id); err != nil {
		failTimer(c, err, ErrCodeDeleteFailed)
		return
	}
	noContent(c)
}
