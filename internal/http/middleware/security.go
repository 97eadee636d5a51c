package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// ShopifyAdminOrigin is the admin host that embeds the merchant UI.
const ShopifyAdminOrigin = "https://admin.shopify.com"

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions selects the response hardening applied by SecurityHeaders.
//
// HSTS is only ever sent on HTTPS requests, so EnableHSTS is safe to leave on
// behind a TLS-terminating proxy that forwards X-Forwarded-Proto.
type SecurityOptions struct {
	EnableHSTS   bool
	HSTSMaxAge   time.Duration // defaults to 180 days
	NoStore      bool
	EnablePolicy bool // Permissions-Policy and X-Permitted-Cross-Domain-Policies

	// CrossOriginResource sets Cross-Origin-Resource-Policy. Storefront
	// pages on arbitrary domains fetch the widget endpoint, so the router
	// uses "cross-origin" there.
	CrossOriginResource string
}

// SecurityHeaders attaches baseline browser hardening to every response.
// X-Frame-Options: DENY is the default; routes rendered inside the platform
// admin replace it with EmbeddedAdminFrame.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.FormatInt(int64(maxAge/time.Second), 10) + "; includeSubDomains; preload"

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.CrossOriginResource != "" {
			h.Set("Cross-Origin-Resource-Policy", opt.CrossOriginResource)
		}
		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}
		if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(HeaderRequestID) != "" {
			exposeHeader(h, HeaderRequestID)
		}

		c.Next()
	}
}

// EmbeddedAdminFrame allows the response to be framed by the platform admin
// and by the authenticated shop's own domain. It must run after ShopSession;
// without a session shop only the admin origin is allowed.
func EmbeddedAdminFrame() gin.HandlerFunc {
	return func(c *gin.Context) {
		ancestors := []string{ShopifyAdminOrigin}
		if shop := ShopFrom(c); shop != "" {
			ancestors = append([]string{"https://" + shop}, ancestors...)
		}
		h := c.Writer.Header()
		h.Del("X-Frame-Options")
		h.Set("Content-Security-Policy", "frame-ancestors "+strings.Join(ancestors, " ")+";")
		c.Next()
	}
}


// exposeHeader appends name to Access-Control-Expose-Headers once.
func exposeHeader(h http.Header, name string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	switch {
	case cur == "":
		h.Set(key, name)
	case !strings.Contains(strings.ToLower(cur), strings.ToLower(name)):
		h.Set(key, cur+", "+name)
	}
}

// isHTTPS reports whether the request arrived over TLS, directly or through
// a proxy that set X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	return r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}
