package middleware

import (
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const redacted = "[REDACTED]"

// RedactOptions extends the built-in scrub lists. Names are matched
// case-insensitively.
type RedactOptions struct {
	MaskHeaders []string // merged with Authorization, Cookie, Set-Cookie
	MaskParams  []string // merged with token, session, hmac, id_token, email, phone
}

// redactor scrubs secrets and personal data from query strings and header
// values. Timer ids, shop domains and numeric product ids are kept so access
// logs stay useful for support.
type redactor struct {
	headers map[string]bool
	params  map[string]bool
	rules   []redactRule
}

type redactRule struct {
	re   *regexp.Regexp
	with string
}

func newRedactor(opts RedactOptions) *redactor {
	return &redactor{
		headers: lowerSet([]string{"authorization", "cookie", "set-cookie"}, opts.MaskHeaders),
		params:  lowerSet([]string{"token", "session", "hmac", "id_token", "email", "phone"}, opts.MaskParams),
		// Tokens go first so a JWT segment is never half-eaten by a later rule.
		rules: []redactRule{
			{regexp.MustCompile(`\bshp(?:at|ss|ca|pa)_[0-9a-fA-F]{16,}\b`), "[REDACTED:token]"},
			{regexp.MustCompile(`\beyJ[A-Za-z0-9_-]+\.[A-Za-z0-9_-]+\.[A-Za-z0-9_-]*`), "[REDACTED:token]"},
			{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
			// Phones need separators or a leading +; bare digit runs are
			// product ids.
			{regexp.MustCompile(`(?:\+\d{1,3}[ .-]?)?\(?\b\d{3}\)?[ .-]\d{3}[ .-]\d{4}\b|\+\d{8,15}\b`), "[REDACTED:phone]"},
		},
	}
}

func lowerSet(base, extra []string) map[string]bool {
	m := make(map[string]bool, len(base)+len(extra))
	for _, s := range append(base, extra...) {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			m[s] = true
		}
	}
	return m
}

func (r *redactor) text(s string) string {
	for _, rule := range r.rules {
		s = rule.re.ReplaceAllString(s, rule.with)
	}
	return s
}

// query scrubs each parameter value in place, preserving parameter order.
// Untouched values keep their original encoding.
func (r *redactor) query(raw string) string {
	if raw == "" {
		return raw
	}
	parts := strings.Split(raw, "&")
	for i, p := range parts {
		k, v, hasValue := strings.Cut(p, "=")
		if !hasValue {
			continue
		}
		name, err := url.QueryUnescape(k)
		if err != nil {
			name = k
		}
		if r.params[strings.ToLower(name)] {
			parts[i] = k + "=" + redacted
			continue
		}
		val, err := url.QueryUnescape(v)
		if err != nil {
			val = v
		}
		if clean := r.text(val); clean != val {
			parts[i] = k + "=" + clean
		}
	}
	return strings.Join(parts, "&")
}

func (r *redactor) header(name string, values []string) string {
	if r.headers[strings.ToLower(name)] {
		return redacted
	}
	return r.text(strings.Join(values, ", "))
}

// RedactingLogger is the production access logger. Bodies are never
// logged. The query and header values are scrubbed before they reach the
// access line or the request-scoped logger handed to handlers and services.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	rd := newRedactor(opts)

	return func(c *gin.Context) {
		start := time.Now()
		safeQuery := rd.query(c.Request.URL.RawQuery)
		attachRequestLogger(c, safeQuery)

		safeHeaders := make(map[string]string, len(c.Request.Header))
		for k, vv := range c.Request.Header {
			safeHeaders[k] = rd.header(k, vv)
		}

		c.Next()

		ev := levelFor(LoggerFrom(c), c).
			Int("status", c.Writer.Status()).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", safeHeaders)
		if shop := ShopFrom(c); shop != "" {
			ev = ev.Str("shop", shop)
		}
		ev.Msg("http_request")
	}
}
