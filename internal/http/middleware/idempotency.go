package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey lets an admin client retry a timer create safely.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"

	defaultIdemMaxLen = 200
)

var defaultIdemPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the key accepted by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetString(ctxKeyIdemKey)
	return key, key != ""
}

// IsReplay reports whether the (shop, key) pair already produced a timer
// that is still inside its retention window.
func IsReplay(c *gin.Context) bool { return c.GetBool(ctxKeyIdemReplay) }

// IdempotencyOptions tunes key validation. Retention is the store's concern
// and is enforced inside the lookup.
type IdempotencyOptions struct {
	MaxLen  int            // defaults to 200
	Pattern *regexp.Regexp // defaults to ^[A-Za-z0-9._~\-:]+$
	Methods []string       // defaults to POST
}

// IdempotencyLookup reports whether a live record exists for (shop, key).
// Errors are logged and treated as a miss.
type IdempotencyLookup func(ctx context.Context, shop, key string, now time.Time) (bool, error)

// IdempotencyValidator validates the Idempotency-Key header on the configured
// methods and stashes it for the handler. Keys are scoped per shop, so it
// must be mounted after ShopSession. A known key marks the request as a
// replay, which also exempts it from rate limiting; the handler still serves
// the stored timer itself.
//
// The header is ignored on other methods, and a malformed key answers 400
// bad_idempotency_key.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = defaultIdemMaxLen
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultIdemPattern
	}
	methods := map[string]bool{http.MethodPost: true}
	if len(opts.Methods) > 0 {
		methods = make(map[string]bool, len(opts.Methods))
		for _, m := range opts.Methods {
			methods[strings.ToUpper(m)] = true
		}
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" || !methods[c.Request.Method] {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			abortJSON(c, http.StatusBadRequest, "bad_idempotency_key", "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		shop := ShopFrom(c)
		if lookup == nil || shop == "" {
			c.Next()
			return
		}
		exists, err := lookup(c.Request.Context(), shop, key, time.Now().UTC())
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("shop", shop).Msg("idempotency lookup failed")
		}
		if exists {
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}
