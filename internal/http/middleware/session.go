// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file authenticates merchant admin requests. The embedded admin UI
// sends a short-lived session token (HS256 JWT signed with the app secret)
// as "Authorization: Bearer <token>". The token's "dest" claim names the shop
// ("https://<shop>") and "aud" must equal the app's API key.
//
// On success the shop domain is stored in the Gin context under "shop" and
// read back with ShopFrom. On failure the request is aborted with 401.
package middleware

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// ctxKeyShop is the Gin context key under which the authenticated shop is stored.
const ctxKeyShop = "shop"

var (
	// ErrInvalidSession is returned for any token that fails verification.
	ErrInvalidSession = errors.New("invalid session token")
)

// SessionClaims are the claims carried by a merchant session token.
type SessionClaims struct {
	// Dest is the shop URL, e.g. "https://my-store.myshopify.com".
	Dest string `json:"dest"`
	jwt.RegisteredClaims
}

// SessionOptions configures ShopSession.
type SessionOptions struct {
	// Secret signs session tokens (the app's API secret).
	Secret string
	// Audience is the expected "aud" claim (the app's API key). Empty skips
	// the audience check.
	Audience string
	// Leeway tolerates clock skew on exp/nbf. Defaults to 5s.
	Leeway time.Duration
}

// ShopSession verifies the bearer session token and stores its shop in the
// Gin context.
func ShopSession(opts SessionOptions) gin.HandlerFunc {
	leeway := opts.Leeway
	if leeway <= 0 {
		leeway = 5 * time.Second
	}
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	}
	if opts.Audience != "" {
		parserOpts = append(parserOpts, jwt.WithAudience(opts.Audience))
	}
	parser := jwt.NewParser(parserOpts...)
	secret := []byte(opts.Secret)

	return func(c *gin.Context) {
		shop, err := verifySession(parser, secret, bearerToken(c.GetHeader("Authorization")))
		if err != nil {
			LoggerFrom(c).Debug().Err(err).Msg("session rejected")
			abortJSON(c, http.StatusUnauthorized, "unauthorized", "invalid or missing session token")
			return
		}
		c.Set(ctxKeyShop, shop)
		c.Next()
	}
}

// ShopFrom returns the shop stored by ShopSession, or "" when absent.
func ShopFrom(c *gin.Context) string {
	if v, ok := c.Get(ctxKeyShop); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func verifySession(p *jwt.Parser, secret []byte, raw string) (string, error) {
	if raw == "" {
		return "", ErrInvalidSession
	}
	claims := &SessionClaims{}
	tok, err := p.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return secret, nil })
	if err != nil || !tok.Valid {
		return "", ErrInvalidSession
	}
	shop := shopFromDest(claims.Dest)
	if shop == "" {
		return "", ErrInvalidSession
	}
	return shop, nil
}

// shopFromDest extracts the host from a "https://<shop>" dest claim.
func shopFromDest(dest string) string {
	u, err := url.Parse(strings.TrimSpace(dest))
	if err != nil || u.Scheme != "https" {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func bearerToken(h string) string {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(h[len(prefix):])
}

// SignSessionToken issues a session token for shop. It mirrors what the
// platform issues and is used by local tooling and tests.
func SignSessionToken(secret, audience, shop string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := SessionClaims{
		Dest: "https://" + shop,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://" + shop + "/admin",
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
