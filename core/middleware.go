package core

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
)

const principalContextKey = "principal"

const bearerPrefix = "Bearer "

// ExtractBearerToken pulls the token out of an Authorization header value.
// The prefix check is case-sensitive with a single space; anything else means
// no credentials were presented.
func ExtractBearerToken(headerValue string) (string, bool) {
	if !strings.HasPrefix(headerValue, bearerPrefix) {
		return "", false
	}
	token := headerValue[len(bearerPrefix):]
	if token == "" {
		return "", false
	}
	return token, true
}

// BearerAuthMiddleware attaches a Principal to the request context when a
// valid, unrevoked bearer token is presented. Missing or invalid tokens are
// not errors here: the request proceeds unauthenticated and route guards
// decide whether that is acceptable.
func BearerAuthMiddleware(codec *TokenCodec, revoked RevocationList) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := ExtractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		// Revocation wins over an otherwise valid token.
		isRevoked, err := revoked.IsRevoked(c.Request.Context(), token)
		if err != nil || isRevoked {
			c.Next()
			return
		}

		claims, err := codec.Decode(token)
		if err != nil {
			c.Next()
			return
		}
		if codec.IsExpired(claims) {
			c.Next()
			return
		}

		c.Set(principalContextKey, Principal{Username: claims.Subject})
		c.Next()
	}
}

// CurrentPrincipal returns the authenticated principal for this request, if any.
func CurrentPrincipal(c *gin.Context) (Principal, bool) {
	v, ok := c.Get(principalContextKey)
	if !ok {
		return Principal{}, false
	}
	p, ok := v.(Principal)
	return p, ok
}

// RequireAuth denies the request unless a principal is attached.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := CurrentPrincipal(c); !ok {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRole denies the request unless the caller's account holds one of
// the given roles. Role is resolved from the account store, not from the
// token, so a role change takes effect without reissuing tokens.
func RequireRole(accounts AccountRepository, roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, ok := CurrentPrincipal(c)
		if !ok {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
			c.Abort()
			return
		}
		a, err := accounts.FindByUsername(c.Request.Context(), p.Username)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "account no longer exists")
			} else {
				respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "failed to resolve account")
			}
			c.Abort()
			return
		}
		if a == nil {
			respondError(c, http.StatusUnauthorized, "UNAUTHORIZED", "account no longer exists")
			c.Abort()
			return
		}
		for _, role := range roles {
			if a.Role == role {
				c.Next()
				return
			}
		}
		respondError(c, http.StatusForbidden, "FORBIDDEN", "insufficient role")
		c.Abort()
	}
}

// OriginRefererMiddleware validates Origin/Referer against allowed list and sets CORS headers.
func OriginRefererMiddleware(cfg Config) gin.HandlerFunc {
	allowed := map[string]struct{}{}
	for _, o := range cfg.AllowedOrigins {
		allowed[strings.ToLower(o)] = struct{}{}
	}

	isAllowed := func(origin string) bool {
		if origin == "" {
			// Same-origin navigation (no Origin header) is allowed.
			return true
		}
		if len(allowed) == 0 {
			return false
		}
		origin = strings.ToLower(origin)
		_, ok := allowed[origin]
		return ok
	}

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		referer := c.GetHeader("Referer")
		if origin == "" && referer != "" {
			if u, err := url.Parse(referer); err == nil {
				origin = u.Scheme + "://" + u.Host
			}
		}

		// Preflight handling
		if c.Request.Method == http.MethodOptions && origin != "" {
			if !isAllowed(origin) {
				respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
				c.Abort()
				return
			}
			setCORSHeaders(c, origin)
			c.Status(http.StatusNoContent)
			c.Abort()
			return
		}

		if !isAllowed(origin) {
			respondError(c, http.StatusForbidden, "FORBIDDEN", "origin not allowed")
			c.Abort()
			return
		}
		if origin != "" {
			setCORSHeaders(c, origin)
		}
		c.Next()
	}
}

func setCORSHeaders(c *gin.Context, origin string) {
	c.Header("Access-Control-Allow-Origin", origin)
	c.Header("Vary", "Origin")
	c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
	c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
}
