package middleware

import (
	"context"
	"net/http"
	"strings"

	rsvp "github.com/cactusmakesperfect/rsvp"
	"github.com/gin-gonic/gin"
)

const identityKey = "rsvp.identity"

// Authenticator turns a bearer credential into a guest identity.
type Authenticator interface {
	Authenticate(ctx context.Context, credential string) (rsvp.Identity, error)
}

// IdentityFromContext returns the identity stored by Guard.
func IdentityFromContext(c *gin.Context) (rsvp.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return rsvp.Identity{}, false
	}
	id, ok := v.(rsvp.Identity)
	return id, ok
}

// Guard rejects requests without a valid guest credential in the
// Authorization header with 401.
func Guard(auth Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if auth == nil {
			abortUnauthorized(c)
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}

		id, err := auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(identityKey, id)
		c.Next()
	}
}

// RequestContext copies the client IP and User-Agent into the request
// context so the service can throttle and audit by them.
func RequestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := rsvp.WithClientIP(c.Request.Context(), c.ClientIP())
		ctx = rsvp.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":  "unauthorized",
		"detail": "Missing or invalid credential",
	})
}

func bearerToken(value string) (string, bool) {
	const bearer = "bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
