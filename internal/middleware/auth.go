package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/clipstream/backend/internal/apperr"
	"github.com/clipstream/backend/internal/auth"
	"github.com/clipstream/backend/internal/models"
)

const (
	// Context keys set for downstream handlers. Identity lives only for
	// the duration of one request; nothing is cached across requests.
	CtxUserID = "user_id"
	CtxUser   = "current_user"
)

// AuthGuard authenticates the request or terminates it with 401. A request
// never proceeds past this middleware with a partially resolved identity.
func AuthGuard(verifier *auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, err := bearerToken(c.GetHeader("Authorization"))
		if err != nil {
			abortWith(c, err)
			return
		}

		user, err := verifier.Verify(c.Request.Context(), raw)
		if err != nil {
			abortWith(c, err)
			return
		}

		c.Set(CtxUserID, user.ID)
		c.Set(CtxUser, user)
		c.Next()
	}
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", apperr.MissingCredential("authorization header required")
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || strings.TrimSpace(token) == "" {
		return "", apperr.MissingCredential("authorization header must be of the form 'Bearer <token>'")
	}
	return strings.TrimSpace(token), nil
}

func abortWith(c *gin.Context, err error) {
	status, body := apperr.Payload(err)
	c.AbortWithStatusJSON(status, body)
}

// CurrentUser returns the identity attached by AuthGuard.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	raw, exists := c.Get(CtxUser)
	if !exists {
		return nil, false
	}
	user, ok := raw.(*models.User)
	return user, ok
}

// CurrentUserID returns the authenticated user's id.
func CurrentUserID(c *gin.Context) (int, bool) {
	raw, exists := c.Get(CtxUserID)
	if !exists {
		return 0, false
	}
	id, ok := raw.(int)
	return id, ok
}
