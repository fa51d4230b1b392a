package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/VNZray/capstone-project-sub008/internal/auth"
	"github.com/VNZray/capstone-project-sub008/internal/shared/apperr"
)

const (
	ctxKeyIdentity = "identity"
	ctxKeyToken    = "bearer_token"
)

type TokenVerifier interface {
	Verify(token string) (auth.Identity, error)
}

// RequireAuth accepts "Authorization: Bearer <jwt>" and stores the identity
// for CurrentUser.
func RequireAuth(v TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			Fail(c, apperr.UnauthorizedErr("Authentication required."))
			return
		}

		id, err := v.Verify(strings.TrimSpace(token))
		if err != nil {
			Fail(c, &apperr.AppError{Kind: apperr.Unauthorized, PublicMsg: "Your session has expired. Please sign in again.", Err: err})
			return
		}

		c.Set(ctxKeyIdentity, id)
		c.Set(ctxKeyToken, strings.TrimSpace(token))
		c.Next()
	}
}

func CurrentUser(c *gin.Context) (auth.Identity, bool) {
	v, ok := c.Get(ctxKeyIdentity)
	if !ok {
		return auth.Identity{}, false
	}
	id, ok := v.(auth.Identity)
	return id, ok && id.UserID != ""
}

// BearerToken is the raw token RequireAuth accepted; it is forwarded to
// the backend so orders are created as the user.
func BearerToken(c *gin.Context) string {
	return c.GetString(ctxKeyToken)
}
