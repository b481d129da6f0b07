package middlewares

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/clockbill/clockbill/internal/actorctx"
	"github.com/clockbill/clockbill/internal/auth"
	"github.com/clockbill/clockbill/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Small interfaces so tests can fake both collaborators easily.

type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type UserResolver interface {
	GetByID(ctx context.Context, id int64) (user.User, error)
}

type AuthMiddleware struct {
	jwt   TokenVerifier
	users UserResolver
}

func NewAuthMiddleware(jwt TokenVerifier, users UserResolver) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt, users: users}
}

func abortUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{
			"code":    "unauthorized",
			"message": message,
		},
	})
}

// RequireAuth accepts a bearer token that resolves to an existing, active
// account. Role and active flags are read fresh from storage, so an admin
// deactivating a user takes effect on that user's very next request.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortUnauthorized(c, "Missing or invalid Authorization header")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			abortUnauthorized(c, "Missing or invalid access token")
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		cctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		u, err := m.users.GetByID(cctx, claims.UserID)
		if err != nil {
			abortUnauthorized(c, "Invalid or expired access token")
			return
		}

		if !u.Active {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error": gin.H{
					"code":    "account_inactive",
					"message": "Account is not active",
				},
			})
			return
		}

		SetActor(c, u.ID, u.Email, u.Role)

		c.Next()
	}
}

// SetActor stamps the authenticated user onto the gin context and the request
// context, so non-gin layers (logging, repos) see the same actor.
func SetActor(c *gin.Context, userID int64, email, role string) {
	c.Set(ctxUserIDKey, userID)
	c.Set(ctxEmailKey, email)
	c.Set(ctxRoleKey, role)

	c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), userID))
}

// Helpers so handlers don't need to know the magic keys.

func UserIDFromContext(c *gin.Context) (int64, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}

func RoleFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxRoleKey)
	if !ok {
		return "", false
	}
	role, ok := v.(string)
	return role, ok
}
