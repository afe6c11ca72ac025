package middlewares

import (
	"net/http"
	"strings"

	"github.com/clinicbook/clinicbook/internal/auth"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid Authorization header",
				},
			})
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Missing or invalid access token",
				},
			})
			return
		}

		claims, err := m.jwt.VerifyAccessToken(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": gin.H{
					"code":    "unauthorized",
					"message": "Invalid or expired access token",
				},
			})
			return
		}

		// Stash the verified identity on the context
		c.Set(ctxUserIDKey, claims.UserID)
		c.Set(ctxUsernameKey, claims.Username)
		c.Set(ctxRoleKey, claims.Role)
		c.Set(ctxNameKey, claims.Name)
		c.Set(ctxEmailKey, claims.Email)
		c.Set(ctxPhoneKey, claims.Phone)

		c.Next()
	}
}

// Helpers so handlers don't need to know the magic keys.

func stringFromContext(c *gin.Context, key string) (string, bool) {
	v, ok := c.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	return stringFromContext(c, ctxUserIDKey)
}

func RoleFromContext(c *gin.Context) (string, bool) {
	return stringFromContext(c, ctxRoleKey)
}

// IdentityFromContext rebuilds the full token identity for callers that pass
// it along explicitly (e.g. into enqueue payloads).
func IdentityFromContext(c *gin.Context) (auth.Identity, bool) {
	id, ok := UserIDFromContext(c)
	if !ok || id == "" {
		return auth.Identity{}, false
	}

	username, _ := stringFromContext(c, ctxUsernameKey)
	role, _ := stringFromContext(c, ctxRoleKey)
	name, _ := stringFromContext(c, ctxNameKey)
	email, _ := stringFromContext(c, ctxEmailKey)
	phone, _ := stringFromContext(c, ctxPhoneKey)

	return auth.Identity{
		UserID:   id,
		Username: username,
		Role:     role,
		Name:     name,
		Email:    email,
		Phone:    phone,
	}, true
}
