package middleware

import (
	"context"
	"net/http"
	"strings"

	"donation-ledger/internal/auth"
	"donation-ledger/internal/domain/users"
	"donation-ledger/pkg/logger"

	"github.com/gin-gonic/gin"
)

const identityKey = "identity"

// AuthMiddleware requires a valid bearer token.
func AuthMiddleware(v auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header missing"})
			return
		}
		authenticate(c, v, authHeader)
	}
}

// OptionalAuth identifies the caller when a token is sent and lets anonymous requests through.
// A token that is sent but invalid is still rejected.
func OptionalAuth(v auth.Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Next()
			return
		}
		authenticate(c, v, authHeader)
	}
}

func authenticate(c *gin.Context, v auth.Verifier, authHeader string) {
	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	if tokenString == authHeader || strings.TrimSpace(tokenString) == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Bearer token malformed"})
		return
	}

	id, err := v.Verify(c.Request.Context(), strings.TrimSpace(tokenString))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	c.Set(identityKey, id)
	c.Set("role", id.Role)
	c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logger.UserIdKey, id.UserID))
	c.Next()
}

// CurrentIdentity returns the caller set by AuthMiddleware or OptionalAuth.
func CurrentIdentity(c *gin.Context) (*users.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return nil, false
	}
	id, ok := v.(*users.Identity)
	return id, ok && id != nil
}

func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get("role")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Role not found in token"})
			return
		}

		if value != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}

		c.Next()
	}
}
