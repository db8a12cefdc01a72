package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"carbon-market/marketplace/marketplace-backend/internal/users"
)

// Authenticate verifies the bearer token and stores the caller's Identity.
func Authenticate(tokens *TokenManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		raw, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(raw) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Missing Authorization Header"})
			return
		}

		id, err := tokens.Verify(strings.TrimSpace(raw))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid or expired token"})
			return
		}

		SetIdentity(c, id)
		c.Next()
	}
}

// RequireRole rejects callers whose role differs from role.
func RequireRole(role users.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := IdentityFrom(c)
		if !ok || id.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Unauthorized"})
			return
		}
		c.Next()
	}
}
