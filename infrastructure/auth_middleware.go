// infrastructure/auth_middleware.go
package infrastructure

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	ownerIDKey    = "owner_id"
	ownerIDHeader = "x-user-id"
)

type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// OwnerMiddleware resolves the caller identity. A Bearer token signed
// with secret wins; otherwise the x-user-id header set by the gateway is
// trusted. With an empty secret only the header is accepted.
func OwnerMiddleware(secret []byte) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header != "" && len(secret) > 0 {
			tokenString, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization header"})
				return
			}

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid || claims.UserID == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
				return
			}

			c.Set(ownerIDKey, claims.UserID)
			c.Next()
			return
		}

		userID := c.GetHeader(ownerIDHeader)
		if userID == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "User ID is required"})
			return
		}
		c.Set(ownerIDKey, userID)
		c.Next()
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerIDKey)
}
