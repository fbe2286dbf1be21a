package middleware

import (
	"net/http"
	"strings"

	"streamcast/internal/core/services"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware gates a route group behind a valid access token. The
// token comes from the Authorization header or, for media elements and
// download links that cannot set headers, a `token` query parameter.
// Every failure is the same undifferentiated 401.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := tokenFromRequest(c)
		if token == "" {
			unauthorized(c)
			return
		}

		claims, err := authService.ValidateToken(token)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set("username", claims.Username)
		c.Next()
	}
}

func tokenFromRequest(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	header := c.GetHeader("Authorization")
	parts := strings.Split(header, " ")
	if len(parts) == 2 && parts[0] == "Bearer" {
		return parts[1]
	}
	return ""
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	c.Abort()
}
