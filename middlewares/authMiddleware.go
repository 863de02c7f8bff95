package middlewares

import (
	"context"
	"net/http"
	"strings"

	"bitbucket.org/mmdatafocus/backoffice_backend/config"
	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the session token and loads the caller's identity
// into the request context. Requests without a token pass through; operations
// that need a session reject them later.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Request.Header.Get("token")
		if token == "" {
			auth := c.Request.Header.Get("Authorization")
			bearer := "Bearer "
			if strings.HasPrefix(auth, bearer) {
				token = auth[len(bearer):]
			}
		}
		if token == "" {
			c.Next()
			return
		}

		validate, err := utils.JwtValidate(token)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		claims, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		// logout and password changes revoke sessions by deleting the redis
		// entry, so the signature alone is not enough
		username, exists, err := config.GetRedisValue("Token:" + token)
		if err != nil || !exists {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := context.WithValue(c.Request.Context(), utils.ContextKeyToken, token)
		ctx = context.WithValue(ctx, utils.ContextKeyUsername, username)
		ctx = context.WithValue(ctx, utils.ContextKeyBusinessId, claims.BusinessId)
		ctx = context.WithValue(ctx, utils.ContextKeyUserId, claims.ID)
		ctx = context.WithValue(ctx, utils.ContextKeyUserName, claims.Name)
		if claims.Role == "Admin" {
			ctx = context.WithValue(ctx, utils.ContextKeyIsAdmin, true)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
