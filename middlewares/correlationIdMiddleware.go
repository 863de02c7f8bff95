package middlewares

import (
	"strings"

	"bitbucket.org/mmdatafocus/backoffice_backend/utils"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CorrelationIdMiddleware tags every request with a correlation id, taken from
// the X-Correlation-Id header when the caller supplies one. The id is echoed
// on the response and carried in the context through workflows and logs.
func CorrelationIdMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader("X-Correlation-Id"))
		if id == "" {
			id = uuid.NewString()
		}
		c.Request = c.Request.WithContext(utils.SetCorrelationIdInContext(c.Request.Context(), id))
		c.Header("X-Correlation-Id", id)
		c.Next()
	}
}
