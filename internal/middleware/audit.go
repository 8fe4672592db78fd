package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/doc-control-api/internal/service"
)

// Audit stores client IP and user agent on the request context so operation
// logs written further down carry them.
func Audit() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithRequestMeta(c.Request.Context(), c.ClientIP(), c.GetHeader("User-Agent"))
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
