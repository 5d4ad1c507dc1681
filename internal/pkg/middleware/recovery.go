package middleware

import (
	"fmt"
	"net/http"

	"phonehub/pkg/logger"
	"phonehub/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware 捕获 panic，debug 模式下返回具体错误，否则只返回通用提示
func RecoveryMiddleware(debug bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		logger.Log.Error("panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("trace_id", TraceID(c)),
			zap.Stack("stack"),
		)

		msg := "Internal server error"
		if debug {
			msg = fmt.Sprintf("panic: %v", recovered)
		}
		response.Error(c, http.StatusInternalServerError, response.ErrServerInternal, msg)
		c.Abort()
	})
}
