package middleware

import (
	"fmt"

	response "prompt-vault/backend/internal/infra/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorRenderer 是最外层中间件：统一渲染 c.Errors 中的错误并兜底 panic。
// AppError 原样输出；其它错误记录日志后以 500 INTERNAL_ERROR 返回，不暴露内部信息。
func ErrorRenderer(logger *zap.SugaredLogger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return func(c *gin.Context) {
		defer func() {
			if recovered := recover(); recovered != nil {
				logger.Errorw("panic recovered",
					"panic", fmt.Sprint(recovered),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
				)
				if !c.Writer.Written() {
					response.Fail(c, response.Internal(""))
				}
				c.Abort()
			}
		}()

		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if appErr, ok := response.AsAppError(err); ok {
			if appErr.Status >= 500 {
				logger.Errorw("request failed", "code", appErr.Code, "error", err, "path", c.Request.URL.Path)
			}
			response.Fail(c, appErr)
			return
		}

		logger.Errorw("unhandled error", "error", err, "method", c.Request.Method, "path", c.Request.URL.Path)
		response.Fail(c, response.Internal(""))
	}
}
