// Package middleware file: internal/transport/http/middleware/error_handler.go
package middleware

import (
	"UpdateAegis/internal/core/port"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// StatusFor 把业务错误映射为 HTTP 状态码与对外消息
func StatusFor(err error) (int, gin.H) {
	// 检查是否是参数绑定或验证错误
	var ve validator.ValidationErrors
	if errors.As(err, &ve) {
		return http.StatusBadRequest, gin.H{"error": "请求参数验证失败", "details": ve.Error()}
	}

	switch {
	case errors.Is(err, port.ErrValidation):
		return http.StatusBadRequest, gin.H{"error": err.Error()}
	case errors.Is(err, port.ErrUnauthorized):
		return http.StatusUnauthorized, gin.H{"error": port.ErrUnauthorized.Error()}
	case errors.Is(err, port.ErrForbidden):
		return http.StatusForbidden, gin.H{"error": port.ErrForbidden.Error()}
	case errors.Is(err, port.ErrNotFound):
		return http.StatusNotFound, gin.H{"error": err.Error()}
	case errors.Is(err, port.ErrConflict):
		return http.StatusConflict, gin.H{"error": err.Error()}
	case errors.Is(err, port.ErrRateLimited):
		return http.StatusTooManyRequests, gin.H{"error": port.ErrRateLimited.Error()}
	case errors.Is(err, port.ErrUpstreamUnavailable):
		return http.StatusBadGateway, gin.H{"error": port.ErrUpstreamUnavailable.Error()}
	default:
		// 对于所有其他未知错误，返回 500 服务器内部错误
		return http.StatusInternalServerError, gin.H{"error": "服务器内部错误"}
	}
}

// WriteError 记录错误并立即写出响应。
// 需要在后续中间件里读取状态码的处理器 (例如登录锁) 应使用它而不是只调用 c.Error。
func WriteError(c *gin.Context, err error) {
	_ = c.Error(err)
	if c.Writer.Written() {
		return
	}
	code, body := StatusFor(err)
	logError(c, code, err)
	c.AbortWithStatusJSON(code, body)
}

func logError(c *gin.Context, code int, err error) {
	attrs := []any{"request_id", c.GetString(RequestIDKey), "path", c.Request.URL.Path, "status", code, "error", err}
	if code >= http.StatusInternalServerError {
		slog.Error("请求处理失败", attrs...)
	} else {
		slog.Debug("请求被拒绝", attrs...)
	}
}

// ErrorHandlingMiddleware 是一个Gin中间件，用于集中处理错误。
func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 首先，执行请求链中的后续操作（即你的API处理器）
		c.Next()

		// 处理器中通过 c.Error(err) 附加的错误都会被收集到 c.Errors
		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		// 我们只处理最后一个错误，因为它通常是根本原因
		err := c.Errors.Last().Err
		code, body := StatusFor(err)
		logError(c, code, err)
		c.JSON(code, body)
	}
}
