package shared

import (
	"github.com/couponbook/internal/http/response"
	"github.com/couponbook/internal/logger"
	"github.com/couponbook/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLog 提供携带 request_id 的日志实例。
func RequestLog(c *gin.Context) *zap.SugaredLogger {
	if c == nil {
		return logger.S()
	}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok && id != "" {
			return logger.SW("request_id", id)
		}
	}
	return logger.S()
}

// RespondError 返回错误响应，并在有原始错误时记录日志。
func RespondError(c *gin.Context, code int, msg string, err error) {
	kind := ""
	if err != nil {
		kind = service.ErrorKind(err)
	}
	appErr := response.WrapError(code, kind, msg, err)
	if err != nil {
		RequestLog(c).Errorw("handler_error",
			"code", appErr.Code,
			"kind", appErr.Kind,
			"message", appErr.Message,
			"error", err,
		)
	}
	response.ErrorWithKind(c, appErr.Code, appErr.Kind, appErr.Message)
}

// RespondServiceError 按业务错误哨兵返回响应，消息取哨兵文本本身。
func RespondServiceError(c *gin.Context, code int, err error) {
	kind := service.ErrorKind(err)
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	response.ErrorWithKind(c, code, kind, msg)
}
