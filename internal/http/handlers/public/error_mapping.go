package public

import (
	"errors"

	handlershared "github.com/couponbook/internal/http/handlers/shared"
	"github.com/couponbook/internal/http/response"
	"github.com/couponbook/internal/service"

	"github.com/gin-gonic/gin"
)

// mappedHandlerError 定义业务错误到接口错误响应的映射关系。
type mappedHandlerError struct {
	target error
	code   int
}

func respondWithMappedError(c *gin.Context, err error, rules []mappedHandlerError, fallbackCode int, fallbackMsg string) {
	for _, rule := range rules {
		if errors.Is(err, rule.target) {
			handlershared.RespondServiceError(c, rule.code, rule.target)
			return
		}
	}
	handlershared.RespondError(c, fallbackCode, fallbackMsg, err)
}

var assignErrorRules = []mappedHandlerError{
	{target: service.ErrCodeInvalid, code: response.CodeBadRequest},
	{target: service.ErrBookNotFound, code: response.CodeNotFound},
	{target: service.ErrQuotaExceeded, code: response.CodeConflict},
	{target: service.ErrCodeNotFound, code: response.CodeNotFound},
	{target: service.ErrAlreadyAssigned, code: response.CodeConflict},
	{target: service.ErrNoCodesAvailable, code: response.CodeConflict},
	{target: service.ErrAssignExhausted, code: response.CodeTooManyRequests},
}

var lockErrorRules = []mappedHandlerError{
	{target: service.ErrCodeInvalid, code: response.CodeBadRequest},
	{target: service.ErrCodeNotAssigned, code: response.CodeNotFound},
	{target: service.ErrBookNotFound, code: response.CodeNotFound},
	{target: service.ErrCodeExpired, code: response.CodeConflict},
	{target: service.ErrRedeemLimitReached, code: response.CodeConflict},
	{target: service.ErrAlreadyLocked, code: response.CodeConflict},
}

var redeemErrorRules = []mappedHandlerError{
	{target: service.ErrCodeInvalid, code: response.CodeBadRequest},
	{target: service.ErrRedeemNotLocked, code: response.CodeNotFound},
	{target: service.ErrBookNotFound, code: response.CodeNotFound},
	{target: service.ErrRedeemLimitReached, code: response.CodeConflict},
}

func respondAssignError(c *gin.Context, err error) {
	respondWithMappedError(c, err, assignErrorRules, response.CodeInternal, "failed to assign code")
}

func respondLockError(c *gin.Context, err error) {
	respondWithMappedError(c, err, lockErrorRules, response.CodeInternal, "failed to lock code")
}

func respondRedeemError(c *gin.Context, err error) {
	respondWithMappedError(c, err, redeemErrorRules, response.CodeInternal, service.ErrRedeemFailed.Error())
}
