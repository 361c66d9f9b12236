package shared

import (
	"strings"

	"github.com/couponbook/internal/http/response"

	"github.com/gin-gonic/gin"
)

// GetContextString 从上下文读取非空字符串，缺失时统一返回未授权响应。
func GetContextString(c *gin.Context, key string) (string, bool) {
	value, exists := c.Get(key)
	if !exists {
		RespondError(c, response.CodeUnauthorized, "missing identity", nil)
		return "", false
	}
	str, ok := value.(string)
	if !ok || strings.TrimSpace(str) == "" {
		RespondError(c, response.CodeUnauthorized, "missing identity", nil)
		return "", false
	}
	return strings.TrimSpace(str), true
}
