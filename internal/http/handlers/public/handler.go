package public

import "github.com/couponbook/internal/provider"

// Handler 用户侧接口处理器入口
// 说明：该处理器仅用于合作方代理最终用户发起的 API。
type Handler struct {
	*provider.Container
}

// New 创建用户侧处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
