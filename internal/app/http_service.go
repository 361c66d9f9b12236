package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/couponbook/internal/logger"
)

// HTTPService 券码 API 的 HTTP 服务封装
type HTTPService struct {
	name   string
	addr   string
	server *http.Server
}

// NewHTTPService 创建券码 API 服务
func NewHTTPService(addr string, handler http.Handler) *HTTPService {
	return &HTTPService{
		name: "coupon-api",
		addr: addr,
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Name 服务名称
func (s *HTTPService) Name() string {
	if s == nil || s.name == "" {
		return "coupon-api"
	}
	return s.name
}

// Start 启动监听，阻塞至服务关闭
func (s *HTTPService) Start(ctx context.Context) error {
	if s == nil || s.server == nil {
		return errors.New("api server not initialized")
	}
	logger.Infow("api_listen", "addr", s.addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop 优雅停止，等待在途请求完成
func (s *HTTPService) Stop(ctx context.Context) error {
	if s == nil || s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
