package router

import (
	"github.com/couponbook/internal/config"
	adminhandlers "github.com/couponbook/internal/http/handlers/admin"
	publichandlers "github.com/couponbook/internal/http/handlers/public"
	"github.com/couponbook/internal/http/response"
	"github.com/couponbook/internal/logger"
	"github.com/couponbook/internal/provider"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupRouter 初始化路由
func SetupRouter(cfg *config.Config, c *provider.Container) *gin.Engine {
	log := logger.L
	if log == nil {
		log = logger.Init(cfg.Server.Mode, cfg.Log.ToLoggerOptions())
	}
	r := gin.New()

	publicHandler := publichandlers.New(c)
	adminHandler := adminhandlers.New(c)

	// 中间件
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(log))
	r.Use(CORSMiddleware(cfg.CORS))

	// API 路由组
	apiV1 := r.Group("/api/v1")
	{
		// 管理端接口（合作方管理侧）
		admin := apiV1.Group("/admin")
		admin.Use(PartnerIdentityMiddleware())
		{
			admin.POST("/books", adminHandler.CreateBook)
			admin.GET("/books", adminHandler.ListBooks)
			admin.GET("/books/:id", adminHandler.GetBook)
			admin.POST("/books/:id/codes", adminHandler.AddCodes)
			admin.GET("/books/:id/codes", adminHandler.ListCodes)
			admin.GET("/books/:id/codes/:code/redeem-logs", adminHandler.GetRedeemLogs)
			admin.POST("/sweep-expired-locks", adminHandler.SweepExpiredLocks)
		}

		// 用户侧接口（合作方代理最终用户）
		user := apiV1.Group("")
		user.Use(PartnerIdentityMiddleware(), UserIdentityMiddleware())
		{
			user.POST("/books/:id/assign", publicHandler.AssignCode)
			user.GET("/books/:id/my-codes", publicHandler.ListMyCodes)
			user.POST("/codes/:code/lock", publicHandler.LockCode)
			user.POST("/codes/:code/redeem", publicHandler.RedeemCode)
		}
	}

	// 指标与健康检查
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// 未匹配路由沿用统一响应包络
	r.NoRoute(notFoundHandler)

	return r
}

func notFoundHandler(c *gin.Context) {
	response.NotFound(c, "route not found")
}
