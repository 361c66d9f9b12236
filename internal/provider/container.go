package provider

import (
	"time"

	"github.com/couponbook/internal/cache"
	"github.com/couponbook/internal/config"
	"github.com/couponbook/internal/logger"
	"github.com/couponbook/internal/models"
	"github.com/couponbook/internal/queue"
	"github.com/couponbook/internal/repository"
	"github.com/couponbook/internal/service"
)

// Container 依赖注入容器
type Container struct {
	Config      *config.Config
	QueueClient *queue.Client

	// Repositories
	BookRepo      repository.BookRepository
	CodeRepo      repository.CodeRepository
	RedeemLogRepo repository.RedeemLogRepository

	// Services
	BookService   *service.BookService
	CouponService *service.CouponService
	SweepService  *service.SweepService
}

// NewContainer 初始化容器
func NewContainer(cfg *config.Config) *Container {
	// 初始化缓存
	if err := cache.InitRedis(&cfg.Redis); err != nil {
		logger.Warnw("provider_init_redis_failed", "error", err)
	}

	// 初始化队列客户端
	var queueClient *queue.Client
	if cfg.Queue.Enabled {
		qc, err := queue.NewClient(&cfg.Queue)
		if err != nil {
			logger.Errorw("provider_init_queue_client_failed", "error", err)
		} else {
			queueClient = qc
		}
	}

	c := &Container{
		Config:      cfg,
		QueueClient: queueClient,
	}

	c.initRepositories()
	c.initServices()

	return c
}

func (c *Container) initRepositories() {
	db := models.DB
	c.BookRepo = repository.NewBookRepository(db)
	c.CodeRepo = repository.NewCodeRepository(db)
	c.RedeemLogRepo = repository.NewRedeemLogRepository(db)
}

func (c *Container) initServices() {
	clock := service.SystemClock{}
	lockDuration := time.Duration(c.Config.Coupon.LockDurationMinutes) * time.Minute

	generator := service.NewCodeGenerator(c.CodeRepo)
	c.BookService = service.NewBookService(c.BookRepo, c.CodeRepo, generator, clock)
	c.CouponService = service.NewCouponService(c.BookRepo, c.CodeRepo, c.RedeemLogRepo, clock, lockDuration)
	c.SweepService = service.NewSweepService(c.CodeRepo, clock)
}
