package constants

// 队列与任务常量
const (
	QueueDefault = "default"

	// TaskSweepExpiredLocks 过期锁回收任务
	TaskSweepExpiredLocks = "coupon:sweep_expired_locks"
)

// 请求上下文键常量
const (
	ContextKeyPartnerID = "partner_id"
	ContextKeyUserID    = "user_id"
	ContextKeyRequestID = "request_id"
)

// 上游身份透传头
const (
	HeaderPartnerID = "X-Partner-ID"
	HeaderUserID    = "X-User-ID"
)

// 券码业务默认参数
const (
	// DefaultLockDurationMinutes 兑换锁定默认时长（分钟）
	DefaultLockDurationMinutes = 10
	// GeneratorMaxRounds 生成券码的最大补齐轮数
	GeneratorMaxRounds = 5
	// AssignMaxAttempts 随机分配的最大重试次数
	AssignMaxAttempts = 3
)
