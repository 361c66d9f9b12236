package queue

import (
	"encoding/json"

	"github.com/couponbook/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskSweepExpiredLocks 过期锁回收任务
	TaskSweepExpiredLocks = constants.TaskSweepExpiredLocks
)

// SweepExpiredLocksPayload 过期锁回收任务载荷
type SweepExpiredLocksPayload struct {
	// Reason 触发来源（定时器或管理接口），仅用于日志
	Reason string `json:"reason"`
}

// NewSweepExpiredLocksTask 创建过期锁回收任务
func NewSweepExpiredLocksTask(payload SweepExpiredLocksPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSweepExpiredLocks, body), nil
}
