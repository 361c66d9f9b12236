package worker

import (
	"context"
	"encoding/json"

	"github.com/couponbook/internal/logger"
	"github.com/couponbook/internal/provider"
	"github.com/couponbook/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer 异步任务消费者
type Consumer struct {
	*provider.Container
}

// NewConsumer 创建消费者
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register 注册消费者
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskSweepExpiredLocks, c.handleSweepExpiredLocks)
}

func (c *Consumer) handleSweepExpiredLocks(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_sweep_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.SweepExpiredLocksPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_sweep_unmarshal_failed", "error", err)
		return err
	}
	if c.SweepService == nil {
		logger.Warnw("worker_sweep_skip_service_nil", "reason", payload.Reason)
		return nil
	}
	cleared, err := c.SweepService.SweepExpiredLocks()
	if err != nil {
		logger.Warnw("worker_sweep_failed", "reason", payload.Reason, "error", err)
		return err
	}
	logger.Debugw("worker_sweep_done", "reason", payload.Reason, "cleared", cleared)
	return nil
}
