package service

import (
	"github.com/couponbook/internal/logger"
	"github.com/couponbook/internal/metrics"
	"github.com/couponbook/internal/repository"
)

// SweepService 过期锁回收服务
type SweepService struct {
	codeRepo repository.CodeRepository
	clock    Clock
}

// NewSweepService 创建过期锁回收服务
func NewSweepService(codeRepo repository.CodeRepository, clock Clock) *SweepService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &SweepService{codeRepo: codeRepo, clock: clock}
}

// SweepExpiredLocks 批量清除已过期的券码锁定，单条 UPDATE 完成，
// 不触碰有效锁，可安全重复执行。返回本次清除的行数。
func (s *SweepService) SweepExpiredLocks() (int64, error) {
	if s == nil || s.codeRepo == nil {
		return 0, ErrCodeFetchFailed
	}
	cleared, err := s.codeRepo.ClearExpiredLocks(s.clock.Now())
	if err != nil {
		logger.Errorw("sweep expired locks failed", "error", err)
		return 0, err
	}
	if cleared > 0 {
		logger.Infow("swept expired code locks", "cleared", cleared)
	}
	metrics.AddSweptLocks(cleared)
	return cleared, nil
}
