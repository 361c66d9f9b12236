package repository

import (
	"errors"

	"github.com/couponbook/internal/models"

	"gorm.io/gorm"
)

// RedeemLogRepository 兑换流水数据访问接口
type RedeemLogRepository interface {
	Create(log *models.RedeemLog) error
	ListByCodeID(codeID uint) ([]models.RedeemLog, error)
	WithTx(tx *gorm.DB) *GormRedeemLogRepository
}

// GormRedeemLogRepository GORM 兑换流水仓储实现
type GormRedeemLogRepository struct {
	db *gorm.DB
}

// NewRedeemLogRepository 创建兑换流水仓储
func NewRedeemLogRepository(db *gorm.DB) *GormRedeemLogRepository {
	return &GormRedeemLogRepository{db: db}
}

// WithTx 绑定事务
func (r *GormRedeemLogRepository) WithTx(tx *gorm.DB) *GormRedeemLogRepository {
	if tx == nil {
		return r
	}
	return &GormRedeemLogRepository{db: tx}
}

// Create 追加兑换流水
func (r *GormRedeemLogRepository) Create(log *models.RedeemLog) error {
	if log == nil {
		return errors.New("invalid redeem log")
	}
	return r.db.Create(log).Error
}

// ListByCodeID 查询券码的兑换流水
func (r *GormRedeemLogRepository) ListByCodeID(codeID uint) ([]models.RedeemLog, error) {
	if codeID == 0 {
		return []models.RedeemLog{}, nil
	}
	var logs []models.RedeemLog
	if err := r.db.Where("code_id = ?", codeID).Order("redeemed_on asc").Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
