package models

import (
	"time"
)

// RedeemLog 兑换流水，仅追加不更新
type RedeemLog struct {
	ID         uint      `gorm:"primarykey" json:"id"`                // 主键
	CodeID     uint      `gorm:"index;not null" json:"code_id"`       // 券码ID
	RedeemedOn time.Time `gorm:"index;not null" json:"redeemed_on"`   // 兑换时间
	CreatedAt  time.Time `json:"created_at"`                          // 创建时间
}

// TableName 指定表名
func (RedeemLog) TableName() string {
	return "redeem_logs"
}
