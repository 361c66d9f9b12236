package models

import (
	"time"
)

// Book 券册，聚合一批券码并约束其配额
type Book struct {
	ID                    string    `gorm:"type:varchar(36);primarykey" json:"id"`                     // 主键（创建时生成的不透明 ID）
	OwnerID               string    `gorm:"type:varchar(120);index;not null" json:"owner_id"`          // 所属合作方（租户隔离）
	Name                  string    `gorm:"type:varchar(120);not null" json:"name"`                    // 券册名称
	MaxCodesPerUser       int       `gorm:"not null;default:0" json:"max_codes_per_user"`              // 单用户同时持有券码上限
	MaxRedeemCountPerUser int       `gorm:"not null;default:0" json:"max_redeem_count_per_user"`       // 单码可兑换次数上限（0 表示不限制）
	CreatedAt             time.Time `gorm:"index" json:"created_at"`                                   // 创建时间
	UpdatedAt             time.Time `json:"updated_at"`                                                // 更新时间
}

// TableName 指定表名
func (Book) TableName() string {
	return "books"
}

// RedeemLimited 判断是否设置了兑换次数上限
func (b *Book) RedeemLimited() bool {
	return b != nil && b.MaxRedeemCountPerUser > 0
}
