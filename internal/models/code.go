package models

import (
	"time"
)

// Code 单个可兑换券码
type Code struct {
	ID             uint       `gorm:"primarykey" json:"id"`                                                     // 主键
	BookID         string     `gorm:"type:varchar(36);uniqueIndex:idx_codes_book_code;not null" json:"book_id"` // 所属券册
	Code           string     `gorm:"type:varchar(80);uniqueIndex:idx_codes_book_code;not null" json:"code"`    // 券码文本（册内唯一）
	Expiration     *time.Time `gorm:"index" json:"expiration"`                                                  // 过期时间（为空表示永久有效）
	AssignedTo     *string    `gorm:"type:varchar(120);index" json:"assigned_to"`                               // 被分配用户（只允许由空置为非空一次）
	LockedUntil    *time.Time `gorm:"index" json:"locked_until"`                                                // 锁定截止时间（存在且在未来表示锁定中）
	RedeemedCount  int        `gorm:"not null;default:0" json:"redeemed_count"`                                 // 已兑换次数
	LastRedeemedOn *time.Time `json:"last_redeemed_on"`                                                         // 最近兑换时间
	CreatedAt      time.Time  `gorm:"index" json:"created_at"`                                                  // 创建时间
	UpdatedAt      time.Time  `json:"updated_at"`                                                               // 更新时间
}

// TableName 指定表名
func (Code) TableName() string {
	return "codes"
}

// Assigned 判断券码是否已被分配
func (c *Code) Assigned() bool {
	return c != nil && c.AssignedTo != nil && *c.AssignedTo != ""
}

// AssignedToUser 判断券码是否分配给指定用户
func (c *Code) AssignedToUser(userID string) bool {
	return c.Assigned() && *c.AssignedTo == userID
}

// LockActive 判断券码在 now 时刻是否处于有效锁定中
func (c *Code) LockActive(now time.Time) bool {
	return c != nil && c.LockedUntil != nil && c.LockedUntil.After(now)
}
