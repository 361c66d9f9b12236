package repository

import (
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// 行锁强度常量，对应 SELECT ... FOR UPDATE / FOR SHARE
const (
	lockStrengthUpdate = "UPDATE"
	lockStrengthShare  = "SHARE"
)

// dbDialectName 获取数据库方言名称，默认按 sqlite 处理。
func dbDialectName(db *gorm.DB) string {
	if db == nil || db.Dialector == nil {
		return "sqlite"
	}
	name := strings.ToLower(strings.TrimSpace(db.Dialector.Name()))
	if name == "" {
		return "sqlite"
	}
	return name
}

// applyRowLock 按方言应用行锁子句，兼容 sqlite 与 postgres。
// sqlite 无 FOR UPDATE/FOR SHARE 语法，事务本身即为单写者，跳过锁子句。
func applyRowLock(db *gorm.DB, strength string) *gorm.DB {
	switch dbDialectName(db) {
	case "postgres", "postgresql":
		return db.Clauses(clause.Locking{Strength: strength})
	default:
		return db
	}
}

// applyPagination 应用分页参数，统一处理非法页码与偏移量。
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if query == nil || pageSize <= 0 {
		return query
	}
	if page < 1 {
		page = 1
	}
	offset := (page - 1) * pageSize
	if offset < 0 {
		offset = 0
	}
	return query.Limit(pageSize).Offset(offset)
}
