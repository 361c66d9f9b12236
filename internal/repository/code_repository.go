package repository

import (
	"errors"
	"strings"
	"time"

	"github.com/couponbook/internal/models"

	"gorm.io/gorm"
)

// CodeListFilter 券码列表筛选
type CodeListFilter struct {
	BookID     string
	AssignedTo string
	Unassigned bool
	LockedAt   *time.Time // 非空时仅返回该时刻处于锁定中的券码
	Page       int
	PageSize   int
}

// CodeRepository 券码数据访问接口
type CodeRepository interface {
	CreateBatch(codes []models.Code) error
	GetByCodeAndAssigneeForUpdate(code, userID string) (*models.Code, error)
	GetByBookAndCode(bookID, code string) (*models.Code, error)
	GetByBookAndCodeForUpdate(bookID, code string) (*models.Code, error)
	ListExistingCodes(bookID string, codes []string) ([]string, error)
	CountAssignedToUser(bookID, userID string) (int64, error)
	ListUnassigned(bookID string) ([]models.Code, error)
	ListByAssignee(bookID, userID string) ([]models.Code, error)
	AssignIfUnassigned(codeID uint, userID string, at time.Time) (bool, error)
	Update(code *models.Code) error
	List(filter CodeListFilter) ([]models.Code, int64, error)
	ClearExpiredLocks(now time.Time) (int64, error)
	WithTx(tx *gorm.DB) *GormCodeRepository
}

// GormCodeRepository GORM 券码仓储实现
type GormCodeRepository struct {
	db *gorm.DB
}

// NewCodeRepository 创建券码仓储
func NewCodeRepository(db *gorm.DB) *GormCodeRepository {
	return &GormCodeRepository{db: db}
}

// WithTx 绑定事务
func (r *GormCodeRepository) WithTx(tx *gorm.DB) *GormCodeRepository {
	if tx == nil {
		return r
	}
	return &GormCodeRepository{db: tx}
}

// CreateBatch 批量写入券码；册内重码会触发唯一索引冲突并整体失败
func (r *GormCodeRepository) CreateBatch(codes []models.Code) error {
	if len(codes) == 0 {
		return nil
	}
	return r.db.Create(&codes).Error
}

// GetByCodeAndAssigneeForUpdate 按券码文本与持有人加排他锁查询。
// 券码文本只在册内唯一，跨册可以重复，单凭文本定位会命中错误的册，
// 因此锁定/兑换路径必须用持有人一起收敛到调用方自己的那一行。
func (r *GormCodeRepository) GetByCodeAndAssigneeForUpdate(code, userID string) (*models.Code, error) {
	code = strings.TrimSpace(code)
	userID = strings.TrimSpace(userID)
	if code == "" || userID == "" {
		return nil, nil
	}
	var row models.Code
	if err := applyRowLock(r.db, lockStrengthUpdate).
		Where("code = ? AND assigned_to = ?", code, userID).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// GetByBookAndCode 在指定券册内按券码文本查询
func (r *GormCodeRepository) GetByBookAndCode(bookID, code string) (*models.Code, error) {
	return r.getByBookAndCode(r.db, bookID, code)
}

// GetByBookAndCodeForUpdate 在指定券册内按券码文本加排他锁查询
func (r *GormCodeRepository) GetByBookAndCodeForUpdate(bookID, code string) (*models.Code, error) {
	return r.getByBookAndCode(applyRowLock(r.db, lockStrengthUpdate), bookID, code)
}

func (r *GormCodeRepository) getByBookAndCode(db *gorm.DB, bookID, code string) (*models.Code, error) {
	code = strings.TrimSpace(code)
	if bookID == "" || code == "" {
		return nil, nil
	}
	var row models.Code
	if err := db.
		Where("book_id = ? AND code = ?", bookID, code).
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListExistingCodes 返回候选券码中已存在于指定券册的部分，生成器查重用
func (r *GormCodeRepository) ListExistingCodes(bookID string, codes []string) ([]string, error) {
	if bookID == "" || len(codes) == 0 {
		return nil, nil
	}
	var existing []string
	if err := r.db.Model(&models.Code{}).
		Where("book_id = ? AND code IN ?", bookID, codes).
		Pluck("code", &existing).Error; err != nil {
		return nil, err
	}
	return existing, nil
}

// CountAssignedToUser 统计用户在指定券册内已持有的券码数
func (r *GormCodeRepository) CountAssignedToUser(bookID, userID string) (int64, error) {
	var count int64
	if err := r.db.Model(&models.Code{}).
		Where("book_id = ? AND assigned_to = ?", bookID, userID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ListUnassigned 查询券册内所有未分配券码（不加锁读取）
func (r *GormCodeRepository) ListUnassigned(bookID string) ([]models.Code, error) {
	var codes []models.Code
	if err := r.db.
		Where("book_id = ? AND assigned_to IS NULL", bookID).
		Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// ListByAssignee 查询用户在券册内持有的券码
func (r *GormCodeRepository) ListByAssignee(bookID, userID string) ([]models.Code, error) {
	var codes []models.Code
	if err := r.db.
		Where("book_id = ? AND assigned_to = ?", bookID, userID).
		Order("id asc").
		Find(&codes).Error; err != nil {
		return nil, err
	}
	return codes, nil
}

// AssignIfUnassigned 条件分配：仅当仍未分配时写入持有人，返回是否抢占成功
func (r *GormCodeRepository) AssignIfUnassigned(codeID uint, userID string, at time.Time) (bool, error) {
	if codeID == 0 || strings.TrimSpace(userID) == "" {
		return false, errors.New("invalid assign target")
	}
	result := r.db.Model(&models.Code{}).
		Where("id = ? AND assigned_to IS NULL", codeID).
		Updates(map[string]interface{}{
			"assigned_to": userID,
			"updated_at":  at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

// Update 更新券码
func (r *GormCodeRepository) Update(code *models.Code) error {
	if code == nil {
		return errors.New("invalid code")
	}
	return r.db.Save(code).Error
}

// List 查询券码列表
func (r *GormCodeRepository) List(filter CodeListFilter) ([]models.Code, int64, error) {
	query := r.db.Model(&models.Code{})
	if bookID := strings.TrimSpace(filter.BookID); bookID != "" {
		query = query.Where("book_id = ?", bookID)
	}
	if assignee := strings.TrimSpace(filter.AssignedTo); assignee != "" {
		query = query.Where("assigned_to = ?", assignee)
	}
	if filter.Unassigned {
		query = query.Where("assigned_to IS NULL")
	}
	if filter.LockedAt != nil {
		query = query.Where("locked_until IS NOT NULL AND locked_until > ?", *filter.LockedAt)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, filter.Page, filter.PageSize)

	var codes []models.Code
	if err := query.Order("id asc").Find(&codes).Error; err != nil {
		return nil, 0, err
	}
	return codes, total, nil
}

// ClearExpiredLocks 批量清除已过期的锁定，返回影响行数
func (r *GormCodeRepository) ClearExpiredLocks(now time.Time) (int64, error) {
	result := r.db.Model(&models.Code{}).
		Where("locked_until IS NOT NULL AND locked_until < ?", now).
		Updates(map[string]interface{}{
			"locked_until": nil,
			"updated_at":   now,
		})
	return result.RowsAffected, result.Error
}
