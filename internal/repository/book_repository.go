package repository

import (
	"errors"
	"strings"

	"github.com/couponbook/internal/models"

	"gorm.io/gorm"
)

// BookRepository 券册数据访问接口
type BookRepository interface {
	Create(book *models.Book) error
	GetByID(id string) (*models.Book, error)
	GetByIDForUpdate(id string) (*models.Book, error)
	GetByIDForShare(id string) (*models.Book, error)
	ListByOwner(ownerID string, page, pageSize int) ([]models.Book, int64, error)
	WithTx(tx *gorm.DB) *GormBookRepository
}

// GormBookRepository GORM 券册仓储实现
type GormBookRepository struct {
	db *gorm.DB
}

// NewBookRepository 创建券册仓储
func NewBookRepository(db *gorm.DB) *GormBookRepository {
	return &GormBookRepository{db: db}
}

// WithTx 绑定事务
func (r *GormBookRepository) WithTx(tx *gorm.DB) *GormBookRepository {
	if tx == nil {
		return r
	}
	return &GormBookRepository{db: tx}
}

// Create 创建券册
func (r *GormBookRepository) Create(book *models.Book) error {
	if book == nil {
		return errors.New("invalid book")
	}
	return r.db.Create(book).Error
}

// GetByID 根据 ID 查询券册
func (r *GormBookRepository) GetByID(id string) (*models.Book, error) {
	return r.getByID(r.db, id)
}

// GetByIDForUpdate 根据 ID 加排他锁查询券册，用于串行化同册配额校验
func (r *GormBookRepository) GetByIDForUpdate(id string) (*models.Book, error) {
	return r.getByID(applyRowLock(r.db, lockStrengthUpdate), id)
}

// GetByIDForShare 根据 ID 加共享锁查询券册，锁定/兑换路径使用
func (r *GormBookRepository) GetByIDForShare(id string) (*models.Book, error) {
	return r.getByID(applyRowLock(r.db, lockStrengthShare), id)
}

func (r *GormBookRepository) getByID(db *gorm.DB, id string) (*models.Book, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	var book models.Book
	if err := db.Where("id = ?", id).First(&book).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &book, nil
}

// ListByOwner 查询合作方名下券册列表
func (r *GormBookRepository) ListByOwner(ownerID string, page, pageSize int) ([]models.Book, int64, error) {
	query := r.db.Model(&models.Book{}).Where("owner_id = ?", strings.TrimSpace(ownerID))

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	query = applyPagination(query, page, pageSize)

	var books []models.Book
	if err := query.Order("created_at desc").Find(&books).Error; err != nil {
		return nil, 0, err
	}
	return books, total, nil
}
