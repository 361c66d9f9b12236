package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/couponbook/internal/cache"
	"github.com/couponbook/internal/logger"
	"github.com/couponbook/internal/models"
	"github.com/couponbook/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	bookNameMaxLength   = 120
	manualBatchMaxCodes = 10000
	bookCacheTTL        = 10 * time.Minute
)

// BookService 券册服务，覆盖券册创建、查询与券码入库
type BookService struct {
	bookRepo  repository.BookRepository
	codeRepo  repository.CodeRepository
	generator *CodeGenerator
	clock     Clock
}

// CreateBookInput 创建券册输入
type CreateBookInput struct {
	OwnerID               string
	Name                  string
	MaxCodesPerUser       int
	MaxRedeemCountPerUser int
}

// ManualCodeInput 手工录入的单个券码
type ManualCodeInput struct {
	Code       string
	Expiration *time.Time
}

// GenerateCodesSpec 随机生成券码的参数
type GenerateCodesSpec struct {
	Amount     int
	Prefix     string
	CodeLength int
	Expiration *time.Time
}

// AddCodesInput 追加券码输入，手工与生成两部分可同时出现
type AddCodesInput struct {
	OwnerID  string
	BookID   string
	Manual   []ManualCodeInput
	Generate *GenerateCodesSpec
}

// AddCodesResult 追加券码结果
type AddCodesResult struct {
	ManualAdded    int
	GeneratedAdded int
	Codes          []models.Code
}

// NewBookService 创建券册服务
func NewBookService(bookRepo repository.BookRepository, codeRepo repository.CodeRepository, generator *CodeGenerator, clock Clock) *BookService {
	if clock == nil {
		clock = SystemClock{}
	}
	return &BookService{
		bookRepo:  bookRepo,
		codeRepo:  codeRepo,
		generator: generator,
		clock:     clock,
	}
}

// CreateBook 创建券册，配额为 0 表示不限制兑换次数
func (s *BookService) CreateBook(input CreateBookInput) (*models.Book, error) {
	if s == nil || s.bookRepo == nil {
		return nil, ErrBookCreateFailed
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	name := strings.TrimSpace(input.Name)
	if ownerID == "" || name == "" || len(name) > bookNameMaxLength {
		return nil, ErrBookInvalid
	}
	if input.MaxCodesPerUser < 0 || input.MaxRedeemCountPerUser < 0 {
		return nil, ErrBookInvalid
	}

	now := s.clock.Now()
	book := &models.Book{
		ID:                    uuid.NewString(),
		OwnerID:               ownerID,
		Name:                  name,
		MaxCodesPerUser:       input.MaxCodesPerUser,
		MaxRedeemCountPerUser: input.MaxRedeemCountPerUser,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.bookRepo.Create(book); err != nil {
		logger.Errorw("create book failed", "owner_id", ownerID, "error", err)
		return nil, ErrBookCreateFailed
	}
	return book, nil
}

// GetBook 查询调用方名下的券册，带 Redis 读穿缓存
func (s *BookService) GetBook(ctx context.Context, ownerID, bookID string) (*models.Book, error) {
	if s == nil || s.bookRepo == nil {
		return nil, ErrBookFetchFailed
	}
	ownerID = strings.TrimSpace(ownerID)
	bookID = strings.TrimSpace(bookID)
	if ownerID == "" || bookID == "" {
		return nil, ErrBookNotFound
	}

	cacheKey := bookCacheKey(bookID)
	var cached models.Book
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		if cached.OwnerID != ownerID {
			return nil, ErrBookNotFound
		}
		return &cached, nil
	}

	book, err := s.bookRepo.GetByID(bookID)
	if err != nil {
		return nil, ErrBookFetchFailed
	}
	if book == nil || book.OwnerID != ownerID {
		return nil, ErrBookNotFound
	}
	if err := cache.SetJSON(ctx, cacheKey, book, bookCacheTTL); err != nil {
		logger.Warnw("cache book failed", "book_id", bookID, "error", err)
	}
	return book, nil
}

// ListBooks 查询调用方名下券册列表
func (s *BookService) ListBooks(ownerID string, page, pageSize int) ([]models.Book, int64, error) {
	if s == nil || s.bookRepo == nil {
		return nil, 0, ErrBookFetchFailed
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return []models.Book{}, 0, nil
	}
	books, total, err := s.bookRepo.ListByOwner(ownerID, page, pageSize)
	if err != nil {
		return nil, 0, ErrBookFetchFailed
	}
	return books, total, nil
}

// AddCodes 向券册追加券码，分两个事务执行：
// 先整体提交手工批次（任一重码则全批拒绝），再提交生成批次。
// 手工批次成功而生成批次失败时不回滚手工部分，属已知的不一致窗口，
// 调用方可重新发起仅含生成参数的请求补齐。
func (s *BookService) AddCodes(ctx context.Context, input AddCodesInput) (*AddCodesResult, error) {
	if s == nil || s.codeRepo == nil || s.generator == nil {
		return nil, ErrAddCodesFailed
	}
	book, err := s.GetBook(ctx, input.OwnerID, input.BookID)
	if err != nil {
		return nil, err
	}
	if len(input.Manual) == 0 && input.Generate == nil {
		return nil, ErrCodeInvalid
	}
	if len(input.Manual) > manualBatchMaxCodes {
		return nil, ErrCodeInvalid
	}

	result := &AddCodesResult{Codes: make([]models.Code, 0)}
	now := s.clock.Now()

	if len(input.Manual) > 0 {
		manualRows, err := s.buildManualRows(book.ID, input.Manual, now)
		if err != nil {
			return nil, err
		}
		if err := s.insertBatch(book.ID, manualRows); err != nil {
			return nil, err
		}
		result.ManualAdded = len(manualRows)
		result.Codes = append(result.Codes, manualRows...)
	}

	if input.Generate != nil {
		generated, err := s.generator.Generate(book.ID, input.Generate.Amount, input.Generate.Prefix, input.Generate.CodeLength)
		if err != nil {
			return nil, err
		}
		rows := make([]models.Code, 0, len(generated))
		for _, code := range generated {
			rows = append(rows, models.Code{
				BookID:     book.ID,
				Code:       code,
				Expiration: normalizeExpiration(input.Generate.Expiration),
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
		if err := s.insertBatch(book.ID, rows); err != nil {
			return nil, err
		}
		result.GeneratedAdded = len(rows)
		result.Codes = append(result.Codes, rows...)
	}

	return result, nil
}

// ListCodes 查询券册内券码列表，管理侧接口
func (s *BookService) ListCodes(ctx context.Context, ownerID string, filter repository.CodeListFilter) ([]models.Code, int64, error) {
	if s == nil || s.codeRepo == nil {
		return nil, 0, ErrCodeFetchFailed
	}
	if _, err := s.GetBook(ctx, ownerID, filter.BookID); err != nil {
		return nil, 0, err
	}
	codes, total, err := s.codeRepo.List(filter)
	if err != nil {
		return nil, 0, ErrCodeFetchFailed
	}
	return codes, total, nil
}

// buildManualRows 规范化手工批次：去空白、册内与批内查重，任一重码整批拒绝
func (s *BookService) buildManualRows(bookID string, manual []ManualCodeInput, now time.Time) ([]models.Code, error) {
	rows := make([]models.Code, 0, len(manual))
	texts := make([]string, 0, len(manual))
	seen := make(map[string]struct{}, len(manual))
	for _, item := range manual {
		code := strings.TrimSpace(item.Code)
		if code == "" || len(code) > 80 {
			return nil, ErrCodeInvalid
		}
		if _, dup := seen[code]; dup {
			return nil, ErrManualCollision
		}
		seen[code] = struct{}{}
		texts = append(texts, code)
		rows = append(rows, models.Code{
			BookID:     bookID,
			Code:       code,
			Expiration: normalizeExpiration(item.Expiration),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	existing, err := s.codeRepo.ListExistingCodes(bookID, texts)
	if err != nil {
		return nil, ErrAddCodesFailed
	}
	if len(existing) > 0 {
		return nil, ErrManualCollision
	}
	return rows, nil
}

// insertBatch 单事务写入一批券码，唯一索引冲突映射为重码错误
func (s *BookService) insertBatch(bookID string, rows []models.Code) error {
	if len(rows) == 0 {
		return nil
	}
	if err := models.DB.Transaction(func(tx *gorm.DB) error {
		return s.codeRepo.WithTx(tx).CreateBatch(rows)
	}); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrManualCollision
		}
		logger.Errorw("insert code batch failed", "book_id", bookID, "count", len(rows), "error", err)
		return ErrAddCodesFailed
	}
	return nil
}

func bookCacheKey(bookID string) string {
	return fmt.Sprintf("book:%s", bookID)
}

func normalizeExpiration(raw *time.Time) *time.Time {
	if raw == nil || raw.IsZero() {
		return nil
	}
	value := raw.UTC()
	return &value
}
