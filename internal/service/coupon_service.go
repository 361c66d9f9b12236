package service

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/couponbook/internal/constants"
	"github.com/couponbook/internal/logger"
	"github.com/couponbook/internal/metrics"
	"github.com/couponbook/internal/models"
	"github.com/couponbook/internal/repository"

	"gorm.io/gorm"
)

// CouponService 券码生命周期引擎，编排分配、锁定与兑换
type CouponService struct {
	bookRepo     repository.BookRepository
	codeRepo     repository.CodeRepository
	logRepo      repository.RedeemLogRepository
	clock        Clock
	lockDuration time.Duration
}

// AssignInput 分配输入，Code 为空走随机分配
type AssignInput struct {
	OwnerID string
	BookID  string
	UserID  string
	Code    string
}

// LockInput 锁定输入
type LockInput struct {
	UserID string
	Code   string
}

// RedeemInput 兑换输入
type RedeemInput struct {
	UserID string
	Code   string
}

// NewCouponService 创建券码生命周期服务
func NewCouponService(bookRepo repository.BookRepository, codeRepo repository.CodeRepository, logRepo repository.RedeemLogRepository, clock Clock, lockDuration time.Duration) *CouponService {
	if clock == nil {
		clock = SystemClock{}
	}
	if lockDuration <= 0 {
		lockDuration = time.Duration(constants.DefaultLockDurationMinutes) * time.Minute
	}
	return &CouponService{
		bookRepo:     bookRepo,
		codeRepo:     codeRepo,
		logRepo:      logRepo,
		clock:        clock,
		lockDuration: lockDuration,
	}
}

// Assign 将券码分配给用户。券册行加排他锁，使同册配额校验串行执行。
// 指定券码时对目标行加排他锁校验后写入持有人；随机模式从未分配集合
// 抽取并以条件更新抢占，失败重试至多 constants.AssignMaxAttempts 次。
func (s *CouponService) Assign(ctx context.Context, input AssignInput) (*models.Code, error) {
	if s == nil || s.bookRepo == nil || s.codeRepo == nil {
		return nil, ErrCodeFetchFailed
	}
	started := s.clock.Now()
	ownerID := strings.TrimSpace(input.OwnerID)
	bookID := strings.TrimSpace(input.BookID)
	userID := strings.TrimSpace(input.UserID)
	wanted := strings.TrimSpace(input.Code)
	if bookID == "" || userID == "" {
		return nil, ErrCodeInvalid
	}

	var assigned *models.Code
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		books := s.bookRepo.WithTx(tx)
		codes := s.codeRepo.WithTx(tx)

		book, err := books.GetByIDForUpdate(bookID)
		if err != nil {
			return ErrBookFetchFailed
		}
		if book == nil || (ownerID != "" && book.OwnerID != ownerID) {
			return ErrBookNotFound
		}

		held, err := codes.CountAssignedToUser(bookID, userID)
		if err != nil {
			return ErrCodeFetchFailed
		}
		if held >= int64(book.MaxCodesPerUser) {
			return ErrQuotaExceeded
		}

		if wanted != "" {
			assigned, err = s.assignSpecific(codes, bookID, userID, wanted)
		} else {
			assigned, err = s.assignRandom(codes, bookID, userID)
		}
		return err
	})
	s.observe("assign", started, err)
	if err != nil {
		return nil, err
	}
	return assigned, nil
}

// assignSpecific 指定券码分配，目标行加排他锁后校验状态
func (s *CouponService) assignSpecific(codes *repository.GormCodeRepository, bookID, userID, wanted string) (*models.Code, error) {
	row, err := codes.GetByBookAndCodeForUpdate(bookID, wanted)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if row == nil {
		return nil, ErrCodeNotFound
	}
	if row.Assigned() {
		return nil, ErrAlreadyAssigned
	}
	now := s.clock.Now()
	row.AssignedTo = &userID
	row.UpdatedAt = now
	if err := codes.Update(row); err != nil {
		return nil, ErrCodeFetchFailed
	}
	return row, nil
}

// assignRandom 随机分配：抽取候选后用条件更新抢占，被并发抢走则换一个重试
func (s *CouponService) assignRandom(codes *repository.GormCodeRepository, bookID, userID string) (*models.Code, error) {
	for attempt := 0; attempt < constants.AssignMaxAttempts; attempt++ {
		pool, err := codes.ListUnassigned(bookID)
		if err != nil {
			return nil, ErrCodeFetchFailed
		}
		if len(pool) == 0 {
			return nil, ErrNoCodesAvailable
		}
		pick := pool[rand.Intn(len(pool))]

		now := s.clock.Now()
		won, err := codes.AssignIfUnassigned(pick.ID, userID, now)
		if err != nil {
			return nil, ErrCodeFetchFailed
		}
		if won {
			pick.AssignedTo = &userID
			pick.UpdatedAt = now
			return &pick, nil
		}
	}
	return nil, ErrAssignExhausted
}

// Lock 为兑换尝试锁定券码，锁定期内其他锁定请求一律拒绝。
// 券册行使用共享锁读取：并发锁定/兑换读同一册配额时互不串行，
// 以配额值的短暂陈旧换取吞吐。
func (s *CouponService) Lock(ctx context.Context, input LockInput) (*models.Code, error) {
	if s == nil || s.bookRepo == nil || s.codeRepo == nil {
		return nil, ErrCodeFetchFailed
	}
	started := s.clock.Now()
	userID := strings.TrimSpace(input.UserID)
	codeText := strings.TrimSpace(input.Code)
	if userID == "" || codeText == "" {
		return nil, ErrCodeInvalid
	}

	var locked *models.Code
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		books := s.bookRepo.WithTx(tx)
		codes := s.codeRepo.WithTx(tx)

		row, err := codes.GetByCodeAndAssigneeForUpdate(codeText, userID)
		if err != nil {
			return ErrCodeFetchFailed
		}
		if row == nil {
			return ErrCodeNotAssigned
		}

		book, err := books.GetByIDForShare(row.BookID)
		if err != nil {
			return ErrBookFetchFailed
		}
		if book == nil {
			return ErrBookNotFound
		}

		now := s.clock.Now()
		if codeExpired(row.Expiration, now) {
			return ErrCodeExpired
		}
		if book.RedeemLimited() && row.RedeemedCount >= book.MaxRedeemCountPerUser {
			return ErrRedeemLimitReached
		}
		if row.LockActive(now) {
			return ErrAlreadyLocked
		}

		until := now.Add(s.lockDuration)
		row.LockedUntil = &until
		row.UpdatedAt = now
		if err := codes.Update(row); err != nil {
			return ErrCodeFetchFailed
		}
		locked = row
		return nil
	})
	s.observe("lock", started, err)
	if err != nil {
		return nil, err
	}
	return locked, nil
}

// Redeem 兑换处于有效锁定中的券码：追加兑换流水、累加兑换次数、
// 记录最近兑换时间并清除锁定，四者在同一事务内生效。
// 未分配与未锁定合并为同一错误，避免探测券码状态。
func (s *CouponService) Redeem(ctx context.Context, input RedeemInput) (*models.Code, error) {
	if s == nil || s.bookRepo == nil || s.codeRepo == nil || s.logRepo == nil {
		return nil, ErrRedeemFailed
	}
	started := s.clock.Now()
	userID := strings.TrimSpace(input.UserID)
	codeText := strings.TrimSpace(input.Code)
	if userID == "" || codeText == "" {
		return nil, ErrCodeInvalid
	}

	var redeemed *models.Code
	err := models.DB.Transaction(func(tx *gorm.DB) error {
		books := s.bookRepo.WithTx(tx)
		codes := s.codeRepo.WithTx(tx)
		logs := s.logRepo.WithTx(tx)

		row, err := codes.GetByCodeAndAssigneeForUpdate(codeText, userID)
		if err != nil {
			return ErrRedeemFailed
		}
		now := s.clock.Now()
		if row == nil || !row.LockActive(now) {
			return ErrRedeemNotLocked
		}

		book, err := books.GetByIDForShare(row.BookID)
		if err != nil {
			return ErrRedeemFailed
		}
		if book == nil {
			return ErrBookNotFound
		}
		if book.RedeemLimited() && row.RedeemedCount >= book.MaxRedeemCountPerUser {
			return ErrRedeemLimitReached
		}

		if err := logs.Create(&models.RedeemLog{
			CodeID:     row.ID,
			RedeemedOn: now,
			CreatedAt:  now,
		}); err != nil {
			return ErrRedeemFailed
		}

		row.RedeemedCount++
		row.LastRedeemedOn = &now
		row.LockedUntil = nil
		row.UpdatedAt = now
		if err := codes.Update(row); err != nil {
			return ErrRedeemFailed
		}
		redeemed = row
		return nil
	})
	s.observe("redeem", started, err)
	if err != nil {
		if errors.Is(err, ErrRedeemNotLocked) ||
			errors.Is(err, ErrBookNotFound) ||
			errors.Is(err, ErrRedeemLimitReached) ||
			errors.Is(err, ErrCodeInvalid) {
			return nil, err
		}
		logger.Errorw("redeem failed", "user_id", userID, "error", err)
		return nil, ErrRedeemFailed
	}
	return redeemed, nil
}

// ListUserCodes 查询用户在券册内持有的券码
func (s *CouponService) ListUserCodes(ctx context.Context, ownerID, bookID, userID string) ([]models.Code, error) {
	if s == nil || s.bookRepo == nil || s.codeRepo == nil {
		return nil, ErrCodeFetchFailed
	}
	bookID = strings.TrimSpace(bookID)
	userID = strings.TrimSpace(userID)
	if bookID == "" || userID == "" {
		return nil, ErrCodeInvalid
	}
	book, err := s.bookRepo.GetByID(bookID)
	if err != nil {
		return nil, ErrBookFetchFailed
	}
	if book == nil || (strings.TrimSpace(ownerID) != "" && book.OwnerID != strings.TrimSpace(ownerID)) {
		return nil, ErrBookNotFound
	}
	codes, err := s.codeRepo.ListByAssignee(bookID, userID)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	return codes, nil
}

// RedeemHistory 查询券码的兑换流水，管理侧接口
func (s *CouponService) RedeemHistory(ctx context.Context, ownerID, bookID, codeText string) ([]models.RedeemLog, error) {
	if s == nil || s.codeRepo == nil || s.logRepo == nil {
		return nil, ErrCodeFetchFailed
	}
	book, err := s.bookRepo.GetByID(strings.TrimSpace(bookID))
	if err != nil {
		return nil, ErrBookFetchFailed
	}
	if book == nil || book.OwnerID != strings.TrimSpace(ownerID) {
		return nil, ErrBookNotFound
	}
	row, err := s.codeRepo.GetByBookAndCode(book.ID, codeText)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	if row == nil {
		return nil, ErrCodeNotFound
	}
	logs, err := s.logRepo.ListByCodeID(row.ID)
	if err != nil {
		return nil, ErrCodeFetchFailed
	}
	return logs, nil
}

// observe 上报操作耗时指标，status 取 success 或错误类别
func (s *CouponService) observe(operation string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = ErrorKind(err)
	}
	metrics.ObserveOperation(operation, status, s.clock.Now().Sub(started).Seconds())
}

func codeExpired(expiration *time.Time, now time.Time) bool {
	if expiration == nil || expiration.IsZero() {
		return false
	}
	return expiration.Before(now)
}
