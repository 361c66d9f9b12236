package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/couponbook/internal/constants"
	"github.com/couponbook/internal/models"
	"github.com/couponbook/internal/repository"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func setupCouponServiceTest(t *testing.T) (*CouponService, *BookService, *gorm.DB, *fixedClock) {
	t.Helper()
	dsn := fmt.Sprintf("file:coupon_service_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	if err := db.AutoMigrate(&models.Book{}, &models.Code{}, &models.RedeemLog{}); err != nil {
		t.Fatalf("auto migrate failed: %v", err)
	}
	models.DB = db

	clock := newFixedClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	bookRepo := repository.NewBookRepository(db)
	codeRepo := repository.NewCodeRepository(db)
	logRepo := repository.NewRedeemLogRepository(db)

	couponSvc := NewCouponService(bookRepo, codeRepo, logRepo, clock, time.Duration(constants.DefaultLockDurationMinutes)*time.Minute)
	bookSvc := NewBookService(bookRepo, codeRepo, NewCodeGenerator(codeRepo), clock)
	return couponSvc, bookSvc, db, clock
}

func seedBookWithCodes(t *testing.T, bookSvc *BookService, owner string, maxCodes, maxRedeems int, codes ...string) *models.Book {
	t.Helper()
	book := mustCreateBook(t, bookSvc, owner, maxCodes, maxRedeems)
	if len(codes) == 0 {
		return book
	}
	manual := make([]ManualCodeInput, 0, len(codes))
	for _, code := range codes {
		manual = append(manual, ManualCodeInput{Code: code})
	}
	if _, err := bookSvc.AddCodes(context.Background(), AddCodesInput{
		OwnerID: owner,
		BookID:  book.ID,
		Manual:  manual,
	}); err != nil {
		t.Fatalf("seed codes failed: %v", err)
	}
	return book
}

func TestCouponServiceRoundTrip(t *testing.T) {
	svc, bookSvc, db, clock := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 1, 0, "X1")

	assigned, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "user@example.com", Code: "X1"})
	if err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if !assigned.AssignedToUser("user@example.com") {
		t.Fatalf("code not assigned to user: %+v", assigned)
	}

	locked, err := svc.Lock(ctx, LockInput{UserID: "user@example.com", Code: "X1"})
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	wantUntil := clock.Now().Add(time.Duration(constants.DefaultLockDurationMinutes) * time.Minute)
	if locked.LockedUntil == nil || !locked.LockedUntil.Equal(wantUntil) {
		t.Fatalf("expected locked_until=%v, got: %v", wantUntil, locked.LockedUntil)
	}

	redeemed, err := svc.Redeem(ctx, RedeemInput{UserID: "user@example.com", Code: "X1"})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if redeemed.RedeemedCount != 1 {
		t.Fatalf("expected redeemed_count=1, got: %d", redeemed.RedeemedCount)
	}
	if redeemed.LockedUntil != nil {
		t.Fatalf("redeem must clear lock, got: %v", redeemed.LockedUntil)
	}
	if redeemed.LastRedeemedOn == nil || !redeemed.LastRedeemedOn.Equal(clock.Now()) {
		t.Fatalf("expected last_redeemed_on=%v, got: %v", clock.Now(), redeemed.LastRedeemedOn)
	}

	var logCount int64
	if err := db.Model(&models.RedeemLog{}).Where("code_id = ?", redeemed.ID).Count(&logCount).Error; err != nil {
		t.Fatalf("count redeem logs failed: %v", err)
	}
	if logCount != 1 {
		t.Fatalf("expected exactly one redeem log, got: %d", logCount)
	}
}

func TestCouponServiceAssignQuota(t *testing.T) {
	svc, bookSvc, _, _ := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 1, 0, "Q1", "Q2")

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1", Code: "Q1"}); err != nil {
		t.Fatalf("first assign failed: %v", err)
	}
	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1", Code: "Q2"}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got: %v", err)
	}
	// 其他用户不受影响
	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u2", Code: "Q2"}); err != nil {
		t.Fatalf("other user assign failed: %v", err)
	}
}

func TestCouponServiceAssignZeroQuotaForbidsAll(t *testing.T) {
	svc, bookSvc, _, _ := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 0, 0, "Z1")

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1", Code: "Z1"}); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded with zero quota, got: %v", err)
	}
}

func TestCouponServiceAssignSpecificConflicts(t *testing.T) {
	svc, bookSvc, _, _ := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 3, 0, "S1")

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1", Code: "S1"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u2", Code: "S1"}); !errors.Is(err, ErrAlreadyAssigned) {
		t.Fatalf("expected ErrAlreadyAssigned, got: %v", err)
	}
	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u2", Code: "MISSING"}); !errors.Is(err, ErrCodeNotFound) {
		t.Fatalf("expected ErrCodeNotFound, got: %v", err)
	}
	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: "missing", UserID: "u2", Code: "S1"}); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound, got: %v", err)
	}
}

func TestCouponServiceAssignRandom(t *testing.T) {
	svc, bookSvc, db, _ := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 3, 0, "R1", "R2", "R3")

	assigned, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1"})
	if err != nil {
		t.Fatalf("random assign failed: %v", err)
	}
	if !assigned.AssignedToUser("u1") {
		t.Fatalf("random assign did not bind user: %+v", assigned)
	}

	var row models.Code
	if err := db.Where("book_id = ? AND code = ?", book.ID, assigned.Code).First(&row).Error; err != nil {
		t.Fatalf("reload assigned code failed: %v", err)
	}
	if !row.AssignedToUser("u1") {
		t.Fatalf("assignment not persisted: %+v", row)
	}
}

func TestCouponServiceAssignRandomNoCodesAvailable(t *testing.T) {
	svc, bookSvc, db, _ := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 3, 0, "N1")

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u2"}); !errors.Is(err, ErrNoCodesAvailable) {
		t.Fatalf("expected ErrNoCodesAvailable, got: %v", err)
	}

	// 失败的请求不得产生任何变更
	var count int64
	if err := db.Model(&models.Code{}).Where("assigned_to = ?", "u2").Count(&count).Error; err != nil {
		t.Fatalf("count codes failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("failed assign must not mutate rows, got: %d", count)
	}
}

func TestCouponServiceLockConflicts(t *testing.T) {
	svc, bookSvc, _, clock := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 1, 0, "L1")

	if _, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "L1"}); !errors.Is(err, ErrCodeNotAssigned) {
		t.Fatalf("expected ErrCodeNotAssigned before assign, got: %v", err)
	}

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1", Code: "L1"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	locked, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "L1"})
	if err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	firstUntil := *locked.LockedUntil

	// 锁仍有效期间再次锁定：拒绝且 locked_until 不变
	if _, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "L1"}); !errors.Is(err, ErrAlreadyLocked) {
		t.Fatalf("expected ErrAlreadyLocked, got: %v", err)
	}
	reloaded, err := svc.ListUserCodes(ctx, "partner-a", book.ID, "u1")
	if err != nil || len(reloaded) != 1 {
		t.Fatalf("list user codes failed: %v (%d)", err, len(reloaded))
	}
	if reloaded[0].LockedUntil == nil || !reloaded[0].LockedUntil.Equal(firstUntil) {
		t.Fatalf("locked_until must stay unchanged, want %v got %v", firstUntil, reloaded[0].LockedUntil)
	}

	// 他人持有的码不可锁定
	if _, err := svc.Lock(ctx, LockInput{UserID: "u2", Code: "L1"}); !errors.Is(err, ErrCodeNotAssigned) {
		t.Fatalf("expected ErrCodeNotAssigned for foreign user, got: %v", err)
	}

	// 锁过期后可重新锁定
	clock.Advance(11 * time.Minute)
	if _, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "L1"}); err != nil {
		t.Fatalf("relock after expiry failed: %v", err)
	}
}

func TestCouponServiceLockResolvesCodeAcrossBooks(t *testing.T) {
	svc, bookSvc, db, _ := setupCouponServiceTest(t)
	ctx := context.Background()

	// 券码文本仅在册内唯一：两个券册各含一条 "X1"，先建的册行 ID 更小
	bookA := seedBookWithCodes(t, bookSvc, "partner-a", 1, 0, "X1")
	bookB := seedBookWithCodes(t, bookSvc, "partner-a", 1, 0, "X1")

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: bookB.ID, UserID: "u1", Code: "X1"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	locked, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "X1"})
	if err != nil {
		t.Fatalf("lock must resolve the caller's row, got: %v", err)
	}
	if locked.BookID != bookB.ID {
		t.Fatalf("locked wrong book's row, want %s got %s", bookB.ID, locked.BookID)
	}

	redeemed, err := svc.Redeem(ctx, RedeemInput{UserID: "u1", Code: "X1"})
	if err != nil {
		t.Fatalf("redeem failed: %v", err)
	}
	if redeemed.BookID != bookB.ID || redeemed.RedeemedCount != 1 {
		t.Fatalf("redeem hit wrong row: %+v", redeemed)
	}

	// 同文本的另一册券码必须保持未分配、未锁定、零兑换
	var other models.Code
	if err := db.Where("book_id = ? AND code = ?", bookA.ID, "X1").First(&other).Error; err != nil {
		t.Fatalf("reload other book's code failed: %v", err)
	}
	if other.Assigned() || other.LockedUntil != nil || other.RedeemedCount != 0 {
		t.Fatalf("other book's row must stay untouched: %+v", other)
	}
}

func TestCouponServiceRedeemRequiresActiveLock(t *testing.T) {
	svc, bookSvc, _, clock := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 1, 0, "RD1")

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1", Code: "RD1"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}

	// 未锁定直接兑换
	if _, err := svc.Redeem(ctx, RedeemInput{UserID: "u1", Code: "RD1"}); !errors.Is(err, ErrRedeemNotLocked) {
		t.Fatalf("expected ErrRedeemNotLocked, got: %v", err)
	}

	// 锁过期后兑换
	if _, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "RD1"}); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	clock.Advance(11 * time.Minute)
	if _, err := svc.Redeem(ctx, RedeemInput{UserID: "u1", Code: "RD1"}); !errors.Is(err, ErrRedeemNotLocked) {
		t.Fatalf("expected ErrRedeemNotLocked after lock expiry, got: %v", err)
	}
}

func TestCouponServiceRedeemLimit(t *testing.T) {
	svc, bookSvc, _, _ := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 1, 1, "LIM1")

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1", Code: "LIM1"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "LIM1"}); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if _, err := svc.Redeem(ctx, RedeemInput{UserID: "u1", Code: "LIM1"}); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	// 次数上限已到，再次锁定被拒绝
	if _, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "LIM1"}); !errors.Is(err, ErrRedeemLimitReached) {
		t.Fatalf("expected ErrRedeemLimitReached, got: %v", err)
	}
}

func TestCouponServiceUnlimitedRedeem(t *testing.T) {
	svc, bookSvc, db, _ := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 1, 0, "U1")

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1", Code: "U1"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "U1"}); err != nil {
			t.Fatalf("lock %d failed: %v", i, err)
		}
		if _, err := svc.Redeem(ctx, RedeemInput{UserID: "u1", Code: "U1"}); err != nil {
			t.Fatalf("redeem %d failed: %v", i, err)
		}
	}

	var row models.Code
	if err := db.Where("code = ?", "U1").First(&row).Error; err != nil {
		t.Fatalf("reload code failed: %v", err)
	}
	if row.RedeemedCount != 2 {
		t.Fatalf("expected redeemed_count=2, got: %d", row.RedeemedCount)
	}
	var logCount int64
	if err := db.Model(&models.RedeemLog{}).Where("code_id = ?", row.ID).Count(&logCount).Error; err != nil {
		t.Fatalf("count redeem logs failed: %v", err)
	}
	if logCount != 2 {
		t.Fatalf("expected 2 redeem logs, got: %d", logCount)
	}
}

func TestCouponServiceExpiredCodeCannotBeLocked(t *testing.T) {
	svc, bookSvc, db, clock := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 1, 0, "EXP1")

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1", Code: "EXP1"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	past := clock.Now().Add(-time.Hour)
	if err := db.Model(&models.Code{}).Where("code = ?", "EXP1").Update("expiration", past).Error; err != nil {
		t.Fatalf("set expiration failed: %v", err)
	}

	if _, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "EXP1"}); !errors.Is(err, ErrCodeExpired) {
		t.Fatalf("expected ErrCodeExpired, got: %v", err)
	}
}

func TestCouponServiceRedeemHistory(t *testing.T) {
	svc, bookSvc, _, _ := setupCouponServiceTest(t)
	ctx := context.Background()
	book := seedBookWithCodes(t, bookSvc, "partner-a", 1, 0, "H1")

	if _, err := svc.Assign(ctx, AssignInput{OwnerID: "partner-a", BookID: book.ID, UserID: "u1", Code: "H1"}); err != nil {
		t.Fatalf("assign failed: %v", err)
	}
	if _, err := svc.Lock(ctx, LockInput{UserID: "u1", Code: "H1"}); err != nil {
		t.Fatalf("lock failed: %v", err)
	}
	if _, err := svc.Redeem(ctx, RedeemInput{UserID: "u1", Code: "H1"}); err != nil {
		t.Fatalf("redeem failed: %v", err)
	}

	logs, err := svc.RedeemHistory(ctx, "partner-a", book.ID, "H1")
	if err != nil {
		t.Fatalf("redeem history failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got: %d", len(logs))
	}

	if _, err := svc.RedeemHistory(ctx, "partner-b", book.ID, "H1"); !errors.Is(err, ErrBookNotFound) {
		t.Fatalf("expected ErrBookNotFound for foreign owner, got: %v", err)
	}
}
