package service

import "errors"

// 业务错误哨兵，处理器层用 errors.Is 匹配后映射为响应码
var (
	// 券册
	ErrBookInvalid      = errors.New("invalid book input")
	ErrBookNotFound     = errors.New("book not found")
	ErrBookCreateFailed = errors.New("failed to create book")
	ErrBookFetchFailed  = errors.New("failed to fetch book")

	// 券码写入
	ErrCodeInvalid         = errors.New("invalid code input")
	ErrCodeFetchFailed     = errors.New("failed to fetch code")
	ErrManualCollision     = errors.New("one or more codes already exist in book")
	ErrAddCodesFailed      = errors.New("failed to add codes")
	ErrGenerationExhausted = errors.New("unable to generate enough unique codes")

	// 分配
	ErrQuotaExceeded    = errors.New("user code quota exceeded for book")
	ErrCodeNotFound     = errors.New("code not found")
	ErrAlreadyAssigned  = errors.New("code is already assigned")
	ErrNoCodesAvailable = errors.New("no unassigned codes available")
	ErrAssignExhausted  = errors.New("failed to assign a code, please retry")

	// 锁定与兑换
	ErrCodeNotAssigned    = errors.New("code is not assigned to user")
	ErrCodeExpired        = errors.New("code has expired")
	ErrRedeemLimitReached = errors.New("code redeem limit reached")
	// ErrAlreadyLocked 对外保持笼统措辞，不泄露持锁人身份
	ErrAlreadyLocked = errors.New("code is currently locked")
	// ErrRedeemNotLocked 覆盖未分配与未锁定两种情形，避免探测券码状态
	ErrRedeemNotLocked = errors.New("code is not locked for redemption")
	ErrRedeemFailed    = errors.New("failed to redeem code")
)

// 错误类别，日志与指标按类别打标
const (
	ErrorKindNotFound  = "not_found"
	ErrorKindConflict  = "conflict"
	ErrorKindExhausted = "exhausted"
	ErrorKindTransient = "transient"
)

// ErrorKind 返回业务错误所属类别，未知错误一律按瞬时错误处理
func ErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrBookNotFound),
		errors.Is(err, ErrCodeNotFound),
		errors.Is(err, ErrCodeNotAssigned),
		errors.Is(err, ErrRedeemNotLocked):
		return ErrorKindNotFound
	case errors.Is(err, ErrBookInvalid),
		errors.Is(err, ErrCodeInvalid),
		errors.Is(err, ErrManualCollision),
		errors.Is(err, ErrQuotaExceeded),
		errors.Is(err, ErrAlreadyAssigned),
		errors.Is(err, ErrAlreadyLocked),
		errors.Is(err, ErrCodeExpired),
		errors.Is(err, ErrRedeemLimitReached):
		return ErrorKindConflict
	case errors.Is(err, ErrGenerationExhausted),
		errors.Is(err, ErrNoCodesAvailable),
		errors.Is(err, ErrAssignExhausted):
		return ErrorKindExhausted
	default:
		return ErrorKindTransient
	}
}
