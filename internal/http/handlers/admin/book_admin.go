package admin

import (
	"errors"
	"time"

	"github.com/couponbook/internal/http/handlers/shared"
	"github.com/couponbook/internal/http/response"
	"github.com/couponbook/internal/queue"
	"github.com/couponbook/internal/repository"
	"github.com/couponbook/internal/service"

	"github.com/gin-gonic/gin"
)

// CreateBookRequest 创建券册请求
type CreateBookRequest struct {
	Name                  string `json:"name" binding:"required"`
	MaxCodesPerUser       int    `json:"max_codes_per_user"`
	MaxRedeemCountPerUser int    `json:"max_redeem_count_per_user"`
}

// ManualCodeRequest 手工录入的单个券码
type ManualCodeRequest struct {
	Code       string     `json:"code" binding:"required"`
	Expiration *time.Time `json:"expiration"`
}

// GenerateCodesRequest 随机生成券码参数
type GenerateCodesRequest struct {
	Amount     int        `json:"amount" binding:"required"`
	Prefix     string     `json:"prefix"`
	CodeLength int        `json:"code_length" binding:"required"`
	Expiration *time.Time `json:"expiration"`
}

// AddCodesRequest 追加券码请求，manual 与 generate 至少出现一个
type AddCodesRequest struct {
	Manual   []ManualCodeRequest   `json:"manual"`
	Generate *GenerateCodesRequest `json:"generate"`
}

// CreateBook 创建券册
func (h *Handler) CreateBook(c *gin.Context) {
	partnerID, ok := getPartnerID(c)
	if !ok {
		return
	}
	var req CreateBookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	book, err := h.BookService.CreateBook(service.CreateBookInput{
		OwnerID:               partnerID,
		Name:                  req.Name,
		MaxCodesPerUser:       req.MaxCodesPerUser,
		MaxRedeemCountPerUser: req.MaxRedeemCountPerUser,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookInvalid):
			shared.RespondServiceError(c, response.CodeBadRequest, service.ErrBookInvalid)
		default:
			respondError(c, response.CodeInternal, "failed to create book", err)
		}
		return
	}

	response.Success(c, gin.H{
		"book_id": book.ID,
		"book":    book,
	})
}

// GetBook 查询券册
func (h *Handler) GetBook(c *gin.Context) {
	partnerID, ok := getPartnerID(c)
	if !ok {
		return
	}
	book, err := h.BookService.GetBook(c.Request.Context(), partnerID, c.Param("id"))
	if err != nil {
		respondBookError(c, err)
		return
	}
	response.Success(c, book)
}

// ListBooks 查询券册列表
func (h *Handler) ListBooks(c *gin.Context) {
	partnerID, ok := getPartnerID(c)
	if !ok {
		return
	}
	page, pageSize := shared.NormalizePagination(
		queryInt(c, "page", 1),
		queryInt(c, "page_size", 20),
	)
	books, total, err := h.BookService.ListBooks(partnerID, page, pageSize)
	if err != nil {
		respondError(c, response.CodeInternal, "failed to list books", err)
		return
	}
	response.SuccessWithPage(c, books, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: shared.TotalPages(total, pageSize),
	})
}

// AddCodes 向券册追加券码
func (h *Handler) AddCodes(c *gin.Context) {
	partnerID, ok := getPartnerID(c)
	if !ok {
		return
	}
	var req AddCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	input := service.AddCodesInput{
		OwnerID: partnerID,
		BookID:  c.Param("id"),
	}
	for _, item := range req.Manual {
		input.Manual = append(input.Manual, service.ManualCodeInput{
			Code:       item.Code,
			Expiration: item.Expiration,
		})
	}
	if req.Generate != nil {
		input.Generate = &service.GenerateCodesSpec{
			Amount:     req.Generate.Amount,
			Prefix:     req.Generate.Prefix,
			CodeLength: req.Generate.CodeLength,
			Expiration: req.Generate.Expiration,
		}
	}

	result, err := h.BookService.AddCodes(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookNotFound):
			shared.RespondServiceError(c, response.CodeNotFound, service.ErrBookNotFound)
		case errors.Is(err, service.ErrCodeInvalid):
			shared.RespondServiceError(c, response.CodeBadRequest, service.ErrCodeInvalid)
		case errors.Is(err, service.ErrManualCollision):
			shared.RespondServiceError(c, response.CodeConflict, service.ErrManualCollision)
		case errors.Is(err, service.ErrGenerationExhausted):
			shared.RespondServiceError(c, response.CodeTooManyRequests, service.ErrGenerationExhausted)
		default:
			respondError(c, response.CodeInternal, "failed to add codes", err)
		}
		return
	}

	codes := make([]gin.H, 0, len(result.Codes))
	for _, row := range result.Codes {
		codes = append(codes, gin.H{
			"code":       row.Code,
			"expiration": row.Expiration,
		})
	}
	response.Success(c, gin.H{
		"manual_added":    result.ManualAdded,
		"generated_added": result.GeneratedAdded,
		"codes":           codes,
	})
}

// ListCodes 查询券册内券码
func (h *Handler) ListCodes(c *gin.Context) {
	partnerID, ok := getPartnerID(c)
	if !ok {
		return
	}
	page, pageSize := shared.NormalizePagination(
		queryInt(c, "page", 1),
		queryInt(c, "page_size", 20),
	)
	filter := repository.CodeListFilter{
		BookID:     c.Param("id"),
		AssignedTo: c.Query("assigned_to"),
		Unassigned: c.Query("unassigned") == "true",
		Page:       page,
		PageSize:   pageSize,
	}
	codes, total, err := h.BookService.ListCodes(c.Request.Context(), partnerID, filter)
	if err != nil {
		respondBookError(c, err)
		return
	}
	response.SuccessWithPage(c, codes, response.Pagination{
		Page:      page,
		PageSize:  pageSize,
		Total:     total,
		TotalPage: shared.TotalPages(total, pageSize),
	})
}

// GetRedeemLogs 查询券码的兑换流水
func (h *Handler) GetRedeemLogs(c *gin.Context) {
	partnerID, ok := getPartnerID(c)
	if !ok {
		return
	}
	logs, err := h.CouponService.RedeemHistory(c.Request.Context(), partnerID, c.Param("id"), c.Param("code"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBookNotFound):
			shared.RespondServiceError(c, response.CodeNotFound, service.ErrBookNotFound)
		case errors.Is(err, service.ErrCodeNotFound):
			shared.RespondServiceError(c, response.CodeNotFound, service.ErrCodeNotFound)
		default:
			respondError(c, response.CodeInternal, "failed to fetch redeem logs", err)
		}
		return
	}
	response.Success(c, logs)
}

// SweepExpiredLocks 手工触发过期锁回收；队列可用时走异步任务，否则就地执行
func (h *Handler) SweepExpiredLocks(c *gin.Context) {
	if _, ok := getPartnerID(c); !ok {
		return
	}
	if h.QueueClient.Enabled() {
		if err := h.QueueClient.EnqueueSweepExpiredLocks(queue.SweepExpiredLocksPayload{Reason: "admin"}); err != nil {
			respondError(c, response.CodeInternal, "failed to enqueue sweep task", err)
			return
		}
		response.Success(c, gin.H{"enqueued": true})
		return
	}
	cleared, err := h.SweepService.SweepExpiredLocks()
	if err != nil {
		respondError(c, response.CodeInternal, "failed to sweep expired locks", err)
		return
	}
	response.Success(c, gin.H{"enqueued": false, "cleared": cleared})
}

func respondBookError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrBookNotFound):
		shared.RespondServiceError(c, response.CodeNotFound, service.ErrBookNotFound)
	default:
		respondError(c, response.CodeInternal, "failed to fetch book", err)
	}
}
