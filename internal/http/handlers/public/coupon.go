package public

import (
	"github.com/couponbook/internal/http/response"
	"github.com/couponbook/internal/service"

	"github.com/gin-gonic/gin"
)

// AssignCodeRequest 分配券码请求，code 为空走随机分配
type AssignCodeRequest struct {
	Code string `json:"code"`
}

// AssignCode 将券册内的券码分配给当前用户
func (h *Handler) AssignCode(c *gin.Context) {
	partnerID, ok := getPartnerID(c)
	if !ok {
		return
	}
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	var req AssignCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		respondError(c, response.CodeBadRequest, "invalid request body", err)
		return
	}

	code, err := h.CouponService.Assign(c.Request.Context(), service.AssignInput{
		OwnerID: partnerID,
		BookID:  c.Param("id"),
		UserID:  userID,
		Code:    req.Code,
	})
	if err != nil {
		respondAssignError(c, err)
		return
	}
	response.Success(c, gin.H{
		"code":       code.Code,
		"expiration": code.Expiration,
	})
}

// LockCode 为兑换尝试锁定券码
func (h *Handler) LockCode(c *gin.Context) {
	if _, ok := getPartnerID(c); !ok {
		return
	}
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	code, err := h.CouponService.Lock(c.Request.Context(), service.LockInput{
		UserID: userID,
		Code:   c.Param("code"),
	})
	if err != nil {
		respondLockError(c, err)
		return
	}
	response.Success(c, gin.H{
		"locked_until": code.LockedUntil,
	})
}

// RedeemCode 兑换处于锁定中的券码
func (h *Handler) RedeemCode(c *gin.Context) {
	if _, ok := getPartnerID(c); !ok {
		return
	}
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	code, err := h.CouponService.Redeem(c.Request.Context(), service.RedeemInput{
		UserID: userID,
		Code:   c.Param("code"),
	})
	if err != nil {
		respondRedeemError(c, err)
		return
	}
	response.Success(c, gin.H{
		"code":             code.Code,
		"redeemed_count":   code.RedeemedCount,
		"last_redeemed_on": code.LastRedeemedOn,
	})
}

// ListMyCodes 查询当前用户在券册内持有的券码
func (h *Handler) ListMyCodes(c *gin.Context) {
	partnerID, ok := getPartnerID(c)
	if !ok {
		return
	}
	userID, ok := getUserID(c)
	if !ok {
		return
	}
	codes, err := h.CouponService.ListUserCodes(c.Request.Context(), partnerID, c.Param("id"), userID)
	if err != nil {
		respondAssignError(c, err)
		return
	}
	response.Success(c, codes)
}
