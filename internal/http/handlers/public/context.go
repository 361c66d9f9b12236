package public

import (
	"github.com/couponbook/internal/constants"
	handlershared "github.com/couponbook/internal/http/handlers/shared"

	"github.com/gin-gonic/gin"
)

func getPartnerID(c *gin.Context) (string, bool) {
	return handlershared.GetContextString(c, constants.ContextKeyPartnerID)
}

func getUserID(c *gin.Context) (string, bool) {
	return handlershared.GetContextString(c, constants.ContextKeyUserID)
}
