package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/kioskpay/domain"
)

// GabbaiHandlers handles the admin phone code login
type GabbaiHandlers struct {
	gabbai domain.GabbaiService
}

// NewGabbaiHandlers creates new gabbai handlers
func NewGabbaiHandlers(gabbai domain.GabbaiService) *GabbaiHandlers {
	return &GabbaiHandlers{gabbai: gabbai}
}

// GabbaiVerifyRequest represents gabbai code verification request
type GabbaiVerifyRequest struct {
	Phone string `json:"phone" binding:"required"`
	Code  string `json:"code" binding:"required"`
}

// SendCode sends a login code to a registered gabbai phone
func (h *GabbaiHandlers) SendCode(c *gin.Context) {
	var req PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.gabbai.SendCode(c.Request.Context(), req.Phone); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "Code sent"}})
}

// VerifyCode exchanges a gabbai code for an admin token
func (h *GabbaiHandlers) VerifyCode(c *gin.Context) {
	var req GabbaiVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	login, err := h.gabbai.Verify(c.Request.Context(), req.Phone, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrGabbaiLocked):
			c.JSON(http.StatusLocked, gin.H{"error": "Too many attempts, try again later"})
		case errors.Is(err, domain.ErrCodeInvalid) && login != nil:
			c.JSON(http.StatusUnauthorized, gin.H{
				"error":              domain.MsgWrongCode,
				"attempts_remaining": login.AttemptsRemaining,
			})
		default:
			respondError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"access_token": login.Token,
			"token_type":   "Bearer",
			"expires_in":   login.ExpiresIn,
		},
	})
}
