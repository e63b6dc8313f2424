package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/you/kioskpay/domain"
)

const defaultAttemptsLimit = 50

// AdminHandlers serves the gabbai settings screens
type AdminHandlers struct {
	config   domain.KioskConfigService
	attempts domain.AttemptRepository
}

// NewAdminHandlers creates new admin handlers
func NewAdminHandlers(config domain.KioskConfigService, attempts domain.AttemptRepository) *AdminHandlers {
	return &AdminHandlers{config: config, attempts: attempts}
}

// GetConfig returns the kiosk configuration
func (h *AdminHandlers) GetConfig(c *gin.Context) {
	cfg, err := h.config.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

// UpdateConfig replaces the kiosk configuration
func (h *AdminHandlers) UpdateConfig(c *gin.Context) {
	var cfg domain.KioskConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.config.Update(c.Request.Context(), &cfg); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

// ResetConfig restores the seed configuration
func (h *AdminHandlers) ResetConfig(c *gin.Context) {
	cfg, err := h.config.Reset(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": cfg})
}

// ListAttempts returns the most recent payment attempt ledger rows
func (h *AdminHandlers) ListAttempts(c *gin.Context) {
	limit := defaultAttemptsLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive number"})
			return
		}
		limit = n
	}

	records, err := h.attempts.ListRecent(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}

	rows := make([]gin.H, 0, len(records))
	for _, r := range records {
		rows = append(rows, gin.H{
			"session_id":     r.SessionID,
			"transaction_id": r.TransactionID,
			"attempt":        r.AttemptNumber,
			"method":         r.Method,
			"next_action":    r.NextAction,
			"amount":         r.Amount,
			"months":         r.Months,
			"unlimited":      r.Unlimited,
			"item_id":        r.TargetItemID,
			"donor_phone":    domain.MaskPhone(r.DonorPhone),
			"status":         r.Status,
			"document_id":    r.DocumentID,
			"gateway_code":   r.GatewayCode,
			"message":        r.Message,
			"created_at":     r.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"attempts": rows}})
}
