package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/services"
)

// SessionHandlers exposes the donation flow to the kiosk front-end
type SessionHandlers struct {
	flow   domain.DonationFlow
	config domain.KioskConfigService
	now    func() time.Time
}

// NewSessionHandlers creates new session handlers
func NewSessionHandlers(flow domain.DonationFlow, config domain.KioskConfigService) *SessionHandlers {
	return &SessionHandlers{flow: flow, config: config, now: time.Now}
}

// TargetRequest represents target selection request
type TargetRequest struct {
	TargetID string `json:"targetId" binding:"required"`
}

// AmountRequest represents amount step request.
// Months is either a number of months or "unlimited".
type AmountRequest struct {
	QuickAmount  int         `json:"quickAmount"`
	CustomAmount string      `json:"customAmount"`
	Recurring    bool        `json:"recurring"`
	Months       interface{} `json:"months"`
}

// PhoneRequest represents phone submission request
type PhoneRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// DigitRequest represents a single code cell entry
type DigitRequest struct {
	Index *int   `json:"index" binding:"required"`
	Digit string `json:"digit"`
}

// CodeRequest represents full code submission request
type CodeRequest struct {
	Code string `json:"code" binding:"required"`
}

// DonorRequest represents the details step form
type DonorRequest struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone"`
	NationalID string `json:"nationalId"`
	Email      string `json:"email"`
	Dedication string `json:"dedication"`
}

// PaymentMethodRequest represents payment method selection request
type PaymentMethodRequest struct {
	Type string `json:"type" binding:"required"`
}

// CardRequest represents card entry request
type CardRequest struct {
	CardNumber string `json:"cardNumber"`
	CardHolder string `json:"cardHolder"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	NationalID string `json:"nationalId"`
}

// LeaveRequest names the step the front-end navigated away from
type LeaveRequest struct {
	Step string `json:"step" binding:"required"`
}

// ReceiptRequest represents duplicate receipt request
type ReceiptRequest struct {
	Channel string `json:"channel" binding:"required"`
}

func sessionData(s *domain.DonationSession) gin.H {
	body := gin.H{"session": s}
	if total, ok := s.TotalAmount(); ok {
		body["total_amount"] = total
	}
	return body
}

func verificationData(s *domain.DonationSession, res *domain.VerificationResult) gin.H {
	body := sessionData(s)
	body["verification"] = gin.H{
		"status":             res.Status,
		"attempts_remaining": res.AttemptsRemaining,
		"filled_cells":       res.FilledCells,
	}
	return body
}

// monthsValue accepts 6, "6" or "unlimited". Fractional numbers are rejected.
func monthsValue(v interface{}) (string, error) {
	switch m := v.(type) {
	case nil:
		return "", nil
	case string:
		return m, nil
	case float64:
		if m != math.Trunc(m) {
			return "", domain.NewValidationError("months", domain.ErrInvalidMonths)
		}
		return strconv.Itoa(int(m)), nil
	default:
		return fmt.Sprint(m), nil
	}
}

// Create starts a new donation session
func (h *SessionHandlers) Create(c *gin.Context) {
	s, err := h.flow.Start(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	cfg, err := h.config.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	data := sessionData(s)
	data["config"] = gin.H{
		"name":          cfg.Name,
		"logo_url":      cfg.LogoURL,
		"colors":        cfg.Colors,
		"targets":       cfg.Targets,
		"quick_amounts": cfg.QuickAmounts,
		"has_recurring": services.HasRecurringPaymentMethod(cfg.PaymentOptions),
		"settings":      cfg.Settings,
	}
	c.JSON(http.StatusCreated, gin.H{"data": data})
}

// Get returns the current step and outcome of a session
func (h *SessionHandlers) Get(c *gin.Context) {
	s, err := h.flow.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": sessionData(s)})
}

// SelectTarget handles the target selection step
func (h *SessionHandlers) SelectTarget(c *gin.Context) {
	var req TargetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c)(h.flow.SelectTarget(c.Request.Context(), c.Param("id"), req.TargetID))
}

// SetAmount handles the amount step
func (h *SessionHandlers) SetAmount(c *gin.Context) {
	var req AmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	months, err := monthsValue(req.Months)
	if err != nil {
		respondError(c, err)
		return
	}
	in := domain.AmountInput{
		QuickAmount:  req.QuickAmount,
		CustomAmount: req.CustomAmount,
		Recurring:    req.Recurring,
		Months:       months,
	}
	h.respond(c)(h.flow.SetAmount(c.Request.Context(), c.Param("id"), in))
}

// SendCode submits the donor phone and requests a verification code
func (h *SessionHandlers) SendCode(c *gin.Context) {
	var req PhoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, v, err := h.flow.SendCode(c.Request.Context(), c.Param("id"), req.Phone)
	if err != nil {
		respondError(c, err)
		return
	}
	data := sessionData(s)
	if v != nil {
		data["resend_in"] = services.RemainingSeconds(v, h.now())
	}
	c.JSON(http.StatusOK, gin.H{"data": data})
}

// ResendCode requests a new code once the cooldown elapsed
func (h *SessionHandlers) ResendCode(c *gin.Context) {
	v, err := h.flow.ResendCode(c.Request.Context(), c.Param("id"))
	if err != nil {
		if v != nil {
			c.JSON(statusFor(err), gin.H{
				"error":       domain.ErrResendCooldown.Error(),
				"retry_after": services.RemainingSeconds(v, h.now()),
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"resend_in": services.RemainingSeconds(v, h.now())}})
}

// EnterDigit fills one code cell; the sixth digit submits the code
func (h *SessionHandlers) EnterDigit(c *gin.Context) {
	var req DigitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, res, err := h.flow.EnterDigit(c.Request.Context(), c.Param("id"), *req.Index, req.Digit)
	h.respondVerification(c, s, res, err)
}

// VerifyCode checks a full code
func (h *SessionHandlers) VerifyCode(c *gin.Context) {
	var req CodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, res, err := h.flow.VerifyCode(c.Request.Context(), c.Param("id"), req.Code)
	h.respondVerification(c, s, res, err)
}

// ManualEntry skips verification and goes to the details form
func (h *SessionHandlers) ManualEntry(c *gin.Context) {
	h.respond(c)(h.flow.ManualEntry(c.Request.Context(), c.Param("id")))
}

// SubmitDonor handles the details form
func (h *SessionHandlers) SubmitDonor(c *gin.Context) {
	var req DonorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	donor := domain.Donor{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Phone:      req.Phone,
		NationalID: req.NationalID,
		Email:      req.Email,
		Dedication: req.Dedication,
	}
	h.respond(c)(h.flow.SubmitDonor(c.Request.Context(), c.Param("id"), donor))
}

// Confirm accepts the donation summary
func (h *SessionHandlers) Confirm(c *gin.Context) {
	h.respond(c)(h.flow.Confirm(c.Request.Context(), c.Param("id")))
}

// PaymentMethods lists the options offered to this session
func (h *SessionHandlers) PaymentMethods(c *gin.Context) {
	options, err := h.flow.PaymentMethods(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"payment_methods": options}})
}

// FocusPaymentMethods re-enables selection when the methods screen regains focus
func (h *SessionHandlers) FocusPaymentMethods(c *gin.Context) {
	if err := h.flow.FocusPaymentMethods(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SelectPaymentMethod picks a payment option
func (h *SessionHandlers) SelectPaymentMethod(c *gin.Context) {
	var req PaymentMethodRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c)(h.flow.SelectPaymentMethod(c.Request.Context(), c.Param("id"), req.Type))
}

// SubmitCard holds card input for the current attempt
func (h *SessionHandlers) SubmitCard(c *gin.Context) {
	var req CardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	card := domain.SensitiveCardData{
		CardNumber: req.CardNumber,
		CardHolder: req.CardHolder,
		ExpiryMMYY: req.Expiry,
		CVV:        req.CVV,
		NationalID: req.NationalID,
	}
	h.respond(c)(h.flow.SubmitCard(c.Request.Context(), c.Param("id"), card))
}

// Pay executes the current attempt
func (h *SessionHandlers) Pay(c *gin.Context) {
	h.respond(c)(h.flow.Pay(c.Request.Context(), c.Param("id")))
}

// Leave reports navigation away from a payment step
func (h *SessionHandlers) Leave(c *gin.Context) {
	var req LeaveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.respond(c)(h.flow.Leave(c.Request.Context(), c.Param("id"), domain.Step(req.Step)))
}

// Retry goes back to method selection after an error
func (h *SessionHandlers) Retry(c *gin.Context) {
	h.respond(c)(h.flow.Retry(c.Request.Context(), c.Param("id")))
}

// SendReceipt sends a duplicate receipt from the success step
func (h *SessionHandlers) SendReceipt(c *gin.Context) {
	var req ReceiptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.flow.SendReceipt(c.Request.Context(), c.Param("id"), domain.ReceiptChannel(req.Channel)); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": gin.H{"message": "Receipt sent"}})
}

// Abandon deletes the session and returns the kiosk home
func (h *SessionHandlers) Abandon(c *gin.Context) {
	if err := h.flow.Abandon(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *SessionHandlers) respond(c *gin.Context) func(*domain.DonationSession, error) {
	return func(s *domain.DonationSession, err error) {
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": sessionData(s)})
	}
}

func (h *SessionHandlers) respondVerification(c *gin.Context, s *domain.DonationSession, res *domain.VerificationResult, err error) {
	if err != nil {
		respondError(c, err)
		return
	}
	if res.Status == domain.VerificationRejected {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error":              domain.MsgWrongCode,
			"attempts_remaining": res.AttemptsRemaining,
			"data":               verificationData(s, res),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": verificationData(s, res)})
}
