package httpx

import (
	"github.com/gin-gonic/gin"
	"github.com/you/kioskpay/internal/http/handlers"
	"github.com/you/kioskpay/internal/http/middleware"
)

// Handlers groups the HTTP handlers mounted by BuildRouter
type Handlers struct {
	Sessions *handlers.SessionHandlers
	Gabbai   *handlers.GabbaiHandlers
	Admin    *handlers.AdminHandlers
	Policies *handlers.PolicyHandlers
}

func BuildRouter(h Handlers, jwtmw *middleware.AuthMW, cb *middleware.CasbinMW) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	r.POST("/sessions", h.Sessions.Create)
	s := r.Group("/sessions/:id")
	s.GET("", h.Sessions.Get)
	s.DELETE("", h.Sessions.Abandon)
	s.POST("/target", h.Sessions.SelectTarget)
	s.POST("/amount", h.Sessions.SetAmount)
	s.POST("/phone/send", h.Sessions.SendCode)
	s.POST("/phone/resend", h.Sessions.ResendCode)
	s.POST("/phone/digit", h.Sessions.EnterDigit)
	s.POST("/phone/verify", h.Sessions.VerifyCode)
	s.POST("/phone/manual", h.Sessions.ManualEntry)
	s.POST("/donor", h.Sessions.SubmitDonor)
	s.POST("/confirm", h.Sessions.Confirm)
	s.GET("/payment-methods", h.Sessions.PaymentMethods)
	s.POST("/payment-methods/focus", h.Sessions.FocusPaymentMethods)
	s.POST("/payment-method", h.Sessions.SelectPaymentMethod)
	s.POST("/card", h.Sessions.SubmitCard)
	s.POST("/pay", h.Sessions.Pay)
	s.POST("/leave", h.Sessions.Leave)
	s.POST("/retry", h.Sessions.Retry)
	s.POST("/receipt", h.Sessions.SendReceipt)

	gabbai := r.Group("/gabbai")
	gabbai.POST("/otp/send", h.Gabbai.SendCode)
	gabbai.POST("/otp/verify", h.Gabbai.VerifyCode)

	adm := r.Group("/admin").Use(jwtmw.WithJWT(), cb.Enforce())
	adm.GET("/config", h.Admin.GetConfig)
	adm.PUT("/config", h.Admin.UpdateConfig)
	adm.POST("/config/reset", h.Admin.ResetConfig)
	adm.GET("/attempts", h.Admin.ListAttempts)
	adm.GET("/policies", h.Policies.List)
	adm.POST("/policies", h.Policies.Add)
	adm.DELETE("/policies", h.Policies.Remove)

	return r
}
