package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/you/kioskpay/domain"
)

// statusFor maps flow failures to HTTP status codes.
// Sentinels are checked before the FlowError kind.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrPolicyNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidStep),
		errors.Is(err, domain.ErrSelectionLocked),
		errors.Is(err, domain.ErrVerificationNotStarted),
		errors.Is(err, domain.ErrVerificationClosed),
		errors.Is(err, domain.ErrNoActiveAttempt),
		errors.Is(err, domain.ErrAttemptResolved),
		errors.Is(err, domain.ErrNoDocument),
		errors.Is(err, domain.ErrPolicyLockout):
		return http.StatusConflict
	case errors.Is(err, domain.ErrResendCooldown):
		return http.StatusTooManyRequests
	case errors.Is(err, domain.ErrGabbaiLocked):
		return http.StatusLocked
	case errors.Is(err, domain.ErrNotGabbai):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidConfig),
		errors.Is(err, domain.ErrPolicyInvalid):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNoPaymentMethods):
		return http.StatusServiceUnavailable
	}

	kind, ok := domain.KindOf(err)
	if !ok {
		return http.StatusInternalServerError
	}
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindAuthRejection:
		return http.StatusUnauthorized
	case domain.KindGatewayDeclined:
		return http.StatusPaymentRequired
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// respondError writes {"error": msg} and, for form input, {"field": f}
func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	body := gin.H{"error": err.Error()}

	var fe *domain.FlowError
	if errors.As(err, &fe) {
		body["error"] = fe.Message
		if fe.Field != "" {
			body["field"] = fe.Field
		}
		if kind := fe.Kind; kind != domain.KindValidation {
			body["kind"] = kind
		}
	}
	if status == http.StatusInternalServerError {
		log.Printf("HTTP_INTERNAL_ERROR: path=%s error=%v", c.FullPath(), err)
		body["error"] = domain.MsgTryAgain
	}
	c.JSON(status, body)
}
