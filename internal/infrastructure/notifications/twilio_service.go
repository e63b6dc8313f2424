package notifications

import (
	"fmt"
	"log"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/you/kioskpay/domain"
)

// messageCreator is the part of the Twilio REST API the kiosk uses
type messageCreator interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioServiceImpl delivers verification codes by SMS.
// Without a sender number it only logs the masked recipient.
type TwilioServiceImpl struct {
	api        messageCreator
	fromNumber string
}

// NewTwilioService creates a new Twilio notification service
func NewTwilioService(accountSID, authToken, fromNumber string) domain.NotificationService {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioServiceImpl{api: client.Api, fromNumber: fromNumber}
}

// SendSMS sends message to a local mobile number
func (t *TwilioServiceImpl) SendSMS(to, message string) error {
	if !domain.IsValidPhone(to) {
		return fmt.Errorf("failed to send SMS: %w", domain.ErrInvalidPhone)
	}
	e164 := ToE164(to)

	if t.fromNumber == "" {
		log.Printf("SMS_SKIPPED: to=%s reason=no_sender", domain.MaskPhone(to))
		return nil
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(e164)
	params.SetFrom(t.fromNumber)
	params.SetBody(message)

	msg, err := t.api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	if msg != nil && msg.Sid != nil {
		log.Printf("SMS_SENT: to=%s sid=%s", domain.MaskPhone(to), *msg.Sid)
	}
	return nil
}

// ToE164 converts a local 05XXXXXXXX mobile number to +9725XXXXXXXX
func ToE164(phone string) string {
	n := domain.NormalizePhone(phone)
	if len(n) == 10 && n[0] == '0' {
		return "+972" + n[1:]
	}
	if len(n) > 0 && phone[0] == '+' {
		return "+" + n
	}
	return phone
}
