package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/you/kioskpay/domain"
)

// maxBody caps how much of a gateway response is read
const maxBody = 1 << 20

// Client implements domain.PaymentGateway over the gateway's JSON API
type Client struct {
	baseURL   string
	statusURL string
	token     string
	apiBit    string
	client    *http.Client
}

type customer struct {
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Phone      string `json:"phone"`
	Email      string `json:"email,omitempty"`
	NationalID string `json:"nationalId,omitempty"`
	Dedication string `json:"dedication,omitempty"`
}

type item struct {
	ItemID   string `json:"itemId"`
	Name     string `json:"name"`
	Amount   int    `json:"amount"`
	Quantity int    `json:"quantity"`
}

type recurring struct {
	Months    int  `json:"months,omitempty"`
	Unlimited bool `json:"unlimited,omitempty"`
}

type cardData struct {
	CardNumber string `json:"cardNumber"`
	CardHolder string `json:"cardHolder"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv,omitempty"`
	NationalID string `json:"nationalId,omitempty"`
}

type initiateRequest struct {
	CompanyID     string     `json:"companyId"`
	Token         string     `json:"token"`
	TransactionID string     `json:"transactionId"`
	PaymentMethod string     `json:"paymentMethod"`
	NextAction    string     `json:"nextAction"`
	Customer      customer   `json:"customer"`
	Items         []item     `json:"items"`
	Recurring     *recurring `json:"recurring,omitempty"`
	CardData      *cardData  `json:"cardData,omitempty"`
}

type initiateResponse struct {
	Success       *bool  `json:"success"`
	TransactionID string `json:"transactionId"`
	DocToken      string `json:"docToken"`
	IDDoc         string `json:"idDoc"`
	PaymentURL    string `json:"paymentUrl"`
	ShvaCode      string `json:"shvaCode"`
	Message       string `json:"message"`
}

type statusResponse struct {
	Success bool `json:"success"`
}

type receiptRequest struct {
	DocumentID string `json:"documentId"`
	Channel    string `json:"channel"`
	Contact    string `json:"contact"`
}

type receiptResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// NewClient creates a gateway client; timeout bounds every request
func NewClient(baseURL, statusURL, token, apiBit string, timeout time.Duration) domain.PaymentGateway {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		statusURL: statusURL,
		token:     token,
		apiBit:    apiBit,
		client:    &http.Client{Timeout: timeout},
	}
}

// InitiatePayment implements domain.PaymentGateway
func (c *Client) InitiatePayment(ctx context.Context, req *domain.PaymentRequest) (*domain.GatewayResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}

	body := initiateRequest{
		CompanyID:     req.CompanyID,
		Token:         c.token,
		TransactionID: req.TransactionID,
		PaymentMethod: req.Method,
		NextAction:    string(req.NextAction),
		Customer: customer{
			FirstName:  req.Customer.FirstName,
			LastName:   req.Customer.LastName,
			Phone:      req.Customer.Phone,
			Email:      req.Customer.Email,
			NationalID: req.Customer.NationalID,
			Dedication: req.Customer.Dedication,
		},
	}
	for _, it := range req.Items {
		body.Items = append(body.Items, item{ItemID: it.ItemID, Name: it.Name, Amount: it.Amount, Quantity: it.Quantity})
	}
	if req.Recurrence != nil {
		body.Recurring = &recurring{Months: req.Recurrence.Months, Unlimited: req.Recurrence.Unlimited}
	}
	if req.Card != nil {
		body.CardData = &cardData{
			CardNumber: req.Card.CardNumber,
			CardHolder: req.Card.CardHolder,
			Expiry:     req.Card.ExpiryMMYY,
			CVV:        req.Card.CVV,
			NationalID: req.Card.NationalID,
		}
	}

	var resp initiateResponse
	if err := c.postJSON(ctx, c.baseURL+"/initiate-payment", body, &resp); err != nil {
		return nil, err
	}
	if resp.Success == nil {
		return nil, domain.NewTransportError("", fmt.Errorf("%w: missing success flag", domain.ErrMalformedResponse))
	}

	txn := resp.TransactionID
	if txn == "" {
		txn = req.TransactionID
	}
	return &domain.GatewayResult{
		Success:       *resp.Success,
		TransactionID: txn,
		DocToken:      resp.DocToken,
		DocumentID:    resp.IDDoc,
		PaymentURL:    resp.PaymentURL,
		ShvaCode:      strings.TrimSpace(resp.ShvaCode),
		Message:       resp.Message,
	}, nil
}

// CheckStatus implements domain.PaymentGateway
func (c *Client) CheckStatus(ctx context.Context, docToken string) (bool, error) {
	form := url.Values{}
	form.Set("docToken", docToken)
	form.Set("apiBit", c.apiBit)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.statusURL, strings.NewReader(form.Encode()))
	if err != nil {
		return false, fmt.Errorf("failed to create status request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp statusResponse
	if err := c.do(httpReq, &resp); err != nil {
		return false, err
	}
	return resp.Success, nil
}

// SendReceipt implements domain.PaymentGateway
func (c *Client) SendReceipt(ctx context.Context, documentID string, channel domain.ReceiptChannel, contact string) error {
	var resp receiptResponse
	body := receiptRequest{DocumentID: documentID, Channel: string(channel), Contact: contact}
	if err := c.postJSON(ctx, c.baseURL+"/send-receipt", body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return domain.NewTransportError(resp.Message, fmt.Errorf("receipt rejected: %s", resp.Message))
	}
	return nil
}

func (c *Client) postJSON(ctx context.Context, endpoint string, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	return c.do(httpReq, out)
}

// do sends the request and decodes the JSON body.
// Deadline errors become timeouts, everything else a transport failure.
func (c *Client) do(httpReq *http.Request, out interface{}) error {
	resp, err := c.client.Do(httpReq)
	if err != nil {
		if httpReq.Context().Err() == context.DeadlineExceeded || isTimeout(err) {
			return domain.NewTimeoutError(domain.MsgPaymentTimeout, fmt.Errorf("%w: %v", domain.ErrGatewayTimeout, err))
		}
		return domain.NewTransportError("", fmt.Errorf("%w: %v", domain.ErrGatewayTransport, err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return domain.NewTransportError("", fmt.Errorf("%w: failed to read response: %v", domain.ErrGatewayTransport, err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.NewTransportError("", fmt.Errorf("%w: status %d", domain.ErrGatewayTransport, resp.StatusCode))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return domain.NewTransportError("", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err))
	}
	return nil
}

func isTimeout(err error) bool {
	type timeout interface{ Timeout() bool }
	t, ok := err.(timeout)
	return ok && t.Timeout()
}

func validateRequest(req *domain.PaymentRequest) error {
	if req.TransactionID == "" {
		return domain.NewValidationError("transaction_id", domain.ErrNoActiveAttempt)
	}
	if len(req.Items) == 0 {
		return domain.NewValidationError("item_id", domain.ErrMissingItemID)
	}
	for _, it := range req.Items {
		if it.ItemID == "" {
			return domain.NewValidationError("item_id", domain.ErrMissingItemID)
		}
		if it.Amount <= 0 {
			return domain.NewValidationError("amount", domain.ErrInvalidAmount)
		}
	}
	if !domain.IsValidName(req.Customer.FirstName) {
		return domain.NewValidationError("first_name", domain.ErrInvalidFirstName)
	}
	if !domain.IsValidName(req.Customer.LastName) {
		return domain.NewValidationError("last_name", domain.ErrInvalidLastName)
	}
	if !domain.IsValidPhone(req.Customer.Phone) {
		return domain.NewValidationError("phone", domain.ErrInvalidPhone)
	}
	return nil
}
