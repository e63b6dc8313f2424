package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/you/kioskpay/domain"
)

// Client implements domain.DonorDirectory against a remote donor directory
type Client struct {
	baseURL string
	client  *http.Client
}

type sendCodeRequest struct {
	Phone  string `json:"phone"`
	Gabbai bool   `json:"gabbai,omitempty"`
}

type sendCodeResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"sessionId"`
	Exists    *bool  `json:"exists,omitempty"`
	Message   string `json:"message"`
}

type verifyCodeRequest struct {
	Phone     string `json:"phone"`
	Code      string `json:"code"`
	SessionID string `json:"sessionId"`
	Gabbai    bool   `json:"gabbai,omitempty"`
}

type donorPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone"`
	IDNumber  string `json:"idNumber"`
	Email     string `json:"email"`
}

type verifyCodeResponse struct {
	Success bool          `json:"success"`
	Donor   *donorPayload `json:"donor"`
	Message string        `json:"message"`
}

// NewClient creates a remote directory client
func NewClient(baseURL string, timeout time.Duration) domain.DonorDirectory {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// SendCode implements domain.DonorDirectory
func (c *Client) SendCode(ctx context.Context, phone string, gabbai bool) (*domain.CodeDispatch, error) {
	var resp sendCodeResponse
	if err := c.post(ctx, "/send-code", sendCodeRequest{Phone: phone, Gabbai: gabbai}, &resp); err != nil {
		return nil, err
	}
	if resp.Exists != nil && !*resp.Exists {
		return nil, domain.ErrDonorUnknown
	}
	if !resp.Success {
		if gabbai {
			return nil, domain.ErrNotGabbai
		}
		return nil, domain.ErrDonorUnknown
	}
	if resp.SessionID == "" {
		return nil, domain.NewTransportError("", fmt.Errorf("%w: missing session id", domain.ErrMalformedResponse))
	}
	return &domain.CodeDispatch{SessionID: resp.SessionID, Message: resp.Message}, nil
}

// VerifyCode implements domain.DonorDirectory
func (c *Client) VerifyCode(ctx context.Context, phone, code, sessionID string, gabbai bool) (*domain.DonorProfile, error) {
	var resp verifyCodeResponse
	req := verifyCodeRequest{Phone: phone, Code: code, SessionID: sessionID, Gabbai: gabbai}
	if err := c.post(ctx, "/verify-code", req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, domain.ErrCodeInvalid
	}

	profile := &domain.DonorProfile{Phone: domain.NormalizePhone(phone)}
	if resp.Donor != nil {
		profile.FirstName = resp.Donor.FirstName
		profile.LastName = resp.Donor.LastName
		profile.NationalID = resp.Donor.IDNumber
		profile.Email = resp.Donor.Email
	}
	return profile, nil
}

func (c *Client) post(ctx context.Context, path string, in, out interface{}) error {
	data, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewTransportError("", fmt.Errorf("%w: %v", domain.ErrDirectoryTransport, err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return domain.NewTransportError("", fmt.Errorf("%w: %v", domain.ErrDirectoryTransport, err))
	}
	if resp.StatusCode >= 500 {
		return domain.NewTransportError("", fmt.Errorf("%w: status %d", domain.ErrDirectoryTransport, resp.StatusCode))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return domain.NewTransportError("", fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err))
	}
	return nil
}
