package mocks_test

import (
	"context"
	"errors"
	"testing"

	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/mocks"
)

// Example demonstrating how to use mocks in table-driven tests
// This file serves as documentation for the mock system
func TestMockUsageExample(t *testing.T) {
	tests := []struct {
		name          string
		code          string
		setupMocks    func(*mocks.MockDonorDirectory)
		expectedName  string
		expectedError error
	}{
		{
			name:         "default directory accepts 123456",
			code:         "123456",
			setupMocks:   func(d *mocks.MockDonorDirectory) {},
			expectedName: "Moshe",
		},
		{
			name:          "default directory rejects other codes",
			code:          "654321",
			setupMocks:    func(d *mocks.MockDonorDirectory) {},
			expectedError: domain.ErrCodeInvalid,
		},
		{
			name: "override returns a custom profile",
			code: "111111",
			setupMocks: func(d *mocks.MockDonorDirectory) {
				d.VerifyCodeFunc = func(ctx context.Context, phone, code, sessionID string, gabbai bool) (*domain.DonorProfile, error) {
					return &domain.DonorProfile{FirstName: "Sarah", Phone: phone}, nil
				}
			},
			expectedName: "Sarah",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := mocks.NewMockDonorDirectory()
			tt.setupMocks(dir)

			profile, err := dir.VerifyCode(context.Background(), "0501234567", tt.code, "dir_session", false)
			if tt.expectedError != nil {
				if !errors.Is(err, tt.expectedError) {
					t.Fatalf("expected error %v, got %v", tt.expectedError, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if profile.FirstName != tt.expectedName {
				t.Errorf("expected first name %s, got %s", tt.expectedName, profile.FirstName)
			}
			if dir.VerifyCalls() != 1 {
				t.Errorf("expected 1 verify call, got %d", dir.VerifyCalls())
			}
		})
	}
}

// Example of the default gateway behavior used by flow tests
func TestMockPaymentGatewayDefaults(t *testing.T) {
	gw := mocks.NewMockPaymentGateway()
	ctx := context.Background()

	res, err := gw.InitiatePayment(ctx, &domain.PaymentRequest{TransactionID: "txn_1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Success || res.ShvaCode != "000" || res.DocumentID != "doc_txn_1" {
		t.Errorf("unexpected default result: %+v", res)
	}

	ok, err := gw.CheckStatus(ctx, "tok")
	if err != nil || ok {
		t.Errorf("default status check should report pending, got %v %v", ok, err)
	}
	if len(gw.Requests()) != 1 || gw.StatusCalls() != 1 {
		t.Errorf("calls not recorded: %d requests, %d status checks", len(gw.Requests()), gw.StatusCalls())
	}
}

// Example of the gabbai admin policy the casbin mock ships with
func TestMockCasbinEnforcerDefaults(t *testing.T) {
	e := mocks.NewMockCasbinEnforcer()

	tests := []struct {
		sub, obj, act string
		expected      bool
	}{
		{"role_gabbai", "/admin/config", "GET", true},
		{"role_gabbai", "/admin/config/reset", "POST", true},
		{"role_gabbai", "/admin/config", "PATCH", false},
		{"role_donor", "/admin/config", "GET", false},
		{"role_gabbai", "/sessions", "POST", false},
	}

	for _, tt := range tests {
		allowed, err := e.Enforce(tt.sub, tt.obj, tt.act)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if allowed != tt.expected {
			t.Errorf("Enforce(%s, %s, %s) = %v, expected %v", tt.sub, tt.obj, tt.act, allowed, tt.expected)
		}
	}

	tokens := mocks.NewMockTokenService()
	token, _ := tokens.GenerateAdminToken("0549998888", domain.RoleGabbai)
	claims, err := tokens.ValidateAdminToken(token)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims.Role != domain.RoleGabbai || claims.Subject != "0549998888" {
		t.Errorf("unexpected claims: %+v", claims)
	}
}
