package config

import (
	"os"
	"testing"

	"github.com/joho/godotenv"

	"github.com/you/kioskpay/internal/config"
)

// Endpoints are the fake remote services a test server talks to
type Endpoints struct {
	GatewayURL   string
	StatusURL    string
	DirectoryURL string
}

// LoadTestConfig builds an in-process configuration pointing at the given fakes.
// Values from .env.test, when present, override the defaults.
func LoadTestConfig(t *testing.T, ep Endpoints) *config.Config {
	t.Helper()

	if err := godotenv.Load(".env.test"); err != nil && !os.IsNotExist(err) {
		t.Fatalf("Failed to load .env.test: %v", err)
	}

	file := &config.ConfigFile{}
	file.App.GinMode = "test"
	file.JWT.Secret = "e2e-test-secret"
	file.JWT.Issuer = "kioskpay-test"
	file.JWT.AccessTTL = "30m"
	file.Casbin.ModelPath = "../../../config/rbac_model.conf"
	file.Gateway.BaseURL = ep.GatewayURL
	file.Gateway.StatusURL = ep.StatusURL
	file.Gateway.Token = "gw-token"
	file.Gateway.APIBit = "api-bit"
	file.Gateway.RequestTimeout = "2s"
	file.Directory.Mode = config.DirectoryRemote
	file.Directory.BaseURL = ep.DirectoryURL
	file.Directory.Timeout = "2s"
	file.Payment.SyncTimeout = "2s"
	file.Payment.PollInterval = "20ms"
	file.Payment.MaxPolls = 50
	file.Verification.ResendCooldown = "60s"
	file.Gabbai.Phones = []string{"054-999-8888"}

	cfg, err := file.Flatten()
	if err != nil {
		t.Fatalf("Failed to build test configuration: %v", err)
	}
	return cfg
}
