package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/you/kioskpay/domain"
)

type AppConfig struct {
	Port    int    `yaml:"port"`
	GinMode string `yaml:"gin_mode"`
}

type DatabaseConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	Issuer    string `yaml:"issuer"`
	AccessTTL string `yaml:"access_ttl"`
}

type OTPConfig struct {
	TTL          string `yaml:"ttl"`
	Length       int    `yaml:"length"`
	MaxAttempts  int    `yaml:"max_attempts"`
	ResendWindow string `yaml:"resend_window"`
}

type TwilioConfig struct {
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	FromNumber string `yaml:"from_number"`
}

type CasbinConfig struct {
	ModelPath string `yaml:"model_path"`
}

type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	StatusURL      string `yaml:"status_url"`
	Token          string `yaml:"token"`
	APIBit         string `yaml:"api_bit"`
	RequestTimeout string `yaml:"request_timeout"`
	ApprovedPrefix string `yaml:"approved_prefix"`
}

type DirectoryConfig struct {
	Mode    string `yaml:"mode"`
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
}

type PaymentConfig struct {
	SyncTimeout  string `yaml:"sync_timeout"`
	PollInterval string `yaml:"poll_interval"`
	MaxPolls     int    `yaml:"max_polls"`
}

type VerificationConfig struct {
	MaxAttempts    int    `yaml:"max_attempts"`
	ResendCooldown string `yaml:"resend_cooldown"`
	TTL            string `yaml:"ttl"`
}

type KioskConfig struct {
	SeedPath   string `yaml:"seed_path"`
	SessionTTL string `yaml:"session_ttl"`
	CardTTL    string `yaml:"card_ttl"`
}

type GabbaiConfig struct {
	Phones      []string `yaml:"phones"`
	MaxAttempts int      `yaml:"max_attempts"`
	LockWindow  string   `yaml:"lock_window"`
}

type ConfigFile struct {
	App          AppConfig          `yaml:"app"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	JWT          JWTConfig          `yaml:"jwt"`
	OTP          OTPConfig          `yaml:"otp"`
	Twilio       TwilioConfig       `yaml:"twilio"`
	Casbin       CasbinConfig       `yaml:"casbin"`
	Gateway      GatewayConfig      `yaml:"gateway"`
	Directory    DirectoryConfig    `yaml:"directory"`
	Payment      PaymentConfig      `yaml:"payment"`
	Verification VerificationConfig `yaml:"verification"`
	Kiosk        KioskConfig        `yaml:"kiosk"`
	Gabbai       GabbaiConfig       `yaml:"gabbai"`
}

type Config struct {
	Port          string
	GinMode       string
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	JWTSecret     string
	JWTIssuer     string
	AccessTTL     time.Duration

	OTP_TTL          time.Duration
	OTP_Length       int
	OTP_MaxAttempts  int
	OTP_ResendWindow time.Duration

	TwilioSID       string
	TwilioToken     string
	TwilioFrom      string
	CasbinModelPath string

	GatewayBaseURL        string
	GatewayStatusURL      string
	GatewayToken          string
	GatewayAPIBit         string
	GatewayRequestTimeout time.Duration
	ApprovedPrefix        string

	DirectoryMode    string
	DirectoryBaseURL string
	DirectoryTimeout time.Duration

	SyncPaymentTimeout time.Duration
	PollInterval       time.Duration
	MaxPolls           int

	VerificationMaxAttempts    int
	VerificationResendCooldown time.Duration
	VerificationTTL            time.Duration

	KioskSeedPath string
	SessionTTL    time.Duration
	CardTTL       time.Duration

	GabbaiPhones      []string
	GabbaiMaxAttempts int
	GabbaiLockWindow  time.Duration
}

// Directory modes
const (
	DirectoryLocal  = "local"
	DirectoryRemote = "remote"
)

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Load reads .env when present, then the YAML file named by KIOSKPAY_CONFIG
// (config/config.yml by default). Environment variables override secrets.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return LoadFrom(env("KIOSKPAY_CONFIG", "config/config.yml"))
}

// LoadFrom reads and flattens the YAML file at path
func LoadFrom(path string) (*Config, error) {
	configFile, err := loadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}
	return configFile.Flatten()
}

// Flatten parses durations, applies defaults and environment overrides
func (f *ConfigFile) Flatten() (*Config, error) {
	d := durationParser{}
	accTTL := d.parse("jwt.access_ttl", f.JWT.AccessTTL, 30*time.Minute)
	otpTTL := d.parse("otp.ttl", f.OTP.TTL, 5*time.Minute)
	resWnd := d.parse("otp.resend_window", f.OTP.ResendWindow, 60*time.Second)
	gwTimeout := d.parse("gateway.request_timeout", f.Gateway.RequestTimeout, 15*time.Second)
	dirTimeout := d.parse("directory.timeout", f.Directory.Timeout, 10*time.Second)
	syncTimeout := d.parse("payment.sync_timeout", f.Payment.SyncTimeout, 30*time.Second)
	pollInterval := d.parse("payment.poll_interval", f.Payment.PollInterval, 3*time.Second)
	cooldown := d.parse("verification.resend_cooldown", f.Verification.ResendCooldown, 60*time.Second)
	verTTL := d.parse("verification.ttl", f.Verification.TTL, 10*time.Minute)
	sessionTTL := d.parse("kiosk.session_ttl", f.Kiosk.SessionTTL, 30*time.Minute)
	cardTTL := d.parse("kiosk.card_ttl", f.Kiosk.CardTTL, 5*time.Minute)
	lockWindow := d.parse("gabbai.lock_window", f.Gabbai.LockWindow, 15*time.Minute)
	if d.err != nil {
		return nil, d.err
	}

	cfg := &Config{
		Port:          fmt.Sprintf("%d", orInt(f.App.Port, 8080)),
		GinMode:       env("GIN_MODE", f.App.GinMode),
		DSN:           env("DATABASE_DSN", f.Database.DSN),
		RedisAddr:     env("REDIS_ADDR", f.Redis.Addr),
		RedisPassword: env("REDIS_PASSWORD", f.Redis.Password),
		RedisDB:       envInt("REDIS_DB", f.Redis.DB),
		JWTSecret:     env("JWT_SECRET", f.JWT.Secret),
		JWTIssuer:     f.JWT.Issuer,
		AccessTTL:     accTTL,

		OTP_TTL:          otpTTL,
		OTP_Length:       orInt(f.OTP.Length, 6),
		OTP_MaxAttempts:  orInt(f.OTP.MaxAttempts, 3),
		OTP_ResendWindow: resWnd,

		TwilioSID:       env("TWILIO_ACCOUNT_SID", f.Twilio.AccountSID),
		TwilioToken:     env("TWILIO_AUTH_TOKEN", f.Twilio.AuthToken),
		TwilioFrom:      env("TWILIO_FROM_NUMBER", f.Twilio.FromNumber),
		CasbinModelPath: orString(f.Casbin.ModelPath, "config/rbac_model.conf"),

		GatewayBaseURL:        env("GATEWAY_BASE_URL", f.Gateway.BaseURL),
		GatewayStatusURL:      env("GATEWAY_STATUS_URL", f.Gateway.StatusURL),
		GatewayToken:          env("GATEWAY_TOKEN", f.Gateway.Token),
		GatewayAPIBit:         env("GATEWAY_API_BIT", f.Gateway.APIBit),
		GatewayRequestTimeout: gwTimeout,
		ApprovedPrefix:        orString(f.Gateway.ApprovedPrefix, "000"),

		DirectoryMode:    orString(f.Directory.Mode, DirectoryLocal),
		DirectoryBaseURL: env("DIRECTORY_BASE_URL", f.Directory.BaseURL),
		DirectoryTimeout: dirTimeout,

		SyncPaymentTimeout: syncTimeout,
		PollInterval:       pollInterval,
		MaxPolls:           orInt(f.Payment.MaxPolls, 200),

		VerificationMaxAttempts:    orInt(f.Verification.MaxAttempts, 3),
		VerificationResendCooldown: cooldown,
		VerificationTTL:            verTTL,

		KioskSeedPath: orString(f.Kiosk.SeedPath, "config/kiosk.yml"),
		SessionTTL:    sessionTTL,
		CardTTL:       cardTTL,

		GabbaiPhones:      normalizePhones(f.Gabbai.Phones),
		GabbaiMaxAttempts: orInt(f.Gabbai.MaxAttempts, 3),
		GabbaiLockWindow:  lockWindow,
	}

	if cfg.DirectoryMode != DirectoryLocal && cfg.DirectoryMode != DirectoryRemote {
		return nil, fmt.Errorf("invalid directory mode %q", cfg.DirectoryMode)
	}
	if len(cfg.ApprovedPrefix) != 3 {
		return nil, fmt.Errorf("approved prefix must have 3 digits, got %q", cfg.ApprovedPrefix)
	}
	return cfg, nil
}

// LoadKiosk reads the kiosk seed configuration
func LoadKiosk(path string) (*domain.KioskConfig, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read kiosk config at %s: %w", path, err)
	}

	var kiosk domain.KioskConfig
	if err := yaml.Unmarshal(bytes, &kiosk); err != nil {
		return nil, fmt.Errorf("could not parse kiosk config yaml: %w", err)
	}
	return &kiosk, nil
}

func loadConfigFile(path string) (*ConfigFile, error) {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config file at %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(bytes, &config); err != nil {
		return nil, fmt.Errorf("could not parse config yaml: %w", err)
	}

	return &config, nil
}

// durationParser keeps the first parse error
type durationParser struct{ err error }

func (d *durationParser) parse(name, value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	v, err := time.ParseDuration(value)
	if err != nil && d.err == nil {
		d.err = fmt.Errorf("invalid %s: %w", name, err)
	}
	return v
}

func orInt(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func normalizePhones(phones []string) []string {
	out := make([]string, 0, len(phones))
	for _, p := range phones {
		if n := domain.NormalizePhone(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
