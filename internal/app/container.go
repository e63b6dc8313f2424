package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/config"
	httpx "github.com/you/kioskpay/internal/http"
	"github.com/you/kioskpay/internal/http/handlers"
	"github.com/you/kioskpay/internal/http/middleware"
	"github.com/you/kioskpay/internal/infrastructure/audit"
	"github.com/you/kioskpay/internal/infrastructure/auth"
	"github.com/you/kioskpay/internal/infrastructure/database"
	"github.com/you/kioskpay/internal/infrastructure/directory"
	"github.com/you/kioskpay/internal/infrastructure/gateway"
	"github.com/you/kioskpay/internal/infrastructure/notifications"
	"github.com/you/kioskpay/internal/infrastructure/repositories"
	"github.com/you/kioskpay/internal/scheduler"
	"github.com/you/kioskpay/internal/services"
	"github.com/you/kioskpay/internal/vault"
)

// selectionGuardTTL bounds a payment method guard nobody released
const selectionGuardTTL = 2 * time.Minute

// Infrastructure is what the container connects to.
// Zero fields are opened from the configuration.
type Infrastructure struct {
	DB        *gorm.DB
	Redis     *redis.Client
	Scheduler scheduler.Scheduler
	Seed      *domain.KioskConfig
	Gateway   domain.PaymentGateway
}

// Container holds all dependencies
type Container struct {
	// Config
	Config *config.Config

	// Infrastructure
	DB          *gorm.DB
	RedisClient *redis.Client
	Scheduler   scheduler.Scheduler
	Casbin      *auth.CasbinService

	// Repositories
	SessionRepo      domain.SessionRepository
	VerificationRepo domain.VerificationRepository
	AttemptRepo      domain.AttemptRepository
	DonorRepo        domain.DonorRepository
	ConfigRepo       domain.ConfigRepository
	SelectionGuard   domain.SelectionGuard

	// Services
	AuditLogger     domain.AuditLogger
	TokenSvc        domain.TokenService
	NotificationSvc domain.NotificationService
	Gateway         domain.PaymentGateway
	Directory       domain.DonorDirectory
	PolicySvc       domain.PolicyService
	ConfigSvc       domain.KioskConfigService
	IdentitySvc     domain.DonorIdentityResolver
	ReceiptSvc      domain.ReceiptService
	GabbaiSvc       domain.GabbaiService
	Executor        domain.PaymentExecutor
	Vault           *vault.Store
	Flow            *services.FlowServiceImpl
}

// NewContainer connects to the configured Postgres and Redis and wires every service
func NewContainer(cfg *config.Config) (*Container, error) {
	db, err := database.Open(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	rdb, err := database.ConnectRedis(context.Background(), cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, err
	}
	return NewContainerWith(cfg, Infrastructure{DB: db, Redis: rdb})
}

// NewContainerWith wires every service on top of already opened infrastructure
func NewContainerWith(cfg *config.Config, infra Infrastructure) (*Container, error) {
	container := &Container{
		Config:      cfg,
		DB:          infra.DB,
		RedisClient: infra.Redis,
		Scheduler:   infra.Scheduler,
		Gateway:     infra.Gateway,
	}
	if container.Scheduler == nil {
		container.Scheduler = scheduler.NewReal()
	}

	seed := infra.Seed
	if seed == nil {
		var err error
		if seed, err = config.LoadKiosk(cfg.KioskSeedPath); err != nil {
			return nil, err
		}
	}

	if err := container.initDatabase(); err != nil {
		return nil, err
	}
	container.initRepositories()
	container.initServices(seed)

	return container, nil
}

func (c *Container) initDatabase() error {
	if err := database.AutoMigrate(c.DB, repositories.Models()...); err != nil {
		return err
	}

	cas, err := auth.NewCasbinService(c.DB, c.Config.CasbinModelPath)
	if err != nil {
		return fmt.Errorf("failed to initialize casbin: %w", err)
	}
	c.Casbin = cas
	return nil
}

func (c *Container) initRepositories() {
	c.SessionRepo = repositories.NewSessionRepository(c.RedisClient, c.Config.SessionTTL)
	c.VerificationRepo = repositories.NewVerificationRepository(c.RedisClient, c.Config.VerificationTTL)
	c.SelectionGuard = repositories.NewSelectionGuard(c.RedisClient)
	c.ConfigRepo = repositories.NewConfigRepository(c.RedisClient)
	c.AttemptRepo = repositories.NewAttemptRepository(c.DB)
	c.DonorRepo = repositories.NewDonorRepository(c.DB)
}

func (c *Container) initServices(seed *domain.KioskConfig) {
	cfg := c.Config

	// Initialize basic services
	c.AuditLogger = audit.NewLogAuditLogger(os.Stdout)
	c.TokenSvc = auth.NewJWTService(cfg.JWTSecret, cfg.JWTIssuer, cfg.AccessTTL)
	c.NotificationSvc = notifications.NewTwilioService(cfg.TwilioSID, cfg.TwilioToken, cfg.TwilioFrom)
	c.PolicySvc = services.NewPolicyService(c.Casbin)
	if c.Gateway == nil {
		c.Gateway = gateway.NewClient(cfg.GatewayBaseURL, cfg.GatewayStatusURL, cfg.GatewayToken, cfg.GatewayAPIBit, cfg.GatewayRequestTimeout)
	}

	// The donor directory is either remote or backed by our own SMS codes
	if cfg.DirectoryMode == config.DirectoryRemote {
		c.Directory = directory.NewClient(cfg.DirectoryBaseURL, cfg.DirectoryTimeout)
	} else {
		otpConfig := services.OTPConfig{
			Length:       cfg.OTP_Length,
			TTL:          cfg.OTP_TTL,
			ResendWindow: cfg.OTP_ResendWindow,
		}
		c.Directory = services.NewLocalDonorDirectory(
			c.NotificationSvc,
			c.DonorRepo,
			auth.NewCodeHasher(cfg.JWTSecret),
			c.RedisClient,
			cfg.GabbaiPhones,
			otpConfig,
		)
	}

	c.ConfigSvc = services.NewConfigService(c.ConfigRepo, seed, c.AuditLogger)
	c.IdentitySvc = services.NewIdentityService(c.Directory, c.VerificationRepo, c.AuditLogger, c.Scheduler, services.IdentityConfig{
		MaxAttempts:    cfg.VerificationMaxAttempts,
		ResendCooldown: cfg.VerificationResendCooldown,
	})
	c.ReceiptSvc = services.NewReceiptService(c.Gateway, c.AuditLogger)
	c.GabbaiSvc = services.NewGabbaiService(c.Directory, c.TokenSvc, c.AuditLogger, c.RedisClient, services.GabbaiConfig{
		MaxAttempts: cfg.GabbaiMaxAttempts,
		LockWindow:  cfg.GabbaiLockWindow,
		CodeTTL:     cfg.OTP_TTL,
	})
	c.Executor = services.NewPaymentExecutor(c.Gateway, c.Scheduler, services.ExecutorConfig{
		SyncTimeout:    cfg.SyncPaymentTimeout,
		PollInterval:   cfg.PollInterval,
		MaxPolls:       cfg.MaxPolls,
		ApprovedPrefix: cfg.ApprovedPrefix,
	})
	c.Vault = vault.NewStore(c.Scheduler, cfg.CardTTL)

	// Initialize the flow (depends on all other services)
	c.Flow = services.NewFlowService(services.FlowDependencies{
		Sessions:  c.SessionRepo,
		Config:    c.ConfigSvc,
		Identity:  c.IdentitySvc,
		Selector:  services.NewPaymentMethodSelector(c.SelectionGuard, selectionGuardTTL),
		Executor:  c.Executor,
		Vault:     c.Vault,
		Receipts:  c.ReceiptSvc,
		Attempts:  c.AttemptRepo,
		Donors:    c.DonorRepo,
		Publisher: notifications.NewTransitionPublisher(c.RedisClient),
		Audit:     c.AuditLogger,
		Scheduler: c.Scheduler,
	})
}

// Router builds the HTTP API over the container services
func (c *Container) Router() *gin.Engine {
	h := httpx.Handlers{
		Sessions: handlers.NewSessionHandlers(c.Flow, c.ConfigSvc),
		Gabbai:   handlers.NewGabbaiHandlers(c.GabbaiSvc),
		Admin:    handlers.NewAdminHandlers(c.ConfigSvc, c.AttemptRepo),
		Policies: handlers.NewPolicyHandlers(c.PolicySvc),
	}
	jwtMW := middleware.NewAuthMW(c.TokenSvc)
	casbinMW := middleware.NewCasbinMW(c.Casbin)
	return httpx.BuildRouter(h, jwtMW, casbinMW)
}

// Close stops pending timers and closes all connections
func (c *Container) Close() error {
	if c.Flow != nil {
		c.Flow.Stop()
	}
	if rs, ok := c.Scheduler.(*scheduler.Real); ok {
		rs.Stop()
	}

	if c.RedisClient != nil {
		c.RedisClient.Close()
	}

	if c.DB != nil {
		sqlDB, err := c.DB.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	}

	return nil
}
