package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/gorm-adapter/v3"
	"github.com/you/kioskpay/domain"
	"gorm.io/gorm"
)

// GabbaiSubject is the Casbin subject of the gabbai role
const GabbaiSubject = "role_" + domain.RoleGabbai

// AdminGrant is the rule that keeps the gabbai on the whole admin surface
var AdminGrant = []string{GabbaiSubject, "/admin/*", "(GET)|(PUT)|(POST)|(DELETE)"}

// CasbinService owns the gorm backed enforcer behind the admin routes
type CasbinService struct{ E *casbin.Enforcer }

var _ domain.CasbinEnforcer = (*CasbinService)(nil)

// NewCasbinService loads policies from the database and seeds the admin grant on first start
func NewCasbinService(db *gorm.DB, modelPath string) (*CasbinService, error) {
	adp, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin adapter: %w", err)
	}
	e, err := casbin.NewEnforcer(modelPath, adp)
	if err != nil {
		return nil, fmt.Errorf("failed to create enforcer: %w", err)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("failed to load policies: %w", err)
	}
	svc := &CasbinService{E: e}
	if err := svc.seed(); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *CasbinService) seed() error {
	existing, err := s.E.GetPolicy()
	if err != nil {
		return fmt.Errorf("failed to read policies: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	if _, err := s.E.AddPolicy(AdminGrant[0], AdminGrant[1], AdminGrant[2]); err != nil {
		return fmt.Errorf("failed to seed admin grant: %w", err)
	}
	return s.E.SavePolicy()
}

func (s *CasbinService) AddPolicy(params ...interface{}) (bool, error) {
	return s.E.AddPolicy(params...)
}

func (s *CasbinService) RemovePolicy(params ...interface{}) (bool, error) {
	return s.E.RemovePolicy(params...)
}

func (s *CasbinService) Enforce(rvals ...interface{}) (bool, error) {
	return s.E.Enforce(rvals...)
}

func (s *CasbinService) GetPolicy() ([][]string, error) {
	return s.E.GetPolicy()
}

func (s *CasbinService) SavePolicy() error {
	return s.E.SavePolicy()
}
