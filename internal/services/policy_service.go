package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/you/kioskpay/domain"
)

const adminPrefix = "/admin"

// RoleSubject is the Casbin subject for a token role
func RoleSubject(role string) string {
	return "role_" + role
}

var rolePattern = regexp.MustCompile(`^[a-z][a-z0-9_]{1,31}$`)

// PolicyServiceImpl manages the rules guarding the admin routes.
// Only /admin resources can be granted, actions are the regexp Casbin
// matches against the HTTP method, and the gabbai wildcard grant cannot
// be removed.
type PolicyServiceImpl struct {
	enforcer domain.CasbinEnforcer
}

// NewPolicyService creates a policy service over a Casbin enforcer
func NewPolicyService(enforcer domain.CasbinEnforcer) domain.PolicyService {
	return &PolicyServiceImpl{enforcer: enforcer}
}

func validatePolicy(role, resource, action string) error {
	if !rolePattern.MatchString(role) {
		return fmt.Errorf("%w: role %q", domain.ErrPolicyInvalid, role)
	}
	if resource != adminPrefix && !strings.HasPrefix(resource, adminPrefix+"/") {
		return fmt.Errorf("%w: resource must be under %s", domain.ErrPolicyInvalid, adminPrefix)
	}
	if action == "" {
		return fmt.Errorf("%w: action is required", domain.ErrPolicyInvalid)
	}
	if _, err := regexp.Compile(action); err != nil {
		return fmt.Errorf("%w: action is not a valid pattern", domain.ErrPolicyInvalid)
	}
	return nil
}

// AddPolicy grants role the action pattern on resource
func (p *PolicyServiceImpl) AddPolicy(role, resource, action string) error {
	if err := validatePolicy(role, resource, action); err != nil {
		return err
	}
	added, err := p.enforcer.AddPolicy(RoleSubject(role), resource, action)
	if err != nil {
		return fmt.Errorf("failed to add policy: %w", err)
	}
	if !added {
		return nil
	}
	if err := p.enforcer.SavePolicy(); err != nil {
		return fmt.Errorf("failed to persist policies: %w", err)
	}
	return nil
}

// RemovePolicy revokes a previously granted rule
func (p *PolicyServiceImpl) RemovePolicy(role, resource, action string) error {
	subject := RoleSubject(role)
	if role == domain.RoleGabbai && resource == adminPrefix+"/*" {
		return domain.ErrPolicyLockout
	}
	removed, err := p.enforcer.RemovePolicy(subject, resource, action)
	if err != nil {
		return fmt.Errorf("failed to remove policy: %w", err)
	}
	if !removed {
		return domain.ErrPolicyNotFound
	}
	if err := p.enforcer.SavePolicy(); err != nil {
		return fmt.Errorf("failed to persist policies: %w", err)
	}
	return nil
}

// CheckPermission reports whether role may perform action on resource
func (p *PolicyServiceImpl) CheckPermission(role, resource, action string) (bool, error) {
	return p.enforcer.Enforce(RoleSubject(role), resource, action)
}

// GetPolicies lists the stored rules; nil when the enforcer cannot be read
func (p *PolicyServiceImpl) GetPolicies() [][]string {
	policies, err := p.enforcer.GetPolicy()
	if err != nil {
		return nil
	}
	return policies
}
