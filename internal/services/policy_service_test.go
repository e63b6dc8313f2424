package services

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/mocks"
)

// createPolicyServiceForTest creates a PolicyService with mock Casbin enforcer
func createPolicyServiceForTest(t *testing.T) (domain.PolicyService, *mocks.MockCasbinEnforcer) {
	t.Helper()
	enforcer := mocks.NewMockCasbinEnforcer()
	return NewPolicyService(enforcer), enforcer
}

func TestPolicyServiceImpl_CheckPermission(t *testing.T) {
	svc, _ := createPolicyServiceForTest(t)

	tests := []struct {
		name     string
		role     string
		resource string
		action   string
		want     bool
	}{
		{"gabbai reads config", domain.RoleGabbai, "/admin/config", "GET", true},
		{"gabbai resets config", domain.RoleGabbai, "/admin/config/reset", "POST", true},
		{"gabbai cannot patch", domain.RoleGabbai, "/admin/config", "PATCH", false},
		{"donor has no admin access", "donor", "/admin/config", "GET", false},
		{"gabbai outside admin", domain.RoleGabbai, "/sessions", "POST", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CheckPermission(tt.role, tt.resource, tt.action)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPolicyServiceImpl_AddRemove(t *testing.T) {
	svc, enforcer := createPolicyServiceForTest(t)
	saved := 0
	enforcer.SavePolicyFunc = func() error {
		saved++
		return nil
	}

	require.NoError(t, svc.AddPolicy("auditor", "/admin/attempts", "GET"))
	ok, err := svc.CheckPermission("auditor", "/admin/attempts", "GET")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, svc.GetPolicies(), 2)

	// granting the same rule twice is a no-op
	require.NoError(t, svc.AddPolicy("auditor", "/admin/attempts", "GET"))
	assert.Equal(t, 1, saved)

	require.NoError(t, svc.RemovePolicy("auditor", "/admin/attempts", "GET"))
	ok, err = svc.CheckPermission("auditor", "/admin/attempts", "GET")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, saved)

	assert.ErrorIs(t, svc.RemovePolicy("auditor", "/admin/attempts", "GET"), domain.ErrPolicyNotFound)
}

func TestPolicyServiceImpl_AddValidation(t *testing.T) {
	svc, _ := createPolicyServiceForTest(t)

	tests := []struct {
		name     string
		role     string
		resource string
		action   string
	}{
		{"empty role", "", "/admin/config", "GET"},
		{"role with spaces", "head gabbai", "/admin/config", "GET"},
		{"donor routes", "auditor", "/sessions/*", "GET"},
		{"prefix lookalike", "auditor", "/administrator", "GET"},
		{"empty action", "auditor", "/admin/config", ""},
		{"broken pattern", "auditor", "/admin/config", "(GET"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.AddPolicy(tt.role, tt.resource, tt.action), domain.ErrPolicyInvalid)
		})
	}
	assert.Len(t, svc.GetPolicies(), 1)
}

func TestPolicyServiceImpl_KeepsGabbaiGrant(t *testing.T) {
	svc, _ := createPolicyServiceForTest(t)

	err := svc.RemovePolicy(domain.RoleGabbai, "/admin/*", "(GET)|(PUT)|(POST)|(DELETE)")
	assert.ErrorIs(t, err, domain.ErrPolicyLockout)

	ok, err := svc.CheckPermission(domain.RoleGabbai, "/admin/config", "PUT")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPolicyServiceImpl_EnforcerFailures(t *testing.T) {
	svc, enforcer := createPolicyServiceForTest(t)
	enforcer.SavePolicyFunc = func() error { return errors.New("db down") }

	err := svc.AddPolicy("auditor", "/admin/attempts", "GET")
	assert.ErrorContains(t, err, "failed to persist policies: db down")

	enforcer.GetPolicyFunc = func() ([][]string, error) { return nil, errors.New("db down") }
	assert.Nil(t, svc.GetPolicies())
}
