package mocks

import "github.com/you/kioskpay/domain"

// MockPolicyService keeps admin rules in memory. Each Func field, when set,
// replaces the in-memory behavior for that call.
type MockPolicyService struct {
	AddPolicyFunc       func(role, resource, action string) error
	RemovePolicyFunc    func(role, resource, action string) error
	CheckPermissionFunc func(role, resource, action string) (bool, error)
	GetPoliciesFunc     func() [][]string

	Rules [][]string
}

var _ domain.PolicyService = (*MockPolicyService)(nil)

// NewMockPolicyService starts with the gabbai wildcard grant
func NewMockPolicyService() *MockPolicyService {
	return &MockPolicyService{
		Rules: [][]string{{"role_" + domain.RoleGabbai, "/admin/*", "(GET)|(PUT)|(POST)|(DELETE)"}},
	}
}

func (m *MockPolicyService) index(role, resource, action string) int {
	for i, r := range m.Rules {
		if r[0] == "role_"+role && r[1] == resource && r[2] == action {
			return i
		}
	}
	return -1
}

func (m *MockPolicyService) AddPolicy(role, resource, action string) error {
	if m.AddPolicyFunc != nil {
		return m.AddPolicyFunc(role, resource, action)
	}
	if m.index(role, resource, action) < 0 {
		m.Rules = append(m.Rules, []string{"role_" + role, resource, action})
	}
	return nil
}

func (m *MockPolicyService) RemovePolicy(role, resource, action string) error {
	if m.RemovePolicyFunc != nil {
		return m.RemovePolicyFunc(role, resource, action)
	}
	i := m.index(role, resource, action)
	if i < 0 {
		return domain.ErrPolicyNotFound
	}
	m.Rules = append(m.Rules[:i], m.Rules[i+1:]...)
	return nil
}

// CheckPermission only matches exact rules
func (m *MockPolicyService) CheckPermission(role, resource, action string) (bool, error) {
	if m.CheckPermissionFunc != nil {
		return m.CheckPermissionFunc(role, resource, action)
	}
	return m.index(role, resource, action) >= 0, nil
}

func (m *MockPolicyService) GetPolicies() [][]string {
	if m.GetPoliciesFunc != nil {
		return m.GetPoliciesFunc()
	}
	return m.Rules
}
