package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/you/kioskpay/domain"
)

// MockVerificationRepository implements domain.VerificationRepository as an in-memory store
type MockVerificationRepository struct {
	SaveFunc func(ctx context.Context, key string, v *domain.VerificationSession) error
	FindFunc func(ctx context.Context, key string) (*domain.VerificationSession, error)

	mu     sync.Mutex
	items  map[string]domain.VerificationSession
	closed map[string]bool
}

// NewMockVerificationRepository creates a new MockVerificationRepository
func NewMockVerificationRepository() *MockVerificationRepository {
	return &MockVerificationRepository{
		items:  make(map[string]domain.VerificationSession),
		closed: make(map[string]bool),
	}
}

// Save stores the exchange and reopens the key
func (m *MockVerificationRepository) Save(ctx context.Context, key string, v *domain.VerificationSession) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, key, v)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[key] = *v
	delete(m.closed, key)
	return nil
}

// Find returns the stored exchange
func (m *MockVerificationRepository) Find(ctx context.Context, key string) (*domain.VerificationSession, error) {
	if m.FindFunc != nil {
		return m.FindFunc(ctx, key)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.items[key]
	if !ok {
		return nil, domain.ErrVerificationNotStarted
	}
	return &v, nil
}

// Delete removes the exchange
func (m *MockVerificationRepository) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

// Close removes the exchange and marks the key closed
func (m *MockVerificationRepository) Close(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	m.closed[key] = true
	return nil
}

// IsClosed reports whether Close was called for key
func (m *MockVerificationRepository) IsClosed(ctx context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed[key], nil
}

// MockSelectionGuard implements domain.SelectionGuard in memory, ignoring ttl
type MockSelectionGuard struct {
	AcquireFunc func(ctx context.Context, key string, ttl time.Duration) (bool, error)

	mu   sync.Mutex
	held map[string]bool
}

// NewMockSelectionGuard creates a new MockSelectionGuard
func NewMockSelectionGuard() *MockSelectionGuard {
	return &MockSelectionGuard{held: make(map[string]bool)}
}

// Acquire takes the guard when it is free
func (m *MockSelectionGuard) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if m.AcquireFunc != nil {
		return m.AcquireFunc(ctx, key, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.held[key] {
		return false, nil
	}
	m.held[key] = true
	return true, nil
}

// Release frees the guard
func (m *MockSelectionGuard) Release(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.held, key)
	return nil
}

// Held reports whether key is currently held
func (m *MockSelectionGuard) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.held[key]
}

// MockAttemptRepository implements domain.AttemptRepository in memory
type MockAttemptRepository struct {
	SaveFunc func(ctx context.Context, record *domain.PaymentAttemptRecord) error

	mu      sync.Mutex
	records []domain.PaymentAttemptRecord
}

// NewMockAttemptRepository creates a new MockAttemptRepository
func NewMockAttemptRepository() *MockAttemptRepository {
	return &MockAttemptRepository{}
}

// Save upserts by transaction id
func (m *MockAttemptRepository) Save(ctx context.Context, record *domain.PaymentAttemptRecord) error {
	if m.SaveFunc != nil {
		return m.SaveFunc(ctx, record)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.records {
		if m.records[i].TransactionID == record.TransactionID {
			record.ID = m.records[i].ID
			m.records[i] = *record
			return nil
		}
	}
	record.ID = uint(len(m.records) + 1)
	m.records = append(m.records, *record)
	return nil
}

// FindByTransactionID returns the row for a transaction
func (m *MockAttemptRepository) FindByTransactionID(ctx context.Context, transactionID string) (*domain.PaymentAttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.TransactionID == transactionID {
			return &r, nil
		}
	}
	return nil, errors.New("payment attempt not found")
}

// ListRecent returns the newest rows first
func (m *MockAttemptRepository) ListRecent(ctx context.Context, limit int) ([]domain.PaymentAttemptRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PaymentAttemptRecord, 0, len(m.records))
	for i := len(m.records) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// Records returns every stored row in insertion order
func (m *MockAttemptRepository) Records() []domain.PaymentAttemptRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PaymentAttemptRecord(nil), m.records...)
}

// MockDonorRepository implements domain.DonorRepository in memory
type MockDonorRepository struct {
	FindByPhoneFunc func(ctx context.Context, phone string) (*domain.DonorProfile, error)

	mu     sync.Mutex
	donors map[string]domain.DonorProfile
}

// NewMockDonorRepository creates a new MockDonorRepository seeded with profiles
func NewMockDonorRepository(profiles ...domain.DonorProfile) *MockDonorRepository {
	m := &MockDonorRepository{donors: make(map[string]domain.DonorProfile)}
	for _, p := range profiles {
		m.donors[domain.NormalizePhone(p.Phone)] = p
	}
	return m
}

// Upsert stores the profile by phone
func (m *MockDonorRepository) Upsert(ctx context.Context, profile *domain.DonorProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.donors[domain.NormalizePhone(profile.Phone)] = *profile
	return nil
}

// FindByPhone returns ErrDonorUnknown for phones never stored
func (m *MockDonorRepository) FindByPhone(ctx context.Context, phone string) (*domain.DonorProfile, error) {
	if m.FindByPhoneFunc != nil {
		return m.FindByPhoneFunc(ctx, phone)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.donors[domain.NormalizePhone(phone)]
	if !ok {
		return nil, domain.ErrDonorUnknown
	}
	return &p, nil
}

// MockConfigRepository implements domain.ConfigRepository in memory
type MockConfigRepository struct {
	GetFunc func(ctx context.Context) (*domain.KioskConfig, error)

	mu  sync.Mutex
	cfg *domain.KioskConfig
}

// NewMockConfigRepository creates a new MockConfigRepository
func NewMockConfigRepository() *MockConfigRepository {
	return &MockConfigRepository{}
}

// Get returns ErrConfigNotFound until Save is called
func (m *MockConfigRepository) Get(ctx context.Context) (*domain.KioskConfig, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg == nil {
		return nil, domain.ErrConfigNotFound
	}
	cp := *m.cfg
	return &cp, nil
}

// Save stores the configuration
func (m *MockConfigRepository) Save(ctx context.Context, cfg *domain.KioskConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *cfg
	m.cfg = &cp
	return nil
}

// Delete clears the configuration
func (m *MockConfigRepository) Delete(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg = nil
	return nil
}

// Compile-time interface compliance verification
var (
	_ domain.VerificationRepository = (*MockVerificationRepository)(nil)
	_ domain.SelectionGuard         = (*MockSelectionGuard)(nil)
	_ domain.AttemptRepository      = (*MockAttemptRepository)(nil)
	_ domain.DonorRepository        = (*MockDonorRepository)(nil)
	_ domain.ConfigRepository       = (*MockConfigRepository)(nil)
)
