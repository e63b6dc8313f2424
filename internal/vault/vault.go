// Package vault holds card data in process memory between card entry and
// payment submission. Data is bound to one transaction id and handed out once.
package vault

import (
	"sync"
	"time"

	"github.com/you/kioskpay/domain"
	"github.com/you/kioskpay/internal/scheduler"
)

// Vault holds the card data of a single payment attempt
type Vault struct {
	mu     sync.Mutex
	txnID  string
	data   *domain.SensitiveCardData
	expiry func()
}

// Set stores data for txnID, replacing anything held before
func (v *Vault) Set(txnID string, data domain.SensitiveCardData) {
	v.set(txnID, data, nil)
}

func (v *Vault) set(txnID string, data domain.SensitiveCardData, expiry func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clearLocked()
	v.txnID = txnID
	v.data = &data
	v.expiry = expiry
}

// Take hands out the data once. A mismatched transaction id clears the vault.
func (v *Vault) Take(txnID string) (domain.SensitiveCardData, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.data == nil {
		return domain.SensitiveCardData{}, domain.ErrCardDataMissing
	}
	if v.txnID != txnID {
		v.clearLocked()
		return domain.SensitiveCardData{}, domain.ErrCardDataMissing
	}
	data := *v.data
	v.clearLocked()
	return data, nil
}

// Holds reports whether data for txnID is present
func (v *Vault) Holds(txnID string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.data != nil && v.txnID == txnID
}

// Clear drops any held data; calling it again is a no-op
func (v *Vault) Clear() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clearLocked()
}

func (v *Vault) clearLocked() {
	if v.data != nil {
		*v.data = domain.SensitiveCardData{}
	}
	v.data = nil
	v.txnID = ""
	if v.expiry != nil {
		v.expiry()
		v.expiry = nil
	}
}

// Store keeps one vault per donation session and expires idle entries
type Store struct {
	mu     sync.Mutex
	vaults map[string]*Vault
	sched  scheduler.Scheduler
	ttl    time.Duration
}

// NewStore creates a store whose entries are cleared ttl after Set
func NewStore(sched scheduler.Scheduler, ttl time.Duration) *Store {
	return &Store{
		vaults: make(map[string]*Vault),
		sched:  sched,
		ttl:    ttl,
	}
}

// Set stores card data for the session's current transaction
func (s *Store) Set(sessionID, txnID string, data domain.SensitiveCardData) {
	v := s.vault(sessionID)
	var cancel func()
	if s.ttl > 0 && s.sched != nil {
		cancel = s.sched.After(s.ttl, func() { s.expire(sessionID, v, txnID) })
	}
	v.set(txnID, data, cancel)
}

// Take consumes the session's card data for txnID
func (s *Store) Take(sessionID, txnID string) (domain.SensitiveCardData, error) {
	s.mu.Lock()
	v, ok := s.vaults[sessionID]
	delete(s.vaults, sessionID)
	s.mu.Unlock()
	if !ok {
		return domain.SensitiveCardData{}, domain.ErrCardDataMissing
	}
	return v.Take(txnID)
}

// Holds reports whether the session has card data for txnID
func (s *Store) Holds(sessionID, txnID string) bool {
	s.mu.Lock()
	v, ok := s.vaults[sessionID]
	s.mu.Unlock()
	return ok && v.Holds(txnID)
}

// Clear drops the session's card data; calling it again is a no-op
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	v, ok := s.vaults[sessionID]
	delete(s.vaults, sessionID)
	s.mu.Unlock()
	if ok {
		v.Clear()
	}
}

// ClearAll drops every held entry
func (s *Store) ClearAll() {
	s.mu.Lock()
	vaults := s.vaults
	s.vaults = make(map[string]*Vault)
	s.mu.Unlock()
	for _, v := range vaults {
		v.Clear()
	}
}

// Len returns the number of sessions holding card data
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.vaults)
}

func (s *Store) expire(sessionID string, v *Vault, txnID string) {
	s.mu.Lock()
	cur, ok := s.vaults[sessionID]
	if !ok || cur != v || !v.Holds(txnID) {
		s.mu.Unlock()
		return
	}
	delete(s.vaults, sessionID)
	s.mu.Unlock()
	v.Clear()
}

func (s *Store) vault(sessionID string) *Vault {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[sessionID]
	if !ok {
		v = &Vault{}
		s.vaults[sessionID] = v
	}
	return v
}
