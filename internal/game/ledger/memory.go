package ledger

import (
	"context"
	"sync"
)

// MemoryStore guarda as contas em memória. Usado em testes e no modo local sem Postgres.
type MemoryStore struct {
	mu       sync.Mutex
	accounts map[string]*Account
	applied  map[string]struct{}

	// FailCredit permite simular falha de persistência para um apostador
	FailCredit func(bettorID string) error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts: make(map[string]*Account),
		applied:  make(map[string]struct{}),
	}
}

func (m *MemoryStore) Account(_ context.Context, bettorID string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[bettorID]
	if !ok {
		return Account{}, ErrNotFound
	}
	return *a, nil
}

func (m *MemoryStore) Deposit(_ context.Context, bettorID string, amount int64, ref string) (Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := m.getOrCreate(bettorID)
	if m.seen(ref) {
		return *a, nil
	}
	a.Balance += amount
	return *a, nil
}

func (m *MemoryStore) Debit(_ context.Context, bettorID string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[bettorID]
	if !ok {
		return ErrNotFound
	}
	if _, done := m.applied[ref]; done {
		return nil
	}
	if a.Balance < amount {
		return ErrInsufficientFunds
	}
	m.applied[ref] = struct{}{}
	a.Balance -= amount
	return nil
}

func (m *MemoryStore) Credit(_ context.Context, bettorID string, payout, profit int64, ref string) error {
	if m.FailCredit != nil {
		if err := m.FailCredit(bettorID); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[bettorID]
	if !ok {
		return ErrNotFound
	}
	if m.seen(ref) {
		return nil
	}
	a.Balance += payout
	a.TotalWon += profit
	return nil
}

func (m *MemoryStore) RecordLoss(_ context.Context, bettorID string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[bettorID]
	if !ok {
		return ErrNotFound
	}
	if m.seen(ref) {
		return nil
	}
	a.TotalLost += amount
	return nil
}

func (m *MemoryStore) Refund(_ context.Context, bettorID string, amount int64, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[bettorID]
	if !ok {
		return ErrNotFound
	}
	if m.seen(ref) {
		return nil
	}
	a.Balance += amount
	return nil
}

// seen marca a ref como aplicada e informa se já estava. Refs vazias nunca deduplicam.
func (m *MemoryStore) seen(ref string) bool {
	if ref == "" {
		return false
	}
	if _, ok := m.applied[ref]; ok {
		return true
	}
	m.applied[ref] = struct{}{}
	return false
}

func (m *MemoryStore) getOrCreate(bettorID string) *Account {
	a, ok := m.accounts[bettorID]
	if !ok {
		a = &Account{BettorID: bettorID}
		m.accounts[bettorID] = a
	}
	return a
}
