package ledger

import (
	"sync"

	"github.com/janhavidudhat/CSC468-group3/internal/domain"
)

// Memory is a thread-safe in-memory Ledger keyed by user id. The mutex
// makes every Update atomic, so preconditions and mutations observe a
// stable document by construction. It is the default driver and the one
// the tests run against.
type Memory struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
}

// NewMemory creates an empty in-memory ledger.
func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*domain.Account),
	}
}

func (m *Memory) Exists(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.accounts[userID]
	return ok
}

func (m *Memory) Get(userID string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.accounts[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return a.Clone(), nil
}

func (m *Memory) Create(a *domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.accounts[a.UserID]; exists {
		return domain.ErrUserExists
	}
	m.accounts[a.UserID] = a.Clone()
	return nil
}

func (m *Memory) Update(userID string, expect Precondition, mutate Mutation) (*domain.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.accounts[userID]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	if expect != nil {
		if err := expect(stored); err != nil {
			return nil, err
		}
	}
	next := stored.Clone()
	mutate(next)
	next.Version = stored.Version + 1
	m.accounts[userID] = next
	return next.Clone(), nil
}

func (m *Memory) Close() error {
	return nil
}
