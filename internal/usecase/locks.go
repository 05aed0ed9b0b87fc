package usecase

import (
	"sync"

	"github.com/google/uuid"
)

// AccountLocks serializes read-modify-persist sequences on a single
// account's subscription record. Webhook reconciliation and quota operations
// share one instance so they exclude each other per account while different
// accounts proceed concurrently.
type AccountLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

// NewAccountLocks creates an empty lock table.
func NewAccountLocks() *AccountLocks {
	return &AccountLocks{
		locks: make(map[uuid.UUID]*sync.Mutex),
	}
}

// Lock acquires the lock for an account and returns the unlock function.
func (l *AccountLocks) Lock(accountID uuid.UUID) func() {
	l.mu.Lock()
	m, ok := l.locks[accountID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[accountID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
