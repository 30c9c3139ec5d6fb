package registry

import (
	"context"
	"sync"

	"bankteller/internal/domain"
	"bankteller/internal/repository"
)

// Registry mirrors accounts in memory for display reads. The store stays
// authoritative: misses fall through to it, and entries are only written
// after a persisted mutation succeeded.
type Registry struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	store    repository.AccountStore
}

func New(store repository.AccountStore) *Registry {
	return &Registry{
		accounts: make(map[string]*domain.Account),
		store:    store,
	}
}

func (r *Registry) Get(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	account, exists := r.accounts[id]
	r.mu.RUnlock()

	if exists {
		cp := *account
		return &cp, nil
	}

	return r.Refresh(ctx, id)
}

// Refresh re-reads the account from the store and replaces the cached entry.
func (r *Registry) Refresh(ctx context.Context, id string) (*domain.Account, error) {
	account, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	r.Put(account)
	return account, nil
}

func (r *Registry) Put(account *domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := *account
	r.accounts[account.ID] = &cp
}
