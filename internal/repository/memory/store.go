package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"

	"bankteller/internal/domain"
)

// Store keeps accounts and the transaction log in process memory. It backs
// unit tests and the no-database mode; the postgres store is the production
// implementation of the same interfaces.
type Store struct {
	mu       sync.RWMutex
	accounts map[string]*domain.Account
	log      []*domain.Transaction

	// FailTransferAfterDebit, when set, makes Transfer fail between its
	// debit and credit steps, leaving state untouched. Used by tests to
	// exercise the all-or-nothing contract.
	FailTransferAfterDebit error
}

func NewStore() *Store {
	return &Store{
		accounts: make(map[string]*domain.Account),
	}
}

func (s *Store) Insert(ctx context.Context, account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.accounts[account.ID]; exists {
		return fmt.Errorf("%w: account %s already exists", domain.ErrPersistence, account.ID)
	}

	cp := *account
	s.accounts[account.ID] = &cp

	return nil
}

func (s *Store) Get(ctx context.Context, id string) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, exists := s.accounts[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}

	cp := *account
	return &cp, nil
}

func (s *Store) List(ctx context.Context) ([]*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Account, 0, len(s.accounts))
	for _, account := range s.accounts {
		cp := *account
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result, nil
}

func (s *Store) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, exists := s.accounts[id]
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}

	next := account.Balance.Add(delta)
	if next.IsNegative() {
		return fmt.Errorf("%w: account %s", domain.ErrInsufficientFunds, id)
	}
	account.Balance = next

	return nil
}

func (s *Store) Append(ctx context.Context, tx *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *tx
	s.log = append(s.log, &cp)

	return nil
}

func (s *Store) All(ctx context.Context) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Transaction, len(s.log))
	for i, tx := range s.log {
		cp := *tx
		result[i] = &cp
	}

	// The log is appended in order already; the stable sort keeps insertion
	// order for equal timestamps.
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}

func (s *Store) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, debit, credit *domain.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	from, exists := s.accounts[fromID]
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, fromID)
	}
	to, exists := s.accounts[toID]
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, toID)
	}

	if from.Balance.LessThan(amount) {
		return fmt.Errorf("%w: account %s", domain.ErrInsufficientFunds, fromID)
	}

	from.Balance = from.Balance.Sub(amount)
	if s.FailTransferAfterDebit != nil {
		from.Balance = from.Balance.Add(amount)
		return fmt.Errorf("%w: %v", domain.ErrPersistence, s.FailTransferAfterDebit)
	}
	to.Balance = to.Balance.Add(amount)

	dcp, ccp := *debit, *credit
	s.log = append(s.log, &dcp, &ccp)

	return nil
}
