package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"bankteller/internal/domain"
)

type AccountStore interface {
	Insert(ctx context.Context, account *domain.Account) error
	Get(ctx context.Context, id string) (*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)
	// AdjustBalance applies balance += delta as a single conditional update:
	// the write succeeds only if the resulting balance stays non-negative.
	// Returns domain.ErrAccountNotFound if no such account exists and
	// domain.ErrInsufficientFunds if the condition rejected the write.
	AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error
}

type TransactionStore interface {
	Append(ctx context.Context, tx *domain.Transaction) error
	// All returns the full log ordered by timestamp ascending; records with
	// equal timestamps keep insertion order.
	All(ctx context.Context) ([]*domain.Transaction, error)
}

type TransferStore interface {
	// Transfer debits fromID, credits toID and appends both log records as
	// one atomic unit. A partial debit is never observable after return.
	Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, debit, credit *domain.Transaction) error
}

type Store interface {
	AccountStore
	TransactionStore
	TransferStore
}
