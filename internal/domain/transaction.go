package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Transaction is one row of the append-only log. Amount is signed:
// positive for a credit, negative for a debit.
type Transaction struct {
	ID        uuid.UUID       `json:"id"`
	AccountID string          `json:"account_id"`
	Amount    decimal.Decimal `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
}

func NewTransaction(accountID string, amount decimal.Decimal, ts time.Time) *Transaction {
	return &Transaction{
		ID:        uuid.Must(uuid.NewV7()),
		AccountID: accountID,
		Amount:    amount,
		Timestamp: ts,
	}
}
