package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type AccountType string

const (
	TypeSavings  AccountType = "SAVINGS"
	TypeChecking AccountType = "CHECKING"
)

func ParseAccountType(s string) (AccountType, error) {
	switch t := AccountType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TypeSavings, TypeChecking:
		return t, nil
	default:
		return "", fmt.Errorf("%w: unknown account type %q", ErrInvalidArgument, s)
	}
}

type Account struct {
	ID        string          `json:"id"`
	Type      AccountType     `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
}
