package validator

import (
	"fmt"
	"regexp"

	"github.com/shopspring/decimal"

	"bankteller/internal/domain"
)

type OperationValidator struct {
	accountIDRegex *regexp.Regexp
}

func NewOperationValidator() *OperationValidator {
	return &OperationValidator{
		accountIDRegex: regexp.MustCompile(`^\S{1,64}$`),
	}
}

func (v *OperationValidator) ValidateAccountID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: account id cannot be empty", domain.ErrInvalidArgument)
	}
	if !v.accountIDRegex.MatchString(id) {
		return fmt.Errorf("%w: malformed account id %q", domain.ErrInvalidArgument, id)
	}
	return nil
}

func (v *OperationValidator) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive, got %s", domain.ErrInvalidArgument, amount)
	}
	return nil
}

func (v *OperationValidator) ValidateInitialBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return fmt.Errorf("%w: initial balance cannot be negative, got %s", domain.ErrInvalidArgument, balance)
	}
	return nil
}

func (v *OperationValidator) ValidateTransfer(fromID, toID string, amount decimal.Decimal) error {
	if err := v.ValidateAccountID(fromID); err != nil {
		return err
	}
	if err := v.ValidateAccountID(toID); err != nil {
		return err
	}
	if fromID == toID {
		return fmt.Errorf("%w: cannot transfer to the same account", domain.ErrInvalidArgument)
	}
	return v.ValidateAmount(amount)
}
