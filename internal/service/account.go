package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"bankteller/internal/domain"
	"bankteller/internal/registry"
	"bankteller/internal/repository"
	"bankteller/pkg/metrics"
	"bankteller/pkg/validator"
)

// AccountService is the single entry point for account operations. It
// validates requests, drives the store, keeps the log complete and updates
// the in-memory registry only after a persisted write succeeded.
type AccountService struct {
	store     repository.Store
	registry  *registry.Registry
	validator *validator.OperationValidator
	metrics   *metrics.Collector
	logger    *slog.Logger
}

func NewAccountService(
	store repository.Store,
	reg *registry.Registry,
	collector *metrics.Collector,
	logger *slog.Logger,
) *AccountService {
	if logger == nil {
		logger = slog.Default()
	}

	return &AccountService{
		store:     store,
		registry:  reg,
		validator: validator.NewOperationValidator(),
		metrics:   collector,
		logger:    logger,
	}
}

func (s *AccountService) CreateAccount(ctx context.Context, accountType domain.AccountType, id string, initialBalance decimal.Decimal) (account *domain.Account, err error) {
	defer s.observe("create_account", time.Now(), &err)

	if err = s.validator.ValidateAccountID(id); err != nil {
		return nil, err
	}
	if err = s.validator.ValidateInitialBalance(initialBalance); err != nil {
		return nil, err
	}
	if _, err = domain.ParseAccountType(string(accountType)); err != nil {
		return nil, err
	}

	account = &domain.Account{
		ID:        id,
		Type:      accountType,
		Balance:   initialBalance,
		CreatedAt: time.Now().UTC(),
	}

	if err = s.store.Insert(ctx, account); err != nil {
		return nil, err
	}

	s.registry.Put(account)
	s.metrics.SetAccountBalance(account.ID, account.Balance.InexactFloat64())
	s.logger.Info("account created",
		slog.String("account_id", account.ID),
		slog.String("type", string(account.Type)),
		slog.String("balance", account.Balance.String()))

	return account, nil
}

func (s *AccountService) Deposit(ctx context.Context, id string, amount decimal.Decimal) (err error) {
	defer s.observe("deposit", time.Now(), &err)

	if err = s.validator.ValidateAccountID(id); err != nil {
		return err
	}
	if err = s.validator.ValidateAmount(amount); err != nil {
		return err
	}

	if err = s.store.AdjustBalance(ctx, id, amount); err != nil {
		return err
	}
	if err = s.store.Append(ctx, domain.NewTransaction(id, amount, time.Now().UTC())); err != nil {
		return err
	}

	s.refreshMirror(ctx, id)
	s.logger.Info("deposit completed",
		slog.String("account_id", id),
		slog.String("amount", amount.String()))

	return nil
}

func (s *AccountService) Withdraw(ctx context.Context, id string, amount decimal.Decimal) (err error) {
	defer s.observe("withdraw", time.Now(), &err)

	if err = s.validator.ValidateAccountID(id); err != nil {
		return err
	}
	if err = s.validator.ValidateAmount(amount); err != nil {
		return err
	}

	// The balance check and the decrement are one conditional update in the
	// store, never a read followed by a write.
	if err = s.store.AdjustBalance(ctx, id, amount.Neg()); err != nil {
		return err
	}
	if err = s.store.Append(ctx, domain.NewTransaction(id, amount.Neg(), time.Now().UTC())); err != nil {
		return err
	}

	s.refreshMirror(ctx, id)
	s.logger.Info("withdrawal completed",
		slog.String("account_id", id),
		slog.String("amount", amount.String()))

	return nil
}

func (s *AccountService) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal) (err error) {
	defer s.observe("transfer", time.Now(), &err)

	if err = s.validator.ValidateTransfer(fromID, toID, amount); err != nil {
		return err
	}

	ts := time.Now().UTC()
	debit := domain.NewTransaction(fromID, amount.Neg(), ts)
	credit := domain.NewTransaction(toID, amount, ts)

	if err = s.store.Transfer(ctx, fromID, toID, amount, debit, credit); err != nil {
		s.logger.Warn("transfer failed",
			slog.String("from", fromID),
			slog.String("to", toID),
			slog.String("amount", amount.String()),
			slog.String("error", err.Error()))
		return err
	}

	s.refreshMirror(ctx, fromID)
	s.refreshMirror(ctx, toID)
	s.logger.Info("transfer completed",
		slog.String("from", fromID),
		slog.String("to", toID),
		slog.String("amount", amount.String()))

	return nil
}

func (s *AccountService) Balance(ctx context.Context, id string) (balance decimal.Decimal, err error) {
	defer s.observe("balance", time.Now(), &err)

	if err = s.validator.ValidateAccountID(id); err != nil {
		return decimal.Zero, err
	}

	account, err := s.store.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}

	s.registry.Put(account)
	return account.Balance, nil
}

// ViewAccount serves display reads through the registry mirror; a miss
// falls through to the store.
func (s *AccountService) ViewAccount(ctx context.Context, id string) (account *domain.Account, err error) {
	defer s.observe("view_account", time.Now(), &err)

	if err = s.validator.ValidateAccountID(id); err != nil {
		return nil, err
	}

	return s.registry.Get(ctx, id)
}

func (s *AccountService) ListAccounts(ctx context.Context) (accounts []*domain.Account, err error) {
	defer s.observe("list_accounts", time.Now(), &err)

	return s.store.List(ctx)
}

func (s *AccountService) Transactions(ctx context.Context) (transactions []*domain.Transaction, err error) {
	defer s.observe("transactions", time.Now(), &err)

	transactions, err = s.store.All(ctx)
	if err != nil {
		s.logger.Error("failed to list transactions", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing transactions: %w", err)
	}

	return transactions, nil
}

func (s *AccountService) refreshMirror(ctx context.Context, id string) {
	account, err := s.registry.Refresh(ctx, id)
	if err != nil {
		// The mutation is already committed; a stale mirror entry only
		// affects display reads and heals on the next refresh.
		s.logger.Warn("failed to refresh account mirror",
			slog.String("account_id", id),
			slog.String("error", err.Error()))
		return
	}
	s.metrics.SetAccountBalance(account.ID, account.Balance.InexactFloat64())
}

func (s *AccountService) observe(operation string, start time.Time, err *error) {
	s.metrics.RecordOperation(operation, time.Since(start), *err)
}
