package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"bankteller/internal/domain"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS accounts (
	account_id   TEXT PRIMARY KEY,
	account_type TEXT NOT NULL,
	balance      NUMERIC(19,2) NOT NULL CHECK (balance >= 0),
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS transactions (
	id               UUID PRIMARY KEY,
	account_id       TEXT NOT NULL,
	amount           NUMERIC(19,2) NOT NULL,
	transaction_date TIMESTAMPTZ NOT NULL
);`

type Postgres struct {
	DB     *sql.DB
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Postgres {
	if logger == nil {
		logger = slog.Default()
	}
	return &Postgres{DB: db, logger: logger}
}

func (p *Postgres) Close() error {
	return p.DB.Close()
}

func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("error creating schema: %w", err)
	}
	return nil
}

func (p *Postgres) Insert(ctx context.Context, account *domain.Account) error {
	_, err := p.DB.ExecContext(ctx,
		"INSERT INTO accounts (account_id, account_type, balance, created_at) VALUES ($1, $2, $3, $4)",
		account.ID, string(account.Type), account.Balance, account.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			p.logger.Warn("account already exists", slog.String("account_id", account.ID))
			return fmt.Errorf("%w: account %s already exists", domain.ErrPersistence, account.ID)
		}
		return fmt.Errorf("%w: inserting account: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, id string) (*domain.Account, error) {
	row := p.DB.QueryRowContext(ctx,
		"SELECT account_id, account_type, balance, created_at FROM accounts WHERE account_id = $1", id)

	var account domain.Account
	err := row.Scan(&account.ID, &account.Type, &account.Balance, &account.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
		}
		return nil, fmt.Errorf("%w: fetching account: %v", domain.ErrPersistence, err)
	}

	return &account, nil
}

func (p *Postgres) List(ctx context.Context) ([]*domain.Account, error) {
	rows, err := p.DB.QueryContext(ctx,
		"SELECT account_id, account_type, balance, created_at FROM accounts ORDER BY account_id")
	if err != nil {
		return nil, fmt.Errorf("%w: fetching accounts: %v", domain.ErrPersistence, err)
	}
	defer p.closeRows(rows)

	var accounts []*domain.Account
	for rows.Next() {
		var account domain.Account
		if err := rows.Scan(&account.ID, &account.Type, &account.Balance, &account.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scanning account: %v", domain.ErrPersistence, err)
		}
		accounts = append(accounts, &account)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating over accounts: %v", domain.ErrPersistence, err)
	}

	return accounts, nil
}

// AdjustBalance is the single check-and-write statement: the balance only
// moves when the result stays non-negative, so there is no window between a
// balance read and the update.
func (p *Postgres) AdjustBalance(ctx context.Context, id string, delta decimal.Decimal) error {
	result, err := p.DB.ExecContext(ctx,
		"UPDATE accounts SET balance = balance + $1 WHERE account_id = $2 AND balance + $1 >= 0",
		delta, id)
	if err != nil {
		return fmt.Errorf("%w: updating balance: %v", domain.ErrPersistence, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: checking rows affected: %v", domain.ErrPersistence, err)
	}
	if rowsAffected == 0 {
		return p.classifyRejectedUpdate(ctx, p.DB, id, delta)
	}
	return nil
}

func (p *Postgres) Append(ctx context.Context, tx *domain.Transaction) error {
	_, err := p.DB.ExecContext(ctx,
		"INSERT INTO transactions (id, account_id, amount, transaction_date) VALUES ($1, $2, $3, $4)",
		tx.ID, tx.AccountID, tx.Amount, tx.Timestamp)
	if err != nil {
		return fmt.Errorf("%w: recording transaction: %v", domain.ErrPersistence, err)
	}
	return nil
}

func (p *Postgres) All(ctx context.Context) ([]*domain.Transaction, error) {
	// ID is a UUIDv7, so ordering by it keeps insertion order for rows that
	// share a timestamp (the two halves of a transfer).
	rows, err := p.DB.QueryContext(ctx,
		"SELECT id, account_id, amount, transaction_date FROM transactions ORDER BY transaction_date ASC, id ASC")
	if err != nil {
		return nil, fmt.Errorf("%w: fetching transactions: %v", domain.ErrPersistence, err)
	}
	defer p.closeRows(rows)

	var transactions []*domain.Transaction
	for rows.Next() {
		var tx domain.Transaction
		if err := rows.Scan(&tx.ID, &tx.AccountID, &tx.Amount, &tx.Timestamp); err != nil {
			return nil, fmt.Errorf("%w: scanning transaction: %v", domain.ErrPersistence, err)
		}
		transactions = append(transactions, &tx)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating over transactions: %v", domain.ErrPersistence, err)
	}

	return transactions, nil
}

// Transfer groups the debit, the credit and both log rows under one database
// transaction. Any failure rolls the whole unit back.
func (p *Postgres) Transfer(ctx context.Context, fromID, toID string, amount decimal.Decimal, debit, credit *domain.Transaction) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: starting transaction: %v", domain.ErrPersistence, err)
	}

	result, err := tx.ExecContext(ctx,
		"UPDATE accounts SET balance = balance - $1 WHERE account_id = $2 AND balance >= $1",
		amount, fromID)
	if err != nil {
		p.rollback(tx)
		return fmt.Errorf("%w: debiting account: %v", domain.ErrPersistence, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		p.rollback(tx)
		return fmt.Errorf("%w: checking rows affected: %v", domain.ErrPersistence, err)
	}
	if rowsAffected == 0 {
		err = p.classifyRejectedUpdate(ctx, tx, fromID, amount.Neg())
		p.rollback(tx)
		return err
	}

	result, err = tx.ExecContext(ctx,
		"UPDATE accounts SET balance = balance + $1 WHERE account_id = $2",
		amount, toID)
	if err != nil {
		p.rollback(tx)
		return fmt.Errorf("%w: crediting account: %v", domain.ErrPersistence, err)
	}
	rowsAffected, err = result.RowsAffected()
	if err != nil {
		p.rollback(tx)
		return fmt.Errorf("%w: checking rows affected: %v", domain.ErrPersistence, err)
	}
	if rowsAffected == 0 {
		p.rollback(tx)
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, toID)
	}

	for _, record := range []*domain.Transaction{debit, credit} {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO transactions (id, account_id, amount, transaction_date) VALUES ($1, $2, $3, $4)",
			record.ID, record.AccountID, record.Amount, record.Timestamp)
		if err != nil {
			p.rollback(tx)
			return fmt.Errorf("%w: recording transfer: %v", domain.ErrPersistence, err)
		}
	}

	if err = tx.Commit(); err != nil {
		p.rollback(tx)
		return fmt.Errorf("%w: committing transfer: %v", domain.ErrPersistence, err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// classifyRejectedUpdate decides whether a zero-row conditional update meant
// a missing account or an insufficient balance.
func (p *Postgres) classifyRejectedUpdate(ctx context.Context, q querier, id string, delta decimal.Decimal) error {
	var exists bool
	err := q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM accounts WHERE account_id = $1)", id).Scan(&exists)
	if err != nil {
		return fmt.Errorf("%w: checking account existence: %v", domain.ErrPersistence, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", domain.ErrAccountNotFound, id)
	}
	p.logger.Warn("insufficient funds",
		slog.String("account_id", id),
		slog.String("delta", delta.String()))
	return fmt.Errorf("%w: account %s", domain.ErrInsufficientFunds, id)
}

func (p *Postgres) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		p.logger.Error("error rolling back transaction", slog.String("error", err.Error()))
	}
}

func (p *Postgres) closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		p.logger.Error("error closing rows", slog.String("error", err.Error()))
	}
}
