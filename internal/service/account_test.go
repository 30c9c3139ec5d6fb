package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"bankteller/internal/domain"
	"bankteller/internal/registry"
	"bankteller/internal/repository/memory"
	"bankteller/pkg/metrics"
)

func newTestService(t *testing.T) (*AccountService, *memory.Store) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()
	svc := NewAccountService(store, registry.New(store), metrics.NewCollector(logger), logger)
	return svc, store
}

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func mustCreate(t *testing.T, svc *AccountService, typ domain.AccountType, id, balance string) {
	t.Helper()
	if _, err := svc.CreateAccount(context.Background(), typ, id, dec(t, balance)); err != nil {
		t.Fatalf("CreateAccount(%s) err=%v", id, err)
	}
}

func balance(t *testing.T, svc *AccountService, id string) decimal.Decimal {
	t.Helper()
	b, err := svc.Balance(context.Background(), id)
	if err != nil {
		t.Fatalf("Balance(%s) err=%v", id, err)
	}
	return b
}

func TestCreateAndDeposit(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeSavings, "A1", "100.00")
	if err := svc.Deposit(ctx, "A1", dec(t, "50.00")); err != nil {
		t.Fatalf("Deposit err=%v", err)
	}

	if got := balance(t, svc, "A1"); !got.Equal(dec(t, "150.00")) {
		t.Errorf("balance=%s want=150.00", got)
	}

	transactions, err := svc.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions err=%v", err)
	}
	if len(transactions) != 1 {
		t.Fatalf("transactions len=%d want=1", len(transactions))
	}
	if transactions[0].AccountID != "A1" || !transactions[0].Amount.Equal(dec(t, "50.00")) {
		t.Errorf("unexpected record: %+v", transactions[0])
	}
	if transactions[0].Timestamp.IsZero() {
		t.Error("timestamp should be set")
	}
}

func TestCreateAccountValidation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		typ     domain.AccountType
		id      string
		balance string
	}{
		{"empty id", domain.TypeSavings, "", "10"},
		{"negative initial balance", domain.TypeSavings, "A1", "-1"},
		{"unknown account type", domain.AccountType("PREMIUM"), "A1", "10"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, tc.typ, tc.id, dec(t, tc.balance))
			if !errors.Is(err, domain.ErrInvalidArgument) {
				t.Errorf("want ErrInvalidArgument, got %v", err)
			}
		})
	}
}

func TestCreateDuplicateAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeChecking, "A1", "0")
	_, err := svc.CreateAccount(ctx, domain.TypeChecking, "A1", dec(t, "0"))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Errorf("want ErrPersistence, got %v", err)
	}
}

func TestWithdrawInsufficientFunds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeSavings, "A1", "100.00")
	err := svc.Withdraw(ctx, "A1", dec(t, "150.00"))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}

	if got := balance(t, svc, "A1"); !got.Equal(dec(t, "100.00")) {
		t.Errorf("balance=%s want=100.00", got)
	}
	transactions, err := svc.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions err=%v", err)
	}
	if len(transactions) != 0 {
		t.Errorf("transactions len=%d want=0", len(transactions))
	}
}

func TestWithdraw(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeChecking, "A1", "100.00")
	if err := svc.Withdraw(ctx, "A1", dec(t, "30.00")); err != nil {
		t.Fatalf("Withdraw err=%v", err)
	}

	if got := balance(t, svc, "A1"); !got.Equal(dec(t, "70.00")) {
		t.Errorf("balance=%s want=70.00", got)
	}
	transactions, _ := svc.Transactions(ctx)
	if len(transactions) != 1 || !transactions[0].Amount.Equal(dec(t, "-30.00")) {
		t.Errorf("unexpected records: %+v", transactions)
	}
}

func TestTransfer(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeSavings, "A1", "100.00")
	mustCreate(t, svc, domain.TypeChecking, "A2", "0.00")

	if err := svc.Transfer(ctx, "A1", "A2", dec(t, "40.00")); err != nil {
		t.Fatalf("Transfer err=%v", err)
	}

	if got := balance(t, svc, "A1"); !got.Equal(dec(t, "60.00")) {
		t.Errorf("balance(A1)=%s want=60.00", got)
	}
	if got := balance(t, svc, "A2"); !got.Equal(dec(t, "40.00")) {
		t.Errorf("balance(A2)=%s want=40.00", got)
	}

	transactions, err := svc.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions err=%v", err)
	}
	if len(transactions) != 2 {
		t.Fatalf("transactions len=%d want=2", len(transactions))
	}

	debit, credit := transactions[0], transactions[1]
	if debit.AccountID != "A1" || !debit.Amount.Equal(dec(t, "-40.00")) {
		t.Errorf("unexpected debit record: %+v", debit)
	}
	if credit.AccountID != "A2" || !credit.Amount.Equal(dec(t, "40.00")) {
		t.Errorf("unexpected credit record: %+v", credit)
	}
	if !debit.Timestamp.Equal(credit.Timestamp) {
		t.Errorf("timestamps differ: %v vs %v", debit.Timestamp, credit.Timestamp)
	}
	if !debit.Amount.Add(credit.Amount).IsZero() {
		t.Errorf("records do not sum to zero: %s + %s", debit.Amount, credit.Amount)
	}
}

func TestTransferAtomicity(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeSavings, "A1", "100.00")
	mustCreate(t, svc, domain.TypeSavings, "A2", "0.00")

	store.FailTransferAfterDebit = errors.New("disk full")
	err := svc.Transfer(ctx, "A1", "A2", dec(t, "40.00"))
	if !errors.Is(err, domain.ErrPersistence) {
		t.Fatalf("want ErrPersistence, got %v", err)
	}

	if got := balance(t, svc, "A1"); !got.Equal(dec(t, "100.00")) {
		t.Errorf("debit leaked: balance(A1)=%s want=100.00", got)
	}
	if got := balance(t, svc, "A2"); !got.Equal(dec(t, "0.00")) {
		t.Errorf("credit leaked: balance(A2)=%s want=0.00", got)
	}
	transactions, _ := svc.Transactions(ctx)
	if len(transactions) != 0 {
		t.Errorf("transactions len=%d want=0", len(transactions))
	}
}

func TestTransferInsufficientFunds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeSavings, "A1", "10.00")
	mustCreate(t, svc, domain.TypeSavings, "A2", "0.00")

	err := svc.Transfer(ctx, "A1", "A2", dec(t, "10.01"))
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
	if got := balance(t, svc, "A1"); !got.Equal(dec(t, "10.00")) {
		t.Errorf("balance(A1)=%s want=10.00", got)
	}
}

func TestTransferSameAccount(t *testing.T) {
	svc, _ := newTestService(t)

	mustCreate(t, svc, domain.TypeSavings, "A1", "100.00")
	err := svc.Transfer(context.Background(), "A1", "A1", dec(t, "1.00"))
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("want ErrInvalidArgument, got %v", err)
	}
}

func TestNonPositiveAmounts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeSavings, "A1", "100.00")
	mustCreate(t, svc, domain.TypeSavings, "A2", "100.00")

	for _, amount := range []string{"0", "-5.00"} {
		amt := dec(t, amount)
		if err := svc.Deposit(ctx, "A1", amt); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Deposit(%s): want ErrInvalidArgument, got %v", amount, err)
		}
		if err := svc.Withdraw(ctx, "A1", amt); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Withdraw(%s): want ErrInvalidArgument, got %v", amount, err)
		}
		if err := svc.Transfer(ctx, "A1", "A2", amt); !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("Transfer(%s): want ErrInvalidArgument, got %v", amount, err)
		}
	}

	if got := balance(t, svc, "A1"); !got.Equal(dec(t, "100.00")) {
		t.Errorf("balance(A1)=%s want=100.00", got)
	}
	transactions, _ := svc.Transactions(ctx)
	if len(transactions) != 0 {
		t.Errorf("transactions len=%d want=0", len(transactions))
	}
}

func TestUnknownAccount(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeSavings, "A1", "100.00")
	amt := dec(t, "5.00")

	if err := svc.Deposit(ctx, "ghost", amt); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Deposit: want ErrAccountNotFound, got %v", err)
	}
	if err := svc.Withdraw(ctx, "ghost", amt); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Withdraw: want ErrAccountNotFound, got %v", err)
	}
	if err := svc.Transfer(ctx, "ghost", "A1", amt); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Transfer from: want ErrAccountNotFound, got %v", err)
	}
	if err := svc.Transfer(ctx, "A1", "ghost", amt); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Transfer to: want ErrAccountNotFound, got %v", err)
	}
	if _, err := svc.Balance(ctx, "ghost"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("Balance: want ErrAccountNotFound, got %v", err)
	}
	if _, err := svc.ViewAccount(ctx, "ghost"); !errors.Is(err, domain.ErrAccountNotFound) {
		t.Errorf("ViewAccount: want ErrAccountNotFound, got %v", err)
	}

	transactions, _ := svc.Transactions(ctx)
	if len(transactions) != 0 {
		t.Errorf("transactions len=%d want=0", len(transactions))
	}
}

func TestBalanceIdempotentRead(t *testing.T) {
	svc, _ := newTestService(t)

	mustCreate(t, svc, domain.TypeSavings, "A1", "42.42")
	first := balance(t, svc, "A1")
	second := balance(t, svc, "A1")
	if !first.Equal(second) {
		t.Errorf("reads differ: %s vs %s", first, second)
	}
}

func TestViewAccount(t *testing.T) {
	svc, _ := newTestService(t)

	mustCreate(t, svc, domain.TypeChecking, "A1", "12.34")
	account, err := svc.ViewAccount(context.Background(), "A1")
	if err != nil {
		t.Fatalf("ViewAccount err=%v", err)
	}
	if account.ID != "A1" || account.Type != domain.TypeChecking || !account.Balance.Equal(dec(t, "12.34")) {
		t.Errorf("unexpected snapshot: %+v", account)
	}
}

func TestListAccounts(t *testing.T) {
	svc, _ := newTestService(t)

	mustCreate(t, svc, domain.TypeSavings, "A2", "1")
	mustCreate(t, svc, domain.TypeSavings, "A1", "2")

	accounts, err := svc.ListAccounts(context.Background())
	if err != nil {
		t.Fatalf("ListAccounts err=%v", err)
	}
	if len(accounts) != 2 || accounts[0].ID != "A1" || accounts[1].ID != "A2" {
		t.Errorf("unexpected accounts: %+v", accounts)
	}
}

func TestTransactionsOrdering(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeSavings, "A1", "100")
	mustCreate(t, svc, domain.TypeSavings, "A2", "100")

	_ = svc.Deposit(ctx, "A1", dec(t, "1"))
	_ = svc.Withdraw(ctx, "A2", dec(t, "2"))
	_ = svc.Transfer(ctx, "A1", "A2", dec(t, "3"))

	transactions, err := svc.Transactions(ctx)
	if err != nil {
		t.Fatalf("Transactions err=%v", err)
	}
	if len(transactions) != 4 {
		t.Fatalf("transactions len=%d want=4", len(transactions))
	}
	for i := 1; i < len(transactions); i++ {
		if transactions[i].Timestamp.Before(transactions[i-1].Timestamp) {
			t.Errorf("records out of order at %d: %v before %v", i, transactions[i].Timestamp, transactions[i-1].Timestamp)
		}
	}
	// The transfer halves share a timestamp; insertion order puts the debit
	// first.
	if !transactions[2].Amount.Equal(dec(t, "-3")) || !transactions[3].Amount.Equal(dec(t, "3")) {
		t.Errorf("unexpected transfer records: %+v, %+v", transactions[2], transactions[3])
	}
}

func TestConcurrentTransfersConservation(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mustCreate(t, svc, domain.TypeSavings, "A1", "1000")
	mustCreate(t, svc, domain.TypeSavings, "A2", "1000")

	const n = 100
	var wg sync.WaitGroup
	wg.Add(2 * n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			if err := svc.Transfer(ctx, "A1", "A2", dec(t, "1")); err != nil {
				t.Errorf("A1->A2: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			if err := svc.Transfer(ctx, "A2", "A1", dec(t, "1")); err != nil {
				t.Errorf("A2->A1: %v", err)
			}
		}()
	}
	wg.Wait()

	b1 := balance(t, svc, "A1")
	b2 := balance(t, svc, "A2")
	if b1.IsNegative() || b2.IsNegative() {
		t.Fatalf("negative balance: A1=%s A2=%s", b1, b2)
	}
	if total := b1.Add(b2); !total.Equal(dec(t, "2000")) {
		t.Fatalf("total=%s want=2000", total)
	}
}
