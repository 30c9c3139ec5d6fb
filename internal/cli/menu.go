package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bankteller/internal/domain"
	"bankteller/internal/service"
)

const menuText = `
=== Banking System Menu ===
1. Create Account
2. View Account
3. Deposit
4. Withdraw
5. Transfer
6. View Transactions
7. Exit
Enter your choice: `

// Menu drives the interactive session. Bad input re-prompts in place with a
// plain loop; handled errors print a message and return to the menu.
type Menu struct {
	svc       *service.AccountService
	in        *bufio.Scanner
	out       io.Writer
	logger    *slog.Logger
	opTimeout time.Duration
}

func NewMenu(svc *service.AccountService, in io.Reader, out io.Writer, logger *slog.Logger, opTimeout time.Duration) *Menu {
	if logger == nil {
		logger = slog.Default()
	}

	return &Menu{
		svc:       svc,
		in:        bufio.NewScanner(in),
		out:       out,
		logger:    logger,
		opTimeout: opTimeout,
	}
}

// Run loops until the user exits or input ends.
func (m *Menu) Run(ctx context.Context) {
	for {
		fmt.Fprint(m.out, menuText)

		line, ok := m.readLine()
		if !ok {
			return
		}

		switch strings.TrimSpace(line) {
		case "1":
			m.createAccount(ctx)
		case "2":
			m.viewAccount(ctx)
		case "3":
			m.deposit(ctx)
		case "4":
			m.withdraw(ctx)
		case "5":
			m.transfer(ctx)
		case "6":
			m.viewTransactions(ctx)
		case "7":
			fmt.Fprintln(m.out, "\nThank you for your time!")
			return
		default:
			fmt.Fprintln(m.out, "Invalid choice. Please try again.")
		}
	}
}

func (m *Menu) createAccount(ctx context.Context) {
	id, ok := m.prompt("Enter Account ID: ")
	if !ok {
		return
	}

	typeStr, ok := m.prompt("Enter Account Type (SAVINGS/CHECKING): ")
	if !ok {
		return
	}
	accountType, err := domain.ParseAccountType(typeStr)
	if err != nil {
		m.printError(err)
		return
	}

	initial, ok := m.promptAmount("Enter Initial Balance: ")
	if !ok {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	if _, err := m.svc.CreateAccount(opCtx, accountType, id, initial); err != nil {
		m.printError(err)
		return
	}
	fmt.Fprintln(m.out, "Account created successfully!")
}

func (m *Menu) viewAccount(ctx context.Context) {
	id, ok := m.prompt("Enter Account ID: ")
	if !ok {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	account, err := m.svc.ViewAccount(opCtx, id)
	if err != nil {
		m.printError(err)
		return
	}

	fmt.Fprintln(m.out, "\n=== Account Details ===")
	fmt.Fprintf(m.out, "Account ID: %s\n", account.ID)
	fmt.Fprintf(m.out, "Account Type: %s\n", account.Type)
	fmt.Fprintf(m.out, "Balance: $%s\n", account.Balance.StringFixed(2))
}

func (m *Menu) deposit(ctx context.Context) {
	id, ok := m.prompt("Enter Account ID: ")
	if !ok {
		return
	}
	amount, ok := m.promptAmount("Enter Deposit Amount: ")
	if !ok {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	if err := m.svc.Deposit(opCtx, id, amount); err != nil {
		m.printError(err)
		return
	}
	fmt.Fprintln(m.out, "Deposit successful!")
}

func (m *Menu) withdraw(ctx context.Context) {
	id, ok := m.prompt("Enter Account ID: ")
	if !ok {
		return
	}
	amount, ok := m.promptAmount("Enter Withdrawal Amount: ")
	if !ok {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	if err := m.svc.Withdraw(opCtx, id, amount); err != nil {
		m.printError(err)
		return
	}
	fmt.Fprintln(m.out, "Withdrawal successful!")
}

func (m *Menu) transfer(ctx context.Context) {
	fromID, ok := m.prompt("Enter Sender Account ID: ")
	if !ok {
		return
	}
	toID, ok := m.prompt("Enter Receiver Account ID: ")
	if !ok {
		return
	}
	amount, ok := m.promptAmount("Enter Transfer Amount: ")
	if !ok {
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	if err := m.svc.Transfer(opCtx, fromID, toID, amount); err != nil {
		m.printError(err)
		return
	}
	fmt.Fprintln(m.out, "Transfer successful!")
}

func (m *Menu) viewTransactions(ctx context.Context) {
	opCtx, cancel := context.WithTimeout(ctx, m.opTimeout)
	defer cancel()

	transactions, err := m.svc.Transactions(opCtx)
	if err != nil {
		m.printError(err)
		return
	}

	fmt.Fprintln(m.out, "\n=== Transactions ===")
	if len(transactions) == 0 {
		fmt.Fprintln(m.out, "No transactions yet.")
		return
	}
	for _, tx := range transactions {
		fmt.Fprintf(m.out, "Account: %s, Amount: %s, Date: %s\n",
			tx.AccountID, tx.Amount.StringFixed(2), tx.Timestamp.Format(time.RFC3339))
	}
}

func (m *Menu) prompt(label string) (string, bool) {
	for {
		fmt.Fprint(m.out, label)
		line, ok := m.readLine()
		if !ok {
			return "", false
		}
		line = strings.TrimSpace(line)
		if line != "" {
			return line, true
		}
		fmt.Fprintln(m.out, "Input cannot be empty.")
	}
}

// promptAmount re-prompts until the input parses as a decimal. Malformed
// numbers never abort the session.
func (m *Menu) promptAmount(label string) (decimal.Decimal, bool) {
	for {
		fmt.Fprint(m.out, label)
		line, ok := m.readLine()
		if !ok {
			return decimal.Zero, false
		}
		amount, err := decimal.NewFromString(strings.TrimSpace(line))
		if err == nil {
			return amount, true
		}
		fmt.Fprintln(m.out, "Invalid amount. Please enter a number.")
	}
}

func (m *Menu) readLine() (string, bool) {
	if !m.in.Scan() {
		return "", false
	}
	return m.in.Text(), true
}

func (m *Menu) printError(err error) {
	recoverable := errors.Is(err, domain.ErrInvalidArgument) ||
		errors.Is(err, domain.ErrAccountNotFound) ||
		errors.Is(err, domain.ErrInsufficientFunds)
	if !recoverable {
		m.logger.Error("operation failed", slog.String("error", err.Error()))
	}
	fmt.Fprintf(m.out, "Error: %v\n", err)
}
