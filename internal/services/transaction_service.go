package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"moneymanager/internal/core"
	applog "moneymanager/internal/log"
	"moneymanager/internal/secret"
	"moneymanager/internal/sheets"
)

// ErrLoanDepositFailed is returned when the loan was recorded but the deposit
// of its funds was not.
var ErrLoanDepositFailed = errors.New("loan recorded but deposit of funds failed")

// ErrNoUpdates is returned by Update when no field would change.
var ErrNoUpdates = errors.New("no fields to update")

// Reasons written by the loan flow.
const (
	loanReasonPrefix  = "Loan Taken: "
	loanDepositReason = "Loan Funds Received"
)

type (
	// MovementInput describes a deposit or withdrawal.
	MovementInput struct {
		Account string
		Amount  decimal.Decimal
		Reason  string
		Date    time.Time
	}

	// ReloadInput describes a mobile reload sold to a customer.
	ReloadInput struct {
		Customer string
		Amount   decimal.Decimal
		Date     time.Time
		Account  string
		Paid     bool
	}

	// RepairInput describes a repair job taken in. A zero estimate leaves the
	// price pending.
	RepairInput struct {
		Customer string
		Device   string
		Fault    string
		Estimate decimal.Decimal
		Account  string
	}

	LoanInput struct {
		LoanAccount    string
		Amount         decimal.Decimal
		DepositAccount string
		Purpose        string
	}

	// SettleInput marks a pending transaction as paid. Price and Account are
	// required for repairs and ignored otherwise.
	SettleInput struct {
		ID      string
		Secret  string
		Price   decimal.Decimal
		Account string
	}

	// LoanResult holds both rows of a loan; Deposit is nil when only the loan
	// side was recorded.
	LoanResult struct {
		Loan    core.Transaction  `json:"loan"`
		Deposit *core.Transaction `json:"deposit,omitempty"`
	}
)

// TransactionService builds new transactions and mutates existing ones
// through the store.
type TransactionService struct {
	store    sheets.TransactionStore
	accounts core.Accounts
	verifier *secret.Verifier
	now      func() time.Time
	newID    func() string
}

// NewTransactionService builds the service. v gates Settle before any row is
// looked up; the store checks the secret again on the write itself.
func NewTransactionService(store sheets.TransactionStore, accounts core.Accounts, v *secret.Verifier) *TransactionService {
	return &TransactionService{
		store:    store,
		accounts: accounts,
		verifier: v,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

func (s *TransactionService) Deposit(ctx context.Context, userID string, in MovementInput) (core.Transaction, error) {
	return s.movement(ctx, userID, core.Deposit, in)
}

func (s *TransactionService) Withdraw(ctx context.Context, userID string, in MovementInput) (core.Transaction, error) {
	return s.movement(ctx, userID, core.Withdrawal, in)
}

func (s *TransactionService) movement(ctx context.Context, userID string, typ core.TransactionType, in MovementInput) (core.Transaction, error) {
	tx := s.base(typ, in.Date)
	tx.Amount = in.Amount
	tx.BankAccount = in.Account
	tx.Reason = strings.TrimSpace(in.Reason)
	tx.IsPaid = true
	return s.append(ctx, userID, tx)
}

func (s *TransactionService) Reload(ctx context.Context, userID string, in ReloadInput) (core.Transaction, error) {
	if strings.TrimSpace(in.Customer) == "" {
		return core.Transaction{}, core.ErrMissingCustomer
	}
	tx := s.base(core.Reload, in.Date)
	tx.Amount = in.Amount
	tx.OriginalAmount = in.Amount
	tx.BankAccount = in.Account
	tx.CustomerName = strings.TrimSpace(in.Customer)
	tx.IsPaid = in.Paid
	return s.append(ctx, userID, tx)
}

func (s *TransactionService) Repair(ctx context.Context, userID string, in RepairInput) (core.Transaction, error) {
	if strings.TrimSpace(in.Customer) == "" {
		return core.Transaction{}, core.ErrMissingCustomer
	}
	if in.Estimate.IsNegative() {
		return core.Transaction{}, core.ErrInvalidAmount
	}
	tx := s.base(core.Repair, time.Time{})
	tx.Amount = in.Estimate
	tx.OriginalAmount = in.Estimate
	tx.BankAccount = in.Account
	tx.CustomerName = strings.TrimSpace(in.Customer)
	tx.PhoneName = strings.TrimSpace(in.Device)
	tx.Fault = strings.TrimSpace(in.Fault)
	tx.PriceStatus = core.PricePending
	if in.Estimate.IsPositive() {
		tx.PriceStatus = core.PriceAdded
	}
	return s.append(ctx, userID, tx)
}

// TakeLoan records the liability on the loan account and then, only if that
// succeeded, the deposit of the funds into a regular account.
func (s *TransactionService) TakeLoan(ctx context.Context, userID string, in LoanInput) (LoanResult, error) {
	if !s.accounts.IsRegular(in.DepositAccount) {
		return LoanResult{}, fmt.Errorf("%w: %q", core.ErrUnknownAccount, in.DepositAccount)
	}
	loan := s.base(core.LoanAcquisition, time.Time{})
	loan.Amount = in.Amount
	loan.BankAccount = in.LoanAccount
	loan.Reason = loanReasonPrefix + strings.TrimSpace(in.Purpose)
	loan.IsPaid = true
	loan, err := s.append(ctx, userID, loan)
	if err != nil {
		return LoanResult{}, err
	}

	dep := s.base(core.Deposit, loan.Date)
	dep.Amount = in.Amount
	dep.BankAccount = in.DepositAccount
	dep.Reason = loanDepositReason
	dep.IsPaid = true
	dep, err = s.append(ctx, userID, dep)
	if err != nil {
		slog.ErrorContext(ctx, "Loan deposit failed after loan was recorded",
			applog.FieldTransactionID, loan.ID,
			applog.FieldError, err)
		return LoanResult{Loan: loan}, fmt.Errorf("%w: %w", ErrLoanDepositFailed, err)
	}
	return LoanResult{Loan: loan, Deposit: &dep}, nil
}

// Settle marks a pending transaction paid. A repair additionally receives its
// final price and receiving account. The secret is checked first, so a wrong
// one learns nothing about the row.
func (s *TransactionService) Settle(ctx context.Context, userID string, in SettleInput) (core.Transaction, error) {
	if err := s.verifier.Verify(in.Secret); err != nil {
		slog.WarnContext(ctx, "Settle rejected",
			applog.FieldOperation, applog.OpSettle,
			applog.FieldTransactionID, in.ID)
		return core.Transaction{}, sheets.ErrInvalidSecret
	}
	current, err := s.find(ctx, userID, in.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if current.IsSettled() {
		return core.Transaction{}, core.ErrAlreadySettled
	}

	paid := true
	updates := core.FieldUpdates{IsPaid: &paid}
	if current.Type == core.Repair {
		if !in.Price.IsPositive() {
			return core.Transaction{}, core.ErrInvalidAmount
		}
		if in.Account == "" {
			return core.Transaction{}, core.ErrMissingAccount
		}
		if !s.accounts.IsRegular(in.Account) {
			return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrUnknownAccount, in.Account)
		}
		price := in.Price
		account := in.Account
		added := core.PriceAdded
		updates.Amount = &price
		updates.OriginalAmount = &price
		updates.BankAccount = &account
		updates.PriceStatus = &added
	}
	return s.Update(ctx, userID, in.ID, updates, in.Secret)
}

// Update forwards a partial overwrite to the store. Account changes must name
// a known account.
func (s *TransactionService) Update(ctx context.Context, userID, id string, updates core.FieldUpdates, sharedSecret string) (core.Transaction, error) {
	if updates.IsEmpty() {
		return core.Transaction{}, ErrNoUpdates
	}
	if updates.BankAccount != nil && *updates.BankAccount != "" && !s.accounts.Contains(*updates.BankAccount) {
		return core.Transaction{}, fmt.Errorf("%w: %q", core.ErrUnknownAccount, *updates.BankAccount)
	}
	tx, err := s.store.Update(ctx, userID, id, updates, sharedSecret)
	if err != nil {
		return core.Transaction{}, err
	}
	slog.InfoContext(ctx, "Transaction updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldTransactionID, id,
		"fields", updates.Fields())
	return tx, nil
}

func (s *TransactionService) find(ctx context.Context, userID, id string) (core.Transaction, error) {
	all, err := s.store.FetchAll(ctx, userID)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("fetch transactions: %w", err)
	}
	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}
	return core.Transaction{}, sheets.ErrNotFound
}

func (s *TransactionService) base(typ core.TransactionType, date time.Time) core.Transaction {
	if date.IsZero() {
		date = s.now()
	}
	return core.Transaction{ID: s.newID(), Date: date, Type: typ}
}

func (s *TransactionService) append(ctx context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.accounts.ValidateTransaction(tx); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.Append(ctx, userID, tx); err != nil {
		return core.Transaction{}, fmt.Errorf("append %s: %w", tx.Type, err)
	}
	fields := applog.NewFields().
		WithOperation(applog.OpCreate).
		WithTransaction(tx.ID, tx.Type.String(), tx.BankAccount, tx.Amount.String())
	slog.InfoContext(ctx, "Transaction recorded", fields.ToSlice()...)
	return tx, nil
}
