package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Deposit         TransactionType = "deposit"
	Withdrawal      TransactionType = "withdrawal"
	Reload          TransactionType = "reload"
	Repair          TransactionType = "repair"
	LoanAcquisition TransactionType = "loan_acquisition"
	LoanRepayment   TransactionType = "loan_repayment"
)

const (
	PricePending PriceStatus = "Pending"
	PriceAdded   PriceStatus = "Added"
)

type (
	// TransactionType is the closed set of money movement kinds.
	TransactionType string

	// PriceStatus tracks whether a repair job has an agreed price.
	PriceStatus string

	// Transaction is one row of a user's history. Amount semantics depend on Type.
	Transaction struct {
		ID             string          `json:"id"`
		Date           time.Time       `json:"date"`
		Type           TransactionType `json:"type"`
		Amount         decimal.Decimal `json:"amount"`
		OriginalAmount decimal.Decimal `json:"original_amount"`
		BankAccount    string          `json:"bank_account"`
		Reason         string          `json:"reason"`
		IsPaid         bool            `json:"is_paid"`
		CustomerName   string          `json:"customer_name,omitempty"`
		PhoneName      string          `json:"phone_name,omitempty"`
		Fault          string          `json:"fault,omitempty"`
		PriceStatus    PriceStatus     `json:"price_status,omitempty"`
	}
)

var (
	ErrEmptyID         = errors.New("empty transaction id")
	ErrZeroDate        = errors.New("date cannot be zero")
	ErrInvalidType     = errors.New("invalid transaction type")
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrInvalidStatus   = errors.New("invalid price status")
	ErrUnknownAccount  = errors.New("unknown account")
	ErrMissingAccount  = errors.New("missing account")
	ErrReasonTooLong   = errors.New("reason too long (max 200 characters)")
	ErrAlreadySettled  = errors.New("transaction already settled")
	ErrMissingCustomer = errors.New("empty customer name")
)

// Types returns every transaction kind accepted by the schema.
func Types() []TransactionType {
	return []TransactionType{Deposit, Withdrawal, Reload, Repair, LoanAcquisition, LoanRepayment}
}

func (t TransactionType) IsValid() bool {
	return slices.Contains(Types(), t)
}

func (t TransactionType) String() string {
	return string(t)
}

// IsValid accepts the empty status, used by every kind but repair.
func (s PriceStatus) IsValid() bool {
	switch s {
	case "", PricePending, PriceAdded:
		return true
	default:
		return false
	}
}

// IsSettled reports whether the cash effect of the transaction has been realized.
// Reloads and repairs start unsettled; every other kind is settled on creation.
func (t Transaction) IsSettled() bool {
	switch t.Type {
	case Reload, Repair:
		return t.IsPaid
	default:
		return true
	}
}

// Validate checks the shape of a transaction before it is written to a store.
// Account membership is checked separately by Accounts.ValidateTransaction.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return ErrEmptyID
	}
	if t.Date.IsZero() {
		return ErrZeroDate
	}
	if !t.Type.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidType, t.Type)
	}
	if !t.PriceStatus.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.PriceStatus)
	}
	// A pending repair carries no price yet.
	if t.Type == Repair && t.PriceStatus == PricePending {
		if t.Amount.IsNegative() {
			return ErrInvalidAmount
		}
	} else if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if t.OriginalAmount.IsNegative() {
		return ErrInvalidAmount
	}
	if len(t.Reason) > 200 {
		return ErrReasonTooLong
	}
	return nil
}
