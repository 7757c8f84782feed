package core

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// Accounts holds the two static account enumerations. Regular accounts are
// asset-like (positive balance is money held); loan accounts are liability-like
// (positive balance is money owed).
type Accounts struct {
	Regular []string
	Loan    []string
}

// DefaultAccounts returns the stock account list.
func DefaultAccounts() Accounts {
	return Accounts{
		Regular: []string{
			"Sampath Bank",
			"Commercial Bank",
			"HNB Bank",
			"Peoples Bank",
			"Dialog Finance",
			"Solo",
			"Wallet",
		},
		Loan: []string{
			"Peoples Bank Loan",
			"Dialog Finance Loan",
		},
	}
}

func (a Accounts) IsLoan(name string) bool {
	return slices.Contains(a.Loan, name)
}

func (a Accounts) IsRegular(name string) bool {
	return slices.Contains(a.Regular, name)
}

// Contains reports membership in either enumeration.
func (a Accounts) Contains(name string) bool {
	return a.IsRegular(name) || a.IsLoan(name)
}

// All returns regular accounts followed by loan accounts.
func (a Accounts) All() []string {
	out := make([]string, 0, len(a.Regular)+len(a.Loan))
	out = append(out, a.Regular...)
	return append(out, a.Loan...)
}

// Validate rejects empty enumerations, blank names and names listed twice.
func (a Accounts) Validate() error {
	if len(a.Regular) == 0 {
		return errors.New("no regular accounts configured")
	}
	seen := make(map[string]struct{}, len(a.Regular)+len(a.Loan))
	for _, name := range a.All() {
		if strings.TrimSpace(name) == "" {
			return errors.New("blank account name")
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("account %q listed twice", name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// ValidateTransaction checks that the transaction names an account that fits its kind.
func (a Accounts) ValidateTransaction(t Transaction) error {
	acc := t.BankAccount
	switch t.Type {
	case Deposit, Withdrawal:
		if acc == "" {
			return ErrMissingAccount
		}
		if t.Type == Deposit && a.IsLoan(acc) {
			return nil
		}
		if !a.IsRegular(acc) {
			return fmt.Errorf("%w: %q", ErrUnknownAccount, acc)
		}
	case LoanAcquisition, LoanRepayment:
		if acc == "" {
			return ErrMissingAccount
		}
		if !a.IsLoan(acc) {
			return fmt.Errorf("%w: %q is not a loan account", ErrUnknownAccount, acc)
		}
	case Reload, Repair:
		// The receiving account of a repair may be chosen at settlement.
		if acc != "" && !a.IsRegular(acc) {
			return fmt.Errorf("%w: %q", ErrUnknownAccount, acc)
		}
	}
	return nil
}
