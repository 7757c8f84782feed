package core

import "github.com/shopspring/decimal"

// ComputeBalances folds a user's transactions into a balance per account.
//
// Every account of both enumerations is present in the result, starting at
// zero. Transactions naming an account outside the enumerations are ignored.
// Each transaction touches at most one account, so the result does not depend
// on the order of txs.
func ComputeBalances(txs []Transaction, regular, loan []string) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(regular)+len(loan))
	isLoan := make(map[string]bool, len(loan))
	for _, acc := range regular {
		balances[acc] = decimal.Zero
	}
	for _, acc := range loan {
		balances[acc] = decimal.Zero
		isLoan[acc] = true
	}

	for _, t := range txs {
		acc := t.BankAccount
		if acc == "" {
			continue
		}
		current, known := balances[acc]
		if !known {
			continue
		}
		if delta, ok := balanceEffect(t, isLoan[acc]); ok {
			balances[acc] = current.Add(delta)
		}
	}
	return balances
}

// Balances is ComputeBalances over this account book.
func (a Accounts) Balances(txs []Transaction) map[string]decimal.Decimal {
	return ComputeBalances(txs, a.Regular, a.Loan)
}

// balanceEffect returns the signed change t applies to its own account.
// loan_repayment has no defined rule and is left without effect.
func balanceEffect(t Transaction, loanAccount bool) (decimal.Decimal, bool) {
	switch t.Type {
	case Deposit:
		if loanAccount {
			return t.Amount.Neg(), true
		}
		return t.Amount, true
	case Withdrawal:
		return t.Amount.Neg(), true
	case Reload:
		if t.IsPaid {
			return t.Amount.Neg(), true
		}
	case Repair:
		if t.PriceStatus == PriceAdded && t.IsPaid {
			return t.Amount, true
		}
	case LoanAcquisition:
		if loanAccount {
			return t.Amount, true
		}
	}
	return decimal.Zero, false
}
