package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// MonthlyStats are the income statement totals for one calendar month.
type MonthlyStats struct {
	Year    int             `json:"year"`
	Month   int             `json:"month"`
	Income  decimal.Decimal `json:"income"`
	Expense decimal.Decimal `json:"expense"`
	Net     decimal.Decimal `json:"net"`
}

// ComputeMonthlyStats sums income and expense for transactions dated in the
// given year and month. The month of a transaction is read in the location its
// Date carries; convert dates to the display location before calling.
//
// Income is deposits plus paid repairs; expense is withdrawals plus paid
// reloads. Loan transactions are balance-sheet events and never count.
func ComputeMonthlyStats(txs []Transaction, year int, month time.Month) MonthlyStats {
	income := decimal.Zero
	expense := decimal.Zero
	for _, t := range txs {
		y, m, _ := t.Date.Date()
		if y != year || m != month {
			continue
		}
		if isIncome(t) {
			income = income.Add(t.Amount)
		}
		if isExpense(t) {
			expense = expense.Add(t.Amount)
		}
	}
	return MonthlyStats{
		Year:    year,
		Month:   int(month),
		Income:  income,
		Expense: expense,
		Net:     income.Sub(expense),
	}
}

func isIncome(t Transaction) bool {
	return t.Type == Deposit || (t.Type == Repair && t.IsPaid)
}

func isExpense(t Transaction) bool {
	return t.Type == Withdrawal || (t.Type == Reload && t.IsPaid)
}
