package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ReloadCategory groups every reload in the expense breakdown.
const (
	ReloadCategory = "Reload"
	OtherCategory  = "Other"
)

// CategoryAmount represents an amount aggregated by category name.
type CategoryAmount struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// ComputeExpenseBreakdown groups outgoing money over the whole history.
// Reloads fall under ReloadCategory; withdrawals under the first word of their
// reason, or OtherCategory when the reason is blank. Categories keep
// first-seen order.
func ComputeExpenseBreakdown(txs []Transaction) []CategoryAmount {
	byCat := map[string]decimal.Decimal{}
	order := make([]string, 0)
	for _, t := range txs {
		var key string
		switch t.Type {
		case Reload:
			key = ReloadCategory
		case Withdrawal:
			key = categoryFromReason(t.Reason)
		default:
			continue
		}
		if _, seen := byCat[key]; !seen {
			order = append(order, key)
			byCat[key] = decimal.Zero
		}
		byCat[key] = byCat[key].Add(t.Amount)
	}
	list := make([]CategoryAmount, 0, len(order))
	for _, name := range order {
		list = append(list, CategoryAmount{Name: name, Amount: byCat[name]})
	}
	return list
}

func categoryFromReason(reason string) string {
	fields := strings.Fields(reason)
	if len(fields) == 0 {
		return OtherCategory
	}
	return fields[0]
}
