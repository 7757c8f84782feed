package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeExpenseBreakdown(t *testing.T) {
	w := func(amount int64, reason string) Transaction {
		tr := tx(Withdrawal, amount, "Wallet")
		tr.Reason = reason
		return tr
	}
	unpaid := tx(Reload, 30, "")
	unpaid.IsPaid = false

	got := ComputeExpenseBreakdown([]Transaction{
		w(100, "Food lunch"),
		tx(Reload, 50, "Solo"),
		w(40, "Food dinner"),
		w(25, "   "),
		unpaid,
		tx(Deposit, 999, "Wallet"),
		w(10, "Transport bus"),
	})

	require.Len(t, got, 4)
	assert.Equal(t, "Food", got[0].Name)
	assert.True(t, got[0].Amount.Equal(amt(140)))
	assert.Equal(t, ReloadCategory, got[1].Name)
	assert.True(t, got[1].Amount.Equal(amt(80)))
	assert.Equal(t, OtherCategory, got[2].Name)
	assert.Equal(t, "Transport", got[3].Name)
}

func TestComputeExpenseBreakdownEmpty(t *testing.T) {
	got := ComputeExpenseBreakdown(nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
