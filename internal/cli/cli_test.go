package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"moneymanager/internal/core"
	"moneymanager/internal/secret"
	"moneymanager/internal/services"
	"moneymanager/internal/storage"
)

const seedJSON = `[
  {"userId":"u1","id":"d1","date":"2025-07-01T09:00:00Z","type":"deposit","amount":"5000","original_amount":"0","bank_account":"Sampath Bank","reason":"Salary","is_paid":true},
  {"userId":"u1","id":"r1","date":"2025-07-02T09:00:00Z","type":"reload","amount":"250","original_amount":"250","bank_account":"Solo","reason":"","is_paid":false,"customer_name":"Saman"},
  {"userId":"u2","id":"x1","date":"2025-07-03T09:00:00Z","type":"deposit","amount":"10","original_amount":"0","bank_account":"Wallet","reason":"","is_paid":true}
]`

func memoryEnv(t *testing.T) {
	t.Helper()
	seed := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(seed, []byte(seedJSON), 0o600))
	t.Setenv("DATA_BACKEND", "memory")
	t.Setenv("SEED_FILE", seed)
	t.Setenv("SECURE_PIN", "2468")
	t.Setenv("USER_ID", "u1")
	t.Setenv("APP_TIMEZONE", "UTC")
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestBalancesJSON(t *testing.T) {
	memoryEnv(t)
	out, err := run(t, "balances", "--json")
	require.NoError(t, err)

	var balances []services.AccountBalance
	require.NoError(t, json.Unmarshal([]byte(out), &balances))
	got := map[string]decimal.Decimal{}
	for _, b := range balances {
		got[b.Account] = b.Balance
	}
	assert.True(t, got["Sampath Bank"].Equal(decimal.NewFromInt(5000)))
	assert.True(t, got["Solo"].IsZero(), "unpaid reloads do not move money")
}

func TestUserFlag(t *testing.T) {
	memoryEnv(t)
	out, err := run(t, "list", "--user", "u2")
	require.NoError(t, err)
	assert.Contains(t, out, "x1")
	assert.NotContains(t, out, "d1")
}

func TestListAndStats(t *testing.T) {
	memoryEnv(t)
	out, err := run(t, "list", "--account", "Solo")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "Saman")
	assert.Contains(t, lines[1], "LKR 250.00")

	out, err = run(t, "stats", "--year", "2025", "--month", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-07")
	assert.Contains(t, out, "LKR 5,000.00")

	_, err = run(t, "stats", "--month", "13")
	assert.Error(t, err)
}

func TestDepositValidation(t *testing.T) {
	memoryEnv(t)
	out, err := run(t, "deposit", "--account", "Wallet", "--amount", "12,5")
	require.NoError(t, err)
	assert.Contains(t, out, "Recorded deposit")
	assert.Contains(t, out, "LKR 12.50")

	_, err = run(t, "withdraw", "--account", "Wallet", "--amount", "-3")
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = run(t, "deposit", "--account", "Piggy", "--amount", "3")
	assert.ErrorIs(t, err, core.ErrUnknownAccount)
}

func TestSettle(t *testing.T) {
	memoryEnv(t)
	_, err := run(t, "settle", "r1", "--pin", "0000")
	assert.ErrorIs(t, err, secret.ErrInvalid)

	out, err := run(t, "settle", "r1", "--pin", "2468")
	require.NoError(t, err)
	assert.Contains(t, out, "Settled reload r1")
}

func TestLoan(t *testing.T) {
	memoryEnv(t)
	out, err := run(t, "loan", "--loan-account", "Peoples Bank Loan", "--amount", "1000", "--deposit-account", "HNB Bank", "--purpose", "Stock", "--json")
	require.NoError(t, err)
	var res services.LoanResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, "Loan Taken: Stock", res.Loan.Reason)
	require.NotNil(t, res.Deposit)
	assert.Equal(t, "Loan Funds Received", res.Deposit.Reason)
}

func TestHashPIN(t *testing.T) {
	out, err := run(t, "hash-pin", "1234")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.True(t, secret.IsHash(hash))
	require.NoError(t, secret.MustNew(hash).Verify("1234"))

	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetIn(strings.NewReader("9876\n"))
	cmd.SetArgs([]string{"hash-pin"})
	require.NoError(t, cmd.Execute())
	require.NoError(t, secret.MustNew(strings.TrimSpace(buf.String())).Verify("9876"))
}

func TestQueue(t *testing.T) {
	memoryEnv(t)
	_, err := run(t, "queue", "stats")
	assert.Error(t, err, "queue needs the sqlite backend")

	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("DATA_BACKEND", "sqlite")
	t.Setenv("SQLITE_DB_PATH", dbPath)

	repo, err := storage.NewSQLiteRepository(dbPath, secret.MustNew("2468"))
	require.NoError(t, err)
	w, err := repo.AppendQueued(context.Background(), "u1", core.Transaction{
		ID: "q1", Date: core.FromSerial(45839), Type: core.Deposit,
		Amount: decimal.NewFromInt(1), BankAccount: "Wallet", IsPaid: true,
	})
	require.NoError(t, err)
	require.NoError(t, repo.MarkSyncFailed(context.Background(), w.QueueID, "sheet gone"))
	require.NoError(t, repo.Close())

	out, err := run(t, "queue", "stats")
	require.NoError(t, err)
	assert.Equal(t, "pending=0 processing=0 completed=0 failed=1\n", out)

	out, err = run(t, "queue", "retry")
	require.NoError(t, err)
	assert.Equal(t, "Requeued 1 failed entries\n", out)
}
