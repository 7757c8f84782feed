package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"moneymanager/internal/core"
	"moneymanager/internal/sheets"
)

// RecentLimit is how many transactions the dashboard lists.
const RecentLimit = 20

// Account kinds reported with balances.
const (
	KindRegular = "regular"
	KindLoan    = "loan"
)

type (
	// AccountBalance is one account's reconciled balance.
	AccountBalance struct {
		Account string          `json:"account"`
		Kind    string          `json:"kind"`
		Balance decimal.Decimal `json:"balance"`
	}

	// Dashboard is everything the overview screen shows.
	Dashboard struct {
		Balances         []AccountBalance      `json:"balances"`
		Month            core.MonthlyStats     `json:"month"`
		Breakdown        []core.CategoryAmount `json:"breakdown"`
		OutstandingLoans []AccountBalance      `json:"outstanding_loans"`
		Recent           []core.Transaction    `json:"recent"`
		AccountFilter    string                `json:"account_filter,omitempty"`
	}
)

// LedgerService derives balances and aggregates from the full transaction
// set on every call.
type LedgerService struct {
	store    sheets.TransactionFetcher
	accounts core.Accounts
	loc      *time.Location
}

// NewLedgerService reports months in loc; nil means UTC.
func NewLedgerService(store sheets.TransactionFetcher, accounts core.Accounts, loc *time.Location) *LedgerService {
	if loc == nil {
		loc = time.UTC
	}
	return &LedgerService{store: store, accounts: accounts, loc: loc}
}

func (s *LedgerService) Accounts() core.Accounts { return s.accounts }

func (s *LedgerService) Location() *time.Location { return s.loc }

// Transactions returns the user's history newest first, optionally limited
// to one account.
func (s *LedgerService) Transactions(ctx context.Context, userID, account string) ([]core.Transaction, error) {
	if account != "" && !s.accounts.Contains(account) {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownAccount, account)
	}
	txs, err := s.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(txs)
	return filterAccount(txs, account), nil
}

func (s *LedgerService) Balances(ctx context.Context, userID string) ([]AccountBalance, error) {
	txs, err := s.fetch(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.balanceList(txs), nil
}

// MonthlyStats aggregates the given month in the service's location.
func (s *LedgerService) MonthlyStats(ctx context.Context, userID string, year int, month time.Month) (core.MonthlyStats, error) {
	if month < time.January || month > time.December {
		return core.MonthlyStats{}, fmt.Errorf("invalid month: %d", month)
	}
	txs, err := s.fetch(ctx, userID)
	if err != nil {
		return core.MonthlyStats{}, err
	}
	return core.ComputeMonthlyStats(txs, year, month), nil
}

// Dashboard assembles the overview for the month containing now.
func (s *LedgerService) Dashboard(ctx context.Context, userID string, now time.Time, account string) (Dashboard, error) {
	if account != "" && !s.accounts.Contains(account) {
		return Dashboard{}, fmt.Errorf("%w: %q", core.ErrUnknownAccount, account)
	}
	txs, err := s.fetch(ctx, userID)
	if err != nil {
		return Dashboard{}, err
	}
	now = now.In(s.loc)

	balances := s.balanceList(txs)
	loans := make([]AccountBalance, 0)
	for _, b := range balances {
		if b.Kind == KindLoan && b.Balance.IsPositive() {
			loans = append(loans, b)
		}
	}

	sortNewestFirst(txs)
	recent := filterAccount(txs, account)
	if len(recent) > RecentLimit {
		recent = recent[:RecentLimit]
	}

	return Dashboard{
		Balances:         balances,
		Month:            core.ComputeMonthlyStats(txs, now.Year(), now.Month()),
		Breakdown:        core.ComputeExpenseBreakdown(txs),
		OutstandingLoans: loans,
		Recent:           recent,
		AccountFilter:    account,
	}, nil
}

// fetch loads the user's rows with dates moved into the reporting location.
func (s *LedgerService) fetch(ctx context.Context, userID string) ([]core.Transaction, error) {
	txs, err := s.store.FetchAll(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("fetch transactions: %w", err)
	}
	out := make([]core.Transaction, len(txs))
	for i, t := range txs {
		t.Date = t.Date.In(s.loc)
		out[i] = t
	}
	return out, nil
}

func (s *LedgerService) balanceList(txs []core.Transaction) []AccountBalance {
	m := s.accounts.Balances(txs)
	out := make([]AccountBalance, 0, len(m))
	for _, acc := range s.accounts.Regular {
		out = append(out, AccountBalance{Account: acc, Kind: KindRegular, Balance: m[acc]})
	}
	for _, acc := range s.accounts.Loan {
		out = append(out, AccountBalance{Account: acc, Kind: KindLoan, Balance: m[acc]})
	}
	return out
}

func sortNewestFirst(txs []core.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].Date.After(txs[j].Date) })
}

func filterAccount(txs []core.Transaction, account string) []core.Transaction {
	if account == "" {
		return txs
	}
	out := make([]core.Transaction, 0, len(txs))
	for _, t := range txs {
		if t.BankAccount == account {
			out = append(out, t)
		}
	}
	return out
}
