package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"moneymanager/internal/core"
)

func newBalancesCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balances",
		Short: "Show the balance of every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.close()

			balances, err := l.reports.Balances(cmd.Context(), opts.userID(l))
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), balances)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACCOUNT\tKIND\tBALANCE")
			for _, b := range balances {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", b.Account, b.Kind, core.FormatAmount(b.Balance))
			}
			return tw.Flush()
		},
	}
}

func newStatsCommand(opts *rootOptions) *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show income and expense for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if month < 0 || month > 12 {
				return fmt.Errorf("invalid month %d", month)
			}
			l, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.close()

			now := time.Now().In(l.reports.Location())
			if year == 0 {
				year = now.Year()
			}
			if month == 0 {
				month = int(now.Month())
			}
			stats, err := l.reports.MonthlyStats(cmd.Context(), opts.userID(l), year, time.Month(month))
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), stats)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "Month\t%04d-%02d\n", stats.Year, stats.Month)
			fmt.Fprintf(tw, "Income\t%s\n", core.FormatAmount(stats.Income))
			fmt.Fprintf(tw, "Expense\t%s\n", core.FormatAmount(stats.Expense))
			fmt.Fprintf(tw, "Net\t%s\n", core.FormatAmount(stats.Net))
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	return cmd
}

func newListCommand(opts *rootOptions) *cobra.Command {
	var account string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			l, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.close()

			txs, err := l.reports.Transactions(cmd.Context(), opts.userID(l), account)
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), txs)
			}
			loc := l.reports.Location()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "DATE\tTYPE\tACCOUNT\tAMOUNT\tPAID\tID\tDETAILS")
			for _, t := range txs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\t%s\n",
					formatDate(t.Date, loc), t.Type, t.BankAccount, core.FormatAmount(t.Amount),
					t.IsPaid, t.ID, details(t))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "only show this account")
	return cmd
}

func details(t core.Transaction) string {
	switch t.Type {
	case core.Reload:
		return t.CustomerName
	case core.Repair:
		return fmt.Sprintf("%s: %s %s (%s)", t.CustomerName, t.PhoneName, t.Fault, t.PriceStatus)
	default:
		return t.Reason
	}
}
