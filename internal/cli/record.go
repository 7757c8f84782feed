package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"moneymanager/internal/core"
	"moneymanager/internal/services"
)

func newMovementCommand(opts *rootOptions, use, short string) *cobra.Command {
	var account, amount, reason, date string
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := core.ParseAmount(amount)
			if err != nil {
				return err
			}
			l, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.close()

			when, err := parseDateFlag(date, l.reports.Location())
			if err != nil {
				return err
			}
			in := services.MovementInput{Account: account, Amount: amt, Reason: reason, Date: when}
			record := l.txs.Deposit
			if use == "withdraw" {
				record = l.txs.Withdraw
			}
			tx, err := record(cmd.Context(), opts.userID(l), in)
			if err != nil {
				return err
			}
			return printRecorded(cmd, opts, tx)
		},
	}
	cmd.Flags().StringVar(&account, "account", "", "account name")
	cmd.Flags().StringVar(&amount, "amount", "", "amount, e.g. 1250.50")
	cmd.Flags().StringVar(&reason, "reason", "", "free text reason")
	cmd.Flags().StringVar(&date, "date", "", "YYYY-MM-DD (default now)")
	_ = cmd.MarkFlagRequired("account")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newReloadCommand(opts *rootOptions) *cobra.Command {
	var customer, amount, account, date string
	var paid bool
	cmd := &cobra.Command{
		Use:   "reload",
		Short: "Record a mobile reload sold to a customer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := core.ParseAmount(amount)
			if err != nil {
				return err
			}
			l, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.close()

			when, err := parseDateFlag(date, l.reports.Location())
			if err != nil {
				return err
			}
			tx, err := l.txs.Reload(cmd.Context(), opts.userID(l), services.ReloadInput{
				Customer: customer,
				Amount:   amt,
				Date:     when,
				Account:  account,
				Paid:     paid,
			})
			if err != nil {
				return err
			}
			return printRecorded(cmd, opts, tx)
		},
	}
	cmd.Flags().StringVar(&customer, "customer", "", "customer name")
	cmd.Flags().StringVar(&amount, "amount", "", "reload value")
	cmd.Flags().StringVar(&account, "account", "", "account that paid for the reload")
	cmd.Flags().BoolVar(&paid, "paid", false, "customer already paid")
	cmd.Flags().StringVar(&date, "date", "", "YYYY-MM-DD (default now)")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func newRepairCommand(opts *rootOptions) *cobra.Command {
	var customer, device, fault, estimate, account string
	cmd := &cobra.Command{
		Use:   "repair",
		Short: "Record a repair job taken in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			est, err := core.ParseEstimate(estimate)
			if err != nil {
				return err
			}
			l, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.close()

			tx, err := l.txs.Repair(cmd.Context(), opts.userID(l), services.RepairInput{
				Customer: customer,
				Device:   device,
				Fault:    fault,
				Estimate: est,
				Account:  account,
			})
			if err != nil {
				return err
			}
			return printRecorded(cmd, opts, tx)
		},
	}
	cmd.Flags().StringVar(&customer, "customer", "", "customer name")
	cmd.Flags().StringVar(&device, "device", "", "phone or device model")
	cmd.Flags().StringVar(&fault, "fault", "", "reported fault")
	cmd.Flags().StringVar(&estimate, "estimate", "", "estimated price (blank leaves it pending)")
	cmd.Flags().StringVar(&account, "account", "", "receiving account")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func newLoanCommand(opts *rootOptions) *cobra.Command {
	var loanAccount, amount, depositAccount, purpose string
	cmd := &cobra.Command{
		Use:   "loan",
		Short: "Record a loan and the deposit of its funds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			amt, err := core.ParseAmount(amount)
			if err != nil {
				return err
			}
			l, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.close()

			res, err := l.txs.TakeLoan(cmd.Context(), opts.userID(l), services.LoanInput{
				LoanAccount:    loanAccount,
				Amount:         amt,
				DepositAccount: depositAccount,
				Purpose:        purpose,
			})
			if errors.Is(err, services.ErrLoanDepositFailed) {
				fmt.Fprintf(cmd.ErrOrStderr(), "loan %s was recorded but its deposit was not; record the deposit manually\n", res.Loan.ID)
			}
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s\n", res.Loan.Type, res.Loan.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s\n", res.Deposit.Type, res.Deposit.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&loanAccount, "loan-account", "", "loan account name")
	cmd.Flags().StringVar(&amount, "amount", "", "loan amount")
	cmd.Flags().StringVar(&depositAccount, "deposit-account", "", "regular account receiving the funds")
	cmd.Flags().StringVar(&purpose, "purpose", "", "what the loan is for")
	_ = cmd.MarkFlagRequired("loan-account")
	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("deposit-account")
	return cmd
}

func newSettleCommand(opts *rootOptions) *cobra.Command {
	var pin, price, account string
	cmd := &cobra.Command{
		Use:   "settle <id>",
		Short: "Mark a pending reload or repair as paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var p decimal.Decimal
			if strings.TrimSpace(price) != "" {
				var err error
				if p, err = core.ParseAmount(price); err != nil {
					return err
				}
			}
			l, err := openLedger(cmd.Context())
			if err != nil {
				return err
			}
			defer l.close()

			tx, err := l.txs.Settle(cmd.Context(), opts.userID(l), services.SettleInput{
				ID:      args[0],
				Secret:  pin,
				Price:   p,
				Account: account,
			})
			if err != nil {
				return err
			}
			if opts.json {
				return writeJSON(cmd.OutOrStdout(), tx)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Settled %s %s for %s\n", tx.Type, tx.ID, core.FormatAmount(tx.Amount))
			return nil
		},
	}
	cmd.Flags().StringVar(&pin, "pin", "", "secure PIN")
	cmd.Flags().StringVar(&price, "price", "", "final price (repairs only)")
	cmd.Flags().StringVar(&account, "account", "", "receiving account (repairs only)")
	_ = cmd.MarkFlagRequired("pin")
	return cmd
}

func parseDateFlag(s string, loc *time.Location) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	return core.ParseTimestamp(s, loc)
}

func printRecorded(cmd *cobra.Command, opts *rootOptions, tx core.Transaction) error {
	if opts.json {
		return writeJSON(cmd.OutOrStdout(), tx)
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "Recorded %s %s %s\n", tx.Type, tx.ID, core.FormatAmount(tx.Amount))
	return err
}
