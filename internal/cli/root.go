package cli

import (
	"github.com/spf13/cobra"
)

type rootOptions struct {
	json    bool
	verbose bool
	user    string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Inspect and record money manager transactions",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			setupLogger(opts.verbose)
		},
	}
	rootCmd.PersistentFlags().BoolVar(&opts.json, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	rootCmd.PersistentFlags().StringVar(&opts.user, "user", "", "ledger owner (default USER_ID)")

	rootCmd.AddCommand(
		newBalancesCommand(opts),
		newStatsCommand(opts),
		newListCommand(opts),
		newMovementCommand(opts, "deposit", "Record money coming into an account"),
		newMovementCommand(opts, "withdraw", "Record money leaving an account"),
		newReloadCommand(opts),
		newRepairCommand(opts),
		newLoanCommand(opts),
		newSettleCommand(opts),
		newQueueCommand(opts),
		newHashPINCommand(),
	)
	return rootCmd
}

func (o *rootOptions) userID(l *ledger) string {
	if o.user != "" {
		return o.user
	}
	return l.cfg.UserID
}
