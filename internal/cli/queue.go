package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newQueueCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Inspect the Google Sheets sync queue (sqlite backend)",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Count queue entries by status",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				repo, err := openOutbox()
				if err != nil {
					return err
				}
				defer repo.Close()

				stats, err := repo.GetSyncQueueStats(cmd.Context())
				if err != nil {
					return err
				}
				if opts.json {
					return writeJSON(cmd.OutOrStdout(), stats)
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "pending=%d processing=%d completed=%d failed=%d\n",
					stats.Pending, stats.Processing, stats.Completed, stats.Failed)
				return err
			},
		},
		&cobra.Command{
			Use:   "retry",
			Short: "Reset failed entries so the worker tries them again",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				repo, err := openOutbox()
				if err != nil {
					return err
				}
				defer repo.Close()

				n, err := repo.RetryFailedSyncs(cmd.Context())
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "Requeued %d failed entries\n", n)
				return err
			},
		},
	)
	return cmd
}
