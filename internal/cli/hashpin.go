package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"moneymanager/internal/secret"
)

// newHashPINCommand prints a bcrypt hash to use as SECURE_PIN. The PIN is
// read from stdin when not given as an argument.
func newHashPINCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-pin [pin]",
		Short: "Print a bcrypt hash of a PIN for SECURE_PIN",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pin string
			if len(args) == 1 {
				pin = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("read PIN from stdin: %w", err)
				}
				pin = strings.TrimRight(line, "\r\n")
			}
			if pin == "" {
				return errors.New("empty PIN")
			}
			hash, err := secret.Hash(pin)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hash)
			return err
		},
	}
}
