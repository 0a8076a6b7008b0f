// history.go implements "sketchbook history", listing the account's turns.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List the turns saved for your account",
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}

	turns, err := a.client.FetchHistory(cmd.Context())
	if err != nil {
		return fmt.Errorf("fetching history: %w", err)
	}

	newView(cmd.OutOrStdout()).turns(turns)
	return nil
}
