package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/leadmail/internal/ui/report"
)

var onceAccounts []string

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run one polling cycle and print the reports",
	Long: `Poll every enabled account once, or only the accounts given with
--account (disabled ones included), and print a report per account.`,
	RunE: runOnce,
}

func init() {
	onceCmd.Flags().StringSliceVar(
		&onceAccounts, "account", nil,
		"Account ID to poll (repeatable)",
	)
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	reports, err := a.Scheduler.RunOnce(ctx, onceAccounts...)
	if err != nil {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts to poll.")
		return nil
	}

	aborted := 0
	for i, r := range reports {
		if i > 0 {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Render(r))
		if r.Aborted() {
			aborted++
		}
	}

	if aborted > 0 {
		return fmt.Errorf("%d of %d cycles aborted", aborted, len(reports))
	}
	return nil
}
