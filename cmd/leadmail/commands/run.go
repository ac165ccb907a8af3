package commands

import (
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll every enabled account until interrupted",
	Long: `Run the polling scheduler in the foreground. Every enabled account is
polled at once and then on the configured interval until SIGINT or SIGTERM.`,
	RunE: runRun,
}

func runRun(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	a.Logger.Info().Msg("shutting down")
	return nil
}
