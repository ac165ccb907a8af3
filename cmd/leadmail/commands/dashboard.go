package commands

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/leadmail/internal/ui/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Poll in the background and show a live dashboard",
	Long: `Start the polling scheduler and open a terminal dashboard with the
state of every account, the last cycle reports and unread notifications.
Logs are written to leadmail.log next to the database.`,
	RunE: runDashboard,
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	logPath := filepath.Join(filepath.Dir(cfg.Database.Path), "leadmail.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	defer logFile.Close()

	a, err := openApp(logFile)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Scheduler.Start(ctx); err != nil {
		return err
	}

	p := tea.NewProgram(
		dashboard.New(a.Scheduler, a.Store),
		tea.WithAltScreen(),
		tea.WithContext(ctx),
	)
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("running dashboard: %w", err)
	}
	return nil
}
