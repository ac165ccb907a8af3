package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nhle/leadmail/internal/app"
	"github.com/nhle/leadmail/internal/model"
)

// Environment variables read at startup. A .env file in the working
// directory is loaded first when present.
const (
	envEncryptionKey = "LEADMAIL_ENCRYPTION_KEY"
	envAnthropicKey  = "ANTHROPIC_API_KEY"
	envOpenAIKey     = "OPENAI_API_KEY"
)

var (
	// configPath is the path to the YAML configuration file.
	configPath string

	// logLevel overrides logging.level from the configuration.
	logLevel string

	// cfg is loaded before any subcommand runs.
	cfg *model.AppConfig
)

// rootCmd is the base command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "leadmail",
	Short: "Poll mailboxes into a lead database",
	Long: `leadmail polls IMAP mailboxes, files every message under the lead that
sent it and asks an AI model for follow-up tasks, meetings and sales
opportunities.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		loaded, err := model.LoadConfig(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			loaded.Logging.Level = logLevel
		}
		cfg = loaded
		return nil
	},
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", model.DefaultConfigPath(),
		"Path to the configuration file",
	)
	rootCmd.PersistentFlags().StringVar(
		&logLevel, "log-level", "",
		"Log level: debug, info, warn, error (default from config)",
	)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(onceCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(leadsCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(aiKeyCmd)
}

// openApp builds the application context. Logs go to logWriter, or
// stderr when nil.
func openApp(logWriter io.Writer) (*app.App, error) {
	a, err := app.New(cfg, app.Options{
		LogWriter:     logWriter,
		EncryptionKey: os.Getenv(envEncryptionKey),
		AIAPIKey:      envAIKey(cfg.AI.Provider),
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// envAIKey returns the provider's API key from the environment.
func envAIKey(provider string) string {
	if provider == "openai" {
		return os.Getenv(envOpenAIKey)
	}
	return os.Getenv(envAnthropicKey)
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func closeApp(a *app.App) {
	if err := a.Close(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
}
