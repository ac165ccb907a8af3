package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/leadmail/internal/credential"
)

var aiKeyCmd = &cobra.Command{
	Use:   "ai-key",
	Short: "Store the global AI provider key in the system keyring",
	Long: `Store the AI provider key used by accounts that have no key of their
own. ANTHROPIC_API_KEY or OPENAI_API_KEY still take precedence.`,
	RunE: runAIKey,
}

func runAIKey(cmd *cobra.Command, args []string) error {
	var key string
	err := huh.NewInput().
		Title(fmt.Sprintf("%s API key", cfg.AI.Provider)).
		EchoMode(huh.EchoModePassword).
		Value(&key).
		Validate(func(s string) error {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("API key is required")
			}
			return nil
		}).
		Run()
	if err != nil {
		return fmt.Errorf("reading key: %w", err)
	}

	ring, err := credential.OpenKeyring()
	if err != nil {
		return fmt.Errorf("opening keyring: %w", err)
	}
	if err := ring.Set(credential.KeyAIAPI, strings.TrimSpace(key)); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "AI key saved.")
	return nil
}
