package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/ui/accountform"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage mail accounts",
}

var (
	addName     string
	addServer   string
	addPort     int
	addStartTLS bool
	addUsername string
	addFrom     string
	addInterval int
)

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a mail account",
	Long: `Add a mail account. Without --name an interactive form is shown.
With flags, the password is read from LEADMAIL_MAIL_PASSWORD.`,
	RunE: runAccountAdd,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List mail accounts",
	RunE:  runAccountList,
}

var accountEnableCmd = &cobra.Command{
	Use:   "enable ACCOUNT_ID",
	Short: "Resume polling an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountEnabled(cmd, args[0], true)
	},
}

var accountDisableCmd = &cobra.Command{
	Use:   "disable ACCOUNT_ID",
	Short: "Stop polling an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setAccountEnabled(cmd, args[0], false)
	},
}

func init() {
	f := accountAddCmd.Flags()
	f.StringVar(&addName, "name", "", "Account label")
	f.StringVar(&addServer, "server", "", "IMAP server host")
	f.IntVar(&addPort, "port", 0, "IMAP port (default 993, or 143 with --starttls)")
	f.BoolVar(&addStartTLS, "starttls", false, "Upgrade with STARTTLS instead of implicit TLS")
	f.StringVar(&addUsername, "username", "", "IMAP username")
	f.StringVar(&addFrom, "from", "", "Only fetch mail from this sender")
	f.IntVar(&addInterval, "interval", 0, "Poll interval in seconds (default from config)")

	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountEnableCmd)
	accountCmd.AddCommand(accountDisableCmd)
}

func runAccountAdd(cmd *cobra.Command, args []string) error {
	var account model.MailAccount

	if addName == "" {
		form := accountform.New(80, 24)
		if err := form.Form().Run(); err != nil {
			return fmt.Errorf("account form: %w", err)
		}
		a, err := form.Account()
		if err != nil {
			return err
		}
		account = a
	} else {
		account = model.MailAccount{
			Name:            addName,
			MailServer:      addServer,
			MailPort:        addPort,
			UseTLS:          !addStartTLS,
			Username:        addUsername,
			Password:        os.Getenv("LEADMAIL_MAIL_PASSWORD"),
			FromFilter:      addFrom,
			PollIntervalSec: addInterval,
			Enabled:         true,
		}
	}

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Store.CreateAccount(context.Background(), &account); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added account %s (%s)\n", account.Name, account.ID)
	return nil
}

func runAccountList(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	accounts, err := a.Store.ListAccounts(context.Background(), false)
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No accounts. Add one with `leadmail account add`.")
		return nil
	}

	t := table.New().Headers("ID", "NAME", "SERVER", "USER", "INTERVAL", "ENABLED")
	for _, acc := range accounts {
		t.Row(
			acc.ID,
			acc.Name,
			acc.Addr(),
			acc.Username,
			acc.PollInterval(cfg.Scheduler.Interval()).String(),
			strconv.FormatBool(acc.Enabled),
		)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}

func setAccountEnabled(cmd *cobra.Command, id string, enabled bool) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Store.SetAccountEnabled(context.Background(), id, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Account %s %s\n", id, state)
	return nil
}
