package commands

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/nhle/leadmail/internal/model"
	"github.com/nhle/leadmail/internal/store"
)

var (
	leadsAccount string
	leadsStatus  string
	leadsQuery   string
	leadsLimit   int
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List leads, most recently contacted first",
	RunE:  runLeads,
}

func init() {
	leadsCmd.Flags().StringVar(&leadsAccount, "account", "", "Only leads of this account ID")
	leadsCmd.Flags().StringVar(&leadsStatus, "status", "", "Only leads in this status (New, Contacted, Qualified, Unqualified, Spam)")
	leadsCmd.Flags().StringVarP(&leadsQuery, "query", "q", "", "Search name and address")
	leadsCmd.Flags().IntVar(&leadsLimit, "limit", 50, "Maximum number of leads")
}

func runLeads(cmd *cobra.Command, args []string) error {
	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	filter := store.LeadFilter{Limit: leadsLimit}
	if leadsAccount != "" {
		filter.AccountID = &leadsAccount
	}
	if leadsStatus != "" {
		status := model.LeadStatus(leadsStatus)
		filter.Status = &status
	}
	if leadsQuery != "" {
		filter.Query = &leadsQuery
	}

	leads, err := a.Store.GetLeads(context.Background(), filter)
	if err != nil {
		return err
	}
	if len(leads) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No leads.")
		return nil
	}

	t := table.New().Headers("ID", "NAME", "EMAIL", "STATUS", "LAST CONTACT")
	for _, l := range leads {
		last := ""
		if l.LastContact != nil {
			last = l.LastContact.Local().Format("2006-01-02 15:04")
		}
		t.Row(l.ID, l.Name, l.Email, string(l.Status), last)
	}
	fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return nil
}
