package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze LEAD_ID",
	Short: "Analyze a lead's correspondence with the AI model",
	Long: `Send the lead's email history to the AI model, store the resulting
behavior analysis and print a summary.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	a, err := openApp(nil)
	if err != nil {
		return err
	}
	defer closeApp(a)

	lead, err := a.Store.GetLead(ctx, args[0])
	if err != nil {
		return err
	}
	account, err := a.Store.GetAccount(ctx, lead.AccountID)
	if err != nil {
		return err
	}
	emails, err := a.Store.EmailsForLead(ctx, lead.ID, 0)
	if err != nil {
		return err
	}

	analyzer, err := a.AI.Analyzer(account)
	if err != nil {
		return err
	}
	analysis, result, err := analyzer.Analyze(ctx, lead, emails)
	if err != nil {
		return err
	}
	if err := a.Store.SaveBehaviorAnalysis(ctx, analysis); err != nil {
		return err
	}

	s := result.Summary()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s <%s>, %d emails\n\n", lead.Name, lead.Email, len(emails))
	printField(out, "Frequency", s.Frequency)
	printField(out, "Response time", s.ResponseTime)
	printField(out, "Preferred time", s.PreferredTime)
	printField(out, "Engagement", s.EngagementLevel)
	printList(out, "Interests", s.Interests)
	printList(out, "Key points", s.KeyPoints)
	printList(out, "Risks", s.RiskFactors)
	printList(out, "Next actions", s.RecommendedActions)
	fmt.Fprintf(out, "\n%s\n", s.Summary)
	return nil
}

func printField(w io.Writer, label, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(w, "%-15s %s\n", label+":", value)
}

func printList(w io.Writer, label string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "%s:\n  - %s\n", label, strings.Join(items, "\n  - "))
}
