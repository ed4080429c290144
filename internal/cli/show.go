package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"oracle-price-audit/internal/app"
)

var (
	showLimit   int
	showAuditID int64
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display recent persisted audits or one audit's findings",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Limit:   showLimit,
			AuditID: showAuditID,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of audits to display")
	showCmd.Flags().Int64Var(&showAuditID, "audit-id", 0, "Show findings for a specific audit")
}
