package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"oracle-price-audit/internal/app"
)

var (
	auditWorkers     int
	auditFindingsCSV string
	auditTableLimit  int
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Run the full audit over the configured submission logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		workers := auditWorkers
		if workers <= 0 {
			workers = getApp().Config.Audit.Workers
		}
		if auditTableLimit < 0 {
			return fmt.Errorf("--table-limit cannot be negative")
		}

		opts := app.AuditOptions{
			Workers:     workers,
			FindingsCSV: auditFindingsCSV,
			TableLimit:  auditTableLimit,
		}

		return getApp().Audit(cmd.Context(), opts)
	},
}

func init() {
	auditCmd.Flags().IntVar(&auditWorkers, "workers", 0, "Number of concurrent detector workers (defaults to config)")
	auditCmd.Flags().StringVar(&auditFindingsCSV, "findings-csv", "", "Path to write findings CSV")
	auditCmd.Flags().IntVar(&auditTableLimit, "table-limit", 50, "Maximum rows per printed table (0 = unlimited)")
}
