package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"oracle-price-audit/internal/app"
)

var (
	fetchPair string
	fetchFrom string
	fetchTo   string
)

var fetchBenchmarkCmd = &cobra.Command{
	Use:   "fetch-benchmark",
	Short: "Download a pair's benchmark minute closes and cache them as CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if fetchPair == "" {
			return fmt.Errorf("--pair must be provided")
		}
		if fetchFrom == "" || fetchTo == "" {
			return fmt.Errorf("--from and --to must be provided")
		}

		from, err := time.Parse(time.RFC3339, fetchFrom)
		if err != nil {
			return fmt.Errorf("invalid --from value: %w", err)
		}

		to, err := time.Parse(time.RFC3339, fetchTo)
		if err != nil {
			return fmt.Errorf("invalid --to value: %w", err)
		}

		if !from.Before(to) {
			return fmt.Errorf("--from must be before --to")
		}

		opts := app.FetchOptions{
			Pair: fetchPair,
			From: from,
			To:   to,
		}

		return getApp().FetchBenchmark(cmd.Context(), opts)
	},
}

func init() {
	fetchBenchmarkCmd.Flags().StringVar(&fetchPair, "pair", "", "Pair to fetch, e.g. EUR-USD")
	fetchBenchmarkCmd.Flags().StringVar(&fetchFrom, "from", "", "Start timestamp (RFC3339, inclusive)")
	fetchBenchmarkCmd.Flags().StringVar(&fetchTo, "to", "", "End timestamp (RFC3339, exclusive)")
}
