package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"oracle-price-audit/internal/storage"
)

type auditReader interface {
	ListStaleRuns(ctx context.Context, auditID int64) ([]storage.StaleRunRow, error)
	ListLagEvents(ctx context.Context, auditID int64) ([]storage.LagEventRow, error)
}

// Show prints recent persisted audits, or the findings of one audit when
// an id is given.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show audits")
	}
	defer closeStore()

	if opts.AuditID > 0 {
		return a.showAudit(ctx, store, opts.AuditID)
	}

	audits, err := store.ListRecentAudits(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(audits) == 0 {
		fmt.Fprintln(os.Stdout, "no audits found")
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "ID\tStarted (UTC)\tRows\tDropped\tGroups\tStaleRuns\tLagEvents")
	for _, audit := range audits {
		fmt.Fprintf(
			writer,
			"%d\t%s\t%d\t%d\t%d\t%d\t%d\n",
			audit.ID,
			audit.StartedAt.UTC().Format(time.RFC3339),
			audit.RowsLoaded,
			audit.RowsDropped,
			audit.Groups,
			audit.StaleRuns,
			audit.LagEvents,
		)
	}
	writer.Flush()
	return nil
}

func (a *App) showAudit(ctx context.Context, store auditReader, auditID int64) error {
	runs, err := store.ListStaleRuns(ctx, auditID)
	if err != nil {
		return err
	}
	events, err := store.ListLagEvents(ctx, auditID)
	if err != nil {
		return err
	}
	if len(runs) == 0 && len(events) == 0 {
		fmt.Fprintf(os.Stdout, "no findings recorded for audit %d\n", auditID)
		return nil
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if len(runs) > 0 {
		fmt.Fprintln(writer, "Validator\tPair\tValue\tStart (UTC)\tEnd (UTC)\tLength")
		for _, run := range runs {
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\t%s\t%s\t%d\n",
				run.Validator,
				run.Pair,
				run.Value,
				run.StartTS.UTC().Format(time.RFC3339),
				run.EndTS.UTC().Format(time.RFC3339),
				run.Length,
			)
		}
	}
	if len(events) > 0 {
		fmt.Fprintln(writer, "Validator\tPair\tWindow (UTC)\tValidator%\tBenchmark%\tReason")
		for _, event := range events {
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\t%s\t%s\t%s\n",
				event.Validator,
				event.Pair,
				event.WindowStart.UTC().Format(time.RFC3339),
				event.ValidatorPctChange,
				event.BenchmarkPctChange,
				event.Reason,
			)
		}
	}
	writer.Flush()
	return nil
}
