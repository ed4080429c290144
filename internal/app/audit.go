package app

import (
	"context"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"oracle-price-audit/internal/detector"
	"oracle-price-audit/internal/loader"
	"oracle-price-audit/internal/report"
	"oracle-price-audit/internal/storage"
)

// Audit runs the full pipeline: load, detect per group, aggregate, render,
// and optionally persist findings.
func (a *App) Audit(ctx context.Context, opts AuditOptions) error {
	startedAt := time.Now().UTC()

	dataset, err := a.newLoader().Load()
	if err != nil {
		return err
	}

	result, err := a.analyze(ctx, dataset, opts.Workers)
	if err != nil {
		return err
	}
	result.GeneratedAt = startedAt

	report.RenderScores(os.Stdout, result.Scores)
	if len(result.Runs) > 0 {
		report.RenderRuns(os.Stdout, result.Runs, opts.TableLimit)
	}
	if len(result.LagEvents) > 0 {
		report.RenderLagEvents(os.Stdout, result.LagEvents, opts.TableLimit)
	}

	if opts.FindingsCSV != "" {
		if err := report.WriteFindingsCSV(opts.FindingsCSV, result); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.FindingsCSV).Msg("findings written")
	}

	if err := a.persistResult(ctx, result, startedAt, len(dataset.Groups)); err != nil {
		return err
	}

	a.Logger.Info().
		Int("stale_runs", len(result.Runs)).
		Int("lag_events", len(result.LagEvents)).
		Int("groups", len(dataset.Groups)).
		Dur("elapsed", time.Since(startedAt)).
		Msg("audit complete")

	return nil
}

// analyze runs the detectors over every validator/pair group. Groups are
// independent, so detection fans out across workers; results are sorted
// afterwards so output stays deterministic regardless of worker count.
func (a *App) analyze(ctx context.Context, dataset *loader.Dataset, workers int) (*report.Result, error) {
	params := detector.ParamsFromConfig(a.Config.Detector)
	keys := dataset.SortedKeys()

	type groupFindings struct {
		runs     []detector.Run
		lags     []detector.LagEvent
		coverage detector.CoverageStats
	}
	findings := make([]groupFindings, len(keys))

	g, gctx := errgroup.WithContext(ctx)
	if workers <= 0 {
		workers = 1
	}
	g.SetLimit(workers)

	for i, key := range keys {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			series := dataset.Groups[key]
			pp := params.ForPair(key.Pair)

			var f groupFindings
			f.runs = detector.DetectRuns(key, series, params.MinRunLength, pp.Tolerance)
			if benchmark, ok := dataset.Benchmarks[key.Pair]; ok {
				f.lags = detector.DetectLag(key, series, benchmark, params.LagHorizon, pp.LagThreshold)
			}
			f.coverage = detector.AnalyzeCoverage(key, series, pp, params.GapMultiple)

			findings[i] = f
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &report.Result{
		RowsLoaded:   dataset.RowsLoaded,
		RowsDropped:  dataset.RowsDropped,
		CellsDropped: dataset.CellsDropped,
	}
	for _, f := range findings {
		result.Runs = append(result.Runs, f.runs...)
		result.LagEvents = append(result.LagEvents, f.lags...)
		result.Coverage = append(result.Coverage, f.coverage)
	}

	report.SortFindings(result)
	result.Scores = report.BuildScores(result.Runs, result.LagEvents, result.Coverage)
	return result, nil
}

func (a *App) persistResult(ctx context.Context, result *report.Result, startedAt time.Time, groups int) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Debug().Msg("database.dsn not configured; findings not persisted")
		return nil
	}
	defer closeStore()

	record, err := store.InsertAuditRun(ctx, storage.AuditRecord{
		StartedAt:    startedAt,
		FinishedAt:   time.Now().UTC(),
		RowsLoaded:   result.RowsLoaded,
		RowsDropped:  result.RowsDropped,
		CellsDropped: result.CellsDropped,
		Groups:       groups,
		StaleRuns:    len(result.Runs),
		LagEvents:    len(result.LagEvents),
	})
	if err != nil {
		return err
	}

	runRows := make([]storage.StaleRunRow, 0, len(result.Runs))
	for _, run := range result.Runs {
		runRows = append(runRows, storage.StaleRunRow{
			AuditID:   record.ID,
			Validator: run.Validator,
			Pair:      run.Pair,
			Value:     run.Value.String(),
			StartTS:   run.Start,
			EndTS:     run.End,
			Length:    run.Length,
		})
	}
	if err := store.InsertStaleRuns(ctx, runRows); err != nil {
		return err
	}

	eventRows := make([]storage.LagEventRow, 0, len(result.LagEvents))
	for _, event := range result.LagEvents {
		eventRows = append(eventRows, storage.LagEventRow{
			AuditID:            record.ID,
			Validator:          event.Validator,
			Pair:               event.Pair,
			WindowStart:        event.WindowStart,
			PriceNow:           event.PriceNow.String(),
			PriceFuture:        event.PriceFuture.String(),
			ValidatorPctChange: event.ValidatorPctChange.String(),
			BenchmarkPctChange: event.BenchmarkPctChange.String(),
			Reason:             event.Reason,
		})
	}
	if err := store.InsertLagEvents(ctx, eventRows); err != nil {
		return err
	}

	a.Logger.Info().Int64("audit_id", record.ID).Msg("findings persisted")
	return nil
}
