package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertAuditRunSQL = `INSERT INTO audit_runs (
        started_at,
        finished_at,
        rows_loaded,
        rows_dropped,
        cells_dropped,
        groups,
        stale_runs,
        lag_events
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8
    )
    RETURNING id, created_at;`

	listRecentAuditsSQL = `SELECT
        id,
        started_at,
        finished_at,
        rows_loaded,
        rows_dropped,
        cells_dropped,
        groups,
        stale_runs,
        lag_events,
        created_at
    FROM audit_runs
    ORDER BY created_at DESC
    LIMIT $1;`

	insertStaleRunSQL = `INSERT INTO stale_runs (
        audit_id,
        validator,
        pair,
        value,
        start_ts,
        end_ts,
        length
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7
    )
    ON CONFLICT (audit_id, validator, pair, start_ts) DO UPDATE
    SET value  = EXCLUDED.value,
        end_ts = EXCLUDED.end_ts,
        length = EXCLUDED.length;`

	insertLagEventSQL = `INSERT INTO lag_events (
        audit_id,
        validator,
        pair,
        window_start,
        price_now,
        price_future,
        validator_pct_change,
        benchmark_pct_change,
        reason
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9
    )
    ON CONFLICT (audit_id, validator, pair, window_start) DO UPDATE
    SET price_now            = EXCLUDED.price_now,
        price_future         = EXCLUDED.price_future,
        validator_pct_change = EXCLUDED.validator_pct_change,
        benchmark_pct_change = EXCLUDED.benchmark_pct_change,
        reason               = EXCLUDED.reason;`

	listStaleRunsSQL = `SELECT
        audit_id,
        validator,
        pair,
        value,
        start_ts,
        end_ts,
        length
    FROM stale_runs
    WHERE audit_id = $1
    ORDER BY validator, pair, start_ts;`

	listLagEventsSQL = `SELECT
        audit_id,
        validator,
        pair,
        window_start,
        price_now,
        price_future,
        validator_pct_change,
        benchmark_pct_change,
        reason
    FROM lag_events
    WHERE audit_id = $1
    ORDER BY validator, pair, window_start;`

	deleteAuditsBeforeSQL = `DELETE FROM audit_runs WHERE created_at < $1;`
)

// AuditStore defines operations for audit run bookkeeping.
type AuditStore interface {
	InsertAuditRun(ctx context.Context, record AuditRecord) (AuditRecord, error)
	ListRecentAudits(ctx context.Context, limit int) ([]AuditRecord, error)
	DeleteAuditsBefore(ctx context.Context, olderThan time.Time) error
}

// FindingStore defines operations for persisted detector findings.
type FindingStore interface {
	InsertStaleRuns(ctx context.Context, rows []StaleRunRow) error
	InsertLagEvents(ctx context.Context, rows []LagEventRow) error
	ListStaleRuns(ctx context.Context, auditID int64) ([]StaleRunRow, error)
	ListLagEvents(ctx context.Context, auditID int64) ([]LagEventRow, error)
}

// Store aggregates access to audit runs and findings.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// InsertAuditRun records a completed audit and returns it with its id.
func (s *Store) InsertAuditRun(ctx context.Context, record AuditRecord) (AuditRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return AuditRecord{}, err
	}

	row := pool.QueryRow(ctx, insertAuditRunSQL,
		record.StartedAt,
		record.FinishedAt,
		record.RowsLoaded,
		record.RowsDropped,
		record.CellsDropped,
		record.Groups,
		record.StaleRuns,
		record.LagEvents,
	)

	if scanErr := row.Scan(&record.ID, &record.CreatedAt); scanErr != nil {
		return AuditRecord{}, fmt.Errorf("insert audit run: %w", scanErr)
	}
	return record, nil
}

// ListRecentAudits lists the most recent audit runs.
func (s *Store) ListRecentAudits(ctx context.Context, limit int) ([]AuditRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentAuditsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent audits: %w", queryErr)
	}
	defer rows.Close()

	records := make([]AuditRecord, 0, limit)
	for rows.Next() {
		var rec AuditRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.StartedAt,
			&rec.FinishedAt,
			&rec.RowsLoaded,
			&rec.RowsDropped,
			&rec.CellsDropped,
			&rec.Groups,
			&rec.StaleRuns,
			&rec.LagEvents,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

// DeleteAuditsBefore deletes historical audits; findings cascade.
func (s *Store) DeleteAuditsBefore(ctx context.Context, olderThan time.Time) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, execErr := pool.Exec(ctx, deleteAuditsBeforeSQL, olderThan); execErr != nil {
		return fmt.Errorf("delete audits before: %w", execErr)
	}
	return nil
}

// InsertStaleRuns batch-inserts detected runs for an audit.
func (s *Store) InsertStaleRuns(ctx context.Context, rows []StaleRunRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertStaleRunSQL,
			row.AuditID,
			row.Validator,
			row.Pair,
			row.Value,
			row.StartTS,
			row.EndTS,
			row.Length,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("insert stale run: %w", execErr)
		}
	}
	return nil
}

// InsertLagEvents batch-inserts flagged lag windows for an audit.
func (s *Store) InsertLagEvents(ctx context.Context, rows []LagEventRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(insertLagEventSQL,
			row.AuditID,
			row.Validator,
			row.Pair,
			row.WindowStart,
			row.PriceNow,
			row.PriceFuture,
			row.ValidatorPctChange,
			row.BenchmarkPctChange,
			row.Reason,
		)
	}

	results := pool.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		if _, execErr := results.Exec(); execErr != nil {
			return fmt.Errorf("insert lag event: %w", execErr)
		}
	}
	return nil
}

// ListStaleRuns lists the persisted runs of one audit.
func (s *Store) ListStaleRuns(ctx context.Context, auditID int64) ([]StaleRunRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listStaleRunsSQL, auditID)
	if queryErr != nil {
		return nil, fmt.Errorf("list stale runs: %w", queryErr)
	}
	defer rows.Close()

	out := make([]StaleRunRow, 0)
	for rows.Next() {
		var row StaleRunRow
		if err := rows.Scan(
			&row.AuditID,
			&row.Validator,
			&row.Pair,
			&row.Value,
			&row.StartTS,
			&row.EndTS,
			&row.Length,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// ListLagEvents lists the persisted lag events of one audit.
func (s *Store) ListLagEvents(ctx context.Context, auditID int64) ([]LagEventRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listLagEventsSQL, auditID)
	if queryErr != nil {
		return nil, fmt.Errorf("list lag events: %w", queryErr)
	}
	defer rows.Close()

	out := make([]LagEventRow, 0)
	for rows.Next() {
		var row LagEventRow
		if err := rows.Scan(
			&row.AuditID,
			&row.Validator,
			&row.Pair,
			&row.WindowStart,
			&row.PriceNow,
			&row.PriceFuture,
			&row.ValidatorPctChange,
			&row.BenchmarkPctChange,
			&row.Reason,
		); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

var _ AuditStore = (*Store)(nil)
var _ FindingStore = (*Store)(nil)
