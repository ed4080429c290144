package storage

import (
	"time"
)

// AuditRecord summarises one completed audit for comparison across runs.
type AuditRecord struct {
	ID           int64
	StartedAt    time.Time
	FinishedAt   time.Time
	RowsLoaded   int
	RowsDropped  int
	CellsDropped int
	Groups       int
	StaleRuns    int
	LagEvents    int
	CreatedAt    time.Time
}

// StaleRunRow is the persisted form of a detected run.
type StaleRunRow struct {
	AuditID   int64
	Validator string
	Pair      string
	Value     string
	StartTS   time.Time
	EndTS     time.Time
	Length    int
}

// LagEventRow is the persisted form of a flagged lag window.
type LagEventRow struct {
	AuditID            int64
	Validator          string
	Pair               string
	WindowStart        time.Time
	PriceNow           string
	PriceFuture        string
	ValidatorPctChange string
	BenchmarkPctChange string
	Reason             string
}
