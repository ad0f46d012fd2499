package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/xkilldash9x/scalpel-taint/api/schemas"
)

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Schema creates the tables used by the store. It is idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS analysis_runs (
    id UUID PRIMARY KEY,
    program TEXT NOT NULL,
    pattern_count INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS analysis_results (
    run_id UUID NOT NULL REFERENCES analysis_runs(id) ON DELETE CASCADE,
    ordinal INTEGER NOT NULL,
    vulnerability TEXT NOT NULL,
    sources TEXT[] NOT NULL,
    sanitizers TEXT[] NOT NULL,
    sinks TEXT[] NOT NULL,
    PRIMARY KEY (run_id, ordinal)
);`

const sqlInsertRun = `
        INSERT INTO analysis_runs (id, program, pattern_count, created_at)
        VALUES ($1, $2, $3, $4);
    `

const sqlSelectResults = `
        SELECT vulnerability, sources, sanitizers, sinks
        FROM analysis_results
        WHERE run_id = $1
        ORDER BY ordinal ASC;
    `

var resultColumns = []string{"run_id", "ordinal", "vulnerability", "sources", "sanitizers", "sinks"}

// Store persists analysis runs and their results in PostgreSQL.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

// Connect opens a connection pool for url.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to create database pool: %w", err)
	}
	return pool, nil
}

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// Migrate creates the store's tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// PersistRun stores the run row and its results in one transaction. An empty
// RunID is filled in with a new UUID.
func (s *Store) PersistRun(ctx context.Context, envelope *schemas.ResultEnvelope) error {
	if envelope.RunID == "" {
		envelope.RunID = uuid.NewString()
	}
	if envelope.Timestamp.IsZero() {
		envelope.Timestamp = time.Now()
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		// Rollback after a successful commit reports ErrTxClosed, which is expected.
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Debug("Rollback after transaction end", zap.Error(rollbackErr))
		}
	}()

	if _, err := tx.Exec(ctx, sqlInsertRun,
		envelope.RunID, envelope.Program, envelope.PatternCount, envelope.Timestamp.UTC()); err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(envelope.Results) > 0 {
		if err := s.persistResults(ctx, tx, envelope.RunID, envelope.Results); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Debug("Persisted analysis run",
		zap.String("run_id", envelope.RunID),
		zap.String("program", envelope.Program),
		zap.Int("results", len(envelope.Results)))
	return nil
}

func (s *Store) persistResults(ctx context.Context, tx pgx.Tx, runID string, results []schemas.Result) error {
	rows := make([][]interface{}, len(results))
	for i, r := range results {
		rows[i] = []interface{}{
			runID, i, r.Vulnerability,
			nonNil(r.Sources), nonNil(r.Sanitizers), nonNil(r.Sinks),
		}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"analysis_results"}, resultColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy results: %w", err)
	}
	if int(copyCount) != len(results) {
		return fmt.Errorf("mismatch in copied results count: expected %d, got %d", len(results), copyCount)
	}
	return nil
}

// ListResults returns the results of a run in their original order.
func (s *Store) ListResults(ctx context.Context, runID string) ([]schemas.Result, error) {
	rows, err := s.pool.Query(ctx, sqlSelectResults, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query results: %w", err)
	}
	defer rows.Close()

	results := []schemas.Result{}
	for rows.Next() {
		var r schemas.Result
		if err := rows.Scan(&r.Vulnerability, &r.Sources, &r.Sanitizers, &r.Sinks); err != nil {
			return nil, fmt.Errorf("failed to scan result row: %w", err)
		}
		r.Sources, r.Sanitizers, r.Sinks = nonNil(r.Sources), nonNil(r.Sanitizers), nonNil(r.Sinks)
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return results, nil
}

func nonNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
