package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hyperengineering/claimgate/internal/types"
	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"
)

// Compile-time interface check
var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the SQLite-backed validation audit store.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLiteStore instance.
// It initializes the database with WAL mode, applies pragmas, and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Ensure parent directory exists
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := enablePragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable pragmas: %w", err)
	}

	if err := RunMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// enablePragmas sets SQLite pragmas for optimal performance and safety.
func enablePragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA synchronous=NORMAL",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("execute %s: %w", pragma, err)
		}
	}

	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveResult persists a claim result and its records in one transaction.
func (s *SQLiteStore) SaveResult(ctx context.Context, result types.ClaimResult) (*types.ClaimResult, error) {
	result.ID = ulid.Make().String()
	result.CreatedAt = time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO claim_results (id, claim_id, approved, summary, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, result.ID, result.ClaimID, boolToInt(result.Approved), result.Summary, result.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("insert claim result: %w", err)
	}

	for i, rec := range result.Records {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO validation_records (id, result_id, position, code1, code2, modifier, result)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, ulid.Make().String(), result.ID, i, rec.Code1, rec.Code2, rec.Modifier, rec.Result)
		if err != nil {
			return nil, fmt.Errorf("insert validation record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &result, nil
}

// GetLatestResult returns the most recent result for a claim id. Ordering
// by rowid follows insertion order, which the RFC3339 timestamp cannot
// distinguish within the same second.
func (s *SQLiteStore) GetLatestResult(ctx context.Context, claimID string) (*types.ClaimResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, claim_id, approved, summary, created_at
		FROM claim_results
		WHERE claim_id = ?
		ORDER BY rowid DESC
		LIMIT 1
	`, claimID)

	result, err := scanClaimResult(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query claim result: %w", err)
	}

	if err := s.loadRecords(ctx, result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListResults returns the most recent results, newest first.
func (s *SQLiteStore) ListResults(ctx context.Context, limit int) ([]types.ClaimResult, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, claim_id, approved, summary, created_at
		FROM claim_results
		ORDER BY rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query claim results: %w", err)
	}
	defer rows.Close()

	var results []types.ClaimResult
	for rows.Next() {
		result, err := scanClaimResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan claim result: %w", err)
		}
		results = append(results, *result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claim results: %w", err)
	}

	for i := range results {
		if err := s.loadRecords(ctx, &results[i]); err != nil {
			return nil, err
		}
	}

	return results, nil
}

// loadRecords populates a result's validation records in stored order.
func (s *SQLiteStore) loadRecords(ctx context.Context, result *types.ClaimResult) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code1, code2, modifier, result
		FROM validation_records
		WHERE result_id = ?
		ORDER BY position ASC
	`, result.ID)
	if err != nil {
		return fmt.Errorf("query validation records: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		rec := types.ValidationRecord{ClaimID: result.ClaimID}
		if err := rows.Scan(&rec.Code1, &rec.Code2, &rec.Modifier, &rec.Result); err != nil {
			return fmt.Errorf("scan validation record: %w", err)
		}
		result.Records = append(result.Records, rec)
	}
	return rows.Err()
}

// scanClaimResult scans a claim_results row, parsing the timestamp.
func scanClaimResult(scanner interface{ Scan(...any) error }) (*types.ClaimResult, error) {
	var result types.ClaimResult
	var approved int
	var createdAt string

	err := scanner.Scan(&result.ID, &result.ClaimID, &approved, &result.Summary, &createdAt)
	if err != nil {
		return nil, err
	}

	result.Approved = approved != 0
	if t, err := time.Parse(time.RFC3339, createdAt); err == nil {
		result.CreatedAt = t
	}

	return &result, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
