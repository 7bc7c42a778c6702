// Package batch manages the SQLite-backed batch queue and the worker pool
// that runs estimation rows through the engine.
package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/toolworks/cycletimed/internal/db"
)

// Store wraps the database and provides batch queue operations.
type Store struct {
	database *db.DB
}

// NewStore creates a Store.
func NewStore(database *db.DB) *Store {
	return &Store{database: database}
}

// Create inserts a batch with its rows in one transaction and returns the
// batch ID. Requests are stored as raw JSON, one row per request.
func (s *Store) Create(ctx context.Context, name string, requests []string) (int, error) {
	tx, err := s.database.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("batch.Create: begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO batches (name, status, total_rows, created_at)
		VALUES (?, 'pending', ?, ?)`,
		name, len(requests), time.Now(),
	)
	if err != nil {
		return 0, fmt.Errorf("batch.Create: insert batch: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("batch.Create: last insert id: %w", err)
	}
	for i, req := range requests {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO batch_rows (batch_id, position, request, status, created_at, updated_at)
			VALUES (?,?,?,'pending',?,?)`,
			id, i, req, time.Now(), time.Now(),
		); err != nil {
			return 0, fmt.Errorf("batch.Create: insert row %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("batch.Create: commit: %w", err)
	}
	return int(id), nil
}

// Get fetches a batch by ID.
func (s *Store) Get(ctx context.Context, id int) (*db.Batch, error) {
	var b db.Batch
	err := s.database.QueryRowContext(ctx, `
		SELECT id, name, status, total_rows, done_rows, error, started_at, ended_at, created_at
		FROM batches WHERE id=?`, id,
	).Scan(&b.ID, &b.Name, &b.Status, &b.TotalRows, &b.DoneRows,
		&b.Error, &b.StartedAt, &b.EndedAt, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("batch.Get: %w", err)
	}
	return &b, nil
}

// LatestByName fetches the most recent batch with the given name.
// Used by the scheduler to clone a named batch for a re-run.
func (s *Store) LatestByName(ctx context.Context, name string) (*db.Batch, error) {
	var b db.Batch
	err := s.database.QueryRowContext(ctx, `
		SELECT id, name, status, total_rows, done_rows, error, started_at, ended_at, created_at
		FROM batches WHERE name=? ORDER BY id DESC LIMIT 1`, name,
	).Scan(&b.ID, &b.Name, &b.Status, &b.TotalRows, &b.DoneRows,
		&b.Error, &b.StartedAt, &b.EndedAt, &b.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("batch.LatestByName: %w", err)
	}
	return &b, nil
}

// List returns the most recent batches, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]db.Batch, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.database.QueryContext(ctx, `
		SELECT id, name, status, total_rows, done_rows, error, started_at, ended_at, created_at
		FROM batches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("batch.List: %w", err)
	}
	defer rows.Close()

	var batches []db.Batch
	for rows.Next() {
		var b db.Batch
		if err := rows.Scan(&b.ID, &b.Name, &b.Status, &b.TotalRows, &b.DoneRows,
			&b.Error, &b.StartedAt, &b.EndedAt, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("batch.List: scan: %w", err)
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

// Rows returns all rows of a batch in position order.
func (s *Store) Rows(ctx context.Context, batchID int) ([]db.BatchRow, error) {
	rows, err := s.database.QueryContext(ctx, `
		SELECT id, batch_id, position, request, status, status_code, result, created_at, updated_at
		FROM batch_rows WHERE batch_id=? ORDER BY position ASC`, batchID)
	if err != nil {
		return nil, fmt.Errorf("batch.Rows: %w", err)
	}
	defer rows.Close()

	var out []db.BatchRow
	for rows.Next() {
		var r db.BatchRow
		if err := rows.Scan(&r.ID, &r.BatchID, &r.Position, &r.Request, &r.Status,
			&r.StatusCode, &r.Result, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("batch.Rows: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Requests returns the stored request JSON of every row, in position order.
func (s *Store) Requests(ctx context.Context, batchID int) ([]string, error) {
	rows, err := s.Rows(ctx, batchID)
	if err != nil {
		return nil, err
	}
	reqs := make([]string, 0, len(rows))
	for _, r := range rows {
		reqs = append(reqs, r.Request)
	}
	return reqs, nil
}

// ClaimRow atomically fetches the next pending row of a batch and marks it
// running. Returns nil, nil when no pending rows remain.
func (s *Store) ClaimRow(ctx context.Context, batchID int) (*db.BatchRow, error) {
	tx, err := s.database.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("batch.ClaimRow: begin tx: %w", err)
	}
	defer tx.Rollback()

	var r db.BatchRow
	err = tx.QueryRowContext(ctx, `
		SELECT id, batch_id, position, request, status, status_code, result, created_at, updated_at
		FROM batch_rows
		WHERE batch_id=? AND status='pending'
		ORDER BY position ASC
		LIMIT 1`, batchID,
	).Scan(&r.ID, &r.BatchID, &r.Position, &r.Request, &r.Status,
		&r.StatusCode, &r.Result, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		// No rows = batch drained.
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE batch_rows SET status='running', updated_at=? WHERE id=?`,
		time.Now(), r.ID,
	); err != nil {
		return nil, fmt.Errorf("batch.ClaimRow: update status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("batch.ClaimRow: commit: %w", err)
	}
	r.Status = "running"
	return &r, nil
}

// FinishRow records the outcome of one row and bumps the batch done count.
func (s *Store) FinishRow(ctx context.Context, rowID, batchID, statusCode int, result string, ok bool) error {
	rowStatus := db.RowDone
	if !ok {
		rowStatus = db.RowFailed
	}
	if _, err := s.database.ExecContext(ctx, `
		UPDATE batch_rows SET status=?, status_code=?, result=?, updated_at=? WHERE id=?`,
		rowStatus, statusCode, result, time.Now(), rowID,
	); err != nil {
		return fmt.Errorf("batch.FinishRow: %w", err)
	}
	if _, err := s.database.ExecContext(ctx, `
		UPDATE batches SET done_rows=done_rows+1 WHERE id=?`, batchID,
	); err != nil {
		return fmt.Errorf("batch.FinishRow: bump done_rows: %w", err)
	}
	return nil
}

// MarkRunning transitions a batch to running and stamps started_at.
func (s *Store) MarkRunning(ctx context.Context, batchID int) error {
	_, err := s.database.ExecContext(ctx, `
		UPDATE batches SET status='running', started_at=? WHERE id=?`,
		time.Now(), batchID)
	if err != nil {
		return fmt.Errorf("batch.MarkRunning: %w", err)
	}
	return nil
}

// MarkCompleted transitions a batch to completed and stamps ended_at.
func (s *Store) MarkCompleted(ctx context.Context, batchID int) error {
	_, err := s.database.ExecContext(ctx, `
		UPDATE batches SET status='completed', ended_at=? WHERE id=?`,
		time.Now(), batchID)
	if err != nil {
		return fmt.Errorf("batch.MarkCompleted: %w", err)
	}
	return nil
}

// MarkFailed transitions a batch to failed with an error message.
func (s *Store) MarkFailed(ctx context.Context, batchID int, errMsg string) error {
	_, err := s.database.ExecContext(ctx, `
		UPDATE batches SET status='failed', error=?, ended_at=? WHERE id=?`,
		errMsg, time.Now(), batchID)
	if err != nil {
		return fmt.Errorf("batch.MarkFailed: %w", err)
	}
	return nil
}

// Delete removes a batch and its rows.
func (s *Store) Delete(ctx context.Context, batchID int) error {
	if _, err := s.database.ExecContext(ctx,
		`DELETE FROM batch_rows WHERE batch_id=?`, batchID); err != nil {
		return fmt.Errorf("batch.Delete: rows: %w", err)
	}
	if _, err := s.database.ExecContext(ctx,
		`DELETE FROM batches WHERE id=?`, batchID); err != nil {
		return fmt.Errorf("batch.Delete: %w", err)
	}
	return nil
}
