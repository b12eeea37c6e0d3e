package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/HomegrownMarine/sailing-calculations/pkg/db"
	"github.com/HomegrownMarine/sailing-calculations/pkg/model"

	"github.com/google/uuid"
)

// Store defines the repository interface.
// Consumers should depend on RunStore or TackStore when possible.
type Store interface {
	RunStore
	TackStore

	// Close closes the store connection.
	Close() error
}

// SQLiteStore implements Store.
type SQLiteStore struct {
	db *db.DB
}

// NewSQLiteStore creates a store on an initialized database.
func NewSQLiteStore(d *db.DB) *SQLiteStore {
	return &SQLiteStore{db: d}
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Runs ---

// SaveRun inserts or replaces r. An empty ID is filled with a new UUID.
func (s *SQLiteStore) SaveRun(ctx context.Context, r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	query := `INSERT OR REPLACE INTO runs (id, source, sample_count, first_sample, last_sample, settings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Source, r.SampleCount, r.First.UTC(), r.Last.UTC(), r.Settings,
		r.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	return err
}

// GetRun returns the run with id, or nil if there is none.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, sample_count, first_sample, last_sample, settings, created_at
		 FROM runs WHERE id = ?`, id)

	r, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return r, nil
}

// ListRuns returns all runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, sample_count, first_sample, last_sample, settings, created_at
		 FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DeleteRun removes a run together with its tacks.
func (s *SQLiteStore) DeleteRun(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", id)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var source, settings sql.NullString
	var first, last, created sql.NullTime
	var count sql.NullInt64

	if err := row.Scan(&r.ID, &source, &count, &first, &last, &settings, &created); err != nil {
		return nil, err
	}
	r.Source = source.String
	r.SampleCount = int(count.Int64)
	r.Settings = settings.String
	if first.Valid {
		r.First = first.Time
	}
	if last.Valid {
		r.Last = last.Time
	}
	if created.Valid {
		r.CreatedAt = created.Time
	}
	return &r, nil
}

// --- Tacks ---

// SaveTacks replaces the tacks of runID with tacks in one transaction.
// Tacks without an ID get a new UUID.
func (s *SQLiteStore) SaveTacks(ctx context.Context, runID string, tacks []model.Tack) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, "DELETE FROM tacks WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tacks (id, run_id, time, board, loss, max_twa, duration_ms, data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i := range tacks {
		t := tacks[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		data, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode tack %s: %w", t.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			t.ID, runID, t.Time.UTC(), string(t.Board), t.Loss, t.MaxTWA,
			t.Timing.Duration().Milliseconds(), string(data),
		); err != nil {
			return fmt.Errorf("failed to save tack %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// GetTacks returns the tacks of runID in time order.
func (s *SQLiteStore) GetTacks(ctx context.Context, runID string) ([]model.Tack, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT data FROM tacks WHERE run_id = ? ORDER BY time, id", runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tacks := []model.Tack{}
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t model.Tack
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("corrupt tack record: %w", err)
		}
		tacks = append(tacks, t)
	}
	return tacks, rows.Err()
}

// CountTacks returns the number of tacks stored for runID.
func (s *SQLiteStore) CountTacks(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM tacks WHERE run_id = ?", runID).Scan(&n)
	return n, err
}
