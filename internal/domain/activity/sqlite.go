package activity

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteRecorder appends events to a local database file. It is meant for
// single-node deployments and local development.
type SQLiteRecorder struct {
	db *sql.DB
}

func OpenSQLiteRecorder(ctx context.Context, path string) (*SQLiteRecorder, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve activity db path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure activity db dir: %w", err)
	}
	db, err := sql.Open("sqlite", absPath)
	if err != nil {
		return nil, fmt.Errorf("open activity db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := ensureSQLiteSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteRecorder{db: db}, nil
}

func ensureSQLiteSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS activity_logs (
			id TEXT PRIMARY KEY,
			ts DATETIME NOT NULL,
			actor TEXT NOT NULL,
			action TEXT NOT NULL,
			entity_type TEXT NOT NULL,
			entity_id TEXT NOT NULL,
			period_id TEXT,
			employee_id TEXT,
			request_id TEXT,
			payload_json TEXT
		)
	`)
	if err != nil {
		return fmt.Errorf("create activity schema: %w", err)
	}
	return nil
}

func (r *SQLiteRecorder) Record(ctx context.Context, evt Event) error {
	ts := evt.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO activity_logs (id, ts, actor, action, entity_type, entity_id, period_id, employee_id, request_id, payload_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		evt.ID, ts, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID,
		evt.PeriodID, evt.EmployeeID, evt.RequestID, string(evt.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert activity event: %w", err)
	}
	return nil
}

// Count returns the number of stored events with the given action, or all
// events when action is empty.
func (r *SQLiteRecorder) Count(ctx context.Context, action string) (int, error) {
	query := "SELECT COUNT(1) FROM activity_logs"
	var args []any
	if action != "" {
		query += " WHERE action = ?"
		args = append(args, action)
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *SQLiteRecorder) Close() error {
	return r.db.Close()
}
