package activity

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Filter narrows activity reads. Empty fields match everything.
type Filter struct {
	Action     string
	EntityType string
	ActorID    string
	PeriodID   string
	EmployeeID string
}

// Reader lists recorded activity, newest first.
type Reader interface {
	Count(ctx context.Context, filter Filter) (int, error)
	List(ctx context.Context, filter Filter, includePayload bool, limit, offset int) ([]Event, error)
}

type PostgresRecorder struct {
	DB *pgxpool.Pool
}

var _ Reader = (*PostgresRecorder)(nil)

func NewPostgresRecorder(db *pgxpool.Pool) *PostgresRecorder {
	return &PostgresRecorder{DB: db}
}

func (r *PostgresRecorder) Record(ctx context.Context, evt Event) error {
	var payload []byte
	if len(evt.Payload) > 0 {
		payload = evt.Payload
	}
	_, err := r.DB.Exec(ctx, `
    INSERT INTO activity_logs (id, actor_id, action, entity_type, entity_id, period_id, employee_id, request_id, payload_json, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
  `, evt.ID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, evt.PeriodID, evt.EmployeeID, evt.RequestID, payload, evt.CreatedAt)
	return err
}

func (r *PostgresRecorder) Count(ctx context.Context, filter Filter) (int, error) {
	query, args := buildActivityQuery("SELECT COUNT(1)", filter)
	var total int
	if err := r.DB.QueryRow(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *PostgresRecorder) List(ctx context.Context, filter Filter, includePayload bool, limit, offset int) ([]Event, error) {
	cols := `SELECT id::text, COALESCE(actor_id, ''), action, entity_type, entity_id,
      COALESCE(period_id, ''), COALESCE(employee_id, ''), COALESCE(request_id, ''), created_at`
	if includePayload {
		cols += ", payload_json"
	}
	query, args := buildActivityQuery(cols, filter)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", len(args)+1, len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var evt Event
		dest := []any{&evt.ID, &evt.ActorID, &evt.Action, &evt.EntityType, &evt.EntityID, &evt.PeriodID, &evt.EmployeeID, &evt.RequestID, &evt.CreatedAt}
		if includePayload {
			dest = append(dest, &evt.Payload)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		out = append(out, evt)
	}
	return out, rows.Err()
}

func buildActivityQuery(prefix string, filter Filter) (string, []any) {
	query := prefix + " FROM activity_logs WHERE 1=1"
	var args []any
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s = $%d", column, len(args))
	}
	add("action", filter.Action)
	add("entity_type", filter.EntityType)
	add("actor_id", filter.ActorID)
	add("period_id", filter.PeriodID)
	add("employee_id", filter.EmployeeID)
	return query, args
}
