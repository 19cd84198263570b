package evaluation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Store struct {
	DB *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{DB: db}
}

var _ StoreAPI = (*Store)(nil)

// mapStoreError turns driver errors into domain errors. notFound is used for
// pgx.ErrNoRows; unique violations map through their constraint name.
func mapStoreError(err error, notFound error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) && notFound != nil {
		return notFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		switch pgErr.ConstraintName {
		case "uq_assignment_active":
			return ErrAssignmentExists
		case "uq_assignment_display_order":
			return ErrDisplayOrderTaken
		case "uq_mapping_active":
			return ErrMappingExists
		case "uq_criteria_active":
			return ErrCriteriaExists
		}
	}
	return err
}

func nullIfEmpty(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func (s *Store) GetPeriod(ctx context.Context, periodID string) (EvaluationPeriod, error) {
	var p EvaluationPeriod
	var rangesJSON []byte
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, name, status, grade_ranges_json
    FROM evaluation_periods
    WHERE id::text = $1
  `, periodID).Scan(&p.ID, &p.Name, &p.Status, &rangesJSON)
	if err != nil {
		return EvaluationPeriod{}, mapStoreError(err, ErrPeriodNotFound)
	}
	if len(rangesJSON) > 0 {
		if err := json.Unmarshal(rangesJSON, &p.GradeRanges); err != nil {
			return EvaluationPeriod{}, fmt.Errorf("decode grade ranges for period %s: %w", periodID, err)
		}
	}
	return p, nil
}

func (s *Store) GetEmployee(ctx context.Context, employeeID string) (Employee, error) {
	var e Employee
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, name, COALESCE(department_id, ''), COALESCE(manager_id::text, ''), COALESCE(manager_external_id, '')
    FROM employees
    WHERE id::text = $1
  `, employeeID).Scan(&e.ID, &e.Name, &e.DepartmentID, &e.Manager.ID, &e.Manager.ExternalID)
	if err != nil {
		return Employee{}, mapStoreError(err, ErrEmployeeNotFound)
	}
	return e, nil
}

func (s *Store) GetProject(ctx context.Context, projectID string) (Project, error) {
	var p Project
	err := s.DB.QueryRow(ctx, `
    SELECT id::text, name, COALESCE(manager_id::text, ''), COALESCE(manager_external_id, '')
    FROM projects
    WHERE id::text = $1
  `, projectID).Scan(&p.ID, &p.Name, &p.Manager.ID, &p.Manager.ExternalID)
	if err != nil {
		return Project{}, mapStoreError(err, ErrProjectNotFound)
	}
	return p, nil
}

// UpsertEvaluationLines writes the catalog lines in one transaction.
func (s *Store) UpsertEvaluationLines(ctx context.Context, lines []EvaluationLine) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	for _, line := range lines {
		if _, err := tx.Exec(ctx, `
      INSERT INTO evaluation_lines (id, evaluator_type, line_order, is_required, is_auto_assigned, updated_at)
      VALUES ($1,$2,$3,$4,$5,now())
      ON CONFLICT (id) DO UPDATE
      SET evaluator_type = EXCLUDED.evaluator_type,
          line_order = EXCLUDED.line_order,
          is_required = EXCLUDED.is_required,
          is_auto_assigned = EXCLUDED.is_auto_assigned,
          updated_at = now()
    `, line.ID, string(line.EvaluatorType), line.Order, line.IsRequired, line.IsAutoAssigned); err != nil {
			return fmt.Errorf("upsert evaluation line %s: %w", line.ID, err)
		}
	}
	return tx.Commit(ctx)
}
