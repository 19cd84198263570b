package evaluation

import (
	"context"
	"fmt"
)

const assignmentColumns = "id::text, period_id::text, employee_id::text, project_id::text, wbs_item_id::text, weight, display_order, COALESCE(created_by, ''), created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssignment(row rowScanner) (WbsAssignment, error) {
	var a WbsAssignment
	err := row.Scan(&a.ID, &a.PeriodID, &a.EmployeeID, &a.ProjectID, &a.WbsItemID, &a.Weight, &a.DisplayOrder, &a.CreatedBy, &a.CreatedAt)
	return a, err
}

func (s *Store) GetAssignment(ctx context.Context, assignmentID string) (WbsAssignment, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+assignmentColumns+`
    FROM evaluation_wbs_assignments
    WHERE id::text = $1 AND deleted_at IS NULL
  `, assignmentID)
	a, err := scanAssignment(row)
	if err != nil {
		return WbsAssignment{}, mapStoreError(err, ErrAssignmentNotFound)
	}
	return a, nil
}

func (s *Store) AssignmentExists(ctx context.Context, periodID, employeeID, wbsItemID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM evaluation_wbs_assignments
      WHERE period_id::text = $1 AND employee_id::text = $2 AND wbs_item_id::text = $3 AND deleted_at IS NULL
    )
  `, periodID, employeeID, wbsItemID).Scan(&exists)
	return exists, err
}

func (s *Store) NextDisplayOrder(ctx context.Context, periodID, employeeID string) (int, error) {
	var next int
	err := s.DB.QueryRow(ctx, `
    SELECT COALESCE(MAX(display_order), 0) + 1
    FROM evaluation_wbs_assignments
    WHERE period_id::text = $1 AND employee_id::text = $2 AND deleted_at IS NULL
  `, periodID, employeeID).Scan(&next)
	return next, err
}

func (s *Store) CreateAssignment(ctx context.Context, a WbsAssignment) (WbsAssignment, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO evaluation_wbs_assignments (id, period_id, employee_id, project_id, wbs_item_id, weight, display_order, created_by, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING `+assignmentColumns,
		a.ID, a.PeriodID, a.EmployeeID, a.ProjectID, a.WbsItemID, a.Weight, a.DisplayOrder, nullIfEmpty(a.CreatedBy), a.CreatedAt)
	created, err := scanAssignment(row)
	if err != nil {
		return WbsAssignment{}, mapStoreError(err, nil)
	}
	return created, nil
}

func (s *Store) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]WbsAssignment, error) {
	query := `
    SELECT ` + assignmentColumns + `
    FROM evaluation_wbs_assignments
    WHERE deleted_at IS NULL
  `
	args := []any{}
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		query += fmt.Sprintf(" AND %s::text = $%d", column, len(args))
	}
	add("period_id", filter.PeriodID)
	add("employee_id", filter.EmployeeID)
	add("project_id", filter.ProjectID)
	add("wbs_item_id", filter.WbsItemID)
	query += " ORDER BY employee_id, display_order, created_at"

	rows, err := s.DB.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []WbsAssignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) DeleteAssignment(ctx context.Context, assignmentID, actor string) error {
	_, err := s.DB.Exec(ctx, `
    UPDATE evaluation_wbs_assignments
    SET deleted_at = now(), deleted_by = $2
    WHERE id::text = $1 AND deleted_at IS NULL
  `, assignmentID, nullIfEmpty(actor))
	return err
}

// SwapDisplayOrder exchanges the display order of two assignments atomically.
// The first row is parked on a negative slot so the unique display order
// index never sees two rows on the same value.
func (s *Store) SwapDisplayOrder(ctx context.Context, first, second WbsAssignment) error {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	steps := []struct {
		order int
		id    string
	}{
		{-first.DisplayOrder, first.ID},
		{first.DisplayOrder, second.ID},
		{second.DisplayOrder, first.ID},
	}
	for _, step := range steps {
		if _, err := tx.Exec(ctx, "UPDATE evaluation_wbs_assignments SET display_order = $1 WHERE id::text = $2", step.order, step.id); err != nil {
			return mapStoreError(err, nil)
		}
	}
	return tx.Commit(ctx)
}

// CountActiveAssignmentsForWbs counts active assignments of a WBS item across
// every period.
func (s *Store) CountActiveAssignmentsForWbs(ctx context.Context, wbsItemID string) (int, error) {
	var count int
	err := s.DB.QueryRow(ctx, `
    SELECT COUNT(1)
    FROM evaluation_wbs_assignments
    WHERE wbs_item_id::text = $1 AND deleted_at IS NULL
  `, wbsItemID).Scan(&count)
	return count, err
}

func (s *Store) ListEmployeesWithAssignments(ctx context.Context, periodID string) ([]string, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT DISTINCT employee_id::text
    FROM evaluation_wbs_assignments
    WHERE period_id::text = $1 AND deleted_at IS NULL
    ORDER BY 1
  `, periodID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
