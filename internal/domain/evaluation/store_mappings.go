package evaluation

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

const mappingColumns = "id::text, period_id::text, employee_id::text, evaluator_id::text, evaluation_line_id, evaluator_type, COALESCE(wbs_item_id::text, ''), COALESCE(created_by, ''), created_at"

func scanMapping(row rowScanner) (LineMapping, error) {
	var m LineMapping
	var evaluatorType string
	err := row.Scan(&m.ID, &m.PeriodID, &m.EmployeeID, &m.EvaluatorID, &m.EvaluationLineID, &evaluatorType, &m.WbsItemID, &m.CreatedBy, &m.CreatedAt)
	m.EvaluatorType = EvaluatorType(evaluatorType)
	return m, err
}

func (s *Store) FindActiveMapping(ctx context.Context, key MappingKey) (LineMapping, bool, error) {
	row := s.DB.QueryRow(ctx, `
    SELECT `+mappingColumns+`
    FROM evaluation_line_mappings
    WHERE period_id::text = $1 AND employee_id::text = $2 AND evaluation_line_id = $3
      AND COALESCE(wbs_item_id::text, '') = $4 AND deleted_at IS NULL
    LIMIT 1
  `, key.PeriodID, key.EmployeeID, key.EvaluationLineID, key.WbsItemID)
	m, err := scanMapping(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LineMapping{}, false, nil
		}
		return LineMapping{}, false, err
	}
	return m, true, nil
}

func (s *Store) CreateMapping(ctx context.Context, m LineMapping) (LineMapping, error) {
	row := s.DB.QueryRow(ctx, `
    INSERT INTO evaluation_line_mappings (id, period_id, employee_id, evaluator_id, evaluation_line_id, evaluator_type, wbs_item_id, created_by, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
    RETURNING `+mappingColumns,
		m.ID, m.PeriodID, m.EmployeeID, m.EvaluatorID, m.EvaluationLineID, string(m.EvaluatorType), nullIfEmpty(m.WbsItemID), nullIfEmpty(m.CreatedBy), m.CreatedAt)
	created, err := scanMapping(row)
	if err != nil {
		return LineMapping{}, mapStoreError(err, nil)
	}
	return created, nil
}

// DeleteWbsMappings soft-deletes every active mapping scoped to the WBS item.
// Period-scoped mappings are left alone.
func (s *Store) DeleteWbsMappings(ctx context.Context, periodID, employeeID, wbsItemID, actor string) (int, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE evaluation_line_mappings
    SET deleted_at = now(), deleted_by = $4
    WHERE period_id::text = $1 AND employee_id::text = $2 AND wbs_item_id::text = $3 AND deleted_at IS NULL
  `, periodID, employeeID, wbsItemID, nullIfEmpty(actor))
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (s *Store) ListMappings(ctx context.Context, periodID, employeeID string) ([]LineMapping, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT `+mappingColumns+`
    FROM evaluation_line_mappings
    WHERE period_id::text = $1 AND employee_id::text = $2 AND deleted_at IS NULL
    ORDER BY created_at
  `, periodID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (s *Store) CriteriaExists(ctx context.Context, wbsItemID string) (bool, error) {
	var exists bool
	err := s.DB.QueryRow(ctx, `
    SELECT EXISTS (
      SELECT 1 FROM wbs_evaluation_criteria WHERE wbs_item_id::text = $1 AND deleted_at IS NULL
    )
  `, wbsItemID).Scan(&exists)
	return exists, err
}

func (s *Store) CreateCriteria(ctx context.Context, c WbsCriteria) error {
	_, err := s.DB.Exec(ctx, `
    INSERT INTO wbs_evaluation_criteria (id, wbs_item_id, criteria, importance)
    VALUES ($1,$2,$3,$4)
  `, c.ID, c.WbsItemID, c.Criteria, c.Importance)
	return mapStoreError(err, nil)
}

func (s *Store) DeleteCriteria(ctx context.Context, wbsItemID, actor string) (bool, error) {
	tag, err := s.DB.Exec(ctx, `
    UPDATE wbs_evaluation_criteria
    SET deleted_at = now(), deleted_by = $2
    WHERE wbs_item_id::text = $1 AND deleted_at IS NULL
  `, wbsItemID, nullIfEmpty(actor))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
