package evaluation

import (
	"context"
	"time"
)

func (s *Store) ListEvaluations(ctx context.Context, periodID, employeeID string) ([]DownwardEvaluation, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, period_id::text, employee_id::text, evaluator_id::text, evaluation_type, wbs_item_id::text,
           score, is_completed, completed_at, updated_at
    FROM downward_evaluations
    WHERE period_id::text = $1 AND employee_id::text = $2 AND deleted_at IS NULL
    ORDER BY updated_at
  `, periodID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DownwardEvaluation
	for rows.Next() {
		var e DownwardEvaluation
		var step string
		if err := rows.Scan(&e.ID, &e.PeriodID, &e.EmployeeID, &e.EvaluatorID, &step, &e.WbsItemID, &e.Score, &e.IsCompleted, &e.CompletedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		e.Step = EvaluatorType(step)
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpsertEvaluation keeps one active row per evaluator, step and WBS item.
func (s *Store) UpsertEvaluation(ctx context.Context, e DownwardEvaluation) (DownwardEvaluation, error) {
	var step string
	err := s.DB.QueryRow(ctx, `
    INSERT INTO downward_evaluations (id, period_id, employee_id, evaluator_id, evaluation_type, wbs_item_id, score, is_completed, completed_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    ON CONFLICT (period_id, employee_id, evaluator_id, evaluation_type, wbs_item_id) WHERE deleted_at IS NULL
    DO UPDATE SET score = EXCLUDED.score,
                  is_completed = EXCLUDED.is_completed,
                  completed_at = EXCLUDED.completed_at,
                  updated_at = EXCLUDED.updated_at
    RETURNING id::text, period_id::text, employee_id::text, evaluator_id::text, evaluation_type, wbs_item_id::text,
              score, is_completed, completed_at, updated_at
  `, e.ID, e.PeriodID, e.EmployeeID, e.EvaluatorID, string(e.Step), e.WbsItemID, e.Score, e.IsCompleted, e.CompletedAt, e.UpdatedAt).
		Scan(&e.ID, &e.PeriodID, &e.EmployeeID, &e.EvaluatorID, &step, &e.WbsItemID, &e.Score, &e.IsCompleted, &e.CompletedAt, &e.UpdatedAt)
	if err != nil {
		return DownwardEvaluation{}, mapStoreError(err, nil)
	}
	e.Step = EvaluatorType(step)
	return e, nil
}

func (s *Store) ListApprovals(ctx context.Context, periodID, employeeID string) ([]StepApproval, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, period_id::text, employee_id::text, step, COALESCE(mapping_id::text, ''), evaluator_id::text,
           status, COALESCE(approved_by, ''), approved_at, updated_at
    FROM step_approvals
    WHERE period_id::text = $1 AND employee_id::text = $2
    ORDER BY updated_at
  `, periodID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StepApproval
	for rows.Next() {
		var a StepApproval
		var step, status string
		if err := rows.Scan(&a.ID, &a.PeriodID, &a.EmployeeID, &step, &a.MappingID, &a.EvaluatorID, &status, &a.ApprovedBy, &a.ApprovedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Step = EvaluatorType(step)
		a.Status = ApprovalStatus(status)
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpsertApproval(ctx context.Context, a StepApproval) (StepApproval, error) {
	err := s.DB.QueryRow(ctx, `
    INSERT INTO step_approvals (id, period_id, employee_id, step, mapping_id, evaluator_id, status, approved_by, approved_at, updated_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
    ON CONFLICT ON CONSTRAINT uq_step_approval
    DO UPDATE SET status = EXCLUDED.status,
                  mapping_id = COALESCE(EXCLUDED.mapping_id, step_approvals.mapping_id),
                  approved_by = EXCLUDED.approved_by,
                  approved_at = EXCLUDED.approved_at,
                  updated_at = EXCLUDED.updated_at
    RETURNING id::text
  `, a.ID, a.PeriodID, a.EmployeeID, string(a.Step), nullIfEmpty(a.MappingID), a.EvaluatorID, string(a.Status), nullIfEmpty(a.ApprovedBy), a.ApprovedAt, a.UpdatedAt).
		Scan(&a.ID)
	if err != nil {
		return StepApproval{}, mapStoreError(err, nil)
	}
	return a, nil
}

// CreateRevisionRequest stores the request and its recipients together.
func (s *Store) CreateRevisionRequest(ctx context.Context, r RevisionRequest) (RevisionRequest, error) {
	tx, err := s.DB.Begin(ctx)
	if err != nil {
		return RevisionRequest{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx, `
    INSERT INTO revision_requests (id, period_id, employee_id, step, comment, requested_by, created_at)
    VALUES ($1,$2,$3,$4,$5,$6,$7)
  `, r.ID, r.PeriodID, r.EmployeeID, string(r.Step), r.Comment, nullIfEmpty(r.RequestedBy), r.CreatedAt); err != nil {
		return RevisionRequest{}, err
	}
	for _, rc := range r.Recipients {
		if _, err := tx.Exec(ctx, `
      INSERT INTO revision_request_recipients (id, request_id, evaluator_id, is_completed)
      VALUES ($1,$2,$3,false)
    `, rc.ID, r.ID, rc.EvaluatorID); err != nil {
			return RevisionRequest{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return RevisionRequest{}, err
	}
	return r, nil
}

func (s *Store) ListRevisionRecipients(ctx context.Context, periodID, employeeID string) ([]RevisionRecipient, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT rc.id::text, rc.request_id::text, rr.period_id::text, rr.employee_id::text, rr.step, rc.evaluator_id::text,
           rc.is_completed, rc.completed_at, rr.created_at
    FROM revision_request_recipients rc
    JOIN revision_requests rr ON rr.id = rc.request_id
    WHERE rr.period_id::text = $1 AND rr.employee_id::text = $2
    ORDER BY rr.created_at
  `, periodID, employeeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RevisionRecipient
	for rows.Next() {
		var rc RevisionRecipient
		var step string
		if err := rows.Scan(&rc.ID, &rc.RequestID, &rc.PeriodID, &rc.EmployeeID, &step, &rc.EvaluatorID, &rc.IsCompleted, &rc.CompletedAt, &rc.RequestedAt); err != nil {
			return nil, err
		}
		rc.Step = EvaluatorType(step)
		out = append(out, rc)
	}
	return out, rows.Err()
}

func (s *Store) CompleteRevisionRecipient(ctx context.Context, requestID, evaluatorID string) error {
	tag, err := s.DB.Exec(ctx, `
    UPDATE revision_request_recipients
    SET is_completed = true, completed_at = $3
    WHERE request_id::text = $1 AND evaluator_id::text = $2
  `, requestID, evaluatorID, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRevisionRequestNotFound
	}
	return nil
}
