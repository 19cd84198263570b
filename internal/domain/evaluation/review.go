package evaluation

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"evalsvc/internal/shared/apperror"
)

type SubmitInput struct {
	PeriodID    string        `json:"periodId"`
	EmployeeID  string        `json:"employeeId"`
	EvaluatorID string        `json:"evaluatorId"`
	Step        EvaluatorType `json:"step"`
	WbsItemID   string        `json:"wbsItemId"`
	Score       float64       `json:"score"`
	Completed   bool          `json:"completed"`
}

// SubmitEvaluation saves one evaluator's score for one WBS item. Edits are
// refused once the evaluator's step is approved, unless a revision is open.
func (s *Service) SubmitEvaluation(ctx context.Context, in SubmitInput, actor string) (DownwardEvaluation, error) {
	if !in.Step.IsStep() {
		return DownwardEvaluation{}, ErrInvalidStep
	}
	if in.Score < MinScore || in.Score > MaxScore {
		return DownwardEvaluation{}, ErrInvalidScore
	}
	if strings.TrimSpace(in.EvaluatorID) == "" || strings.TrimSpace(in.WbsItemID) == "" {
		return DownwardEvaluation{}, apperror.InvalidInput("evaluatorId and wbsItemId are required")
	}
	if err := s.checkPeriodOpen(ctx, in.PeriodID); err != nil {
		return DownwardEvaluation{}, err
	}

	mapping, err := s.stepMapping(ctx, in.PeriodID, in.EmployeeID, in.Step, in.WbsItemID)
	if err != nil {
		return DownwardEvaluation{}, err
	}
	if mapping.EvaluatorID != in.EvaluatorID {
		return DownwardEvaluation{}, ErrNoMapping
	}

	assigned, err := s.store.AssignmentExists(ctx, in.PeriodID, in.EmployeeID, in.WbsItemID)
	if err != nil {
		return DownwardEvaluation{}, err
	}
	if !assigned {
		return DownwardEvaluation{}, ErrWbsNotAssigned
	}

	locked, err := s.stepLocked(ctx, in.PeriodID, in.EmployeeID, in.Step, in.EvaluatorID)
	if err != nil {
		return DownwardEvaluation{}, err
	}
	if locked {
		return DownwardEvaluation{}, ErrStepApproved
	}

	now := s.now().UTC()
	e := DownwardEvaluation{
		ID:          uuid.NewString(),
		PeriodID:    in.PeriodID,
		EmployeeID:  in.EmployeeID,
		EvaluatorID: in.EvaluatorID,
		Step:        in.Step,
		WbsItemID:   in.WbsItemID,
		Score:       in.Score,
		IsCompleted: in.Completed,
		UpdatedAt:   now,
	}
	if in.Completed {
		e.CompletedAt = &now
	}
	saved, err := s.store.UpsertEvaluation(ctx, e)
	if err != nil {
		return DownwardEvaluation{}, err
	}

	s.recordActivity(ctx, actor, ActionEvaluationSubmitted, entityEvaluation, saved.ID, saved.PeriodID, saved.EmployeeID, saved)
	return saved, nil
}

type ApproveInput struct {
	PeriodID    string        `json:"periodId"`
	EmployeeID  string        `json:"employeeId"`
	Step        EvaluatorType `json:"step"`
	EvaluatorID string        `json:"evaluatorId"`
}

// ApproveStep approves one evaluator's submitted work. For the primary step
// the evaluator defaults to the mapped primary evaluator.
func (s *Service) ApproveStep(ctx context.Context, in ApproveInput, actor string) (StepApproval, error) {
	if !in.Step.IsStep() {
		return StepApproval{}, ErrInvalidStep
	}
	period, err := s.store.GetPeriod(ctx, in.PeriodID)
	if err != nil {
		return StepApproval{}, err
	}

	status, err := s.employeeStatus(ctx, period, in.EmployeeID)
	if err != nil {
		return StepApproval{}, err
	}
	step, ok := findEvaluatorStep(status, in.Step, in.EvaluatorID)
	if !ok {
		return StepApproval{}, ErrNoMapping
	}
	switch {
	case step.Status == StatusRevisionRequested:
		return StepApproval{}, ErrRevisionOutstanding
	case step.AssignedWbsCount == 0 || step.CompletedCount < step.AssignedWbsCount:
		return StepApproval{}, ErrStepNotSubmitted
	}

	mappingID := ""
	if in.Step == EvaluatorPrimary {
		if m, err := s.stepMapping(ctx, in.PeriodID, in.EmployeeID, EvaluatorPrimary, ""); err == nil {
			mappingID = m.ID
		}
	}

	now := s.now().UTC()
	saved, err := s.store.UpsertApproval(ctx, StepApproval{
		ID:          uuid.NewString(),
		PeriodID:    in.PeriodID,
		EmployeeID:  in.EmployeeID,
		Step:        in.Step,
		MappingID:   mappingID,
		EvaluatorID: step.EvaluatorID,
		Status:      ApprovalApproved,
		ApprovedBy:  actor,
		ApprovedAt:  &now,
		UpdatedAt:   now,
	})
	if err != nil {
		return StepApproval{}, err
	}

	s.recordActivity(ctx, actor, ActionStepApproved, entityApproval, saved.ID, saved.PeriodID, saved.EmployeeID, saved)
	return saved, nil
}

type RevisionInput struct {
	PeriodID     string        `json:"periodId"`
	EmployeeID   string        `json:"employeeId"`
	Step         EvaluatorType `json:"step"`
	EvaluatorIDs []string      `json:"evaluatorIds"`
	Comment      string        `json:"comment"`
}

// RequestRevision opens a revision request for the listed evaluators, or for
// every evaluator mapped to the step when none are listed.
func (s *Service) RequestRevision(ctx context.Context, in RevisionInput, actor string) (RevisionRequest, error) {
	if !in.Step.IsStep() {
		return RevisionRequest{}, ErrInvalidStep
	}
	if _, err := s.store.GetPeriod(ctx, in.PeriodID); err != nil {
		return RevisionRequest{}, err
	}
	mappings, err := s.store.ListMappings(ctx, in.PeriodID, in.EmployeeID)
	if err != nil {
		return RevisionRequest{}, err
	}

	mapped := stepEvaluators(mappings, in.Step)
	targets := mapped
	if len(in.EvaluatorIDs) > 0 {
		targets = nil
		for _, id := range in.EvaluatorIDs {
			if !contains(mapped, id) {
				return RevisionRequest{}, ErrNoMapping
			}
			targets = appendUnique(targets, id)
		}
	}
	if len(targets) == 0 {
		return RevisionRequest{}, ErrNoMapping
	}

	now := s.now().UTC()
	req := RevisionRequest{
		ID:          uuid.NewString(),
		PeriodID:    in.PeriodID,
		EmployeeID:  in.EmployeeID,
		Step:        in.Step,
		Comment:     in.Comment,
		RequestedBy: actor,
		CreatedAt:   now,
	}
	for _, evaluatorID := range targets {
		req.Recipients = append(req.Recipients, RevisionRecipient{
			ID:          uuid.NewString(),
			RequestID:   req.ID,
			PeriodID:    in.PeriodID,
			EmployeeID:  in.EmployeeID,
			Step:        in.Step,
			EvaluatorID: evaluatorID,
			RequestedAt: now,
		})
	}
	saved, err := s.store.CreateRevisionRequest(ctx, req)
	if err != nil {
		return RevisionRequest{}, err
	}

	s.recordActivity(ctx, actor, ActionRevisionRequested, entityRevision, saved.ID, saved.PeriodID, saved.EmployeeID, saved)
	return saved, nil
}

// CompleteRevision marks the evaluator's share of a revision request done.
func (s *Service) CompleteRevision(ctx context.Context, requestID, evaluatorID, actor string) error {
	if err := s.store.CompleteRevisionRecipient(ctx, requestID, evaluatorID); err != nil {
		return err
	}
	s.recordActivity(ctx, actor, ActionRevisionCompleted, entityRevision, requestID, "", "", map[string]string{"evaluatorId": evaluatorID})
	return nil
}

// stepMapping finds the active mapping of a step: the period-scoped mapping
// for primary, the WBS-scoped one for secondary.
func (s *Service) stepMapping(ctx context.Context, periodID, employeeID string, step EvaluatorType, wbsItemID string) (LineMapping, error) {
	line, ok := s.catalog.Line(step)
	if !ok {
		return LineMapping{}, ErrNoMapping
	}
	key := MappingKey{PeriodID: periodID, EmployeeID: employeeID, EvaluationLineID: line.ID}
	if step == EvaluatorSecondary {
		key.WbsItemID = wbsItemID
	}
	m, found, err := s.store.FindActiveMapping(ctx, key)
	if err != nil {
		return LineMapping{}, err
	}
	if !found {
		return LineMapping{}, ErrNoMapping
	}
	return m, nil
}

// stepLocked reports whether the evaluator's latest approval is APPROVED
// with no open revision request after it.
func (s *Service) stepLocked(ctx context.Context, periodID, employeeID string, step EvaluatorType, evaluatorID string) (bool, error) {
	approvals, err := s.store.ListApprovals(ctx, periodID, employeeID)
	if err != nil {
		return false, err
	}
	approval := latestApproval(approvals, step, evaluatorID)
	if approval == nil || approval.Status != ApprovalApproved {
		return false, nil
	}
	recipients, err := s.store.ListRevisionRecipients(ctx, periodID, employeeID)
	if err != nil {
		return false, err
	}
	revision := latestRevision(recipients, step, evaluatorID)
	return revision == nil || revision.IsCompleted, nil
}

func findEvaluatorStep(status EmployeeStatus, step EvaluatorType, evaluatorID string) (EvaluatorStep, bool) {
	if step == EvaluatorPrimary {
		p := status.Primary
		if p.EvaluatorID == "" || (evaluatorID != "" && evaluatorID != p.EvaluatorID) {
			return EvaluatorStep{}, false
		}
		return EvaluatorStep{
			EvaluatorID:      p.EvaluatorID,
			Status:           p.Status,
			AssignedWbsCount: p.AssignedWbsCount,
			CompletedCount:   p.CompletedCount,
		}, true
	}
	for _, e := range status.Secondary.Evaluators {
		if e.EvaluatorID == evaluatorID {
			return e, true
		}
	}
	return EvaluatorStep{}, false
}

func stepEvaluators(mappings []LineMapping, step EvaluatorType) []string {
	var out []string
	for _, m := range mappings {
		if m.EvaluatorType != step {
			continue
		}
		if step == EvaluatorPrimary && m.WbsItemID != "" {
			continue
		}
		out = appendUnique(out, m.EvaluatorID)
	}
	return out
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
