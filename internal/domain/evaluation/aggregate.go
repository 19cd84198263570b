package evaluation

import "sort"

// EmployeeRecords is the raw material for one (period, employee) status
// computation. Only active rows are expected.
type EmployeeRecords struct {
	PeriodID    string
	EmployeeID  string
	Assignments []WbsAssignment
	Mappings    []LineMapping
	Evaluations []DownwardEvaluation
	Approvals   []StepApproval
	Revisions   []RevisionRecipient
}

type EvaluatorStep struct {
	EvaluatorID      string   `json:"evaluatorId"`
	Status           Status   `json:"status"`
	AssignedWbsCount int      `json:"assignedWbsCount"`
	CompletedCount   int      `json:"completedCount"`
	Score            *float64 `json:"score"`
	Grade            *string  `json:"grade"`
}

type PrimaryStep struct {
	EvaluatorID      string   `json:"evaluatorId,omitempty"`
	Status           Status   `json:"status"`
	AssignedWbsCount int      `json:"assignedWbsCount"`
	CompletedCount   int      `json:"completedCount"`
	TotalScore       *float64 `json:"totalScore"`
	Grade            *string  `json:"grade"`
}

type SecondaryStep struct {
	Status     Status          `json:"status"`
	Evaluators []EvaluatorStep `json:"evaluators"`
}

type EmployeeStatus struct {
	PeriodID   string        `json:"periodId"`
	EmployeeID string        `json:"employeeId"`
	Primary    PrimaryStep   `json:"primary"`
	Secondary  SecondaryStep `json:"secondary"`
}

// BuildEmployeeStatus derives both step statuses and their scores. It has no
// side effects and is safe to run concurrently for different employees.
func BuildEmployeeStatus(rec EmployeeRecords, grades GradeRanges) EmployeeStatus {
	assigned := make(map[string]WbsAssignment, len(rec.Assignments))
	for _, a := range rec.Assignments {
		assigned[a.WbsItemID] = a
	}

	return EmployeeStatus{
		PeriodID:   rec.PeriodID,
		EmployeeID: rec.EmployeeID,
		Primary:    buildPrimaryStep(rec, assigned, grades),
		Secondary:  buildSecondaryStep(rec, assigned, grades),
	}
}

func buildPrimaryStep(rec EmployeeRecords, assigned map[string]WbsAssignment, grades GradeRanges) PrimaryStep {
	evaluatorID := ""
	for _, m := range rec.Mappings {
		if m.EvaluatorType == EvaluatorPrimary && m.WbsItemID == "" {
			evaluatorID = m.EvaluatorID
			break
		}
	}

	items := make([]string, 0, len(assigned))
	for wbsID := range assigned {
		items = append(items, wbsID)
	}
	sort.Strings(items)
	step := evaluateStep(rec, EvaluatorPrimary, evaluatorID, items, assigned, grades)
	return PrimaryStep{
		EvaluatorID:      evaluatorID,
		Status:           step.Status,
		AssignedWbsCount: step.AssignedWbsCount,
		CompletedCount:   step.CompletedCount,
		TotalScore:       step.Score,
		Grade:            step.Grade,
	}
}

func buildSecondaryStep(rec EmployeeRecords, assigned map[string]WbsAssignment, grades GradeRanges) SecondaryStep {
	itemsByEvaluator := map[string][]string{}
	for _, m := range rec.Mappings {
		if m.EvaluatorType != EvaluatorSecondary || m.WbsItemID == "" {
			continue
		}
		if _, ok := assigned[m.WbsItemID]; !ok {
			continue
		}
		itemsByEvaluator[m.EvaluatorID] = appendUnique(itemsByEvaluator[m.EvaluatorID], m.WbsItemID)
	}

	evaluatorIDs := make([]string, 0, len(itemsByEvaluator))
	for id := range itemsByEvaluator {
		evaluatorIDs = append(evaluatorIDs, id)
	}
	sort.Strings(evaluatorIDs)

	out := SecondaryStep{Status: StatusNone, Evaluators: make([]EvaluatorStep, 0, len(evaluatorIDs))}
	statuses := make([]Status, 0, len(evaluatorIDs))
	for _, id := range evaluatorIDs {
		step := evaluateStep(rec, EvaluatorSecondary, id, itemsByEvaluator[id], assigned, grades)
		out.Evaluators = append(out.Evaluators, step)
		statuses = append(statuses, step.Status)
	}
	out.Status = MergeStatuses(statuses...)
	return out
}

// evaluateStep computes one evaluator's status and, once submitted, score.
func evaluateStep(rec EmployeeRecords, step EvaluatorType, evaluatorID string, wbsItems []string, assigned map[string]WbsAssignment, grades GradeRanges) EvaluatorStep {
	completed := map[string]DownwardEvaluation{}
	if evaluatorID != "" {
		for _, e := range rec.Evaluations {
			if e.Step != step || e.EvaluatorID != evaluatorID || !e.IsCompleted {
				continue
			}
			completed[e.WbsItemID] = e
		}
	}

	completedCount := 0
	items := make([]WeightedItem, 0, len(wbsItems))
	for _, wbsID := range wbsItems {
		e, done := completed[wbsID]
		if done {
			completedCount++
		}
		items = append(items, WeightedItem{
			WbsItemID: wbsID,
			Weight:    assigned[wbsID].Weight,
			Score:     e.Score,
			Completed: done,
		})
	}

	progress := EvaluatorProgress{
		EvaluatorID:              evaluatorID,
		AssignedWbsCount:         len(wbsItems),
		CompletedEvaluationCount: completedCount,
	}
	if evaluatorID != "" {
		progress.Approval = latestApproval(rec.Approvals, step, evaluatorID)
		progress.Revision = latestRevision(rec.Revisions, step, evaluatorID)
	}

	out := EvaluatorStep{
		EvaluatorID:      evaluatorID,
		Status:           EvaluatorStatus(progress),
		AssignedWbsCount: progress.AssignedWbsCount,
		CompletedCount:   completedCount,
	}
	if progress.IsSubmitted() {
		if score, ok := WeightedScore(items); ok {
			out.Score = &score
			if grade, ok := grades.Lookup(score); ok {
				out.Grade = &grade
			}
		}
	}
	return out
}

// latestApproval picks the most recently updated approval. Primary approvals
// may predate evaluator ids and match on step alone.
func latestApproval(approvals []StepApproval, step EvaluatorType, evaluatorID string) *StepApproval {
	var latest *StepApproval
	for i := range approvals {
		a := &approvals[i]
		if a.Step != step {
			continue
		}
		if a.EvaluatorID != evaluatorID && !(step == EvaluatorPrimary && a.EvaluatorID == "") {
			continue
		}
		if latest == nil || !a.UpdatedAt.Before(latest.UpdatedAt) {
			latest = a
		}
	}
	return latest
}

func latestRevision(recipients []RevisionRecipient, step EvaluatorType, evaluatorID string) *RevisionRecipient {
	var latest *RevisionRecipient
	for i := range recipients {
		r := &recipients[i]
		if r.Step != step || r.EvaluatorID != evaluatorID {
			continue
		}
		if latest == nil || !r.RequestedAt.Before(latest.RequestedAt) {
			latest = r
		}
	}
	return latest
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
