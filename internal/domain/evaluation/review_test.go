package evaluation_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalsvc/internal/domain/evaluation"
)

func submit(t *testing.T, h *harness, step evaluation.EvaluatorType, evaluatorID, wbsItemID string, score float64) {
	t.Helper()
	_, err := h.svc.SubmitEvaluation(context.Background(), evaluation.SubmitInput{
		PeriodID:    periodID,
		EmployeeID:  "emp-1",
		EvaluatorID: evaluatorID,
		Step:        step,
		WbsItemID:   wbsItemID,
		Score:       score,
		Completed:   true,
	}, evaluatorID)
	require.NoError(t, err)
}

func primaryStatus(t *testing.T, h *harness) evaluation.PrimaryStep {
	t.Helper()
	st, err := h.svc.EmployeeStatus(context.Background(), periodID, "emp-1")
	require.NoError(t, err)
	return st.Primary
}

func TestReviewLifecycle(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.assign(t, "emp-1", "proj-1", "w1")
	h.assign(t, "emp-1", "proj-1", "w2")

	submit(t, h, evaluation.EvaluatorPrimary, lineMgr, "w1", 80)
	assert.Equal(t, evaluation.StatusInProgress, primaryStatus(t, h).Status)

	_, err := h.svc.ApproveStep(ctx, evaluation.ApproveInput{PeriodID: periodID, EmployeeID: "emp-1", Step: evaluation.EvaluatorPrimary}, "hr")
	assert.ErrorIs(t, err, evaluation.ErrStepNotSubmitted)

	submit(t, h, evaluation.EvaluatorPrimary, lineMgr, "w2", 90)
	p := primaryStatus(t, h)
	assert.Equal(t, evaluation.StatusPending, p.Status)
	require.NotNil(t, p.TotalScore)
	assert.InDelta(t, 85, *p.TotalScore, 1e-9)
	require.NotNil(t, p.Grade)
	assert.Equal(t, "A", *p.Grade)

	approval, err := h.svc.ApproveStep(ctx, evaluation.ApproveInput{PeriodID: periodID, EmployeeID: "emp-1", Step: evaluation.EvaluatorPrimary}, "hr")
	require.NoError(t, err)
	assert.Equal(t, lineMgr, approval.EvaluatorID)
	assert.Equal(t, evaluation.ApprovalApproved, approval.Status)
	assert.Equal(t, "hr", approval.ApprovedBy)
	assert.Equal(t, evaluation.StatusApproved, primaryStatus(t, h).Status)

	_, err = h.svc.SubmitEvaluation(ctx, evaluation.SubmitInput{
		PeriodID: periodID, EmployeeID: "emp-1", EvaluatorID: lineMgr, Step: evaluation.EvaluatorPrimary, WbsItemID: "w1", Score: 50, Completed: true,
	}, lineMgr)
	assert.ErrorIs(t, err, evaluation.ErrStepApproved)

	req, err := h.svc.RequestRevision(ctx, evaluation.RevisionInput{PeriodID: periodID, EmployeeID: "emp-1", Step: evaluation.EvaluatorPrimary, Comment: "recheck w1"}, "hr")
	require.NoError(t, err)
	require.Len(t, req.Recipients, 1)
	assert.Equal(t, lineMgr, req.Recipients[0].EvaluatorID)
	assert.Equal(t, evaluation.StatusRevisionRequested, primaryStatus(t, h).Status)

	_, err = h.svc.ApproveStep(ctx, evaluation.ApproveInput{PeriodID: periodID, EmployeeID: "emp-1", Step: evaluation.EvaluatorPrimary}, "hr")
	assert.ErrorIs(t, err, evaluation.ErrRevisionOutstanding)

	submit(t, h, evaluation.EvaluatorPrimary, lineMgr, "w1", 60)
	require.NoError(t, h.svc.CompleteRevision(ctx, req.ID, lineMgr, lineMgr))

	p = primaryStatus(t, h)
	assert.Equal(t, evaluation.StatusRevisionCompleted, p.Status)
	require.NotNil(t, p.TotalScore)
	assert.InDelta(t, 75, *p.TotalScore, 1e-9)

	assert.Equal(t, []string{
		evaluation.ActionAssignmentCreated,
		evaluation.ActionAssignmentCreated,
		evaluation.ActionEvaluationSubmitted,
		evaluation.ActionEvaluationSubmitted,
		evaluation.ActionStepApproved,
		evaluation.ActionRevisionRequested,
		evaluation.ActionEvaluationSubmitted,
		evaluation.ActionRevisionCompleted,
	}, h.activity.actions())
}

func TestSubmitEvaluationRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.assign(t, "emp-1", "proj-1", "w1")

	base := evaluation.SubmitInput{PeriodID: periodID, EmployeeID: "emp-1", EvaluatorID: lineMgr, Step: evaluation.EvaluatorPrimary, WbsItemID: "w1", Score: 70}

	in := base
	in.Score = 101
	_, err := h.svc.SubmitEvaluation(ctx, in, "x")
	assert.ErrorIs(t, err, evaluation.ErrInvalidScore)

	in = base
	in.Step = evaluation.EvaluatorAdditional
	_, err = h.svc.SubmitEvaluation(ctx, in, "x")
	assert.ErrorIs(t, err, evaluation.ErrInvalidStep)

	in = base
	in.EvaluatorID = projectMgr
	_, err = h.svc.SubmitEvaluation(ctx, in, "x")
	assert.ErrorIs(t, err, evaluation.ErrNoMapping, "pm-1 is not the primary evaluator")

	in = base
	in.WbsItemID = "w9"
	_, err = h.svc.SubmitEvaluation(ctx, in, "x")
	assert.ErrorIs(t, err, evaluation.ErrWbsNotAssigned)

	in = base
	in.Step = evaluation.EvaluatorSecondary
	in.EvaluatorID = projectMgr
	saved, err := h.svc.SubmitEvaluation(ctx, in, projectMgr)
	require.NoError(t, err)
	assert.False(t, saved.IsCompleted)
	assert.Nil(t, saved.CompletedAt)

	in = base
	in.PeriodID = closedPeriod
	_, err = h.svc.SubmitEvaluation(ctx, in, "x")
	assert.ErrorIs(t, err, evaluation.ErrPeriodClosed)
}

func TestSecondaryApprovalIsPerEvaluator(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.assign(t, "emp-1", "proj-1", "w1")
	h.assign(t, "emp-1", "proj-2", "w2")

	submit(t, h, evaluation.EvaluatorSecondary, projectMgr, "w1", 88)
	submit(t, h, evaluation.EvaluatorSecondary, "pm-2", "w2", 72)

	_, err := h.svc.ApproveStep(ctx, evaluation.ApproveInput{PeriodID: periodID, EmployeeID: "emp-1", Step: evaluation.EvaluatorSecondary, EvaluatorID: projectMgr}, "hr")
	require.NoError(t, err)

	st, err := h.svc.EmployeeStatus(ctx, periodID, "emp-1")
	require.NoError(t, err)
	require.Len(t, st.Secondary.Evaluators, 2)
	assert.Equal(t, evaluation.StatusApproved, st.Secondary.Evaluators[0].Status)
	assert.Equal(t, evaluation.StatusPending, st.Secondary.Evaluators[1].Status)
	assert.Equal(t, evaluation.StatusPending, st.Secondary.Status)

	_, err = h.svc.ApproveStep(ctx, evaluation.ApproveInput{PeriodID: periodID, EmployeeID: "emp-1", Step: evaluation.EvaluatorSecondary, EvaluatorID: "stranger"}, "hr")
	assert.ErrorIs(t, err, evaluation.ErrNoMapping)
}

func TestRequestRevisionTargets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.assign(t, "emp-1", "proj-1", "w1")
	h.assign(t, "emp-1", "proj-2", "w2")

	req, err := h.svc.RequestRevision(ctx, evaluation.RevisionInput{PeriodID: periodID, EmployeeID: "emp-1", Step: evaluation.EvaluatorSecondary}, "hr")
	require.NoError(t, err)
	var targets []string
	for _, rc := range req.Recipients {
		targets = append(targets, rc.EvaluatorID)
		assert.False(t, rc.IsCompleted)
	}
	assert.ElementsMatch(t, []string{projectMgr, "pm-2"}, targets)

	req, err = h.svc.RequestRevision(ctx, evaluation.RevisionInput{PeriodID: periodID, EmployeeID: "emp-1", Step: evaluation.EvaluatorSecondary, EvaluatorIDs: []string{"pm-2", "pm-2"}}, "hr")
	require.NoError(t, err)
	assert.Len(t, req.Recipients, 1)

	_, err = h.svc.RequestRevision(ctx, evaluation.RevisionInput{PeriodID: periodID, EmployeeID: "emp-1", Step: evaluation.EvaluatorSecondary, EvaluatorIDs: []string{"stranger"}}, "hr")
	assert.ErrorIs(t, err, evaluation.ErrNoMapping)

	_, err = h.svc.RequestRevision(ctx, evaluation.RevisionInput{PeriodID: periodID, EmployeeID: "emp-3", Step: evaluation.EvaluatorPrimary}, "hr")
	assert.ErrorIs(t, err, evaluation.ErrNoMapping)
}

func TestCompleteRevisionMissing(t *testing.T) {
	h := newHarness(t)
	err := h.svc.CompleteRevision(context.Background(), "missing", lineMgr, lineMgr)
	assert.ErrorIs(t, err, evaluation.ErrRevisionRequestNotFound)
}
