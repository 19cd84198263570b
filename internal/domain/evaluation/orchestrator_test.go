package evaluation_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalsvc/internal/domain/evaluation"
	"evalsvc/internal/platform/metrics"
	"evalsvc/internal/shared/apperror"
)

func TestAssignWbsCreatesPlaceholderCriteria(t *testing.T) {
	h := newHarness(t)
	a := h.assign(t, "emp-1", "proj-1", "w1")

	assert.Equal(t, 1, a.DisplayOrder)
	assert.Equal(t, "admin", a.CreatedBy)
	c, ok := h.store.ActiveCriteria("w1")
	require.True(t, ok)
	assert.Equal(t, "", c.Criteria)
	assert.Equal(t, evaluation.DefaultCriteriaImportance, c.Importance)

	b := h.assign(t, "emp-2", "proj-1", "w1")
	assert.Equal(t, 1, b.DisplayOrder, "display order is per employee")
	assert.Equal(t, 1, h.store.CriteriaRows(), "criteria are created once per item")

	c2 := h.assign(t, "emp-1", "proj-1", "w2")
	assert.Equal(t, 2, c2.DisplayOrder)

	assert.Equal(t, []string{
		evaluation.ActionAssignmentCreated,
		evaluation.ActionAssignmentCreated,
		evaluation.ActionAssignmentCreated,
	}, h.activity.actions())
	assert.Equal(t, uint64(3), h.metrics.Counter(metrics.AssignmentsCreated))
}

func TestAssignWbsRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.assign(t, "emp-1", "proj-1", "w1")

	_, err := h.svc.AssignWbs(ctx, evaluation.AssignInput{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"}, "admin")
	assert.ErrorIs(t, err, evaluation.ErrAssignmentExists)

	_, err = h.svc.AssignWbs(ctx, evaluation.AssignInput{PeriodID: "nope", EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w2"}, "admin")
	assert.ErrorIs(t, err, evaluation.ErrPeriodNotFound)

	_, err = h.svc.AssignWbs(ctx, evaluation.AssignInput{PeriodID: closedPeriod, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w2"}, "admin")
	assert.ErrorIs(t, err, evaluation.ErrPeriodClosed)

	_, err = h.svc.AssignWbs(ctx, evaluation.AssignInput{PeriodID: periodID, EmployeeID: "emp-1"}, "admin")
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidInput))
}

func TestActivityFailureDoesNotFailAssignment(t *testing.T) {
	h := newHarness(t)
	h.activity.err = errors.New("activity store down")

	a := h.assign(t, "emp-1", "proj-1", "w1")
	assert.NotEmpty(t, a.ID)
	assert.Equal(t, uint64(1), h.metrics.Counter(metrics.ActivityFailures))
}

func TestAssignWbsRetryAfterCriteriaFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	in := evaluation.AssignInput{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"}

	h.store.Errors["CreateCriteria"] = errors.New("db blip")
	_, err := h.svc.AssignWbs(ctx, in, "admin")
	require.Error(t, err)
	assert.Empty(t, h.store.CallsTo("CreateAssignment"), "no assignment is written without criteria")

	delete(h.store.Errors, "CreateCriteria")
	a, err := h.svc.AssignWbs(ctx, in, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, a.DisplayOrder)

	_, ok := h.store.ActiveCriteria("w1")
	assert.True(t, ok)
	emp1 := h.store.ActiveMappings(periodID, "emp-1")
	assert.Len(t, mappingsOfType(emp1, evaluation.EvaluatorPrimary), 1)
	assert.Len(t, mappingsOfType(emp1, evaluation.EvaluatorSecondary), 1)
}

func TestAssignWbsRepeatCompletesStoredAssignment(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.store.CreateAssignment(ctx, evaluation.WbsAssignment{
		ID: "bare", PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1", DisplayOrder: 1,
	})
	require.NoError(t, err)

	_, err = h.svc.AssignWbs(ctx, evaluation.AssignInput{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"}, "admin")
	assert.ErrorIs(t, err, evaluation.ErrAssignmentExists)

	_, ok := h.store.ActiveCriteria("w1")
	assert.True(t, ok, "criteria filled in for the stored assignment")
	emp1 := h.store.ActiveMappings(periodID, "emp-1")
	assert.Len(t, mappingsOfType(emp1, evaluation.EvaluatorPrimary), 1)
	secondary := mappingsOfType(emp1, evaluation.EvaluatorSecondary)
	require.Len(t, secondary, 1)
	assert.Equal(t, projectMgr, secondary[0].EvaluatorID)
}

func TestAssignWbsRetriesTakenDisplayOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.store.BeforeCreateAssignment = func(a evaluation.WbsAssignment) {
		h.store.BeforeCreateAssignment = nil
		_, err := h.store.CreateAssignment(ctx, evaluation.WbsAssignment{
			ID: "concurrent", PeriodID: a.PeriodID, EmployeeID: a.EmployeeID, ProjectID: "proj-1", WbsItemID: "w9", DisplayOrder: a.DisplayOrder,
		})
		require.NoError(t, err)
	}

	a := h.assign(t, "emp-1", "proj-1", "w1")
	assert.Equal(t, 2, a.DisplayOrder)
	assert.Len(t, h.store.CallsTo("NextDisplayOrder"), 2)

	list, err := h.svc.Reorder(ctx, a.ID, evaluation.DirectionUp, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID, "concurrent"}, ids(list))
	assert.Equal(t, []int{1, 2}, orders(list))
}

func TestAssignWbsBulk(t *testing.T) {
	h := newHarness(t)
	inputs := []evaluation.AssignInput{
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"},
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w2"},
		{PeriodID: periodID, EmployeeID: "emp-2", ProjectID: "proj-1", WbsItemID: "w1"},
		{PeriodID: periodID, EmployeeID: "emp-2", ProjectID: "proj-2", WbsItemID: "w3"},
	}

	created, err := h.svc.AssignWbsBulk(context.Background(), inputs, "admin")
	require.NoError(t, err)
	require.Len(t, created, 4)

	assert.Len(t, h.store.CallsTo("CriteriaExists"), 3, "one criteria check per distinct item")
	assert.Equal(t, 3, h.store.CriteriaRows())

	emp1 := h.store.ActiveMappings(periodID, "emp-1")
	assert.Len(t, mappingsOfType(emp1, evaluation.EvaluatorPrimary), 1)
	assert.Len(t, mappingsOfType(emp1, evaluation.EvaluatorSecondary), 2)

	emp2 := h.store.ActiveMappings(periodID, "emp-2")
	assert.Len(t, mappingsOfType(emp2, evaluation.EvaluatorPrimary), 1)
	assert.Len(t, mappingsOfType(emp2, evaluation.EvaluatorSecondary), 2)
}

func TestAssignWbsBulkIsolatesResolutionGaps(t *testing.T) {
	h := newHarness(t)
	inputs := []evaluation.AssignInput{
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"},
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-missing", WbsItemID: "w2"},
	}

	created, err := h.svc.AssignWbsBulk(context.Background(), inputs, "admin")
	require.NoError(t, err)
	assert.Len(t, created, 2)

	secondary := mappingsOfType(h.store.ActiveMappings(periodID, "emp-1"), evaluation.EvaluatorSecondary)
	require.Len(t, secondary, 1)
	assert.Equal(t, "w1", secondary[0].WbsItemID)
}

func TestAssignWbsBulkValidatesBeforeWriting(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.AssignWbsBulk(ctx, nil, "admin")
	assert.ErrorIs(t, err, evaluation.ErrEmptyBatch)

	_, err = h.svc.AssignWbsBulk(ctx, []evaluation.AssignInput{
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"},
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"},
	}, "admin")
	assert.ErrorIs(t, err, evaluation.ErrAssignmentExists)

	h.assign(t, "emp-2", "proj-1", "w9")
	_, err = h.svc.AssignWbsBulk(ctx, []evaluation.AssignInput{
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"},
		{PeriodID: periodID, EmployeeID: "emp-2", ProjectID: "proj-1", WbsItemID: "w9"},
	}, "admin")
	assert.ErrorIs(t, err, evaluation.ErrAssignmentExists)

	assert.Len(t, h.store.CallsTo("CreateAssignment"), 1, "only the setup assignment was written")
}

func TestAssignWbsBulkRetryAfterCriteriaFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inputs := []evaluation.AssignInput{
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"},
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w2"},
	}

	h.store.Errors["CriteriaExists"] = errors.New("db blip")
	_, err := h.svc.AssignWbsBulk(ctx, inputs, "admin")
	require.Error(t, err)
	assert.Empty(t, h.store.CallsTo("CreateAssignment"))

	delete(h.store.Errors, "CriteriaExists")
	created, err := h.svc.AssignWbsBulk(ctx, inputs, "admin")
	require.NoError(t, err)
	assert.Len(t, created, 2)
	assert.Len(t, mappingsOfType(h.store.ActiveMappings(periodID, "emp-1"), evaluation.EvaluatorSecondary), 2)
}

func TestAssignWbsBulkRollsBackOnInsertFailure(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	inputs := []evaluation.AssignInput{
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"},
		{PeriodID: periodID, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w2"},
		{PeriodID: periodID, EmployeeID: "emp-2", ProjectID: "proj-1", WbsItemID: "w1"},
	}

	inserts := 0
	h.store.BeforeCreateAssignment = func(evaluation.WbsAssignment) {
		inserts++
		if inserts == 2 {
			h.store.Errors["CreateAssignment"] = errors.New("db blip")
		}
	}
	_, err := h.svc.AssignWbsBulk(ctx, inputs, "admin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "item 1")

	left, err := h.store.ListAssignments(ctx, evaluation.AssignmentFilter{PeriodID: periodID})
	require.NoError(t, err)
	assert.Empty(t, left, "rows written before the failure are rolled back")

	h.store.BeforeCreateAssignment = nil
	delete(h.store.Errors, "CreateAssignment")
	created, err := h.svc.AssignWbsBulk(ctx, inputs, "admin")
	require.NoError(t, err)
	assert.Len(t, created, 3)
	assert.Len(t, mappingsOfType(h.store.ActiveMappings(periodID, "emp-2"), evaluation.EvaluatorSecondary), 1)
}

func TestCancelAssignmentCleansUpOrphanCriteria(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	only := h.assign(t, "emp-1", "proj-1", "w1")
	shared1 := h.assign(t, "emp-1", "proj-1", "w2")
	h.assign(t, "emp-2", "proj-1", "w2")

	require.NoError(t, h.svc.CancelAssignment(ctx, only.ID, "admin"))
	_, ok := h.store.ActiveCriteria("w1")
	assert.False(t, ok, "last reference removed")

	require.NoError(t, h.svc.CancelAssignment(ctx, shared1.ID, "admin"))
	_, ok = h.store.ActiveCriteria("w2")
	assert.True(t, ok, "still referenced by emp-2")

	secondary := mappingsOfType(h.store.ActiveMappings(periodID, "emp-1"), evaluation.EvaluatorSecondary)
	assert.Empty(t, secondary, "wbs-scoped mappings go with the assignment")
	assert.Len(t, mappingsOfType(h.store.ActiveMappings(periodID, "emp-1"), evaluation.EvaluatorPrimary), 1)
}

func TestCancelKeepsCriteriaReferencedInAnotherPeriod(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.assign(t, "emp-1", "proj-1", "w1")
	later, err := h.svc.AssignWbs(ctx, evaluation.AssignInput{PeriodID: nextPeriod, EmployeeID: "emp-1", ProjectID: "proj-1", WbsItemID: "w1"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, h.store.CriteriaRows(), "criteria are shared across periods")

	require.NoError(t, h.svc.CancelAssignment(ctx, later.ID, "admin"))
	_, ok := h.store.ActiveCriteria("w1")
	assert.True(t, ok, "still assigned in the first period")

	result, err := h.svc.ResetAssignments(ctx, evaluation.ResetScope{PeriodID: periodID}, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{"w1"}, result.CriteriaRemoved)
}

func TestCancelMissingAssignmentIsNoop(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.svc.CancelAssignment(context.Background(), "missing", "admin"))
	assert.Empty(t, h.store.CallsTo("DeleteAssignment"))
	assert.Empty(t, h.activity.events)
}

func TestResetAssignmentsRunsCleanupAfterAllCancels(t *testing.T) {
	h := newHarness(t)
	h.assign(t, "emp-1", "proj-1", "w1")
	h.assign(t, "emp-1", "proj-1", "w2")
	h.assign(t, "emp-2", "proj-1", "w1")
	h.assign(t, "emp-2", "proj-1", "w2")
	h.assign(t, "emp-2", "proj-2", "w3")

	result, err := h.svc.ResetAssignments(context.Background(), evaluation.ResetScope{PeriodID: periodID}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 5, result.Cancelled)
	assert.ElementsMatch(t, []string{"w1", "w2", "w3"}, result.WbsItems)
	assert.ElementsMatch(t, []string{"w1", "w2", "w3"}, result.CriteriaRemoved)

	var lastDelete, firstCheck = -1, -1
	checks := 0
	for i, call := range h.store.Calls() {
		switch {
		case strings.HasPrefix(call, "DeleteAssignment:"):
			lastDelete = i
		case strings.HasPrefix(call, "CountActiveAssignmentsForWbs:"):
			checks++
			if firstCheck < 0 {
				firstCheck = i
			}
		}
	}
	assert.Equal(t, 3, checks, "one orphan check per distinct item")
	assert.Greater(t, firstCheck, lastDelete, "checks run after every cancel")
}

func TestResetAssignmentsByProject(t *testing.T) {
	h := newHarness(t)
	h.assign(t, "emp-1", "proj-1", "w1")
	h.assign(t, "emp-2", "proj-2", "w1")

	result, err := h.svc.ResetAssignments(context.Background(), evaluation.ResetScope{PeriodID: periodID, ProjectID: "proj-1"}, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Cancelled)
	assert.Empty(t, result.CriteriaRemoved, "w1 still assigned to emp-2")
}

func TestResetAssignmentsScopeValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.ResetAssignments(ctx, evaluation.ResetScope{}, "admin")
	assert.ErrorIs(t, err, evaluation.ErrInvalidScope)

	_, err = h.svc.ResetAssignments(ctx, evaluation.ResetScope{PeriodID: periodID, ProjectID: "p", EmployeeID: "e"}, "admin")
	assert.ErrorIs(t, err, evaluation.ErrInvalidScope)
}

func TestReorder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	first := h.assign(t, "emp-1", "proj-1", "w1")
	second := h.assign(t, "emp-1", "proj-1", "w2")
	third := h.assign(t, "emp-1", "proj-1", "w3")

	list, err := h.svc.Reorder(ctx, third.ID, evaluation.DirectionUp, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, third.ID, second.ID}, ids(list))
	assert.Equal(t, []int{1, 2, 3}, orders(list))

	list, err = h.svc.Reorder(ctx, first.ID, evaluation.DirectionUp, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, third.ID, second.ID}, ids(list), "top item cannot move up")

	list, err = h.svc.Reorder(ctx, second.ID, evaluation.DirectionDown, "admin")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, third.ID, second.ID}, ids(list), "bottom item cannot move down")
	assert.Len(t, h.store.CallsTo("SwapDisplayOrder"), 1)

	stored, err := h.store.ListAssignments(ctx, evaluation.AssignmentFilter{PeriodID: periodID, EmployeeID: "emp-1"})
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID, third.ID, second.ID}, ids(stored))

	_, err = h.svc.Reorder(ctx, "missing", evaluation.DirectionUp, "admin")
	assert.ErrorIs(t, err, evaluation.ErrAssignmentNotFound)

	_, err = h.svc.Reorder(ctx, first.ID, "sideways", "admin")
	assert.ErrorIs(t, err, evaluation.ErrInvalidDirection)
}

func ids(list []evaluation.WbsAssignment) []string {
	out := make([]string, 0, len(list))
	for _, a := range list {
		out = append(out, a.ID)
	}
	return out
}

func orders(list []evaluation.WbsAssignment) []int {
	out := make([]int, 0, len(list))
	for _, a := range list {
		out = append(out, a.DisplayOrder)
	}
	return out
}
