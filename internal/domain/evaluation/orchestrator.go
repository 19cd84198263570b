package evaluation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"evalsvc/internal/platform/metrics"
	"evalsvc/internal/shared/apperror"
)

const maxDisplayOrderAttempts = 3

const (
	entityAssignment = "wbs_assignment"
	entityEvaluation = "downward_evaluation"
	entityApproval   = "step_approval"
	entityRevision   = "revision_request"
)

type AssignInput struct {
	PeriodID   string   `json:"periodId"`
	EmployeeID string   `json:"employeeId"`
	ProjectID  string   `json:"projectId"`
	WbsItemID  string   `json:"wbsItemId"`
	Weight     *float64 `json:"weight,omitempty"`
}

func (in AssignInput) validate() error {
	if strings.TrimSpace(in.PeriodID) == "" || strings.TrimSpace(in.EmployeeID) == "" ||
		strings.TrimSpace(in.ProjectID) == "" || strings.TrimSpace(in.WbsItemID) == "" {
		return apperror.InvalidInput("periodId, employeeId, projectId and wbsItemId are required")
	}
	if in.Weight != nil && *in.Weight < 0 {
		return apperror.InvalidInput("weight must not be negative")
	}
	return nil
}

func (in AssignInput) resolveInput() ResolveInput {
	return ResolveInput{PeriodID: in.PeriodID, EmployeeID: in.EmployeeID, ProjectID: in.ProjectID, WbsItemID: in.WbsItemID}
}

func resolveInputOf(a WbsAssignment) ResolveInput {
	return ResolveInput{PeriodID: a.PeriodID, EmployeeID: a.EmployeeID, ProjectID: a.ProjectID, WbsItemID: a.WbsItemID}
}

type assignmentKey struct {
	periodID, employeeID, wbsItemID string
}

// AssignWbs makes sure the WBS item has criteria, creates one assignment and
// attaches evaluators. Nothing fallible runs after the insert, so a failed
// call leaves no assignment behind. Repeating a call for a stored tuple
// completes its criteria and evaluators before reporting the conflict.
func (s *Service) AssignWbs(ctx context.Context, in AssignInput, actor string) (WbsAssignment, error) {
	if err := in.validate(); err != nil {
		return WbsAssignment{}, err
	}
	if err := s.checkPeriodOpen(ctx, in.PeriodID); err != nil {
		return WbsAssignment{}, err
	}
	existing, found, err := s.findAssignment(ctx, in.PeriodID, in.EmployeeID, in.WbsItemID)
	if err != nil {
		return WbsAssignment{}, err
	}
	if found {
		if err := s.completeExisting(ctx, existing, actor); err != nil {
			return WbsAssignment{}, err
		}
		return WbsAssignment{}, ErrAssignmentExists
	}

	if err := s.ensureCriteria(ctx, in.WbsItemID); err != nil {
		return WbsAssignment{}, err
	}
	created, err := s.createAssignment(ctx, in, actor)
	if err != nil {
		return WbsAssignment{}, err
	}
	s.resolver.ResolveEvaluators(ctx, in.resolveInput(), actor)

	s.recordActivity(ctx, actor, ActionAssignmentCreated, entityAssignment, created.ID, created.PeriodID, created.EmployeeID, created)
	return created, nil
}

// AssignWbsBulk validates the whole batch and creates every distinct item's
// criteria before writing any assignment. A failed insert soft-deletes the
// rows already written so the batch can be retried as a whole. Evaluator
// resolution runs concurrently and a gap for one item never fails the batch.
func (s *Service) AssignWbsBulk(ctx context.Context, inputs []AssignInput, actor string) ([]WbsAssignment, error) {
	if len(inputs) == 0 {
		return nil, ErrEmptyBatch
	}

	seen := make(map[assignmentKey]int, len(inputs))
	checked := map[string]bool{}
	wbsItems := []string{}
	for i, in := range inputs {
		if err := in.validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		key := assignmentKey{in.PeriodID, in.EmployeeID, in.WbsItemID}
		if first, dup := seen[key]; dup {
			return nil, ErrAssignmentExists.WithCause(fmt.Errorf("items %d and %d repeat wbs item %s", first, i, in.WbsItemID))
		}
		seen[key] = i
		wbsItems = appendUnique(wbsItems, in.WbsItemID)

		if !checked[in.PeriodID] {
			if err := s.checkPeriodOpen(ctx, in.PeriodID); err != nil {
				return nil, err
			}
			checked[in.PeriodID] = true
		}
	}

	for i, in := range inputs {
		existing, found, err := s.findAssignment(ctx, in.PeriodID, in.EmployeeID, in.WbsItemID)
		if err != nil {
			return nil, err
		}
		if found {
			if err := s.completeExisting(ctx, existing, actor); err != nil {
				return nil, err
			}
			return nil, ErrAssignmentExists.WithCause(fmt.Errorf("item %d wbs item %s", i, in.WbsItemID))
		}
	}

	for _, wbsItemID := range wbsItems {
		if err := s.ensureCriteria(ctx, wbsItemID); err != nil {
			return nil, err
		}
	}

	created := make([]WbsAssignment, 0, len(inputs))
	for i, in := range inputs {
		a, err := s.createAssignment(ctx, in, actor)
		if err != nil {
			s.rollbackAssignments(ctx, created, actor)
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		created = append(created, a)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkN)
	for _, in := range inputs {
		g.Go(func() error {
			s.resolver.ResolveEvaluators(gctx, in.resolveInput(), actor)
			return nil
		})
	}
	_ = g.Wait()

	for _, a := range created {
		s.recordActivity(ctx, actor, ActionAssignmentCreated, entityAssignment, a.ID, a.PeriodID, a.EmployeeID, a)
	}
	return created, nil
}

// CancelAssignment removes an assignment with its WBS-scoped mappings and
// drops the item's criteria once no active assignment references it. A
// missing assignment is not an error.
func (s *Service) CancelAssignment(ctx context.Context, assignmentID, actor string) error {
	a, err := s.store.GetAssignment(ctx, assignmentID)
	if errors.Is(err, ErrAssignmentNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	if err := s.cancel(ctx, a, actor); err != nil {
		return err
	}
	if _, err := s.cleanupOrphanCriteria(ctx, a.PeriodID, a.WbsItemID, actor); err != nil {
		return err
	}

	s.recordActivity(ctx, actor, ActionAssignmentCancelled, entityAssignment, a.ID, a.PeriodID, a.EmployeeID, a)
	return nil
}

// ResetScope selects the assignments of a period, optionally narrowed to one
// project or one employee.
type ResetScope struct {
	PeriodID   string `json:"periodId"`
	ProjectID  string `json:"projectId,omitempty"`
	EmployeeID string `json:"employeeId,omitempty"`
}

func (sc ResetScope) validate() error {
	if strings.TrimSpace(sc.PeriodID) == "" || (sc.ProjectID != "" && sc.EmployeeID != "") {
		return ErrInvalidScope
	}
	return nil
}

type ResetResult struct {
	Cancelled       int      `json:"cancelled"`
	WbsItems        []string `json:"wbsItems"`
	CriteriaRemoved []string `json:"criteriaRemoved"`
}

// ResetAssignments cancels every assignment in scope first and only then
// checks each distinct WBS item for orphaned criteria, once per item.
func (s *Service) ResetAssignments(ctx context.Context, scope ResetScope, actor string) (ResetResult, error) {
	result := ResetResult{WbsItems: []string{}, CriteriaRemoved: []string{}}
	if err := scope.validate(); err != nil {
		return result, err
	}
	if _, err := s.store.GetPeriod(ctx, scope.PeriodID); err != nil {
		return result, err
	}

	assignments, err := s.store.ListAssignments(ctx, AssignmentFilter{
		PeriodID:   scope.PeriodID,
		ProjectID:  scope.ProjectID,
		EmployeeID: scope.EmployeeID,
	})
	if err != nil {
		return result, err
	}

	for _, a := range assignments {
		if err := s.cancel(ctx, a, actor); err != nil {
			return result, err
		}
		result.Cancelled++
	}

	result.WbsItems = distinctWbsItems(assignments)
	for _, wbsItemID := range result.WbsItems {
		removed, err := s.cleanupOrphanCriteria(ctx, scope.PeriodID, wbsItemID, actor)
		if err != nil {
			return result, err
		}
		if removed {
			result.CriteriaRemoved = append(result.CriteriaRemoved, wbsItemID)
		}
	}

	s.recordActivity(ctx, actor, ActionAssignmentsReset, entityAssignment, scope.PeriodID, scope.PeriodID, scope.EmployeeID, struct {
		Scope  ResetScope  `json:"scope"`
		Result ResetResult `json:"result"`
	}{scope, result})
	return result, nil
}

// Reorder swaps the assignment with its neighbour in the employee's list for
// the period. Moving past either end leaves the order unchanged.
func (s *Service) Reorder(ctx context.Context, assignmentID string, dir Direction, actor string) ([]WbsAssignment, error) {
	if dir != DirectionUp && dir != DirectionDown {
		return nil, ErrInvalidDirection
	}
	a, err := s.store.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, err
	}
	list, err := s.store.ListAssignments(ctx, AssignmentFilter{PeriodID: a.PeriodID, EmployeeID: a.EmployeeID})
	if err != nil {
		return nil, err
	}
	sortByDisplayOrder(list)

	idx := -1
	for i := range list {
		if list[i].ID == a.ID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrAssignmentNotFound
	}

	neighbour := idx - 1
	if dir == DirectionDown {
		neighbour = idx + 1
	}
	if neighbour < 0 || neighbour >= len(list) {
		return list, nil
	}

	if err := s.store.SwapDisplayOrder(ctx, list[idx], list[neighbour]); err != nil {
		return nil, err
	}
	list[idx].DisplayOrder, list[neighbour].DisplayOrder = list[neighbour].DisplayOrder, list[idx].DisplayOrder
	list[idx], list[neighbour] = list[neighbour], list[idx]

	s.recordActivity(ctx, actor, ActionAssignmentReordered, entityAssignment, a.ID, a.PeriodID, a.EmployeeID, map[string]string{"direction": string(dir)})
	return list, nil
}

func (s *Service) checkPeriodOpen(ctx context.Context, periodID string) error {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return err
	}
	if period.IsClosed() {
		return ErrPeriodClosed
	}
	return nil
}

func (s *Service) findAssignment(ctx context.Context, periodID, employeeID, wbsItemID string) (WbsAssignment, bool, error) {
	list, err := s.store.ListAssignments(ctx, AssignmentFilter{PeriodID: periodID, EmployeeID: employeeID, WbsItemID: wbsItemID})
	if err != nil || len(list) == 0 {
		return WbsAssignment{}, false, err
	}
	return list[0], true, nil
}

// createAssignment takes the next free display order. A concurrent writer
// that claimed the same slot makes the insert fail on the display order
// index, in which case the slot is read again.
func (s *Service) createAssignment(ctx context.Context, in AssignInput, actor string) (WbsAssignment, error) {
	for attempt := 1; ; attempt++ {
		order, err := s.store.NextDisplayOrder(ctx, in.PeriodID, in.EmployeeID)
		if err != nil {
			return WbsAssignment{}, err
		}
		created, err := s.store.CreateAssignment(ctx, WbsAssignment{
			ID:           uuid.NewString(),
			PeriodID:     in.PeriodID,
			EmployeeID:   in.EmployeeID,
			ProjectID:    in.ProjectID,
			WbsItemID:    in.WbsItemID,
			Weight:       in.Weight,
			DisplayOrder: order,
			CreatedBy:    actor,
			CreatedAt:    s.now().UTC(),
		})
		if errors.Is(err, ErrDisplayOrderTaken) && attempt < maxDisplayOrderAttempts {
			continue
		}
		if err != nil {
			return WbsAssignment{}, err
		}
		s.metrics.Inc(metrics.AssignmentsCreated)
		return created, nil
	}
}

// completeExisting reruns the idempotent follow-up steps for an assignment
// that is already stored.
func (s *Service) completeExisting(ctx context.Context, a WbsAssignment, actor string) error {
	if err := s.ensureCriteria(ctx, a.WbsItemID); err != nil {
		return err
	}
	s.resolver.ResolveEvaluators(ctx, resolveInputOf(a), actor)
	return nil
}

func (s *Service) rollbackAssignments(ctx context.Context, created []WbsAssignment, actor string) {
	for _, a := range created {
		if err := s.store.DeleteAssignment(ctx, a.ID, actor); err != nil {
			slog.Warn("rollback of bulk assignment failed", "assignmentId", a.ID, "error", err)
		}
	}
}

// ensureCriteria creates the placeholder criteria for a WBS item when none
// exist. Concurrent calls for the same item collapse into one check.
func (s *Service) ensureCriteria(ctx context.Context, wbsItemID string) error {
	_, err, _ := s.criteria.Do(wbsItemID, func() (any, error) {
		exists, err := s.store.CriteriaExists(ctx, wbsItemID)
		if err != nil || exists {
			return nil, err
		}
		err = s.store.CreateCriteria(ctx, WbsCriteria{
			ID:         uuid.NewString(),
			WbsItemID:  wbsItemID,
			Criteria:   "",
			Importance: DefaultCriteriaImportance,
		})
		if errors.Is(err, ErrCriteriaExists) {
			return nil, nil
		}
		if err == nil {
			s.metrics.Inc(metrics.CriteriaCreated)
		}
		return nil, err
	})
	return err
}

// cancel soft-deletes an assignment and the mappings scoped to its WBS item.
func (s *Service) cancel(ctx context.Context, a WbsAssignment, actor string) error {
	if err := s.store.DeleteAssignment(ctx, a.ID, actor); err != nil {
		return err
	}
	if _, err := s.store.DeleteWbsMappings(ctx, a.PeriodID, a.EmployeeID, a.WbsItemID, actor); err != nil {
		return err
	}
	s.metrics.Inc(metrics.AssignmentsCancelled)
	return nil
}

// cleanupOrphanCriteria removes the item's criteria once no active assignment
// in any period references it. Criteria rows are shared across periods.
func (s *Service) cleanupOrphanCriteria(ctx context.Context, periodID, wbsItemID, actor string) (bool, error) {
	remaining, err := s.store.CountActiveAssignmentsForWbs(ctx, wbsItemID)
	if err != nil {
		return false, err
	}
	if remaining > 0 {
		return false, nil
	}
	removed, err := s.store.DeleteCriteria(ctx, wbsItemID, actor)
	if err != nil {
		return false, err
	}
	if removed {
		s.metrics.Inc(metrics.CriteriaRemoved)
		slog.Info("orphaned criteria removed", "periodId", periodID, "wbsItemId", wbsItemID)
	}
	return removed, nil
}

func distinctWbsItems(assignments []WbsAssignment) []string {
	out := []string{}
	for _, a := range assignments {
		out = appendUnique(out, a.WbsItemID)
	}
	return out
}

func sortByDisplayOrder(list []WbsAssignment) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].DisplayOrder != list[j].DisplayOrder {
			return list[i].DisplayOrder < list[j].DisplayOrder
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
