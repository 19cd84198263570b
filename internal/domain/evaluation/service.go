package evaluation

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"evalsvc/internal/domain/activity"
	"evalsvc/internal/platform/metrics"
	"evalsvc/internal/requestctx"
)

type Options struct {
	Activity        activity.Recorder
	Metrics         *metrics.Collector
	BulkConcurrency int
	Now             func() time.Time
}

// Service runs assignment lifecycles, review actions and status reads for
// one catalog.
type Service struct {
	store    StoreAPI
	catalog  Catalog
	resolver *Resolver
	activity activity.Recorder
	metrics  *metrics.Collector
	bulkN    int
	now      func() time.Time

	criteria singleflight.Group
}

func NewService(store StoreAPI, org OrgLookup, catalog Catalog, opts Options) *Service {
	if opts.BulkConcurrency <= 0 {
		opts.BulkConcurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	resolver := NewResolver(store, org, catalog, opts.Metrics)
	resolver.now = opts.Now
	return &Service{
		store:    store,
		catalog:  catalog,
		resolver: resolver,
		activity: opts.Activity,
		metrics:  opts.Metrics,
		bulkN:    opts.BulkConcurrency,
		now:      opts.Now,
	}
}

func (s *Service) Catalog() Catalog {
	return s.catalog
}

// ResolveEvaluators reruns evaluator resolution for one tuple.
func (s *Service) ResolveEvaluators(ctx context.Context, in ResolveInput, actor string) Resolution {
	return s.resolver.ResolveEvaluators(ctx, in, actor)
}

// EmployeeStatus computes the primary and secondary step status of one
// employee in a period.
func (s *Service) EmployeeStatus(ctx context.Context, periodID, employeeID string) (EmployeeStatus, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return EmployeeStatus{}, err
	}
	if _, err := s.store.GetEmployee(ctx, employeeID); err != nil {
		return EmployeeStatus{}, err
	}
	return s.employeeStatus(ctx, period, employeeID)
}

// ListAssignments returns the active assignments of a period matching the
// filter, grouped by employee in display order.
func (s *Service) ListAssignments(ctx context.Context, filter AssignmentFilter) ([]WbsAssignment, error) {
	if _, err := s.store.GetPeriod(ctx, filter.PeriodID); err != nil {
		return nil, err
	}
	list, err := s.store.ListAssignments(ctx, filter)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].EmployeeID != list[j].EmployeeID {
			return list[i].EmployeeID < list[j].EmployeeID
		}
		return list[i].DisplayOrder < list[j].DisplayOrder
	})
	return list, nil
}

type PeriodStatusReport struct {
	PeriodID  string           `json:"periodId"`
	Employees []EmployeeStatus `json:"employees"`
}

// PeriodStatus computes the status of every employee holding an active
// assignment in the period, ordered by employee id.
func (s *Service) PeriodStatus(ctx context.Context, periodID string) (PeriodStatusReport, error) {
	period, err := s.store.GetPeriod(ctx, periodID)
	if err != nil {
		return PeriodStatusReport{}, err
	}
	employeeIDs, err := s.store.ListEmployeesWithAssignments(ctx, periodID)
	if err != nil {
		return PeriodStatusReport{}, err
	}
	sort.Strings(employeeIDs)

	statuses := make([]EmployeeStatus, len(employeeIDs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.bulkN)
	for i, employeeID := range employeeIDs {
		g.Go(func() error {
			st, err := s.employeeStatus(gctx, period, employeeID)
			if err != nil {
				return err
			}
			statuses[i] = st
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PeriodStatusReport{}, err
	}
	return PeriodStatusReport{PeriodID: periodID, Employees: statuses}, nil
}

func (s *Service) employeeStatus(ctx context.Context, period EvaluationPeriod, employeeID string) (EmployeeStatus, error) {
	rec, err := s.loadRecords(ctx, period.ID, employeeID)
	if err != nil {
		return EmployeeStatus{}, err
	}
	return BuildEmployeeStatus(rec, s.catalog.GradeRangesFor(period)), nil
}

func (s *Service) loadRecords(ctx context.Context, periodID, employeeID string) (EmployeeRecords, error) {
	rec := EmployeeRecords{PeriodID: periodID, EmployeeID: employeeID}
	var err error
	if rec.Assignments, err = s.store.ListAssignments(ctx, AssignmentFilter{PeriodID: periodID, EmployeeID: employeeID}); err != nil {
		return rec, err
	}
	if rec.Mappings, err = s.store.ListMappings(ctx, periodID, employeeID); err != nil {
		return rec, err
	}
	if rec.Evaluations, err = s.store.ListEvaluations(ctx, periodID, employeeID); err != nil {
		return rec, err
	}
	if rec.Approvals, err = s.store.ListApprovals(ctx, periodID, employeeID); err != nil {
		return rec, err
	}
	if rec.Revisions, err = s.store.ListRevisionRecipients(ctx, periodID, employeeID); err != nil {
		return rec, err
	}
	return rec, nil
}

// recordActivity writes an activity entry and drops the outcome after
// logging a failure.
func (s *Service) recordActivity(ctx context.Context, actor, action, entityType, entityID, periodID, employeeID string, payload any) {
	evt, err := activity.NewEvent(actor, action, entityType, entityID, payload)
	if err != nil {
		slog.Warn("build activity event failed", "action", action, "err", err)
		return
	}
	evt.PeriodID = periodID
	evt.EmployeeID = employeeID
	evt.RequestID = requestctx.GetRequestID(ctx)

	out := activity.Try(ctx, s.activity, evt)
	if out.Failed() {
		s.metrics.Inc(metrics.ActivityFailures)
		slog.Warn("activity log write failed", "action", action, "entityId", entityID, "err", out.Err)
	}
}
