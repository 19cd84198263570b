package evaluation_test

import (
	"context"
	"testing"
	"time"

	"evalsvc/internal/domain/activity"
	"evalsvc/internal/domain/evaluation"
	"evalsvc/internal/domain/evaluation/evaluationtest"
	"evalsvc/internal/platform/metrics"
)

const (
	periodID     = "period-1"
	nextPeriod   = "period-2"
	closedPeriod = "period-closed"
	lineMgr      = "mgr-1"
	projectMgr   = "pm-1"
)

func testCatalog() evaluation.Catalog {
	return evaluation.Catalog{
		Lines: []evaluation.EvaluationLine{
			{ID: "line-primary", EvaluatorType: evaluation.EvaluatorPrimary, Order: 1, IsRequired: true, IsAutoAssigned: true},
			{ID: "line-secondary", EvaluatorType: evaluation.EvaluatorSecondary, Order: 2, IsAutoAssigned: true},
			{ID: "line-additional", EvaluatorType: evaluation.EvaluatorAdditional, Order: 3},
		},
		DefaultGradeRanges: evaluation.GradeRanges{
			{Grade: "D", MinScore: 0, MaxScore: 59},
			{Grade: "C", MinScore: 60, MaxScore: 69},
			{Grade: "B", MinScore: 70, MaxScore: 84},
			{Grade: "A", MinScore: 85, MaxScore: 100},
		},
	}
}

type recordingActivity struct {
	err    error
	events []activity.Event
}

func (r *recordingActivity) Record(_ context.Context, evt activity.Event) error {
	r.events = append(r.events, evt)
	return r.err
}

func (r *recordingActivity) actions() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type harness struct {
	store    *evaluationtest.Store
	org      *evaluationtest.OrgLookup
	activity *recordingActivity
	metrics  *metrics.Collector
	svc      *evaluation.Service
}

// newHarness seeds two open periods and one closed period, a small org chart and
// three projects:
//
//	emp-1 reports to mgr-1; emp-2 reports to ext-mgr-2 (mgr-2)
//	proj-1 is run by pm-1, proj-2 by ext-pm-2 (pm-2), proj-3 by mgr-1
func newHarness(t *testing.T) *harness {
	t.Helper()
	store := evaluationtest.NewStore()
	store.AddPeriod(evaluation.EvaluationPeriod{ID: periodID, Name: "2026 H1", Status: evaluation.PeriodStatusInProgress})
	store.AddPeriod(evaluation.EvaluationPeriod{ID: nextPeriod, Name: "2026 H2", Status: evaluation.PeriodStatusInProgress})
	store.AddPeriod(evaluation.EvaluationPeriod{ID: closedPeriod, Name: "2025 H2", Status: evaluation.PeriodStatusCompleted})

	store.AddEmployee(evaluation.Employee{ID: "emp-1", Name: "Evaluatee One", Manager: evaluation.PersonRef{ID: lineMgr}})
	store.AddEmployee(evaluation.Employee{ID: "emp-2", Name: "Evaluatee Two", Manager: evaluation.PersonRef{ExternalID: "ext-mgr-2"}})
	store.AddEmployee(evaluation.Employee{ID: "emp-3", Name: "No Manager"})
	store.AddEmployee(evaluation.Employee{ID: lineMgr, Name: "Line Manager"})
	store.AddEmployee(evaluation.Employee{ID: projectMgr, Name: "Project Manager"})

	store.AddProject(evaluation.Project{ID: "proj-1", Name: "Billing", Manager: evaluation.PersonRef{ID: projectMgr}})
	store.AddProject(evaluation.Project{ID: "proj-2", Name: "Search", Manager: evaluation.PersonRef{ExternalID: "ext-pm-2"}})
	store.AddProject(evaluation.Project{ID: "proj-3", Name: "Platform", Manager: evaluation.PersonRef{ID: lineMgr}})

	org := evaluationtest.NewOrgLookup(map[string]string{
		"ext-mgr-2": "mgr-2",
		"ext-pm-2":  "pm-2",
	})
	rec := &recordingActivity{}
	m := metrics.New()

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	svc := evaluation.NewService(store, org, testCatalog(), evaluation.Options{
		Activity:        rec,
		Metrics:         m,
		BulkConcurrency: 4,
		Now: func() time.Time {
			now = now.Add(time.Second)
			return now
		},
	})
	return &harness{store: store, org: org, activity: rec, metrics: m, svc: svc}
}

func (h *harness) assign(t *testing.T, employeeID, projectID, wbsItemID string) evaluation.WbsAssignment {
	t.Helper()
	a, err := h.svc.AssignWbs(context.Background(), evaluation.AssignInput{
		PeriodID:   periodID,
		EmployeeID: employeeID,
		ProjectID:  projectID,
		WbsItemID:  wbsItemID,
	}, "admin")
	if err != nil {
		t.Fatalf("assign %s/%s: %v", employeeID, wbsItemID, err)
	}
	return a
}

func mappingsOfType(mappings []evaluation.LineMapping, t evaluation.EvaluatorType) []evaluation.LineMapping {
	var out []evaluation.LineMapping
	for _, m := range mappings {
		if m.EvaluatorType == t {
			out = append(out, m)
		}
	}
	return out
}
