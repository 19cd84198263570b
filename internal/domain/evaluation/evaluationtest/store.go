// Package evaluationtest provides in-memory collaborators for exercising the
// evaluation service without a database.
package evaluationtest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"evalsvc/internal/domain/evaluation"
)

type softDeleted[T any] struct {
	row     T
	deleted bool
}

// Store is an in-memory evaluation.StoreAPI. It enforces the same
// active-row uniqueness as the SQL schema and records every call.
type Store struct {
	mu sync.Mutex

	Periods   map[string]evaluation.EvaluationPeriod
	Employees map[string]evaluation.Employee
	Projects  map[string]evaluation.Project
	Lines     []evaluation.EvaluationLine

	assignments []softDeleted[evaluation.WbsAssignment]
	criteria    []softDeleted[evaluation.WbsCriteria]
	mappings    []softDeleted[evaluation.LineMapping]
	evaluations []evaluation.DownwardEvaluation
	approvals   []evaluation.StepApproval
	requests    []evaluation.RevisionRequest
	recipients  []evaluation.RevisionRecipient

	// Errors makes the named method fail with the given error.
	Errors map[string]error
	// BeforeCreateMapping runs before a mapping insert is checked. Tests use
	// it to simulate a concurrent writer.
	BeforeCreateMapping func(m evaluation.LineMapping)
	// BeforeCreateAssignment runs before an assignment insert is checked.
	BeforeCreateAssignment func(a evaluation.WbsAssignment)

	calls []string
}

var _ evaluation.StoreAPI = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		Periods:   map[string]evaluation.EvaluationPeriod{},
		Employees: map[string]evaluation.Employee{},
		Projects:  map[string]evaluation.Project{},
		Errors:    map[string]error{},
	}
}

func (s *Store) AddPeriod(p evaluation.EvaluationPeriod) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Periods[p.ID] = p
}

func (s *Store) AddEmployee(e evaluation.Employee) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Employees[e.ID] = e
}

func (s *Store) AddProject(p evaluation.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Projects[p.ID] = p
}

// Calls returns the recorded calls as "Method:arg" strings in call order.
func (s *Store) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// CallsTo returns the recorded calls of one method.
func (s *Store) CallsTo(method string) []string {
	var out []string
	for _, c := range s.Calls() {
		if c == method || strings.HasPrefix(c, method+":") {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) record(method, arg string) error {
	if arg != "" {
		s.calls = append(s.calls, method+":"+arg)
	} else {
		s.calls = append(s.calls, method)
	}
	return s.Errors[method]
}

func (s *Store) GetPeriod(_ context.Context, periodID string) (evaluation.EvaluationPeriod, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GetPeriod", periodID); err != nil {
		return evaluation.EvaluationPeriod{}, err
	}
	p, ok := s.Periods[periodID]
	if !ok {
		return evaluation.EvaluationPeriod{}, evaluation.ErrPeriodNotFound
	}
	return p, nil
}

func (s *Store) GetEmployee(_ context.Context, employeeID string) (evaluation.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GetEmployee", employeeID); err != nil {
		return evaluation.Employee{}, err
	}
	e, ok := s.Employees[employeeID]
	if !ok {
		return evaluation.Employee{}, evaluation.ErrEmployeeNotFound
	}
	return e, nil
}

func (s *Store) GetProject(_ context.Context, projectID string) (evaluation.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GetProject", projectID); err != nil {
		return evaluation.Project{}, err
	}
	p, ok := s.Projects[projectID]
	if !ok {
		return evaluation.Project{}, evaluation.ErrProjectNotFound
	}
	return p, nil
}

func (s *Store) UpsertEvaluationLines(_ context.Context, lines []evaluation.EvaluationLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("UpsertEvaluationLines", ""); err != nil {
		return err
	}
	s.Lines = append([]evaluation.EvaluationLine(nil), lines...)
	return nil
}

func (s *Store) GetAssignment(_ context.Context, assignmentID string) (evaluation.WbsAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("GetAssignment", assignmentID); err != nil {
		return evaluation.WbsAssignment{}, err
	}
	for _, a := range s.assignments {
		if !a.deleted && a.row.ID == assignmentID {
			return a.row, nil
		}
	}
	return evaluation.WbsAssignment{}, evaluation.ErrAssignmentNotFound
}

func (s *Store) AssignmentExists(_ context.Context, periodID, employeeID, wbsItemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("AssignmentExists", wbsItemID); err != nil {
		return false, err
	}
	return s.assignmentExists(periodID, employeeID, wbsItemID), nil
}

func (s *Store) assignmentExists(periodID, employeeID, wbsItemID string) bool {
	for _, a := range s.assignments {
		if !a.deleted && a.row.PeriodID == periodID && a.row.EmployeeID == employeeID && a.row.WbsItemID == wbsItemID {
			return true
		}
	}
	return false
}

func (s *Store) NextDisplayOrder(_ context.Context, periodID, employeeID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("NextDisplayOrder", employeeID); err != nil {
		return 0, err
	}
	maxOrder := 0
	for _, a := range s.assignments {
		if !a.deleted && a.row.PeriodID == periodID && a.row.EmployeeID == employeeID && a.row.DisplayOrder > maxOrder {
			maxOrder = a.row.DisplayOrder
		}
	}
	return maxOrder + 1, nil
}

func (s *Store) CreateAssignment(_ context.Context, a evaluation.WbsAssignment) (evaluation.WbsAssignment, error) {
	if hook := s.BeforeCreateAssignment; hook != nil {
		hook(a)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("CreateAssignment", a.WbsItemID); err != nil {
		return evaluation.WbsAssignment{}, err
	}
	if s.assignmentExists(a.PeriodID, a.EmployeeID, a.WbsItemID) {
		return evaluation.WbsAssignment{}, evaluation.ErrAssignmentExists
	}
	for _, other := range s.assignments {
		if !other.deleted && other.row.PeriodID == a.PeriodID && other.row.EmployeeID == a.EmployeeID && other.row.DisplayOrder == a.DisplayOrder {
			return evaluation.WbsAssignment{}, evaluation.ErrDisplayOrderTaken
		}
	}
	s.assignments = append(s.assignments, softDeleted[evaluation.WbsAssignment]{row: a})
	return a, nil
}

func (s *Store) ListAssignments(_ context.Context, f evaluation.AssignmentFilter) ([]evaluation.WbsAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ListAssignments", ""); err != nil {
		return nil, err
	}
	var out []evaluation.WbsAssignment
	for _, a := range s.assignments {
		if a.deleted {
			continue
		}
		if (f.PeriodID != "" && a.row.PeriodID != f.PeriodID) ||
			(f.EmployeeID != "" && a.row.EmployeeID != f.EmployeeID) ||
			(f.ProjectID != "" && a.row.ProjectID != f.ProjectID) ||
			(f.WbsItemID != "" && a.row.WbsItemID != f.WbsItemID) {
			continue
		}
		out = append(out, a.row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].EmployeeID != out[j].EmployeeID {
			return out[i].EmployeeID < out[j].EmployeeID
		}
		return out[i].DisplayOrder < out[j].DisplayOrder
	})
	return out, nil
}

func (s *Store) DeleteAssignment(_ context.Context, assignmentID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("DeleteAssignment", assignmentID); err != nil {
		return err
	}
	for i := range s.assignments {
		if s.assignments[i].row.ID == assignmentID {
			s.assignments[i].deleted = true
		}
	}
	return nil
}

func (s *Store) SwapDisplayOrder(_ context.Context, first, second evaluation.WbsAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("SwapDisplayOrder", first.ID+","+second.ID); err != nil {
		return err
	}
	for i := range s.assignments {
		switch s.assignments[i].row.ID {
		case first.ID:
			s.assignments[i].row.DisplayOrder = second.DisplayOrder
		case second.ID:
			s.assignments[i].row.DisplayOrder = first.DisplayOrder
		}
	}
	return nil
}

func (s *Store) CountActiveAssignmentsForWbs(_ context.Context, wbsItemID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("CountActiveAssignmentsForWbs", wbsItemID); err != nil {
		return 0, err
	}
	n := 0
	for _, a := range s.assignments {
		if !a.deleted && a.row.WbsItemID == wbsItemID {
			n++
		}
	}
	return n, nil
}

func (s *Store) ListEmployeesWithAssignments(_ context.Context, periodID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ListEmployeesWithAssignments", periodID); err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var out []string
	for _, a := range s.assignments {
		if !a.deleted && a.row.PeriodID == periodID && !seen[a.row.EmployeeID] {
			seen[a.row.EmployeeID] = true
			out = append(out, a.row.EmployeeID)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) CriteriaExists(_ context.Context, wbsItemID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("CriteriaExists", wbsItemID); err != nil {
		return false, err
	}
	return s.criteriaExists(wbsItemID), nil
}

func (s *Store) criteriaExists(wbsItemID string) bool {
	for _, c := range s.criteria {
		if !c.deleted && c.row.WbsItemID == wbsItemID {
			return true
		}
	}
	return false
}

func (s *Store) CreateCriteria(_ context.Context, c evaluation.WbsCriteria) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("CreateCriteria", c.WbsItemID); err != nil {
		return err
	}
	if s.criteriaExists(c.WbsItemID) {
		return evaluation.ErrCriteriaExists
	}
	s.criteria = append(s.criteria, softDeleted[evaluation.WbsCriteria]{row: c})
	return nil
}

func (s *Store) DeleteCriteria(_ context.Context, wbsItemID, _ string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("DeleteCriteria", wbsItemID); err != nil {
		return false, err
	}
	removed := false
	for i := range s.criteria {
		if !s.criteria[i].deleted && s.criteria[i].row.WbsItemID == wbsItemID {
			s.criteria[i].deleted = true
			removed = true
		}
	}
	return removed, nil
}

// ActiveCriteria returns the active criteria for a WBS item, if any.
func (s *Store) ActiveCriteria(wbsItemID string) (evaluation.WbsCriteria, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.criteria {
		if !c.deleted && c.row.WbsItemID == wbsItemID {
			return c.row, true
		}
	}
	return evaluation.WbsCriteria{}, false
}

// CriteriaRows counts criteria rows ever created, deleted ones included.
func (s *Store) CriteriaRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.criteria)
}

func (s *Store) FindActiveMapping(_ context.Context, key evaluation.MappingKey) (evaluation.LineMapping, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("FindActiveMapping", key.EvaluationLineID); err != nil {
		return evaluation.LineMapping{}, false, err
	}
	m, ok := s.findMapping(key)
	return m, ok, nil
}

func (s *Store) findMapping(key evaluation.MappingKey) (evaluation.LineMapping, bool) {
	for _, m := range s.mappings {
		if !m.deleted && m.row.Key() == key {
			return m.row, true
		}
	}
	return evaluation.LineMapping{}, false
}

func (s *Store) CreateMapping(_ context.Context, m evaluation.LineMapping) (evaluation.LineMapping, error) {
	if hook := s.BeforeCreateMapping; hook != nil {
		hook(m)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("CreateMapping", string(m.EvaluatorType)); err != nil {
		return evaluation.LineMapping{}, err
	}
	if _, ok := s.findMapping(m.Key()); ok {
		return evaluation.LineMapping{}, evaluation.ErrMappingExists
	}
	s.mappings = append(s.mappings, softDeleted[evaluation.LineMapping]{row: m})
	return m, nil
}

// SeedMapping inserts a mapping directly, bypassing call recording.
func (s *Store) SeedMapping(m evaluation.LineMapping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mappings = append(s.mappings, softDeleted[evaluation.LineMapping]{row: m})
}

func (s *Store) DeleteWbsMappings(_ context.Context, periodID, employeeID, wbsItemID, _ string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("DeleteWbsMappings", wbsItemID); err != nil {
		return 0, err
	}
	n := 0
	for i := range s.mappings {
		m := &s.mappings[i]
		if !m.deleted && m.row.PeriodID == periodID && m.row.EmployeeID == employeeID && m.row.WbsItemID == wbsItemID {
			m.deleted = true
			n++
		}
	}
	return n, nil
}

func (s *Store) ListMappings(_ context.Context, periodID, employeeID string) ([]evaluation.LineMapping, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ListMappings", employeeID); err != nil {
		return nil, err
	}
	return s.activeMappings(periodID, employeeID), nil
}

func (s *Store) activeMappings(periodID, employeeID string) []evaluation.LineMapping {
	var out []evaluation.LineMapping
	for _, m := range s.mappings {
		if !m.deleted && m.row.PeriodID == periodID && m.row.EmployeeID == employeeID {
			out = append(out, m.row)
		}
	}
	return out
}

// ActiveMappings returns the active mappings of one evaluatee.
func (s *Store) ActiveMappings(periodID, employeeID string) []evaluation.LineMapping {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeMappings(periodID, employeeID)
}

func (s *Store) ListEvaluations(_ context.Context, periodID, employeeID string) ([]evaluation.DownwardEvaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ListEvaluations", employeeID); err != nil {
		return nil, err
	}
	var out []evaluation.DownwardEvaluation
	for _, e := range s.evaluations {
		if e.PeriodID == periodID && e.EmployeeID == employeeID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *Store) UpsertEvaluation(_ context.Context, e evaluation.DownwardEvaluation) (evaluation.DownwardEvaluation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("UpsertEvaluation", e.WbsItemID); err != nil {
		return evaluation.DownwardEvaluation{}, err
	}
	for i, existing := range s.evaluations {
		if existing.PeriodID == e.PeriodID && existing.EmployeeID == e.EmployeeID && existing.EvaluatorID == e.EvaluatorID &&
			existing.Step == e.Step && existing.WbsItemID == e.WbsItemID {
			e.ID = existing.ID
			s.evaluations[i] = e
			return e, nil
		}
	}
	s.evaluations = append(s.evaluations, e)
	return e, nil
}

func (s *Store) ListApprovals(_ context.Context, periodID, employeeID string) ([]evaluation.StepApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ListApprovals", employeeID); err != nil {
		return nil, err
	}
	var out []evaluation.StepApproval
	for _, a := range s.approvals {
		if a.PeriodID == periodID && a.EmployeeID == employeeID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) UpsertApproval(_ context.Context, a evaluation.StepApproval) (evaluation.StepApproval, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("UpsertApproval", a.EvaluatorID); err != nil {
		return evaluation.StepApproval{}, err
	}
	for i, existing := range s.approvals {
		if existing.PeriodID == a.PeriodID && existing.EmployeeID == a.EmployeeID && existing.Step == a.Step && existing.EvaluatorID == a.EvaluatorID {
			a.ID = existing.ID
			s.approvals[i] = a
			return a, nil
		}
	}
	s.approvals = append(s.approvals, a)
	return a, nil
}

func (s *Store) CreateRevisionRequest(_ context.Context, r evaluation.RevisionRequest) (evaluation.RevisionRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("CreateRevisionRequest", r.ID); err != nil {
		return evaluation.RevisionRequest{}, err
	}
	s.requests = append(s.requests, r)
	s.recipients = append(s.recipients, r.Recipients...)
	return r, nil
}

func (s *Store) ListRevisionRecipients(_ context.Context, periodID, employeeID string) ([]evaluation.RevisionRecipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("ListRevisionRecipients", employeeID); err != nil {
		return nil, err
	}
	var out []evaluation.RevisionRecipient
	for _, rc := range s.recipients {
		if rc.PeriodID == periodID && rc.EmployeeID == employeeID {
			out = append(out, rc)
		}
	}
	return out, nil
}

func (s *Store) CompleteRevisionRecipient(_ context.Context, requestID, evaluatorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.record("CompleteRevisionRecipient", requestID); err != nil {
		return err
	}
	for i := range s.recipients {
		rc := &s.recipients[i]
		if rc.RequestID == requestID && rc.EvaluatorID == evaluatorID {
			now := time.Now().UTC()
			rc.IsCompleted = true
			rc.CompletedAt = &now
			return nil
		}
	}
	return evaluation.ErrRevisionRequestNotFound
}
