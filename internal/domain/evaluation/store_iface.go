package evaluation

import "context"

// StoreAPI is the record store the engine reads and writes. Deletes are soft:
// deleted rows stop counting for uniqueness and stop appearing in reads.
type StoreAPI interface {
	GetPeriod(ctx context.Context, periodID string) (EvaluationPeriod, error)
	GetEmployee(ctx context.Context, employeeID string) (Employee, error)
	GetProject(ctx context.Context, projectID string) (Project, error)
	UpsertEvaluationLines(ctx context.Context, lines []EvaluationLine) error

	GetAssignment(ctx context.Context, assignmentID string) (WbsAssignment, error)
	AssignmentExists(ctx context.Context, periodID, employeeID, wbsItemID string) (bool, error)
	NextDisplayOrder(ctx context.Context, periodID, employeeID string) (int, error)
	CreateAssignment(ctx context.Context, a WbsAssignment) (WbsAssignment, error)
	ListAssignments(ctx context.Context, filter AssignmentFilter) ([]WbsAssignment, error)
	DeleteAssignment(ctx context.Context, assignmentID, actor string) error
	SwapDisplayOrder(ctx context.Context, first, second WbsAssignment) error
	CountActiveAssignmentsForWbs(ctx context.Context, wbsItemID string) (int, error)
	ListEmployeesWithAssignments(ctx context.Context, periodID string) ([]string, error)

	CriteriaExists(ctx context.Context, wbsItemID string) (bool, error)
	CreateCriteria(ctx context.Context, c WbsCriteria) error
	DeleteCriteria(ctx context.Context, wbsItemID, actor string) (bool, error)

	FindActiveMapping(ctx context.Context, key MappingKey) (LineMapping, bool, error)
	CreateMapping(ctx context.Context, m LineMapping) (LineMapping, error)
	DeleteWbsMappings(ctx context.Context, periodID, employeeID, wbsItemID, actor string) (int, error)
	ListMappings(ctx context.Context, periodID, employeeID string) ([]LineMapping, error)

	ListEvaluations(ctx context.Context, periodID, employeeID string) ([]DownwardEvaluation, error)
	UpsertEvaluation(ctx context.Context, e DownwardEvaluation) (DownwardEvaluation, error)
	ListApprovals(ctx context.Context, periodID, employeeID string) ([]StepApproval, error)
	UpsertApproval(ctx context.Context, a StepApproval) (StepApproval, error)
	CreateRevisionRequest(ctx context.Context, r RevisionRequest) (RevisionRequest, error)
	ListRevisionRecipients(ctx context.Context, periodID, employeeID string) ([]RevisionRecipient, error)
	CompleteRevisionRecipient(ctx context.Context, requestID, evaluatorID string) error
}

// OrgLookup resolves an external directory id to an internal employee id.
type OrgLookup interface {
	ResolveInternalID(ctx context.Context, externalID string) (string, error)
}
