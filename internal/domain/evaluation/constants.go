package evaluation

type EvaluatorType string

const (
	EvaluatorPrimary    EvaluatorType = "PRIMARY"
	EvaluatorSecondary  EvaluatorType = "SECONDARY"
	EvaluatorAdditional EvaluatorType = "ADDITIONAL"
)

// IsStep reports whether t names an evaluation step whose progress is tracked.
func (t EvaluatorType) IsStep() bool {
	return t == EvaluatorPrimary || t == EvaluatorSecondary
}

type Status string

const (
	StatusNone              Status = "none"
	StatusInProgress        Status = "in_progress"
	StatusPending           Status = "pending"
	StatusApproved          Status = "approved"
	StatusRevisionRequested Status = "revision_requested"
	StatusRevisionCompleted Status = "revision_completed"
)

type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "PENDING"
	ApprovalApproved ApprovalStatus = "APPROVED"
)

const (
	PeriodStatusDraft      = "draft"
	PeriodStatusInProgress = "in_progress"
	PeriodStatusCompleted  = "completed"
)

type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

const DefaultCriteriaImportance = 5

const (
	MinScore = 0
	MaxScore = 100
)

const (
	ActionAssignmentCreated   = "evaluation.assignment.create"
	ActionAssignmentCancelled = "evaluation.assignment.cancel"
	ActionAssignmentsReset    = "evaluation.assignment.reset"
	ActionAssignmentReordered = "evaluation.assignment.reorder"
	ActionEvaluationSubmitted = "evaluation.downward.submit"
	ActionStepApproved        = "evaluation.step.approve"
	ActionRevisionRequested   = "evaluation.revision.request"
	ActionRevisionCompleted   = "evaluation.revision.complete"
)
