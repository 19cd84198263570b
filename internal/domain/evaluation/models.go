package evaluation

import "time"

// PersonRef points at an employee either by internal id or by the id used in
// the external directory. ID wins when both are set.
type PersonRef struct {
	ID         string `json:"id,omitempty"`
	ExternalID string `json:"externalId,omitempty"`
}

func (r PersonRef) IsZero() bool {
	return r.ID == "" && r.ExternalID == ""
}

type EvaluationPeriod struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Status      string      `json:"status"`
	GradeRanges GradeRanges `json:"gradeRanges"`
}

func (p EvaluationPeriod) IsClosed() bool {
	return p.Status == PeriodStatusCompleted
}

type Employee struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	DepartmentID string    `json:"departmentId,omitempty"`
	Manager      PersonRef `json:"manager"`
}

type Project struct {
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Manager PersonRef `json:"manager"`
}

type WbsAssignment struct {
	ID           string    `json:"id"`
	PeriodID     string    `json:"periodId"`
	EmployeeID   string    `json:"employeeId"`
	ProjectID    string    `json:"projectId"`
	WbsItemID    string    `json:"wbsItemId"`
	Weight       *float64  `json:"weight,omitempty"`
	DisplayOrder int       `json:"displayOrder"`
	CreatedBy    string    `json:"createdBy,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

type AssignmentFilter struct {
	PeriodID   string
	EmployeeID string
	ProjectID  string
	WbsItemID  string
}

type EvaluationLine struct {
	ID             string        `json:"id" yaml:"id"`
	EvaluatorType  EvaluatorType `json:"evaluatorType" yaml:"evaluatorType"`
	Order          int           `json:"order" yaml:"order"`
	IsRequired     bool          `json:"isRequired" yaml:"isRequired"`
	IsAutoAssigned bool          `json:"isAutoAssigned" yaml:"isAutoAssigned"`
}

// LineMapping attaches an evaluator to an evaluatee. An empty WbsItemID makes
// the mapping period-scoped.
type LineMapping struct {
	ID               string        `json:"id"`
	PeriodID         string        `json:"periodId"`
	EmployeeID       string        `json:"employeeId"`
	EvaluatorID      string        `json:"evaluatorId"`
	EvaluationLineID string        `json:"evaluationLineId"`
	EvaluatorType    EvaluatorType `json:"evaluatorType"`
	WbsItemID        string        `json:"wbsItemId,omitempty"`
	CreatedBy        string        `json:"createdBy,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
}

func (m LineMapping) Key() MappingKey {
	return MappingKey{
		PeriodID:         m.PeriodID,
		EmployeeID:       m.EmployeeID,
		EvaluationLineID: m.EvaluationLineID,
		WbsItemID:        m.WbsItemID,
	}
}

// MappingKey is the tuple that must be unique among active mappings.
type MappingKey struct {
	PeriodID         string
	EmployeeID       string
	EvaluationLineID string
	WbsItemID        string
}

type WbsCriteria struct {
	ID         string `json:"id"`
	WbsItemID  string `json:"wbsItemId"`
	Criteria   string `json:"criteria"`
	Importance int    `json:"importance"`
}

type DownwardEvaluation struct {
	ID          string        `json:"id"`
	PeriodID    string        `json:"periodId"`
	EmployeeID  string        `json:"employeeId"`
	EvaluatorID string        `json:"evaluatorId"`
	Step        EvaluatorType `json:"evaluationType"`
	WbsItemID   string        `json:"wbsItemId"`
	Score       float64       `json:"score"`
	IsCompleted bool          `json:"isCompleted"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

type StepApproval struct {
	ID          string         `json:"id"`
	PeriodID    string         `json:"periodId"`
	EmployeeID  string         `json:"employeeId"`
	Step        EvaluatorType  `json:"step"`
	MappingID   string         `json:"mappingId,omitempty"`
	EvaluatorID string         `json:"evaluatorId"`
	Status      ApprovalStatus `json:"status"`
	ApprovedBy  string         `json:"approvedBy,omitempty"`
	ApprovedAt  *time.Time     `json:"approvedAt,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

type RevisionRequest struct {
	ID          string              `json:"id"`
	PeriodID    string              `json:"periodId"`
	EmployeeID  string              `json:"employeeId"`
	Step        EvaluatorType       `json:"step"`
	Comment     string              `json:"comment"`
	RequestedBy string              `json:"requestedBy"`
	CreatedAt   time.Time           `json:"createdAt"`
	Recipients  []RevisionRecipient `json:"recipients"`
}

// RevisionRecipient carries the request's period, employee, step and creation
// time so the newest request per evaluator can be picked without a join.
type RevisionRecipient struct {
	ID          string        `json:"id"`
	RequestID   string        `json:"requestId"`
	PeriodID    string        `json:"periodId"`
	EmployeeID  string        `json:"employeeId"`
	Step        EvaluatorType `json:"step"`
	EvaluatorID string        `json:"evaluatorId"`
	IsCompleted bool          `json:"isCompleted"`
	CompletedAt *time.Time    `json:"completedAt,omitempty"`
	RequestedAt time.Time     `json:"requestedAt"`
}
