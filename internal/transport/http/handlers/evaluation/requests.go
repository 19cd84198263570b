package evaluationhandler

import "evalsvc/internal/domain/evaluation"

type assignRequest struct {
	PeriodID   string   `json:"periodId" validate:"required"`
	EmployeeID string   `json:"employeeId" validate:"required"`
	ProjectID  string   `json:"projectId" validate:"required"`
	WbsItemID  string   `json:"wbsItemId" validate:"required"`
	Weight     *float64 `json:"weight" validate:"omitempty,gte=0"`
}

func (r assignRequest) input() evaluation.AssignInput {
	return evaluation.AssignInput{
		PeriodID:   r.PeriodID,
		EmployeeID: r.EmployeeID,
		ProjectID:  r.ProjectID,
		WbsItemID:  r.WbsItemID,
		Weight:     r.Weight,
	}
}

type bulkAssignRequest struct {
	Items []assignRequest `json:"items" validate:"required,min=1,max=500,dive"`
}

type resetRequest struct {
	PeriodID   string `json:"periodId" validate:"required"`
	ProjectID  string `json:"projectId,omitempty" validate:"excluded_with=EmployeeID"`
	EmployeeID string `json:"employeeId,omitempty"`
}

type reorderRequest struct {
	Direction string `json:"direction" validate:"required,oneof=up down"`
}

type submitRequest struct {
	PeriodID    string  `json:"periodId" validate:"required"`
	EmployeeID  string  `json:"employeeId" validate:"required"`
	EvaluatorID string  `json:"evaluatorId" validate:"required"`
	Step        string  `json:"step" validate:"required,oneof=PRIMARY SECONDARY"`
	WbsItemID   string  `json:"wbsItemId" validate:"required"`
	Score       float64 `json:"score" validate:"gte=0,lte=100"`
	Completed   bool    `json:"completed"`
}

type approveRequest struct {
	PeriodID    string `json:"periodId" validate:"required"`
	EmployeeID  string `json:"employeeId" validate:"required"`
	Step        string `json:"step" validate:"required,oneof=PRIMARY SECONDARY"`
	EvaluatorID string `json:"evaluatorId"`
}

type revisionRequest struct {
	PeriodID     string   `json:"periodId" validate:"required"`
	EmployeeID   string   `json:"employeeId" validate:"required"`
	Step         string   `json:"step" validate:"required,oneof=PRIMARY SECONDARY"`
	EvaluatorIDs []string `json:"evaluatorIds" validate:"omitempty,dive,required"`
	Comment      string   `json:"comment" validate:"max=2000"`
}

type completeRevisionRequest struct {
	EvaluatorID string `json:"evaluatorId" validate:"required"`
}
