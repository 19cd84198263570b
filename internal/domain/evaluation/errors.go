package evaluation

import "evalsvc/internal/shared/apperror"

var (
	ErrPeriodNotFound          = apperror.NotFound("Evaluation period not found")
	ErrEmployeeNotFound        = apperror.NotFound("Employee not found")
	ErrProjectNotFound         = apperror.NotFound("Project not found")
	ErrAssignmentNotFound      = apperror.NotFound("WBS assignment not found")
	ErrRevisionRequestNotFound = apperror.NotFound("Revision request not found")
	ErrExternalRefNotFound     = apperror.NotFound("External employee reference not found")

	ErrAssignmentExists = apperror.Conflict("WBS item is already assigned to this employee for the period")
	ErrMappingExists    = apperror.Conflict("Evaluator mapping already exists")
	ErrCriteriaExists   = apperror.Conflict("Evaluation criteria already exist for this WBS item")

	ErrDisplayOrderTaken = apperror.Conflict("Display order is already taken for this employee")

	ErrPeriodClosed     = apperror.InvalidState("Evaluation period is closed")
	ErrStepApproved     = apperror.InvalidState("Evaluation step is already approved")
	ErrStepNotSubmitted = apperror.InvalidState("Evaluation step has not been fully submitted")
	ErrNoMapping        = apperror.InvalidState("Evaluator is not mapped to this employee for the step")
	ErrWbsNotAssigned   = apperror.InvalidState("WBS item is not assigned to this employee for the period")

	ErrRevisionOutstanding = apperror.InvalidState("A revision request is still outstanding for this evaluator")

	ErrInvalidScope     = apperror.InvalidInput("Reset scope must name a period and at most one of project or employee")
	ErrInvalidDirection = apperror.InvalidInput("Direction must be up or down")
	ErrInvalidScore     = apperror.InvalidInput("Score must be between 0 and 100")
	ErrInvalidStep      = apperror.InvalidInput("Step must be PRIMARY or SECONDARY")
	ErrEmptyBatch       = apperror.InvalidInput("Batch must contain at least one assignment")
)
