package evaluationhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"evalsvc/internal/domain/auth"
	"evalsvc/internal/domain/evaluation"
	"evalsvc/internal/requestctx"
	"evalsvc/internal/transport/http/api"
	"evalsvc/internal/transport/http/middleware"
	"evalsvc/internal/transport/http/shared"
)

const (
	defaultPageSize = 100
	maxPageSize     = 500
)

type Handler struct {
	Service *evaluation.Service
	Perms   middleware.PermissionStore
}

func NewHandler(service *evaluation.Service, perms middleware.PermissionStore) *Handler {
	return &Handler{Service: service, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	read := middleware.RequirePermission(auth.PermEvaluationRead, h.Perms)
	assign := middleware.RequirePermission(auth.PermEvaluationAssign, h.Perms)
	review := middleware.RequirePermission(auth.PermEvaluationReview, h.Perms)
	approve := middleware.RequirePermission(auth.PermEvaluationApprove, h.Perms)

	r.Route("/evaluations", func(r chi.Router) {
		r.With(assign).Post("/assignments", h.handleAssign)
		r.With(assign).Post("/assignments/bulk", h.handleAssignBulk)
		r.With(assign).Post("/assignments/reset", h.handleReset)
		r.With(assign).Delete("/assignments/{assignmentID}", h.handleCancel)
		r.With(assign).Post("/assignments/{assignmentID}/reorder", h.handleReorder)
		r.With(review).Post("/downward-evaluations", h.handleSubmit)
		r.With(approve).Post("/approvals", h.handleApprove)
		r.With(approve).Post("/revision-requests", h.handleRequestRevision)
		r.With(review).Post("/revision-requests/{requestID}/complete", h.handleCompleteRevision)
		r.With(read).Get("/periods/{periodID}/assignments", h.handleListAssignments)
		r.With(read).Get("/periods/{periodID}/status", h.handlePeriodStatus)
		r.With(read).Get("/periods/{periodID}/employees/{employeeID}/status", h.handleEmployeeStatus)
	})
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request) {
	var payload assignRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	a, err := h.Service.AssignWbs(r.Context(), payload.input(), requestctx.GetActor(r.Context()))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, a, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleAssignBulk(w http.ResponseWriter, r *http.Request) {
	var payload bulkAssignRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	inputs := make([]evaluation.AssignInput, 0, len(payload.Items))
	for _, item := range payload.Items {
		inputs = append(inputs, item.input())
	}
	created, err := h.Service.AssignWbsBulk(r.Context(), inputs, requestctx.GetActor(r.Context()))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, created, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	assignmentID := chi.URLParam(r, "assignmentID")
	if err := h.Service.CancelAssignment(r.Context(), assignmentID, requestctx.GetActor(r.Context())); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.NoContent(w)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	var payload resetRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	scope := evaluation.ResetScope{PeriodID: payload.PeriodID, ProjectID: payload.ProjectID, EmployeeID: payload.EmployeeID}
	result, err := h.Service.ResetAssignments(r.Context(), scope, requestctx.GetActor(r.Context()))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, result, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	var payload reorderRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	assignmentID := chi.URLParam(r, "assignmentID")
	list, err := h.Service.Reorder(r.Context(), assignmentID, evaluation.Direction(payload.Direction), requestctx.GetActor(r.Context()))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, list, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload submitRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	in := evaluation.SubmitInput{
		PeriodID:    payload.PeriodID,
		EmployeeID:  payload.EmployeeID,
		EvaluatorID: payload.EvaluatorID,
		Step:        evaluation.EvaluatorType(payload.Step),
		WbsItemID:   payload.WbsItemID,
		Score:       payload.Score,
		Completed:   payload.Completed,
	}
	saved, err := h.Service.SubmitEvaluation(r.Context(), in, requestctx.GetActor(r.Context()))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, saved, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleApprove(w http.ResponseWriter, r *http.Request) {
	var payload approveRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	in := evaluation.ApproveInput{
		PeriodID:    payload.PeriodID,
		EmployeeID:  payload.EmployeeID,
		Step:        evaluation.EvaluatorType(payload.Step),
		EvaluatorID: payload.EvaluatorID,
	}
	approval, err := h.Service.ApproveStep(r.Context(), in, requestctx.GetActor(r.Context()))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, approval, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleRequestRevision(w http.ResponseWriter, r *http.Request) {
	var payload revisionRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	in := evaluation.RevisionInput{
		PeriodID:     payload.PeriodID,
		EmployeeID:   payload.EmployeeID,
		Step:         evaluation.EvaluatorType(payload.Step),
		EvaluatorIDs: payload.EvaluatorIDs,
		Comment:      payload.Comment,
	}
	req, err := h.Service.RequestRevision(r.Context(), in, requestctx.GetActor(r.Context()))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Created(w, req, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleCompleteRevision(w http.ResponseWriter, r *http.Request) {
	var payload completeRevisionRequest
	if !shared.DecodeJSON(w, r, &payload) {
		return
	}
	requestID := chi.URLParam(r, "requestID")
	if err := h.Service.CompleteRevision(r.Context(), requestID, payload.EvaluatorID, requestctx.GetActor(r.Context())); err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.NoContent(w)
}

func (h *Handler) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := evaluation.AssignmentFilter{
		PeriodID:   chi.URLParam(r, "periodID"),
		EmployeeID: query.Get("employeeId"),
		ProjectID:  query.Get("projectId"),
		WbsItemID:  query.Get("wbsItemId"),
	}
	list, err := h.Service.ListAssignments(r.Context(), filter)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	page := shared.ParsePagination(r, defaultPageSize, maxPageSize)
	api.Success(w, shared.Paginate(list, page), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handlePeriodStatus(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.PeriodStatus(r.Context(), chi.URLParam(r, "periodID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, report, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleEmployeeStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Service.EmployeeStatus(r.Context(), chi.URLParam(r, "periodID"), chi.URLParam(r, "employeeID"))
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	api.Success(w, status, middleware.GetRequestID(r.Context()))
}
