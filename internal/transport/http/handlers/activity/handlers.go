package activityhandler

import (
	"encoding/csv"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"evalsvc/internal/domain/activity"
	"evalsvc/internal/domain/auth"
	"evalsvc/internal/transport/http/api"
	"evalsvc/internal/transport/http/middleware"
	"evalsvc/internal/transport/http/shared"
)

const exportLimit = 10000

type Handler struct {
	Reader activity.Reader
	Perms  middleware.PermissionStore
}

func NewHandler(reader activity.Reader, perms middleware.PermissionStore) *Handler {
	return &Handler{Reader: reader, Perms: perms}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/activity", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermActivityRead, h.Perms)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermActivityRead, h.Perms)).Get("/export", h.handleExport)
	})
}

func filterFrom(r *http.Request) activity.Filter {
	q := r.URL.Query()
	return activity.Filter{
		Action:     q.Get("action"),
		EntityType: q.Get("entityType"),
		ActorID:    q.Get("actorId"),
		PeriodID:   q.Get("periodId"),
		EmployeeID: q.Get("employeeId"),
	}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	page := shared.ParsePagination(r, 100, 500)
	filter := filterFrom(r)
	includePayload := r.URL.Query().Get("includePayload") == "true"

	total, err := h.Reader.Count(r.Context(), filter)
	if err != nil {
		slog.Warn("activity count failed", "err", err)
	}
	events, err := h.Reader.List(r.Context(), filter, includePayload, page.Limit, page.Offset)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}
	if events == nil {
		events = []activity.Event{}
	}

	w.Header().Set("X-Total-Count", strconv.Itoa(total))
	api.Success(w, events, middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	events, err := h.Reader.List(r.Context(), filterFrom(r), false, exportLimit, 0)
	if err != nil {
		api.FailError(w, err, middleware.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=evaluation-activity.csv")
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"id", "actor_id", "action", "entity_type", "entity_id", "period_id", "employee_id", "request_id", "created_at"}); err != nil {
		slog.Warn("activity export header failed", "err", err)
	}
	for _, evt := range events {
		row := []string{evt.ID, evt.ActorID, evt.Action, evt.EntityType, evt.EntityID, evt.PeriodID, evt.EmployeeID, evt.RequestID, evt.CreatedAt.UTC().Format(time.RFC3339)}
		if err := writer.Write(row); err != nil {
			slog.Warn("activity export row failed", "err", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		slog.Warn("activity export flush failed", "err", err)
	}
}
