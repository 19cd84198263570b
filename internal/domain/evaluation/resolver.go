package evaluation

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"evalsvc/internal/platform/metrics"
)

type ResolveInput struct {
	PeriodID   string
	EmployeeID string
	ProjectID  string
	WbsItemID  string
}

// Resolution describes what one resolver run decided. It exists for logs and
// tests; callers never branch on it.
type Resolution struct {
	PrimaryEvaluatorID   string   `json:"primaryEvaluatorId,omitempty"`
	PrimaryCreated       bool     `json:"primaryCreated"`
	SecondaryEvaluatorID string   `json:"secondaryEvaluatorId,omitempty"`
	SecondaryCreated     bool     `json:"secondaryCreated"`
	Skipped              []string `json:"skipped,omitempty"`
}

func (r *Resolution) skip(reason string) {
	r.Skipped = append(r.Skipped, reason)
}

const (
	SkipEmployeeMissing  = "employee_not_found"
	SkipProjectMissing   = "project_not_found"
	SkipNoPrimaryLine    = "primary_line_missing"
	SkipNoSecondaryLine  = "secondary_line_missing"
	SkipNoManager        = "manager_unresolved"
	SkipSelfManaged      = "employee_is_own_manager"
	SkipNoProjectManager = "project_manager_unresolved"
	SkipSameAsManager    = "project_manager_is_line_manager"
	SkipSelfEvaluation   = "project_manager_is_evaluatee"
	SkipStoreUnavailable = "store_error"
)

// Resolver attaches primary and secondary evaluators to an evaluatee. Every
// run is safe to repeat: existing active mappings are kept as they are.
type Resolver struct {
	store   StoreAPI
	org     OrgLookup
	catalog Catalog
	metrics *metrics.Collector
	now     func() time.Time
}

func NewResolver(store StoreAPI, org OrgLookup, catalog Catalog, m *metrics.Collector) *Resolver {
	return &Resolver{store: store, org: org, catalog: catalog, metrics: m, now: time.Now}
}

// ResolveEvaluators never fails. Anything it cannot resolve is logged and
// reported in the returned Resolution.
func (r *Resolver) ResolveEvaluators(ctx context.Context, in ResolveInput, actor string) Resolution {
	var res Resolution
	defer func() {
		if len(res.Skipped) > 0 {
			r.metrics.Add(metrics.ResolutionGaps, len(res.Skipped))
			slog.Warn("evaluator resolution incomplete",
				"periodId", in.PeriodID, "employeeId", in.EmployeeID, "wbsItemId", in.WbsItemID, "skipped", res.Skipped)
		}
	}()

	employee, err := r.store.GetEmployee(ctx, in.EmployeeID)
	if err != nil {
		res.skip(SkipEmployeeMissing)
		return res
	}
	project, err := r.store.GetProject(ctx, in.ProjectID)
	if err != nil {
		res.skip(SkipProjectMissing)
		return res
	}

	managerID := r.resolveRef(ctx, employee.Manager)

	r.resolvePrimary(ctx, in, employee, managerID, actor, &res)
	r.resolveSecondary(ctx, in, project, managerID, actor, &res)
	return res
}

func (r *Resolver) resolvePrimary(ctx context.Context, in ResolveInput, employee Employee, managerID, actor string, res *Resolution) {
	line, ok := r.catalog.Line(EvaluatorPrimary)
	if !ok {
		res.skip(SkipNoPrimaryLine)
		return
	}
	key := MappingKey{PeriodID: in.PeriodID, EmployeeID: in.EmployeeID, EvaluationLineID: line.ID}
	existing, found, err := r.store.FindActiveMapping(ctx, key)
	if err != nil {
		res.skip(SkipStoreUnavailable)
		return
	}
	if found {
		res.PrimaryEvaluatorID = existing.EvaluatorID
		return
	}

	switch {
	case managerID == "":
		res.skip(SkipNoManager)
		return
	case managerID == employee.ID:
		res.skip(SkipSelfManaged)
		return
	}

	created, err := r.createMapping(ctx, key, line, managerID, actor)
	if err != nil {
		res.skip(SkipStoreUnavailable)
		return
	}
	res.PrimaryEvaluatorID = managerID
	res.PrimaryCreated = created
}

func (r *Resolver) resolveSecondary(ctx context.Context, in ResolveInput, project Project, managerID, actor string, res *Resolution) {
	line, ok := r.catalog.Line(EvaluatorSecondary)
	if !ok {
		res.skip(SkipNoSecondaryLine)
		return
	}

	evaluatorID := r.resolveRef(ctx, project.Manager)
	switch {
	case evaluatorID == "":
		res.skip(SkipNoProjectManager)
		return
	case evaluatorID == managerID:
		res.skip(SkipSameAsManager)
		return
	case evaluatorID == in.EmployeeID:
		res.skip(SkipSelfEvaluation)
		return
	}

	key := MappingKey{PeriodID: in.PeriodID, EmployeeID: in.EmployeeID, EvaluationLineID: line.ID, WbsItemID: in.WbsItemID}
	existing, found, err := r.store.FindActiveMapping(ctx, key)
	if err != nil {
		res.skip(SkipStoreUnavailable)
		return
	}
	if found {
		res.SecondaryEvaluatorID = existing.EvaluatorID
		return
	}

	created, err := r.createMapping(ctx, key, line, evaluatorID, actor)
	if err != nil {
		res.skip(SkipStoreUnavailable)
		return
	}
	res.SecondaryEvaluatorID = evaluatorID
	res.SecondaryCreated = created
}

// createMapping inserts a mapping for key. A uniqueness conflict means a
// concurrent run got there first and counts as success.
func (r *Resolver) createMapping(ctx context.Context, key MappingKey, line EvaluationLine, evaluatorID, actor string) (bool, error) {
	_, err := r.store.CreateMapping(ctx, LineMapping{
		ID:               uuid.NewString(),
		PeriodID:         key.PeriodID,
		EmployeeID:       key.EmployeeID,
		EvaluatorID:      evaluatorID,
		EvaluationLineID: line.ID,
		EvaluatorType:    line.EvaluatorType,
		WbsItemID:        key.WbsItemID,
		CreatedBy:        actor,
		CreatedAt:        r.now().UTC(),
	})
	if errors.Is(err, ErrMappingExists) {
		return false, nil
	}
	if err != nil {
		slog.Warn("create evaluator mapping failed", "employeeId", key.EmployeeID, "wbsItemId", key.WbsItemID, "err", err)
		return false, err
	}
	r.metrics.Inc(metrics.MappingsCreated)
	return true, nil
}

// resolveRef turns a person reference into an internal id, or "" when it
// cannot be resolved.
func (r *Resolver) resolveRef(ctx context.Context, ref PersonRef) string {
	if ref.ID != "" {
		return ref.ID
	}
	if ref.ExternalID == "" || r.org == nil {
		return ""
	}
	id, err := r.org.ResolveInternalID(ctx, ref.ExternalID)
	if err != nil {
		slog.Warn("external reference lookup failed", "externalId", ref.ExternalID, "err", err)
		return ""
	}
	return id
}
