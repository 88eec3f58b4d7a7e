// Package handler exposes the integrity engine over HTTP. Read endpoints are
// open to any authenticated caller; policy toggles and run triggers sit
// behind the admin middleware supplied by the caller.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"steward/internal/authenticity"
	electionmodels "steward/internal/election/models"
	"steward/internal/reconcile"
	"steward/internal/rules"
	"steward/internal/steward/models"
	"steward/internal/steward/service"
	dErrors "steward/pkg/domain-errors"
	"steward/pkg/platform/httputil"
)

const defaultRunListLimit = 50

// Service defines the orchestrator operations the HTTP layer depends on.
type Service interface {
	ListPolicies(ctx context.Context) ([]*models.Policy, error)
	TogglePolicy(ctx context.Context, id models.PolicyID, enabled bool) (*models.Policy, error)
	ToggleAutoFix(ctx context.Context, id models.PolicyID, enabled bool) (*models.Policy, error)
	ArchivePolicy(ctx context.Context, id models.PolicyID) error

	RunAudit(ctx context.Context, req service.RunRequest) (*models.AuditRun, error)
	GetRun(ctx context.Context, id string) (*models.AuditRun, error)
	ListRuns(ctx context.Context, limit int) ([]*models.AuditRun, error)

	ElectionViolations(ctx context.Context, id string) (*rules.Result, error)
	CandidateAuthenticity(ctx context.Context, id string) (*authenticity.Report, error)
	AuthenticitySummary(ctx context.Context) (*service.Summary, error)
	CoverageGaps(ctx context.Context, from, to time.Time) ([]reconcile.CoverageGap, error)
	Reconcile(ctx context.Context, sources []electionmodels.SourceCandidate, apply bool) (*service.ReconcileResult, error)
}

// Handler wires integrity endpoints to the steward service.
type Handler struct {
	service Service
	logger  *slog.Logger
	admin   func(http.Handler) http.Handler
}

// New constructs the handler. adminMW guards mutating endpoints; passing nil
// leaves them open, which is only acceptable in tests.
func New(service Service, logger *slog.Logger, adminMW func(http.Handler) http.Handler) *Handler {
	if adminMW == nil {
		adminMW = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{service: service, logger: logger, admin: adminMW}
}

// Register mounts all integrity and steward endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Get("/integrity/elections/{id}/violations", h.HandleElectionViolations)
	r.Get("/integrity/candidates/{id}/authenticity", h.HandleCandidateAuthenticity)
	r.Get("/integrity/summary", h.HandleSummary)
	r.Get("/integrity/coverage", h.HandleCoverage)
	r.Get("/steward/policies", h.HandleListPolicies)
	r.Get("/steward/runs", h.HandleListRuns)
	r.Get("/steward/runs/{id}", h.HandleGetRun)

	r.Group(func(r chi.Router) {
		r.Use(h.admin)
		r.Post("/integrity/reconcile", h.HandleReconcile)
		r.Post("/steward/policies/{id}/toggle", h.HandleTogglePolicy)
		r.Post("/steward/policies/{id}/autofix", h.HandleToggleAutoFix)
		r.Post("/steward/policies/{id}/archive", h.HandleArchivePolicy)
		r.Post("/steward/runs", h.HandleStartRun)
	})
}

// HandleElectionViolations handles GET /integrity/elections/{id}/violations.
func (h *Handler) HandleElectionViolations(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.ElectionViolations(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleCandidateAuthenticity handles GET /integrity/candidates/{id}/authenticity.
func (h *Handler) HandleCandidateAuthenticity(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.CandidateAuthenticity(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, report)
}

// HandleSummary handles GET /integrity/summary.
func (h *Handler) HandleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := h.service.AuthenticitySummary(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, sum)
}

// HandleCoverage handles GET /integrity/coverage?from=2026-10-01&to=2026-11-30.
// Bounds are optional; omitted bounds fall back to the configured window.
func (h *Handler) HandleCoverage(w http.ResponseWriter, r *http.Request) {
	from, err := parseDateParam(r, "from")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	to, err := parseDateParam(r, "to")
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	gaps, err := h.service.CoverageGaps(r.Context(), from, to)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"gaps": gaps, "count": len(gaps)})
}

// HandleReconcile handles POST /integrity/reconcile?apply=true.
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[reconcileRequest](w, r)
	if !ok {
		return
	}
	apply := r.URL.Query().Get("apply") == "true"
	result, err := h.service.Reconcile(r.Context(), req.Candidates, apply)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "reconciliation requested",
		"sources", len(req.Candidates),
		"applied", apply,
		"created", len(result.Created),
	)
	httputil.WriteJSON(w, http.StatusOK, result)
}

// HandleListPolicies handles GET /steward/policies.
func (h *Handler) HandleListPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := h.service.ListPolicies(r.Context())
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"policies": policies})
}

// HandleTogglePolicy handles POST /steward/policies/{id}/toggle.
func (h *Handler) HandleTogglePolicy(w http.ResponseWriter, r *http.Request) {
	h.togglePolicy(w, r, h.service.TogglePolicy)
}

// HandleToggleAutoFix handles POST /steward/policies/{id}/autofix.
func (h *Handler) HandleToggleAutoFix(w http.ResponseWriter, r *http.Request) {
	h.togglePolicy(w, r, h.service.ToggleAutoFix)
}

func (h *Handler) togglePolicy(w http.ResponseWriter, r *http.Request, toggle func(context.Context, models.PolicyID, bool) (*models.Policy, error)) {
	req, ok := httputil.Decode[toggleRequest](w, r)
	if !ok {
		return
	}
	id := models.PolicyID(chi.URLParam(r, "id"))
	policy, err := toggle(r.Context(), id, req.Enabled)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, policy)
}

// HandleArchivePolicy handles POST /steward/policies/{id}/archive. Archived
// policies drop off the listing but keep their row for run history.
func (h *Handler) HandleArchivePolicy(w http.ResponseWriter, r *http.Request) {
	id := models.PolicyID(chi.URLParam(r, "id"))
	if err := h.service.ArchivePolicy(r.Context(), id); err != nil {
		httputil.WriteError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "policy archived via api", "policy", id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleStartRun handles POST /steward/runs. The run executes synchronously;
// the response is the terminal run record.
func (h *Handler) HandleStartRun(w http.ResponseWriter, r *http.Request) {
	req, ok := httputil.Decode[startRunRequest](w, r)
	if !ok {
		return
	}
	run, err := h.service.RunAudit(r.Context(), service.RunRequest{
		Policies: req.Policies,
		DryRun:   req.DryRun,
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "audit run request rejected", "error", err)
		httputil.WriteError(w, err)
		return
	}
	status := http.StatusCreated
	if run.Status == models.RunFailed {
		// The run exists and is retrievable, but its work did not finish.
		status = http.StatusAccepted
	}
	httputil.WriteJSON(w, status, run)
}

// HandleListRuns handles GET /steward/runs?limit=20.
func (h *Handler) HandleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "limit must be a positive integer"))
			return
		}
		limit = n
	}
	runs, err := h.service.ListRuns(r.Context(), limit)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

// HandleGetRun handles GET /steward/runs/{id}.
func (h *Handler) HandleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := h.service.GetRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, run)
}

func parseDateParam(r *http.Request, name string) (time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(electionmodels.DateLayout, raw)
	if err != nil {
		return time.Time{}, dErrors.Newf(dErrors.CodeInvalidInput, "%s must be a YYYY-MM-DD date", name)
	}
	return t, nil
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

type startRunRequest struct {
	Policies []models.PolicyID `json:"policies,omitempty"`
	DryRun   bool              `json:"dry_run,omitempty"`
}

type reconcileRequest struct {
	Candidates []electionmodels.SourceCandidate `json:"candidates"`
}
