package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"steward/internal/authenticity"
	electionmodels "steward/internal/election/models"
	electionstore "steward/internal/election/store"
	"steward/internal/platform/middleware"
	"steward/internal/platform/token"
	"steward/internal/reconcile"
	"steward/internal/rules"
	"steward/internal/steward/lock"
	"steward/internal/steward/models"
	"steward/internal/steward/service"
	"steward/internal/steward/store/auditrun"
	policystore "steward/internal/steward/store/policy"
)

var evalTime = time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

type HandlerSuite struct {
	suite.Suite
	router    *chi.Mux
	records   *electionstore.InMemoryStore
	validator *token.Validator
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.records = electionstore.NewInMemoryStore()
	s.validator = token.NewValidator("test-signing-key")

	svc, err := service.New(
		s.records,
		policystore.NewInMemoryStore(),
		auditrun.NewInMemoryStore(),
		rules.New(rules.Config{}),
		authenticity.New(authenticity.Config{VerifiedPollingSources: []string{"Quinnipiac"}}),
		reconcile.New(s.records),
		lock.NewInProcess(),
		service.WithLogger(logger),
		service.WithClock(func() time.Time { return evalTime }),
	)
	s.Require().NoError(err)
	s.Require().NoError(svc.RegisterPolicies(context.Background()))

	s.seed()

	h := New(svc, logger, middleware.RequireAdmin(s.validator, logger))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) seed() {
	ctx := context.Background()
	s.Require().NoError(s.records.PutElection(ctx, &electionmodels.ElectionRecord{
		ID: "e-bad", Title: "Pennsylvania Senate General", Jurisdiction: "PA",
		Level: electionmodels.LevelFederal, Type: electionmodels.TypeGeneral,
		Date: time.Date(2026, 11, 4, 0, 0, 0, 0, time.UTC), Active: true,
	}))
	s.Require().NoError(s.records.PutElection(ctx, &electionmodels.ElectionRecord{
		ID: "e-gap", ExternalID: "src-sb-2026", Title: "Springfield School Board",
		Jurisdiction: "CA", Level: electionmodels.LevelLocal, Type: electionmodels.TypeGeneral,
		Date: time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC), Active: true,
	}))
	support := 48.0
	s.Require().NoError(s.records.PutCandidate(ctx, &electionmodels.CandidateRecord{
		ID: "c-unsourced", Name: "Jordan Blake", ElectionID: "e-bad",
		PollingSupport: &support,
	}))
}

func (s *HandlerSuite) adminToken() string {
	tok, err := s.validator.Issue("ops", token.RoleAdmin, time.Minute)
	s.Require().NoError(err)
	return tok
}

func (s *HandlerSuite) do(method, target, bearer string, body any) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *HandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *HandlerSuite) TestListPolicies() {
	w := s.do(http.MethodGet, "/steward/policies", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	resp := s.decode(w)
	s.Len(resp["policies"], 5)
}

func (s *HandlerSuite) TestToggleRequiresAdmin() {
	target := "/steward/policies/mock_data/toggle"
	body := map[string]bool{"enabled": false}

	w := s.do(http.MethodPost, target, "", body)
	s.Equal(http.StatusUnauthorized, w.Code)

	viewer, err := s.validator.Issue("viewer", "analyst", time.Minute)
	s.Require().NoError(err)
	w = s.do(http.MethodPost, target, viewer, body)
	s.Equal(http.StatusForbidden, w.Code)

	w = s.do(http.MethodPost, target, s.adminToken(), body)
	s.Require().Equal(http.StatusOK, w.Code)
	resp := s.decode(w)
	s.Equal(false, resp["enabled"])
}

func (s *HandlerSuite) TestToggleUnknownPolicy() {
	w := s.do(http.MethodPost, "/steward/policies/nope/toggle", s.adminToken(), map[string]bool{"enabled": true})
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestArchivePolicy() {
	w := s.do(http.MethodPost, "/steward/policies/mock_data/archive", "", nil)
	s.Equal(http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/steward/policies/mock_data/archive", s.adminToken(), nil)
	s.Require().Equal(http.StatusNoContent, w.Code)

	w = s.do(http.MethodGet, "/steward/policies", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["policies"], 4)

	w = s.do(http.MethodPost, "/steward/policies/nope/archive", s.adminToken(), nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestAutoFixRejectedOnNonFixablePolicy() {
	w := s.do(http.MethodPost, "/steward/policies/election_law/autofix", s.adminToken(), map[string]bool{"enabled": true})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestStartRunAndFetch() {
	w := s.do(http.MethodPost, "/steward/runs", s.adminToken(), map[string]any{"dry_run": true})
	s.Require().Equal(http.StatusCreated, w.Code)

	var run models.AuditRun
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &run))
	s.Equal(models.RunCompleted, run.Status)
	s.True(run.DryRun)
	s.NotEmpty(run.Findings)

	w = s.do(http.MethodGet, "/steward/runs/"+run.ID, "", nil)
	s.Equal(http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/steward/runs", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Len(s.decode(w)["runs"], 1)

	w = s.do(http.MethodGet, "/steward/runs/does-not-exist", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestStartRunUnknownPolicy() {
	w := s.do(http.MethodPost, "/steward/runs", s.adminToken(), map[string]any{
		"policies": []string{"made_up"},
	})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestStartRunRequiresAdmin() {
	w := s.do(http.MethodPost, "/steward/runs", "", map[string]any{})
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *HandlerSuite) TestElectionViolations() {
	w := s.do(http.MethodGet, "/integrity/elections/e-bad/violations", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var result rules.Result
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &result))
	s.Require().Len(result.Violations, 1)
	s.Equal(rules.CodeInvalidFederalDate, result.Violations[0].Code)

	w = s.do(http.MethodGet, "/integrity/elections/nope/violations", "", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *HandlerSuite) TestCandidateAuthenticity() {
	w := s.do(http.MethodGet, "/integrity/candidates/c-unsourced/authenticity", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)

	var report authenticity.Report
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &report))
	s.True(report.UnsourcedPolling)
	s.Equal(authenticity.TierPoor, report.Quality)
}

func (s *HandlerSuite) TestSummary() {
	w := s.do(http.MethodGet, "/integrity/summary", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	resp := s.decode(w)
	s.Equal(float64(1), resp["total_candidates"])
}

func (s *HandlerSuite) TestCoverage() {
	w := s.do(http.MethodGet, "/integrity/coverage", "", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	resp := s.decode(w)
	s.Equal(float64(1), resp["count"])

	w = s.do(http.MethodGet, "/integrity/coverage?from=banana", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestReconcile() {
	body := map[string]any{
		"candidates": []map[string]any{
			{"name": "Avery Stone", "external_id": "src-sb-2026"},
		},
	}
	w := s.do(http.MethodPost, "/integrity/reconcile?apply=true", s.adminToken(), body)
	s.Require().Equal(http.StatusOK, w.Code)

	var result service.ReconcileResult
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &result))
	s.Require().Len(result.Matches, 1)
	s.Equal("e-gap", result.Matches[0].ElectionID)
	s.Len(result.Created, 1)

	// Empty batches are rejected, not silently accepted.
	w = s.do(http.MethodPost, "/integrity/reconcile", s.adminToken(), map[string]any{"candidates": []any{}})
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *HandlerSuite) TestListRunsBadLimit() {
	w := s.do(http.MethodGet, "/steward/runs?limit=zero", "", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}
