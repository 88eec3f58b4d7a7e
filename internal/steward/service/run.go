package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"steward/internal/authenticity"
	electionmodels "steward/internal/election/models"
	"steward/internal/election/store"
	"steward/internal/rules"
	"steward/internal/steward/models"
	dErrors "steward/pkg/domain-errors"
	"steward/pkg/platform/events"
)

// RunRequest selects what an audit run evaluates. An empty Policies slice
// means every enabled policy; a non-empty slice restricts the run to the
// named subset, still filtered by enablement.
type RunRequest struct {
	Policies []models.PolicyID
	DryRun   bool
}

// Finding codes produced by the candidate-side policies. Election-side codes
// come from the rules package.
const (
	codeUnsourcedPolling  = "unsourced_polling"
	codeStalePolling      = "stale_polling"
	codeUnverifiedResult  = "unverified_result"
	codeMissingCandidates = "missing_candidates"
	codeSkippedCheck      = "check_skipped"
)

// scanResult is everything a full corpus pass produces before the run is
// finalized. Remediations are staged here and committed only after the scan
// finished cleanly.
type scanResult struct {
	findings []models.Finding
	staged   []models.RemediationAction
}

// RunAudit executes one audit run end to end and returns its immutable
// record. Evaluation failures caused by the store surface as a failed run
// with partial findings, not as an error; the error return is reserved for
// requests that never became a run (unknown policy, remediation lock held,
// run store unavailable).
func (s *Service) RunAudit(ctx context.Context, req RunRequest) (*models.AuditRun, error) {
	active, err := s.resolvePolicies(ctx, req.Policies)
	if err != nil {
		return nil, err
	}

	// The lock is only needed when this run may write remediations. Read-only
	// and dry runs proceed concurrently without it.
	release := func() {}
	if !req.DryRun && remediates(active) {
		rel, ok, err := s.runLock.TryAcquire(ctx)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire remediation lock")
		}
		if !ok {
			return nil, dErrors.New(dErrors.CodeConflict, "another audit run holds the remediation lock")
		}
		release = rel
	}
	defer release()

	run := &models.AuditRun{
		ID:            uuid.NewString(),
		Status:        models.RunPending,
		DryRun:        req.DryRun,
		Policies:      policyIDs(active),
		StartedAt:     s.now(),
		FindingCounts: make(map[models.PolicyID]int, len(active)),
	}
	for _, p := range active {
		run.FindingCounts[p.ID] = 0
	}
	if err := s.runs.Create(ctx, run); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "create audit run")
	}
	if err := s.runs.MarkRunning(ctx, run.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "mark audit run running")
	}
	run.Status = models.RunRunning
	s.metrics.RunStarted()
	s.emit(ctx, events.Event{
		Type:      events.EventRunStarted,
		Timestamp: run.StartedAt,
		RunID:     run.ID,
	})

	ctx, span := otel.Tracer("steward/service").Start(ctx, "audit.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", run.ID),
		attribute.Bool("run.dry_run", req.DryRun),
		attribute.Int("run.policies", len(active)),
	)

	result, scanErr := s.scan(ctx, active)
	if scanErr != nil {
		return s.failRun(ctx, run, result, scanErr)
	}

	applied := result.staged
	if req.DryRun {
		applied = nil
	} else if len(result.staged) > 0 {
		// The staged set was computed from a complete, successful scan. The
		// commit must not be torn by a caller timeout mid-way through, so it
		// runs on a cancellation-free context.
		commitCtx := context.WithoutCancel(ctx)
		var commitErr error
		applied, commitErr = s.commit(commitCtx, result.staged)
		if commitErr != nil {
			run.Actions = applied
			return s.failRun(ctx, run, result, commitErr)
		}
	}

	run.Findings = result.findings
	run.Actions = applied
	for _, f := range result.findings {
		run.FindingCounts[f.PolicyID]++
	}
	done := s.now()
	run.CompletedAt = &done
	run.Status = models.RunCompleted
	if err := s.runs.Complete(ctx, run); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist completed run")
	}

	s.metrics.ObserveRun(done.Sub(run.StartedAt), false)
	for id, n := range run.FindingCounts {
		s.metrics.AddFindings(string(id), n)
	}
	s.metrics.AddRemediations(len(applied))
	s.emit(ctx, events.Event{
		Type:      events.EventRunCompleted,
		Timestamp: done,
		RunID:     run.ID,
		Detail: map[string]string{
			"findings":     fmt.Sprintf("%d", len(run.Findings)),
			"remediations": fmt.Sprintf("%d", len(applied)),
		},
	})
	s.logger.InfoContext(ctx, "audit run completed",
		"run_id", run.ID,
		"dry_run", req.DryRun,
		"findings", len(run.Findings),
		"remediations", len(applied),
		"duration", done.Sub(run.StartedAt),
	)
	return run, nil
}

// failRun finalizes a run that could not finish its scan or commit. Partial
// findings gathered before the failure are preserved on the failed run.
func (s *Service) failRun(ctx context.Context, run *models.AuditRun, result scanResult, cause error) (*models.AuditRun, error) {
	run.Findings = result.findings
	for _, f := range result.findings {
		run.FindingCounts[f.PolicyID]++
	}
	done := s.now()
	run.CompletedAt = &done
	run.Status = models.RunFailed
	run.Error = cause.Error()

	// Failing to persist the failure is the one case the caller gets an error
	// instead of a run object.
	if err := s.runs.Fail(ctx, run); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist failed run")
	}
	s.metrics.ObserveRun(done.Sub(run.StartedAt), true)
	s.emit(ctx, events.Event{
		Type:      events.EventRunFailed,
		Timestamp: done,
		RunID:     run.ID,
		Detail:    map[string]string{"error": cause.Error()},
	})
	s.logger.ErrorContext(ctx, "audit run failed",
		"run_id", run.ID,
		"error", cause,
		"partial_findings", len(run.Findings),
	)
	return run, nil
}

// resolvePolicies loads the catalog and narrows it to the requested, enabled
// subset. Unknown policy ids reject the whole request before a run exists.
func (s *Service) resolvePolicies(ctx context.Context, subset []models.PolicyID) ([]*models.Policy, error) {
	catalog, err := s.policies.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load policy catalog")
	}
	byID := make(map[models.PolicyID]*models.Policy, len(catalog))
	for _, p := range catalog {
		byID[p.ID] = p
	}

	var active []*models.Policy
	if len(subset) == 0 {
		for _, p := range catalog {
			if p.Enabled {
				active = append(active, p)
			}
		}
	} else {
		seen := make(map[models.PolicyID]bool, len(subset))
		for _, id := range subset {
			p, ok := byID[id]
			if !ok {
				return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown policy %q", id)
			}
			if seen[id] {
				continue
			}
			seen[id] = true
			if p.Enabled {
				active = append(active, p)
			}
		}
	}
	if len(active) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no enabled policies selected")
	}
	return active, nil
}

// scan walks both corpora page by page, evaluating every active policy
// against every record. Per-record work fans out across workers; results are
// reassembled in record order so runs over the same corpus are reproducible.
func (s *Service) scan(ctx context.Context, active []*models.Policy) (scanResult, error) {
	var res scanResult
	enabled := make(map[models.PolicyID]*models.Policy, len(active))
	for _, p := range active {
		enabled[p.ID] = p
	}
	now := s.now()

	wantLaw := enabled[models.PolicyElectionLaw] != nil
	wantMock := enabled[models.PolicyMockData] != nil
	if wantLaw || wantMock {
		if err := s.scanElections(ctx, now, wantLaw, wantMock, &res); err != nil {
			return res, err
		}
	}

	pollingPolicy := enabled[models.PolicyPollingAuthenticity]
	wantResults := enabled[models.PolicyResultAuthenticity] != nil
	if pollingPolicy != nil || wantResults {
		if err := s.scanCandidates(ctx, now, pollingPolicy, wantResults, &res); err != nil {
			return res, err
		}
	}

	if enabled[models.PolicyCandidateCoverage] != nil {
		gaps, err := s.reconciler.MissingCandidates(ctx, now, now.Add(s.coverageWindow))
		if err != nil {
			return res, fmt.Errorf("coverage sweep: %w", err)
		}
		s.metrics.SetCoverageGaps(len(gaps))
		for _, g := range gaps {
			res.findings = append(res.findings, models.Finding{
				PolicyID: models.PolicyCandidateCoverage,
				RecordID: g.ElectionID,
				Kind:     models.KindElection,
				Code:     codeMissingCandidates,
				Message:  fmt.Sprintf("election %q on %s has no linked candidates", g.Title, g.Date.Format(electionmodels.DateLayout)),
			})
		}
	}
	return res, nil
}

func (s *Service) scanElections(ctx context.Context, now time.Time, wantLaw, wantMock bool, res *scanResult) error {
	cursor := ""
	for {
		page, err := s.records.ListElections(ctx, cursor, store.DefaultPageSize)
		if err != nil {
			return fmt.Errorf("list elections: %w", err)
		}

		perRecord := make([][]models.Finding, len(page.Records))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i, rec := range page.Records {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				verdict := s.validator.Validate(rec, now)
				perRecord[i] = electionFindings(rec.ID, verdict, wantLaw, wantMock)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("validate elections: %w", err)
		}
		for _, fs := range perRecord {
			res.findings = append(res.findings, fs...)
		}

		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

func (s *Service) scanCandidates(ctx context.Context, now time.Time, pollingPolicy *models.Policy, wantResults bool, res *scanResult) error {
	stage := pollingPolicy != nil && pollingPolicy.AutoFixEnabled
	cursor := ""
	for {
		page, err := s.records.ListCandidates(ctx, cursor, store.DefaultPageSize)
		if err != nil {
			return fmt.Errorf("list candidates: %w", err)
		}

		type verdict struct {
			findings []models.Finding
			action   *models.RemediationAction
		}
		perRecord := make([]verdict, len(page.Records))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.workers)
		for i, rec := range page.Records {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				report := s.classifier.Classify(rec, now)
				v := verdict{findings: candidateFindings(rec, report, pollingPolicy != nil, wantResults)}
				if stage && report.UnsourcedPolling {
					v.action = &models.RemediationAction{
						PolicyID:    models.PolicyPollingAuthenticity,
						CandidateID: rec.ID,
						Before:      rec.PollingFields(),
						After:       electionmodels.PollingSnapshot{},
					}
				}
				perRecord[i] = v
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return fmt.Errorf("classify candidates: %w", err)
		}
		for _, v := range perRecord {
			res.findings = append(res.findings, v.findings...)
			if v.action != nil {
				res.staged = append(res.staged, *v.action)
			}
		}

		if page.NextCursor == "" {
			return nil
		}
		cursor = page.NextCursor
	}
}

// txRunner is implemented by stores that can wrap a batch of writes in one
// transaction.
type txRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// commit applies the staged remediation set. Stores that support
// transactions apply it atomically; otherwise each clear is idempotent, so a
// partially-landed commit is converged by the next run. Actions applied
// before a failure are returned so the failed run records them.
func (s *Service) commit(ctx context.Context, staged []models.RemediationAction) ([]models.RemediationAction, error) {
	if runner, ok := s.records.(txRunner); ok {
		var applied []models.RemediationAction
		err := runner.RunInTx(ctx, func(txCtx context.Context) error {
			var txErr error
			applied, txErr = s.applyAll(txCtx, staged)
			return txErr
		})
		if err != nil {
			return nil, err
		}
		return applied, nil
	}
	return s.applyAll(ctx, staged)
}

func (s *Service) applyAll(ctx context.Context, staged []models.RemediationAction) ([]models.RemediationAction, error) {
	applied := make([]models.RemediationAction, 0, len(staged))
	for _, action := range staged {
		if err := s.records.UpdateCandidatePolling(ctx, action.CandidateID, action.After); err != nil {
			return applied, fmt.Errorf("clear polling on candidate %s: %w", action.CandidateID, err)
		}
		action.AppliedAt = s.now()
		applied = append(applied, action)
	}
	return applied, nil
}

func electionFindings(recordID string, verdict rules.Result, wantLaw, wantMock bool) []models.Finding {
	var out []models.Finding
	for _, v := range verdict.Violations {
		policy := models.PolicyElectionLaw
		if v.Code == rules.CodeMockDataDetected {
			policy = models.PolicyMockData
		}
		if (policy == models.PolicyElectionLaw && !wantLaw) || (policy == models.PolicyMockData && !wantMock) {
			continue
		}
		out = append(out, models.Finding{
			PolicyID: policy,
			RecordID: recordID,
			Kind:     models.KindElection,
			Code:     v.Code,
			Message:  v.Message,
		})
	}
	if wantLaw {
		for _, sk := range verdict.Skipped {
			out = append(out, models.Finding{
				PolicyID: models.PolicyElectionLaw,
				RecordID: recordID,
				Kind:     models.KindElection,
				Code:     codeSkippedCheck,
				Message:  fmt.Sprintf("%s: %s", sk.Check, sk.Reason),
				Skipped:  true,
			})
		}
	}
	return out
}

func candidateFindings(rec *electionmodels.CandidateRecord, report authenticity.Report, wantPolling, wantResults bool) []models.Finding {
	var out []models.Finding
	if wantPolling {
		if report.UnsourcedPolling {
			out = append(out, models.Finding{
				PolicyID: models.PolicyPollingAuthenticity,
				RecordID: rec.ID,
				Kind:     models.KindCandidate,
				Code:     codeUnsourcedPolling,
				Message:  "polling support is present without a source",
			})
		}
		if report.StalePolling {
			out = append(out, models.Finding{
				PolicyID: models.PolicyPollingAuthenticity,
				RecordID: rec.ID,
				Kind:     models.KindCandidate,
				Code:     codeStalePolling,
				Message:  "sourced polling is older than the freshness window",
			})
		}
	}
	if wantResults {
		hasResultValue := rec.VotePercentage != nil || rec.VotesReceived != nil
		if hasResultValue && !report.HasAuthenticVotes {
			out = append(out, models.Finding{
				PolicyID: models.PolicyResultAuthenticity,
				RecordID: rec.ID,
				Kind:     models.KindCandidate,
				Code:     codeUnverifiedResult,
				Message:  "vote results are present without a certified official source",
			})
		}
	}
	return out
}

func remediates(active []*models.Policy) bool {
	for _, p := range active {
		if p.AutoFixable && p.AutoFixEnabled {
			return true
		}
	}
	return false
}

func policyIDs(active []*models.Policy) []models.PolicyID {
	ids := make([]models.PolicyID, 0, len(active))
	for _, p := range active {
		ids = append(ids, p.ID)
	}
	return ids
}
