package service

import (
	"context"
	"errors"
	"time"

	"steward/internal/authenticity"
	electionmodels "steward/internal/election/models"
	"steward/internal/election/store"
	"steward/internal/reconcile"
	"steward/internal/rules"
	dErrors "steward/pkg/domain-errors"
	"steward/pkg/platform/sentinel"
)

// Summary aggregates the authenticity posture of the whole candidate corpus.
type Summary struct {
	TotalCandidates  int                       `json:"total_candidates"`
	AuthenticPolling int                       `json:"authentic_polling"`
	AuthenticVotes   int                       `json:"authentic_votes"`
	UnsourcedPolling int                       `json:"unsourced_polling"`
	StalePolling     int                       `json:"stale_polling"`
	Tiers            map[authenticity.Tier]int `json:"tiers"`
	GeneratedAt      time.Time                 `json:"generated_at"`
}

// ReconcileResult pairs the match report with any records persisted when the
// caller asked for the matches to be applied.
type ReconcileResult struct {
	Matches []reconcile.Match                 `json:"matches"`
	Created []*electionmodels.CandidateRecord `json:"created,omitempty"`
}

// ElectionViolations evaluates the rule set against a single election on
// demand, outside any audit run.
func (s *Service) ElectionViolations(ctx context.Context, id string) (*rules.Result, error) {
	rec, err := s.records.GetElection(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "election %s not found", id)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get election")
	}
	verdict := s.validator.Validate(rec, s.now())
	return &verdict, nil
}

// CandidateAuthenticity classifies a single candidate on demand.
func (s *Service) CandidateAuthenticity(ctx context.Context, id string) (*authenticity.Report, error) {
	rec, err := s.records.GetCandidate(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "candidate %s not found", id)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get candidate")
	}
	report := s.classifier.Classify(rec, s.now())
	return &report, nil
}

// AuthenticitySummary streams the candidate corpus and aggregates classifier
// verdicts into tier counts.
func (s *Service) AuthenticitySummary(ctx context.Context) (*Summary, error) {
	now := s.now()
	sum := &Summary{
		Tiers:       make(map[authenticity.Tier]int, 4),
		GeneratedAt: now,
	}
	cursor := ""
	for {
		page, err := s.records.ListCandidates(ctx, cursor, store.DefaultPageSize)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list candidates")
		}
		for _, rec := range page.Records {
			report := s.classifier.Classify(rec, now)
			sum.TotalCandidates++
			sum.Tiers[report.Quality]++
			if report.HasAuthenticPolling {
				sum.AuthenticPolling++
			}
			if report.HasAuthenticVotes {
				sum.AuthenticVotes++
			}
			if report.UnsourcedPolling {
				sum.UnsourcedPolling++
			}
			if report.StalePolling {
				sum.StalePolling++
			}
		}
		if page.NextCursor == "" {
			return sum, nil
		}
		cursor = page.NextCursor
	}
}

// CoverageGaps lists elections in [from, to] lacking linked candidates. Zero
// bounds default to the configured window starting now.
func (s *Service) CoverageGaps(ctx context.Context, from, to time.Time) ([]reconcile.CoverageGap, error) {
	if from.IsZero() {
		from = s.now()
	}
	if to.IsZero() {
		to = from.Add(s.coverageWindow)
	}
	gaps, err := s.reconciler.MissingCandidates(ctx, from, to)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "coverage sweep")
	}
	return gaps, nil
}

// Reconcile matches inbound source candidates against the canonical records.
// With apply set, accepted matches that resolved to a bare election are
// persisted as new candidate linkages.
func (s *Service) Reconcile(ctx context.Context, sources []electionmodels.SourceCandidate, apply bool) (*ReconcileResult, error) {
	if len(sources) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "no source candidates supplied")
	}
	matches, err := s.reconciler.Reconcile(ctx, sources)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "reconcile")
	}
	result := &ReconcileResult{Matches: matches}
	if apply {
		created, err := s.reconciler.ApplyMatches(ctx, matches)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "apply matches")
		}
		result.Created = created
	}
	return result, nil
}
