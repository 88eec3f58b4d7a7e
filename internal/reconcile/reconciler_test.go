package reconcile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"steward/internal/election/models"
	"steward/internal/election/store"
)

type ReconcilerSuite struct {
	suite.Suite
	store      *store.InMemoryStore
	reconciler *Reconciler
}

func (s *ReconcilerSuite) SetupTest() {
	s.store = store.NewInMemoryStore()
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	s.reconciler = New(s.store, WithLogger(logger))
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) seedElection(id, externalID, jurisdiction, office string, date time.Time) {
	s.Require().NoError(s.store.PutElection(context.Background(), &models.ElectionRecord{
		ID: id, ExternalID: externalID,
		Title:        "General Election " + id,
		Jurisdiction: jurisdiction,
		Office:       office,
		Date:         date,
		Level:        models.LevelState,
		Type:         models.TypeGeneral,
		Active:       true,
	}))
}

func (s *ReconcilerSuite) seedCandidate(id, name, electionID string) {
	s.Require().NoError(s.store.PutCandidate(context.Background(), &models.CandidateRecord{
		ID: id, Name: name, ElectionID: electionID,
	}))
}

var nov3 = time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC)

func (s *ReconcilerSuite) TestExternalIDMatchWinsFirst() {
	s.seedElection("elec-1", "ext-100", "GA", "US Senate", nov3)
	// A candidate whose name would also match exactly, to prove priority.
	s.seedCandidate("cand-1", "Maria Lopez", "elec-1")

	matches, err := s.reconciler.Reconcile(context.Background(), []models.SourceCandidate{
		{Name: "Maria Lopez", ExternalID: "ext-100", Jurisdiction: "GA", Office: "US Senate"},
	})
	s.Require().NoError(err)
	s.Require().Len(matches, 1)
	s.Equal(MethodExternalID, matches[0].Method)
	s.Equal("elec-1", matches[0].ElectionID)
	s.Equal(1.0, matches[0].Confidence)
	s.False(matches[0].Unresolved)
}

func (s *ReconcilerSuite) TestExactNormalizedNameRoundTrip() {
	s.seedElection("elec-1", "", "GA", "US Senate", nov3)
	s.seedCandidate("cand-1", "Maria Lopez", "elec-1")

	matches, err := s.reconciler.Reconcile(context.Background(), []models.SourceCandidate{
		{Name: "  Sen. MARIA   LOPEZ Jr. ", Jurisdiction: "GA", Office: "U.S. Senate"},
	})
	s.Require().NoError(err)
	s.Require().Len(matches, 1)

	m := matches[0]
	s.False(m.Unresolved, "exact normalized match is never a coverage gap")
	s.Equal(MethodExactName, m.Method)
	s.Equal("cand-1", m.CandidateID)
	s.Equal(1.0, m.Confidence)
}

func (s *ReconcilerSuite) TestFuzzyMatchWithinScope() {
	s.seedElection("elec-1", "", "GA", "US Senate", nov3)
	s.seedCandidate("cand-1", "Maria Lopez", "elec-1")

	s.Run("single-typo surname resolves above threshold", func() {
		matches, err := s.reconciler.Reconcile(context.Background(), []models.SourceCandidate{
			{Name: "Maria Lopes", Jurisdiction: "GA", Office: "US Senate"},
		})
		s.Require().NoError(err)
		m := matches[0]
		s.False(m.Unresolved)
		s.Equal(MethodFuzzyName, m.Method)
		s.Equal("elec-1", m.ElectionID)
		s.Greater(m.Confidence, DefaultThreshold)
	})

	s.Run("unrelated name is a no-match, not a guess", func() {
		matches, err := s.reconciler.Reconcile(context.Background(), []models.SourceCandidate{
			{Name: "Devon Ackerman", Jurisdiction: "GA", Office: "US Senate"},
		})
		s.Require().NoError(err)
		s.True(matches[0].Unresolved)
		s.Equal(ReasonNoMatch, matches[0].Reason)
	})

	s.Run("wrong jurisdiction never matches", func() {
		matches, err := s.reconciler.Reconcile(context.Background(), []models.SourceCandidate{
			{Name: "Maria Lopez", Jurisdiction: "TX", Office: "US Senate"},
		})
		s.Require().NoError(err)
		s.True(matches[0].Unresolved)
	})
}

func (s *ReconcilerSuite) TestTieBreaks() {
	s.Run("nearest election date wins", func() {
		s.SetupTest()
		s.seedElection("elec-near", "", "GA", "US Senate", nov3)
		s.seedElection("elec-far", "", "GA", "US Senate", nov3.AddDate(0, 0, 84))
		s.seedCandidate("cand-near", "Maria Lopez", "elec-near")
		s.seedCandidate("cand-far", "Maria Lopez", "elec-far")

		stated := nov3.AddDate(0, 0, 2)
		matches, err := s.reconciler.Reconcile(context.Background(), []models.SourceCandidate{
			{Name: "Maria Lopez", Jurisdiction: "GA", Office: "US Senate", ElectionDate: &stated},
		})
		s.Require().NoError(err)
		s.False(matches[0].Unresolved)
		s.Equal("elec-near", matches[0].ElectionID)
	})

	s.Run("residual tie is ambiguous, not guessed", func() {
		s.SetupTest()
		s.seedElection("elec-a", "", "GA", "US Senate", nov3)
		s.seedElection("elec-b", "", "GA", "US Senate", nov3)
		s.seedCandidate("cand-a", "Maria Lopez", "elec-a")
		s.seedCandidate("cand-b", "Maria Lopez", "elec-b")

		matches, err := s.reconciler.Reconcile(context.Background(), []models.SourceCandidate{
			{Name: "Maria Lopez", Jurisdiction: "GA", Office: "US Senate"},
		})
		s.Require().NoError(err)
		s.True(matches[0].Unresolved)
		s.Equal(ReasonAmbiguous, matches[0].Reason)
	})
}

func (s *ReconcilerSuite) TestApplyMatches() {
	s.seedElection("elec-1", "ext-100", "GA", "US Senate", nov3)

	matches, err := s.reconciler.Reconcile(context.Background(), []models.SourceCandidate{
		{Name: "Maria Lopez", Party: "Independent", ExternalID: "ext-100"},
	})
	s.Require().NoError(err)

	created, err := s.reconciler.ApplyMatches(context.Background(), matches)
	s.Require().NoError(err)
	s.Require().Len(created, 1)
	s.Equal("elec-1", created[0].ElectionID)
	s.Equal("Maria Lopez", created[0].Name)

	linked, err := s.store.ListCandidatesByElection(context.Background(), "elec-1")
	s.Require().NoError(err)
	s.Len(linked, 1)

	s.Run("matches to existing candidates are not duplicated", func() {
		again, err := s.reconciler.Reconcile(context.Background(), []models.SourceCandidate{
			{Name: "Maria Lopez", Jurisdiction: "GA", Office: "US Senate"},
		})
		s.Require().NoError(err)
		s.Equal(MethodExactName, again[0].Method)

		created, err := s.reconciler.ApplyMatches(context.Background(), again)
		s.Require().NoError(err)
		s.Empty(created)
	})
}

func (s *ReconcilerSuite) TestCoverage() {
	ctx := context.Background()

	s.Run("fully covered corpus reports no gaps", func() {
		s.SetupTest()
		for i := 0; i < 120; i++ {
			id := fmt.Sprintf("elec-%03d", i)
			s.seedElection(id, "", "GA", "State House", nov3.AddDate(0, 0, i%30))
			s.seedCandidate("cand-"+id, fmt.Sprintf("Candidate %d", i), id)
		}

		gaps, err := s.reconciler.MissingCandidates(ctx, nov3.AddDate(0, 0, -7), nov3.AddDate(0, 0, 60))
		s.Require().NoError(err)
		s.Empty(gaps)
	})

	s.Run("unlinking one election surfaces exactly that election", func() {
		s.SetupTest()
		for i := 0; i < 5; i++ {
			id := fmt.Sprintf("elec-%d", i)
			s.seedElection(id, "", "GA", "State House", nov3)
			if i != 3 {
				s.seedCandidate("cand-"+id, fmt.Sprintf("Candidate %d", i), id)
			}
		}

		gaps, err := s.reconciler.MissingCandidates(ctx, nov3.AddDate(0, 0, -7), nov3.AddDate(0, 0, 7))
		s.Require().NoError(err)
		s.Require().Len(gaps, 1)
		s.Equal("elec-3", gaps[0].ElectionID)
	})

	s.Run("gaps outside the window are not reported", func() {
		s.SetupTest()
		s.seedElection("elec-out", "", "GA", "State House", nov3.AddDate(1, 0, 0))

		gaps, err := s.reconciler.MissingCandidates(ctx, nov3.AddDate(0, 0, -7), nov3.AddDate(0, 0, 60))
		s.Require().NoError(err)
		s.Empty(gaps)
	})

	s.Run("inactive elections are exempt", func() {
		s.SetupTest()
		s.Require().NoError(s.store.PutElection(ctx, &models.ElectionRecord{
			ID: "elec-inactive", Title: "Cancelled Election", Jurisdiction: "GA",
			Date: nov3, Level: models.LevelState, Type: models.TypeGeneral, Active: false,
		}))

		gaps, err := s.reconciler.MissingCandidates(ctx, nov3.AddDate(0, 0, -7), nov3.AddDate(0, 0, 7))
		s.Require().NoError(err)
		s.Empty(gaps)
	})
}
