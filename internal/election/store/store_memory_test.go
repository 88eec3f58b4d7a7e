package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"steward/internal/election/models"
	"steward/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) seedElections(n int) {
	for i := 0; i < n; i++ {
		err := s.store.PutElection(context.Background(), &models.ElectionRecord{
			ID:           fmt.Sprintf("elec-%03d", i),
			Title:        fmt.Sprintf("General Election %d", i),
			Jurisdiction: "GA",
			Date:         time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC),
			Level:        models.LevelState,
			Type:         models.TypeGeneral,
			Active:       true,
		})
		s.Require().NoError(err)
	}
}

func (s *MemoryStoreSuite) TestElectionLookup() {
	s.Run("returns ErrNotFound for unknown id", func() {
		_, err := s.store.GetElection(context.Background(), "missing")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returns a copy, not the stored record", func() {
		s.seedElections(1)
		rec, err := s.store.GetElection(context.Background(), "elec-000")
		s.Require().NoError(err)

		rec.Title = "mutated"
		again, err := s.store.GetElection(context.Background(), "elec-000")
		s.Require().NoError(err)
		s.Equal("General Election 0", again.Title)
	})
}

func (s *MemoryStoreSuite) TestElectionPagination() {
	s.seedElections(5)

	var (
		cursor string
		seen   []string
		pages  int
	)
	for {
		page, err := s.store.ListElections(context.Background(), cursor, 2)
		s.Require().NoError(err)
		pages++
		for _, rec := range page.Records {
			seen = append(seen, rec.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}

	s.Equal(3, pages)
	s.Len(seen, 5)
	s.IsIncreasing(seen, "keyset pagination yields each record once, in order")
}

func (s *MemoryStoreSuite) TestCandidateLinkage() {
	s.seedElections(2)
	for i := 0; i < 3; i++ {
		err := s.store.PutCandidate(context.Background(), &models.CandidateRecord{
			ID:         fmt.Sprintf("cand-%d", i),
			Name:       fmt.Sprintf("Candidate %d", i),
			ElectionID: "elec-000",
		})
		s.Require().NoError(err)
	}

	linked, err := s.store.ListCandidatesByElection(context.Background(), "elec-000")
	s.Require().NoError(err)
	s.Len(linked, 3)

	empty, err := s.store.ListCandidatesByElection(context.Background(), "elec-001")
	s.Require().NoError(err)
	s.Empty(empty)
}

func (s *MemoryStoreSuite) TestUpdateCandidatePolling() {
	support := 41.0
	source := "somewhere"
	now := time.Now().UTC()
	err := s.store.PutCandidate(context.Background(), &models.CandidateRecord{
		ID:                "cand-1",
		Name:              "Riley Chen",
		ElectionID:        "elec-000",
		PollingSupport:    &support,
		PollingSource:     &source,
		LastPollingUpdate: &now,
	})
	s.Require().NoError(err)

	s.Run("clears all polling fields", func() {
		err := s.store.UpdateCandidatePolling(context.Background(), "cand-1", models.PollingSnapshot{})
		s.Require().NoError(err)

		rec, err := s.store.GetCandidate(context.Background(), "cand-1")
		s.Require().NoError(err)
		s.Nil(rec.PollingSupport)
		s.Nil(rec.PollingSource)
		s.Nil(rec.LastPollingUpdate)
		s.Nil(rec.PollingTrend)
	})

	s.Run("unknown candidate id fails", func() {
		err := s.store.UpdateCandidatePolling(context.Background(), "ghost", models.PollingSnapshot{})
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}
