package authenticity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"steward/internal/election/models"
)

var evalTime = time.Date(2026, time.August, 31, 12, 0, 0, 0, time.UTC)

func newClassifier() *Classifier {
	return New(Config{
		VerifiedPollingSources: []string{"StatePoll Research", "Civic Survey Group"},
		OfficialResultSources:  []string{"Secretary of State", "County Board of Elections"},
	})
}

func ptr[T any](v T) *T { return &v }

func pollingCandidate(source *string, updatedAt *time.Time) *models.CandidateRecord {
	return &models.CandidateRecord{
		ID: "cand-1", Name: "Jordan Alvarez", ElectionID: "elec-1",
		PollingSupport:    ptr(47.5),
		PollingSource:     source,
		LastPollingUpdate: updatedAt,
	}
}

func TestAuthenticPolling(t *testing.T) {
	c := newClassifier()
	fresh := evalTime.Add(-48 * time.Hour)
	stale := evalTime.Add(-9 * 24 * time.Hour)

	t.Run("verified source with fresh update is authentic", func(t *testing.T) {
		r := c.Classify(pollingCandidate(ptr("StatePoll Research"), &fresh), evalTime)
		assert.True(t, r.HasAuthenticPolling)
		assert.False(t, r.UnsourcedPolling)
	})

	t.Run("source matching is case-insensitive", func(t *testing.T) {
		r := c.Classify(pollingCandidate(ptr("  statepoll research "), &fresh), evalTime)
		assert.True(t, r.HasAuthenticPolling)
	})

	t.Run("stale update is never authentic", func(t *testing.T) {
		r := c.Classify(pollingCandidate(ptr("StatePoll Research"), &stale), evalTime)
		assert.False(t, r.HasAuthenticPolling)
		assert.True(t, r.StalePolling)
	})

	t.Run("unknown source is never authentic", func(t *testing.T) {
		r := c.Classify(pollingCandidate(ptr("some blog"), &fresh), evalTime)
		assert.False(t, r.HasAuthenticPolling)
	})

	t.Run("support without source is flagged unsourced", func(t *testing.T) {
		r := c.Classify(pollingCandidate(nil, nil), evalTime)
		assert.False(t, r.HasAuthenticPolling)
		assert.True(t, r.UnsourcedPolling)
	})

	t.Run("empty source string counts as unsourced", func(t *testing.T) {
		r := c.Classify(pollingCandidate(ptr("   "), &fresh), evalTime)
		assert.True(t, r.UnsourcedPolling)
	})
}

func TestAuthenticVotes(t *testing.T) {
	c := newClassifier()

	base := func() *models.CandidateRecord {
		return &models.CandidateRecord{
			ID: "cand-2", Name: "Riley Chen", ElectionID: "elec-1",
			VotePercentage:  ptr(52.1),
			VotesReceived:   ptr(int64(120443)),
			ResultSource:    ptr("Secretary of State"),
			ResultCertified: true,
		}
	}

	t.Run("certified official result with both values is authentic", func(t *testing.T) {
		r := c.Classify(base(), evalTime)
		assert.True(t, r.HasAuthenticVotes)
	})

	t.Run("uncertified result is not authentic", func(t *testing.T) {
		cand := base()
		cand.ResultCertified = false
		assert.False(t, c.Classify(cand, evalTime).HasAuthenticVotes)
	})

	t.Run("unofficial source is not authentic", func(t *testing.T) {
		cand := base()
		cand.ResultSource = ptr("exit poll aggregate")
		assert.False(t, c.Classify(cand, evalTime).HasAuthenticVotes)
	})

	t.Run("missing vote count is not authentic", func(t *testing.T) {
		cand := base()
		cand.VotesReceived = nil
		assert.False(t, c.Classify(cand, evalTime).HasAuthenticVotes)
	})
}

func TestQualityTiers(t *testing.T) {
	c := newClassifier()
	fresh := evalTime.Add(-24 * time.Hour)

	t.Run("both signals authentic is excellent", func(t *testing.T) {
		cand := pollingCandidate(ptr("Civic Survey Group"), &fresh)
		cand.VotePercentage = ptr(48.8)
		cand.VotesReceived = ptr(int64(98231))
		cand.ResultSource = ptr("County Board of Elections")
		cand.ResultCertified = true
		assert.Equal(t, TierExcellent, c.Classify(cand, evalTime).Quality)
	})

	t.Run("one authentic signal and nothing tainted is good", func(t *testing.T) {
		cand := pollingCandidate(ptr("Civic Survey Group"), &fresh)
		assert.Equal(t, TierGood, c.Classify(cand, evalTime).Quality)
	})

	t.Run("authentic polling next to unverified votes is fair", func(t *testing.T) {
		cand := pollingCandidate(ptr("Civic Survey Group"), &fresh)
		cand.VotePercentage = ptr(44.0)
		assert.Equal(t, TierFair, c.Classify(cand, evalTime).Quality)
	})

	t.Run("unsourced polling alone is poor", func(t *testing.T) {
		cand := pollingCandidate(nil, nil)
		assert.Equal(t, TierPoor, c.Classify(cand, evalTime).Quality)
	})

	t.Run("unsourced values never reach excellent", func(t *testing.T) {
		cand := pollingCandidate(nil, nil)
		cand.VotePercentage = ptr(50.0)
		cand.VotesReceived = ptr(int64(1000))
		cand.ResultSource = ptr("Secretary of State")
		cand.ResultCertified = true
		r := c.Classify(cand, evalTime)
		assert.True(t, r.HasAuthenticVotes)
		assert.NotEqual(t, TierExcellent, r.Quality)
	})

	t.Run("no data at all is fair", func(t *testing.T) {
		cand := &models.CandidateRecord{ID: "cand-3", Name: "Sam Osei", ElectionID: "elec-1"}
		assert.Equal(t, TierFair, c.Classify(cand, evalTime).Quality)
	})
}
