package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "steward/pkg/domain-errors"
)

func TestParseElection(t *testing.T) {
	valid := ElectionInput{
		ID:           "elec-1",
		Title:        "Statewide General Election",
		Jurisdiction: "ga",
		Date:         "2026-11-03",
		Level:        "state",
		Type:         "general",
	}

	t.Run("normalizes jurisdiction and date", func(t *testing.T) {
		rec, err := ParseElection(valid)
		require.NoError(t, err)
		assert.Equal(t, "GA", rec.Jurisdiction)
		assert.Equal(t, time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC), rec.Date)
		assert.True(t, rec.Active, "active defaults to true")
	})

	t.Run("rejects malformed payloads", func(t *testing.T) {
		cases := []struct {
			name   string
			mutate func(*ElectionInput)
		}{
			{"missing title", func(in *ElectionInput) { in.Title = "  " }},
			{"bad jurisdiction", func(in *ElectionInput) { in.Jurisdiction = "Georgia" }},
			{"bad date", func(in *ElectionInput) { in.Date = "11/03/2026" }},
			{"unknown level", func(in *ElectionInput) { in.Level = "county" }},
			{"unknown type", func(in *ElectionInput) { in.Type = "recall" }},
			{"provenance without type", func(in *ElectionInput) { in.Provenance = &Provenance{URL: "https://example.gov"} }},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				in := valid
				tc.mutate(&in)
				_, err := ParseElection(in)
				require.Error(t, err)
				assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))
			})
		}
	})

	t.Run("empty jurisdiction means federal-only", func(t *testing.T) {
		in := valid
		in.Jurisdiction = ""
		in.Level = "federal"
		rec, err := ParseElection(in)
		require.NoError(t, err)
		assert.Empty(t, rec.Jurisdiction)
	})
}

func TestParseCandidate(t *testing.T) {
	support := 47.5
	source := "StatePoll Research"
	update := "2026-08-20T12:00:00Z"
	trend := "up"

	valid := CandidateInput{
		ID:                "cand-1",
		Name:              "Jordan Alvarez",
		ElectionID:        "elec-1",
		PollingSupport:    &support,
		PollingSource:     &source,
		LastPollingUpdate: &update,
		PollingTrend:      &trend,
	}

	t.Run("parses polling fields", func(t *testing.T) {
		rec, err := ParseCandidate(valid)
		require.NoError(t, err)
		require.NotNil(t, rec.LastPollingUpdate)
		assert.Equal(t, 2026, rec.LastPollingUpdate.Year())
		require.NotNil(t, rec.PollingTrend)
		assert.Equal(t, TrendUp, *rec.PollingTrend)
	})

	t.Run("rejects out-of-range values", func(t *testing.T) {
		bad := valid
		over := 104.0
		bad.PollingSupport = &over
		_, err := ParseCandidate(bad)
		require.Error(t, err)
		assert.Equal(t, dErrors.CodeInvalidInput, dErrors.CodeOf(err))

		bad = valid
		negative := int64(-10)
		bad.VotesReceived = &negative
		_, err = ParseCandidate(bad)
		require.Error(t, err)
	})

	t.Run("requires election linkage", func(t *testing.T) {
		bad := valid
		bad.ElectionID = ""
		_, err := ParseCandidate(bad)
		require.Error(t, err)
	})

	t.Run("rejects bad timestamp", func(t *testing.T) {
		bad := valid
		stale := "yesterday"
		bad.LastPollingUpdate = &stale
		_, err := ParseCandidate(bad)
		require.Error(t, err)
	})
}
