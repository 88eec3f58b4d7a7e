// Package authenticity scores candidate records by how well-sourced their
// polling and result data is. This is pure domain logic - no I/O, no side
// effects. The verified-source allow-lists arrive through Config at
// construction time; nothing in this package mutates shared state.
package authenticity

import (
	"strings"
	"time"

	"steward/internal/election/models"
)

// Tier is the four-level data quality rating. Order matters:
// excellent > good > fair > poor.
type Tier string

const (
	TierExcellent Tier = "excellent"
	TierGood      Tier = "good"
	TierFair      Tier = "fair"
	TierPoor      Tier = "poor"
)

// DefaultPollingMaxAge is how recent a polling update must be to count as
// live data.
const DefaultPollingMaxAge = 7 * 24 * time.Hour

// Config carries the source allow-lists and freshness window. Built once from
// configuration and passed in explicitly; the classifier never reads package
// globals.
type Config struct {
	// VerifiedPollingSources are organizations whose polling numbers count
	// as authentic. Matching is case-insensitive on the trimmed name.
	VerifiedPollingSources []string
	// OfficialResultSources are authorities whose certified results count
	// as authentic.
	OfficialResultSources []string
	// PollingMaxAge overrides DefaultPollingMaxAge when positive.
	PollingMaxAge time.Duration
}

// Report is the classifier's verdict on one candidate record.
type Report struct {
	HasAuthenticPolling bool `json:"has_authentic_polling"`
	HasAuthenticVotes   bool `json:"has_authentic_votes"`
	// UnsourcedPolling marks a pollingSupport value with no source attached:
	// the record is dishonest as presented and eligible for the
	// clear-unsourced-polling remediation.
	UnsourcedPolling bool `json:"unsourced_polling"`
	// StalePolling marks sourced polling older than the freshness window.
	StalePolling bool `json:"stale_polling"`
	Quality      Tier `json:"quality"`
}

// Classifier scores candidate records against the configured allow-lists.
type Classifier struct {
	verifiedPolling map[string]bool
	officialResults map[string]bool
	maxAge          time.Duration
}

func New(cfg Config) *Classifier {
	c := &Classifier{
		verifiedPolling: make(map[string]bool, len(cfg.VerifiedPollingSources)),
		officialResults: make(map[string]bool, len(cfg.OfficialResultSources)),
		maxAge:          cfg.PollingMaxAge,
	}
	for _, s := range cfg.VerifiedPollingSources {
		c.verifiedPolling[normalizeSource(s)] = true
	}
	for _, s := range cfg.OfficialResultSources {
		c.officialResults[normalizeSource(s)] = true
	}
	if c.maxAge <= 0 {
		c.maxAge = DefaultPollingMaxAge
	}
	return c
}

// Classify evaluates one candidate at the given evaluation time.
func (c *Classifier) Classify(cand *models.CandidateRecord, now time.Time) Report {
	var r Report

	hasPollingValue := cand.PollingSupport != nil
	hasSource := cand.PollingSource != nil && strings.TrimSpace(*cand.PollingSource) != ""

	if hasPollingValue && !hasSource {
		r.UnsourcedPolling = true
	}
	if hasPollingValue && hasSource {
		verified := c.verifiedPolling[normalizeSource(*cand.PollingSource)]
		fresh := cand.LastPollingUpdate != nil && now.Sub(*cand.LastPollingUpdate) <= c.maxAge && !cand.LastPollingUpdate.After(now)
		r.HasAuthenticPolling = verified && fresh
		r.StalePolling = verified && !fresh
	}

	hasVotes := cand.VotePercentage != nil && cand.VotesReceived != nil
	officialResult := cand.ResultSource != nil && c.officialResults[normalizeSource(*cand.ResultSource)]
	r.HasAuthenticVotes = cand.ResultCertified && officialResult && hasVotes

	unverifiedVotes := (cand.VotePercentage != nil || cand.VotesReceived != nil) && !r.HasAuthenticVotes

	r.Quality = quality(r, hasPollingValue, unverifiedVotes)
	return r
}

// quality derives the tier from how many signals are authentic and whether
// unauthenticated values are present. Static or unsourced numbers degrade the
// tier even when not outright invalid; they never reach excellent.
func quality(r Report, hasPollingValue, unverifiedVotes bool) Tier {
	authentic := 0
	if r.HasAuthenticPolling {
		authentic++
	}
	if r.HasAuthenticVotes {
		authentic++
	}
	tainted := r.UnsourcedPolling || r.StalePolling ||
		(hasPollingValue && !r.HasAuthenticPolling && !r.UnsourcedPolling && !r.StalePolling) ||
		unverifiedVotes

	switch {
	case authentic == 2:
		return TierExcellent
	case authentic == 1 && !tainted:
		return TierGood
	case authentic == 1:
		return TierFair
	case tainted:
		return TierPoor
	default:
		// No data at all: sparse but honest.
		return TierFair
	}
}

func normalizeSource(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
