package models

import (
	"strings"
	"time"

	dErrors "steward/pkg/domain-errors"
)

// ElectionInput is the loosely-typed inbound payload for an election record.
// Parse rejects malformed payloads at the edge so validators and classifiers
// only ever see strict ElectionRecord values.
type ElectionInput struct {
	ID           string      `json:"id"`
	ExternalID   string      `json:"external_id"`
	Title        string      `json:"title"`
	Description  string      `json:"description"`
	Jurisdiction string      `json:"jurisdiction"`
	Office       string      `json:"office"`
	Date         string      `json:"date"` // YYYY-MM-DD
	Level        string      `json:"level"`
	Type         string      `json:"type"`
	Provenance   *Provenance `json:"provenance"`
	Active       *bool       `json:"active"`
}

// DateLayout is the wire format for legally significant calendar dates.
const DateLayout = "2006-01-02"

// ParseElection validates and normalizes a loosely-typed inbound election
// payload into a canonical ElectionRecord.
func ParseElection(in ElectionInput) (*ElectionRecord, error) {
	if strings.TrimSpace(in.Title) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "election title is required")
	}

	jurisdiction := strings.ToUpper(strings.TrimSpace(in.Jurisdiction))
	if jurisdiction != "" && !isStateCode(jurisdiction) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "jurisdiction must be a two-letter state code, got %q", in.Jurisdiction)
	}

	date, err := time.ParseInLocation(DateLayout, in.Date, time.UTC)
	if err != nil {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "date must be in YYYY-MM-DD form, got %q", in.Date)
	}

	level := Level(strings.ToLower(strings.TrimSpace(in.Level)))
	if !level.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown election level %q", in.Level)
	}

	typ := Type(strings.ToLower(strings.TrimSpace(in.Type)))
	if !typ.IsValid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown election type %q", in.Type)
	}

	if in.Provenance != nil && strings.TrimSpace(string(in.Provenance.Type)) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "provenance requires a type")
	}

	active := true
	if in.Active != nil {
		active = *in.Active
	}

	return &ElectionRecord{
		ID:           strings.TrimSpace(in.ID),
		ExternalID:   strings.TrimSpace(in.ExternalID),
		Title:        strings.TrimSpace(in.Title),
		Description:  strings.TrimSpace(in.Description),
		Jurisdiction: jurisdiction,
		Office:       strings.TrimSpace(in.Office),
		Date:         date,
		Level:        level,
		Type:         typ,
		Provenance:   in.Provenance,
		Active:       active,
	}, nil
}

// CandidateInput is the loosely-typed inbound payload for a candidate record.
type CandidateInput struct {
	ID                string   `json:"id"`
	ExternalID        string   `json:"external_id"`
	Name              string   `json:"name"`
	Party             string   `json:"party"`
	ElectionID        string   `json:"election_id"`
	Incumbent         bool     `json:"incumbent"`
	PollingSupport    *float64 `json:"polling_support"`
	PollingSource     *string  `json:"polling_source"`
	LastPollingUpdate *string  `json:"last_polling_update"` // RFC 3339
	PollingTrend      *string  `json:"polling_trend"`
	VotePercentage    *float64 `json:"vote_percentage"`
	VotesReceived     *int64   `json:"votes_received"`
	ResultSource      *string  `json:"result_source"`
	ResultCertified   bool     `json:"result_certified"`
}

// ParseCandidate validates and normalizes a loosely-typed inbound candidate
// payload. Percentages outside [0,100] and negative vote counts are rejected
// rather than clamped.
func ParseCandidate(in CandidateInput) (*CandidateRecord, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "candidate name is required")
	}
	if strings.TrimSpace(in.ElectionID) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "candidate election_id is required")
	}
	if in.PollingSupport != nil && (*in.PollingSupport < 0 || *in.PollingSupport > 100) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "polling_support must be in [0,100], got %v", *in.PollingSupport)
	}
	if in.VotePercentage != nil && (*in.VotePercentage < 0 || *in.VotePercentage > 100) {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "vote_percentage must be in [0,100], got %v", *in.VotePercentage)
	}
	if in.VotesReceived != nil && *in.VotesReceived < 0 {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "votes_received must be non-negative, got %d", *in.VotesReceived)
	}

	var lastUpdate *time.Time
	if in.LastPollingUpdate != nil {
		ts, err := time.Parse(time.RFC3339, *in.LastPollingUpdate)
		if err != nil {
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "last_polling_update must be RFC 3339, got %q", *in.LastPollingUpdate)
		}
		lastUpdate = &ts
	}

	var trend *PollingTrend
	if in.PollingTrend != nil {
		tr := PollingTrend(strings.ToLower(strings.TrimSpace(*in.PollingTrend)))
		switch tr {
		case TrendUp, TrendDown, TrendStable:
			trend = &tr
		default:
			return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown polling_trend %q", *in.PollingTrend)
		}
	}

	return &CandidateRecord{
		ID:                strings.TrimSpace(in.ID),
		ExternalID:        strings.TrimSpace(in.ExternalID),
		Name:              strings.TrimSpace(in.Name),
		Party:             strings.TrimSpace(in.Party),
		ElectionID:        strings.TrimSpace(in.ElectionID),
		Incumbent:         in.Incumbent,
		PollingSupport:    in.PollingSupport,
		PollingSource:     in.PollingSource,
		LastPollingUpdate: lastUpdate,
		PollingTrend:      trend,
		VotePercentage:    in.VotePercentage,
		VotesReceived:     in.VotesReceived,
		ResultSource:      in.ResultSource,
		ResultCertified:   in.ResultCertified,
	}, nil
}

func isStateCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
