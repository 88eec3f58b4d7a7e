// Package models defines the canonical election and candidate record shapes.
// Everything downstream (rules, authenticity, reconciliation) operates on
// these already-validated types; loosely-typed inbound payloads must pass
// through the Parse functions in this package first.
package models

import "time"

// Level classifies the jurisdiction tier of an election.
type Level string

const (
	LevelFederal Level = "federal"
	LevelState   Level = "state"
	LevelLocal   Level = "local"
)

// IsValid checks if the level is one of the supported enum values.
func (l Level) IsValid() bool {
	switch l {
	case LevelFederal, LevelState, LevelLocal:
		return true
	}
	return false
}

// Type classifies how an election was ordered.
type Type string

const (
	TypeGeneral Type = "general"
	TypePrimary Type = "primary"
	TypeSpecial Type = "special"
	TypeRunoff  Type = "runoff"
)

// IsValid checks if the type is one of the supported enum values.
func (t Type) IsValid() bool {
	switch t {
	case TypeGeneral, TypePrimary, TypeSpecial, TypeRunoff:
		return true
	}
	return false
}

// ProvenanceType identifies the legal authority attesting to an election.
type ProvenanceType string

const (
	ProvenanceGovernorProclamation ProvenanceType = "governor_proclamation"
	ProvenanceStatute              ProvenanceType = "statute"
	ProvenanceCourtOrder           ProvenanceType = "court_order"
)

// Provenance records the legal authority ordering an election together with
// the source document link.
type Provenance struct {
	Type ProvenanceType `json:"type"`
	URL  string         `json:"url"`
}

// ElectionRecord is the canonical persisted shape of one election. Date is
// timezone-naive and legally significant: it is always stored at midnight UTC
// and compared by calendar day, never by instant.
type ElectionRecord struct {
	ID           string      `json:"id"`
	ExternalID   string      `json:"external_id,omitempty"`
	Title        string      `json:"title"`
	Description  string      `json:"description,omitempty"`
	Jurisdiction string      `json:"jurisdiction,omitempty"` // two uppercase letters, or empty for federal-only
	Office       string      `json:"office,omitempty"`
	Date         time.Time   `json:"date"`
	Level        Level       `json:"level"`
	Type         Type        `json:"type"`
	Provenance   *Provenance `json:"provenance,omitempty"`
	Active       bool        `json:"active"`
}

// PollingTrend summarizes recent movement in a candidate's polling support.
type PollingTrend string

const (
	TrendUp     PollingTrend = "up"
	TrendDown   PollingTrend = "down"
	TrendStable PollingTrend = "stable"
)

// CandidateRecord is the canonical persisted shape of one candidacy. Polling
// and result fields are pointers because absence is meaningful: a nil value is
// honest missing data, a non-nil value without a source is a finding.
type CandidateRecord struct {
	ID         string `json:"id"`
	ExternalID string `json:"external_id,omitempty"`
	Name       string `json:"name"`
	Party      string `json:"party,omitempty"`
	ElectionID string `json:"election_id"`
	Incumbent  bool   `json:"incumbent"`

	PollingSupport    *float64      `json:"polling_support,omitempty"` // percent in [0,100]
	PollingSource     *string       `json:"polling_source,omitempty"`
	LastPollingUpdate *time.Time    `json:"last_polling_update,omitempty"`
	PollingTrend      *PollingTrend `json:"polling_trend,omitempty"`

	VotePercentage  *float64 `json:"vote_percentage,omitempty"`
	VotesReceived   *int64   `json:"votes_received,omitempty"`
	ResultSource    *string  `json:"result_source,omitempty"`
	ResultCertified bool     `json:"result_certified"`
}

// PollingSnapshot captures the polling fields of a candidate at one instant.
// Remediation actions record a before/after pair of these.
type PollingSnapshot struct {
	PollingSupport    *float64      `json:"polling_support,omitempty"`
	PollingSource     *string       `json:"polling_source,omitempty"`
	LastPollingUpdate *time.Time    `json:"last_polling_update,omitempty"`
	PollingTrend      *PollingTrend `json:"polling_trend,omitempty"`
}

// PollingFields extracts the current polling snapshot from a candidate.
func (c *CandidateRecord) PollingFields() PollingSnapshot {
	return PollingSnapshot{
		PollingSupport:    c.PollingSupport,
		PollingSource:     c.PollingSource,
		LastPollingUpdate: c.LastPollingUpdate,
		PollingTrend:      c.PollingTrend,
	}
}

// SourceCandidate is an inbound candidate descriptor handed to the reconciler
// by the ingestion layer. It is transient and never persisted as-is.
type SourceCandidate struct {
	Name         string     `json:"name"`
	Party        string     `json:"party,omitempty"`
	Jurisdiction string     `json:"jurisdiction,omitempty"`
	Office       string     `json:"office,omitempty"`
	ExternalID   string     `json:"external_id,omitempty"`
	ElectionDate *time.Time `json:"election_date,omitempty"`
}
