// Package models defines the policy and audit-run entities owned by the data
// steward. AuditRun is append-only: once a run reaches a terminal status it
// is never edited, only superseded by new runs.
package models

import (
	"time"

	"steward/internal/election/models"
)

// PolicyID identifies one registered integrity policy.
type PolicyID string

const (
	PolicyElectionLaw         PolicyID = "election_law"
	PolicyMockData            PolicyID = "mock_data"
	PolicyPollingAuthenticity PolicyID = "polling_authenticity"
	PolicyResultAuthenticity  PolicyID = "result_authenticity"
	PolicyCandidateCoverage   PolicyID = "candidate_coverage"
)

// PolicyCategory groups policies for dashboards.
type PolicyCategory string

const (
	CategoryLegal        PolicyCategory = "legal"
	CategoryAuthenticity PolicyCategory = "authenticity"
	CategoryCoverage     PolicyCategory = "coverage"
)

// Policy is a named, togglable integrity check. Policies are created at
// registration (process start), mutated only by explicit toggles, and
// archived rather than deleted so toggles stay auditable.
type Policy struct {
	ID          PolicyID       `json:"id"`
	Label       string         `json:"label"`
	Category    PolicyCategory `json:"category"`
	Enabled     bool           `json:"enabled"`
	AutoFixable bool           `json:"auto_fixable"`
	// AutoFixEnabled gates the remediation independently of detection:
	// a policy can flag records while its fix stays off.
	AutoFixEnabled bool      `json:"auto_fix_enabled"`
	Archived       bool      `json:"archived"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RunStatus is the audit-run state machine: pending -> running ->
// completed | failed. Failed is terminal; a failed run is retried as a new
// run, never resumed.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RecordKind distinguishes which corpus a finding refers to.
type RecordKind string

const (
	KindElection  RecordKind = "election"
	KindCandidate RecordKind = "candidate"
)

// Finding is one structured observation produced by a policy against one
// record. Skipped findings report checks that could not run on a malformed
// record; they never abort the run.
type Finding struct {
	PolicyID PolicyID   `json:"policy_id"`
	RecordID string     `json:"record_id"`
	Kind     RecordKind `json:"kind"`
	Code     string     `json:"code"`
	Message  string     `json:"message"`
	Skipped  bool       `json:"skipped,omitempty"`
}

// RemediationAction records one applied fix as a before/after diff on a
// single record.
type RemediationAction struct {
	PolicyID    PolicyID               `json:"policy_id"`
	CandidateID string                 `json:"candidate_id"`
	Before      models.PollingSnapshot `json:"before"`
	After       models.PollingSnapshot `json:"after"`
	AppliedAt   time.Time              `json:"applied_at"`
}

// AuditRun is one immutable execution record of the policy set against the
// corpus.
type AuditRun struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	DryRun      bool       `json:"dry_run"`
	Policies    []PolicyID `json:"policies"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// FindingCounts keys by policy id; a policy that ran clean appears with
	// a zero count so "evaluated" and "absent" stay distinguishable.
	FindingCounts map[PolicyID]int    `json:"finding_counts"`
	Findings      []Finding           `json:"findings"`
	Actions       []RemediationAction `json:"actions,omitempty"`
	// Error holds the abort cause for failed runs; partial findings
	// gathered before the failure are preserved above.
	Error string `json:"error,omitempty"`
}

// Terminal reports whether the run reached a final status.
func (r *AuditRun) Terminal() bool {
	return r.Status == RunCompleted || r.Status == RunFailed
}
