// Package store defines the record store contract for elections and
// candidates. Reads are paginated so audits never assume the full corpus fits
// in memory; the only write exposed to the engine is the polling remediation
// update.
package store

import (
	"context"

	"steward/internal/election/models"
)

// DefaultPageSize bounds a single page when callers pass limit <= 0.
const DefaultPageSize = 200

// ElectionPage is one page of a streamed election scan. NextCursor is empty
// on the final page.
type ElectionPage struct {
	Records    []*models.ElectionRecord
	NextCursor string
}

// CandidatePage is one page of a streamed candidate scan.
type CandidatePage struct {
	Records    []*models.CandidateRecord
	NextCursor string
}

// RecordStore is the persistence contract the integrity engine depends on.
// Implementations must return sentinel.ErrNotFound for missing ids and
// sentinel.ErrUnavailable (possibly wrapped) for infrastructure failures.
type RecordStore interface {
	GetElection(ctx context.Context, id string) (*models.ElectionRecord, error)
	ListElections(ctx context.Context, cursor string, limit int) (*ElectionPage, error)

	GetCandidate(ctx context.Context, id string) (*models.CandidateRecord, error)
	ListCandidates(ctx context.Context, cursor string, limit int) (*CandidatePage, error)
	// ListCandidatesByElection returns every candidacy linked to one election.
	ListCandidatesByElection(ctx context.Context, electionID string) ([]*models.CandidateRecord, error)

	// UpdateCandidatePolling overwrites the polling fields of one candidate.
	// It exists solely for audit remediation and reconciliation linkage.
	UpdateCandidatePolling(ctx context.Context, candidateID string, fields models.PollingSnapshot) error

	PutElection(ctx context.Context, rec *models.ElectionRecord) error
	PutCandidate(ctx context.Context, rec *models.CandidateRecord) error
}
