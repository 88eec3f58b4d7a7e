// Package auditrun persists audit runs with append-only log semantics. Runs
// transition pending -> running -> completed|failed and are immutable once
// terminal; compliance review can retrieve any run by id indefinitely.
package auditrun

import (
	"context"

	"steward/internal/steward/models"
)

// Store is the persistence contract for audit runs. Implementations must
// reject transitions out of a terminal status with sentinel.ErrInvalidState.
type Store interface {
	Create(ctx context.Context, run *models.AuditRun) error
	MarkRunning(ctx context.Context, id string) error
	// Complete finalizes a run with its findings and applied actions.
	Complete(ctx context.Context, run *models.AuditRun) error
	// Fail finalizes a run as failed, preserving partial findings for
	// diagnostics.
	Fail(ctx context.Context, run *models.AuditRun) error
	GetByID(ctx context.Context, id string) (*models.AuditRun, error)
	// List returns runs newest-first, bounded by limit.
	List(ctx context.Context, limit int) ([]*models.AuditRun, error)
}
