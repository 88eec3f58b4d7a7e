// Package policy persists the togglable integrity policies. Policies are
// seeded at process start, mutated only by explicit toggles, and archived
// rather than deleted.
package policy

import (
	"context"

	"steward/internal/steward/models"
)

// Store is the persistence contract for policies. Implementations return
// sentinel.ErrNotFound for unknown ids.
type Store interface {
	// Seed registers a policy if absent. Existing toggle state is never
	// overwritten; seeding is idempotent across restarts.
	Seed(ctx context.Context, p *models.Policy) error
	Get(ctx context.Context, id models.PolicyID) (*models.Policy, error)
	// List returns all non-archived policies in stable id order.
	List(ctx context.Context) ([]*models.Policy, error)
	SetEnabled(ctx context.Context, id models.PolicyID, enabled bool) (*models.Policy, error)
	SetAutoFix(ctx context.Context, id models.PolicyID, enabled bool) (*models.Policy, error)
	Archive(ctx context.Context, id models.PolicyID) error
}
