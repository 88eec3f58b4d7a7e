// Package service composes the rule validator, authenticity classifier, and
// reconciler into named policies, runs them across the record corpus, and
// owns the audit-run lifecycle.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"steward/internal/authenticity"
	"steward/internal/election/store"
	"steward/internal/reconcile"
	"steward/internal/rules"
	"steward/internal/steward/lock"
	"steward/internal/steward/metrics"
	"steward/internal/steward/models"
	"steward/internal/steward/store/auditrun"
	"steward/internal/steward/store/policy"
	dErrors "steward/pkg/domain-errors"
	"steward/pkg/platform/events"
	"steward/pkg/platform/sentinel"
)

// registeredPolicies is the full policy catalog seeded at process start.
// Toggle state persisted from earlier runs survives re-seeding.
var registeredPolicies = []models.Policy{
	{
		ID:       models.PolicyElectionLaw,
		Label:    "Jurisdiction election-law compliance",
		Category: models.CategoryLegal,
		Enabled:  true,
	},
	{
		ID:       models.PolicyMockData,
		Label:    "Placeholder and mock data detection",
		Category: models.CategoryLegal,
		Enabled:  true,
	},
	{
		ID:          models.PolicyPollingAuthenticity,
		Label:       "Polling data authenticity",
		Category:    models.CategoryAuthenticity,
		Enabled:     true,
		AutoFixable: true,
	},
	{
		ID:       models.PolicyResultAuthenticity,
		Label:    "Vote result authenticity",
		Category: models.CategoryAuthenticity,
		Enabled:  true,
	},
	{
		ID:       models.PolicyCandidateCoverage,
		Label:    "Candidate coverage for upcoming elections",
		Category: models.CategoryCoverage,
		Enabled:  true,
	},
}

// Service is the audit orchestrator. It holds no mutable state beyond what
// its stores persist; the policy registry lives in the policy store and is
// re-read at the start of every run, so toggles are visible without restart.
type Service struct {
	records    store.RecordStore
	policies   policy.Store
	runs       auditrun.Store
	validator  *rules.Validator
	classifier *authenticity.Classifier
	reconciler *reconcile.Reconciler
	runLock    lock.RunLock

	publisher      events.Publisher
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time
	coverageWindow time.Duration
	workers        int
}

// Option configures the Service.
type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithClock fixes the evaluation time source; tests pin it for reproducible
// freshness and temporal-sanity checks.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithCoverageWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.coverageWindow = window
		}
	}
}

// WithWorkers bounds the validate/classify fan-out per page.
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

func New(
	records store.RecordStore,
	policies policy.Store,
	runs auditrun.Store,
	validator *rules.Validator,
	classifier *authenticity.Classifier,
	reconciler *reconcile.Reconciler,
	runLock lock.RunLock,
	opts ...Option,
) (*Service, error) {
	if records == nil {
		return nil, fmt.Errorf("record store is required")
	}
	if policies == nil {
		return nil, fmt.Errorf("policy store is required")
	}
	if runs == nil {
		return nil, fmt.Errorf("audit run store is required")
	}
	if validator == nil || classifier == nil || reconciler == nil {
		return nil, fmt.Errorf("validator, classifier, and reconciler are required")
	}
	if runLock == nil {
		return nil, fmt.Errorf("run lock is required")
	}

	s := &Service{
		records:        records,
		policies:       policies,
		runs:           runs,
		validator:      validator,
		classifier:     classifier,
		reconciler:     reconciler,
		runLock:        runLock,
		publisher:      events.Noop{},
		logger:         slog.Default(),
		now:            time.Now,
		coverageWindow: reconcile.DefaultCoverageWindow,
		workers:        8,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RegisterPolicies seeds the policy catalog. Called once at startup;
// idempotent across restarts.
func (s *Service) RegisterPolicies(ctx context.Context) error {
	for i := range registeredPolicies {
		p := registeredPolicies[i]
		if err := s.policies.Seed(ctx, &p); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("seed policy %s", p.ID))
		}
	}
	return nil
}

// ListPolicies returns the non-archived policy catalog with current toggle
// state.
func (s *Service) ListPolicies(ctx context.Context) ([]*models.Policy, error) {
	list, err := s.policies.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list policies")
	}
	return list, nil
}

// TogglePolicy enables or disables detection for one policy. The change is
// durable and visible to the next run without a restart.
func (s *Service) TogglePolicy(ctx context.Context, id models.PolicyID, enabled bool) (*models.Policy, error) {
	p, err := s.policies.SetEnabled(ctx, id, enabled)
	if err != nil {
		return nil, translatePolicyErr(err, id)
	}
	s.emit(ctx, events.Event{
		Type:      events.EventPolicyToggled,
		Timestamp: s.now(),
		PolicyID:  string(id),
		Detail:    map[string]string{"enabled": fmt.Sprintf("%t", enabled)},
	})
	s.logger.InfoContext(ctx, "policy toggled", "policy", id, "enabled", enabled)
	return p, nil
}

// ToggleAutoFix enables or disables the remediation gate for one policy.
// Toggling auto-fix on a policy that has no remediation is rejected.
func (s *Service) ToggleAutoFix(ctx context.Context, id models.PolicyID, enabled bool) (*models.Policy, error) {
	current, err := s.policies.Get(ctx, id)
	if err != nil {
		return nil, translatePolicyErr(err, id)
	}
	if enabled && !current.AutoFixable {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "policy %s has no auto-fix", id)
	}
	p, err := s.policies.SetAutoFix(ctx, id, enabled)
	if err != nil {
		return nil, translatePolicyErr(err, id)
	}
	s.emit(ctx, events.Event{
		Type:      events.EventPolicyAutoFix,
		Timestamp: s.now(),
		PolicyID:  string(id),
		Detail:    map[string]string{"enabled": fmt.Sprintf("%t", enabled)},
	})
	return p, nil
}

// ArchivePolicy retires a policy from the active catalog while keeping its
// record and toggle history.
func (s *Service) ArchivePolicy(ctx context.Context, id models.PolicyID) error {
	if err := s.policies.Archive(ctx, id); err != nil {
		return translatePolicyErr(err, id)
	}
	s.logger.InfoContext(ctx, "policy archived", "policy", id)
	return nil
}

// GetRun retrieves one audit run by id. Runs are retrievable indefinitely.
func (s *Service) GetRun(ctx context.Context, id string) (*models.AuditRun, error) {
	run, err := s.runs.GetByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "audit run %s not found", id)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get audit run")
	}
	return run, nil
}

// ListRuns returns recent runs, newest first.
func (s *Service) ListRuns(ctx context.Context, limit int) ([]*models.AuditRun, error) {
	runs, err := s.runs.List(ctx, limit)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list audit runs")
	}
	return runs, nil
}

func (s *Service) emit(ctx context.Context, event events.Event) {
	if err := s.publisher.Publish(ctx, event); err != nil {
		// Lifecycle events are observability, not ledger: log and move on.
		s.logger.WarnContext(ctx, "event publish failed",
			"type", event.Type,
			"error", err,
		)
	}
}

func translatePolicyErr(err error, id models.PolicyID) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Newf(dErrors.CodeNotFound, "policy %s not found", id)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "policy store")
}
