package auditrun

import (
	"context"
	"sort"
	"sync"

	"steward/internal/steward/models"
	"steward/pkg/platform/sentinel"
)

// InMemoryStore implements Store for tests and local development.
type InMemoryStore struct {
	mu   sync.RWMutex
	runs map[string]*models.AuditRun
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{runs: make(map[string]*models.AuditRun)}
}

func (s *InMemoryStore) Create(_ context.Context, run *models.AuditRun) error {
	if run == nil || run.ID == "" {
		return sentinel.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.runs[run.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := cloneRun(run)
	s.runs[run.ID] = cp
	return nil
}

func (s *InMemoryStore) MarkRunning(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if run.Status != models.RunPending {
		return sentinel.ErrInvalidState
	}
	run.Status = models.RunRunning
	return nil
}

func (s *InMemoryStore) Complete(ctx context.Context, run *models.AuditRun) error {
	return s.finalize(run, models.RunCompleted)
}

func (s *InMemoryStore) Fail(ctx context.Context, run *models.AuditRun) error {
	return s.finalize(run, models.RunFailed)
}

func (s *InMemoryStore) finalize(run *models.AuditRun, status models.RunStatus) error {
	if run == nil || run.ID == "" {
		return sentinel.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.runs[run.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Terminal() {
		return sentinel.ErrInvalidState
	}
	cp := cloneRun(run)
	cp.Status = status
	s.runs[run.ID] = cp
	return nil
}

func (s *InMemoryStore) GetByID(_ context.Context, id string) (*models.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneRun(run), nil
}

func (s *InMemoryStore) List(_ context.Context, limit int) ([]*models.AuditRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.AuditRun, 0, len(s.runs))
	for _, run := range s.runs {
		out = append(out, cloneRun(run))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneRun(run *models.AuditRun) *models.AuditRun {
	cp := *run
	cp.Policies = append([]models.PolicyID(nil), run.Policies...)
	cp.Findings = append([]models.Finding(nil), run.Findings...)
	cp.Actions = append([]models.RemediationAction(nil), run.Actions...)
	if run.FindingCounts != nil {
		cp.FindingCounts = make(map[models.PolicyID]int, len(run.FindingCounts))
		for k, v := range run.FindingCounts {
			cp.FindingCounts[k] = v
		}
	}
	if run.CompletedAt != nil {
		t := *run.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
