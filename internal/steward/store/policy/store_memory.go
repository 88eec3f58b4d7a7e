package policy

import (
	"context"
	"sort"
	"sync"
	"time"

	"steward/internal/steward/models"
	"steward/pkg/platform/sentinel"
)

// InMemoryStore implements Store for tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	policies map[models.PolicyID]*models.Policy
	now      func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		policies: make(map[models.PolicyID]*models.Policy),
		now:      time.Now,
	}
}

func (s *InMemoryStore) Seed(_ context.Context, p *models.Policy) error {
	if p == nil || p.ID == "" {
		return sentinel.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.policies[p.ID]; exists {
		return nil
	}
	cp := *p
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	cp.UpdatedAt = cp.CreatedAt
	s.policies[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id models.PolicyID) (*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*models.Policy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Policy, 0, len(s.policies))
	for _, p := range s.policies {
		if p.Archived {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) SetEnabled(_ context.Context, id models.PolicyID, enabled bool) (*models.Policy, error) {
	return s.mutate(id, func(p *models.Policy) { p.Enabled = enabled })
}

func (s *InMemoryStore) SetAutoFix(_ context.Context, id models.PolicyID, enabled bool) (*models.Policy, error) {
	return s.mutate(id, func(p *models.Policy) { p.AutoFixEnabled = enabled })
}

func (s *InMemoryStore) Archive(_ context.Context, id models.PolicyID) error {
	_, err := s.mutate(id, func(p *models.Policy) { p.Archived = true })
	return err
}

func (s *InMemoryStore) mutate(id models.PolicyID, fn func(*models.Policy)) (*models.Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.policies[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	fn(p)
	p.UpdatedAt = s.now()
	cp := *p
	return &cp, nil
}
