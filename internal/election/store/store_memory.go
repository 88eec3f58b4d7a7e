package store

import (
	"context"
	"sort"
	"sync"

	"steward/internal/election/models"
	"steward/pkg/platform/sentinel"
)

// InMemoryStore implements RecordStore for tests and local development.
// Records are returned as copies so callers never observe writes that happen
// after their read, matching the snapshot semantics of the SQL store.
type InMemoryStore struct {
	mu         sync.RWMutex
	elections  map[string]*models.ElectionRecord
	candidates map[string]*models.CandidateRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		elections:  make(map[string]*models.ElectionRecord),
		candidates: make(map[string]*models.CandidateRecord),
	}
}

func (s *InMemoryStore) GetElection(_ context.Context, id string) (*models.ElectionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.elections[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) ListElections(_ context.Context, cursor string, limit int) (*ElectionPage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.elections))
	for id := range s.elections {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	page := &ElectionPage{}
	for _, id := range ids {
		if len(page.Records) == limit {
			page.NextCursor = page.Records[len(page.Records)-1].ID
			break
		}
		cp := *s.elections[id]
		page.Records = append(page.Records, &cp)
	}
	return page, nil
}

func (s *InMemoryStore) GetCandidate(_ context.Context, id string) (*models.CandidateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.candidates[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *InMemoryStore) ListCandidates(_ context.Context, cursor string, limit int) (*CandidatePage, error) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.candidates))
	for id := range s.candidates {
		if id > cursor {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	page := &CandidatePage{}
	for _, id := range ids {
		if len(page.Records) == limit {
			page.NextCursor = page.Records[len(page.Records)-1].ID
			break
		}
		cp := *s.candidates[id]
		page.Records = append(page.Records, &cp)
	}
	return page, nil
}

func (s *InMemoryStore) ListCandidatesByElection(_ context.Context, electionID string) ([]*models.CandidateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*models.CandidateRecord
	for _, rec := range s.candidates {
		if rec.ElectionID == electionID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *InMemoryStore) UpdateCandidatePolling(_ context.Context, candidateID string, fields models.PollingSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.candidates[candidateID]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.PollingSupport = fields.PollingSupport
	rec.PollingSource = fields.PollingSource
	rec.LastPollingUpdate = fields.LastPollingUpdate
	rec.PollingTrend = fields.PollingTrend
	return nil
}

func (s *InMemoryStore) PutElection(_ context.Context, rec *models.ElectionRecord) error {
	if rec == nil || rec.ID == "" {
		return sentinel.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.elections[rec.ID] = &cp
	return nil
}

func (s *InMemoryStore) PutCandidate(_ context.Context, rec *models.CandidateRecord) error {
	if rec == nil || rec.ID == "" {
		return sentinel.ErrInvalidState
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.candidates[rec.ID] = &cp
	return nil
}
