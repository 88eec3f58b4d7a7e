package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"steward/internal/steward/models"
	"steward/pkg/platform/sentinel"
)

type PolicyStoreSuite struct {
	suite.Suite
	store *InMemoryStore
}

func (s *PolicyStoreSuite) SetupTest() {
	s.store = NewInMemoryStore()
}

func TestPolicyStoreSuite(t *testing.T) {
	suite.Run(t, new(PolicyStoreSuite))
}

func (s *PolicyStoreSuite) seed() {
	err := s.store.Seed(context.Background(), &models.Policy{
		ID:          models.PolicyPollingAuthenticity,
		Label:       "Polling authenticity",
		Category:    models.CategoryAuthenticity,
		Enabled:     true,
		AutoFixable: true,
	})
	s.Require().NoError(err)
}

func (s *PolicyStoreSuite) TestSeedIsIdempotent() {
	s.seed()

	// A restart re-seeds with registration defaults; a prior operator
	// toggle must survive it.
	_, err := s.store.SetEnabled(context.Background(), models.PolicyPollingAuthenticity, false)
	s.Require().NoError(err)

	s.seed()
	p, err := s.store.Get(context.Background(), models.PolicyPollingAuthenticity)
	s.Require().NoError(err)
	s.False(p.Enabled, "seed must not overwrite toggle state")
}

func (s *PolicyStoreSuite) TestToggles() {
	s.seed()
	ctx := context.Background()

	p, err := s.store.SetAutoFix(ctx, models.PolicyPollingAuthenticity, true)
	s.Require().NoError(err)
	s.True(p.AutoFixEnabled)
	s.True(p.UpdatedAt.After(p.CreatedAt) || p.UpdatedAt.Equal(p.CreatedAt))

	s.Run("unknown policy id fails the toggle only", func() {
		_, err := s.store.SetEnabled(ctx, "ghost_policy", true)
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PolicyStoreSuite) TestArchiveHidesButKeeps() {
	s.seed()
	ctx := context.Background()

	s.Require().NoError(s.store.Archive(ctx, models.PolicyPollingAuthenticity))

	list, err := s.store.List(ctx)
	s.Require().NoError(err)
	s.Empty(list, "archived policies leave the listing")

	p, err := s.store.Get(ctx, models.PolicyPollingAuthenticity)
	s.Require().NoError(err)
	s.True(p.Archived, "archived policies are retained, never deleted")
}
