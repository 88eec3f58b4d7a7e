//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"steward/internal/steward/lock"
	"steward/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	rd *containers.RedisContainer
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.rd = containers.NewRedisContainer(s.T())
}

func (s *RedisLockSuite) TearDownSuite() {
	_ = s.rd.Client.Close()
	_ = s.rd.Container.Terminate(context.Background())
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.rd.Client.FlushAll(context.Background()).Err())
}

func (s *RedisLockSuite) TestExclusionAcrossInstances() {
	ctx := context.Background()
	a := lock.NewRedis(s.rd.Client, time.Minute)
	b := lock.NewRedis(s.rd.Client, time.Minute)

	release, ok, err := a.TryAcquire(ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	// A second instance sees the lock as busy while the first holds it.
	_, ok, err = b.TryAcquire(ctx)
	s.Require().NoError(err)
	s.False(ok)

	release()

	releaseB, ok, err := b.TryAcquire(ctx)
	s.Require().NoError(err)
	s.True(ok)
	releaseB()
}

func (s *RedisLockSuite) TestExpiredLeaseCannotReleaseSuccessor() {
	ctx := context.Background()
	short := lock.NewRedis(s.rd.Client, 50*time.Millisecond)
	long := lock.NewRedis(s.rd.Client, time.Minute)

	staleRelease, ok, err := short.TryAcquire(ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	// Wait out the lease so the key expires on its own.
	time.Sleep(100 * time.Millisecond)

	release, ok, err := long.TryAcquire(ctx)
	s.Require().NoError(err)
	s.Require().True(ok)
	defer release()

	// The stale holder's release is a no-op against the new token.
	staleRelease()

	_, ok, err = long.TryAcquire(ctx)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *RedisLockSuite) TestReleaseIsIdempotent() {
	ctx := context.Background()
	l := lock.NewRedis(s.rd.Client, time.Minute)

	release, ok, err := l.TryAcquire(ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	release()
	release()

	_, ok, err = l.TryAcquire(ctx)
	s.Require().NoError(err)
	s.True(ok)
}
