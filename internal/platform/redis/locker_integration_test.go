//go:build integration

package redis_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	qredis "qochi/internal/platform/redis"
	dErrors "qochi/pkg/domain-errors"
	"qochi/pkg/testutil/containers"
)

type LockerSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestLockerSuite(t *testing.T) {
	suite.Run(t, new(LockerSuite))
}

func (s *LockerSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
}

func (s *LockerSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *LockerSuite) TestMutualExclusion() {
	locker := qredis.NewLocker(s.redis.Client, "test", qredis.WithLockRetry(5*time.Millisecond))

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
	)
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock, err := locker.Lock(context.Background(), "request:1")
			if !s.NoError(err) {
				return
			}
			n := inside.Add(1)
			if n > maxSeen.Load() {
				maxSeen.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			inside.Add(-1)
			unlock()
		}()
	}
	wg.Wait()
	s.Equal(int32(1), maxSeen.Load())
}

func (s *LockerSuite) TestCancelledWaitTimesOut() {
	locker := qredis.NewLocker(s.redis.Client, "test")
	unlock, err := locker.Lock(context.Background(), "member:1")
	s.Require().NoError(err)
	defer unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = locker.Lock(ctx, "member:1")
	s.True(dErrors.HasCode(err, dErrors.CodeTimeout))
}

func (s *LockerSuite) TestExpiredLockIsNotReleasedByStaleHolder() {
	ctx := context.Background()
	locker := qredis.NewLocker(s.redis.Client, "test", qredis.WithLockTTL(50*time.Millisecond))

	staleUnlock, err := locker.Lock(ctx, "submit:x")
	s.Require().NoError(err)
	time.Sleep(100 * time.Millisecond)

	unlock, err := locker.Lock(ctx, "submit:x")
	s.Require().NoError(err)
	staleUnlock()

	exists, err := s.redis.Client.Exists(ctx, "qochi:lock:test:submit:x").Result()
	s.Require().NoError(err)
	s.Equal(int64(1), exists)
	unlock()
}

func (s *LockerSuite) TestClientHealth() {
	s.NoError(s.redis.Client.Health(context.Background()))
}
