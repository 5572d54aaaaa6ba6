package service

import (
	"context"
	"sync"

	dErrors "qochi/pkg/domain-errors"
)

// Locker serializes critical sections per key. Each operation takes exactly
// one key, so lock ordering never matters.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// numLockShards spreads keys over independent mutexes; unrelated keys
// rarely contend.
const numLockShards = 128

// ShardedLocker is the in-process Locker. Two keys hashing to the same shard
// serialize with each other, which is safe but not required.
type ShardedLocker struct {
	shards [numLockShards]sync.Mutex
}

func NewShardedLocker() *ShardedLocker {
	return &ShardedLocker{}
}

func (l *ShardedLocker) Lock(ctx context.Context, key string) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "lock aborted: context cancelled")
	}
	shard := &l.shards[hashKey(key)%numLockShards]
	shard.Lock()

	// Check again after acquiring lock
	if err := ctx.Err(); err != nil {
		shard.Unlock()
		return nil, dErrors.Wrap(err, dErrors.CodeTimeout, "lock aborted: context cancelled")
	}
	return shard.Unlock, nil
}

// hashKey is FNV-1a.
func hashKey(s string) uint32 {
	const (
		fnvOffset = 2166136261
		fnvPrime  = 16777619
	)
	h := uint32(fnvOffset)
	for i := 0; i < len(s); i++ {
		h ^= uint32(s[i])
		h *= fnvPrime
	}
	return h
}

func submitKey(slot string) string { return "submit:" + slot }

func requestKey(reqID string) string { return "request:" + reqID }

func memberKey(memberID string) string { return "member:" + memberID }

func admitKey(householdID, fullName string) string { return "admit:" + householdID + ":" + fullName }

func registerKey(houseNumber string) string { return "register:" + houseNumber }

func householdKey(householdID string) string { return "household:" + householdID }
