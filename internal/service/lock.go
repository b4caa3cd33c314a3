package service

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"tsreddit/internal/cache"
)

// Locker serializes work on a key. Lock blocks until the key is free or ctx
// is done and returns the function that releases it.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// localLocker is a process-wide keyed mutex. Entries are dropped once no
// caller holds or waits for them.
type localLocker struct {
	mu    sync.Mutex
	locks map[string]*keyLock
}

type keyLock struct {
	sem  chan struct{}
	refs int
}

// NewLocalLocker returns a Locker for a single server process.
func NewLocalLocker() Locker {
	return &localLocker{locks: make(map[string]*keyLock)}
}

func (l *localLocker) Lock(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	kl, ok := l.locks[key]
	if !ok {
		kl = &keyLock{sem: make(chan struct{}, 1)}
		l.locks[key] = kl
	}
	kl.refs++
	l.mu.Unlock()

	select {
	case kl.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-kl.sem
				l.release(key, kl)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, kl)
		return nil, ctx.Err()
	}
}

func (l *localLocker) release(key string, kl *keyLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	kl.refs--
	if kl.refs == 0 {
		delete(l.locks, key)
	}
}

// redisLocker shares locks between server processes through redis SETNX.
type redisLocker struct {
	cache   *cache.Client
	ttl     time.Duration
	maxWait time.Duration
}

// NewRedisLocker returns a Locker backed by redis. ttl bounds how long a
// crashed holder can keep a key.
func NewRedisLocker(c *cache.Client, ttl time.Duration) Locker {
	return &redisLocker{cache: c, ttl: ttl, maxWait: 2 * ttl}
}

func (l *redisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := "tsreddit:lock:" + key
	token := uuid.New().String()
	deadline := time.Now().Add(l.maxWait)

	for {
		locked, err := l.cache.TryLock(ctx, lockKey, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("acquire %s: %w", key, err)
		}
		if locked {
			return func() {
				// release on a fresh context so a cancelled request still frees the key
				_ = l.cache.Unlock(context.Background(), lockKey, token)
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("acquire %s: timed out after %s", key, l.maxWait)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(rand.Intn(20)+5) * time.Millisecond):
		}
	}
}
