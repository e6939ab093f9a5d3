// Package lock is a Redis-backed run lock that keeps two processes from
// running the same stage at once.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/tradepath/roi-ingest/internal/etlerr"
)

// ErrHeld is returned when another run owns the lock.
var ErrHeld = errors.New("stage is already running")

// DefaultTTL bounds how long a crashed run can hold a stage.
const DefaultTTL = 2 * time.Hour

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RunLock acquires stage locks. A RunLock with a nil client is a no-op.
type RunLock struct {
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// New creates a RunLock. rdb may be nil.
func New(rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *RunLock {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RunLock{
		rdb: rdb,
		ttl: ttl,
		log: log.With().Str("component", "run_lock").Logger(),
	}
}

// Acquire takes the lock at key for token (the run id) and returns the
// release function. ErrHeld (as a config error) means another run owns it.
func (l *RunLock) Acquire(ctx context.Context, key, token string) (release func(), err error) {
	if l == nil || l.rdb == nil {
		return func() {}, nil
	}

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		holder, _ := l.rdb.Get(ctx, key).Result()
		return nil, etlerr.New(etlerr.KindConfig, key, fmt.Sprintf("held by run %s", holder), ErrHeld)
	}

	l.log.Debug().Str("key", key).Dur("ttl", l.ttl).Msg("Lock acquired")

	return func() {
		// Release even when the run context was cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn().Err(err).Str("key", key).Msg("Failed to release lock")
		}
	}, nil
}
