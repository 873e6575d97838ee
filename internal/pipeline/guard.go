package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"learnapp/internal/domain"
	"learnapp/internal/infra"
)

// RunGuard prevents two pipeline runs for the same document from
// overlapping. Acquire returns domain.ErrDuplicateOperation when a run is
// already in flight.
type RunGuard interface {
	Acquire(ctx context.Context, documentID string) (release func(), err error)
}

// MemoryGuard is a process-local RunGuard.
type MemoryGuard struct {
	mu     sync.Mutex
	active map[string]struct{}
}

// NewMemoryGuard returns an empty MemoryGuard.
func NewMemoryGuard() *MemoryGuard {
	return &MemoryGuard{active: make(map[string]struct{})}
}

func (g *MemoryGuard) Acquire(_ context.Context, documentID string) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, busy := g.active[documentID]; busy {
		return nil, fmt.Errorf("%w: video generation already running for document %s", domain.ErrDuplicateOperation, documentID)
	}
	g.active[documentID] = struct{}{}
	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			delete(g.active, documentID)
			g.mu.Unlock()
		})
	}, nil
}

// releaseScript deletes the lock only if it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then return redis.call("DEL", KEYS[1]) else return 0 end`

// redisLocker is the subset of *redis.Client used by RedisGuard.
type redisLocker interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// RedisGuard is a RunGuard shared by every worker pointed at the same Redis.
// The TTL bounds how long a crashed worker can block a document.
type RedisGuard struct {
	client redisLocker
	ttl    time.Duration
	prefix string
	logger *infra.Logger
}

// NewRedisGuard builds a guard whose locks expire after ttl.
func NewRedisGuard(client redisLocker, ttl time.Duration, logger *infra.Logger) *RedisGuard {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisGuard{client: client, ttl: ttl, prefix: "learnapp:video-run:", logger: infra.LoggerOrNop(logger)}
}

func (g *RedisGuard) Acquire(ctx context.Context, documentID string) (func(), error) {
	key := g.prefix + documentID
	token := uuid.NewString()
	ok, err := g.client.SetNX(ctx, key, token, g.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: video generation already running for document %s", domain.ErrDuplicateOperation, documentID)
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			// The run context may already be cancelled.
			releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			if err := g.client.Eval(releaseCtx, releaseScript, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				g.logger.Warn().Err(err).Str("document_id", documentID).Msg("pipeline: release run lock")
			}
		})
	}, nil
}

var (
	_ RunGuard    = (*MemoryGuard)(nil)
	_ RunGuard    = (*RedisGuard)(nil)
	_ redisLocker = (*redis.Client)(nil)
)
