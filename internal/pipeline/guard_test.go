package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"learnapp/internal/domain"
)

func TestMemoryGuard(t *testing.T) {
	g := NewMemoryGuard()
	release, err := g.Acquire(context.Background(), "doc")
	require.NoError(t, err)

	_, err = g.Acquire(context.Background(), "doc")
	require.ErrorIs(t, err, domain.ErrDuplicateOperation)

	other, err := g.Acquire(context.Background(), "other")
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := g.Acquire(context.Background(), "doc")
	require.NoError(t, err)
	again()
}

type fakeLocker struct {
	held    map[string]string
	setErr  error
	evals   int
	lastTTL time.Duration
}

func (f *fakeLocker) SetNX(_ context.Context, key string, value interface{}, ttl time.Duration) *redis.BoolCmd {
	if f.setErr != nil {
		return redis.NewBoolResult(false, f.setErr)
	}
	f.lastTTL = ttl
	if _, ok := f.held[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.held[key] = value.(string)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeLocker) Eval(_ context.Context, _ string, keys []string, args ...interface{}) *redis.Cmd {
	f.evals++
	if f.held[keys[0]] == args[0].(string) {
		delete(f.held, keys[0])
		return redis.NewCmdResult(int64(1), nil)
	}
	return redis.NewCmdResult(int64(0), nil)
}

func TestRedisGuard(t *testing.T) {
	locker := &fakeLocker{held: map[string]string{}}
	g := NewRedisGuard(locker, 20*time.Minute, nil)

	release, err := g.Acquire(context.Background(), "doc")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, locker.lastTTL)
	assert.Contains(t, locker.held, "learnapp:video-run:doc")

	_, err = g.Acquire(context.Background(), "doc")
	require.ErrorIs(t, err, domain.ErrDuplicateOperation)

	release()
	release()
	assert.Equal(t, 1, locker.evals)
	assert.Empty(t, locker.held)
}

func TestRedisGuardDoesNotReleaseForeignLock(t *testing.T) {
	locker := &fakeLocker{held: map[string]string{}}
	g := NewRedisGuard(locker, time.Minute, nil)

	release, err := g.Acquire(context.Background(), "doc")
	require.NoError(t, err)
	// Simulate expiry and takeover by another worker.
	locker.held["learnapp:video-run:doc"] = "someone-else"
	release()
	assert.Equal(t, "someone-else", locker.held["learnapp:video-run:doc"])
}

func TestRedisGuardSurfacesErrors(t *testing.T) {
	g := NewRedisGuard(&fakeLocker{held: map[string]string{}, setErr: errors.New("connection refused")}, time.Minute, nil)
	_, err := g.Acquire(context.Background(), "doc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrDuplicateOperation)
}
