package cron

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	redislib "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/troopfundraiser/frclient/pkg/logger"
	"github.com/troopfundraiser/frclient/pkg/metrics"
)

type fakeLock struct {
	held     bool
	acquires int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	f.acquires++
	if f.held {
		return false, nil
	}
	f.held = true
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.held = false; return nil }

type countingJob struct {
	name string
	err  error
	runs int
}

func (c *countingJob) Name() string { return c.name }

func (c *countingJob) Run(context.Context) error {
	c.runs++
	return c.err
}

func TestRunOnceRunsEveryJobEvenOnFailure(t *testing.T) {
	ok := &countingJob{name: "ok"}
	failing := &countingJob{name: "fail", err: errors.New("boom")}
	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Logger:   logger.Nop(),
		Registry: NewRegistry(failing, ok),
		Lock:     &fakeLock{},
		Metrics:  metrics.NewCronJobMetrics(reg),
		Interval: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Equal(t, 1, ok.runs)
	assert.Equal(t, 1, failing.runs)
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "session-refresh"}
	lock := &fakeLock{held: true}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(job), Lock: lock, Interval: time.Minute})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Equal(t, 0, job.runs)
	assert.Equal(t, 1, lock.acquires)
}

func TestRunTicksUntilCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var mu sync.Mutex
	runs := 0
	job := JobFunc{JobName: "tick", Fn: func(context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		runs++
		if runs == 2 {
			cancel()
		}
		return nil
	}}
	service, err := NewService(ServiceParams{Logger: logger.Nop(), Registry: NewRegistry(job), Interval: 5 * time.Millisecond})
	require.NoError(t, err)

	err = service.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	mu.Lock()
	defer mu.Unlock()
	assert.GreaterOrEqual(t, runs, 2)
}

func TestNewServiceRequiresInterval(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: logger.Nop()})
	assert.Error(t, err)
}

func TestRegistryJobsIsACopy(t *testing.T) {
	a, b := &countingJob{name: "a"}, &countingJob{name: "b"}
	registry := NewRegistry(a, nil)
	registry.Register(b)
	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0])
}

type mapLockStore struct {
	data map[string]string
}

func (m *mapLockStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := m.data[key]; ok {
		return false, nil
	}
	m.data[key] = fmt.Sprint(value)
	return true, nil
}

func (m *mapLockStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", redislib.Nil
	}
	return v, nil
}

func (m *mapLockStore) Del(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func TestRedisLockIsExclusiveAndReleasable(t *testing.T) {
	store := &mapLockStore{data: map[string]string{}}
	first, err := NewRedisLock(store, "fr:lock:session-refresh", time.Minute)
	require.NoError(t, err)
	second, err := NewRedisLock(store, "fr:lock:session-refresh", time.Minute)
	require.NoError(t, err)

	ok, err := first.Acquire(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = second.Acquire(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, second.Release(context.Background()))
	assert.Contains(t, store.data, "fr:lock:session-refresh")

	require.NoError(t, first.Release(context.Background()))
	assert.NotContains(t, store.data, "fr:lock:session-refresh")
}
