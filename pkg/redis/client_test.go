package redis

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/troopfundraiser/frclient/pkg/config"
)

func TestSessionTracking(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for _, id := range []string{"s-1", "s-2", "s-1"} {
		if err := client.TrackSession(ctx, id); err != nil {
			t.Fatalf("track %s: %v", id, err)
		}
	}
	ids, err := client.TrackedSessions(ctx)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	sort.Strings(ids)
	if len(ids) != 2 || ids[0] != "s-1" || ids[1] != "s-2" {
		t.Fatalf("unexpected tracked sessions %v", ids)
	}

	if err := client.UntrackSession(ctx, "s-1"); err != nil {
		t.Fatalf("untrack: %v", err)
	}
	ids, _ = client.TrackedSessions(ctx)
	if len(ids) != 1 || ids[0] != "s-2" {
		t.Fatalf("expected only s-2 after untrack, got %v", ids)
	}
}

func TestSetGetDelLifecycle(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	key := client.ConfigKey("session-a")
	if err := client.Set(ctx, key, `{"kind":"mulch"}`, time.Hour); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, err := client.Get(ctx, key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if value != `{"kind":"mulch"}` {
		t.Fatalf("unexpected value %q", value)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del failed: %v", err)
	}
	if _, err := client.Get(ctx, key); err != Nil {
		t.Fatalf("expected redis.Nil after delete, got %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.SessionKey("abc"); got != "fr:session:abc" {
		t.Fatalf("unexpected session key %s", got)
	}
	if got := client.ConfigKey("abc"); got != "fr:config:abc" {
		t.Fatalf("unexpected config key %s", got)
	}
	if got := client.LockKey("session-refresh"); got != "fr:lock:session-refresh" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.IdempotencyKey("jdoe|POST|/api/v1/allocation/release", "k-1"); got != "fr:idempotency:jdoe|POST|/api/v1/allocation/release:k-1" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey("session:ip:10.0.0.1"); got != "fr:rate_limit:session:ip:10.0.0.1" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.SessionKey(""); got != "fr:session" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestIncrWithTTLSetsExpiryOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, "fr:rate_limit:x", time.Minute)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("expected count %d, got %d", want, got)
		}
	}
	if len(mock.expireCalls) != 1 || mock.expireCalls[0].ttl != time.Minute {
		t.Fatalf("expected a single expire call, got %+v", mock.expireCalls)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected error from uninitialized client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without raw client should be a no-op, got %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6380/3", PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 3 {
		t.Fatalf("unexpected parsed options addr=%s db=%d", opts.Addr, opts.DB)
	}
	if opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("expected config fallbacks applied, got pool=%d dial=%v", opts.PoolSize, opts.DialTimeout)
	}
}

type expireCall struct {
	key string
	ttl time.Duration
}

type mockCmdable struct {
	data        map[string]string
	sets        map[string]map[string]struct{}
	incr        map[string]int64
	expireCalls []expireCall
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		sets: make(map[string]map[string]struct{}),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) SAdd(ctx context.Context, key string, members ...any) *redis.IntCmd {
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	var added int64
	for _, member := range members {
		s := fmt.Sprint(member)
		if _, exists := set[s]; !exists {
			set[s] = struct{}{}
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (m *mockCmdable) SRem(ctx context.Context, key string, members ...any) *redis.IntCmd {
	var removed int64
	for _, member := range members {
		s := fmt.Sprint(member)
		if _, exists := m.sets[key][s]; exists {
			delete(m.sets[key], s)
			removed++
		}
	}
	return redis.NewIntResult(removed, nil)
}

func (m *mockCmdable) SMembers(ctx context.Context, key string) *redis.StringSliceCmd {
	members := make([]string, 0, len(m.sets[key]))
	for member := range m.sets[key] {
		members = append(members, member)
	}
	return redis.NewStringSliceResult(members, nil)
}
