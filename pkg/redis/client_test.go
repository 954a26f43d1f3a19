package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/abundantshare/share-backend/pkg/config"
)

func TestIncrWithTTLSetsWindowOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, "sign-in:ip:1.2.3.4", 90*time.Second)
		if err != nil {
			t.Fatalf("incr: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d got %d", want, got)
		}
	}
	if ttl := mock.ttl["share:rl:sign-in:ip:1.2.3.4"]; ttl != 90*time.Second {
		t.Fatalf("expected 90s window, got %v", ttl)
	}
	if mock.expires != 1 {
		t.Fatalf("expected a single expire, got %d", mock.expires)
	}
	if _, err := client.IncrWithTTL(ctx, "k", 0); err == nil {
		t.Fatal("expected error for zero window")
	}
}

func TestDeleteIfEqual(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.LockKey("cron-worker:prod")

	if ok, err := client.SetNX(ctx, key, "worker-1:abc", time.Minute); err != nil || !ok {
		t.Fatalf("setnx: ok=%v err=%v", ok, err)
	}
	if removed, err := client.DeleteIfEqual(ctx, key, "worker-2:def"); err != nil || removed {
		t.Fatalf("foreign owner must not delete: removed=%v err=%v", removed, err)
	}
	if removed, err := client.DeleteIfEqual(ctx, key, "worker-1:abc"); err != nil || !removed {
		t.Fatalf("owner delete: removed=%v err=%v", removed, err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, ErrNil) {
		t.Fatalf("expected key gone, got %v", err)
	}
}

func TestSessionRoundTrip(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.SessionKey("user-1", "access-1")

	if err := client.Set(ctx, key, "token-value", 10*time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if got, err := client.Get(ctx, key); err != nil || got != "token-value" {
		t.Fatalf("get: %q %v", got, err)
	}
	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, ErrNil) {
		t.Fatalf("expected ErrNil after delete, got %v", err)
	}
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	ctx := context.Background()
	if err := client.Ping(ctx); err == nil {
		t.Fatal("expected ping to fail")
	}
	if _, err := client.IncrWithTTL(ctx, "k", time.Second); err == nil {
		t.Fatal("expected incr to fail")
	}
	if _, err := client.DeleteIfEqual(ctx, "k", "v"); err == nil {
		t.Fatal("expected delete to fail")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close without connection: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.SessionKey("user-1", "abc"):             "share:session:user-1:abc",
		client.LockKey("cron-worker:dev"):              "share:lock:cron-worker:dev",
		client.LocalKey("", "dev_food_listings_v1"):    "share:local:dev_food_listings_v1",
		client.LocalKey(" kiosk-3 ", "dev_users_v1"):   "kiosk-3:dev_users_v1",
		client.buildKey(rateLimitPrefix, "", "phone"): "share:rl:phone",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s got %s", want, got)
		}
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/0", DB: 3, PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("options: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.Password != "secret" || opts.DB != 3 {
		t.Fatalf("unexpected url options %+v", opts)
	}
	if opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("expected config to fill pool settings, got pool=%d dial=%v", opts.PoolSize, opts.DialTimeout)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DB: 1})
	if err != nil || opts.Addr != "localhost:6379" || opts.DB != 1 {
		t.Fatalf("unexpected address options %+v %v", opts, err)
	}
}

// mockCmdable emulates the two scripts by matching their source.
type mockCmdable struct {
	data    map[string]string
	counts  map[string]int64
	ttl     map[string]time.Duration
	expires int
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}, counts: map[string]int64{}, ttl: map[string]time.Duration{}}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	cmd := redis.NewCmd(ctx)
	switch script {
	case incrWithTTLScript:
		m.counts[keys[0]]++
		if m.counts[keys[0]] == 1 {
			m.ttl[keys[0]] = time.Duration(args[0].(int64)) * time.Millisecond
			m.expires++
		}
		cmd.SetVal(m.counts[keys[0]])
	case deleteIfEqualScript:
		if v, ok := m.data[keys[0]]; ok && v == args[0] {
			delete(m.data, keys[0])
			cmd.SetVal(int64(1))
		} else {
			cmd.SetVal(int64(0))
		}
	default:
		cmd.SetErr(errors.New("unexpected script"))
	}
	return cmd
}
