package cron

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/abundantshare/share-backend/pkg/instance"
	"github.com/abundantshare/share-backend/pkg/logger"
	"github.com/abundantshare/share-backend/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard})
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	fail := &testJob{name: "fail", err: errors.New("boom")}
	registry, err := NewRegistry(fail, success)
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: registry,
		Lock:     &LocalLock{},
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}

	err = service.RunOnce(context.Background())
	if err == nil || !errors.Is(err, fail.err) {
		t.Fatalf("expected combined job error, got %v", err)
	}
	if success.runs != 1 || fail.runs != 1 {
		t.Fatalf("expected each job once, got success=%d fail=%d", success.runs, fail.runs)
	}
	got, err := testutil.GatherAndCount(reg, "share_cron_job_runs_total")
	if err != nil {
		t.Fatalf("gather runs: %v", err)
	}
	if got != 2 {
		t.Fatalf("expected an ok and an error series, got %d", got)
	}
}

type heldLock struct{}

func (heldLock) Acquire(context.Context) (bool, error) { return false, nil }
func (heldLock) Release(context.Context) error         { return nil }

func TestRunOnceSkipsWhenLocked(t *testing.T) {
	job := &testJob{name: "job"}
	registry, _ := NewRegistry(job)
	reg := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{Logger: testLogger(), Registry: registry, Lock: heldLock{}, Metrics: metrics.NewCronJobMetrics(reg)})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	if err := service.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs while locked, got %d", job.runs)
	}
	expected := `
# HELP share_cron_cycles_skipped_total Cycles skipped because another worker held the lock.
# TYPE share_cron_cycles_skipped_total counter
share_cron_cycles_skipped_total 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "share_cron_cycles_skipped_total"); err != nil {
		t.Fatalf("skipped counter: %v", err)
	}
}

func TestLocalLockIsExclusive(t *testing.T) {
	lock := &LocalLock{}
	ctx := context.Background()
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected first acquire to succeed")
	}
	if ok, _ := lock.Acquire(ctx); ok {
		t.Fatal("expected second acquire to fail")
	}
	_ = lock.Release(ctx)
	if ok, _ := lock.Acquire(ctx); !ok {
		t.Fatal("expected acquire after release")
	}
}

type memRedis struct {
	values map[string]string
}

func (m *memRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memRedis) DeleteIfEqual(_ context.Context, key, value string) (bool, error) {
	if m.values[key] != value {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func TestRedisLockReleasesOnlyOwnKey(t *testing.T) {
	store := &memRedis{values: map[string]string{}}
	ctx := context.Background()
	first, _ := NewRedisLock(store, "lock:cron", time.Minute)
	second, _ := NewRedisLock(store, "lock:cron", time.Minute)

	if ok, _ := first.Acquire(ctx); !ok {
		t.Fatal("expected first worker to acquire")
	}
	if owner := store.values["lock:cron"]; !strings.HasPrefix(owner, instance.GetID()+":") {
		t.Fatalf("expected owner token to carry the instance id, got %q", owner)
	}
	if ok, _ := second.Acquire(ctx); ok {
		t.Fatal("expected second worker to be locked out")
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release by non-owner: %v", err)
	}
	if _, ok := store.values["lock:cron"]; !ok {
		t.Fatal("non-owner release removed the key")
	}
	if err := first.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, ok := store.values["lock:cron"]; ok {
		t.Fatal("owner release kept the key")
	}
}
