package locks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tundeajayi/storefront-backend/pkg/config"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
)

type fakeLockStore struct {
	mu     sync.Mutex
	values map[string]string
	sets   []string
	dels   []string
}

func newFakeLockStore() *fakeLockStore {
	return &fakeLockStore{values: map[string]string{}}
}

func (f *fakeLockStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.values[key]; ok {
		return false, nil
	}
	f.values[key] = value.(string)
	f.sets = append(f.sets, key)
	return true, nil
}

func (f *fakeLockStore) Get(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	value, ok := f.values[key]
	if !ok {
		return "", redis.Nil
	}
	return value, nil
}

func (f *fakeLockStore) Del(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, key := range keys {
		delete(f.values, key)
		f.dels = append(f.dels, key)
	}
	return nil
}

func (f *fakeLockStore) LockKey(resource string) string { return "sf:lock:" + resource }

func (f *fakeLockStore) held() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.values)
}

func testManager(t *testing.T, store redis.LockStore, cfg config.LockConfig) *Manager {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "locks-test"})
	manager, err := NewManager(store, cfg, logg, nil)
	if err != nil {
		t.Fatalf("construct manager: %v", err)
	}
	return manager
}

func TestAcquireAndRelease(t *testing.T) {
	store := newFakeLockStore()
	manager := testManager(t, store, config.LockConfig{
		LeaseDuration: time.Second,
		WaitTimeout:   100 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
	})
	ctx := context.Background()
	handle, err := manager.Acquire(ctx, "product:abc")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if store.held() != 1 {
		t.Fatalf("expected one held lock, got %d", store.held())
	}
	if err := handle.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if store.held() != 0 {
		t.Fatalf("expected lock released, still held %d", store.held())
	}
	// second release is a no-op
	if err := handle.Release(ctx); err != nil {
		t.Fatalf("repeat release: %v", err)
	}
	if len(store.dels) != 1 {
		t.Fatalf("expected one delete, got %d", len(store.dels))
	}
}

func TestAcquireTimesOutAsContention(t *testing.T) {
	store := newFakeLockStore()
	manager := testManager(t, store, config.LockConfig{
		LeaseDuration: time.Second,
		WaitTimeout:   40 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
	})
	ctx := context.Background()
	first, err := manager.Acquire(ctx, "product:abc")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	defer first.Release(ctx)

	_, err = manager.Acquire(ctx, "product:abc")
	if err == nil {
		t.Fatalf("expected contention error")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		t.Fatalf("expected typed error, got %v", err)
	}
	if typed.Code() != pkgerrors.CodeContention {
		t.Fatalf("expected contention code, got %s", typed.Code())
	}
	if !pkgerrors.IsRetryable(err) {
		t.Fatalf("contention should be retryable")
	}
}

func TestAcquireWaitsForReleasedLock(t *testing.T) {
	store := newFakeLockStore()
	manager := testManager(t, store, config.LockConfig{
		LeaseDuration: time.Second,
		WaitTimeout:   500 * time.Millisecond,
		PollInterval:  5 * time.Millisecond,
	})
	ctx := context.Background()
	first, err := manager.Acquire(ctx, "product:abc")
	if err != nil {
		t.Fatalf("first acquire: %v", err)
	}
	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = first.Release(ctx)
	}()
	second, err := manager.Acquire(ctx, "product:abc")
	if err != nil {
		t.Fatalf("second acquire after release: %v", err)
	}
	if err := second.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
}

func TestAcquireAllSortsAndDedupes(t *testing.T) {
	store := newFakeLockStore()
	manager := testManager(t, store, config.LockConfig{
		LeaseDuration: time.Second,
		WaitTimeout:   100 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
	})
	ctx := context.Background()
	guard, err := manager.AcquireAll(ctx, []string{"product:b", "product:a", "product:b"})
	if err != nil {
		t.Fatalf("acquire all: %v", err)
	}
	if len(store.sets) != 2 {
		t.Fatalf("expected 2 acquisitions, got %d", len(store.sets))
	}
	if store.sets[0] != "sf:lock:product:a" || store.sets[1] != "sf:lock:product:b" {
		t.Fatalf("expected sorted acquisition order, got %v", store.sets)
	}
	if err := guard.Release(ctx); err != nil {
		t.Fatalf("guard release: %v", err)
	}
	if store.held() != 0 {
		t.Fatalf("expected all locks released, held %d", store.held())
	}
}

func TestAcquireAllReleasesOnPartialFailure(t *testing.T) {
	store := newFakeLockStore()
	ctx := context.Background()
	// hold product:b so the second acquisition in sorted order times out
	if _, err := store.SetNX(ctx, store.LockKey("product:b"), "other-owner", time.Minute); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	manager := testManager(t, store, config.LockConfig{
		LeaseDuration: time.Second,
		WaitTimeout:   30 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
	})
	_, err := manager.AcquireAll(ctx, []string{"product:a", "product:b"})
	if err == nil {
		t.Fatalf("expected contention error")
	}
	if store.held() != 1 {
		t.Fatalf("expected only the foreign lock to remain, held %d", store.held())
	}
	if _, err := store.Get(ctx, store.LockKey("product:a")); err == nil {
		t.Fatalf("expected product:a lease released")
	}
}

func TestReleaseSkipsForeignOwner(t *testing.T) {
	store := newFakeLockStore()
	manager := testManager(t, store, config.LockConfig{
		LeaseDuration: time.Second,
		WaitTimeout:   100 * time.Millisecond,
		PollInterval:  10 * time.Millisecond,
	})
	ctx := context.Background()
	handle, err := manager.Acquire(ctx, "product:abc")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	// simulate lease expiry followed by another holder
	key := store.LockKey("product:abc")
	if err := store.Del(ctx, key); err != nil {
		t.Fatalf("expire lease: %v", err)
	}
	if _, err := store.SetNX(ctx, key, "new-owner", time.Minute); err != nil {
		t.Fatalf("reacquire as other owner: %v", err)
	}
	if err := handle.Release(ctx); err != nil {
		t.Fatalf("release after expiry: %v", err)
	}
	value, err := store.Get(ctx, key)
	if err != nil {
		t.Fatalf("foreign lock missing: %v", err)
	}
	if value != "new-owner" {
		t.Fatalf("foreign lock clobbered, owner %q", value)
	}
}
