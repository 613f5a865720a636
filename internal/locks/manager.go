package locks

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/tundeajayi/storefront-backend/pkg/config"
	pkgerrors "github.com/tundeajayi/storefront-backend/pkg/errors"
	"github.com/tundeajayi/storefront-backend/pkg/logger"
	"github.com/tundeajayi/storefront-backend/pkg/metrics"
	"github.com/tundeajayi/storefront-backend/pkg/redis"
)

// Manager grants short-lived, named mutual-exclusion leases over logical
// resource keys. The lease self-expires so a crashed holder cannot block a
// resource forever; the wait timeout bounds how long a caller blocks before
// the acquisition is reported as contention.
type Manager struct {
	store   redis.LockStore
	cfg     config.LockConfig
	logger  *logger.Logger
	metrics *metrics.OrderMetrics
}

// NewManager builds a lock manager backed by the shared store.
func NewManager(store redis.LockStore, cfg config.LockConfig, logg *logger.Logger, orderMetrics *metrics.OrderMetrics) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("lock store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.LeaseDuration <= 0 {
		return nil, fmt.Errorf("lock lease duration must be positive")
	}
	if cfg.WaitTimeout <= 0 {
		return nil, fmt.Errorf("lock wait timeout must be positive")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 50 * time.Millisecond
	}
	return &Manager{store: store, cfg: cfg, logger: logg, metrics: orderMetrics}, nil
}

// Acquire blocks up to the configured wait timeout trying to own the lease
// for resource. A timeout is reported as a contention error so callers can
// surface it as retryable rather than permanent.
func (m *Manager) Acquire(ctx context.Context, resource string) (*Handle, error) {
	if resource == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "lock resource is required")
	}
	key := m.store.LockKey(resource)
	owner := uuid.NewString()
	deadline := time.Now().Add(m.cfg.WaitTimeout)
	for {
		ok, err := m.store.SetNX(ctx, key, owner, m.cfg.LeaseDuration)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire lock")
		}
		if ok {
			m.metrics.IncLockAcquisition("acquired")
			return &Handle{store: m.store, key: key, owner: owner}, nil
		}
		if time.Now().After(deadline) {
			m.metrics.IncLockAcquisition("timeout")
			m.logger.Warn(ctx, fmt.Sprintf("lock wait timed out for %s", resource))
			return nil, pkgerrors.New(pkgerrors.CodeContention, fmt.Sprintf("resource %s is busy, retry", resource))
		}
		select {
		case <-ctx.Done():
			return nil, pkgerrors.Wrap(pkgerrors.CodeContention, ctx.Err(), "lock wait cancelled")
		case <-time.After(m.cfg.PollInterval):
		}
	}
}

// AcquireAll takes the leases for every distinct resource in a fixed sorted
// order so two callers contending on the same set can never deadlock. If any
// single acquisition times out, every already-held lease is released and the
// whole call fails.
func (m *Manager) AcquireAll(ctx context.Context, resources []string) (*Guard, error) {
	distinct := dedupeSorted(resources)
	if len(distinct) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one lock resource is required")
	}
	guard := &Guard{}
	for _, resource := range distinct {
		handle, err := m.Acquire(ctx, resource)
		if err != nil {
			if releaseErr := guard.Release(ctx); releaseErr != nil {
				m.logger.Error(ctx, "releasing partial lock set", releaseErr)
			}
			return nil, err
		}
		guard.handles = append(guard.handles, handle)
	}
	return guard, nil
}

func dedupeSorted(resources []string) []string {
	seen := make(map[string]struct{}, len(resources))
	distinct := make([]string, 0, len(resources))
	for _, resource := range resources {
		if resource == "" {
			continue
		}
		if _, ok := seen[resource]; ok {
			continue
		}
		seen[resource] = struct{}{}
		distinct = append(distinct, resource)
	}
	sort.Strings(distinct)
	return distinct
}

// Guard owns an ordered set of lock handles and releases them as one unit.
type Guard struct {
	handles []*Handle
}

// Release frees every held lease. Safe to call more than once; release
// errors are aggregated so one failure does not strand the remaining leases.
func (g *Guard) Release(ctx context.Context) error {
	var combined error
	for _, handle := range g.handles {
		combined = multierr.Append(combined, handle.Release(ctx))
	}
	return combined
}

// Handle is a single held lease.
type Handle struct {
	store    redis.LockStore
	key      string
	owner    string
	released bool
}

// Release frees the lease only while this handle still owns it. Calling it
// after expiry or a prior release is a no-op.
func (h *Handle) Release(ctx context.Context) error {
	if h.released {
		return nil
	}
	h.released = true
	value, err := h.store.Get(ctx, h.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != h.owner {
		return nil
	}
	if err := h.store.Del(ctx, h.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
