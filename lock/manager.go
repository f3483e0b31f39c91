/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sitewatch/sitelock/model"
	"github.com/sitewatch/sitelock/storage/repository"
)

// Manager coordinates mutually exclusive access to named resources
// across independent processes sharing a lease repository. Exclusion
// relies solely on the repository's atomic insert guarantee: the
// manager holds no in-process synchronization state of its own.
type Manager struct {
	cfg         Config
	rep         repository.Lock
	owner       string
	metrics     *Metrics
	lastCleanup int64
	timeFn      func() time.Time
}

// New returns an initialized lock manager. The repository is an
// explicit dependency; metrics may be nil.
func New(cfg *Config, rep repository.Lock, owner string, metrics *Metrics) *Manager {
	c := *cfg
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = defaultLeaseTimeout
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = defaultCleanupInterval
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	return &Manager{
		cfg:     c,
		rep:     rep,
		owner:   owner,
		metrics: metrics,
		timeFn:  time.Now,
	}
}

// Owner returns the identity this manager acquires leases under.
func (m *Manager) Owner() string { return m.owner }

// Acquire attempts to claim a lease on name for the given timeout.
// A false return means the lock is busy. Exactly one concurrent caller
// wins for any given name: the repository rejects a second insert while
// a row for the name exists.
func (m *Manager) Acquire(ctx context.Context, name string, timeout time.Duration, metadata map[string]string) (bool, error) {
	if len(name) == 0 {
		return false, fmt.Errorf("lock: empty lock name")
	}
	if timeout <= 0 {
		timeout = m.cfg.DefaultTimeout
	}
	// leases carry whole-second precision; a sub-second window would
	// truncate to a zero timeout and be stale at birth
	timeout = roundToSecond(timeout)
	t0 := time.Now()
	defer func() { m.metrics.observeOp("acquire", time.Since(t0)) }()

	// expired prior leases must not block a new acquisition
	m.maybeCleanup(ctx)

	err := m.rep.InsertLease(ctx, m.newLease(name, timeout, metadata))
	switch err {
	case nil:
		m.metrics.incAcquire(true)
		return true, nil

	case repository.ErrLeaseExists:
		ok, err := m.reclaimAndRetry(ctx, name, timeout, metadata)
		if err != nil {
			return false, err
		}
		m.metrics.incAcquire(ok)
		return ok, nil

	default:
		return false, err
	}
}

// reclaimAndRetry inspects the lease that blocked an insert and, when
// it is no longer live, deletes that exact acquisition and retries the
// insert once. A second conflict means another caller won the race.
func (m *Manager) reclaimAndRetry(ctx context.Context, name string, timeout time.Duration, metadata map[string]string) (bool, error) {
	cur, err := m.rep.FetchLease(ctx, name)
	if err != nil {
		return false, err
	}
	if cur != nil && cur.IsLive(m.now()) {
		return false, nil // busy
	}
	if cur != nil {
		if _, err := m.rep.DeleteLeaseByID(ctx, name, cur.LockID); err != nil {
			return false, err
		}
	}
	switch err := m.rep.InsertLease(ctx, m.newLease(name, timeout, metadata)); err {
	case nil:
		return true, nil
	case repository.ErrLeaseExists:
		return false, nil
	default:
		return false, err
	}
}

// Release releases the lease on name, provided this process owns it.
// Releasing an unowned or absent lease returns false: it is the normal
// outcome of racing against expiry, not an error.
func (m *Manager) Release(ctx context.Context, name string) (bool, error) {
	t0 := time.Now()
	defer func() { m.metrics.observeOp("release", time.Since(t0)) }()

	ok, err := m.rep.DeleteLease(ctx, name, m.owner)
	if err != nil {
		return false, err
	}
	m.metrics.incRelease(ok)
	return ok, nil
}

// ForceRelease releases the lease on name bypassing the ownership
// check. Reserved for operator use.
func (m *Manager) ForceRelease(ctx context.Context, name string) (bool, error) {
	return m.rep.ForceDeleteLease(ctx, name)
}

// Extend pushes the lease expiry forward by extra and grows its timeout
// accordingly. Sub-second values round up to the stored second
// granularity. Returns false when the lease is not owned by this
// process or has already expired.
func (m *Manager) Extend(ctx context.Context, name string, extra time.Duration) (bool, error) {
	if extra <= 0 {
		return false, fmt.Errorf("lock: non-positive extension: %v", extra)
	}
	return m.rep.UpdateLeaseExpiry(ctx, name, m.owner, roundToSecond(extra), m.now())
}

// Heartbeat refreshes the lease heartbeat instant, leaving its expiry
// untouched. Long-running holders call it to prove liveness without
// unilaterally extending their deadline.
func (m *Manager) Heartbeat(ctx context.Context, name string) (bool, error) {
	return m.rep.TouchLease(ctx, name, m.owner, m.now())
}

// IsLocked tells whether a live lease currently exists for name.
func (m *Manager) IsLocked(ctx context.Context, name string) (bool, error) {
	lease, err := m.rep.FetchLease(ctx, name)
	if err != nil {
		return false, err
	}
	return lease != nil && lease.IsLive(m.now()), nil
}

// GetLockInfo retrieves the stored lease for name, or nil when none
// exists. The row is returned as stored, even when no longer live.
func (m *Manager) GetLockInfo(ctx context.Context, name string) (*model.Lease, error) {
	return m.rep.FetchLease(ctx, name)
}

// GetActiveLocks retrieves every lease that is still live.
func (m *Manager) GetActiveLocks(ctx context.Context) ([]model.Lease, error) {
	leases, err := m.rep.FetchLeases(ctx)
	if err != nil {
		return nil, err
	}
	now := m.now()
	var active []model.Lease
	for _, lease := range leases {
		if lease.IsLive(now) {
			active = append(active, lease)
		}
	}
	return active, nil
}

// ReleaseAllOwnedLocks releases every lease held by this process,
// returning the number released. Intended as a graceful shutdown hook;
// safe to call repeatedly.
func (m *Manager) ReleaseAllOwnedLocks(ctx context.Context) (int, error) {
	count, err := m.rep.DeleteOwnerLeases(ctx, m.owner)
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (m *Manager) newLease(name string, timeout time.Duration, metadata map[string]string) *model.Lease {
	now := m.now()
	return &model.Lease{
		LockID:         uuid.New().String(),
		LockName:       name,
		Owner:          m.owner,
		AcquiredAt:     now,
		ExpiresAt:      now.Add(timeout),
		TimeoutSeconds: int64(timeout / time.Second),
		HeartbeatAt:    now,
		Metadata:       metadata,
	}
}

func (m *Manager) now() time.Time {
	return m.timeFn()
}

// roundToSecond rounds a duration up to a whole second, the granularity
// leases are stored with.
func roundToSecond(d time.Duration) time.Duration {
	if r := d % time.Second; r > 0 {
		d += time.Second - r
	}
	return d
}
