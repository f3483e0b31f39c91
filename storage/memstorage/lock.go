/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"time"

	"github.com/sitewatch/sitelock/model"
	"github.com/sitewatch/sitelock/storage/repository"
)

// InsertLease atomically inserts a new lease keyed by its lock name.
// The map insert runs under the write lock, so it is the in-memory
// equivalent of a unique constraint insert.
func (m *Storage) InsertLease(_ context.Context, lease *model.Lease) error {
	return m.inWriteLock(func() error {
		if _, ok := m.leases[lease.LockName]; ok {
			return repository.ErrLeaseExists
		}
		m.leases[lease.LockName] = copyLease(lease)
		return nil
	})
}

// FetchLease retrieves the lease associated to a lock name.
func (m *Storage) FetchLease(_ context.Context, name string) (*model.Lease, error) {
	var ret *model.Lease
	err := m.inReadLock(func() error {
		if lease, ok := m.leases[name]; ok {
			ret = copyLease(lease)
		}
		return nil
	})
	return ret, err
}

// FetchLeases retrieves all stored leases.
func (m *Storage) FetchLeases(_ context.Context) ([]model.Lease, error) {
	var ret []model.Lease
	err := m.inReadLock(func() error {
		for _, lease := range m.leases {
			ret = append(ret, *copyLease(lease))
		}
		return nil
	})
	return ret, err
}

// UpdateLeaseExpiry pushes an unexpired owned lease expiry forward.
func (m *Storage) UpdateLeaseExpiry(_ context.Context, name, owner string, extra time.Duration, now time.Time) (bool, error) {
	var ok bool
	err := m.inWriteLock(func() error {
		lease, found := m.leases[name]
		if !found || lease.Owner != owner || lease.IsExpired(now) {
			return nil
		}
		// whole-second granularity, matching the SQL backends
		extraSecs := int64(extra / time.Second)
		lease.ExpiresAt = lease.ExpiresAt.Add(time.Duration(extraSecs) * time.Second)
		lease.TimeoutSeconds += extraSecs
		ok = true
		return nil
	})
	return ok, err
}

// TouchLease refreshes the heartbeat instant of an unexpired owned lease.
func (m *Storage) TouchLease(_ context.Context, name, owner string, now time.Time) (bool, error) {
	var ok bool
	err := m.inWriteLock(func() error {
		lease, found := m.leases[name]
		if !found || lease.Owner != owner || lease.IsExpired(now) {
			return nil
		}
		lease.HeartbeatAt = now
		ok = true
		return nil
	})
	return ok, err
}

// DeleteLease removes an owned lease.
func (m *Storage) DeleteLease(_ context.Context, name, owner string) (bool, error) {
	var ok bool
	err := m.inWriteLock(func() error {
		lease, found := m.leases[name]
		if !found || lease.Owner != owner {
			return nil
		}
		delete(m.leases, name)
		ok = true
		return nil
	})
	return ok, err
}

// DeleteLeaseByID removes the exact acquisition identified by lockID.
func (m *Storage) DeleteLeaseByID(_ context.Context, name, lockID string) (bool, error) {
	var ok bool
	err := m.inWriteLock(func() error {
		lease, found := m.leases[name]
		if !found || lease.LockID != lockID {
			return nil
		}
		delete(m.leases, name)
		ok = true
		return nil
	})
	return ok, err
}

// ForceDeleteLease removes a lease bypassing any ownership check.
func (m *Storage) ForceDeleteLease(_ context.Context, name string) (bool, error) {
	var ok bool
	err := m.inWriteLock(func() error {
		if _, found := m.leases[name]; found {
			delete(m.leases, name)
			ok = true
		}
		return nil
	})
	return ok, err
}

// DeleteOwnerLeases removes every lease held by owner.
func (m *Storage) DeleteOwnerLeases(_ context.Context, owner string) (int64, error) {
	var count int64
	err := m.inWriteLock(func() error {
		for name, lease := range m.leases {
			if lease.Owner == owner {
				delete(m.leases, name)
				count++
			}
		}
		return nil
	})
	return count, err
}

// DeleteStaleLeases removes every stale lease at instant now.
func (m *Storage) DeleteStaleLeases(_ context.Context, now time.Time) (int64, error) {
	var count int64
	err := m.inWriteLock(func() error {
		for name, lease := range m.leases {
			if lease.IsStale(now) {
				delete(m.leases, name)
				count++
			}
		}
		return nil
	})
	return count, err
}
