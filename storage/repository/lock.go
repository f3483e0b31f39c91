/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package repository

import (
	"context"
	"time"

	"github.com/sitewatch/sitelock/model"
)

// Lock defines lease repository operations.
//
// Every mutation is a single atomic storage operation: no caller may
// observe an intermediate state, and the unique key on the lock name is
// the mutual exclusion guarantee.
type Lock interface {
	// InsertLease atomically inserts a new lease row keyed by its lock
	// name. ErrLeaseExists is returned when a row for that name is
	// already present.
	InsertLease(ctx context.Context, lease *model.Lease) error

	// FetchLease retrieves the lease associated to a lock name, or nil
	// when none exists.
	FetchLease(ctx context.Context, name string) (*model.Lease, error)

	// FetchLeases retrieves all stored leases.
	FetchLeases(ctx context.Context) ([]model.Lease, error)

	// UpdateLeaseExpiry pushes a lease expiry forward by extra and grows
	// its timeout accordingly, provided the lease belongs to owner and has
	// not yet expired at instant now. Granularity is whole seconds:
	// sub-second fractions of extra are truncated on every backend.
	UpdateLeaseExpiry(ctx context.Context, name, owner string, extra time.Duration, now time.Time) (bool, error)

	// TouchLease refreshes a lease heartbeat instant, leaving its expiry
	// untouched, provided the lease belongs to owner and has not yet
	// expired at instant now.
	TouchLease(ctx context.Context, name, owner string, now time.Time) (bool, error)

	// DeleteLease removes the lease associated to a lock name, provided
	// it belongs to owner.
	DeleteLease(ctx context.Context, name, owner string) (bool, error)

	// DeleteLeaseByID removes the exact acquisition identified by lockID.
	// Used to reclaim a stale lease without ever touching a newer
	// acquisition of the same name.
	DeleteLeaseByID(ctx context.Context, name, lockID string) (bool, error)

	// ForceDeleteLease removes the lease associated to a lock name
	// bypassing any ownership check.
	ForceDeleteLease(ctx context.Context, name string) (bool, error)

	// DeleteOwnerLeases removes every lease held by owner, returning the
	// number of removed rows.
	DeleteOwnerLeases(ctx context.Context, owner string) (int64, error)

	// DeleteStaleLeases removes every lease that is expired or whose
	// heartbeat is older than twice its timeout at instant now, returning
	// the number of removed rows.
	DeleteStaleLeases(ctx context.Context, now time.Time) (int64, error)
}
