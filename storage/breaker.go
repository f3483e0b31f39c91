/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package storage

import (
	"context"
	"time"

	"github.com/sitewatch/sitelock/model"
	"github.com/sitewatch/sitelock/storage/repository"
	"github.com/sony/gobreaker"
)

// breakerContainer wraps a repository container with a circuit breaker,
// failing fast while the underlying store is unhealthy. It never
// retries: transient failures propagate to the caller.
type breakerContainer struct {
	repository.Container
	lock *breakerLock
}

// NewBreakerContainer returns a container whose lock repository is
// guarded by a circuit breaker.
func NewBreakerContainer(c repository.Container) repository.Container {
	return &breakerContainer{
		Container: c,
		lock: &breakerLock{
			lock: c.Lock(),
			cb:   gobreaker.NewCircuitBreaker(gobreaker.Settings{Name: "storage"}),
		},
	}
}

func (c *breakerContainer) Lock() repository.Lock { return c.lock }

type breakerLock struct {
	lock repository.Lock
	cb   *gobreaker.CircuitBreaker
}

func (b *breakerLock) InsertLease(ctx context.Context, lease *model.Lease) error {
	v, err := b.cb.Execute(func() (interface{}, error) {
		// an insert conflict is a normal outcome, not a store failure
		switch err := b.lock.InsertLease(ctx, lease); err {
		case repository.ErrLeaseExists:
			return true, nil
		default:
			return false, err
		}
	})
	if err != nil {
		return err
	}
	if v.(bool) {
		return repository.ErrLeaseExists
	}
	return nil
}

func (b *breakerLock) FetchLease(ctx context.Context, name string) (*model.Lease, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.lock.FetchLease(ctx, name)
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.Lease), nil
}

func (b *breakerLock) FetchLeases(ctx context.Context) ([]model.Lease, error) {
	v, err := b.cb.Execute(func() (interface{}, error) {
		return b.lock.FetchLeases(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.([]model.Lease), nil
}

func (b *breakerLock) UpdateLeaseExpiry(ctx context.Context, name, owner string, extra time.Duration, now time.Time) (bool, error) {
	return b.executeBool(func() (interface{}, error) {
		return b.lock.UpdateLeaseExpiry(ctx, name, owner, extra, now)
	})
}

func (b *breakerLock) TouchLease(ctx context.Context, name, owner string, now time.Time) (bool, error) {
	return b.executeBool(func() (interface{}, error) {
		return b.lock.TouchLease(ctx, name, owner, now)
	})
}

func (b *breakerLock) DeleteLease(ctx context.Context, name, owner string) (bool, error) {
	return b.executeBool(func() (interface{}, error) {
		return b.lock.DeleteLease(ctx, name, owner)
	})
}

func (b *breakerLock) DeleteLeaseByID(ctx context.Context, name, lockID string) (bool, error) {
	return b.executeBool(func() (interface{}, error) {
		return b.lock.DeleteLeaseByID(ctx, name, lockID)
	})
}

func (b *breakerLock) ForceDeleteLease(ctx context.Context, name string) (bool, error) {
	return b.executeBool(func() (interface{}, error) {
		return b.lock.ForceDeleteLease(ctx, name)
	})
}

func (b *breakerLock) DeleteOwnerLeases(ctx context.Context, owner string) (int64, error) {
	return b.executeCount(func() (interface{}, error) {
		return b.lock.DeleteOwnerLeases(ctx, owner)
	})
}

func (b *breakerLock) DeleteStaleLeases(ctx context.Context, now time.Time) (int64, error) {
	return b.executeCount(func() (interface{}, error) {
		return b.lock.DeleteStaleLeases(ctx, now)
	})
}

func (b *breakerLock) executeBool(req func() (interface{}, error)) (bool, error) {
	v, err := b.cb.Execute(req)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (b *breakerLock) executeCount(req func() (interface{}, error)) (int64, error) {
	v, err := b.cb.Execute(req)
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}
