/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package lock

import (
	"context"
	"errors"
	"time"
)

// ErrLockUnavailable is returned by WithLock when the lock could not be
// acquired.
var ErrLockUnavailable = errors.New("lock: unavailable")

// WithLock acquires the lock on name, runs fn and releases the lock on
// every exit path, including a panicking fn. ErrLockUnavailable is
// returned when acquisition fails; fn does not run in that case.
func (m *Manager) WithLock(ctx context.Context, name string, timeout time.Duration, fn func() error) error {
	acquired, err := m.Acquire(ctx, name, timeout, nil)
	if err != nil {
		return err
	}
	if !acquired {
		return ErrLockUnavailable
	}
	defer func() {
		_, _ = m.Release(ctx, name)
	}()
	return fn()
}

// TryWithLock behaves like WithLock but reports a failed acquisition as
// a false return instead of an error. The boolean tells whether fn ran.
func (m *Manager) TryWithLock(ctx context.Context, name string, timeout time.Duration, fn func() error) (bool, error) {
	err := m.WithLock(ctx, name, timeout, fn)
	switch err {
	case nil:
		return true, nil
	case ErrLockUnavailable:
		return false, nil
	default:
		return true, err
	}
}

// WaitAndAcquire retries Acquire on a fixed poll interval until either
// success or waitTimeout elapses. There is no fairness across waiters:
// the first poll after a release wins. The context cancels the wait.
func (m *Manager) WaitAndAcquire(ctx context.Context, name string, timeout, waitTimeout time.Duration) (bool, error) {
	deadline := m.now().Add(waitTimeout)
	for {
		acquired, err := m.Acquire(ctx, name, timeout, nil)
		if err != nil {
			return false, err
		}
		if acquired {
			return true, nil
		}
		if !m.now().Before(deadline) {
			return false, nil
		}
		t := time.NewTimer(m.cfg.PollInterval)
		select {
		case <-ctx.Done():
			t.Stop()
			return false, ctx.Err()
		case <-t.C:
			break
		}
	}
}
