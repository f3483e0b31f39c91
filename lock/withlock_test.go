/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package lock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sitewatch/sitelock/storage/memstorage"
	"github.com/stretchr/testify/require"
)

func TestWithLock(t *testing.T) {
	mem := memstorage.New()
	clk := newTestClock()
	m := newTestManager(mem, "web-1:app:4021", clk)

	ran := false
	err := m.WithLock(context.Background(), "job", time.Minute, func() error {
		ran = true
		locked, err := m.IsLocked(context.Background(), "job")
		require.Nil(t, err)
		require.True(t, locked)
		return nil
	})
	require.Nil(t, err)
	require.True(t, ran)

	locked, err := m.IsLocked(context.Background(), "job")
	require.Nil(t, err)
	require.False(t, locked)
}

func TestWithLockUnavailable(t *testing.T) {
	mem := memstorage.New()
	clk := newTestClock()
	a := newTestManager(mem, "web-1:app:4021", clk)
	b := newTestManager(mem, "web-2:app:917", clk)

	acquired, err := a.Acquire(context.Background(), "job", time.Minute, nil)
	require.Nil(t, err)
	require.True(t, acquired)

	ran := false
	err = b.WithLock(context.Background(), "job", time.Minute, func() error {
		ran = true
		return nil
	})
	require.Equal(t, ErrLockUnavailable, err)
	require.False(t, ran)
}

func TestWithLockPropagatesError(t *testing.T) {
	m := newTestManager(memstorage.New(), "web-1:app:4021", newTestClock())

	fnErr := errors.New("work failed")
	err := m.WithLock(context.Background(), "job", time.Minute, func() error {
		return fnErr
	})
	require.Equal(t, fnErr, err)

	locked, err := m.IsLocked(context.Background(), "job")
	require.Nil(t, err)
	require.False(t, locked)
}

func TestWithLockReleasesOnPanic(t *testing.T) {
	m := newTestManager(memstorage.New(), "web-1:app:4021", newTestClock())

	require.Panics(t, func() {
		_ = m.WithLock(context.Background(), "job", time.Minute, func() error {
			panic("boom")
		})
	})

	locked, err := m.IsLocked(context.Background(), "job")
	require.Nil(t, err)
	require.False(t, locked)
}

func TestTryWithLock(t *testing.T) {
	mem := memstorage.New()
	clk := newTestClock()
	a := newTestManager(mem, "web-1:app:4021", clk)
	b := newTestManager(mem, "web-2:app:917", clk)

	ran, err := a.TryWithLock(context.Background(), "job", time.Minute, func() error {
		acquired, err := b.Acquire(context.Background(), "job", time.Minute, nil)
		require.Nil(t, err)
		require.False(t, acquired)
		return nil
	})
	require.Nil(t, err)
	require.True(t, ran)

	acquired, err := b.Acquire(context.Background(), "job", time.Minute, nil)
	require.Nil(t, err)
	require.True(t, acquired)

	ran, err = a.TryWithLock(context.Background(), "job", time.Minute, func() error { return nil })
	require.Nil(t, err)
	require.False(t, ran)
}

func TestWaitAndAcquire(t *testing.T) {
	mem := memstorage.New()
	a := New(&Config{PollInterval: 5 * time.Millisecond}, mem, "web-1:app:4021", nil)
	b := New(&Config{PollInterval: 5 * time.Millisecond}, mem, "web-2:app:917", nil)

	acquired, err := a.Acquire(context.Background(), "job", time.Minute, nil)
	require.Nil(t, err)
	require.True(t, acquired)

	go func() {
		time.Sleep(25 * time.Millisecond)
		_, _ = a.Release(context.Background(), "job")
	}()

	acquired, err = b.WaitAndAcquire(context.Background(), "job", time.Minute, time.Second)
	require.Nil(t, err)
	require.True(t, acquired)
}

func TestWaitAndAcquireTimeout(t *testing.T) {
	mem := memstorage.New()
	a := New(&Config{PollInterval: 5 * time.Millisecond}, mem, "web-1:app:4021", nil)
	b := New(&Config{PollInterval: 5 * time.Millisecond}, mem, "web-2:app:917", nil)

	acquired, err := a.Acquire(context.Background(), "job", time.Minute, nil)
	require.Nil(t, err)
	require.True(t, acquired)

	acquired, err = b.WaitAndAcquire(context.Background(), "job", time.Minute, 30*time.Millisecond)
	require.Nil(t, err)
	require.False(t, acquired)
}

func TestWaitAndAcquireCancellation(t *testing.T) {
	mem := memstorage.New()
	a := New(&Config{PollInterval: time.Hour}, mem, "web-1:app:4021", nil)
	b := New(&Config{PollInterval: time.Hour}, mem, "web-2:app:917", nil)

	acquired, err := a.Acquire(context.Background(), "job", time.Minute, nil)
	require.Nil(t, err)
	require.True(t, acquired)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err = b.WaitAndAcquire(ctx, "job", time.Minute, time.Hour)
	require.Equal(t, context.Canceled, err)
}
