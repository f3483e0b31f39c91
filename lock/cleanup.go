/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package lock

import (
	"context"
	"sync/atomic"

	"github.com/sitewatch/sitelock/log"
)

// CleanupStaleLocks removes every lease that is expired or whose owner
// stopped heartbeating beyond the staleness window, returning the
// number removed. Safe to run concurrently with acquisitions from
// arbitrary processes: it only ever deletes rows matching the staleness
// predicate, never a live lease.
func (m *Manager) CleanupStaleLocks(ctx context.Context) (int, error) {
	count, err := m.rep.DeleteStaleLeases(ctx, m.now())
	if err != nil {
		return 0, err
	}
	m.metrics.addCleanupRemoved(count)
	return int(count), nil
}

// maybeCleanup opportunistically runs the stale lease sweep, at most
// once per configured interval. The rate limit lives in an atomic
// process-local timestamp, never in lock state. Sweep failures are
// logged and swallowed: a broken sweep must not abort an acquisition.
func (m *Manager) maybeCleanup(ctx context.Context) {
	now := m.now().UnixNano()
	last := atomic.LoadInt64(&m.lastCleanup)
	if now-last < int64(m.cfg.CleanupInterval) {
		return
	}
	if !atomic.CompareAndSwapInt64(&m.lastCleanup, last, now) {
		return // another goroutine grabbed this cycle
	}
	count, err := m.rep.DeleteStaleLeases(ctx, m.now())
	if err != nil {
		log.Warnf("stale lease sweep failed: %v", err)
		return
	}
	m.metrics.addCleanupRemoved(count)
	if count > 0 {
		log.Debugf("stale lease sweep removed %d lease(s)", count)
	}
}
