/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package model

import "time"

// Lease represents a lease storage entity: a time-bounded claim on a
// named resource. At most one live lease exists per lock name.
type Lease struct {
	LockID         string
	LockName       string
	Owner          string
	AcquiredAt     time.Time
	ExpiresAt      time.Time
	TimeoutSeconds int64
	HeartbeatAt    time.Time
	Metadata       map[string]string
}

// Timeout returns the lease duration as a time.Duration value.
func (l *Lease) Timeout() time.Duration {
	return time.Duration(l.TimeoutSeconds) * time.Second
}

// IsExpired tells whether the lease validity window has passed.
func (l *Lease) IsExpired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// IsHeartbeatStale tells whether the holder stopped proving liveness:
// no heartbeat within twice the lease duration.
func (l *Lease) IsHeartbeatStale(now time.Time) bool {
	return now.Sub(l.HeartbeatAt) >= 2*l.Timeout()
}

// IsLive tells whether the lease still excludes other acquirers.
func (l *Lease) IsLive(now time.Time) bool {
	return !l.IsExpired(now) && !l.IsHeartbeatStale(now)
}

// IsStale tells whether the lease is reclaimable by the sweep.
func (l *Lease) IsStale(now time.Time) bool {
	return !l.IsLive(now)
}
