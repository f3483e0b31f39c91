/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package memstorage

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/sitewatch/sitelock/model"
	"github.com/sitewatch/sitelock/storage/repository"
)

// ErrMocked will be returned by any Storage method when mocked error is
// activated.
var ErrMocked = errors.New("memstorage: mocked error")

// Storage represents an in-memory lease repository. It implements both
// repository.Lock and repository.Container so it can back tests and
// single-process deployments without external infrastructure.
type Storage struct {
	mockErr uint32
	mu      sync.RWMutex
	leases  map[string]*model.Lease
}

// New returns a new in-memory storage instance.
func New() *Storage {
	return &Storage{leases: make(map[string]*model.Lease)}
}

// Lock returns the lease repository.
func (m *Storage) Lock() repository.Lock { return m }

// Close releases underlying resources. It's a no-op for memory storage.
func (m *Storage) Close(_ context.Context) error { return nil }

// IsClusterCompatible returns whether or not the underlying storage
// subsystem can be shared across multiple hosts.
func (m *Storage) IsClusterCompatible() bool { return false }

// ActivateMockedError forces every upcoming operation to fail.
func (m *Storage) ActivateMockedError() {
	atomic.StoreUint32(&m.mockErr, 1)
}

// DeactivateMockedError restores normal operation.
func (m *Storage) DeactivateMockedError() {
	atomic.StoreUint32(&m.mockErr, 0)
}

func (m *Storage) inWriteLock(f func() error) error {
	if atomic.LoadUint32(&m.mockErr) == 1 {
		return ErrMocked
	}
	m.mu.Lock()
	err := f()
	m.mu.Unlock()
	return err
}

func (m *Storage) inReadLock(f func() error) error {
	if atomic.LoadUint32(&m.mockErr) == 1 {
		return ErrMocked
	}
	m.mu.RLock()
	err := f()
	m.mu.RUnlock()
	return err
}

func copyLease(lease *model.Lease) *model.Lease {
	cp := *lease
	if lease.Metadata != nil {
		cp.Metadata = make(map[string]string, len(lease.Metadata))
		for k, v := range lease.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
