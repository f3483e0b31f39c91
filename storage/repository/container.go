/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package repository

import "context"

// Container interface brings together all repository instances.
type Container interface {
	// Lock method returns repository.Lock concrete implementation.
	Lock() Lock

	// Close closes underlying storage resources, commonly shared across repositories.
	Close(ctx context.Context) error

	// IsClusterCompatible tells whether or not container instance can be safely used across multiple hosts.
	IsClusterCompatible() bool
}
