/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package repository

import "errors"

// ErrLeaseExists will be returned by InsertLease when a lease row keyed
// by the same lock name is already stored. Backends map their native
// unique constraint violation to this value.
var ErrLeaseExists = errors.New("repository: lease already exists")
