/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package lock

import (
	"fmt"
	"os"
	"os/user"
)

// OwnerID derives the identity string of the calling process. The value
// is stable for the lifetime of the process and matches on every
// ownership check.
func OwnerID() string {
	host, err := os.Hostname()
	if err != nil {
		host = "localhost"
	}
	username := "unknown"
	if u, err := user.Current(); err == nil && len(u.Username) > 0 {
		username = u.Username
	}
	return fmt.Sprintf("%s:%s:%d", host, username, os.Getpid())
}
