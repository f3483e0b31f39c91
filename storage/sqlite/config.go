/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package sqlite

// Config represents SQLite storage configuration.
type Config struct {
	File        string `yaml:"file"`
	BusyTimeout int    `yaml:"busy_timeout"`
	PoolSize    int    `yaml:"pool_size"`
}
