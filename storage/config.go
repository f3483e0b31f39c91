/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package storage

import (
	"errors"
	"fmt"

	"github.com/sitewatch/sitelock/storage/mysql"
	"github.com/sitewatch/sitelock/storage/pgsql"
	"github.com/sitewatch/sitelock/storage/sqlite"
)

const defaultPoolSize = 16

// Type represents a storage manager type.
type Type int

const (
	// MySQL represents a MySQL storage type.
	MySQL Type = iota

	// PostgreSQL represents a PostgreSQL storage type.
	PostgreSQL

	// SQLite represents a SQLite storage type.
	SQLite

	// Memory represents a in-memory storage type.
	Memory
)

// Config represents a storage manager configuration.
type Config struct {
	Type    Type
	Breaker bool
	MySQL   *mysql.Config
	PgSQL   *pgsql.Config
	SQLite  *sqlite.Config
}

type storageProxyType struct {
	Type    string         `yaml:"type"`
	Breaker bool           `yaml:"breaker"`
	MySQL   *mysql.Config  `yaml:"mysql"`
	PgSQL   *pgsql.Config  `yaml:"pgsql"`
	SQLite  *sqlite.Config `yaml:"sqlite"`
}

// UnmarshalYAML satisfies Unmarshaler interface.
func (c *Config) UnmarshalYAML(unmarshal func(interface{}) error) error {
	p := storageProxyType{}
	if err := unmarshal(&p); err != nil {
		return err
	}
	c.Breaker = p.Breaker

	switch p.Type {
	case "mysql":
		if p.MySQL == nil {
			return errors.New("storage.Config: couldn't read MySQL configuration")
		}
		c.Type = MySQL

		// assign storage defaults
		c.MySQL = p.MySQL
		if c.MySQL.PoolSize == 0 {
			c.MySQL.PoolSize = defaultPoolSize
		}

	case "pgsql":
		if p.PgSQL == nil {
			return errors.New("storage.Config: couldn't read PostgreSQL configuration")
		}
		c.Type = PostgreSQL

		c.PgSQL = p.PgSQL
		if c.PgSQL.PoolSize == 0 {
			c.PgSQL.PoolSize = defaultPoolSize
		}

	case "sqlite":
		if p.SQLite == nil {
			return errors.New("storage.Config: couldn't read SQLite configuration")
		}
		c.Type = SQLite

		c.SQLite = p.SQLite
		if len(c.SQLite.File) == 0 {
			c.SQLite.File = "./sitelock.db"
		}

	case "memory":
		c.Type = Memory

	case "":
		return errors.New("storage.Config: unspecified storage type")

	default:
		return fmt.Errorf("storage.Config: unrecognized storage type: %s", p.Type)
	}
	return nil
}
