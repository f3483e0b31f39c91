/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQL driver
	"github.com/pkg/errors"
	"github.com/sitewatch/sitelock/storage/repository"
)

const defaultBusyTimeout = 5000 // milliseconds

type sqLiteContainer struct {
	lock *sqLiteLock

	h *sql.DB
}

// New initializes SQLite storage and returns associated container.
// Unlike the server backends it holds a local database file, suited to
// single-host deployments and the command line tool.
func New(cfg *Config) (repository.Container, error) {
	c := &sqLiteContainer{}

	busyTimeout := cfg.BusyTimeout
	if busyTimeout <= 0 {
		busyTimeout = defaultBusyTimeout
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL", cfg.File, busyTimeout)

	var err error
	c.h, err = sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	c.h.SetMaxOpenConns(cfg.PoolSize) // set max opened connection count

	if err := c.h.Ping(); err != nil {
		return nil, err
	}
	if err := migrate(c.h); err != nil {
		_ = c.h.Close()
		return nil, errors.Wrap(err, "sqlite: migrating schema")
	}
	c.lock = newLock(c.h)

	return c, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS locks (
  lock_id TEXT NOT NULL,
  lock_name TEXT PRIMARY KEY,
  owner TEXT NOT NULL,
  acquired_at INTEGER NOT NULL,
  expires_at INTEGER NOT NULL,
  timeout_seconds INTEGER NOT NULL,
  heartbeat_at INTEGER NOT NULL,
  metadata TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_locks_expires_at ON locks(expires_at);
CREATE INDEX IF NOT EXISTS idx_locks_owner ON locks(owner);
`)
	return err
}

func (c *sqLiteContainer) Lock() repository.Lock { return c.lock }

func (c *sqLiteContainer) Close(_ context.Context) error {
	return c.h.Close()
}

func (c *sqLiteContainer) IsClusterCompatible() bool { return false }
