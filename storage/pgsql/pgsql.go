/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package pgsql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq" // SQL driver
	"github.com/sitewatch/sitelock/log"
	"github.com/sitewatch/sitelock/storage/repository"
)

var pingInterval = time.Second * 15

type pgSQLContainer struct {
	lock *pgSQLLock

	h      *sql.DB
	doneCh chan chan bool
}

// New initializes PostgreSQL storage and returns associated container.
func New(cfg *Config) (repository.Container, error) {
	// placeholder format must be set before building any query
	sq.StatementBuilder = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	c := &pgSQLContainer{doneCh: make(chan chan bool, 1)}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("user=%s password=%s host=%s dbname=%s sslmode=%s", cfg.User, cfg.Password, cfg.Host, cfg.Database, sslMode)

	var err error
	c.h, err = sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	c.h.SetMaxOpenConns(cfg.PoolSize) // set max opened connection count

	if err := c.h.Ping(); err != nil {
		return nil, err
	}
	go c.loop()

	c.lock = newLock(c.h)

	return c, nil
}

func (c *pgSQLContainer) Lock() repository.Lock { return c.lock }

func (c *pgSQLContainer) Close(ctx context.Context) error {
	ch := make(chan bool)
	c.doneCh <- ch
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pgSQLContainer) IsClusterCompatible() bool { return true }

func (c *pgSQLContainer) loop() {
	tc := time.NewTicker(pingInterval)
	defer tc.Stop()

	for {
		select {
		case <-tc.C:
			if err := c.h.Ping(); err != nil {
				log.Error(err)
			}
		case ch := <-c.doneCh:
			if err := c.h.Close(); err != nil {
				log.Error(err)
			}
			close(ch)
			return
		}
	}
}
