/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // SQL driver
	"github.com/sitewatch/sitelock/log"
	"github.com/sitewatch/sitelock/storage/repository"
)

var pingInterval = time.Second * 15

type mySQLContainer struct {
	lock *mySQLLock

	h      *sql.DB
	doneCh chan chan bool
}

// New initializes MySQL storage and returns associated container.
func New(cfg *Config) (repository.Container, error) {
	var err error
	c := &mySQLContainer{doneCh: make(chan chan bool, 1)}

	c.h, err = sql.Open("mysql", dataSourceName(cfg))
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

// clientFoundRows makes affected row counts reflect matched rows:
// an owner-checked update that writes values identical to the stored
// ones must still report success.
func dataSourceName(cfg *Config) string {
	return fmt.Sprintf("%s:%s@tcp(%s)/%s?parseTime=true&clientFoundRows=true", cfg.User, cfg.Password, cfg.Host, cfg.Database)
}

func (c *mySQLContainer) Lock() repository.Lock { return c.lock }

func (c *mySQLContainer) Close(ctx context.Context) error {
	ch := make(chan bool)
	c.doneCh <- ch
	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *mySQLContainer) IsClusterCompatible() bool { return true }

func (c *mySQLContainer) loop() {
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
