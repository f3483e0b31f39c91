/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package storage

import (
	"fmt"

	"github.com/sitewatch/sitelock/storage/memstorage"
	"github.com/sitewatch/sitelock/storage/mysql"
	"github.com/sitewatch/sitelock/storage/pgsql"
	"github.com/sitewatch/sitelock/storage/repository"
	"github.com/sitewatch/sitelock/storage/sqlite"
)

// New initializes container based on a given configuration.
func New(cfg *Config) (repository.Container, error) {
	var c repository.Container
	var err error

	switch cfg.Type {
	case MySQL:
		c, err = mysql.New(cfg.MySQL)
	case PostgreSQL:
		c, err = pgsql.New(cfg.PgSQL)
	case SQLite:
		c, err = sqlite.New(cfg.SQLite)
	case Memory:
		c, err = memstorage.New(), nil
	default:
		return nil, fmt.Errorf("storage.New: unrecognized storage type: %d", cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	if cfg.Breaker {
		c = NewBreakerContainer(c)
	}
	return c, nil
}
