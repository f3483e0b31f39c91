/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package pgsql

import (
	"database/sql"
	"errors"
)

type rowScanner interface {
	Scan(...interface{}) error
}

type rowsScanner interface {
	rowScanner
	Next() bool
}

// pgSQLStorage represents a PostgreSQL storage base sub system.
type pgSQLStorage struct {
	db *sql.DB
}

var errMocked = errors.New("pgsql: storage error")

// newStorage instantiates a PostgreSQL base storage instance.
func newStorage(db *sql.DB) *pgSQLStorage {
	return &pgSQLStorage{db: db}
}
