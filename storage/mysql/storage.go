/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package mysql

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

// mySQLStorage represents a MySQL storage base sub system.
type mySQLStorage struct {
	db *sql.DB
}

var errMocked = errors.New("mysql: storage error")

// newStorage instantiates a MySQL base storage instance.
func newStorage(db *sql.DB) *mySQLStorage {
	return &mySQLStorage{db: db}
}
