/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package pgsql

import (
	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/sitewatch/sitelock/log"
)

// newStorageMock returns a mocked PostgreSQL storage instance.
func newStorageMock() (*pgSQLStorage, sqlmock.Sqlmock) {
	db, sqlMock, err := sqlmock.New()
	if err != nil {
		log.Fatalf("%v", err)
	}
	return &pgSQLStorage{db: db}, sqlMock
}
