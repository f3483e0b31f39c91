/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package mysql

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/sitewatch/sitelock/model"
	"github.com/sitewatch/sitelock/storage/repository"
	"github.com/sitewatch/sitelock/util/pool"
	"github.com/stretchr/testify/require"
)

var leaseTestColumns = []string{"lock_id", "lock_name", "owner", "acquired_at", "expires_at", "timeout_seconds", "heartbeat_at", "metadata"}

func newLockMock() (*mySQLLock, sqlmock.Sqlmock) {
	s, sqlMock := newStorageMock()
	return &mySQLLock{
		mySQLStorage: s,
		pool:         pool.NewBufferPool(),
	}, sqlMock
}

func testLease(now time.Time) *model.Lease {
	return &model.Lease{
		LockID:         "8d6f3a10",
		LockName:       "report-job",
		Owner:          "web-1:app:4021",
		AcquiredAt:     now,
		ExpiresAt:      now.Add(time.Minute),
		TimeoutSeconds: 60,
		HeartbeatAt:    now,
	}
}

func TestMySQLStorageInsertLease(t *testing.T) {
	now := time.Date(2020, 7, 1, 10, 0, 0, 0, time.UTC)
	lease := testLease(now)

	s, mock := newLockMock()
	mock.ExpectExec("INSERT INTO locks (.+)").
		WithArgs(lease.LockID, lease.LockName, lease.Owner, lease.AcquiredAt, lease.ExpiresAt, lease.TimeoutSeconds, lease.HeartbeatAt, "{}").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.InsertLease(context.Background(), lease)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)

	// duplicate entry maps to ErrLeaseExists
	s, mock = newLockMock()
	mock.ExpectExec("INSERT INTO locks (.+)").
		WithArgs(lease.LockID, lease.LockName, lease.Owner, lease.AcquiredAt, lease.ExpiresAt, lease.TimeoutSeconds, lease.HeartbeatAt, "{}").
		WillReturnError(&mysql.MySQLError{Number: errDupEntry})

	err = s.InsertLease(context.Background(), lease)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, repository.ErrLeaseExists, err)

	s, mock = newLockMock()
	mock.ExpectExec("INSERT INTO locks (.+)").
		WithArgs(lease.LockID, lease.LockName, lease.Owner, lease.AcquiredAt, lease.ExpiresAt, lease.TimeoutSeconds, lease.HeartbeatAt, "{}").
		WillReturnError(errMocked)

	err = s.InsertLease(context.Background(), lease)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, errMocked, err)
}

func TestMySQLStorageInsertLeaseMetadata(t *testing.T) {
	now := time.Date(2020, 7, 1, 10, 0, 0, 0, time.UTC)
	lease := testLease(now)
	lease.Metadata = map[string]string{"job": "weekly-report"}

	s, mock := newLockMock()
	mock.ExpectExec("INSERT INTO locks (.+)").
		WithArgs(lease.LockID, lease.LockName, lease.Owner, lease.AcquiredAt, lease.ExpiresAt, lease.TimeoutSeconds, lease.HeartbeatAt, `{"job":"weekly-report"}`).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.InsertLease(context.Background(), lease)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
}

func TestMySQLStorageFetchLease(t *testing.T) {
	now := time.Date(2020, 7, 1, 10, 0, 0, 0, time.UTC)

	s, mock := newLockMock()
	mock.ExpectQuery("SELECT (.+) FROM locks (.+)").
		WithArgs("report-job").
		WillReturnRows(sqlmock.NewRows(leaseTestColumns))

	lease, err := s.FetchLease(context.Background(), "report-job")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Nil(t, lease)

	s, mock = newLockMock()
	mock.ExpectQuery("SELECT (.+) FROM locks (.+)").
		WithArgs("report-job").
		WillReturnRows(sqlmock.NewRows(leaseTestColumns).
			AddRow("8d6f3a10", "report-job", "web-1:app:4021", now, now.Add(time.Minute), 60, now, `{"job":"weekly-report"}`))

	lease, err = s.FetchLease(context.Background(), "report-job")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.NotNil(t, lease)
	require.Equal(t, "web-1:app:4021", lease.Owner)
	require.Equal(t, "weekly-report", lease.Metadata["job"])

	s, mock = newLockMock()
	mock.ExpectQuery("SELECT (.+) FROM locks (.+)").
		WithArgs("report-job").
		WillReturnError(errMocked)

	_, err = s.FetchLease(context.Background(), "report-job")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, errMocked, err)
}

func TestMySQLStorageFetchLeases(t *testing.T) {
	now := time.Date(2020, 7, 1, 10, 0, 0, 0, time.UTC)

	s, mock := newLockMock()
	mock.ExpectQuery("SELECT (.+) FROM locks ORDER BY lock_name").
		WillReturnRows(sqlmock.NewRows(leaseTestColumns).
			AddRow("8d6f3a10", "report-job", "web-1:app:4021", now, now.Add(time.Minute), 60, now, "{}").
			AddRow("91ba0cc7", "scan-job", "web-2:app:113", now, now.Add(time.Minute), 60, now, "{}"))

	leases, err := s.FetchLeases(context.Background())
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Len(t, leases, 2)
}

func TestMySQLStorageUpdateLeaseExpiry(t *testing.T) {
	now := time.Date(2020, 7, 1, 10, 0, 0, 0, time.UTC)

	s, mock := newLockMock()
	mock.ExpectExec("UPDATE locks SET expires_at = DATE_ADD(.+), timeout_seconds = timeout_seconds (.+)").
		WithArgs(int64(10), int64(10), "report-job", "web-1:app:4021", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.UpdateLeaseExpiry(context.Background(), "report-job", "web-1:app:4021", 10*time.Second, now)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.True(t, ok)

	// non-owner or expired lease: no row matches
	s, mock = newLockMock()
	mock.ExpectExec("UPDATE locks SET expires_at = DATE_ADD(.+), timeout_seconds = timeout_seconds (.+)").
		WithArgs(int64(10), int64(10), "report-job", "intruder", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = s.UpdateLeaseExpiry(context.Background(), "report-job", "intruder", 10*time.Second, now)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.False(t, ok)
}

func TestMySQLStorageTouchLease(t *testing.T) {
	now := time.Date(2020, 7, 1, 10, 0, 0, 0, time.UTC)

	s, mock := newLockMock()
	mock.ExpectExec("UPDATE locks SET heartbeat_at = (.+)").
		WithArgs(now, "report-job", "web-1:app:4021", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.TouchLease(context.Background(), "report-job", "web-1:app:4021", now)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.True(t, ok)
}

func TestMySQLStorageDeleteLease(t *testing.T) {
	s, mock := newLockMock()
	mock.ExpectExec("DELETE FROM locks (.+)").
		WithArgs("report-job", "web-1:app:4021").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.DeleteLease(context.Background(), "report-job", "web-1:app:4021")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.True(t, ok)

	s, mock = newLockMock()
	mock.ExpectExec("DELETE FROM locks (.+)").
		WithArgs("report-job", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = s.DeleteLease(context.Background(), "report-job", "intruder")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.False(t, ok)
}

func TestMySQLStorageDeleteLeaseByID(t *testing.T) {
	s, mock := newLockMock()
	mock.ExpectExec("DELETE FROM locks (.+)").
		WithArgs("8d6f3a10", "report-job").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.DeleteLeaseByID(context.Background(), "report-job", "8d6f3a10")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.True(t, ok)
}

func TestMySQLStorageForceDeleteLease(t *testing.T) {
	s, mock := newLockMock()
	mock.ExpectExec("DELETE FROM locks (.+)").
		WithArgs("report-job").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := s.ForceDeleteLease(context.Background(), "report-job")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.True(t, ok)
}

func TestMySQLStorageDeleteOwnerLeases(t *testing.T) {
	s, mock := newLockMock()
	mock.ExpectExec("DELETE FROM locks (.+)").
		WithArgs("web-1:app:4021").
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := s.DeleteOwnerLeases(context.Background(), "web-1:app:4021")
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, int64(3), count)
}

func TestMySQLStorageDeleteStaleLeases(t *testing.T) {
	now := time.Date(2020, 7, 1, 10, 0, 0, 0, time.UTC)

	s, mock := newLockMock()
	mock.ExpectExec("DELETE FROM locks WHERE (.+)").
		WithArgs(now, now).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := s.DeleteStaleLeases(context.Background(), now)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Nil(t, err)
	require.Equal(t, int64(2), count)

	s, mock = newLockMock()
	mock.ExpectExec("DELETE FROM locks WHERE (.+)").
		WithArgs(now, now).
		WillReturnError(errMocked)

	_, err = s.DeleteStaleLeases(context.Background(), now)
	require.Nil(t, mock.ExpectationsWereMet())
	require.Equal(t, errMocked, err)
}
