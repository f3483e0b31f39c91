/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package pgsql

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
	"github.com/sitewatch/sitelock/model"
	"github.com/sitewatch/sitelock/storage/repository"
	"github.com/sitewatch/sitelock/util/pool"
)

// PostgreSQL unique_violation SQL state, raised on unique key violation.
const errUniqueViolation = "23505"

var leaseColumns = []string{"lock_id", "lock_name", "owner", "acquired_at", "expires_at", "timeout_seconds", "heartbeat_at", "metadata"}

type pgSQLLock struct {
	*pgSQLStorage
	pool *pool.BufferPool
}

func newLock(db *sql.DB) *pgSQLLock {
	return &pgSQLLock{
		pgSQLStorage: newStorage(db),
		pool:         pool.NewBufferPool(),
	}
}

// InsertLease atomically inserts a new lease row. The unique key on
// lock_name is the safety mechanism: a concurrent insert for the same
// name fails with a unique violation, mapped to ErrLeaseExists.
func (l *pgSQLLock) InsertLease(ctx context.Context, lease *model.Lease) error {
	metadata, err := l.encodeMetadata(lease.Metadata)
	if err != nil {
		return err
	}
	q := sq.Insert("locks").
		Columns(leaseColumns...).
		Values(lease.LockID, lease.LockName, lease.Owner, lease.AcquiredAt, lease.ExpiresAt, lease.TimeoutSeconds, lease.HeartbeatAt, metadata)

	_, err = q.RunWith(l.db).ExecContext(ctx)
	if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == errUniqueViolation {
		return repository.ErrLeaseExists
	}
	return err
}

func (l *pgSQLLock) FetchLease(ctx context.Context, name string) (*model.Lease, error) {
	q := sq.Select(leaseColumns...).
		From("locks").
		Where(sq.Eq{"lock_name": name})

	return l.scanLease(q.RunWith(l.db).QueryRowContext(ctx))
}

func (l *pgSQLLock) FetchLeases(ctx context.Context) ([]model.Lease, error) {
	q := sq.Select(leaseColumns...).
		From("locks").
		OrderBy("lock_name")

	rows, err := q.RunWith(l.db).QueryContext(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return l.scanLeases(rows)
}

func (l *pgSQLLock) UpdateLeaseExpiry(ctx context.Context, name, owner string, extra time.Duration, now time.Time) (bool, error) {
	extraSecs := int64(extra / time.Second)
	q := sq.Update("locks").
		Set("expires_at", sq.Expr("expires_at + ? * INTERVAL '1 SECOND'", extraSecs)).
		Set("timeout_seconds", sq.Expr("timeout_seconds + ?", extraSecs)).
		Where(sq.Eq{"lock_name": name, "owner": owner}).
		Where(sq.Gt{"expires_at": now})

	res, err := q.RunWith(l.db).ExecContext(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (l *pgSQLLock) TouchLease(ctx context.Context, name, owner string, now time.Time) (bool, error) {
	q := sq.Update("locks").
		Set("heartbeat_at", now).
		Where(sq.Eq{"lock_name": name, "owner": owner}).
		Where(sq.Gt{"expires_at": now})

	res, err := q.RunWith(l.db).ExecContext(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (l *pgSQLLock) DeleteLease(ctx context.Context, name, owner string) (bool, error) {
	q := sq.Delete("locks").
		Where(sq.Eq{"lock_name": name, "owner": owner})

	res, err := q.RunWith(l.db).ExecContext(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (l *pgSQLLock) DeleteLeaseByID(ctx context.Context, name, lockID string) (bool, error) {
	q := sq.Delete("locks").
		Where(sq.Eq{"lock_name": name, "lock_id": lockID})

	res, err := q.RunWith(l.db).ExecContext(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (l *pgSQLLock) ForceDeleteLease(ctx context.Context, name string) (bool, error) {
	q := sq.Delete("locks").
		Where(sq.Eq{"lock_name": name})

	res, err := q.RunWith(l.db).ExecContext(ctx)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (l *pgSQLLock) DeleteOwnerLeases(ctx context.Context, owner string) (int64, error) {
	q := sq.Delete("locks").
		Where(sq.Eq{"owner": owner})

	res, err := q.RunWith(l.db).ExecContext(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (l *pgSQLLock) DeleteStaleLeases(ctx context.Context, now time.Time) (int64, error) {
	q := sq.Delete("locks").
		Where(sq.Or{
			sq.LtOrEq{"expires_at": now},
			sq.Expr("heartbeat_at <= ? - timeout_seconds * 2 * INTERVAL '1 SECOND'", now),
		})

	res, err := q.RunWith(l.db).ExecContext(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (l *pgSQLLock) scanLease(scanner rowScanner) (*model.Lease, error) {
	var lease model.Lease
	var metadata string

	err := scanner.Scan(
		&lease.LockID,
		&lease.LockName,
		&lease.Owner,
		&lease.AcquiredAt,
		&lease.ExpiresAt,
		&lease.TimeoutSeconds,
		&lease.HeartbeatAt,
		&metadata,
	)
	switch err {
	case nil:
		if lease.Metadata, err = decodeMetadata(metadata); err != nil {
			return nil, err
		}
		return &lease, nil
	case sql.ErrNoRows:
		return nil, nil
	default:
		return nil, err
	}
}

func (l *pgSQLLock) scanLeases(scanner rowsScanner) ([]model.Lease, error) {
	var ret []model.Lease
	for scanner.Next() {
		lease, err := l.scanLease(scanner)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *lease)
	}
	return ret, nil
}

func (l *pgSQLLock) encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	buf := l.pool.Get()
	defer l.pool.Put(buf)

	if err := json.NewEncoder(buf).Encode(metadata); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func decodeMetadata(s string) (map[string]string, error) {
	if len(s) == 0 || s == "{}" {
		return nil, nil
	}
	var metadata map[string]string
	if err := json.Unmarshal([]byte(s), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}
