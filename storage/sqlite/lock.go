/*
 * Copyright (c) 2020 The sitelock developers.
 * See the LICENSE file for more information.
 */

package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sitewatch/sitelock/model"
	"github.com/sitewatch/sitelock/storage/repository"
)

// Timestamps are stored as nanosecond unix integers: SQLite has no
// native timestamp type and integer comparisons keep the staleness
// predicate exact.
type sqLiteLock struct {
	db *sql.DB
}

func newLock(db *sql.DB) *sqLiteLock {
	return &sqLiteLock{db: db}
}

func (l *sqLiteLock) InsertLease(ctx context.Context, lease *model.Lease) error {
	metadata, err := encodeMetadata(lease.Metadata)
	if err != nil {
		return err
	}
	_, err = l.db.ExecContext(ctx, `
INSERT INTO locks (lock_id, lock_name, owner, acquired_at, expires_at, timeout_seconds, heartbeat_at, metadata)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`, lease.LockID, lease.LockName, lease.Owner, lease.AcquiredAt.UnixNano(), lease.ExpiresAt.UnixNano(), lease.TimeoutSeconds, lease.HeartbeatAt.UnixNano(), metadata)

	if sqErr, ok := err.(sqlite3.Error); ok && sqErr.Code == sqlite3.ErrConstraint {
		return repository.ErrLeaseExists
	}
	return err
}

func (l *sqLiteLock) FetchLease(ctx context.Context, name string) (*model.Lease, error) {
	row := l.db.QueryRowContext(ctx, `
SELECT lock_id, lock_name, owner, acquired_at, expires_at, timeout_seconds, heartbeat_at, metadata
FROM locks WHERE lock_name = ?;
`, name)
	return scanLease(row)
}

func (l *sqLiteLock) FetchLeases(ctx context.Context) ([]model.Lease, error) {
	rows, err := l.db.QueryContext(ctx, `
SELECT lock_id, lock_name, owner, acquired_at, expires_at, timeout_seconds, heartbeat_at, metadata
FROM locks ORDER BY lock_name;
`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ret []model.Lease
	for rows.Next() {
		lease, err := scanLease(rows)
		if err != nil {
			return nil, err
		}
		ret = append(ret, *lease)
	}
	return ret, rows.Err()
}

func (l *sqLiteLock) UpdateLeaseExpiry(ctx context.Context, name, owner string, extra time.Duration, now time.Time) (bool, error) {
	// whole-second granularity, matching the server backends
	extraSecs := int64(extra / time.Second)
	res, err := l.db.ExecContext(ctx, `
UPDATE locks SET expires_at = expires_at + ?, timeout_seconds = timeout_seconds + ?
WHERE lock_name = ? AND owner = ? AND expires_at > ?;
`, extraSecs*int64(time.Second), extraSecs, name, owner, now.UnixNano())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (l *sqLiteLock) TouchLease(ctx context.Context, name, owner string, now time.Time) (bool, error) {
	res, err := l.db.ExecContext(ctx, `
UPDATE locks SET heartbeat_at = ?
WHERE lock_name = ? AND owner = ? AND expires_at > ?;
`, now.UnixNano(), name, owner, now.UnixNano())
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (l *sqLiteLock) DeleteLease(ctx context.Context, name, owner string) (bool, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM locks WHERE lock_name = ? AND owner = ?;`, name, owner)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (l *sqLiteLock) DeleteLeaseByID(ctx context.Context, name, lockID string) (bool, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM locks WHERE lock_name = ? AND lock_id = ?;`, name, lockID)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (l *sqLiteLock) ForceDeleteLease(ctx context.Context, name string) (bool, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM locks WHERE lock_name = ?;`, name)
	if err != nil {
		return false, err
	}
	rows, err := res.RowsAffected()
	return rows > 0, err
}

func (l *sqLiteLock) DeleteOwnerLeases(ctx context.Context, owner string) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM locks WHERE owner = ?;`, owner)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (l *sqLiteLock) DeleteStaleLeases(ctx context.Context, now time.Time) (int64, error) {
	res, err := l.db.ExecContext(ctx, `
DELETE FROM locks WHERE expires_at <= ? OR heartbeat_at <= ? - timeout_seconds * 2000000000;
`, now.UnixNano(), now.UnixNano())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(...interface{}) error
}

func scanLease(scanner rowScanner) (*model.Lease, error) {
	var lease model.Lease
	var acquiredAt, expiresAt, heartbeatAt int64
	var metadata string

	err := scanner.Scan(
		&lease.LockID,
		&lease.LockName,
		&lease.Owner,
		&acquiredAt,
		&expiresAt,
		&lease.TimeoutSeconds,
		&heartbeatAt,
		&metadata,
	)
	switch err {
	case nil:
		lease.AcquiredAt = time.Unix(0, acquiredAt)
		lease.ExpiresAt = time.Unix(0, expiresAt)
		lease.HeartbeatAt = time.Unix(0, heartbeatAt)
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

func encodeMetadata(metadata map[string]string) (string, error) {
	if len(metadata) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(b), nil
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
