package localdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BlobRow represents a row in the blobs table.
type BlobRow struct {
	ID           string
	Name         string
	MimeType     string
	LastModified time.Time
	Checksum     string
	Data         []byte
}

// GetValue returns the value stored under key. The bool is false when the key
// does not exist.
func (db *DB) GetValue(ctx context.Context, key string) (string, bool, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localdb: get value %s: %w", key, err)
	}
	return v, true, nil
}

// PutValue inserts or replaces the value under key.
func (db *DB) PutValue(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("localdb: put value %s: %w", key, err)
	}
	return nil
}

// DeleteValue removes key. Missing keys are not an error.
func (db *DB) DeleteValue(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("localdb: delete value %s: %w", key, err)
	}
	return nil
}

// GetSessionValue returns a session-scoped value written at or after notBefore.
// Older values are reported as absent.
func (db *DB) GetSessionValue(ctx context.Context, sessionID, key string, notBefore time.Time) (string, bool, error) {
	var v string
	err := db.conn.QueryRowContext(ctx, `
		SELECT value FROM session_values
		WHERE session_id = ? AND key = ? AND updated_at >= ?
	`, sessionID, key, notBefore.UnixMilli()).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("localdb: get session value: %w", err)
	}
	return v, true, nil
}

// PutSessionValue inserts or replaces a session-scoped value.
func (db *DB) PutSessionValue(ctx context.Context, sessionID, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO session_values (session_id, key, value, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(session_id, key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at
	`, sessionID, key, value, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("localdb: put session value: %w", err)
	}
	return nil
}

// DeleteSessionValue removes a session-scoped value.
func (db *DB) DeleteSessionValue(ctx context.Context, sessionID, key string) error {
	_, err := db.conn.ExecContext(ctx, `DELETE FROM session_values WHERE session_id = ? AND key = ?`, sessionID, key)
	if err != nil {
		return fmt.Errorf("localdb: delete session value: %w", err)
	}
	return nil
}

// PruneSessions removes session values last written before olderThan.
func (db *DB) PruneSessions(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `DELETE FROM session_values WHERE updated_at < ?`, olderThan.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("localdb: prune sessions: %w", err)
	}
	return res.RowsAffected()
}

// PutBlob inserts or replaces a blob row.
func (db *DB) PutBlob(ctx context.Context, row BlobRow) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO blobs (id, name, mime_type, last_modified, checksum, data)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name          = excluded.name,
			mime_type     = excluded.mime_type,
			last_modified = excluded.last_modified,
			checksum      = excluded.checksum,
			data          = excluded.data
	`, row.ID, row.Name, row.MimeType, row.LastModified.UnixMilli(), row.Checksum, row.Data)
	if err != nil {
		return fmt.Errorf("localdb: put blob %s: %w", row.ID, err)
	}
	return nil
}

// GetBlob returns the blob row for id, or nil when it does not exist.
func (db *DB) GetBlob(ctx context.Context, id string) (*BlobRow, error) {
	var (
		row BlobRow
		lm  int64
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, mime_type, last_modified, checksum, data FROM blobs WHERE id = ?
	`, id).Scan(&row.ID, &row.Name, &row.MimeType, &lm, &row.Checksum, &row.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("localdb: get blob %s: %w", id, err)
	}
	if lm > 0 {
		row.LastModified = time.UnixMilli(lm)
	}
	return &row, nil
}

// DeleteBlob removes a blob row. Missing ids are not an error.
func (db *DB) DeleteBlob(ctx context.Context, id string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM blobs WHERE id = ?`, id); err != nil {
		return fmt.Errorf("localdb: delete blob %s: %w", id, err)
	}
	return nil
}
