package localdb

import (
	"context"
	"time"
)

// KeyValueStore is durable key -> text storage.
type KeyValueStore interface {
	GetValue(ctx context.Context, key string) (string, bool, error)
	PutValue(ctx context.Context, key, value string) error
	DeleteValue(ctx context.Context, key string) error
}

// SessionStore is key -> text storage scoped to a client session.
type SessionStore interface {
	GetSessionValue(ctx context.Context, sessionID, key string, notBefore time.Time) (string, bool, error)
	PutSessionValue(ctx context.Context, sessionID, key, value string) error
	DeleteSessionValue(ctx context.Context, sessionID, key string) error
	PruneSessions(ctx context.Context, olderThan time.Time) (int64, error)
}

// BlobRows stores binary documents as table rows.
type BlobRows interface {
	PutBlob(ctx context.Context, row BlobRow) error
	GetBlob(ctx context.Context, id string) (*BlobRow, error)
	DeleteBlob(ctx context.Context, id string) error
}

// Verify *DB satisfies the interfaces at compile time.
var (
	_ KeyValueStore = (*DB)(nil)
	_ SessionStore  = (*DB)(nil)
	_ BlobRows      = (*DB)(nil)
)
