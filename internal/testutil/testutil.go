// Package testutil provides shared test helpers for setting up local databases and blob stores.
package testutil

import (
	"io"
	"log/slog"
	"os"
	"testing"

	"github.com/starford/cvdesk/internal/blobstore"
	"github.com/starford/cvdesk/internal/localdb"
)

// TestDB creates a temporary SQLite database that is automatically cleaned up.
func TestDB(t *testing.T) *localdb.DB {
	t.Helper()
	dbFile, err := os.CreateTemp("", "cvdesk-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	dbFile.Close()
	t.Cleanup(func() { os.Remove(dbFile.Name()) })

	db, err := localdb.Open(dbFile.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBlobDir creates a temporary directory with a filesystem blob store.
func TestBlobDir(t *testing.T) (string, *blobstore.FS) {
	t.Helper()
	dir := t.TempDir()
	store, err := blobstore.NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	return dir, store
}

// Logger returns a logger that discards output.
func Logger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}
