package blobstore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/starford/cvdesk/internal/localdb"
	"github.com/starford/cvdesk/internal/models"
)

func sqliteStore(t *testing.T) Store {
	t.Helper()
	f, err := os.CreateTemp("", "cvdesk-blob-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() { os.Remove(f.Name()) })
	db, err := localdb.Open(f.Name())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewSQLite(db)
}

func fsStore(t *testing.T) Store {
	t.Helper()
	s, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return s
}

// backends runs fn against every local backend.
func backends(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("sqlite", func(t *testing.T) { fn(t, sqliteStore(t)) })
	t.Run("fs", func(t *testing.T) { fn(t, fsStore(t)) })
}

func sampleDoc() *models.Document {
	return &models.Document{
		Name:         "cv.pdf",
		MimeType:     "application/pdf",
		LastModified: time.UnixMilli(1712345678901),
		Data:         []byte("%PDF-1.4\x00\x01\x02binary"),
	}
}

func TestGenerateID_Format(t *testing.T) {
	id := GenerateID("")
	parts := strings.Split(id, "_")
	if len(parts) != 3 || parts[0] != "pdf" {
		t.Fatalf("id = %q, want pdf_<ts>_<rand>", id)
	}
	if parts[2] == "" {
		t.Error("random part is empty")
	}
	if got := GenerateID("doc"); !strings.HasPrefix(got, "doc_") {
		t.Errorf("custom prefix not applied: %q", got)
	}
}

func TestGenerateID_SameTickNoCollision(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := GenerateID(DefaultPrefix)
		if _, dup := seen[id]; dup {
			t.Fatalf("collision after %d ids: %s", i, id)
		}
		seen[id] = struct{}{}
	}
}

func TestPutGet_RoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id := GenerateID(DefaultPrefix)
		want := sampleDoc()
		if err := s.Put(ctx, id, want); err != nil {
			t.Fatalf("Put: %v", err)
		}
		got, ok, err := s.Get(ctx, id)
		if err != nil || !ok {
			t.Fatalf("Get = %v, %v", ok, err)
		}
		if !bytes.Equal(got.Data, want.Data) {
			t.Errorf("data = %q, want %q", got.Data, want.Data)
		}
		if got.Name != want.Name || got.MimeType != want.MimeType {
			t.Errorf("meta = %q %q", got.Name, got.MimeType)
		}
		if !got.LastModified.Equal(want.LastModified) {
			t.Errorf("lastModified = %v, want %v", got.LastModified, want.LastModified)
		}
	})
}

func TestGet_UnknownIsAbsent(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		doc, ok, err := s.Get(context.Background(), "pdf_0_missing")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok || doc != nil {
			t.Errorf("expected absent, got %v", doc)
		}
	})
}

func TestPut_LastWriteWins(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id := GenerateID(DefaultPrefix)
		_ = s.Put(ctx, id, sampleDoc())
		second := sampleDoc()
		second.Data = []byte("second")
		if err := s.Put(ctx, id, second); err != nil {
			t.Fatalf("retry Put: %v", err)
		}
		got, _, _ := s.Get(ctx, id)
		if string(got.Data) != "second" {
			t.Errorf("data = %q, want second", got.Data)
		}
	})
}

func TestDelete_Idempotent(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id := GenerateID(DefaultPrefix)
		_ = s.Put(ctx, id, sampleDoc())
		if err := s.Delete(ctx, id); err != nil {
			t.Fatalf("Delete: %v", err)
		}
		if err := s.Delete(ctx, id); err != nil {
			t.Fatalf("Delete missing: %v", err)
		}
		if _, ok, _ := s.Get(ctx, id); ok {
			t.Error("entry still present")
		}
	})
}

func TestGet_DefaultsForMissingMetadata(t *testing.T) {
	backends(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		id := GenerateID(DefaultPrefix)
		if err := s.Put(ctx, id, &models.Document{Data: []byte("x")}); err != nil {
			t.Fatal(err)
		}
		got, _, _ := s.Get(ctx, id)
		if got.Name != models.DefaultDocumentName || got.MimeType != models.DefaultMimeType {
			t.Errorf("defaults not applied: %q %q", got.Name, got.MimeType)
		}
		if got.LastModified.IsZero() {
			t.Error("lastModified should default to now")
		}
	})
}

func TestFS_CorruptPayloadIsError(t *testing.T) {
	s := fsStore(t).(*FS)
	ctx := context.Background()
	id := GenerateID(DefaultPrefix)
	_ = s.Put(ctx, id, sampleDoc())

	if err := os.WriteFile(filepath.Join(s.Root(), id+dataExt), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, _, err := s.Get(ctx, id); err == nil {
		t.Error("expected checksum error for corrupted payload")
	}
}

func TestFS_MetaWithoutPayloadIsError(t *testing.T) {
	s := fsStore(t).(*FS)
	ctx := context.Background()
	id := GenerateID(DefaultPrefix)
	_ = s.Put(ctx, id, sampleDoc())
	_ = os.Remove(filepath.Join(s.Root(), id+dataExt))

	if _, _, err := s.Get(ctx, id); err == nil {
		t.Error("expected storage failure when payload is missing")
	}
}

func TestFS_InvalidIDRejected(t *testing.T) {
	s := fsStore(t)
	ctx := context.Background()
	for _, id := range []string{"../escape", "a/b", "", "x.y"} {
		if err := s.Put(ctx, id, sampleDoc()); err == nil {
			t.Errorf("expected error for id %q", id)
		}
	}
}

func TestFS_NoLeftoverTempFiles(t *testing.T) {
	s := fsStore(t).(*FS)
	_ = s.Put(context.Background(), GenerateID(DefaultPrefix), sampleDoc())
	matches, _ := filepath.Glob(filepath.Join(s.Root(), ".cvdesk-tmp-*"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestNewFS_FileNotDir(t *testing.T) {
	f, _ := os.CreateTemp("", "cvdesk-test-*")
	_ = f.Close()
	defer os.Remove(f.Name())
	if _, err := NewFS(f.Name()); err == nil {
		t.Error("expected error when root is a file")
	}
}

func TestFS_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	first, _ := NewFS(dir)
	ctx := context.Background()
	id := GenerateID(DefaultPrefix)
	payload := []byte("0123456789")
	_ = first.Put(ctx, id, &models.Document{Name: "a.pdf", MimeType: "application/pdf", Data: payload})

	second, err := NewFS(dir)
	if err != nil {
		t.Fatal(err)
	}
	got, ok, err := second.Get(ctx, id)
	if err != nil || !ok || !bytes.Equal(got.Data, payload) {
		t.Fatalf("after reopen: %v %v %v", got, ok, err)
	}
}
