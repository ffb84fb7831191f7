package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/starford/cvdesk/internal/checksum"
	"github.com/starford/cvdesk/internal/models"
)

const (
	dataExt = ".bin"
	metaExt = ".json"
)

var idRe = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// entryMeta is the sidecar written next to every payload. Its presence marks
// a committed entry.
type entryMeta struct {
	Name         string `json:"name"`
	Type         string `json:"type"`
	LastModified int64  `json:"lastModified"`
	Size         int    `json:"size"`
	Checksum     string `json:"checksum"`
}

// FS implements Store backed by a directory on the local file system.
type FS struct {
	root string // absolute path to the blob directory
}

// NewFS creates a new FS store rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("blobstore: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("blobstore: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("blobstore: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute blob directory.
func (f *FS) Root() string {
	return f.root
}

// paths returns the payload and metadata paths for id, rejecting ids that
// could escape the root.
func (f *FS) paths(id string) (data, meta string, err error) {
	if !idRe.MatchString(id) {
		return "", "", fmt.Errorf("blobstore: invalid id %q", id)
	}
	base := filepath.Join(f.root, id)
	return base + dataExt, base + metaExt, nil
}

// Put writes the payload first and the metadata last, each atomically.
func (f *FS) Put(_ context.Context, id string, doc *models.Document) error {
	dataPath, metaPath, err := f.paths(id)
	if err != nil {
		return err
	}
	meta, err := json.Marshal(entryMeta{
		Name:         doc.Name,
		Type:         doc.MimeType,
		LastModified: doc.LastModified.UnixMilli(),
		Size:         len(doc.Data),
		Checksum:     checksum.Sum(doc.Data),
	})
	if err != nil {
		return fmt.Errorf("blobstore: encode meta: %w", err)
	}
	if err := writeAtomic(dataPath, doc.Data); err != nil {
		return err
	}
	return writeAtomic(metaPath, meta)
}

// Get reads the metadata and payload for id.
func (f *FS) Get(_ context.Context, id string) (*models.Document, bool, error) {
	dataPath, metaPath, err := f.paths(id)
	if err != nil {
		return nil, false, err
	}
	raw, err := os.ReadFile(metaPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("blobstore: read meta %s: %w", id, err)
	}
	var meta entryMeta
	if err := json.Unmarshal(raw, &meta); err != nil {
		return nil, false, fmt.Errorf("blobstore: decode meta %s: %w", id, err)
	}
	data, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, false, fmt.Errorf("blobstore: read %s: %w", id, err)
	}
	if err := checksum.Verify(data, meta.Checksum); err != nil {
		return nil, false, fmt.Errorf("blobstore: %s: %w", id, err)
	}
	doc := &models.Document{
		Name:     meta.Name,
		MimeType: meta.Type,
		Data:     data,
	}
	if meta.LastModified > 0 {
		doc.LastModified = time.UnixMilli(meta.LastModified)
	}
	return withDefaults(doc), true, nil
}

// Delete removes the metadata first so a half-deleted entry reads as absent.
func (f *FS) Delete(_ context.Context, id string) error {
	dataPath, metaPath, err := f.paths(id)
	if err != nil {
		return err
	}
	for _, p := range []string{metaPath, dataPath} {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("blobstore: delete %s: %w", id, err)
		}
	}
	return nil
}

// IDFromPath returns the entry id for a metadata path inside the root.
func (f *FS) IDFromPath(p string) (string, bool) {
	if filepath.Dir(p) != f.root || !strings.HasSuffix(p, metaExt) {
		return "", false
	}
	id := strings.TrimSuffix(filepath.Base(p), metaExt)
	return id, idRe.MatchString(id)
}

// writeAtomic writes content: tmp file → fsync → rename.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".cvdesk-tmp-*")
	if err != nil {
		return fmt.Errorf("blobstore: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("blobstore: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("blobstore: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("blobstore: close temp: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("blobstore: rename: %w", err)
	}
	success = true
	return nil
}
