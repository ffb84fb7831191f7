package blobstore

import (
	"context"
	"fmt"

	"github.com/starford/cvdesk/internal/checksum"
	"github.com/starford/cvdesk/internal/localdb"
	"github.com/starford/cvdesk/internal/models"
)

// SQLite implements Store on top of the local database.
type SQLite struct {
	rows localdb.BlobRows
}

// NewSQLite creates a store that keeps documents as rows.
func NewSQLite(rows localdb.BlobRows) *SQLite {
	return &SQLite{rows: rows}
}

// Put persists doc under id.
func (s *SQLite) Put(ctx context.Context, id string, doc *models.Document) error {
	if err := checkID(id); err != nil {
		return err
	}
	data := doc.Data
	if data == nil {
		data = []byte{}
	}
	return s.rows.PutBlob(ctx, localdb.BlobRow{
		ID:           id,
		Name:         doc.Name,
		MimeType:     doc.MimeType,
		LastModified: doc.LastModified,
		Checksum:     checksum.Sum(data),
		Data:         data,
	})
}

// Get reconstructs the document stored under id.
func (s *SQLite) Get(ctx context.Context, id string) (*models.Document, bool, error) {
	row, err := s.rows.GetBlob(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if row == nil {
		return nil, false, nil
	}
	if err := checksum.Verify(row.Data, row.Checksum); err != nil {
		return nil, false, fmt.Errorf("blobstore: %s: %w", id, err)
	}
	return withDefaults(&models.Document{
		Name:         row.Name,
		MimeType:     row.MimeType,
		LastModified: row.LastModified,
		Data:         row.Data,
	}), true, nil
}

// Delete removes the entry under id.
func (s *SQLite) Delete(ctx context.Context, id string) error {
	return s.rows.DeleteBlob(ctx, id)
}
