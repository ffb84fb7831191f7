// Package blobstore persists original uploaded documents, addressed by
// generated identifiers, independently of the history ledger.
package blobstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/cvdesk/internal/models"
)

// DefaultPrefix is used for document identifiers.
const DefaultPrefix = "pdf"

// Store is the interface for binary document persistence.
type Store interface {
	// Put persists doc under id. Writing the same id again replaces the entry.
	Put(ctx context.Context, id string, doc *models.Document) error
	// Get reconstructs the document stored under id. The bool is false, with a
	// nil error, when id is unknown; errors are reserved for storage failures.
	Get(ctx context.Context, id string) (*models.Document, bool, error)
	// Delete removes the entry under id. Unknown ids are not an error.
	Delete(ctx context.Context, id string) error
}

// GenerateID returns an identifier of the form prefix_<unix-millis>_<random>.
func GenerateID(prefix string) string {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	random := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return fmt.Sprintf("%s_%d_%s", prefix, time.Now().UnixMilli(), random)
}

// withDefaults fills metadata missing from old or partial entries.
func withDefaults(doc *models.Document) *models.Document {
	if doc.Name == "" {
		doc.Name = models.DefaultDocumentName
	}
	if doc.MimeType == "" {
		doc.MimeType = models.DefaultMimeType
	}
	if doc.LastModified.IsZero() {
		doc.LastModified = time.Now()
	}
	if doc.Data == nil {
		doc.Data = []byte{}
	}
	return doc
}

func checkID(id string) error {
	if id == "" {
		return fmt.Errorf("blobstore: empty id")
	}
	return nil
}
