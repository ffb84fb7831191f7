// Package viewer tracks the document each session currently displays and
// hands out short-lived tokens to fetch it.
package viewer

import (
	"bytes"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/ledongthuc/pdf"

	"github.com/starford/cvdesk/internal/models"
)

type entry struct {
	sessionID string
	doc       *models.Document
}

// Registry holds at most one displayed document per session. Showing a new
// document releases the previous token of that session.
type Registry struct {
	mu        sync.Mutex
	bySession map[string]string
	byToken   map[string]entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		bySession: make(map[string]string),
		byToken:   make(map[string]entry),
	}
}

// Show registers doc as the session's displayed document and returns its token.
func (r *Registry) Show(sessionID string, doc *models.Document) string {
	token := uuid.NewString()

	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(sessionID)
	r.bySession[sessionID] = token
	r.byToken[token] = entry{sessionID: sessionID, doc: doc}
	return token
}

// Release drops the session's displayed document, if any.
func (r *Registry) Release(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.releaseLocked(sessionID)
}

func (r *Registry) releaseLocked(sessionID string) {
	if old, ok := r.bySession[sessionID]; ok {
		delete(r.byToken, old)
		delete(r.bySession, sessionID)
	}
}

// Lookup returns the document behind a live token.
func (r *Registry) Lookup(token string) (*models.Document, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.byToken[token]
	if !ok {
		return nil, false
	}
	return e.doc, true
}

// Current returns the live token of a session.
func (r *Registry) Current(sessionID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.bySession[sessionID]
	return t, ok
}

// Len returns the number of live tokens.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byToken)
}

// Inspect returns the page count of a PDF document. Non-PDF or unreadable
// documents report 0.
func Inspect(doc *models.Document) (pages int) {
	if !doc.IsPDF() || len(doc.Data) == 0 {
		return 0
	}
	n, err := pageCount(doc.Data)
	if err != nil {
		return 0
	}
	return n
}

func pageCount(data []byte) (n int, err error) {
	// The reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			n, err = 0, fmt.Errorf("pdf: %v", r)
		}
	}()
	rd, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, err
	}
	return rd.NumPage(), nil
}
