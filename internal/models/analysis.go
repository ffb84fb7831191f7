// Package models defines the domain types for cvdesk.
package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultMimeType is assumed for documents stored without a type.
const DefaultMimeType = "application/pdf"

// DefaultDocumentName is assumed for documents stored without a name.
const DefaultDocumentName = "resume.pdf"

// Provider identifies the AI backend that produced an analysis.
type Provider string

// Supported providers.
const (
	ProviderOllama Provider = "ollama"
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// ParseProvider normalises a provider name. "local" is accepted as an alias
// for the Ollama backend.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "ollama", "local":
		return ProviderOllama, nil
	case "openai":
		return ProviderOpenAI, nil
	case "gemini":
		return ProviderGemini, nil
	}
	return "", fmt.Errorf("unknown provider %q", s)
}

// RequiresAPIKey reports whether the provider is a hosted API.
func (p Provider) RequiresAPIKey() bool {
	return p == ProviderOpenAI || p == ProviderGemini
}

// Section is one titled block of an analysis.
type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// Document is an uploaded file reconstructed from storage.
type Document struct {
	Name         string
	MimeType     string
	LastModified time.Time
	Data         []byte
}

// IsPDF reports whether the document carries a PDF MIME type.
func (d *Document) IsPDF() bool {
	return d != nil && d.MimeType == "application/pdf"
}

// DocumentSource tells where a record's original document lives.
// It is either StoredDocument or InlineDocument; nil means no document.
type DocumentSource interface {
	documentSource()
}

// StoredDocument references an entry in the binary object store.
type StoredDocument struct {
	Ref string
}

// InlineDocument is the legacy representation: the document base64-encoded
// inside the record. StaleRef keeps a store reference that sat next to the
// payload in old data; it is tried before the payload is migrated.
type InlineDocument struct {
	Data     string
	StaleRef string
}

func (StoredDocument) documentSource() {}
func (InlineDocument) documentSource() {}

// AnalysisRecord is one saved analysis session. CreatedAt is its identity.
type AnalysisRecord struct {
	Filename  string
	CreatedAt string
	Provider  Provider
	Sections  []Section
	Document  DocumentSource
	MimeType  string
}

// NewCreatedAt formats t the way record identities are written.
func NewCreatedAt(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

// DocumentRef returns the store reference of a migrated record.
func (r AnalysisRecord) DocumentRef() (string, bool) {
	if s, ok := r.Document.(StoredDocument); ok && s.Ref != "" {
		return s.Ref, true
	}
	return "", false
}

// IsLegacy reports whether the record still embeds its document.
func (r AnalysisRecord) IsLegacy() bool {
	in, ok := r.Document.(InlineDocument)
	return ok && in.Data != ""
}

// recordJSON is the persisted shape. Field names match the history export of
// the browser frontend so old exports decode unchanged.
type recordJSON struct {
	Filename string    `json:"filename"`
	Date     string    `json:"date"`
	Provider Provider  `json:"provider"`
	Sections []Section `json:"sections"`
	PDFID    string    `json:"pdfId,omitempty"`
	PDFData  string    `json:"pdfData,omitempty"`
	FileType string    `json:"fileType,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (r AnalysisRecord) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		Filename: r.Filename,
		Date:     r.CreatedAt,
		Provider: r.Provider,
		Sections: r.Sections,
		FileType: r.MimeType,
	}
	if out.Sections == nil {
		out.Sections = []Section{}
	}
	switch d := r.Document.(type) {
	case StoredDocument:
		out.PDFID = d.Ref
	case InlineDocument:
		out.PDFData = d.Data
		out.PDFID = d.StaleRef
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *AnalysisRecord) UnmarshalJSON(data []byte) error {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*r = AnalysisRecord{
		Filename:  in.Filename,
		CreatedAt: in.Date,
		Provider:  in.Provider,
		Sections:  in.Sections,
		MimeType:  in.FileType,
	}
	switch {
	case in.PDFData != "":
		r.Document = InlineDocument{Data: in.PDFData, StaleRef: in.PDFID}
	case in.PDFID != "":
		r.Document = StoredDocument{Ref: in.PDFID}
	}
	return nil
}
