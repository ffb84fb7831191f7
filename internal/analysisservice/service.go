// Package analysisservice coordinates the backend, the history, the document
// store and per-session display state.
package analysisservice

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/starford/cvdesk/internal/apperr"
	"github.com/starford/cvdesk/internal/backend"
	"github.com/starford/cvdesk/internal/blobstore"
	"github.com/starford/cvdesk/internal/ledger"
	"github.com/starford/cvdesk/internal/migrate"
	"github.com/starford/cvdesk/internal/models"
	"github.com/starford/cvdesk/internal/parser"
	"github.com/starford/cvdesk/internal/session"
	"github.com/starford/cvdesk/internal/sse"
	"github.com/starford/cvdesk/internal/viewer"
)

// Backend is the analysis service the submissions go to.
type Backend interface {
	Analyze(ctx context.Context, req backend.AnalyzeRequest) (string, error)
	TestConnection(ctx context.Context, provider models.Provider, apiKey string) (bool, string, error)
	CheckOllama(ctx context.Context) (bool, error)
	BaseURL() string
}

// Events receives history change notifications.
type Events interface {
	PublishHistoryEvent(kind, createdAt string)
}

// Recorder receives operational counters.
type Recorder interface {
	Analysis(outcome string)
	Resolution(outcome string)
	HistorySize(n int)
}

// Deps are the collaborators of a Service. Events and Metrics are optional.
type Deps struct {
	Ledger   *ledger.Ledger
	Store    blobstore.Store
	Sessions *session.Scope
	Viewer   *viewer.Registry
	Backend  Backend
	Events   Events
	Metrics  Recorder
	Logger   *slog.Logger
}

// SubmitRequest is one resume upload.
type SubmitRequest struct {
	JobTitle        string
	Sector          string
	ExperienceLevel string
	Provider        string
	APIKey          string
	Filename        string
	MimeType        string
	Data            []byte
}

// Service implements the analysis workflow.
type Service struct {
	ledger   *ledger.Ledger
	store    blobstore.Store
	adapter  *migrate.Adapter
	sessions *session.Scope
	viewer   *viewer.Registry
	backend  Backend
	events   Events
	metrics  Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a service.
func New(d Deps) *Service {
	s := &Service{
		ledger:   d.Ledger,
		store:    d.Store,
		sessions: d.Sessions,
		viewer:   d.Viewer,
		backend:  d.Backend,
		events:   d.Events,
		metrics:  d.Metrics,
		logger:   d.Logger,
		now:      time.Now,
	}
	if s.events == nil {
		s.events = noopEvents{}
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	s.adapter = migrate.New(d.Store, d.Ledger, d.Logger, func(o migrate.Outcome) {
		s.metrics.Resolution(string(o))
	})
	s.metrics.HistorySize(len(d.Ledger.List()))
	return s
}

// BackendURL returns the address of the analysis backend.
func (s *Service) BackendURL() string {
	return s.backend.BaseURL()
}

// Submit sends a resume to the backend, saves the analysis with its
// document and makes it the session's current record.
func (s *Service) Submit(ctx context.Context, sessionID string, req SubmitRequest) (*AnalysisView, error) {
	provider, err := models.ParseProvider(req.Provider)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrInvalidProvider, err)
	}
	if req.MimeType == "" {
		req.MimeType = "application/octet-stream"
	}

	s.resetDisplay(ctx, sessionID)

	text, err := s.backend.Analyze(ctx, backend.AnalyzeRequest{
		JobTitle:        req.JobTitle,
		Sector:          req.Sector,
		ExperienceLevel: req.ExperienceLevel,
		Provider:        provider,
		APIKey:          req.APIKey,
		Filename:        req.Filename,
		MimeType:        req.MimeType,
		File:            req.Data,
	})
	if err != nil {
		s.metrics.Analysis("backend_error")
		return nil, err
	}

	sections := parser.ParseSections(text)
	if len(sections) == 0 {
		s.metrics.Analysis("empty")
		return nil, apperr.ErrEmptyAnalysis
	}

	doc := &models.Document{
		Name:         req.Filename,
		MimeType:     req.MimeType,
		LastModified: s.now(),
		Data:         req.Data,
	}
	rec := models.AnalysisRecord{
		Filename:  req.Filename,
		CreatedAt: models.NewCreatedAt(s.now()),
		Provider:  provider,
		Sections:  sections,
	}
	if doc.IsPDF() {
		if ref, ok := s.storeDocument(ctx, doc); ok {
			rec.Document = models.StoredDocument{Ref: ref}
			rec.MimeType = doc.MimeType
		}
	}

	// The analysis is complete at this point; a client that stops waiting
	// must not leave it half saved.
	ctx = context.WithoutCancel(ctx)
	recs, err := s.ledger.Append(ctx, rec)
	if err != nil {
		s.metrics.Analysis("history_error")
		s.logger.Error("history append failed", slog.String("error", err.Error()))
		if errors.Is(err, apperr.ErrHistoryUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err)
	}
	rec = recs[0]
	s.metrics.HistorySize(len(recs))
	s.metrics.Analysis("ok")
	s.events.PublishHistoryEvent(sse.HistoryAppended, rec.CreatedAt)

	if err := s.sessions.Pointer(sessionID).Set(ctx, rec.CreatedAt); err != nil {
		s.logger.Warn("session pointer not saved", slog.String("error", err.Error()))
	}

	view := buildView(rec)
	if doc.IsPDF() {
		view.Document = documentView(s.viewer.Show(sessionID, doc), doc)
	}
	return view, nil
}

// Open displays a history record, migrating a legacy inline document on the way.
func (s *Service) Open(ctx context.Context, sessionID, createdAt string) (*AnalysisView, error) {
	rec, ok := s.ledger.Find(createdAt)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	if err := s.sessions.Pointer(sessionID).Set(ctx, rec.CreatedAt); err != nil {
		s.logger.Warn("session pointer not saved", slog.String("error", err.Error()))
	}
	return s.display(ctx, sessionID, rec), nil
}

// Restore reopens the session's current record after a reload. The bool is
// false when the session has no current record; a pointer to a record that
// no longer exists is cleared.
func (s *Service) Restore(ctx context.Context, sessionID string) (*AnalysisView, bool, error) {
	ptr := s.sessions.Pointer(sessionID)
	createdAt, ok, err := ptr.Get(ctx)
	if err != nil {
		s.logger.Warn("session pointer unreadable", slog.String("error", err.Error()))
		return nil, false, nil
	}
	if !ok {
		return nil, false, nil
	}
	rec, found := s.ledger.Find(createdAt)
	if !found {
		if err := ptr.Clear(ctx); err != nil {
			s.logger.Warn("stale session pointer not cleared", slog.String("error", err.Error()))
		}
		return nil, false, nil
	}
	return s.display(ctx, sessionID, rec), true, nil
}

// ReAnalyze returns the session to the upload form.
func (s *Service) ReAnalyze(ctx context.Context, sessionID string) {
	s.resetDisplay(ctx, sessionID)
}

func (s *Service) resetDisplay(ctx context.Context, sessionID string) {
	if err := s.sessions.Pointer(sessionID).Clear(ctx); err != nil {
		s.logger.Warn("session pointer not cleared", slog.String("error", err.Error()))
	}
	s.viewer.Release(sessionID)
}

func (s *Service) display(ctx context.Context, sessionID string, rec models.AnalysisRecord) *AnalysisView {
	s.viewer.Release(sessionID)
	if rec.Document == nil {
		return buildView(rec)
	}

	res := s.adapter.Resolve(ctx, rec)
	if res.Migrated() {
		s.events.PublishHistoryEvent(sse.RecordMigrated, rec.CreatedAt)
		rec = res.Record
	}
	view := buildView(rec)
	if res.Document != nil {
		view.Document = documentView(s.viewer.Show(sessionID, res.Document), res.Document)
	} else {
		s.logger.Info("document unavailable",
			slog.String("record", rec.CreatedAt),
			slog.String("outcome", string(res.Outcome)))
	}
	return view
}

// storeDocument writes doc under a fresh id. A failure is logged and the
// record is saved without a document.
func (s *Service) storeDocument(ctx context.Context, doc *models.Document) (string, bool) {
	id := blobstore.GenerateID(blobstore.DefaultPrefix)
	if err := s.store.Put(context.WithoutCancel(ctx), id, doc); err != nil {
		s.logger.Warn("document not stored",
			slog.String("filename", doc.Name),
			slog.String("error", err.Error()))
		return "", false
	}
	return id, true
}

// Document returns the document behind a viewer token.
func (s *Service) Document(token string) (*models.Document, bool) {
	return s.viewer.Lookup(token)
}

// History lists the saved analyses, newest first.
func (s *Service) History() []RecordSummary {
	return summarize(s.ledger.List())
}

// Record returns one saved analysis.
func (s *Service) Record(createdAt string) (*AnalysisView, error) {
	rec, ok := s.ledger.Find(createdAt)
	if !ok {
		return nil, apperr.ErrNotFound
	}
	return buildView(rec), nil
}

// DeleteAt removes the record at position i. Out of range is a no-op.
func (s *Service) DeleteAt(ctx context.Context, i int) ([]RecordSummary, error) {
	before := s.ledger.List()
	recs, err := s.ledger.DeleteAt(ctx, i)
	if err != nil {
		return nil, s.historyErr(err)
	}
	if i >= 0 && i < len(before) {
		s.deleted(before[i].CreatedAt, len(recs))
	}
	return summarize(recs), nil
}

// Delete removes the record identified by createdAt.
func (s *Service) Delete(ctx context.Context, createdAt string) ([]RecordSummary, error) {
	if _, ok := s.ledger.Find(createdAt); !ok {
		return nil, apperr.ErrNotFound
	}
	recs, err := s.ledger.Delete(ctx, createdAt)
	if err != nil {
		return nil, s.historyErr(err)
	}
	s.deleted(createdAt, len(recs))
	return summarize(recs), nil
}

// DeleteByKey deletes by position when key is an integer and by createdAt otherwise.
func (s *Service) DeleteByKey(ctx context.Context, key string) ([]RecordSummary, error) {
	if i, err := strconv.Atoi(key); err == nil {
		return s.DeleteAt(ctx, i)
	}
	return s.Delete(ctx, key)
}

func (s *Service) deleted(createdAt string, remaining int) {
	s.metrics.HistorySize(remaining)
	s.events.PublishHistoryEvent(sse.HistoryDeleted, createdAt)
}

// Clear empties the history. Stored documents are kept.
func (s *Service) Clear(ctx context.Context) error {
	if err := s.ledger.Clear(ctx); err != nil {
		return s.historyErr(err)
	}
	s.metrics.HistorySize(0)
	s.events.PublishHistoryEvent(sse.HistoryCleared, "")
	return nil
}

// ExportText renders a record as the plain-text download.
func (s *Service) ExportText(createdAt string) (string, error) {
	rec, ok := s.ledger.Find(createdAt)
	if !ok {
		return "", apperr.ErrNotFound
	}
	return parser.FormatText(rec.Sections), nil
}

// ExportHistory returns the history in its persisted JSON form.
func (s *Service) ExportHistory() ([]byte, error) {
	return json.MarshalIndent(nonNilSlice(s.ledger.List()), "", "  ")
}

// ErrInvalidImport reports an import payload that is not a history array.
var ErrInvalidImport = errors.New("invalid history export")

// Import merges a history export. Records already present are skipped.
func (s *Service) Import(ctx context.Context, data []byte) (int, error) {
	var recs []models.AnalysisRecord
	if err := json.Unmarshal(data, &recs); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	added, err := s.ledger.Merge(ctx, recs)
	if err != nil {
		return 0, s.historyErr(err)
	}
	if added > 0 {
		s.metrics.HistorySize(len(s.ledger.List()))
		s.events.PublishHistoryEvent(sse.HistoryImported, "")
	}
	return added, nil
}

// TestConnection checks that the backend can reach the provider.
func (s *Service) TestConnection(ctx context.Context, providerName, apiKey string) (bool, string, error) {
	provider, err := models.ParseProvider(providerName)
	if err != nil {
		return false, "", fmt.Errorf("%w: %v", apperr.ErrInvalidProvider, err)
	}
	if provider.RequiresAPIKey() && apiKey == "" {
		return false, "", fmt.Errorf("%w: %s requires an API key", apperr.ErrInvalidProvider, provider)
	}
	return s.backend.TestConnection(ctx, provider, apiKey)
}

// CheckOllama reports whether a local Ollama install is available.
func (s *Service) CheckOllama(ctx context.Context) (bool, error) {
	return s.backend.CheckOllama(ctx)
}

func (s *Service) historyErr(err error) error {
	s.logger.Error("history update failed", slog.String("error", err.Error()))
	if errors.Is(err, apperr.ErrHistoryUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", apperr.ErrHistoryUnavailable, err)
}

type noopEvents struct{}

func (noopEvents) PublishHistoryEvent(string, string) {}

type noopRecorder struct{}

func (noopRecorder) Analysis(string)   {}
func (noopRecorder) Resolution(string) {}
func (noopRecorder) HistorySize(int)   {}
