// Package migrate resolves the document of a history record, moving legacy
// inline payloads into the blob store the first time they are opened.
package migrate

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/starford/cvdesk/internal/blobstore"
	"github.com/starford/cvdesk/internal/ledger"
	"github.com/starford/cvdesk/internal/models"
)

// Outcome classifies a resolution.
type Outcome string

// Resolution outcomes.
const (
	OutcomeNone      Outcome = "none"
	OutcomeStored    Outcome = "stored"
	OutcomeStaleRef  Outcome = "stale_ref"
	OutcomeMigrated  Outcome = "migrated"
	OutcomeMissing   Outcome = "missing"
	OutcomeBadData   Outcome = "bad_data"
	OutcomeStoreFail Outcome = "store_failure"
)

// Result is the outcome of Resolve. Document is nil when the document is
// unavailable. Record reflects any rewrite done during resolution.
type Result struct {
	Document *models.Document
	Record   models.AnalysisRecord
	Outcome  Outcome
}

// Migrated reports whether the record's document source changed.
func (r Result) Migrated() bool {
	return r.Outcome == OutcomeMigrated || r.Outcome == OutcomeStaleRef
}

// Adapter resolves record documents against a blob store.
type Adapter struct {
	store   blobstore.Store
	ledger  *ledger.Ledger
	logger  *slog.Logger
	observe func(Outcome)
}

// New creates an adapter. observe, when non-nil, is called once per Resolve.
func New(store blobstore.Store, l *ledger.Ledger, logger *slog.Logger, observe func(Outcome)) *Adapter {
	return &Adapter{store: store, ledger: l, logger: logger, observe: observe}
}

// Lookup returns the stored document of rec without migrating anything.
// Legacy payloads are left alone and reported as missing.
func (a *Adapter) Lookup(ctx context.Context, rec models.AnalysisRecord) Result {
	res := Result{Record: rec, Outcome: OutcomeNone}
	var ref string
	switch d := rec.Document.(type) {
	case models.StoredDocument:
		ref = d.Ref
	case models.InlineDocument:
		ref = d.StaleRef
	}
	if ref == "" {
		if rec.Document != nil {
			res.Outcome = OutcomeMissing
		}
		return a.done(res)
	}
	doc, ok, err := a.store.Get(ctx, ref)
	switch {
	case err != nil:
		a.logger.Warn("document lookup failed",
			slog.String("record", rec.CreatedAt),
			slog.String("ref", ref),
			slog.String("error", err.Error()))
		res.Outcome = OutcomeStoreFail
	case !ok:
		res.Outcome = OutcomeMissing
	default:
		res.Document = doc
		res.Outcome = OutcomeStored
	}
	return a.done(res)
}

// Resolve returns the document of rec, migrating a legacy inline payload
// into the blob store and rewriting the record to reference it. Failures are
// logged and reported as an unavailable document; the record then keeps its
// legacy payload.
func (a *Adapter) Resolve(ctx context.Context, rec models.AnalysisRecord) Result {
	in, ok := rec.Document.(models.InlineDocument)
	if !ok || in.Data == "" {
		return a.Lookup(ctx, rec)
	}

	// Writes are not rolled back once issued, even if the caller moves on.
	ctx = context.WithoutCancel(ctx)
	res := Result{Record: rec}

	if in.StaleRef != "" {
		doc, found, err := a.store.Get(ctx, in.StaleRef)
		if err != nil {
			a.logger.Warn("stale document reference unreadable",
				slog.String("record", rec.CreatedAt),
				slog.String("ref", in.StaleRef),
				slog.String("error", err.Error()))
		}
		if found {
			updated, err := a.rewrite(ctx, rec, in.StaleRef)
			if err != nil {
				res.Outcome = OutcomeStoreFail
				return a.done(res)
			}
			return a.done(Result{Document: doc, Record: updated, Outcome: OutcomeStaleRef})
		}
	}

	data, mime, err := DecodePayload(in.Data)
	if err != nil {
		a.logger.Warn("legacy document payload undecodable",
			slog.String("record", rec.CreatedAt),
			slog.String("error", err.Error()))
		res.Outcome = OutcomeBadData
		return a.done(res)
	}
	if rec.MimeType != "" {
		mime = rec.MimeType
	}
	if mime == "" {
		mime = models.DefaultMimeType
	}
	doc := &models.Document{
		Name:         rec.Filename,
		MimeType:     mime,
		LastModified: time.Now(),
		Data:         data,
	}

	id := blobstore.GenerateID(blobstore.DefaultPrefix)
	if err := a.store.Put(ctx, id, doc); err != nil {
		a.logger.Warn("legacy document not stored",
			slog.String("record", rec.CreatedAt),
			slog.String("error", err.Error()))
		res.Outcome = OutcomeStoreFail
		return a.done(res)
	}

	updated, err := a.rewrite(ctx, rec, id)
	if err != nil {
		res.Outcome = OutcomeStoreFail
		return a.done(res)
	}
	a.logger.Info("legacy document migrated",
		slog.String("record", rec.CreatedAt),
		slog.String("ref", id),
		slog.Int("bytes", len(data)))
	return a.done(Result{Document: doc, Record: updated, Outcome: OutcomeMigrated})
}

func (a *Adapter) rewrite(ctx context.Context, rec models.AnalysisRecord, ref string) (models.AnalysisRecord, error) {
	mime := rec.MimeType
	if mime == "" {
		mime = models.DefaultMimeType
	}
	updated, found, err := a.ledger.Update(ctx, rec.CreatedAt, func(r *models.AnalysisRecord) {
		r.Document = models.StoredDocument{Ref: ref}
		r.MimeType = mime
	})
	if err == nil && !found {
		err = errors.New("record no longer in history")
	}
	if err != nil {
		a.logger.Warn("record reference not updated",
			slog.String("record", rec.CreatedAt),
			slog.String("ref", ref),
			slog.String("error", err.Error()))
		return models.AnalysisRecord{}, err
	}
	return updated, nil
}

func (a *Adapter) done(res Result) Result {
	if a.observe != nil {
		a.observe(res.Outcome)
	}
	return res
}

// DecodePayload decodes an inline document: plain base64 or a
// data:[<mediatype>];base64,<data> URI. The MIME type is empty for plain
// payloads.
func DecodePayload(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	mime := ""
	if strings.HasPrefix(s, "data:") {
		rest := strings.TrimPrefix(s, "data:")
		commaIdx := strings.Index(rest, ",")
		if commaIdx < 0 {
			return nil, "", fmt.Errorf("invalid data URI: missing comma separator")
		}
		meta := rest[:commaIdx]
		if !strings.Contains(meta, ";base64") {
			return nil, "", fmt.Errorf("only base64 data URIs are supported")
		}
		mime = strings.Split(strings.TrimSuffix(meta, ";base64"), ";")[0]
		s = rest[commaIdx+1:]
	}
	s = strings.Join(strings.Fields(s), "")
	if s == "" {
		return nil, "", fmt.Errorf("empty payload")
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		data, err = base64.RawStdEncoding.DecodeString(s)
		if err != nil {
			return nil, "", fmt.Errorf("invalid base64 data: %w", err)
		}
	}
	return data, mime, nil
}
