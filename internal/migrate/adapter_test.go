package migrate

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/starford/cvdesk/internal/blobstore"
	"github.com/starford/cvdesk/internal/ledger"
	"github.com/starford/cvdesk/internal/models"
	"github.com/starford/cvdesk/internal/testutil"
)

type fixture struct {
	store    blobstore.Store
	ledger   *ledger.Ledger
	adapter  *Adapter
	outcomes []Outcome
}

func newFixture(t *testing.T, store blobstore.Store) *fixture {
	t.Helper()
	db := testutil.TestDB(t)
	if store == nil {
		store = blobstore.NewSQLite(db)
	}
	f := &fixture{store: store, ledger: ledger.New(db, testutil.Logger(), 0)}
	f.ledger.Load(context.Background())
	f.adapter = New(store, f.ledger, testutil.Logger(), func(o Outcome) {
		f.outcomes = append(f.outcomes, o)
	})
	return f
}

func legacyRecord(payload string) models.AnalysisRecord {
	return models.AnalysisRecord{
		Filename:  "cv.pdf",
		CreatedAt: "2024-02-01T10:00:00.000Z",
		Provider:  models.ProviderOllama,
		Sections:  []models.Section{{Title: "Summary", Content: "ok"}},
		Document:  models.InlineDocument{Data: payload},
	}
}

var pdfBytes = []byte("%PDF-1.4\n%test")

func TestResolve_MigratesLegacyRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	rec := legacyRecord(base64.StdEncoding.EncodeToString(pdfBytes))
	if _, err := f.ledger.Append(ctx, rec); err != nil {
		t.Fatal(err)
	}

	res := f.adapter.Resolve(ctx, rec)
	if res.Outcome != OutcomeMigrated || !res.Migrated() {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if res.Document == nil || !bytes.Equal(res.Document.Data, pdfBytes) {
		t.Fatal("resolved bytes differ from legacy payload")
	}
	if res.Document.Name != "cv.pdf" || res.Document.MimeType != models.DefaultMimeType {
		t.Errorf("document meta = %q %q", res.Document.Name, res.Document.MimeType)
	}

	stored, ok := f.ledger.Find(rec.CreatedAt)
	if !ok {
		t.Fatal("record vanished")
	}
	ref, hasRef := stored.DocumentRef()
	if !hasRef || stored.IsLegacy() {
		t.Fatalf("record not migrated: %+v", stored)
	}

	doc, found, err := f.store.Get(ctx, ref)
	if err != nil || !found || !bytes.Equal(doc.Data, pdfBytes) {
		t.Fatalf("store Get after migration: found=%v err=%v", found, err)
	}

	// A second open reads the stored copy.
	again := f.adapter.Resolve(ctx, stored)
	if again.Outcome != OutcomeStored || !bytes.Equal(again.Document.Data, pdfBytes) {
		t.Fatalf("second resolve outcome = %s", again.Outcome)
	}
}

func TestResolve_DataURI(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	rec := legacyRecord("data:application/pdf;base64," + base64.RawStdEncoding.EncodeToString(pdfBytes))
	f.ledger.Append(ctx, rec)

	res := f.adapter.Resolve(ctx, rec)
	if res.Outcome != OutcomeMigrated || !bytes.Equal(res.Document.Data, pdfBytes) {
		t.Fatalf("outcome = %s", res.Outcome)
	}
}

func TestResolve_BadPayloadLeavesRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	rec := legacyRecord("%%% not base64 %%%")
	f.ledger.Append(ctx, rec)

	res := f.adapter.Resolve(ctx, rec)
	if res.Document != nil || res.Outcome != OutcomeBadData {
		t.Fatalf("expected unavailable document, got %s", res.Outcome)
	}
	stored, _ := f.ledger.Find(rec.CreatedAt)
	if !stored.IsLegacy() {
		t.Fatal("legacy payload dropped after failed migration")
	}
}

type brokenStore struct{ blobstore.Store }

func (brokenStore) Put(context.Context, string, *models.Document) error {
	return errors.New("quota exceeded")
}

func (brokenStore) Get(context.Context, string) (*models.Document, bool, error) {
	return nil, false, errors.New("unavailable")
}

func TestResolve_StoreFailureLeavesRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, brokenStore{})
	rec := legacyRecord(base64.StdEncoding.EncodeToString(pdfBytes))
	f.ledger.Append(ctx, rec)

	res := f.adapter.Resolve(ctx, rec)
	if res.Document != nil || res.Outcome != OutcomeStoreFail {
		t.Fatalf("expected store failure, got %s", res.Outcome)
	}
	stored, _ := f.ledger.Find(rec.CreatedAt)
	if !stored.IsLegacy() {
		t.Fatal("legacy payload dropped after failed store")
	}
}

func TestResolve_StaleRefPreferred(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	if err := f.store.Put(ctx, "pdf_1_abc", &models.Document{Name: "cv.pdf", Data: []byte("stored")}); err != nil {
		t.Fatal(err)
	}
	rec := legacyRecord(base64.StdEncoding.EncodeToString([]byte("inline")))
	rec.Document = models.InlineDocument{Data: base64.StdEncoding.EncodeToString([]byte("inline")), StaleRef: "pdf_1_abc"}
	f.ledger.Append(ctx, rec)

	res := f.adapter.Resolve(ctx, rec)
	if res.Outcome != OutcomeStaleRef || string(res.Document.Data) != "stored" {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	if ref, ok := res.Record.DocumentRef(); !ok || ref != "pdf_1_abc" {
		t.Fatalf("record ref = %q, %v", ref, ok)
	}
}

func TestResolve_MissingRef(t *testing.T) {
	f := newFixture(t, nil)
	rec := legacyRecord("")
	rec.Document = models.StoredDocument{Ref: "pdf_gone"}

	res := f.adapter.Resolve(context.Background(), rec)
	if res.Document != nil || res.Outcome != OutcomeMissing {
		t.Fatalf("outcome = %s", res.Outcome)
	}
}

func TestLookup_DoesNotMigrate(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	rec := legacyRecord(base64.StdEncoding.EncodeToString(pdfBytes))
	f.ledger.Append(ctx, rec)

	res := f.adapter.Lookup(ctx, rec)
	if res.Document != nil || res.Outcome != OutcomeMissing {
		t.Fatalf("outcome = %s", res.Outcome)
	}
	stored, _ := f.ledger.Find(rec.CreatedAt)
	if !stored.IsLegacy() {
		t.Fatal("Lookup migrated the record")
	}
	if len(f.outcomes) != 1 || f.outcomes[0] != OutcomeMissing {
		t.Fatalf("observed outcomes = %v", f.outcomes)
	}
}

func TestDecodePayload(t *testing.T) {
	enc := base64.StdEncoding.EncodeToString(pdfBytes)
	tests := []struct {
		name     string
		in       string
		wantMime string
		wantErr  bool
	}{
		{"plain", enc, "", false},
		{"wrapped", enc[:8] + "\n" + enc[8:], "", false},
		{"data uri", "data:application/pdf;base64," + enc, "application/pdf", false},
		{"no comma", "data:application/pdf;base64", "", true},
		{"not base64 uri", "data:text/plain," + enc, "", true},
		{"garbage", "!!!", "", true},
		{"empty", "  ", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, mime, err := DecodePayload(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if !bytes.Equal(data, pdfBytes) || mime != tt.wantMime {
				t.Errorf("got %q %q", data, mime)
			}
		})
	}
}
