package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/starford/cvdesk/internal/blobstore"
	"github.com/starford/cvdesk/internal/models"
)

func TestInstrumentStore(t *testing.T) {
	m := New()
	fs, err := blobstore.NewFS(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	store := m.InstrumentStore(fs)
	ctx := context.Background()

	if err := store.Put(ctx, "pdf_1_a", &models.Document{Data: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	store.Get(ctx, "pdf_1_a")
	store.Get(ctx, "pdf_missing")
	store.Put(ctx, "../bad", &models.Document{})

	body := scrape(t, m)
	for _, want := range []string{
		`cvdesk_document_store_operations_total{op="put",outcome="ok"} 1`,
		`cvdesk_document_store_operations_total{op="put",outcome="error"} 1`,
		`cvdesk_document_store_operations_total{op="get",outcome="ok"} 1`,
		`cvdesk_document_store_operations_total{op="get",outcome="absent"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	return string(body)
}

func TestHandlerExposesCounters(t *testing.T) {
	m := New()
	m.Analysis("ok")
	m.Resolution("migrated")
	m.HistorySize(3)

	body := scrape(t, m)
	for _, want := range []string{
		`cvdesk_analyses_total{outcome="ok"} 1`,
		`cvdesk_document_resolutions_total{outcome="migrated"} 1`,
		`cvdesk_history_records 3`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
