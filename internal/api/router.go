package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/starford/cvdesk/internal/analysisservice"
	"github.com/starford/cvdesk/internal/session"
)

// Options configures the API router.
type Options struct {
	AuthEnabled bool
	Token       string
	CORSOrigins []string
	SessionTTL  time.Duration
	// SSEHandler, if non-nil, is mounted at GET /events inside the auth group.
	SSEHandler http.Handler
}

// NewRouter creates a chi router with all API routes mounted.
func NewRouter(svc *analysisservice.Service, opts Options) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   opts.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", session.HeaderName},
			ExposedHeaders:   []string{session.HeaderName},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	r.Use(AuthMiddleware(opts.AuthEnabled, opts.Token))
	r.Use(SessionMiddleware(opts.SessionTTL))

	// Analysis.
	r.Post("/analyze", h.Analyze)
	r.Post("/ai/test", h.TestConnection)
	r.Get("/ai/ollama", h.CheckOllama)

	// History.
	r.Get("/history", h.ListHistory)
	r.Delete("/history", h.ClearHistory)
	r.Post("/history/import", h.ImportHistory)
	r.Get("/history/export", h.ExportHistory)
	r.Get("/history/{createdAt}", h.GetRecord)
	r.Delete("/history/{key}", h.DeleteRecord)
	r.Post("/history/{createdAt}/open", h.OpenRecord)
	r.Get("/history/{createdAt}/export.txt", h.ExportText)

	// Session.
	r.Get("/session", h.RestoreSession)
	r.Delete("/session", h.ResetSession)

	// Displayed documents.
	r.Get("/documents/{token}", h.ServeDocument)

	if opts.SSEHandler != nil {
		r.Get("/events", opts.SSEHandler.ServeHTTP)
	}

	return r
}
