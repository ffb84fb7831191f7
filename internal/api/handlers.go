package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/starford/cvdesk/internal/analysisservice"
	"github.com/starford/cvdesk/internal/apperr"
	"github.com/starford/cvdesk/internal/session"
)

const (
	maxUploadBytes = 20 << 20 // 20 MB
	maxImportBytes = 50 << 20
)

// Handler holds API route handlers.
type Handler struct {
	svc *analysisservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *analysisservice.Service) *Handler {
	return &Handler{svc: svc}
}

// pathParam returns a decoded URL parameter. Record identities carry colons
// that clients may percent-encode.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

func documentURL(v *AnalysisView) string {
	if v == nil || v.Document == nil {
		return ""
	}
	return "/api/documents/" + v.Document.Token
}

func (h *Handler) writeError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
	case errors.Is(err, apperr.ErrEmptyAnalysis):
		writeJSON(w, http.StatusUnprocessableEntity, errorBody("no analysis result"))
	case errors.Is(err, apperr.ErrBackendUnreachable):
		writeJSON(w, http.StatusBadGateway, errorBody(fmt.Sprintf(
			"Failed to reach backend. Please ensure the backend server is running at %s", h.svc.BackendURL())))
	case errors.Is(err, apperr.ErrAnalysisFailed):
		writeJSON(w, http.StatusBadGateway, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrInvalidProvider), errors.Is(err, analysisservice.ErrInvalidImport):
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
	case errors.Is(err, apperr.ErrHistoryUnavailable):
		writeJSON(w, http.StatusInternalServerError, errorBody("history unavailable"))
	default:
		slog.Error(op+" failed", slog.String("error", err.Error()))
		writeJSON(w, http.StatusInternalServerError, errorBody("internal error"))
	}
}

// Analyze handles POST /api/analyze.
//
//	@Summary		Analyze a resume
//	@Tags			analysis
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file				formData	file	true	"Resume file"
//	@Param			job_title			formData	string	false	"Target job title"
//	@Param			sector				formData	string	false	"Target sector"
//	@Param			experience_level	formData	string	false	"Experience level"
//	@Param			provider			formData	string	true	"AI provider"	Enums(ollama, openai, gemini)
//	@Param			api_key				formData	string	false	"Provider API key"
//	@Success		201		{object}	AnalysisResponse
//	@Failure		400		{object}	errResponse
//	@Failure		422		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/analyze [post]
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}

	mimeType := header.Header.Get("Content-Type")
	if parsed, _, perr := mime.ParseMediaType(mimeType); perr == nil {
		mimeType = parsed
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType, _, _ = mime.ParseMediaType(http.DetectContentType(data))
	}

	view, err := h.svc.Submit(r.Context(), session.IDFromContext(r.Context()), analysisservice.SubmitRequest{
		JobTitle:        r.FormValue("job_title"),
		Sector:          r.FormValue("sector"),
		ExperienceLevel: r.FormValue("experience_level"),
		Provider:        r.FormValue("provider"),
		APIKey:          r.FormValue("api_key"),
		Filename:        header.Filename,
		MimeType:        mimeType,
		Data:            data,
	})
	if err != nil {
		h.writeError(w, "analyze", err)
		return
	}
	writeJSON(w, http.StatusCreated, AnalysisResponse{AnalysisView: view, DocumentURL: documentURL(view)})
}

// TestConnection handles POST /api/ai/test.
//
//	@Summary		Test provider connectivity through the backend
//	@Tags			analysis
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			provider	formData	string	true	"AI provider"
//	@Param			api_key		formData	string	false	"Provider API key"
//	@Success		200		{object}	ConnectionTestResponse
//	@Failure		400		{object}	errResponse
//	@Failure		502		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ai/test [post]
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	ok, msg, err := h.svc.TestConnection(r.Context(), r.FormValue("provider"), r.FormValue("api_key"))
	if err != nil {
		h.writeError(w, "test connection", err)
		return
	}
	writeJSON(w, http.StatusOK, ConnectionTestResponse{OK: ok, Message: msg})
}

// CheckOllama handles GET /api/ai/ollama.
//
//	@Summary		Check for a local Ollama install
//	@Tags			analysis
//	@Produce		json
//	@Success		200		{object}	OllamaResponse
//	@Security		BearerAuth
//	@Router			/ai/ollama [get]
func (h *Handler) CheckOllama(w http.ResponseWriter, r *http.Request) {
	installed, err := h.svc.CheckOllama(r.Context())
	resp := OllamaResponse{Installed: installed}
	if err != nil {
		resp.Error = fmt.Sprintf("backend unreachable at %s", h.svc.BackendURL())
	}
	writeJSON(w, http.StatusOK, resp)
}

// ListHistory handles GET /api/history.
//
//	@Summary		List saved analyses, newest first
//	@Tags			history
//	@Produce		json
//	@Success		200		{object}	HistoryResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) ListHistory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HistoryResponse{Records: h.svc.History()})
}

// ClearHistory handles DELETE /api/history.
//
//	@Summary		Delete all saved analyses
//	@Tags			history
//	@Success		204
//	@Failure		500		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history [delete]
func (h *Handler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		h.writeError(w, "clear history", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ImportHistory handles POST /api/history/import.
//
//	@Summary		Merge an exported history array
//	@Tags			history
//	@Accept			json
//	@Produce		json
//	@Success		200		{object}	ImportResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/import [post]
func (h *Handler) ImportHistory(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportBytes)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("import too large"))
		return
	}
	added, err := h.svc.Import(r.Context(), data)
	if err != nil {
		h.writeError(w, "import history", err)
		return
	}
	writeJSON(w, http.StatusOK, ImportResponse{Added: added, Records: h.svc.History()})
}

// ExportHistory handles GET /api/history/export.
//
//	@Summary		Download the history in its persisted form
//	@Tags			history
//	@Produce		json
//	@Security		BearerAuth
//	@Router			/history/export [get]
func (h *Handler) ExportHistory(w http.ResponseWriter, _ *http.Request) {
	data, err := h.svc.ExportHistory()
	if err != nil {
		h.writeError(w, "export history", err)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="resume_history.json"`)
	_, _ = w.Write(data)
}

// GetRecord handles GET /api/history/{createdAt}.
//
//	@Summary		Read one saved analysis without displaying it
//	@Tags			history
//	@Produce		json
//	@Param			createdAt	path		string	true	"Record identity"
//	@Success		200		{object}	AnalysisView
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/{createdAt} [get]
func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Record(pathParam(r, "createdAt"))
	if err != nil {
		h.writeError(w, "get record", err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// DeleteRecord handles DELETE /api/history/{key}. An integer key is a
// position in the listing, anything else a record identity.
//
//	@Summary		Delete one saved analysis
//	@Tags			history
//	@Produce		json
//	@Param			key	path		string	true	"Index or record identity"
//	@Success		200		{object}	HistoryResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/{key} [delete]
func (h *Handler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.DeleteByKey(r.Context(), pathParam(r, "key"))
	if err != nil {
		h.writeError(w, "delete record", err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{Records: recs})
}

// OpenRecord handles POST /api/history/{createdAt}/open.
//
//	@Summary		Display a saved analysis and its document
//	@Tags			history
//	@Produce		json
//	@Param			createdAt	path		string	true	"Record identity"
//	@Success		200		{object}	AnalysisResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/{createdAt}/open [post]
func (h *Handler) OpenRecord(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Open(r.Context(), session.IDFromContext(r.Context()), pathParam(r, "createdAt"))
	if err != nil {
		h.writeError(w, "open record", err)
		return
	}
	writeJSON(w, http.StatusOK, AnalysisResponse{AnalysisView: view, DocumentURL: documentURL(view)})
}

// ExportText handles GET /api/history/{createdAt}/export.txt.
//
//	@Summary		Download an analysis as plain text
//	@Tags			history
//	@Produce		plain
//	@Param			createdAt	path		string	true	"Record identity"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/history/{createdAt}/export.txt [get]
func (h *Handler) ExportText(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.ExportText(pathParam(r, "createdAt"))
	if err != nil {
		h.writeError(w, "export text", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="resume_feedback.txt"`)
	_, _ = io.WriteString(w, text)
}

// RestoreSession handles GET /api/session.
//
//	@Summary		Reopen the analysis displayed before a reload
//	@Tags			session
//	@Produce		json
//	@Success		200		{object}	AnalysisResponse
//	@Success		204
//	@Security		BearerAuth
//	@Router			/session [get]
func (h *Handler) RestoreSession(w http.ResponseWriter, r *http.Request) {
	view, ok, err := h.svc.Restore(r.Context(), session.IDFromContext(r.Context()))
	if err != nil {
		h.writeError(w, "restore session", err)
		return
	}
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, AnalysisResponse{AnalysisView: view, DocumentURL: documentURL(view)})
}

// ResetSession handles DELETE /api/session.
//
//	@Summary		Return to the upload form
//	@Tags			session
//	@Success		204
//	@Security		BearerAuth
//	@Router			/session [delete]
func (h *Handler) ResetSession(w http.ResponseWriter, r *http.Request) {
	h.svc.ReAnalyze(r.Context(), session.IDFromContext(r.Context()))
	w.WriteHeader(http.StatusNoContent)
}

// ServeDocument handles GET /api/documents/{token}.
//
//	@Summary		Fetch the displayed document
//	@Tags			session
//	@Produce		application/pdf
//	@Param			token	path	string	true	"Viewer token"
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/documents/{token} [get]
func (h *Handler) ServeDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := h.svc.Document(chi.URLParam(r, "token"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody("not found"))
		return
	}
	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.Name}))
	http.ServeContent(w, r, doc.Name, doc.LastModified, bytes.NewReader(doc.Data))
}
