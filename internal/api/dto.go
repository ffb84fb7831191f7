package api

import (
	"github.com/starford/cvdesk/internal/analysisservice"
)

// AnalysisView is an opened analysis (aliased from the domain layer).
type AnalysisView = analysisservice.AnalysisView

// RecordSummary is a lightweight history item (aliased from the domain layer).
type RecordSummary = analysisservice.RecordSummary

// AnalysisResponse is returned when an analysis is submitted, opened or restored.
type AnalysisResponse struct {
	*AnalysisView
	DocumentURL string `json:"documentUrl,omitempty" example:"/api/documents/1b9d6bcd-bbfd-4b2d-9b5d-ab8dfbbd4bed"`
}

// HistoryResponse wraps the history listing.
type HistoryResponse struct {
	Records []RecordSummary `json:"records" validate:"required"`
}

// ImportResponse reports the outcome of a history import.
type ImportResponse struct {
	Added   int             `json:"added" example:"3" validate:"required"`
	Records []RecordSummary `json:"records" validate:"required"`
}

// ConnectionTestResponse is the outcome of a provider connectivity probe.
type ConnectionTestResponse struct {
	OK      bool   `json:"ok" validate:"required"`
	Message string `json:"message,omitempty" example:"Invalid API key"`
}

// OllamaResponse reports whether a local Ollama install is available.
type OllamaResponse struct {
	Installed bool   `json:"installed" validate:"required"`
	Error     string `json:"error,omitempty"`
}
