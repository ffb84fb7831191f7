package analysisservice

import (
	"github.com/starford/cvdesk/internal/models"
	"github.com/starford/cvdesk/internal/parser"
	"github.com/starford/cvdesk/internal/viewer"
)

// AnalysisView is an opened analysis with its scores and displayed document.
type AnalysisView struct {
	CreatedAt    string             `json:"createdAt"`
	Filename     string             `json:"filename"`
	Provider     models.Provider    `json:"provider"`
	Sections     []models.Section   `json:"sections"`
	OverallScore *int               `json:"overallScore,omitempty"`
	ATSScore     *int               `json:"atsScore,omitempty"`
	Highlights   *parser.Highlights `json:"highlights,omitempty"`
	Document     *DocumentView      `json:"document,omitempty"`
}

// DocumentView describes the document shown next to an analysis.
type DocumentView struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	MimeType string `json:"mimeType"`
	Size     int    `json:"size"`
	Pages    int    `json:"pages"`
}

// RecordSummary is a lightweight history item.
type RecordSummary struct {
	Index        int             `json:"index"`
	CreatedAt    string          `json:"createdAt"`
	Filename     string          `json:"filename"`
	Provider     models.Provider `json:"provider"`
	SectionCount int             `json:"sectionCount"`
	HasDocument  bool            `json:"hasDocument"`
	Legacy       bool            `json:"legacy"`
	ATSScore     *int            `json:"atsScore,omitempty"`
}

func buildView(rec models.AnalysisRecord) *AnalysisView {
	v := &AnalysisView{
		CreatedAt: rec.CreatedAt,
		Filename:  rec.Filename,
		Provider:  rec.Provider,
		Sections:  nonNilSlice(rec.Sections),
	}
	if n, ok := parser.OverallScore(rec.Sections); ok {
		v.OverallScore = &n
	}
	if n, ok := parser.ATSScore(rec.Sections); ok {
		v.ATSScore = &n
	}
	if s, ok := parser.ATSSection(rec.Sections); ok {
		h := parser.ExtractHighlights(s.Content)
		v.Highlights = &h
	}
	return v
}

func documentView(token string, doc *models.Document) *DocumentView {
	return &DocumentView{
		Token:    token,
		Name:     doc.Name,
		MimeType: doc.MimeType,
		Size:     len(doc.Data),
		Pages:    viewer.Inspect(doc),
	}
}

func summarize(recs []models.AnalysisRecord) []RecordSummary {
	out := make([]RecordSummary, len(recs))
	for i, r := range recs {
		out[i] = RecordSummary{
			Index:        i,
			CreatedAt:    r.CreatedAt,
			Filename:     r.Filename,
			Provider:     r.Provider,
			SectionCount: len(r.Sections),
			HasDocument:  r.Document != nil,
			Legacy:       r.IsLegacy(),
		}
		if n, ok := parser.ATSScore(r.Sections); ok {
			out[i].ATSScore = &n
		}
	}
	return out
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
