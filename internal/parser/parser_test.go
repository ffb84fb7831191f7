package parser

import (
	"reflect"
	"testing"

	"github.com/starford/cvdesk/internal/models"
)

func TestParseSections(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []models.Section
	}{
		{
			name: "no headings",
			in:   "no headings here",
			want: []models.Section{{Title: "Section", Content: "no headings here"}},
		},
		{
			name: "two sections",
			in:   "### A\nfoo\n### B\nbar",
			want: []models.Section{{Title: "A", Content: "foo"}, {Title: "B", Content: "bar"}},
		},
		{
			name: "empty section dropped",
			in:   "### Empty\n\n",
			want: []models.Section{},
		},
		{
			name: "empty input",
			in:   "",
			want: []models.Section{},
		},
		{
			name: "blank heading gets default title",
			in:   "### \nbody",
			want: []models.Section{{Title: "Section", Content: "body"}},
		},
		{
			name: "blank lines collapse",
			in:   "### Summary\n\nline one\n\n\n\nline two\n",
			want: []models.Section{{Title: "Summary", Content: "line one\nline two"}},
		},
		{
			name: "preamble before first heading",
			in:   "Here is your review.\n### Skills\nGo",
			want: []models.Section{
				{Title: "Section", Content: "Here is your review."},
				{Title: "Skills", Content: "Go"},
			},
		},
		{
			name: "deeper heading",
			in:   "#### Details\nbody",
			want: []models.Section{{Title: "Details", Content: "body"}},
		},
		{
			name: "deeper heading after text",
			in:   "### Summary\nok\n#### Details\nmore",
			want: []models.Section{{Title: "Summary", Content: "ok"}, {Title: "Details", Content: "more"}},
		},
		{
			name: "crlf line endings",
			in:   "### Summary\r\n\r\nline one\r\n\r\n\r\nline two\r\n### Skills\r\nGo\r\n",
			want: []models.Section{{Title: "Summary", Content: "line one\nline two"}, {Title: "Skills", Content: "Go"}},
		},
		{
			name: "labels inlined",
			in:   "### Experience\nStrengths:\n\n- led a team\nWeaknesses/Missing:\n- no metrics\nSuggestion:\n- add numbers\nExample:\nGrew revenue 20%",
			want: []models.Section{{
				Title: "Experience",
				Content: "**Strengths:** - led a team\n" +
					"**Weaknesses/Missing:** - no metrics\n" +
					"**Suggestion:** - add numbers\n" +
					"**Example:** Grew revenue 20%",
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSections(tt.in)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseSections(%q)\n got %#v\nwant %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestATSScore(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantOK  bool
	}{
		{"explicit", "ATS Score: 72/100\nother 10/100", 72, true},
		{"fallback fraction", "Rated 64 / 100 overall", 64, true},
		{"out of range", "ATS score 180/100", 0, false},
		{"no score", "Looks fine", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sections := []models.Section{
				{Title: "Summary", Content: "Score 99/100"},
				{Title: "ATS Compatibility", Content: tt.content},
			}
			got, ok := ATSScore(sections)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ATSScore = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}

	if _, ok := ATSScore([]models.Section{{Title: "Summary", Content: "50/100"}}); ok {
		t.Error("score found without an ATS section")
	}
}

func TestOverallScore(t *testing.T) {
	tests := []struct {
		name    string
		title   string
		content string
		want    int
		wantOK  bool
	}{
		{"labeled", "Overall Evaluation", "Final Score: 75/100", 75, true},
		{"skips range", "Overall Evaluation (0-100)", "Scale 0-100.\nYou earned 68 points", 68, true},
		{"title number", "Overall Evaluation 81", "Strong resume.", 81, true},
		{"nothing", "Overall Evaluation", "Strong resume.", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := OverallScore([]models.Section{{Title: tt.title, Content: tt.content}})
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("OverallScore = %d, %v; want %d, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestExtractHighlights(t *testing.T) {
	content := "**Strengths:** overview\n- clear layout\n• keywords present\n- standard headings\n- fourth\n" +
		"**Weaknesses/Missing:** \n- tables used\n" +
		"**Suggestions:** \nnone"
	got := ExtractHighlights(content)

	want := Highlights{
		Strengths:   []string{"clear layout", "keywords present", "standard headings"},
		Weaknesses:  []string{"tables used"},
		Suggestions: []string{},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ExtractHighlights\n got %#v\nwant %#v", got, want)
	}
}

func TestFormatText(t *testing.T) {
	got := FormatText([]models.Section{{Title: "A", Content: "foo"}, {Title: "B", Content: "bar"}})
	want := "### A\n\nfoo\n\n--------------------------------\n\n### B\n\nbar"
	if got != want {
		t.Errorf("FormatText = %q, want %q", got, want)
	}
	if FormatText(nil) != "" {
		t.Error("FormatText(nil) not empty")
	}
}
