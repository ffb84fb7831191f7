// Package parser turns the analysis text returned by the backend into
// titled sections and extracts scores and highlights from them.
package parser

import (
	"regexp"
	"strings"

	"github.com/starford/cvdesk/internal/models"
)

// DefaultTitle names a section whose heading line is empty.
const DefaultTitle = "Section"

const headingMarker = "### "

var (
	blankRunRe = regexp.MustCompile(`\n{2,}`)

	labelRes = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(^|\n)(Strengths?:)\s*\n+`),
		regexp.MustCompile(`(?i)(^|\n)(Weaknesses/?Missing:?)\s*\n+`),
		regexp.MustCompile(`(?i)(^|\n)(Suggestions?:)\s*\n+`),
		regexp.MustCompile(`(?i)(^|\n)(Example:?)\s*\n+`),
	}
)

// ParseSections splits text before every "### " heading, deeper headings
// included. The heading line of each chunk is the title, the rest its
// content; text without a heading becomes a section titled DefaultTitle.
// Runs of blank lines collapse, labels standing alone on a line are bolded
// inline, and empty sections are dropped.
func ParseSections(text string) []models.Section {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	sections := []models.Section{}
	for _, chunk := range splitChunks(text) {
		chunk = strings.TrimSpace(chunk)
		title, body := DefaultTitle, chunk
		if strings.HasPrefix(chunk, "###") {
			heading, rest, _ := strings.Cut(chunk, "\n")
			if t := strings.TrimSpace(strings.TrimLeft(heading, "#")); t != "" {
				title = t
			}
			body = rest
		}

		content := strings.TrimSpace(blankRunRe.ReplaceAllString(body, "\n"))
		for _, re := range labelRes {
			content = re.ReplaceAllString(content, "\n**${2}** ")
		}
		content = strings.TrimSpace(content)

		if content == "" {
			continue
		}
		sections = append(sections, models.Section{Title: title, Content: content})
	}
	return sections
}

// splitChunks cuts text in front of each heading marker, wherever it occurs.
// Extra '#' directly before a marker stay with it. Text before the first
// marker forms its own chunk.
func splitChunks(text string) []string {
	var chunks []string
	for {
		from := max(1, len(text)-len(strings.TrimLeft(text, "#")))
		if from >= len(text) {
			break
		}
		i := strings.Index(text[from:], headingMarker)
		if i < 0 {
			break
		}
		i += from
		for text[i-1] == '#' {
			i--
		}
		chunks = append(chunks, text[:i])
		text = text[i:]
	}
	if text != "" {
		chunks = append(chunks, text)
	}
	return chunks
}
