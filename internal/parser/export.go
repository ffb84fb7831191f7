package parser

import (
	"strings"

	"github.com/starford/cvdesk/internal/models"
)

// ExportDivider separates sections in the plain-text export.
const ExportDivider = "\n\n--------------------------------\n\n"

// FormatText renders sections as plain text, one "### title" block each.
func FormatText(sections []models.Section) string {
	blocks := make([]string, 0, len(sections))
	for _, s := range sections {
		blocks = append(blocks, "### "+s.Title+"\n\n"+s.Content)
	}
	return strings.Join(blocks, ExportDivider)
}
