package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/starford/cvdesk/internal/models"
)

var (
	atsScoreRe     = regexp.MustCompile(`(?i)ats\s*score[^0-9]*([0-9]{1,3})\s*/\s*100`)
	outOfHundredRe = regexp.MustCompile(`([0-9]{1,3})\s*/\s*100`)
	labeledScoreRe = regexp.MustCompile(`(?i)score[^0-9]*([0-9]{1,3})\s*/\s*100`)
	numberRe       = regexp.MustCompile(`\b[0-9]{1,3}\b`)
	rangeRe        = regexp.MustCompile(`(?i)0\s*[–-]\s*100|100\s*[–-]\s*0`)

	strengthsRe   = regexp.MustCompile(`(?i)\*\*Strengths?:?\*\*\s*([\s\S]*?)(?:\*\*Weaknesses?|$)`)
	weaknessesRe  = regexp.MustCompile(`(?i)\*\*Weaknesses?/?Missing:?\*\*\s*([\s\S]*?)(?:\*\*Suggestions?|$)`)
	suggestionsRe = regexp.MustCompile(`(?i)\*\*Suggestions?:?\*\*\s*([\s\S]*?)(?:\*\*Example|$)`)
)

// maxHighlights is how many bullets are kept per highlight group.
const maxHighlights = 3

// Highlights is the quick view of an ATS section.
type Highlights struct {
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
}

// IsATSTitle reports whether a section title names the ATS compatibility check.
func IsATSTitle(title string) bool {
	t := strings.ToLower(title)
	return strings.Contains(t, "ats") ||
		strings.Contains(t, "applicant tracking") ||
		strings.Contains(t, "applicant-tracking") ||
		strings.Contains(t, "compatibility check")
}

// ATSSection returns the first section that holds the ATS check.
func ATSSection(sections []models.Section) (models.Section, bool) {
	for _, s := range sections {
		if IsATSTitle(s.Title) {
			return s, true
		}
	}
	return models.Section{}, false
}

// ATSScore extracts the "NN/100" ATS score. An explicit "ATS score" wins over
// any other fraction of 100.
func ATSScore(sections []models.Section) (int, bool) {
	s, ok := ATSSection(sections)
	if !ok {
		return 0, false
	}
	if n, ok := fractionOf100(atsScoreRe, s.Content); ok {
		return n, true
	}
	return fractionOf100(outOfHundredRe, s.Content)
}

// OverallScore extracts the score of the "Overall Evaluation" section. It
// prefers "score ... NN/100", then a bare number among the first ten content
// lines, then one in the title, then any number in the content. Bare numbers
// outside 1..99 or inside a "0-100" range are skipped.
func OverallScore(sections []models.Section) (int, bool) {
	var sec models.Section
	found := false
	for _, s := range sections {
		if strings.Contains(strings.ToLower(s.Title), "overall evaluation") {
			sec, found = s, true
			break
		}
	}
	if !found {
		return 0, false
	}

	if n, ok := fractionOf100(labeledScoreRe, sec.Content); ok {
		return n, true
	}
	head := strings.Split(sec.Content, "\n")
	if len(head) > 10 {
		head = head[:10]
	}
	if n, ok := bareNumber(strings.Join(head, " "), true); ok {
		return n, true
	}
	if n, ok := bareNumber(sec.Title, true); ok {
		return n, true
	}
	return bareNumber(sec.Content, false)
}

func fractionOf100(re *regexp.Regexp, content string) (int, bool) {
	m := re.FindStringSubmatch(content)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n < 0 || n > 100 {
		return 0, false
	}
	return n, true
}

func bareNumber(text string, skipRanges bool) (int, bool) {
	for _, loc := range numberRe.FindAllStringIndex(text, -1) {
		n, err := strconv.Atoi(text[loc[0]:loc[1]])
		if err != nil || n < 1 || n > 99 {
			continue
		}
		if skipRanges {
			ctx := text[max(0, loc[0]-10):min(len(text), loc[1]+10)]
			if rangeRe.MatchString(ctx) {
				continue
			}
		}
		return n, true
	}
	return 0, false
}

// ExtractHighlights returns up to three bullets under each of the bold
// Strengths, Weaknesses/Missing and Suggestions labels.
func ExtractHighlights(content string) Highlights {
	return Highlights{
		Strengths:   bullets(strengthsRe, content),
		Weaknesses:  bullets(weaknessesRe, content),
		Suggestions: bullets(suggestionsRe, content),
	}
}

func bullets(re *regexp.Regexp, content string) []string {
	out := []string{}
	m := re.FindStringSubmatch(content)
	if m == nil {
		return out
	}
	for _, line := range strings.Split(m[1], "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "-") && !strings.HasPrefix(line, "•") {
			continue
		}
		line = strings.TrimPrefix(line, "-")
		line = strings.TrimPrefix(line, "•")
		out = append(out, strings.TrimSpace(line))
		if len(out) == maxHighlights {
			break
		}
	}
	return out
}
