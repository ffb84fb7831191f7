package mcpserver

// SectionFormatContract describes the analysis text produced by the backend
// and how cvdesk turns it into sections and scores.
const SectionFormatContract = `# cvdesk Analysis Format

The analysis backend returns plain text. cvdesk splits it into titled sections
and derives scores from them.

## Sections

- A new section starts at every ` + "`" + `### ` + "`" + ` marker. The rest of the heading line is the title.
- A chunk with no heading, or an empty heading line, becomes a section titled ` + "`" + `Section` + "`" + `.
- Runs of blank lines collapse. ` + "`" + `Strengths:` + "`" + `, ` + "`" + `Weaknesses/Missing:` + "`" + `, ` + "`" + `Suggestions:` + "`" + `
  and ` + "`" + `Example:` + "`" + ` labels alone on a line are rendered bold and joined with the next line.
- Sections with no content are dropped; the rest keep the order of the text.

## Scores

- **ATS score:** taken from the first section whose title mentions ATS or applicant
  tracking. ` + "`" + `ATS Score: NN/100` + "`" + ` wins over any other ` + "`" + `NN/100` + "`" + ` in that section.
- **Overall score:** taken from the ` + "`" + `Overall Evaluation` + "`" + ` section. ` + "`" + `Score: NN/100` + "`" + `
  wins; otherwise the first number from 1 to 99 in the first ten lines that is not
  part of a ` + "`" + `0-100` + "`" + ` range, then one in the title, then any in the content.
- **Highlights:** up to three bullets each under the bold Strengths, Weaknesses/Missing
  and Suggestions labels of the ATS section.

## Example

` + "```" + `markdown
### Overall Evaluation
Score: 78/100
A focused resume with clear impact statements.

### ATS Compatibility
ATS Score: 64/100
Strengths:
- Standard section headings
Weaknesses/Missing:
- Skills are embedded in a table
` + "```" + `

## Records

Each saved analysis is identified by its ` + "`" + `createdAt` + "`" + ` timestamp
(RFC 3339 with milliseconds, UTC). Pass it unchanged to ` + "`" + `read_analysis` + "`" + ` and
` + "`" + `export_analysis` + "`" + `.
`
