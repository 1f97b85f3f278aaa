// Package aggregate implements the Aggregator/Formatter: severity
// filtering, file/line grouping, summary computation, and Markdown
// rendering.
package aggregate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/prreview/reviewbot/internal/model"
)

// Filter drops findings whose severity is below threshold.
func Filter(findings []model.Finding, threshold model.Severity) []model.Finding {
	out := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Severity.AtLeast(threshold) {
			out = append(out, f)
		}
	}
	return out
}

// ValidateLineNumbers drops findings whose (file_path, line_number) does
// not correspond to a line the diff in parsed touches (see
// validLinesByFile): an analyzer
// is a non-deterministic oracle and can hallucinate a line number that
// was never touched by the diff, and such a finding must not survive
// into the summary or persisted result.
func ValidateLineNumbers(findings []model.Finding, parsed *model.ParsedDiff) []model.Finding {
	valid := validLinesByFile(parsed)

	out := make([]model.Finding, 0, len(findings))
	for _, f := range findings {
		if valid[f.FilePath][f.LineNumber] {
			out = append(out, f)
		}
	}
	return out
}

// validLinesByFile maps each file to the set of line numbers its diff
// actually touches: additions and modifications contribute their new
// (post-change) line number, and deletions contribute their old line
// number, since an analyzer may legitimately anchor a finding to a
// line that was removed (e.g. "this deleted check was load-bearing").
func validLinesByFile(parsed *model.ParsedDiff) map[string]map[int]bool {
	out := make(map[string]map[int]bool, len(parsed.Files))
	for _, fc := range parsed.Files {
		lines := make(map[int]bool, len(fc.Additions)+len(fc.Modifications)+len(fc.Deletions))
		for _, l := range fc.Additions {
			lines[l.NewLine] = true
		}
		for _, l := range fc.Modifications {
			lines[l.NewLine] = true
		}
		for _, l := range fc.Deletions {
			lines[l.OldLine] = true
		}
		out[fc.FilePath] = lines
	}
	return out
}

// Summarize computes totals and histograms over findings, recording the
// given filesAnalyzed and linesChanged counts alongside them.
func Summarize(findings []model.Finding, filesAnalyzed, linesChanged int) model.ReviewSummary {
	s := model.ReviewSummary{
		TotalFindings: len(findings),
		BySeverity:    map[model.Severity]int{},
		ByCategory:    map[model.Category]int{},
		FilesAnalyzed: filesAnalyzed,
		LinesChanged:  linesChanged,
	}
	for _, f := range findings {
		s.BySeverity[f.Severity]++
		s.ByCategory[f.Category]++
	}
	return s
}

// Group is a single logical review comment: all findings sharing a
// (file_path, line_number) pair.
type Group struct {
	FilePath   string
	LineNumber int
	Findings   []model.Finding
}

// GroupByLocation groups findings by (file_path, line_number), with
// groups ordered by file_path then line_number ascending, matching the
// ordering Orchestrator.Sort already applied to the input.
func GroupByLocation(findings []model.Finding) []Group {
	index := map[string]int{}
	var groups []Group

	for _, f := range findings {
		key := fmt.Sprintf("%s:%d", f.FilePath, f.LineNumber)
		if i, ok := index[key]; ok {
			groups[i].Findings = append(groups[i].Findings, f)
			continue
		}
		index[key] = len(groups)
		groups = append(groups, Group{FilePath: f.FilePath, LineNumber: f.LineNumber, Findings: []model.Finding{f}})
	}

	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].FilePath != groups[j].FilePath {
			return groups[i].FilePath < groups[j].FilePath
		}
		return groups[i].LineNumber < groups[j].LineNumber
	})
	return groups
}

// RenderMarkdown renders findings (already filtered and ordered) plus
// summary into a human-readable report. Untrusted text — descriptions
// and suggestions, which originate from LLM output echoing diff
// content — is escaped before being embedded.
func RenderMarkdown(findings []model.Finding, summary model.ReviewSummary) string {
	var b strings.Builder

	if summary.TotalFindings == 0 {
		b.WriteString("## Review summary\n\nNo issues detected. ")
		fmt.Fprintf(&b, "Analyzed %d file(s), %d changed line(s).\n", summary.FilesAnalyzed, summary.LinesChanged)
		return b.String()
	}

	b.WriteString("## Review summary\n\n")
	fmt.Fprintf(&b, "Found %d finding(s) across %d file(s) analyzed (%d changed line(s)).\n\n", summary.TotalFindings, summary.FilesAnalyzed, summary.LinesChanged)

	b.WriteString("| Severity | Count |\n|---|---|\n")
	for _, sev := range []model.Severity{model.SeverityCritical, model.SeverityHigh, model.SeverityMedium, model.SeverityLow} {
		if n := summary.BySeverity[sev]; n > 0 {
			fmt.Fprintf(&b, "| %s | %d |\n", sev, n)
		}
	}
	b.WriteString("\n")

	groups := GroupByLocation(findings)
	currentFile := ""
	for _, g := range groups {
		if g.FilePath != currentFile {
			fmt.Fprintf(&b, "### %s\n\n", escapeMarkdown(g.FilePath))
			currentFile = g.FilePath
		}
		fmt.Fprintf(&b, "**Line %d**\n\n", g.LineNumber)
		for _, f := range g.Findings {
			fmt.Fprintf(&b, "- **[%s/%s]** %s\n", f.Category, f.Severity, escapeMarkdown(f.Description))
			if f.Suggestion != "" {
				fmt.Fprintf(&b, "  - Suggestion: %s\n", escapeMarkdown(f.Suggestion))
			}
		}
		b.WriteString("\n")
	}

	return b.String()
}

var markdownEscapes = map[rune]string{
	'*': `\*`, '_': `\_`, '`': "\\`", '[': `\[`, ']': `\]`,
	'#': `\#`, '<': `\<`, '>': `\>`, '|': `\|`,
}

// escapeMarkdown escapes characters with special meaning in Markdown
// so untrusted text cannot alter document structure.
func escapeMarkdown(s string) string {
	var b strings.Builder
	for _, r := range s {
		if esc, ok := markdownEscapes[r]; ok {
			b.WriteString(esc)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
