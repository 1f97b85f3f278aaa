package review

import (
	"time"

	"github.com/prreview/reviewbot/internal/aggregate"
	"github.com/prreview/reviewbot/internal/model"
)

// Response is the wire shape of a completed review, per spec.md §6.
type Response struct {
	ReviewID           string          `json:"review_id"`
	PRMetadata         *wireMetadata   `json:"pr_metadata,omitempty"`
	Findings           []wireFinding   `json:"findings"`
	Summary            wireSummary     `json:"summary"`
	FormattedComments  string          `json:"formatted_comments"`
	Timestamp          time.Time       `json:"timestamp"`
	Diagnostics        []wireFailure   `json:"diagnostics,omitempty"`
}

type wireMetadata struct {
	Repository string `json:"repository"`
	PRNumber   int    `json:"pr_number"`
	Title      string `json:"title,omitempty"`
	Author     string `json:"author,omitempty"`
	CommitSHA  string `json:"head_commit_sha,omitempty"`
	BaseBranch string `json:"base_branch,omitempty"`
	HeadBranch string `json:"head_branch,omitempty"`
}

// wireFinding carries both "description" and its backward-compatible
// alias "message", per spec.md §6 and the DESIGN NOTES' dynamic
// field-aliasing entry. The in-memory model.Finding keeps a single
// canonical field; only the wire representation duplicates it.
type wireFinding struct {
	FilePath    string `json:"file_path"`
	LineNumber  int    `json:"line_number"`
	Severity    string `json:"severity"`
	Category    string `json:"category"`
	Description string `json:"description"`
	Message     string `json:"message"`
	Suggestion  string `json:"suggestion,omitempty"`
	AgentSource string `json:"agent_source"`
}

type wireSummary struct {
	TotalFindings int                    `json:"total_findings"`
	BySeverity    map[string]int         `json:"by_severity"`
	ByCategory    map[string]int         `json:"by_category"`
	FilesAnalyzed int                    `json:"files_analyzed"`
	LinesChanged  int                    `json:"lines_changed"`
}

type wireFailure struct {
	Category string `json:"category"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// ToResponse converts a persisted ReviewResult into its wire shape,
// rendering Markdown via the Aggregator/Formatter.
func ToResponse(r *model.ReviewResult) Response {
	resp := Response{
		ReviewID:          r.ReviewID.String(),
		Findings:          toWireFindings(r.Findings),
		Summary:           toWireSummary(r.Summary),
		FormattedComments: aggregate.RenderMarkdown(r.Findings, r.Summary),
		Timestamp:         r.Timestamp,
	}
	if r.Metadata != nil {
		resp.PRMetadata = &wireMetadata{
			Repository: r.Metadata.Repository,
			PRNumber:   r.Metadata.PRNumber,
			Title:      r.Metadata.Title,
			Author:     r.Metadata.Author,
			CommitSHA:  r.Metadata.HeadCommitSHA,
			BaseBranch: r.Metadata.BaseBranch,
			HeadBranch: r.Metadata.HeadBranch,
		}
	}
	for _, f := range r.Failures {
		resp.Diagnostics = append(resp.Diagnostics, wireFailure{Category: string(f.Category), Kind: f.Kind, Message: f.Message})
	}
	return resp
}

func toWireFindings(findings []model.Finding) []wireFinding {
	out := make([]wireFinding, 0, len(findings))
	for _, f := range findings {
		out = append(out, wireFinding{
			FilePath:    f.FilePath,
			LineNumber:  f.LineNumber,
			Severity:    string(f.Severity),
			Category:    string(f.Category),
			Description: f.Description,
			Message:     f.Description,
			Suggestion:  f.Suggestion,
			AgentSource: string(f.AgentSource),
		})
	}
	return out
}

func toWireSummary(s model.ReviewSummary) wireSummary {
	bySev := map[string]int{}
	for k, v := range s.BySeverity {
		bySev[string(k)] = v
	}
	byCat := map[string]int{}
	for k, v := range s.ByCategory {
		byCat[string(k)] = v
	}
	return wireSummary{
		TotalFindings: s.TotalFindings,
		BySeverity:    bySev,
		ByCategory:    byCat,
		FilesAnalyzed: s.FilesAnalyzed,
		LinesChanged:  s.LinesChanged,
	}
}
