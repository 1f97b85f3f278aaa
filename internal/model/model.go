// Package model holds the data types shared across the review pipeline:
// parsed diffs, findings, review configuration, and the persisted
// ReviewResult. Every other internal package depends on this one; it
// depends on nothing else in the module.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Severity is a totally ordered review severity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Valid reports whether s is one of the four legal severities.
func (s Severity) Valid() bool {
	_, ok := severityRank[s]
	return ok
}

// Rank returns s's position in the total order, low=0 .. critical=3.
func (s Severity) Rank() int {
	return severityRank[s]
}

// AtLeast reports whether s is ordered at or above threshold.
func (s Severity) AtLeast(threshold Severity) bool {
	return s.Rank() >= threshold.Rank()
}

// Category is one of the four analyzer categories.
type Category string

const (
	CategoryLogic       Category = "logic"
	CategoryReadability Category = "readability"
	CategoryPerformance Category = "performance"
	CategorySecurity    Category = "security"
)

// AllCategories is the built-in analyzer set, in a fixed display order.
var AllCategories = []Category{CategoryLogic, CategoryReadability, CategoryPerformance, CategorySecurity}

// Valid reports whether c is one of the four built-in categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryLogic, CategoryReadability, CategoryPerformance, CategorySecurity:
		return true
	default:
		return false
	}
}

// LineKind classifies one line event inside a diff hunk.
type LineKind string

const (
	LineAdd    LineKind = "add"
	LineDelete LineKind = "delete"
	LineModify LineKind = "modify"
)

// LineChange is a single classified line event within a FileChange.
//
// OldLine is set for delete and modify; NewLine is set for add and
// modify. OldContent/NewContent mirror that split for modify; for add
// and delete only the applicable Content is populated.
type LineChange struct {
	Kind LineKind

	OldLine int
	NewLine int

	Content    string // add, delete
	OldContent string // modify only
	NewContent string // modify only
}

// FileChange is the diff for one file: its path, detected language,
// and the three classified line sequences.
type FileChange struct {
	FilePath string
	Language string
	IsBinary bool

	Additions     []LineChange
	Deletions     []LineChange
	Modifications []LineChange
}

// LineCount returns the total number of line events touching this file.
func (f FileChange) LineCount() int {
	return len(f.Additions) + len(f.Deletions) + len(f.Modifications)
}

// ParsedDiff is the structured representation of a unified diff.
type ParsedDiff struct {
	Files []FileChange
}

// FilesAnalyzed is the count of non-binary files in the diff.
func (p ParsedDiff) FilesAnalyzed() int {
	n := 0
	for _, f := range p.Files {
		if !f.IsBinary {
			n++
		}
	}
	return n
}

// LinesChanged sums additions+deletions+modifications over non-binary files.
func (p ParsedDiff) LinesChanged() int {
	n := 0
	for _, f := range p.Files {
		if !f.IsBinary {
			n += f.LineCount()
		}
	}
	return n
}

// ChangeMetadata describes the PR a diff belongs to. Every field is
// optional in the manual-diff path.
type ChangeMetadata struct {
	Repository    string // "owner/name"
	PRNumber      int
	Title         string
	Author        string
	HeadCommitSHA string
	BaseBranch    string
	HeadBranch    string
}

// ReviewConfig controls which findings an analyzer run keeps and which
// analyzers run at all.
type ReviewConfig struct {
	SeverityThreshold Severity
	EnabledCategories []Category
	CustomRules       map[string]string
}

// DefaultReviewConfig returns the spec-mandated defaults: medium
// threshold, all four categories enabled, no custom rules.
func DefaultReviewConfig() ReviewConfig {
	cats := make([]Category, len(AllCategories))
	copy(cats, AllCategories)
	return ReviewConfig{
		SeverityThreshold: SeverityMedium,
		EnabledCategories: cats,
	}
}

// HasCategory reports whether c is present in the enabled set.
func (c ReviewConfig) HasCategory(cat Category) bool {
	for _, x := range c.EnabledCategories {
		if x == cat {
			return true
		}
	}
	return false
}

// ReviewContext is the immutable bundle passed to every analyzer.
type ReviewContext struct {
	FileChanges []FileChange
	Config      ReviewConfig
	Metadata    *ChangeMetadata
}

// Finding is a single structured critique tied to a file and line.
//
// Description is the canonical in-memory field; the wire layer (see
// internal/review) aliases it to "message" for backward compatibility,
// per the on-wire serialization requirement — that aliasing is not
// modeled here.
type Finding struct {
	FilePath    string
	LineNumber  int
	Severity    Severity
	Category    Category
	Description string
	Suggestion  string // optional
	AgentSource Category
}

// AnalyzerFailure records a per-analyzer terminal outcome that does not
// fail the overall review.
type AnalyzerFailure struct {
	Category Category
	Kind     string
	Message  string
}

// ReviewSummary holds totals and histograms computed over a finding set.
type ReviewSummary struct {
	TotalFindings  int
	BySeverity     map[Severity]int
	ByCategory     map[Category]int
	FilesAnalyzed  int
	LinesChanged   int
}

// ReviewResult is the persisted, externally addressable outcome of one
// pipeline execution.
type ReviewResult struct {
	ReviewID  uuid.UUID
	Metadata  *ChangeMetadata
	CommitSHA string
	Config    ReviewConfig
	Findings  []Finding
	Summary   ReviewSummary
	Timestamp time.Time

	// Failures is diagnostic-only: per-analyzer failures recorded
	// during this run. It is not part of the persisted round-trip law
	// (spec.md §4.G covers Findings and Summary only) and Review
	// Store implementations are free to drop it.
	Failures []AnalyzerFailure
}
