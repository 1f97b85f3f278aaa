// Package review implements the Review Service: the end-to-end
// controller that drives Change Fetcher → Diff Parser → Orchestrator →
// Aggregator/Formatter → Review Store.
package review

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prreview/reviewbot/internal/aggregate"
	"github.com/prreview/reviewbot/internal/analyzer"
	"github.com/prreview/reviewbot/internal/diffparse"
	"github.com/prreview/reviewbot/internal/fetch"
	"github.com/prreview/reviewbot/internal/model"
	"github.com/prreview/reviewbot/internal/orchestrator"
	"github.com/prreview/reviewbot/internal/reviewconfig"
	"github.com/prreview/reviewbot/internal/store"
)

// ChangeSource is the tagged union from spec.md §3: either a remote
// reference (URL or repo+PR, plus optional token) or a manual raw
// diff payload with optional metadata labels.
type ChangeSource struct {
	// Remote path.
	Remote *fetch.RemoteSource

	// Manual path.
	DiffContent string
	Metadata    *model.ChangeMetadata // caller-supplied, optional
}

// Limits bounds one review run, per spec.md §5's input limits.
type Limits struct {
	MaxFilesPerReview int
	MaxDiffLines      int
	PerAnalyzerDeadline time.Duration
	ReviewDeadline    time.Duration
}

// DefaultLimits returns the spec-mandated defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxFilesPerReview:   50,
		MaxDiffLines:        10000,
		PerAnalyzerDeadline: orchestrator.DefaultAnalyzerDeadline,
		ReviewDeadline:      600 * time.Second,
	}
}

// Service drives the full review pipeline.
type Service struct {
	fetcher      *fetch.Fetcher
	appTransport http.RoundTripper // nil unless a GitHub App installation is configured
	analyzers    []analyzer.Analyzer
	store        store.Store
	limits       Limits
	logger       *zerolog.Logger
}

// New builds a Review Service. fetcher also serves as the
// reviewconfig.FileFetcher used to pull each repository's optional
// .github/codereview.yml override.
func New(fetcher *fetch.Fetcher, appTransport http.RoundTripper, analyzers []analyzer.Analyzer, st store.Store, limits Limits, logger *zerolog.Logger) *Service {
	return &Service{
		fetcher:      fetcher,
		appTransport: appTransport,
		analyzers:    analyzers,
		store:        st,
		limits:       limits,
		logger:       logger,
	}
}

// Review drives the pipeline for one ChangeSource and ReviewConfig,
// per spec.md §4.H's five steps, and returns the persisted result.
func (s *Service) Review(ctx context.Context, src ChangeSource, cfg model.ReviewConfig) (*model.ReviewResult, error) {
	if s.limits.ReviewDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.ReviewDeadline)
		defer cancel()
	}

	metadata, diffText, err := s.obtainDiff(ctx, src)
	if err != nil {
		return nil, err
	}

	parsed, err := diffparse.Parse(diffText, s.logger)
	if err != nil {
		return nil, err
	}

	if err := s.checkLimits(parsed); err != nil {
		return nil, err
	}

	resolvedCfg := cfg
	var override *reviewconfig.RepoOverride
	if metadata != nil {
		merged, ov, cfgErr := reviewconfig.Load(ctx, s.fetcher, metadata.Repository, metadata.HeadCommitSHA, &cfg)
		if cfgErr != nil && s.logger != nil {
			s.logger.Warn().Err(cfgErr).Msg("ignoring malformed repository review config")
		}
		resolvedCfg, override = merged, ov
	}

	if override != nil {
		parsed = excludeFiles(parsed, override)
	}

	result, err := s.runPipeline(ctx, parsed, metadata, resolvedCfg)
	if err != nil {
		if _, ok := err.(*model.CancelledError); ok {
			return nil, err
		}
		return nil, err
	}

	id, err := s.store.Save(ctx, result)
	if err != nil {
		return nil, &model.StorageError{Op: "save", Err: err}
	}
	result.ReviewID = id
	return result, nil
}

func (s *Service) obtainDiff(ctx context.Context, src ChangeSource) (*model.ChangeMetadata, string, error) {
	if src.Remote != nil {
		return s.fetcher.Fetch(ctx, *src.Remote, s.appTransport)
	}
	return src.Metadata, src.DiffContent, nil
}

// excludeFiles drops files matching the repository's override exclude
// patterns before they ever reach an analyzer.
func excludeFiles(parsed *model.ParsedDiff, override *reviewconfig.RepoOverride) *model.ParsedDiff {
	kept := parsed.Files[:0:0]
	for _, fc := range parsed.Files {
		if !override.ShouldExcludeFile(fc.FilePath) {
			kept = append(kept, fc)
		}
	}
	return &model.ParsedDiff{Files: kept}
}

func (s *Service) checkLimits(parsed *model.ParsedDiff) error {
	if len(parsed.Files) > s.limits.MaxFilesPerReview {
		return &model.ValidationError{Field: "diff", Message: fmt.Sprintf("diff touches %d files, exceeding max_files_per_review=%d", len(parsed.Files), s.limits.MaxFilesPerReview)}
	}
	if parsed.LinesChanged() > s.limits.MaxDiffLines {
		return &model.ValidationError{Field: "diff", Message: fmt.Sprintf("diff changes %d lines, exceeding max_diff_lines=%d", parsed.LinesChanged(), s.limits.MaxDiffLines)}
	}
	return nil
}

// runPipeline builds the ReviewContext, runs the orchestrator over the
// active analyzer set, and assembles the ReviewResult. If ctx is
// cancelled mid-flight, already-completed analyzer findings are
// discarded and the review is not persisted, per spec.md §5.
func (s *Service) runPipeline(ctx context.Context, parsed *model.ParsedDiff, metadata *model.ChangeMetadata, cfg model.ReviewConfig) (*model.ReviewResult, error) {
	rc := &model.ReviewContext{
		FileChanges: parsed.Files,
		Config:      cfg,
		Metadata:    metadata,
	}

	active := orchestrator.ActiveAnalyzers(s.analyzers, cfg)
	findings, failures := orchestrator.Run(ctx, rc, active, s.limits.PerAnalyzerDeadline)

	if ctx.Err() != nil {
		return nil, &model.CancelledError{Reason: ctx.Err().Error()}
	}

	orchestrator.Sort(findings)

	findings = aggregate.ValidateLineNumbers(findings, parsed)
	filtered := aggregate.Filter(findings, cfg.SeverityThreshold)
	summary := aggregate.Summarize(filtered, parsed.FilesAnalyzed(), parsed.LinesChanged())

	if s.logger != nil {
		for _, f := range failures {
			s.logger.Warn().Str("category", string(f.Category)).Str("kind", f.Kind).Str("message", f.Message).Msg("analyzer failure")
		}
	}

	var commitSHA string
	if metadata != nil {
		commitSHA = metadata.HeadCommitSHA
	}

	return &model.ReviewResult{
		ReviewID:  uuid.New(),
		Metadata:  metadata,
		CommitSHA: commitSHA,
		Config:    cfg,
		Findings:  filtered,
		Summary:   summary,
		Timestamp: now(),
		Failures:  failures,
	}, nil
}

// now is overridable in tests so pipeline assembly stays deterministic
// without depending on wall-clock time.
var now = time.Now
