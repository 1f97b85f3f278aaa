// Package orchestrator fans parsed diffs out to the active analyzer
// set, bounds each analyzer by its own deadline, and merges their
// findings into a single deterministically ordered list.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/prreview/reviewbot/internal/analyzer"
	"github.com/prreview/reviewbot/internal/model"
)

// MaxConcurrentAnalyzers bounds how many analyzer goroutines may be in
// flight (each itself possibly issuing several LLM calls) against the
// shared gateway at once — the orchestrator-level analogue of the
// teacher's chunk-level concurrency cap.
const MaxConcurrentAnalyzers = 4

// DefaultAnalyzerDeadline is the per-analyzer timeout from spec.md §4.E/§5.
const DefaultAnalyzerDeadline = 300 * time.Second

// Run starts every analyzer in analyzers concurrently over the same
// ReviewContext, each bounded by perAnalyzerDeadline. It awaits all of
// them; a timeout, panic, or error in one analyzer is recorded as an
// AnalyzerFailure and never cancels or drops the others' findings.
// The returned findings are NOT yet sorted into the spec.md §4.E final
// order — callers (internal/review) apply Sort after merging.
func Run(ctx context.Context, rc *model.ReviewContext, analyzers []analyzer.Analyzer, perAnalyzerDeadline time.Duration) ([]model.Finding, []model.AnalyzerFailure) {
	if perAnalyzerDeadline <= 0 {
		perAnalyzerDeadline = DefaultAnalyzerDeadline
	}

	sem := semaphore.NewWeighted(MaxConcurrentAnalyzers)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		findings  []model.Finding
		failures  []model.AnalyzerFailure
	)

	for _, a := range analyzers {
		a := a
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				mu.Lock()
				failures = append(failures, model.AnalyzerFailure{
					Category: a.Category(),
					Kind:     "cancelled",
					Message:  err.Error(),
				})
				mu.Unlock()
				return
			}
			defer sem.Release(1)

			analyzerCtx, cancel := context.WithTimeout(ctx, perAnalyzerDeadline)
			defer cancel()

			result, failure := runOne(analyzerCtx, a, rc)

			mu.Lock()
			if failure != nil {
				failures = append(failures, *failure)
			} else {
				findings = append(findings, result...)
			}
			mu.Unlock()
		}()
	}

	wg.Wait()
	return findings, failures
}

// runOne executes a single analyzer with panic and timeout isolation,
// per spec.md §4.E's failure-isolation requirement.
func runOne(ctx context.Context, a analyzer.Analyzer, rc *model.ReviewContext) (result []model.Finding, failure *model.AnalyzerFailure) {
	defer func() {
		if r := recover(); r != nil {
			failure = &model.AnalyzerFailure{
				Category: a.Category(),
				Kind:     "panic",
				Message:  panicMessage(r),
			}
			result = nil
		}
	}()

	findings, err := a.Analyze(ctx, rc)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, &model.AnalyzerFailure{Category: a.Category(), Kind: "timeout", Message: err.Error()}
		}
		return nil, &model.AnalyzerFailure{Category: a.Category(), Kind: "error", Message: err.Error()}
	}
	if ctx.Err() == context.DeadlineExceeded {
		// The analyzer returned but only after its deadline passed;
		// no partial findings are emitted for a timed-out analyzer.
		return nil, &model.AnalyzerFailure{Category: a.Category(), Kind: "timeout", Message: "analyzer exceeded its deadline"}
	}
	return findings, nil
}

func panicMessage(r any) string {
	if err, ok := r.(error); ok {
		return err.Error()
	}
	return "panic in analyzer"
}

// ActiveAnalyzers returns the subset of all analyzers whose category
// is enabled in cfg, per spec.md §4.E's "built-in four ∩
// enabled_categories" selection rule.
func ActiveAnalyzers(all []analyzer.Analyzer, cfg model.ReviewConfig) []analyzer.Analyzer {
	var active []analyzer.Analyzer
	for _, a := range all {
		if cfg.HasCategory(a.Category()) {
			active = append(active, a)
		}
	}
	return active
}

// Sort applies spec.md §4.E's deterministic final ordering: file_path
// ascending, line_number ascending, severity descending, agent_source
// ascending.
func Sort(findings []model.Finding) {
	sort.SliceStable(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.LineNumber != b.LineNumber {
			return a.LineNumber < b.LineNumber
		}
		if a.Severity.Rank() != b.Severity.Rank() {
			return a.Severity.Rank() > b.Severity.Rank()
		}
		return a.AgentSource < b.AgentSource
	})
}
