package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prreview/reviewbot/internal/analyzer"
	"github.com/prreview/reviewbot/internal/model"
)

// fakeAnalyzer is a minimal analyzer.Analyzer for exercising the
// orchestrator's fan-out, isolation, and timeout behavior without a
// real LLM gateway.
type fakeAnalyzer struct {
	category model.Category
	findings []model.Finding
	err      error
	panics   bool
	sleep    time.Duration
}

func (f *fakeAnalyzer) Category() model.Category { return f.category }

func (f *fakeAnalyzer) Analyze(ctx context.Context, rc *model.ReviewContext) ([]model.Finding, error) {
	if f.panics {
		panic("boom")
	}
	if f.sleep > 0 {
		select {
		case <-time.After(f.sleep):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.findings, nil
}

func TestRunMergesFindingsAcrossAnalyzers(t *testing.T) {
	a := &fakeAnalyzer{category: model.CategoryLogic, findings: []model.Finding{{FilePath: "a.go", LineNumber: 1}}}
	b := &fakeAnalyzer{category: model.CategorySecurity, findings: []model.Finding{{FilePath: "b.go", LineNumber: 2}}}

	findings, failures := Run(context.Background(), &model.ReviewContext{}, []analyzer.Analyzer{a, b}, time.Second)
	if len(failures) != 0 {
		t.Fatalf("unexpected failures: %v", failures)
	}
	if len(findings) != 2 {
		t.Fatalf("got %d findings, want 2", len(findings))
	}
}

func TestRunIsolatesOneAnalyzerFailure(t *testing.T) {
	good := &fakeAnalyzer{category: model.CategoryLogic, findings: []model.Finding{{FilePath: "a.go", LineNumber: 1}}}
	bad := &fakeAnalyzer{category: model.CategorySecurity, err: errors.New("gateway exploded")}

	findings, failures := Run(context.Background(), &model.ReviewContext{}, []analyzer.Analyzer{good, bad}, time.Second)
	if len(findings) != 1 {
		t.Fatalf("good analyzer's findings should survive, got %d", len(findings))
	}
	if len(failures) != 1 || failures[0].Kind != "error" {
		t.Fatalf("expected one recorded failure of kind error, got %+v", failures)
	}
}

func TestRunIsolatesPanic(t *testing.T) {
	good := &fakeAnalyzer{category: model.CategoryLogic, findings: []model.Finding{{FilePath: "a.go", LineNumber: 1}}}
	panicker := &fakeAnalyzer{category: model.CategoryReadability, panics: true}

	findings, failures := Run(context.Background(), &model.ReviewContext{}, []analyzer.Analyzer{good, panicker}, time.Second)
	if len(findings) != 1 {
		t.Fatalf("good analyzer's findings should survive a sibling panic, got %d", len(findings))
	}
	if len(failures) != 1 || failures[0].Kind != "panic" {
		t.Fatalf("expected one recorded panic failure, got %+v", failures)
	}
}

func TestRunRecordsTimeoutWithoutCancellingSiblings(t *testing.T) {
	slow := &fakeAnalyzer{category: model.CategoryPerformance, sleep: 200 * time.Millisecond}
	fast := &fakeAnalyzer{category: model.CategoryLogic, findings: []model.Finding{{FilePath: "a.go", LineNumber: 1}}}

	findings, failures := Run(context.Background(), &model.ReviewContext{}, []analyzer.Analyzer{slow, fast}, 20*time.Millisecond)
	if len(findings) != 1 {
		t.Fatalf("fast analyzer's findings should still be returned, got %d", len(findings))
	}
	if len(failures) != 1 || failures[0].Kind != "timeout" {
		t.Fatalf("expected one recorded timeout failure, got %+v", failures)
	}
}

func TestActiveAnalyzersFiltersByConfig(t *testing.T) {
	all := []analyzer.Analyzer{
		&fakeAnalyzer{category: model.CategoryLogic},
		&fakeAnalyzer{category: model.CategorySecurity},
	}
	cfg := model.ReviewConfig{EnabledCategories: []model.Category{model.CategorySecurity}}

	active := ActiveAnalyzers(all, cfg)
	if len(active) != 1 || active[0].Category() != model.CategorySecurity {
		t.Fatalf("expected only the security analyzer active, got %+v", active)
	}
}

func TestSortOrdersBySpec(t *testing.T) {
	findings := []model.Finding{
		{FilePath: "b.go", LineNumber: 1, Severity: model.SeverityLow, AgentSource: model.CategoryLogic},
		{FilePath: "a.go", LineNumber: 5, Severity: model.SeverityHigh, AgentSource: model.CategorySecurity},
		{FilePath: "a.go", LineNumber: 5, Severity: model.SeverityCritical, AgentSource: model.CategoryLogic},
		{FilePath: "a.go", LineNumber: 1, Severity: model.SeverityMedium, AgentSource: model.CategoryLogic},
	}
	Sort(findings)

	want := []struct {
		file string
		line int
		sev  model.Severity
	}{
		{"a.go", 1, model.SeverityMedium},
		{"a.go", 5, model.SeverityCritical},
		{"a.go", 5, model.SeverityHigh},
		{"b.go", 1, model.SeverityLow},
	}
	for i, w := range want {
		if findings[i].FilePath != w.file || findings[i].LineNumber != w.line || findings[i].Severity != w.sev {
			t.Errorf("position %d: got %s:%d/%s, want %s:%d/%s", i,
				findings[i].FilePath, findings[i].LineNumber, findings[i].Severity, w.file, w.line, w.sev)
		}
	}
}
