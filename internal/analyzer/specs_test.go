package analyzer

import (
	"context"
	"testing"

	"github.com/prreview/reviewbot/internal/llm"
	"github.com/prreview/reviewbot/internal/model"
)

// fakeGateway returns a fixed JSON reply for every call, letting these
// tests drive a real base.Analyze loop without a network dependency.
type fakeGateway struct {
	reply string
	err   error
	calls int
}

func (g *fakeGateway) Invoke(ctx context.Context, agentID, systemPrompt, userPrompt string, cfg llm.CallConfig) (string, error) {
	g.calls++
	return g.reply, g.err
}

func TestConstructorsBindCorrectCategory(t *testing.T) {
	gw := &fakeGateway{reply: "[]"}
	cases := []struct {
		name string
		a    Analyzer
		want model.Category
	}{
		{"logic", NewLogic(gw, nil), model.CategoryLogic},
		{"readability", NewReadability(gw, nil), model.CategoryReadability},
		{"performance", NewPerformance(gw, nil), model.CategoryPerformance},
		{"security", NewSecurity(gw, nil), model.CategorySecurity},
	}
	for _, c := range cases {
		if got := c.a.Category(); got != c.want {
			t.Errorf("%s: Category() = %s, want %s", c.name, got, c.want)
		}
	}
}

func TestSecurityAnalyzerRequiresSuggestion(t *testing.T) {
	gw := &fakeGateway{reply: `[{"line": 1, "description": "sql injection risk", "severity": "critical"}]`}
	rc := &model.ReviewContext{FileChanges: []model.FileChange{
		{FilePath: "db.go", Language: "go", Additions: []model.LineChange{{NewLine: 1, Content: "query := \"SELECT * FROM x WHERE id=\" + id"}}},
	}}

	findings, err := NewSecurity(gw, nil).Analyze(context.Background(), rc)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("expected the finding to be dropped for missing a mandatory suggestion, got %d findings", len(findings))
	}
}

func TestLogicAnalyzerAcceptsFindingWithoutSuggestion(t *testing.T) {
	gw := &fakeGateway{reply: `[{"line": 1, "description": "off-by-one in loop bound", "severity": "medium"}]`}
	rc := &model.ReviewContext{FileChanges: []model.FileChange{
		{FilePath: "loop.go", Language: "go", Additions: []model.LineChange{{NewLine: 1, Content: "for i := 0; i <= len(xs); i++ {"}}},
	}}

	findings, err := NewLogic(gw, nil).Analyze(context.Background(), rc)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("got %d findings, want 1", len(findings))
	}
	if findings[0].AgentSource != model.CategoryLogic || findings[0].Category != model.CategoryLogic {
		t.Errorf("finding not tagged with its analyzer's category: %+v", findings[0])
	}
}

func TestAnalyzeSkipsBinaryAndEmptyFiles(t *testing.T) {
	gw := &fakeGateway{reply: `[{"line": 1, "description": "should never be called"}]`}
	rc := &model.ReviewContext{FileChanges: []model.FileChange{
		{FilePath: "image.png", IsBinary: true, Additions: []model.LineChange{{NewLine: 1}}},
		{FilePath: "empty.go", Language: "go"},
	}}

	findings, err := NewLogic(gw, nil).Analyze(context.Background(), rc)
	if err != nil {
		t.Fatalf("Analyze returned error: %v", err)
	}
	if len(findings) != 0 {
		t.Errorf("expected no findings for binary/empty files, got %d", len(findings))
	}
	if gw.calls != 0 {
		t.Errorf("gateway should never be invoked for binary/empty files, got %d calls", gw.calls)
	}
}
