package model

import "testing"

func TestSeverityOrdering(t *testing.T) {
	cases := []struct {
		a, b Severity
		want bool // a.AtLeast(b)
	}{
		{SeverityLow, SeverityLow, true},
		{SeverityMedium, SeverityLow, true},
		{SeverityLow, SeverityMedium, false},
		{SeverityCritical, SeverityHigh, true},
		{SeverityHigh, SeverityCritical, false},
	}
	for _, c := range cases {
		if got := c.a.AtLeast(c.b); got != c.want {
			t.Errorf("%s.AtLeast(%s) = %v, want %v", c.a, c.b, got, c.want)
		}
	}
}

func TestSeverityValid(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Severity("urgent").Valid() {
		t.Error("\"urgent\" should not be a valid severity")
	}
	if Severity("").Valid() {
		t.Error("empty severity should not be valid")
	}
}

func TestCategoryValid(t *testing.T) {
	for _, c := range AllCategories {
		if !c.Valid() {
			t.Errorf("%s should be valid", c)
		}
	}
	if Category("style").Valid() {
		t.Error("\"style\" should not be a valid category")
	}
}

func TestDefaultReviewConfig(t *testing.T) {
	cfg := DefaultReviewConfig()
	if cfg.SeverityThreshold != SeverityMedium {
		t.Errorf("default threshold = %s, want medium", cfg.SeverityThreshold)
	}
	if len(cfg.EnabledCategories) != 4 {
		t.Errorf("default enabled categories = %d, want 4", len(cfg.EnabledCategories))
	}
	for _, c := range AllCategories {
		if !cfg.HasCategory(c) {
			t.Errorf("default config should enable %s", c)
		}
	}
}

func TestReviewConfigHasCategoryAfterNarrowing(t *testing.T) {
	cfg := ReviewConfig{EnabledCategories: []Category{CategorySecurity}}
	if !cfg.HasCategory(CategorySecurity) {
		t.Error("expected security enabled")
	}
	if cfg.HasCategory(CategoryLogic) {
		t.Error("expected logic disabled")
	}
}

func TestFileChangeLineCount(t *testing.T) {
	fc := FileChange{
		Additions:     []LineChange{{Kind: LineAdd}, {Kind: LineAdd}},
		Deletions:     []LineChange{{Kind: LineDelete}},
		Modifications: nil,
	}
	if got := fc.LineCount(); got != 3 {
		t.Errorf("LineCount() = %d, want 3", got)
	}
}

func TestParsedDiffAggregates(t *testing.T) {
	p := ParsedDiff{Files: []FileChange{
		{FilePath: "a.go", Additions: []LineChange{{Kind: LineAdd}}},
		{FilePath: "b.go", IsBinary: true, Additions: []LineChange{{Kind: LineAdd}}},
		{FilePath: "c.go", Deletions: []LineChange{{Kind: LineDelete}, {Kind: LineDelete}}},
	}}
	if got := p.FilesAnalyzed(); got != 2 {
		t.Errorf("FilesAnalyzed() = %d, want 2 (binary file excluded)", got)
	}
	if got := p.LinesChanged(); got != 3 {
		t.Errorf("LinesChanged() = %d, want 3 (binary file's lines excluded)", got)
	}
}
