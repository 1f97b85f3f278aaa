package analyzer

import (
	"testing"

	"github.com/prreview/reviewbot/internal/model"
)

func TestSplitFileChangeUnderThreshold(t *testing.T) {
	fc := model.FileChange{
		FilePath:  "small.go",
		Additions: []model.LineChange{{NewLine: 1}, {NewLine: 2}},
	}
	parts := splitFileChange(fc)
	if len(parts) != 1 {
		t.Fatalf("got %d parts, want 1 for a file under the threshold", len(parts))
	}
	if parts[0].LineCount() != 2 {
		t.Errorf("LineCount() = %d, want 2", parts[0].LineCount())
	}
}

func TestSplitFileChangeOverThreshold(t *testing.T) {
	var additions []model.LineChange
	for i := 0; i < chunkThreshold+50; i++ {
		additions = append(additions, model.LineChange{NewLine: i})
	}
	fc := model.FileChange{FilePath: "huge.go", Language: "go", Additions: additions}

	parts := splitFileChange(fc)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2 (bin-packed at chunkThreshold)", len(parts))
	}

	total := 0
	for _, p := range parts {
		if p.FilePath != "huge.go" || p.Language != "go" {
			t.Errorf("part should preserve FilePath/Language, got %q/%q", p.FilePath, p.Language)
		}
		if p.LineCount() > chunkThreshold {
			t.Errorf("part has %d lines, want at most %d", p.LineCount(), chunkThreshold)
		}
		total += p.LineCount()
	}
	if total != chunkThreshold+50 {
		t.Errorf("total lines across parts = %d, want %d", total, chunkThreshold+50)
	}
}

func TestSplitFileChangeKeepsKindsGrouped(t *testing.T) {
	var dels, mods []model.LineChange
	for i := 0; i < chunkThreshold; i++ {
		dels = append(dels, model.LineChange{OldLine: i})
	}
	for i := 0; i < 10; i++ {
		mods = append(mods, model.LineChange{NewLine: i})
	}
	fc := model.FileChange{FilePath: "mix.go", Deletions: dels, Modifications: mods}

	parts := splitFileChange(fc)
	if len(parts) != 2 {
		t.Fatalf("got %d parts, want 2", len(parts))
	}
	if len(parts[0].Deletions) != chunkThreshold || len(parts[0].Modifications) != 0 {
		t.Errorf("first part should be all deletions, got deletions=%d modifications=%d",
			len(parts[0].Deletions), len(parts[0].Modifications))
	}
	if len(parts[1].Modifications) != 10 {
		t.Errorf("second part should carry the 10 modifications, got %d", len(parts[1].Modifications))
	}
}
