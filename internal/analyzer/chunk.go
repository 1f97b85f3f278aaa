package analyzer

import "github.com/prreview/reviewbot/internal/model"

// chunkThreshold is the per-file line-event count above which a file's
// changes are split across multiple gateway calls, so a single huge
// generated file never blows one call's max_tokens.
const chunkThreshold = 400

// splitFileChange greedily bin-packs fc's line events into sub-changes
// of at most chunkThreshold events each, preserving each event's own
// kind (additions/deletions/modifications stay grouped). A file under
// the threshold returns a single-element slice unchanged.
func splitFileChange(fc model.FileChange) []model.FileChange {
	if fc.LineCount() <= chunkThreshold {
		return []model.FileChange{fc}
	}

	type tagged struct {
		kind string
		line model.LineChange
	}
	var all []tagged
	for _, l := range fc.Additions {
		all = append(all, tagged{"add", l})
	}
	for _, l := range fc.Deletions {
		all = append(all, tagged{"del", l})
	}
	for _, l := range fc.Modifications {
		all = append(all, tagged{"mod", l})
	}

	var out []model.FileChange
	cur := model.FileChange{FilePath: fc.FilePath, Language: fc.Language}
	count := 0
	flush := func() {
		if count > 0 {
			out = append(out, cur)
			cur = model.FileChange{FilePath: fc.FilePath, Language: fc.Language}
			count = 0
		}
	}
	for _, t := range all {
		if count >= chunkThreshold {
			flush()
		}
		switch t.kind {
		case "add":
			cur.Additions = append(cur.Additions, t.line)
		case "del":
			cur.Deletions = append(cur.Deletions, t.line)
		case "mod":
			cur.Modifications = append(cur.Modifications, t.line)
		}
		count++
	}
	flush()
	return out
}
