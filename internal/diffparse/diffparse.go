// Package diffparse turns unified-diff text into a model.ParsedDiff:
// files, detected languages, and line events classified into add,
// delete, and modify.
package diffparse

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/bluekeyes/go-gitdiff/gitdiff"
	"github.com/rs/zerolog"

	"github.com/prreview/reviewbot/internal/model"
)

// languageMap mirrors the closed extension→language mapping, extended
// beyond the spec-mandated minimum with the broader set a real
// reviewer needs to recognize.
var languageMap = map[string]string{
	".py":    "python",
	".js":    "javascript",
	".jsx":   "javascript",
	".ts":    "typescript",
	".tsx":   "typescript",
	".java":  "java",
	".c":     "c",
	".h":     "c",
	".cpp":   "cpp",
	".cc":    "cpp",
	".hpp":   "cpp",
	".go":    "go",
	".rs":    "rust",
	".rb":    "ruby",
	".php":   "php",
	".cs":    "csharp",
	".kt":    "kotlin",
	".swift": "swift",
	".scala": "scala",
	".sh":    "shell",
	".sql":   "sql",
	".yaml":  "yaml",
	".yml":   "yaml",
	".json":  "json",
	".md":    "markdown",
	".html":  "html",
	".css":   "css",
}

var specialFilenames = map[string]string{
	"dockerfile": "dockerfile",
	"makefile":   "makefile",
	"rakefile":   "ruby",
	"gemfile":    "ruby",
}

// DetectLanguage maps a file path to a language tag using the closed
// mapping above, falling back to special filenames and then "unknown".
func DetectLanguage(path string) string {
	base := strings.ToLower(filepath.Base(path))
	if lang, ok := specialFilenames[base]; ok {
		return lang
	}
	ext := strings.ToLower(filepath.Ext(path))
	if lang, ok := languageMap[ext]; ok {
		return lang
	}
	return "unknown"
}

// Parse converts raw unified-diff text into a model.ParsedDiff. It
// fails with a *model.ParseError only when the payload is not a
// recognizable unified diff at all; a malformed individual file
// section is skipped (and logged, if logger is non-nil) while the rest
// of the diff is still parsed.
func Parse(raw string, logger *zerolog.Logger) (*model.ParsedDiff, error) {
	sections := splitBySection(raw)
	if len(sections) == 0 {
		return nil, &model.ParseError{Err: fmt.Errorf("no diff --git sections found")}
	}

	result := &model.ParsedDiff{}
	parsedAny := false
	for _, section := range sections {
		files, _, err := gitdiff.Parse(strings.NewReader(section))
		if err != nil {
			if logger != nil {
				logger.Warn().Err(err).Msg("skipping unparsable diff section")
			}
			continue
		}
		for _, f := range files {
			result.Files = append(result.Files, convertFile(f))
			parsedAny = true
		}
	}

	if !parsedAny {
		return nil, &model.ParseError{Err: fmt.Errorf("no file section in the payload parsed as a valid diff")}
	}

	return result, nil
}

// splitBySection splits raw diff text on "diff --git" boundaries so
// each file can be parsed (and, on failure, skipped) independently.
func splitBySection(raw string) []string {
	raw = strings.TrimRight(raw, "\n")
	if raw == "" {
		return nil
	}

	lines := strings.Split(raw, "\n")
	var sections []string
	var current strings.Builder
	started := false

	flush := func() {
		if started {
			sections = append(sections, current.String())
			current.Reset()
		}
	}

	for _, line := range lines {
		if strings.HasPrefix(line, "diff --git") {
			flush()
			started = true
		}
		if started {
			current.WriteString(line)
			current.WriteString("\n")
		}
	}
	flush()
	return sections
}

// convertFile maps one gitdiff.File into a model.FileChange, applying
// the post-change-path and line-pairing rules.
func convertFile(f *gitdiff.File) model.FileChange {
	path := f.NewName
	if path == "" {
		path = f.OldName
	}

	fc := model.FileChange{
		FilePath: path,
		Language: DetectLanguage(path),
		IsBinary: f.IsBinary,
	}

	if f.IsBinary {
		return fc
	}

	for _, frag := range f.TextFragments {
		additions, deletions, modifications := classifyFragment(frag)
		fc.Additions = append(fc.Additions, additions...)
		fc.Deletions = append(fc.Deletions, deletions...)
		fc.Modifications = append(fc.Modifications, modifications...)
	}

	return fc
}

// classifyFragment implements spec's line-pairing rule over one hunk:
// a '-' immediately followed by a '+' at the same hunk position is a
// modify; an unpaired '-' is a delete; an unpaired '+' is an add.
func classifyFragment(frag *gitdiff.TextFragment) (adds, dels, mods []model.LineChange) {
	oldLine := frag.OldPosition
	newLine := frag.NewPosition

	lines := frag.Lines
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		content := strings.TrimSuffix(line.Line, "\n")

		switch line.Op {
		case gitdiff.OpContext:
			oldLine++
			newLine++
		case gitdiff.OpDelete:
			if i+1 < len(lines) && lines[i+1].Op == gitdiff.OpAdd {
				next := strings.TrimSuffix(lines[i+1].Line, "\n")
				mods = append(mods, model.LineChange{
					Kind:       model.LineModify,
					OldLine:    int(oldLine),
					NewLine:    int(newLine),
					OldContent: content,
					NewContent: next,
				})
				oldLine++
				newLine++
				i++ // consume the paired addition
			} else {
				dels = append(dels, model.LineChange{
					Kind:    model.LineDelete,
					OldLine: int(oldLine),
					Content: content,
				})
				oldLine++
			}
		case gitdiff.OpAdd:
			adds = append(adds, model.LineChange{
				Kind:    model.LineAdd,
				NewLine: int(newLine),
				Content: content,
			})
			newLine++
		}
	}

	return adds, dels, mods
}
