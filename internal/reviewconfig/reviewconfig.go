// Package reviewconfig resolves the ReviewConfig for a single review
// run, merging the caller-supplied request config (severity threshold,
// enabled categories, custom rules) with an optional repository-level
// YAML override file, following the teacher's repo-config loader
// pattern.
package reviewconfig

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/prreview/reviewbot/internal/model"
)

// DefaultPath is where a repository may commit review overrides.
const DefaultPath = ".github/codereview.yml"

// ParseError indicates a config file exists but contains invalid
// content, distinct from "file not found" (which falls back to
// defaults), mirroring the teacher's ConfigParseError.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string { return fmt.Sprintf("invalid review config at %s: %v", e.Path, e.Err) }
func (e *ParseError) Unwrap() error  { return e.Err }

// RepoOverride is the optional, repository-committed override file.
// It narrows defaults; it cannot re-enable a category the request
// explicitly disabled.
type RepoOverride struct {
	SeverityThreshold model.Severity `yaml:"severity_threshold"`
	EnabledCategories []string       `yaml:"enabled_categories"`
	CustomRules       map[string]string `yaml:"custom_rules"`
	Exclude           []string       `yaml:"exclude"`
	Instructions      string         `yaml:"instructions"`
}

// FileFetcher retrieves a single file's content from a remote
// repository, or "" if it does not exist. internal/fetch's *Fetcher
// satisfies this directly through its FetchFile method.
type FileFetcher interface {
	FetchFile(ctx context.Context, repository, path, ref string) (string, error)
}

// Load resolves the effective ReviewConfig for one review: it starts
// from reqConfig (or model.DefaultReviewConfig() if reqConfig is nil),
// then layers in the repository's override file, if one exists. The
// returned *RepoOverride is nil when no override file is present, so
// callers can still consult its ShouldExcludeFile even when err != nil.
func Load(ctx context.Context, fetcher FileFetcher, repository, ref string, reqConfig *model.ReviewConfig) (model.ReviewConfig, *RepoOverride, error) {
	cfg := model.DefaultReviewConfig()
	if reqConfig != nil {
		cfg = *reqConfig
		if cfg.SeverityThreshold == "" {
			cfg.SeverityThreshold = model.SeverityMedium
		}
		if len(cfg.EnabledCategories) == 0 {
			cfg.EnabledCategories = model.DefaultReviewConfig().EnabledCategories
		}
	}

	if fetcher == nil || repository == "" {
		return cfg, nil, nil
	}

	content, err := fetcher.FetchFile(ctx, repository, DefaultPath, ref)
	if err != nil || content == "" {
		return cfg, nil, nil
	}

	override, err := Parse([]byte(content))
	if err != nil {
		return cfg, nil, &ParseError{Path: DefaultPath, Err: err}
	}

	return merge(cfg, override), override, nil
}

// Parse parses a RepoOverride from YAML content.
func Parse(content []byte) (*RepoOverride, error) {
	var o RepoOverride
	if err := yaml.Unmarshal(content, &o); err != nil {
		return nil, fmt.Errorf("failed to parse review config: %w", err)
	}
	if o.SeverityThreshold != "" && !o.SeverityThreshold.Valid() {
		return nil, fmt.Errorf("invalid severity_threshold: %s", o.SeverityThreshold)
	}
	return &o, nil
}

func merge(cfg model.ReviewConfig, override *RepoOverride) model.ReviewConfig {
	if override.SeverityThreshold != "" {
		cfg.SeverityThreshold = override.SeverityThreshold
	}
	if len(override.EnabledCategories) > 0 {
		requested := make(map[model.Category]bool, len(cfg.EnabledCategories))
		for _, c := range cfg.EnabledCategories {
			requested[c] = true
		}

		var cats []model.Category
		for _, c := range override.EnabledCategories {
			cat := model.Category(strings.ToLower(strings.TrimSpace(c)))
			// Narrowing only: the override can drop a category the
			// request enabled, but can never re-enable one the request
			// left out.
			if cat.Valid() && requested[cat] {
				cats = append(cats, cat)
			}
		}
		if len(cats) > 0 {
			cfg.EnabledCategories = cats
		}
	}
	if len(override.CustomRules) > 0 {
		if cfg.CustomRules == nil {
			cfg.CustomRules = map[string]string{}
		}
		for k, v := range override.CustomRules {
			cfg.CustomRules[k] = v
		}
	}
	return cfg
}

// ShouldExcludeFile reports whether path matches any of override's
// exclude glob patterns — carried over from the teacher's repo-config
// exclude-list feature, which spec.md's ReviewConfig does not name but
// original_source's config surface implies is worth keeping for
// parity with a real reviewer deployment.
func (o *RepoOverride) ShouldExcludeFile(path string) bool {
	if o == nil {
		return false
	}
	for _, pattern := range o.Exclude {
		if strings.Contains(pattern, "**") {
			prefix := strings.Split(pattern, "**")[0]
			if prefix != "" && strings.HasPrefix(path, prefix) {
				return true
			}
			continue
		}
		if matched, _ := filepath.Match(pattern, path); matched {
			return true
		}
		if matched, _ := filepath.Match(pattern, filepath.Base(path)); matched {
			return true
		}
	}
	return false
}
