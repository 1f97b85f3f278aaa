// Package main provides a standalone CLI for exercising the review
// pipeline against a local diff file or a GitHub PR URL, without
// standing up the HTTP server or a database.
//
// Usage:
//
//	reviewcli --diff changes.patch
//	reviewcli --pr https://github.com/owner/repo/pull/123 --token $GITHUB_TOKEN
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prreview/reviewbot/internal/aggregate"
	"github.com/prreview/reviewbot/internal/analyzer"
	"github.com/prreview/reviewbot/internal/fetch"
	"github.com/prreview/reviewbot/internal/llm"
	"github.com/prreview/reviewbot/internal/model"
	"github.com/prreview/reviewbot/internal/redact"
	"github.com/prreview/reviewbot/internal/review"
	"github.com/prreview/reviewbot/internal/store"
)

func main() {
	diffPath := flag.String("diff", "", "path to a unified diff file to review")
	prURL := flag.String("pr", "", "GitHub PR URL to fetch and review")
	token := flag.String("token", os.Getenv("GITHUB_TOKEN"), "GitHub access token for private repos")
	severity := flag.String("severity", string(model.SeverityLow), "minimum severity to report (low|medium|high|critical)")
	flag.Parse()

	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	if *diffPath == "" && *prURL == "" {
		logger.Fatal().Msg("one of --diff or --pr is required")
	}

	apiKey := os.Getenv("ANTHROPIC_API_KEY")
	if apiKey == "" {
		logger.Fatal().Msg("ANTHROPIC_API_KEY is required")
	}

	redactor := redact.New(apiKey, *token)
	gateway := llm.NewAnthropicGateway(apiKey, &logger, redactor)

	analyzers := []analyzer.Analyzer{
		analyzer.NewLogic(gateway, &logger),
		analyzer.NewReadability(gateway, &logger),
		analyzer.NewPerformance(gateway, &logger),
		analyzer.NewSecurity(gateway, &logger),
	}

	fetcher := fetch.New(&logger, redactor)
	svc := review.New(fetcher, nil, analyzers, discardStore{}, review.DefaultLimits(), &logger)

	cfg := model.DefaultReviewConfig()
	cfg.SeverityThreshold = model.Severity(*severity)
	if !cfg.SeverityThreshold.Valid() {
		logger.Fatal().Str("severity", *severity).Msg("invalid --severity value")
	}

	src, err := buildSource(*diffPath, *prURL, *token)
	if err != nil {
		logger.Fatal().Err(err).Msg("could not resolve change source")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	result, err := svc.Review(ctx, src, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("review failed")
	}

	fmt.Println(aggregate.RenderMarkdown(result.Findings, result.Summary))
}

func buildSource(diffPath, prURL, token string) (review.ChangeSource, error) {
	if diffPath != "" {
		raw, err := os.ReadFile(diffPath)
		if err != nil {
			return review.ChangeSource{}, fmt.Errorf("reading %s: %w", diffPath, err)
		}
		return review.ChangeSource{DiffContent: string(raw)}, nil
	}
	return review.ChangeSource{Remote: &fetch.RemoteSource{URL: prURL, AccessToken: token}}, nil
}

// discardStore satisfies store.Store without persistence: the CLI's
// output is the rendered Markdown on stdout, not a saved row.
type discardStore struct{}

func (discardStore) Save(ctx context.Context, r *model.ReviewResult) (uuid.UUID, error) {
	if r.ReviewID == uuid.Nil {
		return uuid.New(), nil
	}
	return r.ReviewID, nil
}

func (discardStore) Get(ctx context.Context, id uuid.UUID) (*model.ReviewResult, error) {
	return nil, nil
}

func (discardStore) Query(ctx context.Context, q store.Query) ([]*model.ReviewResult, error) {
	return nil, nil
}

func (discardStore) ByPR(ctx context.Context, repository string, prNumber int) ([]*model.ReviewResult, error) {
	return nil, nil
}
