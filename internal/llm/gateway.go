// Package llm implements the LLM Gateway: a single entry point for
// invoking the external text model, with a static agent→model binding
// table, exponential-backoff retries, and credential redaction.
package llm

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/prreview/reviewbot/internal/model"
	"github.com/prreview/reviewbot/internal/redact"
)

// CallConfig carries the per-call knobs spec.md §4.A requires.
type CallConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	Timeout     time.Duration
}

// DefaultCallConfig returns the spec-mandated defaults.
func DefaultCallConfig() CallConfig {
	return CallConfig{
		Temperature: 0.1,
		MaxTokens:   4000,
		Timeout:     300 * time.Second,
	}
}

const (
	maxRetries     = 2 // "up to 2 additional times" per spec.md §4.A
	retryBaseDelay = 1 * time.Second
	retryFactor    = 2
	maxJitter      = 250 * time.Millisecond

	// DefaultModel is used for any agent_id not present in the binding
	// table, and as the table's own default entry.
	DefaultModel = "claude-3-5-haiku-latest"

	// securityModel is deliberately the strongest model available: the
	// source implementation reserves its highest-capability model for
	// the security analyzer.
	securityModel = "claude-3-5-sonnet-latest"
)

// agentModels is the static, closed agent_id→model binding table
// required by spec.md §4.A and §9 ("implement as a static table; do
// not reach for dynamic dispatch abstractions").
var agentModels = map[string]string{
	string(model.CategoryLogic):       DefaultModel,
	string(model.CategoryReadability): DefaultModel,
	string(model.CategoryPerformance): DefaultModel,
	string(model.CategorySecurity):    securityModel,
	"default":                         DefaultModel,
}

// ModelForAgent resolves the bound model for agentID, falling back to
// the table's default for any unknown ID.
func ModelForAgent(agentID string) string {
	if m, ok := agentModels[agentID]; ok {
		return m
	}
	return agentModels["default"]
}

// Gateway invokes the external model and returns its raw text reply.
type Gateway interface {
	Invoke(ctx context.Context, agentID, systemPrompt, userPrompt string, cfg CallConfig) (string, error)
}

// AnthropicGateway is a Gateway backed by the Anthropic API.
type AnthropicGateway struct {
	client   *anthropic.Client
	logger   *zerolog.Logger
	redactor *redact.Redactor
}

// NewAnthropicGateway builds a Gateway. apiKey is never retained
// outside the underlying SDK client. Every logged or returned error
// message is passed through redactor; apiKey is not added to it here,
// so it is redacted only if redactor was built with it.
func NewAnthropicGateway(apiKey string, logger *zerolog.Logger, redactor *redact.Redactor) *AnthropicGateway {
	return &AnthropicGateway{
		client:   anthropic.NewClient(option.WithAPIKey(apiKey)),
		logger:   logger,
		redactor: redactor,
	}
}

// Invoke issues one request with the given system/user messages,
// retrying transient failures per spec.md §4.A's backoff policy.
func (g *AnthropicGateway) Invoke(ctx context.Context, agentID, systemPrompt, userPrompt string, cfg CallConfig) (string, error) {
	callCtx := ctx
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}

	msg, err := g.retryWithBackoff(callCtx, agentID, func() (*anthropic.Message, error) {
		return g.client.Messages.New(callCtx, anthropic.MessageNewParams{
			Model:     anthropic.F(anthropic.Model(cfg.Model)),
			MaxTokens: anthropic.F(cfg.MaxTokens),
			System: anthropic.F([]anthropic.TextBlockParam{
				anthropic.NewTextBlock(systemPrompt),
			}),
			Messages: anthropic.F([]anthropic.MessageParam{
				anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
			}),
		})
	})
	if err != nil {
		return "", g.classify(err)
	}

	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

// classify converts a raw SDK/transport error into a model.LLMError
// with a redacted message, per spec.md §4.A's security requirement.
func (g *AnthropicGateway) classify(err error) *model.LLMError {
	msg := g.redactor.String(err.Error())
	kind := model.LLMTransport
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = model.LLMTimeout
	case isAuthError(err):
		kind = model.LLMAuth
	case isRateLimitError(err):
		kind = model.LLMRateLimited
	}
	return &model.LLMError{Kind: kind, Message: msg}
}

func isAuthError(err error) bool {
	s := err.Error()
	return strings.Contains(s, "401") || strings.Contains(s, "403") || strings.Contains(s, "authentication")
}

func isRateLimitError(err error) bool {
	return strings.Contains(err.Error(), "429")
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if isAuthError(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		// Timeouts are not retried within the gateway; the analyzer's
		// overall deadline applies (spec.md §4.A).
		return false
	}
	s := err.Error()
	return isRateLimitError(err) ||
		strings.Contains(s, "500") ||
		strings.Contains(s, "502") ||
		strings.Contains(s, "503") ||
		strings.Contains(s, "504") ||
		strings.Contains(s, "connection")
}

// retryWithBackoff issues fn up to 1+maxRetries times, backing off
// exponentially (1s, 2s, ...) plus up to 250ms of jitter between
// attempts, per spec.md §4.A.
func (g *AnthropicGateway) retryWithBackoff(ctx context.Context, agentID string, fn func() (*anthropic.Message, error)) (*anthropic.Message, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return nil, err
		}

		if attempt < maxRetries {
			delay := retryBaseDelay * time.Duration(pow2(attempt))
			jitter := time.Duration(rand.Int63n(int64(maxJitter)))
			wait := delay + jitter

			if g.logger != nil {
				g.logger.Warn().
					Str("agent_id", agentID).
					Int("attempt", attempt+1).
					Dur("delay", wait).
					Str("error", g.redactor.String(err.Error())).
					Msg("retrying llm call after transient error")
			}

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
	}
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}

// ValidateAPIKey makes a minimal, cheap API call to confirm apiKey is
// accepted before the gateway is wired into a long-running service,
// so a bad credential fails at startup rather than on the first review.
func ValidateAPIKey(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return fmt.Errorf("anthropic API key is empty")
	}
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	_, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.ModelClaude3_5HaikuLatest),
		MaxTokens: anthropic.F(int64(1)),
		Messages: anthropic.F([]anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("hi")),
		}),
	})
	if err != nil {
		return fmt.Errorf("API key validation failed: %w", err)
	}
	return nil
}

func pow2(n int) int64 {
	r := int64(1)
	for i := 0; i < n; i++ {
		r *= retryFactor
	}
	return r
}
