package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/prreview/reviewbot/internal/model"
)

func TestModelForAgent(t *testing.T) {
	cases := map[string]string{
		string(model.CategorySecurity):    securityModel,
		string(model.CategoryLogic):       DefaultModel,
		string(model.CategoryPerformance): DefaultModel,
		"some-unknown-agent":              DefaultModel,
	}
	for agentID, want := range cases {
		if got := ModelForAgent(agentID); got != want {
			t.Errorf("ModelForAgent(%q) = %q, want %q", agentID, got, want)
		}
	}
}

func TestSecurityGetsStrongestModel(t *testing.T) {
	if ModelForAgent(string(model.CategorySecurity)) == ModelForAgent(string(model.CategoryLogic)) {
		t.Error("security analyzer should be bound to a distinct, stronger model than the others")
	}
}

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"auth 401", errors.New("request failed: 401 unauthorized"), false},
		{"auth text", errors.New("authentication failed"), false},
		{"deadline exceeded", context.DeadlineExceeded, false},
		{"rate limited", errors.New("429 too many requests"), true},
		{"server error", errors.New("500 internal server error"), true},
		{"connection reset", errors.New("connection reset by peer"), true},
		{"unrelated error", errors.New("invalid request body"), false},
	}
	for _, c := range cases {
		if got := isRetryable(c.err); got != c.want {
			t.Errorf("isRetryable(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestPow2(t *testing.T) {
	cases := []struct {
		n    int
		want int64
	}{{0, 1}, {1, 2}, {2, 4}, {3, 8}}
	for _, c := range cases {
		if got := pow2(c.n); got != c.want {
			t.Errorf("pow2(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestValidateAPIKeyRejectsEmpty(t *testing.T) {
	if err := ValidateAPIKey(context.Background(), ""); err == nil {
		t.Error("expected an error validating an empty API key")
	}
}

func TestDefaultCallConfig(t *testing.T) {
	cfg := DefaultCallConfig()
	if cfg.MaxTokens != 4000 {
		t.Errorf("MaxTokens = %d, want 4000", cfg.MaxTokens)
	}
	if cfg.Temperature != 0.1 {
		t.Errorf("Temperature = %v, want 0.1", cfg.Temperature)
	}
}
