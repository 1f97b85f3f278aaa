package analyzer

import (
	"github.com/rs/zerolog"

	"github.com/prreview/reviewbot/internal/llm"
	"github.com/prreview/reviewbot/internal/model"
)

const readabilitySystemPrompt = `You are a readability-focused code reviewer examining a code diff.

Look specifically for:
- high cyclomatic complexity (deeply branching functions)
- unclear or misleading naming
- excessive nesting depth
- missing documentation on exported/public APIs where the surrounding code has it

For every finding you MUST include a concrete "suggestion" field with the replacement text or guidance, not just a description of the problem.`

// NewReadability builds the readability analyzer.
func NewReadability(gateway llm.Gateway, logger *zerolog.Logger) Analyzer {
	return &base{
		gateway: gateway,
		logger:  logger,
		spec: spec{
			category:      model.CategoryReadability,
			systemPrompt:  readabilitySystemPrompt,
			requireFields: []string{"line", "description", "suggestion"},
		},
	}
}
