package analyzer

import (
	"github.com/rs/zerolog"

	"github.com/prreview/reviewbot/internal/llm"
	"github.com/prreview/reviewbot/internal/model"
)

const performanceSystemPrompt = `You are a performance-focused code reviewer examining a code diff.

Look specifically for:
- poor asymptotic complexity (e.g. quadratic where linear suffices)
- redundant recomputation of a value that could be cached or hoisted
- N+1 I/O patterns (a query or request issued per loop iteration)

Every finding's "description" MUST embed a one-sentence statement of the expected performance impact (e.g. "this turns an O(n) lookup into O(n^2) for large inputs"), and every finding MUST include a "suggestion" with a concrete fix.`

// NewPerformance builds the performance analyzer.
func NewPerformance(gateway llm.Gateway, logger *zerolog.Logger) Analyzer {
	return &base{
		gateway: gateway,
		logger:  logger,
		spec: spec{
			category:      model.CategoryPerformance,
			systemPrompt:  performanceSystemPrompt,
			requireFields: []string{"line", "description", "suggestion"},
		},
	}
}
