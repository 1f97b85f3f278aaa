package analyzer

import (
	"github.com/rs/zerolog"

	"github.com/prreview/reviewbot/internal/llm"
	"github.com/prreview/reviewbot/internal/model"
)

const logicSystemPrompt = `You are a meticulous logic reviewer examining a code diff.

Look specifically for:
- null/nil dereferences and missing nil checks
- unreachable code
- off-by-one errors in loops and slicing
- incorrect loop termination conditions
- wrong parameter types or argument order

Ignore style, naming, and formatting. Only report issues you are confident are real logic defects introduced or left unfixed by this diff.`

// NewLogic builds the logic analyzer.
func NewLogic(gateway llm.Gateway, logger *zerolog.Logger) Analyzer {
	return &base{
		gateway: gateway,
		logger:  logger,
		spec: spec{
			category:      model.CategoryLogic,
			systemPrompt:  logicSystemPrompt,
			requireFields: []string{"line", "description", "severity"},
		},
	}
}
