package analyzer

import (
	"github.com/rs/zerolog"

	"github.com/prreview/reviewbot/internal/llm"
	"github.com/prreview/reviewbot/internal/model"
)

const securitySystemPrompt = `You are a security-focused code reviewer examining a code diff.

Look specifically for:
- injection vulnerabilities (SQL, command, template, etc.)
- missing or insufficient input validation
- authentication or authorization weaknesses
- secret or credential exposure (hardcoded keys, logged tokens)

Every finding MUST include a "severity" from {low, medium, high, critical} and a "suggestion" field containing the concrete remediation.`

// NewSecurity builds the security analyzer. It is bound to the
// strongest available model (see internal/llm's agent→model table),
// since security findings carry the highest cost of a false negative.
func NewSecurity(gateway llm.Gateway, logger *zerolog.Logger) Analyzer {
	return &base{
		gateway: gateway,
		logger:  logger,
		spec: spec{
			category:      model.CategorySecurity,
			systemPrompt:  securitySystemPrompt,
			requireFields: []string{"line", "description", "severity", "suggestion"},
		},
	}
}
