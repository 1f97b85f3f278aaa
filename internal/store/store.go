// Package store defines the Review Store's persistence contract: a
// thin four-method repository interface, per spec.md §9 ("do not
// model a generic ORM").
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/prreview/reviewbot/internal/model"
)

// Query filters a history lookup. A zero value matches everything,
// subject to Limit/Offset.
type Query struct {
	Repository  string
	PRNumber    int
	Start       time.Time
	End         time.Time
	MinSeverity model.Severity
	Category    model.Category
	Limit       int
	Offset      int
}

// Store persists completed reviews and their findings.
type Store interface {
	// Save atomically persists r and returns its review ID.
	Save(ctx context.Context, r *model.ReviewResult) (uuid.UUID, error)
	// Get retrieves a review by ID. Returns (nil, nil) if not found.
	Get(ctx context.Context, id uuid.UUID) (*model.ReviewResult, error)
	// Query lists reviews matching q, ordered by timestamp descending.
	Query(ctx context.Context, q Query) ([]*model.ReviewResult, error)
	// ByPR lists every review recorded for (repository, pr_number),
	// ordered by timestamp descending.
	ByPR(ctx context.Context, repository string, prNumber int) ([]*model.ReviewResult, error)
}
