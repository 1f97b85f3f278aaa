// Package postgres provides a PostgreSQL implementation of the Review
// Store, against the two-relation schema (reviews, findings) spec.md
// §4.G/§6 describes.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/prreview/reviewbot/internal/model"
	"github.com/prreview/reviewbot/internal/store"
)

// Store provides Review Store operations over PostgreSQL.
type Store struct {
	db *sql.DB
}

// New wraps an already-open *sql.DB.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// NewFromDSN opens and pings a new connection.
func NewFromDSN(dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }

// Ping reports whether the underlying connection is reachable, for
// the server's health endpoint.
func (s *Store) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

// Migrate creates the reviews/findings schema if it does not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema := `
		CREATE TABLE IF NOT EXISTS reviews (
			review_id TEXT PRIMARY KEY,
			repository TEXT,
			pr_number INTEGER,
			title TEXT,
			author TEXT,
			commit_sha TEXT,
			base_branch TEXT,
			head_branch TEXT,
			severity_threshold TEXT NOT NULL,
			enabled_categories JSONB NOT NULL,
			custom_rules JSONB,
			total_findings INTEGER NOT NULL DEFAULT 0,
			by_severity JSONB,
			by_category JSONB,
			files_analyzed INTEGER NOT NULL DEFAULT 0,
			lines_changed INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_reviews_repo_pr ON reviews(repository, pr_number);
		CREATE INDEX IF NOT EXISTS idx_reviews_created_at ON reviews(created_at);

		CREATE TABLE IF NOT EXISTS findings (
			review_id TEXT NOT NULL REFERENCES reviews(review_id) ON DELETE CASCADE,
			ordinal INTEGER NOT NULL,
			file_path TEXT NOT NULL,
			line_number INTEGER NOT NULL,
			severity TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL,
			suggestion TEXT,
			agent_source TEXT NOT NULL,
			PRIMARY KEY (review_id, ordinal)
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save persists r inside one transaction: either all its findings
// land or none do, per spec.md §4.G.
func (s *Store) Save(ctx context.Context, r *model.ReviewResult) (uuid.UUID, error) {
	if r.ReviewID == uuid.Nil {
		r.ReviewID = uuid.New()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, &model.StorageError{Op: "save", Err: err}
	}
	defer tx.Rollback()

	var repository, title, author, baseBranch, headBranch string
	var prNumber int
	if r.Metadata != nil {
		repository = r.Metadata.Repository
		prNumber = r.Metadata.PRNumber
		title = r.Metadata.Title
		author = r.Metadata.Author
		baseBranch = r.Metadata.BaseBranch
		headBranch = r.Metadata.HeadBranch
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO reviews (
			review_id, repository, pr_number, title, author, commit_sha, base_branch, head_branch,
			severity_threshold, enabled_categories, custom_rules,
			total_findings, by_severity, by_category, files_analyzed, lines_changed, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
	`,
		r.ReviewID.String(), repository, prNumber, title, author, r.CommitSHA, baseBranch, headBranch,
		string(r.Config.SeverityThreshold), categoriesToJSON(r.Config.EnabledCategories), rulesToJSON(r.Config.CustomRules),
		r.Summary.TotalFindings, severityHistToJSON(r.Summary.BySeverity), categoryHistToJSON(r.Summary.ByCategory),
		r.Summary.FilesAnalyzed, r.Summary.LinesChanged, r.Timestamp,
	)
	if err != nil {
		return uuid.Nil, &model.StorageError{Op: "save", Err: err}
	}

	for i, f := range r.Findings {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO findings (review_id, ordinal, file_path, line_number, severity, category, description, suggestion, agent_source)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		`, r.ReviewID.String(), i, f.FilePath, f.LineNumber, string(f.Severity), string(f.Category), f.Description, f.Suggestion, string(f.AgentSource))
		if err != nil {
			return uuid.Nil, &model.StorageError{Op: "save", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, &model.StorageError{Op: "save", Err: err}
	}
	return r.ReviewID, nil
}

// Get retrieves a review by ID, or (nil, nil) if it does not exist.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*model.ReviewResult, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT review_id, repository, pr_number, title, author, commit_sha, base_branch, head_branch,
			severity_threshold, enabled_categories, custom_rules,
			total_findings, by_severity, by_category, files_analyzed, lines_changed, created_at
		FROM reviews WHERE review_id = $1
	`, id.String())

	r, err := scanReview(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, &model.StorageError{Op: "get", Err: err}
	}

	findings, err := s.findingsFor(ctx, id)
	if err != nil {
		return nil, &model.StorageError{Op: "get", Err: err}
	}
	r.Findings = findings
	return r, nil
}

// Query lists reviews matching q, ordered by timestamp descending.
func (s *Store) Query(ctx context.Context, q store.Query) ([]*model.ReviewResult, error) {
	clauses := []string{"1=1"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if q.Repository != "" {
		clauses = append(clauses, "repository = "+arg(q.Repository))
	}
	if q.PRNumber != 0 {
		clauses = append(clauses, "pr_number = "+arg(q.PRNumber))
	}
	if !q.Start.IsZero() {
		clauses = append(clauses, "created_at >= "+arg(q.Start))
	}
	if !q.End.IsZero() {
		clauses = append(clauses, "created_at <= "+arg(q.End))
	}
	if q.MinSeverity != "" {
		clauses = append(clauses, "review_id IN (SELECT review_id FROM findings WHERE severity = ANY("+arg(pq.Array(severitiesAtLeast(q.MinSeverity)))+"))")
	}
	if q.Category != "" {
		clauses = append(clauses, "review_id IN (SELECT review_id FROM findings WHERE category = "+arg(string(q.Category))+")")
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 50
	}

	sqlText := fmt.Sprintf(`
		SELECT review_id, repository, pr_number, title, author, commit_sha, base_branch, head_branch,
			severity_threshold, enabled_categories, custom_rules,
			total_findings, by_severity, by_category, files_analyzed, lines_changed, created_at
		FROM reviews WHERE %s ORDER BY created_at DESC LIMIT %s OFFSET %s
	`, joinAnd(clauses), arg(limit), arg(q.Offset))

	return s.queryMany(ctx, sqlText, args...)
}

// ByPR lists every review for (repository, pr_number), newest first.
func (s *Store) ByPR(ctx context.Context, repository string, prNumber int) ([]*model.ReviewResult, error) {
	return s.queryMany(ctx, `
		SELECT review_id, repository, pr_number, title, author, commit_sha, base_branch, head_branch,
			severity_threshold, enabled_categories, custom_rules,
			total_findings, by_severity, by_category, files_analyzed, lines_changed, created_at
		FROM reviews WHERE repository = $1 AND pr_number = $2 ORDER BY created_at DESC
	`, repository, prNumber)
}

func (s *Store) queryMany(ctx context.Context, query string, args ...any) ([]*model.ReviewResult, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &model.StorageError{Op: "query", Err: err}
	}
	defer rows.Close()

	var results []*model.ReviewResult
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, &model.StorageError{Op: "query", Err: err}
		}
		findings, err := s.findingsFor(ctx, r.ReviewID)
		if err != nil {
			return nil, &model.StorageError{Op: "query", Err: err}
		}
		r.Findings = findings
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) findingsFor(ctx context.Context, id uuid.UUID) ([]model.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, line_number, severity, category, description, suggestion, agent_source
		FROM findings WHERE review_id = $1 ORDER BY ordinal ASC
	`, id.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Finding
	for rows.Next() {
		var f model.Finding
		var suggestion sql.NullString
		if err := rows.Scan(&f.FilePath, &f.LineNumber, &f.Severity, &f.Category, &f.Description, &suggestion, &f.AgentSource); err != nil {
			return nil, err
		}
		f.Suggestion = suggestion.String
		out = append(out, f)
	}
	return out, rows.Err()
}

// rowScanner abstracts over *sql.Row and *sql.Rows for scanReview.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (*model.ReviewResult, error) {
	var (
		reviewIDStr                                                       string
		repository, title, author, commitSHA, baseBranch, headBranch      sql.NullString
		prNumber                                                          sql.NullInt64
		severityThreshold                                                 string
		enabledCategoriesJSON, customRulesJSON, bySeverityJSON, byCategoryJSON sql.NullString
		totalFindings, filesAnalyzed, linesChanged                        int
		createdAt                                                         time.Time
	)

	if err := row.Scan(
		&reviewIDStr, &repository, &prNumber, &title, &author, &commitSHA, &baseBranch, &headBranch,
		&severityThreshold, &enabledCategoriesJSON, &customRulesJSON,
		&totalFindings, &bySeverityJSON, &byCategoryJSON, &filesAnalyzed, &linesChanged, &createdAt,
	); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(reviewIDStr)
	if err != nil {
		return nil, err
	}

	r := &model.ReviewResult{
		ReviewID:  id,
		CommitSHA: commitSHA.String,
		Timestamp: createdAt,
		Config: model.ReviewConfig{
			SeverityThreshold: model.Severity(severityThreshold),
			EnabledCategories: categoriesFromJSON(enabledCategoriesJSON.String),
			CustomRules:       rulesFromJSON(customRulesJSON.String),
		},
		Summary: model.ReviewSummary{
			TotalFindings: totalFindings,
			BySeverity:    severityHistFromJSON(bySeverityJSON.String),
			ByCategory:    categoryHistFromJSON(byCategoryJSON.String),
			FilesAnalyzed: filesAnalyzed,
			LinesChanged:  linesChanged,
		},
	}
	if repository.Valid && repository.String != "" {
		r.Metadata = &model.ChangeMetadata{
			Repository: repository.String,
			PRNumber:   int(prNumber.Int64),
			Title:      title.String,
			Author:     author.String,
			BaseBranch: baseBranch.String,
			HeadBranch: headBranch.String,
		}
	}
	return r, nil
}

func joinAnd(clauses []string) string {
	out := clauses[0]
	for _, c := range clauses[1:] {
		out += " AND " + c
	}
	return out
}

func severitiesAtLeast(threshold model.Severity) []string {
	var out []string
	for _, s := range []model.Severity{model.SeverityLow, model.SeverityMedium, model.SeverityHigh, model.SeverityCritical} {
		if s.AtLeast(threshold) {
			out = append(out, string(s))
		}
	}
	return out
}

var _ store.Store = (*Store)(nil)
