package main

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/prreview/reviewbot/internal/fetch"
	"github.com/prreview/reviewbot/internal/model"
	"github.com/prreview/reviewbot/internal/review"
	"github.com/prreview/reviewbot/internal/store"
)

func registerRoutes(e *echo.Echo, s *server) {
	e.POST("/api/reviews", s.handleCreateReview)
	e.GET("/api/reviews/:review_id", s.handleGetReview)
	e.GET("/api/reviews/:review_id/status", s.handleReviewStatus)
	e.GET("/api/reviews/history", s.handleHistory)
	e.GET("/health", s.handleHealth)
}

// createReviewRequest is the POST /api/reviews body, per spec.md §6:
// exactly one of PRUrl, (Repository & PRNumber), or DiffContent MUST
// be present.
type createReviewRequest struct {
	PRUrl       string             `json:"pr_url,omitempty"`
	Repository  string             `json:"repository,omitempty"`
	PRNumber    int                `json:"pr_number,omitempty"`
	DiffContent string             `json:"diff_content,omitempty"`
	AccessToken string             `json:"access_token,omitempty"`
	Config      *wireReviewConfig  `json:"config,omitempty"`
}

type wireReviewConfig struct {
	SeverityThreshold string            `json:"severity_threshold,omitempty"`
	EnabledCategories []string          `json:"enabled_categories,omitempty"`
	CustomRules       map[string]string `json:"custom_rules,omitempty"`
}

type errorResponse struct {
	ErrorCode string    `json:"error_code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func (s *server) handleCreateReview(c echo.Context) error {
	var req createReviewRequest
	if err := c.Bind(&req); err != nil {
		return writeError(c, http.StatusBadRequest, "validation_error", "malformed request body", "")
	}

	present := 0
	if req.PRUrl != "" {
		present++
	}
	if req.Repository != "" && req.PRNumber != 0 {
		present++
	}
	if req.DiffContent != "" {
		present++
	}
	if present != 1 {
		return writeError(c, http.StatusBadRequest, "validation_error",
			"exactly one of pr_url, (repository & pr_number), or diff_content must be present", "")
	}

	src, err := toChangeSource(req)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "validation_error", err.Error(), "")
	}

	cfg, err := toReviewConfig(req.Config)
	if err != nil {
		return writeError(c, http.StatusBadRequest, "validation_error", err.Error(), "")
	}

	result, err := s.service.Review(c.Request().Context(), src, cfg)
	if err != nil {
		return writeError(c, statusFor(err), codeFor(err), err.Error(), "")
	}

	return c.JSON(http.StatusOK, review.ToResponse(result))
}

func (s *server) handleGetReview(c echo.Context) error {
	id, err := uuid.Parse(c.Param("review_id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "validation_error", "invalid review_id", "")
	}

	result, err := s.store.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "storage_error", err.Error(), "")
	}
	if result == nil {
		return writeError(c, http.StatusNotFound, "not_found", "review not found", "")
	}
	return c.JSON(http.StatusOK, review.ToResponse(result))
}

func (s *server) handleReviewStatus(c echo.Context) error {
	id, err := uuid.Parse(c.Param("review_id"))
	if err != nil {
		return writeError(c, http.StatusBadRequest, "validation_error", "invalid review_id", "")
	}

	result, err := s.store.Get(c.Request().Context(), id)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "storage_error", err.Error(), "")
	}
	if result == nil {
		return c.JSON(http.StatusOK, map[string]string{"status": "failed"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "completed"})
}

func (s *server) handleHistory(c echo.Context) error {
	q := store.Query{
		Repository:  c.QueryParam("repository"),
		MinSeverity: model.Severity(c.QueryParam("severity")),
		Category:    model.Category(c.QueryParam("category")),
	}
	if v := c.QueryParam("pr_number"); v != "" {
		_ = echo.QueryParamsBinder(c).Int("pr_number", &q.PRNumber).BindError()
	}
	if v := c.QueryParam("start_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.Start = t
		}
	}
	if v := c.QueryParam("end_date"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			q.End = t
		}
	}
	if v := c.QueryParam("limit"); v != "" {
		_ = echo.QueryParamsBinder(c).Int("limit", &q.Limit).BindError()
	}
	if v := c.QueryParam("offset"); v != "" {
		_ = echo.QueryParamsBinder(c).Int("offset", &q.Offset).BindError()
	}

	results, err := s.store.Query(c.Request().Context(), q)
	if err != nil {
		return writeError(c, http.StatusInternalServerError, "storage_error", err.Error(), "")
	}

	responses := make([]review.Response, 0, len(results))
	for _, r := range results {
		responses = append(responses, review.ToResponse(r))
	}
	return c.JSON(http.StatusOK, responses)
}

func (s *server) handleHealth(c echo.Context) error {
	status := "ok"
	if err := s.store.Ping(c.Request().Context()); err != nil {
		status = "unreachable"
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok", "database": status})
}

func toChangeSource(req createReviewRequest) (review.ChangeSource, error) {
	if req.DiffContent != "" {
		return review.ChangeSource{DiffContent: req.DiffContent}, nil
	}

	remote := &fetch.RemoteSource{
		URL:         req.PRUrl,
		Owner:       "",
		Repo:        "",
		PRNumber:    req.PRNumber,
		AccessToken: req.AccessToken,
	}
	if req.PRUrl == "" {
		owner, repo, ok := splitRepository(req.Repository)
		if !ok {
			return review.ChangeSource{}, errors.New("repository must be in owner/name form")
		}
		remote.Owner, remote.Repo = owner, repo
	}
	return review.ChangeSource{Remote: remote}, nil
}

func splitRepository(s string) (owner, repo string, ok bool) {
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			return s[:i], s[i+1:], true
		}
	}
	return "", "", false
}

func toReviewConfig(w *wireReviewConfig) (model.ReviewConfig, error) {
	cfg := model.DefaultReviewConfig()
	if w == nil {
		return cfg, nil
	}
	if w.SeverityThreshold != "" {
		sev := model.Severity(w.SeverityThreshold)
		if !sev.Valid() {
			return cfg, errors.New("invalid severity_threshold")
		}
		cfg.SeverityThreshold = sev
	}
	if len(w.EnabledCategories) > 0 {
		var cats []model.Category
		for _, c := range w.EnabledCategories {
			cat := model.Category(c)
			if !cat.Valid() {
				return cfg, errors.New("invalid category in enabled_categories: " + c)
			}
			cats = append(cats, cat)
		}
		cfg.EnabledCategories = cats
	}
	cfg.CustomRules = w.CustomRules
	return cfg, nil
}

func statusFor(err error) int {
	var cse *model.ChangeSourceError
	if errors.As(err, &cse) {
		switch cse.Kind {
		case model.ChangeSourceNotFound:
			return http.StatusNotFound
		case model.ChangeSourceAuth:
			return http.StatusUnauthorized
		case model.ChangeSourceRateLimited:
			return http.StatusTooManyRequests
		case model.ChangeSourceURLFormat:
			return http.StatusBadRequest
		}
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	var pe *model.ParseError
	if errors.As(err, &pe) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func codeFor(err error) string {
	var cse *model.ChangeSourceError
	if errors.As(err, &cse) {
		return "change_source_error"
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return "validation_error"
	}
	var pe *model.ParseError
	if errors.As(err, &pe) {
		return "parse_error"
	}
	var se *model.StorageError
	if errors.As(err, &se) {
		return "storage_error"
	}
	return "internal_error"
}

func writeError(c echo.Context, status int, code, message, details string) error {
	return c.JSON(status, errorResponse{
		ErrorCode: code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	})
}
