// Package fetch implements the Change Fetcher: retrieving PR metadata
// and diff text from a hosted-repo provider given either a parsed
// (repo, pr_number) pair or a provider URL.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v66/github"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"

	"github.com/prreview/reviewbot/internal/model"
	"github.com/prreview/reviewbot/internal/redact"
)

// RemoteSource identifies the PR to fetch: either a provider URL or an
// explicit (Owner, Repo, PRNumber) triple, plus an optional access
// token used only for the outbound request.
type RemoteSource struct {
	URL string

	Owner    string
	Repo     string
	PRNumber int

	AccessToken string
}

var prURLPattern = regexp.MustCompile(`^https?://(?:www\.)?github\.com/([^/]+)/([^/]+)/pull/(\d+)`)

// ParseURL extracts (owner, repo, pr_number) from a GitHub PR URL,
// rejecting malformed input deterministically.
func ParseURL(rawURL string) (owner, repo string, prNumber int, err error) {
	m := prURLPattern.FindStringSubmatch(strings.TrimSpace(rawURL))
	if m == nil {
		return "", "", 0, &model.ChangeSourceError{
			Kind: model.ChangeSourceURLFormat,
			Err:  fmt.Errorf("%q is not a recognizable GitHub pull request URL", rawURL),
		}
	}
	n, convErr := strconv.Atoi(m[3])
	if convErr != nil {
		return "", "", 0, &model.ChangeSourceError{Kind: model.ChangeSourceURLFormat, Err: convErr}
	}
	return m[1], m[2], n, nil
}

// resolve normalizes a RemoteSource into (owner, repo, pr_number).
func resolve(src RemoteSource) (owner, repo string, prNumber int, err error) {
	if src.URL != "" {
		return ParseURL(src.URL)
	}
	if src.Owner == "" || src.Repo == "" || src.PRNumber == 0 {
		return "", "", 0, &model.ChangeSourceError{
			Kind: model.ChangeSourceURLFormat,
			Err:  errors.New("remote source requires either a URL or (owner, repo, pr_number)"),
		}
	}
	return src.Owner, src.Repo, src.PRNumber, nil
}

const (
	maxRetries     = 3
	retryBaseDelay = 1 * time.Second
)

// AppTransport builds a GitHub App installation transport, following
// the same ghinstallation wiring the rest of the pack uses for App
// authentication.
func AppTransport(appID, installationID int64, privateKeyPEM []byte) (http.RoundTripper, error) {
	return ghinstallation.New(http.DefaultTransport, appID, installationID, privateKeyPEM)
}

// Fetcher retrieves change metadata and diff text from GitHub.
type Fetcher struct {
	logger   *zerolog.Logger
	redactor *redact.Redactor
}

// New builds a Fetcher.
func New(logger *zerolog.Logger, redactor *redact.Redactor) *Fetcher {
	return &Fetcher{logger: logger, redactor: redactor}
}

// clientFor builds a go-github client for the given RemoteSource,
// preferring an App installation transport when one is supplied,
// falling back to a bare OAuth2 token (or an unauthenticated client
// for public repos) otherwise. The token is attached only to the
// outbound transport; it is never returned or logged.
func (f *Fetcher) clientFor(ctx context.Context, rt http.RoundTripper, src RemoteSource) *github.Client {
	if rt != nil {
		return github.NewClient(&http.Client{Transport: rt, Timeout: 30 * time.Second})
	}
	if src.AccessToken != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: src.AccessToken})
		return github.NewClient(oauth2.NewClient(ctx, ts))
	}
	return github.NewClient(&http.Client{Timeout: 30 * time.Second})
}

// Fetch retrieves (metadata, unified_diff_text) for src. rt, when
// non-nil, is used as the outbound transport (e.g. an App installation
// transport from AppTransport); it takes precedence over src.AccessToken.
func (f *Fetcher) Fetch(ctx context.Context, src RemoteSource, rt http.RoundTripper) (*model.ChangeMetadata, string, error) {
	owner, repo, prNumber, err := resolve(src)
	if err != nil {
		return nil, "", err
	}

	client := f.clientFor(ctx, rt, src)

	pr, err := retry(ctx, f.logger, f.redactor, "fetch_metadata", func() (*github.PullRequest, error) {
		pr, _, err := client.PullRequests.Get(ctx, owner, repo, prNumber)
		return pr, err
	})
	if err != nil {
		return nil, "", classify(err, f.redactor)
	}

	diffText, err := retry(ctx, f.logger, f.redactor, "fetch_diff", func() (string, error) {
		return f.fetchRawDiff(ctx, client, owner, repo, prNumber)
	})
	if err != nil {
		return nil, "", classify(err, f.redactor)
	}

	meta := &model.ChangeMetadata{
		Repository:    fmt.Sprintf("%s/%s", owner, repo),
		PRNumber:      prNumber,
		Title:         pr.GetTitle(),
		Author:        pr.GetUser().GetLogin(),
		HeadCommitSHA: pr.GetHead().GetSHA(),
		BaseBranch:    pr.GetBase().GetRef(),
		HeadBranch:    pr.GetHead().GetRef(),
	}
	return meta, diffText, nil
}

func (f *Fetcher) fetchRawDiff(ctx context.Context, client *github.Client, owner, repo string, prNumber int) (string, error) {
	raw, _, err := client.PullRequests.GetRaw(ctx, owner, repo, prNumber, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", err
	}
	return raw, nil
}

// FetchFile retrieves a single file's content at ref from repository
// ("owner/repo"), returning "" if the file does not exist or cannot be
// fetched. It satisfies internal/reviewconfig.FileFetcher. It always
// uses an unauthenticated client, so only public repositories' files
// are reachable.
func (f *Fetcher) FetchFile(ctx context.Context, repository, path, ref string) (string, error) {
	owner, repo, ok := strings.Cut(repository, "/")
	if !ok {
		return "", nil
	}
	client := f.clientFor(ctx, nil, RemoteSource{})
	contents, _, _, err := client.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: ref})
	if err != nil || contents == nil {
		return "", nil
	}
	text, err := contents.GetContent()
	if err != nil {
		return "", nil
	}
	return text, nil
}

// classify maps a go-github/transport error into a model.ChangeSourceError.
func classify(err error, redactor *redact.Redactor) *model.ChangeSourceError {
	kind := model.ChangeSourceTransport
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		switch ghErr.Response.StatusCode {
		case http.StatusNotFound:
			kind = model.ChangeSourceNotFound
		case http.StatusUnauthorized, http.StatusForbidden:
			kind = model.ChangeSourceAuth
		case http.StatusTooManyRequests:
			kind = model.ChangeSourceRateLimited
		}
	}
	return &model.ChangeSourceError{Kind: kind, Err: errors.New(redactor.String(err.Error()))}
}

func isRetryable(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		switch ghErr.Response.StatusCode {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var rlErr *github.RateLimitError
	return errors.As(err, &rlErr)
}

// retry issues fn up to maxRetries+1 times, retrying transient
// transport/rate-limit errors with exponential backoff, per spec.md §4.C.
func retry[T any](ctx context.Context, logger *zerolog.Logger, redactor *redact.Redactor, op string, fn func() (T, error)) (T, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !isRetryable(err) {
			var zero T
			return zero, err
		}

		if attempt < maxRetries {
			delay := retryBaseDelay * time.Duration(1<<uint(attempt))
			jitter := time.Duration(rand.Int63n(int64(100 * time.Millisecond)))
			if logger != nil {
				logger.Warn().Str("op", op).Int("attempt", attempt+1).Str("error", redactor.String(err.Error())).Msg("retrying change fetch")
			}
			select {
			case <-ctx.Done():
				var zero T
				return zero, ctx.Err()
			case <-time.After(delay + jitter):
			}
		}
	}
	var zero T
	return zero, lastErr
}
