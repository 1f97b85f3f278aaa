package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"testing"

	"github.com/google/go-github/v66/github"

	"github.com/prreview/reviewbot/internal/model"
	"github.com/prreview/reviewbot/internal/redact"
)

// dummyRequest satisfies github.ErrorResponse.Error()'s assumption that
// Response.Request is non-nil.
var dummyRequest = &http.Request{Method: http.MethodGet, URL: &url.URL{Path: "/test"}}

func TestParseURL(t *testing.T) {
	owner, repo, pr, err := ParseURL("https://github.com/acme/widgets/pull/42")
	if err != nil {
		t.Fatalf("ParseURL returned error: %v", err)
	}
	if owner != "acme" || repo != "widgets" || pr != 42 {
		t.Errorf("got (%s, %s, %d), want (acme, widgets, 42)", owner, repo, pr)
	}
}

func TestParseURLRejectsMalformed(t *testing.T) {
	cases := []string{
		"https://gitlab.com/acme/widgets/pull/42",
		"not a url",
		"https://github.com/acme/widgets",
		"https://github.com/acme/widgets/issues/42",
	}
	for _, c := range cases {
		if _, _, _, err := ParseURL(c); err == nil {
			t.Errorf("ParseURL(%q) should have failed", c)
		}
	}
}

func TestResolvePrefersURL(t *testing.T) {
	owner, repo, pr, err := resolve(RemoteSource{URL: "https://github.com/acme/widgets/pull/7"})
	if err != nil {
		t.Fatalf("resolve returned error: %v", err)
	}
	if owner != "acme" || repo != "widgets" || pr != 7 {
		t.Errorf("got (%s, %s, %d), want (acme, widgets, 7)", owner, repo, pr)
	}
}

func TestResolveRequiresOwnerRepoOrPR(t *testing.T) {
	if _, _, _, err := resolve(RemoteSource{}); err == nil {
		t.Error("expected an error when neither URL nor owner/repo/pr_number is set")
	}
}

func TestIsRetryable(t *testing.T) {
	retryable := &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}}
	notRetryable := &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}}

	if !isRetryable(retryable) {
		t.Error("503 should be retryable")
	}
	if isRetryable(notRetryable) {
		t.Error("404 should not be retryable")
	}
	if isRetryable(errors.New("some unrelated error")) {
		t.Error("a non-GitHub error should not be retryable")
	}
}

func TestClassifyMapsStatusCodes(t *testing.T) {
	redactor := redact.New("sekret")
	cases := []struct {
		status int
		want   model.ChangeSourceErrorKind
	}{
		{http.StatusNotFound, model.ChangeSourceNotFound},
		{http.StatusUnauthorized, model.ChangeSourceAuth},
		{http.StatusForbidden, model.ChangeSourceAuth},
		{http.StatusTooManyRequests, model.ChangeSourceRateLimited},
		{http.StatusInternalServerError, model.ChangeSourceTransport},
	}
	for _, c := range cases {
		ghErr := &github.ErrorResponse{Response: &http.Response{StatusCode: c.status, Request: dummyRequest}, Message: "token sekret leaked"}
		got := classify(ghErr, redactor)
		if got.Kind != c.want {
			t.Errorf("status %d: classify().Kind = %v, want %v", c.status, got.Kind, c.want)
		}
	}
}

func TestClassifyRedactsSecrets(t *testing.T) {
	redactor := redact.New("sekret")
	ghErr := &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusUnauthorized, Request: dummyRequest}, Message: "bad credentials: sekret"}
	got := classify(ghErr, redactor)
	if got.Err.Error() == "" {
		t.Fatal("expected a non-empty error message")
	}
	if strings.Contains(got.Err.Error(), "sekret") {
		t.Errorf("classified error still contains the secret: %q", got.Err.Error())
	}
}

func TestRetrySucceedsAfterTransientFailure(t *testing.T) {
	attempts := 0
	result, err := retry(context.Background(), nil, redact.New(), "test_op", func() (string, error) {
		attempts++
		if attempts < 2 {
			return "", &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusServiceUnavailable}}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("retry returned error: %v", err)
	}
	if result != "ok" {
		t.Errorf("result = %q, want ok", result)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2", attempts)
	}
}

func TestRetryDoesNotRetryNonTransientError(t *testing.T) {
	attempts := 0
	_, err := retry(context.Background(), nil, redact.New(), "test_op", func() (string, error) {
		attempts++
		return "", &github.ErrorResponse{Response: &http.Response{StatusCode: http.StatusNotFound}}
	})
	if err == nil {
		t.Fatal("expected an error for a non-retryable failure")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (no retry for a 404)", attempts)
	}
}
