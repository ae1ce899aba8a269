// Package codehost implements the Code-Host Client (spec.md §4.2, C2): PR
// metadata, paginated changed-file lists, and file content fetches against
// GitHub. The client shape — a thin wrapper around go-github with an
// oauth2 static token source, pagination loops driven by resp.NextPage, and
// errors translated into a small taxonomy — follows otto's
// internal/provider/github/github.go Backend, generalized from otto's
// PR-automation surface (comments, checks, workflow runs) down to the
// read-only fetch contract this service actually needs, and wrapped with a
// circuit breaker the way kubernaut's dependency set calls for upstream API
// protection.
package codehost

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"prreview/internal/apperr"
)

// callTimeout is the per-call timeout spec.md §4.2 mandates.
const callTimeout = 30 * time.Second

// maxPages and maxFiles are the pagination ceiling spec.md §4.2 requires:
// stop and log once either is reached.
const (
	pageSize = 100
	maxPages = 50
	maxFiles = 5000
)

// PRMeta is the PR metadata record getPullRequest returns.
type PRMeta struct {
	Number     int
	Title      string
	Body       string
	State      string
	BaseBranch string
	HeadBranch string
	BaseSHA    string
	HeadSHA    string
	URL        string
	Author     string
}

// FileChange is one entry in the changed-file list.
type FileChange struct {
	Path       string
	Status     string
	Additions  int
	Deletions  int
	Changes    int
	Patch      string
	PreviousPath string
}

// Client fetches PR data from GitHub. One Client is built per worker
// process and its underlying *http.Client pool is reused across tasks, per
// spec.md §5's "per-worker connection pools (keep-alive ≤ 10)" resource
// rule.
type Client struct {
	gh      *gh.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// New builds a Client authenticated with token (may be empty for
// unauthenticated, rate-limited access) against apiURL (empty for
// api.github.com).
func New(token, apiURL string, logger *zap.Logger) (*Client, error) {
	httpClient := &http.Client{Timeout: callTimeout}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
		httpClient.Timeout = callTimeout
	}

	client := gh.NewClient(httpClient)
	if apiURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(apiURL, apiURL)
		if err != nil {
			return nil, fmt.Errorf("codehost: configuring api url: %w", err)
		}
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "codehost",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	return &Client{gh: client, breaker: breaker, logger: logger}, nil
}

// GetPullRequest fetches PR metadata for owner/name#prNumber.
func (c *Client) GetPullRequest(ctx context.Context, owner, name string, prNumber int) (*PRMeta, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	v, err := c.breaker.Execute(func() (any, error) {
		pr, resp, err := c.gh.PullRequests.Get(ctx, owner, name, prNumber)
		if err != nil {
			return nil, translateErr(resp, err)
		}
		return pr, nil
	})
	if err != nil {
		return nil, err
	}
	pr := v.(*gh.PullRequest)

	return &PRMeta{
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		Body:       pr.GetBody(),
		State:      pr.GetState(),
		BaseBranch: pr.GetBase().GetRef(),
		HeadBranch: pr.GetHead().GetRef(),
		BaseSHA:    pr.GetBase().GetSHA(),
		HeadSHA:    pr.GetHead().GetSHA(),
		URL:        pr.GetHTMLURL(),
		Author:     pr.GetUser().GetLogin(),
	}, nil
}

// GetPRFiles fetches the full changed-file list via cursor pagination,
// stopping at the 50-page/5000-file ceiling and logging the truncation per
// spec.md §4.2.
func (c *Client) GetPRFiles(ctx context.Context, owner, name string, prNumber int) ([]FileChange, error) {
	var out []FileChange
	opts := &gh.ListOptions{PerPage: pageSize}

	for page := 0; page < maxPages; page++ {
		callCtx, cancel := context.WithTimeout(ctx, callTimeout)
		v, err := c.breaker.Execute(func() (any, error) {
			files, resp, err := c.gh.PullRequests.ListFiles(callCtx, owner, name, prNumber, opts)
			if err != nil {
				return nil, translateErr(resp, err)
			}
			return struct {
				files []*gh.CommitFile
				next  int
			}{files, resp.NextPage}, nil
		})
		cancel()
		if err != nil {
			return nil, err
		}
		result := v.(struct {
			files []*gh.CommitFile
			next  int
		})

		for _, f := range result.files {
			if len(out) >= maxFiles {
				break
			}
			out = append(out, FileChange{
				Path:         f.GetFilename(),
				Status:       f.GetStatus(),
				Additions:    f.GetAdditions(),
				Deletions:    f.GetDeletions(),
				Changes:      f.GetChanges(),
				Patch:        f.GetPatch(),
				PreviousPath: f.GetPreviousFilename(),
			})
		}

		if len(out) >= maxFiles {
			if c.logger != nil {
				c.logger.Warn("codehost: file list truncated at cap",
					zap.Int("owner_repo_pr", prNumber), zap.Int("max_files", maxFiles))
			}
			break
		}
		if result.next == 0 {
			break
		}
		opts.Page = result.next

		if page == maxPages-1 && c.logger != nil {
			c.logger.Warn("codehost: file list truncated at page cap", zap.Int("max_pages", maxPages))
		}
	}

	return out, nil
}

// GetFileContent fetches a file's UTF-8 text at ref, returning an empty
// string if the file is absent rather than an error, per spec.md §4.2.
func (c *Client) GetFileContent(ctx context.Context, owner, name, path, ref string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	v, err := c.breaker.Execute(func() (any, error) {
		content, _, resp, err := c.gh.Repositories.GetContents(ctx, owner, name, path, &gh.RepositoryContentGetOptions{Ref: ref})
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return "", nil
			}
			return nil, translateErr(resp, err)
		}
		if content == nil {
			return "", nil
		}
		text, err := content.GetContent()
		if err != nil {
			return nil, apperr.Wrap(apperr.KindUpstream, "decode file content", err)
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func translateErr(resp *gh.Response, err error) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return apperr.Wrap(apperr.KindNotFound, "resource not found", err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return apperr.Wrap(apperr.KindUnauthorized, "unauthorized", err)
		case http.StatusTooManyRequests:
			return apperr.Wrap(apperr.KindRateLimited, "rate limited", err)
		}
	}
	if rle, ok := err.(*gh.RateLimitError); ok {
		return apperr.Wrap(apperr.KindRateLimited, "rate limited", rle).WithContext(map[string]any{
			"retry_after": rle.Rate.Reset.Time,
		})
	}
	return apperr.Wrap(apperr.KindUpstream, "code host request failed", err)
}
