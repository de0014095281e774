// Package tracker implements the issue tracker source against the GitHub API.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bradleyfalzon/ghinstallation/v2"
	gogithub "github.com/google/go-github/v60/github"

	"github.com/dupdex/dupdex/domain/issue"
	"github.com/dupdex/dupdex/internal/log"
)

// ErrRepositoryNotFound indicates the repository does not exist or is not
// visible to the configured credentials.
var ErrRepositoryNotFound = errors.New("repository not found")

// ErrSourceUnavailable indicates the tracker could not be reached or kept
// failing; the caller should retry the same window later.
var ErrSourceUnavailable = errors.New("issue tracker unavailable")

const perPage = 100

// maxCommentPages bounds the discussion size fed into one embedding input.
const maxCommentPages = 3

// GitHubSource fetches issue snapshots from the GitHub REST API.
type GitHubSource struct {
	client *gogithub.Client
	logger *log.Logger
}

// GitHubOption is a functional option for GitHubSource.
type GitHubOption func(*GitHubSource)

// WithLogger sets the source logger.
func WithLogger(logger *log.Logger) GitHubOption {
	return func(s *GitHubSource) { s.logger = logger }
}

// NewGitHubSource creates a source from an existing GitHub client.
func NewGitHubSource(client *gogithub.Client, opts ...GitHubOption) *GitHubSource {
	s := &GitHubSource{
		client: client,
		logger: log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewTokenSource creates a source authenticated with a personal access token.
// An empty token yields an unauthenticated client (low rate limits).
func NewTokenSource(token string, opts ...GitHubOption) *GitHubSource {
	client := gogithub.NewClient(nil)
	if token != "" {
		client = client.WithAuthToken(token)
	}
	return NewGitHubSource(client, opts...)
}

// NewAppSource creates a source authenticated as a GitHub App installation.
// ghinstallation manages JWT signing and installation token rotation.
func NewAppSource(appID, installationID int64, privateKeyPath string, opts ...GitHubOption) (*GitHubSource, error) {
	transport, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("creating installation transport: %w", err)
	}
	return NewGitHubSource(gogithub.NewClient(&http.Client{Transport: transport}), opts...), nil
}

// ListUpdatedSince returns the repository's issues modified at or after
// since, newest changes included, pull requests excluded. Closed issues in
// the window are returned with their state so callers can flag cache
// entries; comments are fetched only for open issues since closed ones are
// never embedded.
func (s *GitHubSource) ListUpdatedSince(ctx context.Context, repo issue.RepoName, since time.Time) ([]issue.Issue, error) {
	opts := &gogithub.IssueListByRepoOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "asc",
		ListOptions: gogithub.ListOptions{
			PerPage: perPage,
		},
	}
	if since.IsZero() {
		// Full corpus: only open issues matter when there is no window to
		// reconcile closures against.
		opts.State = "open"
	} else {
		opts.Since = since
	}

	var issues []issue.Issue

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, resp, err := s.client.Issues.ListByRepo(ctx, repo.Owner(), repo.Name(), opts)
		if err != nil {
			return nil, s.wrapError(repo, err)
		}

		s.throttle(ctx, resp)

		for _, gh := range page {
			// The issues endpoint returns pull requests too.
			if gh.PullRequestLinks != nil {
				continue
			}

			snapshot, err := s.convert(ctx, repo, gh)
			if err != nil {
				return nil, err
			}
			issues = append(issues, snapshot)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}

	s.logger.DebugContext(ctx, "listed issues", "repo", repo.String(), "count", len(issues), "since", since)
	return issues, nil
}

func (s *GitHubSource) convert(ctx context.Context, repo issue.RepoName, gh *gogithub.Issue) (issue.Issue, error) {
	state := issue.StateClosed
	if gh.GetState() == "open" {
		state = issue.StateOpen
	}

	var updatedAt time.Time
	if gh.UpdatedAt != nil {
		updatedAt = gh.UpdatedAt.Time
	}

	var comments []string
	if state == issue.StateOpen && gh.GetComments() > 0 {
		var err error
		comments, err = s.listComments(ctx, repo, gh.GetNumber())
		if err != nil {
			return issue.Issue{}, err
		}
	}

	return issue.NewIssue(repo, gh.GetNumber(), gh.GetTitle(), gh.GetBody(), comments, state, updatedAt), nil
}

func (s *GitHubSource) listComments(ctx context.Context, repo issue.RepoName, number int) ([]string, error) {
	opts := &gogithub.IssueListCommentsOptions{
		ListOptions: gogithub.ListOptions{PerPage: perPage},
	}

	var comments []string
	for page := 0; page < maxCommentPages; page++ {
		ghComments, resp, err := s.client.Issues.ListComments(ctx, repo.Owner(), repo.Name(), number, opts)
		if err != nil {
			return nil, s.wrapError(repo, err)
		}

		for _, c := range ghComments {
			comments = append(comments, c.GetBody())
		}

		if resp.NextPage == 0 {
			break
		}
		opts.ListOptions.Page = resp.NextPage
	}
	return comments, nil
}

// throttle waits out the rate limit window when the remaining budget is
// nearly exhausted, instead of failing the whole fetch on the next call.
func (s *GitHubSource) throttle(ctx context.Context, resp *gogithub.Response) {
	if resp == nil || resp.Rate.Remaining > 2 {
		return
	}
	wait := time.Until(resp.Rate.Reset.Time)
	if wait <= 0 {
		return
	}
	s.logger.WarnContext(ctx, "rate limit low, waiting", "remaining", resp.Rate.Remaining, "wait", wait)
	select {
	case <-ctx.Done():
	case <-time.After(wait):
	}
}

func (s *GitHubSource) wrapError(repo issue.RepoName, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var rateErr *gogithub.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("%w: rate limited until %s", ErrSourceUnavailable, rateErr.Rate.Reset.Time)
	}

	var ghErr *gogithub.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrRepositoryNotFound, repo.String())
	}

	return fmt.Errorf("%w: %s", ErrSourceUnavailable, err)
}

var _ issue.Source = (*GitHubSource)(nil)
