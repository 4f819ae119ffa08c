package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/go-github/v48/github"
	"golang.org/x/oauth2"

	"github.com/Iron-Ham/subforge/internal/errors"
)

// GitHubHost implements Host with the GitHub REST API.
type GitHubHost struct {
	client *github.Client
}

// NewGitHubHost creates a GitHubHost authenticated with token. An empty
// token gives an anonymous client (enough for public release lookups).
// baseURL overrides the API endpoint for GitHub Enterprise; empty means
// api.github.com.
func NewGitHubHost(ctx context.Context, token, baseURL string) (*GitHubHost, error) {
	var httpClient *http.Client
	if token != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	client := github.NewClient(httpClient)

	if baseURL != "" {
		if !strings.HasSuffix(baseURL, "/") {
			baseURL += "/"
		}
		u, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %q: %w", baseURL, err)
		}
		client.BaseURL = u
	}
	return &GitHubHost{client: client}, nil
}

// OrganizationExists reports whether org is an organization visible to the token.
func (h *GitHubHost) OrganizationExists(ctx context.Context, org string) (bool, error) {
	_, _, err := h.client.Organizations.Get(ctx, org)
	if err == nil {
		return true, nil
	}
	if errors.Is(classify(err), errors.ErrNotFound) {
		return false, nil
	}
	return false, remoteError("look up organization", err).WithOwner(org)
}

// CreateRepository creates a repository under the organization owner.
func (h *GitHubHost) CreateRepository(ctx context.Context, owner string, spec RepoSpec) (*Repository, error) {
	repo, _, err := h.client.Repositories.Create(ctx, owner, newRepository(spec))
	if err != nil {
		return nil, remoteError("create repository", err).WithOwner(owner).WithRepo(spec.Name)
	}
	return fromGitHub(repo), nil
}

// CreateRepositoryForAuthenticatedUser creates a repository under the
// token's own account.
func (h *GitHubHost) CreateRepositoryForAuthenticatedUser(ctx context.Context, spec RepoSpec) (*Repository, error) {
	repo, _, err := h.client.Repositories.Create(ctx, "", newRepository(spec))
	if err != nil {
		return nil, remoteError("create repository", err).WithRepo(spec.Name)
	}
	return fromGitHub(repo), nil
}

// CreateFork forks owner/repo. GitHub answers 202 while the fork is being
// created; the returned repository is already usable as a push target.
func (h *GitHubHost) CreateFork(ctx context.Context, owner, repo, targetOrg string) (*Repository, error) {
	opts := &github.RepositoryCreateForkOptions{Organization: targetOrg}
	fork, _, err := h.client.Repositories.CreateFork(ctx, owner, repo, opts)
	if err != nil {
		var accepted *github.AcceptedError
		if !errors.As(err, &accepted) || fork == nil {
			return nil, remoteError("fork repository", err).WithOwner(owner).WithRepo(repo)
		}
	}
	return fromGitHub(fork), nil
}

// AuthenticatedUser returns the login of the token's owner.
func (h *GitHubHost) AuthenticatedUser(ctx context.Context) (string, error) {
	user, _, err := h.client.Users.Get(ctx, "")
	if err != nil {
		return "", remoteError("get authenticated user", err)
	}
	return user.GetLogin(), nil
}

// LatestRelease returns the newest published release of owner/repo.
func (h *GitHubHost) LatestRelease(ctx context.Context, owner, repo string) (*Release, error) {
	rel, _, err := h.client.Repositories.GetLatestRelease(ctx, owner, repo)
	if err != nil {
		return nil, remoteError("get latest release", err).WithOwner(owner).WithRepo(repo)
	}
	release := &Release{Tag: rel.GetTagName()}
	for _, a := range rel.Assets {
		release.Assets = append(release.Assets, Asset{ID: a.GetID(), Name: a.GetName()})
	}
	return release, nil
}

// DownloadAsset streams a release asset. The caller closes the reader.
func (h *GitHubHost) DownloadAsset(ctx context.Context, owner, repo string, id int64) (io.ReadCloser, error) {
	rc, _, err := h.client.Repositories.DownloadReleaseAsset(ctx, owner, repo, id, http.DefaultClient)
	if err != nil {
		return nil, remoteError("download release asset", err).WithOwner(owner).WithRepo(repo)
	}
	return rc, nil
}

func newRepository(spec RepoSpec) *github.Repository {
	return &github.Repository{
		Name:        github.String(spec.Name),
		Description: github.String(spec.Description),
		Private:     github.Bool(spec.Private),
	}
}

func fromGitHub(repo *github.Repository) *Repository {
	return &Repository{
		Owner:    repo.GetOwner().GetLogin(),
		Name:     repo.GetName(),
		CloneURL: repo.GetCloneURL(),
		SSHURL:   repo.GetSSHURL(),
		HTMLURL:  repo.GetHTMLURL(),
	}
}

// remoteError wraps a go-github error in a RemoteError whose cause matches
// the classified sentinel.
func remoteError(msg string, err error) *errors.RemoteError {
	kind := classify(err)
	rerr := errors.NewRemoteError(msg, fmt.Errorf("%w: %s", kind, describe(err))).
		WithStatus(statusCode(err))
	if errors.Is(kind, errors.ErrRateLimited) {
		rerr.WithRetryable(true)
	}
	return rerr
}

// classify maps a go-github error to a sentinel from internal/errors.
func classify(err error) error {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var respErr *github.ErrorResponse

	switch {
	case errors.As(err, &rateErr), errors.As(err, &abuseErr):
		return errors.ErrRateLimited
	case errors.As(err, &respErr):
		switch statusCode(err) {
		case http.StatusUnauthorized:
			return errors.ErrAuthInvalid
		case http.StatusForbidden:
			if mentions(respErr, "rate limit", "abuse detection") {
				return errors.ErrRateLimited
			}
			return errors.ErrPermissionDenied
		case http.StatusNotFound:
			return errors.ErrNotFound
		case http.StatusUnprocessableEntity:
			if mentions(respErr, "already exists") {
				return errors.ErrRepoNameConflict
			}
			return errors.ErrInvalidInput
		case http.StatusTooManyRequests:
			return errors.ErrRateLimited
		}
	}
	return errors.ErrOperationFailed
}

func statusCode(err error) int {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var respErr *github.ErrorResponse
	var resp *http.Response

	switch {
	case errors.As(err, &rateErr):
		resp = rateErr.Response
	case errors.As(err, &abuseErr):
		resp = abuseErr.Response
	case errors.As(err, &respErr):
		resp = respErr.Response
	}
	if resp == nil {
		return 0
	}
	return resp.StatusCode
}

func mentions(respErr *github.ErrorResponse, needles ...string) bool {
	texts := []string{respErr.Message}
	for _, e := range respErr.Errors {
		texts = append(texts, e.Message)
	}
	for _, text := range texts {
		lower := strings.ToLower(text)
		for _, needle := range needles {
			if strings.Contains(lower, needle) {
				return true
			}
		}
	}
	return false
}

// describe returns the API's message without the request line go-github
// prepends to ErrorResponse.Error().
func describe(err error) string {
	var respErr *github.ErrorResponse
	if errors.As(err, &respErr) {
		msg := respErr.Message
		for _, e := range respErr.Errors {
			if e.Message != "" {
				msg += "; " + e.Message
			}
		}
		if msg != "" {
			return msg
		}
	}
	return err.Error()
}
