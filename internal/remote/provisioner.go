package remote

import (
	"context"
	"fmt"
	"strings"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/logging"
)

// Request is a validated request for a new remote repository.
type Request struct {
	// Owner is the desired organization. Empty means the personal account.
	Owner       string
	Name        string
	Description string
	Private     bool
	// PreferOrg tries Owner as an organization before the personal account.
	PreferOrg bool
}

// Result is where the repository actually ended up.
type Result struct {
	Repository *Repository
	// FellBack is true when the repository was created somewhere other
	// than the requested owner.
	FellBack bool
	// Notice is the RemoteFallbackNotice describing the fallback, if any.
	Notice *errors.Warning
}

// Provisioner creates remote repositories with an organization-first,
// personal-account-fallback policy. The fallback is attempted at most once.
type Provisioner struct {
	host   Host
	logger *logging.Logger
}

// NewProvisioner creates a Provisioner over host.
func NewProvisioner(host Host, logger *logging.Logger) *Provisioner {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Provisioner{host: host, logger: logger}
}

// Create creates the requested repository.
//
// Name conflicts, invalid credentials, and rate limiting are fatal on
// either path. Any other organization failure (no permission, no such
// organization) falls back to the personal account.
func (p *Provisioner) Create(ctx context.Context, req Request) (*Result, error) {
	spec := RepoSpec{Name: req.Name, Description: req.Description, Private: req.Private}

	if req.PreferOrg && req.Owner != "" {
		repo, err := p.createInOrg(ctx, req.Owner, spec)
		if err == nil {
			p.logger.Info("created repository", "repo", repo.FullName())
			return &Result{Repository: repo}, nil
		}
		if isFatal(err) {
			return nil, err
		}
		p.logger.Warn("organization repository creation failed, falling back to personal account",
			"org", req.Owner, "repo", req.Name, "error", err)
		return p.createPersonal(ctx, req, spec, err)
	}

	return p.createPersonal(ctx, req, spec, nil)
}

func (p *Provisioner) createInOrg(ctx context.Context, org string, spec RepoSpec) (*Repository, error) {
	exists, err := p.host.OrganizationExists(ctx, org)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.NewRemoteError("organization does not exist", errors.ErrNotFound).
			WithOwner(org).WithRepo(spec.Name)
	}
	return p.host.CreateRepository(ctx, org, spec)
}

func (p *Provisioner) createPersonal(ctx context.Context, req Request, spec RepoSpec, orgErr error) (*Result, error) {
	repo, err := p.host.CreateRepositoryForAuthenticatedUser(ctx, spec)
	if err != nil {
		if orgErr != nil {
			return nil, fmt.Errorf("personal account fallback after organization failure (%v): %w", orgErr, err)
		}
		return nil, err
	}
	p.logger.Info("created repository", "repo", repo.FullName())

	result := &Result{Repository: repo}
	if req.Owner != "" && !strings.EqualFold(req.Owner, repo.Owner) {
		result.FellBack = true
		result.Notice = fallbackNotice(req.Owner+"/"+req.Name, repo.FullName(), orgErr)
	}
	return result, nil
}

// Fork forks owner/repo into targetOrg, falling back to the personal
// account under the same rules as Create. An empty targetOrg forks to the
// personal account directly.
func (p *Provisioner) Fork(ctx context.Context, owner, repo, targetOrg string) (*Result, error) {
	if targetOrg != "" {
		fork, err := p.host.CreateFork(ctx, owner, repo, targetOrg)
		if err == nil {
			return &Result{Repository: fork}, nil
		}
		if isFatal(err) {
			return nil, err
		}
		p.logger.Warn("organization fork failed, falling back to personal account",
			"org", targetOrg, "source", owner+"/"+repo, "error", err)

		fork, perr := p.host.CreateFork(ctx, owner, repo, "")
		if perr != nil {
			return nil, fmt.Errorf("personal account fallback after organization failure (%v): %w", err, perr)
		}
		return &Result{
			Repository: fork,
			FellBack:   true,
			Notice:     fallbackNotice(targetOrg+"/"+repo, fork.FullName(), err),
		}, nil
	}

	fork, err := p.host.CreateFork(ctx, owner, repo, "")
	if err != nil {
		return nil, err
	}
	return &Result{Repository: fork}, nil
}

// isFatal reports whether an organization failure must not fall back.
func isFatal(err error) bool {
	return errors.Is(err, errors.ErrRepoNameConflict) ||
		errors.Is(err, errors.ErrInvalidInput) ||
		errors.Is(err, errors.ErrAuthInvalid) ||
		errors.Is(err, errors.ErrRateLimited) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

func fallbackNotice(requested, actual string, reason error) *errors.Warning {
	cause := fmt.Errorf("%w: requested %s, created %s", errors.ErrRemoteFallback, requested, actual)
	if reason != nil {
		cause = fmt.Errorf("%w (%v)", cause, reason)
	}
	return errors.NewWarning("create remote", cause).WithSeverity(errors.SeverityInfo)
}
