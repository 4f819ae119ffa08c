package provision

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/logging"
	"github.com/Iron-Ham/subforge/internal/remote"
	"github.com/Iron-Ham/subforge/internal/vcs"
)

// DefaultBranches is the push fallback order: the primary branch name,
// then the legacy default.
var DefaultBranches = []string{"main", "master"}

// DefaultCommitMessage is the message of the first commit of a project.
const DefaultCommitMessage = "Initial commit"

// PushOptions configures a Pusher.
type PushOptions struct {
	Branches      []string
	CommitMessage string
	UseSSH        bool
}

// PushAttempt records one candidate branch push.
type PushAttempt struct {
	Branch string
	Err    error
}

// PushOutcome is the result of InitializeAndPush. Err is set only for fatal
// failures (init, stage, commit, remote setup). A push that failed on every
// candidate branch leaves Pushed false and fills Remediation.
type PushOutcome struct {
	Pushed      bool
	Branch      string
	RemoteURL   string
	Attempts    []PushAttempt
	Remediation []string
	Err         error
}

// Warning returns the PushFailureWarning for an outcome that initialized
// the repository but could not push it, or nil.
func (o *PushOutcome) Warning() *errors.Warning {
	if o.Pushed || o.Err != nil {
		return nil
	}
	var causes []error
	for _, a := range o.Attempts {
		causes = append(causes, a.Err)
	}
	cause := fmt.Errorf("%w: %w", errors.ErrPushFailed, errors.Join(causes...))
	return errors.NewWarning("push", cause).WithRemediation(o.Remediation...)
}

// Pusher initializes a freshly scaffolded project and publishes it.
type Pusher struct {
	git    vcs.Client
	opts   PushOptions
	logger *logging.Logger
}

// NewPusher creates a Pusher. Zero-valued options take the defaults.
func NewPusher(git vcs.Client, opts PushOptions, logger *logging.Logger) *Pusher {
	if len(opts.Branches) == 0 {
		opts.Branches = DefaultBranches
	}
	if opts.CommitMessage == "" {
		opts.CommitMessage = DefaultCommitMessage
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Pusher{git: git, opts: opts, logger: logger}
}

// Initialize creates a repository at localPath and commits everything in it.
func (p *Pusher) Initialize(ctx context.Context, localPath string) error {
	if err := p.git.Init(ctx, localPath); err != nil {
		return err
	}
	if err := p.git.StageAll(ctx, localPath); err != nil {
		return err
	}
	return p.git.Commit(ctx, localPath, p.opts.CommitMessage)
}

// InitializeAndPush initializes localPath, points origin at repo, and pushes
// to the first candidate branch that accepts it. The local branch is
// renamed to the branch that was pushed.
func (p *Pusher) InitializeAndPush(ctx context.Context, localPath string, repo *remote.Repository) PushOutcome {
	outcome := PushOutcome{RemoteURL: repo.URL(p.opts.UseSSH)}

	if err := p.Initialize(ctx, localPath); err != nil {
		outcome.Err = err
		return outcome
	}
	if err := p.setOrigin(ctx, localPath, outcome.RemoteURL); err != nil {
		outcome.Err = err
		return outcome
	}

	for _, branch := range p.opts.Branches {
		err := p.git.Push(ctx, localPath, "origin", branch)
		outcome.Attempts = append(outcome.Attempts, PushAttempt{Branch: branch, Err: err})
		if err != nil {
			p.logger.Warn("push failed, trying next branch", "path", localPath, "branch", branch, "error", err)
			continue
		}

		outcome.Pushed = true
		outcome.Branch = branch
		if err := p.git.RenameBranch(ctx, localPath, branch); err != nil {
			// The push landed; a mismatched local branch name is cosmetic.
			p.logger.Warn("failed to rename local branch", "path", localPath, "branch", branch, "error", err)
		}
		p.logger.Info("pushed initial commit", "path", localPath, "remote", outcome.RemoteURL, "branch", branch)
		return outcome
	}

	outcome.Remediation = []string{
		"cd " + localPath,
		"git remote -v   # origin should be " + outcome.RemoteURL,
		"git push -u origin HEAD:" + p.opts.Branches[0],
	}
	return outcome
}

// setOrigin replaces any existing origin so a retried run never pushes to a
// stale URL.
func (p *Pusher) setOrigin(ctx context.Context, localPath, url string) error {
	remotes, err := p.git.ListRemotes(ctx, localPath)
	if err != nil {
		return err
	}
	for _, name := range remotes {
		if name == "origin" {
			if err := p.git.RemoveRemote(ctx, localPath, "origin"); err != nil {
				return err
			}
			break
		}
	}
	return p.git.SetRemote(ctx, localPath, "origin", url)
}
