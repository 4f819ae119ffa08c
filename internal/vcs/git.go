// Package vcs is the version-control collaborator. It drives the git CLI
// through a CommandExecutor, passing an explicit directory to every
// invocation, and parses the output subforge needs: submodule status lines,
// .gitmodules declarations, remote branches.
package vcs

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/logging"
)

// Identity used for commits in repositories that have no user configured.
const (
	fallbackUserName  = "subforge"
	fallbackUserEmail = "subforge@users.noreply.github.com"
)

// RemoteBranch is a remote-tracking ref such as origin/main.
type RemoteBranch struct {
	Remote string
	Branch string
}

// String returns the short ref name ("origin/main").
func (b RemoteBranch) String() string {
	return b.Remote + "/" + b.Branch
}

// CLIClient implements Client using git CLI commands.
type CLIClient struct {
	executor CommandExecutor
	logger   *logging.Logger
}

// NewCLIClient creates a Client that shells out to git.
func NewCLIClient(logger *logging.Logger) *CLIClient {
	return NewCLIClientWithExecutor(NewCLICommandExecutor(), logger)
}

// NewCLIClientWithExecutor creates a CLIClient with a custom executor.
// This is primarily useful for testing.
func NewCLIClientWithExecutor(executor CommandExecutor, logger *logging.Logger) *CLIClient {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &CLIClient{executor: executor, logger: logger}
}

// git runs a git command in dir. Failures come back as a *errors.GitError
// carrying msg, the arguments, and git's output.
func (g *CLIClient) git(ctx context.Context, dir, msg string, args ...string) (string, error) {
	output, err := g.executor.Run(ctx, dir, "git", args...)
	out := string(output)
	g.logger.Debug("git command", "dir", dir, "args", args, "output", truncateOutput(out, 500))
	if err != nil {
		return out, errors.NewGitError(msg, err).
			WithRepository(dir).
			WithArgs(args).
			WithGitOutput(out)
	}
	return out, nil
}

// -----------------------------------------------------------------------------
// RepoOperations
// -----------------------------------------------------------------------------

// TopLevel returns the repository root enclosing dir.
func (g *CLIClient) TopLevel(ctx context.Context, dir string) (string, error) {
	out, err := g.git(ctx, dir, "not inside a git repository", "rev-parse", "--show-toplevel")
	if err != nil {
		return "", err
	}
	return filepath.Clean(strings.TrimSpace(out)), nil
}

// GitDir returns the absolute git directory of the repository at path.
func (g *CLIClient) GitDir(ctx context.Context, path string) (string, error) {
	out, err := g.git(ctx, path, "failed to resolve git directory", "rev-parse", "--absolute-git-dir")
	if err != nil {
		return "", err
	}
	return filepath.Clean(strings.TrimSpace(out)), nil
}

// Init creates a repository at path.
func (g *CLIClient) Init(ctx context.Context, path string) error {
	_, err := g.git(ctx, path, "failed to initialize repository", "init")
	return err
}

// StageAll stages every change in the working tree.
func (g *CLIClient) StageAll(ctx context.Context, path string) error {
	_, err := g.git(ctx, path, "failed to stage changes", "add", "-A")
	return err
}

// Stage stages the given paths.
func (g *CLIClient) Stage(ctx context.Context, path string, paths ...string) error {
	args := append([]string{"add", "--"}, paths...)
	_, err := g.git(ctx, path, "failed to stage changes", args...)
	return err
}

// Commit commits staged changes with message.
// Returns nil if there is nothing to commit.
func (g *CLIClient) Commit(ctx context.Context, path, message string) error {
	if err := g.ensureIdentity(ctx, path); err != nil {
		return err
	}
	out, err := g.git(ctx, path, "failed to commit changes", "commit", "-m", message)
	if err != nil {
		if strings.Contains(out, "nothing to commit") {
			return nil
		}
		return err
	}
	return nil
}

// ensureIdentity sets a repository-local author when git has none, so the
// first commit of a freshly provisioned project never fails on a machine
// without a global identity.
func (g *CLIClient) ensureIdentity(ctx context.Context, path string) error {
	out, err := g.executor.Run(ctx, path, "git", "config", "user.email")
	if err == nil && strings.TrimSpace(string(out)) != "" {
		return nil
	}
	g.logger.Debug("no git identity configured, using fallback", "path", path)
	if _, err := g.git(ctx, path, "failed to configure git identity", "config", "user.name", fallbackUserName); err != nil {
		return err
	}
	_, err = g.git(ctx, path, "failed to configure git identity", "config", "user.email", fallbackUserEmail)
	return err
}

// HasUncommittedChanges returns true if there are uncommitted changes,
// untracked files included.
func (g *CLIClient) HasUncommittedChanges(ctx context.Context, path string) (bool, error) {
	out, err := g.git(ctx, path, "failed to check git status", "status", "--porcelain")
	if err != nil {
		return false, err
	}
	return len(strings.TrimSpace(out)) > 0, nil
}

// HeadCommit returns the full SHA of HEAD.
func (g *CLIClient) HeadCommit(ctx context.Context, path string) (string, error) {
	out, err := g.git(ctx, path, "failed to resolve HEAD", "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// Version returns the installed git version ("2.43.0").
func (g *CLIClient) Version(ctx context.Context) (string, error) {
	out, err := g.git(ctx, "", "failed to run git", "version")
	if err != nil {
		return "", err
	}
	return parseVersion(out), nil
}

// parseVersion extracts the version number from "git version 2.43.0 (Apple Git-146)".
func parseVersion(output string) string {
	fields := strings.Fields(output)
	if len(fields) >= 3 && fields[0] == "git" && fields[1] == "version" {
		return fields[2]
	}
	return strings.TrimSpace(output)
}

// -----------------------------------------------------------------------------
// RemoteOperations
// -----------------------------------------------------------------------------

// ListRemotes returns the configured remote names.
func (g *CLIClient) ListRemotes(ctx context.Context, path string) ([]string, error) {
	out, err := g.git(ctx, path, "failed to list remotes", "remote")
	if err != nil {
		return nil, err
	}
	return splitNonEmpty(out), nil
}

// SetRemote adds remote name pointing at url.
func (g *CLIClient) SetRemote(ctx context.Context, path, name, url string) error {
	_, err := g.git(ctx, path, "failed to add remote "+name, "remote", "add", name, url)
	return err
}

// RemoveRemote removes remote name.
func (g *CLIClient) RemoveRemote(ctx context.Context, path, name string) error {
	_, err := g.git(ctx, path, "failed to remove remote "+name, "remote", "remove", name)
	return err
}

// Push pushes HEAD to remote/branch and records the upstream.
func (g *CLIClient) Push(ctx context.Context, path, remote, branch string) error {
	_, err := g.git(ctx, path, "failed to push", "push", "-u", remote, "HEAD:refs/heads/"+branch)
	if err != nil {
		var gitErr *errors.GitError
		if errors.As(err, &gitErr) {
			gitErr.WithBranch(branch)
		}
	}
	return err
}

// FetchAll fetches all remotes with pruning and tags.
func (g *CLIClient) FetchAll(ctx context.Context, path string) error {
	_, err := g.git(ctx, path, "failed to fetch", "fetch", "--all", "--prune", "--tags")
	return err
}

// ListRemoteBranches returns every remote-tracking branch except the
// symbolic <remote>/HEAD refs.
func (g *CLIClient) ListRemoteBranches(ctx context.Context, path string) ([]RemoteBranch, error) {
	out, err := g.git(ctx, path, "failed to list remote branches", "for-each-ref", "--format=%(refname)", "refs/remotes")
	if err != nil {
		return nil, err
	}
	return parseRemoteBranches(out), nil
}

func parseRemoteBranches(output string) []RemoteBranch {
	var branches []RemoteBranch
	for _, ref := range splitNonEmpty(output) {
		short := strings.TrimPrefix(ref, "refs/remotes/")
		remote, branch, ok := strings.Cut(short, "/")
		if !ok || branch == "" || branch == "HEAD" {
			continue
		}
		branches = append(branches, RemoteBranch{Remote: remote, Branch: branch})
	}
	return branches
}

// DefaultBranch resolves <remote>/HEAD to a branch name.
func (g *CLIClient) DefaultBranch(ctx context.Context, path, remote string) (string, error) {
	out, err := g.executor.Run(ctx, path, "git", "symbolic-ref", "--quiet", "--short", "refs/remotes/"+remote+"/HEAD")
	if err != nil {
		// Not an error: the remote HEAD is simply unknown.
		return "", nil
	}
	return strings.TrimPrefix(strings.TrimSpace(string(out)), remote+"/"), nil
}

// -----------------------------------------------------------------------------
// BranchOperations
// -----------------------------------------------------------------------------

// CurrentBranch returns the checked-out branch, or "" when HEAD is detached.
func (g *CLIClient) CurrentBranch(ctx context.Context, path string) (string, error) {
	out, err := g.executor.Run(ctx, path, "git", "symbolic-ref", "--quiet", "--short", "HEAD")
	if err != nil {
		// symbolic-ref exits 1 on a detached HEAD; anything else is a real failure.
		if _, headErr := g.HeadCommit(ctx, path); headErr != nil {
			return "", headErr
		}
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

// ListLocalBranches returns the names of all local branches.
func (g *CLIClient) ListLocalBranches(ctx context.Context, path string) ([]string, error) {
	out, err := g.git(ctx, path, "failed to list branches", "for-each-ref", "--format=%(refname:short)", "refs/heads")
	if err != nil {
		return nil, err
	}
	return splitNonEmpty(out), nil
}

// RenameBranch renames the current branch.
func (g *CLIClient) RenameBranch(ctx context.Context, path, branch string) error {
	_, err := g.git(ctx, path, "failed to rename branch", "branch", "-M", branch)
	return err
}

// Checkout switches to an existing branch.
func (g *CLIClient) Checkout(ctx context.Context, path, branch string) error {
	_, err := g.git(ctx, path, "failed to checkout "+branch, "checkout", branch)
	return err
}

// CreateTrackingBranch creates local from upstream and tracks it.
func (g *CLIClient) CreateTrackingBranch(ctx context.Context, path, local, upstream string) error {
	_, err := g.git(ctx, path, "failed to create tracking branch "+local, "branch", "--track", local, upstream)
	return err
}

// Upstream returns the upstream ref of the current branch ("origin/main").
func (g *CLIClient) Upstream(ctx context.Context, path string) (string, error) {
	out, err := g.executor.Run(ctx, path, "git", "rev-parse", "--abbrev-ref", "--symbolic-full-name", "@{u}")
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(string(out)), nil
}

// CountCommitsBetween returns the number of commits reachable from head but
// not from base.
func (g *CLIClient) CountCommitsBetween(ctx context.Context, path, base, head string) (int, error) {
	out, err := g.git(ctx, path, "failed to count commits between branches", "rev-list", "--count", base+".."+head)
	if err != nil {
		return 0, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(out))
	if err != nil {
		return 0, errors.NewGitError("failed to parse commit count", err).WithRepository(path)
	}
	return count, nil
}

// MergeFastForwardOnly merges upstream only if HEAD can fast-forward.
func (g *CLIClient) MergeFastForwardOnly(ctx context.Context, path, upstream string) error {
	_, err := g.git(ctx, path, "cannot fast-forward to "+upstream, "merge", "--ff-only", upstream)
	return err
}

// -----------------------------------------------------------------------------
// Helpers
// -----------------------------------------------------------------------------

func splitNonEmpty(output string) []string {
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// truncateOutput truncates output to maxLen characters for logging.
func truncateOutput(output string, maxLen int) string {
	if len(output) <= maxLen {
		return output
	}
	return output[:maxLen] + "... (truncated)"
}
