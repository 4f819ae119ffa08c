package vcs

import "context"

// RepoOperations covers a single repository: creating it, committing to it,
// and inspecting its working tree.
type RepoOperations interface {
	// TopLevel returns the absolute top-level directory of the repository
	// enclosing dir.
	TopLevel(ctx context.Context, dir string) (string, error)
	// GitDir returns the absolute path of the repository's git directory.
	GitDir(ctx context.Context, path string) (string, error)

	Init(ctx context.Context, path string) error
	StageAll(ctx context.Context, path string) error
	Stage(ctx context.Context, path string, paths ...string) error
	// Commit records staged changes. A repository-local identity is set
	// first when none is configured.
	Commit(ctx context.Context, path, message string) error

	HasUncommittedChanges(ctx context.Context, path string) (bool, error)
	HeadCommit(ctx context.Context, path string) (string, error)
	Version(ctx context.Context) (string, error)
}

// RemoteOperations manages remotes and moves commits between repositories.
type RemoteOperations interface {
	ListRemotes(ctx context.Context, path string) ([]string, error)
	// SetRemote adds a remote. It fails if the name is already configured.
	SetRemote(ctx context.Context, path, name, url string) error
	RemoveRemote(ctx context.Context, path, name string) error
	// Push pushes HEAD to branch on remote and sets it as upstream.
	Push(ctx context.Context, path, remote, branch string) error
	// FetchAll fetches every remote, pruning stale refs and fetching tags.
	FetchAll(ctx context.Context, path string) error
	ListRemoteBranches(ctx context.Context, path string) ([]RemoteBranch, error)
	// DefaultBranch returns the branch the remote's HEAD points at, or ""
	// when unknown.
	DefaultBranch(ctx context.Context, path, remote string) (string, error)
}

// BranchOperations manages local branches and their upstreams.
type BranchOperations interface {
	// CurrentBranch returns the checked-out branch, or "" on a detached HEAD.
	CurrentBranch(ctx context.Context, path string) (string, error)
	ListLocalBranches(ctx context.Context, path string) ([]string, error)
	RenameBranch(ctx context.Context, path, branch string) error
	Checkout(ctx context.Context, path, branch string) error
	CreateTrackingBranch(ctx context.Context, path, local, upstream string) error
	// Upstream returns the upstream of the current branch, or "" when
	// there is none.
	Upstream(ctx context.Context, path string) (string, error)
	// CountCommitsBetween returns the number of commits in head that are
	// not in base.
	CountCommitsBetween(ctx context.Context, path, base, head string) (int, error)
	MergeFastForwardOnly(ctx context.Context, path, upstream string) error
}

// SubmoduleOperations manages the submodules of a parent repository. The
// workspace argument is always the parent repository root and relPath is
// relative to it.
type SubmoduleOperations interface {
	AddSubmodule(ctx context.Context, workspace, url, relPath string) error
	// AddSubmoduleRaw registers a submodule through the low-level invocation
	// form. It is the fallback when AddSubmodule fails.
	AddSubmoduleRaw(ctx context.Context, workspace, url, relPath string) error
	SubmoduleInit(ctx context.Context, workspace, relPath string) error
	SubmoduleStatus(ctx context.Context, workspace string) ([]SubmoduleStatusInfo, error)
	// Submodules returns the entries declared in .gitmodules.
	Submodules(ctx context.Context, workspace string) ([]SubmoduleInfo, error)
	DeinitSubmodule(ctx context.Context, workspace, relPath string) error
	RemoveFromIndex(ctx context.Context, workspace, relPath string) error
	RemoveGitmodulesEntry(ctx context.Context, workspace, name string) error
	// PurgeInternalStorage deletes .git/modules/<name> from the parent.
	PurgeInternalStorage(ctx context.Context, workspace, name string) error
}

// Client combines all git operation interfaces into a single type.
type Client interface {
	RepoOperations
	RemoteOperations
	BranchOperations
	SubmoduleOperations
}

// Ensure CLIClient implements all interfaces at compile time.
var (
	_ RepoOperations      = (*CLIClient)(nil)
	_ RemoteOperations    = (*CLIClient)(nil)
	_ BranchOperations    = (*CLIClient)(nil)
	_ SubmoduleOperations = (*CLIClient)(nil)
	_ Client              = (*CLIClient)(nil)
)
