// Package testutil provides testing utilities for subforge tests.
package testutil

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// DefaultMarker is the workspace marker directory used by SetupWorkspace.
const DefaultMarker = ".subforge"

// SetupTestRepo creates a temporary git repository for testing.
// Returns the path to the repository. The repository is automatically
// cleaned up when the test completes.
func SetupTestRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	// Resolve symlinks (macOS /var -> /private/var) so paths compare equal
	// to what git reports.
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}

	if err := runGit(dir, "init"); err != nil {
		t.Fatalf("failed to init git repo: %v", err)
	}

	// Configure git user for commits
	if err := runGit(dir, "config", "user.email", "test@subforge.dev"); err != nil {
		t.Fatalf("failed to configure git email: %v", err)
	}
	if err := runGit(dir, "config", "user.name", "Subforge Test"); err != nil {
		t.Fatalf("failed to configure git name: %v", err)
	}

	readme := filepath.Join(dir, "README.md")
	if err := os.WriteFile(readme, []byte("# Test Repository\n"), 0644); err != nil {
		t.Fatalf("failed to create README: %v", err)
	}
	if err := runGit(dir, "add", "."); err != nil {
		t.Fatalf("failed to stage files: %v", err)
	}
	if err := runGit(dir, "commit", "-m", "Initial commit"); err != nil {
		t.Fatalf("failed to create initial commit: %v", err)
	}

	// Create main branch (some systems default to master)
	if err := runGit(dir, "branch", "-M", "main"); err != nil {
		t.Fatalf("failed to rename branch to main: %v", err)
	}

	return dir
}

// CreateBareRepo creates an empty bare repository that can serve as a
// remote.
func CreateBareRepo(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if resolved, err := filepath.EvalSymlinks(dir); err == nil {
		dir = resolved
	}
	if err := runGit(dir, "init", "--bare", "--initial-branch=main"); err != nil {
		// Older git without --initial-branch.
		if err := runGit(dir, "init", "--bare"); err != nil {
			t.Fatalf("failed to init bare repo: %v", err)
		}
		if err := runGit(dir, "symbolic-ref", "HEAD", "refs/heads/main"); err != nil {
			t.Fatalf("failed to set bare HEAD: %v", err)
		}
	}
	return dir
}

// SetupTestRepoWithRemote creates a test repository with a bare remote
// and pushes main to it.
func SetupTestRepoWithRemote(t *testing.T) (repoDir, remoteDir string) {
	t.Helper()

	remoteDir = CreateBareRepo(t)
	repoDir = SetupTestRepo(t)

	if err := runGit(repoDir, "remote", "add", "origin", remoteDir); err != nil {
		t.Fatalf("failed to add remote: %v", err)
	}
	if err := runGit(repoDir, "push", "-u", "origin", "main"); err != nil {
		t.Fatalf("failed to push to remote: %v", err)
	}

	return repoDir, remoteDir
}

// SetupWorkspace creates a workspace repository carrying the default
// marker directory.
func SetupWorkspace(t *testing.T) string {
	t.Helper()

	dir := SetupTestRepo(t)
	CommitFile(t, dir, filepath.Join(DefaultMarker, "config.yaml"), "version: 1\n", "Add workspace marker")
	return dir
}

// AddSubmodule publishes a new repository to a bare remote and registers
// it in workspace at relPath. It returns the bare remote path.
func AddSubmodule(t *testing.T, workspace, relPath string) string {
	t.Helper()

	AllowFileProtocol(t)
	_, remote := SetupTestRepoWithRemote(t)

	if err := runGit(workspace, "submodule", "add", remote, relPath); err != nil {
		t.Fatalf("failed to add submodule %s: %v", relPath, err)
	}
	if err := runGit(workspace, "commit", "-m", "Add "+relPath+" submodule"); err != nil {
		t.Fatalf("failed to commit submodule %s: %v", relPath, err)
	}
	return remote
}

// CloneRepo clones remote into a fresh temporary directory.
func CloneRepo(t *testing.T, remote string) string {
	t.Helper()

	dir := filepath.Join(t.TempDir(), "clone")
	if err := runGit(filepath.Dir(dir), "clone", remote, dir); err != nil {
		t.Fatalf("failed to clone %s: %v", remote, err)
	}
	if err := runGit(dir, "config", "user.email", "test@subforge.dev"); err != nil {
		t.Fatalf("failed to configure git email: %v", err)
	}
	if err := runGit(dir, "config", "user.name", "Subforge Test"); err != nil {
		t.Fatalf("failed to configure git name: %v", err)
	}
	return dir
}

// AllowFileProtocol lets git subprocesses in this test clone local paths
// as submodules (git 2.38.1+ blocks the file transport by default).
func AllowFileProtocol(t *testing.T) {
	t.Helper()

	t.Setenv("GIT_CONFIG_COUNT", "1")
	t.Setenv("GIT_CONFIG_KEY_0", "protocol.file.allow")
	t.Setenv("GIT_CONFIG_VALUE_0", "always")
}

// CommitFile creates or updates a file and commits it.
func CommitFile(t *testing.T, repoDir, path, content, message string) {
	t.Helper()

	WriteFile(t, repoDir, path, content)
	if err := runGit(repoDir, "add", path); err != nil {
		t.Fatalf("failed to stage file %s: %v", path, err)
	}
	if err := runGit(repoDir, "commit", "-m", message); err != nil {
		t.Fatalf("failed to commit file %s: %v", path, err)
	}
}

// WriteFile writes a file without staging it.
func WriteFile(t *testing.T, repoDir, path, content string) {
	t.Helper()

	fullPath := filepath.Join(repoDir, path)
	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}

// Git runs a git command in dir, fails the test on error, and returns the
// trimmed output.
func Git(t *testing.T, dir string, args ...string) string {
	t.Helper()

	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = gitEnv()
	output, err := cmd.CombinedOutput()
	if err != nil {
		t.Fatalf("git %s: %v\n%s", strings.Join(args, " "), err, output)
	}
	return strings.TrimSpace(string(output))
}

// GetCurrentBranch returns the current branch name.
func GetCurrentBranch(t *testing.T, repoDir string) string {
	t.Helper()
	return Git(t, repoDir, "rev-parse", "--abbrev-ref", "HEAD")
}

// HeadCommit returns the SHA of HEAD.
func HeadCommit(t *testing.T, repoDir string) string {
	t.Helper()
	return Git(t, repoDir, "rev-parse", "HEAD")
}

// HasUncommittedChanges returns true if the repository has uncommitted changes.
func HasUncommittedChanges(t *testing.T, repoDir string) bool {
	t.Helper()
	return Git(t, repoDir, "status", "--porcelain") != ""
}

// SkipIfNoGit skips the test if git is not installed.
func SkipIfNoGit(t *testing.T) {
	t.Helper()

	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not found in PATH, skipping test")
	}
}

func gitEnv() []string {
	return append(os.Environ(),
		"GIT_AUTHOR_NAME=Subforge Test",
		"GIT_AUTHOR_EMAIL=test@subforge.dev",
		"GIT_COMMITTER_NAME=Subforge Test",
		"GIT_COMMITTER_EMAIL=test@subforge.dev",
	)
}

// runGit runs a git command in the specified directory.
func runGit(dir string, args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = gitEnv()
	output, err := cmd.CombinedOutput()
	if err != nil {
		return &gitError{args: args, output: output, err: err}
	}
	return nil
}

type gitError struct {
	args   []string
	output []byte
	err    error
}

func (e *gitError) Error() string {
	return "git " + strings.Join(e.args, " ") + ": " + e.err.Error() + "\n" + string(e.output)
}

func (e *gitError) Unwrap() error {
	return e.err
}
