package vcs

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitconfig "github.com/go-git/go-git/v5/config"

	"github.com/Iron-Ham/subforge/internal/errors"
)

// SubmoduleInfo is one submodule declared in .gitmodules.
type SubmoduleInfo struct {
	Name   string // The submodule name from .gitmodules
	Path   string // The relative path to the submodule
	URL    string // The submodule URL
	Branch string // Branch to track (empty if not specified)
}

// SubmoduleState is the prefix character of a `git submodule status` line.
type SubmoduleState int

const (
	// SubmoduleUpToDate indicates the submodule is at the recorded commit.
	SubmoduleUpToDate SubmoduleState = iota
	// SubmoduleNotInitialized indicates the submodule needs to be initialized.
	SubmoduleNotInitialized
	// SubmoduleDifferentCommit indicates the submodule is at a different commit.
	SubmoduleDifferentCommit
	// SubmoduleMergeConflict indicates the submodule has merge conflicts.
	SubmoduleMergeConflict
)

func (s SubmoduleState) String() string {
	switch s {
	case SubmoduleUpToDate:
		return "up-to-date"
	case SubmoduleNotInitialized:
		return "not-initialized"
	case SubmoduleDifferentCommit:
		return "different-commit"
	case SubmoduleMergeConflict:
		return "merge-conflict"
	default:
		return "unknown"
	}
}

// SubmoduleStatusInfo is one parsed `git submodule status` line.
type SubmoduleStatusInfo struct {
	Path     string         // Path relative to the parent root
	Commit   string         // Checked-out (or recorded) commit SHA
	Describe string         // The parenthesized describe suffix, e.g. "heads/main"
	State    SubmoduleState // Status prefix
}

// fileProtocol lets submodule clones read local file:// and path URLs,
// which git 2.38.1+ refuses by default.
var fileProtocol = []string{"-c", "protocol.file.allow=always"}

// AddSubmodule registers url at relPath through `git submodule add`.
func (g *CLIClient) AddSubmodule(ctx context.Context, workspace, url, relPath string) error {
	_, err := g.git(ctx, workspace, "failed to add submodule", "submodule", "add", "--", url, relPath)
	return err
}

// AddSubmoduleRaw is the fallback registration form. It allows the file
// transport and forces the add past a stale index entry or ignored path.
func (g *CLIClient) AddSubmoduleRaw(ctx context.Context, workspace, url, relPath string) error {
	args := append(append([]string{}, fileProtocol...), "submodule", "add", "--force", "--", url, relPath)
	_, err := g.git(ctx, workspace, "failed to add submodule (raw)", args...)
	return err
}

// SubmoduleInit initializes and checks out the submodule at relPath.
func (g *CLIClient) SubmoduleInit(ctx context.Context, workspace, relPath string) error {
	args := append(append([]string{}, fileProtocol...), "submodule", "update", "--init", "--", relPath)
	_, err := g.git(ctx, workspace, "failed to initialize submodule", args...)
	return err
}

// SubmoduleStatus returns the parsed `git submodule status` of workspace.
// Lines that cannot be parsed are skipped.
func (g *CLIClient) SubmoduleStatus(ctx context.Context, workspace string) ([]SubmoduleStatusInfo, error) {
	out, err := g.git(ctx, workspace, "failed to read submodule status", "submodule", "status")
	if err != nil {
		return nil, err
	}
	return ParseSubmoduleStatus(out), nil
}

// Submodules reads .gitmodules in workspace. A missing file means no
// submodules.
func (g *CLIClient) Submodules(_ context.Context, workspace string) ([]SubmoduleInfo, error) {
	data, err := os.ReadFile(filepath.Join(workspace, ".gitmodules"))
	if err != nil {
		if os.IsNotExist(err) {
			return []SubmoduleInfo{}, nil
		}
		return nil, err
	}
	return ParseGitmodules(data)
}

// DeinitSubmodule unregisters the submodule and empties its working tree.
func (g *CLIClient) DeinitSubmodule(ctx context.Context, workspace, relPath string) error {
	_, err := g.git(ctx, workspace, "failed to deinit submodule", "submodule", "deinit", "-f", "--", relPath)
	return err
}

// RemoveFromIndex drops the submodule gitlink from the index.
func (g *CLIClient) RemoveFromIndex(ctx context.Context, workspace, relPath string) error {
	_, err := g.git(ctx, workspace, "failed to remove submodule from index", "rm", "--cached", "-r", "-q", "--", relPath)
	return err
}

// RemoveGitmodulesEntry deletes the submodule's section from .gitmodules
// and stages the file.
func (g *CLIClient) RemoveGitmodulesEntry(ctx context.Context, workspace, name string) error {
	if _, err := g.git(ctx, workspace, "failed to update .gitmodules",
		"config", "-f", ".gitmodules", "--remove-section", "submodule."+name); err != nil {
		return err
	}
	return g.Stage(ctx, workspace, ".gitmodules")
}

// PurgeInternalStorage removes the submodule's repository from the
// parent's git directory.
func (g *CLIClient) PurgeInternalStorage(ctx context.Context, workspace, name string) error {
	gitDir, err := g.GitDir(ctx, workspace)
	if err != nil {
		return err
	}
	modules := filepath.Join(gitDir, "modules")
	target := filepath.Join(modules, filepath.FromSlash(name))
	if !strings.HasPrefix(target, modules+string(filepath.Separator)) {
		return errors.NewGitError("refusing to purge outside .git/modules", errors.ErrInvalidInput).
			WithRepository(workspace)
	}
	if err := os.RemoveAll(target); err != nil {
		return errors.NewGitError("failed to purge submodule storage", err).WithRepository(workspace)
	}
	return nil
}

// ParseGitmodules parses .gitmodules content. Entries are sorted by path.
func ParseGitmodules(data []byte) ([]SubmoduleInfo, error) {
	modules := gitconfig.NewModules()
	if err := modules.Unmarshal(data); err != nil {
		return nil, err
	}

	submodules := make([]SubmoduleInfo, 0, len(modules.Submodules))
	for name, sm := range modules.Submodules {
		if sm.Path == "" {
			continue
		}
		submodules = append(submodules, SubmoduleInfo{
			Name:   name,
			Path:   filepath.ToSlash(sm.Path),
			URL:    sm.URL,
			Branch: sm.Branch,
		})
	}
	sort.Slice(submodules, func(i, j int) bool {
		return submodules[i].Path < submodules[j].Path
	})
	return submodules, nil
}

// ParseSubmoduleStatus parses the output of `git submodule status`.
// Format: "<state><sha> <path>[ (<describe>)]" where state is one of
// ' ', '-', '+', 'U'.
func ParseSubmoduleStatus(output string) []SubmoduleStatusInfo {
	var submodules []SubmoduleStatusInfo

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, " \r")
		if len(line) < 2 {
			continue
		}

		var state SubmoduleState
		switch line[0] {
		case ' ':
			state = SubmoduleUpToDate
		case '-':
			state = SubmoduleNotInitialized
		case '+':
			state = SubmoduleDifferentCommit
		case 'U':
			state = SubmoduleMergeConflict
		default:
			continue
		}

		sha, rest, ok := strings.Cut(line[1:], " ")
		if !ok || !isHex(sha) {
			continue
		}

		path, describe := rest, ""
		if strings.HasSuffix(rest, ")") {
			if i := strings.LastIndex(rest, " ("); i >= 0 {
				path, describe = rest[:i], rest[i+2:len(rest)-1]
			}
		}
		if path = strings.TrimSpace(path); path == "" {
			continue
		}

		submodules = append(submodules, SubmoduleStatusInfo{
			Path:     path,
			Commit:   sha,
			Describe: describe,
			State:    state,
		})
	}

	return submodules
}

func isHex(s string) bool {
	if len(s) < 7 {
		return false
	}
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdef", c) {
			return false
		}
	}
	return true
}

// IsSubmoduleDir checks if a directory is a linked repository by looking for
// a .git file (not directory) that contains a gitdir pointer.
//
// This function is safe to call on any path - it returns false if the
// path doesn't exist, can't be accessed, or isn't a submodule.
func IsSubmoduleDir(path string) bool {
	_, err := ReadGitdirPointer(path)
	return err == nil
}

// ReadGitdirPointer resolves the `gitdir: <path>` pointer in dir/.git.
// Relative pointers are resolved against dir. It fails if .git is a
// directory or the file carries no pointer.
func ReadGitdirPointer(dir string) (string, error) {
	gitPath := filepath.Join(dir, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", errors.NewGitError(".git is not a pointer file", errors.ErrInvalidInput).WithRepository(dir)
	}

	content, err := os.ReadFile(gitPath)
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(string(content))
	if !strings.HasPrefix(text, "gitdir:") {
		return "", errors.NewGitError(".git file has no gitdir pointer", errors.ErrInvalidInput).WithRepository(dir)
	}

	target := strings.TrimSpace(strings.TrimPrefix(text, "gitdir:"))
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	return filepath.Clean(target), nil
}
