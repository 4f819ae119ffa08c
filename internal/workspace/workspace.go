// Package workspace locates the managed workspace root. A workspace is a git
// repository whose root carries a marker directory; locating it works the
// same from the root itself and from inside any of its submodules.
package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/vcs"
)

// DefaultMarker is the marker directory that identifies a workspace root.
const DefaultMarker = ".subforge"

// modulesSegment separates a parent repository's root from the storage of
// one of its submodules in a gitdir pointer.
var modulesSegment = string(filepath.Separator) + filepath.Join(".git", "modules") + string(filepath.Separator)

// Workspace is a validated workspace root. It is resolved once per
// invocation and never changes afterwards.
type Workspace struct {
	Root   string
	Marker string
}

// Abs returns the absolute path of a slash-separated path relative to the root.
func (w *Workspace) Abs(rel string) string {
	return filepath.Join(w.Root, filepath.FromSlash(rel))
}

// Rel returns path relative to the root in slash form. It fails when path
// lies outside the workspace.
func (w *Workspace) Rel(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(w.Root, path)
	}
	rel, err := filepath.Rel(w.Root, path)
	if err != nil {
		return "", err
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", errors.Wrapf(errors.ErrInvalidInput, "%s is outside the workspace %s", path, w.Root)
	}
	return filepath.ToSlash(rel), nil
}

// Locator finds the workspace enclosing a directory.
type Locator struct {
	git    vcs.RepoOperations
	marker string
}

// NewLocator creates a Locator. An empty marker means DefaultMarker.
func NewLocator(git vcs.RepoOperations, marker string) *Locator {
	if marker == "" {
		marker = DefaultMarker
	}
	return &Locator{git: git, marker: marker}
}

// Locate returns the workspace enclosing startDir.
//
// The enclosing repository's top level is a candidate. If that repository
// is a submodule (its .git is a gitdir pointer), the parent repositories
// named by the pointer are candidates as well, outermost first. The first
// candidate carrying the marker directory wins.
func (l *Locator) Locate(ctx context.Context, startDir string) (*Workspace, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return nil, errors.NewWorkspaceError("invalid start directory", err).WithStartDir(startDir)
	}

	top, err := l.git.TopLevel(ctx, abs)
	if err != nil {
		return nil, errors.NewWorkspaceError("not inside a git repository", errors.Join(errors.ErrNotAWorkspace, err)).
			WithStartDir(abs).
			WithMarker(l.marker)
	}

	candidates := Candidates(top)
	for _, candidate := range candidates {
		if hasMarker(candidate, l.marker) {
			return &Workspace{Root: candidate, Marker: l.marker}, nil
		}
	}

	return nil, errors.NewWorkspaceError("no workspace marker found", errors.ErrNotAWorkspace).
		WithStartDir(abs).
		WithMarker(l.marker).
		WithCandidates(candidates)
}

// Candidates returns the directories that may be the workspace root for a
// repository whose top level is top, outermost first. A plain repository
// yields only top.
func Candidates(top string) []string {
	top = filepath.Clean(top)
	pointer, err := vcs.ReadGitdirPointer(top)
	if err != nil {
		return []string{top}
	}

	// Pointers look like <root>/.git/modules/<name>, or
	// <root>/.git/modules/a/modules/b for nested submodules. The first
	// /.git/modules/ boundary always names the outermost working tree.
	idx := strings.Index(pointer, modulesSegment)
	if idx <= 0 {
		return []string{top}
	}
	parent := pointer[:idx]
	if parent == top {
		return []string{top}
	}
	return []string{parent, top}
}

func hasMarker(dir, marker string) bool {
	info, err := os.Stat(filepath.Join(dir, marker))
	return err == nil && info.IsDir()
}
