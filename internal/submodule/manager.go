// Package submodule manages the lifecycle of the workspace's registered
// submodules: listing them with their state, bringing them up to date with
// their upstreams, and removing them completely.
//
// Every operation runs strictly sequentially and passes each git command
// the directory it operates on.
package submodule

import (
	"context"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/logging"
	"github.com/Iron-Ham/subforge/internal/vcs"
	"github.com/Iron-Ham/subforge/internal/workspace"
)

// Record is one row of the submodule listing.
type Record struct {
	Name   string
	Path   string
	Commit string // abbreviated
	Branch string // "" when detached or unknown
	URL    string
	State  vcs.SubmoduleState
}

// Manager runs submodule lifecycle operations on one workspace.
type Manager struct {
	git    vcs.Client
	ws     *workspace.Workspace
	logger *logging.Logger
}

// NewManager creates a Manager for ws.
func NewManager(git vcs.Client, ws *workspace.Workspace, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{git: git, ws: ws, logger: logger}
}

// Workspace returns the workspace the manager operates on.
func (m *Manager) Workspace() *workspace.Workspace {
	return m.ws
}

// List returns every submodule reported by `git submodule status`, joined
// with its .gitmodules entry.
func (m *Manager) List(ctx context.Context) ([]Record, error) {
	statuses, err := m.git.SubmoduleStatus(ctx, m.ws.Root)
	if err != nil {
		return nil, err
	}
	declared, err := m.git.Submodules(ctx, m.ws.Root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read .gitmodules")
	}
	byPath := make(map[string]vcs.SubmoduleInfo, len(declared))
	for _, info := range declared {
		byPath[info.Path] = info
	}

	records := make([]Record, 0, len(statuses))
	for _, st := range statuses {
		info := byPath[st.Path]
		rec := Record{
			Name:   info.Name,
			Path:   st.Path,
			Commit: shortSHA(st.Commit),
			URL:    info.URL,
			State:  st.State,
			Branch: branchFromDescribe(st.Describe),
		}
		if rec.Name == "" {
			rec.Name = st.Path
		}
		// Only a checked-out submodule has a branch to ask about.
		if st.State != vcs.SubmoduleNotInitialized && vcs.IsSubmoduleDir(m.ws.Abs(st.Path)) {
			if branch, err := m.git.CurrentBranch(ctx, m.ws.Abs(st.Path)); err == nil && branch != "" {
				rec.Branch = branch
			}
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Path < records[j].Path })
	return records, nil
}

// Resolve maps a user-supplied target to a registered submodule path.
// Accepted forms, in order: the exact path or name, a path inside a
// submodule, or a trailing path segment ("api" for "services/api").
// A trailing match shared by several submodules is ambiguous.
func (m *Manager) Resolve(ctx context.Context, target string) (string, error) {
	info, err := m.resolve(ctx, target)
	if err != nil {
		return "", err
	}
	return info.Path, nil
}

func (m *Manager) resolve(ctx context.Context, target string) (vcs.SubmoduleInfo, error) {
	declared, err := m.git.Submodules(ctx, m.ws.Root)
	if err != nil {
		return vcs.SubmoduleInfo{}, errors.Wrap(err, "failed to read .gitmodules")
	}

	want := normalizeTarget(m.ws, target)
	if want == "" {
		return vcs.SubmoduleInfo{}, errors.Wrap(errors.ErrInvalidInput, "no submodule given")
	}

	for _, info := range declared {
		if info.Path == want || info.Name == want {
			return info, nil
		}
	}
	for _, info := range declared {
		if strings.HasPrefix(want, info.Path+"/") {
			return info, nil
		}
	}

	var matches []vcs.SubmoduleInfo
	for _, info := range declared {
		if strings.HasSuffix(info.Path, "/"+want) {
			matches = append(matches, info)
		}
	}
	switch len(matches) {
	case 0:
		return vcs.SubmoduleInfo{}, errors.NewSubmoduleError("no registered submodule matches "+target, errors.ErrSubmoduleNotFound).
			WithPath(target)
	case 1:
		return matches[0], nil
	}
	paths := make([]string, len(matches))
	for i, info := range matches {
		paths[i] = info.Path
	}
	return vcs.SubmoduleInfo{}, errors.NewSubmoduleError(
		target+" matches "+strings.Join(paths, ", "), errors.ErrAmbiguousSubmodule).WithPath(target)
}

// normalizeTarget converts target to a slash-separated path relative to
// the workspace root. Absolute paths outside the workspace are returned
// unchanged so that they match nothing.
func normalizeTarget(ws *workspace.Workspace, target string) string {
	target = strings.TrimSpace(target)
	if target == "" {
		return ""
	}
	if filepath.IsAbs(target) {
		rel, err := ws.Rel(target)
		if err != nil {
			return filepath.ToSlash(target)
		}
		target = rel
	}
	cleaned := path.Clean(filepath.ToSlash(target))
	if cleaned == "." {
		return ""
	}
	return strings.TrimPrefix(cleaned, "./")
}

func branchFromDescribe(describe string) string {
	if b, ok := strings.CutPrefix(describe, "heads/"); ok {
		return b
	}
	return ""
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
