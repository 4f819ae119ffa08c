package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/testutil"
	"github.com/Iron-Ham/subforge/internal/vcs"
)

func TestLocate_SameRootFromEverywhere(t *testing.T) {
	testutil.SkipIfNoGit(t)

	root := testutil.SetupWorkspace(t)
	testutil.AddSubmodule(t, root, "libs/core")
	if err := os.MkdirAll(filepath.Join(root, "libs", "core", "pkg", "deep"), 0755); err != nil {
		t.Fatal(err)
	}

	locator := NewLocator(vcs.NewCLIClient(nil), "")

	starts := map[string]string{
		"workspace root":         root,
		"workspace subdirectory": filepath.Join(root, testutil.DefaultMarker),
		"submodule root":         filepath.Join(root, "libs", "core"),
		"submodule subdirectory": filepath.Join(root, "libs", "core", "pkg", "deep"),
	}
	for name, start := range starts {
		t.Run(name, func(t *testing.T) {
			ws, err := locator.Locate(context.Background(), start)
			if err != nil {
				t.Fatalf("Locate(%s) error = %v", start, err)
			}
			if ws.Root != root {
				t.Errorf("Locate(%s).Root = %q, want %q", start, ws.Root, root)
			}
			if ws.Marker != DefaultMarker {
				t.Errorf("Marker = %q, want %q", ws.Marker, DefaultMarker)
			}
		})
	}
}

func TestLocate_NotAWorkspace(t *testing.T) {
	testutil.SkipIfNoGit(t)

	t.Run("repository without marker", func(t *testing.T) {
		repo := testutil.SetupTestRepo(t)

		_, err := NewLocator(vcs.NewCLIClient(nil), "").Locate(context.Background(), repo)
		if !errors.Is(err, errors.ErrNotAWorkspace) {
			t.Fatalf("Locate() error = %v, want ErrNotAWorkspace", err)
		}
		var wsErr *errors.WorkspaceError
		if !errors.As(err, &wsErr) {
			t.Fatalf("error type = %T, want *errors.WorkspaceError", err)
		}
		if diff := cmp.Diff([]string{repo}, wsErr.Candidates); diff != "" {
			t.Errorf("Candidates mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("outside any repository", func(t *testing.T) {
		_, err := NewLocator(vcs.NewCLIClient(nil), "").Locate(context.Background(), t.TempDir())
		if !errors.Is(err, errors.ErrNotAWorkspace) {
			t.Fatalf("Locate() error = %v, want ErrNotAWorkspace", err)
		}
	})

	t.Run("custom marker", func(t *testing.T) {
		root := testutil.SetupWorkspace(t)
		_, err := NewLocator(vcs.NewCLIClient(nil), ".other").Locate(context.Background(), root)
		if errors.Kind(err) != "not-a-workspace" {
			t.Errorf("Kind() = %q, want not-a-workspace", errors.Kind(err))
		}
	})
}

func TestCandidates(t *testing.T) {
	root := t.TempDir()
	write := func(dir, content string) {
		t.Helper()
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(dir, ".git"), []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}

	plain := filepath.Join(root, "plain")
	if err := os.MkdirAll(filepath.Join(plain, ".git"), 0755); err != nil {
		t.Fatal(err)
	}

	sub := filepath.Join(root, "libs", "core")
	write(sub, "gitdir: ../../.git/modules/libs/core\n")

	nested := filepath.Join(root, "libs", "core", "vendor", "x")
	write(nested, "gitdir: "+filepath.Join(root, ".git", "modules", "libs", "core", "modules", "vendor", "x")+"\n")

	worktree := filepath.Join(root, "wt")
	write(worktree, "gitdir: "+filepath.Join(root, ".git", "worktrees", "wt")+"\n")

	tests := []struct {
		name string
		top  string
		want []string
	}{
		{"plain repository", plain, []string{plain}},
		{"submodule", sub, []string{root, sub}},
		{"nested submodule resolves outermost", nested, []string{root, nested}},
		{"linked worktree", worktree, []string{worktree}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Candidates(tt.top)); diff != "" {
				t.Errorf("Candidates() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWorkspace_RelAbs(t *testing.T) {
	ws := &Workspace{Root: filepath.FromSlash("/ws")}

	if got := ws.Abs("apps/web"); got != filepath.FromSlash("/ws/apps/web") {
		t.Errorf("Abs() = %q", got)
	}

	rel, err := ws.Rel(filepath.FromSlash("/ws/libs/core"))
	if err != nil || rel != "libs/core" {
		t.Errorf("Rel() = %q, %v", rel, err)
	}

	rel, err = ws.Rel("libs/core")
	if err != nil || rel != "libs/core" {
		t.Errorf("Rel(relative) = %q, %v", rel, err)
	}

	if _, err := ws.Rel(filepath.FromSlash("/elsewhere/x")); !errors.Is(err, errors.ErrInvalidInput) {
		t.Errorf("Rel(outside) error = %v, want ErrInvalidInput", err)
	}
}
