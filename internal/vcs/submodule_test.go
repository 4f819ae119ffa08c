package vcs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/subforge/internal/testutil"
)

func TestParseSubmoduleStatus(t *testing.T) {
	output := " 1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b apps/web (heads/main)\n" +
		"-0123456789abcdef0123456789abcdef01234567 libs/core\n" +
		"+fedcba9876543210fedcba9876543210fedcba98 libs/my lib (v1.2.0-3-gfedcba9)\n" +
		"U0000000000000000000000000000000000000000 libs/broken\n" +
		"garbage line\n" +
		" nothex apps/bad\n" +
		"\n"

	want := []SubmoduleStatusInfo{
		{Path: "apps/web", Commit: "1a2b3c4d5e6f7a8b9c0d1e2f3a4b5c6d7e8f9a0b", Describe: "heads/main", State: SubmoduleUpToDate},
		{Path: "libs/core", Commit: "0123456789abcdef0123456789abcdef01234567", State: SubmoduleNotInitialized},
		{Path: "libs/my lib", Commit: "fedcba9876543210fedcba9876543210fedcba98", Describe: "v1.2.0-3-gfedcba9", State: SubmoduleDifferentCommit},
		{Path: "libs/broken", Commit: "0000000000000000000000000000000000000000", State: SubmoduleMergeConflict},
	}

	if diff := cmp.Diff(want, ParseSubmoduleStatus(output)); diff != "" {
		t.Errorf("ParseSubmoduleStatus() mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmoduleState_String(t *testing.T) {
	tests := []struct {
		state SubmoduleState
		want  string
	}{
		{SubmoduleUpToDate, "up-to-date"},
		{SubmoduleNotInitialized, "not-initialized"},
		{SubmoduleDifferentCommit, "different-commit"},
		{SubmoduleMergeConflict, "merge-conflict"},
		{SubmoduleState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestParseGitmodules(t *testing.T) {
	data := []byte(`[submodule "libs/core"]
	path = libs/core
	url = git@github.com:acme/core.git
	branch = develop
[submodule "apps/web"]
	path = apps/web
	url = https://github.com/alice/web.git
`)

	got, err := ParseGitmodules(data)
	if err != nil {
		t.Fatalf("ParseGitmodules() error = %v", err)
	}
	want := []SubmoduleInfo{
		{Name: "apps/web", Path: "apps/web", URL: "https://github.com/alice/web.git"},
		{Name: "libs/core", Path: "libs/core", URL: "git@github.com:acme/core.git", Branch: "develop"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ParseGitmodules() mismatch (-want +got):\n%s", diff)
	}
}

func TestReadGitdirPointer(t *testing.T) {
	t.Run("relative pointer", func(t *testing.T) {
		dir := t.TempDir()
		sub := filepath.Join(dir, "libs", "core")
		if err := os.MkdirAll(sub, 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(sub, ".git"), []byte("gitdir: ../../.git/modules/libs/core\n"), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := ReadGitdirPointer(sub)
		if err != nil {
			t.Fatalf("ReadGitdirPointer() error = %v", err)
		}
		want := filepath.Join(dir, ".git", "modules", "libs", "core")
		if got != want {
			t.Errorf("ReadGitdirPointer() = %q, want %q", got, want)
		}
		if !IsSubmoduleDir(sub) {
			t.Error("IsSubmoduleDir() = false, want true")
		}
	})

	t.Run("regular repository", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.Mkdir(filepath.Join(dir, ".git"), 0755); err != nil {
			t.Fatal(err)
		}
		if _, err := ReadGitdirPointer(dir); err == nil {
			t.Error("expected error for .git directory")
		}
		if IsSubmoduleDir(dir) {
			t.Error("IsSubmoduleDir() = true, want false")
		}
	})

	t.Run("missing", func(t *testing.T) {
		if IsSubmoduleDir(filepath.Join(t.TempDir(), "nope")) {
			t.Error("IsSubmoduleDir() = true for missing path")
		}
	})
}

func TestCLIClient_SubmoduleLifecycle(t *testing.T) {
	testutil.SkipIfNoGit(t)
	ctx := context.Background()
	client := NewCLIClient(nil)

	ws := testutil.SetupWorkspace(t)
	_, remote := testutil.SetupTestRepoWithRemote(t)
	testutil.AllowFileProtocol(t)

	if err := client.AddSubmodule(ctx, ws, remote, "libs/core"); err != nil {
		t.Fatalf("AddSubmodule() error = %v", err)
	}
	if err := client.Commit(ctx, ws, "Add libs/core submodule"); err != nil {
		t.Fatal(err)
	}

	status, err := client.SubmoduleStatus(ctx, ws)
	if err != nil {
		t.Fatalf("SubmoduleStatus() error = %v", err)
	}
	if len(status) != 1 || status[0].Path != "libs/core" || status[0].State != SubmoduleUpToDate {
		t.Fatalf("SubmoduleStatus() = %+v", status)
	}

	modules, err := client.Submodules(ctx, ws)
	if err != nil {
		t.Fatal(err)
	}
	if len(modules) != 1 || modules[0].URL != remote {
		t.Fatalf("Submodules() = %+v", modules)
	}

	name := modules[0].Name
	steps := []func() error{
		func() error { return client.DeinitSubmodule(ctx, ws, "libs/core") },
		func() error { return client.RemoveFromIndex(ctx, ws, "libs/core") },
		func() error { return client.RemoveGitmodulesEntry(ctx, ws, name) },
		func() error { return client.PurgeInternalStorage(ctx, ws, name) },
		func() error { return client.Commit(ctx, ws, "Remove libs/core submodule") },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("removal step %d error = %v", i, err)
		}
	}

	status, err = client.SubmoduleStatus(ctx, ws)
	if err != nil {
		t.Fatal(err)
	}
	if len(status) != 0 {
		t.Errorf("SubmoduleStatus() after removal = %+v", status)
	}
	if _, err := os.Stat(filepath.Join(ws, ".git", "modules", "libs", "core")); !os.IsNotExist(err) {
		t.Errorf("internal storage still present: %v", err)
	}
}

func TestCLIClient_PurgeInternalStorage_RejectsEscape(t *testing.T) {
	testutil.SkipIfNoGit(t)

	ws := testutil.SetupTestRepo(t)
	if err := NewCLIClient(nil).PurgeInternalStorage(context.Background(), ws, "../../etc"); err == nil {
		t.Error("PurgeInternalStorage() with escaping name should fail")
	}
}
