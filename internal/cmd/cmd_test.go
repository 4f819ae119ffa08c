package cmd

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/adrg/xdg"
	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/subforge/internal/config"
	sferrors "github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/provision"
	"github.com/Iron-Ham/subforge/internal/remote"
	"github.com/Iron-Ham/subforge/internal/submodule"
	"github.com/Iron-Ham/subforge/internal/testutil"
	"github.com/Iron-Ham/subforge/internal/ui"
)

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.ExecuteContext(context.Background())
	return buf.String(), err
}

// isolateUserDirs points config and state at temp dirs so tests never read
// the developer's configuration or keyring fallback file.
func isolateUserDirs(t *testing.T) {
	t.Helper()
	t.Cleanup(xdg.Reload)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("XDG_STATE_HOME", t.TempDir())
	t.Setenv("GITHUB_TOKEN", "")
	xdg.Reload()
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "subforge" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "subforge")
	}

	expectedCmds := []string{"create", "fork", "clone", "submodule", "update", "doctor", "auth", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}
	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}

	for _, flag := range []string{"config", "dir"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag --%s", flag)
		}
	}
}

func TestCheckGitVersion(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"2.43.0", false},
		{"2.39.3.windows.1", false},
		{"2.20.0", false},
		{"2.20", false},
		{"2.19.6", true},
		{"1.8.3.1", true},
		{"unknown", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			err := checkGitVersion(tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("checkGitVersion(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestRunChecks_PreservesOrder(t *testing.T) {
	boom := errors.New("boom")
	checks := []doctorCheck{
		{"first", func(context.Context) (string, error) { return "one", nil }},
		{"second", func(context.Context) (string, error) { return "", boom }},
		{"third", func(context.Context) (string, error) { return "three", nil }},
	}

	results := runChecks(context.Background(), checks)

	var names []string
	for _, r := range results {
		names = append(names, r.name)
	}
	if diff := cmp.Diff([]string{"first", "second", "third"}, names); diff != "" {
		t.Errorf("result order mismatch (-want +got):\n%s", diff)
	}
	if !errors.Is(results[1].err, boom) {
		t.Errorf("second result error = %v, want boom", results[1].err)
	}
	if results[2].detail != "three" {
		t.Errorf("third detail = %q, want three", results[2].detail)
	}
}

// fakePrompter records the prompts it was asked.
type fakePrompter struct {
	interactive bool
	answer      bool
	asked       []string
}

func (f *fakePrompter) Interactive() bool { return f.interactive }

func (f *fakePrompter) Confirm(_ context.Context, title string) (bool, error) {
	f.asked = append(f.asked, title)
	return f.answer, nil
}

func TestRemoveConfirmer(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name        string
		interactive bool
		yes         bool
		deleteDir   bool
		question    submodule.Question
		want        bool
		wantErr     error
		wantAsked   bool
	}{
		{name: "yes skips removal prompt", yes: true, question: submodule.QuestionRemove, want: true},
		{name: "no terminal requires yes", question: submodule.QuestionRemove, wantErr: sferrors.ErrInvalidInput},
		{name: "terminal asks removal", interactive: true, question: submodule.QuestionRemove, want: true, wantAsked: true},
		{name: "delete-dir skips directory prompt", deleteDir: true, question: submodule.QuestionDeleteDirectory, want: true},
		{name: "no terminal keeps directory", question: submodule.QuestionDeleteDirectory, want: false},
		{name: "yes does not imply delete", interactive: true, yes: true, question: submodule.QuestionDeleteDirectory, want: true, wantAsked: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &fakePrompter{interactive: tt.interactive, answer: true}
			got, err := removeConfirmer(p, tt.yes, tt.deleteDir).Confirm(ctx, tt.question, "Proceed?")
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Confirm() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Confirm() unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("Confirm() = %v, want %v", got, tt.want)
			}
			if asked := len(p.asked) > 0; asked != tt.wantAsked {
				t.Errorf("prompted = %v, want %v", asked, tt.wantAsked)
			}
		})
	}
}

func TestCreateConfig(t *testing.T) {
	reset := func() {
		createDescription, createOwner, createType, createTemplate = "", "", "", ""
		createPersonal, createNoRemote, createPublic = false, false, false
	}
	t.Cleanup(reset)

	cfg := config.Default()
	cfg.GitHub.Organization = "acme"
	cfg.Create.TemplateDir = "/templates/go"
	a := &app{cfg: cfg}

	tests := []struct {
		name  string
		setup func()
		want  provision.Config
	}{
		{
			name:  "configuration defaults",
			setup: func() {},
			want: provision.Config{
				Name: "demo", Owner: "acme", PreferOrg: true, CreateRemote: true,
				Private: true, TemplateDir: "/templates/go",
			},
		},
		{
			name: "flags override",
			setup: func() {
				createOwner = "other"
				createType = "libs"
				createTemplate = "/tmp/tpl"
				createPublic = true
				createDescription = "A demo"
			},
			want: provision.Config{
				Name: "demo", Description: "A demo", Owner: "other", PreferOrg: true,
				CreateRemote: true, Category: "libs", TemplateDir: "/tmp/tpl",
			},
		},
		{
			name: "personal clears owner",
			setup: func() {
				createPersonal = true
				createNoRemote = true
			},
			want: provision.Config{
				Name: "demo", Private: true, TemplateDir: "/templates/go",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reset()
			tt.setup()
			if diff := cmp.Diff(tt.want, createConfig(a, "demo")); diff != "" {
				t.Errorf("createConfig() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPrintReport(t *testing.T) {
	report := &provision.Report{
		State: provision.State{
			RelPath:    "apps/demo",
			LocalPath:  "/ws/apps/demo",
			Repository: &remote.Repository{Owner: "me", Name: "demo", HTMLURL: "https://github.com/me/demo"},
			Notices: []error{
				sferrors.NewWarning("create remote", sferrors.ErrRemoteFallback).WithSeverity(sferrors.SeverityInfo),
			},
			Warnings: []error{
				sferrors.NewWarning("push", sferrors.ErrPushFailed).WithRemediation("cd apps/demo", "git push -u origin main"),
			},
		},
		Completed: []string{"locate workspace", "create remote"},
	}

	var buf bytes.Buffer
	printReport(ui.NewPlainPrinter(&buf), report)

	want := "✓ locate workspace\n" +
		"✓ create remote\n" +
		"• warning [create remote]: fell back to personal account\n" +
		"! warning [push]: push failed\n" +
		"  To finish manually:\n" +
		"    cd apps/demo\n" +
		"    git push -u origin main\n" +
		"• repository: https://github.com/me/demo\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("printReport() mismatch (-want +got):\n%s", diff)
	}
	if report.ExitErr() == nil {
		t.Error("a report with warnings must exit non-zero")
	}
}

func TestPrintReport_Registered(t *testing.T) {
	report := &provision.Report{
		State: provision.State{
			RelPath:  "apps/demo",
			Register: &provision.RegisterOutcome{Registered: true, Path: "apps/demo"},
		},
		Completed: []string{"register submodule"},
	}

	var buf bytes.Buffer
	printReport(ui.NewPlainPrinter(&buf), report)

	want := "✓ register submodule\n• submodule: apps/demo\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("printReport() mismatch (-want +got):\n%s", diff)
	}
}

func TestPrintUpdateReport(t *testing.T) {
	report := &submodule.UpdateReport{Outcomes: []submodule.UpdateOutcome{
		{Path: "apps/api", Status: submodule.StatusUpdated, Branch: "main", PreviousCommit: "abc1234", NewCommit: "def5678"},
		{Path: "apps/web", Status: submodule.StatusUnchanged, Branch: "main", NewCommit: "1111111"},
		{Path: "libs/core", Status: submodule.StatusSkippedConflict, Reason: "uncommitted changes", Remediation: []string{"cd libs/core", "git stash"}},
	}}

	var buf bytes.Buffer
	printUpdateReport(ui.NewPlainPrinter(&buf), report)

	want := "✓ apps/api: main abc1234..def5678\n" +
		"• apps/web: main already up to date (1111111)\n" +
		"! libs/core: skipped, uncommitted changes\n" +
		"  To finish manually:\n" +
		"    cd libs/core\n" +
		"    git stash\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("printUpdateReport() mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveStartDir(t *testing.T) {
	dir := t.TempDir()

	got, err := resolveStartDir(dir)
	if err != nil || got != dir {
		t.Errorf("resolveStartDir(%q) = %q, %v", dir, got, err)
	}

	file := filepath.Join(dir, "file")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := resolveStartDir(file); err == nil {
		t.Error("expected error for a file")
	}
	if _, err := resolveStartDir(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected error for a missing directory")
	}

	wd, _ := os.Getwd()
	if got, _ := resolveStartDir(""); got != wd {
		t.Errorf("resolveStartDir(\"\") = %q, want working directory %q", got, wd)
	}
}

func TestDescribeStore(t *testing.T) {
	isolateUserDirs(t)
	a := &app{cfg: config.Default()}
	a.cfg.Credentials.Backend = "file"

	store, err := a.credentialStore()
	if err != nil {
		t.Fatalf("credentialStore() error: %v", err)
	}
	if got, want := describeStore(store), config.CredentialsFile(); got != want {
		t.Errorf("describeStore() = %q, want %q", got, want)
	}
}

func TestSubmoduleListCommand(t *testing.T) {
	testutil.SkipIfNoGit(t)
	isolateUserDirs(t)

	ws := testutil.SetupWorkspace(t)
	testutil.AddSubmodule(t, ws, "apps/demo")

	// Run from inside the submodule to exercise the workspace search.
	output, err := executeCommand(rootCmd, "-C", filepath.Join(ws, "apps", "demo"), "submodule", "list")
	if err != nil {
		t.Fatalf("submodule list failed: %v\n%s", err, output)
	}
	for _, want := range []string{"PATH", "apps/demo", "up-to-date"} {
		if !strings.Contains(output, want) {
			t.Errorf("output missing %q:\n%s", want, output)
		}
	}
}

func TestCreateCommand_RejectsBadName(t *testing.T) {
	isolateUserDirs(t)

	_, err := executeCommand(rootCmd, "create", "../escape")
	if !errors.Is(err, sferrors.ErrInvalidInput) {
		t.Errorf("create ../escape error = %v, want invalid input", err)
	}
}
