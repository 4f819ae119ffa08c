package cmd

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/submodule"
	"github.com/Iron-Ham/subforge/internal/ui"
)

var submoduleCmd = &cobra.Command{
	Use:     "submodule",
	Aliases: []string{"sub"},
	Short:   "List, update, and remove workspace submodules",
}

var submoduleListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List submodules with their commit, branch, and URL",
	Args:    cobra.NoArgs,
	RunE:    runSubmoduleList,
}

var submoduleUpdateCmd = &cobra.Command{
	Use:   "update [path]",
	Short: "Fast-forward submodules to their upstream branches",
	Long: `Fetch every remote of each submodule, create local branches for remote
branches that have none, and fast-forward the current branch to its
upstream.

Submodules with uncommitted changes or local commits that are not on the
upstream are skipped and left untouched, with the commands to resolve them.
Without a path, every submodule is updated.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSubmoduleUpdate,
}

var submoduleRemoveCmd = &cobra.Command{
	Use:     "remove <path>",
	Aliases: []string{"rm"},
	Short:   "Unregister a submodule and optionally delete its directory",
	Long: `Remove a submodule from the workspace: deinitialize it, drop it from the
index, purge its internal git storage, remove its .gitmodules entry, and
commit. The path may be the full submodule path or its last segment.

The working directory is deleted only after a second confirmation, or with
--delete-dir. Without a terminal, --yes is required.`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmoduleRemove,
}

var (
	removeYes       bool
	removeDeleteDir bool
)

func init() {
	submoduleRemoveCmd.Flags().BoolVarP(&removeYes, "yes", "y", false, "do not ask before unregistering")
	submoduleRemoveCmd.Flags().BoolVar(&removeDeleteDir, "delete-dir", false, "also delete the working directory without asking")

	submoduleCmd.AddCommand(submoduleListCmd)
	submoduleCmd.AddCommand(submoduleUpdateCmd)
	submoduleCmd.AddCommand(submoduleRemoveCmd)
	rootCmd.AddCommand(submoduleCmd)
}

func runSubmoduleList(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.submodules(cmd.Context())
	if err != nil {
		return err
	}
	records, err := mgr.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No submodules in %s\n", mgr.Workspace().Root)
		return nil
	}
	renderSubmoduleTable(cmd.OutOrStdout(), records)
	return nil
}

func renderSubmoduleTable(out io.Writer, records []submodule.Record) {
	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"PATH", "COMMIT", "BRANCH", "STATE", "URL"})
	for _, r := range records {
		branch := r.Branch
		if branch == "" {
			branch = "(detached)"
		}
		t.AppendRow(table.Row{r.Path, r.Commit, branch, r.State.String(), r.URL})
	}
	t.Render()
}

func runSubmoduleUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.submodules(cmd.Context())
	if err != nil {
		return err
	}
	target := ""
	if len(args) == 1 {
		target = args[0]
	}

	report, err := mgr.Update(cmd.Context(), target)
	if report != nil {
		printUpdateReport(a.out, report)
	}
	if err != nil {
		return err
	}
	return report.Err()
}

func printUpdateReport(p *ui.Printer, report *submodule.UpdateReport) {
	if len(report.Outcomes) == 0 {
		p.Info("no submodules to update")
		return
	}
	for _, o := range report.Outcomes {
		switch o.Status {
		case submodule.StatusUpdated:
			p.Success("%s: %s %s..%s", o.Path, o.Branch, o.PreviousCommit, o.NewCommit)
		case submodule.StatusUnchanged:
			p.Info("%s: %s already up to date (%s)", o.Path, o.Branch, o.NewCommit)
		case submodule.StatusSkippedConflict:
			p.Warn("%s: skipped, %s", o.Path, o.Reason)
			p.Remediation(o.Remediation)
		case submodule.StatusFailed:
			p.Fail("%s: %s", o.Path, o.Reason)
			p.Remediation(o.Remediation)
		}
	}
}

func runSubmoduleRemove(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	mgr, err := a.submodules(cmd.Context())
	if err != nil {
		return err
	}

	prompter := ui.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	confirm := removeConfirmer(prompter, removeYes, removeDeleteDir)

	report, err := mgr.Remove(cmd.Context(), args[0], confirm)
	if report != nil {
		for _, step := range report.Completed {
			a.out.Success("%s", step)
		}
		if report.Failed != "" {
			a.out.Fail("%s", report.Failed)
		}
		if report.DirectoryDeleted {
			a.out.Success("deleted %s", report.Directory)
		} else if err == nil && report.Failed == "" {
			a.out.Info("working directory kept: %s", report.Directory)
		}
	}
	return err
}

// interactivePrompter is the part of ui.Prompter removeConfirmer needs.
type interactivePrompter interface {
	Interactive() bool
	Confirm(ctx context.Context, title string) (bool, error)
}

// removeConfirmer answers the removal questions from the flags, asking on
// the terminal only for what the flags leave open. Without a terminal an
// unanswered removal question fails and an unanswered directory question
// keeps the directory.
func removeConfirmer(p interactivePrompter, yes, deleteDir bool) submodule.Confirmer {
	return submodule.ConfirmFunc(func(ctx context.Context, q submodule.Question, prompt string) (bool, error) {
		switch q {
		case submodule.QuestionRemove:
			if yes {
				return true, nil
			}
			if !p.Interactive() {
				return false, fmt.Errorf("%w: not a terminal, pass --yes to confirm removal", errors.ErrInvalidInput)
			}
		case submodule.QuestionDeleteDirectory:
			if deleteDir {
				return true, nil
			}
			if !p.Interactive() {
				return false, nil
			}
		}
		return p.Confirm(ctx, prompt)
	})
}
