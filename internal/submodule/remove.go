package submodule

import (
	"context"
	"fmt"
	"os"

	"github.com/Iron-Ham/subforge/internal/errors"
)

// Question identifies what a Confirmer is asked.
type Question int

const (
	// QuestionRemove asks whether to unregister the submodule.
	QuestionRemove Question = iota
	// QuestionDeleteDirectory asks whether to delete the leftover working
	// directory after the submodule is unregistered.
	QuestionDeleteDirectory
)

// Confirmer answers yes/no questions before destructive steps.
type Confirmer interface {
	Confirm(ctx context.Context, q Question, prompt string) (bool, error)
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, q Question, prompt string) (bool, error)

// Confirm calls f.
func (f ConfirmFunc) Confirm(ctx context.Context, q Question, prompt string) (bool, error) {
	return f(ctx, q, prompt)
}

// Removal steps, in the order they run.
const (
	StepDeinit         = "deinit"
	StepRemoveIndex    = "remove from index"
	StepPurgeStorage   = "purge internal storage"
	StepEditGitmodules = "remove .gitmodules entry"
	StepCommit         = "commit"
)

// RemoveReport records how far a removal got. When a step fails, Failed
// names it and Completed lists the steps that already took effect; they are
// not rolled back.
type RemoveReport struct {
	Path             string
	Name             string
	Completed        []string
	Failed           string
	Directory        string
	DirectoryDeleted bool
}

// Remove unregisters a submodule completely: deinit, drop the gitlink from
// the index, purge the parent's internal copy, remove the .gitmodules
// section, and commit. The working directory left behind is deleted only
// after a second, separate confirmation.
func (m *Manager) Remove(ctx context.Context, target string, confirm Confirmer) (*RemoveReport, error) {
	info, err := m.resolve(ctx, target)
	if err != nil {
		return nil, err
	}
	report := &RemoveReport{Path: info.Path, Name: info.Name, Directory: m.ws.Abs(info.Path)}
	logger := m.logger.WithOperation("remove").WithSubmodule(info.Path)

	ok, err := confirm.Confirm(ctx, QuestionRemove, fmt.Sprintf("Remove submodule %s?", info.Path))
	if err != nil {
		return report, err
	}
	if !ok {
		return report, errors.NewSubmoduleError("removal not confirmed", errors.ErrAborted).WithPath(info.Path)
	}

	steps := []struct {
		name string
		run  func() error
	}{
		{StepDeinit, func() error { return m.git.DeinitSubmodule(ctx, m.ws.Root, info.Path) }},
		{StepRemoveIndex, func() error { return m.git.RemoveFromIndex(ctx, m.ws.Root, info.Path) }},
		{StepPurgeStorage, func() error { return m.git.PurgeInternalStorage(ctx, m.ws.Root, info.Name) }},
		{StepEditGitmodules, func() error { return m.git.RemoveGitmodulesEntry(ctx, m.ws.Root, info.Name) }},
		{StepCommit, func() error {
			return m.git.Commit(ctx, m.ws.Root, fmt.Sprintf("Remove %s submodule", info.Path))
		}},
	}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			report.Failed = step.name
			return report, err
		}
		if err := step.run(); err != nil {
			report.Failed = step.name
			logger.Error("submodule removal step failed", "step", step.name, "completed", report.Completed, "error", err)
			return report, errors.NewSubmoduleError("removal stopped", err).WithPath(info.Path).WithStep(step.name)
		}
		report.Completed = append(report.Completed, step.name)
	}
	logger.Info("submodule unregistered")

	if _, err := os.Stat(report.Directory); err != nil {
		if os.IsNotExist(err) {
			return report, nil
		}
		return report, err
	}
	ok, err = confirm.Confirm(ctx, QuestionDeleteDirectory, fmt.Sprintf("Delete working directory %s?", report.Directory))
	if err != nil || !ok {
		return report, err
	}
	if err := os.RemoveAll(report.Directory); err != nil {
		return report, errors.NewSubmoduleError("failed to delete working directory", err).
			WithPath(info.Path).WithStep("delete directory")
	}
	report.DirectoryDeleted = true
	logger.Info("deleted working directory", "dir", report.Directory)
	return report, nil
}
