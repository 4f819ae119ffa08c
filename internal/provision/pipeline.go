// Package provision runs the end-to-end provisioning flows: create a remote
// repository, scaffold and push the project, and register it as a
// submodule of the workspace. Each flow is a short ordered pipeline of
// steps; the pipeline decides per step whether a failure aborts the run or
// is recorded as a warning and the run continues.
package provision

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/logging"
	"github.com/Iron-Ham/subforge/internal/remote"
	"github.com/Iron-Ham/subforge/internal/workspace"
)

// State is threaded through the steps of one run.
type State struct {
	Workspace  *workspace.Workspace
	RelPath    string // target path relative to the workspace root, slash form
	LocalPath  string // absolute target path
	Repository *remote.Repository
	Push       *PushOutcome
	Register   *RegisterOutcome
	Notices    []error
	Warnings   []error
}

// Step is one stage of a pipeline. Run returns nil, a recoverable
// *errors.Warning, or an error. A Fatal step's error stops the pipeline;
// a non-fatal step's error becomes a warning.
type Step struct {
	Name  string
	Fatal bool
	Run   func(ctx context.Context, st *State) error
}

// Report is the result of a provisioning run.
type Report struct {
	State
	// Completed lists the steps that ran to completion.
	Completed []string
}

// ExitErr returns a non-nil error when the run recorded any warning, so
// the process exits non-zero even though the run finished.
func (r *Report) ExitErr() error {
	if len(r.Warnings) == 0 {
		return nil
	}
	return fmt.Errorf("completed with %d warning(s): %w", len(r.Warnings), errors.Join(r.Warnings...))
}

// run executes steps in order.
func run(ctx context.Context, logger *logging.Logger, steps []Step) (*Report, error) {
	report := &Report{}
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return report, errors.Wrapf(err, "%s", step.Name)
		}

		logger.Debug("running step", "step", step.Name)
		err := step.Run(ctx, &report.State)
		switch {
		case err == nil:
			report.Completed = append(report.Completed, step.Name)
		case errors.IsRecoverable(err):
			logger.Warn("step finished with warning", "step", step.Name, "error", err)
			report.Warnings = append(report.Warnings, err)
			report.Completed = append(report.Completed, step.Name)
		case step.Fatal:
			logger.Error("step failed", "step", step.Name, "error", err)
			return report, errors.Wrapf(err, "%s", step.Name)
		default:
			logger.Warn("step failed, continuing", "step", step.Name, "error", err)
			report.Warnings = append(report.Warnings, errors.NewWarning(step.Name, err))
		}
	}
	return report, nil
}
