package vcs

import (
	"context"
	"os"
	"os/exec"
)

// CommandExecutor abstracts command execution for testability.
// This allows tests to script git responses without executing them.
// Every call names the directory it runs in; the process working directory
// is never consulted or changed.
type CommandExecutor interface {
	// Run executes a command in dir and returns combined output.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)

	// RunQuiet executes a command in dir and returns only the error.
	RunQuiet(ctx context.Context, dir string, name string, args ...string) error
}

// CLICommandExecutor executes commands using os/exec.
type CLICommandExecutor struct {
	env []string
}

// NewCLICommandExecutor creates a new CLI command executor. Git is never
// allowed to prompt for credentials; a prompt would hang a scripted run.
func NewCLICommandExecutor() *CLICommandExecutor {
	return &CLICommandExecutor{env: []string{"GIT_TERMINAL_PROMPT=0"}}
}

func (e *CLICommandExecutor) command(ctx context.Context, dir, name string, args ...string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), e.env...)
	return cmd
}

// Run executes a command and returns combined output.
func (e *CLICommandExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	return e.command(ctx, dir, name, args...).CombinedOutput()
}

// RunQuiet executes a command and returns only the error.
func (e *CLICommandExecutor) RunQuiet(ctx context.Context, dir string, name string, args ...string) error {
	return e.command(ctx, dir, name, args...).Run()
}
