package vcs

import (
	"fmt"
	"os"
)

// WithDir runs fn with the process working directory set to dir and
// restores the previous directory when fn returns, including on error or
// panic. Prefer passing a directory to CommandExecutor; this exists for
// APIs that only consult the ambient working directory.
func WithDir(dir string, fn func() error) (err error) {
	prev, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to read working directory: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("failed to enter %s: %w", dir, err)
	}
	defer func() {
		if restoreErr := os.Chdir(prev); restoreErr != nil && err == nil {
			err = fmt.Errorf("failed to restore working directory %s: %w", prev, restoreErr)
		}
	}()
	return fn()
}
