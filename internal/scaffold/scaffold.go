// Package scaffold lays down the files of a new project. A template
// directory, when configured, is copied verbatim; a README is written if
// the template did not provide one.
package scaffold

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/otiai10/copy"
)

// Project describes the project being scaffolded.
type Project struct {
	Name        string
	Description string
	// RemoteURL is the web URL of the remote repository, if one exists.
	RemoteURL string
	// TemplateDir overrides the scaffolder's default template.
	TemplateDir string
}

// Scaffolder writes project files into a directory.
type Scaffolder struct {
	templateDir string
}

// New creates a Scaffolder. An empty templateDir writes only the README.
func New(templateDir string) *Scaffolder {
	return &Scaffolder{templateDir: templateDir}
}

// Scaffold creates dir and fills it. dir must not exist yet.
func (s *Scaffolder) Scaffold(_ context.Context, dir string, p Project) error {
	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create project directory: %w", err)
	}

	templateDir := s.templateDir
	if p.TemplateDir != "" {
		templateDir = p.TemplateDir
	}
	if templateDir != "" {
		if err := copy.Copy(templateDir, dir, copy.Options{
			Skip: func(_ os.FileInfo, src, _ string) (bool, error) {
				return filepath.Base(src) == ".git", nil
			},
			OnSymlink: func(string) copy.SymlinkAction { return copy.Shallow },
		}); err != nil {
			return fmt.Errorf("failed to copy template %s: %w", templateDir, err)
		}
	}

	readme := filepath.Join(dir, "README.md")
	if _, err := os.Stat(readme); os.IsNotExist(err) {
		if err := os.WriteFile(readme, []byte(Readme(p)), 0o644); err != nil {
			return fmt.Errorf("failed to write README: %w", err)
		}
	}
	return nil
}

// Readme renders the default README for p.
func Readme(p Project) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", p.Description)
	}
	if p.RemoteURL != "" {
		fmt.Fprintf(&b, "\nRepository: %s\n", p.RemoteURL)
	}
	return b.String()
}
