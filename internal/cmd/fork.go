package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/provision"
)

var forkCmd = &cobra.Command{
	Use:   "fork <owner/repo>",
	Short: "Fork a GitHub repository and register the fork as a submodule",
	Long: `Fork an existing repository and add the fork to the workspace.

The fork goes to the configured organization first (or --org) and to your
personal account if that fails. The source may also be given as a clone URL
with --url.

Examples:
  subforge fork charmbracelet/lipgloss --type libs
  subforge fork --url https://github.com/spf13/cobra.git --personal`,
	Args: cobra.MaximumNArgs(1),
	RunE: runFork,
}

var (
	forkURL      string
	forkOrg      string
	forkType     string
	forkPersonal bool
)

func init() {
	forkCmd.Flags().StringVar(&forkURL, "url", "", "clone URL of the repository to fork")
	forkCmd.Flags().StringVar(&forkOrg, "org", "", "organization to fork into (default: github.organization)")
	forkCmd.Flags().StringVarP(&forkType, "type", "t", "", "project type, selects the workspace directory")
	forkCmd.Flags().BoolVar(&forkPersonal, "personal", false, "fork into your personal account")

	rootCmd.AddCommand(forkCmd)
}

func runFork(cmd *cobra.Command, args []string) error {
	source := forkURL
	switch {
	case len(args) == 1 && source != "":
		return fmt.Errorf("%w: give the repository as an argument or with --url, not both", errors.ErrInvalidInput)
	case len(args) == 1:
		source = args[0]
	case source == "":
		return fmt.Errorf("%w: a repository to fork is required", errors.ErrInvalidInput)
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	p, err := a.provisioner(ctx, true)
	if err != nil {
		return err
	}

	targetOrg := forkOrg
	if targetOrg == "" && a.cfg.GitHub.PreferOrg {
		targetOrg = a.cfg.GitHub.Organization
	}
	if forkPersonal {
		targetOrg = ""
	}

	a.out.Heading("Forking " + source)
	report, err := p.Fork(ctx, provision.ForkConfig{Source: source, TargetOrg: targetOrg, Category: forkType})
	printReport(a.out, report)
	if err != nil {
		return err
	}
	return report.ExitErr()
}
