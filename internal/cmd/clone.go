package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Iron-Ham/subforge/internal/provision"
)

var cloneCmd = &cobra.Command{
	Use:   "clone <url>",
	Short: "Register an existing repository as a submodule",
	Long: `Add an existing repository to the workspace as a submodule.

The directory is derived from the repository name and the project type,
or given exactly with --path (relative to the workspace root).

Examples:
  subforge clone git@github.com:acme/billing.git --type apps
  subforge clone https://github.com/acme/tools.git --path vendor/tools`,
	Args: cobra.ExactArgs(1),
	RunE: runClone,
}

var (
	cloneType string
	clonePath string
)

func init() {
	cloneCmd.Flags().StringVarP(&cloneType, "type", "t", "", "project type, selects the workspace directory")
	cloneCmd.Flags().StringVar(&clonePath, "path", "", "submodule path relative to the workspace root")

	rootCmd.AddCommand(cloneCmd)
}

func runClone(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	p, err := a.provisioner(ctx, false)
	if err != nil {
		return err
	}

	a.out.Heading("Adding " + args[0])
	report, err := p.Clone(ctx, provision.CloneConfig{URL: args[0], Category: cloneType, Path: clonePath})
	printReport(a.out, report)
	if err != nil {
		return err
	}
	return report.ExitErr()
}
