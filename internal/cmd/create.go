package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/provision"
)

var createCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a project, push it to GitHub, and register it as a submodule",
	Long: `Create a new project inside the workspace.

The repository is created in the configured organization first and in your
personal account if that fails. The project directory is scaffolded (from
create.template_dir when set), committed, pushed to main (or master), and
registered as a submodule under the directory of its project type.

Examples:
  subforge create api --description "Public API"
  subforge create --name web --type apps --public
  subforge create scratch --no-remote`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCreate,
}

var (
	createName        string
	createDescription string
	createOwner       string
	createType        string
	createTemplate    string
	createPersonal    bool
	createNoRemote    bool
	createPublic      bool
)

func init() {
	createCmd.Flags().StringVarP(&createName, "name", "n", "", "project and repository name")
	createCmd.Flags().StringVarP(&createDescription, "description", "d", "", "repository description")
	createCmd.Flags().StringVar(&createOwner, "owner", "", "organization to create the repository in (default: github.organization)")
	createCmd.Flags().StringVarP(&createType, "type", "t", "", "project type, selects the workspace directory (default: workspace.default_category)")
	createCmd.Flags().StringVar(&createTemplate, "template", "", "directory copied into the new project (default: create.template_dir)")
	createCmd.Flags().BoolVar(&createPersonal, "personal", false, "create the repository in your personal account")
	createCmd.Flags().BoolVar(&createNoRemote, "no-remote", false, "only create and commit the local project")
	createCmd.Flags().BoolVar(&createPublic, "public", false, "create a public repository")

	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	name := createName
	if len(args) == 1 {
		if name != "" && name != args[0] {
			return fmt.Errorf("%w: name given twice (%q and --name %q)", errors.ErrInvalidInput, args[0], name)
		}
		name = args[0]
	}
	if name == "" {
		return fmt.Errorf("%w: a project name is required", errors.ErrInvalidInput)
	}
	if err := provision.ValidateName(name); err != nil {
		return err
	}

	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	cfg := createConfig(a, name)

	p, err := a.provisioner(ctx, cfg.CreateRemote)
	if err != nil {
		return err
	}

	a.out.Heading("Creating " + name)
	report, err := p.Create(ctx, cfg)
	printReport(a.out, report)
	if err != nil {
		return err
	}
	return report.ExitErr()
}

// createConfig merges the command flags over the configuration.
func createConfig(a *app, name string) provision.Config {
	owner := createOwner
	if owner == "" {
		owner = a.cfg.GitHub.Organization
	}
	preferOrg := a.cfg.GitHub.PreferOrg || createOwner != ""
	if createPersonal {
		owner = ""
		preferOrg = false
	}

	template := createTemplate
	if template == "" {
		template = a.cfg.Create.TemplateDir.String()
	}

	return provision.Config{
		Name:         name,
		Description:  createDescription,
		Owner:        owner,
		PreferOrg:    preferOrg && owner != "",
		CreateRemote: !createNoRemote,
		Private:      a.cfg.GitHub.Private && !createPublic,
		Category:     createType,
		TemplateDir:  template,
	}
}
