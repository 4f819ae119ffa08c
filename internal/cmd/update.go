package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/subforge/internal/selfupdate"
)

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update subforge to the latest release",
	Long: `Compare the running version with the latest GitHub release of
update.repository and, when newer, replace the subforge binary with the
release asset built for this platform.

A token is used when available but is not required for public releases.`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

var updateCheckOnly bool

func init() {
	updateCmd.Flags().BoolVar(&updateCheckOnly, "check", false, "only report whether an update is available")

	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()
	host, err := a.host(ctx, true)
	if err != nil {
		return err
	}
	updater, err := selfupdate.New(host, selfupdate.Options{
		Repository: a.cfg.Update.Repository,
		Logger:     a.logger,
	})
	if err != nil {
		return err
	}

	check, err := updater.Check(ctx, cmd.Root().Version)
	if err != nil {
		return err
	}
	if !check.Newer {
		a.out.Success("subforge %s is the latest version", check.Current)
		return nil
	}
	a.out.Info("subforge %s is available (running %s)", check.Latest, check.Current)
	if updateCheckOnly {
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate the running binary: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	if err := updater.Apply(ctx, check, exe); err != nil {
		return err
	}
	a.out.Success("updated %s to %s", exe, check.Latest)
	return nil
}
