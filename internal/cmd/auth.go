package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/Iron-Ham/subforge/internal/credential"
	"github.com/Iron-Ham/subforge/internal/errors"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the stored GitHub token",
	Long: `Manage the GitHub token used to create and fork repositories.

The token is read from the environment variable named by github.token_env
(GITHUB_TOKEN by default) first, then from the credential store: the OS
keyring, or a private file in the state directory when no keyring is
available (credentials.backend).`,
}

var authSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store a token read from standard input",
	Long: `Store a GitHub token read from standard input.

Example:
  gh auth token | subforge auth set`,
	Args: cobra.NoArgs,
	RunE: runAuthSet,
}

var authClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the stored token",
	Args:  cobra.NoArgs,
	RunE:  runAuthClear,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show where the token comes from",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

// maxTokenBytes bounds what auth set reads from stdin.
const maxTokenBytes = 4096

func init() {
	authCmd.AddCommand(authSetCmd)
	authCmd.AddCommand(authClearCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthSet(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	data, err := io.ReadAll(io.LimitReader(cmd.InOrStdin(), maxTokenBytes+1))
	if err != nil {
		return fmt.Errorf("failed to read token: %w", err)
	}
	if len(data) > maxTokenBytes {
		return fmt.Errorf("%w: token is longer than %d bytes", errors.ErrInvalidInput, maxTokenBytes)
	}

	store, err := a.credentialStore()
	if err != nil {
		return err
	}
	if err := credential.Save(store, string(data)); err != nil {
		return err
	}
	a.logger.Info("stored token", "backend", store.Name())
	a.out.Success("token stored in %s", describeStore(store))
	return nil
}

func runAuthClear(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	store, err := a.credentialStore()
	if err != nil {
		return err
	}
	if err := credential.Clear(store); err != nil {
		return err
	}
	a.out.Success("token removed from %s", describeStore(store))
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	tok, err := a.token(cmd.Context())
	if err != nil {
		return err
	}
	a.out.Success("token found (%s)", tok.Source)
	return nil
}

func describeStore(store credential.Store) string {
	if fs, ok := store.(*credential.FileStore); ok {
		return fs.Path()
	}
	return "the " + store.Name()
}
