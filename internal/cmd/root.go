package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	configcmd "github.com/Iron-Ham/subforge/internal/cmd/config"
	"github.com/Iron-Ham/subforge/internal/config"
	"github.com/Iron-Ham/subforge/internal/errors"
)

// configReadErr holds the error from reading the config file, if any.
var configReadErr error

var rootCmd = &cobra.Command{
	Use:   "subforge",
	Short: "Provision projects as submodules of a multi-repository workspace",
	Long: `Subforge creates a repository on GitHub, pushes a freshly scaffolded
project to it, and registers it as a submodule of the enclosing workspace.
It also lists, updates, and removes the workspace's submodules.

A workspace is a git repository containing a marker directory
(.subforge by default). Commands work from the workspace root or from
inside any of its submodules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. version is reported by --version and
// compared against releases by "subforge update".
func Execute(ctx context.Context, version string) error {
	rootCmd.Version = version
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $XDG_CONFIG_HOME/subforge/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	rootCmd.PersistentFlags().StringP("dir", "C", "", "run as if subforge was started in this directory")
	_ = viper.BindPFlag("dir", rootCmd.PersistentFlags().Lookup("dir"))

	configcmd.Register(rootCmd)
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
	}

	// SUBFORGE_GITHUB_ORGANIZATION overrides github.organization
	config.BindEnv(viper.GetViper())

	// A missing default config file is fine; a broken or missing explicit
	// one is reported by the first command that loads the configuration.
	configReadErr = nil
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			configReadErr = errors.Wrap(err, "failed to read config file")
		}
	}
}
