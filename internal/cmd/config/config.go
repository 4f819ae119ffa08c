// Package config provides CLI commands for managing subforge configuration.
package config

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	appconfig "github.com/Iron-Ham/subforge/internal/config"
)

// Wrapper functions for exec to allow testing
var execLookPath = exec.LookPath
var execCommand = exec.Command

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View or modify subforge configuration",
	Long: `View or modify subforge configuration.

Settings are read from the config file, then overridden by SUBFORGE_*
environment variables. Use subcommands to inspect or change them.`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Set a configuration value in the config file.

Keys use dot notation, e.g.:
  subforge config set github.organization acme
  subforge config set push.branches main,trunk
  subforge config set submodule.propagation_delay 5s

Lists are comma separated. workspace.categories is a map; edit it with
'subforge config edit'. Run 'subforge config show' for every key.`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a default config file",
	Long:  `Create a default config file at $XDG_CONFIG_HOME/subforge/config.yaml with all available options.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	Args:  cobra.NoArgs,
	RunE:  runConfigPath,
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open config file in your editor",
	Long: `Open the config file in your preferred editor.

Uses $EDITOR, then $VISUAL, then the first of vim, nano, vi found on PATH.
If no config file exists, creates one with default values first.`,
	Args: cobra.NoArgs,
	RunE: runConfigEdit,
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Reset configuration to defaults",
	Long: `Reset configuration values to their defaults.

Without arguments, every key set in the config file is removed.
With a key argument, only that key is reset.

Examples:
  subforge config reset
  subforge config reset github.organization`,
	Args: cobra.MaximumNArgs(1),
	RunE: runConfigReset,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configEditCmd)
	configCmd.AddCommand(configResetCmd)
}

// Register adds all config-related commands to the given parent command.
func Register(parent *cobra.Command) {
	parent.AddCommand(configCmd)
}

// keyKind is how a value given to config set is parsed.
type keyKind int

const (
	kindString keyKind = iota
	kindBool
	kindInt
	kindDuration
	kindList
)

var settableKeys = map[string]keyKind{
	"workspace.marker":            kindString,
	"workspace.default_category":  kindString,
	"github.organization":         kindString,
	"github.prefer_org":           kindBool,
	"github.private":              kindBool,
	"github.base_url":             kindString,
	"github.token_env":            kindString,
	"github.use_ssh":              kindBool,
	"push.branches":               kindList,
	"push.commit_message":         kindString,
	"submodule.propagation_delay": kindDuration,
	"credentials.backend":         kindString,
	"create.template_dir":         kindString,
	"update.repository":           kindString,
	"logging.enabled":             kindBool,
	"logging.level":               kindString,
	"logging.max_size_mb":         kindInt,
	"logging.max_backups":         kindInt,
}

// SettableKeys returns the keys config set accepts, sorted.
func SettableKeys() []string {
	keys := make([]string, 0, len(settableKeys))
	for k := range settableKeys {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// parseValue converts the command-line form of a value for key.
func parseValue(key, value string) (any, error) {
	kind, ok := settableKeys[key]
	if !ok {
		return nil, fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(SettableKeys(), ", "))
	}
	switch kind {
	case kindBool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected true or false", key)
		}
		return b, nil
	case kindInt:
		n, err := strconv.Atoi(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected integer", key)
		}
		return n, nil
	case kindDuration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return nil, fmt.Errorf("invalid value for %s: expected a duration such as 3s", key)
		}
		return d.String(), nil
	case kindList:
		var items []string
		for _, item := range strings.Split(value, ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		return items, nil
	default:
		return value, nil
	}
}

// configFilePath is the file set, reset, and edit write to: the one in use,
// or the default location.
func configFilePath() string {
	if used := viper.ConfigFileUsed(); used != "" {
		return used
	}
	return appconfig.ConfigFile()
}

// readFile loads only what the config file at path contains, so writing it
// back does not persist defaults, flags, or environment overrides.
func readFile(path string) (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return v, nil
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return v, nil
}

// writeFile validates the settings of v layered over the defaults and
// writes them to path.
func writeFile(v *viper.Viper, path string) error {
	check := appconfig.NewViper()
	if err := check.MergeConfigMap(v.AllSettings()); err != nil {
		return err
	}
	if _, err := appconfig.LoadFrom(check); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "# Config file: %s\n", used)
	} else {
		fmt.Fprintf(out, "# Config file: (none - using defaults)\n")
	}

	cfg, err := appconfig.Load()
	if err != nil {
		return err
	}
	return writeYAML(out, cfg)
}

func writeYAML(out io.Writer, cfg *appconfig.Config) error {
	doc := map[string]any{
		"workspace": map[string]any{
			"marker":           cfg.Workspace.Marker,
			"categories":       cfg.Workspace.Categories,
			"default_category": cfg.Workspace.DefaultCategory,
		},
		"github": map[string]any{
			"organization": cfg.GitHub.Organization,
			"prefer_org":   cfg.GitHub.PreferOrg,
			"private":      cfg.GitHub.Private,
			"base_url":     cfg.GitHub.BaseURL,
			"token_env":    cfg.GitHub.TokenEnv,
			"use_ssh":      cfg.GitHub.UseSSH,
		},
		"push": map[string]any{
			"branches":       cfg.Push.Branches,
			"commit_message": cfg.Push.CommitMessage,
		},
		"submodule": map[string]any{
			"propagation_delay": cfg.Submodule.PropagationDelay.String(),
		},
		"credentials": map[string]any{
			"backend": cfg.Credentials.Backend,
		},
		"create": map[string]any{
			"template_dir": cfg.Create.TemplateDir.String(),
		},
		"update": map[string]any{
			"repository": cfg.Update.Repository,
		},
		"logging": map[string]any{
			"enabled":     cfg.Logging.Enabled,
			"level":       cfg.Logging.Level,
			"max_size_mb": cfg.Logging.MaxSizeMB,
			"max_backups": cfg.Logging.MaxBackups,
		},
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	key := args[0]
	value, err := parseValue(key, args[1])
	if err != nil {
		return err
	}

	path := configFilePath()
	v, err := readFile(path)
	if err != nil {
		return err
	}
	v.Set(key, value)
	if err := writeFile(v, path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Set %s = %v\n", key, value)
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", path)
	return nil
}

const defaultConfigContent = `# subforge configuration
# Every key can be overridden with a SUBFORGE_ environment variable,
# e.g. SUBFORGE_GITHUB_ORGANIZATION=acme.

workspace:
  # Directory at the workspace root that identifies it
  marker: .subforge
  # Project types and the workspace directory their projects live in
  categories:
    apps: apps
    libs: libs
  # Type used when --type is not given
  default_category: apps

github:
  # Owner for new repositories. Empty creates them on your account.
  organization: ""
  # Try the organization first and fall back to your account
  prefer_org: true
  # Create private repositories
  private: true
  # API endpoint for GitHub Enterprise, e.g. https://github.example.com/api/v3/
  base_url: ""
  # Environment variable checked for a token before the credential store
  token_env: GITHUB_TOKEN
  # Use SSH URLs for pushing and submodule registration
  use_ssh: false

push:
  # Branches tried in order for the initial push
  branches:
    - main
    - master
  commit_message: Initial commit

submodule:
  # Wait between pushing a new repository and cloning it as a submodule
  propagation_delay: 3s

credentials:
  # auto (keyring, falling back to a file), keyring, or file
  backend: auto

create:
  # Directory copied into every new project. Supports ~.
  template_dir: ""

update:
  # owner/name whose GitHub releases subforge updates from
  repository: Iron-Ham/subforge

logging:
  # Write logs to the state directory instead of stderr
  enabled: true
  # debug, info, warn, or error
  level: info
  max_size_mb: 10
  max_backups: 3
`

func runConfigInit(cmd *cobra.Command, args []string) error {
	configFile := appconfig.ConfigFile()

	if _, err := os.Stat(configFile); err == nil {
		return fmt.Errorf("config file already exists at %s\nUse 'subforge config set' to modify values", configFile)
	}

	if err := os.MkdirAll(appconfig.ConfigDir(), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(configFile, []byte(defaultConfigContent), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created config file at %s\n", configFile)
	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Active config: %s\n", used)
	} else {
		fmt.Fprintf(out, "Default path: %s (not created)\n", appconfig.ConfigFile())
	}

	fmt.Fprintln(out, "\nSearch path:")
	fmt.Fprintf(out, "  %s\n", appconfig.ConfigDir())
	fmt.Fprintf(out, "\nEnvironment variables: %s_* (e.g., %s_GITHUB_ORGANIZATION)\n", appconfig.EnvPrefix, appconfig.EnvPrefix)
	return nil
}

func runConfigEdit(cmd *cobra.Command, args []string) error {
	configFile := configFilePath()

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		fmt.Fprintln(cmd.OutOrStdout(), "Config file doesn't exist, creating with defaults...")
		if err := runConfigInit(cmd, args); err != nil {
			return err
		}
		configFile = appconfig.ConfigFile()
	}

	editor, err := findEditor()
	if err != nil {
		return err
	}

	editorCmd := execCommand(editor, configFile)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr
	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("editor exited with error: %w", err)
	}

	// Catch mistakes now rather than on the next command.
	v, err := readFile(configFile)
	if err != nil {
		return err
	}
	check := appconfig.NewViper()
	if err := check.MergeConfigMap(v.AllSettings()); err != nil {
		return err
	}
	if _, err := appconfig.LoadFrom(check); err != nil {
		return fmt.Errorf("%s saved but invalid: %w", configFile, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Config file saved: %s\n", configFile)
	return nil
}

func findEditor() (string, error) {
	for _, env := range []string{"EDITOR", "VISUAL"} {
		if e := os.Getenv(env); e != "" {
			return e, nil
		}
	}
	for _, e := range []string{"vim", "nano", "vi"} {
		if _, err := execLookPath(e); err == nil {
			return e, nil
		}
	}
	return "", fmt.Errorf("no editor found. Set $EDITOR environment variable")
}

func runConfigReset(cmd *cobra.Command, args []string) error {
	path := configFilePath()
	v, err := readFile(path)
	if err != nil {
		return err
	}

	fresh := viper.New()
	if len(args) == 1 {
		key := args[0]
		if !isKnownKey(key) && key != "workspace.categories" {
			return fmt.Errorf("unknown configuration key: %s\nValid keys: %s", key, strings.Join(SettableKeys(), ", "))
		}
		for _, k := range v.AllKeys() {
			if k == key || strings.HasPrefix(k, key+".") {
				continue
			}
			fresh.Set(k, v.Get(k))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Reset %s to default\n", key)
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Reset all configuration to defaults.")
	}

	if err := writeFile(fresh, path); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Config saved to %s\n", path)
	return nil
}

// isKnownKey reports whether key is settable or a section of settable keys.
func isKnownKey(key string) bool {
	if _, ok := settableKeys[key]; ok {
		return true
	}
	return slices.ContainsFunc(SettableKeys(), func(k string) bool {
		return strings.HasPrefix(k, key+".")
	})
}
