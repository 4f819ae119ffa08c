package config

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppName names the configuration, state, and keyring namespaces.
const AppName = "subforge"

// EnvPrefix is the prefix of environment variable overrides
// (SUBFORGE_GITHUB_ORGANIZATION overrides github.organization).
const EnvPrefix = "SUBFORGE"

// Config represents the complete subforge configuration
type Config struct {
	Workspace   WorkspaceConfig   `mapstructure:"workspace"`
	GitHub      GitHubConfig      `mapstructure:"github"`
	Push        PushConfig        `mapstructure:"push"`
	Submodule   SubmoduleConfig   `mapstructure:"submodule"`
	Credentials CredentialsConfig `mapstructure:"credentials"`
	Create      CreateConfig      `mapstructure:"create"`
	Update      UpdateConfig      `mapstructure:"update"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// WorkspaceConfig controls how the workspace is recognized and laid out
type WorkspaceConfig struct {
	// Marker is the directory at the workspace root that identifies it (default: ".subforge")
	Marker string `mapstructure:"marker"`
	// Categories maps a project type to the workspace subdirectory its
	// projects live in. Example: {"apps": "apps", "libs": "packages/libs"}
	Categories map[string]string `mapstructure:"categories"`
	// DefaultCategory is used when no --type is given (default: "apps")
	DefaultCategory string `mapstructure:"default_category"`
}

// GitHubConfig controls remote repository creation
type GitHubConfig struct {
	// Organization is the preferred owner for new repositories. Empty means
	// the authenticated user's account.
	Organization string `mapstructure:"organization"`
	// PreferOrg tries the organization first and falls back to the personal
	// account (default: true)
	PreferOrg bool `mapstructure:"prefer_org"`
	// Private creates private repositories (default: true)
	Private bool `mapstructure:"private"`
	// BaseURL is the API endpoint for GitHub Enterprise. Empty means github.com.
	BaseURL string `mapstructure:"base_url"`
	// TokenEnv is the environment variable checked for a token before the
	// credential store (default: "GITHUB_TOKEN")
	TokenEnv string `mapstructure:"token_env"`
	// UseSSH pushes and registers submodules with SSH URLs (default: false)
	UseSSH bool `mapstructure:"use_ssh"`
}

// PushConfig controls the initial push of a new project
type PushConfig struct {
	// Branches are tried in order until one push succeeds (default: [main, master])
	Branches []string `mapstructure:"branches"`
	// CommitMessage is the message of the first commit (default: "Initial commit")
	CommitMessage string `mapstructure:"commit_message"`
}

// SubmoduleConfig controls submodule registration
type SubmoduleConfig struct {
	// PropagationDelay is the wait between pushing a new repository and
	// cloning it back as a submodule (default: 3s)
	PropagationDelay time.Duration `mapstructure:"propagation_delay"`
}

// CredentialsConfig controls where the access token is stored
type CredentialsConfig struct {
	// Backend is "auto" (keyring, falling back to file), "keyring", or "file" (default: "auto")
	Backend string `mapstructure:"backend"`
}

// CreateConfig controls project scaffolding
type CreateConfig struct {
	// TemplateDir is copied verbatim into every new project. Supports ~.
	TemplateDir Path `mapstructure:"template_dir"`
}

// UpdateConfig controls self-update
type UpdateConfig struct {
	// Repository is the owner/name releases are fetched from (default: "Iron-Ham/subforge")
	Repository string `mapstructure:"repository"`
}

// LoggingConfig controls debug logging behavior
type LoggingConfig struct {
	// Enabled writes logs to the state directory instead of stderr (default: true)
	Enabled bool `mapstructure:"enabled"`
	// Level is the log level: "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
	// MaxSizeMB is the maximum log file size in megabytes before rotation (default: 10)
	MaxSizeMB int `mapstructure:"max_size_mb"`
	// MaxBackups is the number of backup log files to keep (default: 3)
	MaxBackups int `mapstructure:"max_backups"`
}

// Path is a filesystem path from configuration. A leading ~ is expanded to
// the home directory while decoding.
type Path string

// String returns the path.
func (p Path) String() string {
	return string(p)
}

// CategoryNames returns the configured project types, sorted.
func (w *WorkspaceConfig) CategoryNames() []string {
	names := make([]string, 0, len(w.Categories))
	for name := range w.Categories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Marker: ".subforge",
			Categories: map[string]string{
				"apps": "apps",
				"libs": "libs",
			},
			DefaultCategory: "apps",
		},
		GitHub: GitHubConfig{
			PreferOrg: true,
			Private:   true,
			TokenEnv:  "GITHUB_TOKEN",
		},
		Push: PushConfig{
			Branches:      []string{"main", "master"},
			CommitMessage: "Initial commit",
		},
		Submodule: SubmoduleConfig{
			PropagationDelay: 3 * time.Second,
		},
		Credentials: CredentialsConfig{
			Backend: "auto",
		},
		Update: UpdateConfig{
			Repository: "Iron-Ham/subforge",
		},
		Logging: LoggingConfig{
			Enabled:    true,
			Level:      "info",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
	}
}

// SetDefaults registers default values with viper
func SetDefaults() {
	setDefaults(viper.GetViper())
}

// NewViper returns a viper instance with only the defaults registered.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	defaults := Default()

	// Workspace defaults
	v.SetDefault("workspace.marker", defaults.Workspace.Marker)
	v.SetDefault("workspace.categories", defaults.Workspace.Categories)
	v.SetDefault("workspace.default_category", defaults.Workspace.DefaultCategory)

	// GitHub defaults
	v.SetDefault("github.organization", defaults.GitHub.Organization)
	v.SetDefault("github.prefer_org", defaults.GitHub.PreferOrg)
	v.SetDefault("github.private", defaults.GitHub.Private)
	v.SetDefault("github.base_url", defaults.GitHub.BaseURL)
	v.SetDefault("github.token_env", defaults.GitHub.TokenEnv)
	v.SetDefault("github.use_ssh", defaults.GitHub.UseSSH)

	// Push defaults
	v.SetDefault("push.branches", defaults.Push.Branches)
	v.SetDefault("push.commit_message", defaults.Push.CommitMessage)

	// Submodule defaults
	v.SetDefault("submodule.propagation_delay", defaults.Submodule.PropagationDelay.String())

	// Credential defaults
	v.SetDefault("credentials.backend", defaults.Credentials.Backend)

	// Create defaults
	v.SetDefault("create.template_dir", string(defaults.Create.TemplateDir))

	// Update defaults
	v.SetDefault("update.repository", defaults.Update.Repository)

	// Logging defaults
	v.SetDefault("logging.enabled", defaults.Logging.Enabled)
	v.SetDefault("logging.level", defaults.Logging.Level)
	v.SetDefault("logging.max_size_mb", defaults.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", defaults.Logging.MaxBackups)
}

// BindEnv makes every key overridable from the environment:
// SUBFORGE_PUSH_BRANCHES=main,trunk sets push.branches.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load reads the configuration from viper into a Config struct and validates it
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes and validates the configuration held by v.
func LoadFrom(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return nil, err
	}

	// Validate the configuration
	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// Get returns the current configuration, falling back to defaults if it
// cannot be decoded. Commands that must report a bad config call Load.
func Get() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// decodeHook converts the string forms that files and environment
// variables produce into the typed fields of Config.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		expandPathHook(),
	)
}

// expandPathHook expands a leading ~ in values decoded into Path.
func expandPathHook() mapstructure.DecodeHookFuncType {
	pathType := reflect.TypeOf(Path(""))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != pathType {
			return data, nil
		}
		return Path(ExpandHome(data.(string))), nil
	}
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

// StateDir returns the directory for logs and the credential file.
func StateDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}

// LogFile returns the path of the log file.
func LogFile() string {
	return filepath.Join(StateDir(), AppName+".log")
}

// CredentialsFile returns the path of the file credential store.
func CredentialsFile() string {
	return filepath.Join(StateDir(), "credentials.yaml")
}
