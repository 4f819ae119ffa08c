package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/subforge/internal/config"
	"github.com/Iron-Ham/subforge/internal/credential"
	"github.com/Iron-Ham/subforge/internal/logging"
	"github.com/Iron-Ham/subforge/internal/provision"
	"github.com/Iron-Ham/subforge/internal/remote"
	"github.com/Iron-Ham/subforge/internal/scaffold"
	"github.com/Iron-Ham/subforge/internal/submodule"
	"github.com/Iron-Ham/subforge/internal/ui"
	"github.com/Iron-Ham/subforge/internal/vcs"
	"github.com/Iron-Ham/subforge/internal/workspace"
)

// app is everything a command needs, built once per invocation from the
// loaded configuration.
type app struct {
	cfg      *config.Config
	logger   *logging.Logger
	git      *vcs.CLIClient
	fs       afero.Fs
	startDir string
	out      *ui.Printer
}

// newApp loads and validates the configuration and opens the log.
func newApp(cmd *cobra.Command) (*app, error) {
	if configReadErr != nil {
		return nil, configReadErr
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	startDir, err := resolveStartDir(viper.GetString("dir"))
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		logger:   logger.With("command", cmd.CommandPath()),
		git:      vcs.NewCLIClient(logger),
		fs:       afero.NewOsFs(),
		startDir: startDir,
		out:      ui.NewPrinter(cmd.OutOrStdout()),
	}, nil
}

func newLogger(cfg *config.Config) (*logging.Logger, error) {
	opts := logging.Options{Level: cfg.Logging.Level}
	if cfg.Logging.Enabled {
		opts.Path = config.LogFile()
		opts.Rotation = logging.RotationConfig{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
		}
	}
	return logging.NewLogger(opts)
}

// resolveStartDir returns dir as an absolute path, or the working directory
// when dir is empty.
func resolveStartDir(dir string) (string, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current directory: %w", err)
		}
		return wd, nil
	}
	abs, err := filepath.Abs(config.ExpandHome(dir))
	if err != nil {
		return "", err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("cannot use --dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("cannot use --dir: %s is not a directory", abs)
	}
	return abs, nil
}

// Close flushes the log.
func (a *app) Close() {
	_ = a.logger.Close()
}

func (a *app) locator() *workspace.Locator {
	return workspace.NewLocator(a.git, a.cfg.Workspace.Marker)
}

// workspace locates the workspace enclosing the start directory.
func (a *app) workspace(ctx context.Context) (*workspace.Workspace, error) {
	return a.locator().Locate(ctx, a.startDir)
}

// credentialStore opens the configured token store.
func (a *app) credentialStore() (credential.Store, error) {
	return credential.Open(a.cfg.Credentials.Backend, a.fs, config.CredentialsFile())
}

// token resolves the GitHub token from the environment or the store.
func (a *app) token(ctx context.Context) (credential.Token, error) {
	store, err := a.credentialStore()
	if err != nil {
		return credential.Token{}, err
	}
	r := &credential.Resolver{EnvVar: a.cfg.GitHub.TokenEnv, Store: store}
	return r.Token(ctx)
}

// host returns an authenticated GitHub client. With anonymous set, a
// missing token gives an unauthenticated client instead of an error.
func (a *app) host(ctx context.Context, anonymous bool) (*remote.GitHubHost, error) {
	tok, err := a.token(ctx)
	if err != nil && !anonymous {
		return nil, err
	}
	if err == nil {
		a.logger.Debug("using GitHub token", "source", tok.Source)
	}
	return remote.NewGitHubHost(ctx, tok.Value, a.cfg.GitHub.BaseURL)
}

// provisioner wires the provisioning pipeline. needRemote resolves the
// token up front so a missing one is reported before anything runs.
func (a *app) provisioner(ctx context.Context, needRemote bool) (*provision.Provisioner, error) {
	deps := provision.Deps{
		Locator:    a.locator(),
		Scaffolder: scaffold.New(a.cfg.Create.TemplateDir.String()),
		Pusher: provision.NewPusher(a.git, provision.PushOptions{
			Branches:      a.cfg.Push.Branches,
			CommitMessage: a.cfg.Push.CommitMessage,
			UseSSH:        a.cfg.GitHub.UseSSH,
		}, a.logger),
		Registrar: provision.NewRegistrar(a.git, a.logger,
			provision.WithDelay(a.cfg.Submodule.PropagationDelay),
			provision.WithSSH(a.cfg.GitHub.UseSSH),
		),
		Logger: a.logger,
	}
	if needRemote {
		host, err := a.host(ctx, false)
		if err != nil {
			return nil, err
		}
		deps.Remote = remote.NewProvisioner(host, a.logger)
	}

	return provision.New(deps, provision.Options{
		StartDir:        a.startDir,
		Categories:      a.cfg.Workspace.Categories,
		DefaultCategory: a.cfg.Workspace.DefaultCategory,
	}), nil
}

// submodules returns a Manager for the enclosing workspace.
func (a *app) submodules(ctx context.Context) (*submodule.Manager, error) {
	ws, err := a.workspace(ctx)
	if err != nil {
		return nil, err
	}
	return submodule.NewManager(a.git, ws, a.logger), nil
}
