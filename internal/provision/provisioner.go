package provision

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/logging"
	"github.com/Iron-Ham/subforge/internal/remote"
	"github.com/Iron-Ham/subforge/internal/scaffold"
	"github.com/Iron-Ham/subforge/internal/workspace"
)

// Locator finds the workspace root.
type Locator interface {
	Locate(ctx context.Context, startDir string) (*workspace.Workspace, error)
}

// RemoteProvisioner creates and forks remote repositories.
type RemoteProvisioner interface {
	Create(ctx context.Context, req remote.Request) (*remote.Result, error)
	Fork(ctx context.Context, owner, repo, targetOrg string) (*remote.Result, error)
}

// Scaffolder writes the files of a new project.
type Scaffolder interface {
	Scaffold(ctx context.Context, dir string, p scaffold.Project) error
}

// Config is a validated create request. The core never prompts; every
// option arrives here already decided.
type Config struct {
	Name         string
	Description  string
	Owner        string
	PreferOrg    bool
	CreateRemote bool
	Private      bool
	Category     string
	TemplateDir  string
}

// ForkConfig is a fork request. Source is "owner/repo" or a clone URL.
type ForkConfig struct {
	Source    string
	TargetOrg string
	Category  string
}

// CloneConfig registers an existing repository. Path overrides the
// category-derived location.
type CloneConfig struct {
	URL      string
	Category string
	Path     string
}

var validName = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ValidateName checks a project name against the repository naming rules.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || !validName.MatchString(name) {
		return errors.Wrapf(errors.ErrInvalidInput, "invalid project name %q (letters, digits, '.', '-', '_')", name)
	}
	return nil
}

// Options configures where projects are placed.
type Options struct {
	// StartDir is where workspace lookup begins.
	StartDir string
	// Categories maps a project category to its workspace subdirectory.
	Categories map[string]string
	// DefaultCategory is used when a request names none.
	DefaultCategory string
}

// Deps are the collaborators of a Provisioner.
type Deps struct {
	Locator    Locator
	Remote     RemoteProvisioner
	Scaffolder Scaffolder
	Pusher     *Pusher
	Registrar  *Registrar
	Logger     *logging.Logger
}

// Provisioner runs the create, fork, and clone flows.
type Provisioner struct {
	deps   Deps
	opts   Options
	logger *logging.Logger
}

// New creates a Provisioner.
func New(deps Deps, opts Options) *Provisioner {
	logger := deps.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Provisioner{deps: deps, opts: opts, logger: logger}
}

// TargetPath returns the workspace-relative directory for a project.
func (p *Provisioner) TargetPath(category, name string) (string, error) {
	if len(p.opts.Categories) == 0 {
		return name, nil
	}
	if category == "" {
		category = p.opts.DefaultCategory
	}
	dir, ok := p.opts.Categories[category]
	if !ok {
		known := make([]string, 0, len(p.opts.Categories))
		for k := range p.opts.Categories {
			known = append(known, k)
		}
		sort.Strings(known)
		return "", errors.Wrapf(errors.ErrInvalidInput, "unknown project type %q (known: %s)", category, strings.Join(known, ", "))
	}
	return path.Join(filepath.ToSlash(dir), name), nil
}

// Create provisions a new project: locate the workspace, check the target
// directory, create the remote, scaffold, push, and register the submodule.
// With CreateRemote false the project is only scaffolded and committed
// locally.
func (p *Provisioner) Create(ctx context.Context, cfg Config) (*Report, error) {
	logger := p.logger.WithOperation("create").With("name", cfg.Name)

	steps := []Step{
		p.locateStep(),
		{
			Name:  "check target directory",
			Fatal: true,
			Run: func(ctx context.Context, st *State) error {
				if err := ValidateName(cfg.Name); err != nil {
					return err
				}
				return p.claimTarget(st, cfg.Category, cfg.Name)
			},
		},
		{
			Name:  "create remote repository",
			Fatal: true,
			Run: func(ctx context.Context, st *State) error {
				if !cfg.CreateRemote {
					return nil
				}
				if p.deps.Remote == nil {
					return errors.Wrap(errors.ErrAuthInvalid, "no access token available for remote creation")
				}
				result, err := p.deps.Remote.Create(ctx, remote.Request{
					Owner:       cfg.Owner,
					Name:        cfg.Name,
					Description: cfg.Description,
					Private:     cfg.Private,
					PreferOrg:   cfg.PreferOrg,
				})
				if err != nil {
					return err
				}
				st.Repository = result.Repository
				if result.Notice != nil {
					logger.Info("remote created under a different owner", "notice", result.Notice.Error())
					st.Notices = append(st.Notices, result.Notice)
				}
				return nil
			},
		},
		{
			Name:  "scaffold project",
			Fatal: true,
			Run: func(ctx context.Context, st *State) error {
				project := scaffold.Project{Name: cfg.Name, Description: cfg.Description, TemplateDir: cfg.TemplateDir}
				if st.Repository != nil {
					project.RemoteURL = st.Repository.HTMLURL
				}
				return p.deps.Scaffolder.Scaffold(ctx, st.LocalPath, project)
			},
		},
		{
			Name:  "initial push",
			Fatal: true,
			Run: func(ctx context.Context, st *State) error {
				if st.Repository == nil {
					return p.deps.Pusher.Initialize(ctx, st.LocalPath)
				}
				outcome := p.deps.Pusher.InitializeAndPush(ctx, st.LocalPath, st.Repository)
				st.Push = &outcome
				if outcome.Err != nil {
					return outcome.Err
				}
				if w := outcome.Warning(); w != nil {
					return w
				}
				return nil
			},
		},
		{
			Name:  "register submodule",
			Fatal: true,
			Run: func(ctx context.Context, st *State) error {
				if st.Repository == nil {
					return nil
				}
				if st.Push == nil || !st.Push.Pushed {
					return p.deferredRegistration(st)
				}
				return p.register(ctx, st, st.LocalPath)
			},
		},
	}

	report, err := run(ctx, logger, steps)
	if err != nil {
		return report, err
	}
	logger.Info("project provisioned", "path", report.RelPath, "warnings", len(report.Warnings))
	return report, nil
}

// Fork forks an existing repository and registers the fork as a submodule.
func (p *Provisioner) Fork(ctx context.Context, cfg ForkConfig) (*Report, error) {
	owner, name, ok := remote.ParseFullName(cfg.Source)
	if !ok {
		owner, name, ok = remote.ParseURL(cfg.Source)
	}
	if !ok {
		return &Report{}, errors.Wrapf(errors.ErrInvalidInput, "cannot parse repository %q (want owner/repo or a clone URL)", cfg.Source)
	}
	logger := p.logger.WithOperation("fork").With("source", owner+"/"+name)

	steps := []Step{
		p.locateStep(),
		{
			Name:  "check target directory",
			Fatal: true,
			Run: func(ctx context.Context, st *State) error {
				return p.claimTarget(st, cfg.Category, name)
			},
		},
		{
			Name:  "fork repository",
			Fatal: true,
			Run: func(ctx context.Context, st *State) error {
				if p.deps.Remote == nil {
					return errors.Wrap(errors.ErrAuthInvalid, "no access token available for forking")
				}
				result, err := p.deps.Remote.Fork(ctx, owner, name, cfg.TargetOrg)
				if err != nil {
					return err
				}
				st.Repository = result.Repository
				if result.Notice != nil {
					st.Notices = append(st.Notices, result.Notice)
				}
				return nil
			},
		},
		{
			Name:  "register submodule",
			Fatal: true,
			Run: func(ctx context.Context, st *State) error {
				return p.register(ctx, st, "")
			},
		},
	}
	return run(ctx, logger, steps)
}

// Clone registers an existing remote URL as a submodule.
func (p *Provisioner) Clone(ctx context.Context, cfg CloneConfig) (*Report, error) {
	logger := p.logger.WithOperation("clone").With("url", cfg.URL)

	steps := []Step{
		p.locateStep(),
		{
			Name:  "check target directory",
			Fatal: true,
			Run: func(ctx context.Context, st *State) error {
				if cfg.Path != "" {
					return p.claimRelPath(st, filepath.ToSlash(filepath.Clean(cfg.Path)))
				}
				_, name, ok := remote.ParseURL(cfg.URL)
				if !ok {
					return errors.Wrapf(errors.ErrInvalidInput, "cannot derive a project name from %q, pass --path", cfg.URL)
				}
				return p.claimTarget(st, cfg.Category, name)
			},
		},
		{
			Name:  "register submodule",
			Fatal: true,
			Run: func(ctx context.Context, st *State) error {
				outcome := p.deps.Registrar.RegisterURL(ctx, st.Workspace, st.RelPath, cfg.URL)
				return p.recordRegistration(st, outcome)
			},
		},
	}
	return run(ctx, logger, steps)
}

func (p *Provisioner) locateStep() Step {
	return Step{
		Name:  "locate workspace",
		Fatal: true,
		Run: func(ctx context.Context, st *State) error {
			ws, err := p.deps.Locator.Locate(ctx, p.opts.StartDir)
			if err != nil {
				return err
			}
			st.Workspace = ws
			return nil
		},
	}
}

// claimTarget resolves the project path and fails with DirectoryExistsError
// if it is taken. It runs before any remote side effect.
func (p *Provisioner) claimTarget(st *State, category, name string) error {
	rel, err := p.TargetPath(category, name)
	if err != nil {
		return err
	}
	return p.claimRelPath(st, rel)
}

func (p *Provisioner) claimRelPath(st *State, rel string) error {
	if rel == "." || rel == "" || rel == ".." || strings.HasPrefix(rel, "../") || path.IsAbs(rel) {
		return errors.Wrapf(errors.ErrInvalidInput, "target path %q must be inside the workspace", rel)
	}
	abs := st.Workspace.Abs(rel)
	if _, err := os.Lstat(abs); err == nil {
		return errors.Wrapf(errors.ErrDirectoryExists, "%s", abs)
	} else if !os.IsNotExist(err) {
		return err
	}
	st.RelPath = rel
	st.LocalPath = abs
	return nil
}

func (p *Provisioner) register(ctx context.Context, st *State, created string) error {
	outcome := p.deps.Registrar.Register(ctx, st.Workspace, st.RelPath, st.Repository, created)
	return p.recordRegistration(st, outcome)
}

func (p *Provisioner) recordRegistration(st *State, outcome RegisterOutcome) error {
	st.Register = &outcome
	if outcome.Err != nil {
		return outcome.Err
	}
	if w := outcome.Warning(); w != nil {
		return w
	}
	return nil
}

// deferredRegistration is the warning for a project whose push failed. The
// local repository stays where it is; once pushed, `git submodule add`
// adopts the existing directory in place.
func (p *Provisioner) deferredRegistration(st *State) error {
	url := p.deps.Registrar.URL(st.Repository)
	cause := fmt.Errorf("%w: skipped because the initial push did not succeed", errors.ErrSubmoduleRegistration)
	return errors.NewWarning("register submodule", cause).WithRemediation(
		"cd "+st.Workspace.Root,
		fmt.Sprintf("git submodule add %s %s", url, st.RelPath),
		fmt.Sprintf("git commit -m %q", fmt.Sprintf("Add %s submodule", st.RelPath)),
	)
}
