package provision

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/logging"
	"github.com/Iron-Ham/subforge/internal/remote"
	"github.com/Iron-Ham/subforge/internal/vcs"
	"github.com/Iron-Ham/subforge/internal/workspace"
)

// DefaultPropagationDelay is how long the registrar waits after a push
// before cloning the new repository back as a submodule. The hosting
// service may not serve a just-pushed commit immediately; the delay makes
// that race unlikely but does not rule it out.
const DefaultPropagationDelay = 3 * time.Second

// Registration tiers.
const (
	TierStructured = 1
	TierRaw        = 2
)

// RegisterOutcome is the result of a registration. Err is set only for
// fatal precondition failures. When both tiers fail, Registered is false
// and Remediation holds the manual commands.
type RegisterOutcome struct {
	Registered  bool
	Path        string
	URL         string
	Tier        int
	Attempts    []error
	Committed   bool
	Remediation []string
	Err         error
}

// Warning returns the SubmoduleRegistrationWarning for a failed but
// recoverable registration, or nil.
func (o *RegisterOutcome) Warning() *errors.Warning {
	switch {
	case o.Err != nil:
		return nil
	case !o.Registered:
		cause := fmt.Errorf("%w: %w", errors.ErrSubmoduleRegistration, errors.Join(o.Attempts...))
		return errors.NewWarning("register submodule", cause).WithRemediation(o.Remediation...)
	case !o.Committed:
		return errors.NewWarning("commit submodule", errors.ErrOperationFailed).WithRemediation(o.Remediation...)
	}
	return nil
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Registrar registers repositories as submodules of the workspace.
type Registrar struct {
	git    vcs.Client
	delay  time.Duration
	useSSH bool
	sleep  SleepFunc
	logger *logging.Logger
}

// RegistrarOption configures a Registrar.
type RegistrarOption func(*Registrar)

// WithDelay overrides the propagation delay.
func WithDelay(d time.Duration) RegistrarOption {
	return func(r *Registrar) { r.delay = d }
}

// WithSleep replaces the delay implementation. Tests use it to skip the wait.
func WithSleep(sleep SleepFunc) RegistrarOption {
	return func(r *Registrar) { r.sleep = sleep }
}

// WithSSH registers repositories by their SSH URL.
func WithSSH(useSSH bool) RegistrarOption {
	return func(r *Registrar) { r.useSSH = useSSH }
}

// NewRegistrar creates a Registrar.
func NewRegistrar(git vcs.Client, logger *logging.Logger, opts ...RegistrarOption) *Registrar {
	if logger == nil {
		logger = logging.NopLogger()
	}
	r := &Registrar{
		git:    git,
		delay:  DefaultPropagationDelay,
		sleep:  sleepContext,
		logger: logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register registers repo at relPath inside ws. If relPath exists and is
// the directory created (the one the provisioning flow just pushed from),
// it is removed first so the submodule can be cloned fresh. Any other
// existing path is a DirectoryExistsError.
//
// The submodule URL always comes from repo, the repository that actually
// exists on the host.
func (r *Registrar) Register(ctx context.Context, ws *workspace.Workspace, relPath string, repo *remote.Repository, created string) RegisterOutcome {
	return r.register(ctx, ws, relPath, repo.URL(r.useSSH), created, r.delay)
}

// URL returns the URL repo is registered under.
func (r *Registrar) URL(repo *remote.Repository) string {
	return repo.URL(r.useSSH)
}

// RegisterURL registers an existing remote URL at relPath without waiting
// for propagation.
func (r *Registrar) RegisterURL(ctx context.Context, ws *workspace.Workspace, relPath, url string) RegisterOutcome {
	return r.register(ctx, ws, relPath, url, "", 0)
}

func (r *Registrar) register(ctx context.Context, ws *workspace.Workspace, relPath, url, created string, delay time.Duration) RegisterOutcome {
	outcome := RegisterOutcome{Path: relPath, URL: url}
	logger := r.logger.WithSubmodule(relPath)
	target := ws.Abs(relPath)

	if err := clearTarget(target, created); err != nil {
		outcome.Err = err
		return outcome
	}

	if delay > 0 {
		logger.Debug("waiting for remote propagation", "delay", delay.String())
		if err := r.sleep(ctx, delay); err != nil {
			outcome.Err = err
			return outcome
		}
	}

	tiers := []struct {
		tier int
		add  func(context.Context, string, string, string) error
	}{
		{TierStructured, r.git.AddSubmodule},
		{TierRaw, r.git.AddSubmoduleRaw},
	}
	for _, t := range tiers {
		err := t.add(ctx, ws.Root, url, relPath)
		if err == nil {
			outcome.Registered = true
			outcome.Tier = t.tier
			break
		}
		outcome.Attempts = append(outcome.Attempts, err)
		logger.Warn("submodule add failed", "tier", t.tier, "url", url, "error", err)
		// A failed add can leave a partial clone behind that blocks the
		// next tier.
		if _, statErr := os.Stat(target); statErr == nil {
			_ = os.RemoveAll(target)
		}
	}

	commitMsg := fmt.Sprintf("Add %s submodule", relPath)
	if !outcome.Registered {
		outcome.Remediation = []string{
			"cd " + ws.Root,
			fmt.Sprintf("git submodule add %s %s", url, relPath),
			"git add .gitmodules " + relPath,
			fmt.Sprintf("git commit -m %q", commitMsg),
		}
		return outcome
	}

	if err := r.git.Stage(ctx, ws.Root, ".gitmodules", relPath); err == nil {
		err = r.git.Commit(ctx, ws.Root, commitMsg)
		outcome.Committed = err == nil
		if err != nil {
			logger.Warn("failed to commit submodule registration", "error", err)
		}
	} else {
		logger.Warn("failed to stage submodule registration", "error", err)
	}
	if !outcome.Committed {
		outcome.Remediation = []string{
			"cd " + ws.Root,
			"git add .gitmodules " + relPath,
			fmt.Sprintf("git commit -m %q", commitMsg),
		}
		return outcome
	}

	logger.Info("registered submodule", "url", url, "tier", outcome.Tier)
	return outcome
}

// clearTarget enforces that target is absent, removing it only when it is
// the directory this run created.
func clearTarget(target, created string) error {
	if _, err := os.Lstat(target); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if created == "" || filepath.Clean(created) != filepath.Clean(target) {
		return errors.NewSubmoduleError("target path already exists", errors.ErrDirectoryExists).
			WithPath(target).
			WithStep("register")
	}
	if err := os.RemoveAll(target); err != nil {
		return fmt.Errorf("failed to remove %s before registration: %w", target, err)
	}
	return nil
}
