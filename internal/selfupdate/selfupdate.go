// Package selfupdate replaces the running binary with the newest published
// release.
package selfupdate

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/afero"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/logging"
	"github.com/Iron-Ham/subforge/internal/remote"
)

// ReleaseSource is the part of remote.Host the updater needs.
type ReleaseSource interface {
	LatestRelease(ctx context.Context, owner, repo string) (*remote.Release, error)
	DownloadAsset(ctx context.Context, owner, repo string, id int64) (io.ReadCloser, error)
}

// AssetName returns the release asset built for goos/goarch.
func AssetName(goos, goarch string) string {
	name := fmt.Sprintf("subforge_%s_%s", goos, goarch)
	if goos == "windows" {
		name += ".exe"
	}
	return name
}

// Options configures an Updater.
type Options struct {
	// Repository is "owner/name" of the project publishing releases.
	Repository string
	// FS defaults to the OS filesystem.
	FS afero.Fs
	// GOOS and GOARCH default to the running platform.
	GOOS   string
	GOARCH string
	Logger *logging.Logger
}

// Updater checks for and installs new releases.
type Updater struct {
	source ReleaseSource
	owner  string
	repo   string
	fs     afero.Fs
	asset  string
	logger *logging.Logger
}

// New creates an Updater reading releases from source.
func New(source ReleaseSource, opts Options) (*Updater, error) {
	owner, repo, ok := remote.ParseFullName(opts.Repository)
	if !ok {
		return nil, fmt.Errorf("%w: release repository %q is not owner/name", errors.ErrInvalidInput, opts.Repository)
	}
	fs := opts.FS
	if fs == nil {
		fs = afero.NewOsFs()
	}
	goos, goarch := opts.GOOS, opts.GOARCH
	if goos == "" {
		goos = runtime.GOOS
	}
	if goarch == "" {
		goarch = runtime.GOARCH
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Updater{
		source: source,
		owner:  owner,
		repo:   repo,
		fs:     fs,
		asset:  AssetName(goos, goarch),
		logger: logger.WithOperation("self-update"),
	}, nil
}

// Check is the result of comparing the running version with the latest
// release.
type Check struct {
	Current string
	Latest  string
	// Newer is true when Latest is a higher version than Current.
	Newer bool
	// Asset is the download for this platform; HasAsset is false when the
	// release has none.
	Asset    remote.Asset
	HasAsset bool
}

// Check compares current with the latest release. current must be a
// semantic version ("v1.2.3" or "1.2.3"); development builds cannot be
// compared and return errors.ErrInvalidInput.
func (u *Updater) Check(ctx context.Context, current string) (*Check, error) {
	cur, err := semver.NewVersion(current)
	if err != nil {
		return nil, fmt.Errorf("%w: running version %q is not a release build", errors.ErrInvalidInput, current)
	}

	rel, err := u.source.LatestRelease(ctx, u.owner, u.repo)
	if err != nil {
		return nil, err
	}
	latest, err := semver.NewVersion(rel.Tag)
	if err != nil {
		return nil, fmt.Errorf("latest release tag %q is not a semantic version: %w", rel.Tag, err)
	}

	c := &Check{
		Current: cur.Original(),
		Latest:  latest.Original(),
		Newer:   latest.GreaterThan(cur),
	}
	c.Asset, c.HasAsset = rel.FindAsset(u.asset)
	u.logger.Debug("checked for update", "current", c.Current, "latest", c.Latest, "newer", c.Newer, "asset", c.HasAsset)
	return c, nil
}

// Apply downloads the asset named by c and atomically replaces the file at
// exe. The new binary is written next to exe and renamed over it, so an
// interrupted update leaves the old binary intact.
func (u *Updater) Apply(ctx context.Context, c *Check, exe string) error {
	if !c.Newer {
		return nil
	}
	if !c.HasAsset {
		return fmt.Errorf("%w: release %s has no asset %s", errors.ErrNotFound, c.Latest, u.asset)
	}

	rc, err := u.source.DownloadAsset(ctx, u.owner, u.repo, c.Asset.ID)
	if err != nil {
		return err
	}
	defer func() { _ = rc.Close() }()

	info, err := u.fs.Stat(exe)
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", exe, err)
	}

	tmp, err := afero.TempFile(u.fs, filepath.Dir(exe), ".subforge-update-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = u.fs.Remove(tmpName)
		}
	}()

	n, err := io.Copy(tmp, rc)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", u.asset, err)
	}
	if n == 0 {
		return fmt.Errorf("downloaded %s is empty", u.asset)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	mode := info.Mode().Perm() | 0o111
	if err := u.fs.Chmod(tmpName, mode); err != nil {
		return fmt.Errorf("failed to mark %s executable: %w", tmpName, err)
	}
	if err := u.fs.Rename(tmpName, exe); err != nil {
		return fmt.Errorf("failed to replace %s: %w", exe, err)
	}
	committed = true
	u.logger.Info("installed update", "version", c.Latest, "path", exe, "bytes", n)
	return nil
}
