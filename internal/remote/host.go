// Package remote talks to the repository hosting service. Host is the
// hosting collaborator; GitHubHost implements it over the GitHub REST API.
// Provisioner layers the organization-first, personal-fallback creation
// policy on top of a Host.
package remote

import (
	"context"
	"io"
	"strings"
)

// RepoSpec describes a repository to create.
type RepoSpec struct {
	Name        string
	Description string
	Private     bool
}

// Repository is the identity of a repository that actually exists on the
// host. Once a provisioning step has one, it is the only source for push
// and submodule URLs.
type Repository struct {
	Owner    string
	Name     string
	CloneURL string
	SSHURL   string
	HTMLURL  string
}

// FullName returns "owner/name".
func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// URL returns the clone URL for the requested transport.
func (r *Repository) URL(useSSH bool) string {
	if useSSH && r.SSHURL != "" {
		return r.SSHURL
	}
	return r.CloneURL
}

// Release is a published release of a repository.
type Release struct {
	Tag    string
	Assets []Asset
}

// Asset is a downloadable file attached to a release.
type Asset struct {
	ID   int64
	Name string
}

// FindAsset returns the asset with the given name.
func (r *Release) FindAsset(name string) (Asset, bool) {
	for _, a := range r.Assets {
		if a.Name == name {
			return a, true
		}
	}
	return Asset{}, false
}

// Host is the repository hosting collaborator. Errors are classified with
// the sentinels in internal/errors (ErrRepoNameConflict, ErrAuthInvalid,
// ErrRateLimited, ErrPermissionDenied, ErrNotFound).
type Host interface {
	OrganizationExists(ctx context.Context, org string) (bool, error)
	CreateRepository(ctx context.Context, owner string, spec RepoSpec) (*Repository, error)
	CreateRepositoryForAuthenticatedUser(ctx context.Context, spec RepoSpec) (*Repository, error)
	// CreateFork forks owner/repo into targetOrg, or into the authenticated
	// user's account when targetOrg is empty.
	CreateFork(ctx context.Context, owner, repo, targetOrg string) (*Repository, error)
	AuthenticatedUser(ctx context.Context) (string, error)
	LatestRelease(ctx context.Context, owner, repo string) (*Release, error)
	DownloadAsset(ctx context.Context, owner, repo string, id int64) (io.ReadCloser, error)
}

// ParseFullName splits "owner/name" (a trailing ".git" is ignored).
func ParseFullName(s string) (owner, name string, ok bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), ".git")
	owner, name, ok = strings.Cut(s, "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", false
	}
	return owner, name, true
}

// ParseURL extracts owner and name from a clone URL in https, ssh, or
// scp-like form ("git@github.com:owner/name.git").
func ParseURL(rawURL string) (owner, name string, ok bool) {
	s := strings.TrimSpace(rawURL)
	s = strings.TrimSuffix(strings.TrimSuffix(s, "/"), ".git")

	if i := strings.Index(s, "://"); i >= 0 {
		s = s[i+3:]
		// host[:port]/owner/name
		if j := strings.Index(s, "/"); j >= 0 {
			s = s[j+1:]
		} else {
			return "", "", false
		}
	} else if i := strings.Index(s, ":"); i >= 0 {
		s = s[i+1:]
	} else {
		return "", "", false
	}

	parts := strings.Split(s, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	owner, name = parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || name == "" {
		return "", "", false
	}
	return owner, name, true
}
