package remote

import (
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/subforge/internal/errors"
)

// fakeHost is a scripted Host. Each create call pops the next error for
// that path; a nil error creates the repository.
type fakeHost struct {
	login      string
	orgs       map[string]bool
	orgErr     error
	orgCreate  []error
	userCreate []error
	forkErrs   map[string]error
	calls      []string
}

func (h *fakeHost) OrganizationExists(_ context.Context, org string) (bool, error) {
	h.calls = append(h.calls, "org-exists "+org)
	if h.orgErr != nil {
		return false, h.orgErr
	}
	return h.orgs[org], nil
}

func (h *fakeHost) CreateRepository(_ context.Context, owner string, spec RepoSpec) (*Repository, error) {
	h.calls = append(h.calls, "create "+owner+"/"+spec.Name)
	if len(h.orgCreate) > 0 {
		err := h.orgCreate[0]
		h.orgCreate = h.orgCreate[1:]
		if err != nil {
			return nil, err
		}
	}
	return testRepo(owner, spec.Name), nil
}

func (h *fakeHost) CreateRepositoryForAuthenticatedUser(_ context.Context, spec RepoSpec) (*Repository, error) {
	h.calls = append(h.calls, "create-user "+spec.Name)
	if len(h.userCreate) > 0 {
		err := h.userCreate[0]
		h.userCreate = h.userCreate[1:]
		if err != nil {
			return nil, err
		}
	}
	return testRepo(h.login, spec.Name), nil
}

func (h *fakeHost) CreateFork(_ context.Context, owner, repo, targetOrg string) (*Repository, error) {
	h.calls = append(h.calls, fmt.Sprintf("fork %s/%s -> %q", owner, repo, targetOrg))
	if err := h.forkErrs[targetOrg]; err != nil {
		return nil, err
	}
	dest := targetOrg
	if dest == "" {
		dest = h.login
	}
	return testRepo(dest, repo), nil
}

func (h *fakeHost) AuthenticatedUser(context.Context) (string, error) {
	return h.login, nil
}

func (h *fakeHost) LatestRelease(context.Context, string, string) (*Release, error) {
	return nil, errors.ErrNotFound
}

func (h *fakeHost) DownloadAsset(context.Context, string, string, int64) (io.ReadCloser, error) {
	return nil, errors.ErrNotFound
}

func testRepo(owner, name string) *Repository {
	return &Repository{
		Owner:    owner,
		Name:     name,
		CloneURL: fmt.Sprintf("https://github.com/%s/%s.git", owner, name),
		SSHURL:   fmt.Sprintf("git@github.com:%s/%s.git", owner, name),
	}
}

func hostErr(sentinel error, status int) error {
	return errors.NewRemoteError("create repository", sentinel).WithStatus(status)
}

func TestProvisioner_Create(t *testing.T) {
	request := Request{Owner: "acme", Name: "app", Description: "demo", Private: true, PreferOrg: true}

	tests := []struct {
		name         string
		host         *fakeHost
		req          Request
		wantRepo     string
		wantFellBack bool
		wantErr      error
		wantCalls    []string
	}{
		{
			name:      "org creation succeeds",
			host:      &fakeHost{login: "alice", orgs: map[string]bool{"acme": true}},
			req:       request,
			wantRepo:  "acme/app",
			wantCalls: []string{"org-exists acme", "create acme/app"},
		},
		{
			name:         "org permission denied falls back",
			host:         &fakeHost{login: "alice", orgs: map[string]bool{"acme": true}, orgCreate: []error{hostErr(errors.ErrPermissionDenied, 403)}},
			req:          request,
			wantRepo:     "alice/app",
			wantFellBack: true,
			wantCalls:    []string{"org-exists acme", "create acme/app", "create-user app"},
		},
		{
			name:         "missing org falls back without create attempt",
			host:         &fakeHost{login: "alice", orgs: map[string]bool{}},
			req:          request,
			wantRepo:     "alice/app",
			wantFellBack: true,
			wantCalls:    []string{"org-exists acme", "create-user app"},
		},
		{
			name:      "org name conflict is fatal",
			host:      &fakeHost{login: "alice", orgs: map[string]bool{"acme": true}, orgCreate: []error{hostErr(errors.ErrRepoNameConflict, 422)}},
			req:       request,
			wantErr:   errors.ErrRepoNameConflict,
			wantCalls: []string{"org-exists acme", "create acme/app"},
		},
		{
			name:      "org rate limit is fatal",
			host:      &fakeHost{login: "alice", orgs: map[string]bool{"acme": true}, orgCreate: []error{hostErr(errors.ErrRateLimited, 403)}},
			req:       request,
			wantErr:   errors.ErrRateLimited,
			wantCalls: []string{"org-exists acme", "create acme/app"},
		},
		{
			name:      "invalid token is fatal",
			host:      &fakeHost{login: "alice", orgErr: hostErr(errors.ErrAuthInvalid, 401)},
			req:       request,
			wantErr:   errors.ErrAuthInvalid,
			wantCalls: []string{"org-exists acme"},
		},
		{
			name: "fallback name conflict is fatal",
			host: &fakeHost{
				login:      "alice",
				orgs:       map[string]bool{"acme": true},
				orgCreate:  []error{hostErr(errors.ErrPermissionDenied, 403)},
				userCreate: []error{hostErr(errors.ErrRepoNameConflict, 422)},
			},
			req:       request,
			wantErr:   errors.ErrRepoNameConflict,
			wantCalls: []string{"org-exists acme", "create acme/app", "create-user app"},
		},
		{
			name:      "personal request",
			host:      &fakeHost{login: "alice"},
			req:       Request{Name: "app"},
			wantRepo:  "alice/app",
			wantCalls: []string{"create-user app"},
		},
		{
			name:      "owner equal to login is not a fallback",
			host:      &fakeHost{login: "alice"},
			req:       Request{Owner: "Alice", Name: "app", PreferOrg: true},
			wantRepo:  "alice/app",
			wantCalls: []string{"org-exists Alice", "create-user app"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProvisioner(tt.host, nil)
			result, err := p.Create(context.Background(), tt.req)

			if diff := cmp.Diff(tt.wantCalls, tt.host.calls); diff != "" {
				t.Errorf("host calls mismatch (-want +got):\n%s", diff)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Create() error = %v, want %v", err, tt.wantErr)
				}
				if result != nil {
					t.Errorf("Create() result = %+v, want nil on error", result)
				}
				return
			}
			if err != nil {
				t.Fatalf("Create() error = %v", err)
			}
			if got := result.Repository.FullName(); got != tt.wantRepo {
				t.Errorf("Repository = %s, want %s", got, tt.wantRepo)
			}
			if result.FellBack != tt.wantFellBack {
				t.Errorf("FellBack = %v, want %v", result.FellBack, tt.wantFellBack)
			}
			if tt.wantFellBack {
				if !errors.Is(result.Notice, errors.ErrRemoteFallback) {
					t.Errorf("Notice = %v, want ErrRemoteFallback", result.Notice)
				}
				if errors.GetSeverity(result.Notice) != errors.SeverityInfo {
					t.Errorf("Notice severity = %v, want info", errors.GetSeverity(result.Notice))
				}
			} else if result.Notice != nil {
				t.Errorf("Notice = %v, want nil", result.Notice)
			}
		})
	}
}

func TestProvisioner_Create_ActualIdentityWins(t *testing.T) {
	host := &fakeHost{login: "alice", orgs: map[string]bool{"acme": true}, orgCreate: []error{hostErr(errors.ErrPermissionDenied, 403)}}
	result, err := NewProvisioner(host, nil).Create(context.Background(), Request{Owner: "acme", Name: "app", PreferOrg: true})
	if err != nil {
		t.Fatal(err)
	}
	if got := result.Repository.URL(false); got != "https://github.com/alice/app.git" {
		t.Errorf("clone URL = %s, want the personal repository", got)
	}
}

func TestProvisioner_Fork(t *testing.T) {
	t.Run("into org", func(t *testing.T) {
		host := &fakeHost{login: "alice"}
		result, err := NewProvisioner(host, nil).Fork(context.Background(), "upstream", "tool", "acme")
		if err != nil {
			t.Fatal(err)
		}
		if result.Repository.FullName() != "acme/tool" || result.FellBack {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("org denied falls back", func(t *testing.T) {
		host := &fakeHost{login: "alice", forkErrs: map[string]error{"acme": hostErr(errors.ErrPermissionDenied, 403)}}
		result, err := NewProvisioner(host, nil).Fork(context.Background(), "upstream", "tool", "acme")
		if err != nil {
			t.Fatal(err)
		}
		if result.Repository.FullName() != "alice/tool" || !result.FellBack {
			t.Errorf("result = %+v", result)
		}
		want := []string{`fork upstream/tool -> "acme"`, `fork upstream/tool -> ""`}
		if diff := cmp.Diff(want, host.calls); diff != "" {
			t.Errorf("calls mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("auth failure is fatal", func(t *testing.T) {
		host := &fakeHost{login: "alice", forkErrs: map[string]error{"acme": hostErr(errors.ErrAuthInvalid, 401)}}
		_, err := NewProvisioner(host, nil).Fork(context.Background(), "upstream", "tool", "acme")
		if !errors.Is(err, errors.ErrAuthInvalid) {
			t.Errorf("Fork() error = %v, want ErrAuthInvalid", err)
		}
		if len(host.calls) != 1 {
			t.Errorf("calls = %v, want a single attempt", host.calls)
		}
	})
}
