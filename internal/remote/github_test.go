package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Iron-Ham/subforge/internal/errors"
)

// newTestHost starts an httptest server serving mux and returns a host
// pointed at it.
func newTestHost(t *testing.T, mux *http.ServeMux) *GitHubHost {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	host, err := NewGitHubHost(context.Background(), "test-token", srv.URL)
	if err != nil {
		t.Fatalf("NewGitHubHost() error = %v", err)
	}
	return host
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func repoJSON(owner, name string) map[string]any {
	return map[string]any{
		"name":      name,
		"owner":     map[string]any{"login": owner},
		"clone_url": fmt.Sprintf("https://github.com/%s/%s.git", owner, name),
		"ssh_url":   fmt.Sprintf("git@github.com:%s/%s.git", owner, name),
		"html_url":  fmt.Sprintf("https://github.com/%s/%s", owner, name),
	}
}

func TestGitHubHost_CreateRepository(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme/repos", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("Authorization = %q", got)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["name"] != "app" || body["private"] != true || body["description"] != "demo" {
			t.Errorf("request body = %v", body)
		}
		writeJSON(w, http.StatusCreated, repoJSON("acme", "app"))
	})

	host := newTestHost(t, mux)
	repo, err := host.CreateRepository(context.Background(), "acme", RepoSpec{Name: "app", Description: "demo", Private: true})
	if err != nil {
		t.Fatalf("CreateRepository() error = %v", err)
	}

	want := &Repository{
		Owner:    "acme",
		Name:     "app",
		CloneURL: "https://github.com/acme/app.git",
		SSHURL:   "git@github.com:acme/app.git",
		HTMLURL:  "https://github.com/acme/app",
	}
	if diff := cmp.Diff(want, repo); diff != "" {
		t.Errorf("CreateRepository() mismatch (-want +got):\n%s", diff)
	}
}

func TestGitHubHost_ErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    map[string]any
		headers map[string]string
		want    error
	}{
		{
			name:   "name conflict",
			status: http.StatusUnprocessableEntity,
			body: map[string]any{
				"message": "Repository creation failed.",
				"errors":  []map[string]any{{"resource": "Repository", "code": "custom", "field": "name", "message": "name already exists on this account"}},
			},
			want: errors.ErrRepoNameConflict,
		},
		{
			name:   "other validation failure",
			status: http.StatusUnprocessableEntity,
			body:   map[string]any{"message": "Validation Failed"},
			want:   errors.ErrInvalidInput,
		},
		{
			name:   "bad credentials",
			status: http.StatusUnauthorized,
			body:   map[string]any{"message": "Bad credentials"},
			want:   errors.ErrAuthInvalid,
		},
		{
			name:   "permission denied",
			status: http.StatusForbidden,
			body:   map[string]any{"message": "Resource not accessible by integration"},
			want:   errors.ErrPermissionDenied,
		},
		{
			name:    "primary rate limit",
			status:  http.StatusForbidden,
			body:    map[string]any{"message": "API rate limit exceeded for user ID 1."},
			headers: map[string]string{"X-RateLimit-Remaining": "0", "X-RateLimit-Reset": "1700000000"},
			want:    errors.ErrRateLimited,
		},
		{
			name:   "too many requests",
			status: http.StatusTooManyRequests,
			body:   map[string]any{"message": "slow down"},
			want:   errors.ErrRateLimited,
		},
		{
			name:   "not found",
			status: http.StatusNotFound,
			body:   map[string]any{"message": "Not Found"},
			want:   errors.ErrNotFound,
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   map[string]any{"message": "boom"},
			want:   errors.ErrOperationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mux := http.NewServeMux()
			mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
				for k, v := range tt.headers {
					w.Header().Set(k, v)
				}
				writeJSON(w, tt.status, tt.body)
			})
			host := newTestHost(t, mux)

			_, err := host.CreateRepositoryForAuthenticatedUser(context.Background(), RepoSpec{Name: "app"})
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
			var remoteErr *errors.RemoteError
			if !errors.As(err, &remoteErr) {
				t.Fatalf("error type = %T, want *errors.RemoteError", err)
			}
			if remoteErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", remoteErr.StatusCode, tt.status)
			}
		})
	}
}

func TestGitHubHost_OrganizationExists(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/acme", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"login": "acme"})
	})
	mux.HandleFunc("/orgs/ghost", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "Not Found"})
	})
	mux.HandleFunc("/orgs/locked", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "Bad credentials"})
	})
	host := newTestHost(t, mux)
	ctx := context.Background()

	if ok, err := host.OrganizationExists(ctx, "acme"); !ok || err != nil {
		t.Errorf("OrganizationExists(acme) = %v, %v", ok, err)
	}
	if ok, err := host.OrganizationExists(ctx, "ghost"); ok || err != nil {
		t.Errorf("OrganizationExists(ghost) = %v, %v", ok, err)
	}
	if _, err := host.OrganizationExists(ctx, "locked"); !errors.Is(err, errors.ErrAuthInvalid) {
		t.Errorf("OrganizationExists(locked) error = %v, want ErrAuthInvalid", err)
	}
}

func TestGitHubHost_CreateFork_Accepted(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/upstream/tool/forks", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		org, _ := body["organization"].(string)
		if org == "" {
			org = r.URL.Query().Get("organization")
		}
		if org != "acme" {
			t.Errorf("organization = %q, want acme", org)
		}
		writeJSON(w, http.StatusAccepted, repoJSON("acme", "tool"))
	})
	host := newTestHost(t, mux)

	fork, err := host.CreateFork(context.Background(), "upstream", "tool", "acme")
	if err != nil {
		t.Fatalf("CreateFork() error = %v", err)
	}
	if fork.FullName() != "acme/tool" {
		t.Errorf("FullName() = %q, want acme/tool", fork.FullName())
	}
}

func TestGitHubHost_AuthenticatedUser(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"login": "alice"})
	})
	host := newTestHost(t, mux)

	login, err := host.AuthenticatedUser(context.Background())
	if err != nil || login != "alice" {
		t.Errorf("AuthenticatedUser() = %q, %v", login, err)
	}
}

func TestGitHubHost_LatestReleaseAndDownload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/Iron-Ham/subforge/releases/latest", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"tag_name": "v1.4.0",
			"assets": []map[string]any{
				{"id": 7, "name": "subforge_linux_amd64"},
				{"id": 8, "name": "subforge_darwin_arm64"},
			},
		})
	})
	mux.HandleFunc("/repos/Iron-Ham/subforge/releases/assets/7", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != "application/octet-stream" {
			t.Errorf("Accept = %q", r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("binary"))
	})
	host := newTestHost(t, mux)
	ctx := context.Background()

	rel, err := host.LatestRelease(ctx, "Iron-Ham", "subforge")
	if err != nil {
		t.Fatalf("LatestRelease() error = %v", err)
	}
	asset, ok := rel.FindAsset("subforge_linux_amd64")
	if rel.Tag != "v1.4.0" || !ok || asset.ID != 7 {
		t.Fatalf("release = %+v", rel)
	}

	rc, err := host.DownloadAsset(ctx, "Iron-Ham", "subforge", asset.ID)
	if err != nil {
		t.Fatalf("DownloadAsset() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "binary" {
		t.Errorf("asset content = %q", data)
	}
}

func TestParseFullNameAndURL(t *testing.T) {
	tests := []struct {
		in      string
		owner   string
		name    string
		ok      bool
		fromURL bool
	}{
		{in: "acme/app", owner: "acme", name: "app", ok: true},
		{in: "acme/app.git", owner: "acme", name: "app", ok: true},
		{in: "acme", ok: false},
		{in: "a/b/c", ok: false},
		{in: "https://github.com/acme/app.git", owner: "acme", name: "app", ok: true, fromURL: true},
		{in: "https://ghe.example.com:8443/acme/app/", owner: "acme", name: "app", ok: true, fromURL: true},
		{in: "git@github.com:acme/app.git", owner: "acme", name: "app", ok: true, fromURL: true},
		{in: "ssh://git@github.com/acme/app", owner: "acme", name: "app", ok: true, fromURL: true},
		{in: "not a url", ok: false, fromURL: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			parse := ParseFullName
			if tt.fromURL {
				parse = ParseURL
			}
			owner, name, ok := parse(tt.in)
			if ok != tt.ok || owner != tt.owner || name != tt.name {
				t.Errorf("parse(%q) = %q, %q, %v; want %q, %q, %v", tt.in, owner, name, ok, tt.owner, tt.name, tt.ok)
			}
		})
	}
}

func TestRepository_URL(t *testing.T) {
	r := &Repository{CloneURL: "https://x/a/b.git", SSHURL: "git@x:a/b.git"}
	if r.URL(false) != r.CloneURL || r.URL(true) != r.SSHURL {
		t.Errorf("URL() picked the wrong transport")
	}
	r.SSHURL = ""
	if r.URL(true) != r.CloneURL {
		t.Errorf("URL(true) without SSH URL should fall back to clone URL")
	}
}
