// Package errors provides centralized error definitions and error handling utilities
// for subforge. It defines the provisioning and submodule lifecycle error taxonomy,
// domain error types with context wrapping, and classification helpers used by the
// CLI to decide between aborting and continuing.
//
// # Error Types
//
// Domain-specific errors describe which collaborator failed:
//   - WorkspaceError: the workspace root could not be located or validated
//   - RemoteError: the remote hosting API rejected a request
//   - GitError: a git invocation failed
//   - SubmoduleError: a submodule lifecycle step failed
//
// Warning wraps a recoverable condition together with the exact manual commands
// that finish the job (push failures, submodule registration failures, conflicts).
//
// # Usage
//
//	err := errors.NewRemoteError("create repository", errors.ErrRepoNameConflict).
//		WithOwner("acme").WithRepo("app").WithStatus(422)
//
//	if errors.Is(err, errors.ErrRepoNameConflict) { ... }
//
//	var w *errors.Warning
//	if errors.As(err, &w) {
//		for _, line := range w.Remediation { fmt.Println(line) }
//	}
//
// # Classification
//
// Fatal errors abort the current operation. Recoverable errors are Warnings:
// they are logged inline and turn into a non-zero exit at the end of the run.
// Kind returns the short tag printed in front of CLI error messages.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational conditions such as a remote fallback.
	SeverityInfo
	// SeverityWarning is for recoverable conditions that still fail the run.
	SeverityWarning
	// SeverityError is for errors that abort the current operation.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Fatal provisioning errors
var (
	// ErrNotAWorkspace indicates that no candidate directory carries the workspace marker.
	ErrNotAWorkspace = New("not a workspace")
	// ErrDirectoryExists indicates that the project directory is already present.
	ErrDirectoryExists = New("directory already exists")
	// ErrRepoNameConflict indicates that the remote repository name is taken.
	ErrRepoNameConflict = New("repository name already exists")
	// ErrAuthInvalid indicates that the access token was rejected.
	ErrAuthInvalid = New("authentication invalid")
	// ErrRateLimited indicates that the hosting API rate limit was hit.
	ErrRateLimited = New("rate limited")
)

// Remote classification errors
var (
	// ErrPermissionDenied indicates the token may not act on the owner.
	ErrPermissionDenied = New("permission denied")
	// ErrNotFound indicates the owner or repository does not exist.
	ErrNotFound = New("not found")
)

// Recoverable errors
var (
	// ErrRemoteFallback marks a notice that the repository was created under the personal account.
	ErrRemoteFallback = New("fell back to personal account")
	// ErrPushFailed indicates that no candidate branch could be pushed.
	ErrPushFailed = New("push failed")
	// ErrSubmoduleRegistration indicates that both submodule add attempts failed.
	ErrSubmoduleRegistration = New("submodule registration failed")
	// ErrSubmoduleConflict indicates local work that blocks an update.
	ErrSubmoduleConflict = New("submodule has local changes")
)

// Submodule request errors
var (
	// ErrSubmoduleNotFound indicates that no registered submodule matches the request.
	ErrSubmoduleNotFound = New("submodule not found")
	// ErrAmbiguousSubmodule indicates that a short name matches several submodules.
	ErrAmbiguousSubmodule = New("submodule name is ambiguous")
	// ErrAborted indicates that the user declined a confirmation.
	ErrAborted = New("aborted by user")
)

// General sentinel errors
var (
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
	// ErrOperationFailed indicates a general operation failure.
	ErrOperationFailed = New("operation failed")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// SubforgeError is the base interface for all subforge errors.
type SubforgeError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Is reports whether this error matches the target error.
	Is(target error) bool

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if re-running the tool may succeed.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

func formatPrefix(kind string, parts []string) string {
	if len(parts) == 0 {
		return kind
	}
	return fmt.Sprintf("%s [%s]", kind, strings.Join(parts, ", "))
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// WorkspaceError represents a failure to locate or validate the workspace root.
//
// Example:
//
//	err := errors.NewWorkspaceError("no workspace marker found", errors.ErrNotAWorkspace).
//		WithStartDir("/home/alice/src/app").WithMarker(".subforge")
type WorkspaceError struct {
	baseError
	StartDir   string
	Marker     string
	Candidates []string
}

// NewWorkspaceError creates a new WorkspaceError.
func NewWorkspaceError(message string, cause error) *WorkspaceError {
	return &WorkspaceError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithStartDir records the directory the lookup started from.
func (e *WorkspaceError) WithStartDir(dir string) *WorkspaceError {
	e.StartDir = dir
	return e
}

// WithMarker records the marker directory that was searched for.
func (e *WorkspaceError) WithMarker(marker string) *WorkspaceError {
	e.Marker = marker
	return e
}

// WithCandidates records every directory that was checked.
func (e *WorkspaceError) WithCandidates(candidates []string) *WorkspaceError {
	e.Candidates = candidates
	return e
}

// Error returns the formatted error message.
func (e *WorkspaceError) Error() string {
	var parts []string
	if e.StartDir != "" {
		parts = append(parts, "from="+e.StartDir)
	}
	if e.Marker != "" {
		parts = append(parts, "marker="+e.Marker)
	}
	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if len(e.Candidates) > 0 {
		msg = fmt.Sprintf("%s (checked: %s)", msg, strings.Join(e.Candidates, ", "))
	}
	return fmt.Sprintf("%s: %s", formatPrefix("workspace error", parts), msg)
}

// Is checks if this error matches the target.
func (e *WorkspaceError) Is(target error) bool {
	if _, ok := target.(*WorkspaceError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// RemoteError represents a rejected request to the remote hosting API.
//
// Example:
//
//	err := errors.NewRemoteError("create repository", errors.ErrPermissionDenied).
//		WithOwner("acme").WithRepo("app").WithStatus(403)
type RemoteError struct {
	baseError
	Owner      string
	Repo       string
	StatusCode int
}

// NewRemoteError creates a new RemoteError.
func NewRemoteError(message string, cause error) *RemoteError {
	return &RemoteError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithOwner adds the repository owner to the error context.
func (e *RemoteError) WithOwner(owner string) *RemoteError {
	e.Owner = owner
	return e
}

// WithRepo adds the repository name to the error context.
func (e *RemoteError) WithRepo(repo string) *RemoteError {
	e.Repo = repo
	return e
}

// WithStatus adds the HTTP status code to the error context.
func (e *RemoteError) WithStatus(code int) *RemoteError {
	e.StatusCode = code
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *RemoteError) WithRetryable(r bool) *RemoteError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *RemoteError) Error() string {
	var parts []string
	if e.Owner != "" || e.Repo != "" {
		parts = append(parts, fmt.Sprintf("repo=%s/%s", e.Owner, e.Repo))
	}
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	prefix := formatPrefix("remote error", parts)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *RemoteError) Is(target error) bool {
	if _, ok := target.(*RemoteError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// GitError represents errors related to git operations.
//
// Example:
//
//	err := errors.NewGitError("failed to push", baseErr).
//		WithRepository("/ws/apps/app").WithBranch("main")
type GitError struct {
	baseError
	Branch     string
	Repository string
	Args       []string
	GitOutput  string // Captured git command output
}

// NewGitError creates a new GitError.
func NewGitError(message string, cause error) *GitError {
	return &GitError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithBranch adds a branch name to the error context.
func (e *GitError) WithBranch(branch string) *GitError {
	e.Branch = branch
	return e
}

// WithRepository adds a repository path to the error context.
func (e *GitError) WithRepository(path string) *GitError {
	e.Repository = path
	return e
}

// WithArgs records the git arguments that failed.
func (e *GitError) WithArgs(args []string) *GitError {
	e.Args = args
	return e
}

// WithGitOutput adds git command output to the error context.
func (e *GitError) WithGitOutput(output string) *GitError {
	e.GitOutput = strings.TrimSpace(output)
	return e
}

// Error returns the formatted error message.
func (e *GitError) Error() string {
	var parts []string
	if e.Branch != "" {
		parts = append(parts, "branch="+e.Branch)
	}
	if e.Repository != "" {
		parts = append(parts, "repo="+e.Repository)
	}

	msg := e.message
	if e.cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.cause)
	}
	if e.GitOutput != "" {
		msg = fmt.Sprintf("%s\ngit output: %s", msg, e.GitOutput)
	}

	return fmt.Sprintf("%s: %s", formatPrefix("git error", parts), msg)
}

// Is checks if this error matches the target.
func (e *GitError) Is(target error) bool {
	if _, ok := target.(*GitError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// SubmoduleError represents a failed step of a submodule lifecycle operation.
//
// Example:
//
//	err := errors.NewSubmoduleError("remove", errors.ErrSubmoduleNotFound).WithPath("libs/core")
type SubmoduleError struct {
	baseError
	Path string
	Step string
}

// NewSubmoduleError creates a new SubmoduleError.
func NewSubmoduleError(message string, cause error) *SubmoduleError {
	return &SubmoduleError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithPath adds the submodule path to the error context.
func (e *SubmoduleError) WithPath(path string) *SubmoduleError {
	e.Path = path
	return e
}

// WithStep records the lifecycle step that failed.
func (e *SubmoduleError) WithStep(step string) *SubmoduleError {
	e.Step = step
	return e
}

// Error returns the formatted error message.
func (e *SubmoduleError) Error() string {
	var parts []string
	if e.Path != "" {
		parts = append(parts, "path="+e.Path)
	}
	if e.Step != "" {
		parts = append(parts, "step="+e.Step)
	}
	prefix := formatPrefix("submodule error", parts)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SubmoduleError) Is(target error) bool {
	if _, ok := target.(*SubmoduleError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Recoverable Conditions
// -----------------------------------------------------------------------------

// Warning is a recoverable condition. The operation continues, the run ends
// with a non-zero exit, and Remediation holds the commands that finish the
// job by hand.
//
// Example:
//
//	w := errors.NewWarning("push", errors.ErrPushFailed).
//		WithRemediation("cd apps/app", "git push -u origin main")
type Warning struct {
	baseError
	Op          string
	Remediation []string
}

// NewWarning creates a new Warning for the given operation.
func NewWarning(op string, cause error) *Warning {
	return &Warning{
		baseError: baseError{
			message:    op,
			cause:      cause,
			severity:   SeverityWarning,
			retryable:  true,
			userFacing: true,
		},
		Op: op,
	}
}

// WithRemediation sets the manual commands that complete the operation.
func (w *Warning) WithRemediation(lines ...string) *Warning {
	w.Remediation = append(w.Remediation, lines...)
	return w
}

// WithSeverity sets the warning severity. Notices use SeverityInfo.
func (w *Warning) WithSeverity(s Severity) *Warning {
	w.severity = s
	return w
}

// Error returns the formatted warning message.
func (w *Warning) Error() string {
	if w.cause != nil {
		return fmt.Sprintf("warning [%s]: %v", w.Op, w.cause)
	}
	return fmt.Sprintf("warning [%s]", w.Op)
}

// Is checks if this error matches the target.
func (w *Warning) Is(target error) bool {
	if t, ok := target.(*Warning); ok {
		return t == w
	}
	return w.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// kinds maps sentinels to the tag printed by the CLI. Order matters: the
// first match wins, so more specific sentinels come first.
var kinds = []struct {
	err  error
	kind string
}{
	{ErrNotAWorkspace, "not-a-workspace"},
	{ErrDirectoryExists, "directory-exists"},
	{ErrRepoNameConflict, "repo-name-conflict"},
	{ErrAuthInvalid, "auth-invalid"},
	{ErrRateLimited, "rate-limited"},
	{ErrPermissionDenied, "permission-denied"},
	{ErrRemoteFallback, "remote-fallback"},
	{ErrPushFailed, "push-failed"},
	{ErrSubmoduleRegistration, "submodule-registration"},
	{ErrSubmoduleConflict, "submodule-conflict"},
	{ErrSubmoduleNotFound, "submodule-not-found"},
	{ErrAmbiguousSubmodule, "ambiguous-submodule"},
	{ErrAborted, "aborted"},
	{ErrInvalidInput, "invalid-input"},
	{ErrNotFound, "not-found"},
}

// Kind returns the short error-kind tag for err, used to prefix CLI messages.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if Is(err, k.err) {
			return k.kind
		}
	}

	var gitErr *GitError
	var remoteErr *RemoteError
	var subErr *SubmoduleError
	switch {
	case As(err, &gitErr):
		return "git"
	case As(err, &remoteErr):
		return "remote"
	case As(err, &subErr):
		return "submodule"
	}
	return "error"
}

// IsRecoverable reports whether err is a Warning, meaning the surrounding
// operation should continue.
func IsRecoverable(err error) bool {
	var w *Warning
	return As(err, &w)
}

// RemediationOf returns the manual commands attached to err, if any.
func RemediationOf(err error) []string {
	var w *Warning
	if As(err, &w) {
		return w.Remediation
	}
	return nil
}

// IsRetryable returns true if re-running the tool may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var subforgeErr SubforgeError
	if As(err, &subforgeErr) {
		return subforgeErr.IsRetryable()
	}
	return Is(err, ErrRateLimited)
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var subforgeErr SubforgeError
	if As(err, &subforgeErr) {
		return subforgeErr.IsUserFacing()
	}
	return false
}

// GetSeverity returns the severity level of the error.
// Returns SeverityError for errors that don't implement SubforgeError.
func GetSeverity(err error) Severity {
	if err == nil {
		return SeverityDebug
	}
	var subforgeErr SubforgeError
	if As(err, &subforgeErr) {
		return subforgeErr.Severity()
	}
	return SeverityError
}

// Wrap wraps an error with additional context message.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
