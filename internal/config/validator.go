package config

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"slices"
	"strings"
	"time"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "push.branches")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// branchNameRegex is a conservative subset of git's ref name rules.
var branchNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._/-]*$`)

// ownerRepoRegex matches "owner/name".
var ownerRepoRegex = regexp.MustCompile(`^[A-Za-z0-9-]+/[A-Za-z0-9._-]+$`)

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidCredentialBackends returns the list of valid credential backends
func ValidCredentialBackends() []string {
	return []string{"auto", "keyring", "file"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateWorkspace()...)
	errors = append(errors, c.validateGitHub()...)
	errors = append(errors, c.validatePush()...)
	errors = append(errors, c.validateSubmodule()...)

	if !slices.Contains(ValidCredentialBackends(), c.Credentials.Backend) {
		errors = append(errors, ValidationError{
			Field:   "credentials.backend",
			Value:   c.Credentials.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidCredentialBackends(), ", ")),
		})
	}

	if c.Update.Repository != "" && !ownerRepoRegex.MatchString(c.Update.Repository) {
		errors = append(errors, ValidationError{
			Field:   "update.repository",
			Value:   c.Update.Repository,
			Message: "must be in owner/name form",
		})
	}

	errors = append(errors, c.validateLogging()...)

	return errors
}

// validateWorkspace validates the WorkspaceConfig
func (c *Config) validateWorkspace() []ValidationError {
	var errors []ValidationError
	ws := c.Workspace

	if ws.Marker == "" || strings.ContainsAny(ws.Marker, `/\`) || ws.Marker == "." || ws.Marker == ".." {
		errors = append(errors, ValidationError{
			Field:   "workspace.marker",
			Value:   ws.Marker,
			Message: "must be a single directory name",
		})
	}

	for _, name := range ws.CategoryNames() {
		dir := ws.Categories[name]
		cleaned := path.Clean(strings.ReplaceAll(dir, `\`, "/"))
		if dir == "" || path.IsAbs(cleaned) || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
			errors = append(errors, ValidationError{
				Field:   "workspace.categories." + name,
				Value:   dir,
				Message: "must be a relative path inside the workspace",
			})
		}
	}

	if len(ws.Categories) > 0 && ws.DefaultCategory != "" {
		if _, ok := ws.Categories[ws.DefaultCategory]; !ok {
			errors = append(errors, ValidationError{
				Field:   "workspace.default_category",
				Value:   ws.DefaultCategory,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ws.CategoryNames(), ", ")),
			})
		}
	}

	return errors
}

// validateGitHub validates the GitHubConfig
func (c *Config) validateGitHub() []ValidationError {
	var errors []ValidationError
	gh := c.GitHub

	if gh.BaseURL != "" {
		u, err := url.Parse(gh.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errors = append(errors, ValidationError{
				Field:   "github.base_url",
				Value:   gh.BaseURL,
				Message: "must be an absolute http(s) URL",
			})
		}
	}

	if gh.TokenEnv == "" {
		errors = append(errors, ValidationError{
			Field:   "github.token_env",
			Value:   gh.TokenEnv,
			Message: "must name an environment variable",
		})
	}

	return errors
}

// validatePush validates the PushConfig
func (c *Config) validatePush() []ValidationError {
	var errors []ValidationError

	if len(c.Push.Branches) == 0 {
		errors = append(errors, ValidationError{
			Field:   "push.branches",
			Value:   c.Push.Branches,
			Message: "must list at least one branch",
		})
	}
	for i, b := range c.Push.Branches {
		if !branchNameRegex.MatchString(b) || strings.Contains(b, "..") || strings.HasSuffix(b, "/") || strings.HasSuffix(b, ".lock") {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("push.branches[%d]", i),
				Value:   b,
				Message: "is not a valid branch name",
			})
		}
	}

	if strings.TrimSpace(c.Push.CommitMessage) == "" {
		errors = append(errors, ValidationError{
			Field:   "push.commit_message",
			Value:   c.Push.CommitMessage,
			Message: "must not be empty",
		})
	}

	return errors
}

// validateSubmodule validates the SubmoduleConfig
func (c *Config) validateSubmodule() []ValidationError {
	var errors []ValidationError

	const maxDelay = 5 * time.Minute
	if d := c.Submodule.PropagationDelay; d < 0 || d > maxDelay {
		errors = append(errors, ValidationError{
			Field:   "submodule.propagation_delay",
			Value:   d,
			Message: fmt.Sprintf("must be between 0 and %s", maxDelay),
		})
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	// Validate log level
	if c.Logging.Level != "" && !slices.Contains(ValidLogLevels(), c.Logging.Level) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	// Max size must be positive
	if c.Logging.MaxSizeMB <= 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be positive",
		})
	}

	const maxLogSizeMB = 1000
	if c.Logging.MaxSizeMB > maxLogSizeMB {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: fmt.Sprintf("exceeds maximum of %dMB", maxLogSizeMB),
		})
	}

	// Max backups must be non-negative
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	return errors
}
