package cmd

import (
	"context"
	"fmt"
	"regexp"

	"github.com/Masterminds/semver/v3"
	"github.com/sourcegraph/conc"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Iron-Ham/subforge/internal/config"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check that git, credentials, and the workspace are usable",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

// minGitVersion is the oldest git with every submodule command used here.
const minGitVersion = "2.20.0"

func init() {
	rootCmd.AddCommand(doctorCmd)
}

// doctorCheck is one diagnostic. run returns a one-line detail on success.
type doctorCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

type doctorResult struct {
	name   string
	detail string
	err    error
}

func runDoctor(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	checks := []doctorCheck{
		{"config", func(ctx context.Context) (string, error) {
			if f := viper.ConfigFileUsed(); f != "" {
				return f, nil
			}
			return "defaults (no " + config.ConfigFile() + ")", nil
		}},
		{"git", a.checkGit},
		{"token", a.checkToken},
		{"workspace", func(ctx context.Context) (string, error) {
			ws, err := a.workspace(ctx)
			if err != nil {
				return "", err
			}
			return ws.Root, nil
		}},
	}

	results := runChecks(cmd.Context(), checks)

	failed := 0
	for _, r := range results {
		if r.err != nil {
			failed++
			a.out.Fail("%s: %v", r.name, r.err)
			continue
		}
		a.out.Success("%s: %s", r.name, r.detail)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d checks failed", failed, len(results))
	}
	return nil
}

// runChecks runs the read-only checks concurrently and returns their
// results in the order given.
func runChecks(ctx context.Context, checks []doctorCheck) []doctorResult {
	results := make([]doctorResult, len(checks))
	var wg conc.WaitGroup
	for i, c := range checks {
		i, c := i, c // per-iteration copies for go < 1.22 loop semantics
		wg.Go(func() {
			detail, err := c.run(ctx)
			results[i] = doctorResult{name: c.name, detail: detail, err: err}
		})
	}
	wg.Wait()
	return results
}

var gitVersionRegex = regexp.MustCompile(`^\d+(\.\d+){0,2}`)

func (a *app) checkGit(ctx context.Context) (string, error) {
	raw, err := a.git.Version(ctx)
	if err != nil {
		return "", err
	}
	return raw, checkGitVersion(raw)
}

// checkGitVersion fails when raw ("2.43.0", "2.39.3.windows.1") is older
// than minGitVersion.
func checkGitVersion(raw string) error {
	v, err := semver.NewVersion(gitVersionRegex.FindString(raw))
	if err != nil {
		return fmt.Errorf("cannot parse git version %q", raw)
	}
	if v.LessThan(semver.MustParse(minGitVersion)) {
		return fmt.Errorf("git %s is older than the required %s", raw, minGitVersion)
	}
	return nil
}

func (a *app) checkToken(ctx context.Context) (string, error) {
	tok, err := a.token(ctx)
	if err != nil {
		return "", err
	}
	host, err := a.host(ctx, false)
	if err != nil {
		return "", err
	}
	login, err := host.AuthenticatedUser(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("authenticated as %s (from %s)", login, tok.Source), nil
}
