package submodule

import (
	"context"
	"fmt"

	"github.com/Iron-Ham/subforge/internal/errors"
	"github.com/Iron-Ham/subforge/internal/logging"
	"github.com/Iron-Ham/subforge/internal/vcs"
)

// UpdateStatus is the result of updating one submodule.
type UpdateStatus string

const (
	StatusUpdated         UpdateStatus = "updated"
	StatusUnchanged       UpdateStatus = "unchanged"
	StatusSkippedConflict UpdateStatus = "skippedConflict"
	StatusFailed          UpdateStatus = "failed"
)

// UpdateOutcome describes what happened to one submodule.
type UpdateOutcome struct {
	Path           string
	Status         UpdateStatus
	Branch         string
	PreviousCommit string
	NewCommit      string
	Reason         string
	Remediation    []string
}

// UpdateReport collects the outcome of every submodule in an update run.
type UpdateReport struct {
	Outcomes []UpdateOutcome
}

// OK reports whether every submodule was updated or already current.
func (r *UpdateReport) OK() bool {
	for _, o := range r.Outcomes {
		if o.Status == StatusSkippedConflict || o.Status == StatusFailed {
			return false
		}
	}
	return true
}

// Err summarizes skipped and failed submodules as a single error, or nil.
func (r *UpdateReport) Err() error {
	var errs []error
	for _, o := range r.Outcomes {
		switch o.Status {
		case StatusSkippedConflict:
			errs = append(errs, errors.NewSubmoduleError(o.Reason, errors.ErrSubmoduleConflict).WithPath(o.Path).WithStep("update"))
		case StatusFailed:
			errs = append(errs, errors.NewSubmoduleError(o.Reason, errors.ErrOperationFailed).WithPath(o.Path).WithStep("update"))
		}
	}
	return errors.Join(errs...)
}

// Update fast-forwards submodules to their upstreams. An empty target
// updates every submodule; otherwise target is resolved like Resolve.
// Submodules are processed one at a time and a problem with one never
// stops the others. Local work is never discarded: dirty or diverged
// submodules are skipped with remediation commands.
func (m *Manager) Update(ctx context.Context, target string) (*UpdateReport, error) {
	statuses, err := m.git.SubmoduleStatus(ctx, m.ws.Root)
	if err != nil {
		return nil, err
	}
	declared, err := m.git.Submodules(ctx, m.ws.Root)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read .gitmodules")
	}
	byPath := make(map[string]vcs.SubmoduleInfo, len(declared))
	for _, info := range declared {
		byPath[info.Path] = info
	}

	selected := statuses
	if target != "" {
		info, err := m.resolve(ctx, target)
		if err != nil {
			return nil, err
		}
		selected = nil
		for _, st := range statuses {
			if st.Path == info.Path {
				selected = append(selected, st)
			}
		}
		if len(selected) == 0 {
			// Declared in .gitmodules but unknown to the index.
			selected = []vcs.SubmoduleStatusInfo{{Path: info.Path, State: vcs.SubmoduleNotInitialized}}
		}
	}

	report := &UpdateReport{}
	for _, st := range selected {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		info := byPath[st.Path]
		if info.Path == "" {
			info.Path = st.Path
		}
		outcome := m.updateOne(ctx, info, st.State)
		m.logger.WithSubmodule(st.Path).Info("submodule update finished",
			"status", string(outcome.Status), "from", outcome.PreviousCommit, "to", outcome.NewCommit)
		report.Outcomes = append(report.Outcomes, outcome)
	}
	return report, nil
}

func (m *Manager) updateOne(ctx context.Context, info vcs.SubmoduleInfo, state vcs.SubmoduleState) UpdateOutcome {
	logger := m.logger.WithSubmodule(info.Path)
	dir := m.ws.Abs(info.Path)
	outcome := UpdateOutcome{Path: info.Path}

	fail := func(reason string, err error, remediation ...string) UpdateOutcome {
		outcome.Status = StatusFailed
		outcome.Reason = reason
		if err != nil {
			outcome.Reason = fmt.Sprintf("%s: %v", reason, err)
		}
		outcome.Remediation = remediation
		logger.Warn("submodule update failed", "reason", outcome.Reason)
		return outcome
	}
	skip := func(reason string, remediation ...string) UpdateOutcome {
		outcome.Status = StatusSkippedConflict
		outcome.Reason = reason
		outcome.Remediation = remediation
		return outcome
	}

	if state == vcs.SubmoduleMergeConflict {
		return skip("submodule has a merge conflict in the workspace",
			"cd "+m.ws.Root,
			"git status   # resolve the conflict on "+info.Path+", then git add "+info.Path)
	}
	if state == vcs.SubmoduleNotInitialized {
		logger.Debug("initializing submodule")
		if err := m.git.SubmoduleInit(ctx, m.ws.Root, info.Path); err != nil {
			return fail("failed to initialize", err, "cd "+m.ws.Root, "git submodule update --init -- "+info.Path)
		}
	}

	prev, err := m.git.HeadCommit(ctx, dir)
	if err != nil {
		return fail("failed to read HEAD", err)
	}
	outcome.PreviousCommit = shortSHA(prev)
	outcome.NewCommit = outcome.PreviousCommit

	if err := m.git.FetchAll(ctx, dir); err != nil {
		return fail("fetch failed", err, "cd "+dir, "git fetch --all --prune --tags")
	}
	if err := m.trackRemoteBranches(ctx, dir, logger); err != nil {
		return fail("failed to create tracking branches", err)
	}

	dirty, err := m.git.HasUncommittedChanges(ctx, dir)
	if err != nil {
		return fail("failed to read working tree status", err)
	}
	if dirty {
		return skip("uncommitted changes",
			"cd "+dir,
			"git stash   # or commit the changes",
			"subforge submodule update "+info.Path)
	}

	branch, err := m.git.CurrentBranch(ctx, dir)
	if err != nil {
		return fail("failed to read current branch", err)
	}
	if branch == "" {
		var orphaned int
		branch, orphaned, err = m.attachHead(ctx, dir, info)
		if err != nil {
			return fail("failed to leave detached HEAD", err, "cd "+dir, "git checkout <branch>")
		}
		if branch == "" {
			return fail("detached HEAD and no branch to check out", nil, "cd "+dir, "git checkout <branch>")
		}
		if orphaned > 0 {
			return skip(fmt.Sprintf("detached HEAD has %d commit(s) not on %s", orphaned, branch),
				"cd "+dir,
				"git branch <name> HEAD   # keep the detached commits on a branch",
				"git checkout "+branch,
				"subforge submodule update "+info.Path)
		}
	}
	outcome.Branch = branch

	upstream, err := m.git.Upstream(ctx, dir)
	if err != nil {
		return fail("failed to read upstream", err)
	}
	if upstream == "" {
		return fail("no tracking branch", nil,
			"cd "+dir,
			"git branch --set-upstream-to origin/"+branch)
	}

	ahead, err := m.git.CountCommitsBetween(ctx, dir, "@{u}", "HEAD")
	if err != nil {
		return fail("failed to compare with "+upstream, err)
	}
	if ahead > 0 {
		return skip(fmt.Sprintf("%d local commit(s) not on %s", ahead, upstream),
			"cd "+dir,
			"git push   # publish the local commits",
			"git reset --hard "+upstream+"   # or discard them")
	}

	if err := m.git.MergeFastForwardOnly(ctx, dir, "@{u}"); err != nil {
		return fail("fast-forward to "+upstream+" failed", err, "cd "+dir, "git merge --ff-only "+upstream)
	}

	head, err := m.git.HeadCommit(ctx, dir)
	if err != nil {
		return fail("failed to read HEAD", err)
	}
	outcome.NewCommit = shortSHA(head)
	if head != prev {
		outcome.Status = StatusUpdated
	} else {
		outcome.Status = StatusUnchanged
	}
	return outcome
}

// trackRemoteBranches creates a local tracking branch for every remote
// branch that has none. The first remote to offer a name wins.
func (m *Manager) trackRemoteBranches(ctx context.Context, dir string, logger *logging.Logger) error {
	local, err := m.git.ListLocalBranches(ctx, dir)
	if err != nil {
		return err
	}
	have := make(map[string]bool, len(local))
	for _, b := range local {
		have[b] = true
	}

	remoteBranches, err := m.git.ListRemoteBranches(ctx, dir)
	if err != nil {
		return err
	}
	for _, rb := range remoteBranches {
		if have[rb.Branch] {
			continue
		}
		if err := m.git.CreateTrackingBranch(ctx, dir, rb.Branch, rb.String()); err != nil {
			return err
		}
		have[rb.Branch] = true
		logger.Debug("created tracking branch", "branch", rb.Branch, "upstream", rb.String())
	}
	return nil
}

// attachHead checks out the branch a detached submodule should follow:
// the .gitmodules branch, else the remote default branch. It returns ""
// when neither exists locally. When the detached HEAD carries commits that
// are on neither that branch nor its upstream, nothing is checked out and
// the number of such commits is returned.
func (m *Manager) attachHead(ctx context.Context, dir string, info vcs.SubmoduleInfo) (string, int, error) {
	candidates := []string{info.Branch}
	if def, err := m.git.DefaultBranch(ctx, dir, "origin"); err == nil {
		candidates = append(candidates, def)
	}

	local, err := m.git.ListLocalBranches(ctx, dir)
	if err != nil {
		return "", 0, err
	}
	exists := make(map[string]bool, len(local))
	for _, b := range local {
		exists[b] = true
	}

	for _, branch := range candidates {
		// "." means "same as the workspace branch", which has no meaning
		// for an independent repository.
		if branch == "" || branch == "." || !exists[branch] {
			continue
		}
		orphaned, err := m.detachedCommits(ctx, dir, branch)
		if err != nil {
			return "", 0, err
		}
		if orphaned > 0 {
			return branch, orphaned, nil
		}
		if err := m.git.Checkout(ctx, dir, branch); err != nil {
			return "", 0, err
		}
		return branch, 0, nil
	}
	return "", 0, nil
}

// detachedCommits counts the commits on HEAD that checking out branch
// would leave on no branch. Commits already on the branch's upstream are
// not counted, since the following fast-forward brings them back.
func (m *Manager) detachedCommits(ctx context.Context, dir, branch string) (int, error) {
	n, err := m.git.CountCommitsBetween(ctx, dir, branch, "HEAD")
	if err != nil || n == 0 {
		return n, err
	}
	if upstream, err := m.git.CountCommitsBetween(ctx, dir, branch+"@{u}", "HEAD"); err == nil {
		return upstream, nil
	}
	return n, nil
}
