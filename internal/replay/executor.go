// Package replay drives the commit-replay pipeline: select a window of
// upstream commits, capture the fork's overlay once, then replay each commit
// onto its own branch and force-push it.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/forkops/replay-go/internal/git"
	"github.com/forkops/replay-go/internal/overlay"
)

const (
	upstreamRemote = "upstream"
	pushRemote     = "origin"
)

type Options struct {
	// RepoSlug is the OWNER/REPO slug on the hosting platform; when set the
	// push goes to https://github.com/{slug} instead of the stored origin URL.
	RepoSlug       string
	UpstreamURL    string
	UpstreamBranch string
	// MainBranch is the fork's main line: source of the overlay snapshot and
	// start point for replay branches.
	MainBranch string
	// BranchBase prefixes every replay branch name; empty means a
	// date-stamped default.
	BranchBase  string
	Token       string
	ConfigPath  string
	CIDir       string
	Identity    git.Identity
	CommitDelay time.Duration
	ReplayDays  int
	PushRetries uint64
}

// Executor owns the working repository for the duration of one run. All
// cycles share one working tree, so execution is strictly sequential: a
// cycle's push completes before the next cycle's reset begins.
type Executor struct {
	svc  *git.Service
	opts Options
	log  *slog.Logger

	now     func() time.Time
	sleep   func(time.Duration)
	backOff func() backoff.BackOff
}

func New(svc *git.Service, opts Options, logger *slog.Logger) *Executor {
	if opts.UpstreamBranch == "" {
		opts.UpstreamBranch = "main"
	}
	if opts.MainBranch == "" {
		opts.MainBranch = "main"
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Executor{
		svc:   svc,
		opts:  opts,
		log:   logger,
		now:   time.Now,
		sleep: time.Sleep,
	}
	e.backOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), e.opts.PushRetries)
	}
	return e
}

// Run executes the full pipeline and returns the branch names pushed, in the
// same chronological order as the upstream commits they replay. The first
// unrecovered failure aborts the run; branches already pushed stay pushed.
func (e *Executor) Run(ctx context.Context) ([]string, error) {
	created, err := e.svc.EnsureRemote(upstreamRemote, e.opts.UpstreamURL)
	if err != nil {
		return nil, err
	}
	if !created {
		e.log.Info("upstream remote already exists, reusing it")
	}
	if err := e.svc.FetchBranch(ctx, upstreamRemote, e.opts.UpstreamBranch); err != nil {
		return nil, err
	}

	commits, err := e.selectCommits()
	if err != nil {
		return nil, err
	}
	if len(commits) == 0 {
		e.log.Info("no upstream commits within the replay window",
			slog.Int("replay_days", e.opts.ReplayDays))
		return nil, nil
	}
	e.log.Info("selected upstream commits to replay", slog.Int("count", len(commits)))
	for _, c := range commits {
		e.log.Info("will replay",
			slog.String("commit", c.Hash.String()),
			slog.Time("committed", c.Committer.When))
	}

	mainTip, err := e.svc.BranchTip(e.opts.MainBranch)
	if err != nil {
		return nil, err
	}

	// The overlay is captured exactly once, before the first reset, so it
	// always reflects the fork's main branch and never a replayed commit.
	var ov overlay.Map
	if e.opts.ConfigPath != "" {
		tree, err := mainTip.Tree()
		if err != nil {
			return nil, fmt.Errorf("read main tree: %w", err)
		}
		ov, err = overlay.Capture(tree, []string{e.opts.ConfigPath})
		if err != nil {
			return nil, fmt.Errorf("capture overlay: %w", err)
		}
		e.log.Debug("captured overlay", slog.Int("files", len(ov)))
	}

	var branches []string
	for _, c := range commits {
		branch, err := e.replayOne(ctx, c, mainTip.Hash, ov)
		if err != nil {
			return branches, err
		}
		branches = append(branches, branch)
		e.sleep(e.opts.CommitDelay)
	}
	return branches, nil
}

func (e *Executor) replayOne(ctx context.Context, c *object.Commit, mainTip plumbing.Hash, ov overlay.Map) (string, error) {
	branch := e.branchName(c.Hash.String())
	log := e.log.With(slog.String("commit", c.Hash.String()), slog.String("branch", branch))

	created, err := e.svc.CheckoutBranch(branch, mainTip)
	if err != nil {
		return "", err
	}
	if !created {
		log.Debug("reusing existing branch")
	}
	if err := e.svc.SetIdentity(e.opts.Identity); err != nil {
		return "", err
	}
	if err := e.svc.HardReset(c.Hash); err != nil {
		return "", err
	}

	fs, err := e.svc.WorktreeFS()
	if err != nil {
		return "", err
	}
	if log.Enabled(ctx, slog.LevelDebug) {
		e.logOverlayDiffs(log, c, ov)
	}
	if err := ov.Apply(fs, log); err != nil {
		return "", err
	}
	if e.opts.ConfigPath != "" {
		if err := overlay.CopyCIDir(fs, e.opts.ConfigPath, e.opts.CIDir, log); err != nil {
			return "", err
		}
	}
	if err := e.svc.StageAll(); err != nil {
		return "", err
	}
	hash, err := e.svc.Commit(fmt.Sprintf("Committing %s", c.Hash), e.opts.Identity, e.now())
	if err != nil {
		return "", err
	}

	log.Info("pushing replayed commit", slog.String("replay_commit", hash.String()))
	if err := e.push(ctx, branch); err != nil {
		return "", err
	}
	return branch, nil
}

func (e *Executor) push(ctx context.Context, branch string) error {
	spec := git.PushSpec{
		Remote: pushRemote,
		Branch: branch,
		Token:  e.opts.Token,
	}
	if e.opts.RepoSlug != "" {
		spec.URL = "https://github.com/" + e.opts.RepoSlug
	}
	op := func() error { return e.svc.Push(ctx, spec) }
	if e.opts.PushRetries == 0 {
		return op()
	}
	return backoff.Retry(op, backoff.WithContext(e.backOff(), ctx))
}
