package replay

import (
	"errors"
	"log/slog"

	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/forkops/replay-go/internal/overlay"
)

// selectCommits walks the fetched upstream branch newest-first and keeps
// every commit whose committed date falls within the trailing window,
// returned oldest-first so later replays build on earlier ones.
func (e *Executor) selectCommits() ([]*object.Commit, error) {
	tip, err := e.svc.RemoteTip(upstreamRemote, e.opts.UpstreamBranch)
	if err != nil {
		return nil, err
	}
	cutoff := e.now().UTC().AddDate(0, 0, -e.opts.ReplayDays)
	return e.svc.CommitsSince(tip.Hash, cutoff)
}

// branchName derives the per-commit branch: the configured base, or a
// date-stamped default, suffixed with the upstream hash. The hash suffix
// keeps names unique per commit even across runs sharing a base.
func (e *Executor) branchName(hash string) string {
	base := e.opts.BranchBase
	if base == "" {
		base = "replay-" + e.now().Format("2006-01-02")
	}
	return base + "-" + hash
}

// logOverlayDiffs emits a unified diff between the replayed commit's version
// of each overlaid path and the overlay snapshot, so debug logs show exactly
// what the overlay overrode.
func (e *Executor) logOverlayDiffs(log *slog.Logger, c *object.Commit, ov overlay.Map) {
	for _, path := range ov.Paths() {
		var upstream string
		f, err := c.File(path)
		switch {
		case err == nil:
			upstream, err = f.Contents()
			if err != nil {
				log.Debug("overlay diff skipped", slog.String("path", path), slog.Any("error", err))
				continue
			}
		case errors.Is(err, object.ErrFileNotFound):
			// path absent upstream, whole overlay file is new
		default:
			log.Debug("overlay diff skipped", slog.String("path", path), slog.Any("error", err))
			continue
		}
		text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(upstream),
			B:        difflib.SplitLines(string(ov[path])),
			FromFile: path + " (upstream)",
			ToFile:   path + " (overlay)",
			Context:  3,
		})
		if err != nil || text == "" {
			continue
		}
		log.Debug("overlay overrides upstream content",
			slog.String("path", path), slog.String("diff", text))
	}
}
