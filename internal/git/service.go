package git

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-git/go-billy/v5"
	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Service wraps a single working repository and exposes the discrete
// operations the replay pipeline needs. The working tree, the index and the
// current branch pointer are shared mutable state owned by whoever holds the
// Service; mu serializes access for callers that share one instance.
type Service struct {
	mu sync.Mutex

	repo repoState
}

type repoState struct {
	*gitlib.Repository
	path string
}

func Open(repoPath string) (*Service, error) {
	abs, err := filepath.Abs(repoPath)
	if err != nil {
		return nil, err
	}
	repo, err := gitlib.PlainOpenWithOptions(abs, &gitlib.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, fmt.Errorf("open repository: %w", err)
	}
	return &Service{repo: repoState{path: abs, Repository: repo}}, nil
}

func (s *Service) RepoPath() string {
	return s.repo.path
}

// BranchTip resolves the commit a local branch points at.
func (s *Service) BranchTip(branch string) (*object.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", ref.Hash(), err)
	}
	return commit, nil
}

// RemoteTip resolves the commit a remote-tracking branch points at.
func (s *Service) RemoteTip(remote, branch string) (*object.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ref, err := s.repo.Reference(plumbing.NewRemoteReferenceName(remote, branch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve %s/%s: %w", remote, branch, err)
	}
	commit, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("read commit %s: %w", ref.Hash(), err)
	}
	return commit, nil
}

// CommitsSince walks history newest-first from the given commit and collects
// every commit whose committer date falls on or after the cutoff. The walk
// stops at the first commit strictly older than the cutoff; the comparison is
// at date granularity (a commit made any time on the cutoff day is included).
// The collected commits are returned oldest-first.
func (s *Service) CommitsSince(from plumbing.Hash, cutoff time.Time) ([]*object.Commit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	iter, err := s.repo.Log(&gitlib.LogOptions{From: from, Order: gitlib.LogOrderCommitterTime})
	if err != nil {
		return nil, fmt.Errorf("read commits: %w", err)
	}
	defer iter.Close()

	cutoffDay := dateOnly(cutoff)
	var commits []*object.Commit
	err = iter.ForEach(func(c *object.Commit) error {
		if dateOnly(c.Committer.When).Before(cutoffDay) {
			return storer.ErrStop
		}
		commits = append(commits, c)
		return nil
	})
	if err != nil && err != storer.ErrStop {
		return nil, fmt.Errorf("iterate commits: %w", err)
	}
	for i, j := 0, len(commits)-1; i < j; i, j = i+1, j-1 {
		commits[i], commits[j] = commits[j], commits[i]
	}
	return commits, nil
}

// WorktreeFS exposes the working tree's filesystem so callers can restore
// files on top of a checkout without going through the index.
func (s *Service) WorktreeFS() (billy.Filesystem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wt, err := s.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	return wt.Filesystem, nil
}

// dateOnly collapses a timestamp to midnight of its calendar day, in the
// timestamp's own zone. Matches date-granularity window comparisons.
func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
