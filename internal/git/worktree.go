package git

import (
	"fmt"
	"time"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Identity is the commit author/committer recorded on replayed commits.
type Identity struct {
	Name  string
	Email string
}

// SetIdentity writes the identity into the repository-local config, the same
// place `git config user.name` would put it.
func (s *Service) SetIdentity(ident Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cfg, err := s.repo.Config()
	if err != nil {
		return fmt.Errorf("read repo config: %w", err)
	}
	cfg.User.Name = ident.Name
	cfg.User.Email = ident.Email
	if err := s.repo.SetConfig(cfg); err != nil {
		return fmt.Errorf("write repo config: %w", err)
	}
	return nil
}

// CheckoutBranch switches the worktree to the named branch, creating it at
// the given start commit when it does not exist yet. An existing branch is
// checked out as-is, never recreated.
func (s *Service) CheckoutBranch(name string, start plumbing.Hash) (created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wt, err := s.repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("open worktree: %w", err)
	}
	branchRef := plumbing.NewBranchReferenceName(name)
	_, err = s.repo.Reference(branchRef, false)
	switch err {
	case nil:
		if err := wt.Checkout(&gitlib.CheckoutOptions{Branch: branchRef, Force: true}); err != nil {
			return false, fmt.Errorf("checkout branch %s: %w", name, err)
		}
		return false, nil
	case plumbing.ErrReferenceNotFound:
		err := wt.Checkout(&gitlib.CheckoutOptions{
			Branch: branchRef,
			Hash:   start,
			Create: true,
			Force:  true,
		})
		if err != nil {
			return false, fmt.Errorf("create branch %s at %s: %w", name, start, err)
		}
		return true, nil
	default:
		return false, fmt.Errorf("resolve branch %s: %w", name, err)
	}
}

// HardReset moves the current branch, the index and the working tree to the
// given commit, discarding any residue from a previous replay cycle.
func (s *Service) HardReset(target plumbing.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.Reset(&gitlib.ResetOptions{Commit: target, Mode: gitlib.HardReset}); err != nil {
		return fmt.Errorf("hard reset to %s: %w", target, err)
	}
	return nil
}

// StageAll stages the entire working tree, including deletions.
func (s *Service) StageAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	wt, err := s.repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree: %w", err)
	}
	if err := wt.AddWithOptions(&gitlib.AddOptions{All: true}); err != nil {
		return fmt.Errorf("stage changes: %w", err)
	}
	return nil
}

// Commit records the staged tree with the given identity as both author and
// committer. Empty commits are allowed: a replay re-run reproduces the exact
// tree of the previous run, and the cycle must still yield a commit to push.
func (s *Service) Commit(message string, ident Identity, when time.Time) (plumbing.Hash, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	wt, err := s.repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}
	sig := &object.Signature{Name: ident.Name, Email: ident.Email, When: when}
	hash, err := wt.Commit(message, &gitlib.CommitOptions{
		Author:            sig,
		Committer:         sig,
		AllowEmptyCommits: true,
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit: %w", err)
	}
	return hash, nil
}
