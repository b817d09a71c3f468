package git

import (
	"context"
	"fmt"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
)

// EnsureRemote registers a remote with the given name and URL. When a remote
// of that name already exists it is left as-is and created is false; any
// other failure is returned to the caller.
func (s *Service) EnsureRemote(name, url string) (created bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err = s.repo.CreateRemote(&config.RemoteConfig{
		Name: name,
		URLs: []string{url},
	})
	if err == gitlib.ErrRemoteExists {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("create remote %s: %w", name, err)
	}
	return true, nil
}

// FetchBranch fetches a single branch from the named remote into its
// remote-tracking ref. Already-up-to-date is not an error.
func (s *Service) FetchBranch(ctx context.Context, remote, branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	spec := config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/remotes/%s/%s", branch, remote, branch))
	err := s.repo.FetchContext(ctx, &gitlib.FetchOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{spec},
	})
	if err != nil && err != gitlib.NoErrAlreadyUpToDate {
		return fmt.Errorf("fetch %s from %s: %w", branch, remote, err)
	}
	return nil
}
