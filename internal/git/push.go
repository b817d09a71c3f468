package git

import (
	"context"
	"fmt"

	gitlib "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
)

// PushSpec describes one force-push of a local branch.
//
// URL and Token are scoped to the single push call: they override the
// remote's stored URL and credentials for this operation only and are never
// written into the repository config, so an aborted run cannot leave a
// credential-bearing URL behind.
type PushSpec struct {
	Remote string
	Branch string
	// URL overrides the remote's configured URL when non-empty.
	URL string
	// Token is sent as basic-auth credentials when non-empty.
	Token string
}

// Push force-pushes one branch to the remote. The refspec is forced, so the
// remote tip is overwritten unconditionally; replay is always authoritative.
func (s *Service) Push(ctx context.Context, spec PushSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var auth transport.AuthMethod
	if spec.Token != "" {
		auth = &githttp.BasicAuth{Username: spec.Token, Password: "x-oauth-basic"}
	}
	refSpec := config.RefSpec(fmt.Sprintf("+refs/heads/%s:refs/heads/%s", spec.Branch, spec.Branch))
	err := s.repo.PushContext(ctx, &gitlib.PushOptions{
		RemoteName: spec.Remote,
		RemoteURL:  spec.URL,
		RefSpecs:   []config.RefSpec{refSpec},
		Auth:       auth,
		Force:      true,
	})
	if err != nil && err != gitlib.NoErrAlreadyUpToDate {
		return fmt.Errorf("push %s to %s: %w", spec.Branch, spec.Remote, err)
	}
	return nil
}
