package git

import (
	"context"
	"fmt"
)

// PushAllBranches pushes every local branch to the default remote.
func (s *GitService) PushAllBranches(ctx context.Context, repoPath string) error {
	if _, _, err := s.runGit(ctx, repoPath, "push", "--all"); err != nil {
		return fmt.Errorf("failed to push: %w", err)
	}
	return nil
}

// Pull fetches and integrates the upstream of the current branch.
func (s *GitService) Pull(ctx context.Context, repoPath string) error {
	if _, _, err := s.runGit(ctx, repoPath, "pull"); err != nil {
		return fmt.Errorf("failed to pull: %w", err)
	}
	return nil
}
