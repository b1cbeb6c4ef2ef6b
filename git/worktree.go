package git

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/zhubert/plural-worktrees/logger"
)

// WorktreeRef is one entry of `git worktree list --porcelain`.
type WorktreeRef struct {
	Path       string
	Head       string // commit hash
	Branch     string // short branch name, empty when detached
	Bare       bool
	Detached   bool
	Locked     bool
	LockReason string
	Prunable   bool
}

// AddWorktree creates a worktree at path on a new branch started from base.
func (s *GitService) AddWorktree(ctx context.Context, repoPath, path, branch, base string) error {
	_, _, err := s.runGit(ctx, repoPath, "worktree", "add", "-b", branch, path, base)
	if err != nil {
		return fmt.Errorf("failed to create worktree %s: %w", path, err)
	}
	return nil
}

// RemoveWorktree unregisters the worktree at path and deletes its directory.
// With force, uncommitted changes and untracked files are discarded.
func (s *GitService) RemoveWorktree(ctx context.Context, repoPath, path string, force bool) error {
	args := []string{"worktree", "remove"}
	if force {
		args = append(args, "--force")
	}
	args = append(args, path)

	if _, _, err := s.runGit(ctx, repoPath, args...); err != nil {
		return fmt.Errorf("failed to remove worktree %s: %w", path, err)
	}
	return nil
}

// PruneWorktrees drops registrations whose directories no longer exist.
func (s *GitService) PruneWorktrees(ctx context.Context, repoPath string) error {
	if _, _, err := s.runGit(ctx, repoPath, "worktree", "prune"); err != nil {
		return fmt.Errorf("failed to prune worktrees: %w", err)
	}
	return nil
}

// ListWorktrees returns every worktree registered with the repository,
// including the main working tree.
func (s *GitService) ListWorktrees(ctx context.Context, repoPath string) ([]WorktreeRef, error) {
	output, err := s.executor.Output(ctx, repoPath, "git", "worktree", "list", "--porcelain")
	if err != nil {
		return nil, fmt.Errorf("failed to list worktrees: %w", err)
	}
	return parseWorktreeList(string(output)), nil
}

// parseWorktreeList parses porcelain output: attribute lines grouped into
// blank-line separated records, each starting with "worktree <path>".
func parseWorktreeList(output string) []WorktreeRef {
	var refs []WorktreeRef
	var cur *WorktreeRef

	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimRight(line, "\r")
		key, value, _ := strings.Cut(line, " ")
		switch key {
		case "worktree":
			refs = append(refs, WorktreeRef{Path: value})
			cur = &refs[len(refs)-1]
		case "HEAD":
			if cur != nil {
				cur.Head = value
			}
		case "branch":
			if cur != nil {
				cur.Branch = strings.TrimPrefix(value, "refs/heads/")
			}
		case "bare":
			if cur != nil {
				cur.Bare = true
			}
		case "detached":
			if cur != nil {
				cur.Detached = true
			}
		case "locked":
			if cur != nil {
				cur.Locked = true
				cur.LockReason = value
			}
		case "prunable":
			if cur != nil {
				cur.Prunable = true
			}
		}
	}
	return refs
}

// FindWorktree returns the registration whose path matches path after
// symlink resolution, or nil.
func FindWorktree(refs []WorktreeRef, path string) *WorktreeRef {
	want := canonicalPath(path)
	for i := range refs {
		if canonicalPath(refs[i].Path) == want {
			return &refs[i]
		}
	}
	return nil
}

// canonicalPath resolves symlinks (e.g. /tmp -> /private/tmp on macOS) so
// paths reported by git compare equal to paths built by callers.
func canonicalPath(p string) string {
	if resolved, err := filepath.EvalSymlinks(p); err == nil {
		return resolved
	}
	return filepath.Clean(p)
}

// ReadHeadBranch returns the branch named by the HEAD pointer of the
// worktree at worktreePath. It reads HEAD itself rather than trusting any
// stored value, since the worktree may have been switched by hand.
func (s *GitService) ReadHeadBranch(ctx context.Context, worktreePath string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	repo, err := openRepo(worktreePath)
	if err != nil {
		return "", err
	}
	branch, err := headBranch(repo)
	if err != nil {
		logger.WithComponent("git").Debug("could not read HEAD branch", "worktree", worktreePath, "error", err)
		return "", err
	}
	return branch, nil
}
