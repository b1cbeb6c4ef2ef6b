package git

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/zhubert/plural-worktrees/logger"
)

// headBranch reads HEAD without resolving it, so an unborn branch (a fresh
// repository with no commits) still reports its name.
func headBranch(repo *gogit.Repository) (string, error) {
	ref, err := repo.Storer.Reference(plumbing.HEAD)
	if err != nil {
		return "", fmt.Errorf("failed to read HEAD: %w", err)
	}
	if ref.Type() != plumbing.SymbolicReference || !ref.Target().IsBranch() {
		return "", ErrDetachedHead
	}
	return ref.Target().Short(), nil
}

// branchExists reports whether refs/heads/<branch> exists in repo.
func branchExists(repo *gogit.Repository, branch string) bool {
	_, err := repo.Reference(plumbing.NewBranchReferenceName(branch), false)
	return err == nil
}

// defaultBranch picks the first existing candidate, then the current branch,
// then HEAD itself.
func (s *GitService) defaultBranch(repo *gogit.Repository, candidates []string) string {
	for _, b := range candidates {
		if branchExists(repo, b) {
			return b
		}
	}
	if b, err := headBranch(repo); err == nil {
		return b
	}
	return "HEAD"
}

// GetDefaultBranch returns the repository's default branch: the first of the
// configured candidates (main, master, develop) that exists, falling back to
// the currently checked out branch.
func (s *GitService) GetDefaultBranch(ctx context.Context, repoPath string) string {
	repo, err := openRepo(repoPath)
	if err != nil {
		logger.WithComponent("git").Debug("default branch lookup failed", "repoPath", repoPath, "error", err)
		return "main"
	}
	return s.defaultBranch(repo, loadConfig(repoPath).DefaultBranches)
}

// GetCurrentBranch returns the name of the currently checked out branch in the given repo/worktree.
// Returns an error if HEAD is detached or the repository cannot be read.
func (s *GitService) GetCurrentBranch(ctx context.Context, repoPath string) (string, error) {
	if branch, err := s.ReadHeadBranch(ctx, repoPath); err == nil {
		return branch, nil
	}

	// go-git can refuse unusual layouts (e.g. extensions it does not
	// support); the CLI is authoritative.
	output, err := s.executor.Output(ctx, repoPath, "git", "rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", fmt.Errorf("failed to get current branch: %w", err)
	}

	branch := strings.TrimSpace(string(output))
	if branch == "HEAD" {
		return "", ErrDetachedHead
	}
	return branch, nil
}

// BranchExists checks if a local branch exists.
func (s *GitService) BranchExists(ctx context.Context, repoPath, branch string) bool {
	repo, err := openRepo(repoPath)
	if err != nil {
		return false
	}
	return branchExists(repo, branch)
}

// ListBranches returns the sorted names of all local branches.
func (s *GitService) ListBranches(ctx context.Context, repoPath string) ([]string, error) {
	repo, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}
	iter, err := repo.Branches()
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	defer iter.Close()

	var branches []string
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		branches = append(branches, ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list branches: %w", err)
	}
	sort.Strings(branches)
	return branches, nil
}

// DeleteBranch force-deletes a local branch.
func (s *GitService) DeleteBranch(ctx context.Context, repoPath, branch string) error {
	if _, _, err := s.runGit(ctx, repoPath, "branch", "-D", branch); err != nil {
		return fmt.Errorf("failed to delete branch %s: %w", branch, err)
	}
	return nil
}

// GetCommitsAhead returns the number of commits on branch that are not on
// baseBranch. A missing branch on either side yields 0.
func (s *GitService) GetCommitsAhead(ctx context.Context, repoPath, branch, baseBranch string) int {
	return s.countRange(ctx, repoPath, baseBranch, branch)
}

// GetCommitsAheadOfRemote returns how many commits branch has that its
// upstream tracking branch does not. A branch without an upstream yields 0.
func (s *GitService) GetCommitsAheadOfRemote(ctx context.Context, repoPath, branch string) int {
	upstream := s.upstreamRef(repoPath, branch)
	if upstream == "" {
		return 0
	}
	return s.countRange(ctx, repoPath, upstream, branch)
}

// GetCommitsBehindRemote returns how many commits the upstream tracking
// branch has that branch does not. A branch without an upstream yields 0.
func (s *GitService) GetCommitsBehindRemote(ctx context.Context, repoPath, branch string) int {
	upstream := s.upstreamRef(repoPath, branch)
	if upstream == "" {
		return 0
	}
	return s.countRange(ctx, repoPath, branch, upstream)
}

// upstreamRef returns the remote-tracking ref configured for branch
// (e.g. "refs/remotes/origin/main"), or "" if none exists locally.
func (s *GitService) upstreamRef(repoPath, branch string) string {
	repo, err := openRepo(repoPath)
	if err != nil {
		return ""
	}
	cfg, err := repo.Config()
	if err != nil {
		return ""
	}
	bc, ok := cfg.Branches[branch]
	if !ok || bc.Remote == "" || bc.Merge == "" {
		return ""
	}
	// remote "." tracks a local branch
	var name plumbing.ReferenceName
	if bc.Remote == "." {
		name = bc.Merge
	} else {
		name = plumbing.NewRemoteReferenceName(bc.Remote, bc.Merge.Short())
	}
	if _, err := repo.Reference(name, false); err != nil {
		return ""
	}
	return name.String()
}

// countRange runs `git rev-list --count from..to`, degrading to 0.
func (s *GitService) countRange(ctx context.Context, repoPath, from, to string) int {
	output, err := s.executor.Output(ctx, repoPath, "git", "rev-list", "--count", from+".."+to)
	if err != nil {
		logger.WithComponent("git").Debug("rev-list count failed", "range", from+".."+to, "error", err)
		return 0
	}
	return parseCount(output)
}

// parseCount parses a rev-list count. Empty or malformed output yields 0.
func parseCount(output []byte) int {
	n, err := strconv.Atoi(strings.TrimSpace(string(output)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
