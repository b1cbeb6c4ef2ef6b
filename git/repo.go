package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"

	"github.com/zhubert/plural-worktrees/config"
	"github.com/zhubert/plural-worktrees/logger"
)

// RepositoryInfo describes a repository as observed at the time of the call.
// It is never cached. IsWorktree is set when the path given to
// OpenRepository lay inside a linked worktree; Path is still the main
// working tree.
type RepositoryInfo struct {
	Path               string
	Name               string
	CurrentBranch      string
	DefaultBranch      string
	WorktreesDirectory string
	IsWorktree         bool
}

// openRepo opens the repository enclosing path. Each call returns a fresh
// handle that callers discard when done.
func openRepo(path string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{
		DetectDotGit:          true,
		EnableDotGitCommonDir: true,
	})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: no git repository at or above %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open repository at %s: %w", path, err)
	}
	return repo, nil
}

// repoRoot returns the top-level working directory of repo.
func repoRoot(repo *gogit.Repository) (string, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("repository has no working tree: %w", err)
	}
	return wt.Filesystem.Root(), nil
}

// isLinkedWorktree reports whether root is a linked worktree, whose .git
// entry is a file pointing at the main repository's gitdir.
func isLinkedWorktree(root string) bool {
	info, err := os.Lstat(filepath.Join(root, ".git"))
	return err == nil && info.Mode().IsRegular()
}

// mainWorktreeRoot follows the .git file of a linked worktree through its
// commondir to the main working tree. It reports false for submodules and
// bare repositories, whose common dir is not a .git directory.
func mainWorktreeRoot(root string) (string, bool) {
	data, err := os.ReadFile(filepath.Join(root, ".git"))
	if err != nil {
		return "", false
	}
	gitdir, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir:")
	if !ok {
		return "", false
	}
	gitdir = strings.TrimSpace(gitdir)
	if !filepath.IsAbs(gitdir) {
		gitdir = filepath.Join(root, gitdir)
	}

	common := gitdir
	if c, err := os.ReadFile(filepath.Join(gitdir, "commondir")); err == nil {
		common = strings.TrimSpace(string(c))
		if !filepath.IsAbs(common) {
			common = filepath.Join(gitdir, common)
		}
	}
	common = filepath.Clean(common)
	if filepath.Base(common) != ".git" {
		return "", false
	}
	return filepath.Dir(common), true
}

// OpenRepository resolves the repository enclosing path and reports its
// current state. A path inside a linked worktree resolves to the main
// working tree, so worktrees are always managed from one place. It returns
// an error wrapping ErrNotFound when path is not inside a repository.
func (s *GitService) OpenRepository(ctx context.Context, path string) (*RepositoryInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	repo, err := openRepo(abs)
	if err != nil {
		return nil, err
	}
	root, err := repoRoot(repo)
	if err != nil {
		return nil, err
	}

	linked := isLinkedWorktree(root)
	if linked {
		if main, ok := mainWorktreeRoot(root); ok {
			mainRepo, err := openRepo(main)
			if err != nil {
				return nil, err
			}
			mainRoot, err := repoRoot(mainRepo)
			if err != nil {
				return nil, err
			}
			logger.WithComponent("git").Debug("resolved linked worktree to main working tree", "worktree", root, "main", mainRoot)
			repo, root = mainRepo, mainRoot
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}

	info := &RepositoryInfo{
		Path:               root,
		Name:               filepath.Base(root),
		DefaultBranch:      s.defaultBranch(repo, cfg.DefaultBranches),
		WorktreesDirectory: filepath.Join(root, cfg.WorktreesDir),
		IsWorktree:         linked,
	}
	if branch, err := headBranch(repo); err == nil {
		info.CurrentBranch = branch
	}

	logger.WithComponent("git").Debug("opened repository", "path", root, "current", info.CurrentBranch, "default", info.DefaultBranch)
	return info, nil
}

// loadConfig reads the repository config for lookups that must not fail,
// falling back to defaults.
func loadConfig(repoPath string) *config.Config {
	cfg, err := config.Load(repoPath)
	if err != nil {
		logger.WithComponent("git").Warn("using default worktree config", "repoPath", repoPath, "error", err)
		return config.Default()
	}
	return cfg
}
