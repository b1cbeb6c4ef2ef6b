package worktree

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zhubert/plural-worktrees/config"
	"github.com/zhubert/plural-worktrees/git"
	"github.com/zhubert/plural-worktrees/linediff"
	"github.com/zhubert/plural-worktrees/logger"
	"github.com/zhubert/plural-worktrees/treediff"
)

// DiffWorktree compares the files of worktree id against the main working
// tree by content. The metadata file is not reported.
func (s *WorktreeService) DiffWorktree(ctx context.Context, repoPath, id string) ([]git.DiffEntry, error) {
	repo, dir, err := s.locate(ctx, repoPath, id)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(repo.Path)
	if err != nil {
		return nil, err
	}

	entries, err := treediff.Compare(ctx, repo.Path, dir, treediff.Options{
		IgnoreDirs:       cfg.TreeDiff.IgnoreDirs,
		IgnoreExtensions: cfg.TreeDiff.IgnoreExtensions,
		WorktreesDir:     filepath.ToSlash(cfg.WorktreesDir),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to diff worktree %s: %w", id, err)
	}

	filtered := entries[:0]
	for _, e := range entries {
		if e.FilePath != config.MetadataFileName {
			filtered = append(filtered, e)
		}
	}
	logger.WithWorktree(id).Debug("worktree diff computed", "files", len(filtered))
	return filtered, nil
}

// DiffWorktreeFile renders a line diff of relPath between the main working
// tree (a/) and worktree id (b/). A file missing on one side diffs as empty.
func (s *WorktreeService) DiffWorktreeFile(ctx context.Context, repoPath, id, relPath string) (*linediff.FileDiff, error) {
	rel, err := cleanRelPath(relPath)
	if err != nil {
		return nil, err
	}
	repo, dir, err := s.locate(ctx, repoPath, id)
	if err != nil {
		return nil, err
	}

	oldText, err := readOptional(filepath.Join(repo.Path, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	newText, err := readOptional(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		return nil, err
	}
	return linediff.Compute("a/"+rel, "b/"+rel, oldText, newText), nil
}

// cleanRelPath normalizes p to a slash-separated path that stays inside the
// tree it is joined to.
func cleanRelPath(p string) (string, error) {
	rel := path.Clean(filepath.ToSlash(strings.TrimSpace(p)))
	if rel == "." || rel == "" || path.IsAbs(rel) || filepath.IsAbs(p) || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", fmt.Errorf("invalid file path %q: must be relative to the repository root", p)
	}
	return rel, nil
}

func readOptional(p string) (string, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s: %w", p, err)
	}
	return string(data), nil
}
