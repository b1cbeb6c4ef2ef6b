package git

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pexec "github.com/zhubert/plural-worktrees/exec"
	"github.com/zhubert/plural-worktrees/logger"
)

// Checkout checks out branch in repoPath.
// Returns an error if the checkout fails (e.g., uncommitted changes would be overwritten).
func (s *GitService) Checkout(ctx context.Context, repoPath, branch string) error {
	_, _, err := s.runGit(ctx, repoPath, "checkout", branch)
	if err != nil {
		return fmt.Errorf("failed to checkout %s: %w", branch, err)
	}
	return nil
}

// Merge merges branch into the branch checked out at repoPath using the
// default commit message. The output is interpreted by the service's
// MergeClassifier.
//
// A conflicted merge is always aborted before Merge returns, so the
// repository has no merge in progress afterward. The returned error is
// non-nil only when git could not be run or the abort itself failed.
func (s *GitService) Merge(ctx context.Context, repoPath, branch string) (*MergeOutcome, error) {
	log := logger.WithComponent("git")

	stdout, stderr, err := s.runGit(ctx, repoPath, "merge", "--no-edit", branch)
	exitCode := pexec.ExitCode(err)
	if err != nil && (exitCode < 0 || ctx.Err() != nil) {
		// Never started, or interrupted partway; leave nothing half-merged
		s.abortIfInProgress(ctx, repoPath)
		return nil, fmt.Errorf("failed to merge %s: %w", branch, err)
	}

	outcome := s.classifier.Classify(exitCode, string(stdout), string(stderr))
	log.Info("merge classified", "branch", branch, "status", outcome.Status.String(), "exitCode", exitCode)

	switch outcome.Status {
	case MergeConflicts:
		if len(outcome.ConflictingFiles) == 0 {
			// modify/delete and rename conflicts have no "Merge conflict in" line
			if files, err := s.GetConflictedFiles(ctx, repoPath); err == nil {
				outcome.ConflictingFiles = files
			}
		}
		if err := s.AbortMerge(context.WithoutCancel(ctx), repoPath); err != nil {
			return &outcome, fmt.Errorf("merge of %s conflicted and could not be aborted: %w", branch, err)
		}
	case MergeFailed:
		if errors.Is(err, pexec.ErrRepositoryLocked) {
			return &outcome, fmt.Errorf("failed to merge %s: %w", branch, err)
		}
		s.abortIfInProgress(ctx, repoPath)
	}
	return &outcome, nil
}

// abortIfInProgress aborts a merge left behind by a failed invocation.
func (s *GitService) abortIfInProgress(ctx context.Context, repoPath string) {
	ctx = context.WithoutCancel(ctx)
	if inProgress, _ := s.IsMergeInProgress(ctx, repoPath); !inProgress {
		return
	}
	if err := s.AbortMerge(ctx, repoPath); err != nil {
		logger.WithComponent("git").Error("failed to abort merge", "repoPath", repoPath, "error", err)
	}
}

// AbortMerge aborts an in-progress merge, falling back to `git reset --merge`
// when `git merge --abort` refuses.
func (s *GitService) AbortMerge(ctx context.Context, repoPath string) error {
	_, _, err := s.runGit(ctx, repoPath, "merge", "--abort")
	if err == nil {
		return nil
	}
	if strings.Contains(pexec.Stderr(err), "There is no merge to abort") {
		return nil
	}

	_, _, resetErr := s.runGit(ctx, repoPath, "reset", "--merge")
	if resetErr != nil {
		return fmt.Errorf("failed to abort merge: %w", errors.Join(err, resetErr))
	}
	return nil
}
