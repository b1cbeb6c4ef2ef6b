package git

import (
	"context"
	"time"

	pexec "github.com/zhubert/plural-worktrees/exec"
	"github.com/zhubert/plural-worktrees/logger"
)

// GitService provides git operations with explicit dependency injection.
// It holds no repository handle: every call re-opens the repository so
// that changes made outside this process are always observed.
type GitService struct {
	executor   pexec.CommandExecutor
	classifier MergeClassifier
}

// NewGitService creates a new GitService with the default real executor.
func NewGitService() *GitService {
	return NewGitServiceWithExecutor(pexec.NewRealExecutor())
}

// NewGitServiceWithExecutor creates a new GitService with a custom executor.
// This is primarily used for testing where a mock executor is needed.
func NewGitServiceWithExecutor(exec pexec.CommandExecutor) *GitService {
	return &GitService{executor: exec, classifier: CLIMergeClassifier{}}
}

// SetMergeClassifier replaces the classifier used to interpret git merge output.
func (s *GitService) SetMergeClassifier(c MergeClassifier) {
	s.classifier = c
}

// runGit runs a state-changing git command in dir and logs its duration.
func (s *GitService) runGit(ctx context.Context, dir string, args ...string) (stdout, stderr []byte, err error) {
	start := time.Now()
	stdout, stderr, err = s.executor.Run(ctx, dir, "git", args...)

	log := logger.WithComponent("git")
	if err != nil {
		log.Warn("git command failed", "args", args, "dir", dir, "duration", time.Since(start), "error", err)
	} else {
		log.Info("git command finished", "args", args, "dir", dir, "duration", time.Since(start))
	}
	return stdout, stderr, err
}
