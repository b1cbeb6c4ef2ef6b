package worktree

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/zhubert/plural-worktrees/branchname"
	"github.com/zhubert/plural-worktrees/config"
	pexec "github.com/zhubert/plural-worktrees/exec"
	"github.com/zhubert/plural-worktrees/git"
	"github.com/zhubert/plural-worktrees/logger"
)

// statusWorkers bounds the number of worktrees whose status is derived at
// once. Each derivation runs several git processes.
const statusWorkers = 4

// maxNameAttempts bounds the search for an unused id or branch name.
const maxNameAttempts = 100

// WorktreeService provides worktree operations with explicit dependency
// injection. It keeps no state about repositories between calls.
type WorktreeService struct {
	git *git.GitService
	gen *branchname.Generator
	now func() time.Time
}

// NewWorktreeService creates a new WorktreeService with the default real executor.
func NewWorktreeService() *WorktreeService {
	return NewWorktreeServiceWithExecutor(pexec.NewRealExecutor())
}

// NewWorktreeServiceWithExecutor creates a new WorktreeService with a custom executor.
// This is primarily used for testing where a mock executor is needed.
func NewWorktreeServiceWithExecutor(exec pexec.CommandExecutor) *WorktreeService {
	return &WorktreeService{
		git: git.NewGitServiceWithExecutor(exec),
		gen: branchname.NewGenerator(time.Now),
		now: time.Now,
	}
}

// Git returns the GitService used for repository operations.
func (s *WorktreeService) Git() *git.GitService {
	return s.git
}

// CreateWorktree creates a worktree for task on a new branch started from
// baseBranch, or from the repository's default branch when baseBranch is
// empty. The returned worktree has status Active.
func (s *WorktreeService) CreateWorktree(ctx context.Context, repoPath, task, baseBranch string) (*WorktreeInfo, error) {
	log := logger.WithComponent("worktree")
	startTime := time.Now()
	log.Info("creating worktree", "repoPath", repoPath, "task", task, "baseBranch", baseBranch)

	repo, err := s.git.OpenRepository(ctx, repoPath)
	if err != nil {
		return nil, err
	}
	if baseBranch == "" {
		baseBranch = repo.DefaultBranch
	}

	if err := os.MkdirAll(repo.WorktreesDirectory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create worktrees directory: %w", err)
	}
	if err := s.ensureIgnored(ctx, repo); err != nil {
		return nil, err
	}

	id, dir, err := s.newID(repo.WorktreesDirectory)
	if err != nil {
		return nil, err
	}
	branch, err := s.newBranch(ctx, repo.Path, task)
	if err != nil {
		return nil, err
	}

	log = logger.WithWorktree(id)
	if err := s.git.AddWorktree(ctx, repo.Path, dir, branch, baseBranch); err != nil {
		log.Error("failed to add worktree", "branch", branch, "baseBranch", baseBranch, "error", err)
		return nil, err
	}

	meta := &Metadata{
		ID:              id,
		TaskDescription: task,
		BaseBranch:      baseBranch,
		CreatedAt:       s.now().UTC(),
	}
	if err := WriteMetadata(dir, meta); err != nil {
		log.Error("metadata write failed, rolling back worktree", "path", dir, "error", err)
		s.rollbackCreate(context.WithoutCancel(ctx), repo.Path, dir, branch)
		return nil, err
	}

	log.Info("worktree created",
		"path", dir,
		"branch", branch,
		"baseBranch", baseBranch,
		"duration", time.Since(startTime))

	return &WorktreeInfo{
		ID:              id,
		Path:            dir,
		BranchName:      branch,
		BaseBranch:      baseBranch,
		TaskDescription: task,
		CreatedAt:       meta.CreatedAt,
		Status:          StatusActive,
	}, nil
}

// ensureIgnored adds the worktrees directory and the metadata file name to
// the repository's .gitignore.
func (s *WorktreeService) ensureIgnored(ctx context.Context, repo *git.RepositoryInfo) error {
	rel, err := filepath.Rel(repo.Path, repo.WorktreesDirectory)
	if err != nil {
		return fmt.Errorf("failed to resolve worktrees directory: %w", err)
	}
	for _, entry := range []string{filepath.ToSlash(rel), config.MetadataFileName} {
		if _, err := s.git.EnsureGitIgnoreEntry(ctx, repo.Path, entry); err != nil {
			return err
		}
	}
	return nil
}

// newID returns an unused short id and its directory under worktreesDir.
func (s *WorktreeService) newID(worktreesDir string) (string, string, error) {
	for range maxNameAttempts {
		id := uuid.New().String()[:8]
		dir := filepath.Join(worktreesDir, id)
		if _, err := os.Lstat(dir); os.IsNotExist(err) {
			return id, dir, nil
		}
	}
	return "", "", fmt.Errorf("could not find an unused worktree id in %s", worktreesDir)
}

// newBranch generates a branch name for task that does not exist yet.
func (s *WorktreeService) newBranch(ctx context.Context, repoPath, task string) (string, error) {
	for range maxNameAttempts {
		branch := s.gen.Next(task)
		if !s.git.BranchExists(ctx, repoPath, branch) {
			return branch, nil
		}
	}
	return "", fmt.Errorf("could not find an unused branch name for %q", task)
}

// rollbackCreate undoes a worktree add. Each step is best effort.
func (s *WorktreeService) rollbackCreate(ctx context.Context, repoPath, dir, branch string) {
	log := logger.WithComponent("worktree")
	if err := s.git.RemoveWorktree(ctx, repoPath, dir, true); err != nil {
		log.Warn("rollback: worktree remove failed", "path", dir, "error", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		log.Warn("rollback: directory delete failed", "path", dir, "error", err)
	}
	if err := s.git.PruneWorktrees(ctx, repoPath); err != nil {
		log.Warn("rollback: prune failed", "error", err)
	}
	if err := s.git.DeleteBranch(ctx, repoPath, branch); err != nil {
		log.Warn("rollback: branch delete failed", "branch", branch, "error", err)
	}
}

// GetWorktrees lists the worktrees of the repository at repoPath, oldest
// first. Directories without readable metadata or without a live git
// registration are left out.
func (s *WorktreeService) GetWorktrees(ctx context.Context, repoPath string) ([]*WorktreeInfo, error) {
	log := logger.WithComponent("worktree")

	repo, err := s.git.OpenRepository(ctx, repoPath)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(repo.WorktreesDirectory)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read worktrees directory: %w", err)
	}

	refs, err := s.git.ListWorktrees(ctx, repo.Path)
	if err != nil {
		return nil, err
	}

	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(repo.WorktreesDirectory, e.Name()))
		}
	}

	results := make([]*WorktreeInfo, len(dirs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(statusWorkers)
	for i, dir := range dirs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = s.load(gctx, dir, refs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	worktrees := make([]*WorktreeInfo, 0, len(results))
	for _, w := range results {
		if w != nil {
			worktrees = append(worktrees, w)
		}
	}
	sort.Slice(worktrees, func(i, j int) bool {
		if !worktrees[i].CreatedAt.Equal(worktrees[j].CreatedAt) {
			return worktrees[i].CreatedAt.Before(worktrees[j].CreatedAt)
		}
		return worktrees[i].ID < worktrees[j].ID
	})

	log.Debug("listed worktrees", "repoPath", repo.Path, "directories", len(dirs), "worktrees", len(worktrees))
	return worktrees, nil
}

// GetWorktree returns the worktree with the given id, or nil when it does
// not exist.
func (s *WorktreeService) GetWorktree(ctx context.Context, repoPath, id string) (*WorktreeInfo, error) {
	repo, dir, err := s.locate(ctx, repoPath, id)
	if err != nil {
		if errors.Is(err, git.ErrNotFound) && repo != nil {
			return nil, nil
		}
		return nil, err
	}
	refs, err := s.git.ListWorktrees(ctx, repo.Path)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, dir, refs), nil
}

// RefreshWorktreeStatus re-derives the state of a worktree from disk and git.
// It never writes metadata. It returns an error wrapping git.ErrNotFound when
// the worktree does not exist.
func (s *WorktreeService) RefreshWorktreeStatus(ctx context.Context, repoPath, id string) (*WorktreeInfo, error) {
	info, err := s.GetWorktree(ctx, repoPath, id)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return nil, fmt.Errorf("%w: worktree %s", git.ErrNotFound, id)
	}
	return info, nil
}

// locate resolves the directory of worktree id. The repository is returned
// even when the directory is missing so callers can tell the two apart.
func (s *WorktreeService) locate(ctx context.Context, repoPath, id string) (*git.RepositoryInfo, string, error) {
	repo, err := s.git.OpenRepository(ctx, repoPath)
	if err != nil {
		return nil, "", err
	}
	if !validID(id) {
		return repo, "", fmt.Errorf("%w: invalid worktree id %q", git.ErrNotFound, id)
	}
	dir := filepath.Join(repo.WorktreesDirectory, id)
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return repo, "", fmt.Errorf("%w: worktree %s", git.ErrNotFound, id)
	}
	return repo, dir, nil
}

// validID rejects ids that would resolve outside the worktrees directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// load builds the WorktreeInfo for dir, or returns nil when the directory is
// not a live worktree with readable metadata.
func (s *WorktreeService) load(ctx context.Context, dir string, refs []git.WorktreeRef) *WorktreeInfo {
	log := logger.WithComponent("worktree")

	meta, err := ReadMetadata(dir)
	if err != nil {
		log.Debug("skipping directory without readable metadata", "path", dir, "error", err)
		return nil
	}
	ref := git.FindWorktree(refs, dir)
	if ref == nil {
		log.Debug("skipping directory not registered as a worktree", "path", dir)
		return nil
	}
	return s.derive(ctx, dir, meta, ref)
}

// derive combines stored metadata with the live state of the worktree.
// Lookups that fail degrade to zero values.
func (s *WorktreeService) derive(ctx context.Context, dir string, meta *Metadata, ref *git.WorktreeRef) *WorktreeInfo {
	// The directory name addresses the worktree, whatever the file says
	id := filepath.Base(dir)
	log := logger.WithWorktree(id)

	info := &WorktreeInfo{
		ID:               id,
		Path:             dir,
		BaseBranch:       meta.BaseBranch,
		TaskDescription:  meta.TaskDescription,
		Title:            meta.Title,
		CreatedAt:        meta.CreatedAt,
		SessionWasActive: meta.SessionWasActive,
		WasJob:           meta.WasJob,
		LastIteration:    meta.LastIteration,
		JobMaxIterations: meta.JobMaxIterations,
	}
	if meta.ClaudeSessionID != nil {
		info.ClaudeSessionID = *meta.ClaudeSessionID
	}

	branch, err := s.git.ReadHeadBranch(ctx, dir)
	if err != nil {
		branch = ref.Branch
	}
	info.BranchName = branch

	changes, err := s.git.GetUncommittedChanges(ctx, dir)
	if err != nil {
		log.Debug("could not read uncommitted changes", "error", err)
	}
	for _, c := range changes {
		if c.FilePath != config.MetadataFileName {
			info.HasUncommittedChanges = true
			break
		}
	}

	head := branch
	if head == "" {
		head = "HEAD"
	}
	if info.BaseBranch != "" {
		info.CommitsAhead = s.git.GetCommitsAhead(ctx, dir, head, info.BaseBranch)
	}
	if branch != "" {
		info.UnpushedCommits = s.git.GetCommitsAheadOfRemote(ctx, dir, branch)
	}

	info.Status = DeriveStatus(info.HasUncommittedChanges, info.CommitsAhead)
	if ref.Locked {
		info.Status = StatusLocked
		info.LockReason = ref.LockReason
	}
	return info
}

// DeleteWorktree unregisters worktree id and deletes its directory. The git
// removal is best effort; the directory is always deleted. The branch is
// kept.
func (s *WorktreeService) DeleteWorktree(ctx context.Context, repoPath, id string, force bool) error {
	log := logger.WithWorktree(id)

	repo, dir, err := s.locate(ctx, repoPath, id)
	if err != nil {
		return err
	}

	log.Info("deleting worktree", "path", dir, "force", force)
	if err := s.git.RemoveWorktree(ctx, repo.Path, dir, force); err != nil {
		log.Warn("git worktree remove failed, deleting directory", "error", err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to delete worktree directory %s: %w", dir, err)
	}
	if err := s.git.PruneWorktrees(ctx, repo.Path); err != nil {
		log.Warn("git worktree prune failed", "error", err)
	}
	log.Info("worktree deleted", "path", dir)
	return nil
}

// MergeWorktree merges the branch of worktree id into targetBranch in the
// main working tree. An empty targetBranch means the worktree's base
// branch. A failed checkout is returned as an error and no merge is
// attempted. Conflicts are reported in the result, after the merge has been
// aborted.
func (s *WorktreeService) MergeWorktree(ctx context.Context, repoPath, id, targetBranch string) (*MergeResult, error) {
	log := logger.WithWorktree(id)

	repo, _, err := s.locate(ctx, repoPath, id)
	if err != nil {
		return nil, err
	}
	info, err := s.RefreshWorktreeStatus(ctx, repo.Path, id)
	if err != nil {
		return nil, err
	}
	if info.BranchName == "" {
		return nil, fmt.Errorf("worktree %s: %w", id, git.ErrDetachedHead)
	}
	if targetBranch == "" {
		targetBranch = info.BaseBranch
	}
	if targetBranch == "" {
		return nil, fmt.Errorf("worktree %s has no base branch; a target branch is required", id)
	}

	log.Info("merging worktree", "source", info.BranchName, "target", targetBranch)
	if err := s.git.Checkout(ctx, repo.Path, targetBranch); err != nil {
		return nil, err
	}

	outcome, err := s.git.Merge(ctx, repo.Path, info.BranchName)
	if outcome == nil {
		return nil, err
	}
	result := &MergeResult{
		Success:          outcome.Success,
		Status:           outcome.Status,
		ConflictingFiles: outcome.ConflictingFiles,
		ErrorMessage:     outcome.ErrorMessage,
		SourceBranch:     info.BranchName,
		TargetBranch:     targetBranch,
	}
	log.Info("merge finished", "status", result.Status.String(), "success", result.Success, "conflicts", len(result.ConflictingFiles))
	return result, err
}

// UpdateClaudeSessionID records the agent session attached to worktree id.
// It does nothing when the worktree has no metadata file.
func (s *WorktreeService) UpdateClaudeSessionID(ctx context.Context, repoPath, id, sessionID string) error {
	return s.update(ctx, repoPath, id, func(m *Metadata) {
		if sessionID == "" {
			m.ClaudeSessionID = nil
			return
		}
		m.ClaudeSessionID = &sessionID
	})
}

// UpdateSessionWasActive records whether the agent session was running when
// the application last exited.
func (s *WorktreeService) UpdateSessionWasActive(ctx context.Context, repoPath, id string, active bool) error {
	return s.update(ctx, repoPath, id, func(m *Metadata) {
		m.SessionWasActive = active
	})
}

// UpdateJobState records the progress of an autonomous job so it can be
// resumed.
func (s *WorktreeService) UpdateJobState(ctx context.Context, repoPath, id string, state JobState) error {
	return s.update(ctx, repoPath, id, func(m *Metadata) {
		m.WasJob = state.WasJob
		m.LastIteration = state.LastIteration
		m.JobMaxIterations = state.MaxIterations
	})
}

// UpdateTitle sets the display title of worktree id.
func (s *WorktreeService) UpdateTitle(ctx context.Context, repoPath, id, title string) error {
	return s.update(ctx, repoPath, id, func(m *Metadata) {
		m.Title = strings.TrimSpace(title)
	})
}

// update performs a read-modify-write of one worktree's metadata. A missing
// worktree or metadata file is not an error.
func (s *WorktreeService) update(ctx context.Context, repoPath, id string, fn func(*Metadata)) error {
	repo, dir, err := s.locate(ctx, repoPath, id)
	if err != nil {
		if errors.Is(err, git.ErrNotFound) && repo != nil {
			logger.WithWorktree(id).Debug("metadata update skipped, worktree not found")
			return nil
		}
		return err
	}
	updated, err := updateMetadata(dir, fn)
	if err != nil {
		return err
	}
	if !updated {
		logger.WithWorktree(id).Debug("metadata update skipped, no metadata file")
	}
	return nil
}
