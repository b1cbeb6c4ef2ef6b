package git

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zhubert/plural-worktrees/logger"
)

// GetUncommittedChanges returns the changes in the working directory and
// index relative to HEAD, including untracked files.
func (s *GitService) GetUncommittedChanges(ctx context.Context, worktreePath string) ([]DiffEntry, error) {
	// -z keeps paths verbatim; without it git octal-escapes non-ASCII names
	output, err := s.executor.Output(ctx, worktreePath, "git", "status", "--porcelain", "-z", "--untracked-files=all")
	if err != nil {
		return nil, fmt.Errorf("git status failed: %w", err)
	}

	entries := parsePorcelainStatus(string(output))
	if len(entries) == 0 {
		return nil, nil
	}

	log := logger.WithComponent("git")

	// git diff HEAD covers staged and unstaged changes against the last commit
	numstat, err := s.executor.Output(ctx, worktreePath, "git", "diff", "--no-ext-diff", "--no-renames", "--numstat", "-z", "HEAD")
	if err != nil {
		// No HEAD yet (unborn branch): staged and unstaged separately
		log.Debug("diff HEAD failed, trying without HEAD", "error", err, "worktree", worktreePath)
		unstaged, _ := s.executor.Output(ctx, worktreePath, "git", "diff", "--no-ext-diff", "--no-renames", "--numstat", "-z")
		staged, _ := s.executor.Output(ctx, worktreePath, "git", "diff", "--no-ext-diff", "--no-renames", "--numstat", "-z", "--cached")
		numstat = append(unstaged, staged...)
	}
	counts := parseNumstat(string(numstat))

	for i := range entries {
		e := &entries[i]
		if c, ok := counts[e.FilePath]; ok {
			e.LinesAdded, e.LinesDeleted = c[0], c[1]
			continue
		}
		if e.ChangeType == ChangeAdded {
			// Untracked files are absent from git diff --numstat
			n, err := s.countFileLines(ctx, worktreePath, e.FilePath)
			if err != nil {
				log.Debug("failed to count lines in untracked file", "file", e.FilePath, "error", err)
				continue
			}
			e.LinesAdded = n
		}
	}
	return entries, nil
}

// parsePorcelainStatus parses `git status --porcelain -z` output. Records
// are NUL-terminated "XY path"; a rename or copy is followed by a second
// record holding the source path.
func parsePorcelainStatus(output string) []DiffEntry {
	var entries []DiffEntry
	records := strings.Split(output, "\x00")
	for i := 0; i < len(records); i++ {
		rec := records[i]
		if len(rec) < 4 {
			continue
		}
		x, y := rec[0], rec[1]

		entry := DiffEntry{FilePath: rec[3:], ChangeType: ChangeModified}
		if x == 'R' || x == 'C' || y == 'R' || y == 'C' {
			if i+1 < len(records) {
				entry.OldPath = records[i+1]
				i++
			}
		}

		// Prefer the index status; fall back to the worktree status
		code := x
		if code == ' ' {
			code = y
		}
		switch code {
		case '?', 'A':
			entry.ChangeType = ChangeAdded
		case 'D':
			entry.ChangeType = ChangeDeleted
		case 'R':
			entry.ChangeType = ChangeRenamed
		case 'C':
			entry.ChangeType = ChangeCopied
		case 'T':
			entry.ChangeType = ChangeTypeChanged
		}
		entries = append(entries, entry)
	}
	return entries
}

// parseNumstat parses `git diff --numstat -z` output, NUL-terminated
// "added<TAB>deleted<TAB>path" records, into per-path counts. Binary files
// report "-" and count as zero. Repeated paths are summed.
func parseNumstat(output string) map[string][2]int {
	counts := make(map[string][2]int)
	for _, rec := range strings.Split(output, "\x00") {
		parts := strings.SplitN(strings.TrimLeft(rec, "\n"), "\t", 3)
		if len(parts) != 3 || parts[2] == "" {
			continue
		}
		c := counts[parts[2]]
		if parts[0] != "-" {
			var add int
			fmt.Sscanf(parts[0], "%d", &add)
			c[0] += add
		}
		if parts[1] != "-" {
			var del int
			fmt.Sscanf(parts[1], "%d", &del)
			c[1] += del
		}
		counts[parts[2]] = c
	}
	return counts
}

// countFileLines counts the number of lines in a file using git diff --no-index.
// For binary files, returns 0.
func (s *GitService) countFileLines(ctx context.Context, worktreePath, filename string) (int, error) {
	output, err := s.executor.Output(ctx, worktreePath, "git", "diff", "--no-index", "--numstat", "/dev/null", filename)
	if err != nil {
		// git diff --no-index returns exit code 1 when files differ, which is expected
		// Only treat it as an error if there's no output
		if len(output) == 0 {
			return 0, err
		}
	}

	line := strings.TrimSpace(string(output))
	if line == "" {
		return 0, nil
	}
	parts := strings.Split(line, "\t")
	if parts[0] == "-" {
		return 0, nil // Binary file
	}
	var count int
	fmt.Sscanf(parts[0], "%d", &count)
	return count, nil
}

// GetConflictedFiles returns the sorted list of unmerged paths in a repo.
func (s *GitService) GetConflictedFiles(ctx context.Context, repoPath string) ([]string, error) {
	output, err := s.executor.Output(ctx, repoPath, "git", "diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, fmt.Errorf("failed to get conflicted files: %w", err)
	}

	outputStr := strings.TrimSpace(string(output))
	if outputStr == "" {
		return nil, nil
	}

	files := strings.Split(outputStr, "\n")
	sort.Strings(files)
	return files, nil
}

// IsMergeInProgress checks if a merge is currently in progress in the repo.
// It returns true if MERGE_HEAD exists (meaning there's an ongoing merge).
func (s *GitService) IsMergeInProgress(ctx context.Context, repoPath string) (bool, error) {
	_, _, err := s.executor.Run(ctx, repoPath, "git", "rev-parse", "-q", "--verify", "MERGE_HEAD")
	if err != nil {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		// MERGE_HEAD doesn't exist - no merge in progress
		return false, nil
	}
	return true, nil
}
