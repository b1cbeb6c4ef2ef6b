package worktree

import (
	"fmt"
	"time"

	"github.com/zhubert/plural-worktrees/git"
)

// WorktreeStatus is the lifecycle state of a worktree.
type WorktreeStatus int

const (
	StatusActive WorktreeStatus = iota
	StatusHasChanges
	StatusReadyToMerge
	StatusMerged
	StatusLocked
)

func (s WorktreeStatus) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusHasChanges:
		return "HasChanges"
	case StatusReadyToMerge:
		return "ReadyToMerge"
	case StatusMerged:
		return "Merged"
	case StatusLocked:
		return "Locked"
	default:
		return fmt.Sprintf("WorktreeStatus(%d)", int(s))
	}
}

// MarshalText renders the status by name in JSON output.
func (s WorktreeStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// DeriveStatus computes the status of an unlocked, unmerged worktree from its
// pending changes and the number of commits it is ahead of its base branch.
func DeriveStatus(hasChanges bool, commitsAhead int) WorktreeStatus {
	switch {
	case hasChanges:
		return StatusHasChanges
	case commitsAhead > 0:
		return StatusReadyToMerge
	default:
		return StatusActive
	}
}

// WorktreeInfo describes one task worktree. ID, Path, BranchName and
// CreatedAt are fixed at creation; everything else is re-derived on each read.
type WorktreeInfo struct {
	ID                    string         `json:"id"`
	Path                  string         `json:"path"`
	BranchName            string         `json:"branchName"`
	BaseBranch            string         `json:"baseBranch"`
	TaskDescription       string         `json:"taskDescription"`
	Title                 string         `json:"title,omitempty"`
	CreatedAt             time.Time      `json:"createdAt"`
	Status                WorktreeStatus `json:"status"`
	HasUncommittedChanges bool           `json:"hasUncommittedChanges"`
	CommitsAhead          int            `json:"commitsAhead"`
	UnpushedCommits       int            `json:"unpushedCommits"`
	ClaudeSessionID       string         `json:"claudeSessionId,omitempty"`
	SessionWasActive      bool           `json:"sessionWasActive,omitempty"`
	WasJob                bool           `json:"wasJob,omitempty"`
	LastIteration         int            `json:"lastIteration,omitempty"`
	JobMaxIterations      int            `json:"jobMaxIterations,omitempty"`
	LockReason            string         `json:"lockReason,omitempty"`
}

// DisplayName returns the title if one was set, otherwise the task description.
func (w *WorktreeInfo) DisplayName() string {
	if w.Title != "" {
		return w.Title
	}
	return w.TaskDescription
}

// MergeResult is the outcome of MergeWorktree. Conflicts are reported here
// rather than as an error.
type MergeResult struct {
	Success          bool            `json:"success"`
	Status           git.MergeStatus `json:"status"`
	ConflictingFiles []string        `json:"conflictingFiles,omitempty"`
	ErrorMessage     string          `json:"errorMessage,omitempty"`
	SourceBranch     string          `json:"sourceBranch"`
	TargetBranch     string          `json:"targetBranch"`
}

// JobState holds the fields needed to resume an autonomous job in a worktree.
type JobState struct {
	WasJob        bool
	LastIteration int
	MaxIterations int
}
