package git

import "errors"

// ErrNotFound is returned when a repository, branch, or worktree required
// by an operation does not exist.
var ErrNotFound = errors.New("not found")

// ErrDetachedHead is returned when a branch name is requested but HEAD
// points directly at a commit.
var ErrDetachedHead = errors.New("HEAD is detached (not on a branch)")
