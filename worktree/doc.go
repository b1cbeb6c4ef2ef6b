// Package worktree manages task worktrees: isolated checkouts of a repository,
// each on its own branch, where an agent or a person works on one task.
//
// # Layout
//
// Worktrees live in a directory inside the repository (".worktrees" unless
// configured otherwise in .plural/worktrees.yaml), one subdirectory per
// worktree named by its short id:
//
//	<repo>/.worktrees/<id>/
//	<repo>/.worktrees/<id>/.worktree-metadata.json
//
// Both the worktrees directory and the metadata file name are added to the
// repository's .gitignore on first use.
//
// # Lifecycle
//
// 1. Create: a branch task/<slug>-<yyyyMMdd-HHmmss> is created from the base
// branch with `git worktree add -b`, and the metadata file is written. If the
// metadata cannot be written the worktree, its directory and the new branch
// are removed again.
//
// 2. Read: nothing is cached. Every listing re-reads the metadata file and
// derives the rest from git: the branch from the worktree's own HEAD, pending
// changes from `git status`, and the ahead counts from rev-list. A directory
// whose metadata is unreadable, or which git no longer lists as a worktree,
// is treated as absent.
//
// 3. Merge: the target branch is checked out in the main working tree and the
// task branch is merged into it. A conflicted merge is aborted before the
// result is returned.
//
// 4. Delete: the worktree is unregistered and its directory removed. The
// branch is kept so that work can be recovered.
//
// # Status
//
// Status is derived, never stored:
//
//	uncommitted changes        -> HasChanges
//	no changes, commits ahead  -> ReadyToMerge
//	otherwise                  -> Active
//
// Locked overrides the derivation when git reports the worktree as locked.
// Merged is set by the caller on its own copy after a successful merge.
package worktree
