// Package git wraps the git operations needed to manage task worktrees.
//
// Lookups (refs, trees, HEAD, tracking config) go through go-git and degrade
// to zero values on failure. State-changing commands (worktree add/remove,
// checkout, merge, push, pull) shell out to the git CLI through a
// CommandExecutor and return errors carrying the captured stderr.
//
// The package is organized into focused modules:
//   - service.go: GitService struct and constructor
//   - repo.go: repository discovery and RepositoryInfo
//   - branch.go: branch queries, ahead/behind counts
//   - diff.go: tree-to-tree diffs
//   - status.go: uncommitted changes, conflict state
//   - merge.go: checkout, merge, abort
//   - outcome.go: merge output classification
//   - worktree.go: git worktree add/remove/list/prune
//   - gitignore.go: .gitignore maintenance
//   - remote.go: push and pull
package git
