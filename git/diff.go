package git

import (
	"context"
	"fmt"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/filemode"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/utils/merkletrie"

	"github.com/zhubert/plural-worktrees/logger"
)

// ChangeType classifies a DiffEntry.
type ChangeType int

const (
	ChangeAdded ChangeType = iota
	ChangeDeleted
	ChangeModified
	ChangeRenamed
	ChangeCopied
	ChangeTypeChanged
	ChangeUnmodified
)

func (c ChangeType) String() string {
	switch c {
	case ChangeAdded:
		return "Added"
	case ChangeDeleted:
		return "Deleted"
	case ChangeModified:
		return "Modified"
	case ChangeRenamed:
		return "Renamed"
	case ChangeCopied:
		return "Copied"
	case ChangeTypeChanged:
		return "TypeChanged"
	case ChangeUnmodified:
		return "Unmodified"
	default:
		return fmt.Sprintf("ChangeType(%d)", int(c))
	}
}

// MarshalText renders the change type by name in JSON output.
func (c ChangeType) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Code returns the single-letter status used by git (A, D, M, R, C, T, space).
func (c ChangeType) Code() string {
	switch c {
	case ChangeAdded:
		return "A"
	case ChangeDeleted:
		return "D"
	case ChangeModified:
		return "M"
	case ChangeRenamed:
		return "R"
	case ChangeCopied:
		return "C"
	case ChangeTypeChanged:
		return "T"
	default:
		return " "
	}
}

// DiffEntry describes one changed path. OldPath is set for renames and
// copies; Patch is set only when the diff source produces one.
type DiffEntry struct {
	FilePath     string     `json:"filePath"`
	OldPath      string     `json:"oldPath,omitempty"`
	ChangeType   ChangeType `json:"changeType"`
	LinesAdded   int        `json:"linesAdded"`
	LinesDeleted int        `json:"linesDeleted"`
	Patch        string     `json:"patch,omitempty"`
}

// GetDiff returns the tree-to-tree diff between fromRef and toRef. An empty
// toRef means HEAD. An empty fromRef diffs against the empty tree, so every
// file in toRef is reported as Added.
func (s *GitService) GetDiff(ctx context.Context, repoPath, fromRef, toRef string) ([]DiffEntry, error) {
	if toRef == "" {
		toRef = "HEAD"
	}

	repo, err := openRepo(repoPath)
	if err != nil {
		return nil, err
	}

	treeAt := func(rev string) (*object.Tree, error) {
		hash, err := repo.ResolveRevision(plumbing.Revision(rev))
		if err != nil {
			return nil, fmt.Errorf("%w: revision %s: %v", ErrNotFound, rev, err)
		}
		commit, err := repo.CommitObject(*hash)
		if err != nil {
			return nil, fmt.Errorf("failed to read commit %s: %w", rev, err)
		}
		return commit.Tree()
	}

	toTree, err := treeAt(toRef)
	if err != nil {
		return nil, err
	}
	fromTree := &object.Tree{}
	if fromRef != "" {
		if fromTree, err = treeAt(fromRef); err != nil {
			return nil, err
		}
	}

	changes, err := object.DiffTreeWithOptions(ctx, fromTree, toTree, object.DefaultDiffTreeOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to diff %s..%s: %w", fromRef, toRef, err)
	}

	log := logger.WithComponent("git")
	entries := make([]DiffEntry, 0, len(changes))
	for _, change := range changes {
		entry, err := changeToEntry(change)
		if err != nil {
			log.Debug("skipping unreadable change", "error", err)
			continue
		}

		patch, err := change.PatchContext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Debug("patch unavailable", "path", entry.FilePath, "error", err)
		} else {
			for _, st := range patch.Stats() {
				entry.LinesAdded += st.Addition
				entry.LinesDeleted += st.Deletion
			}
			entry.Patch = patch.String()
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// changeToEntry maps a go-git tree change onto a DiffEntry.
func changeToEntry(change *object.Change) (DiffEntry, error) {
	action, err := change.Action()
	if err != nil {
		return DiffEntry{}, err
	}

	switch action {
	case merkletrie.Insert:
		return DiffEntry{FilePath: change.To.Name, ChangeType: ChangeAdded}, nil
	case merkletrie.Delete:
		return DiffEntry{FilePath: change.From.Name, ChangeType: ChangeDeleted}, nil
	}

	entry := DiffEntry{FilePath: change.To.Name, ChangeType: ChangeModified}
	switch {
	case change.From.Name != change.To.Name:
		entry.OldPath = change.From.Name
		entry.ChangeType = ChangeRenamed
	case modeKind(change.From.TreeEntry.Mode) != modeKind(change.To.TreeEntry.Mode):
		entry.ChangeType = ChangeTypeChanged
	}
	return entry, nil
}

// modeKind collapses the regular/executable distinction so that only
// file <-> symlink <-> submodule transitions count as type changes.
func modeKind(m filemode.FileMode) filemode.FileMode {
	switch m {
	case filemode.Executable, filemode.Deprecated:
		return filemode.Regular
	}
	return m
}
